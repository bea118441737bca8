package secret

const (
	// Algorithm is the identifier written into every envelope.
	Algorithm = "aes-256-gcm"
	// CurrentVersion is the envelope format produced by Encrypt.
	CurrentVersion = 1
	// SupportedVersion is the newest envelope format Decrypt accepts.
	SupportedVersion = CurrentVersion

	// SaltSize is the PBKDF2 salt length in bytes.
	SaltSize = 32
	// IVSize is the GCM nonce length in bytes.
	IVSize = 16
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
	// KeySize is the derived AES key length in bytes.
	KeySize = 32
)

// Envelope carries ciphertext plus everything needed to decrypt it except the
// master key. Byte fields encode as standard base64 in JSON.
type Envelope struct {
	Encrypted []byte `json:"encrypted"`
	Salt      []byte `json:"salt"`
	IV        []byte `json:"iv"`
	Tag       []byte `json:"tag"`
	Algorithm string `json:"algorithm"`
	Version   int    `json:"version"`
}

// Clone returns a deep copy of e.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	return &Envelope{
		Encrypted: append([]byte(nil), e.Encrypted...),
		Salt:      append([]byte(nil), e.Salt...),
		IV:        append([]byte(nil), e.IV...),
		Tag:       append([]byte(nil), e.Tag...),
		Algorithm: e.Algorithm,
		Version:   e.Version,
	}
}

func (e *Envelope) wellFormed() bool {
	return len(e.Salt) == SaltSize &&
		len(e.IV) == IVSize &&
		len(e.Tag) == TagSize
}
