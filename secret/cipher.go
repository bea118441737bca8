package secret

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/semaphore"
)

const (
	// MinMasterKeyLength is the shortest master key, in characters, New accepts.
	MinMasterKeyLength = 32
	// DefaultIterations is the PBKDF2 iteration count.
	DefaultIterations = 100_000
)

type deriveFunc func(password, salt []byte, iterations, keyLen int) []byte

func pbkdf2SHA256(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
}

type options struct {
	iterations  int
	concurrency int
	logger      zerolog.Logger
}

// Option configures a Cipher.
type Option func(*options)

// WithIterations overrides the PBKDF2 iteration count. Envelopes do not record
// the count, so every Cipher reading the same data must use the same value.
func WithIterations(n int) Option {
	return func(o *options) {
		o.iterations = n
	}
}

// WithMaxConcurrentDerivations bounds how many key derivations run at once.
func WithMaxConcurrentDerivations(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithLogger sets the logger used for contained field failures.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Cipher seals and opens envelopes under a single master key. It holds no
// mutable state besides the derivation pool and is safe for concurrent use.
type Cipher struct {
	masterKey  []byte
	iterations int
	pool       *semaphore.Weighted
	derive     deriveFunc
	log        zerolog.Logger
}

// New builds a Cipher. Master keys shorter than MinMasterKeyLength characters
// fail with ErrConfiguration.
func New(masterKey string, opts ...Option) (*Cipher, error) {
	if utf8.RuneCountInString(masterKey) < MinMasterKeyLength {
		return nil, fmt.Errorf("%w: master key must be at least %d characters", ErrConfiguration, MinMasterKeyLength)
	}

	o := options{
		iterations:  DefaultIterations,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.iterations <= 0 {
		return nil, fmt.Errorf("%w: iterations must be > 0", ErrConfiguration)
	}
	if o.concurrency <= 0 {
		return nil, fmt.Errorf("%w: derivation concurrency must be > 0", ErrConfiguration)
	}

	return &Cipher{
		masterKey:  []byte(masterKey),
		iterations: o.iterations,
		pool:       semaphore.NewWeighted(int64(o.concurrency)),
		derive:     pbkdf2SHA256,
		log:        o.logger,
	}, nil
}

// Encrypt seals v. Strings are sealed verbatim, []byte as raw bytes, and any
// other value as its JSON encoding.
func (c *Cipher) Encrypt(ctx context.Context, v any) (*Envelope, error) {
	plaintext, err := plaintextBytes(v)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	aead, err := c.aead(ctx, salt)
	if err != nil {
		return nil, errors.Join(ErrEncryption, err)
	}

	sealed := aead.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - TagSize

	return &Envelope{
		Encrypted: sealed[:split:split],
		Salt:      salt,
		IV:        iv,
		Tag:       sealed[split:],
		Algorithm: Algorithm,
		Version:   CurrentVersion,
	}, nil
}

// Decrypt opens env and returns the plaintext. The version gate runs before
// any key derivation.
func (c *Cipher) Decrypt(ctx context.Context, env *Envelope) (string, error) {
	b, err := c.DecryptBytes(ctx, env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecryptBytes is Decrypt without the string conversion.
func (c *Cipher) DecryptBytes(ctx context.Context, env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrDecryption
	}
	if env.Version > SupportedVersion || env.Version < 1 {
		return nil, ErrUnsupportedVersion
	}
	if env.Algorithm != Algorithm || !env.wellFormed() {
		return nil, ErrDecryption
	}

	aead, err := c.aead(ctx, env.Salt)
	if err != nil {
		return nil, errors.Join(ErrDecryption, err)
	}

	sealed := make([]byte, 0, len(env.Encrypted)+TagSize)
	sealed = append(sealed, env.Encrypted...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := aead.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// Hash returns hex(SHA-256(value || masterKey)). The master key acts as a
// fixed salt shared by every hashed value; stored hashes depend on it.
func (c *Cipher) Hash(value string) string {
	h := sha256.New()
	h.Write([]byte(value))
	h.Write(c.masterKey)
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateToken returns n random bytes hex encoded.
func (c *Cipher) GenerateToken(n int) (string, error) {
	return GenerateToken(n)
}

// GenerateToken returns n bytes from crypto/rand, hex encoded.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("%w: token length must be > 0", ErrConfiguration)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Rotate decrypts env under oldMasterKey and seals the plaintext again under
// newMasterKey. env is left untouched.
func Rotate(ctx context.Context, oldMasterKey, newMasterKey string, env *Envelope, opts ...Option) (*Envelope, error) {
	from, err := New(oldMasterKey, opts...)
	if err != nil {
		return nil, err
	}
	to, err := New(newMasterKey, opts...)
	if err != nil {
		return nil, err
	}

	plaintext, err := from.DecryptBytes(ctx, env)
	if err != nil {
		return nil, err
	}
	defer clear(plaintext)

	return to.Encrypt(ctx, plaintext)
}

func (c *Cipher) aead(ctx context.Context, salt []byte) (cipher.AEAD, error) {
	key, err := c.deriveKey(ctx, salt)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, IVSize)
}

func (c *Cipher) deriveKey(ctx context.Context, salt []byte) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.pool.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.pool.Release(1)

	return c.derive(c.masterKey, salt, c.iterations, KeySize), nil
}

func plaintextBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case []byte:
		return append([]byte(nil), t...), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: value is not JSON encodable", ErrEncryption)
		}
		return b, nil
	}
}
