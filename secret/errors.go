package secret

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a Cipher is built with a missing or short master key.
	ErrConfiguration = errors.New("secret: invalid cipher configuration")
	// ErrEncryption is returned when sealing fails.
	ErrEncryption = errors.New("secret: encryption failed")
	// ErrDecryption is returned for tampered envelopes, wrong keys and malformed input.
	ErrDecryption = errors.New("secret: decryption failed")
	// ErrUnsupportedVersion is returned, wrapped in ErrDecryption, for envelopes newer than SupportedVersion.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported envelope version", ErrDecryption)
)
