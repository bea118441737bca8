package flows

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// BackupCodeAlphabet omits I, O, 0 and 1.
const BackupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBackupCodeSet returns count distinct codes of length characters.
func NewBackupCodeSet(count, length int, randomIndex func(int) (int, error)) ([]string, error) {
	if count <= 0 || length <= 0 {
		return nil, errors.New("invalid backup code shape")
	}
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for attempts := 0; len(codes) < count; attempts++ {
		if attempts > count*8 {
			return nil, errors.New("backup code generation did not converge")
		}
		code, err := NewBackupCode(length, randomIndex)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// NewBackupCode returns one code drawn from BackupCodeAlphabet.
func NewBackupCode(length int, randomIndex func(int) (int, error)) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := randomIndex(len(BackupCodeAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(BackupCodeAlphabet[n])
	}
	return b.String(), nil
}

// CanonicalizeBackupCode accepts user input with spaces, dashes or lower case.
func CanonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// ConsumeBackupCodeHash returns hashes without the first entry equal to
// hash, and whether one was found. Comparison is constant time per entry.
func ConsumeBackupCodeHash(hashes []string, hash string) ([]string, bool) {
	for i, h := range hashes {
		if subtle.ConstantTimeCompare([]byte(h), []byte(hash)) == 1 {
			out := make([]string, 0, len(hashes)-1)
			out = append(out, hashes[:i]...)
			out = append(out, hashes[i+1:]...)
			return out, true
		}
	}
	return hashes, false
}
