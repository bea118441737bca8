package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/goMFA/secret"
	"github.com/MrEthical07/goMFA/store"
)

const factorsDocVersion1 = 1

// Factor is one enrolled method of a principal. Secret holds the TOTP shared
// secret, Contact the phone number or email address; both are envelopes.
type Factor struct {
	Method           string           `json:"method"`
	Secret           *secret.Envelope `json:"secret,omitempty"`
	Contact          *secret.Envelope `json:"contact,omitempty"`
	BackupCodeHashes []string         `json:"backupCodeHashes,omitempty"`
	Verified         bool             `json:"verified"`
	CreatedAt        time.Time        `json:"createdAt"`
	LastUsedAt       *time.Time       `json:"lastUsedAt,omitempty"`
}

type factorsDoc struct {
	V           int      `json:"v"`
	PrincipalID string   `json:"principalId"`
	Factors     []Factor `json:"factors"`
}

// Factors returns the principal's factors. A principal without any record
// has an empty list.
func (r *Repo) Factors(ctx context.Context, principalID string) ([]Factor, error) {
	data, ok, err := r.get(ctx, principalID, store.KindFactors)
	if err != nil || !ok {
		return nil, err
	}

	var doc factorsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: factors", ErrCorrupt)
	}
	if doc.V != factorsDocVersion1 {
		return nil, fmt.Errorf("%w: factors version %d", ErrCorrupt, doc.V)
	}
	return doc.Factors, nil
}

// SaveFactors replaces the principal's factor list. An empty list deletes
// the record.
func (r *Repo) SaveFactors(ctx context.Context, principalID string, factors []Factor) error {
	if len(factors) == 0 {
		return r.del(ctx, principalID, store.KindFactors)
	}

	data, err := json.Marshal(factorsDoc{
		V:           factorsDocVersion1,
		PrincipalID: principalID,
		Factors:     factors,
	})
	if err != nil {
		return err
	}
	return r.set(ctx, principalID, store.KindFactors, data)
}

// FindFactor returns the index of method in factors, or -1.
func FindFactor(factors []Factor, method string) int {
	for i := range factors {
		if factors[i].Method == method {
			return i
		}
	}
	return -1
}

// CountVerified returns how many factors are verified.
func CountVerified(factors []Factor) int {
	n := 0
	for i := range factors {
		if factors[i].Verified {
			n++
		}
	}
	return n
}
