package domain

import (
	"strings"
	"time"
)

// Account represents one association treasury: pooled member funds, the
// executive set authorized to move them, and a shared access secret
// gating member-facing reads.
type Account struct {
	ID               int64     `json:"id"` // sequential, zero-padding is a display concern
	Name             string    `json:"name"`
	Executives       []string  `json:"executives"` // immutable after creation
	AccessSecretHash string    `json:"-"`          // argon2id, never expose
	TotalBalance     int64     `json:"total_balance"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasExecutive reports whether identity belongs to the account's
// executive set.
func (a *Account) HasExecutive(identity string) bool {
	norm, err := NormalizeIdentity(identity)
	if err != nil {
		return false
	}
	for _, e := range a.Executives {
		if e == norm {
			return true
		}
	}
	return false
}

// ExecutiveCount returns the size of the executive set ("Y" in the
// "X of Y" approval progress).
func (a *Account) ExecutiveCount() int {
	return len(a.Executives)
}

// NormalizeIdentity canonicalizes a caller identity: trimmed, lowercased,
// non-empty, no interior whitespace. Identities are opaque strings
// (typically hex addresses) verified upstream.
func NormalizeIdentity(identity string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(identity))
	if s == "" {
		return "", ErrEmptyIdentity
	}
	if strings.ContainsAny(s, " \t\n") {
		return "", ErrMalformedIdentity
	}
	if len(s) > 128 {
		return "", ErrMalformedIdentity
	}
	return s, nil
}

// NormalizeExecutives validates and canonicalizes an executive set:
// non-empty, each identity well-formed, no duplicates. Order is
// preserved.
func NormalizeExecutives(identities []string) ([]string, error) {
	if len(identities) == 0 {
		return nil, ErrNoExecutives
	}
	seen := make(map[string]struct{}, len(identities))
	out := make([]string, 0, len(identities))
	for _, raw := range identities {
		norm, err := NormalizeIdentity(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[norm]; dup {
			return nil, ErrDuplicateExecutive
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out, nil
}
