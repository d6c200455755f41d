// Package auth resolves API keys to identities and enforces route roles.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

const (
	RoleReader     = "reader"
	RoleQueryAdmin = "query_admin"
)

// digestPrefix marks a configured key given as the hex SHA-256 of the secret.
const digestPrefix = "sha256="

var knownRoles = []string{RoleQueryAdmin, RoleReader}

type Identity struct {
	Subject string
	Roles   []string
	// KeyID is a short, non-secret fingerprint of the key that authenticated.
	KeyID string
}

// Anonymous is the identity used when authentication is disabled. It holds
// every role.
func Anonymous() Identity {
	return Identity{Subject: "anonymous", Roles: slices.Clone(knownRoles)}
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type staticKey struct {
	digest   [sha256.Size]byte
	identity Identity
}

// StaticAPIKeyValidator holds only digests of the configured keys.
type StaticAPIKeyValidator struct {
	keys []staticKey
}

// NewStaticAPIKeyValidator parses "key:subject:role|role" entries separated
// by commas. A key written as sha256=<hex> is taken as the digest of the
// secret rather than the secret itself.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:subject:role|role", entry)
		}
		subject := strings.TrimSpace(parts[1])
		digest, err := parseKey(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid static key entry %q: %w", entry, err)
		}
		if subject == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty subject", entry)
		}
		if validator.lookup(digest) != nil {
			return nil, fmt.Errorf("invalid static key entry %q: duplicate key", entry)
		}
		roles, err := parseRoles(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid static key entry %q: %w", entry, err)
		}
		validator.keys = append(validator.keys, staticKey{
			digest:   digest,
			identity: Identity{Subject: subject, Roles: roles, KeyID: keyID(digest)},
		})
	}
	return validator, nil
}

// Validate compares the digest of apiKey against every configured digest in
// constant time.
func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	if apiKey == "" {
		return Identity{}, false
	}
	if key := v.lookup(sha256.Sum256([]byte(apiKey))); key != nil {
		return key.identity, true
	}
	return Identity{}, false
}

func (v *StaticAPIKeyValidator) lookup(digest [sha256.Size]byte) *staticKey {
	var found *staticKey
	for i := range v.keys {
		if subtle.ConstantTimeCompare(v.keys[i].digest[:], digest[:]) == 1 {
			found = &v.keys[i]
		}
	}
	return found
}

func parseKey(raw string) ([sha256.Size]byte, error) {
	var digest [sha256.Size]byte
	if raw == "" {
		return digest, fmt.Errorf("empty key")
	}
	if !strings.HasPrefix(raw, digestPrefix) {
		return sha256.Sum256([]byte(raw)), nil
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(raw, digestPrefix))
	if err != nil || len(decoded) != sha256.Size {
		return digest, fmt.Errorf("key digest must be %d hex-encoded bytes", sha256.Size)
	}
	copy(digest[:], decoded)
	return digest, nil
}

func parseRoles(raw string) ([]string, error) {
	roles := make([]string, 0, len(knownRoles))
	for _, role := range strings.Split(strings.TrimSpace(raw), "|") {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if !slices.Contains(knownRoles, role) {
			return nil, fmt.Errorf("unknown role %q", role)
		}
		if !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}
	slices.Sort(roles)
	return roles, nil
}

func keyID(digest [sha256.Size]byte) string {
	return hex.EncodeToString(digest[:4])
}
