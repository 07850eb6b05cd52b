package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// RoleChatUser may ask questions through POST /chat.
const RoleChatUser = "chat_user"

type Identity struct {
	KeyID string
	Roles []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticKeys validates keys from CASEDESK_AUTH_STATIC_KEYS. Only SHA-256
// digests of the keys are held.
type StaticKeys struct {
	byDigest map[string]Identity
}

// ParseStaticKeys reads comma separated `key:role|role` entries. An empty
// list yields a validator that rejects everything.
func ParseStaticKeys(list string) (*StaticKeys, error) {
	keys := &StaticKeys{byDigest: map[string]Identity{}}
	if strings.TrimSpace(list) == "" {
		return keys, nil
	}
	for _, entry := range strings.Split(list, ",") {
		key, roles, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		digest := digestKey(key)
		if _, dup := keys.byDigest[digest]; dup {
			return nil, fmt.Errorf("duplicate static key %s", keyID(digest))
		}
		keys.byDigest[digest] = Identity{KeyID: keyID(digest), Roles: roles}
	}
	return keys, nil
}

func parseEntry(entry string) (string, []string, error) {
	entry = strings.TrimSpace(entry)
	key, rawRoles, found := strings.Cut(entry, ":")
	key = strings.TrimSpace(key)
	switch {
	case !found || strings.Contains(rawRoles, ":"):
		return "", nil, fmt.Errorf("invalid static key entry: expected key:role|role")
	case key == "":
		return "", nil, fmt.Errorf("invalid static key entry: empty key")
	}

	var roles []string
	for _, role := range strings.Split(rawRoles, "|") {
		if role = strings.TrimSpace(role); role != "" && !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return "", nil, fmt.Errorf("invalid static key entry %s: no roles", keyID(digestKey(key)))
	}
	slices.Sort(roles)
	return key, roles, nil
}

func (k *StaticKeys) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := k.byDigest[digestKey(apiKey)]
	return identity, ok
}

func digestKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// keyID is the log-safe name of a key.
func keyID(digest string) string {
	return "key-" + digest[:8]
}
