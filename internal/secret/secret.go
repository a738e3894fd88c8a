// Package secret derives the RCON password for a call from the available
// key material: an AES-256-GCM ciphertext stored on the server record, a
// plaintext candidate under one of several historical field names, or a
// debug-only test password.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Ciphertext layout: base64(iv[12] || tag[16] || ciphertext).
const (
	ivLen  = 12
	tagLen = 16
)

// Debug records which source produced the password and what went wrong
// along the way. It is merged into the caller's status debug fields.
type Debug struct {
	HasCipher         bool `json:"hasCipher"`
	MissingKey        bool `json:"missingKey,omitempty"`
	DecryptFailed     bool `json:"decryptFailed,omitempty"`
	UsedPlainPassword bool `json:"usedPlainPassword,omitempty"`
	UsedTestPassword  bool `json:"usedTestPassword,omitempty"`
}

// Resolver holds the process-wide decryption key, computed at most once
// from the raw key material and never invalidated.
type Resolver struct {
	key func() ([]byte, bool)
}

// NewResolver creates a resolver over the raw key material (typically the
// SQUADMIN_SECRET_KEY environment value, surfaced through config). An
// empty raw value means no key is available. The SHA-256 derivation runs
// lazily on first use, once.
func NewResolver(raw string) *Resolver {
	return &Resolver{
		key: sync.OnceValues(func() ([]byte, bool) {
			if raw == "" {
				return nil, false
			}
			sum := sha256.Sum256([]byte(raw))
			return sum[:], true
		}),
	}
}

// Key returns the derived AES-256 key, if any.
func (r *Resolver) Key() ([]byte, bool) { return r.key() }

// Decrypt opens a base64(iv||tag||ct) blob with the given key.
func Decrypt(b64 string, key []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	if len(raw) < ivLen+tagLen {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(raw))
	}
	iv := raw[:ivLen]
	tag := raw[ivLen : ivLen+tagLen]
	ct := raw[ivLen+tagLen:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	// Go's GCM wants the tag appended to the ciphertext.
	plain, err := gcm.Open(nil, iv, append(append([]byte{}, ct...), tag...), nil)
	if err != nil {
		return "", fmt.Errorf("opening ciphertext: %w", err)
	}
	return string(plain), nil
}

// Record is the loosely-shaped auth material attached to a server record
// or a call payload.
type Record struct {
	// Cipher is the stored base64(iv||tag||ct) blob, if any.
	Cipher string

	// Candidates are plaintext password values in precedence order,
	// already plucked from whatever fields the record carried.
	Candidates []string

	// TestPassword is a debug-only override supplied on the call. Never
	// persisted.
	TestPassword string
}

// candidateFields is the historical set of record and payload field names
// a plaintext password may hide under, in precedence order.
var candidateFields = []string{
	"password", "plain", "secretPlaintext", "secret", "rcon",
	"rconPassword", "rcon_pass", "pass", "passwordPlain", "passwordBase64",
	"pw", "rcon_pw",
}

// Gather plucks plaintext candidates from a loosely-typed payload, walking
// the candidate field names on the top level and on a nested "auth" map.
func Gather(payload map[string]any) []string {
	var out []string
	pick := func(m map[string]any) {
		for _, field := range candidateFields {
			if v, ok := m[field]; ok {
				if s := coerce(v); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	if auth, ok := payload["auth"].(map[string]any); ok {
		pick(auth)
	}
	pick(payload)
	return out
}

// coerce accepts the value shapes seen in the wild: strings, numbers, and
// {value: "..."} / {password: "..."} wrappers.
func coerce(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	case map[string]any:
		if s, ok := t["value"].(string); ok {
			return strings.TrimSpace(s)
		}
		if s, ok := t["password"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

var base64Shape = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

// sniffBase64 speculatively decodes a candidate that looks like base64.
// The decoded value wins only when it is non-empty and free of NUL bytes;
// otherwise the original string is the password.
func sniffBase64(s string) string {
	if len(s) <= 8 || !base64Shape.MatchString(s) {
		return s
	}
	dec, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	out := strings.TrimSpace(string(dec))
	if out == "" || strings.ContainsRune(out, 0) {
		return s
	}
	return out
}

// Resolve derives the password for one call. First match wins: decrypted
// ciphertext, then plaintext candidates, then the test password. A cipher
// without key material is not fatal; it is recorded in the debug fields
// and resolution continues.
func (r *Resolver) Resolve(rec Record) (string, Debug) {
	var dbg Debug

	if rec.Cipher != "" {
		dbg.HasCipher = true
		if key, ok := r.Key(); ok {
			plain, err := Decrypt(rec.Cipher, key)
			if err != nil {
				dbg.DecryptFailed = true
			} else if plain != "" {
				return plain, dbg
			}
		} else {
			dbg.MissingKey = true
		}
	}

	for _, cand := range rec.Candidates {
		if cand == "" {
			continue
		}
		dbg.UsedPlainPassword = true
		return sniffBase64(cand), dbg
	}

	if rec.TestPassword != "" {
		dbg.UsedTestPassword = true
		return rec.TestPassword, dbg
	}

	return "", dbg
}
