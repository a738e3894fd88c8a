package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

// encrypt builds a base64(iv||tag||ct) blob the way the store does.
func encrypt(t *testing.T, rawKey, plaintext string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(rawKey))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		t.Fatal(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatal(err)
	}
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		t.Fatal(err)
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil) // ct || tag
	ct := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	blob := append(append(append([]byte{}, iv...), tag...), ct...)
	return base64.StdEncoding.EncodeToString(blob)
}

func TestDecryptRoundTrip(t *testing.T) {
	cipherB64 := encrypt(t, "master-key", "rcon-password")

	r := NewResolver("master-key")
	key, ok := r.Key()
	if !ok {
		t.Fatal("key not derived")
	}

	plain, err := Decrypt(cipherB64, key)
	if err != nil {
		t.Fatal(err)
	}
	if plain != "rcon-password" {
		t.Errorf("plain = %q, want %q", plain, "rcon-password")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	cipherB64 := encrypt(t, "right-key", "pw")

	r := NewResolver("wrong-key")
	key, _ := r.Key()
	if _, err := Decrypt(cipherB64, key); err == nil {
		t.Error("expected an error with the wrong key")
	}
}

func TestDecrypt_Malformed(t *testing.T) {
	r := NewResolver("k")
	key, _ := r.Key()

	for _, blob := range []string{"", "!!!not-base64!!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := Decrypt(blob, key); err == nil {
			t.Errorf("Decrypt(%q) succeeded, want error", blob)
		}
	}
}

func TestResolver_NoKeyMaterial(t *testing.T) {
	r := NewResolver("")
	if _, ok := r.Key(); ok {
		t.Error("empty raw material yielded a key")
	}
}

func TestResolve_CipherWins(t *testing.T) {
	cipherB64 := encrypt(t, "master", "from-cipher")
	r := NewResolver("master")

	pw, dbg := r.Resolve(Record{
		Cipher:     cipherB64,
		Candidates: []string{"from-plain"},
	})

	if pw != "from-cipher" {
		t.Errorf("password = %q, want %q", pw, "from-cipher")
	}
	if !dbg.HasCipher || dbg.MissingKey || dbg.UsedPlainPassword {
		t.Errorf("debug = %+v", dbg)
	}
}

func TestResolve_MissingKeyFallsBackToPlain(t *testing.T) {
	cipherB64 := encrypt(t, "master", "unreachable")
	r := NewResolver("")

	pw, dbg := r.Resolve(Record{
		Cipher:     cipherB64,
		Candidates: []string{"plain-pw"},
	})

	if pw != "plain-pw" {
		t.Errorf("password = %q, want %q", pw, "plain-pw")
	}
	if !dbg.MissingKey {
		t.Error("debug.MissingKey not set")
	}
	if !dbg.UsedPlainPassword {
		t.Error("debug.UsedPlainPassword not set")
	}
}

func TestResolve_DecryptFailureFallsBack(t *testing.T) {
	cipherB64 := encrypt(t, "other-key", "unreachable")
	r := NewResolver("master")

	pw, dbg := r.Resolve(Record{Cipher: cipherB64, Candidates: []string{"plain-pw"}})

	if pw != "plain-pw" {
		t.Errorf("password = %q, want %q", pw, "plain-pw")
	}
	if !dbg.DecryptFailed {
		t.Error("debug.DecryptFailed not set")
	}
}

func TestResolve_TestPasswordLast(t *testing.T) {
	r := NewResolver("")

	pw, dbg := r.Resolve(Record{TestPassword: "debug-only"})
	if pw != "debug-only" || !dbg.UsedTestPassword {
		t.Errorf("password = %q, debug = %+v", pw, dbg)
	}

	pw, dbg = r.Resolve(Record{Candidates: []string{"real"}, TestPassword: "debug-only"})
	if pw != "real" || dbg.UsedTestPassword {
		t.Errorf("plain candidate must beat the test password: %q %+v", pw, dbg)
	}
}

func TestResolve_Empty(t *testing.T) {
	r := NewResolver("")
	pw, dbg := r.Resolve(Record{})
	if pw != "" {
		t.Errorf("password = %q, want empty", pw)
	}
	if dbg.HasCipher || dbg.UsedPlainPassword || dbg.UsedTestPassword {
		t.Errorf("debug = %+v, want zero value", dbg)
	}
}

func TestSniffBase64(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short stays literal", "abc123", "abc123"},
		{"non-base64 stays literal", "pass word!", "pass word!"},
		{"valid base64 decodes", base64.StdEncoding.EncodeToString([]byte("decoded-pw")), "decoded-pw"},
		{"decodes to empty stays literal", "AAAAAAAAAAAA", "AAAAAAAAAAAA"},
		{"plausible password kept when decode garbles", "Password123", decodeOrLiteral("Password123")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniffBase64(tt.in); got != tt.want {
				t.Errorf("sniffBase64(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// decodeOrLiteral mirrors the sniffing rule for inputs that are valid
// base64 by shape but may decode to binary junk.
func decodeOrLiteral(s string) string {
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

func TestGather(t *testing.T) {
	payload := map[string]any{
		"auth": map[string]any{
			"rconPassword": "from-auth",
			"ignored":      "nope",
		},
		"password": "top-level",
		"pw":       map[string]any{"value": "wrapped"},
		"port":     27165.0,
	}

	got := Gather(payload)
	if len(got) != 3 {
		t.Fatalf("candidates = %v, want 3 entries", got)
	}
	// nested auth fields come first
	if got[0] != "from-auth" {
		t.Errorf("first candidate = %q, want %q", got[0], "from-auth")
	}
}
