package secrets

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const braveField = "search.brave.api_key"

func openTestKeyRing(t *testing.T) (*KeyRing, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), KeyFile)
	kr, err := OpenKeyRing(path)
	if err != nil {
		t.Fatal(err)
	}
	return kr, path
}

func TestSealUnseal(t *testing.T) {
	kr, _ := openTestKeyRing(t)

	sealed, err := kr.Seal(braveField, "BSA-brave-key")
	if err != nil {
		t.Fatal(err)
	}
	if !IsSealed(sealed) || strings.Contains(sealed, "BSA-brave-key") {
		t.Fatalf("value not sealed: %q", sealed)
	}

	plain, err := kr.Unseal(braveField, sealed)
	if err != nil {
		t.Fatal(err)
	}
	if plain != "BSA-brave-key" {
		t.Fatalf("got %q after unseal", plain)
	}
}

func TestSealPassthrough(t *testing.T) {
	kr, _ := openTestKeyRing(t)

	if v, _ := kr.Seal(braveField, ""); v != "" {
		t.Fatalf("empty value should stay empty, got %q", v)
	}

	sealed, _ := kr.Seal(braveField, "key")
	again, err := kr.Seal(braveField, sealed)
	if err != nil {
		t.Fatal(err)
	}
	if again != sealed {
		t.Fatal("sealing a sealed value should not change it")
	}

	if v, _ := kr.Unseal(braveField, "plain-key"); v != "plain-key" {
		t.Fatalf("plain value should pass through unseal, got %q", v)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	kr, _ := openTestKeyRing(t)

	a, _ := kr.Seal(braveField, "same")
	b, _ := kr.Seal(braveField, "same")
	if a == b {
		t.Fatal("two seals of one value should differ")
	}
}

func TestSealedValueBoundToField(t *testing.T) {
	kr, _ := openTestKeyRing(t)
	sealed, _ := kr.Seal(braveField, "key")

	if _, err := kr.Unseal("search.other.api_key", sealed); err == nil {
		t.Fatal("value sealed for one field should not open under another")
	}
}

func TestUnsealDetectsTampering(t *testing.T) {
	kr, _ := openTestKeyRing(t)
	sealed, _ := kr.Seal(braveField, "key")

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0xff
	tampered := sealedPrefix + base64.RawURLEncoding.EncodeToString(raw)

	if _, err := kr.Unseal(braveField, tampered); err == nil {
		t.Fatal("tampered value should not unseal")
	}
	if _, err := kr.Unseal(braveField, sealedPrefix+"abc"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("short value: expected ErrMalformed, got %v", err)
	}
}

func TestKeyPersists(t *testing.T) {
	kr, path := openTestKeyRing(t)
	sealed, _ := kr.Seal(braveField, "persist")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected key mode 0600, got %v", info.Mode().Perm())
	}

	reopened, err := OpenKeyRing(path)
	if err != nil {
		t.Fatal(err)
	}
	if plain, err := reopened.Unseal(braveField, sealed); err != nil || plain != "persist" {
		t.Fatalf("reopened key ring failed: %q, %v", plain, err)
	}
}

func TestInvalidKeyFile(t *testing.T) {
	for name, body := range map[string]string{
		"not base64": "zz-not-base64!",
		"too short":  base64.StdEncoding.EncodeToString([]byte("short")),
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), KeyFile)
			if err := os.WriteFile(path, []byte(body), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := OpenKeyRing(path); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestWrongKeyFails(t *testing.T) {
	kr, _ := openTestKeyRing(t)
	sealed, _ := kr.Seal(braveField, "data")

	other := filepath.Join(t.TempDir(), KeyFile)
	key := make([]byte, 32)
	key[0] = 0xff
	if err := os.WriteFile(other, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		t.Fatal(err)
	}
	wrong, err := OpenKeyRing(other)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrong.Unseal(braveField, sealed); err == nil {
		t.Fatal("unseal with a different key should fail")
	}
}
