package secure

import (
	"strings"
	"testing"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef") // 32 bytes, AES-256
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey())
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	plaintext := "021000021"
	ciphertext, err := codec.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("ciphertext must differ from plaintext")
	}

	decrypted, err := codec.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Fatalf("round trip mismatch: %q != %q", decrypted, plaintext)
	}
}

func TestCodec_UniqueNonces(t *testing.T) {
	codec, err := NewCodec(testKey())
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	first, err := codec.Encrypt("same value")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	second, err := codec.Encrypt("same value")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if first == second {
		t.Fatal("encrypting the same value twice must yield different ciphertexts")
	}
}

func TestCodec_RejectsBadKeyLength(t *testing.T) {
	if _, err := NewCodec([]byte("short")); err == nil {
		t.Fatal("expected error for invalid key length")
	}
}

func TestCodec_RejectsTamperedCiphertext(t *testing.T) {
	codec, err := NewCodec(testKey())
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	ciphertext, err := codec.Encrypt("Jordan Avery")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	tampered := strings.ToUpper(ciphertext)
	if tampered == ciphertext {
		t.Skip("ciphertext has no lowercase characters to flip")
	}
	if _, err := codec.Decrypt(tampered); err == nil {
		t.Fatal("expected tampered ciphertext to fail authentication")
	}
}
