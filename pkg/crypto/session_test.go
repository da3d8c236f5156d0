package crypto

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptMessage(t *testing.T) {
	key, err := NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey() error = %v", err)
	}

	plaintext := []byte("meet me at the usual place")

	ciphertext, err := EncryptMessage(key, plaintext)
	if err != nil {
		t.Fatalf("EncryptMessage() error = %v", err)
	}
	if bytes.Contains(ciphertext, plaintext) {
		t.Error("EncryptMessage() output contains the plaintext")
	}

	decrypted, err := DecryptMessage(key, ciphertext)
	if err != nil {
		t.Fatalf("DecryptMessage() error = %v", err)
	}
	if !bytes.Equal(plaintext, decrypted) {
		t.Errorf("DecryptMessage() = %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptMessageNoncesDiffer(t *testing.T) {
	key, _ := NewSessionKey()

	first, err := EncryptMessage(key, []byte("hello"))
	if err != nil {
		t.Fatalf("EncryptMessage() error = %v", err)
	}
	second, err := EncryptMessage(key, []byte("hello"))
	if err != nil {
		t.Fatalf("EncryptMessage() error = %v", err)
	}

	if bytes.Equal(first, second) {
		t.Error("EncryptMessage() produced identical ciphertexts for the same plaintext")
	}
}

func TestDecryptMessageWrongKey(t *testing.T) {
	key, _ := NewSessionKey()
	otherKey, _ := NewSessionKey()

	ciphertext, err := EncryptMessage(key, []byte("secret"))
	if err != nil {
		t.Fatalf("EncryptMessage() error = %v", err)
	}

	if _, err := DecryptMessage(otherKey, ciphertext); err == nil {
		t.Error("DecryptMessage() accepted ciphertext under the wrong key")
	}
}

func TestDecryptMessageTruncated(t *testing.T) {
	key, _ := NewSessionKey()

	if _, err := DecryptMessage(key, []byte{0x01, 0x02}); err == nil {
		t.Error("DecryptMessage() accepted a truncated ciphertext")
	}
}
