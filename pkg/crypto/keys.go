// Package crypto provides the primitives behind zenchat's encrypted
// messaging: RSA key pairs for the key exchange, AES-GCM session keys for
// message bodies, and content checksums for file transfers.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
)

var (
	ErrInvalidKey       = errors.New("invalid key")
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// GenerateKeyPair generates a new RSA-2048 key pair.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}

// MarshalPublicKey encodes a public key to PKIX DER, the form exchanged in
// PUBLIC_KEY messages.
func MarshalPublicKey(key *rsa.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(key)
}

// ParsePublicKey decodes a PKIX DER public key received from a peer.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, ErrInvalidKey
	}

	return rsaPub, nil
}

// ExportPrivateKeyPEM exports a private key to PEM format.
func ExportPrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	privASN1 := x509.MarshalPKCS1PrivateKey(key)

	privBlock := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privASN1,
	}

	return pem.EncodeToMemory(privBlock), nil
}

// ImportPrivateKeyPEM imports a private key from PEM format.
func ImportPrivateKeyPEM(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, ErrInvalidKey
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	return key, nil
}

// WrapSessionKey encrypts a session key under a peer's public key using
// RSA-OAEP, producing the SESSION_KEY payload.
func WrapSessionKey(publicKey *rsa.PublicKey, sessionKey []byte) ([]byte, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, sessionKey, nil)
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	return wrapped, nil
}

// UnwrapSessionKey decrypts a wrapped session key with our private key.
func UnwrapSessionKey(privateKey *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	sessionKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, privateKey, wrapped, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return sessionKey, nil
}
