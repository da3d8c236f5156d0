package crypto

import (
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Checksum generates a BLAKE2b-256 hex digest of data.
func Checksum(data []byte) (string, error) {
	hash, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}

	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// ChecksumFile generates a BLAKE2b-256 hex digest of a file's contents. Both
// ends of a transfer compute it; the receiver discards the file when the
// digests differ.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
