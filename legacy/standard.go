package legacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
)

// Standard returns a registry with the stock Go digests and AES-CTR.
func Standard() *Registry {
	r := NewRegistry()
	for _, d := range []Digest{
		{Names: []string{"MD5", "SSL3-MD5"}, New: md5.New},
		{Names: []string{"SHA1", "SHA-1", "SSL3-SHA1"}, New: sha1.New},
		{Names: []string{"SHA224", "SHA2-224", "SHA-224"}, New: sha256.New224},
		{Names: []string{"SHA256", "SHA2-256", "SHA-256"}, New: sha256.New},
		{Names: []string{"SHA384", "SHA2-384", "SHA-384"}, New: sha512.New384},
		{Names: []string{"SHA512", "SHA2-512", "SHA-512"}, New: sha512.New},
	} {
		if err := r.AddDigest(d); err != nil {
			panic(err)
		}
	}
	for _, c := range []Cipher{
		{Names: []string{"AES-128-CTR", "id-aes128-CTR"}, KeySize: 16, IVSize: aes.BlockSize, BlockSize: 1, New: aesCTR(16)},
		{Names: []string{"AES-256-CTR", "id-aes256-CTR"}, KeySize: 32, IVSize: aes.BlockSize, BlockSize: 1, New: aesCTR(32)},
	} {
		if err := r.AddCipher(c); err != nil {
			panic(err)
		}
	}
	return r
}

func aesCTR(keySize int) func(key, iv []byte, encrypt bool) (cipher.Stream, error) {
	return func(key, iv []byte, _ bool) (cipher.Stream, error) {
		if len(key) != keySize {
			return nil, fmt.Errorf("legacy: aes-ctr wants %d-byte key, got %d", keySize, len(key))
		}
		if len(iv) != aes.BlockSize {
			return nil, fmt.Errorf("legacy: aes-ctr wants %d-byte iv, got %d", aes.BlockSize, len(iv))
		}
		b, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewCTR(b, iv), nil
	}
}
