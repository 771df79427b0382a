// Package agcm provides the AES-GCM content encryption algorithm.
package agcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/alonbl/joserfc/enc"
	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
)

const ivSize = 12
const tagSize = 16

var a128gcm = &algorithm{
	keyLen: 16,
}

func New128() enc.Algorithm {
	return a128gcm
}

var a192gcm = &algorithm{
	keyLen: 24,
}

func New192() enc.Algorithm {
	return a192gcm
}

var a256gcm = &algorithm{
	keyLen: 32,
}

func New256() enc.Algorithm {
	return a256gcm
}

func init() {
	jwa.RegisterEncryptionAlgorithm(jwa.A128GCM, New128)
	jwa.RegisterEncryptionAlgorithm(jwa.A192GCM, New192)
	jwa.RegisterEncryptionAlgorithm(jwa.A256GCM, New256)
}

var _ enc.Algorithm = (*algorithm)(nil)

type algorithm struct {
	keyLen int
}

// CEKSize implements [github.com/alonbl/joserfc/enc.Algorithm].
func (alg *algorithm) CEKSize() int {
	return alg.keyLen
}

// IVSize implements [github.com/alonbl/joserfc/enc.Algorithm].
func (alg *algorithm) IVSize() int {
	return ivSize
}

// GenerateCEK implements [github.com/alonbl/joserfc/enc.Algorithm].
func (alg *algorithm) GenerateCEK() ([]byte, error) {
	cek := make([]byte, alg.keyLen)
	if _, err := rand.Read(cek); err != nil {
		return nil, err
	}
	return cek, nil
}

// GenerateIV implements [github.com/alonbl/joserfc/enc.Algorithm].
func (alg *algorithm) GenerateIV() ([]byte, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	return iv, nil
}

// Encrypt implements [github.com/alonbl/joserfc/enc.Algorithm].
func (alg *algorithm) Encrypt(cek, iv, aad, plaintext []byte) (ciphertext, authTag []byte, err error) {
	if len(cek) != alg.keyLen {
		return nil, nil, errors.New("agcm: invalid content encryption key")
	}
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	if len(iv) != aead.NonceSize() {
		return nil, nil, errors.New("agcm: invalid size of iv")
	}
	sealed := aead.Seal(nil, iv, plaintext, aad)
	ciphertext = sealed[:len(sealed)-tagSize]
	authTag = sealed[len(sealed)-tagSize:]
	return
}

// Decrypt implements [github.com/alonbl/joserfc/enc.Algorithm].
func (alg *algorithm) Decrypt(cek, iv, aad, ciphertext, authTag []byte) (plaintext []byte, err error) {
	if len(cek) != alg.keyLen {
		return nil, errors.New("agcm: invalid content encryption key")
	}
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(iv) != aead.NonceSize() {
		return nil, errors.New("agcm: invalid size of iv")
	}
	sealed := make([]byte, 0, len(ciphertext)+len(authTag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, authTag...)
	plaintext, err = aead.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("agcm: %w: authentication tag mismatch", joserr.ErrBadSignature)
	}
	return plaintext, nil
}
