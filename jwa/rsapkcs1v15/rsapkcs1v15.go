// Package rsapkcs1v15 implements the RSAES-PKCS1-v1_5 key encryption
// algorithm.
//
// The algorithm is vulnerable to padding oracle attacks and is not in
// any default allowlist; callers must enable it explicitly.
package rsapkcs1v15

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/keymanage"
)

var alg = &algorithm{}

func New() keymanage.Algorithm {
	return alg
}

func init() {
	jwa.RegisterKeyManagementAlgorithm(jwa.RSA1_5, New)
}

var _ keymanage.Algorithm = (*algorithm)(nil)

type algorithm struct{}

// NewKeyWrapper implements [github.com/alonbl/joserfc/keymanage.Algorithm].
func (alg *algorithm) NewKeyWrapper(key keymanage.Key) keymanage.KeyWrapper {
	privateKey := key.PrivateKey()
	publicKey := key.PublicKey()

	priv, ok := privateKey.(*rsa.PrivateKey)
	if !ok && privateKey != nil {
		return keymanage.NewInvalidKeyWrapper(fmt.Errorf("rsapkcs1v15: %w: invalid private key type: %T", joserr.ErrInvalidKey, privateKey))
	}
	pub, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		if priv == nil {
			return keymanage.NewInvalidKeyWrapper(fmt.Errorf("rsapkcs1v15: %w: invalid public key type: %T", joserr.ErrInvalidKey, publicKey))
		}
		pub = &priv.PublicKey
	}

	return &keyWrapper{
		priv:      priv,
		pub:       pub,
		canWrap:   jwktypes.CanUseFor(key, jwktypes.KeyOpWrapKey),
		canUnwrap: jwktypes.CanUseFor(key, jwktypes.KeyOpUnwrapKey),
	}
}

var _ keymanage.KeyWrapper = (*keyWrapper)(nil)

type keyWrapper struct {
	priv      *rsa.PrivateKey
	pub       *rsa.PublicKey
	canWrap   bool
	canUnwrap bool
}

func (w *keyWrapper) WrapKey(cek []byte, opts any) ([]byte, error) {
	if !w.canWrap {
		return nil, fmt.Errorf("rsapkcs1v15: %w: key wrapping is not allowed", joserr.ErrUnsupportedKeyOperation)
	}
	return rsa.EncryptPKCS1v15(rand.Reader, w.pub, cek)
}

// UnwrapKey decrypts the encrypted CEK.
//
// To harden against padding oracles, a decryption failure yields a
// random CEK-sized value instead of an error, as RFC 7516 Section
// 11.5 recommends; the content decryption then fails on the
// authentication tag.
func (w *keyWrapper) UnwrapKey(data []byte, opts any) ([]byte, error) {
	if !w.canUnwrap {
		return nil, fmt.Errorf("rsapkcs1v15: %w: key unwrapping is not allowed", joserr.ErrUnsupportedKeyOperation)
	}
	if w.priv == nil {
		return nil, fmt.Errorf("rsapkcs1v15: %w: private key is required", joserr.ErrInvalidKey)
	}
	cek, err := rsa.DecryptPKCS1v15(nil, w.priv, data)
	if err != nil {
		size := 32
		if getter, ok := opts.(interface {
			EncryptionAlgorithm() jwa.EncryptionAlgorithm
		}); ok {
			if enc := getter.EncryptionAlgorithm(); enc.Available() {
				size = enc.New().CEKSize()
			}
		}
		cek = make([]byte, size)
		if _, err := rand.Read(cek); err != nil {
			return nil, err
		}
	}
	return cek, nil
}
