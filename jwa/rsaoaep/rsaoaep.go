// Package rsaoaep implements the RSAES-OAEP key encryption algorithm.
package rsaoaep

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha1"   // for crypto.SHA1
	_ "crypto/sha256" // for crypto.SHA256
	"fmt"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/keymanage"
)

var alg = &algorithm{
	hash: crypto.SHA1,
}

// New returns RSA-OAEP with the default SHA-1 parameters.
func New() keymanage.Algorithm {
	return alg
}

var alg256 = &algorithm{
	hash: crypto.SHA256,
}

// New256 returns RSA-OAEP-256, RSAES OAEP using SHA-256 and MGF1 with SHA-256.
func New256() keymanage.Algorithm {
	return alg256
}

func init() {
	jwa.RegisterKeyManagementAlgorithm(jwa.RSA_OAEP, New)
	jwa.RegisterKeyManagementAlgorithm(jwa.RSA_OAEP_256, New256)
}

var _ keymanage.Algorithm = (*algorithm)(nil)

type algorithm struct {
	hash crypto.Hash
}

// NewKeyWrapper implements [github.com/alonbl/joserfc/keymanage.Algorithm].
func (alg *algorithm) NewKeyWrapper(key keymanage.Key) keymanage.KeyWrapper {
	privateKey := key.PrivateKey()
	publicKey := key.PublicKey()

	priv, ok := privateKey.(*rsa.PrivateKey)
	if !ok && privateKey != nil {
		return keymanage.NewInvalidKeyWrapper(fmt.Errorf("rsaoaep: %w: invalid private key type: %T", joserr.ErrInvalidKey, privateKey))
	}
	pub, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		if priv == nil {
			return keymanage.NewInvalidKeyWrapper(fmt.Errorf("rsaoaep: %w: invalid public key type: %T", joserr.ErrInvalidKey, publicKey))
		}
		pub = &priv.PublicKey
	}

	return &keyWrapper{
		hash:      alg.hash,
		priv:      priv,
		pub:       pub,
		canWrap:   jwktypes.CanUseFor(key, jwktypes.KeyOpWrapKey),
		canUnwrap: jwktypes.CanUseFor(key, jwktypes.KeyOpUnwrapKey),
	}
}

var _ keymanage.KeyWrapper = (*keyWrapper)(nil)

var label = []byte{}

type keyWrapper struct {
	hash      crypto.Hash
	priv      *rsa.PrivateKey
	pub       *rsa.PublicKey
	canWrap   bool
	canUnwrap bool
}

func (w *keyWrapper) WrapKey(cek []byte, opts any) ([]byte, error) {
	if !w.canWrap {
		return nil, fmt.Errorf("rsaoaep: %w: key wrapping is not allowed", joserr.ErrUnsupportedKeyOperation)
	}
	return rsa.EncryptOAEP(w.hash.New(), rand.Reader, w.pub, cek, label)
}

func (w *keyWrapper) UnwrapKey(data []byte, opts any) ([]byte, error) {
	if !w.canUnwrap {
		return nil, fmt.Errorf("rsaoaep: %w: key unwrapping is not allowed", joserr.ErrUnsupportedKeyOperation)
	}
	if w.priv == nil {
		return nil, fmt.Errorf("rsaoaep: %w: private key is required", joserr.ErrInvalidKey)
	}
	cek, err := rsa.DecryptOAEP(w.hash.New(), rand.Reader, w.priv, data, label)
	if err != nil {
		return nil, fmt.Errorf("rsaoaep: %w: failed to decrypt CEK", joserr.ErrBadSignature)
	}
	return cek, nil
}
