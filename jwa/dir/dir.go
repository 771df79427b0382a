// Package dir implements a key management algorithm
// that is direct use of a shared symmetric key as the CEK.
package dir

import (
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
	jwa.RegisterKeyManagementAlgorithm(jwa.Direct, New)
}

var _ keymanage.Algorithm = (*algorithm)(nil)

type algorithm struct{}

// NewKeyWrapper implements [github.com/alonbl/joserfc/keymanage.Algorithm].
func (alg *algorithm) NewKeyWrapper(key keymanage.Key) keymanage.KeyWrapper {
	privateKey := key.PrivateKey()
	cek, ok := privateKey.([]byte)
	if !ok {
		return keymanage.NewInvalidKeyWrapper(fmt.Errorf("dir: %w: invalid key type: %T", joserr.ErrInvalidKey, privateKey))
	}
	return &keyWrapper{
		cek:       cek,
		canUseCEK: jwktypes.CanUseFor(key, jwktypes.KeyOpEncrypt) || jwktypes.CanUseFor(key, jwktypes.KeyOpDecrypt),
	}
}

// NewKeyWrapper returns a KeyWrapper directly from raw key material.
func NewKeyWrapper(cek []byte) keymanage.KeyWrapper {
	return &keyWrapper{
		cek:       cek,
		canUseCEK: true,
	}
}

var _ keymanage.KeyWrapper = (*keyWrapper)(nil)
var _ keymanage.CEKProvider = (*keyWrapper)(nil)

type keyWrapper struct {
	cek       []byte
	canUseCEK bool
}

// ProvideCEK implements [github.com/alonbl/joserfc/keymanage.CEKProvider].
// The CEK is the symmetric key itself.
func (w *keyWrapper) ProvideCEK(size int, opts any) ([]byte, error) {
	if !w.canUseCEK {
		return nil, fmt.Errorf("dir: %w: encryption is not allowed", joserr.ErrUnsupportedKeyOperation)
	}
	if len(w.cek) != size {
		return nil, fmt.Errorf("dir: %w: the key has %d bytes but the content encryption needs %d", joserr.ErrInvalidKey, len(w.cek), size)
	}
	return w.cek, nil
}

// WrapKey implements [github.com/alonbl/joserfc/keymanage.KeyWrapper].
// The encrypted key of direct encryption is empty.
func (w *keyWrapper) WrapKey(cek []byte, opts any) ([]byte, error) {
	return []byte{}, nil
}

// UnwrapKey implements [github.com/alonbl/joserfc/keymanage.KeyWrapper].
func (w *keyWrapper) UnwrapKey(data []byte, opts any) ([]byte, error) {
	if !w.canUseCEK {
		return nil, fmt.Errorf("dir: %w: decryption is not allowed", joserr.ErrUnsupportedKeyOperation)
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("dir: %w: encrypted key must be empty", joserr.ErrDecode)
	}
	return w.cek, nil
}
