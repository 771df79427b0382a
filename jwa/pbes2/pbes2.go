// Package pbes2 provides PBES2 with HMAC SHA-2 and AES Key wrapping.
package pbes2

import (
	"crypto"
	"crypto/rand"
	"errors"
	"fmt"
	"hash"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwa/akw"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/keymanage"
)

// MinIterationCount is the lowest acceptable "p2c" value. Counts
// below it are rejected on both wrapping and unwrapping.
const MinIterationCount = 1000

// DefaultIterationCount is the "p2c" value used when the caller does
// not set one.
const DefaultIterationCount = 10000

var hs256a128kw = &algorithm{
	name: string(jwa.PBES2_HS256_A128KW),
	hash: crypto.SHA256.New,
	size: 16,
}

// NewHS256A128KW returns PBES2 with HMAC SHA-256 and "A128KW" wrapping.
func NewHS256A128KW() keymanage.Algorithm {
	return hs256a128kw
}

var hs384a192kw = &algorithm{
	name: string(jwa.PBES2_HS384_A192KW),
	hash: crypto.SHA384.New,
	size: 24,
}

// NewHS384A192KW returns PBES2 with HMAC SHA-384 and "A192KW" wrapping.
func NewHS384A192KW() keymanage.Algorithm {
	return hs384a192kw
}

var hs512a256kw = &algorithm{
	name: string(jwa.PBES2_HS512_A256KW),
	hash: crypto.SHA512.New,
	size: 32,
}

// NewHS512A256KW returns PBES2 with HMAC SHA-512 and "A256KW" wrapping.
func NewHS512A256KW() keymanage.Algorithm {
	return hs512a256kw
}

func init() {
	jwa.RegisterKeyManagementAlgorithm(jwa.PBES2_HS256_A128KW, NewHS256A128KW)
	jwa.RegisterKeyManagementAlgorithm(jwa.PBES2_HS384_A192KW, NewHS384A192KW)
	jwa.RegisterKeyManagementAlgorithm(jwa.PBES2_HS512_A256KW, NewHS512A256KW)
}

var _ keymanage.Algorithm = (*algorithm)(nil)

type algorithm struct {
	name string
	hash func() hash.Hash
	size int
}

// NewKeyWrapper implements [github.com/alonbl/joserfc/keymanage.Algorithm].
func (alg *algorithm) NewKeyWrapper(key keymanage.Key) keymanage.KeyWrapper {
	privateKey := key.PrivateKey()
	priv, ok := privateKey.([]byte)
	if !ok {
		return keymanage.NewInvalidKeyWrapper(fmt.Errorf("pbes2: %w: invalid key type: %T", joserr.ErrInvalidKey, privateKey))
	}
	return &keyWrapper{
		alg:       alg,
		key:       priv,
		canDerive: jwktypes.CanUseFor(key, jwktypes.KeyOpDeriveKey),
	}
}

var _ keymanage.KeyWrapper = (*keyWrapper)(nil)

type keyWrapper struct {
	alg       *algorithm
	key       []byte
	canDerive bool
}

type pbes2SaltInputGetter interface {
	PBES2SaltInput() []byte
}

type pbes2SaltInputSetter interface {
	SetPBES2SaltInput(p2s []byte)
}

type pbes2CountGetter interface {
	PBES2Count() int
}

type pbes2CountSetter interface {
	SetPBES2Count(p2c int)
}

func (w *keyWrapper) WrapKey(cek []byte, opts any) ([]byte, error) {
	if !w.canDerive {
		return nil, fmt.Errorf("pbes2: %w: key derivation is not allowed", joserr.ErrUnsupportedKeyOperation)
	}

	var p2s []byte
	var p2c int
	if getter, ok := opts.(pbes2SaltInputGetter); ok {
		p2s = getter.PBES2SaltInput()
	}
	if p2s == nil {
		setter, ok := opts.(pbes2SaltInputSetter)
		if !ok {
			return nil, errors.New("pbes2: neither PBES2SaltInput nor SetPBES2SaltInput found")
		}
		p2s = make([]byte, 32)
		if _, err := rand.Read(p2s); err != nil {
			return nil, fmt.Errorf("pbes2: failed to initialize p2s: %w", err)
		}
		setter.SetPBES2SaltInput(p2s)
	}
	if getter, ok := opts.(pbes2CountGetter); ok {
		p2c = getter.PBES2Count()
	}
	if p2c == 0 {
		setter, ok := opts.(pbes2CountSetter)
		if !ok {
			return nil, errors.New("pbes2: neither PBES2Count nor SetPBES2Count found")
		}
		p2c = DefaultIterationCount
		setter.SetPBES2Count(p2c)
	}
	if p2c < MinIterationCount {
		return nil, fmt.Errorf("pbes2: %w: p2c %d is below the minimum %d", joserr.ErrInvalidHeaderValue, p2c, MinIterationCount)
	}
	return w.wrapKey(p2s, p2c, cek, opts)
}

func (w *keyWrapper) wrapKey(p2s []byte, p2c int, cek []byte, opts any) (data []byte, err error) {
	dk := w.deriveKey(p2s, p2c)
	defer memguard.WipeBytes(dk)
	data, err = akw.NewKeyWrapper(dk).WrapKey(cek, opts)
	if err != nil {
		return nil, fmt.Errorf("pbes2: failed to wrap key: %w", err)
	}
	return data, nil
}

func (w *keyWrapper) UnwrapKey(data []byte, opts any) ([]byte, error) {
	if !w.canDerive {
		return nil, fmt.Errorf("pbes2: %w: key derivation is not allowed", joserr.ErrUnsupportedKeyOperation)
	}

	saltGetter, ok := opts.(pbes2SaltInputGetter)
	if !ok {
		return nil, fmt.Errorf("pbes2: %w: p2s", joserr.ErrMissingHeader)
	}
	countGetter, ok := opts.(pbes2CountGetter)
	if !ok {
		return nil, fmt.Errorf("pbes2: %w: p2c", joserr.ErrMissingHeader)
	}
	p2s := saltGetter.PBES2SaltInput()
	p2c := countGetter.PBES2Count()
	if p2s == nil {
		return nil, fmt.Errorf("pbes2: %w: p2s", joserr.ErrMissingHeader)
	}
	if p2c == 0 {
		return nil, fmt.Errorf("pbes2: %w: p2c", joserr.ErrMissingHeader)
	}
	if p2c < MinIterationCount {
		return nil, fmt.Errorf("pbes2: %w: p2c %d is below the minimum %d", joserr.ErrInvalidHeaderValue, p2c, MinIterationCount)
	}
	return w.unwrapKey(p2s, p2c, data, opts)
}

func (w *keyWrapper) unwrapKey(p2s []byte, p2c int, data []byte, opts any) ([]byte, error) {
	dk := w.deriveKey(p2s, p2c)
	defer memguard.WipeBytes(dk)
	cek, err := akw.NewKeyWrapper(dk).UnwrapKey(data, opts)
	if err != nil {
		return nil, fmt.Errorf("pbes2: failed to unwrap key: %w", err)
	}
	return cek, nil
}

// deriveKey derives the KEK with PBKDF2. The salt is the algorithm
// name, a zero octet, and the p2s value, RFC 7518 Section 4.8.1.1.
func (w *keyWrapper) deriveKey(p2s []byte, p2c int) []byte {
	name := w.alg.name
	salt := make([]byte, 0, len(name)+len(p2s)+1)
	salt = append(salt, []byte(name)...)
	salt = append(salt, '\x00')
	salt = append(salt, p2s...)
	return pbkdf2.Key(w.key, salt, p2c, w.alg.size, w.alg.hash)
}
