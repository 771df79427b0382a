// Package sig provides the interface of signature algorithms.
package sig

import (
	"crypto"
	"errors"
	"fmt"
	"reflect"

	"github.com/alonbl/joserfc/joserr"
)

// Key is a key for signing or verifying.
type Key interface {
	PrivateKey() crypto.PrivateKey
	PublicKey() crypto.PublicKey
}

// Algorithm is an algorithm for signing.
type Algorithm interface {
	// NewSigningKey returns a new key for signing.
	NewSigningKey(key Key) SigningKey
}

// SigningKey is a key for signing.
type SigningKey interface {
	Sign(payload []byte) (signature []byte, err error)
	Verify(payload, signature []byte) error
}

// ErrHashUnavailable is an error for unavailable hash.
var ErrHashUnavailable = errors.New("sig: hash is unavailable")

// ErrSignUnavailable means the sign operation is not available for the key.
var ErrSignUnavailable = fmt.Errorf("sig: sign operation is unavailable: %w", joserr.ErrUnsupportedKeyOperation)

// ErrVerifyUnavailable means the verify operation is not available for the key.
var ErrVerifyUnavailable = fmt.Errorf("sig: verify operation is unavailable: %w", joserr.ErrUnsupportedKeyOperation)

// ErrSignatureMismatch is a signature mismatch error.
var ErrSignatureMismatch = fmt.Errorf("sig: signature mismatch: %w", joserr.ErrBadSignature)

type invalidKey struct {
	alg            string
	privateKeyType reflect.Type
	publicKeyType  reflect.Type
}

// NewInvalidKey returns a new key that returns an error for all
// Sign and Verify operations.
func NewInvalidKey(alg string, privateKey, publicKey any) SigningKey {
	return &invalidKey{
		alg:            alg,
		privateKeyType: reflect.TypeOf(privateKey),
		publicKeyType:  reflect.TypeOf(publicKey),
	}
}

// Sign implements SigningKey.
func (key *invalidKey) Sign(payload []byte) (signature []byte, err error) {
	return nil, key
}

// Verify implements SigningKey.
func (key *invalidKey) Verify(payload, signature []byte) error {
	return key
}

// Error implements error.
func (key *invalidKey) Error() string {
	priv := "nil"
	if key.privateKeyType != nil {
		priv = key.privateKeyType.String()
	}
	pub := "nil"
	if key.publicKeyType != nil {
		pub = key.publicKeyType.String()
	}
	return "sig: invalid key type for algorithm " + key.alg + ": " + priv + ", " + pub
}

func (key *invalidKey) Unwrap() error {
	return joserr.ErrInvalidKey
}

type errKey struct {
	err error
}

// NewErrorKey returns a new key that returns err for all
// Sign and Verify operations.
func NewErrorKey(err error) SigningKey {
	return &errKey{
		err: err,
	}
}

// Sign implements SigningKey.
func (key *errKey) Sign(payload []byte) (signature []byte, err error) {
	return nil, key.err
}

// Verify implements SigningKey.
func (key *errKey) Verify(payload, signature []byte) error {
	return key.err
}
