// Package x448 implements the X448 Elliptic Curve Diffie-Hellman
// function defined in RFC 7748. The curve arithmetic is provided by
// github.com/cloudflare/circl.
package x448

import (
	"bytes"
	"crypto"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"errors"
	"io"

	"github.com/cloudflare/circl/dh/x448"
)

const (
	// PublicKeySize is the size, in bytes, of public keys as used in this package.
	PublicKeySize = 56
	// PrivateKeySize is the size, in bytes, of private keys as used in this package.
	PrivateKeySize = 56
)

// PublicKey is the type of X448 public keys.
type PublicKey []byte

// Equal reports whether pub and x have the same value.
func (pub PublicKey) Equal(x crypto.PublicKey) bool {
	xx, ok := x.(PublicKey)
	if !ok {
		return false
	}
	return bytes.Equal(pub, xx)
}

// PrivateKey is the type of X448 private keys.
type PrivateKey []byte

// Public returns the PublicKey corresponding to priv.
func (priv PrivateKey) Public() crypto.PublicKey {
	var secret, pub x448.Key
	copy(secret[:], priv)
	x448.KeyGen(&pub, &secret)
	return PublicKey(pub[:])
}

// Equal reports whether priv and x have the same value.
func (priv PrivateKey) Equal(x crypto.PrivateKey) bool {
	xx, ok := x.(PrivateKey)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(priv, xx) == 1
}

// GenerateKey generates a public/private key pair using entropy from rand.
// If rand is nil, [crypto/rand.Reader] will be used.
func GenerateKey(rand io.Reader) (PublicKey, PrivateKey, error) {
	if rand == nil {
		rand = cryptorand.Reader
	}
	priv := make(PrivateKey, PrivateKeySize)
	if _, err := io.ReadFull(rand, priv); err != nil {
		return nil, nil, err
	}
	pub := priv.Public().(PublicKey)
	return pub, priv, nil
}

// X448 computes the shared secret between priv and pub.
// It returns an error when the result is the all-zero value.
func X448(priv PrivateKey, pub PublicKey) ([]byte, error) {
	if len(priv) != PrivateKeySize {
		return nil, errors.New("x448: invalid private key size")
	}
	if len(pub) != PublicKeySize {
		return nil, errors.New("x448: invalid public key size")
	}
	var secret, public, shared x448.Key
	copy(secret[:], priv)
	copy(public[:], pub)
	if !x448.Shared(&shared, &secret, &public) {
		return nil, errors.New("x448: low order point")
	}
	return shared[:], nil
}
