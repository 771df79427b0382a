package jwk

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/cloudflare/circl/sign/ed448"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/x448"
)

// GenerateOctKey generates a new symmetric key of size bytes.
func GenerateOctKey(size int) (*Key, error) {
	if size <= 0 {
		return nil, fmt.Errorf("jwk: %w: invalid key size: %d", joserr.ErrInvalidKey, size)
	}
	k := make([]byte, size)
	if _, err := rand.Read(k); err != nil {
		return nil, fmt.Errorf("jwk: failed to generate key: %w", err)
	}
	return NewPrivateKey(k)
}

// GenerateRSAKey generates a new RSA key of bits modulus size.
func GenerateRSAKey(bits int) (*Key, error) {
	if bits < minRSAModulusBits {
		return nil, fmt.Errorf("jwk: %w: rsa modulus is smaller than %d bits", joserr.ErrInvalidKey, minRSAModulusBits)
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("jwk: failed to generate key: %w", err)
	}
	return NewPrivateKey(priv)
}

// GenerateECKey generates a new EC key on the named curve.
func GenerateECKey(crv jwa.EllipticCurve) (*Key, error) {
	curve := CurveOf(crv)
	if curve == nil {
		return nil, fmt.Errorf("jwk: %w: unknown crv: %q", joserr.ErrInvalidKey, crv)
	}
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwk: failed to generate key: %w", err)
	}
	return NewPrivateKey(priv)
}

// GenerateOKPKey generates a new OKP key on the named curve.
func GenerateOKPKey(crv jwa.EllipticCurve) (*Key, error) {
	switch crv {
	case jwa.Ed25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("jwk: failed to generate key: %w", err)
		}
		return NewPrivateKey(priv)
	case jwa.Ed448:
		_, priv, err := ed448.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("jwk: failed to generate key: %w", err)
		}
		return NewPrivateKey(priv)
	case jwa.X25519:
		priv, err := ecdh.X25519().GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("jwk: failed to generate key: %w", err)
		}
		return NewPrivateKey(priv)
	case jwa.X448:
		_, priv, err := x448.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("jwk: failed to generate key: %w", err)
		}
		return NewPrivateKey(priv)
	default:
		return nil, fmt.Errorf("jwk: %w: unknown crv: %q", joserr.ErrInvalidKey, crv)
	}
}
