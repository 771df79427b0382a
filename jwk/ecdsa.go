package jwk

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/alonbl/joserfc/internal/jsonutils"
	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
)

// CurveOf returns the elliptic curve named by crv,
// or nil when crv is not an EC curve of RFC 7518 or RFC 8812.
func CurveOf(crv jwa.EllipticCurve) elliptic.Curve {
	switch crv {
	case jwa.P256:
		return elliptic.P256()
	case jwa.P384:
		return elliptic.P384()
	case jwa.P521:
		return elliptic.P521()
	case jwa.Secp256k1:
		return secp256k1.S256()
	default:
		return nil
	}
}

// CurveName returns the JOSE name of crv,
// or the empty string when the curve is not supported.
func CurveName(crv elliptic.Curve) jwa.EllipticCurve {
	switch crv {
	case elliptic.P256():
		return jwa.P256
	case elliptic.P384():
		return jwa.P384
	case elliptic.P521():
		return jwa.P521
	case secp256k1.S256():
		return jwa.Secp256k1
	default:
		return ""
	}
}

// RFC 7518 6.2. Parameters for Elliptic Curve Keys
func parseEcdsaKey(d *jsonutils.Decoder, key *Key) {
	var privateKey ecdsa.PrivateKey
	crv := jwa.EllipticCurve(d.MustString("crv"))
	curve := CurveOf(crv)
	if curve == nil {
		d.SaveError(fmt.Errorf("jwk: %w: unknown crv: %q", joserr.ErrInvalidKey, crv))
		return
	}
	privateKey.Curve = curve

	// parameters for public key
	privateKey.X = new(big.Int).SetBytes(d.MustBytes("x"))
	privateKey.Y = new(big.Int).SetBytes(d.MustBytes("y"))
	if d.Err() != nil {
		return
	}
	if !curve.IsOnCurve(privateKey.X, privateKey.Y) {
		d.SaveError(fmt.Errorf("jwk: %w: point is not on the curve %s", joserr.ErrInvalidKey, crv))
		return
	}
	key.pub = &privateKey.PublicKey

	// parameters for private key
	if param, ok := d.GetBytes("d"); ok {
		privateKey.D = new(big.Int).SetBytes(param)
		key.priv = &privateKey
	}

	// sanity check of the certificate
	if certs := key.x5c; len(certs) > 0 {
		cert := certs[0]
		publicKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			d.SaveError(errors.New("jwk: public key types are mismatch"))
			return
		}
		if !privateKey.PublicKey.Equal(publicKey) {
			d.SaveError(errors.New("jwk: public keys are mismatch"))
		}
	}
}

func encodeEcdsaKey(e *jsonutils.Encoder, priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) {
	name := CurveName(pub.Curve)
	if name == "" {
		e.SaveError(fmt.Errorf("jwk: %w: unsupported curve", joserr.ErrInvalidKey))
		return
	}
	size := (pub.Curve.Params().BitSize + 7) / 8
	e.Set("kty", jwa.EC.String())
	e.Set("crv", name.String())
	e.SetFixedBigInt("x", pub.X, size)
	e.SetFixedBigInt("y", pub.Y, size)
	if priv != nil {
		e.SetFixedBigInt("d", priv.D, size)
	}
}

func validateEcdsaPrivateKey(key *ecdsa.PrivateKey) error {
	if key == nil || key.D == nil {
		return fmt.Errorf("jwk: %w: ecdsa private key is missing", joserr.ErrInvalidKey)
	}
	return validateEcdsaPublicKey(&key.PublicKey)
}

func validateEcdsaPublicKey(key *ecdsa.PublicKey) error {
	if key == nil || key.X == nil || key.Y == nil {
		return fmt.Errorf("jwk: %w: ecdsa public key is missing", joserr.ErrInvalidKey)
	}
	if CurveName(key.Curve) == "" {
		return fmt.Errorf("jwk: %w: unsupported curve", joserr.ErrInvalidKey)
	}
	if !key.Curve.IsOnCurve(key.X, key.Y) {
		return fmt.Errorf("jwk: %w: point is not on the curve", joserr.ErrInvalidKey)
	}
	return nil
}
