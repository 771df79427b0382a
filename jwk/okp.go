package jwk

import (
	"bytes"
	"crypto"
	"crypto/ecdh"
	"crypto/ed25519"
	"fmt"

	"github.com/cloudflare/circl/sign/ed448"

	"github.com/alonbl/joserfc/internal/jsonutils"
	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/x448"
)

// RFC 8037 2. Key Type "OKP"
func parseOKPKey(d *jsonutils.Decoder, key *Key) {
	crv := jwa.EllipticCurve(d.MustString("crv"))
	if d.Err() != nil {
		return
	}
	switch crv {
	case jwa.Ed25519:
		parseEd25519Key(d, key)
	case jwa.Ed448:
		parseEd448Key(d, key)
	case jwa.X25519:
		parseX25519Key(d, key)
	case jwa.X448:
		parseX448Key(d, key)
	default:
		d.SaveError(fmt.Errorf("jwk: %w: unknown crv: %q", joserr.ErrInvalidKey, crv))
	}

	// sanity check of the certificate
	if d.Err() == nil && len(key.x5c) > 0 {
		type equaler interface {
			Equal(x crypto.PublicKey) bool
		}
		pub, ok := key.pub.(equaler)
		if !ok || !pub.Equal(key.x5c[0].PublicKey) {
			d.SaveError(fmt.Errorf("jwk: public keys are mismatch"))
		}
	}
}

func parseEd25519Key(d *jsonutils.Decoder, key *Key) {
	x := d.MustBytes("x")
	if d.Err() != nil {
		return
	}
	if len(x) != ed25519.PublicKeySize {
		d.SaveError(fmt.Errorf("jwk: %w: the parameter x has invalid size", joserr.ErrInvalidKey))
		return
	}
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pub, x)
	key.pub = pub

	if param, ok := d.GetBytes("d"); ok {
		if len(param) != ed25519.SeedSize {
			d.SaveError(fmt.Errorf("jwk: %w: the parameter d has invalid size", joserr.ErrInvalidKey))
			return
		}
		priv := ed25519.NewKeyFromSeed(param)
		if !bytes.Equal(priv[ed25519.SeedSize:], pub) {
			d.SaveError(fmt.Errorf("jwk: %w: invalid key pair", joserr.ErrInvalidKey))
			return
		}
		key.priv = priv
	}
}

func encodeEd25519Key(e *jsonutils.Encoder, priv ed25519.PrivateKey, pub ed25519.PublicKey) {
	e.Set("kty", jwa.OKP.String())
	e.Set("crv", jwa.Ed25519.String())
	e.SetBytes("x", []byte(pub))
	if priv != nil {
		e.SetBytes("d", priv[:ed25519.SeedSize])
	}
}

func parseEd448Key(d *jsonutils.Decoder, key *Key) {
	x := d.MustBytes("x")
	if d.Err() != nil {
		return
	}
	if len(x) != ed448.PublicKeySize {
		d.SaveError(fmt.Errorf("jwk: %w: the parameter x has invalid size", joserr.ErrInvalidKey))
		return
	}
	pub := make(ed448.PublicKey, ed448.PublicKeySize)
	copy(pub, x)
	key.pub = pub

	if param, ok := d.GetBytes("d"); ok {
		if len(param) != ed448.SeedSize {
			d.SaveError(fmt.Errorf("jwk: %w: the parameter d has invalid size", joserr.ErrInvalidKey))
			return
		}
		priv := ed448.NewKeyFromSeed(param)
		if !bytes.Equal(pub, priv.Public().(ed448.PublicKey)) {
			d.SaveError(fmt.Errorf("jwk: %w: invalid key pair", joserr.ErrInvalidKey))
			return
		}
		key.priv = priv
	}
}

func encodeEd448Key(e *jsonutils.Encoder, priv ed448.PrivateKey, pub ed448.PublicKey) {
	e.Set("kty", jwa.OKP.String())
	e.Set("crv", jwa.Ed448.String())
	e.SetBytes("x", []byte(pub))
	if priv != nil {
		e.SetBytes("d", priv.Seed())
	}
}

func parseX25519Key(d *jsonutils.Decoder, key *Key) {
	x := d.MustBytes("x")
	if d.Err() != nil {
		return
	}
	pub, err := ecdh.X25519().NewPublicKey(x)
	if err != nil {
		d.SaveError(fmt.Errorf("jwk: %w: %v", joserr.ErrInvalidKey, err))
		return
	}
	key.pub = pub

	if param, ok := d.GetBytes("d"); ok {
		priv, err := ecdh.X25519().NewPrivateKey(param)
		if err != nil {
			d.SaveError(fmt.Errorf("jwk: %w: %v", joserr.ErrInvalidKey, err))
			return
		}
		if !priv.PublicKey().Equal(pub) {
			d.SaveError(fmt.Errorf("jwk: %w: invalid key pair", joserr.ErrInvalidKey))
			return
		}
		key.priv = priv
	}
}

func encodeX25519Key(e *jsonutils.Encoder, priv *ecdh.PrivateKey, pub *ecdh.PublicKey) {
	e.Set("kty", jwa.OKP.String())
	e.Set("crv", jwa.X25519.String())
	e.SetBytes("x", pub.Bytes())
	if priv != nil {
		e.SetBytes("d", priv.Bytes())
	}
}

func parseX448Key(d *jsonutils.Decoder, key *Key) {
	x := d.MustBytes("x")
	if d.Err() != nil {
		return
	}
	if len(x) != x448.PublicKeySize {
		d.SaveError(fmt.Errorf("jwk: %w: the parameter x has invalid size", joserr.ErrInvalidKey))
		return
	}
	pub := make(x448.PublicKey, x448.PublicKeySize)
	copy(pub, x)
	key.pub = pub

	if param, ok := d.GetBytes("d"); ok {
		if len(param) != x448.PrivateKeySize {
			d.SaveError(fmt.Errorf("jwk: %w: the parameter d has invalid size", joserr.ErrInvalidKey))
			return
		}
		priv := make(x448.PrivateKey, x448.PrivateKeySize)
		copy(priv, param)
		if !pub.Equal(priv.Public()) {
			d.SaveError(fmt.Errorf("jwk: %w: invalid key pair", joserr.ErrInvalidKey))
			return
		}
		key.priv = priv
	}
}

func encodeX448Key(e *jsonutils.Encoder, priv x448.PrivateKey, pub x448.PublicKey) {
	e.Set("kty", jwa.OKP.String())
	e.Set("crv", jwa.X448.String())
	e.SetBytes("x", []byte(pub))
	if priv != nil {
		e.SetBytes("d", []byte(priv))
	}
}
