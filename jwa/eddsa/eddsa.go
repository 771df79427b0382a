// Package eddsa is the Edwards-Curve Digital Signature Algorithm.
// Ed25519 and Ed448 keys are accepted under the single "EdDSA" name,
// as RFC 8037 defines.
package eddsa

import (
	"crypto/ed25519"

	"github.com/cloudflare/circl/sign/ed448"

	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/sig"
)

func New() sig.Algorithm {
	return &algorithm{}
}

func init() {
	jwa.RegisterSignatureAlgorithm(jwa.EdDSA, New)
}

var _ sig.Algorithm = (*algorithm)(nil)

type algorithm struct{}

// NewSigningKey implements [github.com/alonbl/joserfc/sig.Algorithm].
func (alg *algorithm) NewSigningKey(key sig.Key) sig.SigningKey {
	priv := key.PrivateKey()
	pub := key.PublicKey()
	canSign := jwktypes.CanUseFor(key, jwktypes.KeyOpSign)
	canVerify := jwktypes.CanUseFor(key, jwktypes.KeyOpVerify)

	switch priv := priv.(type) {
	case ed25519.PrivateKey:
		k := &ed25519Key{
			priv:      priv,
			canSign:   canSign,
			canVerify: canVerify,
		}
		if pub, ok := pub.(ed25519.PublicKey); ok {
			k.pub = pub
		} else {
			k.pub = priv.Public().(ed25519.PublicKey)
		}
		return k
	case ed448.PrivateKey:
		k := &ed448Key{
			priv:      priv,
			canSign:   canSign,
			canVerify: canVerify,
		}
		if pub, ok := pub.(ed448.PublicKey); ok {
			k.pub = pub
		} else {
			k.pub = priv.Public().(ed448.PublicKey)
		}
		return k
	case nil:
		switch pub := pub.(type) {
		case ed25519.PublicKey:
			return &ed25519Key{
				pub:       pub,
				canVerify: canVerify,
			}
		case ed448.PublicKey:
			return &ed448Key{
				pub:       pub,
				canVerify: canVerify,
			}
		}
	}
	return sig.NewInvalidKey(jwa.EdDSA.String(), priv, pub)
}

var _ sig.SigningKey = (*ed25519Key)(nil)

type ed25519Key struct {
	priv      ed25519.PrivateKey
	pub       ed25519.PublicKey
	canSign   bool
	canVerify bool
}

func (key *ed25519Key) Sign(payload []byte) (signature []byte, err error) {
	if key.priv == nil || !key.canSign {
		return nil, sig.ErrSignUnavailable
	}
	return ed25519.Sign(key.priv, payload), nil
}

func (key *ed25519Key) Verify(payload, signature []byte) error {
	if !key.canVerify {
		return sig.ErrVerifyUnavailable
	}
	if !ed25519.Verify(key.pub, payload, signature) {
		return sig.ErrSignatureMismatch
	}
	return nil
}

var _ sig.SigningKey = (*ed448Key)(nil)

type ed448Key struct {
	priv      ed448.PrivateKey
	pub       ed448.PublicKey
	canSign   bool
	canVerify bool
}

func (key *ed448Key) Sign(payload []byte) (signature []byte, err error) {
	if key.priv == nil || !key.canSign {
		return nil, sig.ErrSignUnavailable
	}
	return ed448.Sign(key.priv, payload, ""), nil
}

func (key *ed448Key) Verify(payload, signature []byte) error {
	if !key.canVerify {
		return sig.ErrVerifyUnavailable
	}
	if !ed448.Verify(key.pub, payload, signature, "") {
		return sig.ErrSignatureMismatch
	}
	return nil
}
