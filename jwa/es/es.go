// Package es implements the ECDSA signature algorithm,
// including the RFC 8812 secp256k1 variant.
package es

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	_ "crypto/sha256" // for crypto.SHA256
	_ "crypto/sha512" // for crypto.SHA384 and crypto.SHA512
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/sig"
)

var es256 = &algorithm{
	alg:  jwa.ES256,
	hash: crypto.SHA256,
	crv:  elliptic.P256(),
}

func New256() sig.Algorithm {
	return es256
}

var es384 = &algorithm{
	alg:  jwa.ES384,
	hash: crypto.SHA384,
	crv:  elliptic.P384(),
}

func New384() sig.Algorithm {
	return es384
}

var es512 = &algorithm{
	alg:  jwa.ES512,
	hash: crypto.SHA512,
	crv:  elliptic.P521(),
}

func New512() sig.Algorithm {
	return es512
}

var es256k = &algorithm{
	alg:  jwa.ES256K,
	hash: crypto.SHA256,
	crv:  secp256k1.S256(),
}

// New256K returns ES256K (ECDSA using secp256k1 and SHA-256)
// signature algorithm defined in RFC 8812.
func New256K() sig.Algorithm {
	return es256k
}

func init() {
	jwa.RegisterSignatureAlgorithm(jwa.ES256, New256)
	jwa.RegisterSignatureAlgorithm(jwa.ES384, New384)
	jwa.RegisterSignatureAlgorithm(jwa.ES512, New512)
	jwa.RegisterSignatureAlgorithm(jwa.ES256K, New256K)
}

var _ sig.Algorithm = (*algorithm)(nil)

type algorithm struct {
	alg  jwa.SignatureAlgorithm
	hash crypto.Hash
	crv  elliptic.Curve
}

var _ sig.SigningKey = (*signingKey)(nil)

type signingKey struct {
	hash      crypto.Hash
	priv      *ecdsa.PrivateKey
	pub       *ecdsa.PublicKey
	canSign   bool
	canVerify bool
}

// NewSigningKey implements [github.com/alonbl/joserfc/sig.Algorithm].
// The curve of the key must match the curve of the algorithm.
func (alg *algorithm) NewSigningKey(key sig.Key) sig.SigningKey {
	privateKey := key.PrivateKey()
	publicKey := key.PublicKey()

	k := &signingKey{
		hash:      alg.hash,
		canSign:   jwktypes.CanUseFor(key, jwktypes.KeyOpSign),
		canVerify: jwktypes.CanUseFor(key, jwktypes.KeyOpVerify),
	}
	if priv, ok := privateKey.(*ecdsa.PrivateKey); ok {
		if priv == nil || priv.Curve != alg.crv {
			return sig.NewInvalidKey(alg.alg.String(), privateKey, publicKey)
		}
		k.priv = priv
		k.pub = &priv.PublicKey
	} else if privateKey != nil {
		return sig.NewInvalidKey(alg.alg.String(), privateKey, publicKey)
	}
	if pub, ok := publicKey.(*ecdsa.PublicKey); ok {
		if pub == nil || pub.Curve != alg.crv {
			return sig.NewInvalidKey(alg.alg.String(), privateKey, publicKey)
		}
		k.pub = pub
	} else if publicKey != nil && k.pub == nil {
		return sig.NewInvalidKey(alg.alg.String(), privateKey, publicKey)
	}
	if k.pub == nil {
		return sig.NewInvalidKey(alg.alg.String(), privateKey, publicKey)
	}
	return k
}

// Sign implements [github.com/alonbl/joserfc/sig.SigningKey].
// The signature is the fixed-width big-endian concatenation r || s,
// not an ASN.1 structure.
func (key *signingKey) Sign(payload []byte) (signature []byte, err error) {
	if !key.hash.Available() {
		return nil, sig.ErrHashUnavailable
	}
	if key.priv == nil || !key.canSign {
		return nil, sig.ErrSignUnavailable
	}

	hash := key.hash.New()
	if _, err := hash.Write(payload); err != nil {
		return nil, err
	}
	sum := hash.Sum(nil)

	r, s, err := ecdsa.Sign(rand.Reader, key.priv, sum)
	if err != nil {
		return nil, err
	}
	bits := key.priv.Curve.Params().BitSize
	size := (bits + 7) / 8

	ret := make([]byte, 2*size)
	r.FillBytes(ret[:size])
	s.FillBytes(ret[size:])
	return ret, nil
}

// Verify implements [github.com/alonbl/joserfc/sig.SigningKey].
func (key *signingKey) Verify(payload, signature []byte) error {
	if !key.hash.Available() {
		return sig.ErrHashUnavailable
	}
	if !key.canVerify {
		return sig.ErrVerifyUnavailable
	}

	bits := key.pub.Curve.Params().BitSize
	size := (bits + 7) / 8
	if len(signature) != 2*size {
		return sig.ErrSignatureMismatch
	}

	hash := key.hash.New()
	if _, err := hash.Write(payload); err != nil {
		return err
	}
	sum := hash.Sum(nil)

	r := new(big.Int).SetBytes(signature[:size])
	s := new(big.Int).SetBytes(signature[size:])
	if !ecdsa.Verify(key.pub, sum, r, s) {
		return sig.ErrSignatureMismatch
	}
	return nil
}
