// Package ps implements the RSASSA-PSS signature algorithm.
package ps

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256" // for crypto.SHA256
	_ "crypto/sha512" // for crypto.SHA384 and crypto.SHA512
	"fmt"

	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/sig"
)

var ps256 = &algorithm{
	alg:  jwa.PS256,
	hash: crypto.SHA256,
}

func New256() sig.Algorithm {
	return ps256
}

var ps384 = &algorithm{
	alg:  jwa.PS384,
	hash: crypto.SHA384,
}

func New384() sig.Algorithm {
	return ps384
}

var ps512 = &algorithm{
	alg:  jwa.PS512,
	hash: crypto.SHA512,
}

func New512() sig.Algorithm {
	return ps512
}

func init() {
	jwa.RegisterSignatureAlgorithm(jwa.PS256, New256)
	jwa.RegisterSignatureAlgorithm(jwa.PS384, New384)
	jwa.RegisterSignatureAlgorithm(jwa.PS512, New512)
}

var _ sig.Algorithm = (*algorithm)(nil)

type algorithm struct {
	alg  jwa.SignatureAlgorithm
	hash crypto.Hash
}

var _ sig.SigningKey = (*signingKey)(nil)

type signingKey struct {
	hash      crypto.Hash
	priv      *rsa.PrivateKey
	pub       *rsa.PublicKey
	canSign   bool
	canVerify bool
}

// the salt length equals the hash size, RFC 7518 Section 3.5.
var pssOptions = map[crypto.Hash]*rsa.PSSOptions{
	crypto.SHA256: {SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256},
	crypto.SHA384: {SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA384},
	crypto.SHA512: {SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA512},
}

// NewSigningKey implements [github.com/alonbl/joserfc/sig.Algorithm].
func (alg *algorithm) NewSigningKey(key sig.Key) sig.SigningKey {
	privateKey := key.PrivateKey()
	publicKey := key.PublicKey()

	k := &signingKey{
		hash:      alg.hash,
		canSign:   jwktypes.CanUseFor(key, jwktypes.KeyOpSign),
		canVerify: jwktypes.CanUseFor(key, jwktypes.KeyOpVerify),
	}
	if priv, ok := privateKey.(*rsa.PrivateKey); ok {
		k.priv = priv
		k.pub = &priv.PublicKey
	} else if privateKey != nil {
		return sig.NewInvalidKey(alg.alg.String(), privateKey, publicKey)
	}
	if pub, ok := publicKey.(*rsa.PublicKey); ok {
		k.pub = pub
	} else if publicKey != nil && k.pub == nil {
		return sig.NewInvalidKey(alg.alg.String(), privateKey, publicKey)
	}
	if k.pub == nil {
		return sig.NewInvalidKey(alg.alg.String(), privateKey, publicKey)
	}
	if k.pub.N.BitLen() < 2048 {
		return sig.NewErrorKey(fmt.Errorf("ps: weak key size: %d", k.pub.N.BitLen()))
	}
	return k
}

// Sign implements [github.com/alonbl/joserfc/sig.SigningKey].
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
	return rsa.SignPSS(rand.Reader, key.priv, key.hash, hash.Sum(nil), pssOptions[key.hash])
}

// Verify implements [github.com/alonbl/joserfc/sig.SigningKey].
func (key *signingKey) Verify(payload, signature []byte) error {
	if !key.hash.Available() {
		return sig.ErrHashUnavailable
	}
	if !key.canVerify {
		return sig.ErrVerifyUnavailable
	}
	hash := key.hash.New()
	if _, err := hash.Write(payload); err != nil {
		return err
	}
	if err := rsa.VerifyPSS(key.pub, key.hash, hash.Sum(nil), signature, pssOptions[key.hash]); err != nil {
		return sig.ErrSignatureMismatch
	}
	return nil
}
