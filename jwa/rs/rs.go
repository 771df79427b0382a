// Package rs provides the RSASSA-PKCS1-v1_5 using SHA-2 signature algorithm.
package rs

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

var rs256 = &algorithm{
	alg:  jwa.RS256,
	hash: crypto.SHA256,
}

// New256 returns RS256 (RSASSA-PKCS1-v1_5 using SHA-256) signature algorithm.
//
// New256 doesn't accept weak keys less than 2048 bit.
func New256() sig.Algorithm {
	return rs256
}

var rs384 = &algorithm{
	alg:  jwa.RS384,
	hash: crypto.SHA384,
}

// New384 returns RS384 (RSASSA-PKCS1-v1_5 using SHA-384) signature algorithm.
//
// New384 doesn't accept weak keys less than 2048 bit.
func New384() sig.Algorithm {
	return rs384
}

var rs512 = &algorithm{
	alg:  jwa.RS512,
	hash: crypto.SHA512,
}

// New512 returns RS512 (RSASSA-PKCS1-v1_5 using SHA-512) signature algorithm.
//
// New512 doesn't accept weak keys less than 2048 bit.
func New512() sig.Algorithm {
	return rs512
}

func init() {
	jwa.RegisterSignatureAlgorithm(jwa.RS256, New256)
	jwa.RegisterSignatureAlgorithm(jwa.RS384, New384)
	jwa.RegisterSignatureAlgorithm(jwa.RS512, New512)
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
		return sig.NewErrorKey(fmt.Errorf("rs: weak key size: %d", k.pub.N.BitLen()))
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
	return rsa.SignPKCS1v15(rand.Reader, key.priv, key.hash, hash.Sum(nil))
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
	if err := rsa.VerifyPKCS1v15(key.pub, key.hash, hash.Sum(nil), signature); err != nil {
		return sig.ErrSignatureMismatch
	}
	return nil
}
