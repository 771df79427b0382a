// Package none provides the none signature algorithm.
//
// The algorithm performs no integrity protection at all. It is never
// part of any default allowlist; callers must enable it explicitly.
package none

import (
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/sig"
)

var none = &algorithm{}

// New returns a new signature algorithm that does nothing.
//
// Deprecated: Never use none algorithm.
func New() sig.Algorithm {
	return none
}

func init() {
	jwa.RegisterSignatureAlgorithm(jwa.None, New)
}

var _ sig.Algorithm = (*algorithm)(nil)

type algorithm struct{}

var _ sig.SigningKey = (*signingKey)(nil)

type signingKey struct{}

// NewSigningKey implements [github.com/alonbl/joserfc/sig.Algorithm].
func (alg *algorithm) NewSigningKey(key sig.Key) sig.SigningKey {
	return &signingKey{}
}

// Sign implements [github.com/alonbl/joserfc/sig.SigningKey].
func (key *signingKey) Sign(payload []byte) (signature []byte, err error) {
	return []byte{}, nil
}

// Verify implements [github.com/alonbl/joserfc/sig.SigningKey].
// Any non-empty signature is a mismatch.
func (key *signingKey) Verify(payload, signature []byte) error {
	if len(signature) != 0 {
		return sig.ErrSignatureMismatch
	}
	return nil
}
