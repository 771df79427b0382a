package jwk

import (
	"fmt"
	"strings"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk/jwktypes"
)

// Hint is what a pipeline knows about the key it needs: the kid of
// the message header, the algorithm in use, and the operation about
// to be performed.
type Hint struct {
	KeyID     string
	Algorithm jwa.KeyAlgorithm
	Operation jwktypes.KeyOp
}

// Resolver resolves flexible key material into a single Key.
// *Key, *Set, and ResolverFunc implement it.
type Resolver interface {
	ResolveKey(hint Hint) (*Key, error)
}

var _ Resolver = (*Key)(nil)

// ResolveKey implements Resolver: a single key resolves to itself.
func (key *Key) ResolveKey(hint Hint) (*Key, error) {
	return key, nil
}

var _ Resolver = (*Set)(nil)

// ResolveKey implements Resolver.
//
// When the hint carries a kid, the key with that kid is returned.
// Otherwise candidates are matched on algorithm compatibility: the
// declared "alg" of the key when present, the key type expected by
// the algorithm when not. More than one candidate is an error.
func (set *Set) ResolveKey(hint Hint) (*Key, error) {
	if hint.KeyID != "" {
		key, ok := set.Find(hint.KeyID)
		if !ok {
			return nil, fmt.Errorf("jwk: %w: no key with kid %q", joserr.ErrInvalidKey, hint.KeyID)
		}
		return key, nil
	}

	var found *Key
	for _, key := range set.Keys {
		if key.alg != "" {
			if key.alg != hint.Algorithm {
				continue
			}
		} else if !keyTypeMatches(key.kty, hint.Algorithm) {
			continue
		}
		if !jwktypes.CanUseFor(key, hint.Operation) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("jwk: %w: multiple keys match algorithm %q", joserr.ErrInvalidKey, hint.Algorithm)
		}
		found = key
	}
	if found == nil {
		return nil, fmt.Errorf("jwk: %w: no key matches algorithm %q", joserr.ErrInvalidKey, hint.Algorithm)
	}
	return found, nil
}

// ResolverFunc is an adapter to allow the use of ordinary functions as Resolver.
type ResolverFunc func(hint Hint) (*Key, error)

func (f ResolverFunc) ResolveKey(hint Hint) (*Key, error) {
	return f(hint)
}

// keyTypeMatches reports whether a key of kty can serve alg.
func keyTypeMatches(kty jwa.KeyType, alg jwa.KeyAlgorithm) bool {
	name := alg.String()
	switch {
	case strings.HasPrefix(name, "HS"),
		name == string(jwa.Direct),
		strings.HasPrefix(name, "A") && (strings.HasSuffix(name, "KW") || strings.HasSuffix(name, "GCMKW")),
		strings.HasPrefix(name, "PBES2"):
		return kty == jwa.Oct
	case strings.HasPrefix(name, "RS"), strings.HasPrefix(name, "PS"), strings.HasPrefix(name, "RSA"):
		return kty == jwa.RSA
	case strings.HasPrefix(name, "ES"):
		return kty == jwa.EC
	case name == string(jwa.EdDSA):
		return kty == jwa.OKP
	case strings.HasPrefix(name, "ECDH-ES"):
		return kty == jwa.EC || kty == jwa.OKP
	default:
		return false
	}
}
