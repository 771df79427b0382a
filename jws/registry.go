package jws

import (
	"fmt"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/registry"
)

// Registry carries the per-caller policy of the JWS operations: the
// algorithm allowlist, the strict header gate, and extension header
// parameters. A Registry is immutable after construction; the zero
// value behaves like [DefaultRegistry].
type Registry struct {
	// Algorithms is the allowlist of signing algorithms. Empty means
	// the recommended default of RFC 7518 Section 3.1: HS256, RS256
	// and ES256. "none" is usable only when listed here explicitly.
	Algorithms []jwa.SignatureAlgorithm

	// Lax disables the strict header check. By default a header
	// parameter that is neither standard nor registered in
	// HeaderRegistry is rejected.
	Lax bool

	// HeaderRegistry is the extension header parameters understood by
	// the caller. Extension parameters named in "crit" must appear here.
	HeaderRegistry map[string]registry.Parameter
}

// RecommendedAlgorithms is the default allowlist,
// the recommended algorithms of RFC 7518 Section 3.1.
var RecommendedAlgorithms = []jwa.SignatureAlgorithm{
	jwa.HS256,
	jwa.RS256,
	jwa.ES256,
}

// DefaultRegistry is the registry used when the caller provides none.
var DefaultRegistry = &Registry{}

func (r *Registry) algorithms() []jwa.SignatureAlgorithm {
	if len(r.Algorithms) == 0 {
		return RecommendedAlgorithms
	}
	return r.Algorithms
}

// checkAlgorithm resolves alg against the registry.
func (r *Registry) checkAlgorithm(alg jwa.SignatureAlgorithm) error {
	if !alg.Available() {
		return fmt.Errorf("jws: %w: %q", joserr.ErrUnknownAlgorithm, alg)
	}
	for _, allowed := range r.algorithms() {
		if alg == allowed {
			return nil
		}
	}
	return fmt.Errorf("jws: %w: %q", joserr.ErrAlgorithmNotAllowed, alg)
}

// checkHeader validates the encoded protected header.
func (r *Registry) checkHeader(raw map[string]any, h *Header) error {
	if err := registry.Check("jws", raw, registry.JWSHeaderParameters, r.HeaderRegistry, !r.Lax); err != nil {
		return err
	}
	return registry.CheckCritical("jws", raw, h.Critical(), registry.JWSHeaderParameters, r.HeaderRegistry)
}
