package jwe

import (
	"fmt"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/registry"
)

// Registry carries the per-caller policy of the JWE operations: the
// key management algorithm allowlist, the strict header gate, and
// extension header parameters. A Registry is immutable after
// construction; the zero value behaves like [DefaultRegistry].
type Registry struct {
	// Algorithms is the allowlist of key management algorithms.
	// Empty means [RecommendedAlgorithms]: RSA1_5 and the PBES2
	// family are usable only when listed here explicitly.
	Algorithms []jwa.KeyManagementAlgorithm

	// Lax disables the strict header check. By default a header
	// parameter that is neither standard nor registered in
	// HeaderRegistry is rejected.
	Lax bool

	// HeaderRegistry is the extension header parameters understood by
	// the caller. Extension parameters named in "crit" must appear here.
	HeaderRegistry map[string]registry.Parameter
}

// RecommendedAlgorithms is the default allowlist. RSA1_5 is excluded
// because of its padding oracle history, the PBES2 family because
// password wrapping should be an explicit decision.
var RecommendedAlgorithms = []jwa.KeyManagementAlgorithm{
	jwa.RSA_OAEP,
	jwa.RSA_OAEP_256,
	jwa.A128KW,
	jwa.A192KW,
	jwa.A256KW,
	jwa.Direct,
	jwa.ECDH_ES,
	jwa.ECDH_ES_A128KW,
	jwa.ECDH_ES_A192KW,
	jwa.ECDH_ES_A256KW,
	jwa.A128GCMKW,
	jwa.A192GCMKW,
	jwa.A256GCMKW,
}

// DefaultRegistry is the registry used when the caller provides none.
var DefaultRegistry = &Registry{}

func (r *Registry) algorithms() []jwa.KeyManagementAlgorithm {
	if len(r.Algorithms) == 0 {
		return RecommendedAlgorithms
	}
	return r.Algorithms
}

// checkAlgorithm resolves alg against the registry.
func (r *Registry) checkAlgorithm(alg jwa.KeyManagementAlgorithm) error {
	if !alg.Available() {
		return fmt.Errorf("jwe: %w: %q", joserr.ErrUnknownAlgorithm, alg)
	}
	for _, allowed := range r.algorithms() {
		if alg == allowed {
			return nil
		}
	}
	return fmt.Errorf("jwe: %w: %q", joserr.ErrAlgorithmNotAllowed, alg)
}

// checkEncryption resolves enc against the registered content
// encryption algorithms.
func (r *Registry) checkEncryption(enc jwa.EncryptionAlgorithm) error {
	if enc == "" {
		return fmt.Errorf("jwe: %w: enc", joserr.ErrMissingHeader)
	}
	if !enc.Available() {
		return fmt.Errorf("jwe: %w: %q", joserr.ErrUnknownAlgorithm, enc)
	}
	return nil
}

// checkCompression resolves zip against the registered compression
// algorithms. An empty zip means no compression.
func (r *Registry) checkCompression(zip jwa.CompressionAlgorithm) error {
	if zip == "" {
		return nil
	}
	if !zip.Available() {
		return fmt.Errorf("jwe: %w: %q", joserr.ErrUnknownAlgorithm, zip)
	}
	return nil
}

// checkHeader validates a single raw header object.
func (r *Registry) checkHeader(raw map[string]any, crit []string, requireAll bool) error {
	base := registry.JWEHeaderParameters
	if !requireAll {
		// per-recipient and unprotected objects need not carry the
		// required parameters themselves; the merged view does.
		base = jweOptionalParameters
	}
	if err := registry.Check("jwe", raw, base, r.HeaderRegistry, !r.Lax); err != nil {
		return err
	}
	return registry.CheckCritical("jwe", raw, crit, registry.JWEHeaderParameters, r.HeaderRegistry)
}

// jweOptionalParameters is the JWE schema table with no required members.
var jweOptionalParameters = func() map[string]registry.Parameter {
	m := make(map[string]registry.Parameter, len(registry.JWEHeaderParameters))
	for name, p := range registry.JWEHeaderParameters {
		p.Required = false
		m[name] = p
	}
	return m
}()
