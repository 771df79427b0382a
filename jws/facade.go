package jws

import (
	"fmt"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/registry"
)

// Option configures a JWS operation.
type Option func(*config)

type config struct {
	registry   *Registry
	algorithms []jwa.SignatureAlgorithm
	verifyAll  bool
}

// WithRegistry overrides the default registry of the operation.
func WithRegistry(r *Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithAlgorithms overrides the algorithm allowlist of the operation.
func WithAlgorithms(algs ...jwa.SignatureAlgorithm) Option {
	return func(c *config) {
		c.algorithms = algs
	}
}

// WithVerifyAll requires every signature of a JSON serialization to
// verify. The default accepts a message when any signature verifies.
func WithVerifyAll() Option {
	return func(c *config) {
		c.verifyAll = true
	}
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *config) effectiveRegistry() *Registry {
	r := c.registry
	if r == nil {
		r = DefaultRegistry
	}
	if c.algorithms != nil {
		clone := *r
		clone.Algorithms = c.algorithms
		r = &clone
	}
	return r
}

// Member is one signer of a JSON serialization.
type Member struct {
	Protected *Header
	Header    *Header // unprotected, optional
	Key       jwk.Resolver
}

// SerializeCompact generates a JWS Compact Serialization, per RFC
// 7515 Section 7.1:
//
//	BASE64URL(UTF8(JWS Protected Header)) || '.' ||
//	BASE64URL(JWS Payload) || '.' ||
//	BASE64URL(JWS Signature)
func SerializeCompact(protected *Header, payload []byte, key jwk.Resolver, opts ...Option) ([]byte, error) {
	cfg := newConfig(opts)
	reg := cfg.effectiveRegistry()

	msg := NewMessage(payload)
	if err := signMember(msg, reg, Member{Protected: protected, Key: key}); err != nil {
		return nil, err
	}
	return msg.Compact()
}

// DeserializeCompact parses and verifies a JWS Compact Serialization.
func DeserializeCompact(data []byte, key jwk.Resolver, opts ...Option) (*Message, error) {
	msg, err := ExtractCompact(data)
	if err != nil {
		return nil, err
	}
	if err := ValidateCompact(msg, key, opts...); err != nil {
		return nil, err
	}
	return msg, nil
}

// ValidateCompact verifies an extracted JWS message against key.
// It is usually used together with [ExtractCompact].
func ValidateCompact(msg *Message, key jwk.Resolver, opts ...Option) error {
	cfg := newConfig(opts)
	reg := cfg.effectiveRegistry()

	if len(msg.Signatures) != 1 {
		return fmt.Errorf("jws: %w: invalid number of signatures: %d", joserr.ErrDecode, len(msg.Signatures))
	}
	return verifyMember(msg, reg, msg.Signatures[0], key)
}

// SerializeJSON generates a JWS JSON Serialization. A single member
// produces the flattened form, several the general form.
func SerializeJSON(payload []byte, members []Member, opts ...Option) ([]byte, error) {
	cfg := newConfig(opts)
	reg := cfg.effectiveRegistry()

	if len(members) == 0 {
		return nil, fmt.Errorf("jws: %w: no signature members", joserr.ErrDecode)
	}
	msg := NewMessage(payload)
	for _, m := range members {
		if err := signMember(msg, reg, m); err != nil {
			return nil, err
		}
	}
	return msg.MarshalJSON()
}

// DeserializeJSON parses and verifies a JWS JSON Serialization,
// general or flattened. By default the message is accepted when any
// signature verifies with a resolvable key; [WithVerifyAll] requires
// all of them to. Per-signature results remain available through
// [Signature.Verified].
func DeserializeJSON(data []byte, key jwk.Resolver, opts ...Option) (*Message, error) {
	cfg := newConfig(opts)
	reg := cfg.effectiveRegistry()

	msg, err := ExtractJSON(data)
	if err != nil {
		return nil, err
	}

	var verified int
	var firstErr error
	for _, s := range msg.Signatures {
		if err := verifyMember(msg, reg, s, key); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if cfg.verifyAll {
				return nil, err
			}
			continue
		}
		verified++
	}
	if verified == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, fmt.Errorf("jws: %w", joserr.ErrBadSignature)
	}
	return msg, nil
}

func signMember(msg *Message, reg *Registry, m Member) error {
	protected := m.Protected
	if protected == nil {
		return fmt.Errorf("jws: %w: alg", joserr.ErrMissingHeader)
	}
	alg := protected.Algorithm()
	if alg == "" {
		return fmt.Errorf("jws: %w: alg", joserr.ErrMissingHeader)
	}
	if err := reg.checkAlgorithm(alg); err != nil {
		return err
	}

	raw, err := encodeHeader(protected)
	if err != nil {
		return err
	}
	if err := reg.checkHeader(raw, protected); err != nil {
		return err
	}
	if m.Header != nil {
		unprotected, err := encodeHeader(m.Header)
		if err != nil {
			return err
		}
		if err := registry.CheckDisjoint("jws", raw, unprotected); err != nil {
			return err
		}
	}

	key, err := resolveKey(m.Key, protected.KeyID(), alg, jwktypes.KeyOpSign)
	if err != nil {
		return err
	}

	signingKey := alg.New().NewSigningKey(key)
	return msg.sign(protected, m.Header, signingKey)
}

func verifyMember(msg *Message, reg *Registry, s *Signature, key jwk.Resolver) error {
	protected := s.protected
	if protected == nil {
		return fmt.Errorf("jws: %w: protected header is missing", joserr.ErrMissingHeader)
	}
	alg := protected.Algorithm()
	if alg == "" {
		return fmt.Errorf("jws: %w: alg", joserr.ErrMissingHeader)
	}
	if err := reg.checkAlgorithm(alg); err != nil {
		return err
	}
	if err := reg.checkHeader(protected.Raw, protected); err != nil {
		return err
	}

	kid := protected.KeyID()
	if kid == "" && s.header != nil {
		kid = s.header.KeyID()
	}
	k, err := resolveKey(key, kid, alg, jwktypes.KeyOpVerify)
	if err != nil {
		return err
	}

	signingKey := alg.New().NewSigningKey(k)
	if err := msg.verify(s, signingKey); err != nil {
		return err
	}
	return nil
}

func resolveKey(resolver jwk.Resolver, kid string, alg jwa.SignatureAlgorithm, op jwktypes.KeyOp) (*jwk.Key, error) {
	if resolver == nil {
		return nil, fmt.Errorf("jws: %w: no key provided", joserr.ErrInvalidKey)
	}
	key, err := resolver.ResolveKey(jwk.Hint{
		KeyID:     kid,
		Algorithm: alg.KeyAlgorithm(),
		Operation: op,
	})
	if err != nil {
		return nil, err
	}
	if err := key.CheckUse(jwktypes.KeyUseSig); err != nil {
		return nil, err
	}
	if err := key.CheckAlg(alg.KeyAlgorithm()); err != nil {
		return nil, err
	}
	if err := key.CheckOps(op); err != nil {
		return nil, err
	}
	return key, nil
}
