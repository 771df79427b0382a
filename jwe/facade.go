package jwe

import (
	"crypto"
	"encoding/json"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/keymanage"
	"github.com/alonbl/joserfc/registry"
)

// Option configures a JWE operation.
type Option func(*config)

type config struct {
	registry   *Registry
	algorithms []jwa.KeyManagementAlgorithm
	senderKey  *jwk.Key
	aad        []byte
}

// WithRegistry overrides the default registry of the operation.
func WithRegistry(r *Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithAlgorithms overrides the key management algorithm allowlist of
// the operation.
func WithAlgorithms(algs ...jwa.KeyManagementAlgorithm) Option {
	return func(c *config) {
		c.algorithms = algs
	}
}

// WithSenderKey provides a static sender key for ECDH key agreement;
// it takes the place of the generated ephemeral key.
func WithSenderKey(key *jwk.Key) Option {
	return func(c *config) {
		c.senderKey = key
	}
}

// WithAdditionalAuthenticatedData provides the external AAD of the
// JSON serialization.
func WithAdditionalAuthenticatedData(aad []byte) Option {
	return func(c *config) {
		c.aad = aad
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

// RecipientMember is one target of a JSON serialization.
type RecipientMember struct {
	Header *Header // per-recipient header, optional
	Key    jwk.Resolver
}

// EncryptCompact encrypts plaintext for a single recipient and
// returns the Compact Serialization. The protected header must carry
// both "alg" and "enc".
func EncryptCompact(protected *Header, plaintext []byte, key jwk.Resolver, opts ...Option) ([]byte, error) {
	cfg := newConfig(opts)
	if cfg.aad != nil {
		return nil, fmt.Errorf("jwe: additional authenticated data is not allowed in compact serialization")
	}
	msg, err := encrypt(protected, nil, plaintext, []RecipientMember{{Key: key}}, cfg, true)
	if err != nil {
		return nil, err
	}
	return msg.Compact()
}

// DecryptCompact parses and decrypts a Compact Serialized JWE.
func DecryptCompact(data []byte, key jwk.Resolver, opts ...Option) (*Message, error) {
	msg, err := ExtractCompact(data)
	if err != nil {
		return nil, err
	}
	if err := decrypt(msg, key, newConfig(opts)); err != nil {
		return nil, err
	}
	return msg, nil
}

// EncryptJSON encrypts plaintext for one or more recipients and
// returns the JSON Serialization. A single recipient produces the
// flattened form, with its per-recipient header, if any, as the
// top-level "header" member.
func EncryptJSON(protected, unprotected *Header, plaintext []byte, recipients []RecipientMember, opts ...Option) ([]byte, error) {
	cfg := newConfig(opts)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("jwe: %w: no recipients", joserr.ErrDecode)
	}
	msg, err := encrypt(protected, unprotected, plaintext, recipients, cfg, false)
	if err != nil {
		return nil, err
	}
	return msg.MarshalJSON()
}

// DecryptJSON parses and decrypts a JSON Serialized JWE, general or
// flattened. Recipients whose kid matches the resolved key are tried
// first, then the remaining ones in declared order; the first
// recipient that unwraps and authenticates wins.
func DecryptJSON(data []byte, key jwk.Resolver, opts ...Option) (*Message, error) {
	msg, err := ExtractJSON(data)
	if err != nil {
		return nil, err
	}
	if err := decrypt(msg, key, newConfig(opts)); err != nil {
		return nil, err
	}
	return msg, nil
}

// wrapContext is the view of the JOSE header a key wrapper operates
// on: reads come from the merged headers, writes go to the target
// header, which is one of them.
type wrapContext struct {
	merged    mergedHeader
	target    *Header
	senderKey crypto.PrivateKey
}

func (c *wrapContext) EncryptionAlgorithm() jwa.EncryptionAlgorithm { return c.merged.EncryptionAlgorithm() }
func (c *wrapContext) EphemeralPublicKey() *jwk.Key                 { return c.merged.EphemeralPublicKey() }
func (c *wrapContext) AgreementPartyUInfo() []byte                  { return c.merged.AgreementPartyUInfo() }
func (c *wrapContext) AgreementPartyVInfo() []byte                  { return c.merged.AgreementPartyVInfo() }
func (c *wrapContext) InitializationVector() []byte                 { return c.merged.InitializationVector() }
func (c *wrapContext) AuthenticationTag() []byte                    { return c.merged.AuthenticationTag() }
func (c *wrapContext) PBES2SaltInput() []byte                       { return c.merged.PBES2SaltInput() }
func (c *wrapContext) PBES2Count() int                              { return c.merged.PBES2Count() }
func (c *wrapContext) SenderKey() crypto.PrivateKey                 { return c.senderKey }

func (c *wrapContext) SetEphemeralPublicKey(epk *jwk.Key)  { c.target.SetEphemeralPublicKey(epk) }
func (c *wrapContext) SetInitializationVector(iv []byte)   { c.target.SetInitializationVector(iv) }
func (c *wrapContext) SetAuthenticationTag(tag []byte)     { c.target.SetAuthenticationTag(tag) }
func (c *wrapContext) SetPBES2SaltInput(p2s []byte)        { c.target.SetPBES2SaltInput(p2s) }
func (c *wrapContext) SetPBES2Count(p2c int)               { c.target.SetPBES2Count(p2c) }

// operationFor maps a key management algorithm to the key operation
// it performs on the given side.
func operationFor(alg jwa.KeyManagementAlgorithm, unwrap bool) jwktypes.KeyOp {
	switch {
	case alg == jwa.Direct:
		if unwrap {
			return jwktypes.KeyOpDecrypt
		}
		return jwktypes.KeyOpEncrypt
	case alg == jwa.ECDH_ES,
		alg == jwa.ECDH_ES_A128KW,
		alg == jwa.ECDH_ES_A192KW,
		alg == jwa.ECDH_ES_A256KW,
		alg == jwa.PBES2_HS256_A128KW,
		alg == jwa.PBES2_HS384_A192KW,
		alg == jwa.PBES2_HS512_A256KW:
		return jwktypes.KeyOpDeriveKey
	default:
		if unwrap {
			return jwktypes.KeyOpUnwrapKey
		}
		return jwktypes.KeyOpWrapKey
	}
}

func resolveKey(resolver jwk.Resolver, kid string, alg jwa.KeyManagementAlgorithm, op jwktypes.KeyOp) (*jwk.Key, error) {
	if resolver == nil {
		return nil, fmt.Errorf("jwe: %w: no key provided", joserr.ErrInvalidKey)
	}
	key, err := resolver.ResolveKey(jwk.Hint{
		KeyID:     kid,
		Algorithm: alg.KeyAlgorithm(),
		Operation: op,
	})
	if err != nil {
		return nil, err
	}
	if err := key.CheckUse(jwktypes.KeyUseEnc); err != nil {
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

func encrypt(protected, unprotected *Header, plaintext []byte, members []RecipientMember, cfg *config, compact bool) (*Message, error) {
	reg := cfg.effectiveRegistry()
	if protected == nil {
		return nil, fmt.Errorf("jwe: %w: alg", joserr.ErrMissingHeader)
	}
	// key wrappers add parameters such as epk, iv and tag; work on a
	// copy so the caller's header stays untouched.
	protected = protected.Clone()

	var senderKey crypto.PrivateKey
	if cfg.senderKey != nil {
		senderKey = cfg.senderKey.PrivateKey()
	}

	shared := mergedHeader{protected, unprotected}
	enc := shared.EncryptionAlgorithm()
	if err := reg.checkEncryption(enc); err != nil {
		return nil, err
	}
	zip := shared.CompressionAlgorithm()
	if err := reg.checkCompression(zip); err != nil {
		return nil, err
	}

	// resolve the algorithm, the key, and the wrapper of each recipient
	type recipientState struct {
		alg     jwa.KeyManagementAlgorithm
		header  *Header // per-recipient header, nil for compact
		wrapper keymanage.KeyWrapper
		ctx     *wrapContext
	}
	states := make([]*recipientState, 0, len(members))
	direct := 0
	for _, m := range members {
		st := &recipientState{}
		if !compact && m.Header != nil {
			st.header = m.Header.Clone()
		} else if !compact {
			st.header = NewHeader()
		}
		merged := mergedHeader{protected, unprotected, m.Header}
		alg := merged.Algorithm()
		if alg == "" {
			return nil, fmt.Errorf("jwe: %w: alg", joserr.ErrMissingHeader)
		}
		if err := reg.checkAlgorithm(alg); err != nil {
			return nil, err
		}
		st.alg = alg

		key, err := resolveKey(m.Key, merged.KeyID(), alg, operationFor(alg, false))
		if err != nil {
			return nil, err
		}
		st.wrapper = alg.New().NewKeyWrapper(key)

		target := protected
		if !compact {
			target = st.header
		}
		st.ctx = &wrapContext{
			merged:    mergedHeader{target, protected, unprotected},
			target:    target,
			senderKey: senderKey,
		}
		if _, ok := st.wrapper.(keymanage.CEKProvider); ok {
			direct++
		}
		states = append(states, st)
	}
	if direct > 0 && len(states) > 1 {
		return nil, fmt.Errorf("jwe: %w: direct key management allows a single recipient only", joserr.ErrInvalidHeaderValue)
	}

	encAlg := enc.New()

	// establish the CEK: supplied by a direct mode, random otherwise
	var cek []byte
	if direct == 1 {
		provider := states[0].wrapper.(keymanage.CEKProvider)
		provided, err := provider.ProvideCEK(encAlg.CEKSize(), states[0].ctx)
		if err != nil {
			return nil, fmt.Errorf("jwe: failed to agree on content encryption key: %w", err)
		}
		cek = append([]byte(nil), provided...)
	} else {
		var err error
		cek, err = encAlg.GenerateCEK()
		if err != nil {
			return nil, fmt.Errorf("jwe: failed to generate content encryption key: %w", err)
		}
	}
	defer memguard.WipeBytes(cek)

	// wrap the CEK for every recipient
	recipients := make([]*Recipient, 0, len(states))
	for _, st := range states {
		encryptedKey, err := st.wrapper.WrapKey(cek, st.ctx)
		if err != nil {
			return nil, fmt.Errorf("jwe: failed to encrypt key: %w", err)
		}
		recipients = append(recipients, &Recipient{
			header:          st.header,
			encryptedKey:    encryptedKey,
			b64encryptedKey: b64Encode(encryptedKey),
		})
	}

	// compress the plaintext
	if zip != "" {
		compressed, err := zip.New().Compress(plaintext)
		if err != nil {
			return nil, err
		}
		plaintext = compressed
	}

	// validate the final headers
	rawProtected, err := encodeHeader(protected)
	if err != nil {
		return nil, err
	}
	if err := reg.checkHeader(rawProtected, protected.Critical(), compact); err != nil {
		return nil, err
	}
	var rawUnprotected map[string]any
	if unprotected != nil {
		rawUnprotected, err = encodeHeader(unprotected)
		if err != nil {
			return nil, err
		}
		if err := reg.checkHeader(rawUnprotected, nil, false); err != nil {
			return nil, err
		}
	}
	for _, r := range recipients {
		if r.header == nil {
			continue
		}
		raw, err := encodeHeader(r.header)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			// nothing ended up in the per-recipient header
			r.header = nil
			continue
		}
		if err := reg.checkHeader(raw, nil, false); err != nil {
			return nil, err
		}
		if err := registry.CheckDisjoint("jwe", rawProtected, rawUnprotected, raw); err != nil {
			return nil, err
		}
	}
	if err := registry.CheckDisjoint("jwe", rawProtected, rawUnprotected); err != nil {
		return nil, err
	}

	// encrypt the content
	iv, err := encAlg.GenerateIV()
	if err != nil {
		return nil, fmt.Errorf("jwe: failed to generate initialization vector: %w", err)
	}
	rawHeader, err := json.Marshal(rawProtected)
	if err != nil {
		return nil, err
	}
	b64protected := b64Encode(rawHeader)
	aad := b64protected
	var b64aad []byte
	if cfg.aad != nil {
		b64aad = b64Encode(cfg.aad)
		aad = make([]byte, 0, len(b64protected)+len(b64aad)+1)
		aad = append(aad, b64protected...)
		aad = append(aad, '.')
		aad = append(aad, b64aad...)
	}
	ciphertext, tag, err := encAlg.Encrypt(cek, iv, aad, plaintext)
	if err != nil {
		return nil, fmt.Errorf("jwe: failed to encrypt: %w", err)
	}

	// compact serialization carries no per-recipient header
	if compact {
		for _, r := range recipients {
			r.header = nil
		}
	}

	return &Message{
		UnprotectedHeader: unprotected,
		header:            protected,
		iv:                iv,
		b64iv:             b64Encode(iv),
		ciphertext:        ciphertext,
		b64ciphertext:     b64Encode(ciphertext),
		protected:         rawHeader,
		b64protected:      b64protected,
		aad:               cfg.aad,
		b64aad:            b64aad,
		tag:               tag,
		b64tag:            b64Encode(tag),
		Recipients:        recipients,
	}, nil
}

func decrypt(msg *Message, key jwk.Resolver, cfg *config) error {
	reg := cfg.effectiveRegistry()

	enc := mergedHeader{msg.header, msg.UnprotectedHeader}.EncryptionAlgorithm()
	if err := reg.checkEncryption(enc); err != nil {
		return err
	}

	// validate the header objects
	if err := reg.checkHeader(msg.header.Raw, msg.header.Critical(), false); err != nil {
		return err
	}
	var rawUnprotected map[string]any
	if msg.UnprotectedHeader != nil {
		rawUnprotected = msg.UnprotectedHeader.Raw
		if err := reg.checkHeader(rawUnprotected, nil, false); err != nil {
			return err
		}
	}
	for _, r := range msg.Recipients {
		if r.header == nil {
			continue
		}
		if err := reg.checkHeader(r.header.Raw, nil, false); err != nil {
			return err
		}
		if err := registry.CheckDisjoint("jwe", msg.header.Raw, rawUnprotected, r.header.Raw); err != nil {
			return err
		}
	}

	// recompute the AAD from the bytes that were actually received
	aad := msg.b64protected
	if msg.b64aad != nil {
		aad = make([]byte, 0, len(msg.b64protected)+len(msg.b64aad)+1)
		aad = append(aad, msg.b64protected...)
		aad = append(aad, '.')
		aad = append(aad, msg.b64aad...)
	}

	var senderKey crypto.PrivateKey
	if cfg.senderKey != nil {
		senderKey = cfg.senderKey.PublicKey()
	}

	// recipients with a kid match come first
	recipients := orderRecipients(msg, key)

	encAlg := enc.New()
	var firstErr error
	for _, r := range recipients {
		merged := mergedHeader{r.header, msg.header, msg.UnprotectedHeader}
		alg := merged.Algorithm()
		if alg == "" {
			saveErr(&firstErr, fmt.Errorf("jwe: %w: alg", joserr.ErrMissingHeader))
			continue
		}
		if err := reg.checkAlgorithm(alg); err != nil {
			saveErr(&firstErr, err)
			continue
		}
		if err := reg.checkCompression(merged.CompressionAlgorithm()); err != nil {
			saveErr(&firstErr, err)
			continue
		}

		k, err := resolveKey(key, merged.KeyID(), alg, operationFor(alg, true))
		if err != nil {
			saveErr(&firstErr, err)
			continue
		}
		wrapper := alg.New().NewKeyWrapper(k)
		ctx := &wrapContext{
			merged:    merged,
			target:    NewHeader(),
			senderKey: senderKey,
		}
		unwrapped, err := wrapper.UnwrapKey(r.encryptedKey, ctx)
		if err != nil {
			saveErr(&firstErr, fmt.Errorf("jwe: failed to unwrap key: %w", err))
			continue
		}
		cek := append([]byte(nil), unwrapped...)

		plaintext, err := encAlg.Decrypt(cek, msg.iv, aad, msg.ciphertext, msg.tag)
		memguard.WipeBytes(cek)
		if err != nil {
			saveErr(&firstErr, fmt.Errorf("jwe: failed to decrypt: %w", err))
			continue
		}

		if zip := merged.CompressionAlgorithm(); zip != "" {
			plaintext, err = zip.New().Decompress(plaintext)
			if err != nil {
				return err
			}
		}
		msg.plaintext = plaintext
		return nil
	}
	if firstErr != nil {
		return firstErr
	}
	return fmt.Errorf("jwe: %w: no recipient could be decrypted", joserr.ErrBadSignature)
}

// orderRecipients returns the recipients of msg with the ones whose
// kid matches the resolver's key first, keeping the declared order
// within each group.
func orderRecipients(msg *Message, key jwk.Resolver) []*Recipient {
	single, ok := key.(*jwk.Key)
	if !ok || single == nil || single.KeyID() == "" || len(msg.Recipients) < 2 {
		return msg.Recipients
	}
	kid := single.KeyID()
	matched := make([]*Recipient, 0, len(msg.Recipients))
	rest := make([]*Recipient, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		merged := mergedHeader{r.header, msg.header, msg.UnprotectedHeader}
		if merged.KeyID() == kid {
			matched = append(matched, r)
		} else {
			rest = append(rest, r)
		}
	}
	return append(matched, rest...)
}

func saveErr(dst *error, err error) {
	if *dst == nil {
		*dst = err
	}
}
