// Package jwk handles JSON Web Key defined in RFC 7517.
package jwk

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"

	"github.com/cloudflare/circl/sign/ed448"

	"github.com/alonbl/joserfc/internal/jsonutils"
	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/x448"
)

// Key is a JSON Web Key.
//
// A Key is immutable after import; the pipelines never modify it.
type Key struct {
	kty     jwa.KeyType
	use     jwktypes.KeyUse
	keyOps  []jwktypes.KeyOp
	alg     jwa.KeyAlgorithm
	kid     string
	x5u     *url.URL
	x5c     []*x509.Certificate
	x5t     []byte
	x5tS256 []byte
	priv    crypto.PrivateKey
	pub     crypto.PublicKey

	// Raw is the raw data of JSON-decoded JWK.
	// JSON numbers are decoded as json.Number to avoid data loss.
	Raw map[string]any
}

// KeyType is RFC 7517 4.1. "kty" (Key Type) Parameter.
func (key *Key) KeyType() jwa.KeyType {
	return key.kty
}

// PublicKeyUse is RFC 7517 4.2. "use" (Public Key Use) Parameter.
func (key *Key) PublicKeyUse() jwktypes.KeyUse {
	return key.use
}

func (key *Key) SetPublicKeyUse(use jwktypes.KeyUse) {
	key.use = use
}

// KeyOperations is RFC 7517 4.3. "key_ops" (Key Operations) Parameter.
func (key *Key) KeyOperations() []jwktypes.KeyOp {
	return key.keyOps
}

func (key *Key) SetKeyOperations(keyOps []jwktypes.KeyOp) {
	key.keyOps = keyOps
}

// Algorithm is RFC 7517 4.4. "alg" (Algorithm) Parameter.
func (key *Key) Algorithm() jwa.KeyAlgorithm {
	return key.alg
}

func (key *Key) SetAlgorithm(alg jwa.KeyAlgorithm) {
	key.alg = alg
}

// KeyID is RFC 7517 4.5. "kid" (Key ID) Parameter.
func (key *Key) KeyID() string {
	return key.kid
}

func (key *Key) SetKeyID(kid string) {
	key.kid = kid
}

// X509URL is RFC 7517 4.6. "x5u" (X.509 URL) Parameter.
func (key *Key) X509URL() *url.URL {
	return key.x5u
}

func (key *Key) SetX509URL(x5u *url.URL) {
	key.x5u = x5u
}

// X509CertificateChain is RFC 7517 4.7. "x5c" (X.509 Certificate Chain) Parameter.
func (key *Key) X509CertificateChain() []*x509.Certificate {
	return key.x5c
}

func (key *Key) SetX509CertificateChain(x5c []*x509.Certificate) {
	key.x5c = x5c
}

// X509CertificateSHA1 is RFC 7517 4.8. "x5t" (X.509 Certificate SHA-1 Thumbprint) Parameter.
func (key *Key) X509CertificateSHA1() []byte {
	return key.x5t
}

func (key *Key) SetX509CertificateSHA1(x5t []byte) {
	key.x5t = x5t
}

// X509CertificateSHA256 is RFC 7517 4.9. "x5t#S256" (X.509 Certificate SHA-256 Thumbprint) Parameter.
func (key *Key) X509CertificateSHA256() []byte {
	return key.x5tS256
}

func (key *Key) SetX509CertificateSHA256(x5tS256 []byte) {
	key.x5tS256 = x5tS256
}

// PrivateKey returns the private key.
// If the key doesn't contain any private key, it returns nil.
func (key *Key) PrivateKey() crypto.PrivateKey {
	return key.priv
}

// PublicKey returns the public key.
// If the key doesn't contain any public key, it returns nil.
func (key *Key) PublicKey() crypto.PublicKey {
	return key.pub
}

// IsPrivate reports whether the key contains private material.
func (key *Key) IsPrivate() bool {
	return key.priv != nil
}

// PublicOnly returns a copy of the key with the private material and
// any private members of the raw form removed.
func (key *Key) PublicOnly() *Key {
	clone := *key
	clone.priv = nil
	if key.kty == jwa.Oct {
		// a symmetric key has no public form to keep
		clone.Raw = nil
		return &clone
	}
	raw := make(map[string]any, len(key.Raw))
	for k, v := range key.Raw {
		switch k {
		case "d", "p", "q", "dp", "dq", "qi", "oth", "k":
			continue
		}
		raw[k] = v
	}
	clone.Raw = raw
	return &clone
}

// NewPrivateKey returns a new JWK from the private key.
//
// key must be one of [*crypto/ecdsa.PrivateKey], [*crypto/rsa.PrivateKey],
// [crypto/ed25519.PrivateKey], [github.com/cloudflare/circl/sign/ed448.PrivateKey],
// [*crypto/ecdh.PrivateKey] (X25519), [x448.PrivateKey], or []byte.
func NewPrivateKey(key crypto.PrivateKey) (*Key, error) {
	switch key := key.(type) {
	case *ecdsa.PrivateKey:
		if err := validateEcdsaPrivateKey(key); err != nil {
			return nil, err
		}
		return &Key{
			kty:  jwa.EC,
			priv: key,
			pub:  key.Public(),
		}, nil
	case *rsa.PrivateKey:
		if err := validateRSAPrivateKey(key); err != nil {
			return nil, err
		}
		return &Key{
			kty:  jwa.RSA,
			priv: key,
			pub:  key.Public(),
		}, nil
	case ed25519.PrivateKey:
		if len(key) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("jwk: %w: invalid ed25519 private key size", joserr.ErrInvalidKey)
		}
		return &Key{
			kty:  jwa.OKP,
			priv: key,
			pub:  key.Public(),
		}, nil
	case ed448.PrivateKey:
		if len(key) != ed448.PrivateKeySize {
			return nil, fmt.Errorf("jwk: %w: invalid ed448 private key size", joserr.ErrInvalidKey)
		}
		return &Key{
			kty:  jwa.OKP,
			priv: key,
			pub:  key.Public(),
		}, nil
	case *ecdh.PrivateKey:
		if key.Curve() != ecdh.X25519() {
			return nil, fmt.Errorf("jwk: %w: unsupported ecdh curve", joserr.ErrInvalidKey)
		}
		return &Key{
			kty:  jwa.OKP,
			priv: key,
			pub:  key.PublicKey(),
		}, nil
	case x448.PrivateKey:
		if len(key) != x448.PrivateKeySize {
			return nil, fmt.Errorf("jwk: %w: invalid x448 private key size", joserr.ErrInvalidKey)
		}
		return &Key{
			kty:  jwa.OKP,
			priv: key,
			pub:  key.Public(),
		}, nil
	case []byte:
		return &Key{
			kty:  jwa.Oct,
			priv: append([]byte(nil), key...),
		}, nil
	default:
		return nil, fmt.Errorf("jwk: %w: unknown private key type: %T", joserr.ErrInvalidKey, key)
	}
}

// NewPublicKey returns a new JWK from the public key.
func NewPublicKey(key crypto.PublicKey) (*Key, error) {
	switch key := key.(type) {
	case *ecdsa.PublicKey:
		if err := validateEcdsaPublicKey(key); err != nil {
			return nil, err
		}
		return &Key{
			kty: jwa.EC,
			pub: key,
		}, nil
	case *rsa.PublicKey:
		if err := validateRSAPublicKey(key); err != nil {
			return nil, err
		}
		return &Key{
			kty: jwa.RSA,
			pub: key,
		}, nil
	case ed25519.PublicKey:
		return &Key{
			kty: jwa.OKP,
			pub: key,
		}, nil
	case ed448.PublicKey:
		return &Key{
			kty: jwa.OKP,
			pub: key,
		}, nil
	case *ecdh.PublicKey:
		if key.Curve() != ecdh.X25519() {
			return nil, fmt.Errorf("jwk: %w: unsupported ecdh curve", joserr.ErrInvalidKey)
		}
		return &Key{
			kty: jwa.OKP,
			pub: key,
		}, nil
	case x448.PublicKey:
		return &Key{
			kty: jwa.OKP,
			pub: key,
		}, nil
	default:
		return nil, fmt.Errorf("jwk: %w: unknown public key type: %T", joserr.ErrInvalidKey, key)
	}
}

// CheckUse verifies the declared "use" of the key against use.
func (key *Key) CheckUse(use jwktypes.KeyUse) error {
	if key.use == jwktypes.KeyUseUnknown || key.use == use {
		return nil
	}
	return fmt.Errorf("jwk: %w: key is designated for %q, not %q", joserr.ErrUnsupportedKeyUse, key.use, use)
}

// CheckAlg verifies the declared "alg" of the key against alg.
func (key *Key) CheckAlg(alg jwa.KeyAlgorithm) error {
	if key.alg == "" || key.alg == alg {
		return nil
	}
	return fmt.Errorf("jwk: %w: key is designated for algorithm %q, not %q", joserr.ErrUnsupportedKeyAlgorithm, key.alg, alg)
}

// CheckOps verifies the declared "key_ops" of the key against op, and
// that a key without private material is not asked for an operation
// that needs one.
func (key *Key) CheckOps(ops ...jwktypes.KeyOp) error {
	for _, op := range ops {
		if !jwktypes.CanUseFor(key, op) {
			return fmt.Errorf("jwk: %w: operation %q is not permitted by the key", joserr.ErrUnsupportedKeyOperation, op)
		}
		switch op {
		case jwktypes.KeyOpSign, jwktypes.KeyOpDecrypt, jwktypes.KeyOpUnwrapKey:
			if key.priv == nil {
				return fmt.Errorf("jwk: %w: operation %q needs a private key", joserr.ErrUnsupportedKeyOperation, op)
			}
		}
	}
	return nil
}

// decode common parameters such as certificate and thumbprints, etc.
func decodeCommonParameters(d *jsonutils.Decoder, key *Key) {
	key.kty = jwa.KeyType(d.MustString("kty"))
	key.kid, _ = d.GetString("kid")
	if use, ok := d.GetString("use"); ok {
		key.use = jwktypes.KeyUse(use)
	}
	if ops, ok := d.GetStringArray("key_ops"); ok {
		key.keyOps = make([]jwktypes.KeyOp, len(ops))
		for i := range ops {
			key.keyOps[i] = jwktypes.KeyOp(ops[i])
		}
	}
	if alg, ok := d.GetString("alg"); ok {
		key.alg = jwa.KeyAlgorithm(alg)
	}

	// "use" and "key_ops" must be consistent when both are present.
	if key.use != jwktypes.KeyUseUnknown {
		for _, op := range key.keyOps {
			if op.Use() != key.use {
				d.SaveError(fmt.Errorf("jwk: %w: key_ops %q conflicts with use %q", joserr.ErrInvalidKey, op, key.use))
			}
		}
	}

	// decode the certificates
	if x5u, ok := d.GetURL("x5u"); ok {
		key.x5u = x5u
	}
	var cert0 []byte
	if x5c, ok := d.GetStringArray("x5c"); ok {
		var certs []*x509.Certificate
		for i, s := range x5c {
			der, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				d.SaveError(fmt.Errorf("jwk: failed to parse the parameter x5c[%d]: %w", i, err))
				return
			}
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				d.SaveError(fmt.Errorf("jwk: failed to parse certificate: %w", err))
				return
			}
			if cert0 == nil {
				cert0 = der
			}
			certs = append(certs, cert)
		}
		key.x5c = certs
	}

	// check thumbprints
	if x5t, ok := d.GetBytes("x5t"); ok {
		key.x5t = x5t
		if cert0 != nil {
			sum := sha1.Sum(cert0)
			if subtle.ConstantTimeCompare(sum[:], x5t) == 0 {
				d.SaveError(errors.New("jwk: sha-1 thumbprint of certificate is mismatch"))
			}
		}
	}
	if x5t256, ok := d.GetBytes("x5t#S256"); ok {
		key.x5tS256 = x5t256
		if cert0 != nil {
			sum := sha256.Sum256(cert0)
			if subtle.ConstantTimeCompare(sum[:], x5t256) == 0 {
				d.SaveError(errors.New("jwk: sha-256 thumbprint of certificate is mismatch"))
			}
		}
	}
}

func encodeCommonParameters(e *jsonutils.Encoder, key *Key) {
	e.Set("kty", key.kty.String())
	if v := key.kid; v != "" {
		e.Set("kid", v)
	}
	if v := key.use; v != "" {
		e.Set("use", v.String())
	}
	if v := key.keyOps; v != nil {
		ops := make([]string, len(v))
		for i := range v {
			ops[i] = v[i].String()
		}
		e.Set("key_ops", ops)
	}
	if v := key.alg; v != "" {
		e.Set("alg", v.String())
	}
	if x5u := key.x5u; x5u != nil {
		e.Set("x5u", x5u.String())
	}
	if x5c := key.x5c; x5c != nil {
		chain := make([]string, 0, len(x5c))
		for _, cert := range x5c {
			chain = append(chain, base64.StdEncoding.EncodeToString(cert.Raw))
		}
		e.Set("x5c", chain)
	}
	if x5t := key.x5t; x5t != nil {
		e.SetBytes("x5t", x5t)
	} else if len(key.x5c) > 0 {
		cert := key.x5c[0]
		sum := sha1.Sum(cert.Raw)
		e.SetBytes("x5t", sum[:])
	}
	if x5t256 := key.x5tS256; x5t256 != nil {
		e.SetBytes("x5t#S256", x5t256)
	} else if len(key.x5c) > 0 {
		cert := key.x5c[0]
		sum := sha256.Sum256(cert.Raw)
		e.SetBytes("x5t#S256", sum[:])
	}
}

// ParseKey parses a JWK.
func ParseKey(data []byte) (*Key, error) {
	var raw map[string]any
	if err := jsonutils.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return ParseMap(raw)
}

// ParseMap parses a JWK that is decoded by the json package.
func ParseMap(raw map[string]any) (*Key, error) {
	d := jsonutils.NewDecoder("jwk", raw)
	key := &Key{
		Raw: raw,
	}
	decodeCommonParameters(d, key)
	if err := d.Err(); err != nil {
		return nil, err
	}

	switch key.kty {
	case jwa.EC:
		parseEcdsaKey(d, key)
	case jwa.RSA:
		parseRSAKey(d, key)
	case jwa.OKP:
		parseOKPKey(d, key)
	case jwa.Oct:
		parseSymmetricKey(d, key)
	default:
		return nil, fmt.Errorf("jwk: %w: unknown key type: %q", joserr.ErrInvalidKey, key.kty)
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return key, nil
}

var _ json.Unmarshaler = (*Key)(nil)

// UnmarshalJSON implements [encoding/json.Unmarshaler].
func (key *Key) UnmarshalJSON(data []byte) error {
	k, err := ParseKey(data)
	if err != nil {
		return err
	}
	*key = *k
	return nil
}

var _ json.Marshaler = (*Key)(nil)

// MarshalJSON implements [encoding/json.Marshaler].
// A key that contains private material is serialized with it;
// use [Key.PublicOnly] to export the public form.
func (key *Key) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(key.Raw))
	for k, v := range key.Raw {
		raw[k] = v
	}
	e := jsonutils.NewEncoder(raw)
	encodeCommonParameters(e, key)
	if err := e.Err(); err != nil {
		return nil, err
	}
	if err := encodeKeyMaterial(e, key); err != nil {
		return nil, err
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	return json.Marshal(e.Data())
}

func encodeKeyMaterial(e *jsonutils.Encoder, key *Key) error {
	switch priv := key.priv.(type) {
	case *ecdsa.PrivateKey:
		pub, ok := key.pub.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("jwk: public key type is mismatch for ecdsa: %T", key.pub)
		}
		encodeEcdsaKey(e, priv, pub)
	case *rsa.PrivateKey:
		pub, ok := key.pub.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("jwk: public key type is mismatch for rsa: %T", key.pub)
		}
		encodeRSAKey(e, priv, pub)
	case ed25519.PrivateKey:
		pub, ok := key.pub.(ed25519.PublicKey)
		if !ok {
			return fmt.Errorf("jwk: public key type is mismatch for ed25519: %T", key.pub)
		}
		encodeEd25519Key(e, priv, pub)
	case ed448.PrivateKey:
		pub, ok := key.pub.(ed448.PublicKey)
		if !ok {
			return fmt.Errorf("jwk: public key type is mismatch for ed448: %T", key.pub)
		}
		encodeEd448Key(e, priv, pub)
	case *ecdh.PrivateKey:
		pub, ok := key.pub.(*ecdh.PublicKey)
		if !ok {
			return fmt.Errorf("jwk: public key type is mismatch for x25519: %T", key.pub)
		}
		encodeX25519Key(e, priv, pub)
	case x448.PrivateKey:
		pub, ok := key.pub.(x448.PublicKey)
		if !ok {
			return fmt.Errorf("jwk: public key type is mismatch for x448: %T", key.pub)
		}
		encodeX448Key(e, priv, pub)
	case []byte:
		if key.pub != nil {
			return errors.New("jwk: no public key is allowed for symmetric keys")
		}
		encodeSymmetricKey(e, priv)
	case nil:
		// the key has only public key.
		switch pub := key.pub.(type) {
		case *ecdsa.PublicKey:
			encodeEcdsaKey(e, nil, pub)
		case *rsa.PublicKey:
			encodeRSAKey(e, nil, pub)
		case ed25519.PublicKey:
			encodeEd25519Key(e, nil, pub)
		case ed448.PublicKey:
			encodeEd448Key(e, nil, pub)
		case *ecdh.PublicKey:
			encodeX25519Key(e, nil, pub)
		case x448.PublicKey:
			encodeX448Key(e, nil, pub)
		default:
			return newUnknownKeyTypeError(key)
		}
	default:
		return newUnknownKeyTypeError(key)
	}
	return nil
}

type unknownKeyTypeError struct {
	pub  reflect.Type
	priv reflect.Type
}

func newUnknownKeyTypeError(key *Key) *unknownKeyTypeError {
	return &unknownKeyTypeError{
		pub:  reflect.TypeOf(key.PublicKey()),
		priv: reflect.TypeOf(key.PrivateKey()),
	}
}

func (err *unknownKeyTypeError) Error() string {
	priv := "nil"
	if err.priv != nil {
		priv = err.priv.String()
	}
	pub := "nil"
	if err.pub != nil {
		pub = err.pub.String()
	}
	return "jwk: unknown private and public key type: " + priv + ", " + pub
}

func (err *unknownKeyTypeError) Unwrap() error {
	return joserr.ErrInvalidKey
}
