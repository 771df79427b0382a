package jwe

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"

	"github.com/alonbl/joserfc/internal/jsonutils"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk"
)

// Header is a decoded JSON Object Signing and Encryption (JOSE) Header.
type Header struct {
	alg     jwa.KeyManagementAlgorithm
	enc     jwa.EncryptionAlgorithm
	zip     jwa.CompressionAlgorithm
	jku     *url.URL
	jwk     *jwk.Key
	kid     string
	x5u     *url.URL
	x5c     []*x509.Certificate
	x5t     []byte
	x5tS256 []byte
	typ     string
	cty     string
	crit    []string
	epk     *jwk.Key
	apu     []byte
	apv     []byte
	iv      []byte
	tag     []byte
	p2s     []byte
	p2c     int

	// Raw is the raw data of JSON-decoded JOSE header.
	// JSON numbers are decoded as json.Number to avoid data loss.
	Raw map[string]any
}

// NewHeader returns a new Header.
func NewHeader() *Header {
	return &Header{
		Raw: map[string]any{},
	}
}

// Clone returns a shallow copy of h.
func (h *Header) Clone() *Header {
	if h == nil {
		return NewHeader()
	}
	clone := *h
	raw := make(map[string]any, len(h.Raw))
	for k, v := range h.Raw {
		raw[k] = v
	}
	clone.Raw = raw
	return &clone
}

// Algorithm returns the key management algorithm
// defined in RFC 7516 Section 4.1.1. "alg" (Algorithm) Header Parameter.
func (h *Header) Algorithm() jwa.KeyManagementAlgorithm {
	if h == nil {
		return ""
	}
	return h.alg
}

func (h *Header) SetAlgorithm(alg jwa.KeyManagementAlgorithm) {
	h.alg = alg
}

// EncryptionAlgorithm returns the content encryption algorithm
// defined in RFC 7516 Section 4.1.2. "enc" (Encryption Algorithm) Header Parameter.
func (h *Header) EncryptionAlgorithm() jwa.EncryptionAlgorithm {
	if h == nil {
		return ""
	}
	return h.enc
}

func (h *Header) SetEncryptionAlgorithm(enc jwa.EncryptionAlgorithm) {
	h.enc = enc
}

// CompressionAlgorithm is RFC 7516 Section 4.1.3. "zip" (Compression Algorithm) Header Parameter.
func (h *Header) CompressionAlgorithm() jwa.CompressionAlgorithm {
	if h == nil {
		return ""
	}
	return h.zip
}

func (h *Header) SetCompressionAlgorithm(zip jwa.CompressionAlgorithm) {
	h.zip = zip
}

// JWKSetURL is RFC 7516 Section 4.1.4. "jku" (JWK Set URL) Header Parameter.
func (h *Header) JWKSetURL() *url.URL {
	if h == nil {
		return nil
	}
	return h.jku
}

func (h *Header) SetJWKSetURL(jku *url.URL) {
	h.jku = jku
}

// JWK is RFC 7516 Section 4.1.5. "jwk" (JSON Web Key) Header Parameter.
func (h *Header) JWK() *jwk.Key {
	if h == nil {
		return nil
	}
	return h.jwk
}

func (h *Header) SetJWK(key *jwk.Key) {
	h.jwk = key
}

// KeyID is RFC 7516 Section 4.1.6. "kid" (Key ID) Header Parameter.
func (h *Header) KeyID() string {
	if h == nil {
		return ""
	}
	return h.kid
}

func (h *Header) SetKeyID(kid string) {
	h.kid = kid
}

// X509URL is RFC 7516 Section 4.1.7. "x5u" (X.509 URL) Header Parameter.
func (h *Header) X509URL() *url.URL {
	if h == nil {
		return nil
	}
	return h.x5u
}

func (h *Header) SetX509URL(x5u *url.URL) {
	h.x5u = x5u
}

// X509CertificateChain is RFC 7516 Section 4.1.8. "x5c" (X.509 Certificate Chain) Header Parameter.
func (h *Header) X509CertificateChain() []*x509.Certificate {
	if h == nil {
		return nil
	}
	return h.x5c
}

func (h *Header) SetX509CertificateChain(x5c []*x509.Certificate) {
	h.x5c = x5c
}

// X509CertificateSHA1 is RFC 7516 Section 4.1.9. "x5t" (X.509 Certificate SHA-1 Thumbprint) Header Parameter.
func (h *Header) X509CertificateSHA1() []byte {
	if h == nil {
		return nil
	}
	return h.x5t
}

func (h *Header) SetX509CertificateSHA1(x5t []byte) {
	h.x5t = x5t
}

// X509CertificateSHA256 is RFC 7516 Section 4.1.10. "x5t#S256" (X.509 Certificate SHA-256 Thumbprint) Header Parameter.
func (h *Header) X509CertificateSHA256() []byte {
	if h == nil {
		return nil
	}
	return h.x5tS256
}

func (h *Header) SetX509CertificateSHA256(x5tS256 []byte) {
	h.x5tS256 = x5tS256
}

// Type is RFC 7516 Section 4.1.11. "typ" (Type) Header Parameter.
func (h *Header) Type() string {
	if h == nil {
		return ""
	}
	return h.typ
}

func (h *Header) SetType(typ string) {
	h.typ = typ
}

// ContentType is RFC 7516 Section 4.1.12. "cty" (Content Type) Header Parameter.
func (h *Header) ContentType() string {
	if h == nil {
		return ""
	}
	return h.cty
}

func (h *Header) SetContentType(cty string) {
	h.cty = cty
}

// Critical is RFC 7516 Section 4.1.13. "crit" (Critical) Header Parameter.
func (h *Header) Critical() []string {
	if h == nil {
		return nil
	}
	return h.crit
}

func (h *Header) SetCritical(crit []string) {
	h.crit = crit
}

// EphemeralPublicKey is RFC 7518 Section 4.6.1.1. "epk" (Ephemeral Public Key) Header Parameter.
func (h *Header) EphemeralPublicKey() *jwk.Key {
	if h == nil {
		return nil
	}
	return h.epk
}

func (h *Header) SetEphemeralPublicKey(epk *jwk.Key) {
	h.epk = epk
}

// AgreementPartyUInfo is RFC 7518 Section 4.6.1.2. "apu" (Agreement PartyUInfo) Header Parameter.
func (h *Header) AgreementPartyUInfo() []byte {
	if h == nil {
		return nil
	}
	return h.apu
}

func (h *Header) SetAgreementPartyUInfo(apu []byte) {
	h.apu = apu
}

// AgreementPartyVInfo is RFC 7518 Section 4.6.1.3. "apv" (Agreement PartyVInfo) Header Parameter.
func (h *Header) AgreementPartyVInfo() []byte {
	if h == nil {
		return nil
	}
	return h.apv
}

func (h *Header) SetAgreementPartyVInfo(apv []byte) {
	h.apv = apv
}

// InitializationVector is RFC 7518 Section 4.7.1.1. "iv" (Initialization Vector) Header Parameter.
// It is the 96-bit IV value used for the key encryption operation.
func (h *Header) InitializationVector() []byte {
	if h == nil {
		return nil
	}
	return h.iv
}

func (h *Header) SetInitializationVector(iv []byte) {
	h.iv = iv
}

// AuthenticationTag is RFC 7518 Section 4.7.1.2. "tag" (Authentication Tag) Header Parameter.
func (h *Header) AuthenticationTag() []byte {
	if h == nil {
		return nil
	}
	return h.tag
}

func (h *Header) SetAuthenticationTag(tag []byte) {
	h.tag = tag
}

// PBES2SaltInput is RFC 7518 Section 4.8.1.1. "p2s" (PBES2 Salt Input) Header Parameter.
func (h *Header) PBES2SaltInput() []byte {
	if h == nil {
		return nil
	}
	return h.p2s
}

func (h *Header) SetPBES2SaltInput(p2s []byte) {
	h.p2s = p2s
}

// PBES2Count is RFC 7518 Section 4.8.1.2. "p2c" (PBES2 Count) Header Parameter.
func (h *Header) PBES2Count() int {
	if h == nil {
		return 0
	}
	return h.p2c
}

func (h *Header) SetPBES2Count(p2c int) {
	if p2c < 0 {
		panic("jwe: p2c is out of range")
	}
	h.p2c = p2c
}

// Set sets an extension header parameter.
func (h *Header) Set(name string, value any) {
	if h.Raw == nil {
		h.Raw = map[string]any{}
	}
	h.Raw[name] = value
}

func (h *Header) MarshalJSON() ([]byte, error) {
	raw, err := encodeHeader(h)
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

func (h *Header) UnmarshalJSON(data []byte) error {
	raw := make(map[string]any)
	if err := jsonutils.Unmarshal(data, &raw); err != nil {
		return err
	}
	header, err := decodeHeader(raw)
	if err != nil {
		return err
	}
	*h = *header
	return nil
}

func decodeHeader(raw map[string]any) (*Header, error) {
	d := jsonutils.NewDecoder("jwe", raw)
	h := &Header{
		Raw: raw,
	}

	if alg, ok := d.GetString(jwa.AlgorithmKey); ok {
		h.alg = jwa.KeyManagementAlgorithm(alg)
	}

	if enc, ok := d.GetString(jwa.EncryptionAlgorithmKey); ok {
		h.enc = jwa.EncryptionAlgorithm(enc)
	}

	if zip, ok := d.GetString(jwa.CompressionAlgorithmKey); ok {
		h.zip = jwa.CompressionAlgorithm(zip)
	}

	if jku, ok := d.GetURL(jwa.JWKSetURLKey); ok {
		h.jku = jku
	}

	if v, ok := d.GetObject(jwa.JSONWebKey); ok {
		key, err := jwk.ParseMap(v)
		if err != nil {
			d.SaveError(err)
		}
		h.jwk = key
	}

	if x5u, ok := d.GetURL(jwa.X509URLKey); ok {
		h.x5u = x5u
	}

	var cert0 []byte
	if x5c, ok := d.GetStringArray(jwa.X509CertificateChainKey); ok {
		var certs []*x509.Certificate
		for i, s := range x5c {
			der, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				d.SaveError(fmt.Errorf("jwe: failed to parse the parameter x5c[%d]: %w", i, err))
				break
			}
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				d.SaveError(fmt.Errorf("jwe: failed to parse certificate: %w", err))
				break
			}
			if cert0 == nil {
				cert0 = der
			}
			certs = append(certs, cert)
		}
		h.x5c = certs
	}

	if x5t, ok := d.GetBytes(jwa.X509CertificateSHA1Thumbprint); ok {
		h.x5t = x5t
		if cert0 != nil {
			sum := sha1.Sum(cert0)
			if subtle.ConstantTimeCompare(sum[:], x5t) == 0 {
				d.SaveError(errors.New("jwe: sha-1 thumbprint of certificate is mismatch"))
			}
		}
	}

	if x5t256, ok := d.GetBytes(jwa.X509CertificateSHA256Thumbprint); ok {
		h.x5tS256 = x5t256
		if cert0 != nil {
			sum := sha256.Sum256(cert0)
			if subtle.ConstantTimeCompare(sum[:], x5t256) == 0 {
				d.SaveError(errors.New("jwe: sha-256 thumbprint of certificate is mismatch"))
			}
		}
	}

	h.kid, _ = d.GetString(jwa.KeyIDKey)
	h.typ, _ = d.GetString(jwa.TypeKey)
	h.cty, _ = d.GetString(jwa.ContentTypeKey)
	h.crit, _ = d.GetStringArray(jwa.CriticalKey)

	// Header Parameters Used for ECDH Key Agreement
	if epk, ok := d.GetObject(jwa.EphemeralPublicKeyKey); ok {
		key, err := jwk.ParseMap(epk)
		if err == nil {
			h.epk = key
		} else {
			d.SaveError(fmt.Errorf("jwe: failed to parse epk: %w", err))
		}
	}
	if apu, ok := d.GetBytes(jwa.AgreementPartyUInfoKey); ok {
		h.apu = apu
	}
	if apv, ok := d.GetBytes(jwa.AgreementPartyVInfoKey); ok {
		h.apv = apv
	}

	// Header Parameters used for Key wrapping with AES GCM.
	if iv, ok := d.GetBytes(jwa.InitializationVectorKey); ok {
		h.iv = iv
	}
	if tag, ok := d.GetBytes(jwa.AuthenticationTagKey); ok {
		h.tag = tag
	}

	// Header Parameters Used for PBES2 Key Encryption
	if p2s, ok := d.GetBytes(jwa.PBES2SaltInputKey); ok {
		h.p2s = p2s
	}
	if p2c, ok := d.GetInt64(jwa.PBES2CountKey); ok {
		if p2c < 0 || p2c > math.MaxInt {
			d.SaveError(errors.New("jwe: p2c is out of range"))
		}
		h.p2c = int(p2c)
	}

	if err := d.Err(); err != nil {
		return nil, err
	}
	return h, nil
}

func encodeHeader(h *Header) (map[string]any, error) {
	if h == nil {
		return nil, nil
	}
	raw := make(map[string]any, len(h.Raw))
	for k, v := range h.Raw {
		raw[k] = v
	}
	e := jsonutils.NewEncoder(raw)
	if v := h.alg; v != "" {
		e.Set(jwa.AlgorithmKey, string(v))
	}

	if enc := h.enc; enc != "" {
		e.Set(jwa.EncryptionAlgorithmKey, string(enc))
	}

	if zip := h.zip; zip != "" {
		e.Set(jwa.CompressionAlgorithmKey, zip.String())
	}

	if u := h.jku; u != nil {
		e.Set(jwa.JWKSetURLKey, u.String())
	}

	if key := h.jwk; key != nil {
		data, err := key.MarshalJSON()
		if err != nil {
			e.SaveError(err)
		} else {
			e.Set(jwa.JSONWebKey, json.RawMessage(data))
		}
	}

	if kid := h.kid; kid != "" {
		e.Set(jwa.KeyIDKey, kid)
	}

	if x5u := h.x5u; x5u != nil {
		e.Set(jwa.X509URLKey, x5u.String())
	}

	if x5c := h.x5c; x5c != nil {
		chain := make([]string, 0, len(x5c))
		for _, cert := range x5c {
			chain = append(chain, base64.StdEncoding.EncodeToString(cert.Raw))
		}
		e.Set(jwa.X509CertificateChainKey, chain)
	}
	if x5t := h.x5t; x5t != nil {
		e.SetBytes(jwa.X509CertificateSHA1Thumbprint, x5t)
	} else if len(h.x5c) > 0 {
		cert := h.x5c[0]
		sum := sha1.Sum(cert.Raw)
		e.SetBytes(jwa.X509CertificateSHA1Thumbprint, sum[:])
	}
	if x5t256 := h.x5tS256; x5t256 != nil {
		e.SetBytes(jwa.X509CertificateSHA256Thumbprint, x5t256)
	} else if len(h.x5c) > 0 {
		cert := h.x5c[0]
		sum := sha256.Sum256(cert.Raw)
		e.SetBytes(jwa.X509CertificateSHA256Thumbprint, sum[:])
	}

	if typ := h.typ; typ != "" {
		e.Set(jwa.TypeKey, typ)
	}

	if cty := h.cty; cty != "" {
		e.Set(jwa.ContentTypeKey, cty)
	}

	if crit := h.crit; len(crit) > 0 {
		e.Set(jwa.CriticalKey, crit)
	}

	// Header Parameters Used for ECDH Key Agreement
	if epk := h.epk; epk != nil {
		data, err := epk.MarshalJSON()
		if err != nil {
			e.SaveError(err)
		} else {
			e.Set(jwa.EphemeralPublicKeyKey, json.RawMessage(data))
		}
	}
	if apu := h.apu; apu != nil {
		e.SetBytes(jwa.AgreementPartyUInfoKey, apu)
	}
	if apv := h.apv; apv != nil {
		e.SetBytes(jwa.AgreementPartyVInfoKey, apv)
	}

	// Header Parameters used for Key wrapping with AES GCM.
	if iv := h.iv; iv != nil {
		e.SetBytes(jwa.InitializationVectorKey, iv)
	}
	if tag := h.tag; tag != nil {
		e.SetBytes(jwa.AuthenticationTagKey, tag)
	}

	// Header Parameters Used for PBES2 Key Encryption
	if p2s := h.p2s; p2s != nil {
		e.SetBytes(jwa.PBES2SaltInputKey, p2s)
	}
	if p2c := h.p2c; p2c != 0 {
		e.Set(jwa.PBES2CountKey, p2c)
	}

	if err := e.Err(); err != nil {
		return nil, err
	}
	return e.Data(), nil
}

// mergedHeader is the union view over the protected, shared
// unprotected and per-recipient headers of a recipient; a getter
// returns the first non-empty value in the order the caller lists the
// headers. The names are guaranteed disjoint by validation.
type mergedHeader []*Header

func (h mergedHeader) Algorithm() jwa.KeyManagementAlgorithm {
	for _, item := range h {
		if alg := item.Algorithm(); alg != "" {
			return alg
		}
	}
	return ""
}

func (h mergedHeader) EncryptionAlgorithm() jwa.EncryptionAlgorithm {
	for _, item := range h {
		if enc := item.EncryptionAlgorithm(); enc != "" {
			return enc
		}
	}
	return ""
}

func (h mergedHeader) CompressionAlgorithm() jwa.CompressionAlgorithm {
	for _, item := range h {
		if zip := item.CompressionAlgorithm(); zip != "" {
			return zip
		}
	}
	return ""
}

func (h mergedHeader) KeyID() string {
	for _, item := range h {
		if kid := item.KeyID(); kid != "" {
			return kid
		}
	}
	return ""
}

func (h mergedHeader) Critical() []string {
	for _, item := range h {
		if crit := item.Critical(); crit != nil {
			return crit
		}
	}
	return nil
}

func (h mergedHeader) EphemeralPublicKey() *jwk.Key {
	for _, item := range h {
		if epk := item.EphemeralPublicKey(); epk != nil {
			return epk
		}
	}
	return nil
}

func (h mergedHeader) AgreementPartyUInfo() []byte {
	for _, item := range h {
		if apu := item.AgreementPartyUInfo(); apu != nil {
			return apu
		}
	}
	return nil
}

func (h mergedHeader) AgreementPartyVInfo() []byte {
	for _, item := range h {
		if apv := item.AgreementPartyVInfo(); apv != nil {
			return apv
		}
	}
	return nil
}

func (h mergedHeader) InitializationVector() []byte {
	for _, item := range h {
		if iv := item.InitializationVector(); iv != nil {
			return iv
		}
	}
	return nil
}

func (h mergedHeader) AuthenticationTag() []byte {
	for _, item := range h {
		if tag := item.AuthenticationTag(); tag != nil {
			return tag
		}
	}
	return nil
}

func (h mergedHeader) PBES2SaltInput() []byte {
	for _, item := range h {
		if p2s := item.PBES2SaltInput(); p2s != nil {
			return p2s
		}
	}
	return nil
}

func (h mergedHeader) PBES2Count() int {
	for _, item := range h {
		if p2c := item.PBES2Count(); p2c != 0 {
			return p2c
		}
	}
	return 0
}
