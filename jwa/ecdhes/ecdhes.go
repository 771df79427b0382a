// Package ecdhes implements Key Agreement with Elliptic Curve
// Diffie-Hellman Ephemeral Static (ECDH-ES) using Concat KDF.
//
// EC keys on P-256, P-384, P-521 and secp256k1, and OKP keys on
// X25519 and X448 are supported.
package ecdhes

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	_ "crypto/sha256" // for crypto.SHA256
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/awnumar/memguard"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwa/akw"
	"github.com/alonbl/joserfc/jwk"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/keymanage"
	"github.com/alonbl/joserfc/x448"
)

var alg = &algorithm{
	name: jwa.ECDH_ES,
}

// New returns the direct key agreement algorithm
// ECDH-ES using Concat KDF.
func New() keymanage.Algorithm {
	return alg
}

var a128kw = &algorithm{
	name: jwa.ECDH_ES_A128KW,
	size: 16,
}

// NewA128KW returns ECDH-ES using Concat KDF and CEK wrapped with "A128KW".
func NewA128KW() keymanage.Algorithm {
	return a128kw
}

var a192kw = &algorithm{
	name: jwa.ECDH_ES_A192KW,
	size: 24,
}

// NewA192KW returns ECDH-ES using Concat KDF and CEK wrapped with "A192KW".
func NewA192KW() keymanage.Algorithm {
	return a192kw
}

var a256kw = &algorithm{
	name: jwa.ECDH_ES_A256KW,
	size: 32,
}

// NewA256KW returns ECDH-ES using Concat KDF and CEK wrapped with "A256KW".
func NewA256KW() keymanage.Algorithm {
	return a256kw
}

func init() {
	jwa.RegisterKeyManagementAlgorithm(jwa.ECDH_ES, New)
	jwa.RegisterKeyManagementAlgorithm(jwa.ECDH_ES_A128KW, NewA128KW)
	jwa.RegisterKeyManagementAlgorithm(jwa.ECDH_ES_A192KW, NewA192KW)
	jwa.RegisterKeyManagementAlgorithm(jwa.ECDH_ES_A256KW, NewA256KW)
}

var _ keymanage.Algorithm = (*algorithm)(nil)

// algorithm is an ECDH-ES variant. size is the KEK size of the
// key-wrapping variants; zero means direct key agreement, where the
// derived key size comes from the content encryption algorithm.
type algorithm struct {
	name jwa.KeyManagementAlgorithm
	size int
}

type encryptionAlgorithmGetter interface {
	EncryptionAlgorithm() jwa.EncryptionAlgorithm
}

type ephemeralPublicKeyGetter interface {
	EphemeralPublicKey() *jwk.Key
}

type ephemeralPublicKeySetter interface {
	SetEphemeralPublicKey(epk *jwk.Key)
}

type agreementPartyInfoGetter interface {
	AgreementPartyUInfo() []byte
	AgreementPartyVInfo() []byte
}

type senderKeyGetter interface {
	SenderKey() crypto.PrivateKey
}

// NewKeyWrapper implements [github.com/alonbl/joserfc/keymanage.Algorithm].
// The public key of key is used for wrapping, the private key for unwrapping.
func (alg *algorithm) NewKeyWrapper(key keymanage.Key) keymanage.KeyWrapper {
	switch key.PublicKey().(type) {
	case *ecdsa.PublicKey, *ecdh.PublicKey, x448.PublicKey:
	default:
		if key.PublicKey() != nil || key.PrivateKey() == nil {
			return keymanage.NewInvalidKeyWrapper(fmt.Errorf("ecdhes: %w: unsupported key type %T", joserr.ErrInvalidKey, key.PublicKey()))
		}
	}
	w := &keyWrapper{
		alg:       alg,
		priv:      key.PrivateKey(),
		pub:       key.PublicKey(),
		canDerive: jwktypes.CanUseFor(key, jwktypes.KeyOpDeriveKey) || jwktypes.CanUseFor(key, jwktypes.KeyOpDeriveBits),
	}
	if !w.direct() {
		// the +A*KW variants wrap a generated CEK, so the returned
		// wrapper does not expose ProvideCEK
		return struct{ keymanage.KeyWrapper }{w}
	}
	return w
}

var _ keymanage.KeyWrapper = (*keyWrapper)(nil)
var _ keymanage.CEKProvider = (*keyWrapper)(nil)

type keyWrapper struct {
	alg       *algorithm
	priv      crypto.PrivateKey
	pub       crypto.PublicKey
	canDerive bool
}

// direct reports whether the wrapper is in direct key agreement mode.
func (w *keyWrapper) direct() bool {
	return w.alg.size == 0
}

// ProvideCEK implements [github.com/alonbl/joserfc/keymanage.CEKProvider].
// It is used by the direct ECDH-ES variant only: the CEK is derived
// from the agreed secret, and the encrypted key stays empty.
func (w *keyWrapper) ProvideCEK(size int, opts any) ([]byte, error) {
	if !w.direct() {
		return nil, errors.New("ecdhes: CEK is not provided in key wrapping mode")
	}
	return w.deriveSender(size, []byte(w.encName(opts)), opts)
}

// WrapKey implements [github.com/alonbl/joserfc/keymanage.KeyWrapper].
func (w *keyWrapper) WrapKey(cek []byte, opts any) ([]byte, error) {
	if w.direct() {
		// ProvideCEK already agreed on the CEK.
		return []byte{}, nil
	}
	kek, err := w.deriveSender(w.alg.size, []byte(w.alg.name), opts)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(kek)
	return akw.NewKeyWrapper(kek).WrapKey(cek, opts)
}

// UnwrapKey implements [github.com/alonbl/joserfc/keymanage.KeyWrapper].
func (w *keyWrapper) UnwrapKey(data []byte, opts any) ([]byte, error) {
	if w.direct() {
		if len(data) != 0 {
			return nil, fmt.Errorf("ecdhes: %w: encrypted key must be empty", joserr.ErrDecode)
		}
		enc := w.encName(opts)
		if !enc.Available() {
			return nil, fmt.Errorf("ecdhes: %w: %s", joserr.ErrUnknownAlgorithm, enc)
		}
		return w.deriveRecipient(enc.New().CEKSize(), []byte(enc), opts)
	}
	kek, err := w.deriveRecipient(w.alg.size, []byte(w.alg.name), opts)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(kek)
	return akw.NewKeyWrapper(kek).UnwrapKey(data, opts)
}

func (w *keyWrapper) encName(opts any) jwa.EncryptionAlgorithm {
	if getter, ok := opts.(encryptionAlgorithmGetter); ok {
		return getter.EncryptionAlgorithm()
	}
	return ""
}

// deriveSender derives the key material on the wrapping side. The
// ephemeral key is generated on the curve of the recipient key and
// published through the epk header parameter; a static sender key
// provided by the operation takes its place.
func (w *keyWrapper) deriveSender(size int, algID []byte, opts any) ([]byte, error) {
	if !w.canDerive {
		return nil, fmt.Errorf("ecdhes: %w: key derivation is not allowed", joserr.ErrUnsupportedKeyOperation)
	}
	setter, ok := opts.(ephemeralPublicKeySetter)
	if !ok {
		return nil, errors.New("ecdhes: SetEphemeralPublicKey not found")
	}

	var ephemeral crypto.PrivateKey
	if getter, ok := opts.(senderKeyGetter); ok {
		ephemeral = getter.SenderKey()
	}
	if ephemeral == nil {
		var err error
		ephemeral, err = generateEphemeral(w.pub)
		if err != nil {
			return nil, err
		}
	}

	z, err := deriveZ(ephemeral, w.pub)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(z)

	epk, err := ephemeralJWK(ephemeral)
	if err != nil {
		return nil, err
	}
	setter.SetEphemeralPublicKey(epk)

	return concatKDF(z, algID, size, opts)
}

// deriveRecipient derives the key material on the unwrapping side
// from the private key and the epk header parameter.
func (w *keyWrapper) deriveRecipient(size int, algID []byte, opts any) ([]byte, error) {
	if !w.canDerive {
		return nil, fmt.Errorf("ecdhes: %w: key derivation is not allowed", joserr.ErrUnsupportedKeyOperation)
	}
	if w.priv == nil {
		return nil, fmt.Errorf("ecdhes: %w: private key is required", joserr.ErrInvalidKey)
	}
	getter, ok := opts.(ephemeralPublicKeyGetter)
	if !ok {
		return nil, fmt.Errorf("ecdhes: %w: epk", joserr.ErrMissingHeader)
	}
	epk := getter.EphemeralPublicKey()
	if epk == nil {
		return nil, fmt.Errorf("ecdhes: %w: epk", joserr.ErrMissingHeader)
	}

	z, err := deriveZ(w.priv, epk.PublicKey())
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(z)

	return concatKDF(z, algID, size, opts)
}

func concatKDF(z, algID []byte, size int, opts any) ([]byte, error) {
	var apu, apv []byte
	if getter, ok := opts.(agreementPartyInfoGetter); ok {
		apu = getter.AgreementPartyUInfo()
		apv = getter.AgreementPartyVInfo()
	}

	var pubinfo [4]byte
	bits := size * 8
	pubinfo[0] = byte(bits >> 24)
	pubinfo[1] = byte(bits >> 16)
	pubinfo[2] = byte(bits >> 8)
	pubinfo[3] = byte(bits)

	r := newKDF(crypto.SHA256, z, algID, apu, apv, pubinfo[:], []byte{})
	key := make([]byte, size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func generateEphemeral(pub crypto.PublicKey) (crypto.PrivateKey, error) {
	switch pub := pub.(type) {
	case *ecdsa.PublicKey:
		priv, err := ecdsa.GenerateKey(pub.Curve, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("ecdhes: failed to generate ephemeral key: %w", err)
		}
		return priv, nil
	case *ecdh.PublicKey:
		priv, err := pub.Curve().GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("ecdhes: failed to generate ephemeral key: %w", err)
		}
		return priv, nil
	case x448.PublicKey:
		_, priv, err := x448.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("ecdhes: failed to generate ephemeral key: %w", err)
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("ecdhes: %w: unsupported key type %T", joserr.ErrInvalidKey, pub)
	}
}

func ephemeralJWK(priv crypto.PrivateKey) (*jwk.Key, error) {
	type publicKeyer interface {
		Public() crypto.PublicKey
	}
	p, ok := priv.(publicKeyer)
	if !ok {
		if k, ok := priv.(*ecdh.PrivateKey); ok {
			return jwk.NewPublicKey(k.PublicKey())
		}
		return nil, fmt.Errorf("ecdhes: %w: unsupported key type %T", joserr.ErrInvalidKey, priv)
	}
	return jwk.NewPublicKey(p.Public())
}

// deriveZ computes the shared secret between priv and pub.
func deriveZ(priv crypto.PrivateKey, pub crypto.PublicKey) ([]byte, error) {
	switch priv := priv.(type) {
	case *ecdsa.PrivateKey:
		pubkey, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("ecdhes: %w: want *ecdsa.PublicKey but got %T", joserr.ErrInvalidKey, pub)
		}
		crv := priv.Curve
		if pubkey.Curve != crv || !crv.IsOnCurve(pubkey.X, pubkey.Y) {
			return nil, fmt.Errorf("ecdhes: %w: public key must be on the same curve as private key", joserr.ErrInvalidKey)
		}
		z, _ := crv.ScalarMult(pubkey.X, pubkey.Y, priv.D.Bytes())
		size := (crv.Params().BitSize + 7) / 8
		buf := make([]byte, size)
		return z.FillBytes(buf), nil
	case *ecdh.PrivateKey:
		pubkey, ok := pub.(*ecdh.PublicKey)
		if !ok {
			return nil, fmt.Errorf("ecdhes: %w: want *ecdh.PublicKey but got %T", joserr.ErrInvalidKey, pub)
		}
		z, err := priv.ECDH(pubkey)
		if err != nil {
			return nil, fmt.Errorf("ecdhes: %w: %v", joserr.ErrInvalidKey, err)
		}
		return z, nil
	case x448.PrivateKey:
		pubkey, ok := pub.(x448.PublicKey)
		if !ok {
			return nil, fmt.Errorf("ecdhes: %w: want x448.PublicKey but got %T", joserr.ErrInvalidKey, pub)
		}
		z, err := x448.X448(priv, pubkey)
		if err != nil {
			return nil, fmt.Errorf("ecdhes: %w: %v", joserr.ErrInvalidKey, err)
		}
		return z, nil
	default:
		return nil, fmt.Errorf("ecdhes: %w: unknown private key type: %T", joserr.ErrInvalidKey, priv)
	}
}

// kdf is the Concat KDF defined in NIST SP 800-56A Section 5.8.1.
type kdf struct {
	hash hash.Hash

	z []byte

	// AlgorithmID
	alg []byte

	// PartyUInfo, PartyVInfo
	apu, apv []byte

	// SuppPubInfo, SuppPrivInfo
	pub, priv []byte

	round uint32
	n     int
	buf   []byte
}

func newKDF(hash crypto.Hash, z, alg, apu, apv, pub, priv []byte) *kdf {
	h := hash.New()
	size := h.Size()
	if size < 4 {
		size = 4
	}
	return &kdf{
		z:    z,
		hash: h,
		alg:  alg,
		apu:  apu,
		apv:  apv,
		pub:  pub,
		priv: priv,
		buf:  make([]byte, size),
	}
}

func (r *kdf) Read(data []byte) (n int, err error) {
	if r.n == 0 {
		r.round++
		r.hash.Reset()

		r.putUint32(r.round)
		r.hash.Write(r.z)
		r.putUint32(uint32(len(r.alg)))
		r.hash.Write(r.alg)
		r.putUint32(uint32(len(r.apu)))
		r.hash.Write(r.apu)
		r.putUint32(uint32(len(r.apv)))
		r.hash.Write(r.apv)
		r.hash.Write(r.pub)
		r.hash.Write(r.priv)

		r.buf = r.hash.Sum(r.buf[:0])
		r.n = len(r.buf)
	}
	n = copy(data, r.buf[len(r.buf)-r.n:])
	r.n -= n
	return
}

func (r *kdf) putUint32(v uint32) {
	var buf [4]byte
	buf[0] = byte(v >> 24)
	buf[1] = byte(v >> 16)
	buf[2] = byte(v >> 8)
	buf[3] = byte(v)
	r.hash.Write(buf[:])
}
