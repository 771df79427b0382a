package ecdhes

import (
	"encoding/base64"
	"testing"

	_ "github.com/alonbl/joserfc/jwa/agcm" // for A128GCM

	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk"
)

// stubHeader carries the header parameters the key agreement reads.
type stubHeader struct {
	enc      jwa.EncryptionAlgorithm
	epk      *jwk.Key
	apu, apv []byte
}

func (h *stubHeader) EncryptionAlgorithm() jwa.EncryptionAlgorithm { return h.enc }
func (h *stubHeader) EphemeralPublicKey() *jwk.Key                 { return h.epk }
func (h *stubHeader) SetEphemeralPublicKey(epk *jwk.Key)           { h.epk = epk }
func (h *stubHeader) AgreementPartyUInfo() []byte                  { return h.apu }
func (h *stubHeader) AgreementPartyVInfo() []byte                  { return h.apv }

// RFC 7518 Appendix C. Example ECDH-ES Key Agreement Computation.
func TestDeriveRFC7518AppendixC(t *testing.T) {
	bob, err := jwk.ParseKey([]byte(`{
		"kty": "EC",
		"crv": "P-256",
		"x": "weNJy2HscCSM6AEDTDg04biOvhFhyyWvOHQfeF_PxMQ",
		"y": "e8lnCO-AlStT-NJVX-crhB7QRYhiix03illJOVAOyck",
		"d": "VEmDZpDXXK8p8N0Cndsxs924q6nS1RXFASRl6BfUqdw"
	}`))
	if err != nil {
		t.Fatal(err)
	}
	epk, err := jwk.ParseKey([]byte(`{
		"kty": "EC",
		"crv": "P-256",
		"x": "gI0GAILBdu7T53akrFmMyGcsF3n5dO7MmwNBHKW5SV0",
		"y": "SLW_xSffzlPWrHEVI30DHM_4egVwt3NQqeUD7nMFpps"
	}`))
	if err != nil {
		t.Fatal(err)
	}

	opts := &stubHeader{
		enc: jwa.A128GCM,
		epk: epk,
		apu: []byte("Alice"),
		apv: []byte("Bob"),
	}
	w := New().NewKeyWrapper(bob)
	cek, err := w.UnwrapKey([]byte{}, opts)
	if err != nil {
		t.Fatal(err)
	}

	want := "VqqN6vgjbSBcIijNcacQGg"
	got := base64.RawURLEncoding.EncodeToString(cek)
	if got != want {
		t.Errorf("want %s, got %s", want, got)
	}
}

// the sender derives the same CEK the recipient unwraps, for every
// supported key kind.
func TestAgreementRoundTrip(t *testing.T) {
	curves := []jwa.EllipticCurve{jwa.P256, jwa.P384, jwa.P521, jwa.Secp256k1, jwa.X25519, jwa.X448}
	for _, crv := range curves {
		var recipient *jwk.Key
		var err error
		switch crv {
		case jwa.X25519, jwa.X448:
			recipient, err = jwk.GenerateOKPKey(crv)
		default:
			recipient, err = jwk.GenerateECKey(crv)
		}
		if err != nil {
			t.Fatal(err)
		}

		sender := &stubHeader{
			enc: jwa.A128GCM,
			apu: []byte("Alice"),
			apv: []byte("Bob"),
		}
		w := New().NewKeyWrapper(recipient.PublicOnly())
		provider := w.(interface {
			ProvideCEK(size int, opts any) ([]byte, error)
		})
		cek, err := provider.ProvideCEK(16, sender)
		if err != nil {
			t.Fatalf("%s: %v", crv, err)
		}
		if sender.epk == nil {
			t.Fatalf("%s: the ephemeral public key was not published", crv)
		}

		receiver := &stubHeader{
			enc: jwa.A128GCM,
			epk: sender.epk,
			apu: []byte("Alice"),
			apv: []byte("Bob"),
		}
		unwrapped, err := New().NewKeyWrapper(recipient).UnwrapKey([]byte{}, receiver)
		if err != nil {
			t.Fatalf("%s: %v", crv, err)
		}
		if base64.RawURLEncoding.EncodeToString(cek) != base64.RawURLEncoding.EncodeToString(unwrapped) {
			t.Errorf("%s: the derived keys differ", crv)
		}
	}
}

// the key wrapping variants agree on a KEK and wrap the CEK with it.
func TestKeyWrapRoundTrip(t *testing.T) {
	recipient, err := jwk.GenerateECKey(jwa.P256)
	if err != nil {
		t.Fatal(err)
	}
	cek := make([]byte, 32)
	for i := range cek {
		cek[i] = byte(i)
	}

	sender := &stubHeader{enc: jwa.A256GCM}
	data, err := NewA128KW().NewKeyWrapper(recipient.PublicOnly()).WrapKey(cek, sender)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("the wrapped key is empty")
	}

	receiver := &stubHeader{enc: jwa.A256GCM, epk: sender.epk}
	unwrapped, err := NewA128KW().NewKeyWrapper(recipient).UnwrapKey(data, receiver)
	if err != nil {
		t.Fatal(err)
	}
	if string(cek) != string(unwrapped) {
		t.Error("the unwrapped CEK differs")
	}
}
