package jws

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	_ "github.com/alonbl/joserfc/jwa/eddsa"
	_ "github.com/alonbl/joserfc/jwa/es"
	_ "github.com/alonbl/joserfc/jwa/hs"
	_ "github.com/alonbl/joserfc/jwa/none"
	_ "github.com/alonbl/joserfc/jwa/ps"
	_ "github.com/alonbl/joserfc/jwa/rs"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk"
	"github.com/alonbl/joserfc/jwk/jwktypes"
	"github.com/alonbl/joserfc/registry"
)

func octKey(t *testing.T, secret string) *jwk.Key {
	t.Helper()
	key, err := jwk.NewPrivateKey([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func hs256Header() *Header {
	h := NewHeader()
	h.SetAlgorithm(jwa.HS256)
	return h
}

func TestSerializeCompactHS256(t *testing.T) {
	got, err := SerializeCompact(hs256Header(), []byte("i"), octKey(t, "secret"))
	if err != nil {
		t.Fatal(err)
	}
	want := "eyJhbGciOiJIUzI1NiJ9.aQ.ykJjBUzgjyTygc7gjHM8emwLYvpqGRNIQvpTMHfZzI4"
	if string(got) != want {
		t.Errorf("want %s, got %s", want, got)
	}

	msg, err := DeserializeCompact(got, octKey(t, "secret"))
	if err != nil {
		t.Fatal(err)
	}
	payload, err := msg.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "i" {
		t.Errorf("want i, got %q", payload)
	}
}

func TestSerializeCompactEmptyPayload(t *testing.T) {
	data, err := SerializeCompact(hs256Header(), nil, octKey(t, "secret"))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DeserializeCompact(data, octKey(t, "secret"))
	if err != nil {
		t.Fatal(err)
	}
	payload, err := msg.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if len(payload) != 0 {
		t.Errorf("want an empty payload, got %q", payload)
	}
}

func TestSerializeCompactMissingAlg(t *testing.T) {
	h := NewHeader()
	h.SetKeyID("123")
	if _, err := SerializeCompact(h, []byte("i"), octKey(t, "secret")); !errors.Is(err, joserr.ErrMissingHeader) {
		t.Errorf("want ErrMissingHeader, got %v", err)
	}
}

func TestAlgorithmNotAllowed(t *testing.T) {
	h := NewHeader()
	h.SetAlgorithm(jwa.HS512)
	if _, err := SerializeCompact(h, []byte("i"), octKey(t, "secret")); !errors.Is(err, joserr.ErrAlgorithmNotAllowed) {
		t.Errorf("want ErrAlgorithmNotAllowed, got %v", err)
	}

	// the allowlist override enables it
	if _, err := SerializeCompact(h, []byte("i"), octKey(t, "secret"), WithAlgorithms(jwa.HS512)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNoneAlgorithm(t *testing.T) {
	h := NewHeader()
	h.SetAlgorithm(jwa.None)

	// rejected unless explicitly allowed
	if _, err := SerializeCompact(h, []byte("i"), octKey(t, "secret")); !errors.Is(err, joserr.ErrAlgorithmNotAllowed) {
		t.Errorf("want ErrAlgorithmNotAllowed, got %v", err)
	}

	data, err := SerializeCompact(h, []byte("i"), octKey(t, "secret"), WithAlgorithms(jwa.None))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(data, []byte(".")) {
		t.Errorf("want an empty signature segment, got %s", data)
	}

	if _, err := DeserializeCompact(data, octKey(t, "secret")); !errors.Is(err, joserr.ErrAlgorithmNotAllowed) {
		t.Errorf("want ErrAlgorithmNotAllowed, got %v", err)
	}
	if _, err := DeserializeCompact(data, octKey(t, "secret"), WithAlgorithms(jwa.None)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// a none token with a non-empty signature must not verify
	tampered := append(append([]byte(nil), data...), []byte(base64.RawURLEncoding.EncodeToString([]byte("abc")))...)
	if _, err := DeserializeCompact(tampered, octKey(t, "secret"), WithAlgorithms(jwa.None)); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}
}

func TestRSACrossKey(t *testing.T) {
	key1, err := jwk.GenerateRSAKey(2048)
	if err != nil {
		t.Fatal(err)
	}
	key2, err := jwk.GenerateRSAKey(2048)
	if err != nil {
		t.Fatal(err)
	}

	h := NewHeader()
	h.SetAlgorithm(jwa.RS256)
	data, err := SerializeCompact(h, []byte("i"), key1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DeserializeCompact(data, key2); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}

	h = NewHeader()
	h.SetAlgorithm(jwa.PS256)
	data, err = SerializeCompact(h, []byte("i"), key1, WithAlgorithms(jwa.PS256))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DeserializeCompact(data, key2, WithAlgorithms(jwa.PS256)); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}
}

func TestECIncorrectCurve(t *testing.T) {
	key, err := jwk.GenerateECKey(jwa.P521)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHeader()
	h.SetAlgorithm(jwa.ES256)
	if _, err := SerializeCompact(h, []byte("i"), key); !errors.Is(err, joserr.ErrInvalidKey) {
		t.Errorf("want ErrInvalidKey, got %v", err)
	}
}

func TestECTamperedSignature(t *testing.T) {
	key1, err := jwk.GenerateECKey(jwa.P256)
	if err != nil {
		t.Fatal(err)
	}
	key2, err := jwk.GenerateECKey(jwa.P256)
	if err != nil {
		t.Fatal(err)
	}

	h := NewHeader()
	h.SetAlgorithm(jwa.ES256)
	data, err := SerializeCompact(h, []byte("i"), key1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DeserializeCompact(data, key1); err != nil {
		t.Fatal(err)
	}

	// verifying with the wrong key fails
	if _, err := DeserializeCompact(data, key2); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}

	// replacing the signature segment fails
	parts := strings.Split(string(data), ".")
	bad := strings.Join(parts[:2], ".") + "." + base64.RawURLEncoding.EncodeToString([]byte("abc"))
	if _, err := DeserializeCompact([]byte(bad), key1); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}

	// tampering the payload fails
	bad = parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte("j")) + "." + parts[2]
	if _, err := DeserializeCompact([]byte(bad), key1); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}
}

func TestES256K(t *testing.T) {
	key, err := jwk.GenerateECKey(jwa.Secp256k1)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHeader()
	h.SetAlgorithm(jwa.ES256K)
	data, err := SerializeCompact(h, []byte("i"), key, WithAlgorithms(jwa.ES256K))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DeserializeCompact(data, key, WithAlgorithms(jwa.ES256K)); err != nil {
		t.Fatal(err)
	}
}

func TestEdDSA(t *testing.T) {
	for _, crv := range []jwa.EllipticCurve{jwa.Ed25519, jwa.Ed448} {
		key, err := jwk.GenerateOKPKey(crv)
		if err != nil {
			t.Fatal(err)
		}
		h := NewHeader()
		h.SetAlgorithm(jwa.EdDSA)
		data, err := SerializeCompact(h, []byte("i"), key, WithAlgorithms(jwa.EdDSA))
		if err != nil {
			t.Fatalf("%s: %v", crv, err)
		}
		if _, err := DeserializeCompact(data, key, WithAlgorithms(jwa.EdDSA)); err != nil {
			t.Fatalf("%s: %v", crv, err)
		}
	}
}

func TestCriticalHeader(t *testing.T) {
	h := hs256Header()
	h.SetCritical([]string{"kid"})
	if _, err := SerializeCompact(h, []byte("i"), octKey(t, "secret")); !errors.Is(err, joserr.ErrCriticalHeader) {
		t.Errorf("want ErrCriticalHeader, got %v", err)
	}

	h = hs256Header()
	h.SetKeyID("1")
	h.SetCritical([]string{"kid"})
	if _, err := SerializeCompact(h, []byte("i"), octKey(t, "secret")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExtraHeader(t *testing.T) {
	h := hs256Header()
	h.Set("extra", "hi")
	if _, err := SerializeCompact(h, []byte("i"), octKey(t, "secret")); !errors.Is(err, joserr.ErrInvalidHeaderValue) {
		t.Errorf("want ErrInvalidHeaderValue, got %v", err)
	}

	// bypass the strict check
	lax := &Registry{Lax: true}
	if _, err := SerializeCompact(h, []byte("i"), octKey(t, "secret"), WithRegistry(lax)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// or register the parameter
	extra := &Registry{
		HeaderRegistry: map[string]registry.Parameter{
			"extra": {Description: "Extra header", Type: registry.TypeString},
		},
	}
	if _, err := SerializeCompact(h, []byte("i"), octKey(t, "secret"), WithRegistry(extra)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestKeyPolicy(t *testing.T) {
	t.Run("use", func(t *testing.T) {
		key := octKey(t, "secret")
		key.SetPublicKeyUse(jwktypes.KeyUseEnc)
		if _, err := SerializeCompact(hs256Header(), []byte("i"), key); !errors.Is(err, joserr.ErrUnsupportedKeyUse) {
			t.Errorf("want ErrUnsupportedKeyUse, got %v", err)
		}
	})
	t.Run("alg", func(t *testing.T) {
		key := octKey(t, "secret")
		key.SetAlgorithm("HS512")
		if _, err := SerializeCompact(hs256Header(), []byte("i"), key); !errors.Is(err, joserr.ErrUnsupportedKeyAlgorithm) {
			t.Errorf("want ErrUnsupportedKeyAlgorithm, got %v", err)
		}
	})
	t.Run("key_ops", func(t *testing.T) {
		key := octKey(t, "secret")
		key.SetKeyOperations([]jwktypes.KeyOp{jwktypes.KeyOpVerify})
		if _, err := SerializeCompact(hs256Header(), []byte("i"), key); !errors.Is(err, joserr.ErrUnsupportedKeyOperation) {
			t.Errorf("want ErrUnsupportedKeyOperation, got %v", err)
		}
	})
}

func TestExtractCompactInvalid(t *testing.T) {
	inputs := []string{
		"",
		"onlyonesegment",
		"two.segments",
		"too.many.seg.ments",
		"!!!.aQ.c2ln",
	}
	for _, in := range inputs {
		if _, err := ExtractCompact([]byte(in)); !errors.Is(err, joserr.ErrDecode) {
			t.Errorf("%q: want ErrDecode, got %v", in, err)
		}
	}
}

func TestJSONSerialization(t *testing.T) {
	key1 := octKey(t, "the first shared secret value")
	key1.SetKeyID("key1")
	key2, err := jwk.GenerateECKey(jwa.P256)
	if err != nil {
		t.Fatal(err)
	}
	key2.SetKeyID("key2")

	h1 := hs256Header()
	h1.SetKeyID("key1")
	h2 := NewHeader()
	h2.SetAlgorithm(jwa.ES256)
	h2.SetKeyID("key2")

	payload := []byte("hello json")
	data, err := SerializeJSON(payload, []Member{
		{Protected: h1, Key: key1},
		{Protected: h2, Key: key2},
	})
	if err != nil {
		t.Fatal(err)
	}

	// a key set resolves each signature by kid
	set := &jwk.Set{Keys: []*jwk.Key{key1, key2}}
	msg, err := DeserializeJSON(data, set, WithVerifyAll())
	if err != nil {
		t.Fatal(err)
	}
	got, err := msg.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(payload, got) {
		t.Errorf("want %q, got %q", payload, got)
	}
	for i, s := range msg.Signatures {
		if !s.Verified() {
			t.Errorf("signature %d is not verified", i)
		}
	}

	// a single key verifies its own signature only
	msg, err = DeserializeJSON(data, key2)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Signatures[0].Verified() || !msg.Signatures[1].Verified() {
		t.Error("unexpected per-signature results")
	}
}

func TestJSONFlattened(t *testing.T) {
	key := octKey(t, "another shared secret value")
	data, err := SerializeJSON([]byte("flat"), []Member{{Protected: hs256Header(), Key: key}})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(data, []byte(`"signatures"`)) {
		t.Error("a single signature should use the flattened form")
	}
	msg, err := DeserializeJSON(data, key)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := msg.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "flat" {
		t.Errorf("want flat, got %q", payload)
	}
}

func TestHeaderImmutability(t *testing.T) {
	// verification must run over the received header bytes; a token
	// with an equivalent but differently encoded header must fail.
	key := octKey(t, "secret")
	data, err := SerializeCompact(hs256Header(), []byte("i"), key)
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(string(data), ".")
	reencoded := base64.RawURLEncoding.EncodeToString([]byte(`{"alg": "HS256"}`))
	bad := reencoded + "." + parts[1] + "." + parts[2]
	if _, err := DeserializeCompact([]byte(bad), key); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}
}
