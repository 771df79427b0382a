package jwe

import (
	"bytes"
	"crypto"
	"encoding/base64"
	"errors"
	"testing"

	_ "github.com/alonbl/joserfc/jwa/acbc"
	_ "github.com/alonbl/joserfc/jwa/agcm"
	_ "github.com/alonbl/joserfc/jwa/agcmkw"
	_ "github.com/alonbl/joserfc/jwa/akw"
	_ "github.com/alonbl/joserfc/jwa/deflate"
	_ "github.com/alonbl/joserfc/jwa/dir"
	_ "github.com/alonbl/joserfc/jwa/ecdhes"
	_ "github.com/alonbl/joserfc/jwa/pbes2"
	_ "github.com/alonbl/joserfc/jwa/rsaoaep"
	_ "github.com/alonbl/joserfc/jwa/rsapkcs1v15"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/jwk"
)

func newProtected(alg jwa.KeyManagementAlgorithm, enc jwa.EncryptionAlgorithm) *Header {
	h := NewHeader()
	h.SetAlgorithm(alg)
	h.SetEncryptionAlgorithm(enc)
	return h
}

// RFC 7516 Appendix A.1. Example JWE using RSAES-OAEP and AES GCM.
func TestDecryptCompactRFC7516A1(t *testing.T) {
	raw := `eyJhbGciOiJSU0EtT0FFUCIsImVuYyI6IkEyNTZHQ00ifQ.` +
		`OKOawDo13gRp2ojaHV7LFpZcgV7T6DVZKTyKOMTYUmKoTCVJRgckCL9kiMT03JGe` +
		`ipsEdY3mx_etLbbWSrFr05kLzcSr4qKAq7YN7e9jwQRb23nfa6c9d-StnImGyFDb` +
		`Sv04uVuxIp5Zms1gNxKKK2Da14B8S4rzVRltdYwam_lDp5XnZAYpQdb76FdIKLaV` +
		`mqgfwX7XWRxv2322i-vDxRfqNzo_tETKzpVLzfiwQyeyPGLBIO56YJ7eObdv0je8` +
		`1860ppamavo35UgoRdbYaBcoh9QcfylQr66oc6vFWXRcZ_ZT2LawVCWTIy3brGPi` +
		`6UklfCpIMfIjf7iGdXKHzg.` +
		`48V1_ALb6US04U3b.` +
		`5eym8TW_c8SuK0ltJ3rpYIzOeDQz7TALvtu6UG9oMo4vpzs9tX_EFShS8iB7j6ji` +
		`SdiwkIr3ajwQzaBtQD_A.` +
		`XFBoMYUZodetZdvTiFvSkQ`
	rawKey := `{"kty":"RSA",` +
		`"n":"oahUIoWw0K0usKNuOR6H4wkf4oBUXHTxRvgb48E-BVvxkeDNjbC4he8rUW` +
		`cJoZmds2h7M70imEVhRU5djINXtqllXI4DFqcI1DgjT9LewND8MW2Krf3S` +
		`psk_ZkoFnilakGygTwpZ3uesH-PFABNIUYpOiN15dsQRkgr0vEhxN92i2a` +
		`sbOenSZeyaxziK72UwxrrKoExv6kc5twXTq4h-QChLOln0_mtUZwfsRaMS` +
		`tPs6mS6XrgxnxbWhojf663tuEQueGC-FCMfra36C9knDFGzKsNa7LZK2dj` +
		`YgyD3JR_MB_4NUJW_TqOQtwHYbxevoJArm-L5StowjzGy-_bq6Gw",` +
		`"e":"AQAB",` +
		`"d":"kLdtIj6GbDks_ApCSTYQtelcNttlKiOyPzMrXHeI-yk1F7-kpDxY4-WY5N` +
		`WV5KntaEeXS1j82E375xxhWMHXyvjYecPT9fpwR_M9gV8n9Hrh2anTpTD9` +
		`3Dt62ypW3yDsJzBnTnrYu1iwWRgBKrEYY46qAZIrA2xAwnm2X7uGR1hghk` +
		`qDp0Vqj3kbSCz1XyfCs6_LehBwtxHIyh8Ripy40p24moOAbgxVw3rxT_vl` +
		`t3UVe4WO3JkJOzlpUf-KTVI2Ptgm-dARxTEtE-id-4OJr0h-K-VFs3VSnd` +
		`VTIznSxfyrj8ILL6MG_Uv8YAu7VILSB3lOW085-4qE3DzgrTjgyQ",` +
		`"p":"1r52Xk46c-LsfB5P442p7atdPUrxQSy4mti_tZI3Mgf2EuFVbUoDBvaRQ-` +
		`SWxkbkmoEzL7JXroSBjSrK3YIQgYdMgyAEPTPjXv_hI2_1eTSPVZfzL0lf` +
		`fNn03IXqWF5MDFuoUYE0hzb2vhrlN_rKrbfDIwUbTrjjgieRbwC6Cl0",` +
		`"q":"wLb35x7hmQWZsWJmB_vle87ihgZ19S8lBEROLIsZG4ayZVe9Hi9gDVCOBm` +
		`UDdaDYVTSNx_8Fyw1YYa9XGrGnDew00J28cRUoeBB_jKI1oma0Orv1T9aX` +
		`IWxKwd4gvxFImOWr3QRL9KEBRzk2RatUBnmDZJTIAfwTs0g68UZHvtc",` +
		`"dp":"ZK-YwE7diUh0qR1tR7w8WHtolDx3MZ_OTowiFvgfeQ3SiresXjm9gZ5KL` +
		`hMXvo-uz-KUJWDxS5pFQ_M0evdo1dKiRTjVw_x4NyqyXPM5nULPkcpU827` +
		`rnpZzAJKpdhWAgqrXGKAECQH0Xt4taznjnd_zVpAmZZq60WPMBMfKcuE",` +
		`"dq":"Dq0gfgJ1DdFGXiLvQEZnuKEN0UUmsJBxkjydc3j4ZYdBiMRAy86x0vHCj` +
		`ywcMlYYg4yoC4YZa9hNVcsjqA3FeiL19rk8g6Qn29Tt0cj8qqyFpz9vNDB` +
		`UfCAiJVeESOjJDZPYHdHY8v1b-o-Z2X5tvLx-TCekf7oxyeKDUqKWjis",` +
		`"qi":"VIMpMYbPf47dT1w_zDUXfPimsSegnMOA1zTaX7aGk_8urY6R8-ZW1FxU7` +
		`AlWAyLWybqq6t16VFd7hQd0y6flUK4SlOydB61gwanOsXGOAOv82cHq0E3` +
		`eL4HrtZkUuKvnPrMnsUUFlfUdybVzxyjz9JF_XyaY14ardLSjf4L_FNY"` +
		`}`
	key, err := jwk.ParseKey([]byte(rawKey))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecryptCompact([]byte(raw), key)
	if err != nil {
		t.Fatal(err)
	}
	want := "The true sign of intelligence is not knowledge but imagination."
	if string(msg.Plaintext()) != want {
		t.Errorf("want %q, got %q", want, msg.Plaintext())
	}
}

func TestCompactRoundTrip(t *testing.T) {
	tests := []struct {
		alg  jwa.KeyManagementAlgorithm
		enc  jwa.EncryptionAlgorithm
		key  func(t *testing.T) *jwk.Key
		asym bool
	}{
		{jwa.A128KW, jwa.A128CBC_HS256, func(t *testing.T) *jwk.Key { return genOct(t, 16) }, false},
		{jwa.A192KW, jwa.A192GCM, func(t *testing.T) *jwk.Key { return genOct(t, 24) }, false},
		{jwa.A256KW, jwa.A256CBC_HS512, func(t *testing.T) *jwk.Key { return genOct(t, 32) }, false},
		{jwa.Direct, jwa.A256GCM, func(t *testing.T) *jwk.Key { return genOct(t, 32) }, false},
		{jwa.Direct, jwa.A128CBC_HS256, func(t *testing.T) *jwk.Key { return genOct(t, 32) }, false},
		{jwa.A128GCMKW, jwa.A128GCM, func(t *testing.T) *jwk.Key { return genOct(t, 16) }, false},
		{jwa.A256GCMKW, jwa.A192GCM, func(t *testing.T) *jwk.Key { return genOct(t, 32) }, false},
		{jwa.RSA_OAEP, jwa.A256GCM, genRSA, true},
		{jwa.RSA_OAEP_256, jwa.A128CBC_HS256, genRSA, true},
		{jwa.ECDH_ES, jwa.A128GCM, func(t *testing.T) *jwk.Key { return genEC(t, jwa.P256) }, true},
		{jwa.ECDH_ES, jwa.A256CBC_HS512, func(t *testing.T) *jwk.Key { return genOKP(t, jwa.X25519) }, true},
		{jwa.ECDH_ES_A128KW, jwa.A128GCM, func(t *testing.T) *jwk.Key { return genEC(t, jwa.P384) }, true},
		{jwa.ECDH_ES_A256KW, jwa.A256GCM, func(t *testing.T) *jwk.Key { return genOKP(t, jwa.X448) }, true},
	}
	plaintexts := [][]byte{
		nil,
		[]byte("i"),
		[]byte("The true sign of intelligence is not knowledge but imagination."),
	}
	for _, tt := range tests {
		t.Run(string(tt.alg)+"/"+string(tt.enc), func(t *testing.T) {
			key := tt.key(t)
			// asymmetric recipients encrypt with the public form only
			encryptKey := key
			if tt.asym {
				encryptKey = key.PublicOnly()
			}
			for _, plaintext := range plaintexts {
				data, err := EncryptCompact(newProtected(tt.alg, tt.enc), plaintext, encryptKey)
				if err != nil {
					t.Fatal(err)
				}
				msg, err := DecryptCompact(data, key)
				if err != nil {
					t.Fatal(err)
				}
				if !bytes.Equal(plaintext, msg.Plaintext()) {
					t.Errorf("want %q, got %q", plaintext, msg.Plaintext())
				}
			}
		})
	}
}

func genOct(t *testing.T, size int) *jwk.Key {
	t.Helper()
	key, err := jwk.GenerateOctKey(size)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func genRSA(t *testing.T) *jwk.Key {
	t.Helper()
	key, err := jwk.GenerateRSAKey(2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func genEC(t *testing.T, crv jwa.EllipticCurve) *jwk.Key {
	t.Helper()
	key, err := jwk.GenerateECKey(crv)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func genOKP(t *testing.T, crv jwa.EllipticCurve) *jwk.Key {
	t.Helper()
	key, err := jwk.GenerateOKPKey(crv)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestECDHESBitFlip(t *testing.T) {
	key := genEC(t, jwa.P256)
	data, err := EncryptCompact(newProtected(jwa.ECDH_ES, jwa.A128GCM), []byte("hello"), key.PublicOnly())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptCompact(data, key); err != nil {
		t.Fatal(err)
	}

	// flipping one bit of the ciphertext fails the tag check
	parts := bytes.Split(data, []byte("."))
	ciphertext, err := base64.RawURLEncoding.DecodeString(string(parts[3]))
	if err != nil {
		t.Fatal(err)
	}
	ciphertext[0] ^= 0x01
	parts[3] = []byte(base64.RawURLEncoding.EncodeToString(ciphertext))
	if _, err := DecryptCompact(bytes.Join(parts, []byte(".")), key); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}
}

func TestCompression(t *testing.T) {
	key := genOct(t, 16)
	protected := newProtected(jwa.A128KW, jwa.A128GCM)
	protected.SetCompressionAlgorithm(jwa.DEF)
	plaintext := bytes.Repeat([]byte("ho hum "), 1024)

	data, err := EncryptCompact(protected, plaintext, key)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecryptCompact(data, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plaintext, msg.Plaintext()) {
		t.Error("the content does not round trip")
	}
}

func TestUnknownCompression(t *testing.T) {
	key := genOct(t, 16)
	protected := newProtected(jwa.A128KW, jwa.A128GCM)
	protected.SetCompressionAlgorithm("LZW")
	if _, err := EncryptCompact(protected, []byte("hi"), key); !errors.Is(err, joserr.ErrUnknownAlgorithm) {
		t.Errorf("want ErrUnknownAlgorithm, got %v", err)
	}
}

func TestRSA1_5RequiresAllowlist(t *testing.T) {
	key := genRSA(t)
	protected := newProtected(jwa.RSA1_5, jwa.A128CBC_HS256)
	if _, err := EncryptCompact(protected, []byte("hi"), key); !errors.Is(err, joserr.ErrAlgorithmNotAllowed) {
		t.Errorf("want ErrAlgorithmNotAllowed, got %v", err)
	}

	data, err := EncryptCompact(protected, []byte("hi"), key, WithAlgorithms(jwa.RSA1_5))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecryptCompact(data, key, WithAlgorithms(jwa.RSA1_5))
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Plaintext()) != "hi" {
		t.Errorf("want hi, got %q", msg.Plaintext())
	}
}

func TestPBES2(t *testing.T) {
	password, err := jwk.NewPrivateKey([]byte("entrap_o-peter_long-credit_tun"))
	if err != nil {
		t.Fatal(err)
	}
	protected := newProtected(jwa.PBES2_HS256_A128KW, jwa.A128CBC_HS256)

	// excluded from the default allowlist
	if _, err := EncryptCompact(protected, []byte("hi"), password); !errors.Is(err, joserr.ErrAlgorithmNotAllowed) {
		t.Errorf("want ErrAlgorithmNotAllowed, got %v", err)
	}

	data, err := EncryptCompact(protected, []byte("hi"), password, WithAlgorithms(jwa.PBES2_HS256_A128KW))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecryptCompact(data, password, WithAlgorithms(jwa.PBES2_HS256_A128KW))
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Plaintext()) != "hi" {
		t.Errorf("want hi, got %q", msg.Plaintext())
	}

	// a count below the policy floor is rejected
	low := newProtected(jwa.PBES2_HS256_A128KW, jwa.A128CBC_HS256)
	low.SetPBES2Count(100)
	if _, err := EncryptCompact(low, []byte("hi"), password, WithAlgorithms(jwa.PBES2_HS256_A128KW)); !errors.Is(err, joserr.ErrInvalidHeaderValue) {
		t.Errorf("want ErrInvalidHeaderValue, got %v", err)
	}
}

func TestJSONMultipleRecipients(t *testing.T) {
	key1 := genOct(t, 16)
	key1.SetKeyID("key1")
	key2 := genOct(t, 16)
	key2.SetKeyID("key2")

	protected := NewHeader()
	protected.SetEncryptionAlgorithm(jwa.A128GCM)
	unprotected := NewHeader()
	unprotected.SetAlgorithm(jwa.A128KW)

	h1 := NewHeader()
	h1.SetKeyID("key1")
	h2 := NewHeader()
	h2.SetKeyID("key2")

	plaintext := []byte("fan out")
	data, err := EncryptJSON(protected, unprotected, plaintext, []RecipientMember{
		{Header: h1, Key: key1},
		{Header: h2, Key: key2},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []*jwk.Key{key1, key2} {
		msg, err := DecryptJSON(data, key)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(plaintext, msg.Plaintext()) {
			t.Errorf("want %q, got %q", plaintext, msg.Plaintext())
		}
	}

	// a stranger key fails
	stranger := genOct(t, 16)
	if _, err := DecryptJSON(data, stranger); err == nil {
		t.Error("want an error for a stranger key")
	}
}

func TestJSONExternalAAD(t *testing.T) {
	key := genOct(t, 32)
	protected := newProtected(jwa.A256KW, jwa.A128CBC_HS256)
	aad := []byte("The Royal Gate")

	data, err := EncryptJSON(protected, nil, []byte("hello"), []RecipientMember{{Key: key}},
		WithAdditionalAuthenticatedData(aad))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecryptJSON(data, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Plaintext()) != "hello" {
		t.Errorf("want hello, got %q", msg.Plaintext())
	}
	if !bytes.Equal(aad, msg.AdditionalAuthenticatedData()) {
		t.Error("the external aad is lost")
	}

	// tampering the aad fails the tag check
	tampered := bytes.Replace(data, []byte(`"aad"`), []byte(`"xad"`), 1)
	if _, err := DecryptJSON(tampered, key); err == nil {
		t.Error("want an error for tampered aad")
	}
}

func TestDirectModeSingleRecipient(t *testing.T) {
	key1 := genOct(t, 32)
	key2 := genOct(t, 32)
	protected := newProtected(jwa.Direct, jwa.A256GCM)
	_, err := EncryptJSON(protected, nil, []byte("hi"), []RecipientMember{
		{Key: key1},
		{Key: key2},
	})
	if !errors.Is(err, joserr.ErrInvalidHeaderValue) {
		t.Errorf("want ErrInvalidHeaderValue, got %v", err)
	}
}

func TestExtractCompactInvalid(t *testing.T) {
	inputs := []string{
		"",
		"a.b",
		"a.b.c.d",
		"a.b.c.d.e.f",
	}
	for _, in := range inputs {
		if _, err := ExtractCompact([]byte(in)); !errors.Is(err, joserr.ErrDecode) {
			t.Errorf("%q: want ErrDecode, got %v", in, err)
		}
	}
}

func TestExtractJSONNoRecipients(t *testing.T) {
	data := []byte(`{"protected":"e30","iv":"","ciphertext":"","tag":"","recipients":[]}`)
	if _, err := ExtractJSON(data); !errors.Is(err, joserr.ErrDecode) {
		t.Errorf("want ErrDecode, got %v", err)
	}
}

func TestDirectKeySizeMismatch(t *testing.T) {
	key := genOct(t, 16)
	protected := newProtected(jwa.Direct, jwa.A256GCM)
	if _, err := EncryptCompact(protected, []byte("hi"), key); !errors.Is(err, joserr.ErrInvalidKey) {
		t.Errorf("want ErrInvalidKey, got %v", err)
	}
}

func TestSenderKey(t *testing.T) {
	recipient := genEC(t, jwa.P256)
	sender := genEC(t, jwa.P256)

	data, err := EncryptCompact(newProtected(jwa.ECDH_ES, jwa.A128GCM), []byte("hello"),
		recipient.PublicOnly(), WithSenderKey(sender))
	if err != nil {
		t.Fatal(err)
	}

	msg, err := DecryptCompact(data, recipient)
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Plaintext()) != "hello" {
		t.Errorf("want hello, got %q", msg.Plaintext())
	}

	// the published epk is the sender's static public key
	epk := msg.ProtectedHeader().EphemeralPublicKey()
	if epk == nil {
		t.Fatal("epk is missing")
	}
	want, err := sender.Thumbprint(crypto.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	got, err := epk.Thumbprint(crypto.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(want, got) {
		t.Error("the epk is not the sender key")
	}
}
