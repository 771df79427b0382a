package jwk

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/cloudflare/circl/sign/ed448"

	"github.com/alonbl/joserfc/internal/jsonutils"
	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/x448"
)

// Thumbprint computes the thumbprint of the key defined in RFC 7638.
//
// Only the required members of the key type contribute to the hash;
// the JSON encoding is the lexicographically ordered, whitespace-free
// form the RFC prescribes.
func (key *Key) Thumbprint(h crypto.Hash) ([]byte, error) {
	e := jsonutils.NewEncoder(make(map[string]any, 4))
	switch {
	case key.kty == jwa.Oct:
		k, ok := key.priv.([]byte)
		if !ok {
			return nil, fmt.Errorf("jwk: thumbprint: missing symmetric key material")
		}
		e.Set("kty", "oct")
		e.SetBytes("k", k)
	default:
		if err := thumbprintMembers(e, key.pub); err != nil {
			return nil, err
		}
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	// json.Marshal writes object members in lexicographic key order,
	// which is exactly the RFC 7638 canonical form.
	data, err := json.Marshal(e.Data())
	if err != nil {
		return nil, err
	}
	w := h.New()
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	return w.Sum(nil), nil
}

func thumbprintMembers(e *jsonutils.Encoder, pub crypto.PublicKey) error {
	switch pub := pub.(type) {
	case *ecdsa.PublicKey:
		size := (pub.Curve.Params().BitSize + 7) / 8
		e.Set("kty", "EC")
		e.Set("crv", CurveName(pub.Curve).String())
		e.SetFixedBigInt("x", pub.X, size)
		e.SetFixedBigInt("y", pub.Y, size)
	case *rsa.PublicKey:
		var buf [8]byte
		i := 7
		for v := pub.E; v != 0; v >>= 8 {
			buf[i] = byte(v % 0x100)
			i--
		}
		e.Set("kty", "RSA")
		e.SetBytes("e", buf[i+1:])
		e.SetBigInt("n", pub.N)
	case ed25519.PublicKey:
		e.Set("kty", "OKP")
		e.Set("crv", "Ed25519")
		e.SetBytes("x", pub)
	case ed448.PublicKey:
		e.Set("kty", "OKP")
		e.Set("crv", "Ed448")
		e.SetBytes("x", pub)
	case *ecdh.PublicKey:
		e.Set("kty", "OKP")
		e.Set("crv", "X25519")
		e.SetBytes("x", pub.Bytes())
	case x448.PublicKey:
		e.Set("kty", "OKP")
		e.Set("crv", "X448")
		e.SetBytes("x", pub)
	default:
		return fmt.Errorf("jwk: thumbprint: unknown public key type: %T", pub)
	}
	return nil
}
