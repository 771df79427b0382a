package jwk

import (
	"bytes"
	"crypto/x509"
)

// Import imports key material in any supported shape: a JWK object in
// JSON, a PEM block, a DER-encoded key, or raw symmetric octets.
//
// The shape is detected from the data itself. Bytes that parse as
// none of the structured forms become an oct key.
func Import(data []byte) (*Key, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return ParseKey(data)
	}
	if bytes.Contains(data, []byte("-----BEGIN")) {
		key, _, err := DecodePEM(data)
		return key, err
	}
	if priv, err := x509.ParsePKCS8PrivateKey(data); err == nil {
		return NewPrivateKey(priv)
	}
	if pub, err := x509.ParsePKIXPublicKey(data); err == nil {
		return NewPublicKey(pub)
	}
	if priv, err := x509.ParsePKCS1PrivateKey(data); err == nil {
		return NewPrivateKey(priv)
	}
	if pub, err := x509.ParsePKCS1PublicKey(data); err == nil {
		return NewPublicKey(pub)
	}
	return NewPrivateKey(data)
}
