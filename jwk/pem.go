package jwk

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/alonbl/joserfc/joserr"
)

// DecodePEM parses the first PEM block of data into a Key.
// PKCS#1, PKCS#8, SPKI and certificate blocks are accepted.
func DecodePEM(data []byte) (key *Key, rest []byte, err error) {
	block, rest := pem.Decode(data)
	if block == nil {
		return nil, nil, fmt.Errorf("jwk: %w: decoding PEM failed", joserr.ErrDecode)
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, nil, err
		}
		key, err := NewPrivateKey(priv)
		if err != nil {
			return nil, nil, err
		}
		return key, rest, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, nil, err
		}
		key, err := NewPublicKey(pub)
		if err != nil {
			return nil, nil, err
		}
		return key, rest, nil
	case "EC PRIVATE KEY":
		priv, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, nil, err
		}
		key, err := NewPrivateKey(priv)
		if err != nil {
			return nil, nil, err
		}
		return key, rest, nil
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, nil, err
		}
		key, err := NewPrivateKey(priv)
		if err != nil {
			return nil, nil, err
		}
		return key, rest, nil
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, nil, err
		}
		key, err := NewPublicKey(pub)
		if err != nil {
			return nil, nil, err
		}
		return key, rest, nil
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, nil, err
		}
		key, err := NewPublicKey(cert.PublicKey)
		if err != nil {
			return nil, nil, err
		}
		key.SetX509CertificateChain([]*x509.Certificate{cert})
		return key, rest, nil
	default:
		return nil, nil, fmt.Errorf("jwk: %w: unknown block type: %s", joserr.ErrDecode, block.Type)
	}
}

// EncodePEM serializes the key into PEM form: PKCS#8 for private keys,
// PKIX for public keys. Symmetric keys have no PEM form.
func (key *Key) EncodePEM() ([]byte, error) {
	switch priv := key.priv.(type) {
	case *ecdsa.PrivateKey, *rsa.PrivateKey:
		der, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return nil, err
		}
		return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
	case []byte:
		return nil, fmt.Errorf("jwk: %w: symmetric keys have no PEM form", joserr.ErrInvalidKey)
	case nil:
		der, err := x509.MarshalPKIXPublicKey(key.pub)
		if err != nil {
			return nil, err
		}
		return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
	default:
		der, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return nil, err
		}
		return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
	}
}
