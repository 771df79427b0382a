package x448

import (
	"bytes"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	pub, priv, err := GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pub) != PublicKeySize {
		t.Errorf("want %d bytes of public key, got %d", PublicKeySize, len(pub))
	}
	if len(priv) != PrivateKeySize {
		t.Errorf("want %d bytes of private key, got %d", PrivateKeySize, len(priv))
	}
	if !pub.Equal(priv.Public()) {
		t.Error("the public key does not match the private key")
	}
}

func TestSharedSecret(t *testing.T) {
	alicePub, alicePriv, err := GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	bobPub, bobPriv, err := GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	z1, err := X448(alicePriv, bobPub)
	if err != nil {
		t.Fatal(err)
	}
	z2, err := X448(bobPriv, alicePub)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(z1, z2) {
		t.Error("the shared secrets differ")
	}
}

func TestInvalidSizes(t *testing.T) {
	if _, err := X448(make(PrivateKey, 3), make(PublicKey, PublicKeySize)); err == nil {
		t.Error("want an error for a short private key")
	}
	if _, err := X448(make(PrivateKey, PrivateKeySize), make(PublicKey, 3)); err == nil {
		t.Error("want an error for a short public key")
	}
}
