package agcm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alonbl/joserfc/enc"
	"github.com/alonbl/joserfc/joserr"
)

func TestRoundTrip(t *testing.T) {
	algs := []enc.Algorithm{New128(), New192(), New256()}
	plaintexts := [][]byte{
		nil,
		[]byte("x"),
		[]byte("Live long and prosper."),
	}
	for _, alg := range algs {
		cek, err := alg.GenerateCEK()
		if err != nil {
			t.Fatal(err)
		}
		iv, err := alg.GenerateIV()
		if err != nil {
			t.Fatal(err)
		}
		aad := []byte("additional data")
		for _, plaintext := range plaintexts {
			ciphertext, tag, err := alg.Encrypt(cek, iv, aad, plaintext)
			if err != nil {
				t.Fatal(err)
			}
			if len(tag) != 16 {
				t.Errorf("want 128-bit tag, got %d bits", len(tag)*8)
			}
			got, err := alg.Decrypt(cek, iv, aad, ciphertext, tag)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(plaintext, got) {
				t.Errorf("want %x, got %x", plaintext, got)
			}
		}
	}
}

func TestTamper(t *testing.T) {
	alg := New128()
	cek, err := alg.GenerateCEK()
	if err != nil {
		t.Fatal(err)
	}
	iv, err := alg.GenerateIV()
	if err != nil {
		t.Fatal(err)
	}
	ciphertext, tag, err := alg.Encrypt(cek, iv, nil, []byte("attack at dawn"))
	if err != nil {
		t.Fatal(err)
	}
	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0x01
	if _, err := alg.Decrypt(cek, iv, nil, tampered, tag); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}
}
