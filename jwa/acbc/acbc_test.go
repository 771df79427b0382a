package acbc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alonbl/joserfc/enc"
	"github.com/alonbl/joserfc/joserr"
)

func TestRoundTrip(t *testing.T) {
	algs := []enc.Algorithm{New128HS256(), New192HS384(), New256HS512()}
	plaintexts := [][]byte{
		nil,
		[]byte("x"),
		[]byte("Live long and prosper."),
		bytes.Repeat([]byte{0xaa}, 1024),
	}
	for _, alg := range algs {
		cek, err := alg.GenerateCEK()
		if err != nil {
			t.Fatal(err)
		}
		if len(cek) != alg.CEKSize() {
			t.Errorf("want %d bytes of CEK, got %d", alg.CEKSize(), len(cek))
		}
		iv, err := alg.GenerateIV()
		if err != nil {
			t.Fatal(err)
		}
		if len(iv) != alg.IVSize() {
			t.Errorf("want %d bytes of IV, got %d", alg.IVSize(), len(iv))
		}
		aad := []byte("additional data")
		for _, plaintext := range plaintexts {
			ciphertext, tag, err := alg.Encrypt(cek, iv, aad, plaintext)
			if err != nil {
				t.Fatal(err)
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
	alg := New128HS256()
	cek, err := alg.GenerateCEK()
	if err != nil {
		t.Fatal(err)
	}
	iv, err := alg.GenerateIV()
	if err != nil {
		t.Fatal(err)
	}
	aad := []byte("aad")
	ciphertext, tag, err := alg.Encrypt(cek, iv, aad, []byte("attack at dawn"))
	if err != nil {
		t.Fatal(err)
	}

	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0x01
	if _, err := alg.Decrypt(cek, iv, aad, tampered, tag); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}

	if _, err := alg.Decrypt(cek, iv, []byte("other"), ciphertext, tag); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}
}
