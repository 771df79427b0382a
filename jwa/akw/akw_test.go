package akw

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/alonbl/joserfc/joserr"
)

func decodeHex(t *testing.T, s string) []byte {
	t.Helper()
	data, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// RFC 3394 Section 4.1 Wrap 128 bits of Key Data with a 128-bit KEK.
func TestWrapKeyRFC3394(t *testing.T) {
	kek := decodeHex(t, "000102030405060708090a0b0c0d0e0f")
	cek := decodeHex(t, "00112233445566778899aabbccddeeff")
	want := decodeHex(t, "1fa68b0a8112b447aef34bd8fb5a7b829d3e862371d2cfe5")

	w := NewKeyWrapper(kek)
	got, err := w.WrapKey(cek, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(want, got) {
		t.Errorf("want %x, got %x", want, got)
	}

	unwrapped, err := w.UnwrapKey(got, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(cek, unwrapped) {
		t.Errorf("want %x, got %x", cek, unwrapped)
	}
}

// RFC 3394 Section 4.6 Wrap 256 bits of Key Data with a 256-bit KEK.
func TestWrapKeyRFC3394_256(t *testing.T) {
	kek := decodeHex(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	cek := decodeHex(t, "00112233445566778899aabbccddeeff000102030405060708090a0b0c0d0e0f")
	want := decodeHex(t, "28c9f404c4b810f4cbccb35cfb87f8263f5786e2d80ed326cbc7f0e71a99f43bfb988b9b7a02dd21")

	w := NewKeyWrapper(kek)
	got, err := w.WrapKey(cek, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(want, got) {
		t.Errorf("want %x, got %x", want, got)
	}

	unwrapped, err := w.UnwrapKey(got, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(cek, unwrapped) {
		t.Errorf("want %x, got %x", cek, unwrapped)
	}
}

func TestUnwrapKeyCorrupted(t *testing.T) {
	kek := decodeHex(t, "000102030405060708090a0b0c0d0e0f")
	w := NewKeyWrapper(kek)
	data, err := w.WrapKey(decodeHex(t, "00112233445566778899aabbccddeeff"), nil)
	if err != nil {
		t.Fatal(err)
	}
	data[0] ^= 0x01
	if _, err := w.UnwrapKey(data, nil); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}
}

func TestInvalidKeySize(t *testing.T) {
	w := NewKeyWrapper([]byte("short"))
	if _, err := w.WrapKey(make([]byte, 16), nil); !errors.Is(err, joserr.ErrInvalidKey) {
		t.Errorf("want ErrInvalidKey, got %v", err)
	}
}
