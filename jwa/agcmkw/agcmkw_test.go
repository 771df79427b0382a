package agcmkw

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwk"
)

// stubHeader carries the header parameters the key wrapping reads and
// writes.
type stubHeader struct {
	iv  []byte
	tag []byte
}

func (h *stubHeader) InitializationVector() []byte      { return h.iv }
func (h *stubHeader) SetInitializationVector(iv []byte) { h.iv = iv }
func (h *stubHeader) AuthenticationTag() []byte         { return h.tag }
func (h *stubHeader) SetAuthenticationTag(tag []byte)   { h.tag = tag }

func TestRoundTrip(t *testing.T) {
	key, err := jwk.GenerateOctKey(16)
	if err != nil {
		t.Fatal(err)
	}
	cek := bytes.Repeat([]byte{0x42}, 32)

	header := &stubHeader{}
	data, err := New128().NewKeyWrapper(key).WrapKey(cek, header)
	if err != nil {
		t.Fatal(err)
	}
	if len(header.iv) != 12 {
		t.Errorf("want a 96-bit iv, got %d bits", len(header.iv)*8)
	}
	if len(header.tag) != 16 {
		t.Errorf("want a 128-bit tag, got %d bits", len(header.tag)*8)
	}

	unwrapped, err := New128().NewKeyWrapper(key).UnwrapKey(data, header)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(cek, unwrapped) {
		t.Errorf("want %x, got %x", cek, unwrapped)
	}
}

func TestUnwrapTamper(t *testing.T) {
	key, err := jwk.GenerateOctKey(32)
	if err != nil {
		t.Fatal(err)
	}
	header := &stubHeader{}
	data, err := New256().NewKeyWrapper(key).WrapKey(bytes.Repeat([]byte{0x42}, 32), header)
	if err != nil {
		t.Fatal(err)
	}
	data[0] ^= 0x01
	if _, err := New256().NewKeyWrapper(key).UnwrapKey(data, header); !errors.Is(err, joserr.ErrBadSignature) {
		t.Errorf("want ErrBadSignature, got %v", err)
	}
}

func TestKeySizeMismatch(t *testing.T) {
	key, err := jwk.GenerateOctKey(16)
	if err != nil {
		t.Fatal(err)
	}
	w := New256().NewKeyWrapper(key)
	if _, err := w.WrapKey(make([]byte, 32), &stubHeader{}); !errors.Is(err, joserr.ErrInvalidKey) {
		t.Errorf("want ErrInvalidKey, got %v", err)
	}
}
