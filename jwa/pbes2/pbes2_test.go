package pbes2

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwk"
)

// stubHeader carries the header parameters the key derivation reads
// and writes.
type stubHeader struct {
	p2s []byte
	p2c int
}

func (h *stubHeader) PBES2SaltInput() []byte     { return h.p2s }
func (h *stubHeader) SetPBES2SaltInput(s []byte) { h.p2s = s }
func (h *stubHeader) PBES2Count() int            { return h.p2c }
func (h *stubHeader) SetPBES2Count(c int)        { h.p2c = c }

func TestRoundTrip(t *testing.T) {
	password, err := jwk.NewPrivateKey([]byte("entrap_o-peter_long-credit_tun"))
	if err != nil {
		t.Fatal(err)
	}
	cek := bytes.Repeat([]byte{0x42}, 32)

	header := &stubHeader{}
	data, err := NewHS256A128KW().NewKeyWrapper(password).WrapKey(cek, header)
	if err != nil {
		t.Fatal(err)
	}
	if len(header.p2s) == 0 {
		t.Fatal("p2s was not generated")
	}
	if header.p2c != DefaultIterationCount {
		t.Fatalf("want p2c %d, got %d", DefaultIterationCount, header.p2c)
	}

	unwrapped, err := NewHS256A128KW().NewKeyWrapper(password).UnwrapKey(data, header)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(cek, unwrapped) {
		t.Errorf("want %x, got %x", cek, unwrapped)
	}
}

func TestIterationFloor(t *testing.T) {
	password, err := jwk.NewPrivateKey([]byte("password"))
	if err != nil {
		t.Fatal(err)
	}
	header := &stubHeader{
		p2s: bytes.Repeat([]byte{0x01}, 16),
		p2c: MinIterationCount - 1,
	}
	w := NewHS512A256KW().NewKeyWrapper(password)
	if _, err := w.WrapKey(make([]byte, 32), header); !errors.Is(err, joserr.ErrInvalidHeaderValue) {
		t.Errorf("want ErrInvalidHeaderValue, got %v", err)
	}
	if _, err := w.UnwrapKey(make([]byte, 40), header); !errors.Is(err, joserr.ErrInvalidHeaderValue) {
		t.Errorf("want ErrInvalidHeaderValue, got %v", err)
	}
}
