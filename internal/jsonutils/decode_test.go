package jsonutils

import (
	"errors"
	"math/big"
	"testing"

	"github.com/alonbl/joserfc/joserr"
)

func TestDecoderGetString(t *testing.T) {
	d := NewDecoder("test", map[string]any{
		"foo": "bar",
		"num": float64(42),
	})
	got, ok := d.GetString("foo")
	if !ok || got != "bar" {
		t.Errorf("want bar, got %q (%t)", got, ok)
	}
	if _, ok := d.GetString("missing"); ok {
		t.Error("missing parameter should not be found")
	}
	if err := d.Err(); err != nil {
		t.Fatal(err)
	}

	if _, ok := d.GetString("num"); ok {
		t.Error("type mismatch should not be found")
	}
	if err := d.Err(); !errors.Is(err, joserr.ErrInvalidHeaderValue) {
		t.Errorf("want ErrInvalidHeaderValue, got %v", err)
	}
}

func TestDecoderMustString(t *testing.T) {
	d := NewDecoder("test", map[string]any{})
	d.MustString("kty")
	if err := d.Err(); !errors.Is(err, joserr.ErrMissingHeader) {
		t.Errorf("want ErrMissingHeader, got %v", err)
	}
}

func TestDecoderGetBytes(t *testing.T) {
	d := NewDecoder("test", map[string]any{
		"ok":  "aGVsbG8",
		"bad": "not+base64url!",
	})
	got, ok := d.GetBytes("ok")
	if !ok || string(got) != "hello" {
		t.Errorf("want hello, got %q", got)
	}
	if err := d.Err(); err != nil {
		t.Fatal(err)
	}

	d.GetBytes("bad")
	if err := d.Err(); !errors.Is(err, joserr.ErrDecode) {
		t.Errorf("want ErrDecode, got %v", err)
	}
}

func TestUnmarshalTrailingData(t *testing.T) {
	var v map[string]any
	if err := Unmarshal([]byte(`{"a":1} {"b":2}`), &v); !errors.Is(err, joserr.ErrDecode) {
		t.Errorf("want ErrDecode, got %v", err)
	}
	if err := Unmarshal([]byte(`{"a":1}`+"\n"), &v); err != nil {
		t.Errorf("trailing whitespace should be accepted: %v", err)
	}
}

func TestEncoderSetFixedBigInt(t *testing.T) {
	e := NewEncoder(nil)
	d := NewDecoder("test", nil)
	e.SetBigInt("trimmed", bigFromBytes([]byte{0x00, 0x01, 0x02}))
	e.SetFixedBigInt("fixed", bigFromBytes([]byte{0x00, 0x01, 0x02}), 3)

	data := e.Data()
	trimmed := d.Decode(data["trimmed"].(string), "trimmed")
	if len(trimmed) != 2 {
		t.Errorf("want stripped leading zero, got %d bytes", len(trimmed))
	}
	fixed := d.Decode(data["fixed"].(string), "fixed")
	if len(fixed) != 3 {
		t.Errorf("want left padding preserved, got %d bytes", len(fixed))
	}
}

func bigFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
