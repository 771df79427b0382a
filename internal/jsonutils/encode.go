package jsonutils

import (
	"encoding/base64"
	"math/big"
)

type Encoder struct {
	raw map[string]any

	// pre-allocates base64 encoding buffers.
	dst []byte

	err error
}

func NewEncoder(raw map[string]any) *Encoder {
	if raw == nil {
		raw = make(map[string]any)
	}
	return &Encoder{
		raw: raw,
	}
}

func (e *Encoder) Data() map[string]any {
	return e.raw
}

func (e *Encoder) grow(n int) {
	m := base64.RawURLEncoding.EncodedLen(n)
	if cap(e.dst) >= m {
		return
	}
	if m < 64 {
		m = 64
	}
	e.dst = make([]byte, m)
}

func (e *Encoder) Set(name string, v any) {
	e.raw[name] = v
}

func (e *Encoder) SetBytes(name string, data []byte) {
	e.raw[name] = e.Encode(data)
}

func (e *Encoder) SetBigInt(name string, i *big.Int) {
	e.raw[name] = e.Encode(i.Bytes())
}

// SetFixedBigInt encodes i as a big-endian octet string of exactly
// size bytes. Leading zero octets are kept, not stripped.
func (e *Encoder) SetFixedBigInt(name string, i *big.Int, size int) {
	buf := make([]byte, size)
	i.FillBytes(buf)
	e.raw[name] = e.Encode(buf)
}

func (e *Encoder) Encode(s []byte) string {
	e.grow(len(s))
	dst := e.dst[:base64.RawURLEncoding.EncodedLen(len(s))]
	base64.RawURLEncoding.Encode(dst, s)
	return string(dst)
}

// SaveError asserts the operation must not fail.
// If err is nil, SaveError does nothing.
// Otherwise, SaveError records the first error.
func (e *Encoder) SaveError(err error) {
	if err != nil && e.err == nil {
		e.err = err
	}
}

func (e *Encoder) Err() error {
	return e.err
}
