// Package keymanage defines the interface of Key Management Algorithms.
package keymanage

import "crypto"

// Key is a key for wrapping or unwrapping Content Encryption Key (CEK).
type Key interface {
	PrivateKey() crypto.PrivateKey
	PublicKey() crypto.PublicKey
}

// Algorithm is an algorithm for wrapping or unwrapping Content Encryption Key (CEK).
type Algorithm interface {
	NewKeyWrapper(key Key) KeyWrapper
}

// KeyWrapper wraps and unwraps a CEK.
// opts carries the JOSE header of the operation; wrappers read and
// write header parameters (epk, apu, apv, iv, tag, p2s, p2c) through
// the getter and setter interfaces the header implements.
type KeyWrapper interface {
	WrapKey(cek []byte, opts any) (data []byte, err error)
	UnwrapKey(data []byte, opts any) (cek []byte, err error)
}

// CEKProvider is implemented by direct key agreement and direct
// encryption wrappers. The content encryption key is supplied by the
// wrapper instead of being generated and wrapped, and the encrypted
// key segment stays empty. A wrapper that implements CEKProvider must
// be the sole recipient of a message.
type CEKProvider interface {
	ProvideCEK(size int, opts any) (cek []byte, err error)
}

func NewInvalidKeyWrapper(err error) KeyWrapper {
	return &invalidKeyWrapper{
		err: err,
	}
}

type invalidKeyWrapper struct {
	err error
}

func (w *invalidKeyWrapper) WrapKey(cek []byte, opts any) (data []byte, err error) {
	return nil, w.err
}

func (w *invalidKeyWrapper) UnwrapKey(data []byte, opts any) (cek []byte, err error) {
	return nil, w.err
}
