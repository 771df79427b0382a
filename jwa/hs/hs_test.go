package hs

import (
	"crypto"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/alonbl/joserfc/sig"
)

type rawKey struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

func (k *rawKey) PrivateKey() crypto.PrivateKey { return k.priv }
func (k *rawKey) PublicKey() crypto.PublicKey   { return k.pub }

var tests = []struct {
	alg func() sig.Algorithm
	key []byte
	in  []byte
	out string
}{
	// Tests from RFC 4231
	{
		New256,
		[]byte{
			0x0b, 0x0b, 0x0b, 0x0b, 0x0b, 0x0b, 0x0b, 0x0b,
			0x0b, 0x0b, 0x0b, 0x0b, 0x0b, 0x0b, 0x0b, 0x0b,
			0x0b, 0x0b, 0x0b, 0x0b,
		},
		[]byte("Hi There"),
		"b0344c61d8db38535ca8afceaf0bf12b881dc200c9833da726e9376c2e32cff7",
	},
	{
		New256,
		[]byte("Jefe"),
		[]byte("what do ya want for nothing?"),
		"5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
	},
}

func TestSign(t *testing.T) {
	for i, tt := range tests {
		key := tt.alg().NewSigningKey(&rawKey{priv: tt.key})
		got, err := key.Sign(tt.in)
		if err != nil {
			t.Errorf("%d: %v", i, err)
			continue
		}
		if hex.EncodeToString(got) != tt.out {
			t.Errorf("%d: want %s, got %s", i, tt.out, hex.EncodeToString(got))
		}
		if err := key.Verify(tt.in, got); err != nil {
			t.Errorf("%d: %v", i, err)
		}
	}
}

func TestVerifyMismatch(t *testing.T) {
	key := New256().NewSigningKey(&rawKey{priv: []byte("secret")})
	signature, err := key.Sign([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	signature[0] ^= 0x80
	if err := key.Verify([]byte("payload"), signature); !errors.Is(err, sig.ErrSignatureMismatch) {
		t.Errorf("want ErrSignatureMismatch, got %v", err)
	}
}

func TestInvalidKeyType(t *testing.T) {
	key := New256().NewSigningKey(&rawKey{priv: "not bytes"})
	if _, err := key.Sign([]byte("payload")); err == nil {
		t.Error("want an error for an invalid key type")
	}
}
