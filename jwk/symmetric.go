package jwk

import (
	"github.com/alonbl/joserfc/internal/jsonutils"
)

func parseSymmetricKey(d *jsonutils.Decoder, key *Key) {
	k := d.MustBytes("k")
	if d.Err() != nil {
		return
	}
	key.priv = append([]byte(nil), k...)
}

func encodeSymmetricKey(e *jsonutils.Encoder, k []byte) {
	e.Set("kty", "oct")
	e.SetBytes("k", k)
}
