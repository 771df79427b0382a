// Package deflate provides the DEF compression algorithm for the
// "zip" JWE header, raw DEFLATE as defined in RFC 1951.
package deflate

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/alonbl/joserfc/jwa"
	"github.com/alonbl/joserfc/zip"
)

var def = &algorithm{}

func New() zip.Algorithm {
	return def
}

func init() {
	jwa.RegisterCompressionAlgorithm(jwa.DEF, New)
}

var _ zip.Algorithm = (*algorithm)(nil)

type algorithm struct{}

// the decompressed size is capped to keep hostile messages from
// exhausting memory.
const maxDecompressedSize = 256 << 20

// Compress implements [github.com/alonbl/joserfc/zip.Algorithm].
func (alg *algorithm) Compress(data []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(data)))
	w, err := flate.NewWriter(buf, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("deflate: failed to compress content: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate: failed to compress content: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate: failed to compress content: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress implements [github.com/alonbl/joserfc/zip.Algorithm].
func (alg *algorithm) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	buf := bytes.NewBuffer(make([]byte, 0, len(data)))
	if _, err := io.Copy(buf, io.LimitReader(r, maxDecompressedSize)); err != nil {
		return nil, fmt.Errorf("deflate: failed to decompress content: %w", err)
	}
	return buf.Bytes(), nil
}
