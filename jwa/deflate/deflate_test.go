package deflate

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("x"),
		[]byte("Live long and prosper."),
		bytes.Repeat([]byte("ho hum "), 4096),
	}
	for _, in := range inputs {
		compressed, err := New().Compress(in)
		if err != nil {
			t.Fatal(err)
		}
		out, err := New().Decompress(compressed)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(in, out) {
			t.Errorf("the content does not round trip: %d bytes in, %d bytes out", len(in), len(out))
		}
	}
}

func TestCompressShrinks(t *testing.T) {
	in := bytes.Repeat([]byte("ho hum "), 4096)
	compressed, err := New().Compress(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(compressed) >= len(in) {
		t.Errorf("repetitive content did not shrink: %d -> %d", len(in), len(compressed))
	}
}

func TestDecompressGarbage(t *testing.T) {
	if _, err := New().Decompress([]byte("not deflate data")); err == nil {
		t.Error("want an error for invalid input")
	}
}
