package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/synctree/rsyncd/pkg/protocol"
)

func TestNoneRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	compressor, err := NewCompressor(protocol.CompressionNone, &buf)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("the quick brown fox jumps over the lazy dog")
	if _, err := compressor.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := compressor.Close(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Fatal("none compressor altered its input")
	}

	decompressor, err := NewDecompressor(protocol.CompressionNone, &buf)
	if err != nil {
		t.Fatal(err)
	}
	result, err := io.ReadAll(decompressor)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(result, payload) {
		t.Fatal("none decompressor altered its input")
	}
}

func TestDeflateRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	compressor, err := NewCompressor(protocol.CompressionDeflate, &buf)
	if err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte("rsync delta transfer payload "), 64)
	if _, err := compressor.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := compressor.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := compressor.Close(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() >= len(payload) {
		t.Fatalf("expected compressed output (%d bytes) to be smaller than input (%d bytes)", buf.Len(), len(payload))
	}

	decompressor, err := NewDecompressor(protocol.CompressionDeflate, &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer decompressor.Close()
	result, err := io.ReadAll(decompressor)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(result, payload) {
		t.Fatal("deflate round trip did not reproduce the original payload")
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewCompressor(protocol.CompressionAlgorithm(255), &buf); err == nil {
		t.Fatal("expected an error for an unsupported compression algorithm")
	}
	if _, err := NewDecompressor(protocol.CompressionAlgorithm(255), &buf); err == nil {
		t.Fatal("expected an error for an unsupported compression algorithm")
	}
}
