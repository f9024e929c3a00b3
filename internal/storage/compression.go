// internal/storage/compression.go
package storage

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures compression behavior
type CompressionOptions struct {
	// Minimum size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
}

// DefaultCompressionOptions provides sensible defaults
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024, // 1KB
		Level:   2,    // Balanced speed/compression
	}
}

// Codec compresses stored values with zstd. Values below MinSize are stored
// as is; Decode tells the two apart by the zstd frame magic, which a JSON
// document can never start with.
type Codec struct {
	opts     CompressionOptions
	encoders sync.Pool
	decoders sync.Pool
}

func NewCodec(opts CompressionOptions) (*Codec, error) {
	level := zstd.EncoderLevelFromZstd(opts.Level)

	// Create encoder/decoder once to validate options
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	c := &Codec{opts: opts}
	c.encoders.New = func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
		return enc
	}
	c.decoders.New = func() any {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}
	c.encoders.Put(enc)
	c.decoders.Put(dec)
	return c, nil
}

// Encode compresses data when it is large enough to be worth it
func (c *Codec) Encode(data []byte) []byte {
	if len(data) < c.opts.MinSize {
		return data
	}
	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decode reverses Encode
func (c *Codec) Decode(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing value: %w", err)
	}
	return out, nil
}
