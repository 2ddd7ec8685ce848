package archive

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the block compression algorithm.
type Codec uint8

const (
	// None stores every block uncompressed.
	None Codec = 0
	// LZ4 favours speed.
	LZ4 Codec = 1
	// Zstd favours ratio.
	Zstd Codec = 2
)

var (
	// ErrUnknownCodec is returned for codec values outside None, LZ4 and Zstd.
	ErrUnknownCodec = errors.New("archive: unknown codec")
	// ErrCorrupted is returned when a stream cannot be decoded.
	ErrCorrupted = errors.New("archive: corrupted stream")
)

// String returns the lower-case codec name.
func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Valid reports whether c is a known codec.
func (c Codec) Valid() bool {
	return c <= Zstd
}

// ParseCodec parses a codec name. The empty string means None.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd", "zstandard":
		return Zstd, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Codec) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Codec) UnmarshalText(b []byte) error {
	v, err := ParseCodec(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(MaxBlockSize))
}

// compress appends the compressed form of src to dst. It returns dst
// unchanged when the codec cannot shrink src.
func compress(c Codec, dst, src []byte) ([]byte, error) {
	switch c {
	case LZ4:
		bound := lz4.CompressBlockBound(len(src))
		if cap(dst) < bound {
			dst = make([]byte, bound)
		}
		dst = dst[:bound]
		n, err := lz4.CompressBlock(src, dst, nil)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	case Zstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(src, dst[:0]), nil
	default:
		return dst[:0], nil
	}
}

// decompress decodes src into dst, which must have exactly the
// uncompressed length.
func decompress(c Codec, dst, src []byte) error {
	switch c {
	case LZ4:
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
		if n != len(dst) {
			return fmt.Errorf("%w: decompressed %d bytes, want %d", ErrCorrupted, n, len(dst))
		}
		return nil
	case Zstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(src, dst[:0])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
		if len(out) != len(dst) {
			return fmt.Errorf("%w: decompressed %d bytes, want %d", ErrCorrupted, len(out), len(dst))
		}
		if &out[0] != &dst[0] {
			copy(dst, out)
		}
		return nil
	default:
		return fmt.Errorf("%w: compressed block in uncompressed stream", ErrCorrupted)
	}
}
