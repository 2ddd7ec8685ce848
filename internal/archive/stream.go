package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the size of the stream header in bytes.
	HeaderSize = 12
	// DefaultBlockSize is used when NewWriter is given a non-positive size.
	DefaultBlockSize = 256 * 1024
	// MaxBlockSize bounds the block size accepted by writers and readers.
	MaxBlockSize = 64 * 1024 * 1024

	version         = 1
	blockHeaderSize = 8
)

var magic = [4]byte{'A', 'N', 'F', 'Z'}

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("archive: writer closed")

// Writer compresses everything written to it in fixed-size blocks.
// Close must be called to emit the terminator; it does not close the
// underlying writer.
type Writer struct {
	w         io.Writer
	codec     Codec
	blockSize int
	buf       []byte
	scratch   []byte
	written   int64
	started   bool
	closed    bool
}

// NewWriter returns a Writer emitting a stream with the given codec.
func NewWriter(w io.Writer, codec Codec, blockSize int) (*Writer, error) {
	if !codec.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(codec))
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if blockSize > MaxBlockSize {
		return nil, fmt.Errorf("archive: block size %d exceeds %d", blockSize, MaxBlockSize)
	}
	return &Writer{
		w:         w,
		codec:     codec,
		blockSize: blockSize,
		buf:       make([]byte, 0, blockSize),
	}, nil
}

// Written returns the number of bytes emitted to the underlying writer.
func (a *Writer) Written() int64 {
	return a.written
}

func (a *Writer) emit(p []byte) error {
	n, err := a.w.Write(p)
	a.written += int64(n)
	return err
}

func (a *Writer) start() error {
	if a.started {
		return nil
	}
	a.started = true
	var hdr [HeaderSize]byte
	copy(hdr[:4], magic[:])
	hdr[4] = version
	hdr[5] = byte(a.codec)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(a.blockSize))
	return a.emit(hdr[:])
}

// Write buffers p and flushes every full block.
func (a *Writer) Write(p []byte) (int, error) {
	if a.closed {
		return 0, ErrClosed
	}
	if err := a.start(); err != nil {
		return 0, err
	}
	total := 0
	for len(p) > 0 {
		n := min(len(p), a.blockSize-len(a.buf))
		a.buf = append(a.buf, p[:n]...)
		total += n
		p = p[n:]
		if len(a.buf) == a.blockSize {
			if err := a.flush(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (a *Writer) flush() error {
	if len(a.buf) == 0 {
		return nil
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(a.buf)))

	payload := a.buf
	if a.codec != None {
		out, err := compress(a.codec, a.scratch, a.buf)
		if err != nil {
			return fmt.Errorf("archive: compress block: %w", err)
		}
		a.scratch = out[:0]
		// Keep the block stored unless it shrinks below 90%.
		if len(out) > 0 && len(out)*10 <= len(a.buf)*9 {
			payload = out
			binary.LittleEndian.PutUint32(hdr[4:], uint32(len(out)))
		}
	}

	if err := a.emit(hdr[:]); err != nil {
		return err
	}
	if err := a.emit(payload); err != nil {
		return err
	}
	a.buf = a.buf[:0]
	return nil
}

// Close flushes the last block and writes the terminator.
func (a *Writer) Close() error {
	if a.closed {
		return nil
	}
	if err := a.start(); err != nil {
		return err
	}
	if err := a.flush(); err != nil {
		return err
	}
	a.closed = true
	var end [blockHeaderSize]byte
	return a.emit(end[:])
}

// Reader decompresses a stream produced by Writer.
type Reader struct {
	r         io.Reader
	codec     Codec
	blockSize int
	block     []byte
	packed    []byte
	pos       int
	done      bool
	err       error
}

// NewReader reads the stream header from r.
func NewReader(r io.Reader) (*Reader, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrCorrupted, err)
	}
	if [4]byte(hdr[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupted, hdr[:4])
	}
	if hdr[4] != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupted, hdr[4])
	}
	codec := Codec(hdr[5])
	if !codec.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, hdr[5])
	}
	blockSize := binary.LittleEndian.Uint32(hdr[8:])
	if blockSize == 0 || blockSize > MaxBlockSize {
		return nil, fmt.Errorf("%w: block size %d", ErrCorrupted, blockSize)
	}
	return &Reader{
		r:         r,
		codec:     codec,
		blockSize: int(blockSize),
	}, nil
}

// Codec returns the codec named in the stream header.
func (a *Reader) Codec() Codec {
	return a.codec
}

// Read implements io.Reader. It returns io.EOF after the terminator.
func (a *Reader) Read(p []byte) (int, error) {
	for a.pos == len(a.block) {
		if a.err != nil {
			return 0, a.err
		}
		if a.done {
			return 0, io.EOF
		}
		if err := a.next(); err != nil {
			a.err = err
			a.block = a.block[:0]
			a.pos = 0
		}
	}
	n := copy(p, a.block[a.pos:])
	a.pos += n
	return n, nil
}

func (a *Reader) next() error {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(a.r, hdr[:]); err != nil {
		return fmt.Errorf("%w: block header: %w", ErrCorrupted, unexpected(err))
	}
	raw := int(binary.LittleEndian.Uint32(hdr[0:]))
	stored := int(binary.LittleEndian.Uint32(hdr[4:]))

	if raw == 0 {
		if stored != 0 {
			return fmt.Errorf("%w: empty block with payload", ErrCorrupted)
		}
		a.done = true
		a.block = a.block[:0]
		a.pos = 0
		return nil
	}
	if raw > a.blockSize {
		return fmt.Errorf("%w: block of %d bytes exceeds %d", ErrCorrupted, raw, a.blockSize)
	}
	if stored >= raw {
		return fmt.Errorf("%w: stored size %d not below %d", ErrCorrupted, stored, raw)
	}

	if cap(a.block) < raw {
		a.block = make([]byte, raw)
	}
	a.block = a.block[:raw]
	a.pos = 0

	if stored == 0 {
		if _, err := io.ReadFull(a.r, a.block); err != nil {
			return fmt.Errorf("%w: block payload: %w", ErrCorrupted, unexpected(err))
		}
		return nil
	}

	if cap(a.packed) < stored {
		a.packed = make([]byte, stored)
	}
	a.packed = a.packed[:stored]
	if _, err := io.ReadFull(a.r, a.packed); err != nil {
		return fmt.Errorf("%w: block payload: %w", ErrCorrupted, unexpected(err))
	}
	return decompress(a.codec, a.block, a.packed)
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
