// Package format defines the header of forest index files.
//
// A file is a 64-byte header followed by the node array, exactly as it is laid
// out in memory, so a saved file can be mapped and searched without decoding.
package format

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

const (
	// FormatMagic identifies forest files (ASCII: "ANF0")
	FormatMagic = 0x414E4630

	// FormatVersion is the current file format version
	FormatVersion uint32 = 1

	// HeaderSize is the size of the file header in bytes
	HeaderSize = 64

	// FlagBuilt indicates that the node array holds trees.
	FlagBuilt uint32 = 1 << 0
	// FlagOnDisk indicates that the file was built in place.
	FlagOnDisk uint32 = 1 << 1
)

var (
	// ErrInvalidMagic is returned when a file has an invalid magic number.
	ErrInvalidMagic = errors.New("format: invalid magic number")

	// ErrInvalidVersion is returned when a file has an unsupported version.
	ErrInvalidVersion = errors.New("format: unsupported format version")

	// ErrCorrupted is returned when a header fails checksum validation.
	ErrCorrupted = errors.New("format: header corrupted (checksum mismatch)")

	// ErrShortHeader is returned when fewer than HeaderSize bytes are available.
	ErrShortHeader = errors.New("format: short header")
)

// FileHeader is the 64-byte header at the start of forest files.
//
// All multi-byte fields are little-endian.
type FileHeader struct {
	Magic        uint32 // 0x414E4630 ("ANF0")
	Version      uint32 // Format version (currently 1)
	Metric       uint32 // distance.Metric
	Dimension    uint32 // Vector dimensionality
	LeafCapacity uint32 // Largest item list in one leaf
	Stride       uint32 // Node record size in bytes
	Items        uint64 // Item id range (max id + 1)
	Nodes        uint64 // Node records following the header
	Trees        uint32 // Root copies at the tail of the node array
	Flags        uint32 // Feature flags
	Reserved     uint64
	Checksum     uint32 // CRC32 of bytes 0..55
}

// NewHeader returns a header with magic and version set.
func NewHeader() FileHeader {
	return FileHeader{Magic: FormatMagic, Version: FormatVersion}
}

// Validate checks magic and version.
func (h *FileHeader) Validate() error {
	if h.Magic != FormatMagic {
		return ErrInvalidMagic
	}
	if h.Version == 0 || h.Version > FormatVersion {
		return ErrInvalidVersion
	}
	return nil
}

// HasFlag reports whether flag is set.
func (h *FileHeader) HasFlag(flag uint32) bool {
	return h.Flags&flag != 0
}

// NodeDataSize returns the size of the node array in bytes.
func (h *FileHeader) NodeDataSize() int64 {
	return int64(h.Nodes) * int64(h.Stride) //nolint:gosec
}

// TotalSize returns the expected file size in bytes.
func (h *FileHeader) TotalSize() int64 {
	return HeaderSize + h.NodeDataSize()
}

// Sum computes the checksum of the encoded header fields.
func (h *FileHeader) Sum() uint32 {
	var buf [HeaderSize]byte
	h.encodeFields(buf[:])
	return crc32.ChecksumIEEE(buf[:56])
}

// VerifyChecksum compares the stored checksum with the fields.
func (h *FileHeader) VerifyChecksum() error {
	if h.Checksum != h.Sum() {
		return ErrCorrupted
	}
	return nil
}

func (h *FileHeader) encodeFields(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Metric)
	binary.LittleEndian.PutUint32(buf[12:16], h.Dimension)
	binary.LittleEndian.PutUint32(buf[16:20], h.LeafCapacity)
	binary.LittleEndian.PutUint32(buf[20:24], h.Stride)
	binary.LittleEndian.PutUint64(buf[24:32], h.Items)
	binary.LittleEndian.PutUint64(buf[32:40], h.Nodes)
	binary.LittleEndian.PutUint32(buf[40:44], h.Trees)
	binary.LittleEndian.PutUint32(buf[44:48], h.Flags)
	binary.LittleEndian.PutUint64(buf[48:56], h.Reserved)
}

// Encode writes the header into buf, which must hold HeaderSize bytes, and
// updates the checksum.
func (h *FileHeader) Encode(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrShortHeader
	}
	clear(buf[:HeaderSize])
	h.encodeFields(buf)
	h.Checksum = crc32.ChecksumIEEE(buf[:56])
	binary.LittleEndian.PutUint32(buf[56:60], h.Checksum)
	return nil
}

// Decode parses the header fields from buf without validating them.
func Decode(buf []byte) (FileHeader, error) {
	if len(buf) < HeaderSize {
		return FileHeader{}, ErrShortHeader
	}
	return FileHeader{
		Magic:        binary.LittleEndian.Uint32(buf[0:4]),
		Version:      binary.LittleEndian.Uint32(buf[4:8]),
		Metric:       binary.LittleEndian.Uint32(buf[8:12]),
		Dimension:    binary.LittleEndian.Uint32(buf[12:16]),
		LeafCapacity: binary.LittleEndian.Uint32(buf[16:20]),
		Stride:       binary.LittleEndian.Uint32(buf[20:24]),
		Items:        binary.LittleEndian.Uint64(buf[24:32]),
		Nodes:        binary.LittleEndian.Uint64(buf[32:40]),
		Trees:        binary.LittleEndian.Uint32(buf[40:44]),
		Flags:        binary.LittleEndian.Uint32(buf[44:48]),
		Reserved:     binary.LittleEndian.Uint64(buf[48:56]),
		Checksum:     binary.LittleEndian.Uint32(buf[56:60]),
	}, nil
}

// WriteTo writes the header to w.
func (h *FileHeader) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, HeaderSize)
	if err := h.Encode(buf); err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadFrom reads the header from r and validates checksum, magic and version.
func (h *FileHeader) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return int64(n), err
	}

	*h, _ = Decode(buf)
	if err := h.VerifyChecksum(); err != nil {
		return int64(n), err
	}
	return int64(n), h.Validate()
}
