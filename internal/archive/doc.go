// Package archive implements the block-compressed stream used to publish
// forest files to blob storage.
//
// A stream is a 12 byte header followed by blocks and a terminator:
//
//	header: magic "ANFZ" | version u8 | codec u8 | reserved u16 | block size u32
//	block:  uncompressed size u32 | stored size u32 | payload
//	end:    0 | 0
//
// A stored size of zero marks a block kept uncompressed. Compressed blocks
// use LZ4 (github.com/pierrec/lz4/v4) or Zstandard
// (github.com/klauspost/compress/zstd). All integers are little endian.
package archive
