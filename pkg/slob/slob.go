// Package slob writes slob dictionary containers, the archive format read
// by Aard2 and compatible offline dictionary readers.
//
// Container layout (all integers big-endian):
//
//	header:  magic "!-1SLOB\x1f", uuid (16 bytes),
//	         encoding (tiny text), compression (tiny text),
//	         tags (u8 count; each: tiny-text name + editable value:
//	           1 length byte followed by exactly 255 bytes),
//	         content types (u8 count; each: text),
//	         blob count (u32), store offset (u64), file size (u64)
//	refs:    u32 count, count x u64 positions, ref items
//	         (text key, u32 bin index, u16 item index, tiny-text fragment),
//	         sorted by collated key
//	store:   u32 count, count x u64 positions, bin items
//	         (u32 blob count, blob count x u8 content-type ids,
//	          u32 compressed length, zlib-compressed payload of
//	          blob count x u32 blob positions followed by blob bytes)
//
// Positions in a list are relative to the end of the position table; blob
// positions inside a bin are relative to the end of the position block,
// with each blob running to the start of the next (or the bin's end).
//
// A Reader sufficient to verify written archives lives in reader.go.
package slob

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	magic = "!-1SLOB\x1f"

	defaultEncoding    = "utf-8"
	defaultCompression = "zlib"

	// DefaultMinBinSize is how much entry content is accumulated before a
	// bin is compressed and flushed.
	DefaultMinBinSize = 512 * 1024

	maxTinyText  = 255
	maxText      = 65535
	tagValueSize = 255
	maxBinItems  = 65535
)

var (
	ErrFinalized     = errors.New("slob: writer already finalized")
	ErrKeyTooLong    = errors.New("slob: key longer than 65535 bytes")
	ErrTagTooLong    = errors.New("slob: tag name or value longer than 255 bytes")
	ErrNoKeys        = errors.New("slob: entry needs at least one key")
	ErrBadMagic      = errors.New("slob: not a slob file")
	ErrTruncated     = errors.New("slob: truncated file")
	ErrKeyNotFound   = errors.New("slob: key not found")
	errContentTypes  = errors.New("slob: too many content types")
	errUnsupportedZ  = errors.New("slob: unsupported compression")
)

// Length limits are validated where strings enter the writer, so the
// encoders below assume their input fits.

func writeTinyText(b *bytes.Buffer, s string) {
	b.WriteByte(byte(len(s)))
	b.WriteString(s)
}

func writeText(b *bytes.Buffer, s string) {
	binary.Write(b, binary.BigEndian, uint16(len(s)))
	b.WriteString(s)
}

// writeTagValue writes an editable tiny text: the value padded with zero
// bytes to a fixed width, so tags can be rewritten in place.
func writeTagValue(b *bytes.Buffer, s string) {
	b.WriteByte(byte(len(s)))
	b.WriteString(s)
	b.Write(make([]byte, tagValueSize-len(s)))
}
