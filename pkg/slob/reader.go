package slob

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Reader is a minimal slob reader, enough to inspect and verify archives
// produced by Writer. It loads the whole container eagerly and is not
// meant for serving large dictionaries.
type Reader struct {
	tags         map[string]string
	contentTypes []string
	refs         []ref
	bins         []binData
}

type binData struct {
	ctypes []byte
	blobs  [][]byte
}

func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := &cursor{b: data}
	if string(c.take(len(magic))) != magic {
		return nil, ErrBadMagic
	}
	c.take(16) // uuid

	c.tinyText() // encoding
	compression := c.tinyText()
	if compression != "" && compression != defaultCompression {
		return nil, fmt.Errorf("%w: %q", errUnsupportedZ, compression)
	}

	r := &Reader{tags: make(map[string]string)}

	ntags := c.u8()
	for i := 0; i < ntags; i++ {
		name := c.tinyText()
		r.tags[name] = c.tagValue()
	}

	nct := c.u8()
	for i := 0; i < nct; i++ {
		r.contentTypes = append(r.contentTypes, c.text())
	}

	blobCount := c.u32()
	storeOffset := c.u64()
	fileSize := c.u64()
	if c.err != nil {
		return nil, c.err
	}
	if fileSize != uint64(len(data)) {
		return nil, fmt.Errorf("slob: file size mismatch: header says %d, have %d", fileSize, len(data))
	}

	if err := r.readRefs(c); err != nil {
		return nil, err
	}

	cs := &cursor{b: data, off: int(storeOffset)}
	if err := r.readStore(cs); err != nil {
		return nil, err
	}

	var blobs uint32
	for _, b := range r.bins {
		blobs += uint32(len(b.blobs))
	}
	if blobs != blobCount {
		return nil, fmt.Errorf("slob: blob count mismatch: header says %d, have %d", blobCount, blobs)
	}

	return r, nil
}

func (r *Reader) readRefs(c *cursor) error {
	count := int(c.u32())
	positions := make([]uint64, count)
	for i := range positions {
		positions[i] = c.u64()
	}
	base := c.off
	for i := 0; i < count; i++ {
		c.off = base + int(positions[i])
		var rf ref
		rf.key = c.text()
		rf.binIndex = c.u32()
		rf.itemIndex = uint16(c.u16())
		rf.fragment = c.tinyText()
		r.refs = append(r.refs, rf)
	}
	return c.err
}

func (r *Reader) readStore(c *cursor) error {
	count := int(c.u32())
	positions := make([]uint64, count)
	for i := range positions {
		positions[i] = c.u64()
	}
	base := c.off
	for i := 0; i < count; i++ {
		c.off = base + int(positions[i])
		nitems := int(c.u32())
		ctypes := append([]byte(nil), c.take(nitems)...)
		compLen := int(c.u32())
		comp := c.take(compLen)
		if c.err != nil {
			return c.err
		}

		zr, err := zlib.NewReader(bytes.NewReader(comp))
		if err != nil {
			return err
		}
		plain, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return err
		}

		bc := &cursor{b: plain}
		itemPos := make([]uint32, nitems)
		for j := range itemPos {
			itemPos[j] = bc.u32()
		}
		if bc.err != nil {
			return bc.err
		}
		content := plain[bc.off:]

		bd := binData{ctypes: ctypes}
		for j := 0; j < nitems; j++ {
			start := int(itemPos[j])
			end := len(content)
			if j+1 < nitems {
				end = int(itemPos[j+1])
			}
			if start > end || end > len(content) {
				return ErrTruncated
			}
			bd.blobs = append(bd.blobs, content[start:end])
		}
		r.bins = append(r.bins, bd)
	}
	return c.err
}

func (r *Reader) Tags() map[string]string {
	return r.tags
}

func (r *Reader) Len() int {
	return len(r.refs)
}

// Keys returns all keys in stored (collated) order.
func (r *Reader) Keys() []string {
	keys := make([]string, len(r.refs))
	for i, rf := range r.refs {
		keys[i] = rf.key
	}
	return keys
}

// Get returns the key, content and content type of the i-th ref.
func (r *Reader) Get(i int) (string, []byte, string, error) {
	if i < 0 || i >= len(r.refs) {
		return "", nil, "", fmt.Errorf("slob: ref %d out of range", i)
	}
	rf := r.refs[i]
	if int(rf.binIndex) >= len(r.bins) {
		return "", nil, "", ErrTruncated
	}
	bd := r.bins[rf.binIndex]
	if int(rf.itemIndex) >= len(bd.blobs) {
		return "", nil, "", ErrTruncated
	}
	ct := ""
	if id := int(bd.ctypes[rf.itemIndex]); id < len(r.contentTypes) {
		ct = r.contentTypes[id]
	}
	return rf.key, bd.blobs[rf.itemIndex], ct, nil
}

// Find returns the content and content type stored under key.
func (r *Reader) Find(key string) ([]byte, string, error) {
	for i, rf := range r.refs {
		if rf.key == key {
			_, content, ct, err := r.Get(i)
			return content, ct, err
		}
	}
	return nil, "", ErrKeyNotFound
}

type cursor struct {
	b   []byte
	off int
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.b) {
		c.err = ErrTruncated
		return nil
	}
	b := c.b[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) u8() int {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return int(b[0])
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (c *cursor) u64() uint64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (c *cursor) tinyText() string {
	n := c.u8()
	return string(c.take(n))
}

func (c *cursor) text() string {
	n := int(c.u16())
	return string(c.take(n))
}

func (c *cursor) tagValue() string {
	n := c.u8()
	b := c.take(tagValueSize)
	if b == nil || n > tagValueSize {
		return ""
	}
	return string(b[:n])
}
