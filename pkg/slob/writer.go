package slob

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Writer assembles a slob container. Entries are appended with Add, tags
// set with Tag, and the file is only valid after Finalize returns nil.
// Bins are spooled to a temp file so content never accumulates in memory;
// refs (keys only) do.
type Writer struct {
	f          *os.File
	path       string
	store      *os.File
	storeSize  int64
	binOffsets []int64

	id           uuid.UUID
	tags         map[string]string
	contentTypes []string
	ctIDs        map[string]int
	refs         []ref
	cur          bin

	minBinSize int
	blobCount  uint32
	done       bool
	ok         bool
}

type ref struct {
	key       string
	binIndex  uint32
	itemIndex uint16
	fragment  string
}

type bin struct {
	ctypes    []byte
	positions []uint32
	buf       bytes.Buffer
}

type Option func(*Writer)

func WithMinBinSize(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.minBinSize = n
		}
	}
}

// Create opens path for writing. It fails if the file already exists.
func Create(path string, opts ...Option) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}

	store, err := os.CreateTemp("", "slob-store-*")
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	w := &Writer{
		f:          f,
		path:       path,
		store:      store,
		id:         uuid.New(),
		tags:       make(map[string]string),
		ctIDs:      make(map[string]int),
		minBinSize: DefaultMinBinSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Writer) Tag(name, value string) error {
	if w.done {
		return ErrFinalized
	}
	if len(name) > maxTinyText || len(value) > tagValueSize {
		return ErrTagTooLong
	}
	w.tags[name] = value
	return nil
}

// Add appends one blob reachable under each of the given keys.
func (w *Writer) Add(content []byte, contentType string, keys ...string) error {
	if w.done {
		return ErrFinalized
	}
	if len(keys) == 0 {
		return ErrNoKeys
	}
	for _, key := range keys {
		if len(key) > maxText {
			return ErrKeyTooLong
		}
	}

	ctID, err := w.contentTypeID(contentType)
	if err != nil {
		return err
	}

	if len(w.cur.positions) == maxBinItems {
		if err := w.flushBin(); err != nil {
			return err
		}
	}

	binIndex := uint32(len(w.binOffsets))
	itemIndex := uint16(len(w.cur.positions))
	w.cur.positions = append(w.cur.positions, uint32(w.cur.buf.Len()))
	w.cur.buf.Write(content)
	w.cur.ctypes = append(w.cur.ctypes, byte(ctID))
	w.blobCount++

	for _, key := range keys {
		w.refs = append(w.refs, ref{key: key, binIndex: binIndex, itemIndex: itemIndex})
	}

	if w.cur.buf.Len() >= w.minBinSize {
		return w.flushBin()
	}
	return nil
}

func (w *Writer) contentTypeID(ct string) (int, error) {
	if id, ok := w.ctIDs[ct]; ok {
		return id, nil
	}
	if len(w.contentTypes) == 256 {
		return 0, errContentTypes
	}
	id := len(w.contentTypes)
	w.contentTypes = append(w.contentTypes, ct)
	w.ctIDs[ct] = id
	return id, nil
}

func (w *Writer) flushBin() error {
	if len(w.cur.positions) == 0 {
		return nil
	}

	var plain bytes.Buffer
	for _, p := range w.cur.positions {
		binary.Write(&plain, binary.BigEndian, p)
	}
	plain.Write(w.cur.buf.Bytes())

	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	if _, err := zw.Write(plain.Bytes()); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	var item bytes.Buffer
	binary.Write(&item, binary.BigEndian, uint32(len(w.cur.positions)))
	item.Write(w.cur.ctypes)
	binary.Write(&item, binary.BigEndian, uint32(comp.Len()))
	item.Write(comp.Bytes())

	w.binOffsets = append(w.binOffsets, w.storeSize)
	n, err := w.store.Write(item.Bytes())
	if err != nil {
		return err
	}
	w.storeSize += int64(n)

	w.cur = bin{}
	return nil
}

// Finalize sorts the refs, writes the container and closes the file.
func (w *Writer) Finalize() error {
	if w.done {
		return ErrFinalized
	}
	w.done = true

	if err := w.flushBin(); err != nil {
		return err
	}

	slog.Info("sorting refs", slog.Int("count", len(w.refs)))
	coll := collate.New(language.Und)
	sort.SliceStable(w.refs, func(i, j int) bool {
		return coll.CompareString(w.refs[i].key, w.refs[j].key) < 0
	})

	refsSec := w.refsSection()
	header := w.header(int64(len(refsSec)))

	slog.Info("writing store", slog.Int("bins", len(w.binOffsets)), slog.Int("blobs", int(w.blobCount)))

	if _, err := w.f.Write(header); err != nil {
		return err
	}
	if _, err := w.f.Write(refsSec); err != nil {
		return err
	}

	var storeHdr bytes.Buffer
	binary.Write(&storeHdr, binary.BigEndian, uint32(len(w.binOffsets)))
	for _, off := range w.binOffsets {
		binary.Write(&storeHdr, binary.BigEndian, uint64(off))
	}
	if _, err := w.f.Write(storeHdr.Bytes()); err != nil {
		return err
	}

	if _, err := w.store.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.Copy(w.f, w.store); err != nil {
		return err
	}

	w.store.Close()
	os.Remove(w.store.Name())
	if err := w.f.Close(); err != nil {
		return err
	}
	w.ok = true
	return nil
}

// Discard cleans up after a failed run: the temp store and the partial
// output file are removed. It is a no-op once Finalize has succeeded.
func (w *Writer) Discard() {
	if w.ok {
		return
	}
	w.done = true
	w.store.Close()
	os.Remove(w.store.Name())
	w.f.Close()
	os.Remove(w.path)
}

func (w *Writer) refsSection() []byte {
	var items bytes.Buffer
	positions := make([]uint64, 0, len(w.refs))
	for _, r := range w.refs {
		positions = append(positions, uint64(items.Len()))
		writeText(&items, r.key)
		binary.Write(&items, binary.BigEndian, r.binIndex)
		binary.Write(&items, binary.BigEndian, r.itemIndex)
		writeTinyText(&items, r.fragment)
	}

	var sec bytes.Buffer
	binary.Write(&sec, binary.BigEndian, uint32(len(w.refs)))
	for _, p := range positions {
		binary.Write(&sec, binary.BigEndian, p)
	}
	sec.Write(items.Bytes())
	return sec.Bytes()
}

func (w *Writer) header(refsLen int64) []byte {
	var b bytes.Buffer
	b.WriteString(magic)
	b.Write(w.id[:])
	writeTinyText(&b, defaultEncoding)
	writeTinyText(&b, defaultCompression)

	names := make([]string, 0, len(w.tags))
	for name := range w.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteByte(byte(len(names)))
	for _, name := range names {
		writeTinyText(&b, name)
		writeTagValue(&b, w.tags[name])
	}

	b.WriteByte(byte(len(w.contentTypes)))
	for _, ct := range w.contentTypes {
		writeText(&b, ct)
	}

	headerLen := int64(b.Len()) + 4 + 8 + 8
	storeOffset := headerLen + refsLen
	storeLen := int64(4+8*len(w.binOffsets)) + w.storeSize
	fileSize := storeOffset + storeLen

	binary.Write(&b, binary.BigEndian, w.blobCount)
	binary.Write(&b, binary.BigEndian, uint64(storeOffset))
	binary.Write(&b, binary.BigEndian, uint64(fileSize))
	return b.Bytes()
}
