package snapshot

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// Articles can be large; give the scanner plenty of room.
const maxLineSize = 64 << 20

// Reader iterates over the records of a snapshot file. The compression is
// picked from the file name: ".json" is plain text, ".gz" is gzip and
// anything else is treated as bzip2.
type Reader struct {
	f       io.Closer
	sc      *bufio.Scanner
	start   int
	limit   int
	n       int
	skipped bool
	line    []byte
}

func Open(path string) (*Reader, error) {
	return OpenWindow(path, 0, 0)
}

// OpenWindow opens a snapshot skipping the first start records and
// yielding at most limit records (limit <= 0 means no limit).
func OpenWindow(path string, start, limit int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".json"):
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		r = gz
	default:
		r = bzip2.NewReader(f)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), maxLineSize)

	return &Reader{f: f, sc: sc, start: start, limit: limit}, nil
}

func (r *Reader) Scan() bool {
	if !r.skipped {
		for i := 0; i < r.start; i++ {
			if !r.sc.Scan() {
				return false
			}
		}
		r.skipped = true
	}
	if r.limit > 0 && r.n >= r.limit {
		return false
	}
	for r.sc.Scan() {
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		r.line = line
		r.n++
		return true
	}
	return false
}

// Decode unmarshals the current record.
func (r *Reader) Decode(rec *Record) error {
	return json.Unmarshal(r.line, rec)
}

func (r *Reader) Err() error {
	return r.sc.Err()
}

func (r *Reader) Close() error {
	return r.f.Close()
}

// Count returns the number of lines of a plain snapshot, for progress
// totals. Compressed snapshots are not counted.
func Count(path string) (int, bool) {
	if !strings.HasSuffix(path, ".json") {
		return 0, false
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	count := 0
	buf := make([]byte, 256*1024)
	for {
		n, err := f.Read(buf)
		count += bytes.Count(buf[:n], []byte{'\n'})
		if err != nil {
			return count, err == io.EOF
		}
	}
}

// Timestamp derives a change-feed start timestamp from the snapshot's
// modification time.
func Timestamp(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fi.ModTime().Format("20060102"), nil
}

// PadTimestamp pads a timestamp on the right with zeros to the 14-digit
// form the wiki API expects.
func PadTimestamp(ts string) string {
	for len(ts) < 14 {
		ts += "0"
	}
	return ts
}
