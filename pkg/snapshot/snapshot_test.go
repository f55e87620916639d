package snapshot

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(i int) *int { return &i }

func sampleRecords() []Record {
	return []Record{
		{Page: "1911 Encyclopædia Britannica/Abacus", PageID: 101, RevID: 9001,
			Content: "<p>ABACUS</p>", Volume: intp(1), Start: intp(41), End: intp(42)},
		{Page: "1911 Encyclopædia Britannica/Abbey", PageID: 102, RevID: 9002,
			Content: "<p>ABBEY</p>"},
		{Page: "1911 Encyclopædia Britannica/Apple", PageID: 103, RevID: 9003,
			Content: "<p>APPLE</p>", Volume: intp(2), Start: intp(5), End: intp(5)},
	}
}

func writeSnapshot(t *testing.T, path string, recs []Record) {
	t.Helper()
	w, err := Create(path)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
}

func readAll(t *testing.T, rd *Reader) []Record {
	t.Helper()
	var out []Record
	for rd.Scan() {
		var rec Record
		require.NoError(t, rd.Decode(&rec))
		out = append(out, rec)
	}
	require.NoError(t, rd.Err())
	return out
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	want := sampleRecords()
	writeSnapshot(t, path, want)

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	assert.Equal(t, want, readAll(t, rd))
}

func TestRoundTripGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json.gz")
	want := sampleRecords()

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	for _, rec := range want {
		b, err := json.Marshal(rec)
		require.NoError(t, err)
		_, err = gz.Write(append(b, '\n'))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	assert.Equal(t, want, readAll(t, rd))
}

func TestOpenWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	recs := sampleRecords()
	writeSnapshot(t, path, recs)

	tests := []struct {
		name  string
		start int
		limit int
		want  []string
	}{
		{"skip first", 1, 0, []string{recs[1].Page, recs[2].Page}},
		{"limit", 0, 2, []string{recs[0].Page, recs[1].Page}},
		{"window", 1, 1, []string{recs[1].Page}},
		{"skip past end", 5, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd, err := OpenWindow(path, tt.start, tt.limit)
			require.NoError(t, err)
			defer rd.Close()

			var pages []string
			for _, rec := range readAll(t, rd) {
				pages = append(pages, rec.Page)
			}
			assert.Equal(t, tt.want, pages)
		})
	}
}

func TestScanSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(Record{Page: "A"}))
	require.NoError(t, w.WriteLine(""))
	require.NoError(t, w.Write(Record{Page: "B"}))
	require.NoError(t, w.Close())

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	assert.Len(t, readAll(t, rd), 2)
}

func TestCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	writeSnapshot(t, path, sampleRecords())

	n, ok := Count(path)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = Count(filepath.Join(t.TempDir(), "snap.json.bz2"))
	assert.False(t, ok)
}

func TestTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	writeSnapshot(t, path, nil)

	mtime := time.Date(2026, 3, 14, 15, 9, 0, 0, time.Local)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	ts, err := Timestamp(path)
	require.NoError(t, err)
	assert.Equal(t, "20260314", ts)
}

func TestPadTimestamp(t *testing.T) {
	assert.Equal(t, "20260314000000", PadTimestamp("20260314"))
	assert.Equal(t, "20260314150900", PadTimestamp("20260314150900"))
}

func TestHasRange(t *testing.T) {
	assert.False(t, (&Record{}).HasRange())
	assert.True(t, (&Record{Volume: intp(1)}).HasRange())
	assert.True(t, (&Record{End: intp(3)}).HasRange())
}
