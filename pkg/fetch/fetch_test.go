package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikislob/wikislob/pkg/config"
	"github.com/wikislob/wikislob/pkg/snapshot"
	"github.com/wikislob/wikislob/pkg/wiki"
)

const prefix = "1911 Encyclopædia Britannica"

// fakeSite serves canned pages and changes and records what was asked.
type fakeSite struct {
	pages         map[string]wiki.Page
	changes       []wiki.Change
	titles        []string
	parsed        []string
	lastTimestamp string
}

func (s *fakeSite) ParsePage(title string) (wiki.Page, error) {
	s.parsed = append(s.parsed, title)
	pg, ok := s.pages[title]
	if !ok {
		return wiki.Page{}, fmt.Errorf("no such page: %s", title)
	}
	return pg, nil
}

func (s *fakeSite) AllPages(string) ([]string, error) {
	return s.titles, nil
}

func (s *fakeSite) RecentChanges(timestamp string) ([]wiki.Change, error) {
	s.lastTimestamp = timestamp
	return s.changes, nil
}

func marker(volume, index int) string {
	return fmt.Sprintf(`<span class="pagenum" data-page-name="Page:EB1911 - Volume %02d.djvu/%d" data-page-index="%d"></span>`,
		volume, index, index)
}

func page(title string, pageID, revID int64, html string) wiki.Page {
	return wiki.Page{Title: title, PageID: pageID, RevID: revID, HTML: html}
}

func intp(i int) *int { return &i }

func newFetcher(t *testing.T, site Site) *Fetcher {
	t.Helper()
	f, err := New(config.Default(), site, nil)
	require.NoError(t, err)
	return f
}

func writeSnap(t *testing.T, recs []snapshot.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snap.json")
	w, err := snapshot.Create(path)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	return path
}

func readSnap(t *testing.T, path string) []snapshot.Record {
	t.Helper()
	rd, err := snapshot.Open(path)
	require.NoError(t, err)
	defer rd.Close()

	var out []snapshot.Record
	for rd.Scan() {
		var rec snapshot.Record
		require.NoError(t, rd.Decode(&rec))
		out = append(out, rec)
	}
	require.NoError(t, rd.Err())
	return out
}

func TestFetch(t *testing.T) {
	apple := prefix + "/Apple"
	abbey := prefix + "/Abbey"
	site := &fakeSite{pages: map[string]wiki.Page{
		apple: page(apple, 101, 100, marker(2, 5)+"<p>APPLE</p>"),
		abbey: page(abbey, 102, 200, "<p>ABBEY</p>"),
	}}
	f := newFetcher(t, site)

	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, f.Fetch(FetchOptions{Titles: apple + "|" + abbey, OutFile: out}))

	recs := readSnap(t, out)
	require.Len(t, recs, 2)

	assert.Equal(t, apple, recs[0].Page)
	assert.Equal(t, int64(100), recs[0].RevID)
	assert.Equal(t, intp(2), recs[0].Volume)
	assert.Equal(t, intp(5), recs[0].Start)
	assert.Equal(t, intp(5), recs[0].End)

	assert.Equal(t, abbey, recs[1].Page)
	assert.False(t, recs[1].HasRange())
}

func TestFetchMissingOnly(t *testing.T) {
	apple := prefix + "/Apple"
	abbey := prefix + "/Abbey"
	site := &fakeSite{pages: map[string]wiki.Page{
		abbey: page(abbey, 102, 200, "<p>ABBEY</p>"),
	}}
	f := newFetcher(t, site)

	in := writeSnap(t, []snapshot.Record{{Page: apple, RevID: 100}})
	out := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, f.Fetch(FetchOptions{
		Titles:      apple + "|" + abbey,
		InFile:      in,
		OutFile:     out,
		MissingOnly: true,
	}))

	assert.Equal(t, []string{abbey}, site.parsed)
	recs := readSnap(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, abbey, recs[0].Page)
}

func TestFetchMissingRequiresInput(t *testing.T) {
	f := newFetcher(t, &fakeSite{})
	err := f.Fetch(FetchOptions{Titles: "x", MissingOnly: true})
	assert.ErrorContains(t, err, "input snapshot")
}

func TestList(t *testing.T) {
	site := &fakeSite{titles: []string{prefix + "/Abacus", prefix + "/Abbey"}}
	f := newFetcher(t, site)

	out := filepath.Join(t.TempDir(), "titles.txt")
	require.NoError(t, f.List(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, prefix+"/Abacus\n"+prefix+"/Abbey\n", string(data))
}

func TestUpdateNewerRevision(t *testing.T) {
	apple := prefix + "/Apple"
	site := &fakeSite{
		pages: map[string]wiki.Page{
			apple: page(apple, 101, 105, marker(2, 6)+"<p>APPLE v2</p>"),
		},
		changes: []wiki.Change{{Title: apple, Type: "edit", PageID: 101, RevID: 105}},
	}
	f := newFetcher(t, site)

	in := writeSnap(t, []snapshot.Record{{
		Page: apple, PageID: 101, RevID: 100,
		Content: marker(2, 5) + "<p>APPLE</p>",
		Volume:  intp(2), Start: intp(5), End: intp(5),
	}})
	out := filepath.Join(t.TempDir(), "out.json")

	stats, err := f.Update(UpdateOptions{InFile: in, OutFile: out, Timestamp: "20260101"})
	require.NoError(t, err)
	assert.Equal(t, UpdateStats{Updated: 1}, stats)

	recs := readSnap(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(105), recs[0].RevID)
	assert.Contains(t, recs[0].Content, "APPLE v2")
	assert.Equal(t, intp(6), recs[0].Start)
}

func TestUpdateOlderRevisionIgnored(t *testing.T) {
	apple := prefix + "/Apple"
	site := &fakeSite{
		changes: []wiki.Change{{Title: apple, Type: "edit", PageID: 101, RevID: 100}},
	}
	f := newFetcher(t, site)

	stored := snapshot.Record{
		Page: apple, PageID: 101, RevID: 100,
		Content: marker(2, 5), Volume: intp(2), Start: intp(5), End: intp(5),
	}
	in := writeSnap(t, []snapshot.Record{stored})
	out := filepath.Join(t.TempDir(), "out.json")

	stats, err := f.Update(UpdateOptions{InFile: in, OutFile: out, Timestamp: "20260101"})
	require.NoError(t, err)
	assert.Equal(t, UpdateStats{}, stats)

	// The record survives unchanged and is not re-added as a new article.
	recs := readSnap(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, stored, recs[0])
	assert.Empty(t, site.parsed)
}

func TestUpdateConstituentPageOverlap(t *testing.T) {
	apple := prefix + "/Apple"
	other := prefix + "/Other"
	site := &fakeSite{
		pages: map[string]wiki.Page{
			apple: page(apple, 101, 100, marker(7, 5)+marker(7, 9)+"<p>rebuilt</p>"),
		},
		changes: []wiki.Change{{Title: "Page:EB1911 - Volume 07.djvu/6", Type: "edit", RevID: 1}},
	}
	f := newFetcher(t, site)

	in := writeSnap(t, []snapshot.Record{
		{Page: apple, PageID: 101, RevID: 100, Content: marker(7, 5) + marker(7, 9),
			Volume: intp(7), Start: intp(5), End: intp(9)},
		{Page: other, PageID: 102, RevID: 200, Content: marker(8, 1),
			Volume: intp(8), Start: intp(1), End: intp(1)},
	})
	out := filepath.Join(t.TempDir(), "out.json")

	stats, err := f.Update(UpdateOptions{InFile: in, OutFile: out, Timestamp: "20260101"})
	require.NoError(t, err)
	assert.Equal(t, UpdateStats{Updated: 1}, stats)
	assert.Equal(t, []string{apple}, site.parsed)

	recs := readSnap(t, out)
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0].Content, "rebuilt")
	// Revision stays as stored; only constituent pages changed.
	assert.Equal(t, int64(100), recs[0].RevID)
}

func TestUpdateNewArticle(t *testing.T) {
	apple := prefix + "/Apple"
	pear := prefix + "/Pear"
	site := &fakeSite{
		pages: map[string]wiki.Page{
			pear: page(pear, 103, 300, marker(3, 1)+"<p>PEAR</p>"),
		},
		changes: []wiki.Change{{Title: pear, Type: "new", PageID: 103, RevID: 300}},
	}
	f := newFetcher(t, site)

	in := writeSnap(t, []snapshot.Record{{Page: apple, PageID: 101, RevID: 100, Content: "<p>a</p>"}})
	out := filepath.Join(t.TempDir(), "out.json")

	stats, err := f.Update(UpdateOptions{InFile: in, OutFile: out, Timestamp: "20260101"})
	require.NoError(t, err)
	assert.Equal(t, UpdateStats{New: 1}, stats)

	recs := readSnap(t, out)
	require.Len(t, recs, 2)
	assert.Equal(t, pear, recs[1].Page)
	assert.Equal(t, int64(300), recs[1].RevID)
	assert.Equal(t, intp(3), recs[1].Volume)
}

func TestUpdateRepairsMissingRange(t *testing.T) {
	apple := prefix + "/Apple"
	f := newFetcher(t, &fakeSite{})

	in := writeSnap(t, []snapshot.Record{{
		Page: apple, PageID: 101, RevID: 100, Content: marker(4, 2) + marker(4, 3),
	}})
	out := filepath.Join(t.TempDir(), "out.json")

	_, err := f.Update(UpdateOptions{InFile: in, OutFile: out, Timestamp: "20260101"})
	require.NoError(t, err)

	recs := readSnap(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, intp(4), recs[0].Volume)
	assert.Equal(t, intp(2), recs[0].Start)
	assert.Equal(t, intp(3), recs[0].End)
}

func TestUpdateRequiresInput(t *testing.T) {
	f := newFetcher(t, &fakeSite{})
	_, err := f.Update(UpdateOptions{OutFile: "x"})
	assert.ErrorContains(t, err, "input snapshot")
}

func TestUpdateTimestampPadded(t *testing.T) {
	site := &fakeSite{}
	f := newFetcher(t, site)

	in := writeSnap(t, nil)
	out := filepath.Join(t.TempDir(), "out.json")

	_, err := f.Update(UpdateOptions{InFile: in, OutFile: out, Timestamp: "20260101"})
	require.NoError(t, err)
	assert.Equal(t, "20260101000000", site.lastTimestamp)
}

func TestUpdateDefaultTimestampFromSnapshot(t *testing.T) {
	site := &fakeSite{}
	f := newFetcher(t, site)

	in := writeSnap(t, nil)
	out := filepath.Join(t.TempDir(), "out.json")

	_, err := f.Update(UpdateOptions{InFile: in, OutFile: out})
	require.NoError(t, err)
	assert.Len(t, site.lastTimestamp, 14)
	assert.True(t, strings.HasSuffix(site.lastTimestamp, "000000"))
}

func TestParseTitles(t *testing.T) {
	titles, err := ParseTitles("A|B|C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, titles)

	_, err = ParseTitles("")
	assert.ErrorIs(t, err, ErrNoTitles)
}

func TestParseTitlesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.txt")
	require.NoError(t, os.WriteFile(path, []byte("A\n\n  B  \nC\n"), 0o644))

	titles, err := ParseTitles("@" + path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, titles)
}

func TestParseTitlesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o644))

	_, err := ParseTitles("@" + path)
	assert.ErrorIs(t, err, ErrNoTitles)
}
