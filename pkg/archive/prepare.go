// Package archive turns a snapshot into the final offline dictionary:
// it filters and deduplicates records into entries, then writes them into
// a slob container together with static assets and metadata tags.
package archive

import (
	"log/slog"
	"strings"

	"github.com/wikislob/wikislob/pkg/progress"
	"github.com/wikislob/wikislob/pkg/snapshot"
)

// Entry is one dictionary article ready for archival.
type Entry struct {
	Headwords []string
	HTML      string
}

type Stats struct {
	Total      int
	Ignored    int
	Duplicated int
}

// Prepare reads the snapshot and keeps the first occurrence of every
// properly prefixed title, de-prefixed into its headword form. Misnamed
// and duplicate records are skipped and counted, never fatal.
func Prepare(rd *snapshot.Reader, prefix string, prog *progress.Reporter) ([]Entry, Stats, error) {
	var entries []Entry
	var stats Stats
	seen := make(map[string]bool)

	prog.Start("reading entries", 0)
	defer prog.Stop()

	for rd.Scan() {
		var rec snapshot.Record
		if err := rd.Decode(&rec); err != nil {
			return nil, stats, err
		}
		stats.Total++
		prog.Tick()

		title, ok := strings.CutPrefix(rec.Page, prefix+"/")
		if !ok {
			slog.Warn("ignoring misnamed page", slog.String("title", rec.Page))
			stats.Ignored++
			continue
		}
		if seen[title] {
			slog.Warn("duplicate entry", slog.String("title", title))
			stats.Duplicated++
			continue
		}
		seen[title] = true

		entries = append(entries, Entry{
			Headwords: []string{title},
			HTML:      rec.Content,
		})
	}
	if err := rd.Err(); err != nil {
		return nil, stats, err
	}

	slog.Info("entries prepared",
		slog.Int("total", stats.Total),
		slog.Int("ignored", stats.Ignored),
		slog.Int("duplicated", stats.Duplicated),
	)
	return entries, stats, nil
}
