package fetch

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/wikislob/wikislob/pkg/ranges"
	"github.com/wikislob/wikislob/pkg/snapshot"
	"github.com/wikislob/wikislob/pkg/wiki"
)

// changeSet partitions the recent-changes feed: article-level edits keyed
// by title, and constituent-page edits accumulated into a per-volume map
// of changed page indices.
type changeSet struct {
	articles map[string]wiki.Change
	ranges   ranges.Map
}

func (f *Fetcher) listChanges(timestamp string) (changeSet, error) {
	feed, err := f.site.RecentChanges(timestamp)
	if err != nil {
		return changeSet{}, err
	}

	cs := changeSet{
		articles: make(map[string]wiki.Change),
		ranges:   make(ranges.Map),
	}
	for _, ch := range feed {
		if m := f.pageRe.FindStringSubmatch(ch.Title); m != nil {
			slog.Info("page updated", slog.String("title", ch.Title))
			volume, _ := strconv.Atoi(m[1])
			index, _ := strconv.Atoi(m[2])
			cs.ranges.Add(volume, index)
			continue
		}
		if strings.HasPrefix(ch.Title, f.cfg.Collection.Prefix) {
			// The feed runs oldest to newest; keep the latest revision.
			cs.articles[ch.Title] = ch
		}
	}
	return cs, nil
}

type UpdateOptions struct {
	InFile    string
	OutFile   string
	Start     int
	Limit     int
	Timestamp string
	Normalize bool
}

type UpdateStats struct {
	Updated int
	New     int
}

// Update rewrites the snapshot, re-fetching every record the change
// detector flags and appending articles that appeared since the snapshot
// was taken. A record is re-fetched when the feed carries a strictly newer
// revision of it, or when its page range overlaps a changed constituent
// page.
func (f *Fetcher) Update(opts UpdateOptions) (UpdateStats, error) {
	var stats UpdateStats

	if opts.InFile == "" {
		return stats, errors.New("update requires an input snapshot")
	}

	timestamp := opts.Timestamp
	if timestamp == "" {
		var err error
		timestamp, err = snapshot.Timestamp(opts.InFile)
		if err != nil {
			return stats, err
		}
	}
	timestamp = snapshot.PadTimestamp(timestamp)
	slog.Info("listing changes", slog.String("since", timestamp))

	cs, err := f.listChanges(timestamp)
	if err != nil {
		return stats, err
	}

	rd, err := snapshot.OpenWindow(opts.InFile, opts.Start, opts.Limit)
	if err != nil {
		return stats, err
	}
	defer rd.Close()

	w, err := snapshot.Create(opts.OutFile)
	if err != nil {
		return stats, err
	}

	total, _ := snapshot.Count(opts.InFile)
	f.prog.Start("processing", total)
	defer f.prog.Stop()

	handled := make(map[string]bool)
	for rd.Scan() {
		var rec snapshot.Record
		if err := rd.Decode(&rec); err != nil {
			return stats, err
		}

		// Repair records written before range tracking existed.
		if !rec.HasRange() {
			if err := f.applyRange(&rec); err != nil {
				return stats, err
			}
		}

		rangeChanged := cs.ranges.Overlaps(ranges.Range{
			Volume: rec.Volume,
			Start:  rec.Start,
			End:    rec.End,
		})

		pageChanged := false
		if ch, ok := cs.articles[rec.Page]; ok {
			// Seen in the snapshot, so never a new article, even when
			// the feed revision is not newer.
			handled[rec.Page] = true
			if ch.RevID > rec.RevID {
				pageChanged = true
				rec.RevID = ch.RevID
				rec.PageID = ch.PageID
			}
		}

		if pageChanged || rangeChanged {
			stats.Updated++
			if pageChanged {
				slog.Info("article updated", slog.String("title", rec.Page))
			} else {
				slog.Info("range updated", slog.String("title", rec.Page))
			}

			pg, err := f.site.ParsePage(rec.Page)
			if err != nil {
				return stats, err
			}
			rec.Content = pg.HTML
			if opts.Normalize {
				rec.Content, err = f.norm.Normalize(rec.Content)
				if err != nil {
					return stats, err
				}
			}
			if err := f.applyRange(&rec); err != nil {
				return stats, err
			}
		}

		if err := w.Write(rec); err != nil {
			return stats, err
		}
		f.prog.Tick()
	}
	if err := rd.Err(); err != nil {
		return stats, err
	}

	// Changed articles the snapshot never had are new.
	for title, ch := range cs.articles {
		if handled[title] {
			continue
		}
		stats.New++
		if ch.Type == "new" {
			slog.Info("new page", slog.String("title", title))
		} else {
			slog.Info("missing page", slog.String("title", title))
		}

		rec, err := f.fetchRecord(title, opts.Normalize)
		if err != nil {
			return stats, err
		}
		if err := w.Write(rec); err != nil {
			return stats, err
		}
	}

	if err := w.Close(); err != nil {
		return stats, err
	}

	if stats.Updated+stats.New == 0 {
		slog.Info("already up-to-date")
	} else {
		slog.Info("update complete", slog.Int("updated", stats.Updated), slog.Int("new", stats.New))
	}
	return stats, nil
}
