// Package fetch orchestrates the tool's operations over a wiki site and a
// snapshot file: listing collection titles, fetching articles, applying
// incremental updates and re-normalizing stored content.
//
// All operations are sequential with blocking I/O; a failed network call
// aborts the operation.
package fetch

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/wikislob/wikislob/pkg/config"
	"github.com/wikislob/wikislob/pkg/normalize"
	"github.com/wikislob/wikislob/pkg/progress"
	"github.com/wikislob/wikislob/pkg/ranges"
	"github.com/wikislob/wikislob/pkg/snapshot"
	"github.com/wikislob/wikislob/pkg/wiki"
)

// Site is the wiki surface the fetcher needs. *wiki.Client implements it;
// tests substitute a fake.
type Site interface {
	ParsePage(title string) (wiki.Page, error)
	AllPages(prefix string) ([]string, error)
	RecentChanges(timestamp string) ([]wiki.Change, error)
}

type Fetcher struct {
	cfg    *config.Config
	site   Site
	norm   *normalize.Normalizer
	pageRe *regexp.Regexp
	prog   *progress.Reporter
}

func New(cfg *config.Config, site Site, prog *progress.Reporter) (*Fetcher, error) {
	pageRe, err := cfg.Collection.PageRe()
	if err != nil {
		return nil, fmt.Errorf("bad page pattern: %w", err)
	}
	if prog == nil {
		prog = progress.New(false)
	}
	return &Fetcher{
		cfg:    cfg,
		site:   site,
		norm:   normalize.New(cfg.Site.BaseURL, cfg.Collection.Prefix),
		pageRe: pageRe,
		prog:   prog,
	}, nil
}

// List writes every collection title to outPath (stdout when empty).
func (f *Fetcher) List(outPath string) error {
	titles, err := f.site.AllPages(f.cfg.Collection.Prefix)
	if err != nil {
		return err
	}

	w, err := snapshot.Create(outPath)
	if err != nil {
		return err
	}
	for _, t := range titles {
		if err := w.WriteLine(t); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	slog.Info("listed titles", slog.Int("count", len(titles)))
	return nil
}

type FetchOptions struct {
	// Titles is a "|"-separated list, or "@path" naming a file with one
	// title per line.
	Titles      string
	InFile      string
	OutFile     string
	MissingOnly bool
	Normalize   bool
}

// Fetch downloads the given titles into a fresh snapshot.
func (f *Fetcher) Fetch(opts FetchOptions) error {
	titles, err := ParseTitles(opts.Titles)
	if err != nil {
		return err
	}

	if opts.MissingOnly {
		if opts.InFile == "" {
			return errors.New("fetch --missing requires an input snapshot")
		}
		titles, err = f.missingTitles(opts.InFile, titles)
		if err != nil {
			return err
		}
		slog.Info("missing entries", slog.Int("count", len(titles)))
	}

	w, err := snapshot.Create(opts.OutFile)
	if err != nil {
		return err
	}

	f.prog.Start("fetching", len(titles))
	defer f.prog.Stop()

	for _, title := range titles {
		rec, err := f.fetchRecord(title, opts.Normalize)
		if err != nil {
			return err
		}
		if err := w.Write(rec); err != nil {
			return err
		}
		f.prog.Tick()
	}
	return w.Close()
}

// NormalizeSnapshot re-runs the normalizer over every record of a
// snapshot. Normalization is idempotent, so this is safe on snapshots
// that were already normalized at fetch time.
func (f *Fetcher) NormalizeSnapshot(inPath, outPath string) error {
	if inPath == "" {
		return errors.New("normalize requires an input snapshot")
	}

	rd, err := snapshot.Open(inPath)
	if err != nil {
		return err
	}
	defer rd.Close()

	w, err := snapshot.Create(outPath)
	if err != nil {
		return err
	}

	total, _ := snapshot.Count(inPath)
	f.prog.Start("normalizing", total)
	defer f.prog.Stop()

	for rd.Scan() {
		var rec snapshot.Record
		if err := rd.Decode(&rec); err != nil {
			return err
		}
		rec.Content, err = f.norm.Normalize(rec.Content)
		if err != nil {
			return err
		}
		if err := w.Write(rec); err != nil {
			return err
		}
		f.prog.Tick()
	}
	if err := rd.Err(); err != nil {
		return err
	}
	return w.Close()
}

// fetchRecord downloads one article and fills in its page range. The range
// is computed after optional normalization; normalization preserves page
// markers, so the two orders agree.
func (f *Fetcher) fetchRecord(title string, doNorm bool) (snapshot.Record, error) {
	pg, err := f.site.ParsePage(title)
	if err != nil {
		return snapshot.Record{}, err
	}

	rec := snapshot.Record{
		Page:    pg.Title,
		PageID:  pg.PageID,
		RevID:   pg.RevID,
		Content: pg.HTML,
	}
	if doNorm {
		rec.Content, err = f.norm.Normalize(rec.Content)
		if err != nil {
			return snapshot.Record{}, err
		}
	}
	if err := f.applyRange(&rec); err != nil {
		return snapshot.Record{}, err
	}
	return rec, nil
}

func (f *Fetcher) applyRange(rec *snapshot.Record) error {
	r, err := ranges.Detect(rec.Content, f.pageRe)
	if err != nil {
		return err
	}
	rec.Volume, rec.Start, rec.End = r.Volume, r.Start, r.End
	return nil
}

// missingTitles filters titles down to those not present in the snapshot,
// preserving input order.
func (f *Fetcher) missingTitles(inPath string, titles []string) ([]string, error) {
	rd, err := snapshot.Open(inPath)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	found := make(map[string]bool)
	for rd.Scan() {
		var rec snapshot.Record
		if err := rd.Decode(&rec); err != nil {
			return nil, err
		}
		found[rec.Page] = true
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, t := range titles {
		if !found[t] {
			missing = append(missing, t)
		}
	}
	return missing, nil
}
