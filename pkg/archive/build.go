package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wikislob/wikislob/pkg/config"
	"github.com/wikislob/wikislob/pkg/progress"
	"github.com/wikislob/wikislob/pkg/slob"
)

const htmlContentType = "text/html; charset=utf-8"

// assetTypes maps bundled static asset extensions to content types. Only
// files under the js, css and images subdirectories are bundled.
var assetTypes = map[string]string{
	".js":   "application/javascript",
	".css":  "text/css",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
}

var assetDirs = map[string]bool{"js": true, "css": true, "images": true}

var hrefRe = regexp.MustCompile(`href="([^"]*)"`)

// Build writes entries into a new slob archive at outPath. It refuses to
// overwrite an existing file.
func Build(entries []Entry, outPath string, cfg *config.ArchiveConfig, goldendict bool, prog *progress.Reporter) error {
	if outPath == "" {
		return errors.New("no output file defined")
	}
	if _, err := os.Stat(outPath); err == nil {
		return fmt.Errorf("output file %s already exists", outPath)
	}

	w, err := slob.Create(outPath, slob.WithMinBinSize(cfg.MinBinSize))
	if err != nil {
		return err
	}
	defer w.Discard()

	if !goldendict {
		slog.Info("goldendict compatibility not set")
	}

	prog.Start("adding", len(entries))
	defer prog.Stop()

	for _, e := range entries {
		content := e.HTML
		if goldendict {
			content = goldendictLinks(content)
		}
		content = cfg.CSSLinks + content
		if err := w.Add([]byte(content), htmlContentType, e.Headwords...); err != nil {
			return err
		}
		prog.Tick()
	}

	if err := addAssets(w, cfg.IncludeDir); err != nil {
		return err
	}

	tags := map[string]string{
		"label":        cfg.Label,
		"license.name": cfg.LicenseName,
		"license.url":  cfg.LicenseURL,
		"source":       cfg.Source,
		"uri":          cfg.URI,
	}
	for name, value := range tags {
		if err := w.Tag(name, value); err != nil {
			return err
		}
	}

	prog.Stop()
	slog.Info("finishing slob", slog.String("path", outPath))
	return w.Finalize()
}

// goldendictLinks points entry-relative hrefs at the gdlookup scheme so
// GoldenDict resolves them as dictionary lookups.
func goldendictLinks(content string) string {
	return hrefRe.ReplaceAllStringFunc(content, func(m string) string {
		v := m[len(`href="`) : len(m)-1]
		if strings.HasPrefix(v, "http") || strings.HasPrefix(v, "/") || strings.HasPrefix(v, "#") {
			return m
		}
		return `href="gdlookup://localhost/` + v + `"`
	})
}

// addAssets bundles scripts, styles and images from dir under the "~/"
// key prefix, the path entry HTML references them by.
func addAssets(w *slob.Writer, dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); err != nil {
		slog.Warn("include dir not found, skipping assets", slog.String("dir", dir))
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !assetDirs[strings.SplitN(rel, "/", 2)[0]] {
			return nil
		}
		ctype, ok := assetTypes[strings.ToLower(filepath.Ext(rel))]
		if !ok {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		slog.Debug("adding asset", slog.String("key", "~/"+rel))
		return w.Add(data, ctype, "~/"+rel)
	})
}
