// Package ranges tracks which constituent source pages an article was
// composed from, and which source pages changed since a snapshot.
//
// Wikisource articles are transcluded from per-page proofreading documents.
// Editing a constituent page changes the article's rendered content without
// touching the article's own revision history, so page-range overlap is a
// second change-detection channel next to revision ids.
package ranges

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Range is the inclusive span of page indices (within one volume) that
// contributed to an article. All fields nil means the article carries no
// usable page markers and is exempt from range-based change detection.
type Range struct {
	Volume *int
	Start  *int
	End    *int
}

func (r Range) Valid() bool {
	return r.Volume != nil && r.Start != nil && r.End != nil
}

// Detect scans an article's HTML for page-marker elements (span.pagenum)
// and returns the volume of the first marker plus the minimum and maximum
// page index seen. pageName must match the marker's data-page-name with
// the volume as group 1.
//
// A marker missing an attribute, a page name not matching the pattern or
// an unparsable index makes the whole article unrange-able: the zero Range
// is returned. Same when no markers are present at all.
func Detect(content string, pageName *regexp.Regexp) (Range, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), ctx)
	if err != nil {
		return Range{}, err
	}

	var markers []*html.Node
	for _, n := range nodes {
		collectMarkers(n, &markers)
	}
	if len(markers) == 0 {
		return Range{}, nil
	}

	var volume, start, end int
	for i, m := range markers {
		name, ok := attrVal(m, "data-page-name")
		if !ok {
			return Range{}, nil
		}
		sub := pageName.FindStringSubmatch(name)
		if sub == nil {
			return Range{}, nil
		}
		idxStr, ok := attrVal(m, "data-page-index")
		if !ok {
			return Range{}, nil
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return Range{}, nil
		}

		if i == 0 {
			// Later markers are assumed to share the first marker's volume.
			volume, _ = strconv.Atoi(sub[1])
			start, end = idx, idx
			continue
		}
		if idx < start {
			start = idx
		}
		if idx > end {
			end = idx
		}
	}

	return Range{Volume: &volume, Start: &start, End: &end}, nil
}

func collectMarkers(n *html.Node, out *[]*html.Node) {
	if n.Type == html.ElementNode && n.Data == "span" && hasClass(n, "pagenum") {
		*out = append(*out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectMarkers(c, out)
	}
}

func attrVal(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attrVal(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// Map records, per volume, which constituent page indices changed since
// the snapshot timestamp. Built from the recent-changes feed and consumed
// within a single update run.
type Map map[int]map[int]struct{}

func (m Map) Add(volume, index int) {
	set, ok := m[volume]
	if !ok {
		set = make(map[int]struct{})
		m[volume] = set
	}
	set[index] = struct{}{}
}

// Overlaps reports whether any index in r's span changed. Invalid ranges
// never overlap.
func (m Map) Overlaps(r Range) bool {
	if !r.Valid() {
		return false
	}
	set, ok := m[*r.Volume]
	if !ok {
		return false
	}
	for i := *r.Start; i <= *r.End; i++ {
		if _, ok := set[i]; ok {
			return true
		}
	}
	return false
}
