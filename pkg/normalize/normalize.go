// Package normalize rewrites fetched article HTML for offline use: links
// between collection articles become relative dictionary anchors, remaining
// site-relative references become fully-qualified URLs, and editorial
// chrome (header container, edit-section links, comments) is stripped.
//
// Normalize is a pure transform and is idempotent: running it over already
// normalized content produces no further change. Fetch, update and the
// normalize command may all apply it to the same record.
package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// purellFlags are restricted to transformations that are safe to repeat
// and cannot mangle percent-encoded titles.
const purellFlags = purell.FlagLowercaseScheme |
	purell.FlagLowercaseHost |
	purell.FlagUppercaseEscapes |
	purell.FlagRemoveDefaultPort |
	purell.FlagRemoveDuplicateSlashes

type Normalizer struct {
	base       string
	reInternal *regexp.Regexp
	reSiteRel  *regexp.Regexp
	reHref     *regexp.Regexp
}

// New builds a normalizer for a site (base URL such as
// "https://en.wikisource.org") and a collection title prefix.
func New(base, prefix string) *Normalizer {
	escaped := escapeTitle(prefix)
	return &Normalizer{
		base:       strings.TrimSuffix(base, "/"),
		reInternal: regexp.MustCompile(`href="/wiki/` + regexp.QuoteMeta(escaped) + `/([^"]*)"`),
		reSiteRel:  regexp.MustCompile(`(href|src)="(/(?:wiki|w)/[^"]*)"`),
		reHref:     regexp.MustCompile(`href="([^"]*)"`),
	}
}

// escapeTitle turns a wiki title into its URL path form, e.g.
// "1911 Encyclopædia Britannica" -> "1911_Encyclop%C3%A6dia_Britannica".
func escapeTitle(title string) string {
	return url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

// Normalize applies the rewrite pipeline in fixed order and returns the
// new content.
func (n *Normalizer) Normalize(content string) (string, error) {
	content = n.fixLinks(content)
	content = fixImages(content)
	return n.cleanHTML(content)
}

func (n *Normalizer) fixLinks(content string) string {
	// Links between collection articles become relative anchors.
	content = n.reInternal.ReplaceAllStringFunc(content, func(m string) string {
		sub := n.reInternal.FindStringSubmatch(m)
		return anchorRef(sub[1])
	})

	// Remaining site-relative hrefs and image sources become absolute.
	content = n.reSiteRel.ReplaceAllStringFunc(content, func(m string) string {
		sub := n.reSiteRel.FindStringSubmatch(m)
		attr, path := sub[1], sub[2]
		if attr == "href" && !strings.HasPrefix(path, "/wiki/") {
			return m
		}
		if attr == "src" && !strings.HasPrefix(path, "/w/") {
			return m
		}
		u := n.base + path
		if norm, err := purell.NormalizeURLString(u, purellFlags); err == nil {
			u = norm
		}
		return attr + `="` + u + `"`
	})

	// Whatever is still relative (templates, sister links) becomes a
	// dictionary anchor too.
	content = n.reHref.ReplaceAllStringFunc(content, func(m string) string {
		v := m[len(`href="`) : len(m)-1]
		if strings.HasPrefix(v, "http") || strings.HasPrefix(v, "/") || strings.HasPrefix(v, "#") {
			return m
		}
		return anchorRef(v)
	})

	return content
}

// anchorRef renders an article title as a percent-encoded relative anchor.
// Underscores become %20 and slashes %2F so dictionary readers treat the
// whole title as one key.
func anchorRef(article string) string {
	article = strings.ReplaceAll(article, "_", "%20")
	article = strings.ReplaceAll(article, "/", "%2F")
	return `href="` + article + `"`
}

func fixImages(content string) string {
	return strings.ReplaceAll(content, `src="//`, `src="https://`)
}

// cleanHTML strips the header container, inline edit-section links and
// comment nodes inside the main content region, returning the re-rendered
// fragment.
func (n *Normalizer) cleanHTML(content string) (string, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), ctx)
	if err != nil {
		return "", err
	}

	doc := &html.Node{Type: html.DocumentNode}
	for _, node := range nodes {
		doc.AppendChild(node)
	}
	prune(doc, false)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func prune(n *html.Node, inMain bool) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case isElem(c, "div") && attrVal(c, "id") == "headerContainer":
			n.RemoveChild(c)
		case isElem(c, "span") && hasClass(c, "mw-editsection"):
			n.RemoveChild(c)
		case c.Type == html.CommentNode && inMain:
			n.RemoveChild(c)
		default:
			prune(c, inMain || (isElem(c, "div") && hasClass(c, "mw-parser-output")))
		}
		c = next
	}
}

func isElem(n *html.Node, name string) bool {
	return n.Type == html.ElementNode && n.Data == name
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
