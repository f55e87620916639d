// Package wiki is a thin client for the MediaWiki API: parsed page
// content, collection title enumeration and the recent-changes feed.
//
// There is no retry policy. A failed call aborts the operation that made
// it; the snapshot on disk stays untouched until a run completes.
package wiki

import (
	"fmt"

	"cgt.name/pkg/go-mwclient"
	"cgt.name/pkg/go-mwclient/params"
	"github.com/antonholmquist/jason"

	"github.com/wikislob/wikislob/pkg/config"
)

// Page is the parsed rendering of one article.
type Page struct {
	Title  string
	PageID int64
	RevID  int64
	HTML   string
}

// Change is one entry of the recent-changes feed.
type Change struct {
	Title  string
	Type   string
	PageID int64
	RevID  int64
}

type Client struct {
	mw         *mwclient.Client
	namespaces string
}

func New(cfg *config.Config) (*Client, error) {
	if cfg.Site.CheckRobots {
		if err := checkRobots(cfg.Site.APIURL, cfg.Site.UserAgent); err != nil {
			return nil, err
		}
	}

	mw, err := mwclient.New(cfg.Site.APIURL, cfg.Site.UserAgent)
	if err != nil {
		return nil, err
	}

	return &Client{
		mw:         mw,
		namespaces: cfg.Collection.Namespaces,
	}, nil
}

// ParsePage fetches the rendered HTML plus identity of a single article.
func (c *Client) ParsePage(title string) (Page, error) {
	resp, err := c.mw.Get(params.Values{
		"action":        "parse",
		"page":          title,
		"prop":          "text|revid",
		"formatversion": "2",
	})
	if err != nil {
		return Page{}, fmt.Errorf("parse %q: %w", title, err)
	}

	var p Page
	if p.Title, err = resp.GetString("parse", "title"); err != nil {
		return Page{}, fmt.Errorf("parse %q: %w", title, err)
	}
	if p.PageID, err = resp.GetInt64("parse", "pageid"); err != nil {
		return Page{}, fmt.Errorf("parse %q: %w", title, err)
	}
	if p.RevID, err = resp.GetInt64("parse", "revid"); err != nil {
		return Page{}, fmt.Errorf("parse %q: %w", title, err)
	}
	if p.HTML, err = resp.GetString("parse", "text"); err != nil {
		return Page{}, fmt.Errorf("parse %q: %w", title, err)
	}
	return p, nil
}

// AllPages enumerates every title starting with prefix in the article
// namespace, following API continuation.
func (c *Client) AllPages(prefix string) ([]string, error) {
	q := c.mw.NewQuery(params.Values{
		"action":        "query",
		"list":          "allpages",
		"apprefix":      prefix,
		"aplimit":       "max",
		"formatversion": "2",
	})

	var titles []string
	for q.Next() {
		pages, err := q.Resp().GetObjectArray("query", "allpages")
		if err != nil {
			return nil, fmt.Errorf("allpages: %w", err)
		}
		for _, pg := range pages {
			title, err := pg.GetString("title")
			if err != nil {
				return nil, fmt.Errorf("allpages: %w", err)
			}
			titles = append(titles, title)
		}
	}
	if err := q.Err(); err != nil {
		return nil, fmt.Errorf("allpages: %w", err)
	}
	return titles, nil
}

// RecentChanges lists top edits and page creations since timestamp in the
// configured namespaces, excluding redirects, anonymous and bot edits.
func (c *Client) RecentChanges(timestamp string) ([]Change, error) {
	q := c.mw.NewQuery(params.Values{
		"action":        "query",
		"list":          "recentchanges",
		"rcstart":       timestamp,
		"rcdir":         "newer",
		"rcnamespace":   c.namespaces,
		"rctoponly":     "1",
		"rctype":        "edit|new",
		"rcshow":        "!redirect|!anon|!bot",
		"rcprop":        "title|ids|timestamp",
		"rclimit":       "max",
		"formatversion": "2",
	})

	var changes []Change
	for q.Next() {
		items, err := q.Resp().GetObjectArray("query", "recentchanges")
		if err != nil {
			return nil, fmt.Errorf("recentchanges: %w", err)
		}
		for _, item := range items {
			ch, err := decodeChange(item)
			if err != nil {
				return nil, fmt.Errorf("recentchanges: %w", err)
			}
			changes = append(changes, ch)
		}
	}
	if err := q.Err(); err != nil {
		return nil, fmt.Errorf("recentchanges: %w", err)
	}
	return changes, nil
}

func decodeChange(obj *jason.Object) (Change, error) {
	var ch Change
	var err error
	if ch.Title, err = obj.GetString("title"); err != nil {
		return Change{}, err
	}
	if ch.Type, err = obj.GetString("type"); err != nil {
		return Change{}, err
	}
	if ch.PageID, err = obj.GetInt64("pageid"); err != nil {
		return Change{}, err
	}
	if ch.RevID, err = obj.GetInt64("revid"); err != nil {
		return Change{}, err
	}
	return ch, nil
}
