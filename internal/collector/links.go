package collector

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sonargap/internal/loader"
	"sonargap/internal/logging"
)

// fileLinkSelector matches list-view anchors pointing at a single file.
const fileLinkSelector = `a[href*="selected="]`

// ErrNoFileLinks is returned when neither the current page nor a fresh copy
// of it links to any file.
var ErrNoFileLinks = errors.New(`Could not find any file links on this page. Switch to the project "New Code" list view and try again.`)

// FileLink is one file discovered on a list view.
type FileLink struct {
	// Key is the decoded "selected" component key.
	Key   string `json:"key"`
	Href  string `json:"href"`
	Label string `json:"label"`
}

// DiscoverFiles returns the distinct file links of doc in document order.
// Relative hrefs are resolved against base.
func DiscoverFiles(doc *goquery.Document, base *url.URL) []FileLink {
	if doc == nil {
		return nil
	}

	var links []FileLink
	seen := make(map[string]bool)
	doc.Find(fileLinkSelector).Each(func(_ int, a *goquery.Selection) {
		raw, ok := a.Attr("href")
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return
		}
		abs := ref
		if base != nil {
			abs = base.ResolveReference(ref)
		}

		key := abs.Query().Get("selected")
		if key == "" || seen[key] {
			return
		}
		seen[key] = true

		links = append(links, FileLink{
			Key:   key,
			Href:  abs.String(),
			Label: linkLabel(a, key),
		})
	})
	return links
}

func linkLabel(a *goquery.Selection, key string) string {
	if title, ok := a.Attr("title"); ok {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if text := strings.TrimSpace(a.Text()); text != "" {
		return text
	}
	return key
}

// Registry finds the files a batch run should visit.
type Registry struct {
	fetch loader.Source
}

// NewRegistry creates a registry that falls back to fetch when the current
// document has no file links. fetch may be nil.
func NewRegistry(fetch loader.Source) *Registry {
	return &Registry{fetch: fetch}
}

// Gather discovers file links on doc, or on a freshly loaded copy of
// currentURL when doc has none.
func (r *Registry) Gather(ctx context.Context, doc *goquery.Document, currentURL string) ([]FileLink, error) {
	base, _ := url.Parse(currentURL)

	if links := DiscoverFiles(doc, base); len(links) > 0 {
		return links, nil
	}
	if r.fetch == nil || currentURL == "" {
		return nil, ErrNoFileLinks
	}

	logging.CollectDebug("no file links in current document, fetching %s", currentURL)
	fetched, err := r.fetch.Load(ctx, currentURL)
	if err != nil {
		logging.CollectWarn("failed to reload %s: %v", currentURL, err)
		return nil, ErrNoFileLinks
	}
	if fetched.Url != nil {
		base = fetched.Url
	}
	if links := DiscoverFiles(fetched, base); len(links) > 0 {
		return links, nil
	}
	return nil, ErrNoFileLinks
}
