package sonar

import (
	"strings"

	"golang.org/x/net/html"
)

// TooltipIndex resolves element ids to their trimmed text content.
// One index serves one parse pass over one document; lookups are memoised.
type TooltipIndex struct {
	root  *html.Node
	cache map[string]string
}

// NewTooltipIndex creates an index over the document rooted at root.
func NewTooltipIndex(root *html.Node) *TooltipIndex {
	return &TooltipIndex{root: root, cache: make(map[string]string)}
}

// Resolve returns the text of the first element with the given id.
// Missing elements and empty text both report false.
func (t *TooltipIndex) Resolve(id string) (string, bool) {
	if t == nil || t.root == nil || id == "" {
		return "", false
	}
	if text, ok := t.cache[id]; ok {
		return text, text != ""
	}

	text := ""
	if node := findByID(t.root, id); node != nil {
		text = strings.TrimSpace(nodeText(node))
	}
	t.cache[id] = text
	return text, text != ""
}

// Cached returns how many ids have been looked up so far.
func (t *TooltipIndex) Cached() int {
	if t == nil {
		return 0
	}
	return len(t.cache)
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// nodeText mirrors DOM textContent.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
