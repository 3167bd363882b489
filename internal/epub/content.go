package epub

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// findFragment returns the element addressed by a fragment identifier:
// first by id, then by the legacy name attribute.
func findFragment(doc *goquery.Document, fragment string) *html.Node {
	if fragment == "" {
		return nil
	}
	var found *html.Node
	for _, key := range []string{"id", "name"} {
		doc.Find("[" + key + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, _ := s.Attr(key); v == fragment {
				found = s.Nodes[0]
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// documentRoot returns the root node of a parsed document.
func documentRoot(doc *goquery.Document) *html.Node {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil
	}
	return doc.Nodes[0]
}
