package epub

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/yuanying/bookcore/internal/book"
)

// parseNavDocument reads the toc and page-list navs of an EPUB 3 navigation
// document located at navPath.
func parseNavDocument(data []byte, navPath string) (toc, pageList []book.TOCItem, err error) {
	doc, err := html.Parse(bytes.NewReader(stripBOM(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("epub: parse nav document: %w", err)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "nav" {
			ol := firstDescendant(n, "ol")
			switch {
			case ol == nil:
			case hasEpubType(n, "toc") && toc == nil:
				toc = parseNavList(ol, navPath)
			case hasEpubType(n, "page-list") && pageList == nil:
				pageList = parseNavList(ol, navPath)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return toc, pageList, nil
}

// parseNavList converts the li children of an ol element.
func parseNavList(ol *html.Node, navPath string) []book.TOCItem {
	var items []book.TOCItem
	for c := ol.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		var item book.TOCItem
		for e := c.FirstChild; e != nil; e = e.NextSibling {
			if e.Type != html.ElementNode {
				continue
			}
			switch e.Data {
			case "a":
				if item.Href == "" {
					item.Href = resolveHref(navPath, attr(e, "href"))
					item.Label = collapseSpace(nodeText(e))
				}
			case "span":
				if item.Label == "" {
					item.Label = collapseSpace(nodeText(e))
				}
			case "ol":
				item.Subitems = parseNavList(e, navPath)
			}
		}
		items = append(items, item)
	}
	return items
}

// hasEpubType checks whether n has an epub:type attribute containing token.
func hasEpubType(n *html.Node, token string) bool {
	for _, t := range strings.Fields(attr(n, "epub:type")) {
		if t == token {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func firstDescendant(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := firstDescendant(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
