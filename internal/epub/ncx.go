package epub

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"

	"github.com/yuanying/bookcore/internal/book"
)

// parseNCX reads the navMap and pageList of an NCX document. Hrefs are
// resolved against ncxPath.
func parseNCX(data []byte, ncxPath string) (toc, pageList []book.TOCItem, err error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(stripBOM(data)); err != nil {
		return nil, nil, fmt.Errorf("epub: parse NCX: %w", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "ncx" {
		return nil, nil, fmt.Errorf("epub: parse NCX: missing ncx root element")
	}
	if navMap := root.SelectElement("navMap"); navMap != nil {
		toc = convertNavPoints(navMap.SelectElements("navPoint"), ncxPath)
	}
	if pl := root.SelectElement("pageList"); pl != nil {
		for _, target := range pl.SelectElements("pageTarget") {
			pageList = append(pageList, navItem(target, ncxPath))
		}
	}
	return toc, pageList, nil
}

// convertNavPoints recursively converts navPoint elements.
func convertNavPoints(points []*etree.Element, ncxPath string) []book.TOCItem {
	if len(points) == 0 {
		return nil
	}
	items := make([]book.TOCItem, 0, len(points))
	for _, np := range points {
		item := navItem(np, ncxPath)
		item.Subitems = convertNavPoints(np.SelectElements("navPoint"), ncxPath)
		items = append(items, item)
	}
	return items
}

// navItem reads the label and target of a navPoint or pageTarget.
func navItem(el *etree.Element, ncxPath string) book.TOCItem {
	var item book.TOCItem
	if label := el.SelectElement("navLabel"); label != nil {
		if text := label.SelectElement("text"); text != nil {
			item.Label = strings.TrimSpace(text.Text())
		}
	}
	if content := el.SelectElement("content"); content != nil {
		item.Href = resolveHref(ncxPath, content.SelectAttrValue("src", ""))
	}
	return item
}
