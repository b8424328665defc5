package htmlutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"ordersync/lib/renderer"

	"github.com/PuerkitoBio/goquery"
)

// Parser maps raw page elements into field values. Keeping this behind
// an interface means the sync core carries no knowledge of any one
// page layout.
type Parser interface {
	// ExtractText returns the normalized text content of the first node
	// matching the selector inside the element. An empty selector targets
	// the element itself.
	ExtractText(el renderer.Element, selector string) (string, error)
	// ExtractAttribute returns an attribute value of the first node
	// matching the selector inside the element.
	ExtractAttribute(el renderer.Element, selector, attr string) (string, error)
}

// DocumentParser is the goquery-backed Parser used in production.
type DocumentParser struct{}

func (DocumentParser) find(el renderer.Element, selector string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(el.HTML()))
	if err != nil {
		return nil, err
	}

	if selector == "" {
		sel := doc.Find("body").Children().First()
		if sel.Length() == 0 {
			return nil, fmt.Errorf("element has no content")
		}
		return sel, nil
	}

	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("no node matches selector %q", selector)
	}
	return sel.First(), nil
}

func (p DocumentParser) ExtractText(el renderer.Element, selector string) (string, error) {
	sel, err := p.find(el, selector)
	if err != nil {
		return "", err
	}
	return CleanText(sel.Text()), nil
}

func (p DocumentParser) ExtractAttribute(el renderer.Element, selector, attr string) (string, error) {
	sel, err := p.find(el, selector)
	if err != nil {
		return "", err
	}
	val, ok := sel.Attr(attr)
	if !ok {
		return "", fmt.Errorf("attribute %q not present on %q", attr, selector)
	}
	return val, nil
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText strips non-printable runes and collapses the whitespace
// runs that rendered HTML tends to carry.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}
