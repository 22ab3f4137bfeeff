// Package page builds DOM documents from fetched HTML and provides link
// extraction and boilerplate cleanup over goquery selections.
package page

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noiseSelectors are subtrees removed by Clean.
var noiseSelectors = []string{"script", "style", "noscript", "iframe", "svg"}

// Link is one outbound anchor found on a page.
type Link struct {
	// URL is absolute, resolved against the page base.
	URL string
	// Text is the stripped anchor text.
	Text string
	// Rel is the anchor's rel attribute, verbatim.
	Rel string
}

// Parse builds a DOM from HTML bytes.
func Parse(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// ExtractLinks returns every a[href] on the page resolved against base.
// Empty, javascript:, mailto:, and tel: hrefs are skipped.
func ExtractLinks(doc *goquery.Document, base *url.URL) []Link {
	var links []Link
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}
		abs, err := base.Parse(href)
		if err != nil {
			return
		}
		links = append(links, Link{
			URL:  abs.String(),
			Text: strings.TrimSpace(a.Text()),
			Rel:  a.AttrOr("rel", ""),
		})
	})
	return links
}

// Clean removes script, style, noscript, iframe and svg subtrees from the
// selection in place. Callers that need the original DOM intact should
// pass a clone.
func Clean(sel *goquery.Selection) {
	for _, selector := range noiseSelectors {
		sel.Find(selector).Remove()
	}
}

// Text returns the stripped text of a selection with block contents
// separated by newlines: each text node is trimmed, empties are dropped,
// and the remainder is newline-joined. Script and style subtrees are
// excluded.
func Text(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, "\n")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// FlatText is like Text but joins with single spaces, for one-line values
// such as questions and answers.
func FlatText(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, " ")
}
