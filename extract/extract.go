// Package extract turns a page DOM into document content: main-content
// selection, newline-separated text, a Markdown rendering, and the title.
package extract

import (
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"

	"sitehound/page"
)

// DefaultSelectors is the main-content candidate list used when the
// configuration does not provide one.
var DefaultSelectors = []string{"main", "#main-content", "article"}

// markdownStrip are subtrees excluded from the Markdown rendering on top
// of the usual noise tags.
var markdownStrip = []string{"nav", "footer"}

// Content is the extraction result for one HTML document.
type Content struct {
	Text     string
	Markdown string
	Title    string
}

// Extractor selects main content and renders text and Markdown.
type Extractor struct {
	selectors []string
	conv      *converter.Converter
	logger    *slog.Logger
}

// New creates an Extractor. selectors are tried in order; nil uses
// DefaultSelectors.
func New(selectors []string, logger *slog.Logger) *Extractor {
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		selectors: selectors,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: logger,
	}
}

// Extract produces text, Markdown and title for the document. Markdown
// conversion failures degrade to an empty Markdown string; extraction
// itself does not fail.
func (e *Extractor) Extract(doc *goquery.Document, pageURL string) Content {
	main := e.mainContent(doc)

	return Content{
		Text:     page.Text(main),
		Markdown: e.markdown(main, pageURL),
		Title:    extractTitle(doc),
	}
}

// mainContent returns the first selector match, falling back to body and
// finally the whole document.
func (e *Extractor) mainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range e.selectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// markdown renders the selection to Markdown on a working copy with nav,
// footer and noise subtrees removed.
func (e *Extractor) markdown(sel *goquery.Selection, pageURL string) string {
	work := sel.Clone()
	page.Clean(work)
	for _, s := range markdownStrip {
		work.Find(s).Remove()
	}

	raw, err := goquery.OuterHtml(work)
	if err != nil {
		e.logger.Warn("markdown render failed", "url", pageURL, "error", err)
		return ""
	}

	md, err := e.conv.ConvertString(raw, converter.WithDomain(pageURL))
	if err != nil {
		e.logger.Warn("markdown conversion failed", "url", pageURL, "error", err)
		return ""
	}
	return strings.TrimSpace(md)
}

// extractTitle prefers <title>, then the first <h1>, else empty.
func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
