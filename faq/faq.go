// Package faq recognizes question/answer pairs across several page layout
// families and classifies each answer by how it resolves the question.
package faq

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sitehound/page"
)

// Mode describes the nature of a FAQ answer.
type Mode string

const (
	ModeDirectText      Mode = "DIRECT_TEXT"
	ModeLinkOut         Mode = "LINK_OUT"
	ModePhoneEscalation Mode = "PHONE_ESCALATION"
	ModePDFAttachment   Mode = "PDF_ATTACHMENT"
	ModeVideo           Mode = "VIDEO"
	ModePortalRedirect  Mode = "PORTAL_REDIRECT"
)

// Item is one extracted question/answer pair.
type Item struct {
	Question   string
	AnswerText string
	AnswerHTML string
	Mode       Mode
	// LinkDepth is 0 when the answer is substantively present in place,
	// nil when the answer mostly lives behind a link or elsewhere.
	LinkDepth *int
}

// Strategy recognizes Q/A candidates in one layout family.
type Strategy interface {
	Name() string
	Try(doc *goquery.Document) []Item
}

// Extractor runs strategies in order and keeps the first non-empty result.
// Strategies are not unioned: a page that mixes structures would otherwise
// yield duplicate pairs.
type Extractor struct {
	strategies []Strategy
}

// New creates an Extractor with the default strategy cascade.
func New() *Extractor {
	return &Extractor{strategies: []Strategy{
		detailsStrategy{},
		definitionListStrategy{},
		accordionCardStrategy{},
		quesTextStrategy{},
	}}
}

// Extract returns the Q/A pairs of the first matching strategy, with
// answer modes assigned.
func (e *Extractor) Extract(doc *goquery.Document) []Item {
	for _, s := range e.strategies {
		items := s.Try(doc)
		if len(items) == 0 {
			continue
		}
		for i := range items {
			items[i].Mode = Classify(items[i].AnswerHTML, items[i].AnswerText)
			items[i].LinkDepth = linkDepth(items[i].AnswerText)
		}
		return items
	}
	return nil
}

// linkDepth reports 0 for answers with enough inline text to stand alone.
func linkDepth(answerText string) *int {
	if len(answerText) > 50 {
		zero := 0
		return &zero
	}
	return nil
}

// detailsStrategy handles native disclosure widgets: every <details> with
// a <summary>. The answer is the details subtree minus the summary.
type detailsStrategy struct{}

func (detailsStrategy) Name() string { return "details" }

func (detailsStrategy) Try(doc *goquery.Document) []Item {
	var items []Item
	doc.Find("details").Each(func(_ int, d *goquery.Selection) {
		summary := d.Find("summary").First()
		if summary.Length() == 0 {
			return
		}
		body := d.Clone()
		body.Find("summary").Remove()
		items = append(items, makeItem(page.FlatText(summary), body))
	})
	return items
}

// definitionListStrategy pairs each <dt> with its following <dd>.
type definitionListStrategy struct{}

func (definitionListStrategy) Name() string { return "dl" }

func (definitionListStrategy) Try(doc *goquery.Document) []Item {
	var items []Item
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		dl.Find("dt").Each(func(_ int, dt *goquery.Selection) {
			dd := dt.NextAllFiltered("dd").First()
			if dd.Length() == 0 {
				return
			}
			items = append(items, makeItem(page.FlatText(dt), dd))
		})
	})
	return items
}

// accordionCardStrategy handles bootstrap-style card accordions.
type accordionCardStrategy struct{}

func (accordionCardStrategy) Name() string { return "accordion-card" }

func (accordionCardStrategy) Try(doc *goquery.Document) []Item {
	var items []Item
	doc.Find(".accordion-card").Each(func(_ int, card *goquery.Selection) {
		header := card.Find(".card-header").First()
		question := header
		if btn := header.Find("button").First(); btn.Length() > 0 {
			question = btn
		}
		body := card.Find(".card-body").First()
		if question.Length() == 0 || body.Length() == 0 {
			return
		}
		items = append(items, makeItem(page.FlatText(question), body))
	})
	return items
}

// quesTextStrategy handles the .faq_ques_text / .faq-ans custom markup.
type quesTextStrategy struct{}

func (quesTextStrategy) Name() string { return "ques-text" }

func (quesTextStrategy) Try(doc *goquery.Document) []Item {
	var items []Item
	doc.Find(".faq_ques_text").Each(func(_ int, q *goquery.Selection) {
		ans := q.Parent().Find(".faq-ans").First()
		if ans.Length() == 0 {
			return
		}
		items = append(items, makeItem(page.FlatText(q), ans))
	})
	return items
}

func makeItem(question string, answer *goquery.Selection) Item {
	html, err := goquery.OuterHtml(answer)
	if err != nil {
		html = ""
	}
	return Item{
		Question:   strings.TrimSpace(question),
		AnswerText: strings.TrimSpace(page.FlatText(answer)),
		AnswerHTML: strings.TrimSpace(html),
	}
}

var phoneRe = regexp.MustCompile(`(\+\d{1,2}\s)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)

var videoTokens = []string{"video", "transcript"}

type rule struct {
	mode  Mode
	match func(htmlLower, textLower string, hrefs []string) bool
}

// classifyRules is the precedence table: first match wins.
var classifyRules = []rule{
	{ModePortalRedirect, func(_, _ string, hrefs []string) bool {
		return anyHref(hrefs, func(h string) bool {
			return strings.Contains(h, "login") || strings.Contains(h, "account")
		})
	}},
	{ModePDFAttachment, func(_, _ string, hrefs []string) bool {
		return anyHref(hrefs, func(h string) bool {
			return strings.HasSuffix(strings.SplitN(h, "?", 2)[0], ".pdf")
		})
	}},
	{ModeVideo, func(htmlLower, _ string, _ []string) bool {
		for _, tok := range videoTokens {
			if strings.Contains(htmlLower, tok) {
				return true
			}
		}
		return false
	}},
	{ModePhoneEscalation, func(_, textLower string, _ []string) bool {
		return phoneRe.MatchString(textLower)
	}},
	{ModeLinkOut, func(_, _ string, hrefs []string) bool {
		return len(hrefs) > 0
	}},
}

// Classify maps an answer's HTML and text onto a Mode via the precedence
// table; DIRECT_TEXT is the fallback.
func Classify(answerHTML, answerText string) Mode {
	htmlLower := strings.ToLower(answerHTML)
	textLower := strings.ToLower(answerText)
	hrefs := extractHrefs(answerHTML)

	for _, r := range classifyRules {
		if r.match(htmlLower, textLower, hrefs) {
			return r.mode
		}
	}
	return ModeDirectText
}

func extractHrefs(rawHTML string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		hrefs = append(hrefs, strings.ToLower(strings.TrimSpace(a.AttrOr("href", ""))))
	})
	return hrefs
}

func anyHref(hrefs []string, pred func(string) bool) bool {
	for _, h := range hrefs {
		if pred(h) {
			return true
		}
	}
	return false
}
