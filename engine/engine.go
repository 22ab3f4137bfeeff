// Package engine drives the crawl: it pulls frontier items, applies the
// robots/domain/section policies, fetches, dispatches by content type,
// runs the extractors, and persists everything back to the store.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"sitehound/artifacts"
	"sitehound/canon"
	"sitehound/extract"
	"sitehound/faq"
	"sitehound/fetch"
	"sitehound/page"
	"sitehound/pdftext"
	"sitehound/robots"
	"sitehound/store"
)

// seedPriority puts seeds ahead of everything discovered later.
const seedPriority = 100

// Config is the engine's crawl policy.
type Config struct {
	Seeds           []string
	AllowedDomains  []string
	MaxDepthFAQ     int
	MaxDepthGeneral int
	// ExcludedSections are site section names; a URL whose path mentions
	// one is recorded as SKIPPED_BY_POLICY without fetching.
	ExcludedSections []string
	// ContentTypeAllowlist entries are media type prefixes ("text/html",
	// "video/"). Empty allows everything.
	ContentTypeAllowlist []string
	Logger               *slog.Logger
}

// Engine is the crawl orchestrator. One Run per process.
type Engine struct {
	store     *store.Store
	fetcher   *fetch.Fetcher
	robots    *robots.Policy
	canon     *canon.Canonicalizer
	extractor *extract.Extractor
	faqs      *faq.Extractor
	writer    *artifacts.Writer
	cfg       Config
	allowed   map[string]bool
	log       *slog.Logger
}

// New wires an Engine from its collaborators.
func New(st *store.Store, f *fetch.Fetcher, rb *robots.Policy, cn *canon.Canonicalizer,
	ex *extract.Extractor, fq *faq.Extractor, w *artifacts.Writer, cfg Config) *Engine {

	allowed := make(map[string]bool, len(cfg.AllowedDomains))
	for _, d := range cfg.AllowedDomains {
		allowed[strings.ToLower(d)] = true
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     st,
		fetcher:   f,
		robots:    rb,
		canon:     cn,
		extractor: ex,
		faqs:      fq,
		writer:    w,
		cfg:       cfg,
		allowed:   allowed,
		log:       logger,
	}
}

// Run crawls until the frontier drains or ctx is canceled. On
// cancellation the in-flight URL finishes its writes under a detached
// context, its queue row is failed with an interruption reason, and the
// loop exits.
func (e *Engine) Run(ctx context.Context) error {
	requeued, err := e.store.RequeueStale()
	if err != nil {
		return fmt.Errorf("recover stale queue rows: %w", err)
	}
	if requeued > 0 {
		e.log.Info("requeued interrupted urls", "count", requeued)
	}

	for _, seed := range e.cfg.Seeds {
		cu := e.canon.Canonicalize(seed)
		if cu == "" {
			e.log.Warn("unparseable seed skipped", "seed", seed)
			continue
		}
		if _, err := e.store.Enqueue(cu, 0, "", seedPriority); err != nil {
			return fmt.Errorf("enqueue seed: %w", err)
		}
	}
	if err := e.store.SetState("last_run_started_at", fmt.Sprintf("%d", time.Now().UnixMilli())); err != nil {
		e.log.Error("store write failed", "key", "last_run_started_at", "error", err)
	}

	for {
		if ctx.Err() != nil {
			e.log.Info("crawl stopped", "reason", ctx.Err())
			return nil
		}

		item, err := e.store.NextPending()
		if errors.Is(err, store.ErrNotFound) {
			e.log.Info("frontier drained")
			return nil
		}
		if err != nil {
			return fmt.Errorf("dequeue: %w", err)
		}

		// The item in flight runs to completion even during shutdown, so
		// its writes are never torn.
		workCtx := context.WithoutCancel(ctx)
		terminal := e.processOne(workCtx, item)

		if ctx.Err() != nil {
			if err := e.store.MarkFailed(item.URL, "interrupted by shutdown"); err != nil {
				e.log.Error("queue update failed", "url", item.URL, "error", err)
			}
			e.log.Info("crawl stopped after in-flight url", "url", item.URL)
			return nil
		}
		if terminal {
			err = e.store.MarkCompleted(item.URL)
		} else {
			err = e.store.MarkFailed(item.URL, "see documents.error_message")
		}
		if err != nil {
			e.log.Error("queue update failed", "url", item.URL, "error", err)
		}
	}
}

// processOne handles a single dequeued URL and records its Document row.
// The returned bool is true when the outcome is a deliberate terminal
// state (crawled or policy-rejected) rather than an error.
func (e *Engine) processOne(ctx context.Context, item *store.QueueItem) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic while processing url", "url", item.URL, "panic", r)
			e.upsertStatus(item, store.StatusError, fmt.Sprintf("panic: %v", r))
			ok = false
		}
	}()

	u, err := url.Parse(item.URL)
	if err != nil || u.Host == "" {
		e.upsertStatus(item, store.StatusError, "unparseable url in frontier")
		return false
	}

	if !e.robots.CanFetch(ctx, item.URL) {
		e.upsertStatus(item, store.StatusBlockedByRobots, "")
		return true
	}

	// Domain safety net: off-domain URLs must never have reached the
	// frontier; drop without a document row if one slips through.
	if !e.isAllowed(u.Host) {
		e.log.Warn("off-domain url dropped from frontier", "url", item.URL)
		return true
	}

	if section := e.excludedSection(u.Path); section != "" {
		e.upsertStatus(item, store.StatusSkippedByPolicy, "section excluded: "+section)
		return true
	}

	start := time.Now()
	resp, err := e.fetcher.Get(ctx, item.URL)
	if err != nil {
		e.store.LogFetch(store.FetchRecord{
			URL: item.URL, Status: "error", ErrorMessage: err.Error(),
			DurationMS: time.Since(start).Milliseconds(),
		})
		e.upsertStatus(item, store.StatusFetchError, err.Error())
		return false
	}
	defer resp.Body.Close()

	e.store.LogFetch(store.FetchRecord{
		URL: item.URL, Status: "ok", StatusCode: resp.StatusCode,
		DurationMS: time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.upsertStatus(item, store.StatusHTTP(resp.StatusCode), "")
		return false
	}

	contentType := baseContentType(resp.Header.Get("Content-Type"))
	if !e.typeAllowed(contentType) {
		e.upsertStatus(item, store.StatusUnsupportedType, "content type "+contentType)
		return true
	}

	// Base row first: children reference it by FK.
	doc := store.Document{
		URL:           item.URL,
		CanonicalURL:  e.canon.Canonicalize(item.URL),
		Status:        store.StatusCrawled,
		DepthFromSeed: item.Depth,
		URLPath:       u.Path,
		ContentType:   contentType,
	}
	if err := e.store.UpsertDocument(doc); err != nil {
		e.log.Error("store write failed", "url", item.URL, "error", err)
		return false
	}

	switch {
	case contentType == "text/html":
		err = e.processHTML(ctx, item, u, resp.Body, &doc)
	case contentType == "application/pdf":
		err = e.processPDF(item, resp.Body, &doc)
	case strings.HasPrefix(contentType, "video/"), strings.HasPrefix(contentType, "audio/"):
		err = e.processMedia(item, contentType, resp.Body, &doc)
	default:
		// Allowed but inert type: the base row is the whole record.
		return true
	}
	if err != nil {
		doc.Status = store.StatusProcessingError
		if isMediaSaveError(err) {
			doc.Status = store.StatusVideoUnavailable
		}
		doc.ErrorMessage = err.Error()
		if uerr := e.store.UpsertDocument(doc); uerr != nil {
			e.log.Error("store write failed", "url", item.URL, "error", uerr)
		}
		e.log.Warn("processing failed", "url", item.URL, "error", err)
		return false
	}

	if err := e.store.UpsertDocument(doc); err != nil {
		e.log.Error("store write failed", "url", item.URL, "error", err)
		return false
	}
	return true
}

// processHTML saves artifacts, extracts content/FAQs/links, records the
// edge set and external registries, and enqueues eligible children.
func (e *Engine) processHTML(ctx context.Context, item *store.QueueItem, base *url.URL, body io.Reader, doc *store.Document) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	htmlPath, err := e.writer.Write(artifacts.KindHTML, item.URL, ".html", raw)
	if err != nil {
		return err
	}

	dom, err := page.Parse(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	content := e.extractor.Extract(dom, item.URL)
	items := e.faqs.Extract(dom)
	isFAQ := len(items) > 0

	paths := store.ArtifactPaths{"html": htmlPath}
	if content.Markdown != "" {
		mdPath, err := e.writer.Write(artifacts.KindMarkdown, item.URL, ".md", []byte(content.Markdown))
		if err != nil {
			return err
		}
		paths["md"] = mdPath
	}

	faqRows := make([]store.FAQItem, 0, len(items))
	for _, it := range items {
		faqRows = append(faqRows, store.FAQItem{
			DocumentURL:       item.URL,
			QuestionText:      it.Question,
			AnswerText:        it.AnswerText,
			AnswerRawHTML:     it.AnswerHTML,
			AnswerMode:        string(it.Mode),
			LinkDepthToAnswer: it.LinkDepth,
		})
	}
	if err := e.store.ReplaceFAQItems(item.URL, faqRows); err != nil {
		return err
	}

	links := page.ExtractLinks(dom, base)
	edges := make([]store.LinkEdge, 0, len(links))
	limit := e.cfg.MaxDepthGeneral
	if isFAQ {
		limit = e.cfg.MaxDepthFAQ
	}

	for _, l := range links {
		child, err := url.Parse(l.URL)
		if err != nil {
			continue
		}
		external := !e.isAllowed(child.Host)
		canonChild := e.canon.Canonicalize(l.URL)
		edges = append(edges, store.LinkEdge{
			ChildURL:          l.URL,
			AnchorText:        l.Text,
			IsExternal:        external,
			CanonicalChildURL: canonChild,
		})

		if external {
			e.store.RegisterExternalURL(l.URL)
			e.store.RegisterExternalDomain(strings.ToLower(child.Hostname()))
			continue
		}
		if canonChild == "" || item.Depth+1 > limit {
			continue
		}
		known, err := e.store.Known(canonChild)
		if err != nil {
			return err
		}
		if !known {
			if _, err := e.store.Enqueue(canonChild, item.Depth+1, item.URL, 0); err != nil {
				return err
			}
		}
	}
	if err := e.store.ReplaceLinkEdges(item.URL, edges); err != nil {
		return err
	}

	doc.Title = content.Title
	doc.Content = content.Text
	doc.MetaTags = store.MetaTags{IsFAQPage: isFAQ}
	doc.ArtifactPaths = paths
	return nil
}

// processPDF streams the bytes to disk, extracts text into a sibling
// artifact, and registers the PDF as an asset.
func (e *Engine) processPDF(item *store.QueueItem, body io.Reader, doc *store.Document) error {
	pdfPath, err := e.writer.WriteFrom(artifacts.KindPDF, item.URL, ".pdf", body)
	if err != nil {
		return err
	}
	paths := store.ArtifactPaths{"pdf": pdfPath}

	if text, err := pdftext.ExtractFile(pdfPath); err != nil {
		e.log.Warn("pdf text extraction failed", "url", item.URL, "error", err)
	} else {
		textPath, err := e.writer.Write(artifacts.KindPDFText, item.URL, ".txt", []byte(text))
		if err != nil {
			return err
		}
		paths["pdf_text"] = textPath
		doc.Content = text
	}

	if err := e.store.UpsertAsset(store.Asset{
		AssetURL:      item.URL,
		SourcePageURL: item.ParentURL,
		AssetType:     "pdf",
		LocalPath:     pdfPath,
	}); err != nil {
		return err
	}

	doc.ArtifactPaths = paths
	return nil
}

// processMedia streams video/audio bytes to disk and registers the asset.
func (e *Engine) processMedia(item *store.QueueItem, contentType string, body io.Reader, doc *store.Document) error {
	kind := "video"
	if strings.HasPrefix(contentType, "audio/") {
		kind = "audio"
	}
	ext := mediaExt(item.URL, contentType)

	mediaPath, err := e.writer.WriteFrom(artifacts.KindVideo, item.URL, ext, body)
	if err != nil {
		return &mediaSaveError{err}
	}

	if err := e.store.UpsertAsset(store.Asset{
		AssetURL:      item.URL,
		SourcePageURL: item.ParentURL,
		AssetType:     kind,
		LocalPath:     mediaPath,
	}); err != nil {
		return err
	}

	doc.ArtifactPaths = store.ArtifactPaths{"video": mediaPath}
	return nil
}

type mediaSaveError struct{ err error }

func (m *mediaSaveError) Error() string { return "media save failed: " + m.err.Error() }
func (m *mediaSaveError) Unwrap() error { return m.err }

func isMediaSaveError(err error) bool {
	var m *mediaSaveError
	return errors.As(err, &m)
}

// upsertStatus writes a terminal document row with no content.
func (e *Engine) upsertStatus(item *store.QueueItem, status, errMsg string) {
	var urlPath string
	if u, err := url.Parse(item.URL); err == nil {
		urlPath = u.Path
	}
	if err := e.store.UpsertDocument(store.Document{
		URL:           item.URL,
		CanonicalURL:  e.canon.Canonicalize(item.URL),
		Status:        status,
		DepthFromSeed: item.Depth,
		URLPath:       urlPath,
		ErrorMessage:  errMsg,
	}); err != nil {
		e.log.Error("store write failed", "url", item.URL, "error", err)
	}
}

func (e *Engine) isAllowed(host string) bool {
	host = strings.ToLower(host)
	if e.allowed[host] {
		return true
	}
	// allowed_domains entries are usually bare hostnames.
	if h, _, found := strings.Cut(host, ":"); found && e.allowed[h] {
		return true
	}
	return false
}

// excludedSection returns the first configured section the path falls
// into, comparing case- and separator-insensitively ("News Archive"
// matches "/news-archive/2024").
func (e *Engine) excludedSection(urlPath string) string {
	p := strings.ReplaceAll(strings.ToLower(urlPath), "-", "")
	for _, section := range e.cfg.ExcludedSections {
		s := strings.ReplaceAll(strings.ToLower(section), " ", "")
		if s != "" && strings.Contains(p, s) {
			return section
		}
	}
	return ""
}

func (e *Engine) typeAllowed(contentType string) bool {
	if len(e.cfg.ContentTypeAllowlist) == 0 {
		return true
	}
	for _, allowed := range e.cfg.ContentTypeAllowlist {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func baseContentType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(header, ";", 2)[0]))
	}
	return mt
}

// mediaExt picks the artifact extension from the URL path, defaulting by
// media class.
func mediaExt(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	if strings.HasPrefix(contentType, "audio/") {
		return ".mp3"
	}
	return ".mp4"
}
