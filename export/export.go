// Package export dumps the crawl store to files consumers can load
// without SQLite: newline-delimited JSON for the row tables, JSON arrays
// for the external registries.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"sitehound/store"
)

// documentRecord is the exported shape of one documents row. The
// JSON-typed columns come out as structured values, not strings.
type documentRecord struct {
	URL           string              `json:"url"`
	CanonicalURL  string              `json:"canonical_url"`
	Status        string              `json:"status"`
	DepthFromSeed int                 `json:"depth_from_seed"`
	URLPath       string              `json:"url_path"`
	ContentType   string              `json:"content_type"`
	Title         string              `json:"title"`
	CrawledAt     int64               `json:"crawled_at"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	MetaTags      store.MetaTags      `json:"meta_tags"`
	ArtifactPaths store.ArtifactPaths `json:"local_artifact_paths"`
}

type faqRecord struct {
	ID                int64  `json:"id"`
	DocumentURL       string `json:"document_url"`
	QuestionText      string `json:"question_text"`
	AnswerText        string `json:"answer_text"`
	AnswerRawHTML     string `json:"answer_raw_html"`
	AnswerMode        string `json:"answer_mode"`
	LinkDepthToAnswer *int   `json:"link_depth_to_answer"`
}

type edgeRecord struct {
	ParentURL         string `json:"parent_url"`
	ChildURL          string `json:"child_url"`
	AnchorText        string `json:"anchor_text"`
	IsExternal        bool   `json:"is_external"`
	CanonicalChildURL string `json:"canonical_child_url"`
}

type assetRecord struct {
	AssetURL      string `json:"asset_url"`
	SourcePageURL string `json:"source_page_url,omitempty"`
	AssetType     string `json:"asset_type"`
	LocalPath     string `json:"local_path"`
}

// Exporter writes store contents into a directory.
type Exporter struct {
	store  *store.Store
	outDir string
	log    *slog.Logger
}

// New creates an Exporter targeting outDir.
func New(st *store.Store, outDir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: st, outDir: outDir, log: logger}
}

// Run writes every export file. Files produced:
//
//	documents.jsonl, faq_items.jsonl, link_edges.jsonl, assets.jsonl,
//	external_urls.json, external_domains.json
func (e *Exporter) Run() error {
	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return fmt.Errorf("export: mkdir: %w", err)
	}

	if err := e.exportDocuments(); err != nil {
		return err
	}
	if err := e.exportFAQItems(); err != nil {
		return err
	}
	if err := e.exportLinkEdges(); err != nil {
		return err
	}
	if err := e.exportAssets(); err != nil {
		return err
	}

	urls, err := e.store.ListExternalURLs()
	if err != nil {
		return err
	}
	if err := e.writeJSON("external_urls.json", nonNil(urls)); err != nil {
		return err
	}
	domains, err := e.store.ListExternalDomains()
	if err != nil {
		return err
	}
	if err := e.writeJSON("external_domains.json", nonNil(domains)); err != nil {
		return err
	}

	e.log.Info("export complete", "dir", e.outDir)
	return nil
}

func (e *Exporter) exportDocuments() error {
	docs, err := e.store.ListDocuments()
	if err != nil {
		return err
	}
	records := make([]any, 0, len(docs))
	for _, d := range docs {
		records = append(records, documentRecord{
			URL:           d.URL,
			CanonicalURL:  d.CanonicalURL,
			Status:        d.Status,
			DepthFromSeed: d.DepthFromSeed,
			URLPath:       d.URLPath,
			ContentType:   d.ContentType,
			Title:         d.Title,
			CrawledAt:     d.CrawledAt,
			ErrorMessage:  d.ErrorMessage,
			MetaTags:      d.MetaTags,
			ArtifactPaths: d.ArtifactPaths,
		})
	}
	return e.writeJSONL("documents.jsonl", records)
}

func (e *Exporter) exportFAQItems() error {
	items, err := e.store.ListFAQItems()
	if err != nil {
		return err
	}
	records := make([]any, 0, len(items))
	for _, it := range items {
		records = append(records, faqRecord{
			ID:                it.ID,
			DocumentURL:       it.DocumentURL,
			QuestionText:      it.QuestionText,
			AnswerText:        it.AnswerText,
			AnswerRawHTML:     it.AnswerRawHTML,
			AnswerMode:        it.AnswerMode,
			LinkDepthToAnswer: it.LinkDepthToAnswer,
		})
	}
	return e.writeJSONL("faq_items.jsonl", records)
}

func (e *Exporter) exportLinkEdges() error {
	edges, err := e.store.ListLinkEdges()
	if err != nil {
		return err
	}
	records := make([]any, 0, len(edges))
	for _, edge := range edges {
		records = append(records, edgeRecord{
			ParentURL:         edge.ParentURL,
			ChildURL:          edge.ChildURL,
			AnchorText:        edge.AnchorText,
			IsExternal:        edge.IsExternal,
			CanonicalChildURL: edge.CanonicalChildURL,
		})
	}
	return e.writeJSONL("link_edges.jsonl", records)
}

func (e *Exporter) exportAssets() error {
	assets, err := e.store.ListAssets()
	if err != nil {
		return err
	}
	records := make([]any, 0, len(assets))
	for _, a := range assets {
		records = append(records, assetRecord{
			AssetURL:      a.AssetURL,
			SourcePageURL: a.SourcePageURL,
			AssetType:     a.AssetType,
			LocalPath:     a.LocalPath,
		})
	}
	return e.writeJSONL("assets.jsonl", records)
}

// writeJSONL writes one JSON object per line.
func (e *Exporter) writeJSONL(name string, records []any) error {
	f, err := os.Create(filepath.Join(e.outDir, name))
	if err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return fmt.Errorf("export %s: %w", name, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	return nil
}

func (e *Exporter) writeJSON(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(e.outDir, name), append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	return nil
}

// nonNil keeps empty registries as [] instead of null in the output.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
