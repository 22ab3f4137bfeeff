package store

import (
	"encoding/json"
	"fmt"
)

// Document status values. HTTP failures use StatusHTTP(code).
const (
	StatusCrawled          = "CRAWLED"
	StatusBlockedByRobots  = "BLOCKED_BY_ROBOTS"
	StatusSkippedByPolicy  = "SKIPPED_BY_POLICY"
	StatusUnsupportedType  = "UNSUPPORTED_TYPE"
	StatusFetchError       = "FETCH_ERROR"
	StatusProcessingError  = "PROCESSING_ERROR"
	StatusVideoUnavailable = "VIDEO_UNAVAILABLE"
	StatusError            = "ERROR"
)

// StatusHTTP is the terminal status for a non-2xx response.
func StatusHTTP(code int) string {
	return fmt.Sprintf("HTTP_%d", code)
}

// Queue statuses.
const (
	QueuePending    = "pending"
	QueueProcessing = "processing"
	QueueCompleted  = "completed"
	QueueFailed     = "failed"
)

// MetaTags is the structured meta bag on a document. New flags get new
// fields, not free-form keys.
type MetaTags struct {
	IsFAQPage bool `json:"is_faq_page"`
}

func (m MetaTags) encode() (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode meta tags: %w", err)
	}
	return string(raw), nil
}

func decodeMetaTags(raw string) (MetaTags, error) {
	var m MetaTags
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("decode meta tags: %w", err)
	}
	return m, nil
}

// ArtifactPaths maps artifact kind ("html", "md", "pdf", "pdf_text",
// "video", "transcript") to the relative on-disk path.
type ArtifactPaths map[string]string

func (a ArtifactPaths) encode() (string, error) {
	if a == nil {
		a = ArtifactPaths{}
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode artifact paths: %w", err)
	}
	return string(raw), nil
}

func decodeArtifactPaths(raw string) (ArtifactPaths, error) {
	a := ArtifactPaths{}
	if raw == "" {
		return a, nil
	}
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("decode artifact paths: %w", err)
	}
	return a, nil
}

// Document is one catalog row.
type Document struct {
	URL           string
	CanonicalURL  string
	Status        string
	DepthFromSeed int
	URLPath       string
	ContentType   string
	Title         string
	Content       string
	CrawledAt     int64
	ErrorMessage  string
	MetaTags      MetaTags
	ArtifactPaths ArtifactPaths
}

// FAQItem is one question/answer row.
type FAQItem struct {
	ID                int64
	DocumentURL       string
	QuestionText      string
	AnswerText        string
	AnswerRawHTML     string
	AnswerMode        string
	LinkDepthToAnswer *int
}

// LinkEdge is one outbound link record.
type LinkEdge struct {
	ID                int64
	ParentURL         string
	ChildURL          string
	AnchorText        string
	IsExternal        bool
	CanonicalChildURL string
}

// Asset is one saved binary asset.
type Asset struct {
	AssetURL      string
	SourcePageURL string
	AssetType     string
	LocalPath     string
}

// QueueItem is one frontier row.
type QueueItem struct {
	URL       string
	Depth     int
	ParentURL string
	Status    string
	AddedAt   int64
	Priority  int
	Attempts  int
}

// FetchRecord is one fetch_log row.
type FetchRecord struct {
	URL          string
	Status       string
	StatusCode   int
	ErrorMessage string
	DurationMS   int64
	FetchedAt    int64
}
