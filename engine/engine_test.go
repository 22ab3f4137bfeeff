package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"sitehound/artifacts"
	"sitehound/canon"
	"sitehound/extract"
	"sitehound/faq"
	"sitehound/fetch"
	"sitehound/robots"
	"sitehound/store"
)

type testSite struct {
	srv *httptest.Server
	st  *store.Store
	eng *Engine
}

// newTestSite wires a full engine against an httptest server. tweak may
// adjust the engine config before construction.
func newTestSite(t *testing.T, mux *http.ServeMux, tweak func(*Config)) *testSite {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	st := store.OpenMemory(t)

	root := t.TempDir()
	w, err := artifacts.NewWriter(map[artifacts.Kind]string{
		artifacts.KindHTML:     filepath.Join(root, "html"),
		artifacts.KindMarkdown: filepath.Join(root, "md"),
		artifacts.KindPDF:      filepath.Join(root, "pdf"),
		artifacts.KindPDFText:  filepath.Join(root, "pdf_text"),
		artifacts.KindVideo:    filepath.Join(root, "video"),
	})
	if err != nil {
		t.Fatalf("artifact writer: %v", err)
	}

	cfg := Config{
		Seeds:           []string{srv.URL + "/"},
		AllowedDomains:  []string{host},
		MaxDepthFAQ:     4,
		MaxDepthGeneral: 2,
	}
	if tweak != nil {
		tweak(&cfg)
	}

	eng := New(
		st,
		fetch.New(fetch.Config{UserAgent: "hound-test/1.0", Retry: fetch.RetryPolicy{MaxAttempts: 1, BackoffFactor: 0.001}}),
		robots.New(robots.Config{UserAgent: "hound-test/1.0", Enabled: true, Client: srv.Client()}),
		canon.New(nil),
		extract.New(nil, nil),
		faq.New(),
		w,
		cfg,
	)
	return &testSite{srv: srv, st: st, eng: eng}
}

func servePage(mux *http.ServeMux, route, body string) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	})
}

func (ts *testSite) run(t *testing.T) {
	t.Helper()
	if err := ts.eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func (ts *testSite) doc(t *testing.T, path string) *store.Document {
	t.Helper()
	d, err := ts.st.GetDocument(ts.canonical(path))
	if err != nil {
		t.Fatalf("document %s: %v", path, err)
	}
	return d
}

func (ts *testSite) canonical(path string) string {
	return canon.New(nil).Canonicalize(ts.srv.URL + path)
}

func TestCrawlBasic(t *testing.T) {
	// WHAT: A two-page site crawls fully: rows, artifacts, edges, queue.
	mux := http.NewServeMux()
	servePage(mux, "/", `<html><head><title>Home</title></head><body><main>
		<p>Welcome to the site.</p><a href="/about">About us</a></main></body></html>`)
	servePage(mux, "/about", `<html><head><title>About</title></head><body><main>
		<p>We crawl things.</p></main></body></html>`)

	ts := newTestSite(t, mux, nil)
	ts.run(t)

	home := ts.doc(t, "/")
	if home.Status != store.StatusCrawled || home.Title != "Home" {
		t.Errorf("home: %+v", home)
	}
	if home.DepthFromSeed != 0 {
		t.Errorf("home depth: %d", home.DepthFromSeed)
	}
	if !strings.Contains(home.Content, "Welcome to the site.") {
		t.Errorf("home content: %q", home.Content)
	}
	for _, kind := range []string{"html", "md"} {
		p, ok := home.ArtifactPaths[kind]
		if !ok {
			t.Fatalf("home missing %s artifact: %v", kind, home.ArtifactPaths)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s artifact not on disk: %v", kind, err)
		}
	}

	about := ts.doc(t, "/about")
	if about.Status != store.StatusCrawled || about.DepthFromSeed != 1 {
		t.Errorf("about: %+v", about)
	}

	edges, err := ts.st.LinkEdgesFor(home.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 || edges[0].IsExternal || edges[0].AnchorText != "About us" {
		t.Errorf("edges: %+v", edges)
	}

	counts, _ := ts.st.QueueCounts()
	if counts[store.QueuePending] != 0 || counts[store.QueueProcessing] != 0 {
		t.Errorf("queue not drained: %v", counts)
	}
	if counts[store.QueueCompleted] != 2 {
		t.Errorf("completed: %v", counts)
	}
}

func TestRobotsDeny(t *testing.T) {
	// WHAT: A disallowed path gets BLOCKED_BY_ROBOTS: no fetch, no
	// artifacts, no outbound edges.
	var privateHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	servePage(mux, "/", `<html><body><main><a href="/private">Secret</a></main></body></html>`)
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		privateHits.Add(1)
		fmt.Fprint(w, "<html><body>secret</body></html>")
	})

	ts := newTestSite(t, mux, nil)
	ts.run(t)

	d := ts.doc(t, "/private")
	if d.Status != store.StatusBlockedByRobots {
		t.Errorf("status: %q", d.Status)
	}
	if len(d.ArtifactPaths) != 0 {
		t.Errorf("artifacts for blocked page: %v", d.ArtifactPaths)
	}
	edges, _ := ts.st.LinkEdgesFor(d.URL)
	if len(edges) != 0 {
		t.Errorf("edges from blocked page: %+v", edges)
	}
	if privateHits.Load() != 0 {
		t.Error("blocked path was fetched")
	}
}

func TestDepthEscalationViaFAQ(t *testing.T) {
	// WHAT: A FAQ page widens the horizon for its own children; a plain
	// sibling at the same depth does not.
	mux := http.NewServeMux()
	servePage(mux, "/", `<html><body><main>
		<a href="/faq-branch">faq</a> <a href="/plain-branch">plain</a></main></body></html>`)
	servePage(mux, "/faq-branch", `<html><body><main>
		<details><summary>Q?</summary><p>A long enough answer for anyone reading it.</p></details>
		<a href="/faq-child">deeper</a></main></body></html>`)
	servePage(mux, "/plain-branch", `<html><body><main>
		<p>no faq here</p><a href="/plain-child">deeper</a></main></body></html>`)
	servePage(mux, "/faq-child", `<html><body><main><p>reached</p></main></body></html>`)
	servePage(mux, "/plain-child", `<html><body><main><p>should not be reached</p></main></body></html>`)

	ts := newTestSite(t, mux, func(c *Config) {
		c.MaxDepthGeneral = 1
		c.MaxDepthFAQ = 2
	})
	ts.run(t)

	faqBranch := ts.doc(t, "/faq-branch")
	if !faqBranch.MetaTags.IsFAQPage {
		t.Error("faq branch not flagged is_faq_page")
	}
	items, _ := ts.st.FAQItemsFor(faqBranch.URL)
	if len(items) != 1 || items[0].AnswerMode != "DIRECT_TEXT" {
		t.Errorf("faq items: %+v", items)
	}

	if d := ts.doc(t, "/faq-child"); d.Status != store.StatusCrawled || d.DepthFromSeed != 2 {
		t.Errorf("faq child: %+v", d)
	}
	if _, err := ts.st.GetDocument(ts.canonical("/plain-child")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("plain child should not be crawled: %v", err)
	}
}

func TestExternalRecording(t *testing.T) {
	// WHAT: An off-domain link is recorded as an edge + registry entries
	// but never fetched.
	mux := http.NewServeMux()
	servePage(mux, "/", `<html><body><main>
		<a href="https://elsewhere.example/x">away</a></main></body></html>`)

	ts := newTestSite(t, mux, nil)
	ts.run(t)

	edges, _ := ts.st.LinkEdgesFor(ts.canonical("/"))
	if len(edges) != 1 || !edges[0].IsExternal {
		t.Fatalf("edges: %+v", edges)
	}
	urls, _ := ts.st.ListExternalURLs()
	domains, _ := ts.st.ListExternalDomains()
	if len(urls) != 1 || urls[0] != "https://elsewhere.example/x" {
		t.Errorf("external urls: %v", urls)
	}
	if len(domains) != 1 || domains[0] != "elsewhere.example" {
		t.Errorf("external domains: %v", domains)
	}
	if _, err := ts.st.GetDocument("https://elsewhere.example/x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("external URL got a document row: %v", err)
	}
}

func TestSectionPolicy(t *testing.T) {
	// WHAT: A URL in an excluded section is skipped before any fetch.
	var hits atomic.Int32
	mux := http.NewServeMux()
	servePage(mux, "/", `<html><body><main><a href="/news-archive/2024">old news</a></main></body></html>`)
	mux.HandleFunc("/news-archive/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "<html><body>archive</body></html>")
	})

	ts := newTestSite(t, mux, func(c *Config) {
		c.ExcludedSections = []string{"News Archive"}
	})
	ts.run(t)

	d := ts.doc(t, "/news-archive/2024")
	if d.Status != store.StatusSkippedByPolicy {
		t.Errorf("status: %q", d.Status)
	}
	if hits.Load() != 0 {
		t.Error("excluded section was fetched")
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	// WHAT: A 404 child records HTTP_404 and fails its queue row.
	mux := http.NewServeMux()
	servePage(mux, "/", `<html><body><main><a href="/gone">missing</a></main></body></html>`)
	mux.HandleFunc("/gone", http.NotFound)

	ts := newTestSite(t, mux, nil)
	ts.run(t)

	d := ts.doc(t, "/gone")
	if d.Status != "HTTP_404" {
		t.Errorf("status: %q", d.Status)
	}
	counts, _ := ts.st.QueueCounts()
	if counts[store.QueueFailed] != 1 {
		t.Errorf("queue counts: %v", counts)
	}
}

func TestUnsupportedType(t *testing.T) {
	// WHAT: A response outside the allowlist stops at UNSUPPORTED_TYPE.
	mux := http.NewServeMux()
	servePage(mux, "/", `<html><body><main><a href="/logo">logo</a></main></body></html>`)
	mux.HandleFunc("/logo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})

	ts := newTestSite(t, mux, func(c *Config) {
		c.ContentTypeAllowlist = []string{"text/html", "application/pdf"}
	})
	ts.run(t)

	d := ts.doc(t, "/logo")
	if d.Status != store.StatusUnsupportedType {
		t.Errorf("status: %q", d.Status)
	}
}

func TestEmptyAllowlistAllowsAllTypes(t *testing.T) {
	// WHAT: With no allowlist configured, a type outside the dispatchable
	// set still gets a base CRAWLED row.
	// WHY: Empty means allow-everything; the filter only engages when the
	// operator names types, so an unconfigured crawl must not reject
	// images as UNSUPPORTED_TYPE.
	mux := http.NewServeMux()
	servePage(mux, "/", `<html><body><main><a href="/logo">logo</a></main></body></html>`)
	mux.HandleFunc("/logo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})

	ts := newTestSite(t, mux, nil)
	ts.run(t)

	d := ts.doc(t, "/logo")
	if d.Status != store.StatusCrawled {
		t.Errorf("status: %q", d.Status)
	}
	if d.ContentType != "image/png" {
		t.Errorf("content type: %q", d.ContentType)
	}
	counts, _ := ts.st.QueueCounts()
	if counts[store.QueueFailed] != 0 {
		t.Errorf("queue counts: %v", counts)
	}
}

func TestPDFHandling(t *testing.T) {
	// WHAT: A PDF response produces pdf + pdf_text artifacts and an asset
	// row of kind pdf.
	mux := http.NewServeMux()
	servePage(mux, "/", `<html><body><main><a href="/guide.pdf">guide</a></main></body></html>`)
	mux.HandleFunc("/guide.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(buildTextPDF("Claims guide contents"))
	})

	ts := newTestSite(t, mux, nil)
	ts.run(t)

	d := ts.doc(t, "/guide.pdf")
	if d.Status != store.StatusCrawled || d.ContentType != "application/pdf" {
		t.Errorf("doc: %+v", d)
	}
	if d.ArtifactPaths["pdf"] == "" || d.ArtifactPaths["pdf_text"] == "" {
		t.Errorf("artifact paths: %v", d.ArtifactPaths)
	}
	if !strings.Contains(d.Content, "Claims guide contents") {
		t.Errorf("content: %q", d.Content)
	}

	asset, err := ts.st.GetAsset(d.URL)
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	if asset.AssetType != "pdf" || asset.SourcePageURL != ts.canonical("/") {
		t.Errorf("asset: %+v", asset)
	}
}

func TestMediaHandling(t *testing.T) {
	// WHAT: video bytes are saved and registered as an asset.
	mux := http.NewServeMux()
	servePage(mux, "/", `<html><body><main><a href="/clip.mp4">clip</a></main></body></html>`)
	mux.HandleFunc("/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("not really mp4 but bytes"))
	})

	ts := newTestSite(t, mux, nil)
	ts.run(t)

	d := ts.doc(t, "/clip.mp4")
	if d.Status != store.StatusCrawled {
		t.Errorf("status: %q", d.Status)
	}
	if d.ArtifactPaths["video"] == "" {
		t.Errorf("artifact paths: %v", d.ArtifactPaths)
	}
	asset, err := ts.st.GetAsset(d.URL)
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	if asset.AssetType != "video" {
		t.Errorf("asset: %+v", asset)
	}
}

func TestRestartRecoversProcessing(t *testing.T) {
	// WHAT: A row stranded in processing by a crash is re-crawled on the
	// next run.
	mux := http.NewServeMux()
	servePage(mux, "/", `<html><body><main><p>home again</p></main></body></html>`)

	ts := newTestSite(t, mux, nil)

	// Simulate the previous process dying mid-URL.
	seed := ts.canonical("/")
	if _, err := ts.st.Enqueue(seed, 0, "", seedPriority); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.st.NextPending(); err != nil {
		t.Fatal(err)
	}

	ts.run(t)

	d := ts.doc(t, "/")
	if d.Status != store.StatusCrawled {
		t.Errorf("status after restart: %q", d.Status)
	}
	counts, _ := ts.st.QueueCounts()
	if counts[store.QueueCompleted] != 1 || counts[store.QueueProcessing] != 0 {
		t.Errorf("queue counts: %v", counts)
	}
}

func TestCancellationFinishesInFlight(t *testing.T) {
	// WHAT: Canceling mid-crawl still completes the in-flight URL's writes
	// and fails its queue row with an interruption reason.
	mux := http.NewServeMux()
	ctx, cancel := context.WithCancel(context.Background())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		cancel() // stop arrives while this fetch is in flight
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body><main><p>content here</p><a href="/next">next</a></main></body></html>`)
	})
	servePage(mux, "/next", `<html><body><main><p>never reached</p></main></body></html>`)

	ts := newTestSite(t, mux, nil)
	if err := ts.eng.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	// The in-flight document was fully written.
	d := ts.doc(t, "/")
	if d.Status != store.StatusCrawled || d.Title != "Home" {
		t.Errorf("in-flight doc: %+v", d)
	}
	// Its queue row carries the interruption, and /next was never crawled.
	counts, _ := ts.st.QueueCounts()
	if counts[store.QueueFailed] != 1 {
		t.Errorf("queue counts: %v", counts)
	}
	if _, err := ts.st.GetDocument(ts.canonical("/next")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("/next crawled despite cancellation: %v", err)
	}
}

// buildTextPDF writes a minimal valid single-page PDF showing text.
func buildTextPDF(text string) []byte {
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, 6)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")
	offsets[4] = b.Len()
	fmt.Fprintf(&b, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream)
	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xref := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return []byte(b.String())
}
