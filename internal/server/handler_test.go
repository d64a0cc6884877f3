package server

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Bitlatte/blogserve/internal/cache"
	"github.com/Bitlatte/blogserve/internal/content"
	"github.com/Bitlatte/blogserve/internal/logging"
	"github.com/Bitlatte/blogserve/internal/render"
	"github.com/Bitlatte/blogserve/internal/site"
)

// countingLoader counts loads per path and can hold them until released.
type countingLoader struct {
	content.Loader

	mu    sync.Mutex
	loads map[string]int
	gate  chan struct{}
}

func (l *countingLoader) Load(ctx context.Context, name string) ([]byte, error) {
	l.mu.Lock()
	l.loads[name]++
	gate := l.gate
	l.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return l.Loader.Load(ctx, name)
}

func (l *countingLoader) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[name]
}

type testSite struct {
	handler *Handler
	loader  *countingLoader
	cache   *cache.Cache
}

func postsFS() fstest.MapFS {
	return fstest.MapFS{
		"posts/error-handling.md": {Data: []byte("title: Error handling\ndate: 2024-03-01\n##\nErrors are values.\n")},
		"posts/hello-world.md":    {Data: []byte("---\ntitle: Hello world\ndate: 2023-01-15\n---\nHi.\n")},
		"posts/bad-markdown.md":   {Data: []byte("title: [oops\n##\nbody\n")},
		"posts/long.md":           {Data: []byte("# Long\n\n" + strings.Repeat("All work and no play makes a long post. ", 200) + "\n")},
	}
}

func staticFS() fstest.MapFS {
	return fstest.MapFS{
		"styles.css":      {Data: []byte("body { margin: 0 }")},
		"images/logo.png": {Data: []byte("\x89PNG\r\n\x1a\nfake")},
	}
}

func newTestSite(t *testing.T, notFoundStatus int) *testSite {
	t.Helper()
	ctx := context.Background()

	loader := &countingLoader{Loader: content.NewFSLoader(postsFS()), loads: make(map[string]int)}
	renderer := render.New()
	builder, err := site.NewBuilder(ctx, site.Options{SiteTitle: "Test Blog", Content: loader, Renderer: renderer})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	env := logging.Discard()
	index := site.NewIndex(loader, renderer, env.Logger)
	if err := index.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	c := cache.New(builder.Post)

	h, err := NewHandler(Options{
		Env:            env,
		Cache:          c,
		Builder:        builder,
		Index:          index,
		Static:         content.NewFSLoader(staticFS()),
		NotFoundStatus: notFoundStatus,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return &testSite{handler: h, loader: loader, cache: c}
}

func (s *testSite) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestHomeListsPostsNewestFirst(t *testing.T) {
	s := newTestSite(t, 0)
	rec := s.get(t, "/")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	eh := strings.Index(body, `href="/error-handling"`)
	hw := strings.Index(body, `href="/hello-world"`)
	if eh < 0 || hw < 0 || eh > hw {
		t.Errorf("home page order wrong (error-handling at %d, hello-world at %d):\n%s", eh, hw, body)
	}
	if strings.Contains(body, "bad-markdown") {
		t.Error("post with malformed metadata is listed")
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestStaticPagesIgnoreCache(t *testing.T) {
	s := newTestSite(t, 0)
	for _, path := range []string{"/about", "/contact"} {
		rec := s.get(t, path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
	if !strings.Contains(s.get(t, "/about").Body.String(), "<title>About | Test Blog</title>") {
		t.Error("about page missing its title")
	}
	if s.cache.Len() != 0 || s.cache.Stats().Misses != 0 {
		t.Errorf("static pages touched the cache: %+v", s.cache.Stats())
	}
}

func TestPostIsRenderedOnce(t *testing.T) {
	s := newTestSite(t, 0)
	before := s.loader.count("posts/error-handling.md")

	first := s.get(t, "/error-handling")
	second := s.get(t, "/error-handling")

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status = %d, %d", first.Code, second.Code)
	}
	if !strings.Contains(first.Body.String(), "Errors are values.") {
		t.Errorf("post body missing:\n%s", first.Body.String())
	}
	if first.Body.String() != second.Body.String() {
		t.Error("second response differs from the first")
	}
	if got := s.loader.count("posts/error-handling.md") - before; got != 1 {
		t.Errorf("post source loaded %d times, want 1", got)
	}
}

func TestConcurrentRequestsShareOneRender(t *testing.T) {
	s := newTestSite(t, 0)
	before := s.loader.count("posts/error-handling.md")

	gate := make(chan struct{})
	s.loader.mu.Lock()
	s.loader.gate = gate
	s.loader.mu.Unlock()

	const clients = 2
	var wg sync.WaitGroup
	bodies := make([]string, clients)
	codes := make([]int, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/error-handling", nil)
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			bodies[i], codes[i] = rec.Body.String(), rec.Code
		}(i)
	}

	for s.cache.Stats().Misses < clients {
		time.Sleep(time.Millisecond)
	}
	close(gate)
	wg.Wait()

	for i := range bodies {
		if codes[i] != http.StatusOK {
			t.Errorf("client %d status = %d", i, codes[i])
		}
		if bodies[i] != bodies[0] {
			t.Errorf("client %d got a different page", i)
		}
	}
	if got := s.loader.count("posts/error-handling.md") - before; got != 1 {
		t.Errorf("post source loaded %d times, want 1", got)
	}
	if got := s.cache.Stats().Computations; got != 1 {
		t.Errorf("computations = %d, want 1", got)
	}
}

func TestMissingPost(t *testing.T) {
	s := newTestSite(t, 0)
	rec := s.get(t, "/nonexistent-slug")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Path /nonexistent-slug not found") {
		t.Errorf("body missing the requested path:\n%s", rec.Body.String())
	}

	// A failure is not memoized.
	s.get(t, "/nonexistent-slug")
	if got := s.loader.count("posts/nonexistent-slug.md"); got != 2 {
		t.Errorf("missing post loaded %d times, want 2", got)
	}
}

func TestBadMarkdown(t *testing.T) {
	s := newTestSite(t, 0)
	rec := s.get(t, "/bad-markdown")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Bad markdown: malformed metadata header") {
		t.Errorf("body = %s", body)
	}
	if strings.Contains(body, "yaml:") {
		t.Error("error page leaks the parser error")
	}
}

func TestInvalidPath(t *testing.T) {
	s := newTestSite(t, 0)
	for _, target := range []string{"/..%2Fetc", "/.env", "/a..b", "/images/..%2F..%2Fsecret"} {
		rec := s.get(t, target)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "is not valid:") {
			t.Errorf("%s body = %s", target, rec.Body.String())
		}
	}
}

func TestUnroutedPath(t *testing.T) {
	for _, tt := range []struct {
		status int
		want   int
	}{
		{status: 0, want: http.StatusNotFound},
		{status: http.StatusNotFound, want: http.StatusNotFound},
		{status: http.StatusOK, want: http.StatusOK},
	} {
		s := newTestSite(t, tt.status)
		rec := s.get(t, "/a/b/c")
		if rec.Code != tt.want {
			t.Errorf("notFoundStatus %d: status = %d, want %d", tt.status, rec.Code, tt.want)
		}
		if !strings.Contains(rec.Body.String(), "No page lives at /a/b/c") {
			t.Errorf("body missing the path:\n%s", rec.Body.String())
		}
	}
}

func TestAssets(t *testing.T) {
	s := newTestSite(t, 0)

	css := s.get(t, "/styles.css")
	if css.Code != http.StatusOK || css.Body.String() != "body { margin: 0 }" {
		t.Errorf("styles.css = %d %q", css.Code, css.Body.String())
	}
	if ct := css.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("styles.css Content-Type = %q", ct)
	}

	png := s.get(t, "/images/logo.png")
	if png.Code != http.StatusOK || png.Header().Get("Content-Type") != "image/png" {
		t.Errorf("logo.png = %d %q", png.Code, png.Header().Get("Content-Type"))
	}

	missing := s.get(t, "/images/nope.png")
	if !strings.Contains(missing.Body.String(), "Path /images/nope.png not found") {
		t.Errorf("missing image body = %s", missing.Body.String())
	}
	if s.cache.Len() != 0 {
		t.Error("assets went through the content cache")
	}
}

func TestMethods(t *testing.T) {
	s := newTestSite(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/about", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}

	req = httptest.NewRequest(http.MethodHead, "/about", nil)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("HEAD status = %d, want 200", rec.Code)
	}
}

func TestEveryKindHasADistinctFallback(t *testing.T) {
	if err := checkMenders(); err != nil {
		t.Fatal(err)
	}

	s := newTestSite(t, 0)
	samples := map[content.Kind]content.Error{
		content.KindNotFound:    &content.NotFoundError{Path: "posts/x.md"},
		content.KindInvalidPath: &content.InvalidPathError{Path: "/x", Reason: "test reason"},
		content.KindRender:      &content.RenderError{Path: "posts/x.md", Detail: "test detail"},
		content.KindUnexpected:  &content.UnexpectedError{Op: "test", Err: io.ErrUnexpectedEOF},
	}

	seen := make(map[string]content.Kind)
	for _, kind := range content.Kinds() {
		sample, ok := samples[kind]
		if !ok {
			t.Fatalf("no sample error for kind %s", kind)
		}
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		rec := httptest.NewRecorder()
		s.handler.mend(rec, req, sample)

		body := rec.Body.String()
		if body == "" {
			t.Errorf("kind %s produced an empty page", kind)
		}
		if other, dup := seen[body]; dup {
			t.Errorf("kinds %s and %s produce the same page", kind, other)
		}
		seen[body] = kind
	}
}

func TestUnexpectedErrorsDoNotLeak(t *testing.T) {
	s := newTestSite(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	s.handler.mend(rec, req, io.ErrUnexpectedEOF)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "unexpected EOF") {
		t.Error("error page leaks the cause")
	}
}

func TestServerCompressesResponses(t *testing.T) {
	s := newTestSite(t, 0)
	srv := New(Config{}, s.handler, logging.Discard().Logger)

	req := httptest.NewRequest(http.MethodGet, "/long", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if !strings.Contains(string(body), "All work and no play") {
		t.Error("decompressed body is missing the post")
	}
}
