package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/cadview/internal/errors"
	"github.com/vango-dev/cadview/pkg/bridge"
	"github.com/vango-dev/cadview/pkg/metrics"
	"github.com/vango-dev/cadview/pkg/scene"
)

type sent struct {
	kind    string
	payload any
	all     bool
}

type fakeSink struct {
	mu    sync.Mutex
	calls []sent
	conns int
	err   error
}

func (s *fakeSink) Send(_ context.Context, kind string, payload any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	s.calls = append(s.calls, sent{kind: kind, payload: payload})
	return s.conns > 0, nil
}

func (s *fakeSink) Broadcast(_ context.Context, kind string, payload any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.calls = append(s.calls, sent{kind: kind, payload: payload, all: true})
	return s.conns, nil
}

func (s *fakeSink) sent() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.calls...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticTree lays out a static root next to a file that must stay
// unreachable.
func staticTree(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "static")

	files := map[string]string{
		"css/global.css": "body { margin: 0; }",
		"js/main.js":     "console.log('viewer');",
		"img/logo.svg":   "<svg/>",
		"data.bin":       "\x00\x01",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(base, "secret.txt"), []byte("top secret"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(base, "secret.txt"), filepath.Join(root, "escape.txt")))
	return root
}

func newTestGateway(t *testing.T, sink Sink, opts ...Option) *Gateway {
	t.Helper()
	cfg := DefaultConfig()
	cfg.StaticDir = staticTree(t)
	cfg.MaxBodyBytes = 1024
	g, err := New(cfg, sink, testLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(g.closeRoot)
	return g
}

func do(g http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)
	return rec
}

func TestGateway_CADPage(t *testing.T) {
	g := newTestGateway(t, &fakeSink{})

	rec := do(g, http.MethodGet, "/cad/part-7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>\n<html lang=\"en\"><head>"))
	assert.Contains(t, body, `<link rel="stylesheet" href="/static/css/global.css">`)
	assert.Contains(t, body, `<script src="/static/js/main.js" type="module"></script>`)
	assert.Contains(t, body, `three.js/r126/build/three.min.js`)
	assert.Contains(t, body, `<meta charset="utf-8">`)
	assert.Contains(t, body, `<body data-cad-id="part-7"></body>`)
}

func TestGateway_CADPageEscapesID(t *testing.T) {
	g := newTestGateway(t, &fakeSink{})

	rec := do(g, http.MethodGet, `/cad/a%22%3E%3Cscript%3E`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"><script>`)
	assert.Contains(t, rec.Body.String(), `data-cad-id="a&quot;&gt;&lt;script&gt;"`)
}

func TestGateway_CADPageEmptyID(t *testing.T) {
	g := newTestGateway(t, &fakeSink{})
	rec := do(g, http.MethodGet, "/cad/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<body data-cad-id="">`)
}

func TestGateway_BridgeURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaticDir = ""
	cfg.BridgeURL = "ws://localhost:8765/"
	g, err := New(cfg, &fakeSink{}, testLogger())
	require.NoError(t, err)

	rec := do(g, http.MethodGet, "/cad/x", "")
	assert.Contains(t, rec.Body.String(), `data-bridge-url="ws://localhost:8765/"`)
}

func TestGateway_NotFound(t *testing.T) {
	g := newTestGateway(t, &fakeSink{})

	for _, tt := range []struct{ method, target string }{
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/"},
		{http.MethodGet, "/cad/a/b"},
		{http.MethodPost, "/cad/x"},
		{http.MethodGet, "/d-shape"},
		{http.MethodDelete, "/static/css/global.css"},
	} {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := do(g, tt.method, tt.target, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), "<h1>404 Not Found</h1>")
		})
	}
}

func TestGateway_Static(t *testing.T) {
	g := newTestGateway(t, &fakeSink{})

	tests := []struct {
		target string
		ctype  string
		body   string
	}{
		{"/static/css/global.css", "text/css; charset=utf-8", "body { margin: 0; }"},
		{"/static/js/main.js", "text/javascript; charset=utf-8", "console.log('viewer');"},
		{"/static/img/logo.svg", "image/svg+xml", "<svg/>"},
		{"/static/data.bin", "application/octet-stream", "\x00\x01"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(g, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.ctype, rec.Header().Get("Content-Type"))
			assert.Equal(t, "max-age=3600", rec.Header().Get("Cache-Control"))
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestGateway_StaticContainment(t *testing.T) {
	g := newTestGateway(t, &fakeSink{})

	for _, target := range []string{
		"/static/../../etc/passwd",
		"/static/../secret.txt",
		"/static/css/../../secret.txt",
		"/static/%2e%2e/secret.txt",
		"/static//etc/passwd",
		"/static/./css/global.css",
		"/static/css%5c..%5c..%5csecret.txt",
		"/static/css/global.css%00.js",
		"/static/escape.txt",
		"/static/css",
		"/static/",
		"/static/missing.js",
	} {
		t.Run(target, func(t *testing.T) {
			rec := do(g, http.MethodGet, target, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.NotContains(t, rec.Body.String(), "top secret")
			assert.NotContains(t, rec.Body.String(), "root:")
			assert.Contains(t, rec.Body.String(), "404 Not Found")
		})
	}
}

func TestGateway_StaticDirMissing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaticDir = filepath.Join(t.TempDir(), "nope")
	g, err := New(cfg, &fakeSink{}, testLogger())
	require.NoError(t, err)

	rec := do(g, http.MethodGet, "/static/css/global.css", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticRelPath(t *testing.T) {
	rel, ok := staticRelPath("/static/js/main.js")
	assert.True(t, ok)
	assert.Equal(t, "js/main.js", rel)

	for _, p := range []string{"/other/x", "/static/", "/static/a/../b", "/static/a\\b", "/static//x", "/static/a\x00"} {
		_, ok := staticRelPath(p)
		assert.False(t, ok, p)
	}
}

func TestGateway_IngestForwardsAndRetains(t *testing.T) {
	sink := &fakeSink{conns: 1}
	store := scene.New(4)
	g := newTestGateway(t, sink, WithScene(store))

	rec := do(g, http.MethodPost, "/d-shape", `{"id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "{}", rec.Body.String())

	calls := sink.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, bridge.KindLoadShape, calls[0].kind)
	assert.False(t, calls[0].all)
	assert.JSONEq(t, `{"id":"s1"}`, string(calls[0].payload.(json.RawMessage)))

	require.Equal(t, 1, store.Len())
	assert.JSONEq(t, `{"id":"s1"}`, string(store.Snapshot()[0]))
}

func TestGateway_IngestWithoutConnection(t *testing.T) {
	g := newTestGateway(t, &fakeSink{})
	rec := do(g, http.MethodPost, "/d-shape", `{"id":"s1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateway_IngestBroadcast(t *testing.T) {
	sink := &fakeSink{conns: 2}
	cfg := DefaultConfig()
	cfg.StaticDir = ""
	cfg.Broadcast = true
	g, err := New(cfg, sink, testLogger())
	require.NoError(t, err)

	rec := do(g, http.MethodPost, "/d-shape", `[1,2,3]`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sink.sent(), 1)
	assert.True(t, sink.sent()[0].all)
}

func TestGateway_IngestRejects(t *testing.T) {
	sink := &fakeSink{}
	g := newTestGateway(t, sink)

	t.Run("invalid json", func(t *testing.T) {
		rec := do(g, http.MethodPost, "/d-shape", `{"id":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/d-shape", nil)
		req.Header.Set("Content-Length", "0")
		req.ContentLength = 0
		rec := httptest.NewRecorder()
		g.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing content length", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/d-shape", strings.NewReader(`{}`))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		g.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusLengthRequired, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		rec := do(g, http.MethodPost, "/d-shape", `"`+strings.Repeat("x", 2048)+`"`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	assert.Empty(t, sink.sent())

	// The next request is served normally.
	rec := do(g, http.MethodPost, "/d-shape", `{"id":"ok"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateway_IngestBridgeClosed(t *testing.T) {
	g := newTestGateway(t, &fakeSink{err: bridge.ErrClosed})
	rec := do(g, http.MethodPost, "/d-shape", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	g = newTestGateway(t, &fakeSink{err: errors.New(errors.KindUnknownEvent, "bridge.Send", "x")})
	rec = do(g, http.MethodPost, "/d-shape", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGateway_RecoversFromPanic(t *testing.T) {
	g := newTestGateway(t, &fakeSink{})
	g.router.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("handler bug")
	})

	rec := do(g, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(g, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGateway_Metrics(t *testing.T) {
	m := metrics.New(metrics.WithRegistry(prometheus.NewRegistry()))
	g := newTestGateway(t, &fakeSink{}, WithMetrics(m))

	do(g, http.MethodGet, "/cad/x", "")
	do(g, http.MethodPost, "/d-shape", `{}`)

	rec := do(g, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `cadview_http_requests_total{route="/cad/{id}",status="200"} 1`)
	assert.Contains(t, body, "cadview_geometry_ingested_total 1")
}

func TestGateway_NoMetricsRoute(t *testing.T) {
	g := newTestGateway(t, &fakeSink{})
	assert.Equal(t, http.StatusNotFound, do(g, http.MethodGet, "/metrics", "").Code)
}

func TestGateway_NewRequiresSink(t *testing.T) {
	_, err := New(DefaultConfig(), nil, testLogger())
	assert.True(t, errors.Is(err, errors.ErrInvalidReference))
}

func TestGateway_ListenServeShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.StaticDir = staticTree(t)
	g, err := New(cfg, &fakeSink{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "gateway", g.Name())

	require.NoError(t, g.Listen())
	served := make(chan error, 1)
	go func() { served <- g.Serve() }()

	resp, err := http.Get("http://" + g.Addr() + "/static/css/global.css")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body { margin: 0; }", string(body))

	resp, err = http.Post("http://"+g.Addr()+"/d-shape", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get("http://" + g.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Shutdown(ctx))
	require.NoError(t, <-served)
}

func TestGateway_ShutdownForcesLingeringConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.StaticDir = ""
	g, err := New(cfg, &fakeSink{}, testLogger())
	require.NoError(t, err)

	release := make(chan struct{})
	entered := make(chan struct{})
	g.router.Get("/slow", func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
	})
	defer close(release)

	require.NoError(t, g.Listen())
	go g.Serve()
	go http.Get("http://" + g.Addr() + "/slow")
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, g.Shutdown(ctx))
}

func TestGateway_ShutdownBeforeListen(t *testing.T) {
	g := newTestGateway(t, &fakeSink{})
	assert.NoError(t, g.Shutdown(context.Background()))
}
