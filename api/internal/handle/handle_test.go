package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/preview"
	"compliance-check/api/internal/session"
	"compliance-check/api/internal/upload"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 1, 2, 3}

type stubAnalyzer struct {
	mu    sync.Mutex
	focus string
	mime  string
	res   analysis.Result
	err   error
}

func (s *stubAnalyzer) Analyze(_ context.Context, image io.Reader, mimeType, focus string) (analysis.Result, error) {
	_, _ = io.ReadAll(image)
	s.mu.Lock()
	s.focus, s.mime = focus, mimeType
	s.mu.Unlock()
	return s.res, s.err
}

func (s *stubAnalyzer) lastFocus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

func (s *stubAnalyzer) lastMIME() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mime
}

type testEnv struct {
	srv      *httptest.Server
	client   *http.Client
	sessions *session.Store
	previews *preview.Memory
}

func newEnv(t *testing.T, an *stubAnalyzer, rateLimit float64, burst int) *testEnv {
	t.Helper()
	previews := preview.NewMemory()
	sessions := session.NewStore(an, time.Hour, nil)
	h := New(Deps{
		Sessions: sessions,
		Uploads:  upload.NewSurface(previews, 1<<20, nil),
		Previews: previews,
		Analyzer: an,
	})
	srv := httptest.NewServer(h.Routes(RouterConfig{
		RateLimit: rateLimit,
		RateBurst: burst,
		Health:    map[string]HealthChecker{"preview": previews},
	}))
	t.Cleanup(func() {
		srv.Close()
		sessions.Close(context.Background())
	})
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{srv: srv, client: client, sessions: sessions, previews: previews}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string, htmx bool) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func multipartBody(t *testing.T, partType string, data []byte, source string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("source", source))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="shot.png"`)
	hdr.Set("Content-Type", partType)
	pw, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = pw.Write(data)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, partType string, htmx bool) (*http.Response, string) {
	t.Helper()
	body, ct := multipartBody(t, partType, pngBytes, "drop")
	return e.do(t, http.MethodPost, "/upload", body, ct, htmx)
}

func (e *testEnv) onlySession(t *testing.T) *session.Session {
	t.Helper()
	require.Equal(t, 1, e.sessions.Len())
	var s *session.Session
	for _, c := range e.client.Jar.Cookies(mustURL(t, e.srv.URL)) {
		if c.Name == sessionCookie {
			var ok bool
			s, ok = e.sessions.Get(c.Value)
			require.True(t, ok)
		}
	}
	require.NotNil(t, s)
	return s
}

func TestIndexSetsCookie(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{}, 0, 0)
	resp, body := e.do(t, http.MethodGet, "/", nil, "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "ComplianceGuard")
	assert.Contains(t, body, "Ready to Analyze")
	assert.NotNil(t, e.onlySession(t))
}

func TestUploadRunAndPreview(t *testing.T) {
	an := &stubAnalyzer{res: analysis.Result{
		Text:      "## Verdict\n* **Compliant**",
		Citations: []analysis.Citation{{Web: &analysis.WebRef{URI: "https://law.example/a", Title: "Act"}}},
	}}
	e := newEnv(t, an, 0, 0)

	resp, _ := e.upload(t, "image/png", false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	s := e.onlySession(t)
	snap := s.Snapshot()
	require.NotNil(t, snap.File)
	assert.True(t, snap.CanRun)

	resp, body := e.do(t, http.MethodGet, "/preview/"+snap.File.Preview, nil, "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, string(pngBytes), body)

	_, body = e.do(t, http.MethodPost, "/run", strings.NewReader("focus_area=ads"), "application/x-www-form-urlencoded", true)
	assert.Contains(t, body, `id="app"`)
	s.Wait()
	assert.Equal(t, "ads", an.lastFocus())

	_, body = e.do(t, http.MethodGet, "/app", nil, "", true)
	assert.Contains(t, body, "Compliance Report")
	assert.Contains(t, body, "<strong>Compliant</strong>")
	assert.Contains(t, body, "https://law.example/a")
}

func TestUploadRejectsNonImage(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{}, 0, 0)

	resp, body := e.upload(t, "application/pdf", false)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Contains(t, body, "Please upload an image file")

	resp, body = e.upload(t, "text/plain", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `role="alert"`)

	assert.Nil(t, e.onlySession(t).Snapshot().File)
	assert.Zero(t, e.previews.Len())
}

func TestRunWithoutFileConflicts(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{}, 0, 0)
	resp, _ := e.do(t, http.MethodPost, "/run", nil, "", false)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestResetClearsSession(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{}, 0, 0)
	e.upload(t, "image/png", false)
	_, _ = e.do(t, http.MethodPost, "/focus", strings.NewReader("focus_area=GDPR"), "application/x-www-form-urlencoded", true)
	s := e.onlySession(t)
	assert.Equal(t, "GDPR", s.Snapshot().FocusArea)
	ref := s.Snapshot().File.Preview

	_, body := e.do(t, http.MethodPost, "/reset", nil, "", true)
	assert.Contains(t, body, "Ready to Analyze")
	snap := s.Snapshot()
	assert.Nil(t, snap.File)
	assert.Empty(t, snap.FocusArea)

	resp, _ := e.do(t, http.MethodGet, "/preview/"+ref, nil, "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreviewOfOtherSessionIsHidden(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{}, 0, 0)
	e.upload(t, "image/png", false)
	ref := e.onlySession(t).Snapshot().File.Preview

	stranger := &http.Client{}
	resp, err := stranger.Get(e.srv.URL + "/preview/" + ref)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIAnalyze(t *testing.T) {
	an := &stubAnalyzer{res: analysis.Result{Text: "## Summary\nok", Citations: []analysis.Citation{{}}}}
	e := newEnv(t, an, 0, 0)

	payload, _ := json.Marshal(AnalyzeRequest{
		ImageB64:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes),
		FocusArea: "cookies",
	})
	resp, body := e.do(t, http.MethodPost, "/v1/analyze", bytes.NewReader(payload), "application/json", false)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var out AnalyzeResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "## Summary\nok", out.Text)
	assert.Len(t, out.Citations, 1)
	assert.Empty(t, out.Links)
	assert.Len(t, out.Blocks, 2)
	assert.Equal(t, "cookies", an.lastFocus())
	assert.Equal(t, "image/png", an.lastMIME())
}

func TestAPIAnalyzeErrors(t *testing.T) {
	an := &stubAnalyzer{err: analysis.RemoteFailure(errors.New("upstream 503"))}
	e := newEnv(t, an, 0, 0)

	resp, _ := e.do(t, http.MethodPost, "/v1/analyze", strings.NewReader("{"), "application/json", false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload, _ := json.Marshal(AnalyzeRequest{ImageB64: "%%%"})
	resp, _ = e.do(t, http.MethodPost, "/v1/analyze", bytes.NewReader(payload), "application/json", false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload, _ = json.Marshal(AnalyzeRequest{ImageB64: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")), MIMEType: "application/pdf"})
	resp, _ = e.do(t, http.MethodPost, "/v1/analyze", bytes.NewReader(payload), "application/json", false)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	payload, _ = json.Marshal(AnalyzeRequest{ImageB64: base64.StdEncoding.EncodeToString(pngBytes)})
	resp, body := e.do(t, http.MethodPost, "/v1/analyze", bytes.NewReader(payload), "application/json", false)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "upstream 503")
}

func TestAPIRateLimit(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{res: analysis.Result{Text: "ok"}}, 0.001, 1)
	payload, _ := json.Marshal(AnalyzeRequest{ImageB64: base64.StdEncoding.EncodeToString(pngBytes)})

	resp, _ := e.do(t, http.MethodPost, "/v1/analyze", bytes.NewReader(payload), "application/json", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = e.do(t, http.MethodPost, "/v1/analyze", bytes.NewReader(payload), "application/json", false)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{}, 0, 0)
	resp, body := e.do(t, http.MethodGet, "/healthz", nil, "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var hs HealthStatus
	require.NoError(t, json.Unmarshal([]byte(body), &hs))
	assert.Equal(t, "healthy", hs.Status)
	assert.Equal(t, "healthy", hs.Checks["preview"].Status)
}

type downChecker struct{}

func (downChecker) Check(context.Context) error { return errors.New("bucket missing") }

func TestHealthUnhealthy(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"preview": downChecker{}})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "bucket missing")
}

func TestRequestTimeout(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/analyze?timeoutSec=30", nil)
	assert.Equal(t, 30*time.Second, requestTimeout(r))
	r.Header.Set("X-Request-Timeout", "99999")
	assert.Equal(t, maxAPITimeout, requestTimeout(r))
	r.Header.Set("X-Request-Timeout", "9223372036854775807")
	assert.Equal(t, maxAPITimeout, requestTimeout(r))
	r.Header.Set("X-Request-Timeout", "600")
	assert.Equal(t, 10*time.Minute, requestTimeout(r))
	assert.Zero(t, requestTimeout(httptest.NewRequest(http.MethodPost, "/", nil)))
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestWebhookRoute(t *testing.T) {
	var hits int
	h := New(Deps{Uploads: upload.NewSurface(preview.NewMemory(), 1<<20, nil)})
	srv := httptest.NewServer(h.Routes(RouterConfig{
		Webhooks: map[string]http.Handler{
			"/webhook/abc": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits++
				w.WriteHeader(http.StatusOK)
			}),
		},
	}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook/abc", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, hits)

	resp, err = http.Get(srv.URL + "/webhook/abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPreviewIsSandboxed(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{}, 0, 0)
	body, ct := multipartBody(t, "image/svg+xml", []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`), "pick")
	resp, _ := e.do(t, http.MethodPost, "/upload", body, ct, false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	ref := e.onlySession(t).Snapshot().File.Preview
	resp, _ = e.do(t, http.MethodGet, "/preview/"+ref, nil, "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Security-Policy"), "sandbox"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestRateLimitIgnoresForwardedHeaders(t *testing.T) {
	payload, _ := json.Marshal(AnalyzeRequest{ImageB64: base64.StdEncoding.EncodeToString(pngBytes)})
	call := func(h http.Handler, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewReader(payload))
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	routes := func(trust bool) http.Handler {
		an := &stubAnalyzer{res: analysis.Result{Text: "ok"}}
		h := New(Deps{Uploads: upload.NewSurface(preview.NewMemory(), 1<<20, nil), Analyzer: an})
		return h.Routes(RouterConfig{RateLimit: 0.001, RateBurst: 1, TrustProxy: trust})
	}

	direct := routes(false)
	assert.Equal(t, http.StatusOK, call(direct, "1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, call(direct, "2.2.2.2"))

	proxied := routes(true)
	assert.Equal(t, http.StatusOK, call(proxied, "1.1.1.1"))
	assert.Equal(t, http.StatusOK, call(proxied, "2.2.2.2"))
	assert.Equal(t, http.StatusTooManyRequests, call(proxied, "1.1.1.1"))
}
