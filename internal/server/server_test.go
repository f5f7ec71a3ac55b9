package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"enrich/internal/catalog"
	"enrich/internal/match"
	"enrich/internal/portal"
)

type memStore struct {
	records []catalog.Record
}

func (m *memStore) Load(ctx context.Context) ([]catalog.Record, error) { return m.records, nil }
func (m *memStore) Replace(ctx context.Context, records []catalog.Record) error {
	m.records = records
	return nil
}
func (m *memStore) Close() {}

// testEnv bundles the service under test with a fake portal serving one
// joinable CSV.
type testEnv struct {
	srv    *Server
	portal *httptest.Server
	cookie *http.Cookie
}

func newTestEnv(t *testing.T, suggester match.Suggester) *testEnv {
	t.Helper()

	ps := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/einwohner.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("Ort;Einwohner\nKöln;1084000\nBonn;336000\n"))
	}))
	t.Cleanup(ps.Close)

	store := &memStore{records: []catalog.Record{
		{
			Title:      "Einwohnerzahlen",
			Tag:        "Bevölkerung",
			Keywords:   []string{"einwohner"},
			CSV:        ps.URL + "/einwohner.csv",
			TopTenCols: "  Ort  Einwohner\n0  Köln  1084000",
		},
	}}

	return &testEnv{
		srv:    New(store, suggester, portal.NewClient(ps.Client(), 5*time.Second)),
		portal: ps,
	}
}

// do sends a request through the echo app, carrying the session cookie
// across calls.
func (env *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if env.cookie != nil {
		req.AddCookie(env.cookie)
	}
	rec := httptest.NewRecorder()
	env.srv.Echo().ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			env.cookie = ck
		}
	}
	return rec
}

func uploadRequest(t *testing.T, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte(body)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func matchRequestJSON(t *testing.T, tag string) *http.Request {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"tag": tag})
	req := httptest.NewRequest(http.MethodPost, "/api/match", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestUpload_RejectsNonCSV(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, match.Static{})
	rec := env.do(t, uploadRequest(t, "daten.xlsx", "whatever"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpload_AcceptsCSV(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, match.Static{})
	rec := env.do(t, uploadRequest(t, "daten.csv", "Ort;Wert\nKöln;1\n"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Columns) != 2 || resp.Rows != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMatch_RequiresUpload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, match.Static{})
	rec := env.do(t, matchRequestJSON(t, ""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// TestMatchAndDownload_FullFlow covers the happy path: upload, match via
// the static suggester, join against the portal CSV, download the result.
func TestMatchAndDownload_FullFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, match.Static{Index: 1, UserColumn: "Ort", CatalogColumn: "Ort"})

	if rec := env.do(t, uploadRequest(t, "daten.csv", "Ort;Wert\nKöln;1\nUnbekannt;2\n")); rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}

	rec := env.do(t, matchRequestJSON(t, "Bevölkerung"))
	if rec.Code != http.StatusOK {
		t.Fatalf("match status = %d, body %s", rec.Code, rec.Body)
	}
	var resp matchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Matched || !resp.Joined {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Dataset != "Einwohnerzahlen" {
		t.Errorf("Dataset = %q", resp.Dataset)
	}
	if len(resp.AddedColumns) != 1 || resp.AddedColumns[0] != "Einwohner" {
		t.Errorf("AddedColumns = %v", resp.AddedColumns)
	}
	if resp.Rows != 2 {
		t.Errorf("Rows = %d, want all user rows preserved", resp.Rows)
	}

	dl := env.do(t, httptest.NewRequest(http.MethodGet, "/api/download", nil))
	if dl.Code != http.StatusOK {
		t.Fatalf("download status = %d", dl.Code)
	}
	body := dl.Body.String()
	if !strings.Contains(body, "Einwohner") || !strings.Contains(body, "1084000") {
		t.Errorf("download body misses joined data:\n%s", body)
	}
}

// TestMatch_NoMatchIsNotAnError verifies a declined suggestion comes back
// as a clean JSON outcome.
func TestMatch_NoMatchIsNotAnError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, match.Static{}) // Index 0 declines
	env.do(t, uploadRequest(t, "daten.csv", "Ort;Wert\nKöln;1\n"))

	rec := env.do(t, matchRequestJSON(t, "Bevölkerung"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp matchResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Matched || resp.Joined || resp.Reason == "" {
		t.Errorf("resp = %+v", resp)
	}
}

// TestMatch_JoinFailureKeepsUpload verifies a failed join reports the
// chosen dataset but leaves the session's upload untouched.
func TestMatch_JoinFailureKeepsUpload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, match.Static{Index: 1, UserColumn: "Stadt", CatalogColumn: "Ort"})
	env.do(t, uploadRequest(t, "daten.csv", "Ort;Wert\nKöln;1\n"))

	rec := env.do(t, matchRequestJSON(t, "Bevölkerung"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp matchResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Matched || resp.Joined {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Dataset != "Einwohnerzahlen" {
		t.Errorf("Dataset = %q", resp.Dataset)
	}

	dl := env.do(t, httptest.NewRequest(http.MethodGet, "/api/download", nil))
	if strings.Contains(dl.Body.String(), "Einwohner") {
		t.Error("session dataset was replaced despite failed join")
	}
	if !strings.Contains(dl.Body.String(), "Wert") {
		t.Error("original upload lost")
	}
}

func TestCatalogEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, match.Static{})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/tags", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Bevölkerung") {
		t.Errorf("tags = %d %s", rec.Code, rec.Body)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/keywords", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "einwohner") {
		t.Errorf("keywords = %d %s", rec.Code, rec.Body)
	}
}
