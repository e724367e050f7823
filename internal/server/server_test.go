package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KaramelBytes/dataprof/internal/ai"
	"github.com/KaramelBytes/dataprof/internal/pipeline"
	"github.com/KaramelBytes/dataprof/internal/storage"
)

const sampleCSV = "id,age,city\n" +
	"1,10,NY\n" +
	"2,,LA\n" +
	"1,10,NY\n" +
	"3,30,SF\n" +
	"4,40,NA\n"

type memStore struct {
	mu   sync.Mutex
	objs map[string]*storage.Object
}

func newMemStore() *memStore { return &memStore{objs: map[string]*storage.Object{}} }

func (m *memStore) Init(context.Context) error { return nil }
func (m *memStore) Put(_ context.Context, key string, data []byte, ct string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = &storage.Object{Data: append([]byte(nil), data...), ContentType: ct}
	return nil
}
func (m *memStore) Get(_ context.Context, key string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.objs[key]; ok {
		return o, nil
	}
	return nil, storage.ErrNotFound
}
func (m *memStore) Close() error { return nil }

type stubRuntime struct {
	answer string
	err    error
}

func (s stubRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Content: s.answer}}}}, nil
}

func newTestServer(store storage.Store, rt ai.Runtime) *Server {
	return New(Config{
		Pipeline:       pipeline.New(pipeline.Config{Store: store, Runtime: rt, Model: "test-model"}),
		Store:          store,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

func uploadRequest(t *testing.T, target, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write([]byte(body)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Detail
}

func TestHealthz(t *testing.T) {
	rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}
}

func TestProfile_ReturnsProfileDocument(t *testing.T) {
	s := newTestServer(nil, nil)
	for _, path := range []string{"/api/profile/", "/api/profile"} {
		rec := serve(s, uploadRequest(t, path, "people.csv", sampleCSV))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d body %s", path, rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type %q", ct)
		}
		var doc struct {
			Overview struct {
				NumRows int      `json:"num_rows"`
				Columns []string `json:"columns"`
			} `json:"overview"`
			ColumnAnalysis map[string]struct {
				Type string `json:"type"`
			} `json:"column_analysis"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if doc.Overview.NumRows != 5 || len(doc.Overview.Columns) != 3 {
			t.Fatalf("unexpected overview: %+v", doc.Overview)
		}
		if got := doc.ColumnAnalysis["age"].Type; got != "numeric" {
			t.Fatalf("age type %q", got)
		}
		if rec.Header().Get("X-Dataset-ID") != "" {
			t.Fatalf("dataset id should only be set when stored")
		}
	}
}

func TestProfile_FixProfilesCleanedTable(t *testing.T) {
	rec := serve(newTestServer(nil, nil), uploadRequest(t, "/api/profile/?fix=true", "people.csv", sampleCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"num_rows":2`) {
		t.Fatalf("expected cleaned row count, got %s", rec.Body.String())
	}
}

func TestProfile_RejectsBadRequests(t *testing.T) {
	s := newTestServer(nil, nil)
	cases := []struct {
		name   string
		req    *http.Request
		detail string
	}{
		{"not csv", uploadRequest(t, "/api/profile/", "people.txt", sampleCSV), "File must be a CSV"},
		{"ragged", uploadRequest(t, "/api/profile/", "bad.csv", "a,b\n1,2,3\n"), ""},
		{"bad flag", uploadRequest(t, "/api/profile/?fix=maybe", "people.csv", sampleCSV), `invalid fix="maybe"`},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/profile/", strings.NewReader(sampleCSV)), "expected multipart/form-data with a file field"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(s, tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
			}
			d := detailOf(t, rec)
			if tc.detail != "" && d != tc.detail {
				t.Fatalf("detail %q want %q", d, tc.detail)
			}
			if d == "" {
				t.Fatalf("empty detail")
			}
		})
	}
}

func TestProfile_MissingFileField(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/profile/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := serve(newTestServer(nil, nil), req)
	if rec.Code != http.StatusBadRequest || detailOf(t, rec) != "missing file field" {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestProfile_UploadTooLarge(t *testing.T) {
	s := New(Config{MaxUploadBytes: 64})
	rec := serve(s, uploadRequest(t, "/api/profile/", "big.csv", strings.Repeat("a,b\n", 200)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProfile_WithMetadata(t *testing.T) {
	rt := stubRuntime{answer: `{"title":"People","description":"Residents","tags":["demo"],"columns":{"age":"Age in years"}}`}
	rec := serve(newTestServer(nil, rt), uploadRequest(t, "/api/profile/?metadata=true", "people.csv", sampleCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Profile  json.RawMessage `json:"profile"`
		Metadata ai.Metadata     `json:"metadata"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Profile) == 0 || body.Metadata.Title != "People" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestProfile_CollaboratorFailureIsHidden(t *testing.T) {
	rt := stubRuntime{err: errors.New("upstream exploded with secret detail")}
	rec := serve(newTestServer(nil, rt), uploadRequest(t, "/api/profile/?metadata=1", "people.csv", sampleCSV))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	if d := detailOf(t, rec); d != "internal error" {
		t.Fatalf("detail leaked: %q", d)
	}
}

func TestProfile_StoresArtifactsAndServesThem(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store, nil)
	rec := serve(s, uploadRequest(t, "/api/profile/?fix=true", "people.csv", sampleCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	id := rec.Header().Get("X-Dataset-ID")
	if id == "" {
		t.Fatalf("missing X-Dataset-ID")
	}

	get := serve(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+id+"/original.csv", nil))
	if get.Code != http.StatusOK || get.Body.String() != sampleCSV {
		t.Fatalf("original: %d %q", get.Code, get.Body.String())
	}
	if ct := get.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("original content type %q", ct)
	}

	cleaned := serve(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+id+"/cleaned.csv", nil))
	if cleaned.Code != http.StatusOK || cleaned.Body.String() != "id,age,city\n1,10.0,NY\n3,30.0,SF\n" {
		t.Fatalf("cleaned: %d %q", cleaned.Code, cleaned.Body.String())
	}

	for _, path := range []string{
		"/api/datasets/" + id + "/secrets.txt",
		"/api/datasets/not-a-uuid/original.csv",
		"/api/datasets/00000000-0000-0000-0000-000000000000/original.csv",
	} {
		if rec := serve(s, httptest.NewRequest(http.MethodGet, path, nil)); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
}

func TestArtifact_NoStore(t *testing.T) {
	rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodGet, "/api/datasets/00000000-0000-0000-0000-000000000000/profile.json", nil))
	if rec.Code != http.StatusNotFound || detailOf(t, rec) != "storage not configured" {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestQualityReport(t *testing.T) {
	s := newTestServer(nil, nil)
	for _, path := range []string{"/api/quality/", "/api/quality"} {
		rec := serve(s, uploadRequest(t, path, "people.csv", sampleCSV))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d body %s", path, rec.Code, rec.Body.String())
		}
		want := `{"missing_values":{"id":0,"age":1,"city":1},"data_types":{"id":"int64","age":"float64","city":"object"},"duplicates":1}`
		if got := strings.TrimSpace(rec.Body.String()); got != want {
			t.Fatalf("%s report:\n got %s\nwant %s", path, got, want)
		}
	}
}

func TestQualityFix_ReturnsCSV(t *testing.T) {
	rec := serve(newTestServer(nil, nil), uploadRequest(t, "/api/quality/fix", "people.csv", sampleCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "cleaned_people.csv") {
		t.Fatalf("content disposition %q", cd)
	}
	if got, want := rec.Body.String(), "id,age,city\n1,10.0,NY\n3,30.0,SF\n"; got != want {
		t.Fatalf("body %q want %q", got, want)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodGet, "/api/quality/fix", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(nil, nil)

	pre := httptest.NewRequest(http.MethodOptions, "/api/profile/", nil)
	pre.Header.Set("Origin", "http://localhost:3000")
	pre.Header.Set("Access-Control-Request-Method", "POST")
	rec := serve(s, pre)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Fatalf("allow methods %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}

	other := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	other.Header.Set("Origin", "http://evil.example")
	rec = serve(s, other)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	wild := New(Config{AllowedOrigins: []string{"*"}})
	rec = serve(wild, other)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("wildcard allow origin %q", got)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Config{}).Serve(ctx, ln) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
