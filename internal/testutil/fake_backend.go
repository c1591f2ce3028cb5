// fake_backend.go - Programmable stand-in for the equipment analysis backend
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Response is one canned backend reply. When Gate is non-nil the handler
// blocks until it is closed, which lets tests control resolution order.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
	Gate        <-chan struct{}
}

// JSON builds a JSON response.
func JSON(status int, v any) Response {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Response{Status: status, Body: b, ContentType: "application/json"}
}

// Raw builds a response from raw JSON text.
func Raw(status int, body string) Response {
	return Response{Status: status, Body: []byte(body), ContentType: "application/json"}
}

// ErrorBody builds a failure response carrying {"error": msg}.
func ErrorBody(status int, msg string) Response {
	return JSON(status, map[string]string{"error": msg})
}

// Upload captures a multipart upload received by the fake.
type Upload struct {
	Field    string
	Filename string
	Data     []byte
}

// FakeBackend serves the backend HTTP contract from canned responses.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	defaults map[string]Response
	queued   map[string][]Response
	hits     map[string]int
	uploads  []Upload
}

// NewFakeBackend starts a fake backend that is closed when the test ends.
// Unconfigured paths answer 404.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		defaults: make(map[string]Response),
		queued:   make(map[string][]Response),
		hits:     make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake.
func (f *FakeBackend) URL() string { return f.Server.URL }

// Set installs the default response for path.
func (f *FakeBackend) Set(path string, r Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaults[path] = r
}

// Enqueue adds one-shot responses for path, consumed in order before the default.
func (f *FakeBackend) Enqueue(path string, rs ...Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[path] = append(f.queued[path], rs...)
}

// Hits returns how many requests path has received.
func (f *FakeBackend) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// Uploads returns the multipart files received so far.
func (f *FakeBackend) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Upload, len(f.uploads))
	copy(out, f.uploads)
	return out
}

func (f *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if r.Method == http.MethodPost {
		f.captureUpload(r)
	}

	f.mu.Lock()
	f.hits[path]++
	resp, ok := f.defaults[path]
	if q := f.queued[path]; len(q) > 0 {
		resp, ok = q[0], true
		f.queued[path] = q[1:]
	}
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if resp.Gate != nil {
		select {
		case <-resp.Gate:
		case <-r.Context().Done():
			return
		}
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

func (f *FakeBackend) captureUpload(r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return
	}
	for field, headers := range r.MultipartForm.File {
		for _, h := range headers {
			src, err := h.Open()
			if err != nil {
				continue
			}
			data, _ := io.ReadAll(src)
			src.Close()
			f.mu.Lock()
			f.uploads = append(f.uploads, Upload{Field: field, Filename: h.Filename, Data: data})
			f.mu.Unlock()
		}
	}
}
