// Package transport talks to the equipment analysis backend.
//
// Every operation either returns its payload or a *Error carrying the message
// to show the user. Operations are stateless and independent; nothing is retried.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/chemviz/dashboard/internal/models"
	"github.com/rs/zerolog/log"
)

// Backend paths.
const (
	PathLatest  = "/api/latest/"
	PathUpload  = "/api/upload/"
	PathHistory = "/api/history/"
	PathReport  = "/api/pdf/"
)

// UploadField is the multipart field carrying the CSV file.
const UploadField = "file"

// Client is the transport client. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a per-request timeout. Zero keeps the transport default.
// The installed HTTP client is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchLatest returns the most recent dataset. A 404 means nothing has been
// uploaded yet and yields (nil, nil).
func (c *Client) FetchLatest(ctx context.Context) (*models.Dataset, error) {
	body, status, err := c.do(ctx, OpFetchLatest, http.MethodGet, PathLatest, nil, "")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		log.Debug().Str("op", string(OpFetchLatest)).Msg("no dataset uploaded yet")
		return nil, nil
	}
	if !isSuccess(status) {
		return nil, serverError(OpFetchLatest, status, body)
	}
	return decodeDataset(OpFetchLatest, status, body)
}

// HasCSVExtension reports whether name is acceptable for upload.
func HasCSVExtension(name string) bool {
	return strings.HasSuffix(name, ".csv")
}

// Upload sends a CSV file and returns the dataset computed from it. Files whose
// name does not end in ".csv" are rejected before any request is made.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (*models.Dataset, error) {
	if !HasCSVExtension(name) {
		return nil, NewValidationError(OpUpload, MsgNotCSV)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(UploadField, name)
	if err != nil {
		return nil, &Error{Op: OpUpload, Kind: KindNetwork, Message: MsgUploadFailed, Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, &Error{Op: OpUpload, Kind: KindNetwork, Message: MsgUploadFailed, Err: fmt.Errorf("reading upload: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return nil, &Error{Op: OpUpload, Kind: KindNetwork, Message: MsgUploadFailed, Err: err}
	}

	body, status, err := c.do(ctx, OpUpload, http.MethodPost, PathUpload, &buf, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, serverError(OpUpload, status, body)
	}
	return decodeDataset(OpUpload, status, body)
}

// FetchHistory returns up to five recent uploads, newest first, exactly as the
// backend orders them. Any failure yields an empty list.
func (c *Client) FetchHistory(ctx context.Context) []models.HistoryEntry {
	body, status, err := c.do(ctx, OpFetchHistory, http.MethodGet, PathHistory, nil, "")
	if err != nil {
		log.Debug().Err(err).Str("op", string(OpFetchHistory)).Msg("history unavailable")
		return []models.HistoryEntry{}
	}
	if !isSuccess(status) {
		log.Debug().Int("status", status).Str("op", string(OpFetchHistory)).Msg("history unavailable")
		return []models.HistoryEntry{}
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		log.Debug().Err(err).Str("op", string(OpFetchHistory)).Msg("history undecodable")
		return []models.HistoryEntry{}
	}
	if entries == nil {
		return []models.HistoryEntry{}
	}
	return entries
}

// FetchReport downloads the PDF report for the latest dataset.
func (c *Client) FetchReport(ctx context.Context) ([]byte, error) {
	body, status, err := c.do(ctx, OpFetchReport, http.MethodGet, PathReport, nil, "")
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, serverError(OpFetchReport, status, body)
	}
	return body, nil
}

// do performs a request and reads the full response body.
func (c *Client) do(ctx context.Context, op Op, method, path string, body io.Reader, contentType string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, &Error{Op: op, Kind: KindNetwork, Message: genericMessage(op), Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &Error{Op: op, Kind: KindNetwork, Message: genericMessage(op), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &Error{Op: op, Kind: KindNetwork, Status: resp.StatusCode, Message: genericMessage(op), Err: err}
	}

	log.Debug().
		Str("op", string(op)).
		Int("status", resp.StatusCode).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("backend request")

	return data, resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// serverError builds the failure for a non-2xx response, preferring the
// backend's own "error" message.
func serverError(op Op, status int, body []byte) *Error {
	msg := genericMessage(op)
	if m := errorField(body); m != "" {
		msg = m
	}
	return &Error{
		Op:      op,
		Kind:    KindServer,
		Status:  status,
		Message: msg,
		Err:     fmt.Errorf("backend responded %d %s", status, http.StatusText(status)),
	}
}

// errorField extracts a non-empty string "error" member from a JSON body.
func errorField(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Error, &s); err != nil {
		return ""
	}
	return s
}

func decodeDataset(op Op, status int, body []byte) (*models.Dataset, error) {
	ds, err := models.DecodeDataset(body)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindDecode, Status: status, Message: genericMessage(op), Err: err}
	}
	return ds, nil
}

// AsError reports whether err is a transport failure and returns it.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
