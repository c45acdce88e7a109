// Package ade is a client for the LandingAI Agentic Document Extraction
// API: parse a PDF into markdown, then extract schema-shaped JSON from it.
package ade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"docsamajh/pkg/core/logging"
)

const (
	DefaultBaseURL = "https://api.va.landing.ai"
	ParseModel     = "dpt-2-latest"
	ExtractModel   = "extract-latest"

	parsePath   = "/v1/ade/parse"
	extractPath = "/v1/ade/extract"
)

var (
	// ErrUnauthorized is wrapped by APIError for 401 and 403 responses.
	ErrUnauthorized = errors.New("ade: unauthorized")
	// ErrPartial marks an extraction that came back 206 with a schema
	// violation, when the caller asked for strict handling.
	ErrPartial = errors.New("ade: partial extraction")
)

// APIError is returned for any unexpected HTTP status.
type APIError struct {
	Status   int
	Body     string
	Endpoint string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ADE %s failed (%d): %s", e.Endpoint, e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Metadata is the subset of ADE metadata the app displays and stores.
type Metadata struct {
	Filename        string  `json:"filename,omitempty"`
	PageCount       int     `json:"page_count,omitempty"`
	CreditUsage     float64 `json:"credit_usage,omitempty"`
	DurationMS      int     `json:"duration_ms,omitempty"`
	JobID           string  `json:"job_id,omitempty"`
	SchemaViolation string  `json:"schema_violation_error,omitempty"`
}

type ParseOptions struct {
	SplitPages bool
}

type ParseResult struct {
	Markdown string          `json:"markdown"`
	Metadata Metadata        `json:"metadata"`
	Raw      json.RawMessage `json:"-"` // full metadata object as returned
}

type ExtractResult struct {
	Extraction      json.RawMessage `json:"extraction"`
	Metadata        Metadata        `json:"metadata"`
	Partial         bool            `json:"partial"`
	SchemaViolation string          `json:"schema_violation,omitempty"`
}

// Client calls the ADE REST API.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Parse uploads a document and returns its markdown rendering.
func (c *Client) Parse(ctx context.Context, filename string, content []byte, opts ParseOptions) (*ParseResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("model", ParseModel)
	if opts.SplitPages {
		_ = w.WriteField("split", "page")
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="document"; filename="%s"`, filepath.Base(filename)))
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to build parse request: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to build parse request: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build parse request: %w", err)
	}

	status, body, err := c.post(ctx, parsePath, w.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Status: status, Body: truncate(string(body), 1000), Endpoint: "parse"}
	}

	var envelope struct {
		Markdown string          `json:"markdown"`
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode ADE parse response: %w", err)
	}
	res := &ParseResult{Markdown: envelope.Markdown, Raw: envelope.Metadata}
	if len(envelope.Metadata) > 0 {
		_ = json.Unmarshal(envelope.Metadata, &res.Metadata)
	}
	if res.Metadata.Filename == "" {
		res.Metadata.Filename = filepath.Base(filename)
	}
	return res, nil
}

// Extract pulls schema-shaped fields out of parsed markdown. A 206 response
// is returned with Partial set.
func (c *Client) Extract(ctx context.Context, markdown string, schema json.RawMessage) (*ExtractResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("schema", string(schema))
	_ = w.WriteField("model", ExtractModel)
	_ = w.WriteField("markdown", markdown)
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build extract request: %w", err)
	}

	status, body, err := c.post(ctx, extractPath, w.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusPartialContent {
		return nil, &APIError{Status: status, Body: truncate(string(body), 1000), Endpoint: "extract"}
	}

	var res ExtractResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode ADE extract response: %w", err)
	}
	if status == http.StatusPartialContent {
		res.Partial = true
		res.SchemaViolation = res.Metadata.SchemaViolation
		logging.WithComponent("ade").WithField("schema_violation", truncate(res.SchemaViolation, 200)).
			Warn("partial extraction, some fields missing")
	}
	if len(res.Extraction) == 0 || string(res.Extraction) == "null" {
		res.Extraction = json.RawMessage("{}")
	}
	return &res, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", contentType)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		logging.LogError("ade", "post", path, nil, err)
		return 0, nil, fmt.Errorf("ADE request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read ADE response: %w", err)
	}
	logging.WithComponent("ade").WithField("path", path).WithField("status", resp.StatusCode).
		WithField("elapsed_ms", time.Since(start).Milliseconds()).Debug("ADE call")
	return resp.StatusCode, data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
