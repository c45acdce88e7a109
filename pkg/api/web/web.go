// Package web holds the request and response helpers shared by the HTTP
// handlers.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"docsamajh/pkg/core/ade"
	"docsamajh/pkg/core/logging"
	"docsamajh/pkg/core/pipeline"
	"docsamajh/pkg/core/store"
	"docsamajh/pkg/models"
)

const (
	// MaxUploadBytes caps a whole multipart request.
	MaxUploadBytes = 32 << 20

	HeaderUserID    = "X-User-ID"
	HeaderSessionID = "X-Session-ID"
	AnonymousUser   = "anonymous"
)

// ValidationError is reported to the client as 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// CORS sets the headers for local front-end development. It returns true
// when the request was a preflight and has been answered.
func CORS(w http.ResponseWriter, r *http.Request, methods string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderUserID+", "+HeaderSessionID)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}

// Allow answers 405 unless r uses one of methods.
func Allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	Error(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.LogError("web", "WriteJSON", "encode response", nil, err)
	}
}

func Error(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	var verr *ValidationError
	var apiErr *ade.APIError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotInitialized), errors.Is(err, pipeline.ErrNoExtractor):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr), errors.Is(err, ade.ErrUnauthorized), errors.Is(err, ade.ErrPartial):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError logs err and answers with the mapped status.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logging.LogError("api", r.URL.Path, r.Method, nil, err)
	}
	Error(w, status, err.Error())
}

// ActorFrom reads the caller identity headers.
func ActorFrom(r *http.Request) pipeline.Actor {
	user := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if user == "" {
		user = AnonymousUser
	}
	return pipeline.Actor{UserID: user, SessionID: strings.TrimSpace(r.Header.Get(HeaderSessionID))}
}

// ParseMultipart bounds the body and parses the form.
func ParseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return Invalid("upload exceeds %d MiB", MaxUploadBytes>>20)
		}
		return Invalid("invalid multipart form: %v", err)
	}
	return nil
}

// FormPDF returns the single PDF uploaded under field.
func FormPDF(r *http.Request, field string) (pipeline.Upload, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return pipeline.Upload{}, Invalid("missing file field %q", field)
	}
	return readPDF(r.MultipartForm.File[field][0])
}

// FormPDFs returns every PDF uploaded under field.
func FormPDFs(r *http.Request, field string) ([]pipeline.Upload, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, Invalid("missing file field %q", field)
	}
	var uploads []pipeline.Upload
	for _, fh := range r.MultipartForm.File[field] {
		up, err := readPDF(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

func readPDF(fh *multipart.FileHeader) (pipeline.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	name := filepath.Base(fh.Filename)
	if !IsPDF(name, data) {
		return pipeline.Upload{}, Invalid("%s is not a PDF", name)
	}
	return pipeline.Upload{Filename: name, Content: data}, nil
}

// IsPDF accepts a .pdf extension or the %PDF magic bytes.
func IsPDF(name string, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf") || bytes.HasPrefix(data, []byte("%PDF"))
}

// Limit parses ?limit= falling back to def.
func Limit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// Format returns ?format= lower-cased, or def when absent. Values outside
// allowed are a validation error.
func Format(r *http.Request, def string, allowed ...string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if f == "" {
		return def, nil
	}
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	return "", Invalid("unsupported format %q (want one of %s)", f, strings.Join(allowed, ", "))
}

// Attachment prepares a file download.
func Attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
}

// Kind reads a document type parameter. Empty returns def and "auto"
// returns the empty kind, which asks for detection.
func Kind(raw string, def models.DocumentKind) (models.DocumentKind, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "":
		return def, nil
	case "auto":
		return "", nil
	}
	k, err := models.ParseDocumentKind(raw)
	if err != nil {
		return "", Invalid("%v", err)
	}
	return k, nil
}
