package ade

import (
	"context"
	"encoding/json"
	"fmt"

	"docsamajh/pkg/core/cache"
	"docsamajh/pkg/core/logging"
	"docsamajh/pkg/models"
)

// API is the part of Client the Extractor uses.
type API interface {
	Parse(ctx context.Context, filename string, content []byte, opts ParseOptions) (*ParseResult, error)
	Extract(ctx context.Context, markdown string, schema json.RawMessage) (*ExtractResult, error)
}

var _ API = (*Client)(nil)

const defaultPreviewLen = 500

// Extraction is one processed upload.
type Extraction struct {
	Filename        string                `json:"filename"`
	Kind            models.DocumentKind   `json:"document_type"`
	Detected        bool                  `json:"type_detected"`
	Record          models.DocumentRecord `json:"record"`
	Data            json.RawMessage       `json:"data"`
	Metadata        Metadata              `json:"metadata"`
	MarkdownPreview string                `json:"markdown_preview"`
	Markdown        string                `json:"-"`
	Partial         bool                  `json:"partial"`
	SchemaViolation string                `json:"schema_violation,omitempty"`
	Cached          bool                  `json:"cached"`
}

// cachedExtraction is what goes into the cache; Record is rebuilt from Data.
type cachedExtraction struct {
	Kind            models.DocumentKind `json:"kind"`
	Detected        bool                `json:"detected"`
	Data            json.RawMessage     `json:"data"`
	Metadata        Metadata            `json:"metadata"`
	Markdown        string              `json:"markdown"`
	Partial         bool                `json:"partial"`
	SchemaViolation string              `json:"schema_violation,omitempty"`
}

// Extractor runs parse then extract for one document.
type Extractor struct {
	API   API
	Cache cache.ExtractionCache // optional
	// Strict turns 206 partial extractions into ErrPartial.
	Strict     bool
	SplitPages bool
	PreviewLen int
}

func NewExtractor(api API, c cache.ExtractionCache) *Extractor {
	return &Extractor{API: api, Cache: c, PreviewLen: defaultPreviewLen}
}

// ExtractDocument parses content and extracts fields for kind. An empty kind
// is detected from the parsed markdown.
func (e *Extractor) ExtractDocument(ctx context.Context, kind models.DocumentKind, filename string, content []byte) (*Extraction, error) {
	log := logging.WithComponent("ade").WithField("filename", filename)
	key := cache.Key(content, string(kind))

	if e.Cache != nil {
		var hit cachedExtraction
		ok, err := e.Cache.Get(ctx, key, &hit)
		if err != nil {
			logging.LogError("ade", "ExtractDocument", "cache get", key, err)
		}
		if ok {
			log.Debug("extraction cache hit")
			x, err := e.build(filename, hit)
			if err != nil {
				return nil, err
			}
			x.Cached = true
			return x, e.checkPartial(x)
		}
	}

	parsed, err := e.API.Parse(ctx, filename, content, ParseOptions{SplitPages: e.SplitPages})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	entry := cachedExtraction{Kind: kind, Metadata: parsed.Metadata, Markdown: parsed.Markdown}
	if entry.Kind == "" {
		entry.Kind = DetectKind(FlattenTables(parsed.Markdown))
		entry.Detected = true
		log.WithField("document_type", entry.Kind).Debug("detected document type")
	}

	schema, err := SchemaFor(entry.Kind)
	if err != nil {
		return nil, err
	}
	extracted, err := e.API.Extract(ctx, parsed.Markdown, schema)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	entry.Data = extracted.Extraction
	entry.Partial = extracted.Partial
	entry.SchemaViolation = extracted.SchemaViolation
	if extracted.Metadata.CreditUsage > 0 {
		entry.Metadata.CreditUsage += extracted.Metadata.CreditUsage
	}

	x, err := e.build(filename, entry)
	if err != nil {
		return nil, err
	}

	if e.Cache != nil {
		if err := e.Cache.Set(ctx, key, entry); err != nil {
			logging.LogError("ade", "ExtractDocument", "cache set", key, err)
		}
	}
	return x, e.checkPartial(x)
}

func (e *Extractor) build(filename string, c cachedExtraction) (*Extraction, error) {
	rec := models.DocumentRecord{Kind: c.Kind}
	if err := json.Unmarshal(c.Data, &rec); err != nil {
		return nil, fmt.Errorf("extraction for %s is not an object: %w", filename, err)
	}
	n := e.PreviewLen
	if n <= 0 {
		n = defaultPreviewLen
	}
	return &Extraction{
		Filename:        filename,
		Kind:            c.Kind,
		Detected:        c.Detected,
		Record:          rec,
		Data:            c.Data,
		Metadata:        c.Metadata,
		MarkdownPreview: Preview(c.Markdown, n),
		Markdown:        c.Markdown,
		Partial:         c.Partial,
		SchemaViolation: c.SchemaViolation,
	}, nil
}

func (e *Extractor) checkPartial(x *Extraction) error {
	if e.Strict && x.Partial {
		return fmt.Errorf("%s: %w: %s", x.Filename, ErrPartial, truncate(x.SchemaViolation, 200))
	}
	return nil
}
