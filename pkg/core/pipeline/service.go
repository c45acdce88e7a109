// Package pipeline ties extraction, the reviewing agents and persistence
// together for the API and the CLI.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"docsamajh/pkg/core/ade"
	"docsamajh/pkg/core/agent"
	"docsamajh/pkg/core/compliance"
	"docsamajh/pkg/core/logging"
	"docsamajh/pkg/core/prompt"
	"docsamajh/pkg/core/reconcile"
	"docsamajh/pkg/core/store"
	"docsamajh/pkg/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentExtractor turns an upload into an extraction.
type DocumentExtractor interface {
	ExtractDocument(ctx context.Context, kind models.DocumentKind, filename string, content []byte) (*ade.Extraction, error)
}

type AuditLog interface {
	Add(ctx context.Context, e *store.AuditEntry) error
	List(ctx context.Context, userID string, limit int) ([]store.AuditEntry, error)
}

type DocumentStore interface {
	Save(ctx context.Context, d *store.ProcessedDocument) error
	List(ctx context.Context, userID, docType string, limit int) ([]store.ProcessedDocument, error)
}

type ReconciliationStore interface {
	Save(ctx context.Context, rec *store.ReconciliationRecord) error
	List(ctx context.Context, userID string, limit int) ([]store.ReconciliationRecord, error)
}

type StatsStore interface {
	Increment(ctx context.Context, userID string, d store.StatsDelta) error
	Get(ctx context.Context, userID string) (*store.UserStats, error)
}

type SessionStore interface {
	Start(ctx context.Context, userID string) (uuid.UUID, error)
	End(ctx context.Context, sessionID uuid.UUID, documentsProcessed int) error
}

// ErrNoExtractor is returned by upload operations when ADE is not configured.
var ErrNoExtractor = errors.New("document extraction is not configured")

// Actor identifies who triggered an operation.
type Actor struct {
	UserID    string
	SessionID string
}

// Upload is one file as received from the client.
type Upload struct {
	Filename string
	Content  []byte
}

// Deps are the collaborators of a Service. Everything except Policy is
// optional; missing stores turn persistence into a no-op.
type Deps struct {
	Extractor       DocumentExtractor
	Executor        agent.Executor // nil disables narratives
	Prompts         *prompt.Registry
	Policy          reconcile.Policy
	Audit           AuditLog
	Documents       DocumentStore
	Reconciliations ReconciliationStore
	Stats           StatsStore
	Sessions        SessionStore
	Concurrency     int
}

type Service struct {
	extractor DocumentExtractor
	policy    reconcile.Policy

	processor  *agent.Agent
	specialist *agent.Agent
	auditor    *agent.Agent

	audit    AuditLog
	docs     DocumentStore
	recons   ReconciliationStore
	stats    StatsStore
	sessions SessionStore

	concurrency int
}

func NewService(d Deps) *Service {
	s := &Service{
		extractor:   d.Extractor,
		policy:      d.Policy,
		audit:       d.Audit,
		docs:        d.Documents,
		recons:      d.Reconciliations,
		stats:       d.Stats,
		sessions:    d.Sessions,
		concurrency: d.Concurrency,
	}
	if s.concurrency < 1 {
		s.concurrency = 4
	}
	s.processor = agent.NewDocumentProcessor(d.Executor, d.Prompts, s.parse)
	s.specialist = agent.NewReconciliationSpecialist(d.Executor, d.Prompts, d.Policy)
	s.auditor = agent.NewComplianceAuditor(d.Executor, d.Prompts)
	return s
}

// Policy returns the comparator policy in use.
func (s *Service) Policy() reconcile.Policy {
	return s.policy
}

func (s *Service) parse(ctx context.Context, kind models.DocumentKind, doc agent.Document) (*ade.Extraction, error) {
	return s.extractor.ExtractDocument(ctx, kind, doc.Filename, doc.Content)
}

// Note is one agent's commentary attached to a result.
type Note struct {
	Agent     string           `json:"agent"`
	Tool      string           `json:"tool"`
	Narrative *agent.Narrative `json:"narrative,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func noteFrom(inv *agent.Invocation) *Note {
	if inv.Narrative == nil && inv.NarrativeError == "" {
		return nil
	}
	return &Note{Agent: inv.Agent, Tool: inv.Tool, Narrative: inv.Narrative, Error: inv.NarrativeError}
}

// DocumentResult is the outcome of ProcessDocument.
type DocumentResult struct {
	ID         uuid.UUID          `json:"id"`
	Extraction *ade.Extraction    `json:"extraction"`
	Compliance *compliance.Result `json:"compliance,omitempty"`
	Notes      []Note             `json:"notes,omitempty"`
}

// ProcessDocument extracts one upload. An empty kind is auto-detected.
// Invoices are also run through the compliance checks.
func (s *Service) ProcessDocument(ctx context.Context, actor Actor, up Upload, kind models.DocumentKind) (*DocumentResult, error) {
	if s.extractor == nil {
		return nil, ErrNoExtractor
	}

	var (
		x    *ade.Extraction
		step *agent.Invocation
		err  error
	)
	if kind == "" {
		x, err = s.extractor.ExtractDocument(ctx, "", up.Filename, up.Content)
		if err == nil {
			step = s.processor.Review(ctx, agent.ParseToolFor(x.Kind), x)
		}
	} else {
		step, err = s.processor.Invoke(ctx, agent.ParseToolFor(kind), agent.Document{Filename: up.Filename, Content: up.Content})
		if err == nil {
			x = step.Result.(*ade.Extraction)
		}
	}
	if err != nil {
		s.record(ctx, actor, "Single Document Processing", up.Filename, kind.Label(), "Failed: "+err.Error(), "")
		return nil, err
	}

	res := &DocumentResult{ID: uuid.New(), Extraction: x}
	if note := noteFrom(step); note != nil {
		res.Notes = append(res.Notes, *note)
	}

	if x.Kind == models.KindInvoice {
		inv, err := s.auditor.Invoke(ctx, agent.ToolCompliance, x.Record)
		if err == nil {
			c := inv.Result.(compliance.Result)
			res.Compliance = &c
			if note := noteFrom(inv); note != nil {
				res.Notes = append(res.Notes, *note)
			}
		}
	}

	s.saveDocument(ctx, actor, res.ID, x)
	s.record(ctx, actor, "Single Document Processing", up.Filename, x.Kind.Label(), "Success", detailsFor(x))
	s.bump(ctx, actor, kindDelta(x.Kind, 1))
	return res, nil
}

// ReconciliationResult is the outcome of comparing one invoice with one PO.
type ReconciliationResult struct {
	ID            uuid.UUID         `json:"id"`
	InvoiceFile   string            `json:"invoice_file,omitempty"`
	POFile        string            `json:"po_file,omitempty"`
	Invoice       *ade.Extraction   `json:"invoice,omitempty"`
	PurchaseOrder *ade.Extraction   `json:"purchase_order,omitempty"`
	Report        reconcile.Report  `json:"reconciliation"`
	Compliance    compliance.Result `json:"compliance"`
	Notes         []Note            `json:"notes,omitempty"`
}

// ReconcileUploads extracts both documents concurrently and reconciles them.
func (s *Service) ReconcileUploads(ctx context.Context, actor Actor, invoice, po Upload) (*ReconciliationResult, error) {
	if s.extractor == nil {
		return nil, ErrNoExtractor
	}

	var (
		wg            sync.WaitGroup
		invX, poX     *ade.Extraction
		invErr, poErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		invX, invErr = s.extractor.ExtractDocument(ctx, models.KindInvoice, invoice.Filename, invoice.Content)
	}()
	go func() {
		defer wg.Done()
		poX, poErr = s.extractor.ExtractDocument(ctx, models.KindPurchaseOrder, po.Filename, po.Content)
	}()
	wg.Wait()

	if err := errors.Join(wrapErr("invoice", invErr), wrapErr("purchase order", poErr)); err != nil {
		s.record(ctx, actor, "Reconciliation", pairName(invoice.Filename, po.Filename), "Reconciliation", "Failed: "+err.Error(), "")
		return nil, err
	}

	res, err := s.reconcile(ctx, actor, invX.Record, poX.Record, invoice.Filename, po.Filename)
	if err != nil {
		return nil, err
	}
	res.Invoice, res.PurchaseOrder = invX, poX
	return res, nil
}

// ReconcileRecords reconciles already extracted records.
func (s *Service) ReconcileRecords(ctx context.Context, actor Actor, invoice, po models.DocumentRecord) (*ReconciliationResult, error) {
	invoice.Kind, po.Kind = models.KindInvoice, models.KindPurchaseOrder
	return s.reconcile(ctx, actor, invoice, po, invoice.DocumentNumber, po.DocumentNumber)
}

func (s *Service) reconcile(ctx context.Context, actor Actor, invoice, po models.DocumentRecord, invoiceFile, poFile string) (*ReconciliationResult, error) {
	recInv, err := s.specialist.Invoke(ctx, agent.ToolReconcile, reconcile.Pair{Invoice: invoice, PurchaseOrder: po})
	if err != nil {
		return nil, err
	}
	compInv, err := s.auditor.Invoke(ctx, agent.ToolCompliance, invoice)
	if err != nil {
		return nil, err
	}

	res := &ReconciliationResult{
		ID:          uuid.New(),
		InvoiceFile: invoiceFile,
		POFile:      poFile,
		Report:      recInv.Result.(reconcile.Report),
		Compliance:  compInv.Result.(compliance.Result),
	}
	for _, inv := range []*agent.Invocation{recInv, compInv} {
		if note := noteFrom(inv); note != nil {
			res.Notes = append(res.Notes, *note)
		}
	}

	if s.recons != nil {
		rec := store.NewReconciliationRecord(actor.UserID, actor.SessionID, invoiceFile, poFile, res.Report)
		rec.ID = res.ID
		if err := s.recons.Save(ctx, rec); err != nil {
			logging.LogError("pipeline", "reconcile", "save reconciliation", res.ID.String(), err)
		}
	}
	s.record(ctx, actor, "Reconciliation", pairName(invoiceFile, poFile), "Reconciliation", "Success",
		fmt.Sprintf("Risk: %s", res.Report.RiskLevel))

	delta := store.StatsDelta{Processed: 2}
	if res.Report.Matched {
		delta.Matched = 1
	}
	if res.Report.Flagged() {
		delta.Flagged = 1
	}
	s.bump(ctx, actor, delta)
	return res, nil
}

// BatchItem is one row of a batch run.
type BatchItem struct {
	Index          int                 `json:"index"`
	Filename       string              `json:"filename"`
	Status         string              `json:"status"`
	Error          string              `json:"error,omitempty"`
	DocumentType   models.DocumentKind `json:"document_type,omitempty"`
	DocumentNumber string              `json:"document_number"`
	VendorName     string              `json:"vendor_name"`
	Date           string              `json:"date"`
	Currency       string              `json:"currency,omitempty"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	Partial        bool                `json:"partial,omitempty"`
}

const (
	BatchStatusProcessed = "Processed"
	BatchStatusFailed    = "Failed"
)

// BatchResult collects every file's outcome in input order.
type BatchResult struct {
	Items       []BatchItem     `json:"items"`
	Total       int             `json:"total"`
	Successful  int             `json:"successful"`
	Failed      int             `json:"failed"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ElapsedMS   int64           `json:"elapsed_ms"`
}

// ProcessBatch extracts every upload as kind (empty for auto-detect) with at
// most Concurrency extractions in flight. A failing file never aborts the
// batch.
func (s *Service) ProcessBatch(ctx context.Context, actor Actor, uploads []Upload, kind models.DocumentKind) (*BatchResult, error) {
	if s.extractor == nil {
		return nil, ErrNoExtractor
	}

	start := time.Now()
	items := make([]BatchItem, len(uploads))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, up := range uploads {
		wg.Add(1)
		go func(i int, up Upload) {
			defer wg.Done()
			item := BatchItem{Index: i, Filename: up.Filename, TotalAmount: decimal.Zero}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				item.Status, item.Error = BatchStatusFailed, ctx.Err().Error()
				items[i] = item
				return
			}
			defer func() { <-sem }()

			x, err := s.extractor.ExtractDocument(ctx, kind, up.Filename, up.Content)
			if err != nil {
				item.Status, item.Error = BatchStatusFailed, err.Error()
				items[i] = item
				return
			}
			item.Status = BatchStatusProcessed
			item.DocumentType = x.Kind
			item.DocumentNumber = x.Record.DocumentNumber
			item.VendorName = x.Record.VendorName
			item.Date = x.Record.Date
			item.Currency = x.Record.Currency
			item.TotalAmount = x.Record.TotalAmount
			item.Partial = x.Partial
			items[i] = item

			s.saveDocument(ctx, actor, uuid.New(), x)
		}(i, up)
	}
	wg.Wait()

	res := &BatchResult{Items: items, Total: len(items), TotalAmount: decimal.Zero}
	delta := store.StatsDelta{}
	for _, it := range items {
		if it.Status != BatchStatusProcessed {
			res.Failed++
			continue
		}
		res.Successful++
		res.TotalAmount = res.TotalAmount.Add(it.TotalAmount)
		d := kindDelta(it.DocumentType, 1)
		delta.Processed += d.Processed
		delta.Invoices += d.Invoices
		delta.POs += d.POs
		delta.Statements += d.Statements
	}
	res.ElapsedMS = time.Since(start).Milliseconds()

	s.record(ctx, actor, "Batch Processing", fmt.Sprintf("%d files", res.Total), "Batch", "Success",
		fmt.Sprintf("%d processed, %d failed", res.Successful, res.Failed))
	if delta.Processed > 0 {
		s.bump(ctx, actor, delta)
	}
	return res, nil
}

// AuditTrail returns the actor's audit entries, newest first.
func (s *Service) AuditTrail(ctx context.Context, actor Actor, limit int) ([]store.AuditEntry, error) {
	if s.audit == nil {
		return nil, store.ErrNotInitialized
	}
	return s.audit.List(ctx, actor.UserID, limit)
}

// Documents returns the actor's processed documents, optionally by kind.
func (s *Service) Documents(ctx context.Context, actor Actor, kind models.DocumentKind, limit int) ([]store.ProcessedDocument, error) {
	if s.docs == nil {
		return nil, store.ErrNotInitialized
	}
	return s.docs.List(ctx, actor.UserID, string(kind), limit)
}

// Reconciliations returns the actor's reconciliation history.
func (s *Service) Reconciliations(ctx context.Context, actor Actor, limit int) ([]store.ReconciliationRecord, error) {
	if s.recons == nil {
		return nil, store.ErrNotInitialized
	}
	return s.recons.List(ctx, actor.UserID, limit)
}

// Stats returns the actor's running totals.
func (s *Service) Stats(ctx context.Context, actor Actor) (*store.UserStats, error) {
	if s.stats == nil {
		return nil, store.ErrNotInitialized
	}
	return s.stats.Get(ctx, actor.UserID)
}

// StartSession opens a working session for the actor.
func (s *Service) StartSession(ctx context.Context, actor Actor) (uuid.UUID, error) {
	if s.sessions == nil {
		return uuid.Nil, store.ErrNotInitialized
	}
	id, err := s.sessions.Start(ctx, actor.UserID)
	if err != nil {
		return uuid.Nil, err
	}
	s.record(ctx, Actor{UserID: actor.UserID, SessionID: id.String()}, "Session Start", "", "", "Success", "")
	return id, nil
}

// EndSession closes a session opened by StartSession.
func (s *Service) EndSession(ctx context.Context, actor Actor, sessionID uuid.UUID, documentsProcessed int) error {
	if s.sessions == nil {
		return store.ErrNotInitialized
	}
	if err := s.sessions.End(ctx, sessionID, documentsProcessed); err != nil {
		return err
	}
	s.record(ctx, Actor{UserID: actor.UserID, SessionID: sessionID.String()}, "Session End", "", "", "Success",
		fmt.Sprintf("%d documents", documentsProcessed))
	return nil
}

func (s *Service) saveDocument(ctx context.Context, actor Actor, id uuid.UUID, x *ade.Extraction) {
	if s.docs == nil {
		return
	}
	meta, _ := json.Marshal(x.Metadata)
	doc := &store.ProcessedDocument{
		ID:            id,
		UserID:        actor.UserID,
		SessionID:     actor.SessionID,
		FileName:      x.Filename,
		DocType:       string(x.Kind),
		ExtractedData: x.Data,
		Metadata:      meta,
		Status:        "Success",
	}
	if err := s.docs.Save(ctx, doc); err != nil {
		logging.LogError("pipeline", "saveDocument", x.Filename, nil, err)
	}
}

func (s *Service) record(ctx context.Context, actor Actor, action, file, docType, status, details string) {
	if s.audit == nil {
		return
	}
	e := &store.AuditEntry{
		UserID:    actor.UserID,
		SessionID: actor.SessionID,
		Action:    action,
		FileName:  file,
		DocType:   docType,
		Status:    status,
		Details:   details,
	}
	if err := s.audit.Add(ctx, e); err != nil {
		logging.LogError("pipeline", "record", action, file, err)
	}
}

func (s *Service) bump(ctx context.Context, actor Actor, d store.StatsDelta) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Increment(ctx, actor.UserID, d); err != nil {
		logging.LogError("pipeline", "bump", actor.UserID, d, err)
	}
}

func kindDelta(kind models.DocumentKind, n int) store.StatsDelta {
	d := store.StatsDelta{Processed: n}
	switch kind {
	case models.KindInvoice:
		d.Invoices = n
	case models.KindPurchaseOrder:
		d.POs = n
	case models.KindBankStatement:
		d.Statements = n
	}
	return d
}

func detailsFor(x *ade.Extraction) string {
	d := fmt.Sprintf("pages=%d", x.Metadata.PageCount)
	if x.Cached {
		d += " cached"
	}
	if x.Partial {
		d += " partial"
	}
	return d
}

func pairName(invoice, po string) string {
	return invoice + " vs " + po
}

func wrapErr(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}
