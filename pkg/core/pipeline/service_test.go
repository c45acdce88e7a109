package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docsamajh/pkg/core/ade"
	"docsamajh/pkg/core/compliance"
	"docsamajh/pkg/core/prompt"
	"docsamajh/pkg/core/reconcile"
	"docsamajh/pkg/core/store"
	"docsamajh/pkg/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockExtractor struct {
	ExtractDocumentFunc func(ctx context.Context, kind models.DocumentKind, filename string, content []byte) (*ade.Extraction, error)
}

func (m *MockExtractor) ExtractDocument(ctx context.Context, kind models.DocumentKind, filename string, content []byte) (*ade.Extraction, error) {
	return m.ExtractDocumentFunc(ctx, kind, filename, content)
}

type MockAudit struct {
	mu      sync.Mutex
	entries []store.AuditEntry
	AddErr  error
}

func (m *MockAudit) Add(ctx context.Context, e *store.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return m.AddErr
}

func (m *MockAudit) List(ctx context.Context, userID string, limit int) ([]store.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.AuditEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type MockDocuments struct {
	mu    sync.Mutex
	saved []store.ProcessedDocument
}

func (m *MockDocuments) Save(ctx context.Context, d *store.ProcessedDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, *d)
	return nil
}

func (m *MockDocuments) List(ctx context.Context, userID, docType string, limit int) ([]store.ProcessedDocument, error) {
	return m.saved, nil
}

type MockReconciliations struct {
	SaveFunc func(ctx context.Context, rec *store.ReconciliationRecord) error
	saved    []store.ReconciliationRecord
}

func (m *MockReconciliations) Save(ctx context.Context, rec *store.ReconciliationRecord) error {
	m.saved = append(m.saved, *rec)
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, rec)
	}
	return nil
}

func (m *MockReconciliations) List(ctx context.Context, userID string, limit int) ([]store.ReconciliationRecord, error) {
	return m.saved, nil
}

type MockStats struct {
	mu     sync.Mutex
	deltas []store.StatsDelta
}

func (m *MockStats) Increment(ctx context.Context, userID string, d store.StatsDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas = append(m.deltas, d)
	return nil
}

func (m *MockStats) Get(ctx context.Context, userID string) (*store.UserStats, error) {
	return &store.UserStats{UserID: userID}, nil
}

type MockSessions struct {
	started []string
	ended   map[uuid.UUID]int
}

func (m *MockSessions) Start(ctx context.Context, userID string) (uuid.UUID, error) {
	m.started = append(m.started, userID)
	return uuid.New(), nil
}

func (m *MockSessions) End(ctx context.Context, sessionID uuid.UUID, documentsProcessed int) error {
	if m.ended == nil {
		m.ended = make(map[uuid.UUID]int)
	}
	if _, done := m.ended[sessionID]; done {
		return fmt.Errorf("session %s not found or already ended", sessionID)
	}
	m.ended[sessionID] = documentsProcessed
	return nil
}

type MockExecutor struct {
	ExecutePromptFunc func(ctx context.Context, agentType, prompt, systemPrompt string, options map[string]interface{}) (string, error)
}

func (m *MockExecutor) ExecutePrompt(ctx context.Context, agentType, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	return m.ExecutePromptFunc(ctx, agentType, prompt, systemPrompt, options)
}

// --- Fixtures ---

func rec(kind models.DocumentKind, vendor, number string, total int64, items ...models.LineItem) models.DocumentRecord {
	return models.DocumentRecord{
		Kind:           kind,
		VendorName:     vendor,
		DocumentNumber: number,
		Date:           "2024-02-01",
		TotalAmount:    decimal.NewFromInt(total),
		LineItems:      items,
	}
}

func item(desc string, qty, price int64) models.LineItem {
	return models.LineItem{
		Description: desc,
		Quantity:    decimal.NewFromInt(qty),
		UnitPrice:   decimal.NewFromInt(price),
		Amount:      decimal.NewFromInt(qty * price),
	}
}

func extractorFor(docs map[string]models.DocumentRecord) *MockExtractor {
	return &MockExtractor{ExtractDocumentFunc: func(ctx context.Context, kind models.DocumentKind, filename string, content []byte) (*ade.Extraction, error) {
		r, ok := docs[filename]
		if !ok {
			return nil, fmt.Errorf("ADE parse failed (500): %s", filename)
		}
		if kind == "" {
			kind = r.Kind
		}
		r.Kind = kind
		return &ade.Extraction{Filename: filename, Kind: kind, Detected: true, Record: r, Data: []byte(`{}`)}, nil
	}}
}

type harness struct {
	svc    *Service
	audit  *MockAudit
	docs   *MockDocuments
	recons *MockReconciliations
	stats  *MockStats
}

func newHarness(x DocumentExtractor) *harness {
	h := &harness{audit: &MockAudit{}, docs: &MockDocuments{}, recons: &MockReconciliations{}, stats: &MockStats{}}
	h.svc = NewService(Deps{
		Extractor:       x,
		Policy:          reconcile.DefaultPolicy(),
		Audit:           h.audit,
		Documents:       h.docs,
		Reconciliations: h.recons,
		Stats:           h.stats,
		Concurrency:     2,
	})
	return h
}

var alice = Actor{UserID: "alice", SessionID: "s-1"}

// --- Tests ---

func TestReconcileUploads_MatchedPair(t *testing.T) {
	h := newHarness(extractorFor(map[string]models.DocumentRecord{
		"inv.pdf": rec(models.KindInvoice, "Acme Corp", "INV-1", 1000, item("Widget", 10, 100)),
		"po.pdf":  rec(models.KindPurchaseOrder, "ACME CORP ", "PO-1", 1000, item("Widget", 10, 100)),
	}))

	res, err := h.svc.ReconcileUploads(context.Background(), alice,
		Upload{Filename: "inv.pdf", Content: []byte("%PDF")}, Upload{Filename: "po.pdf", Content: []byte("%PDF")})
	require.NoError(t, err)

	assert.True(t, res.Report.Matched)
	assert.Equal(t, reconcile.RiskLow, res.Report.RiskLevel)
	assert.Equal(t, compliance.StatusPass, res.Compliance.Status)
	assert.Equal(t, "INV-1", res.Invoice.Record.DocumentNumber)
	assert.Equal(t, models.KindPurchaseOrder, res.PurchaseOrder.Kind)
	assert.Empty(t, res.Notes)

	require.Len(t, h.recons.saved, 1)
	assert.Equal(t, res.ID, h.recons.saved[0].ID)
	assert.Equal(t, "inv.pdf", h.recons.saved[0].InvoiceFile)
	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, "Reconciliation", h.audit.entries[0].Action)
	assert.Equal(t, "Risk: LOW", h.audit.entries[0].Details)
	assert.Equal(t, []store.StatsDelta{{Processed: 2, Matched: 1}}, h.stats.deltas)
}

func TestReconcileUploads_ExtractionFailure(t *testing.T) {
	h := newHarness(extractorFor(map[string]models.DocumentRecord{
		"inv.pdf": rec(models.KindInvoice, "Acme", "INV-1", 10),
	}))

	_, err := h.svc.ReconcileUploads(context.Background(), alice,
		Upload{Filename: "inv.pdf"}, Upload{Filename: "missing.pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purchase order:")
	assert.Empty(t, h.recons.saved)
	require.Len(t, h.audit.entries, 1)
	assert.True(t, strings.HasPrefix(h.audit.entries[0].Status, "Failed:"))
}

func TestReconcileRecords_FlaggedAndPersistenceFailureIgnored(t *testing.T) {
	h := newHarness(nil)
	h.recons.SaveFunc = func(ctx context.Context, rec *store.ReconciliationRecord) error {
		return errors.New("connection refused")
	}
	h.audit.AddErr = errors.New("connection refused")

	res, err := h.svc.ReconcileRecords(context.Background(), alice,
		rec("", "Acme", "INV-9", 1100), rec("", "Acme", "PO-9", 1000))
	require.NoError(t, err, "persistence failures never fail the result")

	assert.Equal(t, reconcile.RiskHigh, res.Report.RiskLevel)
	assert.Equal(t, "INV-9", res.InvoiceFile)
	assert.Equal(t, []store.StatsDelta{{Processed: 2, Flagged: 1}}, h.stats.deltas)
}

func TestReconcileRecords_WithNarratives(t *testing.T) {
	svc := NewService(Deps{
		Policy:  reconcile.DefaultPolicy(),
		Prompts: prompt.NewRegistry(),
		Executor: &MockExecutor{ExecutePromptFunc: func(ctx context.Context, agentType, p, s string, o map[string]interface{}) (string, error) {
			if agentType == "compliance_auditor" {
				return "", errors.New("timeout")
			}
			return `{"summary":"Totals agree.","recommendation":"Approve","concerns":[]}`, nil
		}},
	})

	res, err := svc.ReconcileRecords(context.Background(), alice,
		rec("", "Acme", "INV-1", 100), rec("", "Acme", "PO-1", 100))
	require.NoError(t, err)
	require.Len(t, res.Notes, 2)
	assert.Equal(t, "Totals agree.", res.Notes[0].Narrative.Summary)
	assert.Equal(t, "Compliance Auditor", res.Notes[1].Agent)
	assert.Contains(t, res.Notes[1].Error, "timeout")
}

func TestProcessDocument_AutoDetectInvoiceRunsCompliance(t *testing.T) {
	h := newHarness(extractorFor(map[string]models.DocumentRecord{
		"a.pdf": rec(models.KindInvoice, "Acme", "", 50),
	}))

	res, err := h.svc.ProcessDocument(context.Background(), alice, Upload{Filename: "a.pdf"}, "")
	require.NoError(t, err)

	assert.Equal(t, models.KindInvoice, res.Extraction.Kind)
	require.NotNil(t, res.Compliance)
	assert.Equal(t, compliance.StatusFail, res.Compliance.Status)
	assert.Contains(t, res.Compliance.CriticalIssues, "Missing required field: invoice_number")

	require.Len(t, h.docs.saved, 1)
	assert.Equal(t, res.ID, h.docs.saved[0].ID)
	assert.Equal(t, "invoice", h.docs.saved[0].DocType)
	assert.Equal(t, []store.StatsDelta{{Processed: 1, Invoices: 1}}, h.stats.deltas)
}

func TestProcessDocument_ExplicitKind(t *testing.T) {
	h := newHarness(extractorFor(map[string]models.DocumentRecord{
		"s.pdf": rec(models.KindBankStatement, "First Bank", "", 0),
	}))

	res, err := h.svc.ProcessDocument(context.Background(), alice, Upload{Filename: "s.pdf"}, models.KindBankStatement)
	require.NoError(t, err)
	assert.Nil(t, res.Compliance)
	assert.Equal(t, "Bank Statement", h.audit.entries[0].DocType)
	assert.Equal(t, []store.StatsDelta{{Processed: 1, Statements: 1}}, h.stats.deltas)
}

func TestProcessDocument_NoExtractor(t *testing.T) {
	_, err := newHarness(nil).svc.ProcessDocument(context.Background(), alice, Upload{}, "")
	assert.ErrorIs(t, err, ErrNoExtractor)
}

func TestProcessBatch_OrderAndBoundedConcurrency(t *testing.T) {
	var inFlight, peak int32
	x := &MockExtractor{ExtractDocumentFunc: func(ctx context.Context, kind models.DocumentKind, filename string, content []byte) (*ade.Extraction, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if strings.HasPrefix(filename, "bad") {
			return nil, errors.New("ADE parse failed (422)")
		}
		r := rec(kind, "Vendor "+filename, "N-"+filename, 100)
		return &ade.Extraction{Filename: filename, Kind: kind, Record: r}, nil
	}}
	h := newHarness(x)

	uploads := []Upload{{Filename: "1.pdf"}, {Filename: "bad.pdf"}, {Filename: "3.pdf"}, {Filename: "4.pdf"}, {Filename: "5.pdf"}}
	res, err := h.svc.ProcessBatch(context.Background(), alice, uploads, models.KindInvoice)
	require.NoError(t, err)

	require.Len(t, res.Items, 5)
	for i, it := range res.Items {
		assert.Equal(t, i, it.Index)
		assert.Equal(t, uploads[i].Filename, it.Filename)
	}
	assert.Equal(t, BatchStatusFailed, res.Items[1].Status)
	assert.Contains(t, res.Items[1].Error, "422")
	assert.Equal(t, "N-3.pdf", res.Items[2].DocumentNumber)
	assert.Equal(t, 4, res.Successful)
	assert.Equal(t, 1, res.Failed)
	assert.True(t, res.TotalAmount.Equal(decimal.NewFromInt(400)))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))

	assert.Len(t, h.docs.saved, 4)
	assert.Equal(t, []store.StatsDelta{{Processed: 4, Invoices: 4}}, h.stats.deltas)
}

func TestProcessBatch_CancelledContext(t *testing.T) {
	block := make(chan struct{})
	x := &MockExtractor{ExtractDocumentFunc: func(ctx context.Context, kind models.DocumentKind, filename string, content []byte) (*ade.Extraction, error) {
		<-block
		return nil, ctx.Err()
	}}
	h := newHarness(x)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	close(block)

	res, err := h.svc.ProcessBatch(ctx, alice, []Upload{{Filename: "a.pdf"}, {Filename: "b.pdf"}, {Filename: "c.pdf"}}, "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Failed)
	assert.Empty(t, h.stats.deltas)
}

func TestQueriesWithoutStores(t *testing.T) {
	svc := NewService(Deps{Policy: reconcile.DefaultPolicy()})
	ctx := context.Background()

	_, err := svc.AuditTrail(ctx, alice, 10)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	_, err = svc.Documents(ctx, alice, "", 10)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	_, err = svc.Reconciliations(ctx, alice, 10)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	_, err = svc.Stats(ctx, alice)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}

func TestSessions(t *testing.T) {
	audit, sessions := &MockAudit{}, &MockSessions{}
	svc := NewService(Deps{Policy: reconcile.DefaultPolicy(), Audit: audit, Sessions: sessions})
	ctx := context.Background()

	id, err := svc.StartSession(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, sessions.started)

	require.NoError(t, svc.EndSession(ctx, alice, id, 3))
	assert.Equal(t, 3, sessions.ended[id])
	assert.Error(t, svc.EndSession(ctx, alice, id, 3), "a session ends once")

	require.Len(t, audit.entries, 2)
	assert.Equal(t, "Session Start", audit.entries[0].Action)
	assert.Equal(t, id.String(), audit.entries[1].SessionID)
	assert.Equal(t, "3 documents", audit.entries[1].Details)

	_, err = NewService(Deps{}).StartSession(ctx, alice)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}
