package reconcile

import (
	"encoding/json"
	"net/http"

	"docsamajh/pkg/api/web"
	"docsamajh/pkg/core/export"
	"docsamajh/pkg/core/logging"
	"docsamajh/pkg/core/pipeline"
	core "docsamajh/pkg/core/reconcile"
	"docsamajh/pkg/models"

	"github.com/go-playground/validator/v10"
)

// RecordPair is one invoice and purchase order, already extracted.
type RecordPair struct {
	Invoice       *models.DocumentRecord `json:"invoice" validate:"required"`
	PurchaseOrder *models.DocumentRecord `json:"purchase_order" validate:"required"`
}

// RecordsRequest carries either a single pair or a list of pairs.
type RecordsRequest struct {
	RecordPair
	Pairs []RecordPair `json:"pairs"`
}

type Handler struct {
	Svc      *pipeline.Service
	validate *validator.Validate
}

func NewHandler(svc *pipeline.Service) *Handler {
	return &Handler{Svc: svc, validate: validator.New()}
}

// HandleUploads reconciles an invoice PDF (field "invoice") against a
// purchase order PDF (field "po").
func (h *Handler) HandleUploads(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "POST") || !web.Allow(w, r, http.MethodPost) {
		return
	}
	if err := web.ParseMultipart(w, r); err != nil {
		web.WriteError(w, r, err)
		return
	}
	invoice, err := web.FormPDF(r, "invoice")
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	po, err := web.FormPDF(r, "po")
	if err != nil {
		web.WriteError(w, r, err)
		return
	}

	res, err := h.Svc.ReconcileUploads(r.Context(), web.ActorFrom(r), invoice, po)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, res)
}

// HandleRecords reconciles JSON records. A body with "pairs" returns a list;
// ?format=csv|xlsx downloads the reports.
func (h *Handler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "POST") || !web.Allow(w, r, http.MethodPost) {
		return
	}
	format, err := web.Format(r, "json", "json", "csv", "xlsx")
	if err != nil {
		web.WriteError(w, r, err)
		return
	}

	var req RecordsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, web.MaxUploadBytes)).Decode(&req); err != nil {
		web.WriteError(w, r, web.Invalid("invalid request body: %v", err))
		return
	}
	single := len(req.Pairs) == 0
	pairs := req.Pairs
	if single {
		pairs = []RecordPair{req.RecordPair}
	}
	for i := range pairs {
		if err := h.validate.Struct(pairs[i]); err != nil {
			web.WriteError(w, r, web.Invalid("pair %d: %v", i, err))
			return
		}
	}

	actor := web.ActorFrom(r)
	results := make([]*pipeline.ReconciliationResult, 0, len(pairs))
	reports := make([]core.Report, 0, len(pairs))
	for _, p := range pairs {
		res, err := h.Svc.ReconcileRecords(r.Context(), actor, *p.Invoice, *p.PurchaseOrder)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}
		results = append(results, res)
		reports = append(reports, res.Report)
	}

	switch format {
	case "csv":
		web.Attachment(w, export.ContentTypeCSV, "reconciliation_report.csv")
		err = export.WriteReportsCSV(w, reports)
	case "xlsx":
		web.Attachment(w, export.ContentTypeXLSX, "reconciliation_report.xlsx")
		err = export.WriteReportsXLSX(w, reports)
	default:
		if single {
			web.WriteJSON(w, http.StatusOK, results[0])
		} else {
			web.WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
		}
	}
	if err != nil {
		logging.LogError("reconcile", "HandleRecords", format, len(reports), err)
	}
}

// HandleHistory lists the caller's past reconciliations.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "GET") || !web.Allow(w, r, http.MethodGet) {
		return
	}
	recs, err := h.Svc.Reconciliations(r.Context(), web.ActorFrom(r), web.Limit(r, 50))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]interface{}{"reconciliations": recs, "count": len(recs)})
}
