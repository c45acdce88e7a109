package documents

import (
	"net/http"

	"docsamajh/pkg/api/web"
	"docsamajh/pkg/core/export"
	"docsamajh/pkg/core/logging"
	"docsamajh/pkg/core/pipeline"
	"docsamajh/pkg/core/utils"
	"docsamajh/pkg/models"
)

// ProcessResponse adds an optional HTML rendering of the parsed document.
type ProcessResponse struct {
	*pipeline.DocumentResult
	HTML string `json:"html,omitempty"`
}

// Handler serves single-document, batch and history endpoints.
type Handler struct {
	Svc *pipeline.Service
}

func NewHandler(svc *pipeline.Service) *Handler {
	return &Handler{Svc: svc}
}

// HandleProcess extracts one uploaded PDF (form field "file"). The "type"
// field picks the schema; empty means auto-detect.
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "POST") || !web.Allow(w, r, http.MethodPost) {
		return
	}
	if err := web.ParseMultipart(w, r); err != nil {
		web.WriteError(w, r, err)
		return
	}
	up, err := web.FormPDF(r, "file")
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	kind, err := web.Kind(r.FormValue("type"), "")
	if err != nil {
		web.WriteError(w, r, err)
		return
	}

	res, err := h.Svc.ProcessDocument(r.Context(), web.ActorFrom(r), up, kind)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}

	resp := ProcessResponse{DocumentResult: res}
	if r.FormValue("html") == "1" {
		html, err := utils.RenderHTML(res.Extraction.Markdown)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}
		resp.HTML = html
	}
	web.WriteJSON(w, http.StatusOK, resp)
}

// HandleBatch extracts every PDF under form field "files". Documents are
// treated as invoices unless "type" says otherwise. ?format=csv|xlsx
// downloads the summary instead of JSON.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "POST") || !web.Allow(w, r, http.MethodPost) {
		return
	}
	format, err := web.Format(r, "json", "json", "csv", "xlsx")
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	if err := web.ParseMultipart(w, r); err != nil {
		web.WriteError(w, r, err)
		return
	}
	uploads, err := web.FormPDFs(r, "files")
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	kind, err := web.Kind(r.FormValue("type"), models.KindInvoice)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}

	res, err := h.Svc.ProcessBatch(r.Context(), web.ActorFrom(r), uploads, kind)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}

	switch format {
	case "csv":
		web.Attachment(w, export.ContentTypeCSV, "batch_results.csv")
		err = export.WriteBatchCSV(w, res)
	case "xlsx":
		web.Attachment(w, export.ContentTypeXLSX, "batch_results.xlsx")
		err = export.WriteBatchXLSX(w, res)
	default:
		web.WriteJSON(w, http.StatusOK, res)
	}
	if err != nil {
		logging.LogError("documents", "HandleBatch", format, len(uploads), err)
	}
}

// HandleList returns the caller's processed documents.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "GET") || !web.Allow(w, r, http.MethodGet) {
		return
	}
	kind, err := web.Kind(r.URL.Query().Get("type"), "")
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	docs, err := h.Svc.Documents(r.Context(), web.ActorFrom(r), kind, web.Limit(r, 50))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}
