package audit

import (
	"encoding/json"
	"net/http"

	"docsamajh/pkg/api/web"
	"docsamajh/pkg/core/export"
	"docsamajh/pkg/core/logging"
	"docsamajh/pkg/core/pipeline"

	"github.com/google/uuid"
)

// EndSessionRequest closes a session opened with POST /api/sessions.
type EndSessionRequest struct {
	SessionID          string `json:"session_id"`
	DocumentsProcessed int    `json:"documents_processed"`
}

// Handler exposes the audit trail, per-user counters and sessions.
type Handler struct {
	Svc *pipeline.Service
}

func NewHandler(svc *pipeline.Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "GET") || !web.Allow(w, r, http.MethodGet) {
		return
	}
	format, err := web.Format(r, "json", "json", "csv")
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	entries, err := h.Svc.AuditTrail(r.Context(), web.ActorFrom(r), web.Limit(r, 100))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}

	if format == "csv" {
		web.Attachment(w, export.ContentTypeCSV, "audit_trail.csv")
		if err := export.WriteAuditCSV(w, entries); err != nil {
			logging.LogError("audit", "HandleAudit", "csv", len(entries), err)
		}
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "GET") || !web.Allow(w, r, http.MethodGet) {
		return
	}
	stats, err := h.Svc.Stats(r.Context(), web.ActorFrom(r))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, stats)
}

// HandleSessionStart opens a session. Clients send the returned ID back in
// the X-Session-ID header.
func (h *Handler) HandleSessionStart(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "POST") || !web.Allow(w, r, http.MethodPost) {
		return
	}
	id, err := h.Svc.StartSession(r.Context(), web.ActorFrom(r))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, map[string]string{"session_id": id.String()})
}

func (h *Handler) HandleSessionEnd(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "POST") || !web.Allow(w, r, http.MethodPost) {
		return
	}
	var req EndSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.WriteError(w, r, web.Invalid("invalid request body: %v", err))
		return
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		web.WriteError(w, r, web.Invalid("invalid session_id %q", req.SessionID))
		return
	}
	if err := h.Svc.EndSession(r.Context(), web.ActorFrom(r), id, req.DocumentsProcessed); err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]string{"session_id": id.String(), "status": "ended"})
}
