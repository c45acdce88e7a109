// Package api wires the HTTP handlers onto a mux.
package api

import (
	"net/http"

	"docsamajh/pkg/api/audit"
	"docsamajh/pkg/api/config"
	"docsamajh/pkg/api/documents"
	"docsamajh/pkg/api/reconcile"
	"docsamajh/pkg/api/web"
	"docsamajh/pkg/core/agent"
	"docsamajh/pkg/core/pipeline"
)

// NewRouter registers every endpoint. agentMgr may be nil, in which case
// the config endpoints are not mounted.
func NewRouter(svc *pipeline.Service, agentMgr *agent.Manager) *http.ServeMux {
	mux := http.NewServeMux()

	docHandler := documents.NewHandler(svc)
	mux.HandleFunc("/api/documents/process", docHandler.HandleProcess)
	mux.HandleFunc("/api/documents", docHandler.HandleList)
	mux.HandleFunc("/api/batch", docHandler.HandleBatch)

	recHandler := reconcile.NewHandler(svc)
	mux.HandleFunc("/api/reconcile", recHandler.HandleUploads)
	mux.HandleFunc("/api/reconcile/records", recHandler.HandleRecords)
	mux.HandleFunc("/api/reconciliations", recHandler.HandleHistory)

	auditHandler := audit.NewHandler(svc)
	mux.HandleFunc("/api/audit", auditHandler.HandleAudit)
	mux.HandleFunc("/api/stats", auditHandler.HandleStats)
	mux.HandleFunc("/api/sessions", auditHandler.HandleSessionStart)
	mux.HandleFunc("/api/sessions/end", auditHandler.HandleSessionEnd)

	if agentMgr != nil {
		configHandler := config.NewHandler(agentMgr, svc.Policy())
		mux.HandleFunc("/api/config", configHandler.HandleConfig)
		mux.HandleFunc("/api/config/switch", configHandler.HandleSwitch)
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		web.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}
