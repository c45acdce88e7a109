package config

import (
	"encoding/json"
	"net/http"

	"docsamajh/pkg/api/web"
	"docsamajh/pkg/core/agent"
	"docsamajh/pkg/core/reconcile"
)

type Response struct {
	ActiveProvider string                       `json:"active_provider"`
	Available      []string                     `json:"available"`
	Agents         map[string]agent.AgentConfig `json:"agents"`
	Policy         reconcile.Policy             `json:"reconciliation"`
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	AgentMgr *agent.Manager
	Policy   reconcile.Policy
}

// NewHandler creates a new config handler
func NewHandler(agentMgr *agent.Manager, policy reconcile.Policy) *Handler {
	return &Handler{
		AgentMgr: agentMgr,
		Policy:   policy,
	}
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "GET") || !web.Allow(w, r, http.MethodGet) {
		return
	}

	snap := h.AgentMgr.Snapshot()
	web.WriteJSON(w, http.StatusOK, Response{
		ActiveProvider: snap.ActiveProvider,
		Available:      h.AgentMgr.ProviderNames(),
		Agents:         snap.Agents,
		Policy:         h.Policy,
	})
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	if web.CORS(w, r, "POST") || !web.Allow(w, r, http.MethodPost) {
		return
	}

	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.AgentMgr.SetGlobalProvider(req.Provider); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]string{"active_provider": req.Provider})
}
