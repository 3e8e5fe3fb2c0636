package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"aquora-hydration-api/internal/model"
	"aquora-hydration-api/pkg/response"
)

// DispatchRunner runs one reminder dispatch for an intent.
type DispatchRunner interface {
	Run(ctx context.Context, intent model.Intent) (*model.DispatchResult, error)
}

// DispatchHandler handles the scheduled reminder trigger endpoint.
type DispatchHandler struct {
	dispatcher DispatchRunner
}

// NewDispatchHandler creates a new dispatch handler.
func NewDispatchHandler(dispatcher DispatchRunner) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher}
}

// Run handles GET and POST /api/v1/notifications/dispatch. The intent
// comes from the JSON body on POST or the query string on GET; anything
// unrecognized defaults to the goal reminder.
func (h *DispatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("intent")
	if r.Method == http.MethodPost && r.Body != nil {
		var req struct {
			Intent string `json:"intent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Intent != "" {
			raw = req.Intent
		}
	}

	result, err := h.dispatcher.Run(r.Context(), model.ParseIntent(raw))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, result)
}
