package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"aquora-hydration-api/internal/model"
	"aquora-hydration-api/internal/service"
	"aquora-hydration-api/pkg/apierror"
	"aquora-hydration-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// HydrationHandler handles intake and goal HTTP requests.
type HydrationHandler struct {
	reconciler *service.Reconciler
}

// NewHydrationHandler creates a new hydration handler.
func NewHydrationHandler(reconciler *service.Reconciler) *HydrationHandler {
	return &HydrationHandler{reconciler: reconciler}
}

// GetHydration handles GET /api/v1/users/{user_id}/hydration
func (h *HydrationHandler) GetHydration(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		response.Error(w, apierror.BadRequest("user_id is required"))
		return
	}

	view, err := h.reconciler.Refresh(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.JSONWithNotice(w, http.StatusOK, view, view.Notice)
}

// AddIntake handles POST /api/v1/users/{user_id}/intake
func (h *HydrationHandler) AddIntake(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		response.Error(w, apierror.BadRequest("user_id is required"))
		return
	}

	var req struct {
		AmountMl int    `json:"amount_ml"`
		Source   string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	view, err := h.reconciler.AddEntry(r.Context(), userID, req.AmountMl, model.ParseSource(req.Source))
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			response.Error(w, apierror.ValidationError(err.Error(),
				apierror.FieldError{Field: "amount_ml", Message: "must be positive"}))
			return
		}
		response.Error(w, err)
		return
	}

	response.JSONWithNotice(w, http.StatusCreated, view, view.Notice)
}

// UpdateQueuedIntake handles PUT /api/v1/users/{user_id}/intake/queued/{local_id}
func (h *HydrationHandler) UpdateQueuedIntake(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	localID := chi.URLParam(r, "local_id")
	if userID == "" || localID == "" {
		response.Error(w, apierror.BadRequest("user_id and local_id are required"))
		return
	}

	var req struct {
		AmountMl int `json:"amount_ml"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	if err := h.reconciler.UpdateQueuedAmount(r.Context(), userID, localID, req.AmountMl); err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			response.Error(w, apierror.ValidationError(err.Error(),
				apierror.FieldError{Field: "amount_ml", Message: "must be positive"}))
			return
		}
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]interface{}{"local_id": localID, "amount_ml": req.AmountMl})
}

// SetGoal handles PUT /api/v1/users/{user_id}/goal
func (h *HydrationHandler) SetGoal(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		response.Error(w, apierror.BadRequest("user_id is required"))
		return
	}

	var req struct {
		GoalMl int `json:"goal_ml"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	notice, err := h.reconciler.SetGoal(r.Context(), userID, req.GoalMl)
	if err != nil {
		if errors.Is(err, service.ErrInvalidGoal) {
			response.Error(w, apierror.ValidationError(err.Error(),
				apierror.FieldError{Field: "goal_ml", Message: "must not be negative"}))
			return
		}
		response.Error(w, err)
		return
	}

	response.JSONWithNotice(w, http.StatusOK, map[string]interface{}{"goal_ml": req.GoalMl}, notice)
}

// FlushQueue handles POST /api/v1/users/{user_id}/sync/flush
func (h *HydrationHandler) FlushQueue(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		response.Error(w, apierror.BadRequest("user_id is required"))
		return
	}

	if err := h.reconciler.FlushQueue(r.Context(), userID); err != nil {
		// Queue left intact; caller retries later.
		response.Error(w, apierror.ServiceUnavailable("Sync failed, queued entries kept. Retry later."))
		return
	}

	response.OK(w, map[string]interface{}{"flushed": true})
}
