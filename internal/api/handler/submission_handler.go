package handler

import (
	"encoding/json"
	"net/http"

	"sqlquest/internal/api/middleware"
	"sqlquest/internal/app/service"
	"sqlquest/internal/common"

	"github.com/go-chi/chi/v5"
)

type SubmissionHandler struct {
	evaluationService *service.EvaluationService
	progressService   *service.ProgressService
}

func NewSubmissionHandler(es *service.EvaluationService, ps *service.ProgressService) *SubmissionHandler {
	return &SubmissionHandler{evaluationService: es, progressService: ps}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator) // All submission routes require auth
	r.Post("/", h.submitQuery)
	r.Get("/progress", h.listProgress)
}

// submitQuery evaluates synchronously; incorrect answers and SQL errors are
// 200-shaped results, only a missing challenge is a 404 concern resolved
// inside the result body.
func (h *SubmissionHandler) submitQuery(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.SubmitQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if req.ChallengeID == "" || req.SQLCode == "" {
		common.RespondWithError(w, http.StatusBadRequest, "challenge_id and sql_code are required")
		return
	}

	result, err := h.evaluationService.EvaluateSubmission(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}

func (h *SubmissionHandler) listProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	completedOnly := r.URL.Query().Get("completed") == "true"
	progress, err := h.progressService.ListForUser(r.Context(), userID, completedOnly)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, progress)
}
