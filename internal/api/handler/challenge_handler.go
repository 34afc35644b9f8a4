package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"sqlquest/internal/api/middleware"
	"sqlquest/internal/app/service"
	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type ChallengeHandler struct {
	challengeService *service.ChallengeService
}

func NewChallengeHandler(cs *service.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: cs}
}

func (h *ChallengeHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/", h.listChallenges)                    // GET /api/v1/challenges
	r.Get("/{challengeID}", h.getChallenge)         // GET /api/v1/challenges/{id}
	r.Get("/level/{levelNumber}", h.getByLevel)     // GET /api/v1/challenges/level/42

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/", h.createChallenge)
		adminRouter.Put("/{challengeID}", h.updateChallenge)
		adminRouter.Delete("/{challengeID}", h.deleteChallenge)
	})
}

func (h *ChallengeHandler) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req service.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	challenge, err := h.challengeService.CreateChallenge(r.Context(), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, challenge)
}

func (h *ChallengeHandler) updateChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID := chi.URLParam(r, "challengeID")

	var req service.UpdateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	challenge, err := h.challengeService.UpdateChallenge(r.Context(), challengeID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, challenge)
}

func (h *ChallengeHandler) deleteChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID := chi.URLParam(r, "challengeID")
	if err := h.challengeService.DeleteChallenge(r.Context(), challengeID); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *ChallengeHandler) listChallenges(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	difficulty := model.DifficultyLevel(r.URL.Query().Get("difficulty"))
	challengeType := model.ChallengeType(r.URL.Query().Get("type"))
	userRole, _ := middleware.GetUserRoleFromContext(r.Context())

	challenges, total, err := h.challengeService.ListChallenges(r.Context(), page, pageSize, difficulty, challengeType, userRole)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	type PaginatedChallengesResponse struct {
		Challenges []model.Challenge `json:"challenges"`
		Total      int               `json:"total"`
		Page       int               `json:"page"`
		PageSize   int               `json:"page_size"`
	}
	common.RespondWithJSON(w, http.StatusOK, PaginatedChallengesResponse{
		Challenges: challenges,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
	})
}

func (h *ChallengeHandler) getChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID := chi.URLParam(r, "challengeID")
	h.respondWithChallenge(w, r, func() (*model.Challenge, error) {
		return h.challengeService.GetChallenge(r.Context(), challengeID)
	})
}

func (h *ChallengeHandler) getByLevel(w http.ResponseWriter, r *http.Request) {
	levelNumber, err := strconv.Atoi(chi.URLParam(r, "levelNumber"))
	if err != nil || levelNumber <= 0 {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid level number")
		return
	}
	h.respondWithChallenge(w, r, func() (*model.Challenge, error) {
		return h.challengeService.GetChallengeByLevel(r.Context(), levelNumber)
	})
}

func (h *ChallengeHandler) respondWithChallenge(w http.ResponseWriter, r *http.Request, fetch func() (*model.Challenge, error)) {
	challenge, err := fetch()
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	if userRole, _ := middleware.GetUserRoleFromContext(r.Context()); userRole != model.RoleAdmin {
		challenge.ReferenceSolution = ""
		challenge.SchemaScript = ""
	}
	common.RespondWithJSON(w, http.StatusOK, challenge)
}
