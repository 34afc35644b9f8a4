package handler

import (
	"net/http"
	"strconv"
	"time"

	"sqlquest/internal/api/middleware"
	"sqlquest/internal/app/service"
	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
}

func NewLeaderboardHandler(ls *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: ls}
}

func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/me", h.getUserRanking)
	r.Get("/{boardType}", h.getLeaderboard)

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/{boardType}/recompute", h.recomputeRanks)
	})
}

type LeaderboardResponse struct {
	LeaderboardType model.LeaderboardType    `json:"leaderboard_type"`
	PeriodStart     *time.Time               `json:"period_start,omitempty"`
	PeriodEnd       *time.Time               `json:"period_end,omitempty"`
	Entries         []model.LeaderboardEntry `json:"entries"`
}

func (h *LeaderboardHandler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	boardType := model.LeaderboardType(chi.URLParam(r, "boardType"))
	if !boardType.Valid() {
		common.RespondWithError(w, http.StatusBadRequest, "Unknown leaderboard type")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	periodStart, periodEnd := model.WindowFor(boardType, time.Now().UTC())
	entries, err := h.leaderboardService.GetLeaderboard(r.Context(), boardType, periodStart, periodEnd, limit)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, LeaderboardResponse{
		LeaderboardType: boardType,
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		Entries:         entries,
	})
}

func (h *LeaderboardHandler) getUserRanking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	ranking, err := h.leaderboardService.GetUserRanking(r.Context(), userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ranking)
}

func (h *LeaderboardHandler) recomputeRanks(w http.ResponseWriter, r *http.Request) {
	boardType := model.LeaderboardType(chi.URLParam(r, "boardType"))
	if !boardType.Valid() {
		common.RespondWithError(w, http.StatusBadRequest, "Unknown leaderboard type")
		return
	}

	periodStart, periodEnd := model.WindowFor(boardType, time.Now().UTC())
	updated, err := h.leaderboardService.RecomputeRanks(r.Context(), boardType, periodStart, periodEnd)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]int{"updated_entries": updated})
}
