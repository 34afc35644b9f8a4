package service

import (
	"context"
	"errors"
	"time"

	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"
	"sqlquest/internal/domain/repository"

	"github.com/google/uuid"
)

// LeaderboardService maintains the per-partition score standings. Score
// deltas land immediately; ranks are only refreshed by an explicit
// RecomputeRanks pass and may lag in between.
type LeaderboardService struct {
	leaderboardRepo repository.LeaderboardRepository
}

func NewLeaderboardService(leaderboardRepo repository.LeaderboardRepository) *LeaderboardService {
	return &LeaderboardService{leaderboardRepo: leaderboardRepo}
}

// ApplyScoreDelta adds delta to the user's entry in one (type, window)
// partition, creating the entry on first contact. The stored rank is left
// untouched and goes stale until the next ranking pass.
func (s *LeaderboardService) ApplyScoreDelta(ctx context.Context, userID string, boardType model.LeaderboardType, periodStart, periodEnd *time.Time, delta int) (*model.LeaderboardEntry, error) {
	entry, err := s.leaderboardRepo.FindEntry(ctx, userID, boardType, periodStart, periodEnd)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("failed to look up leaderboard entry: %w", err)
		}
		entry = &model.LeaderboardEntry{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        boardType,
			Score:       delta,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		}
		if err := s.leaderboardRepo.CreateEntry(ctx, entry); err != nil {
			return nil, common.Errorf("failed to create leaderboard entry: %w", err)
		}
		return entry, nil
	}

	if err := s.leaderboardRepo.AddScore(ctx, entry.ID, delta); err != nil {
		return nil, common.Errorf("failed to add score delta: %w", err)
	}
	entry.Score += delta
	return entry, nil
}

// RecomputeRanks reassigns dense ranks across one partition: tied scores
// share a rank, and each strictly lower score takes exactly the next rank
// number however many entries were tied above it. Only rows whose rank
// actually changed are written back; the count of those rows is returned.
func (s *LeaderboardService) RecomputeRanks(ctx context.Context, boardType model.LeaderboardType, periodStart, periodEnd *time.Time) (int, error) {
	entries, err := s.leaderboardRepo.ListPartition(ctx, boardType, periodStart, periodEnd)
	if err != nil {
		return 0, common.Errorf("failed to load leaderboard partition: %w", err)
	}

	currentRank := 1
	var previousScore *int
	var changed []model.LeaderboardEntry

	for i := range entries {
		entry := &entries[i]
		if previousScore != nil && entry.Score < *previousScore {
			currentRank++
		}
		if entry.Rank == nil || *entry.Rank != currentRank {
			rank := currentRank
			entry.Rank = &rank
			changed = append(changed, *entry)
		}
		score := entry.Score
		previousScore = &score
	}

	if err := s.leaderboardRepo.UpdateRanks(ctx, changed); err != nil {
		return 0, common.Errorf("failed to write updated ranks: %w", err)
	}
	return len(changed), nil
}

// GetLeaderboard returns one partition's entries with user display data,
// best ranked first.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, boardType model.LeaderboardType, periodStart, periodEnd *time.Time, limit int) ([]model.LeaderboardEntry, error) {
	return s.leaderboardRepo.ListPartitionWithUsers(ctx, boardType, periodStart, periodEnd, limit)
}

// UserRanking is one user's standing across every board type.
type UserRanking struct {
	GlobalRank   *int `json:"global_rank"`
	GlobalScore  *int `json:"global_score"`
	DailyRank    *int `json:"daily_rank"`
	DailyScore   *int `json:"daily_score"`
	WeeklyRank   *int `json:"weekly_rank"`
	WeeklyScore  *int `json:"weekly_score"`
	MonthlyRank  *int `json:"monthly_rank"`
	MonthlyScore *int `json:"monthly_score"`
	TotalPlayers int  `json:"total_players"`
}

// GetUserRanking collects the caller's rank and score on the global board and
// the windows containing now.
func (s *LeaderboardService) GetUserRanking(ctx context.Context, userID string) (*UserRanking, error) {
	ranking := &UserRanking{}
	now := time.Now().UTC()

	for _, boardType := range []model.LeaderboardType{
		model.LeaderboardGlobal, model.LeaderboardDaily, model.LeaderboardWeekly, model.LeaderboardMonthly,
	} {
		periodStart, periodEnd := model.WindowFor(boardType, now)
		entry, err := s.leaderboardRepo.FindEntry(ctx, userID, boardType, periodStart, periodEnd)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			return nil, common.Errorf("failed to load %s entry: %w", boardType, err)
		}
		score := entry.Score
		switch boardType {
		case model.LeaderboardGlobal:
			ranking.GlobalRank, ranking.GlobalScore = entry.Rank, &score
		case model.LeaderboardDaily:
			ranking.DailyRank, ranking.DailyScore = entry.Rank, &score
		case model.LeaderboardWeekly:
			ranking.WeeklyRank, ranking.WeeklyScore = entry.Rank, &score
		case model.LeaderboardMonthly:
			ranking.MonthlyRank, ranking.MonthlyScore = entry.Rank, &score
		}
	}

	total, err := s.leaderboardRepo.CountActivePlayers(ctx)
	if err != nil {
		return nil, common.Errorf("failed to count players: %w", err)
	}
	ranking.TotalPlayers = total
	return ranking, nil
}
