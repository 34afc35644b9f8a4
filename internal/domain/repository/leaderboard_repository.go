package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"
)

type LeaderboardRepository interface {
	FindEntry(ctx context.Context, userID string, boardType model.LeaderboardType, periodStart, periodEnd *time.Time) (*model.LeaderboardEntry, error)
	CreateEntry(ctx context.Context, entry *model.LeaderboardEntry) error
	AddScore(ctx context.Context, entryID string, delta int) error
	// ListPartition returns every entry of a (type, window) partition ordered
	// by score descending, for a ranking pass.
	ListPartition(ctx context.Context, boardType model.LeaderboardType, periodStart, periodEnd *time.Time) ([]model.LeaderboardEntry, error)
	// UpdateRanks writes back only the given entries' ranks.
	UpdateRanks(ctx context.Context, entries []model.LeaderboardEntry) error
	// ListPartitionWithUsers joins user display data for API reads, best
	// ranked first.
	ListPartitionWithUsers(ctx context.Context, boardType model.LeaderboardType, periodStart, periodEnd *time.Time, limit int) ([]model.LeaderboardEntry, error)
	CountActivePlayers(ctx context.Context) (int, error)
}

type pgLeaderboardRepository struct {
	db *sql.DB
}

func NewPgLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &pgLeaderboardRepository{db: db}
}

func (r *pgLeaderboardRepository) FindEntry(ctx context.Context, userID string, boardType model.LeaderboardType, periodStart, periodEnd *time.Time) (*model.LeaderboardEntry, error) {
	// IS NOT DISTINCT FROM matches NULL bounds for the global board.
	query := `SELECT id, user_id, leaderboard_type, score, rank, period_start, period_end, created_at, updated_at
	          FROM leaderboard_entries
	          WHERE user_id = $1 AND leaderboard_type = $2
	            AND period_start IS NOT DISTINCT FROM $3
	            AND period_end IS NOT DISTINCT FROM $4`
	e := &model.LeaderboardEntry{}
	err := r.db.QueryRowContext(ctx, query, userID, boardType, periodStart, periodEnd).Scan(
		&e.ID, &e.UserID, &e.Type, &e.Score, &e.Rank, &e.PeriodStart, &e.PeriodEnd, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgLeaderboardRepository.FindEntry: %w", err)
	}
	return e, nil
}

func (r *pgLeaderboardRepository) CreateEntry(ctx context.Context, e *model.LeaderboardEntry) error {
	query := `INSERT INTO leaderboard_entries (id, user_id, leaderboard_type, score, rank, period_start, period_end)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, e.Type, e.Score, e.Rank, e.PeriodStart, e.PeriodEnd)
	if err != nil {
		return fmt.Errorf("pgLeaderboardRepository.CreateEntry: %w", err)
	}
	return nil
}

func (r *pgLeaderboardRepository) AddScore(ctx context.Context, entryID string, delta int) error {
	query := `UPDATE leaderboard_entries SET score = score + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, delta, entryID)
	if err != nil {
		return fmt.Errorf("pgLeaderboardRepository.AddScore: %w", err)
	}
	return nil
}

func (r *pgLeaderboardRepository) ListPartition(ctx context.Context, boardType model.LeaderboardType, periodStart, periodEnd *time.Time) ([]model.LeaderboardEntry, error) {
	query := `SELECT id, user_id, leaderboard_type, score, rank, period_start, period_end, created_at, updated_at
	          FROM leaderboard_entries
	          WHERE leaderboard_type = $1
	            AND period_start IS NOT DISTINCT FROM $2
	            AND period_end IS NOT DISTINCT FROM $3
	          ORDER BY score DESC`
	rows, err := r.db.QueryContext(ctx, query, boardType, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("pgLeaderboardRepository.ListPartition query: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Score, &e.Rank, &e.PeriodStart, &e.PeriodEnd, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgLeaderboardRepository.ListPartition scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgLeaderboardRepository.ListPartition rows.Err: %w", err)
	}
	return entries, nil
}

func (r *pgLeaderboardRepository) UpdateRanks(ctx context.Context, entries []model.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgLeaderboardRepository.UpdateRanks begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE leaderboard_entries SET rank = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`)
	if err != nil {
		return fmt.Errorf("pgLeaderboardRepository.UpdateRanks prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Rank, e.ID); err != nil {
			return fmt.Errorf("pgLeaderboardRepository.UpdateRanks exec for entry %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgLeaderboardRepository.UpdateRanks commit: %w", err)
	}
	return nil
}

func (r *pgLeaderboardRepository) ListPartitionWithUsers(ctx context.Context, boardType model.LeaderboardType, periodStart, periodEnd *time.Time, limit int) ([]model.LeaderboardEntry, error) {
	query := `SELECT e.id, e.user_id, e.leaderboard_type, e.score, e.rank, e.period_start, e.period_end,
	                 e.created_at, e.updated_at, u.username, u.display_name
	          FROM leaderboard_entries e
	          JOIN users u ON e.user_id = u.id
	          WHERE e.leaderboard_type = $1
	            AND e.period_start IS NOT DISTINCT FROM $2
	            AND e.period_end IS NOT DISTINCT FROM $3
	            AND u.is_active = TRUE
	          ORDER BY e.rank ASC NULLS LAST, e.score DESC
	          LIMIT $4`
	rows, err := r.db.QueryContext(ctx, query, boardType, periodStart, periodEnd, limit)
	if err != nil {
		return nil, fmt.Errorf("pgLeaderboardRepository.ListPartitionWithUsers query: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Score, &e.Rank, &e.PeriodStart, &e.PeriodEnd,
			&e.CreatedAt, &e.UpdatedAt, &e.Username, &e.DisplayName); err != nil {
			return nil, fmt.Errorf("pgLeaderboardRepository.ListPartitionWithUsers scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgLeaderboardRepository.ListPartitionWithUsers rows.Err: %w", err)
	}
	return entries, nil
}

func (r *pgLeaderboardRepository) CountActivePlayers(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_active = TRUE`).Scan(&total); err != nil {
		return 0, fmt.Errorf("pgLeaderboardRepository.CountActivePlayers: %w", err)
	}
	return total, nil
}
