package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"
)

type ProgressRepository interface {
	Find(ctx context.Context, userID, challengeID string) (*model.UserProgress, error)
	Create(ctx context.Context, progress *model.UserProgress) error
	Update(ctx context.Context, progress *model.UserProgress) error
	ListByUser(ctx context.Context, userID string, completedOnly bool) ([]model.UserProgress, error)
}

type pgProgressRepository struct {
	db *sql.DB
}

func NewPgProgressRepository(db *sql.DB) ProgressRepository {
	return &pgProgressRepository{db: db}
}

const progressColumns = `id, user_id, challenge_id, is_completed, attempts_count,
	best_execution_time_ms, last_submitted_solution, hints_used, score, stars,
	first_attempted_at, last_attempted_at, completed_at`

func (r *pgProgressRepository) Find(ctx context.Context, userID, challengeID string) (*model.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 AND challenge_id = $2`
	p := &model.UserProgress{}
	err := r.db.QueryRowContext(ctx, query, userID, challengeID).Scan(
		&p.ID, &p.UserID, &p.ChallengeID, &p.IsCompleted, &p.AttemptsCount,
		&p.BestExecutionTimeMs, &p.LastSubmittedSolution, &p.HintsUsed, &p.Score, &p.Stars,
		&p.FirstAttemptedAt, &p.LastAttemptedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProgressRepository.Find: %w", err)
	}
	return p, nil
}

func (r *pgProgressRepository) Create(ctx context.Context, p *model.UserProgress) error {
	query := `INSERT INTO user_progress (id, user_id, challenge_id, is_completed, attempts_count,
	            best_execution_time_ms, last_submitted_solution, hints_used, score, stars,
	            first_attempted_at, last_attempted_at, completed_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.ChallengeID, p.IsCompleted, p.AttemptsCount,
		p.BestExecutionTimeMs, p.LastSubmittedSolution, p.HintsUsed, p.Score, p.Stars,
		p.FirstAttemptedAt, p.LastAttemptedAt, p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("pgProgressRepository.Create: %w", err)
	}
	return nil
}

func (r *pgProgressRepository) Update(ctx context.Context, p *model.UserProgress) error {
	query := `UPDATE user_progress SET
	            is_completed = $1, attempts_count = $2, best_execution_time_ms = $3,
	            last_submitted_solution = $4, hints_used = $5, score = $6, stars = $7,
	            last_attempted_at = $8, completed_at = $9
	          WHERE id = $10`
	_, err := r.db.ExecContext(ctx, query,
		p.IsCompleted, p.AttemptsCount, p.BestExecutionTimeMs,
		p.LastSubmittedSolution, p.HintsUsed, p.Score, p.Stars,
		p.LastAttemptedAt, p.CompletedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("pgProgressRepository.Update: %w", err)
	}
	return nil
}

func (r *pgProgressRepository) ListByUser(ctx context.Context, userID string, completedOnly bool) ([]model.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1`
	if completedOnly {
		query += ` AND is_completed = TRUE`
	}
	query += ` ORDER BY last_attempted_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListByUser query: %w", err)
	}
	defer rows.Close()

	progress := []model.UserProgress{}
	for rows.Next() {
		var p model.UserProgress
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.ChallengeID, &p.IsCompleted, &p.AttemptsCount,
			&p.BestExecutionTimeMs, &p.LastSubmittedSolution, &p.HintsUsed, &p.Score, &p.Stars,
			&p.FirstAttemptedAt, &p.LastAttemptedAt, &p.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("pgProgressRepository.ListByUser scan: %w", err)
		}
		progress = append(progress, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListByUser rows.Err: %w", err)
	}
	return progress, nil
}
