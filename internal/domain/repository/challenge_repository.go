package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ChallengeRepository interface {
	Create(ctx context.Context, tx *sql.Tx, challenge *model.Challenge) error
	Update(ctx context.Context, tx *sql.Tx, challenge *model.Challenge) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Challenge, error)
	FindByLevel(ctx context.Context, levelNumber int) (*model.Challenge, error)
	List(ctx context.Context, limit, offset int, difficulty model.DifficultyLevel, challengeType model.ChallengeType) ([]model.Challenge, int, error)
}

type pgChallengeRepository struct {
	db *sql.DB
}

func NewPgChallengeRepository(db *sql.DB) ChallengeRepository {
	return &pgChallengeRepository{db: db}
}

const challengeColumns = `id, level_number, title, slug, description, difficulty, challenge_type,
	initial_code, reference_solution, schema_script, time_limit_seconds, max_attempts,
	xp_reward, performance_threshold_ms, created_at, updated_at`

func (r *pgChallengeRepository) Create(ctx context.Context, tx *sql.Tx, c *model.Challenge) error {
	query := `INSERT INTO challenges (id, level_number, title, slug, description, difficulty, challenge_type,
	            initial_code, reference_solution, schema_script, time_limit_seconds, max_attempts,
	            xp_reward, performance_threshold_ms)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, c.ID, c.LevelNumber, c.Title, c.Slug, c.Description, c.Difficulty, c.Type,
			c.InitialCode, c.ReferenceSolution, c.SchemaScript, c.TimeLimitSeconds, c.MaxAttempts, c.XPReward, c.PerformanceThresholdMs)
	} else {
		_, err = r.db.ExecContext(ctx, query, c.ID, c.LevelNumber, c.Title, c.Slug, c.Description, c.Difficulty, c.Type,
			c.InitialCode, c.ReferenceSolution, c.SchemaScript, c.TimeLimitSeconds, c.MaxAttempts, c.XPReward, c.PerformanceThresholdMs)
	}

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug or level
			return fmt.Errorf("challenge with this slug or level already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgChallengeRepository.Create: %w", err)
	}
	return nil
}

func (r *pgChallengeRepository) Update(ctx context.Context, tx *sql.Tx, c *model.Challenge) error {
	query := `UPDATE challenges SET
	            level_number = $1, title = $2, slug = $3, description = $4, difficulty = $5,
	            challenge_type = $6, initial_code = $7, reference_solution = $8, schema_script = $9,
	            time_limit_seconds = $10, max_attempts = $11, xp_reward = $12,
	            performance_threshold_ms = $13, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $14`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, c.LevelNumber, c.Title, c.Slug, c.Description, c.Difficulty, c.Type,
			c.InitialCode, c.ReferenceSolution, c.SchemaScript, c.TimeLimitSeconds, c.MaxAttempts, c.XPReward, c.PerformanceThresholdMs, c.ID)
	} else {
		_, err = r.db.ExecContext(ctx, query, c.LevelNumber, c.Title, c.Slug, c.Description, c.Difficulty, c.Type,
			c.InitialCode, c.ReferenceSolution, c.SchemaScript, c.TimeLimitSeconds, c.MaxAttempts, c.XPReward, c.PerformanceThresholdMs, c.ID)
	}
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.Update: %w", err)
	}
	return nil
}

func (r *pgChallengeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgChallengeRepository) FindByID(ctx context.Context, id string) (*model.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "FindByID")
}

func (r *pgChallengeRepository) FindByLevel(ctx context.Context, levelNumber int) (*model.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE level_number = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, levelNumber), "FindByLevel")
}

func (r *pgChallengeRepository) scanOne(row *sql.Row, method string) (*model.Challenge, error) {
	c := &model.Challenge{}
	err := row.Scan(
		&c.ID, &c.LevelNumber, &c.Title, &c.Slug, &c.Description, &c.Difficulty, &c.Type,
		&c.InitialCode, &c.ReferenceSolution, &c.SchemaScript, &c.TimeLimitSeconds, &c.MaxAttempts,
		&c.XPReward, &c.PerformanceThresholdMs, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgChallengeRepository.%s: %w", method, err)
	}
	return c, nil
}

func (r *pgChallengeRepository) List(ctx context.Context, limit, offset int, difficulty model.DifficultyLevel, challengeType model.ChallengeType) ([]model.Challenge, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("difficulty = $%d", argID))
		args = append(args, difficulty)
		argID++
	}
	if challengeType != "" {
		conditions = append(conditions, fmt.Sprintf("challenge_type = $%d", argID))
		args = append(args, challengeType)
		argID++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM challenges"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgChallengeRepository.List count: %w", err)
	}

	query := fmt.Sprintf("SELECT "+challengeColumns+" FROM challenges%s ORDER BY level_number ASC LIMIT $%d OFFSET $%d",
		whereClause, argID, argID+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgChallengeRepository.List query: %w", err)
	}
	defer rows.Close()

	challenges := []model.Challenge{}
	for rows.Next() {
		var c model.Challenge
		if err := rows.Scan(
			&c.ID, &c.LevelNumber, &c.Title, &c.Slug, &c.Description, &c.Difficulty, &c.Type,
			&c.InitialCode, &c.ReferenceSolution, &c.SchemaScript, &c.TimeLimitSeconds, &c.MaxAttempts,
			&c.XPReward, &c.PerformanceThresholdMs, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("pgChallengeRepository.List scan: %w", err)
		}
		challenges = append(challenges, c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgChallengeRepository.List rows.Err: %w", err)
	}

	return challenges, total, nil
}
