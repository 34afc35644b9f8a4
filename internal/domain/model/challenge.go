package model

import (
	"time"
)

type DifficultyLevel string
type ChallengeType string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
	DifficultyExpert       DifficultyLevel = "expert"

	TypeQueryWriting  ChallengeType = "query_writing"
	TypeOptimization  ChallengeType = "optimization"
	TypeBestPractices ChallengeType = "best_practices"
	TypeBossFight     ChallengeType = "boss_fight" // Multi-step complex challenges
)

// Challenge is an authored exercise: a schema-and-fixture script, a reference
// solution and scoring parameters. Immutable from the evaluator's point of view.
type Challenge struct {
	ID          string          `json:"id"`
	LevelNumber int             `json:"level_number"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Difficulty  DifficultyLevel `json:"difficulty"`
	Type        ChallengeType   `json:"challenge_type"`

	InitialCode       *string `json:"initial_code,omitempty"` // Starting SQL shown to the player
	ReferenceSolution string  `json:"reference_solution,omitempty"`
	// SchemaScript holds the DDL plus fixture INSERTs as one blob, applied
	// verbatim to the ephemeral engine before either query runs.
	SchemaScript string `json:"schema_script,omitempty"`

	TimeLimitSeconds       *int `json:"time_limit_seconds,omitempty"`
	MaxAttempts            *int `json:"max_attempts,omitempty"`
	XPReward               int  `json:"xp_reward"`
	PerformanceThresholdMs *int `json:"performance_threshold_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProgress is the durable per-user-per-challenge record. attempts_count
// only ever grows; score and stars are high-water marks; best_execution_time_ms
// only ever decreases; is_completed never resets to false.
type UserProgress struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	ChallengeID string `json:"challenge_id"`

	IsCompleted           bool     `json:"is_completed"`
	AttemptsCount         int      `json:"attempts_count"`
	BestExecutionTimeMs   *float64 `json:"best_execution_time_ms,omitempty"`
	LastSubmittedSolution *string  `json:"last_submitted_solution,omitempty"`
	HintsUsed             int      `json:"hints_used"`

	Score int `json:"score"`
	Stars int `json:"stars"` // 0-3

	FirstAttemptedAt time.Time  `json:"first_attempted_at"`
	LastAttemptedAt  time.Time  `json:"last_attempted_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
