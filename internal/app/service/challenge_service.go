package service

import (
	"context"
	"errors"
	"log"

	"sqlquest/internal/app/sandbox"
	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"
	"sqlquest/internal/domain/repository"
	"sqlquest/internal/platform/config"

	"github.com/google/uuid"
	"github.com/gosimple/slug" // For slug generation
)

// ChallengeService is the content-authoring side: CRUD over challenges, with
// every write validated against a real sandbox so broken schema scripts and
// reference solutions are rejected before a learner ever sees them.
type ChallengeService struct {
	challengeRepo repository.ChallengeRepository
	host          *sandbox.Host
}

func NewChallengeService(challengeRepo repository.ChallengeRepository, host *sandbox.Host) *ChallengeService {
	return &ChallengeService{challengeRepo: challengeRepo, host: host}
}

type CreateChallengeRequest struct {
	LevelNumber            int                   `json:"level_number"`
	Title                  string                `json:"title"`
	Description            string                `json:"description"`
	Difficulty             model.DifficultyLevel `json:"difficulty"`
	Type                   model.ChallengeType   `json:"challenge_type"`
	InitialCode            *string               `json:"initial_code,omitempty"`
	ReferenceSolution      string                `json:"reference_solution"`
	SchemaScript           string                `json:"schema_script"`
	TimeLimitSeconds       *int                  `json:"time_limit_seconds,omitempty"`
	MaxAttempts            *int                  `json:"max_attempts,omitempty"`
	XPReward               int                   `json:"xp_reward"`
	PerformanceThresholdMs *int                  `json:"performance_threshold_ms,omitempty"`
}

type UpdateChallengeRequest struct {
	LevelNumber            *int                   `json:"level_number,omitempty"`
	Title                  *string                `json:"title,omitempty"`
	Description            *string                `json:"description,omitempty"`
	Difficulty             *model.DifficultyLevel `json:"difficulty,omitempty"`
	Type                   *model.ChallengeType   `json:"challenge_type,omitempty"`
	InitialCode            *string                `json:"initial_code,omitempty"`
	ReferenceSolution      *string                `json:"reference_solution,omitempty"`
	SchemaScript           *string                `json:"schema_script,omitempty"`
	TimeLimitSeconds       *int                   `json:"time_limit_seconds,omitempty"`
	MaxAttempts            *int                   `json:"max_attempts,omitempty"`
	XPReward               *int                   `json:"xp_reward,omitempty"`
	PerformanceThresholdMs *int                   `json:"performance_threshold_ms,omitempty"`
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, req CreateChallengeRequest) (*model.Challenge, error) {
	if req.Title == "" || req.Description == "" || req.Difficulty == "" || req.Type == "" ||
		req.ReferenceSolution == "" || req.SchemaScript == "" || req.LevelNumber <= 0 {
		return nil, common.Errorf("missing required fields for challenge creation: %w", common.ErrBadRequest)
	}

	if err := s.validateContent(ctx, req.SchemaScript, req.ReferenceSolution); err != nil {
		return nil, err
	}

	challenge := &model.Challenge{
		ID:                     uuid.NewString(),
		LevelNumber:            req.LevelNumber,
		Title:                  req.Title,
		Slug:                   slug.Make(req.Title),
		Description:            req.Description,
		Difficulty:             req.Difficulty,
		Type:                   req.Type,
		InitialCode:            req.InitialCode,
		ReferenceSolution:      req.ReferenceSolution,
		SchemaScript:           req.SchemaScript,
		TimeLimitSeconds:       req.TimeLimitSeconds,
		MaxAttempts:            req.MaxAttempts,
		XPReward:               req.XPReward,
		PerformanceThresholdMs: req.PerformanceThresholdMs,
	}
	if challenge.XPReward == 0 {
		challenge.XPReward = config.AppConfig.DefaultXPReward
	}

	if err := s.challengeRepo.Create(ctx, nil, challenge); err != nil {
		return nil, common.Errorf("failed to create challenge: %w", err)
	}
	log.Printf("INFO: Challenge %s (%s) created at level %d", challenge.ID, challenge.Slug, challenge.LevelNumber)
	return challenge, nil
}

func (s *ChallengeService) UpdateChallenge(ctx context.Context, id string, req UpdateChallengeRequest) (*model.Challenge, error) {
	challenge, err := s.challengeRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.LevelNumber != nil {
		challenge.LevelNumber = *req.LevelNumber
	}
	if req.Title != nil {
		challenge.Title = *req.Title
		challenge.Slug = slug.Make(*req.Title)
	}
	if req.Description != nil {
		challenge.Description = *req.Description
	}
	if req.Difficulty != nil {
		challenge.Difficulty = *req.Difficulty
	}
	if req.Type != nil {
		challenge.Type = *req.Type
	}
	if req.InitialCode != nil {
		challenge.InitialCode = req.InitialCode
	}
	if req.ReferenceSolution != nil {
		challenge.ReferenceSolution = *req.ReferenceSolution
	}
	if req.SchemaScript != nil {
		challenge.SchemaScript = *req.SchemaScript
	}
	if req.TimeLimitSeconds != nil {
		challenge.TimeLimitSeconds = req.TimeLimitSeconds
	}
	if req.MaxAttempts != nil {
		challenge.MaxAttempts = req.MaxAttempts
	}
	if req.XPReward != nil {
		challenge.XPReward = *req.XPReward
	}
	if req.PerformanceThresholdMs != nil {
		challenge.PerformanceThresholdMs = req.PerformanceThresholdMs
	}

	// Re-validate whenever the script or solution changed.
	if req.SchemaScript != nil || req.ReferenceSolution != nil {
		if err := s.validateContent(ctx, challenge.SchemaScript, challenge.ReferenceSolution); err != nil {
			return nil, err
		}
	}

	if err := s.challengeRepo.Update(ctx, nil, challenge); err != nil {
		return nil, common.Errorf("failed to update challenge: %w", err)
	}
	return challenge, nil
}

// validateContent provisions a throwaway instance and executes the reference
// solution against it, so authoring mistakes fail the write instead of every
// future evaluation.
func (s *ChallengeService) validateContent(ctx context.Context, schemaScript, referenceSolution string) error {
	handle, err := s.host.Provision(ctx, schemaScript)
	if err != nil {
		var setupErr *sandbox.SetupError
		if errors.As(err, &setupErr) {
			return common.Errorf("schema script does not apply: %v: %w", setupErr.Err, common.ErrValidation)
		}
		return common.Errorf("failed to provision validation sandbox: %w", err)
	}
	defer handle.Close()

	if _, err := handle.Query(ctx, sandbox.StageReference, referenceSolution); err != nil {
		return common.Errorf("reference solution does not run: %v: %w", err, common.ErrValidation)
	}
	return nil
}

func (s *ChallengeService) DeleteChallenge(ctx context.Context, id string) error {
	return s.challengeRepo.Delete(ctx, id)
}

func (s *ChallengeService) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	return s.challengeRepo.FindByID(ctx, id)
}

func (s *ChallengeService) GetChallengeByLevel(ctx context.Context, levelNumber int) (*model.Challenge, error) {
	return s.challengeRepo.FindByLevel(ctx, levelNumber)
}

// ListChallenges pages through challenges ordered by level number, optionally
// filtered by difficulty and type. The reference solution and schema script
// are blanked for non-admin callers.
func (s *ChallengeService) ListChallenges(ctx context.Context, page, pageSize int, difficulty model.DifficultyLevel, challengeType model.ChallengeType, callerRole string) ([]model.Challenge, int, error) {
	offset := (page - 1) * pageSize
	challenges, total, err := s.challengeRepo.List(ctx, pageSize, offset, difficulty, challengeType)
	if err != nil {
		return nil, 0, err
	}
	if callerRole != model.RoleAdmin {
		for i := range challenges {
			challenges[i].ReferenceSolution = ""
			challenges[i].SchemaScript = ""
		}
	}
	return challenges, total, nil
}
