package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"reflect"
	"time"

	"sqlquest/internal/app/sandbox"
	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"
	"sqlquest/internal/domain/repository"
	"sqlquest/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

const (
	feedbackChallengeNotFound = "The specified challenge does not exist."
	feedbackCorrectPrefix     = "Your solution is correct! "
	feedbackThreeStars        = "Excellent performance!"
	feedbackTwoStars          = "Good job!"
	feedbackOneStar           = "You've solved the challenge, but there's room for optimization."
	feedbackMismatch          = "Your solution is incorrect. The results don't match the expected output."
)

// EvaluationService runs learner SQL against an ephemeral engine instance,
// judges it against the reference solution and writes the outcome through the
// progress tracker. Every evaluation is a synchronous, self-contained unit of
// work; engine faults never escape as errors, they become well-formed results.
type EvaluationService struct {
	challengeRepo   repository.ChallengeRepository
	progressService *ProgressService
	userService     *UserService
	host            *sandbox.Host
	rdb             *redis.Client
}

func NewEvaluationService(
	challengeRepo repository.ChallengeRepository,
	progressService *ProgressService,
	userService *UserService,
	host *sandbox.Host,
	rdb *redis.Client,
) *EvaluationService {
	return &EvaluationService{
		challengeRepo:   challengeRepo,
		progressService: progressService,
		userService:     userService,
		host:            host,
		rdb:             rdb,
	}
}

type SubmitQueryRequest struct {
	ChallengeID string `json:"challenge_id"`
	SQLCode     string `json:"sql_code"`
	HintsUsed   int    `json:"hints_used"`
}

// EvaluateSubmission judges one submission. The returned error is reserved for
// infrastructure failures and the attempt limit; everything the learner can
// cause comes back inside the EvaluationResult.
func (s *EvaluationService) EvaluateSubmission(ctx context.Context, userID string, req SubmitQueryRequest) (*model.EvaluationResult, error) {
	challenge, err := s.challengeRepo.FindByID(ctx, req.ChallengeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			msg := "Challenge not found"
			return &model.EvaluationResult{
				IsCorrect:    false,
				ErrorMessage: &msg,
				Feedback:     feedbackChallengeNotFound,
			}, nil
		}
		return nil, common.Errorf("failed to load challenge: %w", err)
	}

	if challenge.MaxAttempts != nil {
		progress, err := s.progressService.GetProgress(ctx, userID, challenge.ID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("failed to check attempt limit: %w", err)
		}
		if progress != nil && progress.AttemptsCount >= *challenge.MaxAttempts {
			return nil, common.Errorf("maximum of %d attempts reached for this challenge: %w", *challenge.MaxAttempts, common.ErrAttemptLimit)
		}
	}

	handle, err := s.host.Provision(ctx, challenge.SchemaScript)
	if err != nil {
		var setupErr *sandbox.SetupError
		if errors.As(err, &setupErr) {
			// Content-authoring defect, not a learner mistake. Flagged in the
			// logs, surfaced to the caller like any other engine fault.
			log.Printf("ERROR: Schema setup failed for challenge %s (content defect): %v", challenge.ID, setupErr.Err)
			return s.failAttempt(ctx, userID, challenge, req, setupErr.Err.Error())
		}
		return nil, common.Errorf("failed to provision sandbox: %w", err)
	}
	defer handle.Close() // Torn down on every exit path below.

	start := time.Now()
	submittedRows, err := handle.Query(ctx, sandbox.StageLearner, req.SQLCode)
	if err != nil {
		return s.failAttempt(ctx, userID, challenge, req, unwrapEngineError(err))
	}
	executionTimeMs := float64(time.Since(start)) / float64(time.Millisecond)

	// Reference runs against the same handle, so both queries observe the
	// identical fixture state.
	expectedRows, err := handle.Query(ctx, sandbox.StageReference, challenge.ReferenceSolution)
	if err != nil {
		log.Printf("ERROR: Reference solution failed for challenge %s (content defect): %v", challenge.ID, err)
		return s.failAttempt(ctx, userID, challenge, req, unwrapEngineError(err))
	}

	// Strict ordered comparison: same row count, same column order, same cell
	// values in the same row order.
	isCorrect := compareResultSets(submittedRows, expectedRows)

	score, stars := ScoreSubmission(isCorrect, executionTimeMs, challenge.PerformanceThresholdMs, req.HintsUsed)

	outcome, err := s.progressService.RecordAttempt(ctx, userID, challenge, req.SQLCode, req.HintsUsed, isCorrect, executionTimeMs, score, stars)
	if err != nil {
		return nil, err
	}

	if outcome.XPGranted > 0 {
		if _, err := s.userService.AddXP(ctx, userID, outcome.XPGranted); err != nil {
			log.Printf("ERROR: Failed to apply %d XP to user %s: %v", outcome.XPGranted, userID, err)
		}
	}
	if isCorrect && outcome.ScoreDelta > 0 {
		s.publishScoreEvent(ctx, userID, outcome.ScoreDelta)
	}

	feedback := feedbackMismatch
	if isCorrect {
		switch stars {
		case 3:
			feedback = feedbackCorrectPrefix + feedbackThreeStars
		case 2:
			feedback = feedbackCorrectPrefix + feedbackTwoStars
		default:
			feedback = feedbackCorrectPrefix + feedbackOneStar
		}
	}

	return &model.EvaluationResult{
		IsCorrect:            isCorrect,
		ExecutionTimeMs:      &executionTimeMs,
		Feedback:             feedback,
		Score:                score,
		Stars:                stars,
		XPEarned:             outcome.XPGranted,
		IsChallengeCompleted: outcome.Progress.IsCompleted,
		PerformanceComparison: &model.PerformanceComparison{
			ExecutionTimeMs: executionTimeMs,
			ThresholdMs:     challenge.PerformanceThresholdMs,
			IsOptimized:     challenge.PerformanceThresholdMs != nil && executionTimeMs <= float64(*challenge.PerformanceThresholdMs),
		},
	}, nil
}

// failAttempt records an engine-fault attempt (still counted) and builds the
// error-shaped result: score 0, no stars, raw engine message as feedback.
func (s *EvaluationService) failAttempt(ctx context.Context, userID string, challenge *model.Challenge, req SubmitQueryRequest, errorMessage string) (*model.EvaluationResult, error) {
	if _, err := s.progressService.RecordAttempt(ctx, userID, challenge, req.SQLCode, req.HintsUsed, false, 0, 0, 0); err != nil {
		return nil, err
	}
	return &model.EvaluationResult{
		IsCorrect:    false,
		ErrorMessage: &errorMessage,
		Feedback:     "SQL Error: " + errorMessage,
	}, nil
}

func (s *EvaluationService) publishScoreEvent(ctx context.Context, userID string, delta int) {
	event := model.ScoreEvent{
		UserID:     userID,
		Delta:      delta,
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR: Failed to marshal score event for user %s: %v", userID, err)
		return
	}
	// The leaderboard is fed asynchronously; a publish failure loses one
	// delta but never fails the evaluation.
	if err := s.rdb.LPush(ctx, config.AppConfig.ScoreEventQueueName, payload).Err(); err != nil {
		log.Printf("ERROR: Failed to publish score event for user %s: %v", userID, err)
	}
}

func unwrapEngineError(err error) string {
	var queryErr *sandbox.QueryError
	if errors.As(err, &queryErr) {
		return queryErr.Err.Error()
	}
	return err.Error()
}

func compareResultSets(a, b [][]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
