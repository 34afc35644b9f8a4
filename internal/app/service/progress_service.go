package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"
	"sqlquest/internal/domain/repository"

	"github.com/google/uuid"
)

// ProgressService owns the durable per-user-per-challenge record. Writes for
// the same (user, challenge) pair are serialized in-process so two in-flight
// submissions cannot increment attempts_count from the same stale read.
type ProgressService struct {
	progressRepo repository.ProgressRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewProgressService(progressRepo repository.ProgressRepository) *ProgressService {
	return &ProgressService{
		progressRepo: progressRepo,
		locks:        make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding one (user, challenge) pair. The map only
// grows; the working set is bounded by users x challenges actually attempted.
func (s *ProgressService) lockFor(userID, challengeID string) *sync.Mutex {
	key := userID + ":" + challengeID
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// AttemptOutcome reports what one RecordAttempt call changed.
type AttemptOutcome struct {
	Progress     *model.UserProgress
	CompletedNow bool // completion transitioned false -> true on this call
	XPGranted    int  // 0 unless the grant rule fired
	ScoreDelta   int  // best-score improvement, 0 when no new high-water mark
}

// RecordAttempt applies one evaluation to the user's progress row, creating it
// on first submission. attempts_count always increments; is_completed,
// best_execution_time_ms, score and stars move only in their allowed
// direction.
//
// XP is granted only when the very first attempt on a challenge is correct
// (attempts_count becomes 1). A learner who fails attempt one and succeeds
// later earns zero XP for that challenge.
func (s *ProgressService) RecordAttempt(
	ctx context.Context,
	userID string,
	challenge *model.Challenge,
	queryText string,
	hintsUsed int,
	isCorrect bool,
	executionTimeMs float64,
	score, stars int,
) (*AttemptOutcome, error) {
	lock := s.lockFor(userID, challenge.ID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()

	progress, err := s.progressRepo.Find(ctx, userID, challenge.ID)
	created := false
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("failed to load progress: %w", err)
		}
		progress = &model.UserProgress{
			ID:               uuid.NewString(),
			UserID:           userID,
			ChallengeID:      challenge.ID,
			FirstAttemptedAt: now,
		}
		created = true
	}

	wasCompleted := progress.IsCompleted
	oldScore := progress.Score

	progress.AttemptsCount++
	progress.LastSubmittedSolution = &queryText
	progress.HintsUsed += hintsUsed
	progress.LastAttemptedAt = now

	if isCorrect {
		progress.IsCompleted = true
		if !wasCompleted {
			completedAt := now
			progress.CompletedAt = &completedAt
		}
		if progress.BestExecutionTimeMs == nil || executionTimeMs < *progress.BestExecutionTimeMs {
			t := executionTimeMs
			progress.BestExecutionTimeMs = &t
		}
		if score > progress.Score {
			progress.Score = score
		}
		if stars > progress.Stars {
			progress.Stars = stars
		}
	}

	if created {
		err = s.progressRepo.Create(ctx, progress)
	} else {
		err = s.progressRepo.Update(ctx, progress)
	}
	if err != nil {
		return nil, common.Errorf("failed to persist progress: %w", err)
	}

	xpGranted := 0
	if isCorrect && progress.AttemptsCount == 1 {
		xpGranted = challenge.XPReward
	}

	return &AttemptOutcome{
		Progress:     progress,
		CompletedNow: isCorrect && !wasCompleted,
		XPGranted:    xpGranted,
		ScoreDelta:   progress.Score - oldScore,
	}, nil
}

// GetProgress returns the row for one (user, challenge) pair, or ErrNotFound
// before the first submission.
func (s *ProgressService) GetProgress(ctx context.Context, userID, challengeID string) (*model.UserProgress, error) {
	return s.progressRepo.Find(ctx, userID, challengeID)
}

// ListForUser returns a user's progress across challenges, optionally only
// the completed ones.
func (s *ProgressService) ListForUser(ctx context.Context, userID string, completedOnly bool) ([]model.UserProgress, error) {
	return s.progressRepo.ListByUser(ctx, userID, completedOnly)
}
