package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"sqlquest/internal/app/sandbox"
	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"
	"sqlquest/internal/platform/config"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	config.Load()
	m.Run()
}

type fakeChallengeRepo struct {
	mu         sync.Mutex
	challenges map[string]*model.Challenge
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{challenges: make(map[string]*model.Challenge)}
}

func (r *fakeChallengeRepo) Create(_ context.Context, _ *sql.Tx, challenge *model.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *challenge
	r.challenges[challenge.ID] = &copied
	return nil
}

func (r *fakeChallengeRepo) Update(_ context.Context, _ *sql.Tx, challenge *model.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[challenge.ID]; !ok {
		return common.ErrNotFound
	}
	copied := *challenge
	r.challenges[challenge.ID] = &copied
	return nil
}

func (r *fakeChallengeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.challenges, id)
	return nil
}

func (r *fakeChallengeRepo) FindByID(_ context.Context, id string) (*model.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeChallengeRepo) FindByLevel(_ context.Context, levelNumber int) (*model.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.challenges {
		if c.LevelNumber == levelNumber {
			copied := *c
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeChallengeRepo) List(_ context.Context, limit, offset int, difficulty model.DifficultyLevel, challengeType model.ChallengeType) ([]model.Challenge, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Challenge
	for _, c := range r.challenges {
		if difficulty != "" && c.Difficulty != difficulty {
			continue
		}
		if challengeType != "" && c.Type != challengeType {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) UpdateXP(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return common.ErrNotFound
	}
	stored.XPPoints = user.XPPoints
	stored.Level = user.Level
	stored.RankTitle = user.RankTitle
	return nil
}

const evalUsersScript = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    age INTEGER
);
INSERT INTO users (id, name, age) VALUES (1, 'Alice', 30);
INSERT INTO users (id, name, age) VALUES (2, 'Bob', 25);
`

type evalFixture struct {
	svc           *EvaluationService
	challengeRepo *fakeChallengeRepo
	progressRepo  *fakeProgressRepo
	userRepo      *fakeUserRepo
}

func newEvalFixture(t *testing.T) *evalFixture {
	t.Helper()
	challengeRepo := newFakeChallengeRepo()
	progressRepo := newFakeProgressRepo()
	userRepo := newFakeUserRepo()
	userRepo.users["u-1"] = &model.User{
		ID: "u-1", Username: "learner", Email: "learner@example.com",
		Level: 1, RankTitle: model.RankTitleJunior, IsActive: true,
	}

	progressService := NewProgressService(progressRepo)
	userService := NewUserService(userRepo)
	host := sandbox.NewHost(5 * time.Second)
	// Unreachable broker: score-event publishes fail and are logged, which is
	// exactly the non-fatal path these tests expect.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})

	return &evalFixture{
		svc:           NewEvaluationService(challengeRepo, progressService, userService, host, rdb),
		challengeRepo: challengeRepo,
		progressRepo:  progressRepo,
		userRepo:      userRepo,
	}
}

func (f *evalFixture) addChallenge(c *model.Challenge) *model.Challenge {
	f.challengeRepo.challenges[c.ID] = c
	return c
}

func selectUsersChallenge() *model.Challenge {
	return &model.Challenge{
		ID:                "ch-select",
		LevelNumber:       1,
		Title:             "List every user",
		Difficulty:        model.DifficultyBeginner,
		Type:              model.TypeQueryWriting,
		ReferenceSolution: "SELECT id, name FROM users ORDER BY id",
		SchemaScript:      evalUsersScript,
		XPReward:          100,
	}
}

func TestEvaluateSubmissionCorrectFirstAttempt(t *testing.T) {
	f := newEvalFixture(t)
	f.addChallenge(selectUsersChallenge())

	result, err := f.svc.EvaluateSubmission(context.Background(), "u-1", SubmitQueryRequest{
		ChallengeID: "ch-select",
		SQLCode:     "SELECT id, name FROM users ORDER BY id",
	})
	require.NoError(t, err)

	assert.True(t, result.IsCorrect)
	assert.Nil(t, result.ErrorMessage)
	require.NotNil(t, result.ExecutionTimeMs)
	assert.Greater(t, *result.ExecutionTimeMs, 0.0)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, 2, result.Stars)
	assert.Equal(t, 100, result.XPEarned)
	assert.True(t, result.IsChallengeCompleted)
	assert.Equal(t, "Your solution is correct! Good job!", result.Feedback)

	// XP landed on the user record.
	user, err := f.userRepo.FindByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 100, user.XPPoints)
}

func TestEvaluateSubmissionEquivalentQueryIsCorrect(t *testing.T) {
	f := newEvalFixture(t)
	f.addChallenge(selectUsersChallenge())

	// Different SQL text, identical result set.
	result, err := f.svc.EvaluateSubmission(context.Background(), "u-1", SubmitQueryRequest{
		ChallengeID: "ch-select",
		SQLCode:     "SELECT id, name FROM users WHERE age > 0 ORDER BY id ASC",
	})
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
}

func TestEvaluateSubmissionRowOrderMatters(t *testing.T) {
	f := newEvalFixture(t)
	f.addChallenge(selectUsersChallenge())

	result, err := f.svc.EvaluateSubmission(context.Background(), "u-1", SubmitQueryRequest{
		ChallengeID: "ch-select",
		SQLCode:     "SELECT id, name FROM users ORDER BY id DESC",
	})
	require.NoError(t, err)

	assert.False(t, result.IsCorrect)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.Stars)
	assert.Equal(t, 0, result.XPEarned)
	assert.False(t, result.IsChallengeCompleted)
	assert.Equal(t, "Your solution is incorrect. The results don't match the expected output.", result.Feedback)
}

func TestEvaluateSubmissionColumnSetMatters(t *testing.T) {
	f := newEvalFixture(t)
	f.addChallenge(selectUsersChallenge())

	result, err := f.svc.EvaluateSubmission(context.Background(), "u-1", SubmitQueryRequest{
		ChallengeID: "ch-select",
		SQLCode:     "SELECT id, name, age FROM users ORDER BY id",
	})
	require.NoError(t, err)
	assert.False(t, result.IsCorrect)
}

func TestEvaluateSubmissionEngineFault(t *testing.T) {
	f := newEvalFixture(t)
	f.addChallenge(selectUsersChallenge())

	result, err := f.svc.EvaluateSubmission(context.Background(), "u-1", SubmitQueryRequest{
		ChallengeID: "ch-select",
		SQLCode:     "SELECT * FROM no_such_table",
	})
	require.NoError(t, err, "a learner fault is a result, not an error")

	assert.False(t, result.IsCorrect)
	require.NotNil(t, result.ErrorMessage)
	assert.NotEmpty(t, *result.ErrorMessage)
	assert.Nil(t, result.ExecutionTimeMs)
	assert.Equal(t, 0, result.Score)
	assert.False(t, result.IsChallengeCompleted)
	assert.True(t, strings.HasPrefix(result.Feedback, "SQL Error: "))

	// The fault still consumed an attempt.
	progress, err := f.progressRepo.Find(context.Background(), "u-1", "ch-select")
	require.NoError(t, err)
	assert.Equal(t, 1, progress.AttemptsCount)
	assert.False(t, progress.IsCompleted)
}

func TestEvaluateSubmissionFailThenSucceedEarnsNoXP(t *testing.T) {
	f := newEvalFixture(t)
	f.addChallenge(selectUsersChallenge())
	ctx := context.Background()

	_, err := f.svc.EvaluateSubmission(ctx, "u-1", SubmitQueryRequest{
		ChallengeID: "ch-select",
		SQLCode:     "SELECT nope FROM users",
	})
	require.NoError(t, err)

	result, err := f.svc.EvaluateSubmission(ctx, "u-1", SubmitQueryRequest{
		ChallengeID: "ch-select",
		SQLCode:     "SELECT id, name FROM users ORDER BY id",
	})
	require.NoError(t, err)

	assert.True(t, result.IsCorrect)
	assert.True(t, result.IsChallengeCompleted)
	assert.Equal(t, 0, result.XPEarned, "only a correct first attempt earns XP")

	user, err := f.userRepo.FindByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 0, user.XPPoints)
}

func TestEvaluateSubmissionUnknownChallenge(t *testing.T) {
	f := newEvalFixture(t)

	result, err := f.svc.EvaluateSubmission(context.Background(), "u-1", SubmitQueryRequest{
		ChallengeID: "missing",
		SQLCode:     "SELECT 1",
	})
	require.NoError(t, err)

	assert.False(t, result.IsCorrect)
	assert.Equal(t, "The specified challenge does not exist.", result.Feedback)
	require.NotNil(t, result.ErrorMessage)

	// No progress row is created for a nonexistent challenge.
	_, err = f.progressRepo.Find(context.Background(), "u-1", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEvaluateSubmissionAttemptLimit(t *testing.T) {
	f := newEvalFixture(t)
	challenge := selectUsersChallenge()
	maxAttempts := 1
	challenge.MaxAttempts = &maxAttempts
	f.addChallenge(challenge)
	ctx := context.Background()

	_, err := f.svc.EvaluateSubmission(ctx, "u-1", SubmitQueryRequest{
		ChallengeID: challenge.ID,
		SQLCode:     "SELECT broken FROM users",
	})
	require.NoError(t, err)

	_, err = f.svc.EvaluateSubmission(ctx, "u-1", SubmitQueryRequest{
		ChallengeID: challenge.ID,
		SQLCode:     "SELECT id, name FROM users ORDER BY id",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAttemptLimit)
}

func TestEvaluateSubmissionPerformanceComparison(t *testing.T) {
	f := newEvalFixture(t)
	challenge := selectUsersChallenge()
	threshold := 10000 // generous enough that the tiny fixture query passes
	challenge.PerformanceThresholdMs = &threshold
	f.addChallenge(challenge)

	result, err := f.svc.EvaluateSubmission(context.Background(), "u-1", SubmitQueryRequest{
		ChallengeID: challenge.ID,
		SQLCode:     "SELECT id, name FROM users ORDER BY id",
	})
	require.NoError(t, err)

	assert.True(t, result.IsCorrect)
	require.NotNil(t, result.PerformanceComparison)
	assert.True(t, result.PerformanceComparison.IsOptimized)
	require.NotNil(t, result.PerformanceComparison.ThresholdMs)
	assert.Equal(t, threshold, *result.PerformanceComparison.ThresholdMs)
	assert.Equal(t, 200, result.Score, "a run far under the threshold takes the full bonus")
	assert.Equal(t, 3, result.Stars)
	assert.Equal(t, "Your solution is correct! Excellent performance!", result.Feedback)
}

func TestEvaluateSubmissionBrokenSchemaScript(t *testing.T) {
	f := newEvalFixture(t)
	challenge := selectUsersChallenge()
	challenge.SchemaScript = "CREATE TABLE users ("
	f.addChallenge(challenge)

	result, err := f.svc.EvaluateSubmission(context.Background(), "u-1", SubmitQueryRequest{
		ChallengeID: challenge.ID,
		SQLCode:     "SELECT 1",
	})
	require.NoError(t, err, "a content defect surfaces like any engine fault")

	assert.False(t, result.IsCorrect)
	require.NotNil(t, result.ErrorMessage)
	assert.True(t, strings.HasPrefix(result.Feedback, "SQL Error: "))
}

func TestEvaluateSubmissionResubmitKeepsBestScore(t *testing.T) {
	f := newEvalFixture(t)
	f.addChallenge(selectUsersChallenge())
	ctx := context.Background()

	first, err := f.svc.EvaluateSubmission(ctx, "u-1", SubmitQueryRequest{
		ChallengeID: "ch-select",
		SQLCode:     "SELECT id, name FROM users ORDER BY id",
	})
	require.NoError(t, err)
	require.True(t, first.IsCorrect)

	// Use hints on the re-run so the new score is strictly worse.
	second, err := f.svc.EvaluateSubmission(ctx, "u-1", SubmitQueryRequest{
		ChallengeID: "ch-select",
		SQLCode:     "SELECT id, name FROM users ORDER BY id",
		HintsUsed:   4,
	})
	require.NoError(t, err)
	assert.True(t, second.IsCorrect)
	assert.Less(t, second.Score, first.Score)

	progress, err := f.progressRepo.Find(ctx, "u-1", "ch-select")
	require.NoError(t, err)
	assert.Equal(t, 2, progress.AttemptsCount)
	assert.Equal(t, first.Score, progress.Score, "stored score never regresses")
}
