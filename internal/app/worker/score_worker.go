package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"sqlquest/internal/app/service"
	"sqlquest/internal/domain/model"
	"sqlquest/internal/platform/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var boardTypes = []model.LeaderboardType{
	model.LeaderboardGlobal,
	model.LeaderboardDaily,
	model.LeaderboardWeekly,
	model.LeaderboardMonthly,
}

// ScoreWorker drains the score-event queue and fans each delta out to every
// leaderboard partition the event's timestamp belongs to. It also runs the
// periodic ranking pass; per-event deltas deliberately leave ranks stale.
type ScoreWorker struct {
	rdb                *redis.Client
	leaderboardService *service.LeaderboardService
}

func NewScoreWorker(rdb *redis.Client, leaderboardService *service.LeaderboardService) *ScoreWorker {
	return &ScoreWorker{
		rdb:                rdb,
		leaderboardService: leaderboardService,
	}
}

func (w *ScoreWorker) Start(ctx context.Context) {
	log.Println("Score worker started, listening to queue:", config.AppConfig.ScoreEventQueueName)

	recomputeInterval := time.Duration(config.AppConfig.RankRecomputeIntervalSec) * time.Second
	ticker := time.NewTicker(recomputeInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.recomputeAllWithLock(ctx)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Println("Score worker stopping...")
			return
		default:
			// Blocking pop with a bounded wait so shutdown is responsive.
			popped, err := w.rdb.BRPop(ctx, 5*time.Second, config.AppConfig.ScoreEventQueueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				log.Printf("ERROR: Failed to BRPop from Redis queue '%s': %v", config.AppConfig.ScoreEventQueueName, err)
				time.Sleep(5 * time.Second) // Wait before retrying on other errors
				continue
			}
			if len(popped) < 2 || popped[1] == "" {
				log.Println("WARN: BRPop returned empty score event.")
				continue
			}
			w.applyEvent(ctx, popped[1])
		}
	}
}

func (w *ScoreWorker) applyEvent(ctx context.Context, payload string) {
	var event model.ScoreEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Printf("ERROR: Dropping malformed score event: %v", err)
		return
	}
	if event.UserID == "" || event.Delta == 0 {
		log.Printf("WARN: Dropping empty score event: %+v", event)
		return
	}

	for _, boardType := range boardTypes {
		periodStart, periodEnd := model.WindowFor(boardType, event.OccurredAt)
		if _, err := w.leaderboardService.ApplyScoreDelta(ctx, event.UserID, boardType, periodStart, periodEnd, event.Delta); err != nil {
			log.Printf("ERROR: Failed to apply score delta %d for user %s to %s board: %v", event.Delta, event.UserID, boardType, err)
		}
	}
}

// recomputeAllWithLock refreshes ranks for the current window of every board
// type, guarded by a Redis lock so only one instance runs a pass at a time.
func (w *ScoreWorker) recomputeAllWithLock(ctx context.Context) {
	lockValue := uuid.NewString()
	lockTTL := time.Duration(config.AppConfig.RankRecomputeLockTTLSec) * time.Second

	ok, err := w.rdb.SetNX(ctx, config.AppConfig.RankRecomputeLockKey, lockValue, lockTTL).Result()
	if err != nil {
		log.Printf("ERROR: Failed to attempt rank recompute lock acquisition: %v", err)
		return
	}
	if !ok {
		log.Println("INFO: Rank recompute already running elsewhere, skipping this pass.")
		return
	}

	defer func() {
		// Release the lock only if still held (CAS delete).
		script := redis.NewScript(`
            if redis.call("get", KEYS[1]) == ARGV[1] then
                return redis.call("del", KEYS[1])
            else
                return 0
            end
        `)
		if _, err := script.Run(ctx, w.rdb, []string{config.AppConfig.RankRecomputeLockKey}, lockValue).Result(); err != nil {
			log.Printf("ERROR: Failed to release rank recompute lock: %v", err)
		}
	}()

	now := time.Now().UTC()
	for _, boardType := range boardTypes {
		periodStart, periodEnd := model.WindowFor(boardType, now)
		updated, err := w.leaderboardService.RecomputeRanks(ctx, boardType, periodStart, periodEnd)
		if err != nil {
			log.Printf("ERROR: Rank recompute failed for %s board: %v", boardType, err)
			continue
		}
		if updated > 0 {
			log.Printf("INFO: Rank recompute updated %d entries on %s board", updated, boardType)
		}
	}
}
