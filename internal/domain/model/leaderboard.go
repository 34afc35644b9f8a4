package model

import (
	"time"
)

type LeaderboardType string

const (
	LeaderboardGlobal  LeaderboardType = "global"
	LeaderboardDaily   LeaderboardType = "daily"
	LeaderboardWeekly  LeaderboardType = "weekly"
	LeaderboardMonthly LeaderboardType = "monthly"
)

func (t LeaderboardType) Valid() bool {
	switch t {
	case LeaderboardGlobal, LeaderboardDaily, LeaderboardWeekly, LeaderboardMonthly:
		return true
	}
	return false
}

// LeaderboardEntry is one user's row within a (type, window) partition.
// Rank is nil until a ranking pass has run, and may lag the true standing
// until the next pass.
type LeaderboardEntry struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Type   LeaderboardType `json:"leaderboard_type"`
	Score  int             `json:"score"`
	Rank   *int            `json:"rank,omitempty"`

	// Window bounds. Both nil for the global board.
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Display fields joined from users on read; not persisted on the entry.
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}

// WindowFor returns the partition bounds containing ts for the given board
// type, in UTC. Global has no bounds. Daily is the calendar day, weekly starts
// at the Monday of the ISO week and runs 7 days, monthly is the calendar month.
func WindowFor(t LeaderboardType, ts time.Time) (start, end *time.Time) {
	ts = ts.UTC()
	switch t {
	case LeaderboardDaily:
		s := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		e := s.AddDate(0, 0, 1)
		return &s, &e
	case LeaderboardWeekly:
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		s := day.AddDate(0, 0, -offset)
		e := s.AddDate(0, 0, 7)
		return &s, &e
	case LeaderboardMonthly:
		s := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		e := s.AddDate(0, 1, 0)
		return &s, &e
	default:
		return nil, nil
	}
}

// ScoreEvent is the queue payload published when a completed challenge raises
// a user's best score. The worker fans it out to every board type.
type ScoreEvent struct {
	UserID     string    `json:"user_id"`
	Delta      int       `json:"delta"`
	OccurredAt time.Time `json:"occurred_at"`
}
