package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestScoreSubmission(t *testing.T) {
	tests := []struct {
		name        string
		isCorrect   bool
		timeMs      float64
		thresholdMs *int
		hints       int
		wantScore   int
		wantStars   int
	}{
		{name: "incorrect scores zero", isCorrect: false, timeMs: 5, wantScore: 0, wantStars: 0},
		{name: "incorrect ignores hints and threshold", isCorrect: false, timeMs: 5, thresholdMs: intPtr(100), hints: 3, wantScore: 0, wantStars: 0},
		{name: "correct without threshold", isCorrect: true, timeMs: 40, wantScore: 100, wantStars: 2},
		{name: "bonus capped at 100", isCorrect: true, timeMs: 10, thresholdMs: intPtr(100), wantScore: 200, wantStars: 3},
		{name: "bonus at exactly the threshold", isCorrect: true, timeMs: 100, thresholdMs: intPtr(100), wantScore: 150, wantStars: 3},
		{name: "sub-millisecond run clamps divisor to 1", isCorrect: true, timeMs: 0.2, thresholdMs: intPtr(100), wantScore: 200, wantStars: 3},
		{name: "moderate overrun penalty", isCorrect: true, timeMs: 120, thresholdMs: intPtr(100), wantScore: 70, wantStars: 1},
		{name: "penalty capped at 50", isCorrect: true, timeMs: 10000, thresholdMs: intPtr(100), wantScore: 50, wantStars: 1},
		{name: "each hint costs 10", isCorrect: true, timeMs: 40, hints: 3, wantScore: 70, wantStars: 1},
		{name: "hint penalty capped at 50", isCorrect: true, timeMs: 40, hints: 10, wantScore: 50, wantStars: 1},
		{name: "hints cannot push below the floor", isCorrect: true, timeMs: 10000, thresholdMs: intPtr(100), hints: 10, wantScore: 50, wantStars: 1},
		{name: "bonus minus hints lands on two stars", isCorrect: true, timeMs: 350, thresholdMs: intPtr(400), hints: 2, wantScore: 137, wantStars: 2},
		{name: "partial bonus", isCorrect: true, timeMs: 80, thresholdMs: intPtr(100), wantScore: 162, wantStars: 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score, stars := ScoreSubmission(tc.isCorrect, tc.timeMs, tc.thresholdMs, tc.hints)
			assert.Equal(t, tc.wantScore, score)
			assert.Equal(t, tc.wantStars, stars)
		})
	}
}

// Bounds and star-band laws over a grid of inputs.
func TestScoreSubmissionBounds(t *testing.T) {
	thresholds := []*int{nil, intPtr(1), intPtr(50), intPtr(500)}
	for _, threshold := range thresholds {
		for _, timeMs := range []float64{0, 0.5, 1, 25, 50, 100, 1000, 100000} {
			for hints := 0; hints <= 12; hints += 3 {
				score, stars := ScoreSubmission(true, timeMs, threshold, hints)
				assert.GreaterOrEqual(t, score, 50, "time=%v hints=%d", timeMs, hints)
				assert.LessOrEqual(t, score, 200, "time=%v hints=%d", timeMs, hints)

				switch {
				case score >= 150:
					assert.Equal(t, 3, stars)
				case score >= 100:
					assert.Equal(t, 2, stars)
				default:
					assert.Equal(t, 1, stars)
				}
			}
		}
	}
}
