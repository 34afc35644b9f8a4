package model

// PerformanceComparison reports the observed execution time against the
// challenge's threshold, when one is defined.
type PerformanceComparison struct {
	ExecutionTimeMs float64 `json:"execution_time_ms"`
	ThresholdMs     *int    `json:"threshold_ms,omitempty"`
	IsOptimized     bool    `json:"is_optimized"`
}

// EvaluationResult is the full outcome of one submission evaluation. Engine
// faults and comparison mismatches are both well-formed results with
// IsCorrect=false; nothing in the evaluation core surfaces as an unhandled
// fault to the caller.
type EvaluationResult struct {
	IsCorrect             bool                   `json:"is_correct"`
	ExecutionTimeMs       *float64               `json:"execution_time_ms,omitempty"`
	ErrorMessage          *string                `json:"error_message,omitempty"`
	Feedback              string                 `json:"feedback"`
	Score                 int                    `json:"score"`
	Stars                 int                    `json:"stars"`
	XPEarned              int                    `json:"xp_earned"`
	IsChallengeCompleted  bool                   `json:"is_challenge_completed"`
	PerformanceComparison *PerformanceComparison `json:"performance_comparison,omitempty"`
}
