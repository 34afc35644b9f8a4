package service

// ScoreSubmission maps one evaluation outcome to a score and star rating.
// Pure and deterministic; persistence never feeds back into it.
//
// A correct answer starts at 100. With a performance threshold defined, a run
// at or under it earns floor(50*threshold/max(t,1)) capped at 100, a run over
// it loses floor(25*t/threshold) capped at 50. Declared hints cost 10 each,
// capped at 50. The final score is clamped to [50, 200]: a correct answer
// never scores below 50 regardless of penalties.
func ScoreSubmission(isCorrect bool, executionTimeMs float64, performanceThresholdMs *int, hintsUsed int) (score, stars int) {
	if !isCorrect {
		return 0, 0
	}

	score = 100

	if performanceThresholdMs != nil {
		threshold := float64(*performanceThresholdMs)
		if executionTimeMs <= threshold {
			bonus := int(50 * threshold / maxFloat(executionTimeMs, 1))
			if bonus > 100 {
				bonus = 100
			}
			score += bonus
		} else {
			penalty := int(25 * executionTimeMs / threshold)
			if penalty > 50 {
				penalty = 50
			}
			score -= penalty
		}
	}

	hintPenalty := hintsUsed * 10
	if hintPenalty > 50 {
		hintPenalty = 50
	}
	score -= hintPenalty

	if score < 50 {
		score = 50
	}
	if score > 200 {
		score = 200
	}

	switch {
	case score >= 150:
		stars = 3
	case score >= 100:
		stars = 2
	default:
		stars = 1
	}
	return score, stars
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
