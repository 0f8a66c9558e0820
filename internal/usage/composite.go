package usage

import (
	"math"
	"time"
)

// ComputeComposite blends similarity, recency and usage-frequency into the
// single re-ranking score described in . Clamping happens once, at the
// end, per the Open Question resolved in DESIGN.md: similarity is already
// clamped to [0,1] at the vector-store boundary and is never re-clamped
// before this call.
func ComputeComposite(cfg Config, similarity float32, createdAt, lastUsed time.Time, useCount int64) float64 {
	cfg.ApplyDefaults()

	recencyAnchor := createdAt
	if !lastUsed.IsZero() {
		recencyAnchor = lastUsed
	}
	ageHours := time.Since(recencyAnchor).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	halflifeHours := cfg.RecencyHalflifeDays * 24
	recency := math.Pow(2, -ageHours/halflifeHours)

	usageTerm := math.Log(float64(useCount)+1) / math.Log(float64(cfg.MaxUse)+1)
	if usageTerm > 1 {
		usageTerm = 1
	}

	composite := cfg.Weights.Similarity*float64(similarity) +
		cfg.Weights.Recency*recency +
		cfg.Weights.Usage*usageTerm

	if composite < 0 {
		return 0
	}
	if composite > 1 {
		return 1
	}
	return composite
}
