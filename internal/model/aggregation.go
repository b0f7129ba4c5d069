package model

import "time"

// AggregationContext carries the per-build aggregation policy. It is a
// value threaded through one build run, never global state.
type AggregationContext struct {
	AsOf            time.Time    `json:"as_of_time"`
	EnableTimeDecay bool         `json:"enable_time_decay"`
	HalfLifeDays    float64      `json:"half_life_days"`
	EnableSmoothing bool         `json:"enable_bayesian_smoothing"`
	Priors          GlobalPriors `json:"global_priors,omitempty"`

	// HassleReviewWeight is the weight of the review-derived bureaucracy
	// signal when blending with the AIP-derived contribution. The AIP side
	// gets 1-HassleReviewWeight. When one side has no signal the other is
	// used unmodified.
	HassleReviewWeight float64 `json:"hassle_review_weight"`

	// FallbackScore, when set, is used for a feature with zero
	// contributing data points and smoothing disabled. When nil that
	// situation is a FeatureMappingError.
	FallbackScore *float64 `json:"fallback_score,omitempty"`
}

// DefaultAggregationContext returns the policy used when none is configured.
func DefaultAggregationContext(asOf time.Time) AggregationContext {
	return AggregationContext{
		AsOf:               asOf,
		EnableTimeDecay:    false,
		HalfLifeDays:       365,
		EnableSmoothing:    false,
		HassleReviewWeight: 0.5,
	}
}

// DecayWeight returns the multiplicative recency weight for a review
// written at ts. Without decay enabled the weight is 1. Ages are clamped
// to zero so future-dated reviews are not boosted.
func (c AggregationContext) DecayWeight(ts time.Time) float64 {
	if !c.EnableTimeDecay || c.HalfLifeDays <= 0 {
		return 1.0
	}
	ageDays := c.AsOf.Sub(ts).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	return 1.0 / (1.0 + ageDays/c.HalfLifeDays)
}
