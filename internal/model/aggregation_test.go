package model

import (
	"testing"
	"time"
)

func TestDecayWeight_Disabled(t *testing.T) {
	ctx := DefaultAggregationContext(time.Now())

	weight := ctx.DecayWeight(time.Now().Add(-10000 * time.Hour))
	if weight != 1.0 {
		t.Errorf("Expected weight 1.0 with decay disabled, got %v", weight)
	}
}

func TestDecayWeight_Monotone(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := AggregationContext{
		AsOf:            asOf,
		EnableTimeDecay: true,
		HalfLifeDays:    180,
	}

	newer := ctx.DecayWeight(asOf.AddDate(0, -1, 0))
	older := ctx.DecayWeight(asOf.AddDate(-2, 0, 0))

	if older > newer {
		t.Errorf("Expected older weight (%v) <= newer weight (%v)", older, newer)
	}
	if newer >= 1.0 {
		t.Errorf("Expected a month-old review to decay below 1.0, got %v", newer)
	}
}

func TestDecayWeight_FutureTimestampClamped(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := AggregationContext{
		AsOf:            asOf,
		EnableTimeDecay: true,
		HalfLifeDays:    180,
	}

	weight := ctx.DecayWeight(asOf.AddDate(0, 1, 0))
	if weight != 1.0 {
		t.Errorf("Expected future-dated review weight 1.0, got %v", weight)
	}
}

func TestFeatureScores_Complete(t *testing.T) {
	scores := make(FeatureScores)
	for _, f := range AllFeatures {
		scores[f] = 0.5
	}
	if !scores.Complete() {
		t.Error("Expected all-eight scores to be complete")
	}

	delete(scores, FeatureFun)
	if scores.Complete() {
		t.Error("Expected seven scores to be incomplete")
	}
}

func TestReviewFilter(t *testing.T) {
	review := RawReview{
		ICAO:      "EGLL",
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	if !(ReviewFilter{}).Matches(review) {
		t.Error("Expected empty filter to match")
	}
	if !(ReviewFilter{ICAOs: []string{"LFPG", "EGLL"}}).Matches(review) {
		t.Error("Expected allow-listed ICAO to match")
	}
	if (ReviewFilter{ICAOs: []string{"LFPG"}}).Matches(review) {
		t.Error("Expected non-listed ICAO not to match")
	}
	if (ReviewFilter{Since: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}).Matches(review) {
		t.Error("Expected review before Since not to match")
	}
}
