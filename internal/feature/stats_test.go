package feature

import (
	"math"
	"testing"
	"time"

	"github.com/mhollis/airscore/internal/model"
)

func TestTagAggregates(t *testing.T) {
	extractions := []model.ReviewExtraction{
		{ReviewRef: "r1", Aspect: "scenery", Label: model.SentimentPositive, Confidence: 0.8},
		{ReviewRef: "r2", Aspect: "scenery", Label: model.SentimentNegative, Confidence: 0.4},
		{ReviewRef: "r1", Aspect: "bureaucracy", Label: model.SentimentNeutral, Confidence: 1.0},
	}

	aggregates := TagAggregates(extractions)
	if len(aggregates) != 2 {
		t.Fatalf("Expected 2 aggregates, got %d", len(aggregates))
	}

	// Sorted by aspect name.
	if aggregates[0].Aspect != "bureaucracy" || aggregates[1].Aspect != "scenery" {
		t.Errorf("Expected sorted aspects [bureaucracy scenery], got [%s %s]", aggregates[0].Aspect, aggregates[1].Aspect)
	}

	scenery := aggregates[1]
	if scenery.Count != 2 {
		t.Errorf("Expected scenery count 2, got %d", scenery.Count)
	}
	if math.Abs(scenery.WeightTotal-1.2) > 1e-9 {
		t.Errorf("Expected scenery weight total 1.2, got %v", scenery.WeightTotal)
	}
	want := (0.8*1.0 + 0.4*0.0) / 1.2
	if math.Abs(scenery.MeanValue-want) > 1e-9 {
		t.Errorf("Expected scenery mean %v, got %v", want, scenery.MeanValue)
	}
}

func TestStats_FeeBands(t *testing.T) {
	rating := 4.0
	fee := 25.0
	reviews := []model.RawReview{
		{SourceID: "a", ICAO: "EGLL", Timestamp: time.Now(), Rating: &rating, AircraftType: "C172", LandingFee: &fee},
		{SourceID: "b", ICAO: "EGLL", Timestamp: time.Now()},
	}
	fees := []model.FeeRecord{
		{ICAO: "EGLL", AircraftType: "C172", Amount: 35.0},
		{ICAO: "EGLL", AircraftType: "PA46", Amount: 90.0},
		{ICAO: "EGLL", AircraftType: "UNKNOWN_TYPE", Amount: 500.0},
	}

	stats := Stats("EGLL", reviews, fees)

	if stats.ReviewCount != 2 {
		t.Errorf("Expected review count 2, got %d", stats.ReviewCount)
	}
	if stats.RatingCount != 1 || stats.RatingMean != 4.0 {
		t.Errorf("Expected rating mean 4.0 over 1 rating, got %v over %d", stats.RatingMean, stats.RatingCount)
	}

	// C172 fees (review 25 + record 35) land in the 750-1199kg band.
	band, ok := stats.FeeBands[model.Band750_1199]
	if !ok {
		t.Fatal("Expected C172 fees in the 750-1199kg band")
	}
	if band.Count != 2 || math.Abs(band.FeeMean-30.0) > 1e-9 {
		t.Errorf("Expected 2 fees with mean 30.0, got %d with mean %v", band.Count, band.FeeMean)
	}

	// PA46 (1950kg) lands in the 1200-1999kg band.
	if banded, ok := stats.FeeBands[model.Band1200_1999]; !ok || banded.Count != 1 {
		t.Errorf("Expected one PA46 fee in the 1200-1999kg band, got %+v", banded)
	}

	// The unknown type contributes nothing.
	total := 0
	for _, b := range stats.FeeBands {
		total += b.Count
	}
	if total != 3 {
		t.Errorf("Expected 3 banded fees (unknown type dropped), got %d", total)
	}
}

func TestStats_Empty(t *testing.T) {
	stats := Stats("LFAB", nil, nil)
	if stats.ReviewCount != 0 || stats.RatingCount != 0 || stats.FeeBands != nil {
		t.Errorf("Expected empty stats, got %+v", stats)
	}
}
