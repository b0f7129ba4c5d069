package store

import (
	"context"
	"testing"
	"time"

	"github.com/mhollis/airscore/internal/model"
)

func reviewAt(id, text string, ts time.Time) model.RawReview {
	return model.RawReview{Source: "csv", SourceID: id, ICAO: "EGLL", Text: text, Timestamp: ts}
}

func TestContentHash_OrderIndependent(t *testing.T) {
	ts := time.Now()
	a := reviewAt("csv:1", "great cafe", ts)
	b := reviewAt("csv:2", "steep fees", ts)

	if ContentHash([]model.RawReview{a, b}) != ContentHash([]model.RawReview{b, a}) {
		t.Error("Expected the hash to ignore fetch order")
	}
	if ContentHash([]model.RawReview{a}) == ContentHash([]model.RawReview{a, b}) {
		t.Error("Expected different hashes for different sets")
	}
}

func TestContentHash_TextChanges(t *testing.T) {
	ts := time.Now()
	before := ContentHash([]model.RawReview{reviewAt("csv:1", "original", ts)})
	after := ContentHash([]model.RawReview{reviewAt("csv:1", "edited", ts)})
	if before == after {
		t.Error("Expected an edited review text to change the hash")
	}
}

func saveState(t *testing.T, s *Store, reviews []model.RawReview) {
	t.Helper()
	tx, err := s.BeginAirport(context.Background(), "EGLL")
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	if err := tx.SaveReviewState(NewReviewState("EGLL", reviews)); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
}

func TestHasChanges(t *testing.T) {
	s := testStore(t)
	ts := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	reviews := []model.RawReview{
		reviewAt("csv:1", "great cafe", ts),
		reviewAt("csv:2", "steep fees", ts),
	}

	// Never processed: always has changes.
	changed, err := s.HasChanges("EGLL", reviews)
	if err != nil {
		t.Fatalf("Failed to check: %v", err)
	}
	if !changed {
		t.Error("Expected changes for an airport never processed")
	}

	saveState(t, s, reviews)

	// Identical set: no changes.
	changed, err = s.HasChanges("EGLL", reviews)
	if err != nil {
		t.Fatalf("Failed to check: %v", err)
	}
	if changed {
		t.Error("Expected no changes for an identical review set")
	}

	// New review: changes.
	grown := append(reviews, reviewAt("csv:3", "new visit", ts.AddDate(0, 1, 0)))
	changed, err = s.HasChanges("EGLL", grown)
	if err != nil {
		t.Fatalf("Failed to check: %v", err)
	}
	if !changed {
		t.Error("Expected changes when a review is added")
	}

	// Same IDs, edited text: the content hash catches it even though
	// count and timestamps are unchanged.
	edited := []model.RawReview{
		reviewAt("csv:1", "great cafe, now closed", ts),
		reviewAt("csv:2", "steep fees", ts),
	}
	changed, err = s.HasChanges("EGLL", edited)
	if err != nil {
		t.Fatalf("Failed to check: %v", err)
	}
	if !changed {
		t.Error("Expected the content hash to catch an edited review")
	}
}

func TestSkipMarkers(t *testing.T) {
	s := testStore(t)

	skipped, err := s.IsSkipped("EGLL")
	if err != nil {
		t.Fatalf("Failed to check: %v", err)
	}
	if skipped {
		t.Error("Expected no skip marker on a fresh database")
	}

	if err := s.MarkSkipped("EGLL"); err != nil {
		t.Fatalf("Failed to mark: %v", err)
	}
	skipped, err = s.IsSkipped("EGLL")
	if err != nil {
		t.Fatalf("Failed to check: %v", err)
	}
	if !skipped {
		t.Error("Expected the skip marker to be set")
	}

	list, err := s.SkippedAirports()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(list) != 1 || list[0] != "EGLL" {
		t.Errorf("Expected [EGLL], got %v", list)
	}

	// A successful processing run clears the marker.
	saveState(t, s, []model.RawReview{reviewAt("csv:1", "ok", time.Now())})
	skipped, err = s.IsSkipped("EGLL")
	if err != nil {
		t.Fatalf("Failed to check: %v", err)
	}
	if skipped {
		t.Error("Expected SaveReviewState to clear the skip marker")
	}
}

func TestClearSkipMarkers(t *testing.T) {
	s := testStore(t)

	for _, icao := range []string{"EGLL", "LFAB"} {
		if err := s.MarkSkipped(icao); err != nil {
			t.Fatalf("Failed to mark %s: %v", icao, err)
		}
	}
	if err := s.ClearSkipMarkers(); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}

	list, err := s.SkippedAirports()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected no skipped airports after clearing, got %v", list)
	}
}
