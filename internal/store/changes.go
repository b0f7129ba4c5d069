package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"sort"
	"time"

	"github.com/mhollis/airscore/internal/model"
)

var errIncompleteScores = errors.New("feature scores incomplete")

// ReviewState is the per-airport change-detection state.
type ReviewState struct {
	ICAO          string
	ContentHash   string
	ReviewCount   int
	LastProcessed time.Time
	Skip          bool
}

// ContentHash computes the change-detection hash over a review set:
// SHA-256 of the sorted record IDs and texts, independent of fetch
// order.
func ContentHash(reviews []model.RawReview) string {
	keys := make([]string, len(reviews))
	for i, r := range reviews {
		keys[i] = r.SourceID + "\x00" + r.Text
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, key := range keys {
		h.Write([]byte(key))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NewReviewState builds the state to persist after processing reviews.
func NewReviewState(icao string, reviews []model.RawReview) ReviewState {
	state := ReviewState{
		ICAO:        icao,
		ContentHash: ContentHash(reviews),
		ReviewCount: len(reviews),
	}
	for _, r := range reviews {
		if r.Timestamp.After(state.LastProcessed) {
			state.LastProcessed = r.Timestamp
		}
	}
	return state
}

// reviewState loads the stored state for one airport.
func (s *Store) reviewState(icao string) (*ReviewState, error) {
	var state ReviewState
	err := s.db.QueryRow(`
		SELECT icao, content_hash, review_count, last_processed, skip_until_forced
		FROM review_state WHERE icao = ?
	`, icao).Scan(&state.ICAO, &state.ContentHash, &state.ReviewCount, &state.LastProcessed, &state.Skip)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("load review state", err)
	}
	return &state, nil
}

// HasChanges reports whether an airport's review set differs from the
// last processed run. Three strategies are tried in order -- content
// hash, row-count delta, last-processed timestamp -- and the first
// positive signal wins. An airport never processed always has changes.
func (s *Store) HasChanges(icao string, reviews []model.RawReview) (bool, error) {
	state, err := s.reviewState(icao)
	if err != nil {
		return false, err
	}
	if state == nil {
		return true, nil
	}

	if ContentHash(reviews) != state.ContentHash {
		return true, nil
	}
	if len(reviews) != state.ReviewCount {
		return true, nil
	}
	for _, r := range reviews {
		if r.Timestamp.After(state.LastProcessed) {
			return true, nil
		}
	}

	return false, nil
}

// IsSkipped reports whether an airport carries the skip-until-forced
// marker from a previous FailureModeSkip run.
func (s *Store) IsSkipped(icao string) (bool, error) {
	state, err := s.reviewState(icao)
	if err != nil {
		return false, err
	}
	return state != nil && state.Skip, nil
}

// ClearSkipMarkers removes all skip-until-forced markers (forced/full
// rebuilds retry everything).
func (s *Store) ClearSkipMarkers() error {
	if _, err := s.db.Exec(`UPDATE review_state SET skip_until_forced = 0`); err != nil {
		return storageErr("clear skip markers", err)
	}
	return nil
}
