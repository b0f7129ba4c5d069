package model

import "time"

// RawReview is a single review record as produced by a review source.
// Immutable once produced. Source disambiguates identical IDs across
// providers; sources prefix SourceID with their provider tag.
type RawReview struct {
	Source       string    `json:"source"`                  // Provider tag (e.g., "csv", "export")
	SourceID     string    `json:"source_id"`               // Globally unique, provider-prefixed
	ICAO         string    `json:"airport_icao"`            // Four-letter airport identifier
	Text         string    `json:"text"`                    // Free-form review text
	Timestamp    time.Time `json:"timestamp"`               // When the review was written
	AircraftType string    `json:"aircraft_type,omitempty"` // Optional ICAO type designator (e.g., "C172")
	Rating       *float64  `json:"rating,omitempty"`        // Optional overall rating in [0,5]
	LandingFee   *float64  `json:"landing_fee,omitempty"`   // Optional reported landing fee
}

// ReviewFilter selects reviews from a source.
type ReviewFilter struct {
	ICAOs []string  `json:"icaos,omitempty"` // Allow-list; empty means all airports
	Since time.Time `json:"since,omitempty"` // Zero value means no lower bound
}

// Matches reports whether a review passes the filter.
func (f ReviewFilter) Matches(r RawReview) bool {
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if len(f.ICAOs) == 0 {
		return true
	}
	for _, icao := range f.ICAOs {
		if icao == r.ICAO {
			return true
		}
	}
	return false
}

// Sentiment is the normalized polarity of an aspect label.
type Sentiment string

const (
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
)

// Value maps a sentiment onto [0,1].
func (s Sentiment) Value() float64 {
	switch s {
	case SentimentNegative:
		return 0.0
	case SentimentPositive:
		return 1.0
	default:
		return 0.5
	}
}

// Valid reports whether the sentiment is one of the three known labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentNegative, SentimentNeutral, SentimentPositive:
		return true
	}
	return false
}

// ReviewExtraction is one structured aspect label produced by the
// extractor for a review. Timestamp is copied from the source review
// so recency decay can be applied downstream.
type ReviewExtraction struct {
	ReviewRef  string    `json:"review_ref"`      // RawReview.SourceID
	ICAO       string    `json:"airport_icao"`    // Copied from the source review
	Aspect     string    `json:"aspect"`          // Ontology aspect name
	Label      Sentiment `json:"label"`           // Normalized polarity
	Value      *float64  `json:"value,omitempty"` // Optional continuous value in [0,1], overrides Label
	Confidence float64   `json:"confidence"`      // Extractor confidence in [0,1]
	Timestamp  time.Time `json:"timestamp"`       // Copied from the source review
}

// LabelValue returns the continuous value when present, otherwise the
// sentiment mapping.
func (e ReviewExtraction) LabelValue() float64 {
	if e.Value != nil {
		return *e.Value
	}
	return e.Label.Value()
}
