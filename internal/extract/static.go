package extract

import (
	"context"
	"fmt"

	"github.com/mhollis/airscore/internal/model"
)

// StaticExtractor is a deterministic extractor producing fixed
// extractions per review ref. Used by tests in place of the LLM
// collaborator.
type StaticExtractor struct {
	// ByReview maps review SourceID to the extractions to return.
	// Refs absent from the map yield no extractions.
	ByReview map[string][]model.ReviewExtraction

	// FailRefs lists review refs whose extraction should fail.
	FailRefs map[string]bool
}

// NewStaticExtractor creates an empty static extractor.
func NewStaticExtractor() *StaticExtractor {
	return &StaticExtractor{
		ByReview: make(map[string][]model.ReviewExtraction),
		FailRefs: make(map[string]bool),
	}
}

// Name returns the provider name
func (e *StaticExtractor) Name() string { return "static" }

// Add registers extractions for a review ref, filling in the ref on
// each entry.
func (e *StaticExtractor) Add(ref string, extractions ...model.ReviewExtraction) {
	for i := range extractions {
		extractions[i].ReviewRef = ref
	}
	e.ByReview[ref] = append(e.ByReview[ref], extractions...)
}

// Extract returns the registered extractions, copying the review's
// ICAO and timestamp like a real extractor would.
func (e *StaticExtractor) Extract(ctx context.Context, review model.RawReview) ([]model.ReviewExtraction, error) {
	if e.FailRefs[review.SourceID] {
		return nil, fmt.Errorf("static extractor: configured failure")
	}

	registered := e.ByReview[review.SourceID]
	extractions := make([]model.ReviewExtraction, len(registered))
	for i, ex := range registered {
		ex.ICAO = review.ICAO
		ex.Timestamp = review.Timestamp
		extractions[i] = ex
	}
	return extractions, nil
}

// ExtractBatch extracts sequentially; determinism matters more than
// throughput in tests.
func (e *StaticExtractor) ExtractBatch(ctx context.Context, reviews []model.RawReview) ([]model.ReviewExtraction, *BatchReport) {
	return batchExtract(ctx, e, reviews, 1)
}
