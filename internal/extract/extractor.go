// Package extract turns raw review text into structured aspect labels
// via an LLM-backed collaborator. The builder only sees the Extractor
// interface; batching, fan-out, and rate limiting live here.
package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mhollis/airscore/internal/model"
)

// ExtractionError reports a failed extraction for one review.
type ExtractionError struct {
	ReviewRef string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.ReviewRef, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor is the narrow interface to the extraction collaborator.
// Implementations must be idempotent given identical input.
type Extractor interface {
	// Name returns the provider name
	Name() string

	// Extract returns the aspect labels for one review.
	Extract(ctx context.Context, review model.RawReview) ([]model.ReviewExtraction, error)

	// ExtractBatch extracts a batch of reviews. Per-review failures are
	// collected in the report, never aborting the batch.
	ExtractBatch(ctx context.Context, reviews []model.RawReview) ([]model.ReviewExtraction, *BatchReport)
}

// BatchReport collects per-review extraction failures.
type BatchReport struct {
	Failures []*ExtractionError
}

// Config holds extractor configuration.
type Config struct {
	// Provider name: "openai", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for API requests, in seconds
	Timeout int

	// RequestsPerSecond caps the API call rate
	RequestsPerSecond float64

	// Workers bounds the batch fan-out
	Workers int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:          "",
		Model:             "",
		Timeout:           30,
		RequestsPerSecond: 2,
		Workers:           4,
	}
}

// AspectValidator reports whether an aspect name is declared; extractor
// output with undeclared aspects is dropped.
type AspectValidator interface {
	ValidateAspect(name string) error
	AspectNames() []string
}

// New creates an extractor based on configuration.
func New(config Config, validator AspectValidator) (Extractor, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIExtractor(config, validator)

	case "":
		// No provider configured - extraction disabled
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown extractor provider: %s (supported: openai)", config.Provider)
	}
}

// batchExtract runs per-review extraction with a bounded fan-out,
// collecting failures without aborting the batch. Shared by the
// concrete extractors.
func batchExtract(ctx context.Context, e Extractor, reviews []model.RawReview, workers int) ([]model.ReviewExtraction, *BatchReport) {
	if workers <= 0 {
		workers = 1
	}

	type slot struct {
		extractions []model.ReviewExtraction
		err         *ExtractionError
	}

	slots := make([]slot, len(reviews))
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, review := range reviews {
		wg.Add(1)
		go func(idx int, r model.RawReview) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				slots[idx].err = &ExtractionError{ReviewRef: r.SourceID, Err: ctx.Err()}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			extractions, err := e.Extract(ctx, r)
			if err != nil {
				slots[idx].err = &ExtractionError{ReviewRef: r.SourceID, Err: err}
				return
			}
			slots[idx].extractions = extractions
		}(i, review)
	}
	wg.Wait()

	var all []model.ReviewExtraction
	report := &BatchReport{}
	for _, s := range slots {
		if s.err != nil {
			report.Failures = append(report.Failures, s.err)
			continue
		}
		all = append(all, s.extractions...)
	}

	return all, report
}
