// Package source provides pluggable review providers. Every provider
// prefixes its record IDs with its own tag so identity collisions
// across providers are structurally impossible.
package source

import (
	"context"
	"fmt"

	"github.com/mhollis/airscore/internal/model"
)

// Source yields raw review records matching a filter.
type Source interface {
	// Name returns the provider tag used to prefix record IDs.
	Name() string

	// Fetch returns all reviews matching the filter.
	Fetch(ctx context.Context, filter model.ReviewFilter) ([]model.RawReview, error)
}

// PrefixID builds a globally unique record ID from a provider tag and a
// provider-local ID.
func PrefixID(tag, id string) string {
	return tag + ":" + id
}

// SourceFailure records one provider's failure during a composite fetch.
type SourceFailure struct {
	Source string `json:"source"`
	Err    string `json:"error"`
}

// FetchReport collects per-source failures from a composite fetch.
// Failures are reported, not propagated, so one bad provider never
// prevents the others from yielding records.
type FetchReport struct {
	Failures []SourceFailure `json:"failures,omitempty"`
}

// Composite merges reviews from multiple sources.
type Composite struct {
	sources []Source
}

// NewComposite creates a composite over the given sources.
func NewComposite(sources ...Source) *Composite {
	return &Composite{sources: sources}
}

// Name returns the provider tag.
func (c *Composite) Name() string { return "composite" }

// Fetch pulls from every source in order. A failing source is recorded
// in the report and skipped.
func (c *Composite) Fetch(ctx context.Context, filter model.ReviewFilter) ([]model.RawReview, error) {
	reviews, _ := c.FetchAll(ctx, filter)
	return reviews, nil
}

// FetchAll is Fetch plus the per-source failure report.
func (c *Composite) FetchAll(ctx context.Context, filter model.ReviewFilter) ([]model.RawReview, *FetchReport) {
	var all []model.RawReview
	report := &FetchReport{}

	for _, s := range c.sources {
		reviews, err := s.Fetch(ctx, filter)
		if err != nil {
			report.Failures = append(report.Failures, SourceFailure{
				Source: s.Name(),
				Err:    fmt.Sprintf("%v", err),
			})
			continue
		}
		all = append(all, reviews...)
	}

	return all, report
}
