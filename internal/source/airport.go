package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mhollis/airscore/internal/cache"
	"github.com/mhollis/airscore/internal/model"
)

// FeeFetcher is implemented by sources that can yield landing-fee
// records per airport.
type FeeFetcher interface {
	FetchFees(ctx context.Context, icao string) ([]model.FeeRecord, error)
}

// AirportSource pulls reviews per airport from a provider exposing
// per-ICAO endpoints, with an optional fee endpoint.
type AirportSource struct {
	export  *ExportSource // Shares download/robots/limiter plumbing
	baseURL string
	fees    bool
}

// NewAirportSource creates a per-airport source. baseURL is the
// provider root; reviews are fetched from
// {base}/airports/{icao}/reviews.json and fees, when enabled, from
// {base}/airports/{icao}/fees.json.
func NewAirportSource(cfg ExportConfig, fetcher *cache.Fetcher, withFees bool) *AirportSource {
	if cfg.Tag == "export" {
		cfg.Tag = "airport"
	}
	return &AirportSource{
		export:  NewExportSource(cfg, fetcher),
		baseURL: strings.TrimRight(cfg.ExportURL, "/"),
		fees:    withFees,
	}
}

// Name returns the provider tag.
func (s *AirportSource) Name() string { return s.export.tag }

// Fetch pulls reviews for every airport in the filter's allow-list.
// An empty allow-list is an error for this provider; enumerating every
// airport is the bulk export's job.
func (s *AirportSource) Fetch(ctx context.Context, filter model.ReviewFilter) ([]model.RawReview, error) {
	if len(filter.ICAOs) == 0 {
		return nil, fmt.Errorf("airport source requires an ICAO allow-list")
	}

	var reviews []model.RawReview
	for _, icao := range filter.ICAOs {
		url := fmt.Sprintf("%s/airports/%s/reviews.json", s.baseURL, icao)
		key := cache.Key(s.export.tag, "reviews", icao)

		data, err := s.export.fetcher.Fetch(ctx, key, s.export.policy, func(ctx context.Context) ([]byte, error) {
			return s.export.download(ctx, url)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", icao, err)
		}

		var records []exportReview
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse %s reviews: %w", icao, err)
		}

		for _, rec := range records {
			review := model.RawReview{
				Source:       s.export.tag,
				SourceID:     PrefixID(s.export.tag, rec.ID),
				ICAO:         icao,
				Text:         rec.Text,
				Timestamp:    rec.Timestamp,
				AircraftType: rec.AircraftType,
				Rating:       rec.Rating,
				LandingFee:   rec.LandingFee,
			}
			if filter.Matches(review) {
				reviews = append(reviews, review)
			}
		}
	}

	return reviews, nil
}

// FetchFees pulls landing-fee records for one airport. Returns nil when
// the fee endpoint is disabled.
func (s *AirportSource) FetchFees(ctx context.Context, icao string) ([]model.FeeRecord, error) {
	if !s.fees {
		return nil, nil
	}

	url := fmt.Sprintf("%s/airports/%s/fees.json", s.baseURL, icao)
	key := cache.Key(s.export.tag, "fees", icao)

	data, err := s.export.fetcher.Fetch(ctx, key, s.export.policy, func(ctx context.Context) ([]byte, error) {
		return s.export.download(ctx, url)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s fees: %w", icao, err)
	}

	var fees []model.FeeRecord
	if err := json.Unmarshal(data, &fees); err != nil {
		return nil, fmt.Errorf("parse %s fees: %w", icao, err)
	}
	for i := range fees {
		fees[i].ICAO = icao
	}

	return fees, nil
}
