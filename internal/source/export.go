package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mhollis/airscore/internal/cache"
	"github.com/mhollis/airscore/internal/model"
)

// exportReview is the wire format of the bulk export document.
type exportReview struct {
	ID           string    `json:"id"`
	ICAO         string    `json:"icao"`
	Text         string    `json:"text"`
	Timestamp    time.Time `json:"timestamp"`
	AircraftType string    `json:"aircraft_type,omitempty"`
	Rating       *float64  `json:"rating,omitempty"`
	LandingFee   *float64  `json:"landing_fee,omitempty"`
}

// ExportSource pulls reviews from a bulk HTTP JSON export, honoring
// robots.txt and per-domain rate limits, with all responses going
// through the cache layer.
type ExportSource struct {
	tag       string
	exportURL string
	policy    cache.RefreshPolicy
	fetcher   *cache.Fetcher
	robots    *robotsChecker
	limiter   *limiter
	client    *http.Client
	userAgent string
}

// ExportConfig configures an ExportSource.
type ExportConfig struct {
	Tag               string
	ExportURL         string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Policy            cache.RefreshPolicy
}

// DefaultExportConfig returns sensible defaults.
func DefaultExportConfig(exportURL string) ExportConfig {
	return ExportConfig{
		Tag:               "export",
		ExportURL:         exportURL,
		UserAgent:         "airscore/0.1 (+https://github.com/mhollis/airscore)",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 1,
		Policy:            cache.RefreshDefault,
	}
}

// NewExportSource creates a bulk export source.
func NewExportSource(cfg ExportConfig, fetcher *cache.Fetcher) *ExportSource {
	return &ExportSource{
		tag:       cfg.Tag,
		exportURL: cfg.ExportURL,
		policy:    cfg.Policy,
		fetcher:   fetcher,
		robots:    newRobotsChecker(cfg.UserAgent, cfg.Timeout),
		limiter:   newLimiter(cfg.RequestsPerSecond, 2),
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
}

// Name returns the provider tag.
func (s *ExportSource) Name() string { return s.tag }

// Fetch downloads (or reads from cache) the export document and returns
// the reviews matching the filter.
func (s *ExportSource) Fetch(ctx context.Context, filter model.ReviewFilter) ([]model.RawReview, error) {
	key := cache.Key(s.tag, s.exportURL)
	data, err := s.fetcher.Fetch(ctx, key, s.policy, func(ctx context.Context) ([]byte, error) {
		return s.download(ctx, s.exportURL)
	})
	if err != nil {
		return nil, fmt.Errorf("export fetch: %w", err)
	}

	var records []exportReview
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}

	var reviews []model.RawReview
	for _, rec := range records {
		review := model.RawReview{
			Source:       s.tag,
			SourceID:     PrefixID(s.tag, rec.ID),
			ICAO:         rec.ICAO,
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

	return reviews, nil
}

// download performs the rate-limited, robots-checked HTTP GET.
func (s *ExportSource) download(ctx context.Context, rawURL string) ([]byte, error) {
	allowed, crawlDelay := s.robots.canFetch(ctx, rawURL)
	if !allowed {
		return nil, fmt.Errorf("robots.txt disallows %s", rawURL)
	}

	if err := s.limiter.wait(ctx, rawURL, crawlDelay); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
