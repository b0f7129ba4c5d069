package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mhollis/airscore/internal/model"
)

// CSVSource reads reviews from a delimited file, mainly for test data
// and offline fixtures.
//
// Expected columns: id, icao, timestamp (RFC 3339), text, and optional
// aircraft_type, rating, landing_fee. A header row is skipped when the
// first field is "id".
type CSVSource struct {
	path string
	tag  string
}

// NewCSVSource creates a source reading the given file.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path, tag: "csv"}
}

// Name returns the provider tag.
func (s *CSVSource) Name() string { return s.tag }

// Fetch reads and filters all records from the file.
func (s *CSVSource) Fetch(ctx context.Context, filter model.ReviewFilter) ([]model.RawReview, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var reviews []model.RawReview
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		line++

		if line == 1 && len(record) > 0 && record[0] == "id" {
			continue
		}
		if len(record) < 4 {
			return nil, fmt.Errorf("%s line %d: expected at least 4 fields, got %d", s.path, line, len(record))
		}

		ts, err := time.Parse(time.RFC3339, record[2])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: parse timestamp: %w", s.path, line, err)
		}

		review := model.RawReview{
			Source:    s.tag,
			SourceID:  PrefixID(s.tag, record[0]),
			ICAO:      record[1],
			Timestamp: ts,
			Text:      record[3],
		}

		if len(record) > 4 && record[4] != "" {
			review.AircraftType = record[4]
		}
		if len(record) > 5 && record[5] != "" {
			rating, err := strconv.ParseFloat(record[5], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: parse rating: %w", s.path, line, err)
			}
			review.Rating = &rating
		}
		if len(record) > 6 && record[6] != "" {
			fee, err := strconv.ParseFloat(record[6], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: parse landing fee: %w", s.path, line, err)
			}
			review.LandingFee = &fee
		}

		if filter.Matches(review) {
			reviews = append(reviews, review)
		}
	}

	return reviews, nil
}
