package feature

import (
	"sort"

	"github.com/mhollis/airscore/internal/model"
)

// TagAggregates computes per-aspect aggregates for one airport's
// extractions, sorted by aspect name for deterministic persistence.
func TagAggregates(extractions []model.ReviewExtraction) []model.TagAggregate {
	type acc struct {
		count       int
		weightTotal float64
		weightedSum float64
	}
	byAspect := make(map[string]*acc)

	for _, ex := range extractions {
		a := byAspect[ex.Aspect]
		if a == nil {
			a = &acc{}
			byAspect[ex.Aspect] = a
		}
		a.count++
		a.weightTotal += ex.Confidence
		a.weightedSum += ex.Confidence * ex.LabelValue()
	}

	aspects := make([]string, 0, len(byAspect))
	for aspect := range byAspect {
		aspects = append(aspects, aspect)
	}
	sort.Strings(aspects)

	aggregates := make([]model.TagAggregate, 0, len(aspects))
	for _, aspect := range aspects {
		a := byAspect[aspect]
		agg := model.TagAggregate{
			Aspect:      aspect,
			Count:       a.count,
			WeightTotal: a.weightTotal,
		}
		if a.weightTotal > 0 {
			agg.MeanValue = a.weightedSum / a.weightTotal
		}
		aggregates = append(aggregates, agg)
	}

	return aggregates
}

// Stats aggregates review counts, ratings, and landing fees into the
// six fixed MTOW bands for one airport. Fee values come from reviews
// that report one plus any fee records from fee-capable sources; fees
// for unknown aircraft types are dropped.
func Stats(icao string, reviews []model.RawReview, fees []model.FeeRecord) model.AirportStats {
	stats := model.AirportStats{
		ICAO:        icao,
		ReviewCount: len(reviews),
	}

	var ratingSum float64
	type bandAcc struct {
		sum   float64
		count int
	}
	bands := make(map[model.FeeBand]*bandAcc)

	addFee := func(aircraftType string, amount float64) {
		mtow, ok := model.MTOWForType(aircraftType)
		if !ok {
			return
		}
		band := model.BandForMTOW(mtow)
		acc := bands[band]
		if acc == nil {
			acc = &bandAcc{}
			bands[band] = acc
		}
		acc.sum += amount
		acc.count++
	}

	for _, r := range reviews {
		if r.Rating != nil {
			ratingSum += *r.Rating
			stats.RatingCount++
		}
		if r.LandingFee != nil && r.AircraftType != "" {
			addFee(r.AircraftType, *r.LandingFee)
		}
	}
	for _, fee := range fees {
		addFee(fee.AircraftType, fee.Amount)
	}

	if stats.RatingCount > 0 {
		stats.RatingMean = ratingSum / float64(stats.RatingCount)
	}

	if len(bands) > 0 {
		stats.FeeBands = make(map[model.FeeBand]model.BandAggregate, len(bands))
		for band, acc := range bands {
			stats.FeeBands[band] = model.BandAggregate{
				Count:   acc.count,
				FeeMean: acc.sum / float64(acc.count),
			}
		}
	}

	return stats
}
