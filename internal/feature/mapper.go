// Package feature aggregates extracted aspect labels into the eight
// normalized per-airport feature scores.
package feature

import (
	"fmt"

	"github.com/mhollis/airscore/internal/model"
	"github.com/mhollis/airscore/internal/ontology"
)

// MappingError reports a feature with zero contributing data points
// when smoothing is disabled and no fallback default is configured.
type MappingError struct {
	ICAO    string
	Feature model.Feature
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("feature %q for %s: no contributing data and no fallback", e.Feature, e.ICAO)
}

// Mapper turns extractions for one airport into feature scores.
type Mapper struct {
	onto *ontology.Ontology
}

// NewMapper creates a mapper over the loaded ontology.
func NewMapper(onto *ontology.Ontology) *Mapper {
	return &Mapper{onto: onto}
}

// accumulator tracks the weighted aggregate for one feature.
type accumulator struct {
	weightedSum float64
	weightTotal float64
	reviews     map[string]bool // Distinct contributing review refs
}

// Scores computes the eight feature scores for one airport.
//
// Per-review weight is confidence times the optional recency decay.
// The hassle feature additionally blends the externally supplied AIP
// contribution; when one of the two hassle signals is absent the other
// passes through unmodified.
func (m *Mapper) Scores(icao string, extractions []model.ReviewExtraction, aipHassle *float64, aggCtx model.AggregationContext) (model.FeatureScores, error) {
	accs := make(map[model.Feature]*accumulator, len(model.AllFeatures))
	for _, f := range model.AllFeatures {
		accs[f] = &accumulator{reviews: make(map[string]bool)}
	}

	for _, ex := range extractions {
		feature, ok := m.onto.FeatureFor(ex.Aspect)
		if !ok {
			continue
		}

		weight := ex.Confidence * aggCtx.DecayWeight(ex.Timestamp)
		if weight <= 0 {
			continue
		}

		acc := accs[feature]
		acc.weightedSum += weight * ex.LabelValue()
		acc.weightTotal += weight
		acc.reviews[ex.ReviewRef] = true
	}

	scores := make(model.FeatureScores, len(model.AllFeatures))
	for _, f := range model.AllFeatures {
		acc := accs[f]

		if f == model.FeatureHassle {
			score, err := m.hassleScore(icao, acc, aipHassle, aggCtx)
			if err != nil {
				return nil, err
			}
			scores[f] = score
			continue
		}

		score, err := m.featureScore(icao, f, acc, aggCtx)
		if err != nil {
			return nil, err
		}
		scores[f] = score
	}

	return scores, nil
}

// featureScore resolves one feature from its accumulator, applying
// smoothing or fallback for sparse data.
func (m *Mapper) featureScore(icao string, f model.Feature, acc *accumulator, aggCtx model.AggregationContext) (float64, error) {
	n := float64(len(acc.reviews))

	if acc.weightTotal == 0 {
		if aggCtx.EnableSmoothing {
			if prior, ok := aggCtx.Priors[f]; ok && prior.K > 0 {
				return prior.Mean, nil
			}
		}
		if aggCtx.FallbackScore != nil {
			return *aggCtx.FallbackScore, nil
		}
		return 0, &MappingError{ICAO: icao, Feature: f}
	}

	local := acc.weightedSum / acc.weightTotal

	if aggCtx.EnableSmoothing {
		if prior, ok := aggCtx.Priors[f]; ok && prior.K > 0 {
			return (local*n + prior.Mean*prior.K) / (n + prior.K), nil
		}
	}

	return local, nil
}

// hassleScore blends the review-derived bureaucracy signal with the
// AIP-derived notification contribution. An absent side never pulls
// the other toward a default.
func (m *Mapper) hassleScore(icao string, acc *accumulator, aipHassle *float64, aggCtx model.AggregationContext) (float64, error) {
	hasReviews := acc.weightTotal > 0

	if !hasReviews && aipHassle != nil {
		return *aipHassle, nil
	}
	if !hasReviews {
		// Neither signal present: same sparse-data rules as any feature.
		return m.featureScore(icao, model.FeatureHassle, acc, aggCtx)
	}

	reviewScore, err := m.featureScore(icao, model.FeatureHassle, acc, aggCtx)
	if err != nil {
		return 0, err
	}
	if aipHassle == nil {
		return reviewScore, nil
	}

	w := aggCtx.HassleReviewWeight
	if w < 0 || w > 1 {
		w = 0.5
	}
	return w*reviewScore + (1-w)*(*aipHassle), nil
}

// HassleBlend recomputes the hassle score from persisted tag
// aggregates plus a fresh AIP contribution. Used by the incremental
// AIP pass, which rescores hassle without re-extracting reviews.
func (m *Mapper) HassleBlend(aggregates []model.TagAggregate, aipHassle *float64, aggCtx model.AggregationContext) (float64, bool) {
	var weightedSum, weightTotal float64
	for _, agg := range aggregates {
		feature, ok := m.onto.FeatureFor(agg.Aspect)
		if !ok || feature != model.FeatureHassle {
			continue
		}
		weightedSum += agg.WeightTotal * agg.MeanValue
		weightTotal += agg.WeightTotal
	}

	if weightTotal == 0 {
		if aipHassle != nil {
			return *aipHassle, true
		}
		return 0, false
	}

	reviewScore := weightedSum / weightTotal
	if aipHassle == nil {
		return reviewScore, true
	}

	w := aggCtx.HassleReviewWeight
	if w < 0 || w > 1 {
		w = 0.5
	}
	return w*reviewScore + (1-w)*(*aipHassle), true
}

// ComputePriors computes per-feature global priors from the full
// extraction set: the confidence-weighted global mean per feature with
// the supplied pseudo-count. Features with no data get no prior.
func (m *Mapper) ComputePriors(extractions []model.ReviewExtraction, pseudoCount float64) model.GlobalPriors {
	sums := make(map[model.Feature]float64)
	weights := make(map[model.Feature]float64)

	for _, ex := range extractions {
		feature, ok := m.onto.FeatureFor(ex.Aspect)
		if !ok || ex.Confidence <= 0 {
			continue
		}
		sums[feature] += ex.Confidence * ex.LabelValue()
		weights[feature] += ex.Confidence
	}

	priors := make(model.GlobalPriors, len(sums))
	for feature, total := range weights {
		if total <= 0 {
			continue
		}
		priors[feature] = model.Prior{
			Mean: sums[feature] / total,
			K:    pseudoCount,
		}
	}

	return priors
}
