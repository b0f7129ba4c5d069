package model

// Feature is one of the eight normalized friendliness dimensions.
type Feature string

const (
	FeatureCost        Feature = "cost"
	FeatureHassle      Feature = "hassle"
	FeatureReview      Feature = "review"
	FeatureOpsIFR      Feature = "ops_ifr"
	FeatureOpsVFR      Feature = "ops_vfr"
	FeatureAccess      Feature = "access"
	FeatureFun         Feature = "fun"
	FeatureHospitality Feature = "hospitality"
)

// AllFeatures lists the eight features in canonical (persistence) order.
var AllFeatures = []Feature{
	FeatureCost,
	FeatureHassle,
	FeatureReview,
	FeatureOpsIFR,
	FeatureOpsVFR,
	FeatureAccess,
	FeatureFun,
	FeatureHospitality,
}

// KnownFeature reports whether name is one of the eight features.
func KnownFeature(name string) bool {
	for _, f := range AllFeatures {
		if string(f) == name {
			return true
		}
	}
	return false
}

// FeatureScores holds the eight per-airport scores in [0,1].
// Invariant: either all eight features are present or the airport has
// no scores at all; partial score sets are never persisted.
type FeatureScores map[Feature]float64

// Complete reports whether all eight features are present.
func (s FeatureScores) Complete() bool {
	for _, f := range AllFeatures {
		if _, ok := s[f]; !ok {
			return false
		}
	}
	return true
}

// PersonaScores maps persona IDs to their weighted score for one airport.
type PersonaScores map[string]float64

// TagAggregate is the per-aspect aggregate persisted alongside the
// feature scores for one airport.
type TagAggregate struct {
	Aspect      string  `json:"aspect"`
	Count       int     `json:"count"`      // Number of extractions
	WeightTotal float64 `json:"weight"`     // Sum of confidences
	MeanValue   float64 `json:"mean_value"` // Confidence-weighted mean label value
}

// Prior is the global prior for one feature, used by Bayesian smoothing.
type Prior struct {
	Mean float64 `json:"prior_mean"`   // Global mean of the feature across all airports
	K    float64 `json:"pseudo_count"` // Pseudo-count weight of the prior
}

// GlobalPriors holds per-feature priors, computed once per build (or
// supplied fixed) and persisted for reproducibility.
type GlobalPriors map[Feature]Prior
