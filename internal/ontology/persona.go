package ontology

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mhollis/airscore/internal/model"
)

// MissingBehavior controls how a persona treats a feature with no score.
type MissingBehavior string

const (
	MissingNeutral  MissingBehavior = "NEUTRAL"  // Substitute 0.5
	MissingNegative MissingBehavior = "NEGATIVE" // Substitute 0.0
	MissingPositive MissingBehavior = "POSITIVE" // Substitute 1.0
	MissingExclude  MissingBehavior = "EXCLUDE"  // Drop feature and weight
)

// PersonaError reports an unusable persona configuration. A persona
// that can never be scored is a configuration bug, not a runtime
// degenerate case.
type PersonaError struct {
	Persona string
	Reason  string
}

func (e *PersonaError) Error() string {
	return fmt.Sprintf("persona %q: %s", e.Persona, e.Reason)
}

// Persona is a named pilot profile with feature weights and per-feature
// missing-data policy.
type Persona struct {
	ID      string                            `yaml:"id"`
	Weights map[model.Feature]float64         `yaml:"weights"`
	Missing map[model.Feature]MissingBehavior `yaml:"missing_behavior"`
}

// Personas holds all loaded persona profiles, keyed by ID.
type Personas struct {
	ByID map[string]Persona
}

// DefaultPersonas returns the built-in persona profiles.
func DefaultPersonas() *Personas {
	return &Personas{ByID: map[string]Persona{
		"weekend_tourer": {
			ID: "weekend_tourer",
			Weights: map[model.Feature]float64{
				model.FeatureCost:        1.0,
				model.FeatureHassle:      1.5,
				model.FeatureReview:      1.0,
				model.FeatureOpsVFR:      1.5,
				model.FeatureAccess:      1.0,
				model.FeatureFun:         2.0,
				model.FeatureHospitality: 1.5,
			},
			Missing: map[model.Feature]MissingBehavior{
				model.FeatureOpsIFR: MissingExclude,
			},
		},
		"ifr_traveler": {
			ID: "ifr_traveler",
			Weights: map[model.Feature]float64{
				model.FeatureCost:   0.5,
				model.FeatureHassle: 2.0,
				model.FeatureReview: 1.0,
				model.FeatureOpsIFR: 2.5,
				model.FeatureAccess: 2.0,
			},
			Missing: map[model.Feature]MissingBehavior{
				model.FeatureOpsVFR:      MissingExclude,
				model.FeatureFun:         MissingNeutral,
				model.FeatureHospitality: MissingNeutral,
			},
		},
		"budget_flyer": {
			ID: "budget_flyer",
			Weights: map[model.Feature]float64{
				model.FeatureCost:   3.0,
				model.FeatureHassle: 1.0,
				model.FeatureReview: 1.0,
				model.FeatureOpsVFR: 1.0,
			},
			Missing: map[model.Feature]MissingBehavior{
				model.FeatureOpsIFR:      MissingExclude,
				model.FeatureAccess:      MissingNeutral,
				model.FeatureFun:         MissingNeutral,
				model.FeatureHospitality: MissingNeutral,
			},
		},
	}}
}

// LoadPersonas reads persona profiles from a YAML file and validates
// them eagerly.
func LoadPersonas(path string, onto *Ontology) (*Personas, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas: %w", err)
	}

	var raw struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}

	p := &Personas{ByID: make(map[string]Persona, len(raw.Personas))}
	for _, persona := range raw.Personas {
		p.ByID[persona.ID] = persona
	}

	if err := p.Validate(onto); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate checks every persona at load time: declared features, valid
// missing behaviors, non-negative weights, and at least one feature
// that can contribute weight after EXCLUDE removal.
func (p *Personas) Validate(onto *Ontology) error {
	if len(p.ByID) == 0 {
		return fmt.Errorf("personas: no profiles declared")
	}

	for id, persona := range p.ByID {
		if persona.ID == "" || persona.ID != id {
			return &PersonaError{Persona: id, Reason: "missing or mismatched id"}
		}

		usable := 0
		for feature, weight := range persona.Weights {
			if err := onto.ValidateFeature(string(feature)); err != nil {
				return fmt.Errorf("persona %q: %w", id, err)
			}
			if weight < 0 {
				return &PersonaError{Persona: id, Reason: fmt.Sprintf("negative weight for %q", feature)}
			}
			if persona.Missing[feature] != MissingExclude && weight > 0 {
				usable++
			}
		}

		for feature, behavior := range persona.Missing {
			if err := onto.ValidateFeature(string(feature)); err != nil {
				return fmt.Errorf("persona %q: %w", id, err)
			}
			switch behavior {
			case MissingNeutral, MissingNegative, MissingPositive, MissingExclude:
			default:
				return &PersonaError{Persona: id, Reason: fmt.Sprintf("unknown missing behavior %q", behavior)}
			}
		}

		if usable == 0 {
			return &PersonaError{Persona: id, Reason: "no feature resolves to a usable weight"}
		}
	}

	return nil
}

// Score computes a persona's weighted score for an airport's feature
// vector. Missing features follow the persona's missing behavior; a
// zero denominator after EXCLUDE removal is a PersonaError.
func (p *Personas) Score(personaID string, features model.FeatureScores) (float64, error) {
	persona, ok := p.ByID[personaID]
	if !ok {
		return 0, &PersonaError{Persona: personaID, Reason: "not declared"}
	}

	var num, den float64
	for feature, weight := range persona.Weights {
		value, present := features[feature]
		if !present {
			switch persona.Missing[feature] {
			case MissingExclude:
				continue
			case MissingNegative:
				value = 0.0
			case MissingPositive:
				value = 1.0
			default:
				value = 0.5
			}
		}
		num += weight * value
		den += weight
	}

	if den == 0 {
		return 0, &PersonaError{Persona: personaID, Reason: "every weighted feature excluded"}
	}

	return num / den, nil
}

// ScoreAll computes scores for every loaded persona in ID order.
func (p *Personas) ScoreAll(features model.FeatureScores) (model.PersonaScores, error) {
	ids := make([]string, 0, len(p.ByID))
	for id := range p.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	scores := make(model.PersonaScores, len(ids))
	for _, id := range ids {
		score, err := p.Score(id, features)
		if err != nil {
			return nil, err
		}
		scores[id] = score
	}
	return scores, nil
}
