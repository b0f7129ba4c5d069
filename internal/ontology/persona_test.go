package ontology

import (
	"errors"
	"math"
	"testing"

	"github.com/mhollis/airscore/internal/model"
)

func fullScores(v float64) model.FeatureScores {
	scores := make(model.FeatureScores, len(model.AllFeatures))
	for _, f := range model.AllFeatures {
		scores[f] = v
	}
	return scores
}

func TestDefaultPersonasValid(t *testing.T) {
	if err := DefaultPersonas().Validate(DefaultOntology()); err != nil {
		t.Fatalf("Expected default personas to validate, got %v", err)
	}
}

func TestScore_WeightedMean(t *testing.T) {
	personas := &Personas{ByID: map[string]Persona{
		"p": {
			ID: "p",
			Weights: map[model.Feature]float64{
				model.FeatureCost:   3.0,
				model.FeatureHassle: 1.0,
			},
		},
	}}

	scores := model.FeatureScores{
		model.FeatureCost:   0.8,
		model.FeatureHassle: 0.4,
	}

	got, err := personas.Score("p", scores)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := (3.0*0.8 + 1.0*0.4) / 4.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestScore_MissingBehaviors(t *testing.T) {
	personas := &Personas{ByID: map[string]Persona{
		"p": {
			ID: "p",
			Weights: map[model.Feature]float64{
				model.FeatureCost:   1.0,
				model.FeatureHassle: 1.0,
				model.FeatureReview: 1.0,
				model.FeatureFun:    1.0,
			},
			Missing: map[model.Feature]MissingBehavior{
				model.FeatureHassle: MissingNegative,
				model.FeatureReview: MissingPositive,
				model.FeatureFun:    MissingExclude,
				// Cost left unset: defaults to NEUTRAL.
			},
		},
	}}

	// Only cost is absent from the substitution set here; every feature
	// in the vector is missing so each behavior fires.
	got, err := personas.Score("p", model.FeatureScores{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// cost -> 0.5 (neutral), hassle -> 0.0, review -> 1.0, fun excluded.
	want := (0.5 + 0.0 + 1.0) / 3.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestScore_ZeroDenominator(t *testing.T) {
	personas := &Personas{ByID: map[string]Persona{
		"p": {
			ID: "p",
			Weights: map[model.Feature]float64{
				model.FeatureCost: 1.0,
			},
			Missing: map[model.Feature]MissingBehavior{
				model.FeatureCost: MissingExclude,
			},
		},
	}}

	_, err := personas.Score("p", model.FeatureScores{})
	if err == nil {
		t.Fatal("Expected an error when every weighted feature is excluded")
	}

	var personaErr *PersonaError
	if !errors.As(err, &personaErr) {
		t.Fatalf("Expected *PersonaError, got %T: %v", err, err)
	}
}

func TestScore_UnknownPersona(t *testing.T) {
	if _, err := DefaultPersonas().Score("no_such_persona", fullScores(0.5)); err == nil {
		t.Fatal("Expected an error for an undeclared persona")
	}
}

func TestScoreAll(t *testing.T) {
	personas := DefaultPersonas()

	scores, err := personas.ScoreAll(fullScores(0.5))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(scores) != len(personas.ByID) {
		t.Fatalf("Expected %d persona scores, got %d", len(personas.ByID), len(scores))
	}
	for id, score := range scores {
		if math.Abs(score-0.5) > 1e-9 {
			t.Errorf("Expected uniform 0.5 vector to score 0.5 for %q, got %v", id, score)
		}
	}
}

func TestValidate_NegativeWeight(t *testing.T) {
	personas := &Personas{ByID: map[string]Persona{
		"p": {
			ID: "p",
			Weights: map[model.Feature]float64{
				model.FeatureCost: -1.0,
			},
		},
	}}

	if err := personas.Validate(DefaultOntology()); err == nil {
		t.Fatal("Expected a validation error for a negative weight")
	}
}

func TestValidate_AllExcluded(t *testing.T) {
	personas := &Personas{ByID: map[string]Persona{
		"p": {
			ID: "p",
			Weights: map[model.Feature]float64{
				model.FeatureCost: 1.0,
			},
			Missing: map[model.Feature]MissingBehavior{
				model.FeatureCost: MissingExclude,
			},
		},
	}}

	err := personas.Validate(DefaultOntology())
	if err == nil {
		t.Fatal("Expected eager validation to reject an unscoreable persona")
	}

	var personaErr *PersonaError
	if !errors.As(err, &personaErr) {
		t.Fatalf("Expected *PersonaError, got %T: %v", err, err)
	}
}

func TestValidate_UnknownBehavior(t *testing.T) {
	personas := &Personas{ByID: map[string]Persona{
		"p": {
			ID: "p",
			Weights: map[model.Feature]float64{
				model.FeatureCost: 1.0,
			},
			Missing: map[model.Feature]MissingBehavior{
				model.FeatureFun: MissingBehavior("SHRUG"),
			},
		},
	}}

	if err := personas.Validate(DefaultOntology()); err == nil {
		t.Fatal("Expected a validation error for an unknown missing behavior")
	}
}
