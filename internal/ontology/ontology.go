// Package ontology loads and validates the feature/aspect vocabulary
// and persona weighting profiles. Both are parsed once at startup and
// rejected eagerly on any error; nothing here is re-parsed per airport.
package ontology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mhollis/airscore/internal/model"
)

// ValidationError reports a feature or aspect name not declared in the
// loaded ontology.
type ValidationError struct {
	Kind string // "feature" or "aspect"
	Name string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ontology: unknown %s %q", e.Kind, e.Name)
}

// Ontology is the validated feature/aspect vocabulary. Aspects maps
// each declared aspect name to the feature it contributes to.
type Ontology struct {
	Aspects map[string]model.Feature `yaml:"aspects"`
}

// DefaultOntology returns the built-in aspect vocabulary.
func DefaultOntology() *Ontology {
	return &Ontology{
		Aspects: map[string]model.Feature{
			"landing_fees":       model.FeatureCost,
			"fuel_price":         model.FeatureCost,
			"handling_fees":      model.FeatureCost,
			"bureaucracy":        model.FeatureHassle,
			"ppr_process":        model.FeatureHassle,
			"overall_experience": model.FeatureReview,
			"ifr_procedures":     model.FeatureOpsIFR,
			"approach_quality":   model.FeatureOpsIFR,
			"vfr_pattern":        model.FeatureOpsVFR,
			"runway_condition":   model.FeatureOpsVFR,
			"ground_transport":   model.FeatureAccess,
			"parking":            model.FeatureAccess,
			"scenery":            model.FeatureFun,
			"destination_appeal": model.FeatureFun,
			"restaurant":         model.FeatureHospitality,
			"staff_friendliness": model.FeatureHospitality,
		},
	}
}

// LoadOntology reads an ontology from a YAML file and validates it.
func LoadOntology(path string) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ontology: %w", err)
	}

	var o Ontology
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse ontology: %w", err)
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}

	return &o, nil
}

// Validate checks that every aspect maps onto one of the eight features
// and that every feature has at least one source aspect.
func (o *Ontology) Validate() error {
	if len(o.Aspects) == 0 {
		return fmt.Errorf("ontology: no aspects declared")
	}

	covered := make(map[model.Feature]bool)
	for aspect, feature := range o.Aspects {
		if !model.KnownFeature(string(feature)) {
			return &ValidationError{Kind: "feature", Name: string(feature)}
		}
		if aspect == "" {
			return &ValidationError{Kind: "aspect", Name: aspect}
		}
		covered[feature] = true
	}

	for _, f := range model.AllFeatures {
		if !covered[f] {
			return fmt.Errorf("ontology: feature %q has no source aspects", f)
		}
	}

	return nil
}

// ValidateAspect fails with a ValidationError for any aspect name not
// declared in the ontology.
func (o *Ontology) ValidateAspect(name string) error {
	if _, ok := o.Aspects[name]; !ok {
		return &ValidationError{Kind: "aspect", Name: name}
	}
	return nil
}

// ValidateFeature fails with a ValidationError for any feature name not
// in the fixed feature set.
func (o *Ontology) ValidateFeature(name string) error {
	if !model.KnownFeature(name) {
		return &ValidationError{Kind: "feature", Name: name}
	}
	return nil
}

// FeatureFor returns the feature an aspect contributes to.
func (o *Ontology) FeatureFor(aspect string) (model.Feature, bool) {
	f, ok := o.Aspects[aspect]
	return f, ok
}

// AspectNames returns all declared aspect names (unordered).
func (o *Ontology) AspectNames() []string {
	names := make([]string, 0, len(o.Aspects))
	for name := range o.Aspects {
		names = append(names, name)
	}
	return names
}
