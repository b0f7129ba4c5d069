package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/mhollis/airscore/internal/model"
	"github.com/mhollis/airscore/internal/ontology"
)

func testExtractor(t *testing.T) *OpenAIExtractor {
	t.Helper()
	e, err := NewOpenAIExtractor(Config{Provider: "openai", APIKey: "test-key"}, ontology.DefaultOntology())
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}
	return e
}

func TestParseResponse(t *testing.T) {
	e := testExtractor(t)
	r := model.RawReview{
		SourceID:  "test:1",
		ICAO:      "EGLL",
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	content := `{"extractions": [
		{"aspect": "scenery", "label": "positive", "confidence": 0.9},
		{"aspect": "bureaucracy", "label": "negative", "confidence": 1.7},
		{"aspect": "made_up_aspect", "label": "positive", "confidence": 0.8},
		{"aspect": "landing_fees", "label": "terrible", "confidence": 0.8},
		{"aspect": "restaurant", "label": "neutral", "value": 3.5, "confidence": 0.5}
	]}`

	extractions, err := e.parseResponse(r, content)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Unknown aspect and invalid label dropped; three survive.
	if len(extractions) != 3 {
		t.Fatalf("Expected 3 extractions, got %d", len(extractions))
	}

	for _, ex := range extractions {
		if ex.ReviewRef != "test:1" || ex.ICAO != "EGLL" {
			t.Errorf("Expected review identity copied, got %+v", ex)
		}
		if !ex.Timestamp.Equal(r.Timestamp) {
			t.Errorf("Expected the review timestamp, got %v", ex.Timestamp)
		}
	}

	// Confidence clamped to 1.
	if extractions[1].Aspect != "bureaucracy" || extractions[1].Confidence != 1.0 {
		t.Errorf("Expected clamped confidence 1.0 for bureaucracy, got %+v", extractions[1])
	}

	// Out-of-range continuous value dropped, label mapping stands.
	last := extractions[2]
	if last.Aspect != "restaurant" || last.Value != nil {
		t.Errorf("Expected out-of-range value dropped, got %+v", last)
	}
	if last.LabelValue() != 0.5 {
		t.Errorf("Expected neutral label value 0.5, got %v", last.LabelValue())
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	e := testExtractor(t)
	if _, err := e.parseResponse(model.RawReview{}, "not json at all"); err == nil {
		t.Fatal("Expected an error for non-JSON output")
	}
}

func TestBuildPrompt(t *testing.T) {
	e := testExtractor(t)
	r := model.RawReview{ICAO: "EGLL", Text: "PPR took three days to clear."}

	prompt := e.buildPrompt(r)
	for _, want := range []string{"EGLL", "PPR took three days", "bureaucracy", "scenery"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}
