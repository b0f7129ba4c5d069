package extract

import (
	"context"
	"testing"
	"time"

	"github.com/mhollis/airscore/internal/model"
	"github.com/mhollis/airscore/internal/ontology"
)

func review(id, icao string) model.RawReview {
	return model.RawReview{
		Source:    "test",
		SourceID:  id,
		ICAO:      icao,
		Text:      "some review text",
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNew_NoProvider(t *testing.T) {
	e, err := New(Config{Provider: ""}, ontology.DefaultOntology())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if e != nil {
		t.Error("Expected nil extractor when no provider is configured")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "acme"}, ontology.DefaultOntology()); err == nil {
		t.Fatal("Expected an error for an unknown provider")
	}
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	if _, err := New(Config{Provider: "openai"}, ontology.DefaultOntology()); err == nil {
		t.Fatal("Expected an error when the API key is missing")
	}
}

func TestStaticExtractor(t *testing.T) {
	e := NewStaticExtractor()
	e.Add("test:1",
		model.ReviewExtraction{Aspect: "scenery", Label: model.SentimentPositive, Confidence: 0.9},
	)

	extractions, err := e.Extract(context.Background(), review("test:1", "EGLL"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(extractions) != 1 {
		t.Fatalf("Expected 1 extraction, got %d", len(extractions))
	}

	ex := extractions[0]
	if ex.ReviewRef != "test:1" || ex.ICAO != "EGLL" {
		t.Errorf("Expected ref and ICAO copied from the review, got %+v", ex)
	}
	if ex.Timestamp.IsZero() {
		t.Error("Expected the review timestamp on the extraction")
	}
}

func TestStaticExtractor_UnknownRef(t *testing.T) {
	e := NewStaticExtractor()
	extractions, err := e.Extract(context.Background(), review("test:unknown", "EGLL"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(extractions) != 0 {
		t.Errorf("Expected no extractions for an unregistered ref, got %d", len(extractions))
	}
}

func TestBatchExtract_CollectsFailures(t *testing.T) {
	e := NewStaticExtractor()
	e.Add("test:1", model.ReviewExtraction{Aspect: "scenery", Label: model.SentimentPositive, Confidence: 0.9})
	e.Add("test:3", model.ReviewExtraction{Aspect: "bureaucracy", Label: model.SentimentNegative, Confidence: 0.7})
	e.FailRefs["test:2"] = true

	reviews := []model.RawReview{
		review("test:1", "EGLL"),
		review("test:2", "EGLL"),
		review("test:3", "EGLL"),
	}

	extractions, report := e.ExtractBatch(context.Background(), reviews)
	if len(extractions) != 2 {
		t.Errorf("Expected 2 extractions from the healthy reviews, got %d", len(extractions))
	}
	if len(report.Failures) != 1 {
		t.Fatalf("Expected 1 failure, got %d", len(report.Failures))
	}
	if report.Failures[0].ReviewRef != "test:2" {
		t.Errorf("Expected failure for test:2, got %s", report.Failures[0].ReviewRef)
	}
}
