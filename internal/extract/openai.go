package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/mhollis/airscore/internal/model"
)

// OpenAIExtractor implements the Extractor interface using OpenAI
// chat completions.
type OpenAIExtractor struct {
	client    *openai.Client
	config    Config
	validator AspectValidator
	limiter   *rate.Limiter
}

// NewOpenAIExtractor creates a new OpenAI-backed extractor.
func NewOpenAIExtractor(config Config, validator AspectValidator) (*OpenAIExtractor, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	return &OpenAIExtractor{
		client:    openai.NewClientWithConfig(clientConfig),
		config:    config,
		validator: validator,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Name returns the provider name
func (e *OpenAIExtractor) Name() string { return "openai" }

// wireExtraction is the JSON shape the model is asked to produce.
type wireExtraction struct {
	Aspect     string   `json:"aspect"`
	Label      string   `json:"label"`
	Value      *float64 `json:"value,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Extract sends one review to the model and parses the aspect labels.
func (e *OpenAIExtractor) Extract(ctx context.Context, review model.RawReview) ([]model.ReviewExtraction, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	timeout := time.Duration(e.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatModel := e.config.Model
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}

	chatReq := openai.ChatCompletionRequest{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You extract structured aspect sentiment from pilot reviews of airports. Respond with JSON only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: e.buildPrompt(review),
			},
		},
		Temperature: 0, // Deterministic output for idempotence
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := e.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return e.parseResponse(review, resp.Choices[0].Message.Content)
}

// ExtractBatch extracts reviews with a bounded fan-out.
func (e *OpenAIExtractor) ExtractBatch(ctx context.Context, reviews []model.RawReview) ([]model.ReviewExtraction, *BatchReport) {
	return batchExtract(ctx, e, reviews, e.config.Workers)
}

// buildPrompt constructs the extraction prompt, constraining the model
// to the declared aspect vocabulary.
func (e *OpenAIExtractor) buildPrompt(review model.RawReview) string {
	aspects := e.validator.AspectNames()
	sort.Strings(aspects)

	var b strings.Builder
	b.WriteString("Extract aspect sentiments from this airport review.\n\n")
	b.WriteString("Allowed aspects (use ONLY these names):\n")
	for _, a := range aspects {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	b.WriteString("\nFor each aspect the review clearly addresses, emit an entry with:\n")
	b.WriteString("- aspect: one of the allowed names\n")
	b.WriteString("- label: \"negative\", \"neutral\", or \"positive\"\n")
	b.WriteString("- confidence: how clearly the review supports the label, 0.0-1.0\n")
	b.WriteString("- value: optional 0.0-1.0 continuous sentiment, only when the text supports a graded reading\n\n")
	b.WriteString("Do not invent aspects the review does not mention.\n\n")
	fmt.Fprintf(&b, "Airport: %s\nReview:\n%s\n\n", review.ICAO, review.Text)
	b.WriteString(`Respond with a JSON object: {"extractions": [...]}`)

	return b.String()
}

// parseResponse decodes the model output into extractions. Undeclared
// aspects and malformed entries are dropped; confidence is clamped to
// [0,1]; the review timestamp is copied onto every extraction.
func (e *OpenAIExtractor) parseResponse(review model.RawReview, content string) ([]model.ReviewExtraction, error) {
	var wire struct {
		Extractions []wireExtraction `json:"extractions"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &wire); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	var extractions []model.ReviewExtraction
	for _, w := range wire.Extractions {
		if e.validator.ValidateAspect(w.Aspect) != nil {
			continue
		}
		label := model.Sentiment(w.Label)
		if !label.Valid() {
			continue
		}

		confidence := w.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}

		value := w.Value
		if value != nil && (*value < 0 || *value > 1) {
			value = nil
		}

		extractions = append(extractions, model.ReviewExtraction{
			ReviewRef:  review.SourceID,
			ICAO:       review.ICAO,
			Aspect:     w.Aspect,
			Label:      label,
			Value:      value,
			Confidence: confidence,
			Timestamp:  review.Timestamp,
		})
	}

	return extractions, nil
}
