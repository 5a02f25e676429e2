package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"review-responder/internal/domain/entity"
	"review-responder/internal/domain/repository"
	"review-responder/internal/metrics"

	"go.uber.org/zap"
)

// Sampling for the generation call: fluent but not repetitive.
const (
	generationMaxTokens        = 1000
	generationTemperature      = 0.7
	generationPresencePenalty  = 0.1
	generationFrequencyPenalty = 0.1

	wordsPerMinute = 200
)

type ResponseGenerator struct {
	provider   repository.AIProvider
	classifier *SentimentClassifier
	logger     *zap.Logger
	now        func() time.Time
}

func NewResponseGenerator(provider repository.AIProvider, classifier *SentimentClassifier, logger *zap.Logger) *ResponseGenerator {
	return &ResponseGenerator{
		provider:   provider,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Generate runs the full pipeline for one review. Every failure is returned as
// a GenerationError; the underlying cause only reaches the logs.
func (g *ResponseGenerator) Generate(ctx context.Context, in entity.ReviewInput) (*entity.GenerationResult, error) {
	start := time.Now()
	bt := NormalizeBusinessType(in.BusinessType)
	tone := NormalizeTone(in.Tone)

	sentiment := g.classifier.Classify(ctx, in.Text)
	prompt := ComposePrompt(in.Text, bt, tone, in.BusinessName, sentiment)

	resp, err := g.provider.Generate(ctx, entity.LLMRequest{
		SystemPrompt:     prompt.System,
		UserPrompt:       prompt.User,
		MaxTokens:        generationMaxTokens,
		Temperature:      generationTemperature,
		PresencePenalty:  generationPresencePenalty,
		FrequencyPenalty: generationFrequencyPenalty,
		JSONOutput:       true,
	})
	if err != nil {
		return nil, g.fail(start, fmt.Errorf("provider call: %w", err))
	}

	drafts, err := parseCandidates(resp.Content)
	if err != nil {
		return nil, g.fail(start, err)
	}

	candidates := make([]entity.ResponseCandidate, len(drafts))
	for i, d := range drafts {
		words := d.WordCount
		if words <= 0 {
			words = len(strings.Fields(d.Text))
		}
		candidates[i] = entity.ResponseCandidate{
			ID:                      i + 1,
			Text:                    d.Text,
			WordLength:              words,
			Tone:                    tone,
			SentimentAddressed:      sentiment.Sentiment,
			EstimatedReadingSeconds: readingSeconds(words),
			KeyPoints:               nonNil(d.KeyPoints),
		}
	}

	metrics.RecordGeneration(true, time.Since(start))
	g.logger.Info("responses generated",
		zap.Int("review_length", utf8.RuneCountInString(in.Text)),
		zap.String("business_type", string(bt)),
		zap.String("tone", string(tone)),
		zap.String("sentiment", string(sentiment.Sentiment)),
		zap.Int("candidates", len(candidates)),
		zap.String("model", resp.Model),
	)

	return &entity.GenerationResult{
		Candidates:   candidates,
		Sentiment:    sentiment,
		BusinessType: bt,
		Tone:         tone,
		GeneratedAt:  g.now().UTC(),
	}, nil
}

// GenerateSingle returns only the first candidate of Generate.
func (g *ResponseGenerator) GenerateSingle(ctx context.Context, in entity.ReviewInput) (*entity.SingleResponse, error) {
	res, err := g.Generate(ctx, in)
	if err != nil {
		return nil, err
	}
	return SingleFromResult(res), nil
}

func SingleFromResult(res *entity.GenerationResult) *entity.SingleResponse {
	first := res.Candidates[0]
	return &entity.SingleResponse{
		Text:      first.Text,
		Sentiment: res.Sentiment,
		Metadata: entity.SingleMetadata{
			Tone:         res.Tone,
			BusinessType: res.BusinessType,
			WordLength:   first.WordLength,
			GeneratedAt:  res.GeneratedAt,
		},
	}
}

func (g *ResponseGenerator) fail(start time.Time, cause error) error {
	metrics.RecordGeneration(false, time.Since(start))
	g.logger.Error("response generation failed", zap.Error(cause))
	return entity.NewGenerationError(cause)
}

type draft struct {
	Text      string   `json:"response_text"`
	WordCount int      `json:"word_count"`
	KeyPoints []string `json:"key_points"`
}

// parseCandidates accepts exactly CandidateCount drafts with non-empty text.
func parseCandidates(content string) ([]draft, error) {
	var parsed struct {
		Responses []draft `json:"responses"`
	}
	if err := json.Unmarshal([]byte(cleanJSONResponse(content)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse responses: %w", err)
	}
	if len(parsed.Responses) != entity.CandidateCount {
		return nil, fmt.Errorf("expected %d responses, got %d", entity.CandidateCount, len(parsed.Responses))
	}
	for i := range parsed.Responses {
		parsed.Responses[i].Text = strings.TrimSpace(parsed.Responses[i].Text)
		if parsed.Responses[i].Text == "" {
			return nil, fmt.Errorf("response %d has no text", i+1)
		}
	}
	return parsed.Responses, nil
}

// readingSeconds rounds up to whole minutes at 200 words per minute.
func readingSeconds(words int) int {
	if words <= 0 {
		return 0
	}
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	return minutes * 60
}
