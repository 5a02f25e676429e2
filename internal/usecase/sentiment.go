package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"review-responder/internal/domain/entity"
	"review-responder/internal/domain/repository"
	"review-responder/internal/metrics"

	"go.uber.org/zap"
)

const sentimentSystemPrompt = `You analyze the sentiment of customer reviews.
Return only a JSON object with this exact shape and no other text:
{
  "sentiment": "positive" | "negative" | "neutral",
  "score": number between 0 and 1 (1 = strongly positive, 0 = strongly negative),
  "confidence": "high" | "medium" | "low",
  "key_emotions": ["up to 3 emotions the customer expresses"],
  "main_concerns": ["specific issues raised, empty if none"]
}`

var (
	positiveWords = []string{
		"great", "excellent", "amazing", "wonderful", "fantastic", "love", "perfect", "best",
		"awesome", "outstanding", "good", "friendly", "recommend", "delicious", "helpful",
	}
	negativeWords = []string{
		"terrible", "awful", "horrible", "worst", "bad", "poor", "disappointing", "disappointed",
		"rude", "slow", "dirty", "hate", "disgusting", "never again", "waste",
	}
)

// SentimentClassifier labels review text. It never fails: any provider or
// parse error degrades to a keyword heuristic.
type SentimentClassifier struct {
	provider repository.AIProvider
	logger   *zap.Logger
}

func NewSentimentClassifier(provider repository.AIProvider, logger *zap.Logger) *SentimentClassifier {
	return &SentimentClassifier{provider: provider, logger: logger}
}

func (c *SentimentClassifier) Classify(ctx context.Context, text string) entity.SentimentResult {
	result, err := c.classifyWithModel(ctx, text)
	if err != nil {
		fallback := HeuristicSentiment(text)
		metrics.RecordSentimentFallback()
		c.logger.Error("sentiment analysis failed, using keyword heuristic",
			zap.Error(err),
			zap.String("sentiment", string(fallback.Sentiment)),
		)
		return fallback
	}

	c.logger.Debug("sentiment analyzed",
		zap.String("sentiment", string(result.Sentiment)),
		zap.Float64("score", result.Score),
		zap.String("confidence", string(result.Confidence)),
	)
	return result
}

func (c *SentimentClassifier) classifyWithModel(ctx context.Context, text string) (entity.SentimentResult, error) {
	resp, err := c.provider.Generate(ctx, entity.LLMRequest{
		SystemPrompt: sentimentSystemPrompt,
		UserPrompt:   fmt.Sprintf("Review: %q", text),
		MaxTokens:    300,
		Temperature:  0.2,
		JSONOutput:   true,
	})
	if err != nil {
		return entity.SentimentResult{}, fmt.Errorf("sentiment provider call: %w", err)
	}
	return parseSentiment(resp.Content)
}

func parseSentiment(content string) (entity.SentimentResult, error) {
	var parsed struct {
		Sentiment    string   `json:"sentiment"`
		Score        *float64 `json:"score"`
		Confidence   string   `json:"confidence"`
		KeyEmotions  []string `json:"key_emotions"`
		MainConcerns []string `json:"main_concerns"`
	}
	if err := json.Unmarshal([]byte(cleanJSONResponse(content)), &parsed); err != nil {
		return entity.SentimentResult{}, fmt.Errorf("failed to parse sentiment: %w", err)
	}

	label := entity.Sentiment(strings.ToLower(strings.TrimSpace(parsed.Sentiment)))
	if !label.Valid() {
		return entity.SentimentResult{}, fmt.Errorf("unknown sentiment label %q", parsed.Sentiment)
	}
	if parsed.Score == nil {
		return entity.SentimentResult{}, errors.New("sentiment score missing")
	}

	conf := entity.Confidence(strings.ToLower(strings.TrimSpace(parsed.Confidence)))
	switch conf {
	case entity.ConfidenceHigh, entity.ConfidenceMedium, entity.ConfidenceLow:
	default:
		conf = entity.ConfidenceMedium
	}

	return entity.SentimentResult{
		Sentiment:    label,
		Score:        clampScore(*parsed.Score),
		Confidence:   conf,
		KeyEmotions:  nonNil(parsed.KeyEmotions),
		MainConcerns: nonNil(parsed.MainConcerns),
	}, nil
}

// HeuristicSentiment counts positive and negative keywords in text.
func HeuristicSentiment(text string) entity.SentimentResult {
	lower := strings.ToLower(text)
	pos, neg := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}

	label := entity.SentimentNeutral
	switch {
	case pos > neg:
		label = entity.SentimentPositive
	case neg > pos:
		label = entity.SentimentNegative
	}

	return entity.SentimentResult{
		Sentiment:    label,
		Score:        0.5,
		Confidence:   entity.ConfidenceLow,
		KeyEmotions:  []string{},
		MainConcerns: []string{},
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
