package usecase

import (
	"context"
	"errors"
	"testing"

	"review-responder/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClassifyUsesModelResult(t *testing.T) {
	p := &scriptedProvider{sentiment: "```json\n" + positiveSentiment + "\n```"}
	c := NewSentimentClassifier(p, zap.NewNop())

	got := c.Classify(context.Background(), "The pancakes were amazing!")

	assert.Equal(t, entity.SentimentPositive, got.Sentiment)
	assert.InDelta(t, 0.92, got.Score, 1e-9)
	assert.Equal(t, entity.ConfidenceHigh, got.Confidence)
	assert.Equal(t, []string{"delight"}, got.KeyEmotions)
	assert.Empty(t, got.MainConcerns)

	require.Len(t, p.requests, 1)
	assert.True(t, p.requests[0].JSONOutput)
	assert.Contains(t, p.requests[0].UserPrompt, "The pancakes were amazing!")
}

func TestClassifyFallsBackToHeuristic(t *testing.T) {
	tests := []struct {
		name     string
		provider *scriptedProvider
		text     string
		want     entity.Sentiment
	}{
		{"provider error", &scriptedProvider{sentimentErr: errors.New("503 unavailable")}, "Terrible service and rude staff.", entity.SentimentNegative},
		{"unparseable output", &scriptedProvider{sentiment: "I think it is positive"}, "Great food, friendly people.", entity.SentimentPositive},
		{"unknown label", &scriptedProvider{sentiment: `{"sentiment":"ecstatic","score":0.9}`}, "It was a visit.", entity.SentimentNeutral},
		{"missing score", &scriptedProvider{sentiment: `{"sentiment":"negative"}`}, "Great food, friendly people.", entity.SentimentPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSentimentClassifier(tt.provider, zap.NewNop())
			got := c.Classify(context.Background(), tt.text)
			assert.Equal(t, tt.want, got.Sentiment)
			assert.Equal(t, 0.5, got.Score)
			assert.Equal(t, entity.ConfidenceLow, got.Confidence)
			assert.NotNil(t, got.KeyEmotions)
			assert.NotNil(t, got.MainConcerns)
		})
	}
}

func TestHeuristicSentiment(t *testing.T) {
	tests := []struct {
		text string
		want entity.Sentiment
	}{
		{"Excellent coffee and the best croissants in town.", entity.SentimentPositive},
		{"Worst experience, the room was dirty and staff were rude.", entity.SentimentNegative},
		{"Good food but slow service.", entity.SentimentNeutral},
		{"We came on a Tuesday.", entity.SentimentNeutral},
		{"I will NEVER AGAIN come here.", entity.SentimentNegative},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, HeuristicSentiment(tt.text).Sentiment)
		})
	}
}

func TestParseSentimentNormalizes(t *testing.T) {
	got, err := parseSentiment(`{"sentiment":" Negative ","score":1.7,"confidence":"certain"}`)
	require.NoError(t, err)
	assert.Equal(t, entity.SentimentNegative, got.Sentiment)
	assert.Equal(t, 1.0, got.Score)
	assert.Equal(t, entity.ConfidenceMedium, got.Confidence)
	assert.Equal(t, []string{}, got.KeyEmotions)

	got, err = parseSentiment(`{"sentiment":"neutral","score":-0.3,"confidence":"LOW"}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, entity.ConfidenceLow, got.Confidence)
}
