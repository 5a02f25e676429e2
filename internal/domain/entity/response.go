package entity

import "time"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type SentimentResult struct {
	Sentiment    Sentiment  `json:"sentiment"`
	Score        float64    `json:"score"`
	Confidence   Confidence `json:"confidence"`
	KeyEmotions  []string   `json:"key_emotions"`
	MainConcerns []string   `json:"main_concerns"`
}

// CandidateCount is the number of drafts every generation must produce.
const CandidateCount = 3

type ResponseCandidate struct {
	ID                      int       `json:"id"`
	Text                    string    `json:"text"`
	WordLength              int       `json:"word_length"`
	Tone                    Tone      `json:"tone"`
	SentimentAddressed      Sentiment `json:"sentiment_addressed"`
	EstimatedReadingSeconds int       `json:"estimated_reading_seconds"`
	KeyPoints               []string  `json:"key_points"`
}

type GenerationResult struct {
	Candidates   []ResponseCandidate `json:"candidates"`
	Sentiment    SentimentResult     `json:"sentiment"`
	BusinessType BusinessType        `json:"business_type"`
	Tone         Tone                `json:"tone"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

type SingleMetadata struct {
	Tone         Tone         `json:"tone"`
	BusinessType BusinessType `json:"business_type"`
	WordLength   int          `json:"word_length"`
	GeneratedAt  time.Time    `json:"generated_at"`
}

// SingleResponse is the first candidate of a generation, used by unattended callers.
type SingleResponse struct {
	Text      string          `json:"text"`
	Sentiment SentimentResult `json:"sentiment"`
	Metadata  SingleMetadata  `json:"metadata"`
}

// GenerationRecord is the persisted shape of a generation (generated_responses row).
type GenerationRecord struct {
	ID            int64             `json:"id"`
	UserID        string            `json:"user_id"`
	OriginalText  string            `json:"original_text"`
	BusinessName  string            `json:"business_name"`
	BusinessType  BusinessType      `json:"business_type"`
	Tone          Tone              `json:"tone"`
	Result        *GenerationResult `json:"result"`
	Status        string            `json:"status"`
	AutoGenerated bool              `json:"auto_generated"`
	CreatedAt     time.Time         `json:"created_at"`
}

const RecordStatusGenerated = "generated"

type BatchSuccess struct {
	ReviewID string          `json:"review_id"`
	Result   *SingleResponse `json:"result"`
}

type BatchFailure struct {
	ReviewID string `json:"review_id"`
	Error    string `json:"error"`
}

type BatchResult struct {
	Succeeded []BatchSuccess `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// SimilarResponse is a past generation whose review resembles a query text.
type SimilarResponse struct {
	GenerationID int64        `json:"generation_id"`
	ReviewText   string       `json:"review_text"`
	ResponseText string       `json:"response_text"`
	BusinessType BusinessType `json:"business_type"`
	Tone         Tone         `json:"tone"`
	Sentiment    Sentiment    `json:"sentiment"`
	Score        float32      `json:"score"`
}
