package entity

// LLMRequest is a single call to a language-model provider.
type LLMRequest struct {
	SystemPrompt string
	UserPrompt   string

	MaxTokens        int
	Temperature      float32
	PresencePenalty  float32
	FrequencyPenalty float32

	// JSONOutput asks providers that support it for a JSON-only response.
	JSONOutput bool
}

type LLMResponse struct {
	Content    string         `json:"content"`
	Model      string         `json:"model"` // Which model actually answered?
	TokenCount int            `json:"token_count"`
	Latency    int64          `json:"latency_ms"`
	Metadata   map[string]any `json:"metadata"`
}

// Prompt is the composed system/user pair for a generation call.
type Prompt struct {
	System string
	User   string
}
