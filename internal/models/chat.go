package models

// Message roles accepted on the canonical chat surface.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether a role is one of the canonical chat roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single conversational turn. Ordering within a request is
// significant and preserved end-to-end.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the gateway's provider-agnostic chat completion request.
// It is constructed per inbound call and never persisted.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// Finish reasons on the canonical response.
const (
	FinishStop    = "stop"
	FinishLength  = "length"
	FinishError   = "error"
	FinishUnknown = "unknown"
)

// Usage records token accounting reported by the upstream. It is propagated
// opaquely when present and omitted when absent, never fabricated.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the gateway's provider-agnostic completion. Produced fresh
// per call and not mutated after construction.
type ChatResponse struct {
	ID           string
	Created      int64 // epoch seconds
	Model        string
	Content      string
	FinishReason string
	Usage        *Usage
}
