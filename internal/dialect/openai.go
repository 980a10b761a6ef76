package dialect

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chat_gateway/internal/models"
	"chat_gateway/internal/registry"
)

// openAICodec handles upstreams that speak the OpenAI chat completion format
// natively (DeepSeek). The exposed model ID is forwarded verbatim.
type openAICodec struct{}

func (openAICodec) Normalize(req models.ChatRequest, desc registry.Descriptor) map[string]any {
	model := desc.UpstreamModel
	if model == "" {
		model = req.Model
	}
	return map[string]any{
		"model":       model,
		"messages":    cleanMessages(req.Messages),
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
}

func (openAICodec) Unify(raw []byte, desc registry.Descriptor) (*models.ChatResponse, error) {
	return unifyChoices(raw, desc.ModelID)
}

func (openAICodec) ImageRequest(prompt string, desc registry.ImageDescriptor) map[string]any {
	body := map[string]any{
		"prompt": prompt,
		"n":      1,
		"size":   "1024x1024",
	}
	if desc.UpstreamModel != "" {
		body["model"] = desc.UpstreamModel
	}
	return body
}

// completionEnvelope covers the choices-shaped responses all supported
// dialects ultimately return.
type completionEnvelope struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *models.Usage `json:"usage"`
}

// unifyChoices extracts the first completion candidate from a choices-shaped
// body. Shared by all codecs; id and created are defaulted when the upstream
// omits them, token usage passes through untouched.
func unifyChoices(raw []byte, modelID string) (*models.ChatResponse, error) {
	var env completionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
	}
	if len(env.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrUpstreamMalformed)
	}
	first := env.Choices[0]
	if first.Message.Content == "" {
		return nil, fmt.Errorf("%w: missing message content", ErrUpstreamMalformed)
	}

	id := env.ID
	if id == "" {
		id = "chatcmpl-" + uuid.New().String()
	}
	created := env.Created
	if created == 0 {
		created = time.Now().Unix()
	}

	return &models.ChatResponse{
		ID:           id,
		Created:      created,
		Model:        modelID,
		Content:      first.Message.Content,
		FinishReason: canonicalFinishReason(first.FinishReason),
		Usage:        env.Usage,
	}, nil
}

func canonicalFinishReason(reason string) string {
	switch reason {
	case "stop":
		return models.FinishStop
	case "length", "max_tokens":
		return models.FinishLength
	case "error":
		return models.FinishError
	default:
		return models.FinishUnknown
	}
}
