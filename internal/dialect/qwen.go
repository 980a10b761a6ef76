package dialect

import (
	"chat_gateway/internal/models"
	"chat_gateway/internal/registry"
)

// qwenCodec handles the Tongyi upstream. The exposed model ID is never
// forwarded; the dialect's own model name from the descriptor is sent instead.
type qwenCodec struct{}

func (qwenCodec) Normalize(req models.ChatRequest, desc registry.Descriptor) map[string]any {
	return map[string]any{
		"model":       desc.UpstreamModel,
		"messages":    cleanMessages(req.Messages),
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
}

func (qwenCodec) Unify(raw []byte, desc registry.Descriptor) (*models.ChatResponse, error) {
	return unifyChoices(raw, desc.ModelID)
}

func (qwenCodec) ImageRequest(prompt string, desc registry.ImageDescriptor) map[string]any {
	return map[string]any{
		"model":  desc.UpstreamModel,
		"prompt": prompt,
		"n":      1,
		"size":   "1024x1024",
	}
}
