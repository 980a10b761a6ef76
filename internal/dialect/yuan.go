package dialect

import (
	"chat_gateway/internal/models"
	"chat_gateway/internal/registry"
)

// yuanCodec handles the Yuanbao upstream. Same message layout as the OpenAI
// dialect, but with the fixed upstream model name substituted.
type yuanCodec struct{}

func (yuanCodec) Normalize(req models.ChatRequest, desc registry.Descriptor) map[string]any {
	return map[string]any{
		"model":       desc.UpstreamModel,
		"messages":    cleanMessages(req.Messages),
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
}

func (yuanCodec) Unify(raw []byte, desc registry.Descriptor) (*models.ChatResponse, error) {
	return unifyChoices(raw, desc.ModelID)
}

func (yuanCodec) ImageRequest(prompt string, desc registry.ImageDescriptor) map[string]any {
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
