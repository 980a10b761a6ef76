// Package dialect translates between the gateway's canonical chat shapes and
// the wire formats of the individual upstream providers. One codec exists per
// WireDialect tag; the set is closed and a codec is selected once per request
// at registry-resolution time.
package dialect

import (
	"errors"
	"fmt"

	"chat_gateway/internal/models"
	"chat_gateway/internal/registry"
)

// ErrUpstreamMalformed is returned when a 2xx upstream body does not contain
// the expected completion shape.
var ErrUpstreamMalformed = errors.New("upstream response malformed")

// Codec normalizes canonical requests into a provider's wire format and
// unifies the provider's raw responses back into the canonical shape.
// Implementations are stateless; Normalize must not mutate its input.
type Codec interface {
	// Normalize builds the provider request body for a canonical request.
	Normalize(req models.ChatRequest, desc registry.Descriptor) map[string]any

	// Unify parses a 2xx upstream body into the canonical response, or
	// fails with ErrUpstreamMalformed.
	Unify(raw []byte, desc registry.Descriptor) (*models.ChatResponse, error)

	// ImageRequest builds the provider request body for image generation.
	ImageRequest(prompt string, desc registry.ImageDescriptor) map[string]any
}

// ForDescriptor returns the codec for a descriptor's dialect tag.
func ForDescriptor(tag registry.WireDialect) (Codec, error) {
	switch tag {
	case registry.DialectOpenAI:
		return openAICodec{}, nil
	case registry.DialectQwen:
		return qwenCodec{}, nil
	case registry.DialectYuan:
		return yuanCodec{}, nil
	}
	return nil, fmt.Errorf("no codec for dialect %q", tag)
}

// cleanMessages keeps only role and content from the inbound messages,
// so internal bookkeeping fields never reach the upstream.
func cleanMessages(msgs []models.Message) []map[string]any {
	out := make([]map[string]any, len(msgs))
	for i, m := range msgs {
		out[i] = map[string]any{
			"role":    m.Role,
			"content": m.Content,
		}
	}
	return out
}
