package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"chat_gateway/internal/gateway"
	"chat_gateway/internal/models"
	"chat_gateway/internal/usage"
	"chat_gateway/internal/utils"
)

const (
	defaultModel       = "deepseek-chat"
	defaultMaxTokens   = 2000
	defaultTemperature = 0.7
)

// chatRequestBody is the inbound chat payload. Message fields beyond role
// and content are dropped at decode time.
type chatRequestBody struct {
	Messages    []models.Message `json:"messages"`
	Model       string           `json:"model"`
	MaxTokens   *int             `json:"max_tokens"`
	Temperature *float64         `json:"temperature"`
}

// openAIChoice and openAIChatResponse render the canonical response in the
// OpenAI-compatible shape clients expect.
type openAIChoice struct {
	Index        int            `json:"index"`
	Message      models.Message `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type openAIChatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   *models.Usage  `json:"usage,omitempty"`
}

// handleChat serves POST /api/chat. No authentication and no credit charge;
// chat completions are unmetered by product policy.
func (d *Dependencies) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.New().String()

	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req, errMsg := canonicalChatRequest(body)
	if errMsg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, errMsg)
		return
	}

	resp, err := d.Dispatcher.Chat(r.Context(), req)
	if err != nil {
		f := gateway.AsFailure(err)
		d.recordUsage(usage.Record{
			Timestamp:   time.Now(),
			RequestID:   reqID,
			Endpoint:    "chat",
			Model:       req.Model,
			StatusCode:  f.HTTPStatus(),
			FailureKind: string(f.Kind),
			LatencyMs:   time.Since(start).Milliseconds(),
		})
		respondFailure(w, f)
		return
	}

	d.recordUsage(usage.Record{
		Timestamp:  time.Now(),
		RequestID:  reqID,
		Endpoint:   "chat",
		Model:      req.Model,
		StatusCode: http.StatusOK,
		LatencyMs:  time.Since(start).Milliseconds(),
	})

	utils.RespondWithJSON(w, http.StatusOK, openAIChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.Created,
		Model:   resp.Model,
		Choices: []openAIChoice{{
			Index:        0,
			Message:      models.Message{Role: models.RoleAssistant, Content: resp.Content},
			FinishReason: resp.FinishReason,
		}},
		Usage: resp.Usage,
	})
}

// canonicalChatRequest applies defaults and validates the inbound payload.
// It returns a non-empty message on client errors.
func canonicalChatRequest(body chatRequestBody) (models.ChatRequest, string) {
	if len(body.Messages) == 0 {
		return models.ChatRequest{}, "messages must not be empty"
	}
	for i, m := range body.Messages {
		if !models.ValidRole(m.Role) {
			return models.ChatRequest{}, fmt.Sprintf("messages[%d]: invalid role %q", i, m.Role)
		}
	}

	model := body.Model
	if model == "" {
		model = defaultModel
	}

	maxTokens := defaultMaxTokens
	if body.MaxTokens != nil {
		maxTokens = *body.MaxTokens
	}
	if maxTokens <= 0 {
		return models.ChatRequest{}, "max_tokens must be positive"
	}

	temperature := defaultTemperature
	if body.Temperature != nil {
		temperature = *body.Temperature
	}
	if temperature < 0 || temperature > 2 {
		return models.ChatRequest{}, "temperature must be between 0 and 2"
	}

	return models.ChatRequest{
		Messages:    body.Messages,
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}, ""
}

// respondFailure renders a classified failure. Upstream diagnostic detail is
// relayed where safe; configuration failures stay generic.
func respondFailure(w http.ResponseWriter, f *gateway.Failure) {
	if f.UpstreamBody != "" && f.Kind == gateway.KindUpstreamHTTPError {
		utils.RespondWithErrorDetails(w, f.HTTPStatus(), f.Message, f.UpstreamBody)
		return
	}
	utils.RespondWithError(w, f.HTTPStatus(), f.Message)
}

func (d *Dependencies) recordUsage(rec usage.Record) {
	if d.Usage == nil {
		return
	}
	d.Usage.Enqueue(rec)
}
