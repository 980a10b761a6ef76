package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"chat_gateway/internal/gateway"
	"chat_gateway/internal/middleware"
	"chat_gateway/internal/usage"
	"chat_gateway/internal/utils"
)

const defaultImageProvider = "deepseek"

type imageRequestBody struct {
	Prompt   string `json:"prompt"`
	Provider string `json:"provider"`
}

// handleGenerateImage serves POST /api/generate-image. Requires a verified
// identity; each call debits the caller's credit balance.
func (d *Dependencies) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.New().String()

	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body imageRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Prompt == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if body.Provider == "" {
		body.Provider = defaultImageProvider
	}

	payload, err := d.Dispatcher.GenerateImage(r.Context(), identity.UserID, body.Prompt, body.Provider)
	if err != nil {
		f := gateway.AsFailure(err)
		d.recordUsage(usage.Record{
			Timestamp:   time.Now(),
			RequestID:   reqID,
			UserID:      identity.UserID,
			Endpoint:    "generate-image",
			Model:       body.Provider,
			StatusCode:  f.HTTPStatus(),
			FailureKind: string(f.Kind),
			LatencyMs:   time.Since(start).Milliseconds(),
		})
		respondFailure(w, f)
		return
	}

	d.recordUsage(usage.Record{
		Timestamp:   time.Now(),
		RequestID:   reqID,
		UserID:      identity.UserID,
		Endpoint:    "generate-image",
		Model:       body.Provider,
		StatusCode:  http.StatusOK,
		LatencyMs:   time.Since(start).Milliseconds(),
		CostCredits: gateway.ImageCost,
	})

	// Relay the provider payload untouched.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
