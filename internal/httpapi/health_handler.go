package httpapi

import (
	"net/http"
	"time"

	"chat_gateway/internal/utils"
)

const gatewayVersion = "1.0.0"

type healthResponse struct {
	Status          string          `json:"status"`
	Timestamp       string          `json:"timestamp"`
	Version         string          `json:"version"`
	SupportedModels []string        `json:"supportedModels"`
	Credentials     map[string]bool `json:"credentials"`
}

// handleHealth serves GET /health. Public; reports the exposed models and
// which providers have a credential configured, never the secrets.
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, healthResponse{
		Status:          "ok",
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Version:         gatewayVersion,
		SupportedModels: d.Registry.Models(),
		Credentials:     d.Registry.CredentialStatus(),
	})
}
