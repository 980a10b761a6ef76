package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_gateway/internal/auth"
	"chat_gateway/internal/config"
	"chat_gateway/internal/credits"
	"chat_gateway/internal/gateway"
	"chat_gateway/internal/registry"
	"chat_gateway/internal/utils"
)

// newTestAPI stands up the full route table against a fake upstream, with
// in-memory user store and ledger.
func newTestAPI(t *testing.T, upstream http.HandlerFunc) (*httptest.Server, *Dependencies, *int64) {
	t.Helper()

	var upstreamCalls int64
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&upstreamCalls, 1)
		if upstream != nil {
			upstream(w, r)
		}
	}))
	t.Cleanup(up.Close)

	cfg := &config.Config{
		JWTSecret:       []byte("test-secret"),
		TokenTTL:        time.Hour,
		UpstreamTimeout: 2 * time.Second,
		StartingCredits: 100,
	}

	reg := registry.NewCustom(
		[]registry.Descriptor{
			{ModelID: "deepseek-chat", Dialect: registry.DialectOpenAI, UpstreamURL: up.URL, CredentialRef: "deepseek"},
		},
		[]registry.ImageDescriptor{
			{Provider: "deepseek", UpstreamURL: up.URL, CredentialRef: "deepseek"},
		},
		map[string]string{"deepseek": "sk-test"},
	)

	ledger := credits.NewMemoryLedger()
	deps := &Dependencies{
		Users:      auth.NewMemoryUserStore(),
		Ledger:     ledger,
		Registry:   reg,
		Dispatcher: gateway.NewDispatcher(reg, ledger, nil, cfg.UpstreamTimeout),
		Logger:     utils.NewLogger("test"),
		Config:     cfg,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)
	api := httptest.NewServer(mux)
	t.Cleanup(api.Close)

	return api, deps, &upstreamCalls
}

func postJSON(t *testing.T, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func registerUser(t *testing.T, apiURL, email string) (token string) {
	t.Helper()

	resp, body := postJSON(t, apiURL+"/api/auth/register", "", map[string]string{
		"username": "tester",
		"email":    email,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "register: %v", body)
	token, _ = body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	api, _, _ := newTestAPI(t, nil)

	resp, body := postJSON(t, api.URL+"/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, float64(100), user["credits"])

	resp, body = postJSON(t, api.URL+"/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["token"].(string)
	user = body["user"].(map[string]any)
	assert.NotNil(t, user["lastLogin"])

	req, _ := http.NewRequest(http.MethodGet, api.URL+"/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	getResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var profile map[string]any
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&profile))
	assert.Equal(t, float64(100), profile["user"].(map[string]any)["credits"])
}

func TestRegisterValidation(t *testing.T) {
	api, _, _ := newTestAPI(t, nil)

	resp, _ := postJSON(t, api.URL+"/api/auth/register", "", map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	api, _, _ := newTestAPI(t, nil)
	registerUser(t, api.URL, "dup@example.com")

	resp, body := postJSON(t, api.URL+"/api/auth/register", "", map[string]string{
		"username": "other",
		"email":    "dup@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email already registered", body["error"])
}

// Unknown email and wrong password produce the same response, so callers
// cannot probe which emails are registered.
func TestLoginRejections(t *testing.T) {
	api, _, _ := newTestAPI(t, nil)
	registerUser(t, api.URL, "carol@example.com")

	resp1, body1 := postJSON(t, api.URL+"/api/auth/login", "", map[string]string{
		"email": "carol@example.com", "password": "wrong",
	})
	resp2, body2 := postJSON(t, api.URL+"/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "whatever",
	})

	assert.Equal(t, http.StatusUnauthorized, resp1.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	assert.Equal(t, body1["error"], body2["error"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api, _, _ := newTestAPI(t, nil)

	// No token at all.
	resp, _ := postJSON(t, api.URL+"/api/generate-image", "", map[string]string{"prompt": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A present but invalid token.
	resp, _ = postJSON(t, api.URL+"/api/generate-image", "not.a.jwt", map[string]string{"prompt": "x"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestChatSuccessShape(t *testing.T) {
	api, _, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		// Defaults applied by the handler must reach the upstream payload.
		assert.Equal(t, float64(2000), body["max_tokens"])
		assert.Equal(t, 0.7, body["temperature"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-42",
			"created": 1716000000,
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "hello back"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	})

	resp, body := postJSON(t, api.URL+"/api/chat", "", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hello"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "chat: %v", body)

	assert.Equal(t, "chat.completion", body["object"])
	assert.Equal(t, "deepseek-chat", body["model"]) // default model
	choices := body["choices"].([]any)
	require.Len(t, choices, 1)
	msg := choices[0].(map[string]any)["message"].(map[string]any)
	assert.Equal(t, "assistant", msg["role"])
	assert.Equal(t, "hello back", msg["content"])
	assert.Equal(t, "stop", choices[0].(map[string]any)["finish_reason"])
	assert.Equal(t, float64(5), body["usage"].(map[string]any)["total_tokens"])
}

func TestChatValidation(t *testing.T) {
	api, _, calls := newTestAPI(t, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty messages", map[string]any{"messages": []any{}}},
		{"invalid role", map[string]any{
			"messages": []map[string]string{{"role": "wizard", "content": "x"}},
		}},
		{"zero max_tokens", map[string]any{
			"messages":   []map[string]string{{"role": "user", "content": "x"}},
			"max_tokens": 0,
		}},
		{"temperature out of range", map[string]any{
			"messages":    []map[string]string{{"role": "user", "content": "x"}},
			"temperature": 3.5,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, api.URL+"/api/chat", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	assert.EqualValues(t, 0, atomic.LoadInt64(calls), "validation failures must not reach the upstream")
}

// A model the registry does not expose is a client error, decided before any
// upstream traffic.
func TestChatUnknownModel(t *testing.T) {
	api, _, calls := newTestAPI(t, nil)

	resp, body := postJSON(t, api.URL+"/api/chat", "", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "x"}},
		"model":    "gpt-99-ultra",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unsupported model", body["error"])
	assert.EqualValues(t, 0, atomic.LoadInt64(calls))
}

func TestChatUpstreamErrorRelay(t *testing.T) {
	api, _, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusServiceUnavailable)
	})

	resp, body := postJSON(t, api.URL+"/api/chat", "", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "x"}},
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body["details"], "overloaded")
}

func TestGenerateImageFlow(t *testing.T) {
	api, _, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": "https://img.example/1.png"}},
		})
	})
	token := registerUser(t, api.URL, "dave@example.com")

	resp, body := postJSON(t, api.URL+"/api/generate-image", token, map[string]string{
		"prompt": "a lighthouse at dusk",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "image: %v", body)
	data := body["data"].([]any)
	assert.Equal(t, "https://img.example/1.png", data[0].(map[string]any)["url"])

	// The profile reflects the debit.
	req, _ := http.NewRequest(http.MethodGet, api.URL+"/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	profResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer profResp.Body.Close()
	var profile map[string]any
	require.NoError(t, json.NewDecoder(profResp.Body).Decode(&profile))
	assert.Equal(t, float64(98), profile["user"].(map[string]any)["credits"])
}

func TestGenerateImageInsufficientCredits(t *testing.T) {
	api, deps, calls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})
	deps.Config.StartingCredits = 1
	token := registerUser(t, api.URL, "erin@example.com")

	resp, body := postJSON(t, api.URL+"/api/generate-image", token, map[string]string{
		"prompt": "a lighthouse at dusk",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "insufficient credits", body["error"])
	assert.EqualValues(t, 0, atomic.LoadInt64(calls))
}

func TestGenerateImageRequiresPrompt(t *testing.T) {
	api, _, _ := newTestAPI(t, nil)
	token := registerUser(t, api.URL, "frank@example.com")

	resp, _ := postJSON(t, api.URL+"/api/generate-image", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	api, _, _ := newTestAPI(t, nil)

	resp, err := http.Get(api.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, gatewayVersion, body.Version)
	assert.Equal(t, []string{"deepseek-chat"}, body.SupportedModels)
	assert.Equal(t, map[string]bool{"deepseek": true}, body.Credentials)

	ts, err := time.Parse(time.RFC3339, body.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestMethodNotAllowed(t *testing.T) {
	api, _, _ := newTestAPI(t, nil)

	resp, err := http.Get(api.URL + "/api/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
