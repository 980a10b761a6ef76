package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chat_gateway/internal/credits"
	"chat_gateway/internal/dialect"
	"chat_gateway/internal/models"
	"chat_gateway/internal/registry"
	"chat_gateway/internal/utils"
)

// maxResponseBytes bounds how much of an upstream body is read.
const maxResponseBytes = 4 << 20

// ImageCost is the credit charge for one image generation. Chat completions
// do not debit; the asymmetry is product policy carried over from the
// reference behavior, not an oversight.
const ImageCost = 2

// Dispatcher orchestrates a request: registry lookup, optional debit,
// normalization, the single bounded upstream call, and unification. It is
// stateless per call; the only shared mutable state it touches is the
// ledger.
type Dispatcher struct {
	registry  *registry.Registry
	ledger    credits.Ledger
	client    *http.Client
	logger    *utils.Logger
	timeout   time.Duration
	imageCost int
}

// NewDispatcher wires the dispatcher. A zero timeout defaults to 30s.
func NewDispatcher(reg *registry.Registry, ledger credits.Ledger, logger *utils.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		registry: reg,
		ledger:   ledger,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:    logger,
		timeout:   timeout,
		imageCost: ImageCost,
	}
}

// Chat translates a canonical request into the provider's wire format, calls
// the upstream, and unifies the response. Chat completions are not metered.
// Every failure returns exactly one classified *Failure and logs one
// diagnostic line.
func (d *Dispatcher) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	desc, err := d.registry.Resolve(req.Model)
	if err != nil {
		return nil, d.fail(err, "chat", req.Model)
	}

	codec, err := dialect.ForDescriptor(desc.Dialect)
	if err != nil {
		return nil, d.fail(err, "chat", req.Model)
	}

	secret, err := d.registry.Credential(desc.CredentialRef)
	if err != nil {
		return nil, d.fail(err, "chat", req.Model)
	}

	body := codec.Normalize(req, desc)

	raw, status, err := d.post(ctx, desc.UpstreamURL, secret, body)
	if err != nil {
		return nil, d.fail(err, "chat", req.Model)
	}
	if status < 200 || status > 299 {
		f := upstreamHTTPFailure(status, raw)
		d.logFailure(f, "chat", req.Model)
		return nil, f
	}

	resp, err := codec.Unify(raw, desc)
	if err != nil {
		return nil, d.fail(err, "chat", req.Model)
	}
	return resp, nil
}

// GenerateImage charges the caller and relays the provider's image payload.
// The debit happens after the credential check and before the upstream call;
// a failure after a successful debit does not refund ("charge on attempt").
func (d *Dispatcher) GenerateImage(ctx context.Context, userID, prompt, provider string) (json.RawMessage, error) {
	desc, err := d.registry.ResolveImage(provider)
	if err != nil {
		return nil, d.fail(err, "image", provider)
	}

	secret, err := d.registry.Credential(desc.CredentialRef)
	if err != nil {
		return nil, d.fail(err, "image", provider)
	}

	if err := d.ledger.TryDebit(ctx, userID, d.imageCost); err != nil {
		return nil, d.fail(err, "image", provider)
	}

	codec, err := dialect.ForDescriptor(imageDialect(provider))
	if err != nil {
		return nil, d.fail(err, "image", provider)
	}
	body := codec.ImageRequest(prompt, desc)

	raw, status, err := d.post(ctx, desc.UpstreamURL, secret, body)
	if err != nil {
		return nil, d.fail(err, "image", provider)
	}
	if status < 200 || status > 299 {
		f := upstreamHTTPFailure(status, raw)
		d.logFailure(f, "image", provider)
		return nil, f
	}

	if !json.Valid(raw) {
		f := failuref(KindUpstreamMalformed, dialect.ErrUpstreamMalformed, "upstream returned an unexpected response shape")
		d.logFailure(f, "image", provider)
		return nil, f
	}
	return json.RawMessage(raw), nil
}

// imageDialect picks the codec tag for an image provider. Image request
// bodies follow the same dialect split as chat.
func imageDialect(provider string) registry.WireDialect {
	if provider == "tongyi" {
		return registry.DialectQwen
	}
	return registry.DialectOpenAI
}

// post performs the single bounded upstream HTTP call.
func (d *Dispatcher) post(ctx context.Context, url, secret string, body map[string]any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+secret)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// fail classifies an error and logs its single diagnostic line.
func (d *Dispatcher) fail(err error, endpoint, target string) *Failure {
	f := AsFailure(err)
	d.logFailure(f, endpoint, target)
	return f
}

func (d *Dispatcher) logFailure(f *Failure, endpoint, target string) {
	if d.logger == nil {
		return
	}
	d.logger.Error("request failed",
		"endpoint", endpoint,
		"target", target,
		"kind", f.Kind,
		"upstream_status", f.UpstreamStatus,
		"detail", f.Error(),
	)
}
