package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"

	"chat_gateway/internal/credits"
	"chat_gateway/internal/dialect"
	"chat_gateway/internal/registry"
)

// Kind is the fixed taxonomy every failure path maps into, independent of
// which upstream produced it.
type Kind string

const (
	KindTimeout             Kind = "timeout"
	KindTransportUnreach    Kind = "transport_unreachable"
	KindUpstreamHTTPError   Kind = "upstream_http_error"
	KindUpstreamMalformed   Kind = "upstream_malformed"
	KindMissingCredential   Kind = "missing_credential"
	KindUnknownModel        Kind = "unknown_model"
	KindInsufficientCredits Kind = "insufficient_credits"
)

// maxBodySnippet bounds how much upstream diagnostic detail a Failure carries.
const maxBodySnippet = 1024

// Failure is a classified gateway failure. It carries enough context to
// render a response without re-deriving anything: the upstream status when
// there was one, a truncated copy of the upstream body, and a caller-safe
// message. None of these are retried by the gateway; retry is caller policy
// because generation calls are not known to be idempotent.
type Failure struct {
	Kind           Kind
	UpstreamStatus int    // non-zero only for KindUpstreamHTTPError
	UpstreamBody   string // truncated diagnostic detail
	Message        string
	err            error
}

func (f *Failure) Error() string {
	if f.err != nil {
		return f.Message + ": " + f.err.Error()
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.err
}

// HTTPStatus maps the failure onto the gateway's own response space.
// Upstream 4xx is relayed as the analogous 4xx; upstream 5xx becomes 502 to
// decouple the gateway's error space from the upstream's.
func (f *Failure) HTTPStatus() int {
	switch f.Kind {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindTransportUnreach, KindUpstreamMalformed:
		return http.StatusBadGateway
	case KindUpstreamHTTPError:
		if f.UpstreamStatus >= 400 && f.UpstreamStatus < 500 {
			return f.UpstreamStatus
		}
		return http.StatusBadGateway
	case KindMissingCredential:
		return http.StatusInternalServerError
	case KindUnknownModel:
		return http.StatusBadRequest
	case KindInsufficientCredits:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// failuref wraps an underlying error into a classified Failure.
func failuref(kind Kind, err error, message string) *Failure {
	return &Failure{Kind: kind, Message: message, err: err}
}

// AsFailure extracts the classified failure from an error chain, or wraps an
// unrecognized error as a transport failure so no path escapes the taxonomy.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return classify(err)
}

// classify maps raw errors from the resolve/debit/call path into the
// taxonomy.
func classify(err error) *Failure {
	switch {
	case errors.Is(err, registry.ErrUnknownModel):
		return failuref(KindUnknownModel, err, "unsupported model")
	case errors.Is(err, registry.ErrMissingCredential):
		// Generic message: the credential reference must never leak.
		return failuref(KindMissingCredential, err, "provider is not configured")
	case errors.Is(err, credits.ErrInsufficientCredits):
		return failuref(KindInsufficientCredits, err, "insufficient credits")
	case errors.Is(err, dialect.ErrUpstreamMalformed):
		return failuref(KindUpstreamMalformed, err, "upstream returned an unexpected response shape")
	}
	return classifyTransport(err)
}

// classifyTransport distinguishes a deadline expiry from a connection that
// could not be established.
func classifyTransport(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return failuref(KindTimeout, err, "upstream did not respond in time")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failuref(KindTimeout, err, "upstream did not respond in time")
	}
	return failuref(KindTransportUnreach, err, "upstream could not be reached")
}

// upstreamHTTPFailure builds the classified failure for a non-success
// upstream status, keeping a truncated body copy for operator visibility.
func upstreamHTTPFailure(status int, body []byte) *Failure {
	return &Failure{
		Kind:           KindUpstreamHTTPError,
		UpstreamStatus: status,
		UpstreamBody:   truncate(body),
		Message:        "upstream returned an error",
	}
}

func truncate(body []byte) string {
	if len(body) > maxBodySnippet {
		return string(body[:maxBodySnippet])
	}
	return string(body)
}
