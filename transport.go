package authclient

import (
	"encoding/json"
	"io"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation identifier.
const RequestIDHeader = "X-Request-ID"

// Stage is one interceptor wrapped around an outgoing HTTP call.
type Stage func(next http.RoundTripper) http.RoundTripper

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain composes stages around a base transport. The first stage is the
// outermost: it sees the request first and the response (or error) last.
func Chain(base http.RoundTripper, stages ...Stage) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	for i := len(stages) - 1; i >= 0; i-- {
		if stages[i] != nil {
			rt = stages[i](rt)
		}
	}
	return rt
}

// NewTransport assembles the standard three-stage chain for a state machine:
// credential attachment, one-shot 401 handling, error normalization.
func NewTransport(base http.RoundTripper, machine *SessionStateMachine, cfg Config) http.RoundTripper {
	classifier := NewEndpointClassifier(cfg)
	return Chain(base,
		CredentialStage(machine.Store(), classifier, cfg),
		UnauthorizedStage(machine, classifier),
		NormalizeStage(classifier),
	)
}

// NewHTTPClient wraps NewTransport in a ready-to-use client.
func NewHTTPClient(machine *SessionStateMachine, cfg Config) *http.Client {
	return &http.Client{Transport: NewTransport(nil, machine, cfg)}
}

// CredentialStage attaches the current token as a bearer credential on every
// non-public request, plus a correlation id. It uses whatever the store holds
// right now, even if stale: forcing a synchronous refresh here would turn
// every request into a potential blocking auth round trip.
func CredentialStage(store *TokenStore, classifier *EndpointClassifier, cfg Config) Stage {
	if cfg == nil {
		cfg = SimpleConfig{}
	}
	scheme := cfg.GetAuthScheme()

	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			out := req.Clone(req.Context())
			if out.Header.Get(RequestIDHeader) == "" {
				out.Header.Set(RequestIDHeader, uuid.NewString())
			}

			if !classifier.IsPublic(out) {
				if token, ok := store.LoadToken(); ok {
					out.Header.Set("Authorization", scheme+" "+token)
				}
			}

			return next.RoundTrip(out)
		})
	}
}

// UnauthorizedStage reacts to a 401 from a protected endpoint: the session is
// dropped (idempotently, so a burst of concurrent 401s causes exactly one
// logout) and the error is re-surfaced to the caller. It is a one-shot
// reaction, never a retry: silently replaying the request would loop forever
// against a misconfigured server.
func UnauthorizedStage(machine *SessionStateMachine, classifier *EndpointClassifier) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil || resp == nil {
				return resp, err
			}

			if resp.StatusCode != http.StatusUnauthorized || classifier.IsPublic(req) {
				return resp, nil
			}

			drainBody(resp)

			if err := machine.Expire(req.Context()); err != nil {
				machine.logger.Error("failed to drop session after 401", "error", err)
			}

			return nil, ErrSessionExpired.Clone().WithMetadata(map[string]any{
				"status": resp.StatusCode,
				"url":    req.URL.String(),
			})
		})
	}
}

// NormalizeStage translates transport-level failures on application endpoints
// into a single human-readable message while preserving the original status
// for programmatic handling. External asset requests are exempt so expected
// cross-origin failures do not become noisy errors. Nothing is retried here;
// retry policy belongs to the caller.
func NormalizeStage(classifier *EndpointClassifier) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)

			if classifier.IsExternal(req) {
				return resp, err
			}

			if err != nil {
				return nil, goerrors.Wrap(err, ErrServerUnreachable.Category, ErrServerUnreachable.Message).
					WithTextCode(ErrServerUnreachable.TextCode).
					WithMetadata(map[string]any{
						"status": 0,
						"url":    req.URL.String(),
					})
			}

			switch resp.StatusCode {
			case http.StatusBadRequest:
				message := serverMessage(resp)
				if message == "" {
					message = "invalid request"
				}
				return nil, newRequestError(req, resp.StatusCode, message)

			case http.StatusForbidden:
				drainBody(resp)
				return nil, goerrors.New("forbidden", goerrors.CategoryAuthz).
					WithCode(resp.StatusCode).
					WithMetadata(map[string]any{
						"status": resp.StatusCode,
						"url":    req.URL.String(),
					})

			default:
				return resp, nil
			}
		})
	}
}

func newRequestError(req *http.Request, status int, message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(status).
		WithMetadata(map[string]any{
			"status": status,
			"url":    req.URL.String(),
		})
}

// StatusFromError recovers the original HTTP status carried by a normalized
// error, 0 for transport failures, -1 when err carries no status.
func StatusFromError(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return -1
	}
	if richErr.Metadata != nil {
		if status, ok := richErr.Metadata["status"].(int); ok {
			return status
		}
	}
	if richErr.Code > 0 {
		return richErr.Code
	}
	return -1
}

// serverMessage extracts a human-readable message from an error payload,
// accepting either {"message": ...} or {"error": ...}.
func serverMessage(resp *http.Response) string {
	defer drainBody(resp)

	if resp.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return ""
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
