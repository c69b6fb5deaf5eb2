package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate implements the validation contract for login requests.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.Username,
			validation.Required,
			validation.Length(3, 100),
		),
		validation.Field(
			&c.Password,
			validation.Required,
			validation.Length(6, 100),
		),
	)
}

// Registration is the account creation payload.
type Registration struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	PasswordRepeat string `json:"password_repeat"`
}

// Validate implements the validation contract for registrations.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(
			&r.PasswordRepeat,
			validation.Required,
			validation.By(func(value any) error {
				if s, _ := value.(string); s != r.Password {
					return goerrors.New("passwords do not match", goerrors.CategoryValidation)
				}
				return nil
			}),
		),
	)
}

// loginResponse is the JSON body shape of a successful login. The token may
// instead arrive in the Authorization response header; both forms are
// accepted.
type loginResponse struct {
	Token string       `json:"token"`
	User  *UserProfile `json:"user,omitempty"`
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client. The caller is
// responsible for wiring the interceptor chain into a custom client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientLogger overrides the client logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the collaborator endpoints this subsystem consumes: login,
// token refresh, profile fetch, cart migration, and the public registration
// flows. All calls go through the interceptor chain, so protected requests
// carry credentials and failures come back normalized.
type Client struct {
	http    *http.Client
	base    *url.URL
	machine *SessionStateMachine
	logger  Logger
}

// Client implements the state machine's collaborator contracts.
var _ ProfileFetcher = (*Client)(nil)
var _ CartMigrator = (*Client)(nil)

// NewClient builds a client rooted at baseURL, wired through the machine's
// interceptor chain.
func NewClient(baseURL string, machine *SessionStateMachine, cfg Config, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid base URL")
	}

	c := &Client{
		base:    base,
		machine: machine,
		http:    NewHTTPClient(machine, cfg),
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Login authenticates against the platform and completes the login on the
// state machine. The new token is read from the Authorization response header
// or the JSON body, whichever the server used.
func (c *Client) Login(ctx context.Context, creds Credentials) (Session, error) {
	if err := creds.Validate(); err != nil {
		return c.machine.Current(), goerrors.Wrap(err, goerrors.CategoryValidation, "invalid login payload")
	}

	resp, err := c.post(ctx, "/login", creds)
	if err != nil {
		return c.machine.Current(), err
	}
	defer drainBody(resp)

	payload := loginResponse{}
	if err := decodeBody(resp, &payload); err != nil {
		return c.machine.Current(), err
	}

	token := NormalizeToken(resp.Header.Get("Authorization"))
	if token == "" {
		token = NormalizeToken(payload.Token)
	}
	if token == "" {
		return c.machine.Current(), goerrors.New("login response carried no token", goerrors.CategoryOperation).
			WithCode(goerrors.CodeInternal)
	}

	if err := c.machine.CompleteLogin(ctx, token, payload.User); err != nil {
		return c.machine.Current(), err
	}

	return c.machine.Current(), nil
}

// Refresh posts the current token and installs the newly issued one.
func (c *Client) Refresh(ctx context.Context) error {
	resp, err := c.post(ctx, "/token/refresh", nil)
	if err != nil {
		return err
	}
	defer drainBody(resp)

	payload := loginResponse{}
	if err := decodeBody(resp, &payload); err != nil {
		return err
	}

	token := NormalizeToken(resp.Header.Get("Authorization"))
	if token == "" {
		token = NormalizeToken(payload.Token)
	}
	if token == "" {
		return goerrors.New("refresh response carried no token", goerrors.CategoryOperation).
			WithCode(goerrors.CodeInternal)
	}

	return c.machine.RefreshToken(ctx, token)
}

// FetchProfile hydrates the display fields the token claims do not carry.
func (c *Client) FetchProfile(ctx context.Context) (*UserProfile, error) {
	resp, err := c.get(ctx, "/users/me")
	if err != nil {
		return nil, err
	}
	defer drainBody(resp)

	profile := &UserProfile{}
	if err := decodeBody(resp, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// MigrateCart attaches the anonymous cart to the authenticated account.
// Invoked fire-and-forget after login; callers treat failures as advisory.
func (c *Client) MigrateCart(ctx context.Context) error {
	resp, err := c.post(ctx, "/cart/migrate", nil)
	if err != nil {
		return err
	}
	drainBody(resp)
	return nil
}

// Register creates an account. Public endpoint: no credentials attached.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	if err := reg.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	resp, err := c.post(ctx, "/register", reg)
	if err != nil {
		return err
	}
	drainBody(resp)
	return nil
}

// VerifyEmail confirms the address with the token mailed to the user.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	resp, err := c.post(ctx, "/verify-email/"+url.PathEscape(token), nil)
	if err != nil {
		return err
	}
	drainBody(resp)
	return nil
}

// RequestPasswordReset starts the password reset flow for an email address.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email address")
	}

	resp, err := c.post(ctx, "/password-reset", map[string]string{"email": email})
	if err != nil {
		return err
	}
	drainBody(resp)
	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request payload")
		}
		body = bytes.NewReader(b)
	}

	target := c.base.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// unwrap the url.Error envelope the http client adds around the
		// chain's normalized errors
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "request failed")
	}

	if resp.StatusCode >= 400 {
		status := resp.StatusCode
		message := serverMessage(resp)
		if message == "" {
			message = http.StatusText(status)
		}
		return nil, goerrors.New(message, goerrors.CategoryOperation).
			WithCode(status).
			WithMetadata(map[string]any{
				"status": status,
				"url":    target,
			})
	}

	return resp, nil
}

func decodeBody(resp *http.Response, out any) error {
	if resp.Body == nil {
		return nil
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read response body")
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}

	if err := json.Unmarshal(b, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode response body")
	}
	return nil
}
