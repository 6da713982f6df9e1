package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 30 * time.Second

// TokenSource is where the client reads the bearer token from, and what it
// clears when the backend answers 401.
type TokenSource interface {
	Get(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

// UnauthorizedHandler is invoked after the stored token has been cleared
// because some call came back with 401.
type UnauthorizedHandler func(ctx context.Context)

// Client is the typed gateway to the legal QA backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource

	mu           sync.Mutex
	nextHandler  int
	unauthorized map[int]UnauthorizedHandler
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient builds a client for baseURL (for example http://localhost:3001/api).
// tokens may be nil, in which case no credentials are attached.
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) (*Client, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:      normalized,
		http:         &http.Client{Timeout: DefaultTimeout},
		tokens:       tokens,
		unauthorized: map[int]UnauthorizedHandler{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("api: empty base URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", errors.Errorf("api: invalid base URL %q", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// OnUnauthorized registers h for every 401 response and returns a function
// that removes it again.
func (c *Client) OnUnauthorized(h UnauthorizedHandler) func() {
	if h == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextHandler
	c.nextHandler++
	c.unauthorized[id] = h
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.unauthorized, id)
		c.mu.Unlock()
	}
}

func (c *Client) CreateSession(ctx context.Context) (*SessionResponse, error) {
	out := &SessionResponse{}
	if err := c.do(ctx, "create session", http.MethodPost, endpointSession, nil, out, ""); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, errors.New("create session: backend returned an empty session id")
	}
	return out, nil
}

func (c *Client) FetchCategories(ctx context.Context) (*CategoriesResponse, error) {
	out := &CategoriesResponse{}
	if err := c.do(ctx, "fetch categories", http.MethodGet, endpointCategories, nil, out, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchLanguages(ctx context.Context) (*LanguagesResponse, error) {
	out := &LanguagesResponse{}
	if err := c.do(ctx, "fetch languages", http.MethodGet, endpointLanguages, nil, out, ""); err != nil {
		return nil, err
	}
	if out.Languages == nil {
		out.Languages = map[string]string{}
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, text, category, language, sessionID string) (*ChatResponse, error) {
	body := ChatRequest{
		Query:     text,
		Category:  category,
		Language:  language,
		SessionID: sessionID,
	}
	out := &ChatResponse{}
	path := fmt.Sprintf(endpointChat, url.PathEscape(category))
	if err := c.do(ctx, "send message", http.MethodPost, path, body, out, ""); err != nil {
		return nil, err
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	out := &AuthResponse{}
	err := c.do(ctx, "login", http.MethodPost, endpointLogin, LoginRequest{Email: email, Password: password}, out, "")
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New("login: backend returned no token")
	}
	return out, nil
}

func (c *Client) Signup(ctx context.Context, profile SignupRequest) (*AuthResponse, error) {
	out := &AuthResponse{}
	if err := c.do(ctx, "signup", http.MethodPost, endpointSignup, profile, out, ""); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New("signup: backend returned no token")
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, endpointLogout, nil, nil, "")
}

// ValidateToken checks token explicitly, independent of what the token
// source currently holds.
func (c *Client) ValidateToken(ctx context.Context, token string) (*ValidateResponse, error) {
	if token == "" {
		return nil, errors.New("validate token: empty token")
	}
	out := &ValidateResponse{}
	if err := c.do(ctx, "validate token", http.MethodGet, endpointValidate, nil, out, token); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, errors.New("validate token: backend returned no user")
	}
	return out, nil
}

func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.do(ctx, "reset password", http.MethodPost, endpointResetPassword, resetPasswordRequest{Email: email}, nil, "")
}

func (c *Client) UpdatePassword(ctx context.Context, token, newPassword string) error {
	body := updatePasswordRequest{Token: token, NewPassword: newPassword}
	return c.do(ctx, "update password", http.MethodPost, endpointUpdatePassword, body, nil, "")
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	out := &HealthResponse{}
	if err := c.do(ctx, "health", http.MethodGet, endpointHealth, nil, out, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any, bearer string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "%s: marshal request", op)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if bearer == "" && c.tokens != nil {
		token, ok, err := c.tokens.Get(ctx)
		if err != nil {
			log.Warn().Err(err).Str("op", op).Msg("could not read stored token")
		} else if ok {
			bearer = token
		}
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: errors.Wrap(err, "read response body")}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized(ctx, op)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    messageFromBody(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "%s: decode response", op)
	}
	return nil
}

func (c *Client) handleUnauthorized(ctx context.Context, op string) {
	log.Info().Str("op", op).Msg("backend answered 401, clearing stored credentials")
	if c.tokens != nil {
		if err := c.tokens.Clear(ctx); err != nil {
			log.Warn().Err(err).Msg("could not clear stored token")
		}
	}

	c.mu.Lock()
	handlers := make([]UnauthorizedHandler, 0, len(c.unauthorized))
	for i := 0; i < c.nextHandler; i++ {
		if h, ok := c.unauthorized[i]; ok {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(ctx)
	}
}
