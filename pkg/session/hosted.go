package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
)

// ErrNotSignedIn is returned by operations that need a session.
var ErrNotSignedIn = errors.New("not signed in")

// HostedConfig configures a Hosted provider.
type HostedConfig struct {
	BaseURL       string // e.g. https://project.example.co
	APIKey        string // public (anon) key sent as the apikey header
	HTTPClient    *http.Client
	Logger        *slog.Logger
	RefreshMargin time.Duration // refresh this long before expiry; 0 means 60s
}

// User is the authenticated user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"-"`
	User         User      `json:"user"`
}

// APIError is an error reported by the auth service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("auth: status %d: %s", e.Status, e.Message)
}

// Hosted is a Provider backed by a GoTrue-compatible auth service.
// The owner identifier is the user id of the current session.
type Hosted struct {
	config HostedConfig
	client *http.Client
	logger *slog.Logger

	mu      sync.RWMutex
	session *Session
	subs    subscribers
}

// NewHosted creates a signed-out provider.
func NewHosted(config HostedConfig) *Hosted {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if config.RefreshMargin <= 0 {
		config.RefreshMargin = time.Minute
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Hosted{
		config: config,
		client: config.HTTPClient,
		logger: config.Logger,
	}
}

// CurrentOwner implements Provider.
func (h *Hosted) CurrentOwner() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return ""
	}
	return h.session.User.ID
}

// Session returns a copy of the current session.
func (h *Hosted) Session() (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return Session{}, false
	}
	return *h.session, true
}

// Subscribe implements Provider.
func (h *Hosted) Subscribe(fn func(owner string)) (unsubscribe func()) {
	return h.subs.add(fn)
}

// SignInWithPassword starts a session.
func (h *Hosted) SignInWithPassword(ctx context.Context, email, password string) (User, error) {
	s, err := h.token(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return User{}, err
	}
	h.setSession(s)
	h.logger.Info("signed in", "user", s.User.ID)
	return s.User, nil
}

// Restore resumes a session from a stored refresh token.
func (h *Hosted) Restore(ctx context.Context, refreshToken string) (User, error) {
	s, err := h.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return User{}, err
	}
	h.setSession(s)
	return s.User, nil
}

// Refresh exchanges the refresh token for a new session.
func (h *Hosted) Refresh(ctx context.Context) error {
	current, ok := h.Session()
	if !ok {
		return ErrNotSignedIn
	}
	s, err := h.token(ctx, "refresh_token", map[string]string{"refresh_token": current.RefreshToken})
	if err != nil {
		return err
	}
	h.setSession(s)
	h.logger.Debug("session refreshed", "user", s.User.ID, "expires_at", s.ExpiresAt)
	return nil
}

// SignOut implements Provider. The local session is dropped even when the
// remote logout fails; the remote error is returned.
func (h *Hosted) SignOut(ctx context.Context) error {
	current, ok := h.Session()
	if !ok {
		return nil
	}

	req, err := h.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil)
	var remoteErr error
	if err == nil {
		req.Header.Set("Authorization", "Bearer "+current.AccessToken)
		remoteErr = h.do(req, nil)
	} else {
		remoteErr = err
	}

	h.setSession(nil)
	h.logger.Info("signed out", "user", current.User.ID)
	if remoteErr != nil {
		return fmt.Errorf("remote logout: %w", remoteErr)
	}
	return nil
}

// User fetches the user of the current session from the service.
func (h *Hosted) User(ctx context.Context) (User, error) {
	current, ok := h.Session()
	if !ok {
		return User{}, ErrNotSignedIn
	}
	req, err := h.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+current.AccessToken)

	var u User
	if err := h.do(req, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Run keeps the session fresh until ctx is cancelled. A failed refresh signs
// the user out, which re-keys bound stores to the ephemeral state.
func (h *Hosted) Run(ctx context.Context) error {
	for {
		wait := time.Minute
		if s, ok := h.Session(); ok && !s.ExpiresAt.IsZero() {
			wait = time.Until(s.ExpiresAt) - h.config.RefreshMargin
			if wait < 0 {
				wait = 0
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		if _, ok := h.Session(); !ok {
			continue
		}
		if err := h.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status < 500 {
				h.logger.Warn("session refresh rejected, signing out", "error", err)
				h.setSession(nil)
				continue
			}
			h.logger.Warn("session refresh failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// Start runs the refresh loop in the background.
func (h *Hosted) Start(ctx context.Context) {
	lifecycle.Go(ctx, h.Run, lifecycle.WithErrorHandler(func(err error) {
		h.logger.Error("session refresher failed", "error", err)
	}))
}

func (h *Hosted) setSession(s *Session) {
	h.mu.Lock()
	h.session = s
	owner := ""
	if s != nil {
		owner = s.User.ID
	}
	h.mu.Unlock()
	h.subs.notify(owner)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

func (h *Hosted) token(ctx context.Context, grant string, body map[string]string) (*Session, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := h.newRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type="+grant, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := h.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.User.ID == "" {
		return nil, errors.New("auth: incomplete token response")
	}

	s := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	switch {
	case resp.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return s, nil
}

func (h *Hosted) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if h.config.BaseURL == "" {
		return nil, errors.New("auth: base URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, h.config.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", h.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes a JSON response into out, if given.
func (h *Hosted) do(req *http.Request, out any) error {
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var body struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
			Code             any    `json:"code"`
			ErrorCode        string `json:"error_code"`
			Msg              string `json:"msg"`
		}
		_ = json.Unmarshal(data, &body)
		apiErr := &APIError{Status: resp.StatusCode, Code: body.Error, Message: body.ErrorDescription}
		if apiErr.Code == "" {
			apiErr.Code = body.ErrorCode
		}
		if apiErr.Message == "" {
			apiErr.Message = body.Msg
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	return nil
}

var _ Provider = (*Hosted)(nil)
