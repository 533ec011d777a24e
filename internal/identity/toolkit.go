package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/cache"
	"github.com/frcoutreach/outreachnet/pkg/config"
	"github.com/frcoutreach/outreachnet/pkg/logging"
	"github.com/frcoutreach/outreachnet/pkg/telemetry"
)

// Toolkit talks to a managed identity toolkit REST API
// (accounts:signUp, accounts:signInWithPassword, accounts:update,
// accounts:lookup).
type Toolkit struct {
	baseURL string
	apiKey  string
	http    *http.Client
	revoked *revocations
	logger  *zap.Logger
}

// NewToolkit creates a Toolkit backend. The API cannot revoke id tokens, so
// revoked tokens are remembered in c (or in memory) until they expire.
func NewToolkit(cfg *config.AuthConfig, c *cache.Cache) (*Toolkit, error) {
	if cfg.ToolkitURL == "" {
		return nil, fmt.Errorf("toolkit_url is required")
	}
	if cfg.ToolkitAPIKey == "" {
		return nil, fmt.Errorf("toolkit_api_key is required")
	}

	logger := logging.WithComponent("identity-toolkit")
	logger.Info("Identity toolkit initialized", zap.String("url", cfg.ToolkitURL))

	return &Toolkit{
		baseURL: strings.TrimRight(cfg.ToolkitURL, "/"),
		apiKey:  cfg.ToolkitAPIKey,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		revoked: newRevocations(c),
		logger:  logger,
	}, nil
}

type toolkitError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type toolkitAuthResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
	ExpiresIn   string `json:"expiresIn"`
}

type toolkitUser struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	Disabled    bool   `json:"disabled"`
}

// mapToolkitError converts the API's error message codes. Messages may
// carry a suffix such as "WEAK_PASSWORD : Password should be ...".
func mapToolkitError(message string) error {
	code := strings.TrimSpace(strings.SplitN(message, ":", 2)[0])
	switch code {
	case "EMAIL_EXISTS":
		return ErrEmailExists
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return ErrInvalidCredentials
	case "WEAK_PASSWORD":
		return ErrWeakPassword
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return ErrInvalidEmail
	case "INVALID_ID_TOKEN", "USER_NOT_FOUND", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return ErrInvalidToken
	case "TOKEN_EXPIRED":
		return ErrTokenExpired
	case "USER_DISABLED":
		return ErrUserDisabled
	default:
		return fmt.Errorf("%w: %s", ErrUnavailable, message)
	}
}

func (t *Toolkit) call(ctx context.Context, method string, body, out interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "identity.toolkit."+method)
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/accounts:%s?key=%s", t.baseURL, method, url.QueryEscape(t.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr toolkitError
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error.Message == "" {
			err := fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
			telemetry.RecordError(span, err)
			return err
		}
		t.logger.Debug("Toolkit call rejected",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Error.Message),
		)
		return mapToolkitError(apiErr.Error.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", method, err)
	}
	return nil
}

func (r *toolkitAuthResponse) identity() *Identity {
	ttl, err := strconv.Atoi(r.ExpiresIn)
	if err != nil || ttl <= 0 {
		ttl = 3600
	}
	return &Identity{
		UID:         r.LocalID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Token:       r.IDToken,
		ExpiresAt:   time.Now().Add(time.Duration(ttl) * time.Second),
	}
}

func (t *Toolkit) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	var resp toolkitAuthResponse
	err := t.call(ctx, "signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, &AuthError{Op: "sign_up", Err: err}
	}
	return resp.identity(), nil
}

func (t *Toolkit) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	var resp toolkitAuthResponse
	err := t.call(ctx, "signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, &AuthError{Op: "sign_in", Err: err}
	}
	return resp.identity(), nil
}

func (t *Toolkit) UpdateDisplayName(ctx context.Context, token, name string) error {
	if err := t.checkRevoked(ctx, token); err != nil {
		return &AuthError{Op: "update_display_name", Err: err}
	}
	err := t.call(ctx, "update", map[string]interface{}{
		"idToken":           token,
		"displayName":       name,
		"returnSecureToken": false,
	}, nil)
	if err != nil {
		return &AuthError{Op: "update_display_name", Err: err}
	}
	return nil
}

func (t *Toolkit) Verify(ctx context.Context, token string) (*Identity, error) {
	if err := t.checkRevoked(ctx, token); err != nil {
		return nil, &AuthError{Op: "verify", Err: err}
	}

	var resp struct {
		Users []toolkitUser `json:"users"`
	}
	if err := t.call(ctx, "lookup", map[string]interface{}{"idToken": token}, &resp); err != nil {
		return nil, &AuthError{Op: "verify", Err: err}
	}
	if len(resp.Users) == 0 {
		return nil, &AuthError{Op: "verify", Err: ErrInvalidToken}
	}

	u := resp.Users[0]
	if u.Disabled {
		return nil, &AuthError{Op: "verify", Err: ErrUserDisabled}
	}
	id := &Identity{
		UID:         u.LocalID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Token:       token,
	}
	if u.PhotoURL != "" {
		photo := u.PhotoURL
		id.PhotoURL = &photo
	}
	return id, nil
}

// Revoke remembers the token as revoked for the provider's maximum id
// token lifetime.
func (t *Toolkit) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := t.revoked.add(ctx, cache.HashKey(token), time.Now().Add(time.Hour)); err != nil {
		return &AuthError{Op: "revoke", Err: errors.Join(ErrUnavailable, err)}
	}
	return nil
}

func (t *Toolkit) checkRevoked(ctx context.Context, token string) error {
	revoked, err := t.revoked.contains(ctx, cache.HashKey(token))
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}
