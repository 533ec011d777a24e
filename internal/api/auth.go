package api

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/forum"
	"github.com/frcoutreach/outreachnet/internal/identity"
	"github.com/frcoutreach/outreachnet/internal/models"
	"github.com/frcoutreach/outreachnet/internal/session"
	"github.com/frcoutreach/outreachnet/pkg/logging"
)

const (
	actorKey     = "outreachnet.actor"
	tokenKey     = "outreachnet.token"
	authErrorKey = "outreachnet.auth_error"
)

// Authenticate resolves the bearer token, if any, to the acting user. A
// request without a token is anonymous. A rejected token is remembered and
// reported by methods that need an actor.
func Authenticate(resolver *session.Resolver) gin.HandlerFunc {
	logger := logging.WithComponent("api-auth")
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}
		c.Set(tokenKey, token)

		user, _, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			logger.Debug("Bearer token rejected", zap.Error(err))
			c.Set(authErrorKey, err)
		} else if user != nil {
			c.Set(actorKey, user)
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// actor returns the acting user, nil when anonymous. It fails only when the
// request carried a token that could not be verified.
func actor(c *gin.Context) (*models.User, error) {
	if v, ok := c.Get(authErrorKey); ok {
		return nil, v.(error)
	}
	if v, ok := c.Get(actorKey); ok {
		return v.(*models.User), nil
	}
	return nil, nil
}

// AuthAPI provides account methods
type AuthAPI struct {
	backend  identity.Backend
	profiles session.Profiles
	forum    *forum.Service
	logger   *zap.Logger
}

// NewAuthAPI creates a new auth API. svc cleans registration display names.
func NewAuthAPI(backend identity.Backend, profiles session.Profiles, svc *forum.Service) *AuthAPI {
	return &AuthAPI{
		backend:  backend,
		profiles: profiles,
		forum:    svc,
		logger:   logging.WithComponent("api-auth"),
	}
}

type credentialsParams struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type authResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Register handles auth.register
func (a *AuthAPI) Register(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p credentialsParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		return nil, &forum.ValidationError{Field: "displayName", Reason: "is required"}
	}
	name, err := a.forum.DisplayName(p.DisplayName)
	if err != nil {
		return nil, err
	}
	p.DisplayName = name

	id, user, err := session.RegisterAccount(c.Request.Context(), a.backend, a.profiles, p.Email, p.Password, p.DisplayName)
	if err != nil {
		if id != nil {
			a.logger.Error("Registration incomplete", zap.String("uid", id.UID), zap.Error(err))
		}
		return nil, err
	}
	return authResult{Token: id.Token, ExpiresAt: id.ExpiresAt, User: user}, nil
}

// Login handles auth.login. A valid account without a profile signs in
// anonymously: the token is returned with a null user.
func (a *AuthAPI) Login(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p credentialsParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	ctx := c.Request.Context()

	id, err := a.backend.SignIn(ctx, p.Email, p.Password)
	if err != nil {
		return nil, err
	}

	res := authResult{Token: id.Token, ExpiresAt: id.ExpiresAt}
	profile, err := a.profiles.Get(ctx, id.UID)
	switch {
	case err == nil:
		res.User = session.Merge(id, profile)
	case errors.Is(err, docstore.ErrNotFound):
		a.logger.Error("No profile for identity", zap.String("uid", id.UID))
	default:
		return nil, err
	}
	return res, nil
}

// Logout handles auth.logout by revoking the request's bearer token
func (a *AuthAPI) Logout(c *gin.Context, params json.RawMessage) (interface{}, error) {
	token := c.GetString(tokenKey)
	if token == "" {
		return nil, &identity.AuthError{Op: "sign_out", Err: identity.ErrNotSignedIn}
	}
	if err := a.backend.Revoke(c.Request.Context(), token); err != nil {
		return nil, err
	}
	return gin.H{"ok": true}, nil
}

// Me handles auth.me
func (a *AuthAPI) Me(c *gin.Context, params json.RawMessage) (interface{}, error) {
	user, err := actor(c)
	if err != nil {
		return nil, err
	}
	snap := session.Snapshot{State: session.Anonymous}
	if user != nil {
		snap = session.Snapshot{State: session.Authenticated, User: user}
	}
	return gin.H{"state": snap.State.String(), "user": snap.User}, nil
}
