package session

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/identity"
	"github.com/frcoutreach/outreachnet/internal/models"
	"github.com/frcoutreach/outreachnet/pkg/logging"
)

// Merge combines a provider identity with its stored profile. The profile
// holds the editable fields (display name, email, photo) and wins for them;
// identity values only fill fields the profile leaves empty. Role, status and
// timestamps always come from the profile.
func Merge(id *identity.Identity, p *models.Profile) *models.User {
	u := models.UserFromProfile(p)
	u.UID = id.UID
	if u.Email == "" {
		u.Email = id.Email
	}
	if u.DisplayName == "" {
		u.DisplayName = id.DisplayName
	}
	if u.PhotoURL == nil {
		u.PhotoURL = id.PhotoURL
	}
	return u
}

// NewProfile builds the profile written at registration.
func NewProfile(id *identity.Identity, displayName string) *models.Profile {
	p := &models.Profile{
		DisplayName: displayName,
		Email:       id.Email,
		PhotoURL:    id.PhotoURL,
		Role:        models.RoleUser,
		Status:      models.StatusActive,
	}
	p.ID = id.UID
	return p
}

// RegisterAccount performs the registration writes against a backend: the
// account, its display name and its profile. The identity is returned once the
// account exists, even if a later step fails.
func RegisterAccount(ctx context.Context, backend identity.Backend, profiles Profiles, email, password, displayName string) (*identity.Identity, *models.User, error) {
	id, err := backend.SignUp(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	if err := backend.UpdateDisplayName(ctx, id.Token, displayName); err != nil {
		return id, nil, err
	}
	id.DisplayName = displayName

	p := NewProfile(id, displayName)
	if err := profiles.Create(ctx, p); err != nil {
		return id, nil, err
	}
	return id, Merge(id, p), nil
}

// Resolver maps bearer tokens to users for request handling.
type Resolver struct {
	backend  identity.Backend
	profiles Profiles
	logger   *zap.Logger
}

func NewResolver(backend identity.Backend, profiles Profiles) *Resolver {
	return &Resolver{
		backend:  backend,
		profiles: profiles,
		logger:   logging.WithComponent("session"),
	}
}

// Resolve verifies token and returns the merged user. A valid token without
// a profile resolves to a nil user, the same as an anonymous session. Token
// failures are identity.AuthError values.
func (r *Resolver) Resolve(ctx context.Context, token string) (*models.User, *identity.Identity, error) {
	id, err := r.backend.Verify(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	p, err := r.profiles.Get(ctx, id.UID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			r.logger.Error("No profile for identity", zap.String("uid", id.UID))
			return nil, id, nil
		}
		return nil, id, err
	}
	return Merge(id, p), id, nil
}
