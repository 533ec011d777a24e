package repository

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/cache"
	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/models"
)

// ProfileUpdate lists the user-editable profile fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Email       *string
	PhotoURL    *string
}

// ProfileStore provides user profile operations with an optional
// read-through cache
type ProfileStore struct {
	*Repository
	cache *cache.Cache
	ttl   time.Duration
}

// NewProfileStore creates a new profile store. A nil cache disables caching.
func NewProfileStore(repo *Repository, c *cache.Cache, ttl time.Duration) *ProfileStore {
	return &ProfileStore{Repository: repo, cache: c, ttl: ttl}
}

func profileKey(uid string) string {
	return "profile:" + uid
}

// Create stores the profile written at registration. The profile id is the
// identity provider's uid.
func (s *ProfileStore) Create(ctx context.Context, p *models.Profile) (err error) {
	const op = "users.create"
	ctx, span := s.start(ctx, op, attribute.String("user.id", p.ID))
	defer func() { s.end(span, op, err) }()

	if p.ID == "" {
		return &WriteError{Op: op, Err: docstore.ErrInvalidQuery}
	}
	p.Role = p.EffectiveRole()
	p.Status = p.EffectiveStatus()
	if err := s.store.Put(ctx, models.CollectionUsers, p.ID, p); err != nil {
		return &WriteError{Op: op, Err: err}
	}
	s.invalidate(ctx, p.ID)
	return nil
}

// Get returns the profile for uid. A missing profile is a NotFoundError;
// profiles are never created implicitly.
func (s *ProfileStore) Get(ctx context.Context, uid string) (_ *models.Profile, err error) {
	const op = "users.get"
	ctx, span := s.start(ctx, op, attribute.String("user.id", uid))
	defer func() { s.end(span, op, err) }()

	var p models.Profile
	if err := s.cache.GetJSON(ctx, profileKey(uid), &p); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &p, nil
	} else if !errors.Is(err, cache.ErrCacheDisabled) && !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Profile cache read failed", zap.String("uid", uid), zap.Error(err))
	}

	if err := s.store.Get(ctx, models.CollectionUsers, uid, &p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, &NotFoundError{Kind: "user", ID: uid}
		}
		return nil, &ReadError{Op: op, Err: err}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, profileKey(uid), &p, s.ttl); err != nil {
			s.logger.Warn("Profile cache write failed", zap.String("uid", uid), zap.Error(err))
		}
	}
	return &p, nil
}

// List returns every profile, oldest first.
func (s *ProfileStore) List(ctx context.Context) (_ []models.Profile, err error) {
	const op = "users.list"
	ctx, span := s.start(ctx, op)
	defer func() { s.end(span, op, err) }()

	profiles := []models.Profile{}
	if err := s.store.Find(ctx, models.CollectionUsers, docstore.Query{}, &profiles); err != nil {
		return nil, &ReadError{Op: op, Err: err}
	}
	return profiles, nil
}

// UpdateProfile applies the user's own profile edits.
func (s *ProfileStore) UpdateProfile(ctx context.Context, uid string, u ProfileUpdate) (*models.Profile, error) {
	return s.update(ctx, "users.update_profile", uid, func(p *models.Profile) map[string]interface{} {
		set := map[string]interface{}{}
		if u.DisplayName != nil {
			p.DisplayName = *u.DisplayName
			set["display_name"] = p.DisplayName
		}
		if u.Email != nil {
			p.Email = *u.Email
			set["email"] = p.Email
		}
		if u.PhotoURL != nil {
			p.PhotoURL = u.PhotoURL
			set["photo_url"] = *u.PhotoURL
		}
		if len(set) == 0 {
			return nil
		}
		return set
	})
}

// SetRole changes the user's role.
func (s *ProfileStore) SetRole(ctx context.Context, uid string, role models.Role) (*models.Profile, error) {
	if !role.Valid() {
		return nil, &WriteError{Op: "users.set_role", Err: ErrInvalidValue}
	}
	return s.update(ctx, "users.set_role", uid, func(p *models.Profile) map[string]interface{} {
		if p.Role == role {
			return nil
		}
		p.Role = role
		return map[string]interface{}{"role": role}
	})
}

// SetStatus changes the user's moderation status.
func (s *ProfileStore) SetStatus(ctx context.Context, uid string, status models.Status) (*models.Profile, error) {
	if !status.Valid() {
		return nil, &WriteError{Op: "users.set_status", Err: ErrInvalidValue}
	}
	return s.update(ctx, "users.set_status", uid, func(p *models.Profile) map[string]interface{} {
		if p.Status == status {
			return nil
		}
		p.Status = status
		return map[string]interface{}{"status": status}
	})
}

func (s *ProfileStore) update(ctx context.Context, op, uid string, apply func(*models.Profile) map[string]interface{}) (_ *models.Profile, err error) {
	ctx, span := s.start(ctx, op, attribute.String("user.id", uid))
	defer func() { s.end(span, op, err) }()

	var p models.Profile
	err = s.mutate(ctx, op, "user", models.CollectionUsers, uid, &p, func() map[string]interface{} {
		return apply(&p)
	})
	s.invalidate(ctx, uid)
	if err != nil {
		return nil, err
	}
	p.Role = p.EffectiveRole()
	p.Status = p.EffectiveStatus()
	return &p, nil
}

func (s *ProfileStore) invalidate(ctx context.Context, uid string) {
	if err := s.cache.Delete(ctx, profileKey(uid)); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		s.logger.Warn("Profile cache invalidation failed", zap.String("uid", uid), zap.Error(err))
	}
}
