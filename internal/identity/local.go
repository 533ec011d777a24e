package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/frcoutreach/outreachnet/internal/cache"
	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/models"
	"github.com/frcoutreach/outreachnet/pkg/logging"
	"github.com/frcoutreach/outreachnet/pkg/telemetry"
)

const (
	tokenIssuer       = "outreachnet"
	minPasswordLength = 6
)

// credential is the stored account of the Local backend.
type credential struct {
	docstore.Meta `bson:",inline"`
	Email         string  `gorm:"type:varchar(255);not null;column:email" bson:"email"`
	PasswordHash  string  `gorm:"type:varchar(255);not null;column:password_hash" bson:"password_hash"`
	DisplayName   string  `gorm:"type:varchar(128);column:display_name" bson:"display_name"`
	PhotoURL      *string `gorm:"type:varchar(1024);column:photo_url" bson:"photo_url"`
}

func (credential) TableName() string {
	return models.CollectionCredentials
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Local authenticates against credentials kept in the document store and
// issues HS256 JWTs.
type Local struct {
	store   docstore.Store
	secret  []byte
	ttl     time.Duration
	revoked *revocations
	logger  *zap.Logger
	now     func() time.Time
	cost    int
}

// NewLocal creates a Local backend. Revoked tokens are tracked in c, or in
// process memory when c is nil.
func NewLocal(store docstore.Store, secret string, ttl time.Duration, c *cache.Cache) *Local {
	return &Local{
		store:   store,
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: newRevocations(c),
		logger:  logging.WithComponent("identity"),
		now:     time.Now,
		cost:    bcrypt.DefaultCost,
	}
}

// Migrate prepares the credentials collection.
func (l *Local) Migrate(ctx context.Context) error {
	return l.store.Migrate(ctx, docstore.Collection{
		Name:   models.CollectionCredentials,
		Model:  &credential{},
		Unique: [][]string{{"email"}},
	})
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (l *Local) findByEmail(ctx context.Context, email string) (*credential, error) {
	var found []credential
	q := docstore.Query{Filters: []docstore.Eq{{Field: "email", Value: email}}, Limit: 1}
	if err := l.store.Find(ctx, models.CollectionCredentials, q, &found); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (l *Local) SignUp(ctx context.Context, email, password string) (_ *Identity, err error) {
	ctx, span := telemetry.StartSpan(ctx, "identity.sign_up")
	defer func() { telemetry.RecordError(span, err); span.End() }()

	email, err = normalizeEmail(email)
	if err != nil {
		return nil, &AuthError{Op: "sign_up", Err: err}
	}
	if len(password) < minPasswordLength {
		return nil, &AuthError{Op: "sign_up", Err: ErrWeakPassword}
	}

	existing, err := l.findByEmail(ctx, email)
	if err != nil {
		return nil, &AuthError{Op: "sign_up", Err: errors.Join(ErrUnavailable, err)}
	}
	if existing != nil {
		return nil, &AuthError{Op: "sign_up", Err: ErrEmailExists}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return nil, &AuthError{Op: "sign_up", Err: err}
	}

	cred := &credential{Email: email, PasswordHash: string(hash)}
	if _, err := l.store.Create(ctx, models.CollectionCredentials, cred); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return nil, &AuthError{Op: "sign_up", Err: ErrEmailExists}
		}
		return nil, &AuthError{Op: "sign_up", Err: errors.Join(ErrUnavailable, err)}
	}

	l.logger.Info("Account created", zap.String("uid", cred.ID))
	return l.issue(cred)
}

func (l *Local) SignIn(ctx context.Context, email, password string) (_ *Identity, err error) {
	ctx, span := telemetry.StartSpan(ctx, "identity.sign_in")
	defer func() { telemetry.RecordError(span, err); span.End() }()

	email, err = normalizeEmail(email)
	if err != nil {
		return nil, &AuthError{Op: "sign_in", Err: ErrInvalidCredentials}
	}
	cred, err := l.findByEmail(ctx, email)
	if err != nil {
		return nil, &AuthError{Op: "sign_in", Err: errors.Join(ErrUnavailable, err)}
	}
	if cred == nil {
		return nil, &AuthError{Op: "sign_in", Err: ErrInvalidCredentials}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, &AuthError{Op: "sign_in", Err: ErrInvalidCredentials}
	}
	return l.issue(cred)
}

func (l *Local) issue(cred *credential) (*Identity, error) {
	now := l.now()
	exp := now.Add(l.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: cred.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   cred.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return nil, &AuthError{Op: "issue", Err: err}
	}
	return &Identity{
		UID:         cred.ID,
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
		PhotoURL:    cred.PhotoURL,
		Token:       signed,
		ExpiresAt:   exp,
	}, nil
}

func (l *Local) parse(token string, requireValid bool) (*claims, error) {
	var c claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(l.now),
	}
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return l.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			if requireValid {
				return nil, ErrTokenExpired
			}
			return &c, nil
		}
		return nil, ErrInvalidToken
	}
	return &c, nil
}

func (l *Local) Verify(ctx context.Context, token string) (*Identity, error) {
	c, err := l.parse(token, true)
	if err != nil {
		return nil, &AuthError{Op: "verify", Err: err}
	}

	revoked, err := l.revoked.contains(ctx, c.ID)
	if err != nil {
		return nil, &AuthError{Op: "verify", Err: errors.Join(ErrUnavailable, err)}
	}
	if revoked {
		return nil, &AuthError{Op: "verify", Err: ErrTokenRevoked}
	}

	var cred credential
	if err := l.store.Get(ctx, models.CollectionCredentials, c.Subject, &cred); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, &AuthError{Op: "verify", Err: ErrInvalidToken}
		}
		return nil, &AuthError{Op: "verify", Err: errors.Join(ErrUnavailable, err)}
	}

	return &Identity{
		UID:         cred.ID,
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
		PhotoURL:    cred.PhotoURL,
		Token:       token,
		ExpiresAt:   c.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates token. Expired tokens need no record.
func (l *Local) Revoke(ctx context.Context, token string) error {
	c, err := l.parse(token, false)
	if err != nil {
		return &AuthError{Op: "revoke", Err: err}
	}
	if c.ExpiresAt == nil {
		return nil
	}
	if err := l.revoked.add(ctx, c.ID, c.ExpiresAt.Time); err != nil {
		return &AuthError{Op: "revoke", Err: errors.Join(ErrUnavailable, err)}
	}
	return nil
}

func (l *Local) UpdateDisplayName(ctx context.Context, token, name string) error {
	id, err := l.Verify(ctx, token)
	if err != nil {
		return err
	}
	_, err = l.store.Update(ctx, models.CollectionCredentials, id.UID, docstore.Patch{
		Set:   map[string]interface{}{"display_name": name},
		Touch: true,
	})
	if err != nil {
		return &AuthError{Op: "update_display_name", Err: errors.Join(ErrUnavailable, err)}
	}
	return nil
}
