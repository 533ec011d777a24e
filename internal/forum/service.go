// Package forum applies authorization, validation and sanitisation on top of
// the repositories. Every mutating call names the acting user; the actor's
// role and status must come from the profile store, never from the client.
package forum

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/identity"
	"github.com/frcoutreach/outreachnet/internal/models"
	"github.com/frcoutreach/outreachnet/internal/reconcile"
	"github.com/frcoutreach/outreachnet/internal/repository"
	"github.com/frcoutreach/outreachnet/pkg/logging"
)

// Reconciler runs one reconciliation pass on demand.
type Reconciler interface {
	RunOnce(ctx context.Context) (reconcile.Report, error)
}

// Service is the forum as seen by a user
type Service struct {
	threads    *repository.ThreadRepository
	comments   *repository.CommentRepository
	profiles   *repository.ProfileStore
	reconciler Reconciler
	inputs     *inputs
	metrics    *metrics
	logger     *zap.Logger
}

// NewService creates a forum service. reconciler may be nil, in which case
// Reconcile is unavailable.
func NewService(threads *repository.ThreadRepository, comments *repository.CommentRepository, profiles *repository.ProfileStore, reconciler Reconciler) *Service {
	logger := logging.WithComponent("forum")
	return &Service{
		threads:    threads,
		comments:   comments,
		profiles:   profiles,
		reconciler: reconciler,
		inputs:     newInputs(),
		metrics:    newMetrics(logger),
		logger:     logger,
	}
}

// requireActive admits signed-in users who are neither banned nor suspended.
func requireActive(actor *models.User, action string) error {
	if actor == nil {
		return &identity.AuthError{Op: action, Err: identity.ErrNotSignedIn}
	}
	if !actor.IsActive() {
		return &AuthorizationError{Action: action, Reason: "account is " + string(actor.Status)}
	}
	return nil
}

func requireAdmin(actor *models.User, action string) error {
	if err := requireActive(actor, action); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return &AuthorizationError{Action: action, Reason: "admin role required"}
	}
	return nil
}

// CreateThread validates and stores a new thread authored by actor.
func (s *Service) CreateThread(ctx context.Context, actor *models.User, in ThreadInput) (string, error) {
	const action = "threads.create"
	if err := requireActive(actor, action); err != nil {
		return "", err
	}
	in, err := s.inputs.thread(in)
	if err != nil {
		return "", err
	}

	id, err := s.threads.CreateThread(ctx, repository.NewThread{
		Title:       in.Title,
		Content:     in.Content,
		UserID:      actor.UID,
		DisplayName: actor.DisplayName,
		PhotoURL:    actor.PhotoURL,
		Category:    in.Category,
		Tags:        in.Tags,
	})
	if err != nil {
		return "", err
	}
	s.metrics.threadsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(in.Category))))
	return id, nil
}

func (s *Service) ListThreads(ctx context.Context, cursor string, pageSize int) (repository.Page, error) {
	return s.threads.GetThreads(ctx, cursor, pageSize)
}

func (s *Service) ThreadsByCategory(ctx context.Context, category models.Category, cursor string, pageSize int) (repository.Page, error) {
	if !category.Valid() {
		return repository.Page{}, &ValidationError{Field: "category", Reason: "unknown category " + string(category)}
	}
	return s.threads.GetThreadsByCategory(ctx, category, cursor, pageSize)
}

// GetThread returns the thread and counts the view.
func (s *Service) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	return s.threads.GetThreadByID(ctx, id)
}

func (s *Service) UserThreads(ctx context.Context, userID string) ([]models.Thread, error) {
	return s.threads.GetUserThreads(ctx, userID)
}

func (s *Service) ToggleThreadLike(ctx context.Context, actor *models.User, threadID string) (*models.Thread, error) {
	const action = "threads.toggle_like"
	if err := requireActive(actor, action); err != nil {
		return nil, err
	}
	t, err := s.threads.ToggleThreadLike(ctx, threadID, actor.UID)
	if err != nil {
		return nil, err
	}
	s.metrics.likesToggled.Add(ctx, 1, metric.WithAttributes(attribute.String("target", "thread")))
	return t, nil
}

// AddComment stores a comment by actor. On a partial write the comment id is
// returned together with the error.
func (s *Service) AddComment(ctx context.Context, actor *models.User, in CommentInput) (string, error) {
	const action = "comments.add"
	if err := requireActive(actor, action); err != nil {
		return "", err
	}
	in, err := s.inputs.comment(in)
	if err != nil {
		return "", err
	}

	id, err := s.comments.AddComment(ctx, repository.NewComment{
		ThreadID:    in.ThreadID,
		Content:     in.Content,
		UserID:      actor.UID,
		DisplayName: actor.DisplayName,
		PhotoURL:    actor.PhotoURL,
	})
	if id != "" {
		s.metrics.commentsAdded.Add(ctx, 1)
	}
	return id, err
}

// Comments returns the thread's comments oldest first, removed ones included.
func (s *Service) Comments(ctx context.Context, threadID string) ([]models.Comment, error) {
	return s.comments.GetCommentsByThreadID(ctx, threadID)
}

func (s *Service) ToggleCommentLike(ctx context.Context, actor *models.User, commentID string) (*models.Comment, error) {
	const action = "comments.toggle_like"
	if err := requireActive(actor, action); err != nil {
		return nil, err
	}
	c, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if !c.Interactive() {
		return nil, &ValidationError{Field: "commentId", Reason: "comment has been removed"}
	}

	c, err = s.comments.ToggleCommentLike(ctx, commentID, actor.UID)
	if err != nil {
		return nil, err
	}
	s.metrics.likesToggled.Add(ctx, 1, metric.WithAttributes(attribute.String("target", "comment")))
	return c, nil
}

// DeleteComment removes a comment's content. Admin only.
func (s *Service) DeleteComment(ctx context.Context, actor *models.User, commentID string) error {
	const action = "admin.delete_comment"
	if err := requireAdmin(actor, action); err != nil {
		return err
	}
	if err := s.comments.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.moderated(ctx, actor, action, commentID)
	return nil
}

// BanUser bans uid. Admin only; admins cannot ban themselves.
func (s *Service) BanUser(ctx context.Context, actor *models.User, uid string) (*models.User, error) {
	const action = "admin.ban_user"
	if err := requireAdmin(actor, action); err != nil {
		return nil, err
	}
	if uid == actor.UID {
		return nil, &ValidationError{Field: "uid", Reason: "cannot ban yourself"}
	}
	p, err := s.comments.BanUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.moderated(ctx, actor, action, uid)
	return models.UserFromProfile(p), nil
}

// UnbanUser restores uid to active. Admin only.
func (s *Service) UnbanUser(ctx context.Context, actor *models.User, uid string) (*models.User, error) {
	const action = "admin.unban_user"
	if err := requireAdmin(actor, action); err != nil {
		return nil, err
	}
	p, err := s.comments.UnbanUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.moderated(ctx, actor, action, uid)
	return models.UserFromProfile(p), nil
}

// SetRole changes uid's role. Admin only; admins cannot demote themselves.
func (s *Service) SetRole(ctx context.Context, actor *models.User, uid string, role models.Role) (*models.User, error) {
	const action = "admin.set_role"
	if err := requireAdmin(actor, action); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, &ValidationError{Field: "role", Reason: "unknown role " + string(role)}
	}
	if uid == actor.UID && role != models.RoleAdmin {
		return nil, &ValidationError{Field: "uid", Reason: "cannot demote yourself"}
	}
	p, err := s.profiles.SetRole(ctx, uid, role)
	if err != nil {
		return nil, err
	}
	s.moderated(ctx, actor, action, uid)
	return models.UserFromProfile(p), nil
}

// ListUsers returns every user. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor *models.User) ([]models.User, error) {
	if err := requireAdmin(actor, "admin.list_users"); err != nil {
		return nil, err
	}
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(profiles))
	for i := range profiles {
		users = append(users, *models.UserFromProfile(&profiles[i]))
	}
	return users, nil
}

// Reconcile runs a comment count reconciliation pass. Admin only.
func (s *Service) Reconcile(ctx context.Context, actor *models.User) (reconcile.Report, error) {
	const action = "admin.reconcile"
	if err := requireAdmin(actor, action); err != nil {
		return reconcile.Report{}, err
	}
	if s.reconciler == nil {
		return reconcile.Report{}, errors.New("reconciliation is not configured")
	}
	report, err := s.reconciler.RunOnce(ctx)
	if err != nil {
		return report, err
	}
	s.moderated(ctx, actor, action, "")
	return report, nil
}

// UpdateProfile applies actor's edits to their own profile. Banned users may
// still edit their profile.
func (s *Service) UpdateProfile(ctx context.Context, actor *models.User, in ProfileInput) (*models.User, error) {
	if actor == nil {
		return nil, &identity.AuthError{Op: "users.update_profile", Err: identity.ErrNotSignedIn}
	}
	in, err := s.inputs.profile(in)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.UpdateProfile(ctx, actor.UID, repository.ProfileUpdate{
		DisplayName: in.DisplayName,
		PhotoURL:    in.PhotoURL,
	})
	if err != nil {
		return nil, err
	}
	return models.UserFromProfile(p), nil
}

// UpdateUser edits uid's display name or contact email. Admin only. Author
// snapshots on existing threads and comments keep the old name.
func (s *Service) UpdateUser(ctx context.Context, actor *models.User, uid string, in UserInput) (*models.User, error) {
	const action = "admin.update_user"
	if err := requireAdmin(actor, action); err != nil {
		return nil, err
	}
	in, err := s.inputs.user(in)
	if err != nil {
		return nil, err
	}
	if in.DisplayName == nil && in.Email == nil {
		return nil, &ValidationError{Field: "input", Reason: "nothing to update"}
	}
	p, err := s.profiles.UpdateProfile(ctx, uid, repository.ProfileUpdate{
		DisplayName: in.DisplayName,
		Email:       in.Email,
	})
	if err != nil {
		return nil, err
	}
	s.moderated(ctx, actor, action, uid)
	return models.UserFromProfile(p), nil
}

// DisplayName cleans a display name chosen at registration with the rules
// of a profile edit.
func (s *Service) DisplayName(raw string) (string, error) {
	in, err := s.inputs.profile(ProfileInput{DisplayName: &raw})
	if err != nil {
		return "", err
	}
	return *in.DisplayName, nil
}

func (s *Service) moderated(ctx context.Context, actor *models.User, action, target string) {
	s.metrics.moderationActions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	s.logger.Info("Moderation action",
		zap.String("action", action),
		zap.String("admin", actor.UID),
		zap.String("target", target))
}
