package repository

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/models"
)

// NewComment holds the fields supplied when a comment is added
type NewComment struct {
	ThreadID    string
	Content     string
	UserID      string
	DisplayName string
	PhotoURL    *string
}

// CommentRepository provides comment and moderation store operations
type CommentRepository struct {
	*Repository
	threads  *ThreadRepository
	profiles *ProfileStore
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository, threads *ThreadRepository, profiles *ProfileStore) *CommentRepository {
	return &CommentRepository{Repository: repo, threads: threads, profiles: profiles}
}

// AddComment stores the comment and then increments the parent thread's
// comment count. A missing parent skips the counter. If the counter write
// fails the comment stays stored and a PartialWriteError carrying its id is
// returned alongside the id.
func (r *CommentRepository) AddComment(ctx context.Context, in NewComment) (_ string, err error) {
	const op = "comments.add"
	ctx, span := r.start(ctx, op, attribute.String("thread.id", in.ThreadID))
	defer func() { r.end(span, op, err) }()

	comment := &models.Comment{
		ThreadID: in.ThreadID,
		Content:  in.Content,
		UserID:   in.UserID,
		Author:   models.Author{DisplayName: in.DisplayName, PhotoURL: in.PhotoURL},
		Likes:    models.StringSet{},
	}
	id, err := r.store.Create(ctx, models.CollectionComments, comment)
	if err != nil {
		return "", &WriteError{Op: op, Err: err}
	}

	if err := r.threads.incrementCommentCount(ctx, in.ThreadID); err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			r.logger.Warn("Comment added to missing thread, counter not updated",
				zap.String("thread_id", in.ThreadID),
				zap.String("comment_id", id),
			)
			return id, nil
		}
		return id, &PartialWriteError{Op: op, ID: id, Err: errors.Unwrap(err)}
	}
	return id, nil
}

// GetCommentsByThreadID returns the thread's comments, oldest first,
// including soft-deleted ones.
func (r *CommentRepository) GetCommentsByThreadID(ctx context.Context, threadID string) (_ []models.Comment, err error) {
	const op = "comments.list"
	ctx, span := r.start(ctx, op, attribute.String("thread.id", threadID))
	defer func() { r.end(span, op, err) }()

	comments := []models.Comment{}
	q := docstore.Query{Filters: []docstore.Eq{{Field: "thread_id", Value: threadID}}}
	if err := r.store.Find(ctx, models.CollectionComments, q, &comments); err != nil {
		return nil, &ReadError{Op: op, Err: err}
	}
	return comments, nil
}

// ToggleCommentLike adds or removes userID from the comment's likes.
func (r *CommentRepository) ToggleCommentLike(ctx context.Context, commentID, userID string) (_ *models.Comment, err error) {
	const op = "comments.toggle_like"
	ctx, span := r.start(ctx, op, attribute.String("comment.id", commentID))
	defer func() { r.end(span, op, err) }()

	var comment models.Comment
	err = r.mutate(ctx, op, "comment", models.CollectionComments, commentID, &comment, func() map[string]interface{} {
		comment.Likes, _ = comment.Likes.Toggle(userID)
		return map[string]interface{}{"likes": comment.Likes}
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetComment returns one comment.
func (r *CommentRepository) GetComment(ctx context.Context, commentID string) (_ *models.Comment, err error) {
	const op = "comments.get"
	ctx, span := r.start(ctx, op, attribute.String("comment.id", commentID))
	defer func() { r.end(span, op, err) }()

	var comment models.Comment
	if err := r.store.Get(ctx, models.CollectionComments, commentID, &comment); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, &NotFoundError{Kind: "comment", ID: commentID}
		}
		return nil, &ReadError{Op: op, Err: err}
	}
	return &comment, nil
}

// DeleteComment soft-deletes the comment, replacing its content with the
// moderation placeholder. The thread's comment count is not changed.
// Deleting an already deleted comment issues no write.
func (r *CommentRepository) DeleteComment(ctx context.Context, commentID string) (err error) {
	const op = "comments.delete"
	ctx, span := r.start(ctx, op, attribute.String("comment.id", commentID))
	defer func() { r.end(span, op, err) }()

	var comment models.Comment
	return r.mutate(ctx, op, "comment", models.CollectionComments, commentID, &comment, func() map[string]interface{} {
		if comment.IsDeleted && comment.Content == models.DeletedCommentPlaceholder {
			return nil
		}
		comment.IsDeleted = true
		comment.Content = models.DeletedCommentPlaceholder
		return map[string]interface{}{
			"is_deleted": true,
			"content":    models.DeletedCommentPlaceholder,
		}
	})
}

// BanUser sets the user's status to banned. Existing content is untouched.
func (r *CommentRepository) BanUser(ctx context.Context, uid string) (*models.Profile, error) {
	return r.profiles.SetStatus(ctx, uid, models.StatusBanned)
}

// UnbanUser sets the user's status back to active.
func (r *CommentRepository) UnbanUser(ctx context.Context, uid string) (*models.Profile, error) {
	return r.profiles.SetStatus(ctx, uid, models.StatusActive)
}
