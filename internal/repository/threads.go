package repository

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/models"
)

// NewThread holds the fields supplied when a thread is created
type NewThread struct {
	Title       string
	Content     string
	UserID      string
	DisplayName string
	PhotoURL    *string
	Category    models.Category
	Tags        []string
}

// Page is one page of threads, newest first.
type Page struct {
	Threads    []models.Thread `json:"threads"`
	NextCursor string          `json:"nextCursor"`
	// HasMore is true when the page is full. It is an approximation: the
	// next page may still be empty.
	HasMore bool `json:"hasMore"`
}

// ThreadRepository provides thread-related store operations
type ThreadRepository struct {
	*Repository
}

// NewThreadRepository creates a new thread repository
func NewThreadRepository(repo *Repository) *ThreadRepository {
	return &ThreadRepository{Repository: repo}
}

// CreateThread stores a new thread with zeroed counters and returns its id.
func (r *ThreadRepository) CreateThread(ctx context.Context, in NewThread) (_ string, err error) {
	const op = "threads.create"
	ctx, span := r.start(ctx, op, attribute.String("user.id", in.UserID))
	defer func() { r.end(span, op, err) }()

	thread := &models.Thread{
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		Tags:     models.StringList(append([]string{}, in.Tags...)),
		UserID:   in.UserID,
		Author:   models.Author{DisplayName: in.DisplayName, PhotoURL: in.PhotoURL},
		Likes:    models.StringSet{},
	}
	id, err := r.store.Create(ctx, models.CollectionThreads, thread)
	if err != nil {
		return "", &WriteError{Op: op, Err: err}
	}
	return id, nil
}

// GetThreads returns a page of all threads, newest first. An empty cursor
// starts from the most recent thread.
func (r *ThreadRepository) GetThreads(ctx context.Context, cursor string, pageSize int) (Page, error) {
	return r.page(ctx, "threads.list", nil, cursor, pageSize)
}

// GetThreadsByCategory is GetThreads restricted to one category.
func (r *ThreadRepository) GetThreadsByCategory(ctx context.Context, category models.Category, cursor string, pageSize int) (Page, error) {
	return r.page(ctx, "threads.list_by_category",
		[]docstore.Eq{{Field: "category", Value: category}}, cursor, pageSize)
}

func (r *ThreadRepository) page(ctx context.Context, op string, filters []docstore.Eq, cursor string, pageSize int) (_ Page, err error) {
	ctx, span := r.start(ctx, op)
	defer func() { r.end(span, op, err) }()

	after, err := docstore.DecodeCursor(cursor)
	if err != nil {
		return Page{}, &ReadError{Op: op, Err: err}
	}

	size := pageSizeOrDefault(pageSize)
	threads := []models.Thread{}
	q := docstore.Query{Filters: filters, Desc: true, Limit: size, After: after}
	if err := r.store.Find(ctx, models.CollectionThreads, q, &threads); err != nil {
		return Page{}, &ReadError{Op: op, Err: err}
	}

	page := Page{Threads: threads, HasMore: len(threads) == size}
	if n := len(threads); n > 0 {
		page.NextCursor = docstore.CursorOf(&threads[n-1]).Encode()
	}
	return page, nil
}

// GetThreadByID returns the thread after incrementing its view count.
// Every call counts as a view. Views do not move updatedAt.
func (r *ThreadRepository) GetThreadByID(ctx context.Context, id string) (_ *models.Thread, err error) {
	const op = "threads.get"
	ctx, span := r.start(ctx, op, attribute.String("thread.id", id))
	defer func() { r.end(span, op, err) }()

	var thread models.Thread
	err = r.mutateQuiet(ctx, op, "thread", models.CollectionThreads, id, &thread, func() map[string]interface{} {
		thread.ViewCount++
		return map[string]interface{}{"view_count": thread.ViewCount}
	})
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// GetUserThreads returns every thread owned by userID, newest first.
func (r *ThreadRepository) GetUserThreads(ctx context.Context, userID string) (_ []models.Thread, err error) {
	const op = "threads.by_user"
	ctx, span := r.start(ctx, op, attribute.String("user.id", userID))
	defer func() { r.end(span, op, err) }()

	threads := []models.Thread{}
	q := docstore.Query{Filters: []docstore.Eq{{Field: "user_id", Value: userID}}, Desc: true}
	if err := r.store.Find(ctx, models.CollectionThreads, q, &threads); err != nil {
		return nil, &ReadError{Op: op, Err: err}
	}
	return threads, nil
}

// ToggleThreadLike adds userID to the thread's likes, or removes it if
// already present, and returns the updated thread.
func (r *ThreadRepository) ToggleThreadLike(ctx context.Context, threadID, userID string) (_ *models.Thread, err error) {
	const op = "threads.toggle_like"
	ctx, span := r.start(ctx, op, attribute.String("thread.id", threadID))
	defer func() { r.end(span, op, err) }()

	var thread models.Thread
	err = r.mutate(ctx, op, "thread", models.CollectionThreads, threadID, &thread, func() map[string]interface{} {
		thread.Likes, _ = thread.Likes.Toggle(userID)
		return map[string]interface{}{"likes": thread.Likes}
	})
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// incrementCommentCount bumps the parent thread's comment counter.
func (r *ThreadRepository) incrementCommentCount(ctx context.Context, threadID string) error {
	var thread models.Thread
	return r.mutate(ctx, "threads.increment_comments", "thread", models.CollectionThreads, threadID, &thread, func() map[string]interface{} {
		thread.CommentCount++
		return map[string]interface{}{"comment_count": thread.CommentCount}
	})
}

// ReconcileCommentCount recomputes the thread's comment counter from the
// comments collection. Soft-deleted comments are counted. No write is
// issued when the stored value is already correct. Comments are counted
// after each versioned read of the thread, so a comment added before the
// write forces a conflict and a recount.
func (r *ThreadRepository) ReconcileCommentCount(ctx context.Context, threadID string) (before, after int, err error) {
	const op = "threads.reconcile"
	ctx, span := r.start(ctx, op, attribute.String("thread.id", threadID))
	defer func() { r.end(span, op, err) }()

	var (
		thread   models.Thread
		actual   int
		countErr error
		first    = true
	)
	err = r.mutateQuiet(ctx, op, "thread", models.CollectionThreads, threadID, &thread, func() map[string]interface{} {
		if first {
			before = thread.CommentCount
			first = false
		}
		n, err := r.store.Count(ctx, models.CollectionComments, docstore.Eq{Field: "thread_id", Value: threadID})
		if err != nil {
			countErr = &ReadError{Op: op, Err: err}
			return nil
		}
		actual = int(n)
		if thread.CommentCount == actual {
			return nil
		}
		return map[string]interface{}{"comment_count": actual}
	})
	if err == nil {
		err = countErr
	}
	if err != nil {
		return before, before, err
	}
	return before, actual, nil
}
