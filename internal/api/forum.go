package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/frcoutreach/outreachnet/internal/forum"
	"github.com/frcoutreach/outreachnet/internal/models"
)

// ForumAPI provides thread and comment methods
type ForumAPI struct {
	svc      *forum.Service
	pageSize int
}

const maxPageSize = 100

// NewForumAPI creates a new forum API. pageSize applies when a request
// names none.
func NewForumAPI(svc *forum.Service, pageSize int) *ForumAPI {
	return &ForumAPI{svc: svc, pageSize: pageSize}
}

func (f *ForumAPI) size(requested int) int {
	switch {
	case requested <= 0:
		return f.pageSize
	case requested > maxPageSize:
		return maxPageSize
	}
	return requested
}

type pageParams struct {
	Category string `json:"category,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
}

type idParams struct {
	ID string `json:"id"`
}

type userParams struct {
	UserID string `json:"userId"`
}

type threadParams struct {
	ThreadID string `json:"threadId"`
}

type commentParams struct {
	CommentID string `json:"commentId"`
}

func required(field, value string) error {
	if value == "" {
		return &forum.ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}

// renderComments applies the moderation view to every comment.
func renderComments(comments []models.Comment) []models.Comment {
	out := make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.View())
	}
	return out
}

// CreateThread handles threads.create
func (f *ForumAPI) CreateThread(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in forum.ThreadInput
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	user, err := actor(c)
	if err != nil {
		return nil, err
	}
	id, err := f.svc.CreateThread(c.Request.Context(), user, in)
	if err != nil {
		return nil, err
	}
	return gin.H{"id": id}, nil
}

// ListThreads handles threads.list
func (f *ForumAPI) ListThreads(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p pageParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return f.svc.ListThreads(c.Request.Context(), p.Cursor, f.size(p.PageSize))
}

// ThreadsByCategory handles threads.list_by_category
func (f *ForumAPI) ThreadsByCategory(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p pageParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if err := required("category", p.Category); err != nil {
		return nil, err
	}
	return f.svc.ThreadsByCategory(c.Request.Context(), models.Category(p.Category), p.Cursor, f.size(p.PageSize))
}

// GetThread handles threads.get. The thread's view count is incremented.
func (f *ForumAPI) GetThread(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p idParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if err := required("id", p.ID); err != nil {
		return nil, err
	}
	return f.svc.GetThread(c.Request.Context(), p.ID)
}

// UserThreads handles threads.by_user
func (f *ForumAPI) UserThreads(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p userParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if err := required("userId", p.UserID); err != nil {
		return nil, err
	}
	threads, err := f.svc.UserThreads(c.Request.Context(), p.UserID)
	if err != nil {
		return nil, err
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	return threads, nil
}

// ToggleThreadLike handles threads.toggle_like
func (f *ForumAPI) ToggleThreadLike(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p threadParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if err := required("threadId", p.ThreadID); err != nil {
		return nil, err
	}
	user, err := actor(c)
	if err != nil {
		return nil, err
	}
	return f.svc.ToggleThreadLike(c.Request.Context(), user, p.ThreadID)
}

// AddComment handles comments.add. A partial write reports the stored
// comment id in the error data.
func (f *ForumAPI) AddComment(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in forum.CommentInput
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	user, err := actor(c)
	if err != nil {
		return nil, err
	}
	id, err := f.svc.AddComment(c.Request.Context(), user, in)
	if err != nil {
		return nil, err
	}
	return gin.H{"id": id}, nil
}

// Comments handles comments.list
func (f *ForumAPI) Comments(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p threadParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if err := required("threadId", p.ThreadID); err != nil {
		return nil, err
	}
	comments, err := f.svc.Comments(c.Request.Context(), p.ThreadID)
	if err != nil {
		return nil, err
	}
	return renderComments(comments), nil
}

// ToggleCommentLike handles comments.toggle_like
func (f *ForumAPI) ToggleCommentLike(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p commentParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if err := required("commentId", p.CommentID); err != nil {
		return nil, err
	}
	user, err := actor(c)
	if err != nil {
		return nil, err
	}
	comment, err := f.svc.ToggleCommentLike(c.Request.Context(), user, p.CommentID)
	if err != nil {
		return nil, err
	}
	return comment.View(), nil
}

// UpdateProfile handles users.update_profile
func (f *ForumAPI) UpdateProfile(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in forum.ProfileInput
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	user, err := actor(c)
	if err != nil {
		return nil, err
	}
	return f.svc.UpdateProfile(c.Request.Context(), user, in)
}
