package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/frcoutreach/outreachnet/internal/forum"
	"github.com/frcoutreach/outreachnet/internal/models"
)

// AdminAPI provides moderation methods. Every method requires an active
// admin actor.
type AdminAPI struct {
	svc *forum.Service
}

// NewAdminAPI creates a new admin API
func NewAdminAPI(svc *forum.Service) *AdminAPI {
	return &AdminAPI{svc: svc}
}

type uidParams struct {
	UID  string `json:"uid"`
	Role string `json:"role,omitempty"`
}

func (a *AdminAPI) bindUID(c *gin.Context, params json.RawMessage) (*models.User, uidParams, error) {
	var p uidParams
	if err := bindParams(params, &p); err != nil {
		return nil, p, err
	}
	if err := required("uid", p.UID); err != nil {
		return nil, p, err
	}
	user, err := actor(c)
	return user, p, err
}

// DeleteComment handles admin.delete_comment
func (a *AdminAPI) DeleteComment(c *gin.Context, params json.RawMessage) (interface{}, error) {
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
	if err := a.svc.DeleteComment(c.Request.Context(), user, p.CommentID); err != nil {
		return nil, err
	}
	return gin.H{"ok": true}, nil
}

// BanUser handles admin.ban_user
func (a *AdminAPI) BanUser(c *gin.Context, params json.RawMessage) (interface{}, error) {
	user, p, err := a.bindUID(c, params)
	if err != nil {
		return nil, err
	}
	return a.svc.BanUser(c.Request.Context(), user, p.UID)
}

// UnbanUser handles admin.unban_user
func (a *AdminAPI) UnbanUser(c *gin.Context, params json.RawMessage) (interface{}, error) {
	user, p, err := a.bindUID(c, params)
	if err != nil {
		return nil, err
	}
	return a.svc.UnbanUser(c.Request.Context(), user, p.UID)
}

// SetRole handles admin.set_role
func (a *AdminAPI) SetRole(c *gin.Context, params json.RawMessage) (interface{}, error) {
	user, p, err := a.bindUID(c, params)
	if err != nil {
		return nil, err
	}
	if err := required("role", p.Role); err != nil {
		return nil, err
	}
	return a.svc.SetRole(c.Request.Context(), user, p.UID, models.Role(p.Role))
}

type updateUserParams struct {
	UID         string  `json:"uid"`
	DisplayName *string `json:"displayName"`
	Email       *string `json:"email"`
}

// UpdateUser handles admin.update_user
func (a *AdminAPI) UpdateUser(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p updateUserParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if err := required("uid", p.UID); err != nil {
		return nil, err
	}
	user, err := actor(c)
	if err != nil {
		return nil, err
	}
	return a.svc.UpdateUser(c.Request.Context(), user, p.UID, forum.UserInput{
		DisplayName: p.DisplayName,
		Email:       p.Email,
	})
}

// ListUsers handles admin.list_users
func (a *AdminAPI) ListUsers(c *gin.Context, params json.RawMessage) (interface{}, error) {
	user, err := actor(c)
	if err != nil {
		return nil, err
	}
	return a.svc.ListUsers(c.Request.Context(), user)
}

// Reconcile handles admin.reconcile
func (a *AdminAPI) Reconcile(c *gin.Context, params json.RawMessage) (interface{}, error) {
	user, err := actor(c)
	if err != nil {
		return nil, err
	}
	return a.svc.Reconcile(c.Request.Context(), user)
}
