package models

import (
	"time"

	"github.com/frcoutreach/outreachnet/internal/docstore"
)

// Collection names
const (
	CollectionUsers       = "users"
	CollectionThreads     = "threads"
	CollectionComments    = "comments"
	CollectionCredentials = "credentials"
)

// Role is a user's permission level
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Status is a user's moderation state
type Status string

const (
	StatusActive    Status = "active"
	StatusBanned    Status = "banned"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusBanned || s == StatusSuspended
}

// Profile is the stored user record, keyed by the identity provider's uid.
type Profile struct {
	docstore.Meta `bson:",inline"`
	DisplayName   string  `gorm:"type:varchar(128);not null;column:display_name" bson:"display_name" json:"displayName"`
	Email         string  `gorm:"type:varchar(255);not null;index;column:email" bson:"email" json:"email"`
	PhotoURL      *string `gorm:"type:varchar(1024);column:photo_url" bson:"photo_url" json:"photoURL"`
	Role          Role    `gorm:"type:varchar(16);column:role" bson:"role" json:"role"`
	Status        Status  `gorm:"type:varchar(16);column:status" bson:"status" json:"status"`
}

// TableName specifies the table name for Profile
func (Profile) TableName() string {
	return CollectionUsers
}

// EffectiveRole returns the role, defaulting to user when absent.
func (p *Profile) EffectiveRole() Role {
	if p.Role == "" {
		return RoleUser
	}
	return p.Role
}

// EffectiveStatus returns the status, defaulting to active when absent.
func (p *Profile) EffectiveStatus() Status {
	if p.Status == "" {
		return StatusActive
	}
	return p.Status
}

// User is a profile merged with the signed-in identity.
type User struct {
	UID         string    `json:"uid"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	PhotoURL    *string   `json:"photoURL"`
	Role        Role      `json:"role"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserFromProfile builds a User from the stored profile alone.
func UserFromProfile(p *Profile) *User {
	return &User{
		UID:         p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		PhotoURL:    p.PhotoURL,
		Role:        p.EffectiveRole(),
		Status:      p.EffectiveStatus(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsActive reports whether u may post and like.
func (u *User) IsActive() bool {
	return u != nil && (u.Status == StatusActive || u.Status == "")
}

// Author returns the snapshot stored on new threads and comments.
func (u *User) Author() Author {
	return Author{DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}
}
