package models

import (
	"github.com/frcoutreach/outreachnet/internal/docstore"
)

// Category is a thread's forum section
type Category string

const (
	CategoryCommunityEvents Category = "community_events"
	CategorySTEMOutreach    Category = "stem_outreach"
	CategoryFundraising     Category = "fundraising"
	CategoryMentorship      Category = "mentorship"
	CategoryTeamManagement  Category = "team_management"
	CategoryOther           Category = "other"
)

var categoryLabels = map[Category]string{
	CategoryCommunityEvents: "Community Events",
	CategorySTEMOutreach:    "STEM Outreach",
	CategoryFundraising:     "Fundraising",
	CategoryMentorship:      "Mentorship",
	CategoryTeamManagement:  "Team Management",
	CategoryOther:           "Other",
}

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{
		CategoryCommunityEvents,
		CategorySTEMOutreach,
		CategoryFundraising,
		CategoryMentorship,
		CategoryTeamManagement,
		CategoryOther,
	}
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human readable name.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Author is the display snapshot taken when content is created. It is not
// updated when the user later edits their profile.
type Author struct {
	DisplayName string  `gorm:"type:varchar(128);column:display_name" bson:"display_name" json:"displayName"`
	PhotoURL    *string `gorm:"type:varchar(1024);column:photo_url" bson:"photo_url" json:"photoURL"`
}

// Thread represents a discussion thread
type Thread struct {
	docstore.Meta `bson:",inline"`
	Title         string     `gorm:"type:varchar(255);not null;column:title" bson:"title" json:"title"`
	Content       string     `gorm:"type:text;not null;column:content" bson:"content" json:"content"`
	Category      Category   `gorm:"type:varchar(32);not null;index;column:category" bson:"category" json:"category"`
	Tags          StringList `gorm:"column:tags" bson:"tags" json:"tags"`
	UserID        string     `gorm:"type:varchar(128);not null;index;column:user_id" bson:"user_id" json:"userId"`
	Author        Author     `gorm:"embedded;embeddedPrefix:author_" bson:"author" json:"author"`
	CommentCount  int        `gorm:"not null;column:comment_count" bson:"comment_count" json:"commentCount"`
	ViewCount     int        `gorm:"not null;column:view_count" bson:"view_count" json:"viewCount"`
	Likes         StringSet  `gorm:"column:likes" bson:"likes" json:"likes"`
}

// TableName specifies the table name for Thread
func (Thread) TableName() string {
	return CollectionThreads
}
