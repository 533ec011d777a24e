package models

import (
	"github.com/frcoutreach/outreachnet/internal/docstore"
)

// DeletedCommentPlaceholder replaces the content of moderated comments.
const DeletedCommentPlaceholder = "[This comment has been removed by a moderator]"

// Comment represents a reply on a thread
type Comment struct {
	docstore.Meta `bson:",inline"`
	ThreadID      string    `gorm:"type:varchar(128);not null;index;column:thread_id" bson:"thread_id" json:"threadId"`
	Content       string    `gorm:"type:text;not null;column:content" bson:"content" json:"content"`
	UserID        string    `gorm:"type:varchar(128);not null;index;column:user_id" bson:"user_id" json:"userId"`
	Author        Author    `gorm:"embedded;embeddedPrefix:author_" bson:"author" json:"author"`
	Likes         StringSet `gorm:"column:likes" bson:"likes" json:"likes"`
	IsDeleted     bool      `gorm:"not null;column:is_deleted" bson:"is_deleted" json:"isDeleted"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return CollectionComments
}

// Interactive reports whether the comment can be liked or replied to.
func (c *Comment) Interactive() bool {
	return !c.IsDeleted
}

// View returns the comment as it should be rendered. Deleted comments show
// the placeholder and no likes; storage keeps the likes.
func (c Comment) View() Comment {
	if !c.IsDeleted {
		return c
	}
	c.Content = DeletedCommentPlaceholder
	c.Likes = StringSet{}
	return c
}
