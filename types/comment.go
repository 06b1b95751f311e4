package types

import (
	"slices"
	"time"
)

// Comment represents a user's reply attached to a post.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID string `json:"id" db:"id" bson:"_id"`

	// PostID identifies the post this comment belongs to.
	PostID string `json:"post_id" db:"post_id" bson:"post_id"`

	// UserID identifies the author of the comment.
	UserID string `json:"user_id" db:"user_id" bson:"user_id"`

	// Description is the text body of the comment.
	Description string `json:"description" db:"description" bson:"description"`

	// Likes holds the identifiers of users who liked the comment.
	Likes []string `json:"likes" db:"-" bson:"likes"`

	// CreatedAt is the timestamp when the comment was written.
	CreatedAt time.Time `json:"created_at" db:"created_at" bson:"created_at"`

	// UpdatedAt is the timestamp of the most recent edit.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// LikedBy reports whether userID is in the comment's like set.
func (c Comment) LikedBy(userID string) bool {
	return slices.Contains(c.Likes, userID)
}

// FeedComment is a comment with its author summary.
type FeedComment struct {
	Comment
	Author *UserSummary `json:"author,omitempty"`
}
