package types

import (
	"slices"
	"time"
)

const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
)

// PostCategories is the closed set of post category tags.
var PostCategories = []string{"sports", "political", "fashion", "business", "technology", "health"}

// ContentTypes is the closed set of post content types.
var ContentTypes = []string{ContentTypeText, ContentTypeImage}

// Post represents a piece of content published by a user.
type Post struct {
	// ID is the unique identifier of the post.
	ID string `json:"id" db:"id" bson:"_id"`

	// UserID identifies the author of the post.
	UserID string `json:"user_id" db:"user_id" bson:"user_id"`

	// Type is the category tag of the post, one of PostCategories.
	Type string `json:"type" db:"type" bson:"type"`

	// ContentType is either "text" or "image".
	ContentType string `json:"content_type" db:"content_type" bson:"content_type"`

	// Content holds the text body, or the stored file path for image posts.
	Content string `json:"content" db:"content" bson:"content"`

	// Likes holds the identifiers of users who liked the post.
	Likes []string `json:"likes" db:"-" bson:"likes"`

	// CreatedAt is the timestamp at which the post was published.
	CreatedAt time.Time `json:"created_at" db:"created_at" bson:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// LikedBy reports whether userID is in the post's like set.
func (p Post) LikedBy(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

// FeedPost is a post enriched with its author and comments for feed views.
type FeedPost struct {
	Post
	Author   *UserSummary  `json:"author,omitempty"`
	Comments []FeedComment `json:"comments"`
}
