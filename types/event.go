package types

import "time"

// EventKind names an activity event published on the message queue.
type EventKind string

const (
	EventUserFollowed   EventKind = "user.followed"
	EventUserUnfollowed EventKind = "user.unfollowed"
	EventPostCreated    EventKind = "post.created"
	EventPostLiked      EventKind = "post.liked"
	EventCommentCreated EventKind = "comment.created"
)

// ActivityEvent describes a social interaction that may interest another user.
type ActivityEvent struct {
	// Kind identifies what happened.
	Kind EventKind `json:"kind"`

	// ActorID is the user who performed the action.
	ActorID string `json:"actor_id"`

	// RecipientID is the user the action concerns (the followed user,
	// the post author, ...). Empty when there is no single recipient.
	RecipientID string `json:"recipient_id,omitempty"`

	// SubjectID identifies the post or comment involved, if any.
	SubjectID string `json:"subject_id,omitempty"`

	// OccurredAt is when the action was committed.
	OccurredAt time.Time `json:"occurred_at"`
}
