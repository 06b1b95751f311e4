package services

import (
	"context"
	"time"

	"github.com/socialhub/apiserver/types"
)

// EventPublisher delivers activity events. Implementations must not block
// the caller on delivery failures.
type EventPublisher interface {
	Publish(ctx context.Context, event types.ActivityEvent)
}

// RelationshipRecorder observes committed relationship mutations.
type RelationshipRecorder interface {
	RecordRelationship(kind string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, types.ActivityEvent) {}

type nopRecorder struct{}

func (nopRecorder) RecordRelationship(string) {}

// Options carries the optional collaborators shared by the services.
type Options struct {
	Events  EventPublisher
	Metrics RelationshipRecorder
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Events == nil {
		o.Events = nopPublisher{}
	}
	if o.Metrics == nil {
		o.Metrics = nopRecorder{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) emit(ctx context.Context, kind types.EventKind, actorID, recipientID, subjectID string) {
	if recipientID == actorID {
		return
	}
	o.Events.Publish(ctx, types.ActivityEvent{
		Kind:        kind,
		ActorID:     actorID,
		RecipientID: recipientID,
		SubjectID:   subjectID,
		OccurredAt:  o.Now().UTC(),
	})
}
