// Package events moves activity events between the services and the
// message queue.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/socialhub/apiserver/internal/mq"
	"github.com/socialhub/apiserver/types"
)

const publishTimeout = 3 * time.Second

// Recorder observes publish outcomes.
type Recorder interface {
	RecordEvent(kind string, delivered bool)
}

// Publisher encodes events as JSON and publishes them on one channel.
// Failures are logged and counted; the caller is never blocked by them
// beyond publishTimeout.
type Publisher struct {
	queue    *mq.MQ
	channel  string
	logger   *slog.Logger
	recorder Recorder
}

func NewPublisher(queue *mq.MQ, channel string, logger *slog.Logger, recorder Recorder) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{queue: queue, channel: channel, logger: logger, recorder: recorder}
}

func (p *Publisher) Publish(ctx context.Context, event types.ActivityEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.fail(event, err)
		return
	}

	// Detach from the request so a client disconnect does not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	attrs := map[string]string{
		mq.AttrContentType: "application/json",
		mq.AttrKind:        string(event.Kind),
	}
	if event.RecipientID != "" {
		attrs[mq.AttrOrderingKey] = event.RecipientID
	}
	if _, err := p.queue.Publish(ctx, p.channel, data, attrs); err != nil {
		p.fail(event, err)
		return
	}
	if p.recorder != nil {
		p.recorder.RecordEvent(string(event.Kind), true)
	}
}

func (p *Publisher) fail(event types.ActivityEvent, err error) {
	p.logger.Warn("activity event dropped",
		slog.String("kind", string(event.Kind)),
		slog.String("actor_id", event.ActorID),
		slog.String("error", err.Error()),
	)
	if p.recorder != nil {
		p.recorder.RecordEvent(string(event.Kind), false)
	}
}

// Notifier consumes activity events and turns them into notifications
// for their recipients.
type Notifier struct {
	queue   *mq.MQ
	channel string
	logger  *slog.Logger
}

func NewNotifier(queue *mq.MQ, channel string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{queue: queue, channel: channel, logger: logger}
}

// Run blocks until ctx is done or the subscription fails.
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.Info("notifier listening", slog.String("channel", n.channel))
	return n.queue.Subscribe(ctx, n.channel, n.Handle)
}

// Handle processes a single message. Undecodable messages are logged and
// acknowledged so they are not redelivered forever.
func (n *Notifier) Handle(ctx context.Context, msg mq.Message) error {
	var event types.ActivityEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		n.logger.Error("undecodable activity event",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if event.RecipientID == "" {
		n.logger.Debug("activity event without recipient", slog.String("kind", string(event.Kind)))
		return nil
	}

	n.logger.InfoContext(ctx, "notification",
		slog.String("recipient_id", event.RecipientID),
		slog.String("text", Describe(event)),
		slog.String("kind", string(event.Kind)),
		slog.String("actor_id", event.ActorID),
		slog.String("subject_id", event.SubjectID),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// Describe renders a one-line notification text for event.
func Describe(event types.ActivityEvent) string {
	switch event.Kind {
	case types.EventUserFollowed:
		return "user " + event.ActorID + " started following you"
	case types.EventUserUnfollowed:
		return "user " + event.ActorID + " stopped following you"
	case types.EventPostLiked:
		return "user " + event.ActorID + " liked your post " + event.SubjectID
	case types.EventCommentCreated:
		return "user " + event.ActorID + " commented on your post"
	case types.EventPostCreated:
		return "user " + event.ActorID + " published post " + event.SubjectID
	default:
		return string(event.Kind)
	}
}
