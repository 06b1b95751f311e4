package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const localBuffer = 64

// LocalClient delivers messages between goroutines of one process. Each
// channel fans out to every active subscriber. Publishing never blocks: a
// subscriber whose buffer is full drops the message.
type LocalClient struct {
	mu     sync.Mutex
	subs   map[string]map[chan Message]struct{}
	closed bool
}

// NewLocalClient returns an empty in-process broker.
func NewLocalClient() *LocalClient {
	return &LocalClient{subs: make(map[string]map[chan Message]struct{})}
}

func (l *LocalClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("local channel is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", errors.New("local broker closed")
	}

	msg := Message{ID: uuid.NewString(), Data: data, Attributes: attrs}
	for sub := range l.subs[channel] {
		select {
		case sub <- msg:
		default:
		}
	}
	return msg.ID, nil
}

// Subscribe blocks, handing messages to handler until ctx is done or the
// broker is closed. Handler errors are dropped; there is no redelivery.
func (l *LocalClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("local channel is required")
	}

	sub := make(chan Message, localBuffer)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.New("local broker closed")
	}
	if l.subs[channel] == nil {
		l.subs[channel] = make(map[chan Message]struct{})
	}
	l.subs[channel][sub] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		if set, ok := l.subs[channel]; ok {
			delete(set, sub)
		}
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub:
			if !ok {
				return nil
			}
			_ = handler(ctx, msg)
		}
	}
}

// Subscribers reports the number of active subscribers on channel.
func (l *LocalClient) Subscribers(channel string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs[channel])
}

// Close ends every active subscription.
func (l *LocalClient) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for channel, set := range l.subs {
		for sub := range set {
			close(sub)
		}
		delete(l.subs, channel)
	}
	return nil
}
