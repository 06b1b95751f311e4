package mq

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalFanOut(t *testing.T) {
	client := NewLocalClient()
	m := New(client)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 2)
	errs := make(chan error, 2)
	for range 2 {
		go func() {
			errs <- m.Subscribe(ctx, "activity", func(ctx context.Context, msg Message) error {
				received <- msg
				return nil
			})
		}()
	}
	waitFor(t, func() bool { return client.Subscribers("activity") == 2 })

	id, err := m.Publish(ctx, "activity", []byte(`{"kind":"x"}`), map[string]string{AttrContentType: "application/json"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for range 2 {
		select {
		case msg := <-received:
			if msg.ID != id || string(msg.Data) != `{"kind":"x"}` || msg.Attributes[AttrContentType] != "application/json" {
				t.Fatalf("message = %+v", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}

	cancel()
	for range 2 {
		if err := <-errs; !errors.Is(err, context.Canceled) {
			t.Fatalf("Subscribe returned %v, want context.Canceled", err)
		}
	}
	waitFor(t, func() bool { return client.Subscribers("activity") == 0 })
}

func TestLocalPublishWithoutSubscribers(t *testing.T) {
	client := NewLocalClient()
	if _, err := client.Publish(context.Background(), "nobody", []byte("x"), nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := client.Publish(context.Background(), " ", []byte("x"), nil); err == nil {
		t.Fatal("expected error for empty channel")
	}
	_ = client.Close()
	if _, err := client.Publish(context.Background(), "nobody", []byte("x"), nil); err == nil {
		t.Fatal("expected error after Close")
	}
}

func TestLocalCloseEndsSubscription(t *testing.T) {
	client := NewLocalClient()
	done := make(chan error, 1)
	go func() {
		done <- client.Subscribe(context.Background(), "activity", func(context.Context, Message) error { return nil })
	}()
	waitFor(t, func() bool { return client.Subscribers("activity") == 1 })

	_ = client.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Subscribe returned %v after Close", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Subscribe did not return after Close")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
