package mq

import (
	"testing"

	"cloud.google.com/go/pubsub"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestAMQPAttributesRoundTrip(t *testing.T) {
	attrs := map[string]string{
		AttrContentType: "application/json",
		AttrKind:        "user.followed",
		AttrOrderingKey: "recipient-1",
		"trace":         "abc",
	}

	pub := toPublishing([]byte(`{}`), attrs, true)
	if pub.ContentType != "application/json" || pub.Type != "user.followed" || pub.CorrelationId != "recipient-1" {
		t.Fatalf("publishing properties = %+v", pub)
	}
	if pub.DeliveryMode != amqp.Persistent {
		t.Fatalf("delivery mode = %d, want persistent", pub.DeliveryMode)
	}
	if len(pub.Headers) != 1 || pub.Headers["trace"] != "abc" {
		t.Fatalf("headers = %v", pub.Headers)
	}

	msg := toMessage(amqp.Delivery{
		MessageId:     pub.MessageId,
		ContentType:   pub.ContentType,
		Type:          pub.Type,
		CorrelationId: pub.CorrelationId,
		Headers:       pub.Headers,
		Body:          pub.Body,
	})
	for key, want := range attrs {
		if got := msg.Attributes[key]; got != want {
			t.Errorf("attribute %s = %q, want %q", key, got, want)
		}
	}
	if msg.ID != pub.MessageId {
		t.Errorf("ID = %q, want %q", msg.ID, pub.MessageId)
	}
}

func TestTransientPublishing(t *testing.T) {
	pub := toPublishing(nil, nil, false)
	if pub.DeliveryMode != amqp.Transient {
		t.Fatalf("delivery mode = %d, want transient", pub.DeliveryMode)
	}
	if pub.ContentType != "application/octet-stream" || pub.MessageId == "" {
		t.Fatalf("defaults = %+v", pub)
	}
}

func TestPubSubOrderingKey(t *testing.T) {
	msg := toPubSubMessage([]byte("x"), map[string]string{
		AttrKind:        "post.liked",
		AttrOrderingKey: "recipient-2",
	})
	if msg.OrderingKey != "recipient-2" {
		t.Fatalf("ordering key = %q", msg.OrderingKey)
	}
	if _, ok := msg.Attributes[AttrOrderingKey]; ok {
		t.Fatal("ordering key leaked into attributes")
	}

	got := fromPubSubMessage(&pubsub.Message{ID: "1", Data: msg.Data, Attributes: msg.Attributes, OrderingKey: msg.OrderingKey})
	if got.Attributes[AttrKind] != "post.liked" || got.Attributes[AttrOrderingKey] != "recipient-2" {
		t.Fatalf("attributes = %v", got.Attributes)
	}
}

func TestSubscriptionName(t *testing.T) {
	p := &PubSubClient{subscriptionSuffix: "-sub"}
	if got := p.subscriptionName("social-activity"); got != "social-activity-sub" {
		t.Fatalf("subscriptionName = %q", got)
	}
}
