package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"federation/sso"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// loginMessage is the wire form of a login event.
type loginMessage struct {
	EventID string `json:"event_id"`
	sso.LoginEvent
}

// LoginPublisher publishes login events to a topic. Messages are keyed by
// provider and identity id so events of one user stay ordered.
type LoginPublisher struct {
	producer *Producer
}

// NewLoginPublisher creates a publisher writing through producer
func NewLoginPublisher(producer *Producer) *LoginPublisher {
	return &LoginPublisher{producer: producer}
}

// PublishLogin implements sso.EventPublisher.
func (p *LoginPublisher) PublishLogin(ctx context.Context, event sso.LoginEvent) error {
	msg, err := encodeLogin(event)
	if err != nil {
		return err
	}
	return p.producer.Produce(ctx, msg)
}

func encodeLogin(event sso.LoginEvent) (kafka.Message, error) {
	value, err := json.Marshal(loginMessage{EventID: uuid.NewString(), LoginEvent: event})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding login event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(fmt.Sprintf("%d:%s", event.ProviderID, event.IdentityID)),
		Value: value,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte("sso.login")},
		},
	}, nil
}

// Close closes the underlying producer
func (p *LoginPublisher) Close() error {
	return p.producer.Close()
}
