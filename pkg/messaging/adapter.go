package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// ChannelPublisher wraps events in a Message and sends them to one channel.
type ChannelPublisher struct {
	broker  Broker
	channel string
	now     func() time.Time
}

func NewChannelPublisher(broker Broker, channel string) *ChannelPublisher {
	return &ChannelPublisher{broker: broker, channel: channel, now: time.Now}
}

func (p *ChannelPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	return p.broker.Publish(ctx, p.channel, Message{
		Type:       eventType,
		Payload:    payload,
		OccurredAt: p.now().UTC(),
	})
}

// Consume decodes messages from channel and hands them to handler until ctx
// is done. Undecodable messages and handler errors go to onError.
func Consume(ctx context.Context, broker Broker, channel string, handler func(Message) error, onError func(error)) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-msgChan:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				onError(err)
				continue
			}
			if err := handler(msg); err != nil {
				onError(err)
			}
		}
	}
}
