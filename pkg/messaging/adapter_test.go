package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBroker struct {
	published map[string][]interface{}
	incoming  chan []byte
}

func newMemoryBroker() *memoryBroker {
	return &memoryBroker{published: map[string][]interface{}{}, incoming: make(chan []byte, 10)}
}

func (b *memoryBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.published[channel] = append(b.published[channel], message)
	return nil
}

func (b *memoryBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.incoming, nil
}

func (b *memoryBroker) Close() error { return nil }

func TestChannelPublisher_WrapsEnvelope(t *testing.T) {
	broker := newMemoryBroker()
	p := NewChannelPublisher(broker, "clinic.appointments")
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	require.NoError(t, p.Publish(context.Background(), "appointment.created", map[string]string{"id": "apt-1"}))

	require.Len(t, broker.published["clinic.appointments"], 1)
	msg := broker.published["clinic.appointments"][0].(Message)
	assert.Equal(t, "appointment.created", msg.Type)
	assert.Equal(t, fixed, msg.OccurredAt)
}

func TestConsume(t *testing.T) {
	broker := newMemoryBroker()
	raw, err := json.Marshal(Message{Type: "appointment.deleted", Payload: "apt-1"})
	require.NoError(t, err)
	broker.incoming <- []byte("not json")
	broker.incoming <- raw
	close(broker.incoming)

	var (
		seen   []string
		errs   int
		failed = errors.New("handler failed")
	)
	err = Consume(context.Background(), broker, "clinic.appointments", func(m Message) error {
		seen = append(seen, m.Type)
		return failed
	}, func(error) { errs++ })

	assert.NoError(t, err)
	assert.Equal(t, []string{"appointment.deleted"}, seen)
	assert.Equal(t, 2, errs)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "appointment.created", nil))
}
