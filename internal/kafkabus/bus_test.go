package kafkabus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/switch-sensor/internal/events"
	"github.com/sweeney/switch-sensor/internal/switchctl"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	closed   bool
	deadline bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishWritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{Format: events.FormatJSON})

	ev := events.New(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), "garage", 22, switchctl.SwitchEvent, switchctl.Closed)
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "garage", string(msg.Key))
	assert.True(t, msg.Time.Equal(ev.Timestamp))
	assert.True(t, w.deadline, "publish should bound the write with a timeout")

	payload, err := events.Decode(msg.Value, events.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", payload.Switch.Event)
	assert.Equal(t, 22, payload.Switch.Pin)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, ev.ID.String(), headers["event-id"])
	assert.Equal(t, "application/json", headers["content-type"])
}

func TestPublishCBOR(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{Format: events.FormatCBOR})

	ev := events.New(time.Now(), "garage", 22, switchctl.SwitchEvent, switchctl.Opened)
	require.NoError(t, p.Publish(context.Background(), ev))

	payload, err := events.Decode(w.msgs[0].Value, events.FormatCBOR)
	require.NoError(t, err)
	assert.Equal(t, "OPENED", payload.Switch.Event)
	assert.Equal(t, "application/cbor", string(w.msgs[0].Headers[1].Value))
}

func TestPublishError(t *testing.T) {
	cause := errors.New("leader not available")
	w := &fakeWriter{err: cause}
	p := newPublisher(w, Config{})

	err := p.Publish(context.Background(), events.New(time.Now(), "a", 1, switchctl.SwitchEvent, switchctl.Closed))
	assert.ErrorIs(t, err, cause)
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{})
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	_, err := NewPublisher(Config{Topic: "x"})
	assert.Error(t, err)
}

func TestNewPublisherDefaults(t *testing.T) {
	p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)

	kw, ok := p.w.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, kw.Topic)
	assert.Equal(t, 5*time.Second, p.timeout)
	require.NoError(t, p.Close())
}
