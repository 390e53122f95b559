package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/switch-sensor/internal/events"
)

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 256

// client is the subset of paho.Client used by RealPublisher.
type client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnectionOpen() bool
}

// Config configures a RealPublisher.
type Config struct {
	Broker     string
	ClientID   string
	Format     events.Format
	BufferSize int
	Logger     *slog.Logger
}

// RealPublisher publishes to an actual MQTT broker.
// Messages published while the connection is down are buffered and replayed
// on reconnect.
type RealPublisher struct {
	client client
	topic  string
	format events.Format
	log    *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	buf       *outbox
	connected bool // true once the first connection succeeded
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting in the background. It does not block on the broker.
func NewRealPublisher(cfg Config) *RealPublisher {
	p := newPublisher(cfg)

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(func(c paho.Client) { p.onConnect(c) }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("mqtt connection lost", slog.Any("err", err))
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func newPublisher(cfg Config) *RealPublisher {
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "mqtt"))
	return &RealPublisher{
		topic:  Topic,
		format: cfg.Format,
		log:    log,
		now:    time.Now,
		buf:    newOutbox(size, log),
	}
}

// Publish sends a switch transition to the MQTT broker.
func (p *RealPublisher) Publish(event events.Event) error {
	payload, err := events.Encode(event, p.format)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1 (at-least-once), not retained
	return p.send(bufferedMsg{topic: p.topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect replays buffered messages and, after a reconnect, announces
// RECONNECTED to overwrite the retained last-will.
func (p *RealPublisher) onConnect(c client) {
	p.mu.Lock()
	msgs := p.buf.drainAll()
	reconnect := p.connected
	p.connected = true
	p.mu.Unlock()

	p.log.Info("mqtt connected", slog.Int("replay", len(msgs)), slog.Bool("reconnect", reconnect))

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		c.Publish(TopicSystem, 1, true, payload)
	}
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Dropped returns how many messages were discarded because the outbox was full.
func (p *RealPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.dropped
}

// IsConnected reports whether the client currently holds a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
