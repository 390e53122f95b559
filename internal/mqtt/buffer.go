package mqtt

import (
	"io"
	"log/slog"
	"slices"
)

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable, oldest
// first. A retained message supersedes any earlier retained message on the
// same topic, since the broker only keeps the last one. When full, the oldest
// message is dropped.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int  // total messages dropped for lack of space
	overflow bool // true if any message was dropped since last drain
	log      *slog.Logger
}

func newOutbox(capacity int, log *slog.Logger) *outbox {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &outbox{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
		log:      log,
	}
}

func (o *outbox) push(msg bufferedMsg) {
	if msg.retained {
		o.msgs = slices.DeleteFunc(o.msgs, func(m bufferedMsg) bool {
			return m.retained && m.topic == msg.topic
		})
	}
	if len(o.msgs) == o.capacity {
		if !o.overflow {
			o.log.Warn("mqtt outbox full, dropping oldest", slog.Int("capacity", o.capacity))
			o.overflow = true
		}
		o.msgs = slices.Delete(o.msgs, 0, 1)
		o.dropped++
	}
	o.msgs = append(o.msgs, msg)
}

// drainAll returns every held message in publish order and empties the outbox.
func (o *outbox) drainAll() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = make([]bufferedMsg, 0, o.capacity)
	o.overflow = false
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
