package mqtt

import (
	"testing"
)

func TestOutboxEmptyDrain(t *testing.T) {
	o := newOutbox(10, nil)
	if got := o.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestOutboxPushAndDrain(t *testing.T) {
	o := newOutbox(10, nil)
	for i := 0; i < 5; i++ {
		o.push(bufferedMsg{topic: Topic, payload: []byte{byte(i)}})
	}

	got := o.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	if got2 := o.drainAll(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestOutboxOverflowDropsOldest(t *testing.T) {
	capacity := 5
	o := newOutbox(capacity, nil)

	// 0..7 pushed; the most recent 5 (3..7) survive.
	for i := 0; i < capacity+3; i++ {
		o.push(bufferedMsg{topic: Topic, payload: []byte{byte(i)}})
	}
	if o.dropped != 3 {
		t.Errorf("dropped: got %d, want 3", o.dropped)
	}

	got := o.drainAll()
	if len(got) != capacity {
		t.Fatalf("expected %d items, got %d", capacity, len(got))
	}
	for i := 0; i < capacity; i++ {
		if want := byte(i + 3); got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
}

func TestOutboxRetainedSupersedes(t *testing.T) {
	o := newOutbox(10, nil)
	o.push(bufferedMsg{topic: TopicSystem, payload: []byte("STARTUP"), retained: true})
	o.push(bufferedMsg{topic: Topic, payload: []byte("CLOSED")})
	o.push(bufferedMsg{topic: TopicSystem, payload: []byte("HEARTBEAT")})
	o.push(bufferedMsg{topic: TopicSystem, payload: []byte("SHUTDOWN"), retained: true})

	got := o.drainAll()
	want := []string{"CLOSED", "HEARTBEAT", "SHUTDOWN"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i, w := range want {
		if string(got[i].payload) != w {
			t.Errorf("item %d: got %s, want %s", i, got[i].payload, w)
		}
	}
	if o.dropped != 0 {
		t.Errorf("superseded retained messages are not drops, got %d", o.dropped)
	}
}

func TestOutboxMultipleCycles(t *testing.T) {
	o := newOutbox(5, nil)

	for i := 0; i < 3; i++ {
		o.push(bufferedMsg{topic: Topic, payload: []byte{byte(i)}})
	}
	if got := o.drainAll(); len(got) != 3 {
		t.Fatalf("cycle 1: expected 3 items, got %d", len(got))
	}

	for i := 10; i < 14; i++ {
		o.push(bufferedMsg{topic: Topic, payload: []byte{byte(i)}})
	}
	got := o.drainAll()
	if len(got) != 4 {
		t.Fatalf("cycle 2: expected 4 items, got %d", len(got))
	}
	for i, msg := range got {
		if want := byte(10 + i); msg.payload[0] != want {
			t.Errorf("cycle 2 item %d: expected %d, got %d", i, want, msg.payload[0])
		}
	}
}

func TestOutboxLen(t *testing.T) {
	o := newOutbox(10, nil)
	if o.len() != 0 {
		t.Errorf("expected len 0, got %d", o.len())
	}

	o.push(bufferedMsg{topic: Topic})
	o.push(bufferedMsg{topic: Topic})
	if o.len() != 2 {
		t.Errorf("expected len 2, got %d", o.len())
	}

	o.drainAll()
	if o.len() != 0 {
		t.Errorf("expected len 0 after drain, got %d", o.len())
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(10, nil)
	o.push(bufferedMsg{
		topic:    "home/switch/test",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got := o.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].topic != "home/switch/test" {
		t.Errorf("topic: got %s, want home/switch/test", got[0].topic)
	}
	if string(got[0].payload) != `{"test":true}` {
		t.Errorf("payload: got %s", got[0].payload)
	}
	if got[0].qos != 1 {
		t.Errorf("qos: got %d, want 1", got[0].qos)
	}
	if !got[0].retained {
		t.Error("retained: got false, want true")
	}
}

func TestOutboxOverflowFlagClearedOnDrain(t *testing.T) {
	o := newOutbox(2, nil)
	for i := 0; i < 3; i++ {
		o.push(bufferedMsg{topic: Topic})
	}
	if !o.overflow {
		t.Error("expected overflow after pushing past capacity")
	}

	o.drainAll()
	if o.overflow {
		t.Error("overflow should be cleared by drain")
	}
	if o.dropped != 1 {
		t.Errorf("dropped survives drain: got %d, want 1", o.dropped)
	}
}
