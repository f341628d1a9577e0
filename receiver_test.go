package hsess

import "testing"

func TestReliableReceiverInOrderDelivery(t *testing.T) {
	r := newReliableReceiver()
	var got []uint16
	handle := func(m RMessage) { got = append(got, m.Seq) }

	r.deliver(RMessage{Seq: 0, Payload: []byte("a")}, 0, handle)
	r.deliver(RMessage{Seq: 1, Payload: []byte("b")}, 0, handle)

	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("got = %v, want [0 1]", got)
	}
	if r.cursor() != 2 {
		t.Fatalf("cursor = %d, want 2", r.cursor())
	}
}

func TestReliableReceiverReordersAndDrains(t *testing.T) {
	r := newReliableReceiver()
	var got []uint16
	handle := func(m RMessage) { got = append(got, m.Seq) }

	r.deliver(RMessage{Seq: 2}, 0, handle) // arrives early, buffered
	if len(got) != 0 {
		t.Fatalf("out-of-order message delivered early: %v", got)
	}
	r.deliver(RMessage{Seq: 0}, 0, handle)
	r.deliver(RMessage{Seq: 1}, 0, handle) // should drain seq 2 from the reorder buffer too

	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("got = %v, want [0 1 2]", got)
	}
	if r.cursor() != 3 {
		t.Fatalf("cursor = %d, want 3", r.cursor())
	}
}

func TestReliableReceiverDropsStale(t *testing.T) {
	r := newReliableReceiver()
	var got []uint16
	handle := func(m RMessage) { got = append(got, m.Seq) }

	r.deliver(RMessage{Seq: 0}, 0, handle)
	r.deliver(RMessage{Seq: 0}, 0, handle) // duplicate/stale, must be discarded

	if len(got) != 1 {
		t.Fatalf("got = %v, want exactly one delivery", got)
	}
}

func TestReliableReceiverAckCoalescing(t *testing.T) {
	r := newReliableReceiver()
	handle := func(RMessage) {}

	if _, due := r.ackDue(0); due {
		t.Fatalf("ack reported due with nothing delivered yet")
	}

	r.deliver(RMessage{Seq: 0}, 1.0, handle)
	if _, due := r.ackDue(1.0 + ackHoldDelay - 0.001); due {
		t.Fatalf("ack fired before hold delay elapsed")
	}
	seq, due := r.ackDue(1.0 + ackHoldDelay)
	if !due || seq != 0 {
		t.Fatalf("ackDue = (%d, %v), want (0, true)", seq, due)
	}
	// Consuming the due ack clears it until another delivery arrives.
	if _, due := r.ackDue(1.0 + ackHoldDelay); due {
		t.Fatalf("ack still pending after being consumed")
	}
}

func TestReliableReceiverAckTracksLastOfContiguousRun(t *testing.T) {
	r := newReliableReceiver()
	handle := func(RMessage) {}

	r.deliver(RMessage{Seq: 1}, 0, handle) // buffered
	r.deliver(RMessage{Seq: 0}, 0, handle) // drains 0 and 1

	seq, due := r.ackDue(ackHoldDelay)
	if !due || seq != 1 {
		t.Fatalf("ackDue = (%d, %v), want (1, true)", seq, due)
	}
}
