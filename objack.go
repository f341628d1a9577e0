package hsess

import "sync"

// Object-ack timing constants (§4.6).
const (
	objAckIdleDelay = 0.08 // time since last observation
	objAckAgeDelay  = 0.50 // time since first observation of the unacked run
)

// objAckPacketBudget bounds the size of one OBJACK packet: entries are
// flushed whenever the current packet would exceed 1000-8 bytes.
const objAckPacketBudget = 1000 - 8

// objAckEntryWire is the wire size of one (id, frame) pair in an OBJACK
// packet.
const objAckEntryWire = 8

// objAck is the per-object frame-acknowledgement state (§3).
type objAck struct {
	frame int32
	frecv float64
	lrecv float64
}

// objAckTracker batches per-object frame acknowledgements into OBJACK
// packets. Owned exclusively by the worker goroutine.
type objAckTracker struct {
	mu      sync.Mutex
	entries map[uint32]*objAck
}

func newObjAckTracker() *objAckTracker {
	return &objAckTracker{entries: make(map[uint32]*objAck)}
}

// observe records one OBJDATA record's (id, frame) pair at time now.
func (t *objAckTracker) observe(id uint32, frame int32, now float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		t.entries[id] = &objAck{frame: frame, frecv: now, lrecv: now}
		return
	}
	if frame > e.frame {
		e.frame = frame
	}
	e.lrecv = now
}

// txtime computes the emission deadline for an entry, per §4.6.
func (e *objAck) txtime() float64 {
	a := e.lrecv + objAckIdleDelay
	b := e.frecv + objAckAgeDelay
	if a < b {
		return a
	}
	return b
}

// due flushes tracked entries into batches of (id, frame) pairs sized to fit
// objAckPacketBudget each, removing flushed entries from the tracker.
//
// This preserves the source's observed (likely inverted) condition: an
// entry is collected when txtime >= now, i.e. entries that are NOT yet due
// by the surrounding retransmission convention are the ones flushed. See
// §9 design notes; this is intentional fidelity to the original behavior,
// not a bug in this port.
func (t *objAckTracker) due(now float64) [][]uint64encodedPair {
	t.mu.Lock()
	defer t.mu.Unlock()

	var batches [][]uint64encodedPair
	var cur []uint64encodedPair
	size := 0
	for id, e := range t.entries {
		if e.txtime() < now {
			continue
		}
		if size+objAckEntryWire > objAckPacketBudget && len(cur) > 0 {
			batches = append(batches, cur)
			cur = nil
			size = 0
		}
		cur = append(cur, uint64encodedPair{id: id, frame: e.frame})
		size += objAckEntryWire
		delete(t.entries, id)
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// uint64encodedPair is the (id, frame) pair packed into an OBJACK batch.
type uint64encodedPair struct {
	id    uint32
	frame int32
}

// nextDeadline returns the minimum txtime among all tracked entries; it
// applies no due filter itself. In the worker loop the previous due() call
// has already flushed the rest, so the entries still tracked are the ones
// the due-condition above skipped.
func (t *objAckTracker) nextDeadline() (deadline float64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		tt := e.txtime()
		if !ok || tt < deadline {
			deadline = tt
			ok = true
		}
	}
	return deadline, ok
}

// count reports the number of tracked (unflushed) object ids, for metrics.
func (t *objAckTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
