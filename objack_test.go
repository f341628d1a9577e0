package hsess

import "testing"

func TestObjAckTrackerObserveTracksHighestFrame(t *testing.T) {
	tr := newObjAckTracker()
	tr.observe(7, 3, 0)
	tr.observe(7, 1, 1) // an older frame must not regress the tracked value
	tr.observe(7, 5, 2)

	tr.mu.Lock()
	e := tr.entries[7]
	tr.mu.Unlock()
	if e.frame != 5 {
		t.Fatalf("tracked frame = %d, want 5", e.frame)
	}
}

// TestObjAckTrackerDueConditionIsInverted pins down the tracker's observed
// (and intentionally preserved) emission rule: due() collects entries whose
// txtime has NOT yet elapsed, not entries whose txtime has passed.
func TestObjAckTrackerDueConditionIsInverted(t *testing.T) {
	tr := newObjAckTracker()
	tr.observe(1, 10, 0)

	// txtime() is lrecv+objAckIdleDelay = objAckIdleDelay here, which is
	// well in the future of now=0; the inverted condition flushes it anyway.
	batches := tr.due(0)
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("batches = %+v, want one batch with one entry", batches)
	}
	if tr.count() != 0 {
		t.Fatalf("count = %d, want 0 after flush", tr.count())
	}
}

func TestObjAckTrackerDueSkipsEntriesPastTxtime(t *testing.T) {
	tr := newObjAckTracker()
	tr.observe(1, 10, 0)

	// Once now has passed txtime, the inverted condition no longer collects
	// the entry: it is left tracked rather than flushed.
	batches := tr.due(objAckIdleDelay + 1)
	if len(batches) != 0 {
		t.Fatalf("batches = %+v, want none", batches)
	}
	if tr.count() != 1 {
		t.Fatalf("count = %d, want 1 (entry left tracked)", tr.count())
	}
}

func TestObjAckTrackerBatchesRespectPacketBudget(t *testing.T) {
	tr := newObjAckTracker()
	entriesPerBatch := objAckPacketBudget / objAckEntryWire
	n := entriesPerBatch + 2
	for i := 0; i < n; i++ {
		tr.observe(uint32(i), 0, 0)
	}

	batches := tr.due(0)
	total := 0
	for _, b := range batches {
		if len(b) > entriesPerBatch {
			t.Fatalf("batch of %d entries exceeds budget of %d", len(b), entriesPerBatch)
		}
		total += len(b)
	}
	if total != n {
		t.Fatalf("flushed %d entries, want %d", total, n)
	}
	if len(batches) < 2 {
		t.Fatalf("expected entries to split across multiple batches, got %d", len(batches))
	}
}

func TestObjAckTrackerNextDeadline(t *testing.T) {
	tr := newObjAckTracker()
	if _, ok := tr.nextDeadline(); ok {
		t.Fatalf("expected ok=false for an empty tracker")
	}
	tr.observe(1, 0, 5.0)
	tr.observe(2, 0, 1.0)

	deadline, ok := tr.nextDeadline()
	if !ok {
		t.Fatalf("expected a deadline once entries are tracked")
	}
	want := 1.0 + objAckIdleDelay
	if deadline != want {
		t.Fatalf("deadline = %v, want %v (earliest entry)", deadline, want)
	}
}
