package hsess

import "sync"

// Retransmission tiers, keyed on the message's retx count (§4.4).
const (
	retxTier1 = 0.08
	retxTier2 = 0.20
	retxTier3 = 0.62
	retxTier4 = 2.00
)

// retxDelay returns the interval to wait before the next retransmission of a
// message that has been sent retx times so far.
func retxDelay(retx int) float64 {
	switch {
	case retx <= 1:
		return retxTier1
	case retx <= 4:
		return retxTier2
	case retx <= 9:
		return retxTier3
	default:
		return retxTier4
	}
}

// reliableSender owns the ordered queue of outbound reliable messages and
// the next sequence number to assign. It is safe for concurrent use by
// producers calling enqueue and the worker draining/acking the queue.
type reliableSender struct {
	mu      sync.Mutex
	tseq    uint16
	pending []RMessage
}

func newReliableSender() *reliableSender {
	return &reliableSender{}
}

// enqueue assigns the next seq to m and appends it to the pending queue in
// FIFO order. It returns the assigned seq.
func (s *reliableSender) enqueue(subType byte, payload []byte) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.tseq
	s.tseq++
	s.pending = append(s.pending, RMessage{Seq: seq, SubType: subType, Payload: payload})
	return seq
}

// due returns a copy of the oldest pending message if it is eligible for
// (re)transmission at time now, or ok=false if none is due yet.
func (s *reliableSender) due(now float64) (msg RMessage, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return RMessage{}, false
	}
	m := s.pending[0]
	if m.retx == 0 {
		return m, true
	}
	if now >= m.last+retxDelay(m.retx) {
		return m, true
	}
	return RMessage{}, false
}

// markSent records a transmission of the message at the head of the pending
// queue (identified by seq, which must match the head to guard against a
// race with a concurrent ack).
func (s *reliableSender) markSent(seq uint16, now float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 || s.pending[0].Seq != seq {
		return
	}
	s.pending[0].last = now
	s.pending[0].retx++
}

// nextDeadline returns the absolute time the head of the pending queue
// becomes due, and ok=false if the queue is empty. A never-sent head is
// already due, so its deadline is reported as now.
func (s *reliableSender) nextDeadline(now float64) (deadline float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return 0, false
	}
	m := &s.pending[0]
	if m.retx == 0 {
		return now, true
	}
	return m.last + retxDelay(m.retx), true
}

// ack removes from the head of the pending queue every message whose
// sequence is already acknowledged by seq (signed difference <= 0), per
// §4.4. It stops at the first message strictly newer than seq.
func (s *reliableSender) ack(seq uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := 0
	for ; i < len(s.pending); i++ {
		if seqDiff(s.pending[i].Seq, seq) > 0 {
			break
		}
	}
	s.pending = s.pending[i:]
}

// depth reports the current pending-queue length, for metrics/tests only.
func (s *reliableSender) depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
