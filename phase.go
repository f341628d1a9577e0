package hsess

import "time"

// phaseFunc is one step of the session's phase state machine: Connect, then
// Main, then Close. Each step runs to completion on the worker goroutine and
// returns the next step, or nil when the session is finished. This is the
// "poor-man's tail recursion" shape described in §9: a single driving loop
// repeatedly calls whatever phaseFunc it was handed, rather than nesting
// continuations or a classic switch-on-state loop.
type phaseFunc func(c *Connection) phaseFunc

// run drives the phase chain to completion and tears the connection down
// once it terminates.
func (c *Connection) run() {
	phase := phaseFunc(connectPhase)
	for phase != nil {
		phase = phase(c)
	}
	c.terminate()
}

// connectPhase sends the SESS connect request, resending at a fixed
// interval up to a fixed attempt budget, until it sees a SESS reply or is
// interrupted. It reports the outcome via finishConnect exactly once.
func connectPhase(c *Connection) phaseFunc {
	const maxAttempts = 5
	const retryInterval = 2.0

	c.sendConnectRequest()
	lastSend := c.clock.Now()
	attempts := 1

	for {
		now := c.clock.Now()
		timeout := clampDuration(lastSend + retryInterval - now)

		select {
		case <-c.ctx.Done():
			c.finishConnect(newSessionError(SessErrConn, "interrupted"))
			return nil

		case res, ok := <-c.recvCh:
			if !ok || res.err != nil {
				c.finishConnect(newSessionError(SessErrConn, "transport closed"))
				return nil
			}
			if next, done := c.handleConnectReply(res.data); done {
				return next
			}
			// Not a usable SESS reply (wrong type, or malformed); keep
			// waiting for the current attempt's deadline.

		case <-time.After(timeout):
			if attempts >= maxAttempts {
				c.finishConnect(newSessionError(SessErrConn, "no reply"))
				return nil
			}
			c.sendConnectRequest()
			lastSend = c.clock.Now()
			attempts++
		}
	}
}

// handleConnectReply inspects one received datagram during Connect. done is
// true once the phase has a final answer (success or failure); next is the
// phase to run afterward (nil on failure).
func (c *Connection) handleConnectReply(raw []byte) (next phaseFunc, done bool) {
	typ, payload, err := decodePacket(raw)
	if err != nil || typ != PacketSess || len(payload) == 0 {
		return nil, false
	}
	c.metrics.received(typ)

	code := ErrorCode(payload[0])
	if code == SessErrOK {
		c.finishConnect(nil)
		return mainPhase, true
	}
	detail := ""
	if code == SessErrMesg && len(payload) > 1 {
		detail = decodeNullString(payload[1:])
	}
	c.finishConnect(newSessionError(code, detail))
	return nil, true
}

// mainPhase runs the established session: reliable delivery and
// acknowledgement, object-ack batching, heartbeats, and dispatch of
// unreliable bulk data, until a CLOSE arrives from the peer, the caller
// requests a close, or the transport fails.
func mainPhase(c *Connection) phaseFunc {
	for {
		now := c.clock.Now()
		timeout := c.nextTimeout(now)
		sawClose := false

		select {
		case <-c.ctx.Done():
			c.sawClose = false
			return closePhase

		case <-c.wakeCh:
			// Woken by a producer enqueue; fall through to the per-tick work
			// below without having read anything.

		case <-time.After(timeout):
			// Woken by a timer; fall through the same way.

		case res, ok := <-c.recvCh:
			if !ok || res.err != nil {
				c.log.WithError(res.err).Warn("hsess: transport read failed, ending session")
				return nil
			}
			sawClose = c.handleInboundMain(res.data)
		}

		// Drain any further datagrams already queued, without blocking, so a
		// burst of arrivals is processed in one tick rather than one per
		// select wakeup.
		burstClose, fatal := c.drainBurst()
		if fatal != nil {
			c.log.WithError(fatal).Warn("hsess: transport read failed, ending session")
			return nil
		}
		sawClose = sawClose || burstClose

		if sawClose {
			c.sawClose = true
			return closePhase
		}

		now = c.clock.Now()
		c.sendDueRetransmissions(now)
		c.sendDueObjAcks(now)
		c.sendDueAck(now)
		c.maybeSendHeartbeat(now)
	}
}

// drainBurst reads any datagrams already buffered on recvCh without
// blocking, returning sawClose=true if a CLOSE was among them.
func (c *Connection) drainBurst() (sawClose bool, fatal error) {
	for {
		select {
		case res, ok := <-c.recvCh:
			if !ok || res.err != nil {
				return sawClose, res.err
			}
			if c.handleInboundMain(res.data) {
				sawClose = true
			}
		default:
			return sawClose, nil
		}
	}
}

// closePhase emits an orderly-close request and waits for the peer's CLOSE,
// resending at a fixed interval up to a fixed attempt budget. Interrupts are
// ignored here: once teardown has begun it runs to completion or exhaustion.
// If the peer's CLOSE was already observed in mainPhase, the courtesy CLOSE
// above is the only thing owed to the peer; there is nothing left to wait for.
func closePhase(c *Connection) phaseFunc {
	const maxAttempts = 5
	const retryInterval = 0.5

	c.sendClosePacket()
	if c.sawClose {
		return nil
	}
	lastSend := c.clock.Now()
	attempts := 1

	for {
		now := c.clock.Now()
		timeout := clampDuration(lastSend + retryInterval - now)

		select {
		case res, ok := <-c.recvCh:
			if !ok || res.err != nil {
				return nil
			}
			typ, _, err := decodePacket(res.data)
			if err == nil && typ == PacketClose {
				c.metrics.received(typ)
				return nil
			}
			// Anything else is ignored while closing.

		case <-time.After(timeout):
			if attempts >= maxAttempts {
				return nil
			}
			c.sendClosePacket()
			lastSend = c.clock.Now()
			attempts++
		}
	}
}

// clampDuration converts a float seconds value to a non-negative
// time.Duration, treating anything already past as due immediately.
func clampDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
