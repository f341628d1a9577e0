package hsess

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// heartbeatInterval bounds the time between transmissions on an otherwise
// idle connection (§4.7).
const heartbeatInterval = 5.0

// recvResult is one item handed from the reader goroutine to the worker.
type recvResult struct {
	data []byte
	err  error
}

// Connection is one client-side session with a remote server. It owns a
// single UDP socket and a single worker goroutine; all reliability state
// (sender queue, receiver reorder buffer, object-ack tracker) is touched
// only from that worker, per §5. Producers interact with it exclusively
// through QueueMsg and Close.
type Connection struct {
	server     *net.UDPAddr
	username   string
	cookie     []byte
	args       []byte
	clientPver int

	conn *net.UDPConn

	sender   *reliableSender
	receiver *reliableReceiver
	objAcks  *objAckTracker

	handler     Handler
	mapCache    MapCache
	objectCache ObjectCache

	clock   Clock
	metrics *sessionMetrics
	log     *logrus.Entry
	id      xid.ID

	ctx    context.Context
	cancel context.CancelFunc

	recvCh     chan recvResult
	readerDone chan struct{}
	wakeCh     chan struct{}

	lasttx float64

	sendBuf []byte
	relBuf  []byte

	connectDone chan struct{}
	connectErr  error

	// sawClose records whether Main observed a peer CLOSE (as opposed to a
	// local interrupt) before handing off to closePhase; closePhase itself
	// always emits a CLOSE either way.
	sawClose bool

	doneCh    chan struct{}
	closeOnce sync.Once
}

// Connect dials server over UDP and drives the session through the Connect
// phase, blocking until it either reaches Main (success) or fails with a
// *SessionError: the server's nonzero reply code, or SessErrConn once the
// connect attempt budget is exhausted. args is the caller's
// already-encoded argument list, appended verbatim to the connect request.
func Connect(server *net.UDPAddr, username string, cookie []byte, args []byte, opts ...Option) (*Connection, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	conn, err := net.DialUDP("udp", nil, server)
	if err != nil {
		return nil, fmt.Errorf("hsess: dial %s: %w", server, err)
	}

	id := xid.New()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Connection{
		server:      server,
		username:    username,
		cookie:      cookie,
		args:        args,
		clientPver:  cfg.clientPver,
		conn:        conn,
		sender:      newReliableSender(),
		receiver:    newReliableReceiver(),
		objAcks:     newObjAckTracker(),
		handler:     cfg.handler,
		mapCache:    cfg.mapCache,
		objectCache: cfg.objectCache,
		clock:       cfg.clock,
		metrics:     newSessionMetrics(cfg.registerer, prometheus.Labels{"session_id": id.String()}),
		id:          id,
		ctx:         ctx,
		cancel:      cancel,
		recvCh:      make(chan recvResult),
		readerDone:  make(chan struct{}),
		wakeCh:      make(chan struct{}, 1),
		sendBuf:     make([]byte, maxPacketSize),
		relBuf:      make([]byte, maxPacketSize),
		connectDone: make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	c.log = cfg.logger.WithFields(logrus.Fields{
		"session_id": id.String(),
		"remote":     server.String(),
		"user":       username,
	})

	go c.readLoop()
	go c.run()

	<-c.connectDone
	if c.connectErr != nil {
		c.cancel()
		<-c.doneCh
		return nil, c.connectErr
	}
	return c, nil
}

// QueueMsg enqueues a reliable message for delivery and returns the
// sequence number assigned to it. It never blocks on the network.
func (c *Connection) QueueMsg(subType byte, payload []byte) uint16 {
	seq := c.sender.enqueue(subType, payload)
	c.wake()
	return seq
}

// Close requests an orderly teardown. It does not block; use Done to wait
// for the worker to finish. Calling it more than once, or after the session
// has already ended, is harmless.
func (c *Connection) Close() {
	c.cancel()
}

// Done returns a channel that is closed once the worker goroutine and its
// socket have fully torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.doneCh
}

// ID returns this connection's correlation id, also attached to every log
// line and metric it emits.
func (c *Connection) ID() string {
	return c.id.String()
}

func (c *Connection) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

func (c *Connection) finishConnect(err error) {
	c.connectErr = err
	close(c.connectDone)
}

// terminate closes the socket and releases the reader goroutine. It is
// called exactly once, from the end of run, regardless of which phase
// terminated the chain.
func (c *Connection) terminate() {
	c.closeOnce.Do(func() {
		close(c.readerDone)
		c.conn.Close()
		close(c.doneCh)
	})
}

// readLoop is the only goroutine that calls conn.Read. It never touches
// reliability state; it just forwards raw datagrams (or the terminal read
// error) to the worker over recvCh.
func (c *Connection) readLoop() {
	buf := make([]byte, maxPacketSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			select {
			case c.recvCh <- recvResult{err: err}:
			case <-c.readerDone:
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case c.recvCh <- recvResult{data: data}:
		case <-c.readerDone:
			return
		}
	}
}

// sendRaw frames payload under typ and writes it to the socket, updating
// the last-transmission clock used for the heartbeat. Send errors are
// logged and otherwise swallowed (§7.2): the reliability layer's own
// retransmission and retry timers are what recover from real packet loss,
// and a transient local write failure looks the same to them as loss.
func (c *Connection) sendRaw(typ PacketType, payload []byte) {
	n, err := encodePacket(c.sendBuf, typ, payload)
	if err != nil {
		c.log.WithError(err).Error("hsess: failed to encode outbound packet")
		return
	}
	_, werr := c.conn.Write(c.sendBuf[:n])
	c.lasttx = c.clock.Now()
	c.metrics.sent(typ)
	if werr != nil {
		c.log.WithError(werr).Debug("hsess: send error, treating as packet loss")
		return
	}
	c.log.WithField("type", typ).Trace("hsess: sent packet")
}

func (c *Connection) buildConnectPayload() []byte {
	buf := make([]byte, 0, 64+len(c.cookie)+len(c.args))
	buf = append(buf, byte(protocolVersion))
	buf = appendNullString(buf, serverIdent)
	buf = appendUint16(buf, uint16(c.clientPver))
	buf = appendNullString(buf, c.username)
	buf = appendUint16(buf, uint16(len(c.cookie)))
	buf = append(buf, c.cookie...)
	buf = append(buf, c.args...)
	return buf
}

func (c *Connection) sendConnectRequest() {
	c.sendRaw(PacketSess, c.buildConnectPayload())
}

func (c *Connection) sendClosePacket() {
	c.sendRaw(PacketClose, nil)
}

// nextTimeout computes how long the worker may safely wait before the next
// tick, as the earliest of: the heartbeat deadline (always present), the
// coalesced-ack deadline, the head-of-queue retransmission deadline, and
// the object-ack tracker's deadline (§4.7).
func (c *Connection) nextTimeout(now float64) time.Duration {
	deadline := c.lasttx + heartbeatInterval
	if d, ok := c.receiver.nextAckDeadline(); ok && d < deadline {
		deadline = d
	}
	if d, ok := c.sender.nextDeadline(now); ok && d < deadline {
		deadline = d
	}
	if d, ok := c.objAcks.nextDeadline(); ok && d < deadline {
		deadline = d
	}
	return clampDuration(deadline - now)
}

func (c *Connection) sendDueRetransmissions(now float64) {
	m, ok := c.sender.due(now)
	if ok {
		n, err := encodeRelPacket(c.relBuf, &m)
		if err != nil {
			c.log.WithError(err).Error("hsess: failed to encode REL message")
		} else {
			c.sendRaw(PacketRel, c.relBuf[:n])
			if m.retx > 0 {
				c.metrics.retransmitted()
			}
			c.sender.markSent(m.Seq, c.clock.Now())
		}
	}
	c.metrics.setPendingDepth(c.sender.depth())
}

func (c *Connection) sendDueObjAcks(now float64) {
	for _, batch := range c.objAcks.due(now) {
		c.sendRaw(PacketObjAck, encodeObjAckBatch(batch))
		c.metrics.objAcksFlushedBy(len(batch))
	}
	c.metrics.setTrackedObjects(c.objAcks.count())
}

func (c *Connection) sendDueAck(now float64) {
	seq, due := c.receiver.ackDue(now)
	if !due {
		return
	}
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, seq)
	c.sendRaw(PacketAck, payload)
	c.metrics.ackEmitted()
}

func (c *Connection) maybeSendHeartbeat(now float64) {
	if now-c.lasttx >= heartbeatInterval {
		c.sendRaw(PacketBeat, nil)
	}
}

// handleInboundMain dispatches one received datagram during Main. It
// returns true if the datagram was a CLOSE, signaling the caller to
// transition to closePhase.
func (c *Connection) handleInboundMain(raw []byte) bool {
	typ, payload, err := decodePacket(raw)
	if err != nil {
		return false
	}
	c.metrics.received(typ)
	now := c.clock.Now()

	switch typ {
	case PacketRel:
		msgs, err := decodeRelBody(payload)
		if err != nil {
			c.log.WithError(err).Debug("hsess: malformed REL packet, discarding")
			return false
		}
		for _, m := range msgs {
			c.receiver.deliver(m, now, c.handler.Handle)
		}
	case PacketAck:
		if len(payload) < 2 {
			return false
		}
		c.sender.ack(binary.LittleEndian.Uint16(payload[:2]))
	case PacketMapData:
		c.mapCache.MapData(payload)
	case PacketObjData:
		c.handleObjData(payload, now)
	case PacketClose:
		return true
	case PacketBeat, PacketSess, PacketObjAck:
		// Nothing to do with these once Main is established.
	default:
		// Unknown packet types are ignored (§7.6).
	}
	return false
}

// handleObjData walks the concatenated OBJDATA records in payload: each is
// a 1-byte flags field, a 32-bit object id, a 32-bit signed frame number,
// then a variable-length body that only the object cache knows how to
// consume. The same io.Reader cursor is reused across records so the cache
// consuming exactly its own body is what delimits one record from the
// next; a truncated header ends the loop early (§7.6).
func (c *Connection) handleObjData(payload []byte, now float64) {
	r := bytes.NewReader(payload)
	for r.Len() > 0 {
		var flags byte
		var id uint32
		var frame int32
		if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
			return
		}
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return
		}
		if err := binary.Read(r, binary.LittleEndian, &frame); err != nil {
			return
		}
		c.objAcks.observe(id, frame, now)
		c.objectCache.Receive(flags, id, frame, r)
	}
}
