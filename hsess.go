// Package hsess implements the client side of a reliable-messaging session
// layer that runs over a connectionless datagram transport.
//
// It establishes an authenticated session with a remote server, reliably
// delivers two ordered streams of short control messages, acknowledges them
// with delayed/coalesced acks, accepts unreliable bulk data (map tiles and
// object-state deltas), and performs an orderly teardown.
package hsess

const (
	// protocolVersion is the SESS connect-request protocol version tag.
	protocolVersion = 2
	// serverIdent is the literal server-identifier string carried in every
	// connect request.
	serverIdent = "Hafen"
	// maxPacketSize bounds an encoded datagram: a one-byte type tag plus at
	// most ~64KiB of payload.
	maxPacketSize = 65536
)
