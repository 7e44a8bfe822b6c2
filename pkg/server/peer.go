package server

import (
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luludotdev/smoorelay/pkg/protocol"
)

// Peer is a single TCP connection bound to a player id. Writes are
// serialized through sendMu so concurrent broadcast fan-out and
// connection-local replies never interleave frame bytes on the wire.
type Peer struct {
	ID     uuid.UUID
	Remote net.Addr

	conn   net.Conn
	sendMu sync.Mutex
	closed bool

	log zerolog.Logger
}

// NewPeer wraps an accepted connection under id.
func NewPeer(id uuid.UUID, conn net.Conn, log zerolog.Logger) *Peer {
	return &Peer{
		ID:     id,
		Remote: conn.RemoteAddr(),
		conn:   conn,
		log:    log.With().Str("peer", id.String()).Logger(),
	}
}

// Send writes a frame originating from this peer's own id.
func (p *Peer) Send(msg protocol.Message) error {
	return p.sendFrom(p.ID, msg)
}

// SendServer writes a server-originated frame (zero uuid origin) to this peer.
func (p *Peer) SendServer(msg protocol.Message) error {
	return p.sendFrom(uuid.Nil, msg)
}

// SendFrom writes a frame on behalf of another peer's id, used when relaying
// traffic during broadcast fan-out.
func (p *Peer) SendFrom(origin uuid.UUID, msg protocol.Message) error {
	return p.sendFrom(origin, msg)
}

func (p *Peer) sendFrom(origin uuid.UUID, msg protocol.Message) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if p.closed {
		return net.ErrClosed
	}
	return protocol.WriteFrame(p.conn, origin, msg)
}

// Close closes the underlying connection. It is safe to call more than once.
func (p *Peer) Close() error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}
