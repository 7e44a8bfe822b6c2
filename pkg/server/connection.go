package server

import (
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luludotdev/smoorelay/pkg/config"
	"github.com/luludotdev/smoorelay/pkg/protocol"
)

// connState names the per-connection lifecycle phase (spec.md §4.7).
type connState int

const (
	stateAccepted connState = iota
	stateHandshakeSent
	stateAwaitConnect
	stateRegistered
	stateRunning
	stateTeardown
	stateClosed
)

// connHandler drives one accepted socket through the handshake and read
// loop, mutating the shared stores and forwarding decoded messages to the
// processor.
type connHandler struct {
	conn    net.Conn
	peers   *PeerStore
	players *PlayerStore
	cfg     *config.Shared
	proc    *Processor
	log     zerolog.Logger

	state  connState
	peerID uuid.UUID
	peer   *Peer
}

func newConnHandler(conn net.Conn, peers *PeerStore, players *PlayerStore, cfg *config.Shared, proc *Processor, log zerolog.Logger) *connHandler {
	return &connHandler{
		conn:    conn,
		peers:   peers,
		players: players,
		cfg:     cfg,
		proc:    proc,
		log:     log.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		state:   stateAccepted,
	}
}

// run drives the handler through its full lifecycle, returning once the
// connection is CLOSED.
func (h *connHandler) run() {
	defer h.conn.Close()

	if tc, ok := h.conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			h.log.Debug().Err(err).Msg("set no delay")
		}
	}
	h.state = stateHandshakeSent

	maxPlayers := h.cfg.Get().Server.MaxPlayers
	if err := protocol.WriteFrame(h.conn, uuid.Nil, protocol.InitMessage{MaxPlayers: uint16(maxPlayers)}); err != nil {
		h.log.Debug().Err(err).Msg("handshake init write failed")
		h.state = stateClosed
		return
	}
	h.state = stateAwaitConnect

	frame, err := protocol.ReadFrame(h.conn)
	if err != nil {
		h.log.Debug().Err(err).Msg("await-connect read failed")
		h.state = stateClosed
		return
	}
	connectMsg, ok := frame.Payload.(protocol.ConnectMessage)
	if !ok {
		h.log.Warn().Msg("first frame after handshake was not Connect, closing")
		h.state = stateClosed
		return
	}

	if !h.register(frame.Origin, connectMsg, uint16(maxPlayers)) {
		h.state = stateClosed
		return
	}
	h.state = stateRunning

	h.readLoop()

	h.state = stateTeardown
	h.teardown()
	h.state = stateClosed
}

// register implements the AWAIT_CONNECT -> REGISTERED transition: capacity
// check, bootstrap snapshot, store insertion, and broadcast of the joiner's
// Connect frame.
func (h *connHandler) register(id uuid.UUID, msg protocol.ConnectMessage, maxPlayers uint16) bool {
	h.peerID = id

	isReconnect := false
	if prior, ok := h.peers.Get(id); ok {
		isReconnect = true
		prior.Close()
	} else if h.peers.Count() >= int(maxPlayers) {
		h.log.Info().Str("peer", id.String()).Msg("rejected connect: at capacity")
		return false
	}

	newPeer := NewPeer(id, h.conn, h.log)

	// Bootstrap snapshot: every other registered player's Connect + costume,
	// sent before this peer is inserted into the peer store so it cannot
	// yet be the target of a concurrent broadcast.
	for _, other := range h.players.All() {
		if other.ID == id {
			continue
		}
		nickname, err := protocol.NewFixedString(0x20, other.Name())
		if err != nil {
			nickname, _ = protocol.NewFixedString(0x20, "")
		}
		connectFrame := protocol.ConnectMessage{
			ConnectionType: protocol.ConnectionInit,
			MaxPlayers:     maxPlayers,
			Nickname:       nickname,
		}
		if err := newPeer.SendFrom(other.ID, connectFrame); err != nil {
			h.log.Debug().Err(err).Msg("bootstrap connect send failed")
			continue
		}
		if costume, ok := other.GetCostume(); ok {
			costumeFrame, err := buildCostumeMessage(costume)
			if err == nil {
				if err := newPeer.SendFrom(other.ID, costumeFrame); err != nil {
					h.log.Debug().Err(err).Msg("bootstrap costume send failed")
				}
			}
		}
	}

	h.peers.Insert(id, newPeer)
	h.peer = newPeer

	if _, err := h.players.Get(id); err != nil {
		h.players.Insert(newPlayer(id, msg.Nickname.String()))
	} else {
		h.log.Info().Str("peer", id.String()).Msg("reconnected")
	}

	h.peers.Broadcast(id, msg)
	if player, err := h.players.Get(id); err == nil && isReconnect {
		if costume, ok := player.GetCostume(); ok {
			if costumeFrame, err := buildCostumeMessage(costume); err == nil {
				h.peers.Broadcast(id, costumeFrame)
			}
		}
	}

	return true
}

func buildCostumeMessage(c Costume) (protocol.CostumeMessage, error) {
	body, err := protocol.NewFixedString(0x20, c.Body)
	if err != nil {
		return protocol.CostumeMessage{}, err
	}
	cap, err := protocol.NewFixedString(0x20, c.Cap)
	if err != nil {
		return protocol.CostumeMessage{}, err
	}
	return protocol.CostumeMessage{Body: body, Cap: cap}, nil
}

// readLoop decodes frames until the stream ends or a decode error occurs,
// enqueuing each onto the shared processing queue.
func (h *connHandler) readLoop() {
	for {
		frame, err := protocol.ReadFrame(h.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.log.Debug().Err(err).Msg("read loop ended")
			}
			return
		}
		h.proc.Enqueue(h.peerID, frame.Origin, frame.Payload)
	}
}

// teardown implements RUNNING -> TEARDOWN: remove and close the peer link,
// then broadcast Disconnect. The Player entry is left in place.
//
// A reconnect may already have replaced this handler's link in the peer
// store by the time its readLoop unblocks on the closed socket, so removal
// is compare-and-delete: only the link this handler itself installed is
// ever removed, and Disconnect is only broadcast when that removal actually
// happened. Otherwise the reconnecting client's fresh link would be torn
// down by its predecessor's teardown.
func (h *connHandler) teardown() {
	if h.peer == nil {
		return
	}
	if h.peers.RemoveIfCurrent(h.peerID, h.peer) {
		h.peers.Broadcast(h.peerID, protocol.DisconnectMessage{})
	}
}
