package server

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luludotdev/smoorelay/pkg/config"
	"github.com/luludotdev/smoorelay/pkg/protocol"
)

// work is one (sender, packet) pair placed on the processing queue by a
// connection's read loop.
type work struct {
	sender uuid.UUID
	origin uuid.UUID
	msg    protocol.Message
}

// Processor is the single consumer of the relay's packet queue. It
// classifies each message, mutates the shared stores, and decides the
// reply disposition: dropped, disconnect, or broadcast.
type Processor struct {
	peers   *PeerStore
	players *PlayerStore
	moons   *MoonStore
	cfg     *config.Shared
	log     zerolog.Logger

	queue chan work
}

// NewProcessor wires a processor against the shared stores. queueSize
// bounds the processing queue; when full, Enqueue drops the oldest queued
// message, whichever sender queued it. No per-sender accounting is kept.
func NewProcessor(peers *PeerStore, players *PlayerStore, moons *MoonStore, cfg *config.Shared, log zerolog.Logger, queueSize int) *Processor {
	return &Processor{
		peers:   peers,
		players: players,
		moons:   moons,
		cfg:     cfg,
		log:     log,
		queue:   make(chan work, queueSize),
	}
}

// Enqueue places a message from sender (with embedded origin) onto the
// queue. If the queue is full, the oldest queued message is dropped to make
// room; if the queue is still full, msg itself is dropped. Both are logged —
// the processor never blocks a connection's read loop indefinitely.
func (p *Processor) Enqueue(sender, origin uuid.UUID, msg protocol.Message) {
	select {
	case p.queue <- work{sender: sender, origin: origin, msg: msg}:
	default:
		select {
		case <-p.queue:
			p.log.Warn().Str("sender", sender.String()).Msg("processing queue full, dropped oldest message")
		default:
		}
		select {
		case p.queue <- work{sender: sender, origin: origin, msg: msg}:
		default:
			p.log.Warn().Str("sender", sender.String()).Msg("processing queue full, dropped message")
		}
	}
}

// Run consumes the queue until it is closed or stop is signalled.
func (p *Processor) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case w, ok := <-p.queue:
			if !ok {
				return
			}
			p.dispatch(w)
		}
	}
}

func (p *Processor) dispatch(w work) {
	switch msg := w.msg.(type) {
	case protocol.InitMessage, protocol.DisconnectMessage:
		p.invalid(w.sender)

	case protocol.GameMessage:
		p.handleGame(w.sender, w.origin, msg)

	case protocol.CostumeMessage:
		p.handleCostume(w.sender, w.origin, msg)

	case protocol.MoonMessage:
		p.handleMoon(w.sender, w.origin, msg)

	case protocol.PlayerMessage:
		if sender, err := p.players.Get(w.sender); err == nil {
			sender.SetLastPos(msg)
		}
		p.peers.Broadcast(w.origin, msg)

	case protocol.CapMessage, protocol.CaptureMessage, protocol.ChangeStageMessage:
		p.peers.Broadcast(w.origin, msg)

	case protocol.TagMessage, protocol.UnknownMessage:
		// None: absorbed, no outbound traffic.

	default:
		p.log.Warn().Str("sender", w.sender.String()).Msg("unhandled message type in processor")
	}
}

// invalid disconnects the offending peer by closing its link; the read loop
// observes stream end and runs teardown.
func (p *Processor) invalid(sender uuid.UUID) {
	if peer, ok := p.peers.Get(sender); ok {
		p.log.Warn().Str("peer", sender.String()).Msg("received post-handshake Init/Disconnect, closing")
		peer.Close()
	}
}

func (p *Processor) handleGame(sender, origin uuid.UUID, msg protocol.GameMessage) {
	player, err := p.players.Get(sender)
	if err != nil {
		p.log.Debug().Str("sender", sender.String()).Msg("game message from unknown sender, dropped")
		return
	}

	prevScenario, _ := player.Scenario()
	if prevStage, ok := player.Stage(); !ok || prevStage != msg.Stage.String() || prevScenario != msg.Scenario {
		p.log.Info().
			Str("player", player.Name()).
			Str("stage", msg.Stage.String()).
			Uint8("scenario", msg.Scenario).
			Msg("stage change")
	}
	player.SetLastGame(msg)

	stage := msg.Stage.String()
	for _, other := range p.players.All() {
		if other.ID == sender {
			continue
		}
		otherStage, ok := other.Stage()
		if !ok || otherStage != stage {
			continue
		}
		pos, ok := other.GetLastPos()
		if !ok {
			continue
		}
		if peer, ok := p.peers.Get(sender); ok {
			if err := peer.SendFrom(other.ID, pos); err != nil {
				p.log.Debug().Err(err).Msg("catch-up send failed")
			}
		}
	}

	p.peers.Broadcast(origin, msg)
}

func (p *Processor) handleCostume(sender, origin uuid.UUID, msg protocol.CostumeMessage) {
	player, err := p.players.Get(sender)
	if err != nil {
		p.log.Debug().Str("sender", sender.String()).Msg("costume message from unknown sender, dropped")
		return
	}

	player.SetLoaded()
	body := msg.Body.String()
	capName := msg.Cap.String()
	player.SetCostume(Costume{Body: body, Cap: capName})

	cfg := p.cfg.Get()
	if !cfg.Costumes.IsAllowed(sender) {
		if cfg.Costumes.IsBanned(body) {
			body = "Mario"
		}
		if cfg.Costumes.IsBanned(capName) {
			capName = "Mario"
		}
	}

	bodyFixed, err := protocol.NewFixedString(0x20, body)
	if err != nil {
		bodyFixed, _ = protocol.NewFixedString(0x20, "Mario")
	}
	capFixed, err := protocol.NewFixedString(0x20, capName)
	if err != nil {
		capFixed, _ = protocol.NewFixedString(0x20, "Mario")
	}
	out := protocol.CostumeMessage{Body: bodyFixed, Cap: capFixed}

	p.runSync()
	p.peers.Broadcast(origin, out)
}

func (p *Processor) handleMoon(sender, origin uuid.UUID, msg protocol.MoonMessage) {
	player, err := p.players.Get(sender)
	if err != nil {
		p.log.Debug().Str("sender", sender.String()).Msg("moon message from unknown sender, dropped")
		return
	}
	if !player.IsLoaded() {
		return
	}

	if _, err := p.moons.Insert(msg.ID, msg.IsGrand); err != nil {
		p.log.Error().Err(err).Int32("moon", msg.ID).Msg("persist moon store")
	}

	if player.AddMoon(msg.ID) {
		p.log.Info().Str("player", player.Name()).Int32("moon", msg.ID).Msg("collected moon")
	}

	p.runSync()
	p.peers.Broadcast(origin, msg)
}

// runSync performs an immediate sync pass, mirroring the ticker's tick.
// Exposed for the processor's inline trigger after Costume/Moon handling.
func (p *Processor) runSync() {
	syncOnce(p.peers, p.players, p.moons, p.log)
}
