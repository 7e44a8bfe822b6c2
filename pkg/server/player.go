package server

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/luludotdev/smoorelay/pkg/protocol"
)

// Costume is a player's current body/cap cosmetic pair.
type Costume struct {
	Body string
	Cap  string
}

// Player is the logical identity bound to a player id. Unlike a Peer, a
// Player survives disconnects: costume, collected moons, and last-known
// stage are retained across reconnects.
type Player struct {
	ID uuid.UUID

	mu       sync.Mutex
	name     string
	Loaded   bool
	Costume  *Costume
	Is2D     bool
	moons    map[int32]struct{}
	moonOrd  []int32
	LastPos  *protocol.PlayerMessage
	LastGame *protocol.GameMessage
}

// newPlayer creates a fresh Player for id with the given display name.
func newPlayer(id uuid.UUID, name string) *Player {
	return &Player{
		ID:    id,
		name:  name,
		moons: make(map[int32]struct{}),
	}
}

// Name returns the player's display name, fixed at registration.
func (p *Player) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Stage returns the stage name from the player's last Game message, if any.
func (p *Player) Stage() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.LastGame == nil {
		return "", false
	}
	return p.LastGame.Stage.String(), true
}

// Scenario returns the scenario id from the player's last Game message, if
// any.
func (p *Player) Scenario() (uint8, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.LastGame == nil {
		return 0, false
	}
	return p.LastGame.Scenario, true
}

// SetLoaded marks the player as having announced a costume at least once.
func (p *Player) SetLoaded() {
	p.mu.Lock()
	p.Loaded = true
	p.mu.Unlock()
}

// IsLoaded reports whether the player has announced a costume.
func (p *Player) IsLoaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Loaded
}

// SetCostume replaces the player's recorded costume.
func (p *Player) SetCostume(c Costume) {
	p.mu.Lock()
	p.Costume = &c
	p.mu.Unlock()
}

// GetCostume returns a copy of the player's costume, if set.
func (p *Player) GetCostume() (Costume, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Costume == nil {
		return Costume{}, false
	}
	return *p.Costume, true
}

// SetLastPos records the most recent motion snapshot.
func (p *Player) SetLastPos(msg protocol.PlayerMessage) {
	p.mu.Lock()
	p.LastPos = &msg
	p.mu.Unlock()
}

// GetLastPos returns a copy of the last motion snapshot, if any.
func (p *Player) GetLastPos() (protocol.PlayerMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.LastPos == nil {
		return protocol.PlayerMessage{}, false
	}
	return *p.LastPos, true
}

// SetLastGame records the most recent Game snapshot and derived is_2d flag.
func (p *Player) SetLastGame(msg protocol.GameMessage) {
	p.mu.Lock()
	p.LastGame = &msg
	p.Is2D = msg.Is2D
	p.mu.Unlock()
}

// HasMoon reports whether the player has previously collected moon id.
func (p *Player) HasMoon(id int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.moons[id]
	return ok
}

// AddMoon records moon id against the player, returning true if it was new.
func (p *Player) AddMoon(id int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.moons[id]; ok {
		return false
	}
	p.moons[id] = struct{}{}
	p.moonOrd = append(p.moonOrd, id)
	return true
}

// Moons returns the player's collected moon ids in insertion order.
func (p *Player) Moons() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int32, len(p.moonOrd))
	copy(out, p.moonOrd)
	return out
}

// ErrUnknownPlayer is returned by PlayerStore.Get for a missing id.
type ErrUnknownPlayer struct{ ID uuid.UUID }

func (e *ErrUnknownPlayer) Error() string {
	return fmt.Sprintf("server: unknown player %s", e.ID)
}

// PlayerStore maps player id to logical player state. Entries are never
// removed on disconnect; only administrative eviction (see eviction.go)
// removes a player.
type PlayerStore struct {
	mu      sync.RWMutex
	players map[uuid.UUID]*Player
}

// NewPlayerStore creates an empty player store.
func NewPlayerStore() *PlayerStore {
	return &PlayerStore{players: make(map[uuid.UUID]*Player)}
}

// Get returns the player for id, or ErrUnknownPlayer if absent.
func (s *PlayerStore) Get(id uuid.UUID) (*Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, &ErrUnknownPlayer{ID: id}
	}
	return p, nil
}

// Insert stores p under p.ID, replacing any existing entry.
func (s *PlayerStore) Insert(p *Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = p
}

// Remove deletes the entry for id, if present.
func (s *PlayerStore) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
}

// All returns a snapshot slice of every player currently stored.
func (s *PlayerStore) All() []*Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out
}

