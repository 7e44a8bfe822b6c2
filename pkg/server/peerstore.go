package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luludotdev/smoorelay/pkg/protocol"
)

// PeerStore tracks the live TCP link for every connected player, keyed by
// player id. A player may briefly have no entry here between TEARDOWN and a
// reconnect while still existing in the PlayerStore.
type PeerStore struct {
	mu    sync.RWMutex
	peers map[uuid.UUID]*Peer
	log   zerolog.Logger
}

// NewPeerStore creates an empty peer store.
func NewPeerStore(log zerolog.Logger) *PeerStore {
	return &PeerStore{
		peers: make(map[uuid.UUID]*Peer),
		log:   log,
	}
}

// Count returns the number of live links.
func (s *PeerStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Keys returns a snapshot of every connected player id.
func (s *PeerStore) Keys() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]uuid.UUID, 0, len(s.peers))
	for id := range s.peers {
		keys = append(keys, id)
	}
	return keys
}

// Get returns the peer link for id, if any.
func (s *PeerStore) Get(id uuid.UUID) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[id]
	return p, ok
}

// Insert registers a new link for id, returning and NOT closing any link it
// replaces — the caller decides whether a reconnect supersedes the old link.
func (s *PeerStore) Insert(id uuid.UUID, peer *Peer) *Peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.peers[id]
	s.peers[id] = peer
	return old
}

// Remove drops and closes the link for id, if present.
func (s *PeerStore) Remove(id uuid.UUID) *Peer {
	s.mu.Lock()
	peer, ok := s.peers[id]
	if ok {
		delete(s.peers, id)
	}
	s.mu.Unlock()

	if ok {
		if err := peer.Close(); err != nil {
			s.log.Debug().Err(err).Str("peer", id.String()).Msg("close on remove")
		}
	}
	return peer
}

// RemoveIfCurrent drops and closes the link for id only if the stored link
// is still exactly want — a reconnect may have already replaced it with a
// newer link, which must be left alone. Reports whether it removed want.
func (s *PeerStore) RemoveIfCurrent(id uuid.UUID, want *Peer) bool {
	s.mu.Lock()
	peer, ok := s.peers[id]
	if !ok || peer != want {
		s.mu.Unlock()
		return false
	}
	delete(s.peers, id)
	s.mu.Unlock()

	if err := peer.Close(); err != nil {
		s.log.Debug().Err(err).Str("peer", id.String()).Msg("close on remove")
	}
	return true
}

// Broadcast relays msg, originating from origin, to every peer except
// origin itself. A slow peer's write runs on its own goroutine so it can
// never stall delivery to the rest of the room.
func (s *PeerStore) Broadcast(origin uuid.UUID, msg protocol.Message) {
	s.mu.RLock()
	targets := make([]*Peer, 0, len(s.peers))
	for id, p := range s.peers {
		if id == origin {
			continue
		}
		targets = append(targets, p)
	}
	s.mu.RUnlock()

	s.fanOut(origin, msg, targets)
}

// BroadcastTo relays msg, originating from origin, to exactly the player
// ids in recipients that currently have a live link. origin is still
// excluded even if it appears in recipients.
func (s *PeerStore) BroadcastTo(origin uuid.UUID, msg protocol.Message, recipients []uuid.UUID) {
	s.mu.RLock()
	targets := make([]*Peer, 0, len(recipients))
	for _, id := range recipients {
		if id == origin {
			continue
		}
		if p, ok := s.peers[id]; ok {
			targets = append(targets, p)
		}
	}
	s.mu.RUnlock()

	s.fanOut(origin, msg, targets)
}

func (s *PeerStore) fanOut(origin uuid.UUID, msg protocol.Message, targets []*Peer) {
	var wg sync.WaitGroup
	wg.Add(len(targets))
	for _, p := range targets {
		go func(p *Peer) {
			defer wg.Done()
			if err := p.SendFrom(origin, msg); err != nil {
				s.log.Debug().Err(err).Str("peer", p.ID.String()).Msg("broadcast send failed")
			}
		}(p)
	}
	wg.Wait()
}
