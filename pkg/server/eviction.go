package server

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/luludotdev/smoorelay/pkg/config"
)

// EvictionConfig controls the idle-player garbage collector (SPEC_FULL.md
// §4.10, a supplement to the reference spec's player-store description).
type EvictionConfig struct {
	Interval time.Duration
	After    time.Duration
}

// DefaultEvictionConfig matches the 10-minute sweep / 1-hour idle window
// documented in SPEC_FULL.md.
func DefaultEvictionConfig() EvictionConfig {
	return EvictionConfig{
		Interval: 10 * time.Minute,
		After:    1 * time.Hour,
	}
}

// EvictionConfigFromServer derives the eviction policy from the
// `[server] idle_gc_interval`/`idle_gc_after` config keys (seconds),
// falling back to DefaultEvictionConfig for zero values.
func EvictionConfigFromServer(cfg config.ServerConfig) EvictionConfig {
	out := DefaultEvictionConfig()
	if cfg.IdleGCInterval > 0 {
		out.Interval = time.Duration(cfg.IdleGCInterval) * time.Second
	}
	if cfg.IdleGCAfter > 0 {
		out.After = time.Duration(cfg.IdleGCAfter) * time.Second
	}
	return out
}

// idleTracker records the first sweep instant at which each player id was
// observed without a live peer link. The entry is dropped whenever a sweep
// finds the player linked again.
type idleTracker struct {
	since map[[16]byte]time.Time
}

func newIdleTracker() *idleTracker {
	return &idleTracker{since: make(map[[16]byte]time.Time)}
}

// RunEviction periodically removes players that have had no live peer link
// for longer than cfg.After. A player with a live link is never a
// candidate; the moon store is never touched.
func RunEviction(peers *PeerStore, players *PlayerStore, cfg EvictionConfig, log zerolog.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	tracker := newIdleTracker()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			sweepIdle(peers, players, tracker, cfg.After, now, log)
		}
	}
}

func sweepIdle(peers *PeerStore, players *PlayerStore, tracker *idleTracker, after time.Duration, now time.Time, log zerolog.Logger) {
	live := make(map[[16]byte]struct{})
	for _, id := range peers.Keys() {
		live[[16]byte(id)] = struct{}{}
	}

	for _, player := range players.All() {
		key := [16]byte(player.ID)
		if _, ok := live[key]; ok {
			delete(tracker.since, key)
			continue
		}

		first, seen := tracker.since[key]
		if !seen {
			tracker.since[key] = now
			continue
		}
		if now.Sub(first) >= after {
			players.Remove(player.ID)
			delete(tracker.since, key)
			log.Info().Str("player", player.Name()).Msg("evicted idle player")
		}
	}
}
