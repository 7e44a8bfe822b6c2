package server

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/luludotdev/smoorelay/pkg/config"
)

func TestEvictionConfigFromServerDefaults(t *testing.T) {
	cfg := EvictionConfigFromServer(config.ServerConfig{})
	want := DefaultEvictionConfig()
	if cfg != want {
		t.Errorf("EvictionConfigFromServer(zero) = %+v, want default %+v", cfg, want)
	}
}

func TestEvictionConfigFromServerHonorsConfig(t *testing.T) {
	cfg := EvictionConfigFromServer(config.ServerConfig{IdleGCInterval: 30, IdleGCAfter: 120})
	if cfg.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", cfg.Interval)
	}
	if cfg.After != 120*time.Second {
		t.Errorf("After = %v, want 120s", cfg.After)
	}
}

func TestSweepIdleLeavesLivePlayersAlone(t *testing.T) {
	peers := NewPeerStore(testLogger())
	players := NewPlayerStore()
	tracker := newIdleTracker()

	id := uuid.New()
	peer, _ := newTestPeer(t, id)
	peers.Insert(id, peer)
	players.Insert(newPlayer(id, "Live"))

	now := time.Unix(1_700_000_000, 0)
	sweepIdle(peers, players, tracker, time.Minute, now, testLogger())
	sweepIdle(peers, players, tracker, time.Minute, now.Add(5*time.Minute), testLogger())

	if _, err := players.Get(id); err != nil {
		t.Errorf("live player should not be evicted: %v", err)
	}
}

func TestSweepIdleEvictsAfterWindow(t *testing.T) {
	peers := NewPeerStore(testLogger())
	players := NewPlayerStore()
	tracker := newIdleTracker()

	id := uuid.New()
	players.Insert(newPlayer(id, "Ghost"))

	after := time.Minute
	now := time.Unix(1_700_000_000, 0)

	sweepIdle(peers, players, tracker, after, now, testLogger())
	if _, err := players.Get(id); err != nil {
		t.Fatalf("player should still be present before the window elapses: %v", err)
	}

	sweepIdle(peers, players, tracker, after, now.Add(after+time.Second), testLogger())
	if _, err := players.Get(id); err == nil {
		t.Error("expected player to be evicted after exceeding the idle window")
	}
}

// TestSweepIdleResetsTrackerWhenLinkReturns verifies a brief reconnect
// restarts the idle clock: eviction should not fire just because the
// original idle window (measured from before the reconnect) has elapsed.
func TestSweepIdleResetsTrackerWhenLinkReturns(t *testing.T) {
	peers := NewPeerStore(testLogger())
	players := NewPlayerStore()
	tracker := newIdleTracker()

	id := uuid.New()
	players.Insert(newPlayer(id, "Flaky"))

	after := time.Minute
	now := time.Unix(1_700_000_000, 0)

	sweepIdle(peers, players, tracker, after, now, testLogger())

	peer, _ := newTestPeer(t, id)
	peers.Insert(id, peer)
	sweepIdle(peers, players, tracker, after, now.Add(30*time.Second), testLogger())

	peers.Remove(id)
	sweepIdle(peers, players, tracker, after, now.Add(31*time.Second), testLogger())

	// Only ~30s of idle time has accrued since the reconnect reset the
	// clock, well short of the 1-minute window.
	sweepIdle(peers, players, tracker, after, now.Add(61*time.Second), testLogger())
	if _, err := players.Get(id); err != nil {
		t.Fatalf("idle clock should have restarted on reconnect, not carried over: %v", err)
	}

	// A full window measured from the reconnect-reset point does evict.
	sweepIdle(peers, players, tracker, after, now.Add(31*time.Second+after+time.Second), testLogger())
	if _, err := players.Get(id); err == nil {
		t.Error("expected eviction once the reset idle window elapses")
	}
}
