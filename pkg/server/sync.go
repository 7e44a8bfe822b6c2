package server

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/luludotdev/smoorelay/pkg/protocol"
)

// SyncInterval is the background moon-sync cadence (spec.md §4.9).
const SyncInterval = 30 * time.Second

// RunSyncTicker runs the periodic sync pass until stop is closed.
func RunSyncTicker(peers *PeerStore, players *PlayerStore, moons *MoonStore, log zerolog.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			syncOnce(peers, players, moons, log)
		}
	}
}

// ForceSync runs one sync pass immediately, used by the admin console's
// `moon sync` command.
func ForceSync(s *Server) {
	syncOnce(s.Peers, s.Players, s.Moons, s.log)
}

// syncOnce diffs the global moon set against every player's known moons and
// pushes the missing ids to each player with a live peer link. Players
// without a live link are skipped for this tick; they catch up on the next
// sync after reconnecting.
func syncOnce(peers *PeerStore, players *PlayerStore, moons *MoonStore, log zerolog.Logger) {
	for _, player := range players.All() {
		peer, ok := peers.Get(player.ID)
		if !ok {
			continue
		}

		have := make(map[int32]struct{})
		for _, id := range player.Moons() {
			have[id] = struct{}{}
		}

		for _, id := range moons.Difference(have) {
			player.AddMoon(id)
			// IsGrand carries the real flag (not hardcoded false) so a
			// synced grand moon still renders correctly for the
			// catching-up player.
			msg := protocol.MoonMessage{ID: id, IsGrand: moons.IsGrand(id)}
			if err := peer.SendServer(msg); err != nil {
				log.Debug().Err(err).Str("player", player.Name()).Msg("sync send failed")
			}
		}
	}
}
