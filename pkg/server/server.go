// Package server implements the relay's connection lifecycle, shared state
// stores, and the central packet processor.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/luludotdev/smoorelay/pkg/config"
)

// ProcessQueueSize bounds the central processing queue (spec.md §5,
// SPEC_FULL.md §5 supplement).
const ProcessQueueSize = 4096

// Server wires together the shared stores, the packet processor, and the
// background tasks (sync ticker, idle eviction) behind one accept loop.
type Server struct {
	cfg *config.Shared
	log zerolog.Logger

	Peers   *PeerStore
	Players *PlayerStore
	Moons   *MoonStore
	Proc    *Processor

	listener  net.Listener
	stop      chan struct{}
	closeOnce sync.Once
}

// New constructs a Server from cfg. The moon store is loaded from disk as
// part of construction if persistence is enabled.
func New(cfg *config.Shared, log zerolog.Logger) (*Server, error) {
	moons, err := LoadMoonStore(cfg.Get().Moons, log)
	if err != nil {
		return nil, fmt.Errorf("server: load moon store: %w", err)
	}

	peers := NewPeerStore(log)
	players := NewPlayerStore()
	proc := NewProcessor(peers, players, moons, cfg, log, ProcessQueueSize)

	return &Server{
		cfg:     cfg,
		log:     log,
		Peers:   peers,
		Players: players,
		Moons:   moons,
		Proc:    proc,
		stop:    make(chan struct{}),
	}, nil
}

// Listen binds addr, the only blocking-and-fallible part of startup.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.log.Info().Str("addr", addr).Msg("listening")
	return nil
}

// Run starts the acceptor, processor, sync ticker, and eviction tasks, and
// blocks until ctx is cancelled and every task has returned. Cancellation
// calls Shutdown, which closes the listener, letting in-flight connections
// observe socket errors. None of the tasks reports an error.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		s.Shutdown()
		return nil
	})

	g.Go(func() error {
		s.acceptLoop()
		return nil
	})

	g.Go(func() error {
		s.Proc.Run(s.stop)
		return nil
	})

	g.Go(func() error {
		RunSyncTicker(s.Peers, s.Players, s.Moons, s.log, s.stop)
		return nil
	})

	g.Go(func() error {
		RunEviction(s.Peers, s.Players, EvictionConfigFromServer(s.cfg.Get().Server), s.log, s.stop)
		return nil
	})

	return g.Wait()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				s.log.Warn().Err(err).Msg("accept error")
				continue
			}
		}

		handler := newConnHandler(conn, s.Peers, s.Players, s.cfg, s.Proc, s.log)
		go handler.run()
	}
}

// Shutdown closes the listener and signals background tasks to stop. Safe
// to call more than once or concurrently.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.listener != nil {
			s.listener.Close()
		}
	})
}
