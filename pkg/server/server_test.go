package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/luludotdev/smoorelay/pkg/config"
)

func newRunningServer(t *testing.T) (*Server, string) {
	t.Helper()

	cfg := config.Default()
	shared := config.NewShared("", cfg)
	srv, err := New(shared, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		srv.Shutdown()
		<-done
	})

	return srv, srv.listener.Addr().String()
}

// TestServerAcceptsAndRegistersOverRealSocket exercises New/Listen/Run end
// to end over an actual TCP connection, rather than the net.Pipe harness
// used by the connection-handler tests.
func TestServerAcceptsAndRegistersOverRealSocket(t *testing.T) {
	srv, addr := newRunningServer(t)

	conn, err := dialTimeout(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	init := readInit(t, conn)
	if init.MaxPlayers != uint16(config.Default().Server.MaxPlayers) {
		t.Errorf("MaxPlayers = %d, want %d", init.MaxPlayers, config.Default().Server.MaxPlayers)
	}

	id := uuid.New()
	sendConnect(t, conn, id, "Aria", uint16(config.Default().Server.MaxPlayers))
	waitForPlayer(t, srv, id)
}

// TestServerShutdownIsIdempotentAndStopsAccept verifies Shutdown can be
// called multiple times and that it stops the accept loop.
func TestServerShutdownIsIdempotentAndStopsAccept(t *testing.T) {
	srv, addr := newRunningServer(t)

	conn, err := dialTimeout(addr)
	if err != nil {
		t.Fatalf("dial before shutdown: %v", err)
	}
	conn.Close()

	srv.Shutdown()
	srv.Shutdown() // must not panic on double-close

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := dialTimeout(addr); err != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("expected listener to stop accepting connections after Shutdown")
}

func dialTimeout(addr string) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, time.Second)
}
