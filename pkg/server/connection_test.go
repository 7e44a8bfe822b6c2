package server

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/luludotdev/smoorelay/pkg/config"
	"github.com/luludotdev/smoorelay/pkg/protocol"
)

// testServer wires a minimal in-process Server for connection-handler tests
// without binding a real socket.
func testServer(t *testing.T, maxPlayers uint8) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Server.MaxPlayers = maxPlayers
	shared := config.NewShared("", cfg)

	peers := NewPeerStore(testLogger())
	players := NewPlayerStore()
	moons := NewMoonStore(config.MoonConfig{}, testLogger())
	proc := NewProcessor(peers, players, moons, shared, testLogger(), ProcessQueueSize)

	return &Server{
		cfg:     shared,
		log:     testLogger(),
		Peers:   peers,
		Players: players,
		Moons:   moons,
		Proc:    proc,
		stop:    make(chan struct{}),
	}
}

// dialHandler starts a connHandler over a net.Pipe and returns the client
// end of the pipe for the test to drive.
func dialHandler(s *Server) net.Conn {
	serverConn, clientConn := net.Pipe()
	h := newConnHandler(serverConn, s.Peers, s.Players, s.cfg, s.Proc, s.log)
	go h.run()
	return clientConn
}

func readInit(t *testing.T, conn net.Conn) protocol.InitMessage {
	t.Helper()
	frame, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame(init): %v", err)
	}
	init, ok := frame.Payload.(protocol.InitMessage)
	if !ok {
		t.Fatalf("expected InitMessage, got %T", frame.Payload)
	}
	return init
}

func sendConnect(t *testing.T, conn net.Conn, id uuid.UUID, nickname string, maxPlayers uint16) {
	t.Helper()
	nick, err := protocol.NewFixedString(0x20, nickname)
	if err != nil {
		t.Fatal(err)
	}
	msg := protocol.ConnectMessage{
		ConnectionType: protocol.ConnectionInit,
		MaxPlayers:     maxPlayers,
		Nickname:       nick,
	}
	if err := protocol.WriteFrame(conn, id, msg); err != nil {
		t.Fatalf("WriteFrame(connect): %v", err)
	}
}

// TestHandshakeRegistersPlayer covers S1: a client completing the
// handshake is reflected in the player store with the expected defaults.
func TestHandshakeRegistersPlayer(t *testing.T) {
	s := testServer(t, 8)
	conn := dialHandler(s)
	defer conn.Close()

	init := readInit(t, conn)
	if init.MaxPlayers != 8 {
		t.Errorf("MaxPlayers = %d, want 8", init.MaxPlayers)
	}

	c1 := uuid.New()
	sendConnect(t, conn, c1, "Lulu", 8)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := s.Players.Get(c1); err == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}

	player, err := s.Players.Get(c1)
	if err != nil {
		t.Fatalf("player not registered: %v", err)
	}
	if player.Name() != "Lulu" {
		t.Errorf("Name = %q, want Lulu", player.Name())
	}
	if player.IsLoaded() {
		t.Error("expected loaded=false before any costume")
	}
	if len(player.Moons()) != 0 {
		t.Error("expected no moons on fresh player")
	}
}

// TestSecondJoinerSeesFirst covers S2: the bootstrap snapshot delivers
// exactly one Connect frame for the existing roster before any broadcast.
func TestSecondJoinerSeesFirst(t *testing.T) {
	s := testServer(t, 8)

	conn1 := dialHandler(s)
	defer conn1.Close()
	readInit(t, conn1)
	c1 := uuid.New()
	sendConnect(t, conn1, c1, "Lulu", 8)

	waitForPlayer(t, s, c1)

	conn2 := dialHandler(s)
	defer conn2.Close()
	readInit(t, conn2)
	c2 := uuid.New()
	sendConnect(t, conn2, c2, "Aria", 8)

	frame, err := protocol.ReadFrame(conn2)
	if err != nil {
		t.Fatalf("c2 bootstrap read: %v", err)
	}
	connectMsg, ok := frame.Payload.(protocol.ConnectMessage)
	if !ok {
		t.Fatalf("expected bootstrap ConnectMessage, got %T", frame.Payload)
	}
	if frame.Origin != c1 {
		t.Errorf("bootstrap origin = %v, want %v", frame.Origin, c1)
	}
	if connectMsg.Nickname.String() != "Lulu" {
		t.Errorf("bootstrap nickname = %q, want Lulu", connectMsg.Nickname.String())
	}

	frame1, err := protocol.ReadFrame(conn1)
	if err != nil {
		t.Fatalf("c1 broadcast read: %v", err)
	}
	if frame1.Origin != c2 {
		t.Errorf("c1 should see c2's connect, origin = %v, want %v", frame1.Origin, c2)
	}
}

func waitForPlayer(t *testing.T, s *Server, id uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := s.Players.Get(id); err == nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("player %s never registered", id)
}

// TestCapacityRejectsOverflow covers the Capacity error kind (spec.md §7):
// a connect beyond max_players is closed without registering.
func TestCapacityRejectsOverflow(t *testing.T) {
	s := testServer(t, 1)

	conn1 := dialHandler(s)
	defer conn1.Close()
	readInit(t, conn1)
	c1 := uuid.New()
	sendConnect(t, conn1, c1, "Lulu", 1)
	waitForPlayer(t, s, c1)

	conn2 := dialHandler(s)
	defer conn2.Close()
	readInit(t, conn2)
	c2 := uuid.New()
	sendConnect(t, conn2, c2, "Aria", 1)

	if _, err := protocol.ReadFrame(conn2); err == nil {
		t.Error("expected rejected connection to close without further frames")
	}
}
