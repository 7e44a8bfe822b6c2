package console

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/luludotdev/smoorelay/pkg/config"
	"github.com/luludotdev/smoorelay/pkg/server"
)

func testServer(t *testing.T) (*server.Server, *config.Shared) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Moons.PersistFile = filepath.Join(dir, "moons.json")
	shared := config.NewShared(filepath.Join(dir, "config.toml"), cfg)

	srv, err := server.New(shared, zerolog.Nop())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv, shared
}

func TestResolveStageAliasKnownAndPassthrough(t *testing.T) {
	if got := ResolveStageAlias("cap"); got != "CapWorldHomeStage" {
		t.Errorf("ResolveStageAlias(cap) = %q, want CapWorldHomeStage", got)
	}
	if got := ResolveStageAlias("darker"); got != "Special2WorldHomeStag" {
		t.Errorf("ResolveStageAlias(darker) = %q, want Special2WorldHomeStag", got)
	}
	if got := ResolveStageAlias("SomeExactStageName"); got != "SomeExactStageName" {
		t.Errorf("expected passthrough for unknown alias, got %q", got)
	}
}

func TestConsoleListEmpty(t *testing.T) {
	srv, shared := testServer(t)
	var out bytes.Buffer
	c := New(srv, shared, zerolog.Nop(), strings.NewReader("list\n"), &out)

	if shutdown := c.Run(); shutdown {
		t.Error("list should not trigger shutdown")
	}
	if !strings.Contains(out.String(), "no players") {
		t.Errorf("output = %q, want mention of no players", out.String())
	}
}

func TestConsoleExitTriggersShutdown(t *testing.T) {
	srv, shared := testServer(t)
	var out bytes.Buffer
	c := New(srv, shared, zerolog.Nop(), strings.NewReader("exit\n"), &out)

	if shutdown := c.Run(); !shutdown {
		t.Error("exit should trigger shutdown")
	}
}

func TestConsoleMoonGiveAndList(t *testing.T) {
	srv, shared := testServer(t)
	var out bytes.Buffer
	c := New(srv, shared, zerolog.Nop(), strings.NewReader("moon give 42 *\nmoon list\n"), &out)

	c.Run()
	if !srv.Moons.Contains(42) {
		t.Error("expected moon 42 to be inserted")
	}
	if !strings.Contains(out.String(), "42") {
		t.Errorf("output = %q, want mention of moon 42", out.String())
	}
}

func TestConsoleUnknownCommand(t *testing.T) {
	srv, shared := testServer(t)
	var out bytes.Buffer
	c := New(srv, shared, zerolog.Nop(), strings.NewReader("bogus\n"), &out)

	c.Run()
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("output = %q, want unknown command message", out.String())
	}
}

func TestConsoleSendAllBuildsChangeStage(t *testing.T) {
	srv, shared := testServer(t)
	var out bytes.Buffer
	c := New(srv, shared, zerolog.Nop(), strings.NewReader("sendall cap 0\n"), &out)

	c.Run()
	if !strings.Contains(out.String(), "sent to all") {
		t.Errorf("output = %q, want confirmation", out.String())
	}
}
