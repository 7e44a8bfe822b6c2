package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestLoadWritesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.MaxPlayers != 8 {
		t.Errorf("MaxPlayers = %d, want 8", cfg.Server.MaxPlayers)
	}
	if len(cfg.Costumes.BannedCostumes) != 1 || cfg.Costumes.BannedCostumes[0] != "MarioInvisible" {
		t.Errorf("BannedCostumes = %v, want [MarioInvisible]", cfg.Costumes.BannedCostumes)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload after default write: %v", err)
	}
	if reloaded.Server.MaxPlayers != cfg.Server.MaxPlayers {
		t.Errorf("reloaded config does not match written default")
	}
}

func TestLoadFallsBackToDefaultOnCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("not = [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.MaxPlayers != Default().Server.MaxPlayers {
		t.Errorf("expected default config after corrupt parse")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 1027
	cfg.Moons.Persist = true

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Server.Host != "127.0.0.1" || loaded.Server.Port != 1027 {
		t.Errorf("server fields did not round trip: %+v", loaded.Server)
	}
	if !loaded.Moons.Persist {
		t.Errorf("moons.persist did not round trip")
	}
}

func TestCostumesConfigBannedAndAllowed(t *testing.T) {
	id := uuid.New()
	c := &CostumesConfig{
		BannedCostumes: []string{"MarioInvisible", "MarioNude"},
		AllowedPlayers: []string{id.String()},
	}

	if !c.IsBanned("MarioInvisible") {
		t.Error("expected MarioInvisible to be banned")
	}
	if c.IsBanned("MarioKing") {
		t.Error("did not expect MarioKing to be banned")
	}
	if !c.IsAllowed(id) {
		t.Error("expected configured player to be allowed")
	}
	if c.IsAllowed(uuid.New()) {
		t.Error("did not expect a random player to be allowed")
	}
}

func TestSharedGetReloadSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	shared := NewShared(path, cfg)
	if got := shared.Get().Server.MaxPlayers; got != 8 {
		t.Errorf("Get().Server.MaxPlayers = %d, want 8", got)
	}

	updated := cfg
	updated.Server.MaxPlayers = 16
	if err := Save(path, updated); err != nil {
		t.Fatal(err)
	}
	if err := shared.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if got := shared.Get().Server.MaxPlayers; got != 16 {
		t.Errorf("after Reload, MaxPlayers = %d, want 16", got)
	}
}
