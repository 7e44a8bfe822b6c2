// Package config loads and persists the relay's TOML configuration file,
// mirroring the layout of the original smoo server's config.rs.
package config

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// DefaultPath is the on-disk location of the configuration document.
const DefaultPath = "./config.toml"

// ServerConfig controls the listen address, player capacity, and the idle
// player garbage collector.
type ServerConfig struct {
	Host       string `toml:"host,omitempty"`
	Port       uint16 `toml:"port,omitempty"`
	MaxPlayers uint8  `toml:"max_players"`

	// IdleGCInterval is how often the eviction sweep runs, in seconds.
	IdleGCInterval int64 `toml:"idle_gc_interval"`
	// IdleGCAfter is how long a player may have no live peer link before
	// eviction removes it, in seconds.
	IdleGCAfter int64 `toml:"idle_gc_after"`
}

// HostAddr parses the configured host, if any.
func (s ServerConfig) HostAddr() (net.IP, bool) {
	if s.Host == "" {
		return nil, false
	}
	ip := net.ParseIP(s.Host)
	return ip, ip != nil
}

// MoonConfig controls objective persistence.
type MoonConfig struct {
	Persist     bool   `toml:"persist"`
	PersistFile string `toml:"persist_file"`
}

// CostumesConfig controls the cosmetic filtering policy.
type CostumesConfig struct {
	BannedCostumes []string `toml:"banned_costumes"`
	AllowedPlayers []string `toml:"allowed_players"`

	allowedPlayerSet map[uuid.UUID]struct{}
	bannedCostumeSet map[string]struct{}
}

// IsBanned reports whether a costume name is on the banned list.
func (c *CostumesConfig) IsBanned(costume string) bool {
	c.ensureIndex()
	_, banned := c.bannedCostumeSet[costume]
	return banned
}

// IsAllowed reports whether a player id is exempt from costume filtering.
func (c *CostumesConfig) IsAllowed(id uuid.UUID) bool {
	c.ensureIndex()
	_, allowed := c.allowedPlayerSet[id]
	return allowed
}

func (c *CostumesConfig) ensureIndex() {
	if c.bannedCostumeSet == nil {
		c.bannedCostumeSet = make(map[string]struct{}, len(c.BannedCostumes))
		for _, name := range c.BannedCostumes {
			c.bannedCostumeSet[name] = struct{}{}
		}
	}
	if c.allowedPlayerSet == nil {
		c.allowedPlayerSet = make(map[uuid.UUID]struct{}, len(c.AllowedPlayers))
		for _, raw := range c.AllowedPlayers {
			if id, err := uuid.Parse(raw); err == nil {
				c.allowedPlayerSet[id] = struct{}{}
			}
		}
	}
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Moons    MoonConfig     `toml:"moons"`
	Costumes CostumesConfig `toml:"costumes"`
}

// Default returns the configuration written when no file exists or the
// existing one fails to parse (spec.md §6).
func Default() Config {
	return Config{
		Server: ServerConfig{
			MaxPlayers:     8,
			IdleGCInterval: 600,
			IdleGCAfter:    3600,
		},
		Moons: MoonConfig{
			Persist:     false,
			PersistFile: "./moons.json",
		},
		Costumes: CostumesConfig{
			BannedCostumes: []string{"MarioInvisible"},
			AllowedPlayers: []string{},
		},
	}
}

// Load reads path, falling back to Default (written to disk) if the file is
// missing or fails to parse. A second failed write is a fatal error
// (spec.md §7, Config error kind).
func Load(path string) (Config, error) {
	bytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return loadDefault(path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return loadDefault(path)
	}
	return cfg, nil
}

func loadDefault(path string) (Config, error) {
	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, fmt.Errorf("config: write default: %w", err)
	}
	return cfg, nil
}

// Save serialises cfg as TOML to path, overwriting any existing file.
func Save(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return nil
}

// Shared guards a Config behind a reader/writer lock. Lock order across the
// relay is always peers -> players -> moons -> config (spec.md §5); config
// is acquired last by every caller.
type Shared struct {
	mu   sync.RWMutex
	path string
	cfg  Config
}

// NewShared wraps cfg for concurrent access.
func NewShared(path string, cfg Config) *Shared {
	return &Shared{path: path, cfg: cfg}
}

// Get returns a copy of the current configuration.
func (s *Shared) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Reload re-reads the config file from disk, replacing the in-memory copy.
func (s *Shared) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Save persists the current in-memory configuration to disk.
func (s *Shared) Save() error {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	return Save(s.path, cfg)
}
