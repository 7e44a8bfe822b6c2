package cli

import (
	"testing"

	"github.com/luludotdev/smoorelay/pkg/config"
)

func TestResolveAddrPrecedence(t *testing.T) {
	flagHost, flagPort = "", 0
	defer func() { flagHost, flagPort = "", 0 }()

	cfg := config.Default()
	if got := resolveAddr(cfg); got != "0.0.0.0:1027" {
		t.Errorf("resolveAddr(defaults) = %q, want 0.0.0.0:1027", got)
	}

	cfg.Server.Host = "10.0.0.5"
	cfg.Server.Port = 2000
	if got := resolveAddr(cfg); got != "10.0.0.5:2000" {
		t.Errorf("resolveAddr(config override) = %q, want 10.0.0.5:2000", got)
	}

	flagHost = "192.168.1.1"
	flagPort = 9000
	if got := resolveAddr(cfg); got != "192.168.1.1:9000" {
		t.Errorf("resolveAddr(argv override) = %q, want 192.168.1.1:9000", got)
	}
}
