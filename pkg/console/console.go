// Package console implements the relay's line-oriented administrative REPL
// over stdin, mirroring the teacher's /-command verb switch.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luludotdev/smoorelay/pkg/config"
	"github.com/luludotdev/smoorelay/pkg/protocol"
	"github.com/luludotdev/smoorelay/pkg/server"
)

// Console reads administrative commands from r and writes responses to w.
type Console struct {
	srv *server.Server
	cfg *config.Shared
	log zerolog.Logger

	r *bufio.Scanner
	w io.Writer
}

// New wires a console against a running server.
func New(srv *server.Server, cfg *config.Shared, log zerolog.Logger, r io.Reader, w io.Writer) *Console {
	return &Console{
		srv: srv,
		cfg: cfg,
		log: log,
		r:   bufio.NewScanner(r),
		w:   w,
	}
}

// Run reads commands until EOF or a shutdown command is issued. It returns
// true if the command loop ended because of an explicit shutdown request.
func (c *Console) Run() (shutdown bool) {
	for c.r.Scan() {
		line := strings.TrimSpace(c.r.Text())
		if line == "" {
			continue
		}
		if c.handle(line) {
			return true
		}
	}
	return false
}

func (c *Console) handle(line string) (shutdown bool) {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "loadconfig":
		c.cmdLoadConfig()
	case "config":
		if len(args) > 0 && strings.ToLower(args[0]) == "save" {
			c.cmdConfigSave()
		} else {
			c.printf("usage: config save")
		}
	case "list":
		c.cmdList()
	case "send":
		c.cmdSend(args)
	case "sendall":
		c.cmdSendAll(args)
	case "moon":
		c.cmdMoon(args)
	case "exit", "quit", "stop", "q":
		c.printf("shutting down")
		return true
	default:
		c.printf("unknown command: %s", cmd)
	}
	return false
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.w, format+"\n", args...)
}

func (c *Console) cmdLoadConfig() {
	if err := c.cfg.Reload(); err != nil {
		c.printf("reload failed: %v", err)
		return
	}
	c.printf("config reloaded")
}

func (c *Console) cmdConfigSave() {
	if err := c.cfg.Save(); err != nil {
		c.printf("save failed: %v", err)
		return
	}
	c.printf("config saved")
}

func (c *Console) cmdList() {
	players := c.srv.Players.All()
	if len(players) == 0 {
		c.printf("no players")
		return
	}
	for _, p := range players {
		stage, _ := p.Stage()
		_, connected := c.srv.Peers.Get(p.ID)
		c.printf("%s  %s  stage=%s  connected=%t", p.ID, p.Name(), stage, connected)
	}
}

// cmdSend handles `send <stage> <scenario> <warp_id> <players...|*>`.
func (c *Console) cmdSend(args []string) {
	if len(args) < 3 {
		c.printf("usage: send <stage> <scenario> <warp_id> <player...|*>")
		return
	}
	stage, scenario, warpID := args[0], args[1], args[2]
	msg, err := buildChangeStage(stage, scenario, warpID)
	if err != nil {
		c.printf("invalid change-stage: %v", err)
		return
	}

	if len(args) == 3 || (len(args) == 4 && args[3] == "*") {
		c.srv.Peers.Broadcast(uuid.Nil, msg)
		c.printf("sent to all")
		return
	}

	ids := make([]uuid.UUID, 0, len(args)-3)
	for _, raw := range args[3:] {
		id, err := resolvePlayer(c.srv, raw)
		if err != nil {
			c.printf("skipping %s: %v", raw, err)
			continue
		}
		ids = append(ids, id)
	}
	c.srv.Peers.BroadcastTo(uuid.Nil, msg, ids)
	c.printf("sent to %d player(s)", len(ids))
}

// cmdSendAll handles `sendall <stage> <scenario> [warp_id]`.
func (c *Console) cmdSendAll(args []string) {
	if len(args) < 2 {
		c.printf("usage: sendall <stage> <scenario> [warp_id]")
		return
	}
	warpID := ""
	if len(args) >= 3 {
		warpID = args[2]
	}
	msg, err := buildChangeStage(args[0], args[1], warpID)
	if err != nil {
		c.printf("invalid change-stage: %v", err)
		return
	}
	c.srv.Peers.Broadcast(uuid.Nil, msg)
	c.printf("sent to all")
}

func (c *Console) cmdMoon(args []string) {
	if len(args) == 0 {
		c.printf("usage: moon <list|sync|clear|reload|give|add>")
		return
	}
	switch strings.ToLower(args[0]) {
	case "list":
		ids := c.srv.Moons.All()
		c.printf("%d moon(s): %v", len(ids), ids)
	case "sync":
		server.ForceSync(c.srv)
		c.printf("sync triggered")
	case "clear":
		if err := c.srv.Moons.Clear(); err != nil {
			c.printf("clear failed: %v", err)
			return
		}
		c.printf("moon store cleared")
	case "reload":
		if err := c.srv.Moons.Reload(); err != nil {
			c.printf("reload failed: %v", err)
			return
		}
		c.printf("moon store reloaded")
	case "give", "add":
		c.cmdMoonGive(args[1:])
	default:
		c.printf("unknown moon subcommand: %s", args[0])
	}
}

func (c *Console) cmdMoonGive(args []string) {
	if len(args) < 1 {
		c.printf("usage: moon give <id> <player...|*>")
		return
	}
	idVal, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		c.printf("invalid moon id: %v", err)
		return
	}
	id := int32(idVal)
	if _, err := c.srv.Moons.Insert(id, false); err != nil {
		c.printf("insert failed: %v", err)
		return
	}

	msg := protocol.MoonMessage{ID: id, IsGrand: false}
	if len(args) == 1 || (len(args) == 2 && args[1] == "*") {
		c.srv.Peers.Broadcast(uuid.Nil, msg)
	} else {
		ids := make([]uuid.UUID, 0, len(args)-1)
		for _, raw := range args[1:] {
			if pid, err := resolvePlayer(c.srv, raw); err == nil {
				ids = append(ids, pid)
			}
		}
		c.srv.Peers.BroadcastTo(uuid.Nil, msg, ids)
	}
	c.printf("gave moon %d", id)
}

// resolvePlayer looks up a player by raw uuid string or, failing that, an
// exact (case-insensitive) nickname match.
func resolvePlayer(srv *server.Server, raw string) (uuid.UUID, error) {
	if id, err := uuid.Parse(raw); err == nil {
		return id, nil
	}
	for _, p := range srv.Players.All() {
		if strings.EqualFold(p.Name(), raw) {
			return p.ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("no such player: %s", raw)
}

func buildChangeStage(stageName, scenarioRaw, warpID string) (protocol.ChangeStageMessage, error) {
	stageName = ResolveStageAlias(stageName)

	scenario, err := strconv.ParseInt(scenarioRaw, 10, 8)
	if err != nil {
		return protocol.ChangeStageMessage{}, fmt.Errorf("scenario: %w", err)
	}

	stage, err := protocol.NewFixedString(0x30, stageName)
	if err != nil {
		return protocol.ChangeStageMessage{}, fmt.Errorf("stage: %w", err)
	}
	id, err := protocol.NewFixedString(0x10, warpID)
	if err != nil {
		return protocol.ChangeStageMessage{}, fmt.Errorf("warp id: %w", err)
	}

	return protocol.ChangeStageMessage{
		Stage:       stage,
		ID:          id,
		Scenario:    int8(scenario),
		SubScenario: 0,
	}, nil
}
