// Package console implements the operator's stdin command loop.
package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wricardo/arena-relay/game/relay"
)

const queryTimeout = 2 * time.Second

// Controller is what the console needs from the relay server
type Controller interface {
	Status(ctx context.Context) (relay.Status, error)
	Roster(ctx context.Context) (relay.Roster, error)
	Stop()
}

// Commands lists the accepted commands with a short description
var Commands = []struct {
	Name, Help string
}{
	{"help", "show this list"},
	{"list", "list room members and active players"},
	{"status", "show uptime, player counts and memory"},
	{"stop", "notify clients and shut the server down"},
}

type Console struct {
	ctl    Controller
	in     io.Reader
	logger zerolog.Logger
}

func New(ctl Controller, in io.Reader) *Console {
	return &Console{
		ctl:    ctl,
		in:     in,
		logger: log.With().Str("component", "console").Logger(),
	}
}

// WithLogger replaces the logger used for command output
func (c *Console) WithLogger(l zerolog.Logger) *Console {
	c.logger = l
	return c
}

// Run reads commands until the input ends, ctx is done or stop is entered
func (c *Console) Run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.logger.Info().Msg("console ready, type 'help' for commands")

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if c.Execute(ctx, line) {
				return
			}
		}
	}
}

// Execute runs one command line. It reports whether the console should stop
// reading.
func (c *Console) Execute(ctx context.Context, line string) bool {
	cmd := strings.ToLower(strings.TrimSpace(line))
	if cmd == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	switch cmd {
	case "help":
		for _, command := range Commands {
			c.logger.Info().Str("command", command.Name).Msg(command.Help)
		}

	case "list":
		roster, err := c.ctl.Roster(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("list failed")
			return false
		}
		c.logger.Info().Int("room", len(roster.Room)).Int("active", len(roster.Active)).Msg("players")
		for _, m := range roster.Room {
			c.logger.Info().Str("client", m.ID).Str("name", m.Name).Bool("ready", m.Ready).Msg("room")
		}
		for _, p := range roster.Active {
			c.logger.Info().Str("client", p.ID).Str("name", p.Name).
				Float64("x", p.Position.X).Float64("y", p.Position.Y).Msg("active")
		}

	case "status":
		st, err := c.ctl.Status(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("status failed")
			return false
		}
		c.logger.Info().
			Str("uptime", st.Uptime).
			Int("room", st.RoomPlayers).
			Int("active", st.ActivePlayers).
			Int("max_players", st.MaxPlayers).
			Int("connections", st.Connections).
			Int("items", st.Items).
			Bool("spawning", st.Spawning).
			Uint64("memory_mb", st.MemoryMB).
			Msg("status")

	case "stop":
		c.logger.Warn().Msg("stop requested from console")
		c.ctl.Stop()
		return true

	default:
		c.logger.Error().Str("command", cmd).Msg("unknown command, type 'help' for the list")
	}

	return false
}
