// Command loadbot connects a swarm of headless bots to a running relay and
// reports what each of them saw. With two or more bots the swarm walks
// through the room, readies up and plays until the duration ends.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/arena-relay/bot"
	"github.com/wricardo/arena-relay/game/world"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cmd := &cli.Command{
		Name:  "loadbot",
		Usage: "drive a relay server with headless bots",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "relay WebSocket URL", Value: "ws://localhost:8080/ws", Sources: cli.EnvVars("ARENA_WS_URL")},
			&cli.IntFlag{Name: "bots", Aliases: []string{"n"}, Usage: "number of bots", Value: 4},
			&cli.DurationFlag{Name: "duration", Usage: "how long to play", Value: 30 * time.Second},
			&cli.DurationFlag{Name: "move-interval", Usage: "time between position updates per bot", Value: bot.DefaultMoveInterval},
			&cli.FloatFlag{Name: "world-width", Usage: "world width the bots wander in", Value: world.DefaultWidth},
			&cli.FloatFlag{Name: "world-height", Usage: "world height the bots wander in", Value: world.DefaultHeight},
			&cli.BoolFlag{Name: "direct", Usage: "skip the room and enter the game immediately"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("loadbot failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cmd.Bool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	n := cmd.Int("bots")
	if n < 1 {
		return fmt.Errorf("--bots must be at least 1, got %d", n)
	}
	if n == 1 && !cmd.Bool("direct") {
		log.Warn().Msg("a single bot never starts a game from the room; use --direct")
	}

	bounds := world.NewBounds(cmd.Float("world-width"), cmd.Float("world-height"))
	if err := bounds.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("duration"))
	defer cancel()

	log.Info().Str("url", cmd.String("url")).Int("bots", n).Dur("duration", cmd.Duration("duration")).Msg("starting bots")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			b := bot.New(bot.Options{
				URL:          cmd.String("url"),
				Name:         fmt.Sprintf("bot-%d", i+1),
				Direct:       cmd.Bool("direct"),
				Bounds:       bounds,
				MoveInterval: cmd.Duration("move-interval"),
			})
			stats, err := b.Run(ctx)

			ev := log.Info()
			if err != nil {
				ev = log.Error().Err(err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
			ev.Str("bot", stats.Name).
				Str("client", stats.ID).
				Bool("entered_game", stats.EnteredGame).
				Int("sent", stats.Sent).
				Interface("received", stats.Received).
				Msg("bot finished")
		}()
	}
	wg.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d bots failed", failed, n)
	}
	return nil
}
