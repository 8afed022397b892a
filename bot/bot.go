// Package bot is a headless game client used for load and smoke testing a
// relay. A bot joins the room, readies up, enters the game once it starts and
// then wanders around sending position updates.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wricardo/arena-relay/game/protocol"
	"github.com/wricardo/arena-relay/game/world"
)

const (
	DefaultMoveInterval = 100 * time.Millisecond
	stepSize            = 25.0
)

type Options struct {
	URL  string
	Name string
	// Direct skips the room and enters the game right after init.
	Direct       bool
	Bounds       world.Bounds
	MoveInterval time.Duration
	Rand         *rand.Rand
}

// Stats summarizes one bot run
type Stats struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	EnteredGame bool           `json:"entered_game"`
	Sent        int            `json:"sent"`
	Received    map[string]int `json:"received"`
}

type Bot struct {
	opts   Options
	conn   *websocket.Conn
	logger zerolog.Logger

	stats    Stats
	position world.Point
	heading  float64
}

func New(opts Options) *Bot {
	if opts.MoveInterval <= 0 {
		opts.MoveInterval = DefaultMoveInterval
	}
	if opts.Bounds == (world.Bounds{}) {
		opts.Bounds = world.DefaultBounds()
	}
	if opts.Rand == nil {
		opts.Rand = world.NewRand()
	}

	return &Bot{
		opts:   opts,
		logger: log.With().Str("bot", opts.Name).Logger(),
		stats:  Stats{Name: opts.Name, Received: make(map[string]int)},
	}
}

// Run plays until ctx is done or the server shuts down
func (b *Bot) Run(ctx context.Context) (Stats, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.opts.URL, nil)
	if err != nil {
		return b.stats, fmt.Errorf("dialing %s: %w", b.opts.URL, err)
	}
	b.conn = conn
	defer conn.Close()

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(b.opts.MoveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return b.stats, nil

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return b.stats, nil
			}
			return b.stats, fmt.Errorf("reading: %w", err)

		case data := <-frames:
			done, err := b.handle(data)
			if err != nil {
				return b.stats, err
			}
			if done {
				return b.stats, nil
			}

		case <-ticker.C:
			if b.stats.EnteredGame {
				if err := b.move(); err != nil {
					return b.stats, err
				}
			}
		}
	}
}

// handle reacts to one server frame. It reports true on server shutdown.
func (b *Bot) handle(data []byte) (bool, error) {
	env, err := protocol.Decode(data)
	if err != nil {
		b.logger.Warn().Err(err).Msg("unexpected frame from server")
		return false, nil
	}
	b.stats.Received[env.Type]++

	switch env.Type {
	case protocol.TypeInit:
		id, err := env.String("id")
		if err != nil {
			return false, err
		}
		b.stats.ID = id
		b.logger = b.logger.With().Str("client", id).Logger()

		if b.opts.Direct {
			return false, b.send(map[string]any{"type": protocol.TypeEnterGame, "name": b.opts.Name})
		}
		if err := b.send(map[string]any{"type": protocol.TypePlayerName, "name": b.opts.Name}); err != nil {
			return false, err
		}
		return false, b.send(map[string]any{"type": protocol.TypePlayerReady, "ready": true})

	case protocol.TypeStartGame:
		if !b.stats.EnteredGame {
			return false, b.send(map[string]any{"type": protocol.TypeEnterGame, "name": b.opts.Name})
		}

	case protocol.TypeGameInit:
		var msg protocol.GameInitMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return false, err
		}
		b.stats.EnteredGame = true
		b.position = msg.Position
		b.heading = b.opts.Rand.Float64() * 2 * math.Pi
		b.logger.Debug().Float64("x", msg.Position.X).Float64("y", msg.Position.Y).Msg("entered game")

	case protocol.TypeServerShutdown:
		b.logger.Info().Msg("server shutting down")
		return true, nil
	}

	return false, nil
}

// move takes a wandering step, turning back at the world edge
func (b *Bot) move() error {
	b.heading += (b.opts.Rand.Float64() - 0.5) * math.Pi / 4

	next := world.Point{
		X: b.position.X + math.Cos(b.heading)*stepSize,
		Y: b.position.Y + math.Sin(b.heading)*stepSize,
	}
	if !b.opts.Bounds.Contains(next) {
		b.heading += math.Pi
		return nil
	}
	b.position = next

	return b.send(map[string]any{
		"type":     protocol.TypePositionUpdate,
		"position": b.position,
		"rotation": b.heading,
	})
}

func (b *Bot) send(msg map[string]any) error {
	if b.conn == nil {
		return errors.New("bot is not connected")
	}
	b.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := b.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("sending %v: %w", msg["type"], err)
	}
	b.stats.Sent++
	return nil
}
