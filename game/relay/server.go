package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wricardo/arena-relay/game/arena"
	"github.com/wricardo/arena-relay/game/lobby"
	"github.com/wricardo/arena-relay/game/protocol"
	"github.com/wricardo/arena-relay/game/spawn"
	"github.com/wricardo/arena-relay/game/world"
)

const (
	DefaultMaxPlayers = 100
	defaultQueueSize  = 1024
)

var (
	ErrServerClosed = errors.New("relay server closed")
	ErrHandlerPanic = errors.New("handler panic")
)

// Options configures a Server
type Options struct {
	Bounds        world.Bounds
	SpawnInterval time.Duration
	// MaxPlayers is reported by status queries; it is not enforced.
	MaxPlayers int
	QueueSize  int
	Rand       *rand.Rand
	NewID      func() string
}

// Server owns every registry and serializes all access through Run
type Server struct {
	opts    Options
	conns   *Connections
	room    *lobby.Room
	arena   *arena.Arena
	spawner *spawn.Scheduler
	newID   func() string

	events   chan func()
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	startedAt time.Time
}

// NewServer builds a server. Call Run to start processing.
func NewServer(opts Options) *Server {
	if opts.Bounds == (world.Bounds{}) {
		opts.Bounds = world.DefaultBounds()
	}
	if opts.SpawnInterval <= 0 {
		opts.SpawnInterval = spawn.DefaultInterval
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = DefaultMaxPlayers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Rand == nil {
		opts.Rand = world.NewRand()
	}

	s := &Server{
		opts:      opts,
		conns:     NewConnections(),
		newID:     opts.NewID,
		events:    make(chan func(), opts.QueueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	s.room = lobby.NewRoom(s.conns)
	s.arena = arena.New(s.conns, opts.Bounds, arena.WithRand(opts.Rand))
	s.spawner = spawn.New(opts.SpawnInterval, s.postUnless, s.arena.SpawnTick)
	s.arena.SetScheduler(s.spawner)

	return s
}

// Run processes queued work until ctx is canceled, Stop is called or a
// handler panics. In every case the shutdown path runs before Run returns.
func (s *Server) Run(ctx context.Context) error {
	defer close(s.done)

	log.Info().
		Float64("world_width", s.opts.Bounds.MaxX-s.opts.Bounds.MinX).
		Float64("world_height", s.opts.Bounds.MaxY-s.opts.Bounds.MinY).
		Dur("spawn_interval", s.spawner.Interval()).
		Int("max_players", s.opts.MaxPlayers).
		Msg("relay event loop started")

	for {
		select {
		case <-ctx.Done():
			s.shutdown("context canceled")
			return nil

		case <-s.stop:
			s.shutdown("stop requested")
			return nil

		case fn := <-s.events:
			if err := s.exec(fn); err != nil {
				log.Error().Err(err).Msg("unexpected failure, shutting down")
				s.shutdown("fatal error")
				return err
			}
		}
	}
}

// Stop asks Run to shut down. It does not wait; use Done for that.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed once Run has finished the shutdown path
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Connect registers a connection and sends it its id. It returns once the
// event loop has registered conn, or ErrServerClosed if the loop finished
// first.
func (s *Server) Connect(conn Conn) (string, error) {
	id := s.newID()
	registered := make(chan struct{})
	ok := s.post(func() {
		s.conns.Add(id, conn)
		log.Info().Str("client", id).Int("connections", s.conns.Len()).Msg("client connected")
		s.conns.Send(id, protocol.NewInit(id))
		close(registered)
	})
	if !ok {
		return "", ErrServerClosed
	}

	select {
	case <-registered:
		return id, nil
	case <-s.done:
	}

	// registered before shutdown ran, so shutdown already closed it
	select {
	case <-registered:
		return id, nil
	default:
		return "", ErrServerClosed
	}
}

// Receive queues an inbound frame from a client
func (s *Server) Receive(id string, data []byte) {
	s.post(func() { s.route(id, data) })
}

// Disconnect queues cleanup for a client whose connection ended
func (s *Server) Disconnect(id string) {
	s.post(func() { s.disconnect(id) })
}

func (s *Server) disconnect(id string) {
	s.room.Leave(id)
	s.arena.Leave(id)
	s.conns.Remove(id)

	log.Info().
		Str("client", id).
		Int("active", s.arena.Len()).
		Int("max_players", s.opts.MaxPlayers).
		Msg("client disconnected")
}

// post queues fn for the event loop. It reports false once the loop is gone.
func (s *Server) post(fn func()) bool {
	return s.postUnless(fn, nil)
}

// postUnless is post that also gives up when cancel is closed
func (s *Server) postUnless(fn func(), cancel <-chan struct{}) bool {
	select {
	case <-s.done:
		return false
	case <-cancel:
		return false
	default:
	}

	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	case <-cancel:
		return false
	}
}

// query runs fn on the event loop and waits for it
func (s *Server) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !s.post(func() {
		fn()
		close(finished)
	}) {
		return ErrServerClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrServerClosed
	}
}

func (s *Server) exec(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	fn()
	return nil
}

// shutdown notifies room and game clients, closes every connection and
// clears all registries. It runs on the event loop.
func (s *Server) shutdown(reason string) {
	log.Warn().
		Str("reason", reason).
		Int("room", s.room.Len()).
		Int("active", s.arena.Len()).
		Msg("shutting down relay")

	notice := protocol.NewServerShutdown()
	for _, id := range s.room.IDs() {
		s.conns.Send(id, notice)
	}
	for _, id := range s.arena.IDs() {
		s.conns.Send(id, notice)
	}

	s.conns.CloseAll()
	s.arena.Clear()
	s.room.Clear()
	s.spawner.Stop()

	log.Info().Msg("relay stopped")
}

// Status is a point-in-time view of the server
type Status struct {
	StartedAt     time.Time `json:"started_at"`
	Uptime        string    `json:"uptime"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	RoomPlayers   int       `json:"room_players"`
	ActivePlayers int       `json:"active_players"`
	MaxPlayers    int       `json:"max_players"`
	Connections   int       `json:"connections"`
	Items         int       `json:"items"`
	Spawning      bool      `json:"spawning"`
	MemoryMB      uint64    `json:"memory_mb"`
}

// Roster lists room members and active players
type Roster struct {
	Room       []lobby.Member `json:"room"`
	Active     []arena.Player `json:"active"`
	MaxPlayers int            `json:"max_players"`
}

// Status returns counts, uptime and heap usage
func (s *Server) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.query(ctx, func() {
		uptime := time.Since(s.startedAt)
		st = Status{
			StartedAt:     s.startedAt,
			Uptime:        FormatUptime(uptime),
			UptimeSeconds: int64(uptime / time.Second),
			RoomPlayers:   s.room.Len(),
			ActivePlayers: s.arena.Len(),
			MaxPlayers:    s.opts.MaxPlayers,
			Connections:   s.conns.Len(),
			Items:         s.arena.ItemCount(),
			Spawning:      s.arena.Spawning(),
		}
	})
	if err != nil {
		return Status{}, err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	st.MemoryMB = mem.HeapAlloc / 1024 / 1024

	return st, nil
}

// Roster returns room members and active players in arrival order
func (s *Server) Roster(ctx context.Context) (Roster, error) {
	var r Roster
	err := s.query(ctx, func() {
		r = Roster{
			Room:       s.room.Members(),
			Active:     s.arena.Players(),
			MaxPlayers: s.opts.MaxPlayers,
		}
	})
	return r, err
}

// FormatUptime renders a duration as "1h 2m 3s"
func FormatUptime(d time.Duration) string {
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	sec := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%dh %dm %ds", h, m, sec)
}
