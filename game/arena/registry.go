package arena

import (
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wricardo/arena-relay/game/protocol"
	"github.com/wricardo/arena-relay/game/world"
)

// Player is a client in the active game. Color and Position are assigned on
// entry and never change server-side.
type Player struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Color     world.Color `json:"color"`
	Position  world.Point `json:"position"`
	EnteredAt time.Time   `json:"entered_at"`
}

// Scheduler drives SpawnTick while players are active
type Scheduler interface {
	Start()
	Stop()
	Running() bool
}

// Arena is the game session registry
type Arena struct {
	out       protocol.Outbox
	bounds    world.Bounds
	rng       *rand.Rand
	now       func() time.Time
	newItemID func() string

	players   map[string]*Player
	order     []string
	items     map[string]Item
	scheduler Scheduler
}

// Option configures an Arena
type Option func(*Arena)

// WithRand sets the random source used for colors, spawns and items
func WithRand(rng *rand.Rand) Option {
	return func(a *Arena) { a.rng = rng }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Arena) { a.now = now }
}

// WithItemIDs overrides item id generation
func WithItemIDs(fn func() string) Option {
	return func(a *Arena) { a.newItemID = fn }
}

// New creates an empty arena over the given world bounds
func New(out protocol.Outbox, bounds world.Bounds, opts ...Option) *Arena {
	a := &Arena{
		out:       out,
		bounds:    bounds,
		now:       time.Now,
		newItemID: newItemID,
		players:   make(map[string]*Player),
		items:     make(map[string]Item),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = world.NewRand()
	}
	return a
}

// SetScheduler attaches the scheduler started on the first entry
func (a *Arena) SetScheduler(s Scheduler) {
	a.scheduler = s
}

// Enter adds a player with a fresh color and spawn point, sends it game_init
// and the roster, and announces it to everyone else. Entering again with a
// known id replaces the previous entry.
func (a *Arena) Enter(id, name string) Player {
	a.remove(id)

	p := &Player{
		ID:        id,
		Name:      name,
		Color:     world.AssignColor(a.colorsInUse(), a.rng),
		Position:  a.bounds.RandomPoint(a.rng),
		EnteredAt: a.now(),
	}
	a.players[id] = p
	a.order = append(a.order, id)

	a.out.Send(id, protocol.NewGameInit(id, p.Color, p.Position))

	log.Info().
		Str("client", id).
		Str("name", name).
		Float64("x", p.Position.X).
		Float64("y", p.Position.Y).
		Bool("palette_color", world.InPalette(p.Color)).
		Int("active", len(a.players)).
		Msg("player entered game")

	for _, other := range a.order {
		if other == id {
			continue
		}
		peer := a.players[other]
		a.out.Send(id, protocol.NewPlayerJoined(peer.ID, peer.Name, peer.Color, peer.Position))
	}

	joined := protocol.NewPlayerJoined(id, name, p.Color, p.Position)
	for _, other := range a.order {
		if other == id {
			continue
		}
		a.out.Send(other, joined)
	}

	if len(a.players) == 1 && a.scheduler != nil {
		log.Info().Msg("starting item spawns")
		a.scheduler.Start()
	}

	return *p
}

// Leave removes a player and tells the others. The scheduler is left to
// notice the empty arena on its next tick.
func (a *Arena) Leave(id string) bool {
	p, ok := a.remove(id)
	if !ok {
		return false
	}

	log.Warn().Str("client", id).Str("name", p.Name).Int("active", len(a.players)).Msg("player left game")

	left := protocol.NewPlayerLeft(id)
	for _, other := range a.order {
		a.out.Send(other, left)
	}
	return true
}

// Relay forwards a gameplay message from sender to every other active
// player, with the id member set to the sender.
func (a *Arena) Relay(sender string, env *protocol.Envelope) error {
	data, err := env.WithSender(sender)
	if err != nil {
		return err
	}

	for _, id := range a.order {
		if id == sender {
			continue
		}
		a.out.Send(id, data)
	}
	return nil
}

// BroadcastGameOver forwards the game_over frame untouched to every active
// player, the sender included.
func (a *Arena) BroadcastGameOver(sender string, env *protocol.Envelope) {
	winner, _ := env.String("winner")
	log.Info().Str("client", sender).Str("winner", winner).Msg("game over")

	raw := json.RawMessage(env.Raw)
	for _, id := range a.order {
		a.out.Send(id, raw)
	}
}

// SpawnTick is run by the scheduler. With nobody left it stops the scheduler
// and clears the item table; otherwise it spawns and announces one item.
func (a *Arena) SpawnTick() {
	if len(a.players) == 0 {
		if a.scheduler != nil {
			a.scheduler.Stop()
		}
		a.items = make(map[string]Item)
		log.Info().Msg("stopping item spawns")
		return
	}

	item := Item{
		ID:        a.newItemID(),
		Type:      itemTypes[a.rng.IntN(len(itemTypes))],
		Position:  a.bounds.RandomPoint(a.rng),
		SpawnedAt: a.now(),
	}
	a.items[item.ID] = item

	msg := protocol.NewSpawnItem(item.ID, string(item.Type), item.Position)
	for _, id := range a.order {
		a.out.Send(id, msg)
	}

	log.Debug().
		Str("item", item.ID).
		Str("kind", string(item.Type)).
		Float64("x", item.Position.X).
		Float64("y", item.Position.Y).
		Msg("item spawned")
}

func (a *Arena) Has(id string) bool {
	_, ok := a.players[id]
	return ok
}

func (a *Arena) Len() int {
	return len(a.players)
}

// Get returns a copy of a player
func (a *Arena) Get(id string) (Player, bool) {
	p, ok := a.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Players returns a snapshot in entry order
func (a *Arena) Players() []Player {
	result := make([]Player, 0, len(a.order))
	for _, id := range a.order {
		result = append(result, *a.players[id])
	}
	return result
}

// IDs returns player ids in entry order
func (a *Arena) IDs() []string {
	return append([]string(nil), a.order...)
}

// Item looks up a spawned item
func (a *Arena) Item(id string) (Item, bool) {
	item, ok := a.items[id]
	return item, ok
}

func (a *Arena) ItemCount() int {
	return len(a.items)
}

// Spawning reports whether the scheduler is live
func (a *Arena) Spawning() bool {
	return a.scheduler != nil && a.scheduler.Running()
}

// Clear stops the scheduler and drops every player and item without
// notification.
func (a *Arena) Clear() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.players = make(map[string]*Player)
	a.order = nil
	a.items = make(map[string]Item)
}

func (a *Arena) colorsInUse() []world.Color {
	colors := make([]world.Color, 0, len(a.players))
	for _, id := range a.order {
		colors = append(colors, a.players[id].Color)
	}
	return colors
}

func (a *Arena) remove(id string) (*Player, bool) {
	p, ok := a.players[id]
	if !ok {
		return nil, false
	}
	delete(a.players, id)
	for i, other := range a.order {
		if other == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return p, true
}
