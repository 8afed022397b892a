package lobby

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wricardo/arena-relay/game/protocol"
)

// Member is a client waiting in the room
type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Ready    bool      `json:"ready"`
	JoinedAt time.Time `json:"joined_at"`
}

// Room is the lobby registry
type Room struct {
	out     protocol.Outbox
	members map[string]*Member
	order   []string
	now     func() time.Time
}

// NewRoom creates an empty room that delivers notifications through out
func NewRoom(out protocol.Outbox) *Room {
	return &Room{
		out:     out,
		members: make(map[string]*Member),
		now:     time.Now,
	}
}

// Join adds a member with ready=false, notifies the others and replays the
// current membership to the newcomer. Joining again with a known id renames
// the member and clears its ready flag.
func (r *Room) Join(id, name string) {
	if m, ok := r.members[id]; ok {
		m.Name = name
		m.Ready = false
	} else {
		r.members[id] = &Member{ID: id, Name: name, JoinedAt: r.now()}
		r.order = append(r.order, id)
	}

	log.Info().Str("client", id).Str("name", name).Int("room", len(r.members)).Msg("player joined room")

	joined := protocol.NewRoomPlayerJoined(id, name, false)
	for _, other := range r.order {
		if other == id {
			continue
		}
		r.out.Send(other, joined)
	}

	for _, other := range r.order {
		if other == id {
			continue
		}
		m := r.members[other]
		r.out.Send(id, protocol.NewRoomPlayerJoined(m.ID, m.Name, m.Ready))
	}
}

// SetReady updates a member's flag, broadcasts it to the whole room and runs
// the readiness barrier. It reports false when id is not a member.
func (r *Room) SetReady(id string, ready bool) bool {
	m, ok := r.members[id]
	if !ok {
		return false
	}
	m.Ready = ready

	log.Info().Str("client", id).Str("name", m.Name).Bool("ready", ready).Msg("player readiness changed")

	status := protocol.NewPlayerReadyStatus(id, ready)
	for _, other := range r.order {
		r.out.Send(other, status)
	}

	r.CheckReady()
	return true
}

// Leave removes a member, tells the remaining members and runs the readiness
// barrier, since dropping an unready member can release the rest.
func (r *Room) Leave(id string) bool {
	m, ok := r.remove(id)
	if !ok {
		return false
	}

	log.Warn().Str("client", id).Str("name", m.Name).Msg("player left room")

	left := protocol.NewRoomPlayerLeft(id)
	for _, other := range r.order {
		r.out.Send(other, left)
	}

	r.CheckReady()
	return true
}

// Remove drops a member without notifying anyone. Used when the member moves
// on to the game.
func (r *Room) Remove(id string) bool {
	_, ok := r.remove(id)
	return ok
}

// CheckReady broadcasts start_game when the room holds at least two members
// and all of them are ready. It reports whether the signal was sent.
func (r *Room) CheckReady() bool {
	if len(r.members) <= 1 {
		return false
	}

	for _, m := range r.members {
		if !m.Ready {
			return false
		}
	}

	log.Info().Int("room", len(r.members)).Msg("all players ready, starting game")

	start := protocol.NewStartGame()
	for _, id := range r.order {
		r.out.Send(id, start)
	}
	return true
}

func (r *Room) Has(id string) bool {
	_, ok := r.members[id]
	return ok
}

func (r *Room) Len() int {
	return len(r.members)
}

// Get returns a copy of a member
func (r *Room) Get(id string) (Member, bool) {
	m, ok := r.members[id]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// Members returns a snapshot in join order
func (r *Room) Members() []Member {
	result := make([]Member, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.members[id])
	}
	return result
}

// IDs returns member ids in join order
func (r *Room) IDs() []string {
	return append([]string(nil), r.order...)
}

// Clear drops every member without notification
func (r *Room) Clear() {
	r.members = make(map[string]*Member)
	r.order = nil
}

func (r *Room) remove(id string) (*Member, bool) {
	m, ok := r.members[id]
	if !ok {
		return nil, false
	}
	delete(r.members, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return m, true
}
