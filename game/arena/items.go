package arena

import (
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/arena-relay/game/world"
)

// ItemType is the kind of a spawned item
type ItemType string

const (
	ItemHealth ItemType = "health"
	ItemAmmo   ItemType = "ammo"
)

var itemTypes = [...]ItemType{ItemHealth, ItemAmmo}

// Item is a spawned world item. Items are announced once and kept for
// bookkeeping; there is no pickup protocol.
type Item struct {
	ID        string      `json:"id"`
	Type      ItemType    `json:"type"`
	Position  world.Point `json:"position"`
	SpawnedAt time.Time   `json:"spawned_at"`
}

// newItemID returns a time-ordered unique identifier
func newItemID() string {
	return uuid.Must(uuid.NewV7()).String()
}
