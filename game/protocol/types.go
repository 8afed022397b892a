package protocol

// Message type discriminators
const (
	TypeInit              = "init"
	TypePlayerName        = "player_name"
	TypeRoomPlayerJoined  = "room_player_joined"
	TypePlayerReady       = "player_ready"
	TypePlayerReadyStatus = "player_ready_status"
	TypeRoomPlayerLeft    = "room_player_left"
	TypeStartGame         = "start_game"
	TypeEnterGame         = "enter_game"
	TypeGameInit          = "game_init"
	TypePlayerJoined      = "player_joined"
	TypePlayerLeft        = "player_left"
	TypePositionUpdate    = "position_update"
	TypeShoot             = "shoot"
	TypeHealthUpdate      = "health_update"
	TypeSpawnItem         = "spawn_item"
	TypeGameOver          = "game_over"
	TypeServerShutdown    = "server_shutdown"
)

// Outbox delivers a message to a single client. msg is JSON-encoded unless it
// is already a json.RawMessage. Delivery is best effort: implementations drop
// messages for closed or unknown clients.
type Outbox interface {
	Send(to string, msg any)
}

// IsRelayed reports whether messages of this type are forwarded verbatim to
// the other active players.
func IsRelayed(msgType string) bool {
	switch msgType {
	case TypePositionUpdate, TypeShoot, TypeHealthUpdate:
		return true
	}
	return false
}
