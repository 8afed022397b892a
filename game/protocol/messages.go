package protocol

import "github.com/wricardo/arena-relay/game/world"

// InitMessage hands a freshly connected client its identifier
type InitMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// RoomPlayerJoinedMessage announces a room member, also used for catch-up
type RoomPlayerJoinedMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

type PlayerReadyStatusMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Ready bool   `json:"ready"`
}

// IDMessage carries only a client id (room_player_left, player_left)
type IDMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// SignalMessage has no payload (start_game, server_shutdown)
type SignalMessage struct {
	Type string `json:"type"`
}

// GameInitMessage tells an entering player its own color and spawn point
type GameInitMessage struct {
	Type     string      `json:"type"`
	ID       string      `json:"id"`
	Color    world.Color `json:"color"`
	Position world.Point `json:"position"`
}

// PlayerJoinedMessage describes another active player
type PlayerJoinedMessage struct {
	Type     string      `json:"type"`
	ID       string      `json:"id"`
	Color    world.Color `json:"color"`
	Name     string      `json:"name"`
	Position world.Point `json:"position"`
}

// SpawnItemMessage announces a scheduled world item
type SpawnItemMessage struct {
	Type     string      `json:"type"`
	ItemID   string      `json:"item_id"`
	ItemType string      `json:"item_type"`
	Position world.Point `json:"position"`
}

func NewInit(id string) InitMessage {
	return InitMessage{Type: TypeInit, ID: id}
}

func NewRoomPlayerJoined(id, name string, ready bool) RoomPlayerJoinedMessage {
	return RoomPlayerJoinedMessage{Type: TypeRoomPlayerJoined, ID: id, Name: name, Ready: ready}
}

func NewPlayerReadyStatus(id string, ready bool) PlayerReadyStatusMessage {
	return PlayerReadyStatusMessage{Type: TypePlayerReadyStatus, ID: id, Ready: ready}
}

func NewRoomPlayerLeft(id string) IDMessage {
	return IDMessage{Type: TypeRoomPlayerLeft, ID: id}
}

func NewStartGame() SignalMessage {
	return SignalMessage{Type: TypeStartGame}
}

func NewGameInit(id string, color world.Color, pos world.Point) GameInitMessage {
	return GameInitMessage{Type: TypeGameInit, ID: id, Color: color, Position: pos}
}

func NewPlayerJoined(id, name string, color world.Color, pos world.Point) PlayerJoinedMessage {
	return PlayerJoinedMessage{Type: TypePlayerJoined, ID: id, Color: color, Name: name, Position: pos}
}

func NewPlayerLeft(id string) IDMessage {
	return IDMessage{Type: TypePlayerLeft, ID: id}
}

func NewSpawnItem(itemID, itemType string, pos world.Point) SpawnItemMessage {
	return SpawnItemMessage{Type: TypeSpawnItem, ItemID: itemID, ItemType: itemType, Position: pos}
}

func NewServerShutdown() SignalMessage {
	return SignalMessage{Type: TypeServerShutdown}
}
