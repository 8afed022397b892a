package relay

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Conn is a client connection handle. Send must not block.
type Conn interface {
	Send(data []byte) error
	IsOpen() bool
	Close() error
}

// Connections maps client ids to live handles. It implements
// protocol.Outbox for the registries.
type Connections struct {
	conns map[string]Conn
}

func NewConnections() *Connections {
	return &Connections{conns: make(map[string]Conn)}
}

func (c *Connections) Add(id string, conn Conn) {
	c.conns[id] = conn
}

func (c *Connections) Remove(id string) {
	delete(c.conns, id)
}

func (c *Connections) Len() int {
	return len(c.conns)
}

// Send encodes msg and hands it to the client's connection. Unknown or closed
// clients are skipped and send failures are only logged.
func (c *Connections) Send(to string, msg any) {
	conn, ok := c.conns[to]
	if !ok || !conn.IsOpen() {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("client", to).Msg("failed to encode message")
		return
	}

	if err := conn.Send(data); err != nil {
		log.Debug().Err(err).Str("client", to).Msg("send failed")
	}
}

// CloseAll closes every connection and empties the registry
func (c *Connections) CloseAll() {
	for id, conn := range c.conns {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Str("client", id).Msg("close failed")
		}
	}
	c.conns = make(map[string]Conn)
}
