package relay

import (
	"github.com/rs/zerolog/log"
	"github.com/wricardo/arena-relay/game/protocol"
)

// route dispatches one inbound frame from a client. It runs on the event
// loop.
func (s *Server) route(id string, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("client", id).Msg("dropping malformed message")
		return
	}

	if err := s.dispatch(id, env); err != nil {
		log.Warn().Err(err).Str("client", id).Str("type", env.Type).Msg("dropping malformed message")
	}
}

func (s *Server) dispatch(id string, env *protocol.Envelope) error {
	switch env.Type {
	case protocol.TypePlayerName:
		name, err := env.String("name")
		if err != nil {
			return err
		}
		s.arena.Leave(id)
		s.room.Join(id, name)

	case protocol.TypePlayerReady:
		ready, err := env.Bool("ready")
		if err != nil {
			return err
		}
		s.room.SetReady(id, ready)

	case protocol.TypeEnterGame:
		name, err := env.String("name")
		if err != nil {
			return err
		}
		s.room.Remove(id)
		s.arena.Enter(id, name)

	case protocol.TypeGameOver:
		s.arena.BroadcastGameOver(id, env)

	default:
		if protocol.IsRelayed(env.Type) {
			return s.arena.Relay(id, env)
		}
		log.Debug().Str("client", id).Str("type", env.Type).Msg("ignoring unknown message type")
	}

	return nil
}
