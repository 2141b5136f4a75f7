package gateway

import (
	"context"
	"encoding/json"

	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Dispatcher receives decoded client requests. *session.Session implements it.
type Dispatcher interface {
	Join(ctx context.Context, connID, name string) error
	Draw(ctx context.Context, connID string, stroke models.Stroke) error
	Clear(ctx context.Context, connID string) error
	Rate(ctx context.Context, connID, targetName string, value float64) error
	Leave(ctx context.Context, connID string) error
	Disconnect(ctx context.Context, connID string) error
}

// handleClientMessage decodes one frame and forwards it to the dispatcher.
// It reports whether the client asked to leave.
func (c *Connection) handleClientMessage(raw []byte) bool {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("dropping malformed client frame")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.DispatchTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case MessageJoin:
		var name string
		if err = json.Unmarshal(msg.Data, &name); err == nil {
			err = c.dispatcher.Join(ctx, c.ID, name)
		}
	case MessageDraw:
		var stroke models.Stroke
		if err = json.Unmarshal(msg.Data, &stroke); err == nil {
			err = c.dispatcher.Draw(ctx, c.ID, stroke)
		}
	case MessageClear:
		err = c.dispatcher.Clear(ctx, c.ID)
	case MessageRate:
		var p RatePayload
		if err = json.Unmarshal(msg.Data, &p); err == nil {
			err = c.dispatcher.Rate(ctx, c.ID, p.TargetName, p.Value)
		}
	case MessageLeave:
		if err := c.dispatcher.Leave(ctx, c.ID); err != nil {
			log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to process leave")
		}
		return true
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", string(msg.Type)).
			Msg("ignoring unknown client frame")
		return false
	}

	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("type", string(msg.Type)).
			Msg("failed to process client frame")
	}
	return false
}
