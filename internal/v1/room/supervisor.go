package room

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nbittich/hearts/internal/v1/bus"
	"github.com/nbittich/hearts/internal/v1/logging"
	"github.com/nbittich/hearts/internal/v1/metrics"
	"github.com/nbittich/hearts/internal/v1/users"
)

// superviseConfig parameterises one turn watcher. Human turns get the full
// TurnTimeout and a timedOut notice; bot seats get BotSleep and no notice.
type superviseConfig struct {
	roomID   uuid.UUID
	expected users.ID
	marker   uuid.UUID
	fallback MessageType
	timeout  time.Duration
	notify   bool
}

// superviseTurn watches the bus until the turn identified by cfg.marker is
// resolved, or substitutes an automated move when the deadline expires. The
// receiver must have been subscribed before the turn broadcast was published
// so the watcher cannot miss its resolution.
func superviseTurn(b *bus.Bus[Message], rcv *bus.Receiver[Message], cfg superviseConfig) {
	defer rcv.Close()
	ctx := context.Background()
	deadline := time.Now().Add(cfg.timeout)

	for {
		rctx, cancel := context.WithDeadline(ctx, deadline)
		msg, err := rcv.Recv(rctx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			// bus closed, room is going away
			return
		}
		if msg.Type == MsgEnd {
			return
		}
		if m, ok := msg.TurnMarker(); ok && m != cfg.marker {
			// the turn advanced under us
			return
		}
	}

	// Deactivate before publishing: the watcher must never consume its own
	// fallback trigger or the broadcasts it provokes.
	rcv.Deactivate()

	if cfg.notify {
		metrics.TurnTimeouts.Inc()
		logging.Info(ctx, "turn timed out",
			zap.String("room", cfg.roomID.String()),
			zap.String("player", cfg.expected.String()))
		to := cfg.expected
		if err := b.Publish(ctx, Message{ToUserID: &to, Type: MsgTimedOut}); err != nil {
			return
		}
	}

	marker := cfg.marker
	if err := b.Publish(ctx, Message{Type: cfg.fallback, marker: &marker}); err != nil {
		logging.Warn(ctx, "fallback trigger dropped",
			zap.String("room", cfg.roomID.String()),
			zap.Error(err))
	}
}
