package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nbittich/hearts/internal/v1/bus"
	"github.com/nbittich/hearts/internal/v1/game"
	"github.com/nbittich/hearts/internal/v1/logging"
	"github.com/nbittich/hearts/internal/v1/metrics"
	"github.com/nbittich/hearts/internal/v1/users"
)

const (
	// MaxRooms soft-bounds the registry.
	MaxRooms = 100
	// BusCapacity bounds each subscriber queue on the room bus.
	BusCapacity = 1024
	// TurnTimeout is how long a human turn may stay idle before the
	// supervisor substitutes a bot move.
	TurnTimeout = 10 * time.Second
	// BotSleep paces bot moves so clients can follow the game.
	BotSleep = time.Second
	// ComputeScoreDelay lets clients render a finished trick before the
	// stack is cleared.
	ComputeScoreDelay = time.Second
)

// Phase is the coarse room lifecycle. It only ever advances.
type Phase uint8

const (
	PhaseWaiting Phase = iota
	PhaseStarted
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "WAITING_FOR_PLAYERS"
	case PhaseStarted:
		return "STARTED"
	case PhaseDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Room hosts one Hearts match. The actor task is the sole writer of the
// mutable fields; it takes mu for the full duration of each inbound
// message. The bus is the only primitive shared with bridges and
// supervisors.
type Room struct {
	ID uuid.UUID

	mu      sync.Mutex
	phase   Phase
	seats   [game.PlayerNumber]*users.ID
	players [game.PlayerNumber]users.User
	bots    [game.PlayerNumber]*users.ID
	viewers map[users.ID]struct{}
	engine  game.Engine
	// turnMarker is the nonce of the latest turn-advancing broadcast;
	// stale bot triggers are dropped against it.
	turnMarker uuid.UUID

	factory   game.Factory
	directory *users.Directory

	// lifecycle guards bus replacement on restart.
	lifecycle sync.Mutex
	bus       *bus.Bus[Message]
	actorDone chan struct{}

	wg sync.WaitGroup
}

// New constructs a fresh Waiting room and spawns its actor task.
func New(factory game.Factory, directory *users.Directory) *Room {
	r := &Room{
		ID:        uuid.New(),
		viewers:   make(map[users.ID]struct{}),
		factory:   factory,
		directory: directory,
	}
	r.lifecycle.Lock()
	r.startActorLocked()
	r.lifecycle.Unlock()
	return r
}

// startActorLocked builds a fresh bus and spawns the actor on it. The
// actor's receiver is subscribed here, before the bus handle is published,
// so a message sent right after New or Restart cannot slip past it. Caller
// holds r.lifecycle.
func (r *Room) startActorLocked() {
	b := bus.New[Message](BusCapacity)
	rcv := b.Subscribe()
	done := make(chan struct{})
	r.bus = b
	r.actorDone = done
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(done)
		r.run(b, rcv)
	}()
}

// Restart replaces a dead actor (and its bus) with fresh ones. Idempotent:
// a live actor is left untouched.
func (r *Room) Restart() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	select {
	case <-r.actorDone:
	default:
		return
	}
	r.bus.Close()
	logging.Info(context.Background(), "restarting room actor", zap.String("room", r.ID.String()))
	r.startActorLocked()
}

// Subscribe joins the room's current bus.
func (r *Room) Subscribe() *bus.Receiver[Message] {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	return r.bus.Subscribe()
}

// Publish sends a message on the room's current bus.
func (r *Room) Publish(ctx context.Context, msg Message) error {
	r.lifecycle.Lock()
	b := r.bus
	r.lifecycle.Unlock()
	return b.Publish(ctx, msg)
}

// Phase reports the coarse lifecycle state.
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Players returns the seated player records, resolved through the
// directory while the room is still filling up.
func (r *Room) Players() []users.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]users.User, 0, game.PlayerNumber)
	for i, s := range r.seats {
		if s == nil {
			continue
		}
		if r.phase == PhaseWaiting {
			out = append(out, r.directory.Resolve(*s))
		} else {
			out = append(out, r.players[i])
		}
	}
	return out
}

// Shutdown closes the bus, which terminates the actor and every
// supervisor, and waits for them up to ctx.
func (r *Room) Shutdown(ctx context.Context) error {
	r.lifecycle.Lock()
	r.bus.Close()
	r.lifecycle.Unlock()

	c := make(chan struct{})
	go func() {
		defer close(c)
		r.wg.Wait()
	}()
	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the actor loop: consume inbound messages from the bus and
// serialise every effect. Bus closure is the only clean exit.
func (r *Room) run(b *bus.Bus[Message], rcv *bus.Receiver[Message]) {
	defer rcv.Close()
	ctx := context.Background()
	logging.Info(ctx, "room actor started", zap.String("room", r.ID.String()))
	for {
		msg, err := rcv.Recv(ctx)
		if err != nil {
			logging.Info(ctx, "room actor stopped", zap.String("room", r.ID.String()), zap.Error(err))
			return
		}
		r.dispatch(ctx, b, msg)
	}
}

// broadcast publishes a system broadcast (from and to both nil).
func (r *Room) broadcast(ctx context.Context, b *bus.Bus[Message], kind MessageType, payload any) {
	r.send(ctx, b, Message{Type: kind, Payload: payload})
}

// unicast publishes a system message targeted at one subscriber.
func (r *Room) unicast(ctx context.Context, b *bus.Bus[Message], to users.ID, kind MessageType, payload any) {
	r.send(ctx, b, Message{ToUserID: &to, Type: kind, Payload: payload})
}

func (r *Room) send(ctx context.Context, b *bus.Bus[Message], msg Message) {
	if err := b.Publish(ctx, msg); err != nil {
		logging.Error(ctx, "room bus publish failed",
			zap.String("room", r.ID.String()),
			zap.String("kind", string(msg.Type)),
			zap.Error(err))
		return
	}
	metrics.MessagesPublished.WithLabelValues(string(msg.Type)).Inc()
}
