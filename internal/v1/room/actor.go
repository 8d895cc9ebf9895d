package room

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nbittich/hearts/internal/v1/bus"
	"github.com/nbittich/hearts/internal/v1/game"
	"github.com/nbittich/hearts/internal/v1/logging"
	"github.com/nbittich/hearts/internal/v1/metrics"
	"github.com/nbittich/hearts/internal/v1/users"
)

// dispatch interprets one inbound message. The room lock is held for the
// whole handling so engine transitions stay totally ordered.
func (r *Room) dispatch(ctx context.Context, b *bus.Bus[Message], msg Message) {
	switch msg.Type {
	case MsgJoin, MsgJoinBot, MsgGetCards, MsgReplaceCards, MsgPlay, MsgGetCurrentState:
	default:
		// outbound kinds echo back on our own subscription; ignore them
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.FromUserID == nil {
		r.handleBotAction(ctx, b, msg)
		return
	}
	from := *msg.FromUserID

	// Viewers may only join (again) and ask for snapshots.
	if _, isViewer := r.viewers[from]; isViewer && msg.Type != MsgJoin && msg.Type != MsgGetCurrentState {
		return
	}

	switch msg.Type {
	case MsgJoin:
		r.handleJoin(ctx, b, from)
	case MsgJoinBot:
		r.handleJoinBot(ctx, b, from)
	case MsgGetCards:
		r.handleGetCards(ctx, b, from)
	case MsgReplaceCards:
		r.handleReplaceCards(ctx, b, from, msg)
	case MsgPlay:
		r.handlePlay(ctx, b, from, msg)
	case MsgGetCurrentState:
		r.handleGetCurrentState(ctx, b, from)
	}
}

// handleBotAction performs the automated move requested by a supervisor or
// bot driver. Stale triggers, recognisable by an outdated turn marker, are
// dropped.
func (r *Room) handleBotAction(ctx context.Context, b *bus.Bus[Message], msg Message) {
	if msg.Type != MsgPlay && msg.Type != MsgReplaceCards {
		return
	}
	if r.phase != PhaseStarted {
		return
	}
	if msg.marker != nil && *msg.marker != r.turnMarker {
		logging.Warn(ctx, "dropping stale bot trigger",
			zap.String("room", r.ID.String()),
			zap.String("marker", msg.marker.String()))
		return
	}
	if err := r.engine.PlayBot(); err != nil {
		logging.Error(ctx, "bot move failed", zap.String("room", r.ID.String()), zap.Error(err))
		return
	}
	if msg.Type == MsgPlay {
		r.afterPlayed(ctx, b)
	} else {
		r.afterCardsReplaced(ctx, b)
	}
}

func (r *Room) handleJoin(ctx context.Context, b *bus.Bus[Message], from users.ID) {
	r.seatOrEnrol(ctx, b, from, false)
}

// seatOrEnrol implements the join policy: seat in Waiting, enrol as viewer
// afterwards. A user holds at most one role per room.
func (r *Room) seatOrEnrol(ctx context.Context, b *bus.Bus[Message], from users.ID, isBot bool) {
	switch r.phase {
	case PhaseWaiting:
		if _, isViewer := r.viewers[from]; isViewer || r.seatOf(from) >= 0 {
			r.playerError(ctx, b, from, game.ErrKindState)
			return
		}
		seat := -1
		for i, s := range r.seats {
			if s == nil {
				seat = i
				break
			}
		}
		if seat < 0 {
			// all four seats taken but the room has not started yet;
			// treat as a viewer enrolment below the transition
			r.playerError(ctx, b, from, game.ErrKindState)
			return
		}
		id := from
		r.seats[seat] = &id
		if isBot {
			r.bots[seat] = &id
		}
		r.broadcast(ctx, b, MsgJoined, from)
		if seat == game.PlayerNumber-1 {
			r.startGame(ctx, b)
		} else {
			r.broadcast(ctx, b, MsgWaitingForPlayers, r.seats)
		}
	default:
		if r.seatOf(from) >= 0 {
			r.playerError(ctx, b, from, game.ErrKindState)
			return
		}
		r.viewers[from] = struct{}{}
		r.broadcast(ctx, b, MsgViewerJoined, from)
	}
}

// handleJoinBot allocates a fresh bot user and synthesises its Join,
// running it through the same seating path as humans.
func (r *Room) handleJoinBot(ctx context.Context, b *bus.Bus[Message], from users.ID) {
	if r.phase != PhaseWaiting {
		r.playerError(ctx, b, from, game.ErrKindState)
		return
	}
	bot := r.directory.Upsert(users.NewBot())
	logging.Info(ctx, "seating bot",
		zap.String("room", r.ID.String()),
		zap.String("bot", bot.ID.String()),
		zap.String("requestedBy", from.String()))
	r.seatOrEnrol(ctx, b, bot.ID, true)
}

// startGame resolves the four seat users, instantiates the engine and
// broadcasts the first hand.
func (r *Room) startGame(ctx context.Context, b *bus.Bus[Message]) {
	var seats [game.PlayerNumber]game.Seat
	for i, id := range r.seats {
		u := r.directory.Resolve(*id)
		r.players[i] = u
		seats[i] = game.Seat{ID: u.ID, IsBot: r.bots[i] != nil}
	}
	r.engine = r.factory(seats, game.DefaultHands)
	r.phase = PhaseStarted
	logging.Info(ctx, "game started", zap.String("room", r.ID.String()))
	r.broadcastNewHand(ctx, b)
}

func (r *Room) handleGetCards(ctx context.Context, b *bus.Bus[Message], from users.ID) {
	if r.phase != PhaseStarted || r.seatOf(from) < 0 {
		r.playerError(ctx, b, from, game.ErrKindState)
		return
	}
	hand := r.engine.PlayerCards(from)
	r.unicast(ctx, b, from, MsgReceiveCards, hand)
}

func (r *Room) handleReplaceCards(ctx context.Context, b *bus.Bus[Message], from users.ID, msg Message) {
	cards, ok := msg.Payload.(ReplaceCardsPayload)
	if !ok {
		r.playerError(ctx, b, from, game.ErrKindState)
		return
	}
	if !r.requireTurn(ctx, b, from) {
		return
	}
	var positions [game.NumberReplaceableCards]int
	for i, c := range cards {
		positions[i] = c.PositionInDeck
	}
	if err := r.engine.ExchangeCards(positions); err != nil {
		r.reportGameError(ctx, b, from, err)
		return
	}
	r.afterCardsReplaced(ctx, b)
}

func (r *Room) handlePlay(ctx context.Context, b *bus.Bus[Message], from users.ID, msg Message) {
	card, ok := msg.Payload.(game.PlayerCard)
	if !ok {
		r.playerError(ctx, b, from, game.ErrKindState)
		return
	}
	if !r.requireTurn(ctx, b, from) {
		return
	}
	if err := r.engine.Play(card.PositionInDeck); err != nil {
		r.reportGameError(ctx, b, from, err)
		return
	}
	r.afterPlayed(ctx, b)
}

// requireTurn checks the room is started and the caller is the engine's
// current player, answering a stateError otherwise.
func (r *Room) requireTurn(ctx context.Context, b *bus.Bus[Message], from users.ID) bool {
	if r.phase != PhaseStarted || r.engine.CurrentPlayerID() != from {
		r.playerError(ctx, b, from, game.ErrKindState)
		return false
	}
	return true
}

func (r *Room) handleGetCurrentState(ctx context.Context, b *bus.Bus[Message], from users.ID) {
	if r.phase == PhaseWaiting {
		r.unicast(ctx, b, from, MsgWaitingForPlayers, r.seats)
		return
	}
	state := StatePayload{
		Mode:          r.mode(),
		PlayerScores:  r.engine.PlayerScores(),
		CurrentScores: r.engine.CurrentScores(),
		CurrentCards:  r.engine.PlayerCards(from),
		CurrentStack:  r.engine.CurrentStack(),
		CurrentHand:   r.engine.CurrentHand(),
		Hands:         r.engine.Hands(),
	}
	if r.phase == PhaseStarted {
		id := r.engine.CurrentPlayerID()
		state.CurrentPlayerID = &id
	}
	r.unicast(ctx, b, from, MsgState, state)
}

func (r *Room) mode() string {
	if r.phase == PhaseDone {
		return ModeEnd
	}
	switch r.engine.State() {
	case game.StateExchangeCards:
		return ModeExchangeCards
	case game.StateEnd:
		return ModeEnd
	default:
		return ModePlayingHand
	}
}

// afterPlayed drives the post-play emission: next turn, trick scoring with
// its UX delay, the next hand, or the end of the match.
func (r *Room) afterPlayed(ctx context.Context, b *bus.Bus[Message]) {
	switch r.engine.State() {
	case game.StatePlayingHand:
		r.broadcastNextPlayerToPlay(ctx, b)
	case game.StateComputeScore:
		stack := r.engine.CurrentStack()
		if err := r.engine.ComputeScore(); err != nil {
			logging.Error(ctx, "compute score failed", zap.String("room", r.ID.String()), zap.Error(err))
			return
		}
		scores := r.engine.CurrentScores()
		r.broadcast(ctx, b, MsgUpdateStackAndScore, UpdateStackAndScorePayload{
			Stack:         stack,
			PlayerScores:  r.engine.PlayerScores(),
			CurrentScores: &scores,
		})
		time.Sleep(ComputeScoreDelay)
		switch r.engine.State() {
		case game.StatePlayingHand:
			r.broadcastNextPlayerToPlay(ctx, b)
		case game.StateEndHand, game.StateExchangeCards:
			if err := r.engine.DealCards(); err != nil {
				logging.Error(ctx, "deal failed", zap.String("room", r.ID.String()), zap.Error(err))
				return
			}
			r.broadcastNewHand(ctx, b)
		case game.StateEnd:
			r.finishGame(ctx, b)
		}
	default:
		logging.Error(ctx, "unexpected engine state after play",
			zap.String("room", r.ID.String()),
			zap.String("state", r.engine.State().String()))
	}
}

// afterCardsReplaced mirrors afterPlayed for the exchange phase.
func (r *Room) afterCardsReplaced(ctx context.Context, b *bus.Bus[Message]) {
	switch r.engine.State() {
	case game.StateExchangeCards:
		marker := r.mintMarker()
		current := r.engine.CurrentPlayerID()
		r.broadcast(ctx, b, MsgNextPlayerToReplaceCards, TurnPayload{CurrentPlayerID: current, UUID: marker})
		r.watchTurn(b, current, marker, MsgReplaceCards)
	case game.StatePlayingHand:
		marker := r.mintMarker()
		current := r.engine.CurrentPlayerID()
		r.broadcast(ctx, b, MsgStartHand, TurnPayload{CurrentPlayerID: current, UUID: marker})
		r.watchTurn(b, current, marker, MsgPlay)
	default:
		logging.Error(ctx, "unexpected engine state after exchange",
			zap.String("room", r.ID.String()),
			zap.String("state", r.engine.State().String()))
	}
}

func (r *Room) broadcastNewHand(ctx context.Context, b *bus.Bus[Message]) {
	marker := r.mintMarker()
	current := r.engine.CurrentPlayerID()
	r.broadcast(ctx, b, MsgNewHand, NewHandPayload{
		PlayerIDsInOrder: r.engine.PlayerIDsInOrder(),
		CurrentPlayerID:  current,
		CurrentHand:      r.engine.CurrentHand(),
		PlayerScores:     r.engine.PlayerScores(),
		Hands:            r.engine.Hands(),
		UUID:             marker,
	})
	r.watchTurn(b, current, marker, MsgReplaceCards)
}

func (r *Room) broadcastNextPlayerToPlay(ctx context.Context, b *bus.Bus[Message]) {
	marker := r.mintMarker()
	current := r.engine.CurrentPlayerID()
	r.broadcast(ctx, b, MsgNextPlayerToPlay, NextPlayerToPlayPayload{
		CurrentPlayerID: current,
		Stack:           r.engine.CurrentStack(),
		UUID:            marker,
	})
	r.watchTurn(b, current, marker, MsgPlay)
}

func (r *Room) finishGame(ctx context.Context, b *bus.Bus[Message]) {
	r.phase = PhaseDone
	metrics.GamesCompleted.Inc()
	logging.Info(ctx, "game over", zap.String("room", r.ID.String()))
	r.broadcast(ctx, b, MsgEnd, EndPayload{PlayerScores: r.engine.PlayerScores()})
}

// playerError answers a rejected action with a unicast error kind.
func (r *Room) playerError(ctx context.Context, b *bus.Bus[Message], to users.ID, kind game.ErrorKind) {
	r.unicast(ctx, b, to, MsgPlayerError, kind)
}

func (r *Room) reportGameError(ctx context.Context, b *bus.Bus[Message], to users.ID, err error) {
	var gameErr *game.Error
	if errors.As(err, &gameErr) {
		r.playerError(ctx, b, to, gameErr.Kind)
		return
	}
	logging.Error(ctx, "engine error", zap.String("room", r.ID.String()), zap.Error(err))
	r.playerError(ctx, b, to, game.ErrKindState)
}

func (r *Room) mintMarker() uuid.UUID {
	r.turnMarker = uuid.New()
	return r.turnMarker
}

func (r *Room) seatOf(id users.ID) int {
	for i, s := range r.seats {
		if s != nil && *s == id {
			return i
		}
	}
	return -1
}

// watchTurn spawns the deadline watcher for the player named by a
// turn-advancing broadcast: a timeout supervisor for humans, a paced bot
// driver for bot seats.
func (r *Room) watchTurn(b *bus.Bus[Message], current users.ID, marker uuid.UUID, fallback MessageType) {
	isBot := false
	if seat := r.seatOf(current); seat >= 0 {
		isBot = r.bots[seat] != nil
	}
	cfg := superviseConfig{
		roomID:   r.ID,
		expected: current,
		marker:   marker,
		fallback: fallback,
		timeout:  TurnTimeout,
		notify:   true,
	}
	if isBot {
		cfg.timeout = BotSleep
		cfg.notify = false
	}
	rcv := b.Subscribe()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		superviseTurn(b, rcv, cfg)
	}()
}
