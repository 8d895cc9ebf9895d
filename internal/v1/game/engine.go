// Package game defines the Hearts engine contract consumed by the room
// actor, together with the card and score types that cross the wire. The
// actor treats the engine as an opaque collaborator: it issues moves and
// observes the resulting state, never driving transitions directly.
package game

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	// PlayerNumber is the fixed seat count of a Hearts match.
	PlayerNumber = 4
	// PlayerCardSize is the number of cards dealt to each player per hand.
	PlayerCardSize = 13
	// NumberReplaceableCards is the number of cards passed during the
	// exchange phase.
	NumberReplaceableCards = 3
	// DefaultHands is the number of hands played per match.
	DefaultHands uint8 = 3
)

// State is the observable engine sub-state within a started room.
type State uint8

const (
	StateExchangeCards State = iota
	StatePlayingHand
	StateComputeScore
	StateEndHand
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateExchangeCards:
		return "EXCHANGE_CARDS"
	case StatePlayingHand:
		return "PLAYING_HAND"
	case StateComputeScore:
		return "COMPUTE_SCORE"
	case StateEndHand:
		return "END_HAND"
	case StateEnd:
		return "END"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Seat binds a player id to a seat, flagging bot-driven seats.
type Seat struct {
	ID    uuid.UUID
	IsBot bool
}

// PlayerState is one player's score entry as sent on the wire.
type PlayerState struct {
	PlayerID uuid.UUID `json:"playerId"`
	Score    int       `json:"score"`
}

// ErrorKind is the wire taxonomy for rejected player actions.
type ErrorKind string

const (
	// ErrKindState marks a well-formed action in the wrong phase or from
	// the wrong actor.
	ErrKindState ErrorKind = "stateError"
	// ErrKindIllegalMove marks a card the rules reject.
	ErrKindIllegalMove ErrorKind = "illegalMove"
)

// Error is a game rejection. It never mutates engine state.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func stateErr(format string, args ...any) *Error {
	return &Error{Kind: ErrKindState, Reason: fmt.Sprintf(format, args...)}
}

func illegalMove(format string, args ...any) *Error {
	return &Error{Kind: ErrKindIllegalMove, Reason: fmt.Sprintf(format, args...)}
}

// Engine is the opaque Hearts rules engine. Implementations are not safe
// for concurrent use; the room actor is the sole caller.
type Engine interface {
	State() State
	CurrentPlayerID() uuid.UUID
	PlayerIDsInOrder() [PlayerNumber]uuid.UUID
	// PlayerScores returns the cumulative scores across completed hands.
	PlayerScores() [PlayerNumber]PlayerState
	// CurrentScores returns the running scores of the hand in progress.
	CurrentScores() [PlayerNumber]PlayerState
	// PlayerCards returns the 13 dealt slots of a player's hand; played
	// slots are nil.
	PlayerCards(id uuid.UUID) [PlayerCardSize]*PlayerCard
	CurrentStack() [PlayerNumber]*PlayerCard
	CurrentHand() uint8
	Hands() uint8
	// ExchangeCards passes three cards of the current player, identified
	// by deck position.
	ExchangeCards(positions [NumberReplaceableCards]int) error
	// Play plays the card at the given deck position for the current player.
	Play(position int) error
	// PlayBot performs the state-appropriate automated move (exchange or
	// play) for the current player.
	PlayBot() error
	// DealCards starts the next hand after EndHand.
	DealCards() error
	// ComputeScore resolves a full trick and advances the state.
	ComputeScore() error
}

// Factory builds an engine for four seated players. The room actor takes a
// Factory so tests can substitute scripted engines.
type Factory func(seats [PlayerNumber]Seat, hands uint8) Engine
