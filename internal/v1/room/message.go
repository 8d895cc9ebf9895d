// Package room implements the realtime core: the per-room actor that owns
// the game state, the wire message protocol, the per-turn timeout
// supervisors and bot drivers, and the bounded registry of live rooms.
package room

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nbittich/hearts/internal/v1/game"
	"github.com/nbittich/hearts/internal/v1/users"
)

// MessageType tags a room message on the wire (camelCase).
type MessageType string

const (
	MsgJoin                     MessageType = "join"
	MsgJoined                   MessageType = "joined"
	MsgJoinBot                  MessageType = "joinBot"
	MsgViewerJoined             MessageType = "viewerJoined"
	MsgWaitingForPlayers        MessageType = "waitingForPlayers"
	MsgGetCards                 MessageType = "getCards"
	MsgReceiveCards             MessageType = "receiveCards"
	MsgReplaceCards             MessageType = "replaceCards"
	MsgNewHand                  MessageType = "newHand"
	MsgStartHand                MessageType = "startHand"
	MsgNextPlayerToReplaceCards MessageType = "nextPlayerToReplaceCards"
	MsgNextPlayerToPlay         MessageType = "nextPlayerToPlay"
	MsgUpdateStackAndScore      MessageType = "updateStackAndScore"
	MsgEnd                      MessageType = "end"
	MsgPlayerError              MessageType = "playerError"
	MsgPlay                     MessageType = "play"
	MsgTimedOut                 MessageType = "timedOut"
	MsgGetCurrentState          MessageType = "getCurrentState"
	MsgState                    MessageType = "state"
)

// Message is the unit carried by the room bus and by websocket text frames.
// Addressing rules: FromUserID nil means system-originated; ToUserID nil
// means broadcast, otherwise unicast. ToUserID is never read from the wire.
type Message struct {
	FromUserID *users.ID
	ToUserID   *users.ID
	Type       MessageType
	Payload    any

	// marker guards in-process bot triggers against acting on a turn
	// that has already advanced. Never serialised.
	marker *uuid.UUID
}

// Hand is a player's 13 dealt slots; played slots are null on the wire.
type Hand = [game.PlayerCardSize]*game.PlayerCard

// Stack is one trick; slot i holds seat i's contribution.
type Stack = [game.PlayerNumber]*game.PlayerCard

// Scores is one score entry per seat.
type Scores = [game.PlayerNumber]game.PlayerState

type NewHandPayload struct {
	PlayerIDsInOrder [game.PlayerNumber]users.ID `json:"playerIdsInOrder"`
	CurrentPlayerID  users.ID                    `json:"currentPlayerId"`
	CurrentHand      uint8                       `json:"currentHand"`
	PlayerScores     Scores                      `json:"playerScores"`
	Hands            uint8                       `json:"hands"`
	UUID             uuid.UUID                   `json:"uuid"`
}

// TurnPayload is shared by startHand and nextPlayerToReplaceCards.
type TurnPayload struct {
	CurrentPlayerID users.ID  `json:"currentPlayerId"`
	UUID            uuid.UUID `json:"uuid"`
}

type NextPlayerToPlayPayload struct {
	CurrentPlayerID users.ID  `json:"currentPlayerId"`
	CurrentCards    *Hand     `json:"currentCards"`
	Stack           Stack     `json:"stack"`
	UUID            uuid.UUID `json:"uuid"`
}

type UpdateStackAndScorePayload struct {
	Stack         Stack   `json:"stack"`
	PlayerScores  Scores  `json:"playerScores"`
	CurrentScores *Scores `json:"currentScores,omitempty"`
}

type EndPayload struct {
	PlayerScores Scores `json:"playerScores"`
}

type ReplaceCardsPayload = [game.NumberReplaceableCards]game.PlayerCard

type StatePayload struct {
	Mode            string    `json:"mode"`
	PlayerScores    Scores    `json:"playerScores"`
	CurrentScores   Scores    `json:"currentScores"`
	CurrentCards    Hand      `json:"currentCards"`
	CurrentStack    Stack     `json:"currentStack"`
	CurrentHand     uint8     `json:"currentHand"`
	CurrentPlayerID *users.ID `json:"currentPlayerId,omitempty"`
	Hands           uint8     `json:"hands"`
}

// State modes exposed to clients.
const (
	ModeExchangeCards = "EXCHANGE_CARDS"
	ModePlayingHand   = "PLAYING_HAND"
	ModeEnd           = "END"
)

// TurnMarker returns the per-turn nonce of turn-advancing messages.
func (m Message) TurnMarker() (uuid.UUID, bool) {
	switch p := m.Payload.(type) {
	case NewHandPayload:
		return p.UUID, true
	case TurnPayload:
		return p.UUID, true
	case NextPlayerToPlayPayload:
		return p.UUID, true
	default:
		return uuid.Nil, false
	}
}

// wire is the frame envelope. toUserId is write-only: clients cannot
// address other clients directly.
type wireMessage struct {
	FromUserID *users.ID       `json:"fromUserId"`
	ToUserID   *users.ID       `json:"toUserId"`
	MsgType    json.RawMessage `json:"msgType"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	var tag any = string(m.Type)
	if m.Payload != nil {
		tag = map[string]any{string(m.Type): m.Payload}
	}
	raw, err := json.Marshal(tag)
	if err != nil {
		return nil, fmt.Errorf("marshal msgType %q: %w", m.Type, err)
	}
	return json.Marshal(wireMessage{
		FromUserID: m.FromUserID,
		ToUserID:   m.ToUserID,
		MsgType:    raw,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w struct {
		FromUserID *users.ID       `json:"fromUserId"`
		MsgType    json.RawMessage `json:"msgType"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.MsgType) == 0 {
		return fmt.Errorf("message without msgType")
	}
	m.FromUserID = w.FromUserID
	m.ToUserID = nil
	m.Payload = nil

	if w.MsgType[0] == '"' {
		var kind string
		if err := json.Unmarshal(w.MsgType, &kind); err != nil {
			return err
		}
		m.Type = MessageType(kind)
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(w.MsgType, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("msgType must carry exactly one kind, got %d", len(tagged))
	}
	for kind, raw := range tagged {
		m.Type = MessageType(kind)
		payload, err := decodePayload(m.Type, raw)
		if err != nil {
			return err
		}
		m.Payload = payload
	}
	return nil
}

func decodePayload(kind MessageType, raw json.RawMessage) (any, error) {
	decode := func(v any) (any, error) {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return v, nil
	}
	switch kind {
	case MsgJoined, MsgViewerJoined:
		var id users.ID
		if _, err := decode(&id); err != nil {
			return nil, err
		}
		return id, nil
	case MsgWaitingForPlayers:
		var seats [game.PlayerNumber]*users.ID
		if _, err := decode(&seats); err != nil {
			return nil, err
		}
		return seats, nil
	case MsgReceiveCards:
		var hand Hand
		if _, err := decode(&hand); err != nil {
			return nil, err
		}
		return hand, nil
	case MsgReplaceCards:
		var cards ReplaceCardsPayload
		if _, err := decode(&cards); err != nil {
			return nil, err
		}
		return cards, nil
	case MsgPlay:
		var card game.PlayerCard
		if _, err := decode(&card); err != nil {
			return nil, err
		}
		return card, nil
	case MsgNewHand:
		var p NewHandPayload
		if _, err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case MsgStartHand, MsgNextPlayerToReplaceCards:
		var p TurnPayload
		if _, err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case MsgNextPlayerToPlay:
		var p NextPlayerToPlayPayload
		if _, err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case MsgUpdateStackAndScore:
		var p UpdateStackAndScorePayload
		if _, err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case MsgEnd:
		var p EndPayload
		if _, err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case MsgPlayerError:
		var k game.ErrorKind
		if _, err := decode(&k); err != nil {
			return nil, err
		}
		return k, nil
	case MsgState:
		var p StatePayload
		if _, err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown message kind %q", kind)
	}
}
