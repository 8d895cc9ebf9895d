package game

import (
	"math/rand"
	"sort"

	"github.com/google/uuid"
)

// hearts is the rules engine for a four-seat Hearts match. Tricks are
// resolved lazily: after the fourth card the engine parks in ComputeScore
// and waits for the caller, which lets the room actor broadcast the full
// stack before it is cleared.
type hearts struct {
	seats     [PlayerNumber]Seat
	order     [PlayerNumber]uuid.UUID
	handCount uint8
	hand      uint8
	state     State
	rng       *rand.Rand

	// held[s] are the 13 dealt slots of seat s; played or passed-away
	// cards are -1 until the exchange refills them.
	held [PlayerNumber][PlayerCardSize]int

	exchanged [PlayerNumber]bool
	pending   [PlayerNumber][NumberReplaceableCards]int

	current      int
	leader       int
	trick        [PlayerNumber]int
	played       int
	trickNo      int
	heartsBroken bool

	handScores [PlayerNumber]int
	totals     [PlayerNumber]int
}

// New builds a Hearts engine and deals the first hand. A zero hands value
// falls back to DefaultHands.
func New(seats [PlayerNumber]Seat, hands uint8) Engine {
	return NewWithRand(seats, hands, rand.New(rand.NewSource(rand.Int63())))
}

// NewWithRand is New with an injectable shuffle source, used by fixtures.
func NewWithRand(seats [PlayerNumber]Seat, hands uint8, rng *rand.Rand) Engine {
	if hands == 0 {
		hands = DefaultHands
	}
	h := &hearts{
		seats:     seats,
		handCount: hands,
		rng:       rng,
	}
	for i, s := range seats {
		h.order[i] = s.ID
	}
	h.deal()
	h.hand = 1
	return h
}

func (h *hearts) State() State { return h.state }

func (h *hearts) CurrentPlayerID() uuid.UUID { return h.order[h.current] }

func (h *hearts) PlayerIDsInOrder() [PlayerNumber]uuid.UUID { return h.order }

func (h *hearts) CurrentHand() uint8 { return h.hand }

func (h *hearts) Hands() uint8 { return h.handCount }

func (h *hearts) PlayerScores() [PlayerNumber]PlayerState {
	return h.scores(h.totals)
}

func (h *hearts) CurrentScores() [PlayerNumber]PlayerState {
	return h.scores(h.handScores)
}

func (h *hearts) scores(values [PlayerNumber]int) [PlayerNumber]PlayerState {
	var out [PlayerNumber]PlayerState
	for i := range out {
		out[i] = PlayerState{PlayerID: h.order[i], Score: values[i]}
	}
	return out
}

func (h *hearts) PlayerCards(id uuid.UUID) [PlayerCardSize]*PlayerCard {
	var out [PlayerCardSize]*PlayerCard
	seat, ok := h.seatOf(id)
	if !ok {
		return out
	}
	for i, pos := range h.held[seat] {
		if pos >= 0 {
			c := CardAt(pos)
			out[i] = &c
		}
	}
	return out
}

func (h *hearts) CurrentStack() [PlayerNumber]*PlayerCard {
	var out [PlayerNumber]*PlayerCard
	for i, pos := range h.trick {
		if pos >= 0 {
			c := CardAt(pos)
			out[i] = &c
		}
	}
	return out
}

func (h *hearts) ExchangeCards(positions [NumberReplaceableCards]int) error {
	if h.state != StateExchangeCards {
		return stateErr("cannot exchange cards in state %s", h.state)
	}
	seen := map[int]bool{}
	for _, p := range positions {
		if seen[p] {
			return illegalMove("duplicate card %d in exchange", p)
		}
		seen[p] = true
		if _, ok := h.slotOf(h.current, p); !ok {
			return illegalMove("card %d is not in hand", p)
		}
	}
	for i, p := range positions {
		slot, _ := h.slotOf(h.current, p)
		h.held[h.current][slot] = -1
		h.pending[h.current][i] = p
	}
	h.exchanged[h.current] = true
	h.advanceExchange()
	return nil
}

// advanceExchange moves the cursor to the next seat that has not passed
// yet; once all four have, the pending cards travel one seat to the left
// and play begins at the two of clubs.
func (h *hearts) advanceExchange() {
	for s := 0; s < PlayerNumber; s++ {
		if !h.exchanged[s] {
			h.current = s
			return
		}
	}
	for s := 0; s < PlayerNumber; s++ {
		receiver := (s + 1) % PlayerNumber
		for _, p := range h.pending[s] {
			h.insert(receiver, p)
		}
	}
	h.state = StatePlayingHand
	for s := 0; s < PlayerNumber; s++ {
		if _, ok := h.slotOf(s, posTwoOfClubs); ok {
			h.current = s
			break
		}
	}
	h.leader = h.current
}

func (h *hearts) Play(position int) error {
	if h.state != StatePlayingHand {
		return stateErr("cannot play a card in state %s", h.state)
	}
	slot, ok := h.slotOf(h.current, position)
	if !ok {
		return illegalMove("card %d is not in hand", position)
	}
	if err := h.checkLegal(h.current, position); err != nil {
		return err
	}
	h.held[h.current][slot] = -1
	h.trick[h.current] = position
	h.played++
	if isHeart(position) {
		h.heartsBroken = true
	}
	if h.played == PlayerNumber {
		h.state = StateComputeScore
	} else {
		h.current = (h.current + 1) % PlayerNumber
	}
	return nil
}

func (h *hearts) checkLegal(seat, position int) error {
	if h.played == 0 {
		if h.trickNo == 0 && position != posTwoOfClubs {
			return illegalMove("the two of clubs must lead the first trick")
		}
		if isHeart(position) && !h.heartsBroken && h.holdsOtherThan(seat, TypeHeart) {
			return illegalMove("hearts have not been broken")
		}
		return nil
	}
	leadSuit := suitOf(h.trick[h.leader])
	if suitOf(position) != leadSuit && h.holdsSuit(seat, leadSuit) {
		return illegalMove("must follow %s", leadSuit)
	}
	if h.trickNo == 0 && pointsOf(position) > 0 && h.holdsPointless(seat) {
		return illegalMove("no penalty cards on the first trick")
	}
	return nil
}

func (h *hearts) ComputeScore() error {
	if h.state != StateComputeScore {
		return stateErr("no trick to score in state %s", h.state)
	}
	leadSuit := suitOf(h.trick[h.leader])
	winner, best, points := h.leader, -1, 0
	for s, pos := range h.trick {
		points += pointsOf(pos)
		if suitOf(pos) == leadSuit && rankOf(pos) > best {
			winner, best = s, rankOf(pos)
		}
	}
	h.handScores[winner] += points
	h.trickNo++
	h.trick = [PlayerNumber]int{-1, -1, -1, -1}
	h.played = 0

	if h.trickNo < PlayerCardSize {
		h.state = StatePlayingHand
		h.current = winner
		h.leader = winner
		return nil
	}
	h.foldHandScores()
	if h.hand >= h.handCount {
		h.state = StateEnd
	} else {
		h.state = StateEndHand
	}
	return nil
}

// foldHandScores applies the shoot-the-moon rule and accumulates the hand
// into the match totals.
func (h *hearts) foldHandScores() {
	shooter := -1
	for s, v := range h.handScores {
		if v == 26 {
			shooter = s
		}
	}
	for s := range h.totals {
		switch {
		case shooter < 0:
			h.totals[s] += h.handScores[s]
		case s != shooter:
			h.totals[s] += 26
		}
	}
}

func (h *hearts) DealCards() error {
	if h.state != StateEndHand {
		return stateErr("cannot deal in state %s", h.state)
	}
	h.deal()
	h.hand++
	return nil
}

func (h *hearts) PlayBot() error {
	switch h.state {
	case StateExchangeCards:
		return h.ExchangeCards(h.botExchange())
	case StatePlayingHand:
		for _, pos := range h.held[h.current] {
			if pos >= 0 && h.checkLegal(h.current, pos) == nil {
				return h.Play(pos)
			}
		}
		return illegalMove("no legal card for bot")
	default:
		return stateErr("no bot move in state %s", h.state)
	}
}

// botExchange passes the three highest-ranked cards.
func (h *hearts) botExchange() [NumberReplaceableCards]int {
	cards := make([]int, 0, PlayerCardSize)
	for _, pos := range h.held[h.current] {
		if pos >= 0 {
			cards = append(cards, pos)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return rankOf(cards[i]) > rankOf(cards[j]) })
	var out [NumberReplaceableCards]int
	copy(out[:], cards[:NumberReplaceableCards])
	return out
}

// deal shuffles and distributes a fresh hand, resetting all trick state.
func (h *hearts) deal() {
	positions := h.rng.Perm(DeckSize)
	for s := 0; s < PlayerNumber; s++ {
		hand := positions[s*PlayerCardSize : (s+1)*PlayerCardSize]
		sort.Ints(hand)
		copy(h.held[s][:], hand)
		h.exchanged[s] = false
	}
	h.trick = [PlayerNumber]int{-1, -1, -1, -1}
	h.played = 0
	h.trickNo = 0
	h.heartsBroken = false
	h.handScores = [PlayerNumber]int{}
	h.state = StateExchangeCards
	h.current = 0
	h.leader = 0
}

func (h *hearts) seatOf(id uuid.UUID) (int, bool) {
	for s, sid := range h.order {
		if sid == id {
			return s, true
		}
	}
	return 0, false
}

// insert places a passed card into the receiver's first empty slot.
func (h *hearts) insert(seat, position int) {
	for slot, pos := range h.held[seat] {
		if pos < 0 {
			h.held[seat][slot] = position
			return
		}
	}
}

func (h *hearts) slotOf(seat, position int) (int, bool) {
	for slot, pos := range h.held[seat] {
		if pos == position {
			return slot, true
		}
	}
	return 0, false
}

func (h *hearts) holdsSuit(seat int, suit TypeCard) bool {
	for _, pos := range h.held[seat] {
		if pos >= 0 && suitOf(pos) == suit {
			return true
		}
	}
	return false
}

func (h *hearts) holdsOtherThan(seat int, suit TypeCard) bool {
	for _, pos := range h.held[seat] {
		if pos >= 0 && suitOf(pos) != suit {
			return true
		}
	}
	return false
}

func (h *hearts) holdsPointless(seat int) bool {
	for _, pos := range h.held[seat] {
		if pos >= 0 && pointsOf(pos) == 0 {
			return true
		}
	}
	return false
}
