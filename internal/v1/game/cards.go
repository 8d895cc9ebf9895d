package game

// TypeCard is the card suit as serialised on the wire.
type TypeCard string

const (
	TypeClub    TypeCard = "CLUB"
	TypeDiamond TypeCard = "DIAMOND"
	TypeSpade   TypeCard = "SPADE"
	TypeHeart   TypeCard = "HEART"
)

// PlayerCard is a card as exposed to clients. PositionInDeck identifies the
// card for Play and ExchangeCards; the emoji is the Unicode playing-card
// glyph (4 bytes of UTF-8).
type PlayerCard struct {
	TypeCard       TypeCard `json:"typeCard"`
	Emoji          string   `json:"emoji"`
	PositionInDeck int      `json:"positionInDeck"`
}

// DeckSize is a standard 52-card deck.
const DeckSize = 52

var suits = [4]TypeCard{TypeClub, TypeDiamond, TypeSpade, TypeHeart}

// Deck positions are fixed: position = suit*13 + (rank-2), ranks 2..14
// (ace high). The two of clubs is therefore position 0, the queen of
// spades position 36.
const (
	posTwoOfClubs    = 0
	posQueenOfSpades = 2*13 + (12 - 2)
)

func suitOf(position int) TypeCard {
	return suits[position/13]
}

func rankOf(position int) int {
	return position%13 + 2
}

func isHeart(position int) bool {
	return suitOf(position) == TypeHeart
}

// pointsOf returns the penalty value of a card: hearts score one, the
// queen of spades thirteen.
func pointsOf(position int) int {
	switch {
	case isHeart(position):
		return 1
	case position == posQueenOfSpades:
		return 13
	default:
		return 0
	}
}

// cardGlyphBase maps a suit to the first rune of its Unicode playing-card
// block (the ace).
var cardGlyphBase = map[TypeCard]rune{
	TypeSpade:   0x1F0A0,
	TypeHeart:   0x1F0B0,
	TypeDiamond: 0x1F0C0,
	TypeClub:    0x1F0D0,
}

// cardGlyph renders the card face. The Unicode block inserts the knight at
// offset 0xC, so queens and kings shift by one.
func cardGlyph(position int) string {
	base := cardGlyphBase[suitOf(position)]
	rank := rankOf(position)
	var offset rune
	switch rank {
	case 14: // ace
		offset = 0x1
	case 12: // queen, skipping the knight
		offset = 0xD
	case 13: // king
		offset = 0xE
	default:
		offset = rune(rank)
	}
	return string(base + offset)
}

// CardAt builds the wire representation of a deck position.
func CardAt(position int) PlayerCard {
	return PlayerCard{
		TypeCard:       suitOf(position),
		Emoji:          cardGlyph(position),
		PositionInDeck: position,
	}
}
