package bot

import (
	"math/rand"
	"time"

	"thirteen/internal/domain"
)

// Move is a bot's decided action for its turn: either a pass or the cards to
// put on the pile.
type Move struct {
	Pass  bool
	Cards []domain.Card
}

// Brain selects a move given the bot's hand and the current pile.
type Brain interface {
	ChooseMove(hand []domain.Card, pile domain.Combination) Move
}

// RandomBrain plays a uniformly random legal move and passes only when
// nothing in hand can answer the pile. It goes through the same rule path
// as human plays, so it can never produce a rejected move.
type RandomBrain struct {
	rng *rand.Rand
}

// NewRandomBrain creates a RandomBrain. A nil rng falls back to a
// time-seeded one.
func NewRandomBrain(rng *rand.Rand) *RandomBrain {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomBrain{rng: rng}
}

// ChooseMove implements Brain.
func (b *RandomBrain) ChooseMove(hand []domain.Card, pile domain.Combination) Move {
	moves := LegalMoves(hand, pile)
	if len(moves) == 0 {
		return Move{Pass: true}
	}
	return Move{Cards: moves[b.rng.Intn(len(moves))]}
}
