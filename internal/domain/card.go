package domain

import "sort"

// Suit values, lowest to highest.
const (
	SuitSpades int32 = iota
	SuitClubs
	SuitDiamonds
	SuitHearts
)

// RankTwo is the highest rank. Ranks run 0..12 encoding 3,4,...,10,J,Q,K,A,2.
const RankTwo int32 = 12

// Card is a single playing card. Rank 0..12, Suit 0..3.
type Card struct {
	Rank int32 `json:"rank"`
	Suit int32 `json:"suit"`
}

// CardPower is a total order over the 52 distinct cards: rank first, suit second.
func CardPower(c Card) int32 {
	return c.Rank*4 + c.Suit
}

// NewDeck returns the full 52-card deck in rank-major order.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for r := int32(0); r <= 12; r++ {
		for s := int32(0); s <= 3; s++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// SortCards orders cards by ascending power in place.
func SortCards(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		return CardPower(cards[i]) < CardPower(cards[j])
	})
}

// ContainsAll reports whether every card in want is present in hand.
// Cards are distinct within a hand, so set semantics suffice.
func ContainsAll(hand, want []Card) bool {
	if len(want) == 0 || len(want) > len(hand) {
		return false
	}
	held := make(map[Card]bool, len(hand))
	for _, c := range hand {
		held[c] = true
	}
	seen := make(map[Card]bool, len(want))
	for _, c := range want {
		if !held[c] || seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}

// RemoveCards returns hand with the given cards removed.
func RemoveCards(hand, toRemove []Card) []Card {
	if len(toRemove) == 0 || len(hand) == 0 {
		return hand
	}
	drop := make(map[Card]bool, len(toRemove))
	for _, c := range toRemove {
		drop[c] = true
	}
	updated := make([]Card, 0, len(hand))
	for _, c := range hand {
		if drop[c] {
			continue
		}
		updated = append(updated, c)
	}
	return updated
}

// CloneCards returns an independent copy of the given cards.
func CloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}
