package domain

import "math/rand"

// HandSize is the fixed number of cards dealt to each participant.
const HandSize = 13

// MaxSeats is the number of seats at a table.
const MaxSeats = 4

// Deal shuffles a fresh 52-card deck with rng and returns numHands sorted
// hands of HandSize cards each. The undealt remainder is discarded. numHands
// must be between 1 and MaxSeats.
func Deal(rng *rand.Rand, numHands int) [][]Card {
	if numHands < 1 || numHands > MaxSeats {
		return nil
	}

	deck := NewDeck()
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	hands := make([][]Card, numHands)
	for i := 0; i < numHands; i++ {
		hand := CloneCards(deck[i*HandSize : (i+1)*HandSize])
		SortCards(hand)
		hands[i] = hand
	}
	return hands
}
