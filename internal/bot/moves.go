package bot

import "thirteen/internal/domain"

// LegalMoves enumerates every distinct subset of hand that classifies as a
// valid combination and beats the pile. With an empty pile any valid
// combination qualifies. Enumeration is bounded to the subset sizes that can
// possibly answer the pile: its own shape, plus the chop shapes where the
// pile invites one. Validity and comparison are delegated to the domain
// rules, the enumerator knows nothing about card semantics.
func LegalMoves(hand []domain.Card, pile domain.Combination) [][]domain.Card {
	var moves [][]domain.Card
	for _, k := range feasibleSizes(len(hand), pile) {
		combinationsOfSize(hand, k, func(cards []domain.Card) {
			combo := domain.Classify(cards)
			if combo.Type == domain.ComboInvalid {
				return
			}
			if !domain.Beats(combo, pile) {
				return
			}
			moves = append(moves, domain.CloneCards(cards))
		})
	}
	return moves
}

// feasibleSizes returns the subset sizes worth classifying against the pile.
// No valid combination uses more than twelve cards (the longest straight).
func feasibleSizes(handSize int, pile domain.Combination) []int {
	if pile.Empty() {
		max := handSize
		if max > 12 {
			max = 12
		}
		sizes := make([]int, 0, max)
		for k := 1; k <= max; k++ {
			sizes = append(sizes, k)
		}
		return sizes
	}

	var sizes []int
	switch pile.Type {
	case domain.ComboSingle:
		sizes = []int{1}
		if pile.Cards[0].Rank == domain.RankTwo {
			// a tabled 2 invites every chop shape
			sizes = append(sizes, 4, 6, 8)
		}
	case domain.ComboThreePairRun:
		sizes = []int{4, 6, 8}
	case domain.ComboQuad:
		sizes = []int{4, 8}
	case domain.ComboFourPairRun:
		sizes = []int{8}
	default:
		sizes = []int{len(pile.Cards)}
	}

	filtered := sizes[:0]
	for _, k := range sizes {
		if k <= handSize {
			filtered = append(filtered, k)
		}
	}
	return filtered
}

// combinationsOfSize calls fn with every k-card subset of hand. The slice
// passed to fn is reused between calls; fn must copy anything it keeps.
func combinationsOfSize(hand []domain.Card, k int, fn func([]domain.Card)) {
	if k <= 0 || k > len(hand) {
		return
	}
	pick := make([]domain.Card, 0, k)
	var walk func(start int)
	walk = func(start int) {
		if len(pick) == k {
			fn(pick)
			return
		}
		if len(hand)-start < k-len(pick) {
			return
		}
		for i := start; i < len(hand); i++ {
			pick = append(pick, hand[i])
			walk(i + 1)
			pick = pick[:len(pick)-1]
		}
	}
	walk(0)
}
