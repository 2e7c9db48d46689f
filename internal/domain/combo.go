package domain

// ComboType identifies the shape of a played card set.
type ComboType int

const (
	ComboInvalid ComboType = iota
	ComboSingle
	ComboPair
	ComboTriple
	ComboStraight
	// Special combinations, in ascending chop order.
	ComboThreePairRun
	ComboQuad
	ComboFourPairRun
)

// Combination is a classified card set.
//
// Power is the comparison key within a type: full card power (rank and suit)
// for singles, pairs, triples and straights; rank only for quads and pair
// runs, where suits are irrelevant to strength.
type Combination struct {
	Type  ComboType `json:"type"`
	Cards []Card    `json:"cards"`
	Power int32     `json:"power"`
}

// Empty reports whether the combination holds no cards (a cleared pile).
func (c Combination) Empty() bool {
	return c.Type == ComboInvalid && len(c.Cards) == 0
}

func (t ComboType) special() bool {
	switch t {
	case ComboThreePairRun, ComboQuad, ComboFourPairRun:
		return true
	}
	return false
}

// Classify analyzes cards and returns their combination, or one with
// ComboInvalid when the set is not legal to play.
func Classify(cards []Card) Combination {
	n := len(cards)
	if n == 0 || n > 13 || hasDuplicates(cards) {
		return Combination{Type: ComboInvalid}
	}

	sorted := CloneCards(cards)
	SortCards(sorted)

	if n == 1 {
		return Combination{Type: ComboSingle, Cards: sorted, Power: CardPower(sorted[0])}
	}

	if allSameRank(sorted) {
		switch n {
		case 2:
			return Combination{Type: ComboPair, Cards: sorted, Power: CardPower(sorted[n-1])}
		case 3:
			return Combination{Type: ComboTriple, Cards: sorted, Power: CardPower(sorted[n-1])}
		case 4:
			return Combination{Type: ComboQuad, Cards: sorted, Power: sorted[0].Rank}
		}
		return Combination{Type: ComboInvalid}
	}

	if isStraight(sorted) {
		return Combination{Type: ComboStraight, Cards: sorted, Power: CardPower(sorted[n-1])}
	}

	if isPairRun(sorted) {
		t := ComboThreePairRun
		if n == 8 {
			t = ComboFourPairRun
		}
		return Combination{Type: t, Cards: sorted, Power: sorted[n-1].Rank}
	}

	return Combination{Type: ComboInvalid}
}

// Beats reports whether next may be played over current.
//
// An empty current opens the round, so any valid combination beats it. A
// tabled single 2 is chopped by any special combination. Two specials of
// differing subtype follow the chop order three-pair run < quad < four-pair
// run. Everything else requires matching type (and length, for straights)
// and strictly higher power.
func Beats(next, current Combination) bool {
	if next.Type == ComboInvalid {
		return false
	}
	if current.Empty() {
		return true
	}
	if current.Type == ComboInvalid {
		return false
	}

	if isSingleTwo(current) && next.Type.special() {
		return true
	}

	if next.Type.special() && current.Type.special() {
		if next.Type != current.Type {
			return next.Type > current.Type
		}
		return next.Power > current.Power
	}

	if next.Type != current.Type {
		return false
	}
	if next.Type == ComboStraight && len(next.Cards) != len(current.Cards) {
		return false
	}
	return next.Power > current.Power
}

func isSingleTwo(c Combination) bool {
	return c.Type == ComboSingle && len(c.Cards) == 1 && c.Cards[0].Rank == RankTwo
}

func hasDuplicates(cards []Card) bool {
	seen := make(map[Card]bool, len(cards))
	for _, c := range cards {
		if seen[c] {
			return true
		}
		seen[c] = true
	}
	return false
}

func allSameRank(cards []Card) bool {
	if len(cards) == 0 {
		return false
	}
	r := cards[0].Rank
	for _, c := range cards {
		if c.Rank != r {
			return false
		}
	}
	return true
}

// isStraight expects sorted input: length >= 3, strictly consecutive ranks,
// never rank 2.
func isStraight(cards []Card) bool {
	if len(cards) < 3 {
		return false
	}
	for i, c := range cards {
		if c.Rank == RankTwo {
			return false
		}
		if i > 0 && c.Rank != cards[i-1].Rank+1 {
			return false
		}
	}
	return true
}

// isPairRun expects sorted input: exactly three or four same-rank pairs with
// consecutive ranks, never rank 2.
func isPairRun(cards []Card) bool {
	n := len(cards)
	if n != 6 && n != 8 {
		return false
	}
	for i := 0; i < n; i += 2 {
		if cards[i].Rank != cards[i+1].Rank || cards[i].Rank == RankTwo {
			return false
		}
		if i > 0 && cards[i].Rank != cards[i-2].Rank+1 {
			return false
		}
	}
	return true
}
