package bot

import (
	"math/rand"
	"testing"

	"thirteen/internal/domain"
)

func TestRandomBrainPassesWhenNothingBeats(t *testing.T) {
	brain := NewRandomBrain(rand.New(rand.NewSource(3)))
	hand := []domain.Card{card(0, 0)}
	pile := domain.Classify([]domain.Card{card(11, 3)})

	if mv := brain.ChooseMove(hand, pile); !mv.Pass {
		t.Fatalf("move = %+v, want pass", mv)
	}
}

func TestRandomBrainAlwaysPlaysLegally(t *testing.T) {
	pile := domain.Classify([]domain.Card{card(3, 1)})
	hand := []domain.Card{card(3, 2), card(4, 0), card(4, 1), card(8, 3)}

	for seed := int64(0); seed < 20; seed++ {
		brain := NewRandomBrain(rand.New(rand.NewSource(seed)))
		mv := brain.ChooseMove(hand, pile)
		if mv.Pass {
			t.Fatalf("seed %d: passed with beats in hand", seed)
		}
		combo := domain.Classify(mv.Cards)
		if combo.Type == domain.ComboInvalid {
			t.Fatalf("seed %d: played invalid set %v", seed, mv.Cards)
		}
		if !domain.Beats(combo, pile) {
			t.Fatalf("seed %d: played non-beating set %v", seed, mv.Cards)
		}
	}
}

func TestRandomBrainOpensEveryDealtHand(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	hands := domain.Deal(rng, domain.MaxSeats)

	for i, hand := range hands {
		mv := NewRandomBrain(rng).ChooseMove(hand, domain.Combination{})
		if mv.Pass {
			t.Fatalf("hand %d: bot passed on an open pile", i)
		}
		if combo := domain.Classify(mv.Cards); combo.Type == domain.ComboInvalid {
			t.Fatalf("hand %d: opener %v is invalid", i, mv.Cards)
		}
	}
}

func TestAgentActsThroughBrain(t *testing.T) {
	agent := NewAgent("bot-0", "AI Player 1", rand.New(rand.NewSource(9)))
	hand := []domain.Card{card(5, 0), card(5, 1)}

	mv := agent.Act(hand, domain.Combination{})

	if mv.Pass {
		t.Fatal("agent passed on an open pile")
	}
	if !domain.ContainsAll(hand, mv.Cards) {
		t.Fatalf("agent played cards outside its hand: %v", mv.Cards)
	}
}
