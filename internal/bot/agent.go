package bot

import (
	"math/rand"

	"thirteen/internal/domain"
)

// Agent is one seated bot: a stable identity plus the brain that decides
// its moves. The match loop owns the think-time pacing; the agent itself is
// stateless between turns.
type Agent struct {
	UserID      string
	DisplayName string
	Brain       Brain
}

// NewAgent creates an agent with the default random brain.
func NewAgent(userID, displayName string, rng *rand.Rand) *Agent {
	return &Agent{
		UserID:      userID,
		DisplayName: displayName,
		Brain:       NewRandomBrain(rng),
	}
}

// Act decides the agent's move for the current table state.
func (a *Agent) Act(hand []domain.Card, pile domain.Combination) Move {
	return a.Brain.ChooseMove(hand, pile)
}
