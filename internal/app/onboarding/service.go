package onboarding

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"thirteen/internal/ports"
)

const defaultWelcomeBonusChips = 10000

// Result captures non-fatal onboarding outcomes.
type Result struct {
	// WelcomeBonusGranted is false when the bonus was already granted to
	// this user by an earlier session.
	WelcomeBonusGranted bool
	// ProfileUpdateErr is set when the profile update failed but
	// onboarding continued.
	ProfileUpdateErr error
}

// Service handles post-auth onboarding for newly created accounts: a
// friendly display name and a one-time chip grant.
type Service struct {
	accounts ports.AccountPort
	bonuses  ports.WelcomeBonusPort
	bonus    int64
	rng      *rand.Rand
}

// NewService constructs an onboarding service. accounts and bonuses must be
// non-nil; a non-positive bonus takes the default; rng may be nil for a
// time-seeded one.
func NewService(accounts ports.AccountPort, bonuses ports.WelcomeBonusPort, bonus int64, rng *rand.Rand) *Service {
	if bonus <= 0 {
		bonus = defaultWelcomeBonusChips
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts: accounts,
		bonuses:  bonuses,
		bonus:    bonus,
		rng:      rng,
	}
}

// OnboardNewUser initializes the profile and wallet for a new account.
// Profile updates are best-effort and reported through Result; a failed
// bonus grant is an error so the hook can retry on the next login.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (Result, error) {
	if s.accounts == nil || s.bonuses == nil {
		return Result{}, fmt.Errorf("onboarding service not configured")
	}

	result := Result{}
	displayName := s.generateFriendlyName()
	if err := s.accounts.UpdateProfile(ctx, userID, displayName, displayName); err != nil {
		result.ProfileUpdateErr = err
	}

	granted, err := s.bonuses.GrantWelcomeBonusOnce(ctx, userID, s.bonus, map[string]interface{}{
		"reason": "welcome_bonus",
	})
	if err != nil {
		return result, fmt.Errorf("grant welcome bonus: %w", err)
	}
	result.WelcomeBonusGranted = granted

	return result, nil
}

func (s *Service) generateFriendlyName() string {
	adjectives := []string{"Lucky", "Swift", "Golden", "Quiet", "Bold", "Merry", "Sharp", "Sunny", "Crafty", "Steady"}
	nouns := []string{"Lotus", "Dragon", "Sparrow", "Carp", "Tiger", "Bamboo", "Phoenix", "Turtle", "Plum", "Crane"}

	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000

	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
