package ports

import "context"

// WalletUpdate represents a single chip balance change for a user.
type WalletUpdate struct {
	UserID   string
	Amount   int64
	Metadata map[string]interface{}
}

// EconomyPort manages the chip currency.
type EconomyPort interface {
	// GetBalance retrieves the current chip balance for a user.
	GetBalance(ctx context.Context, userID string) (int64, error)

	// UpdateBalances applies multiple wallet changes atomically. Used at
	// the end of a game to settle all stakes in one shot.
	UpdateBalances(ctx context.Context, updates []WalletUpdate) error
}
