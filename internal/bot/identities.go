package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"
)

// fallbackPrefix marks synthetic user ids minted when the identity pool is
// empty or exhausted.
const fallbackPrefix = "bot-"

// BotIdentity is one provisionable bot account. Identities ship in a JSON
// file so bots present as regular users: a stable device id to authenticate
// with, plus the profile to show at the table.
type BotIdentity struct {
	DeviceID    string `json:"device_id"`
	UserID      string `json:"user_id,omitempty"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarIndex int    `json:"avatar_index,omitempty"`
}

var (
	pool     []BotIdentity
	registry = make(map[string]BotIdentity)
	mu       sync.Mutex
	loadOnce sync.Once
	loadErr  error
)

// LoadIdentities reads the identity pool once per process. On error the pool
// stays empty and IdentityAt falls back to synthetic identities.
func LoadIdentities(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("read bot identities: %w", err)
			return
		}
		pool, loadErr = parseIdentities(data)
	})
	return loadErr
}

func parseIdentities(data []byte) ([]BotIdentity, error) {
	var identities []BotIdentity
	if err := json.Unmarshal(data, &identities); err != nil {
		return nil, fmt.Errorf("unmarshal bot identities: %w", err)
	}
	return identities, nil
}

// IdentityAt returns the identity for the index-th bot at a table. Indexes
// beyond the pool mint a synthetic identity that needs no account.
func IdentityAt(index int) BotIdentity {
	if index >= 0 && index < len(pool) {
		return pool[index]
	}
	return BotIdentity{
		UserID:      fmt.Sprintf("%s%d", fallbackPrefix, index),
		Username:    fmt.Sprintf("%s%d", fallbackPrefix, index),
		DisplayName: fmt.Sprintf("AI Player %d", index+1),
	}
}

// ProvisionBot ensures a Nakama account exists for the identity and returns
// its user id. Synthetic identities are registered as-is; pool identities
// authenticate like a device so profile lookups treat them as normal users.
func ProvisionBot(ctx context.Context, nk runtime.NakamaModule, identity BotIdentity) (string, error) {
	if identity.DeviceID == "" {
		register(identity.UserID, identity)
		return identity.UserID, nil
	}

	userID, username, _, err := nk.AuthenticateDevice(ctx, identity.DeviceID, identity.Username, true)
	if err != nil {
		return "", fmt.Errorf("authenticate bot %s: %w", identity.Username, err)
	}
	identity.UserID = userID
	identity.Username = username

	metadata := map[string]interface{}{
		"is_bot":       true,
		"avatar_index": identity.AvatarIndex,
	}
	if err := nk.AccountUpdateId(ctx, userID, "", metadata, identity.DisplayName, "", "", "", ""); err != nil {
		return "", fmt.Errorf("update bot account %s: %w", userID, err)
	}

	register(userID, identity)
	return userID, nil
}

func register(userID string, identity BotIdentity) {
	if userID == "" {
		return
	}
	mu.Lock()
	registry[userID] = identity
	mu.Unlock()
}

// IsBot reports whether the user id belongs to a provisioned or synthetic
// bot identity.
func IsBot(userID string) bool {
	if strings.HasPrefix(userID, fallbackPrefix) {
		return true
	}
	mu.Lock()
	_, ok := registry[userID]
	mu.Unlock()
	return ok
}
