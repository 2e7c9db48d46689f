package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"thirteen/internal/app"
	"thirteen/internal/config"
	"thirteen/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// QuickMatchResponse is the payload returned to clients asking for a table.
type QuickMatchResponse struct {
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
}

// ListTablesResponse carries stored table summaries.
type ListTablesResponse struct {
	Tables []ports.Summary `json:"tables"`
}

// VoiceTokenRequest asks for a Vivox token. Action is "login" or "join";
// TableID names the channel for joins.
type VoiceTokenRequest struct {
	Action  string `json:"action"`
	TableID string `json:"table_id"`
}

// VoiceTokenResponse carries the signed token.
type VoiceTokenResponse struct {
	Token string `json:"token"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcQuickMatch, rpcQuickMatch); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcListTables, rpcListTables); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcVoiceToken, rpcVoiceToken)
}

// rpcQuickMatch finds an open lobby for this game or creates a fresh match.
// Seat and owner assignment stay server-authoritative inside the match.
func rpcQuickMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	query := "+label.game:thirteen +label.phase:lobby +label.open:>=1"
	limit := 10
	authoritative := true

	matches, err := nk.MatchList(ctx, limit, authoritative, "", nil, nil, query)
	if err != nil {
		logger.Error("rpcQuickMatch [user:%s]: match list failed: %v", userID, err)
		return "", runtime.NewError("could not list matches", 13)
	}

	if len(matches) > 0 {
		b, _ := json.Marshal(QuickMatchResponse{MatchID: matches[0].MatchId, IsNew: false})
		return string(b), nil
	}

	matchID, err := nk.MatchCreate(ctx, MatchNameThirteen, map[string]interface{}{})
	if err != nil {
		logger.Error("rpcQuickMatch [user:%s]: match create failed: %v", userID, err)
		return "", runtime.NewError("could not create match", 13)
	}

	b, _ := json.Marshal(QuickMatchResponse{MatchID: matchID, IsNew: true})
	return string(b), nil
}

// rpcListTables returns stored table summaries. Payload is optional:
// {"limit": n}.
func rpcListTables(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req struct {
		Limit int `json:"limit"`
	}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid payload", 3)
		}
	}

	store := NewNakamaTableStore(nk)
	summaries, err := store.ListActive(ctx, req.Limit)
	if err != nil {
		logger.Error("rpcListTables: %v", err)
		return "", runtime.NewError("could not list tables", 13)
	}

	b, err := json.Marshal(ListTablesResponse{Tables: summaries})
	if err != nil {
		return "", runtime.NewError("could not encode response", 13)
	}
	return string(b), nil
}

// rpcVoiceToken mints a Vivox access token for the calling user.
func rpcVoiceToken(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("authentication required", 16)
	}

	var req VoiceTokenRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", 3)
	}

	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	cfg, err := config.FromRuntimeEnv(env)
	if err != nil {
		logger.Warn("rpcVoiceToken: invalid runtime env, using defaults: %v", err)
		cfg = config.Default()
	}

	voice := app.NewVoiceService(cfg.VoiceSecret, cfg.VoiceIssuer, cfg.VoiceDomain, cfg.VoiceTokenTTL)

	var token string
	switch req.Action {
	case app.VoiceActionLogin, "":
		token, err = voice.LoginToken(userID)
	case app.VoiceActionJoin:
		token, err = voice.JoinToken(userID, req.TableID)
	default:
		return "", runtime.NewError("unknown action", 3)
	}
	if err != nil {
		logger.Warn("rpcVoiceToken [user:%s]: %v", userID, err)
		return "", runtime.NewError(err.Error(), 3)
	}

	b, _ := json.Marshal(VoiceTokenResponse{Token: token})
	return string(b), nil
}
