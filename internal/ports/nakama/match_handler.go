package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"thirteen/internal/app"
	"thirteen/internal/bot"
	"thirteen/internal/config"
	"thirteen/internal/domain"
	"thirteen/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// takeSeatRequest is the OpTakeSeat payload.
type takeSeatRequest struct {
	Seat int `json:"seat"`
}

// playCardsRequest is the OpPlayCards payload.
type playCardsRequest struct {
	Cards []domain.Card `json:"cards"`
}

// gameErrorEvent is sent privately when a request is rejected.
type gameErrorEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// matchLabel is the indexed listing document for a table.
type matchLabel struct {
	Game  string `json:"game"`
	Phase string `json:"phase"`
	Open  int    `json:"open"`
}

func renderLabel(t *domain.Table) (string, error) {
	label := matchLabel{
		Game:  "thirteen",
		Phase: string(t.Status),
		Open:  domain.MaxSeats - t.SeatedCount(),
	}
	b, err := json.Marshal(label)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// matchState is the authoritative per-match state threaded through the
// runtime.Match callbacks. One goroutine owns it, so no locking.
type matchState struct {
	tableID string
	table   *domain.Table
	cfg     config.Config
	svc     *app.Service

	presences map[string]runtime.Presence // userID -> live presence
	bots      map[string]*bot.Agent
	store     ports.TableStore
	economy   ports.EconomyPort
	provision func(ctx context.Context, identity bot.BotIdentity) (string, error)
	rng       *rand.Rand

	// countdown fires once per second while the table counts down; grace
	// resolves a disconnected actor's turn; botThink paces bot moves;
	// autoFill tops up a lone human's lobby with bots.
	countdown tickTimer
	grace     tickTimer
	graceUser string
	botThink  tickTimer
	botUser   string
	autoFill  tickTimer

	// emptyDeadline is the tick at which a table with no connections shuts
	// down, zero while anyone is connected.
	emptyDeadline int64

	lastLabel string
	dirty     bool
}

type matchHandler struct{}

func newMatchHandler() *matchHandler {
	return &matchHandler{}
}

// MatchInit is called when the match is created. An optional "table_id"
// param resumes a stored table under this match.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	cfg, err := config.FromRuntimeEnv(env)
	if err != nil {
		logger.Warn("MatchInit: invalid runtime env, using defaults: %v", err)
		cfg = config.Default()
	}

	if err := bot.LoadIdentities(cfg.BotIdentitiesPath); err != nil {
		logger.Warn("MatchInit: could not load bot identities: %v", err)
	}

	tableID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)

	state := &matchState{
		tableID:   tableID,
		table:     domain.NewTable(),
		cfg:       cfg,
		svc:       app.NewService(nil),
		presences: make(map[string]runtime.Presence),
		bots:      make(map[string]*bot.Agent),
		store:     NewNakamaTableStore(nk),
		economy:   NewNakamaEconomyAdapter(nk),
		provision: func(ctx context.Context, identity bot.BotIdentity) (string, error) {
			return bot.ProvisionBot(ctx, nk, identity)
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if resumeID, ok := params["table_id"].(string); ok && resumeID != "" {
		mh.resumeTable(ctx, state, logger, resumeID)
	}

	label, err := renderLabel(state.table)
	if err != nil {
		logger.Error("MatchInit: could not render label: %v", err)
		return nil, 0, ""
	}
	state.lastLabel = label

	return state, tickRate, label
}

// resumeTable adopts a stored snapshot. Every human is marked disconnected:
// their sessions died with the previous match, and the grace and empty-table
// timers decide whether play resumes or the table winds down.
func (mh *matchHandler) resumeTable(ctx context.Context, s *matchState, logger runtime.Logger, resumeID string) {
	snap, err := s.store.Load(ctx, resumeID)
	if err != nil {
		logger.Warn("MatchInit: could not load table %s: %v", resumeID, err)
		return
	}
	if snap == nil || snap.Table == nil {
		logger.Warn("MatchInit: no stored table %s to resume", resumeID)
		return
	}

	s.table = snap.Table
	for _, p := range s.table.Players {
		if !p.IsBot {
			p.Connected = false
		}
	}
	s.table.Bump()
	s.dirty = true

	if resumeID != s.tableID {
		if err := s.store.Delete(ctx, resumeID); err != nil {
			logger.Warn("MatchInit: could not delete stale table %s: %v", resumeID, err)
		}
	}
	logger.Info("MatchInit: resumed table %s as %s (status %s)", resumeID, s.tableID, s.table.Status)
}

// MatchJoinAttempt admits everyone: joining makes you a spectator, seats
// are claimed explicitly afterwards.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	if _, ok := state.(*matchState); !ok {
		return state, false, "state not found"
	}
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	s, ok := state.(*matchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		s.presences[p.GetUserId()] = p
		events := s.svc.Join(s.table, p.GetUserId(), p.GetUsername())
		mh.dispatchEvents(ctx, s, dispatcher, logger, events)
		s.dirty = true
	}

	s.emptyDeadline = 0
	mh.syncLabel(s, dispatcher, logger)
	return s
}

// MatchLeave covers both voluntary leaves and socket drops: Nakama cannot
// tell them apart. The table keeps a seated participant's place through the
// grace machinery; a later join by the same user is a reconnect.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	s, ok := state.(*matchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		uid := p.GetUserId()
		cur, ok := s.presences[uid]
		if !ok || cur.GetSessionId() != p.GetSessionId() {
			// Stale leave from a session that was already replaced by a
			// reconnect.
			continue
		}
		delete(s.presences, uid)
		events := s.svc.Leave(s.table, uid)
		mh.dispatchEvents(ctx, s, dispatcher, logger, events)
		s.dirty = true
	}

	if len(s.presences) == 0 && s.emptyDeadline == 0 {
		s.emptyDeadline = tick + durationToTicks(s.cfg.EmptyTableTTL)
	}
	mh.syncLabel(s, dispatcher, logger)
	return s
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	s, ok := state.(*matchState)
	if !ok {
		return state
	}

	for _, msg := range messages {
		mh.handleMessage(ctx, s, dispatcher, logger, msg)
	}

	mh.runTimers(ctx, s, dispatcher, logger, tick)
	mh.sweepTimers(s, tick)

	if s.dirty {
		mh.saveSnapshot(ctx, s, logger)
		s.dirty = false
	}
	mh.syncLabel(s, dispatcher, logger)

	if len(s.presences) == 0 {
		if s.emptyDeadline == 0 {
			s.emptyDeadline = tick + durationToTicks(s.cfg.EmptyTableTTL)
		}
		if tick >= s.emptyDeadline {
			logger.Info("MatchLoop: table %s idle with no connections, shutting down", s.tableID)
			if err := s.store.Delete(ctx, s.tableID); err != nil {
				logger.Warn("MatchLoop: could not delete table %s: %v", s.tableID, err)
			}
			return nil
		}
	} else {
		s.emptyDeadline = 0
	}

	return s
}

func (mh *matchHandler) handleMessage(ctx context.Context, s *matchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	uid := msg.GetUserId()

	var (
		events []app.Event
		err    error
	)
	switch msg.GetOpCode() {
	case OpTakeSeat:
		var req takeSeatRequest
		if jerr := json.Unmarshal(msg.GetData(), &req); jerr != nil {
			logger.Warn("handleMessage: bad take_seat payload from %s: %v", uid, jerr)
			return
		}
		events, err = s.svc.TakeSeat(s.table, uid, req.Seat)
	case OpStand:
		events, err = s.svc.Stand(s.table, uid)
	case OpToggleReady:
		events, err = s.svc.ToggleReady(s.table, uid)
	case OpStartGame:
		events, err = s.svc.RequestStart(s.table, uid, s.cfg.CountdownSeconds)
	case OpPlayCards:
		var req playCardsRequest
		if jerr := json.Unmarshal(msg.GetData(), &req); jerr != nil {
			logger.Warn("handleMessage: bad play_cards payload from %s: %v", uid, jerr)
			return
		}
		events, err = s.svc.Play(s.table, uid, req.Cards)
	case OpPassTurn:
		events, err = s.svc.Pass(s.table, uid)
	default:
		logger.Warn("handleMessage: unknown opcode %d from %s", msg.GetOpCode(), uid)
		return
	}

	if err != nil {
		logger.Debug("handleMessage: rejected op %d from %s: %v", msg.GetOpCode(), uid, err)
		if !silentRejection(err) {
			mh.sendError(s, dispatcher, logger, uid, err)
		}
		return
	}

	if len(events) > 0 {
		s.dirty = true
	}
	mh.dispatchEvents(ctx, s, dispatcher, logger, events)
}

// runTimers fires due timers. A deadline only acts when the generation it
// captured is still the table's generation, and every fire path re-validates
// the table state before mutating it, so a deadline that outlived its
// trigger is harmless.
func (mh *matchHandler) runTimers(ctx context.Context, s *matchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, tick int64) {
	if s.countdown.consume(tick, s.table.Generation) {
		if events := s.svc.CountdownTick(s.table); len(events) > 0 {
			s.dirty = true
			mh.dispatchEvents(ctx, s, dispatcher, logger, events)
		}
	}

	if s.grace.consume(tick, s.table.Generation) {
		if events := s.svc.AutoResolve(s.table, s.graceUser); len(events) > 0 {
			s.dirty = true
			mh.dispatchEvents(ctx, s, dispatcher, logger, events)
		}
		s.graceUser = ""
	}

	if s.botThink.consume(tick, s.table.Generation) {
		mh.actBot(ctx, s, dispatcher, logger)
		s.botUser = ""
	}

	if s.autoFill.consume(tick, s.table.Generation) {
		mh.autoFillBots(ctx, s, dispatcher, logger)
	}
}

// sweepTimers arms and disarms timers to match the current table state. A
// timer keeps its running deadline while its target is unchanged; one whose
// deadline was discarded as stale is re-armed here with a fresh delay under
// the current generation.
func (mh *matchHandler) sweepTimers(s *matchState, tick int64) {
	gen := s.table.Generation

	if s.table.Status == domain.StatusCountdown {
		if !s.countdown.armed {
			s.countdown.arm(tick+tickRate, gen)
		}
	} else {
		s.countdown.disarm()
	}

	graceTarget := ""
	botTarget := ""
	if s.table.Status == domain.StatusActive {
		if p := s.table.Player(s.table.CurrentActorID()); p != nil {
			switch {
			case p.IsBot:
				botTarget = p.UserID
			case !p.Connected:
				graceTarget = p.UserID
			}
		}
	}

	if graceTarget == "" {
		s.grace.disarm()
		s.graceUser = ""
	} else if !s.grace.armed || s.graceUser != graceTarget {
		s.graceUser = graceTarget
		s.grace.arm(tick+durationToTicks(s.cfg.DisconnectGrace), gen)
	}

	if botTarget == "" || !s.cfg.BotsEnabled {
		s.botThink.disarm()
		s.botUser = ""
	} else if !s.botThink.armed || s.botUser != botTarget {
		s.botUser = botTarget
		s.botThink.arm(tick+mh.thinkTicks(s), gen)
	}

	wantAutoFill := s.cfg.BotsEnabled &&
		(s.table.Status == domain.StatusLobby || s.table.Status == domain.StatusFinished) &&
		s.table.SeatedHumanCount() == 1 &&
		s.table.SeatedCount() < domain.MaxSeats
	if !wantAutoFill {
		s.autoFill.disarm()
	} else if !s.autoFill.armed {
		s.autoFill.arm(tick+durationToTicks(s.cfg.BotAutoFillDelay), gen)
	}
}

// thinkTicks picks a uniformly random bot think delay in ticks.
func (mh *matchHandler) thinkTicks(s *matchState) int64 {
	lo := durationToTicks(s.cfg.BotThinkMin)
	hi := durationToTicks(s.cfg.BotThinkMax)
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Int63n(hi-lo+1)
}

// actBot plays the current bot actor's move. The table may have moved on
// since the think timer was armed, so everything is rechecked here.
func (mh *matchHandler) actBot(ctx context.Context, s *matchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if s.table.Status != domain.StatusActive {
		return
	}
	uid := s.table.CurrentActorID()
	if uid == "" || uid != s.botUser {
		return
	}
	p := s.table.Player(uid)
	if p == nil || !p.IsBot {
		return
	}

	agent, ok := s.bots[uid]
	if !ok {
		agent = bot.NewAgent(uid, p.DisplayName, s.rng)
		s.bots[uid] = agent
	}

	move := agent.Act(p.Hand, s.table.Pile)

	var (
		events []app.Event
		err    error
	)
	if move.Pass {
		events, err = s.svc.Pass(s.table, uid)
	} else {
		events, err = s.svc.Play(s.table, uid, move.Cards)
	}
	if err != nil {
		logger.Error("actBot: bot %s move rejected: %v", uid, err)
		return
	}

	s.dirty = true
	mh.dispatchEvents(ctx, s, dispatcher, logger, events)
}

// autoFillBots seats a provisioned bot on every empty seat. A later human
// reclaims a bot's seat through TakeSeat.
func (mh *matchHandler) autoFillBots(ctx context.Context, s *matchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if !s.cfg.BotsEnabled || s.table.SeatedHumanCount() != 1 {
		return
	}
	if s.table.Status != domain.StatusLobby && s.table.Status != domain.StatusFinished {
		return
	}

	for s.table.SeatedCount() < domain.MaxSeats {
		seat := s.table.FirstFreeSeat()
		if seat == domain.NoSeat {
			break
		}

		identity := bot.IdentityAt(seat)
		userID := identity.UserID
		if s.provision != nil {
			provisioned, err := s.provision(ctx, identity)
			if err != nil {
				logger.Warn("autoFillBots: could not provision %s: %v", identity.Username, err)
			} else if provisioned != "" {
				userID = provisioned
			}
		}

		events, err := s.svc.SeatBot(s.table, userID, identity.DisplayName, seat)
		if err != nil {
			logger.Error("autoFillBots: could not seat bot %s: %v", userID, err)
			break
		}
		s.bots[userID] = bot.NewAgent(userID, identity.DisplayName, s.rng)
		s.dirty = true
		mh.dispatchEvents(ctx, s, dispatcher, logger, events)
		logger.Info("autoFillBots: seated bot %s (%s) at seat %d", identity.DisplayName, userID, seat)
	}
}

func (mh *matchHandler) dispatchEvents(ctx context.Context, s *matchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	for _, ev := range events {
		mh.dispatchEvent(ctx, s, dispatcher, logger, ev)
	}
}

func (mh *matchHandler) dispatchEvent(ctx context.Context, s *matchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	var opCode int64
	switch ev.Kind {
	case app.EventRoomState:
		opCode = OpRoomState
	case app.EventCountdown:
		opCode = OpCountdownTick
	case app.EventGameStarted:
		opCode = OpGameStarted
	case app.EventHandDealt:
		opCode = OpHandDealt
	case app.EventGameUpdate:
		opCode = OpGameUpdate
	case app.EventGameEnded:
		opCode = OpGameEnded
		if p, ok := ev.Payload.(app.GameEndedPayload); ok {
			mh.settleGame(ctx, s, logger, p)
		}
	default:
		logger.Warn("dispatchEvent: unhandled event kind %q", ev.Kind)
		return
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		logger.Error("dispatchEvent: marshal %s: %v", ev.Kind, err)
		return
	}

	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, uid := range ev.Recipients {
			if p, ok := s.presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}
		// A targeted payload carries a private hand. If none of the
		// intended recipients are connected it must not go to the room.
		if len(recipients) == 0 {
			return
		}
	}

	dispatcher.BroadcastMessage(opCode, payload, recipients, nil, true)
}

// settleGame moves the stake: the winner collects the base stake from every
// loser. Bots hold no wallets, so their debits are dropped and a winning
// bot collects nothing.
func (mh *matchHandler) settleGame(ctx context.Context, s *matchState, logger runtime.Logger, p app.GameEndedPayload) {
	if s.economy == nil || s.cfg.BaseStake <= 0 || p.WinnerID == "" {
		return
	}

	metadata := map[string]interface{}{
		"table_id": s.tableID,
		"reason":   "game_settlement",
	}

	var updates []ports.WalletUpdate
	var winnerCredit int64
	for uid := range p.CardsLeft {
		if uid == p.WinnerID {
			continue
		}
		winnerCredit += s.cfg.BaseStake
		if bot.IsBot(uid) {
			continue
		}
		updates = append(updates, ports.WalletUpdate{
			UserID:   uid,
			Amount:   -s.cfg.BaseStake,
			Metadata: metadata,
		})
	}
	if winnerCredit > 0 && !bot.IsBot(p.WinnerID) {
		updates = append(updates, ports.WalletUpdate{
			UserID:   p.WinnerID,
			Amount:   winnerCredit,
			Metadata: metadata,
		})
	}
	if len(updates) == 0 {
		return
	}

	if err := s.economy.UpdateBalances(ctx, updates); err != nil {
		logger.Error("settleGame: wallet update failed for table %s: %v", s.tableID, err)
	}
}

// silentRejection reports move-level rejections that get no reply: the
// sender's own client already knows the move was not applied, and a reply
// would let a misbehaving client probe the table. Precondition failures on
// lobby requests do get an explicit error back.
func silentRejection(err error) bool {
	switch {
	case errors.Is(err, app.ErrInvalidCombination),
		errors.Is(err, app.ErrCannotBeat),
		errors.Is(err, app.ErrNotYourTurn),
		errors.Is(err, app.ErrCardsNotHeld),
		errors.Is(err, app.ErrMustLead):
		return true
	}
	return false
}

// sendError reports a rejected request to its sender only.
func (mh *matchHandler) sendError(s *matchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, cause error) {
	presence, ok := s.presences[userID]
	if !ok {
		return
	}

	payload, err := json.Marshal(gameErrorEvent{Code: 400, Message: cause.Error()})
	if err != nil {
		logger.Error("sendError: marshal: %v", err)
		return
	}
	dispatcher.BroadcastMessage(OpGameError, payload, []runtime.Presence{presence}, nil, true)
}

func (mh *matchHandler) saveSnapshot(ctx context.Context, s *matchState, logger runtime.Logger) {
	if s.store == nil {
		return
	}
	snap := &ports.Snapshot{
		TableID:   s.tableID,
		Table:     s.table,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.Save(ctx, snap); err != nil {
		logger.Warn("saveSnapshot: could not persist table %s: %v", s.tableID, err)
	}
}

func (mh *matchHandler) syncLabel(s *matchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := renderLabel(s.table)
	if err != nil {
		logger.Error("syncLabel: could not render label: %v", err)
		return
	}
	if label == s.lastLabel {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("syncLabel: could not update label: %v", err)
		return
	}
	s.lastLabel = label
}

// MatchTerminate persists a final snapshot so the table can be resumed.
func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	s, ok := state.(*matchState)
	if !ok {
		return state
	}
	mh.saveSnapshot(ctx, s, logger)
	logger.Info("MatchTerminate: table %s terminated", s.tableID)
	return s
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
