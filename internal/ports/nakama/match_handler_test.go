package nakama

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"testing"
	"time"

	"thirteen/internal/app"
	"thirteen/internal/bot"
	"thirteen/internal/config"
	"thirteen/internal/domain"
	"thirteen/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy
// the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type mockPresence struct {
	userID    string
	sessionID string
	username  string
}

func (p mockPresence) GetUserId() string                  { return p.userID }
func (p mockPresence) GetSessionId() string               { return p.sessionID }
func (p mockPresence) GetNodeId() string                  { return "node-1" }
func (p mockPresence) GetHidden() bool                    { return false }
func (p mockPresence) GetPersistence() bool               { return true }
func (p mockPresence) GetUsername() string                { return p.username }
func (p mockPresence) GetStatus() string                  { return "" }
func (p mockPresence) GetReason() runtime.PresenceReason  { return runtime.PresenceReasonUnknown }

type mockMatchData struct {
	mockPresence
	opCode int64
	data   []byte
}

func (m mockMatchData) GetOpCode() int64      { return m.opCode }
func (m mockMatchData) GetData() []byte       { return m.data }
func (m mockMatchData) GetReliable() bool     { return true }
func (m mockMatchData) GetReceiveTime() int64 { return 0 }

var (
	_ runtime.Presence  = mockPresence{}
	_ runtime.MatchData = mockMatchData{}
)

func message(p mockPresence, opCode int64, payload string) runtime.MatchData {
	return mockMatchData{mockPresence: p, opCode: opCode, data: []byte(payload)}
}

type sentMessage struct {
	opCode     int64
	data       []byte
	recipients []runtime.Presence
}

// mockDispatcher records dispatcher calls for assertions.
type mockDispatcher struct {
	sent         []sentMessage
	labelUpdates []string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.sent = append(md.sent, sentMessage{
		opCode:     opCode,
		data:       append([]byte(nil), data...),
		recipients: presences,
	})
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates = append(md.labelUpdates, label)
	return nil
}

func (md *mockDispatcher) lastOf(opCode int64) *sentMessage {
	for i := len(md.sent) - 1; i >= 0; i-- {
		if md.sent[i].opCode == opCode {
			return &md.sent[i]
		}
	}
	return nil
}

func (md *mockDispatcher) countOf(opCode int64) int {
	n := 0
	for _, m := range md.sent {
		if m.opCode == opCode {
			n++
		}
	}
	return n
}

// memoryStore implements ports.TableStore in memory.
type memoryStore struct {
	snapshots map[string]*ports.Snapshot
	deletes   int
}

func (m *memoryStore) Load(_ context.Context, tableID string) (*ports.Snapshot, error) {
	if m.snapshots == nil {
		return nil, nil
	}
	return m.snapshots[tableID], nil
}

func (m *memoryStore) Save(_ context.Context, snap *ports.Snapshot) error {
	if m.snapshots == nil {
		m.snapshots = make(map[string]*ports.Snapshot)
	}
	m.snapshots[snap.TableID] = snap
	return nil
}

func (m *memoryStore) ListActive(_ context.Context, limit int) ([]ports.Summary, error) {
	return nil, nil
}

func (m *memoryStore) Delete(_ context.Context, tableID string) error {
	m.deletes++
	delete(m.snapshots, tableID)
	return nil
}

type mockEconomy struct {
	updates []ports.WalletUpdate
}

func (me *mockEconomy) GetBalance(context.Context, string) (int64, error) {
	return 0, nil
}

func (me *mockEconomy) UpdateBalances(_ context.Context, updates []ports.WalletUpdate) error {
	me.updates = append(me.updates, updates...)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		CountdownSeconds: 1,
		DisconnectGrace:  200 * time.Millisecond,
		EmptyTableTTL:    time.Second,
		BotsEnabled:      true,
		BotThinkMin:      100 * time.Millisecond,
		BotThinkMax:      100 * time.Millisecond,
		BotAutoFillDelay: 300 * time.Millisecond,
		BaseStake:        100,
	}
}

func newTestState(store *memoryStore, economy *mockEconomy) *matchState {
	return &matchState{
		tableID:   "table-1",
		table:     domain.NewTable(),
		cfg:       testConfig(),
		svc:       app.NewService(rand.New(rand.NewSource(1))),
		presences: make(map[string]runtime.Presence),
		bots:      make(map[string]*bot.Agent),
		store:     store,
		economy:   economy,
		provision: func(_ context.Context, identity bot.BotIdentity) (string, error) {
			return identity.UserID, nil
		},
		rng: rand.New(rand.NewSource(1)),
	}
}

func card(rank, suit int32) domain.Card {
	return domain.Card{Rank: rank, Suit: suit}
}

func seatParticipant(t *domain.Table, userID string, seat int, hand []domain.Card, isBot bool) {
	t.Players[userID] = &domain.Participant{
		UserID:      userID,
		DisplayName: userID,
		Seat:        seat,
		Ready:       true,
		Connected:   true,
		IsBot:       isBot,
		Hand:        hand,
	}
	t.Seats[seat] = userID
}

func beginPlay(t *domain.Table, currentSeat int) {
	t.Status = domain.StatusActive
	t.Turn = domain.TurnState{CurrentSeat: currentSeat, Passed: map[string]bool{}, Round: 1}
}

// loopTicks drives MatchLoop with no messages over [from, to].
func loopTicks(t *testing.T, mh *matchHandler, s *matchState, dispatcher *mockDispatcher, from, to int64) interface{} {
	t.Helper()
	var ret interface{} = s
	for tick := from; tick <= to; tick++ {
		ret = mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, dispatcher, tick, s, nil)
		if ret == nil {
			return nil
		}
	}
	return ret
}

func TestMatchInitDefaults(t *testing.T) {
	mh := newMatchHandler()
	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_ENV, map[string]string{})

	state, rate, label := mh.MatchInit(ctx, noopLogger{}, nil, nil, nil)
	if rate != tickRate {
		t.Fatalf("tick rate = %d, want %d", rate, tickRate)
	}
	if _, ok := state.(*matchState); !ok {
		t.Fatalf("state type = %T, want *matchState", state)
	}
	want := `{"game":"thirteen","phase":"lobby","open":4}`
	if label != want {
		t.Fatalf("label = %s, want %s", label, want)
	}
}

func TestJoinSeatReadyStartDeal(t *testing.T) {
	mh := newMatchHandler()
	store := &memoryStore{}
	s := newTestState(store, &mockEconomy{})
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	alice := mockPresence{userID: "alice", sessionID: "sess-a", username: "Alice"}
	bob := mockPresence{userID: "bob", sessionID: "sess-b", username: "Bob"}

	mh.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 1, s, []runtime.Presence{alice, bob})
	if len(s.presences) != 2 {
		t.Fatalf("presences = %d, want 2", len(s.presences))
	}
	if dispatcher.countOf(OpRoomState) == 0 {
		t.Fatal("expected a room state broadcast on join")
	}

	msgs := []runtime.MatchData{
		message(alice, OpTakeSeat, `{"seat":0}`),
		message(bob, OpTakeSeat, `{"seat":1}`),
		message(bob, OpToggleReady, ""),
		message(alice, OpStartGame, ""),
	}
	mh.MatchLoop(ctx, noopLogger{}, nil, nil, dispatcher, 2, s, msgs)

	if s.table.Status != domain.StatusCountdown {
		t.Fatalf("status = %s, want countdown", s.table.Status)
	}
	if got := dispatcher.countOf(OpCountdownTick); got != 1 {
		t.Fatalf("countdown events = %d, want 1", got)
	}
	if !s.countdown.armed {
		t.Fatal("expected countdown timer armed")
	}

	// One configured second later the hands go out.
	loopTicks(t, mh, s, dispatcher, 3, 12)

	if s.table.Status != domain.StatusActive {
		t.Fatalf("status = %s, want active", s.table.Status)
	}
	if got := dispatcher.countOf(OpGameStarted); got != 1 {
		t.Fatalf("game started events = %d, want 1", got)
	}
	if got := dispatcher.countOf(OpHandDealt); got != 2 {
		t.Fatalf("hand dealt events = %d, want 2", got)
	}
	for _, uid := range []string{"alice", "bob"} {
		if got := len(s.table.Player(uid).Hand); got != domain.HandSize {
			t.Fatalf("%s hand = %d cards, want %d", uid, got, domain.HandSize)
		}
	}
	dealt := dispatcher.lastOf(OpHandDealt)
	if len(dealt.recipients) != 1 {
		t.Fatalf("hand dealt recipients = %d, want 1", len(dealt.recipients))
	}

	snap := store.snapshots["table-1"]
	if snap == nil || snap.Table.Status != domain.StatusActive {
		t.Fatalf("expected an active snapshot in the store, got %+v", snap)
	}
	last := dispatcher.labelUpdates[len(dispatcher.labelUpdates)-1]
	if !strings.Contains(last, `"phase":"active"`) || !strings.Contains(last, `"open":2`) {
		t.Fatalf("label = %s, want active phase with 2 open seats", last)
	}
}

func TestRejectedRequestGetsError(t *testing.T) {
	mh := newMatchHandler()
	s := newTestState(&memoryStore{}, &mockEconomy{})
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	bob := mockPresence{userID: "bob", sessionID: "sess-b", username: "Bob"}
	mh.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 1, s, []runtime.Presence{bob})

	// Playing from the lobby is rejected and reported privately.
	msgs := []runtime.MatchData{
		message(bob, OpPlayCards, `{"cards":[{"rank":0,"suit":0}]}`),
	}
	mh.MatchLoop(ctx, noopLogger{}, nil, nil, dispatcher, 2, s, msgs)

	errMsg := dispatcher.lastOf(OpGameError)
	if errMsg == nil {
		t.Fatal("expected a game error message")
	}
	if len(errMsg.recipients) != 1 || errMsg.recipients[0].GetUserId() != "bob" {
		t.Fatalf("error recipients = %+v, want bob only", errMsg.recipients)
	}
	var payload gameErrorEvent
	if err := json.Unmarshal(errMsg.data, &payload); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if payload.Message == "" {
		t.Fatal("expected an error message in the payload")
	}

	// Unknown op codes are dropped without a reply.
	before := dispatcher.countOf(OpGameError)
	mh.MatchLoop(ctx, noopLogger{}, nil, nil, dispatcher, 3, s, []runtime.MatchData{
		message(bob, 99, ""),
	})
	if dispatcher.countOf(OpGameError) != before {
		t.Fatal("unknown opcode should not produce a game error")
	}
}

func TestIllegalMovesRejectedSilently(t *testing.T) {
	mh := newMatchHandler()
	s := newTestState(&memoryStore{}, &mockEconomy{})
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	seatParticipant(s.table, "alice", 0, []domain.Card{card(0, 0), card(5, 2)}, false)
	seatParticipant(s.table, "bob", 1, []domain.Card{card(7, 0)}, false)
	s.table.OwnerID = "alice"
	beginPlay(s.table, 0)
	alice := mockPresence{userID: "alice", sessionID: "sess-a", username: "Alice"}
	bob := mockPresence{userID: "bob", sessionID: "sess-b", username: "Bob"}
	s.presences["alice"] = alice
	s.presences["bob"] = bob

	msgs := []runtime.MatchData{
		// Out of turn, unheld card, unclassifiable set: all dropped without
		// a reply or a state change.
		message(bob, OpPlayCards, `{"cards":[{"rank":7,"suit":0}]}`),
		message(alice, OpPlayCards, `{"cards":[{"rank":11,"suit":3}]}`),
		message(alice, OpPlayCards, `{"cards":[{"rank":0,"suit":0},{"rank":5,"suit":2}]}`),
	}
	mh.MatchLoop(ctx, noopLogger{}, nil, nil, dispatcher, 1, s, msgs)

	if got := dispatcher.countOf(OpGameError); got != 0 {
		t.Fatalf("game errors = %d, want 0 for illegal moves", got)
	}
	if got := len(s.table.Player("alice").Hand); got != 2 {
		t.Fatalf("alice hand = %d cards, want 2 untouched", got)
	}
	if s.table.Turn.CurrentSeat != 0 {
		t.Fatalf("current seat = %d, want unchanged 0", s.table.Turn.CurrentSeat)
	}
}

func TestStaleSessionLeaveIgnored(t *testing.T) {
	mh := newMatchHandler()
	s := newTestState(&memoryStore{}, &mockEconomy{})
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	first := mockPresence{userID: "alice", sessionID: "sess-1", username: "Alice"}
	second := mockPresence{userID: "alice", sessionID: "sess-2", username: "Alice"}

	mh.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 1, s, []runtime.Presence{first})
	mh.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 2, s, []runtime.Presence{second})

	// The old session's leave arrives after the reconnect and must not
	// count as a disconnect.
	mh.MatchLeave(ctx, noopLogger{}, nil, nil, dispatcher, 3, s, []runtime.Presence{first})
	if _, ok := s.presences["alice"]; !ok {
		t.Fatal("stale leave dropped the live presence")
	}
	if s.table.Player("alice") == nil {
		t.Fatal("stale leave removed the participant")
	}

	mh.MatchLeave(ctx, noopLogger{}, nil, nil, dispatcher, 4, s, []runtime.Presence{second})
	if _, ok := s.presences["alice"]; ok {
		t.Fatal("live leave should remove the presence")
	}
}

func TestGraceSkipsDisconnectedLeader(t *testing.T) {
	mh := newMatchHandler()
	s := newTestState(&memoryStore{}, &mockEconomy{})
	dispatcher := &mockDispatcher{}

	seatParticipant(s.table, "alice", 0, []domain.Card{card(0, 0), card(1, 0)}, false)
	seatParticipant(s.table, "bob", 1, []domain.Card{card(2, 0), card(3, 0)}, false)
	s.table.Players["alice"].Connected = false
	s.table.OwnerID = "bob"
	beginPlay(s.table, 0)
	s.presences["bob"] = mockPresence{userID: "bob", sessionID: "sess-b", username: "Bob"}

	// Sweep arms the grace timer, two ticks later it resolves the turn.
	loopTicks(t, mh, s, dispatcher, 1, 3)

	if got := s.table.Turn.CurrentSeat; got != 1 {
		t.Fatalf("current seat = %d, want 1", got)
	}
	if len(s.table.Turn.Passed) != 0 {
		t.Fatalf("passed set = %v, want empty for a skipped leader", s.table.Turn.Passed)
	}
	update := dispatcher.lastOf(OpGameUpdate)
	if update == nil {
		t.Fatal("expected a game update")
	}
	var payload app.GameUpdatePayload
	if err := json.Unmarshal(update.data, &payload); err != nil {
		t.Fatalf("unmarshal game update: %v", err)
	}
	if payload.Action != "skip" {
		t.Fatalf("action = %q, want skip", payload.Action)
	}
}

func TestGracePassResolvesRound(t *testing.T) {
	mh := newMatchHandler()
	s := newTestState(&memoryStore{}, &mockEconomy{})
	dispatcher := &mockDispatcher{}

	seatParticipant(s.table, "alice", 0, []domain.Card{card(0, 0), card(1, 0)}, false)
	seatParticipant(s.table, "bob", 1, []domain.Card{card(4, 0)}, false)
	s.table.Players["alice"].Connected = false
	s.table.OwnerID = "bob"
	beginPlay(s.table, 0)
	s.table.Pile = domain.Classify([]domain.Card{card(2, 3)})
	s.table.Turn.LastPlayerID = "bob"
	s.presences["bob"] = mockPresence{userID: "bob", sessionID: "sess-b", username: "Bob"}

	loopTicks(t, mh, s, dispatcher, 1, 3)

	// Alice's synthesized pass left bob the only non-passed holder, so the
	// round resets to him.
	if got := s.table.Turn.Round; got != 2 {
		t.Fatalf("round = %d, want 2", got)
	}
	if got := s.table.Turn.CurrentSeat; got != 1 {
		t.Fatalf("current seat = %d, want 1", got)
	}
	if !s.table.Pile.Empty() {
		t.Fatal("expected a cleared pile after the round reset")
	}
	var payload app.GameUpdatePayload
	if err := json.Unmarshal(dispatcher.lastOf(OpGameUpdate).data, &payload); err != nil {
		t.Fatalf("unmarshal game update: %v", err)
	}
	if payload.Action != "pass" || !payload.NewRound {
		t.Fatalf("payload = %+v, want pass with new_round", payload)
	}
}

func TestBotPlaysAndGameSettles(t *testing.T) {
	mh := newMatchHandler()
	economy := &mockEconomy{}
	s := newTestState(&memoryStore{}, economy)
	dispatcher := &mockDispatcher{}

	seatParticipant(s.table, "alice", 0, []domain.Card{card(0, 0), card(0, 1)}, false)
	seatParticipant(s.table, "bot-7", 1, []domain.Card{card(1, 0)}, true)
	s.table.OwnerID = "alice"
	beginPlay(s.table, 1)
	s.presences["alice"] = mockPresence{userID: "alice", sessionID: "sess-a", username: "Alice"}

	// Tick 1 arms the think timer, tick 2 plays the bot's last card.
	loopTicks(t, mh, s, dispatcher, 1, 2)

	if s.table.Status != domain.StatusFinished {
		t.Fatalf("status = %s, want finished", s.table.Status)
	}
	if s.table.WinnerID != "bot-7" {
		t.Fatalf("winner = %q, want bot-7", s.table.WinnerID)
	}
	if dispatcher.countOf(OpGameEnded) != 1 {
		t.Fatal("expected one game ended broadcast")
	}

	// The losing human pays the stake; the winning bot holds no wallet.
	if len(economy.updates) != 1 {
		t.Fatalf("wallet updates = %+v, want one", economy.updates)
	}
	if got := economy.updates[0]; got.UserID != "alice" || got.Amount != -100 {
		t.Fatalf("wallet update = %+v, want alice -100", got)
	}
}

func TestAutoFillSeatsBots(t *testing.T) {
	mh := newMatchHandler()
	s := newTestState(&memoryStore{}, &mockEconomy{})
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	alice := mockPresence{userID: "alice", sessionID: "sess-a", username: "Alice"}
	mh.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 1, s, []runtime.Presence{alice})
	mh.MatchLoop(ctx, noopLogger{}, nil, nil, dispatcher, 2, s, []runtime.MatchData{
		message(alice, OpTakeSeat, `{"seat":0}`),
	})

	// The lone human waits out the auto-fill delay, then bots take every
	// remaining seat.
	loopTicks(t, mh, s, dispatcher, 3, 5)

	if got := s.table.SeatedCount(); got != domain.MaxSeats {
		t.Fatalf("seated = %d, want %d", got, domain.MaxSeats)
	}
	if got := s.table.SeatedHumanCount(); got != 1 {
		t.Fatalf("seated humans = %d, want 1", got)
	}
	if len(s.bots) != domain.MaxSeats-1 {
		t.Fatalf("bot agents = %d, want %d", len(s.bots), domain.MaxSeats-1)
	}

	// Full enough: the sweep must not keep re-arming.
	loopTicks(t, mh, s, dispatcher, 6, 6)
	if s.autoFill.armed {
		t.Fatal("auto-fill should stay disarmed once seats are filled")
	}

	// Bots are always ready, so the owner can start immediately.
	mh.MatchLoop(ctx, noopLogger{}, nil, nil, dispatcher, 7, s, []runtime.MatchData{
		message(alice, OpStartGame, ""),
	})
	if s.table.Status != domain.StatusCountdown {
		t.Fatalf("status = %s, want countdown", s.table.Status)
	}

	loopTicks(t, mh, s, dispatcher, 8, 17)
	if s.table.Status != domain.StatusActive {
		t.Fatalf("status = %s, want active", s.table.Status)
	}
	for _, uid := range s.table.Seats {
		if uid == "" {
			continue
		}
		if got := len(s.table.Player(uid).Hand); got != domain.HandSize {
			t.Fatalf("%s hand = %d cards, want %d", uid, got, domain.HandSize)
		}
	}
}

func TestEmptyTableShutsDownAfterTTL(t *testing.T) {
	mh := newMatchHandler()
	store := &memoryStore{}
	s := newTestState(store, &mockEconomy{})
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	alice := mockPresence{userID: "alice", sessionID: "sess-a", username: "Alice"}
	mh.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 1, s, []runtime.Presence{alice})
	mh.MatchLeave(ctx, noopLogger{}, nil, nil, dispatcher, 2, s, []runtime.Presence{alice})

	// The table stays alive for the TTL to allow reconnects.
	ret := loopTicks(t, mh, s, dispatcher, 3, 11)
	if ret == nil {
		t.Fatal("table shut down before the TTL elapsed")
	}

	ret = mh.MatchLoop(ctx, noopLogger{}, nil, nil, dispatcher, 12, s, nil)
	if ret != nil {
		t.Fatal("expected the match to shut down at the TTL")
	}
	if store.deletes != 1 {
		t.Fatalf("store deletes = %d, want 1", store.deletes)
	}
	if len(store.snapshots) != 0 {
		t.Fatalf("snapshots left = %d, want none", len(store.snapshots))
	}
}

func TestRejoinCancelsShutdown(t *testing.T) {
	mh := newMatchHandler()
	s := newTestState(&memoryStore{}, &mockEconomy{})
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	alice := mockPresence{userID: "alice", sessionID: "sess-a", username: "Alice"}
	mh.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 1, s, []runtime.Presence{alice})
	mh.MatchLeave(ctx, noopLogger{}, nil, nil, dispatcher, 2, s, []runtime.Presence{alice})

	back := mockPresence{userID: "alice", sessionID: "sess-b", username: "Alice"}
	mh.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 5, s, []runtime.Presence{back})

	if ret := loopTicks(t, mh, s, dispatcher, 6, 20); ret == nil {
		t.Fatal("table shut down despite a live connection")
	}
	if s.emptyDeadline != 0 {
		t.Fatalf("empty deadline = %d, want 0 while connected", s.emptyDeadline)
	}
}

func TestReconnectReceivesHandPrivately(t *testing.T) {
	mh := newMatchHandler()
	s := newTestState(&memoryStore{}, &mockEconomy{})
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	hand := []domain.Card{card(5, 1), card(9, 2)}
	seatParticipant(s.table, "alice", 0, hand, false)
	seatParticipant(s.table, "bob", 1, []domain.Card{card(7, 0)}, false)
	s.table.Players["alice"].Connected = false
	s.table.OwnerID = "bob"
	beginPlay(s.table, 1)
	s.presences["bob"] = mockPresence{userID: "bob", sessionID: "sess-b", username: "Bob"}

	back := mockPresence{userID: "alice", sessionID: "sess-2", username: "Alice"}
	mh.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 3, s, []runtime.Presence{back})

	if !s.table.Player("alice").Connected {
		t.Fatal("reconnect should mark the participant connected")
	}

	private := dispatcher.lastOf(OpRoomState)
	if private == nil || len(private.recipients) != 1 || private.recipients[0].GetUserId() != "alice" {
		t.Fatalf("expected a private room state for alice, got %+v", private)
	}
	var payload app.RoomStatePayload
	if err := json.Unmarshal(private.data, &payload); err != nil {
		t.Fatalf("unmarshal room state: %v", err)
	}
	if len(payload.Hand) != len(hand) {
		t.Fatalf("private hand = %d cards, want %d", len(payload.Hand), len(hand))
	}
}

func TestResumeMarksHumansDisconnected(t *testing.T) {
	mh := newMatchHandler()
	store := &memoryStore{}
	s := newTestState(store, &mockEconomy{})
	ctx := context.Background()

	stored := domain.NewTable()
	seatParticipant(stored, "alice", 0, []domain.Card{card(0, 0)}, false)
	seatParticipant(stored, "bot-1", 1, []domain.Card{card(1, 0)}, true)
	stored.OwnerID = "alice"
	beginPlay(stored, 0)
	store.Save(ctx, &ports.Snapshot{TableID: "old-1", Table: stored, UpdatedAt: time.Now()})

	mh.resumeTable(ctx, s, noopLogger{}, "old-1")

	if s.table != stored {
		t.Fatal("expected the stored table to be adopted")
	}
	if s.table.Player("alice").Connected {
		t.Fatal("resumed humans must start disconnected")
	}
	if !s.table.Player("bot-1").Connected {
		t.Fatal("resumed bots stay connected")
	}
	if _, ok := store.snapshots["old-1"]; ok {
		t.Fatal("stale snapshot key should be deleted after adoption")
	}
	if !s.dirty {
		t.Fatal("resume should mark the state dirty for the next save")
	}
}
