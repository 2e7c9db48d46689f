package app

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"thirteen/internal/domain"
)

// MinPlayersToStart is the number of seated, connected participants required
// before the owner may start a game.
const MinPlayersToStart = 2

// Service implements the table use-cases: seating and readiness in the
// lobby, the start countdown, dealing, and a single play/pass resolution
// path shared by human messages, bot turns and the disconnect grace timer.
//
// Service holds no table state of its own; callers pass the authoritative
// *domain.Table and dispatch the returned events. Every applied transition
// bumps the table generation exactly once, so timers armed against the old
// generation discard themselves.
type Service struct {
	rng *rand.Rand
}

// NewService creates a Service. A nil rng falls back to a time-seeded one;
// tests inject a fixed seed for deterministic deals.
func NewService(rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{rng: rng}
}

var (
	ErrNotInLobby         = errors.New("table is not in the lobby")
	ErrNotActive          = errors.New("no active game")
	ErrNotYourTurn        = errors.New("not this player's turn")
	ErrCardsNotHeld       = errors.New("player does not hold those cards")
	ErrInvalidCombination = errors.New("cards do not form a playable combination")
	ErrCannotBeat         = errors.New("combination does not beat the pile")
	ErrMustLead           = errors.New("round leader must play, not pass")
	ErrNotOwner           = errors.New("only the table owner can start the game")
	ErrNotReady           = errors.New("seated players are not all ready")
	ErrTooFewPlayers      = errors.New("not enough connected players to start")
	ErrNoSeat             = errors.New("no such seat")
	ErrSeatTaken          = errors.New("seat is already taken")
	ErrAlreadySeated      = errors.New("player is already seated")
	ErrNotSeated          = errors.New("player is not seated")
	ErrUnknownPlayer      = errors.New("player not found at this table")
)

// Join registers a presence with the table. A first-time user becomes a
// spectator; a returning user is reconnected in place with seat, hand and
// ready flag untouched. The returned events include a private snapshot so
// the joiner can redraw, hand included.
func (s *Service) Join(t *domain.Table, userID, displayName string) []Event {
	p := t.Player(userID)
	if p == nil {
		p = &domain.Participant{
			UserID:      userID,
			DisplayName: displayName,
			Seat:        domain.NoSeat,
			Connected:   true,
		}
		t.Players[userID] = p
	} else {
		p.Connected = true
		if displayName != "" {
			p.DisplayName = displayName
		}
	}
	ensureOwner(t)
	t.Bump()

	return []Event{roomStateEvent(t), privateStateEvent(t, userID)}
}

// Leave handles a dropped or departing presence. In lobby-like stages the
// participant is removed outright. Mid-game the participant is only marked
// disconnected so a reconnect can resume; if that leaves no seated human
// connected the game aborts back to the lobby.
func (s *Service) Leave(t *domain.Table, userID string) []Event {
	p := t.Player(userID)
	if p == nil {
		return nil
	}

	switch t.Status {
	case domain.StatusActive, domain.StatusDealing:
		p.Connected = false
		if t.AllSeatedDisconnected() {
			s.abortGame(t)
		}
	default:
		wasSeated := p.Seat != domain.NoSeat
		removeParticipant(t, userID)
		if wasSeated {
			cancelCountdown(t)
		}
		ensureOwner(t)
	}
	t.Bump()

	return []Event{roomStateEvent(t)}
}

// TakeSeat binds the user to a seat. Allowed in lobby, countdown and
// post-game stages; taking a seat cancels a pending countdown. A seat held
// by a bot may be reclaimed, the bot is dismissed.
func (s *Service) TakeSeat(t *domain.Table, userID string, seat int) ([]Event, error) {
	if !lobbyStage(t) {
		return nil, ErrNotInLobby
	}
	p := t.Player(userID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if seat < 0 || seat >= domain.MaxSeats {
		return nil, ErrNoSeat
	}
	if p.Seat != domain.NoSeat {
		return nil, ErrAlreadySeated
	}
	if holder := t.Players[t.Seats[seat]]; t.Seats[seat] != "" {
		if holder == nil || !holder.IsBot {
			return nil, ErrSeatTaken
		}
		removeParticipant(t, holder.UserID)
	}

	t.Seats[seat] = userID
	p.Seat = seat
	p.Ready = false
	cancelCountdown(t)
	ensureOwner(t)
	t.Bump()

	return []Event{roomStateEvent(t)}, nil
}

// Stand vacates the user's seat, returning them to spectating.
func (s *Service) Stand(t *domain.Table, userID string) ([]Event, error) {
	if !lobbyStage(t) {
		return nil, ErrNotInLobby
	}
	p := t.Player(userID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if p.Seat == domain.NoSeat {
		return nil, ErrNotSeated
	}

	t.Seats[p.Seat] = ""
	p.Seat = domain.NoSeat
	p.Ready = false
	p.Hand = nil
	cancelCountdown(t)
	ensureOwner(t)
	t.Bump()

	return []Event{roomStateEvent(t)}, nil
}

// ToggleReady flips the seated user's ready flag and cancels any pending
// countdown, the quorum has to be re-established.
func (s *Service) ToggleReady(t *domain.Table, userID string) ([]Event, error) {
	if !lobbyStage(t) {
		return nil, ErrNotInLobby
	}
	p := t.Player(userID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if p.Seat == domain.NoSeat {
		return nil, ErrNotSeated
	}

	p.Ready = !p.Ready
	cancelCountdown(t)
	t.Bump()

	return []Event{roomStateEvent(t)}, nil
}

// SeatBot places a bot participant on an empty seat. Bots are always ready
// and count as connected for turn order, they never hold a presence.
func (s *Service) SeatBot(t *domain.Table, userID, displayName string, seat int) ([]Event, error) {
	if !lobbyStage(t) {
		return nil, ErrNotInLobby
	}
	if seat < 0 || seat >= domain.MaxSeats {
		return nil, ErrNoSeat
	}
	if t.Seats[seat] != "" {
		return nil, ErrSeatTaken
	}

	t.Players[userID] = &domain.Participant{
		UserID:      userID,
		DisplayName: displayName,
		Seat:        seat,
		Ready:       true,
		Connected:   true,
		IsBot:       true,
	}
	t.Seats[seat] = userID
	t.Bump()

	return []Event{roomStateEvent(t)}, nil
}

// RequestStart begins the pre-deal countdown. Only the owner may start, at
// least MinPlayersToStart seated participants must be connected, and every
// other seated connected participant must be ready; the owner's own ready
// flag is implied by the request.
func (s *Service) RequestStart(t *domain.Table, userID string, countdownSeconds int) ([]Event, error) {
	if t.Status != domain.StatusLobby && t.Status != domain.StatusFinished {
		return nil, ErrNotInLobby
	}
	if userID != t.OwnerID {
		return nil, ErrNotOwner
	}
	if t.SeatedConnectedCount() < MinPlayersToStart {
		return nil, ErrTooFewPlayers
	}
	for _, id := range t.Seats {
		if id == "" || id == userID {
			continue
		}
		if p := t.Players[id]; p != nil && p.Connected && !p.Ready {
			return nil, ErrNotReady
		}
	}

	t.WinnerID = ""
	t.WinningCards = nil
	t.Status = domain.StatusCountdown
	if countdownSeconds < 1 {
		countdownSeconds = 1
	}
	t.CountdownRemaining = countdownSeconds
	t.Bump()

	return []Event{
		roomStateEvent(t),
		{Kind: EventCountdown, Payload: CountdownPayload{Remaining: countdownSeconds}},
	}, nil
}

// CountdownTick advances the start countdown by one second. When it reaches
// zero the hands are dealt and play begins. Returns nil when the countdown
// was cancelled in the meantime.
func (s *Service) CountdownTick(t *domain.Table) []Event {
	if t.Status != domain.StatusCountdown {
		return nil
	}
	t.CountdownRemaining--
	if t.CountdownRemaining > 0 {
		t.Bump()
		return []Event{{Kind: EventCountdown, Payload: CountdownPayload{Remaining: t.CountdownRemaining}}}
	}
	return s.startGame(t)
}

// startGame deals a fresh hand to every seated connected participant and
// opens play with a uniformly random first actor.
func (s *Service) startGame(t *domain.Table) []Event {
	t.Status = domain.StatusDealing
	t.Pile = domain.Combination{}
	t.CountdownRemaining = 0
	t.WinnerID = ""
	t.WinningCards = nil

	var dealt []int
	for seat, id := range t.Seats {
		if id == "" {
			continue
		}
		p := t.Players[id]
		if p == nil {
			continue
		}
		p.Hand = nil
		p.Ready = p.IsBot
		if p.Connected {
			dealt = append(dealt, seat)
		}
	}

	if len(dealt) < MinPlayersToStart {
		t.Status = domain.StatusLobby
		t.Bump()
		return []Event{roomStateEvent(t)}
	}

	hands := domain.Deal(s.rng, len(dealt))
	events := make([]Event, 0, len(dealt)+2)
	handSizes := make([]int, 0, len(dealt))
	for i, seat := range dealt {
		p := t.Players[t.Seats[seat]]
		p.Hand = hands[i]
		handSizes = append(handSizes, len(p.Hand))
		events = append(events, Event{
			Kind:       EventHandDealt,
			Payload:    HandDealtPayload{Seat: seat, Hand: domain.CloneCards(p.Hand)},
			Recipients: []string{p.UserID},
		})
	}

	first := dealt[s.rng.Intn(len(dealt))]
	t.Turn = domain.TurnState{
		CurrentSeat: first,
		Passed:      make(map[string]bool),
		Round:       1,
	}
	t.Status = domain.StatusActive
	t.Bump()

	events = append(events, Event{Kind: EventGameStarted, Payload: GameStartedPayload{
		FirstTurnSeat: first,
		Round:         1,
		HandSizes:     handSizes,
	}})
	events = append(events, roomStateEvent(t))
	return events
}

// Play resolves an attempt by userID to put cards on the pile. The same
// path serves human messages and bot turns.
func (s *Service) Play(t *domain.Table, userID string, cards []domain.Card) ([]Event, error) {
	if t.Status != domain.StatusActive {
		return nil, ErrNotActive
	}
	p := t.Player(userID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if t.CurrentActorID() != userID {
		return nil, ErrNotYourTurn
	}
	if !domain.ContainsAll(p.Hand, cards) {
		return nil, ErrCardsNotHeld
	}
	combo := domain.Classify(cards)
	if combo.Type == domain.ComboInvalid {
		return nil, ErrInvalidCombination
	}
	if !domain.Beats(combo, t.Pile) {
		return nil, ErrCannotBeat
	}

	p.Hand = domain.RemoveCards(p.Hand, combo.Cards)
	t.Pile = combo
	t.Turn.LastPlayerID = userID
	// A tabled combination reopens the bidding: earlier passes expire and
	// every holder may answer the new pile.
	t.Turn.Passed = make(map[string]bool)

	if len(p.Hand) == 0 {
		return s.finishGame(t, p, combo), nil
	}

	seat := p.Seat
	t.Turn.CurrentSeat = t.NextEligibleSeat(seat)
	t.Bump()

	return []Event{{Kind: EventGameUpdate, Payload: GameUpdatePayload{
		Action:       "play",
		UserID:       userID,
		Seat:         seat,
		Cards:        combo.Cards,
		Pile:         combo.Cards,
		NextTurnSeat: t.Turn.CurrentSeat,
		Round:        t.Turn.Round,
		CardsLeft:    cardsLeft(t),
	}}}, nil
}

// Pass resolves a voluntary pass. Passing is refused while the pile is
// empty: the round leader must open.
func (s *Service) Pass(t *domain.Table, userID string) ([]Event, error) {
	if t.Status != domain.StatusActive {
		return nil, ErrNotActive
	}
	p := t.Player(userID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if t.CurrentActorID() != userID {
		return nil, ErrNotYourTurn
	}
	if t.Pile.Empty() {
		return nil, ErrMustLead
	}
	return s.resolvePass(t, p), nil
}

// AutoResolve is the disconnect grace action. It re-checks everything the
// timer was armed for — the game is still active, the participant is still
// the current actor and still disconnected — and then passes on their
// behalf. A disconnected round leader cannot pass, so leadership is skipped
// to the next eligible seat without recording one.
func (s *Service) AutoResolve(t *domain.Table, userID string) []Event {
	if t.Status != domain.StatusActive {
		return nil
	}
	p := t.Player(userID)
	if p == nil || p.Connected || p.IsBot {
		return nil
	}
	if t.CurrentActorID() != userID {
		return nil
	}

	if t.Pile.Empty() {
		next := t.NextEligibleSeat(t.Turn.CurrentSeat)
		if next == t.Turn.CurrentSeat {
			return nil
		}
		t.Turn.CurrentSeat = next
		t.Bump()
		return []Event{{Kind: EventGameUpdate, Payload: GameUpdatePayload{
			Action:       "skip",
			UserID:       userID,
			Seat:         p.Seat,
			NextTurnSeat: next,
			Round:        t.Turn.Round,
			CardsLeft:    cardsLeft(t),
		}}}
	}

	if t.Turn.Passed[userID] {
		return nil
	}
	return s.resolvePass(t, p)
}

// resolvePass records the pass and either hands the turn forward or, when
// every other card holder has passed, resets the round to the last player
// who put cards down.
func (s *Service) resolvePass(t *domain.Table, p *domain.Participant) []Event {
	t.Turn.Passed[p.UserID] = true

	newRound := false
	if t.PassedHoldersOfCards() >= t.HoldersOfCards()-1 {
		t.ResetRound()
		newRound = true
	} else {
		t.Turn.CurrentSeat = t.NextEligibleSeat(t.Turn.CurrentSeat)
	}
	t.Bump()

	update := GameUpdatePayload{
		Action:       "pass",
		UserID:       p.UserID,
		Seat:         p.Seat,
		NextTurnSeat: t.Turn.CurrentSeat,
		Round:        t.Turn.Round,
		NewRound:     newRound,
		CardsLeft:    cardsLeft(t),
	}
	if !newRound {
		update.Pile = t.Pile.Cards
	}
	return []Event{{Kind: EventGameUpdate, Payload: update}}
}

// finishGame records the winner, moves the table to the finished stage and
// prunes humans who dropped mid-game. The table stays joinable for the next
// round; a new start request tears the showdown state down.
func (s *Service) finishGame(t *domain.Table, winner *domain.Participant, winning domain.Combination) []Event {
	seat := winner.Seat
	left := cardsLeft(t)

	t.Status = domain.StatusFinished
	t.WinnerID = winner.UserID
	t.WinningCards = winning.Cards
	t.Turn.CurrentSeat = domain.NoSeat
	pruneDisconnected(t)
	ensureOwner(t)
	t.Bump()

	return []Event{
		{Kind: EventGameUpdate, Payload: GameUpdatePayload{
			Action:       "play",
			UserID:       t.WinnerID,
			Seat:         seat,
			Cards:        winning.Cards,
			Pile:         winning.Cards,
			NextTurnSeat: domain.NoSeat,
			Round:        t.Turn.Round,
			CardsLeft:    left,
		}},
		{Kind: EventGameEnded, Payload: GameEndedPayload{
			WinnerID:     t.WinnerID,
			WinnerSeat:   seat,
			WinningCards: winning.Cards,
			CardsLeft:    left,
		}},
		roomStateEvent(t),
	}
}

// abortGame returns an active table to the lobby after every seated human
// dropped. Hands are discarded; disconnected humans are removed so their
// seats free up for whoever comes back.
func (s *Service) abortGame(t *domain.Table) {
	t.Teardown()
	pruneDisconnected(t)
	ensureOwner(t)
}

func lobbyStage(t *domain.Table) bool {
	switch t.Status {
	case domain.StatusLobby, domain.StatusCountdown, domain.StatusFinished:
		return true
	}
	return false
}

func cancelCountdown(t *domain.Table) {
	if t.Status == domain.StatusCountdown {
		t.Status = domain.StatusLobby
		t.CountdownRemaining = 0
	}
}

// ensureOwner keeps ownership on a seated, connected human, preferring the
// incumbent. With none present the table has no owner until one sits down.
func ensureOwner(t *domain.Table) {
	if p := t.Player(t.OwnerID); p != nil && p.Seat != domain.NoSeat && p.Connected && !p.IsBot {
		return
	}
	t.OwnerID = ""
	for _, id := range t.Seats {
		if id == "" {
			continue
		}
		if p := t.Players[id]; p != nil && p.Connected && !p.IsBot {
			t.OwnerID = id
			return
		}
	}
}

func removeParticipant(t *domain.Table, userID string) {
	p := t.Players[userID]
	if p == nil {
		return
	}
	if p.Seat != domain.NoSeat {
		t.Seats[p.Seat] = ""
	}
	delete(t.Players, userID)
}

func pruneDisconnected(t *domain.Table) {
	for id, p := range t.Players {
		if !p.Connected && !p.IsBot {
			removeParticipant(t, id)
		}
	}
}

func cardsLeft(t *domain.Table) map[string]int {
	left := make(map[string]int)
	for _, id := range t.Seats {
		if id == "" {
			continue
		}
		if p := t.Players[id]; p != nil {
			left[id] = len(p.Hand)
		}
	}
	return left
}

func roomStateEvent(t *domain.Table) Event {
	return Event{Kind: EventRoomState, Payload: buildRoomState(t)}
}

func privateStateEvent(t *domain.Table, userID string) Event {
	state := buildRoomState(t)
	if p := t.Player(userID); p != nil {
		state.Hand = domain.CloneCards(p.Hand)
	}
	return Event{Kind: EventRoomState, Payload: state, Recipients: []string{userID}}
}

func buildRoomState(t *domain.Table) RoomStatePayload {
	players := make([]PlayerInfo, 0, len(t.Players))
	for _, p := range t.Players {
		players = append(players, PlayerInfo{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			Seat:           p.Seat,
			Ready:          p.Ready,
			Connected:      p.Connected,
			IsBot:          p.IsBot,
			CardsRemaining: len(p.Hand),
		})
	}
	sort.Slice(players, func(i, j int) bool {
		si, sj := players[i].Seat, players[j].Seat
		if si != sj {
			if si == domain.NoSeat {
				return false
			}
			if sj == domain.NoSeat {
				return true
			}
			return si < sj
		}
		return players[i].UserID < players[j].UserID
	})

	return RoomStatePayload{
		Status:      t.Status,
		Seats:       t.Seats[:],
		Players:     players,
		OwnerID:     t.OwnerID,
		Pile:        t.Pile.Cards,
		CurrentSeat: t.Turn.CurrentSeat,
		Round:       t.Turn.Round,
		Countdown:   t.CountdownRemaining,
		WinnerID:    t.WinnerID,
	}
}
