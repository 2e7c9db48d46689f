package domain

// Status is the lifecycle stage of a table.
type Status string

const (
	// StatusLobby is the pre-game stage: seating, ready toggles.
	StatusLobby Status = "lobby"
	// StatusCountdown runs between a successful start request and dealing.
	StatusCountdown Status = "countdown"
	// StatusDealing is the transient stage while hands are distributed.
	StatusDealing Status = "dealing"
	// StatusActive is the play stage with a live turn order.
	StatusActive Status = "active"
	// StatusFinished is reached when a participant empties their hand.
	StatusFinished Status = "finished"
)

// NoSeat marks a participant without a seat binding (a spectator).
const NoSeat = -1

// Participant is a user known to the table, seated or spectating.
type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Seat        int    `json:"seat"`
	Ready       bool   `json:"ready"`
	Connected   bool   `json:"connected"`
	IsBot       bool   `json:"is_bot"`
	Hand        []Card `json:"hand,omitempty"`
}

// TurnState tracks the live turn order while a game is active.
type TurnState struct {
	CurrentSeat int `json:"current_seat"`
	// Passed holds user ids that declined to beat the current pile. It is
	// cleared whenever a combination is tabled or the round resets.
	Passed map[string]bool `json:"passed"`
	// LastPlayerID is the last participant who played cards, not passed.
	LastPlayerID string `json:"last_player_id"`
	// Round starts at 1 and increments on every pile reset.
	Round int `json:"round"`
}

// Table is the authoritative state of one game table.
type Table struct {
	Status  Status                  `json:"status"`
	Seats   [MaxSeats]string        `json:"seats"`
	Players map[string]*Participant `json:"players"`
	OwnerID string                  `json:"owner_id"`

	Pile Combination `json:"pile"`
	Turn TurnState   `json:"turn"`

	// CountdownRemaining is the number of whole seconds left before dealing
	// while Status is StatusCountdown.
	CountdownRemaining int `json:"countdown_remaining,omitempty"`

	WinnerID     string `json:"winner_id,omitempty"`
	WinningCards []Card `json:"winning_cards,omitempty"`

	// Generation increments on every applied transition. Timers capture it
	// when armed and discard themselves on mismatch.
	Generation uint64 `json:"generation"`
}

// NewTable returns an empty lobby table.
func NewTable() *Table {
	return &Table{
		Status:  StatusLobby,
		Players: make(map[string]*Participant),
		Turn:    neutralTurn(),
	}
}

func neutralTurn() TurnState {
	return TurnState{CurrentSeat: NoSeat, Passed: make(map[string]bool), Round: 0}
}

// Bump advances the generation counter, invalidating armed timers.
func (t *Table) Bump() {
	t.Generation++
}

// Player returns the participant for userID, or nil.
func (t *Table) Player(userID string) *Participant {
	return t.Players[userID]
}

// SeatOf returns the seat index bound to userID, or NoSeat.
func (t *Table) SeatOf(userID string) int {
	for i, id := range t.Seats {
		if id != "" && id == userID {
			return i
		}
	}
	return NoSeat
}

// CurrentActorID returns the user id whose turn it is, or "".
func (t *Table) CurrentActorID() string {
	if t.Turn.CurrentSeat < 0 || t.Turn.CurrentSeat >= MaxSeats {
		return ""
	}
	return t.Seats[t.Turn.CurrentSeat]
}

// FirstFreeSeat returns the lowest empty seat index, or NoSeat when full.
func (t *Table) FirstFreeSeat() int {
	for i, id := range t.Seats {
		if id == "" {
			return i
		}
	}
	return NoSeat
}

// SeatedCount returns the number of occupied seats.
func (t *Table) SeatedCount() int {
	n := 0
	for _, id := range t.Seats {
		if id != "" {
			n++
		}
	}
	return n
}

// SeatedConnectedCount returns occupied seats whose participant is connected.
func (t *Table) SeatedConnectedCount() int {
	n := 0
	for _, id := range t.Seats {
		if id == "" {
			continue
		}
		if p := t.Players[id]; p != nil && p.Connected {
			n++
		}
	}
	return n
}

// SeatedHumanCount returns occupied seats held by connected humans.
func (t *Table) SeatedHumanCount() int {
	n := 0
	for _, id := range t.Seats {
		if id == "" {
			continue
		}
		if p := t.Players[id]; p != nil && p.Connected && !p.IsBot {
			n++
		}
	}
	return n
}

// HoldersOfCards returns the number of seated participants with a nonempty hand.
func (t *Table) HoldersOfCards() int {
	n := 0
	for _, id := range t.Seats {
		if id == "" {
			continue
		}
		if p := t.Players[id]; p != nil && len(p.Hand) > 0 {
			n++
		}
	}
	return n
}

// PassedHoldersOfCards returns how many card-holding participants have passed
// this round.
func (t *Table) PassedHoldersOfCards() int {
	n := 0
	for _, id := range t.Seats {
		if id == "" {
			continue
		}
		p := t.Players[id]
		if p != nil && len(p.Hand) > 0 && t.Turn.Passed[id] {
			n++
		}
	}
	return n
}

// AllSeatedDisconnected reports whether no seated participant is connected.
// Bots never hold connections, so they are not counted as present.
func (t *Table) AllSeatedDisconnected() bool {
	for _, id := range t.Seats {
		if id == "" {
			continue
		}
		if p := t.Players[id]; p != nil && p.Connected && !p.IsBot {
			return false
		}
	}
	return t.SeatedCount() > 0
}

// NextEligibleSeat searches strictly forward from the given seat, wrapping
// around, for the first seat whose holder is connected, still has cards and
// has not passed against the current pile. If no seat qualifies the input
// seat is returned unchanged.
func (t *Table) NextEligibleSeat(from int) int {
	if from < 0 || from >= MaxSeats {
		return from
	}
	for step := 1; step <= MaxSeats; step++ {
		seat := (from + step) % MaxSeats
		id := t.Seats[seat]
		if id == "" {
			continue
		}
		p := t.Players[id]
		if p == nil || !p.Connected || len(p.Hand) == 0 || t.Turn.Passed[id] {
			continue
		}
		return seat
	}
	return from
}

// ResetRound clears the pile and passed-set, increments the round counter and
// hands the turn to the last participant who played. Falls forward to the
// next eligible seat if that participant no longer holds cards or dropped.
func (t *Table) ResetRound() {
	t.Pile = Combination{}
	t.Turn.Passed = make(map[string]bool)
	t.Turn.Round++

	seat := t.SeatOf(t.Turn.LastPlayerID)
	if seat == NoSeat {
		seat = t.Turn.CurrentSeat
	}
	if seat < 0 || seat >= MaxSeats {
		return
	}
	if p := t.Players[t.Seats[seat]]; p == nil || !p.Connected || len(p.Hand) == 0 {
		seat = t.NextEligibleSeat(seat)
	}
	t.Turn.CurrentSeat = seat
}

// Teardown resets the table to a neutral lobby: pile, turn state, hands and
// ready flags cleared. Seats and participants are kept. Bots stay ready, they
// have no client to toggle it back on.
func (t *Table) Teardown() {
	t.Status = StatusLobby
	t.Pile = Combination{}
	t.Turn = neutralTurn()
	t.CountdownRemaining = 0
	t.WinnerID = ""
	t.WinningCards = nil
	for _, p := range t.Players {
		p.Hand = nil
		p.Ready = p.IsBot
	}
}
