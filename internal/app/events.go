package app

import "thirteen/internal/domain"

// EventKind identifies emitted table events for dispatch.
type EventKind string

const (
	EventRoomState   EventKind = "room_state"
	EventCountdown   EventKind = "countdown"
	EventGameStarted EventKind = "game_started"
	EventHandDealt   EventKind = "hand_dealt"
	EventGameUpdate  EventKind = "game_update"
	EventGameEnded   EventKind = "game_ended"
)

// Event is a table event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast to the room
}

// PlayerInfo is the public view of one participant.
type PlayerInfo struct {
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	Seat           int    `json:"seat"`
	Ready          bool   `json:"ready"`
	Connected      bool   `json:"connected"`
	IsBot          bool   `json:"is_bot"`
	CardsRemaining int    `json:"cards_remaining"`
}

// RoomStatePayload is the full public snapshot of a table. Hand is only set
// on privately targeted copies.
type RoomStatePayload struct {
	Status      domain.Status `json:"status"`
	Seats       []string      `json:"seats"`
	Players     []PlayerInfo  `json:"players"`
	OwnerID     string        `json:"owner_id"`
	Pile        []domain.Card `json:"pile,omitempty"`
	CurrentSeat int           `json:"current_seat"`
	Round       int           `json:"round"`
	Countdown   int           `json:"countdown,omitempty"`
	WinnerID    string        `json:"winner_id,omitempty"`
	Hand        []domain.Card `json:"hand,omitempty"`
}

// CountdownPayload announces seconds remaining before dealing.
type CountdownPayload struct {
	Remaining int `json:"remaining"`
}

// GameStartedPayload announces a dealt game and its first actor.
type GameStartedPayload struct {
	FirstTurnSeat int   `json:"first_turn_seat"`
	Round         int   `json:"round"`
	HandSizes     []int `json:"hand_sizes"`
}

// HandDealtPayload carries a privately delivered hand.
type HandDealtPayload struct {
	Seat int           `json:"seat"`
	Hand []domain.Card `json:"hand"`
}

// GameUpdatePayload reports a resolved play or pass.
type GameUpdatePayload struct {
	Action       string         `json:"action"` // "play", "pass" or "skip"
	UserID       string         `json:"user_id"`
	Seat         int            `json:"seat"`
	Cards        []domain.Card  `json:"cards,omitempty"`
	Pile         []domain.Card  `json:"pile,omitempty"`
	NextTurnSeat int            `json:"next_turn_seat"`
	Round        int            `json:"round"`
	NewRound     bool           `json:"new_round"`
	CardsLeft    map[string]int `json:"cards_left"`
}

// GameEndedPayload announces the winner and final standing.
type GameEndedPayload struct {
	WinnerID     string         `json:"winner_id"`
	WinnerSeat   int            `json:"winner_seat"`
	WinningCards []domain.Card  `json:"winning_cards"`
	CardsLeft    map[string]int `json:"cards_left"`
}
