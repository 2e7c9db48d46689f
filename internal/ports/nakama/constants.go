package nakama

const (
	// RpcQuickMatch is the Nakama RPC id clients call to find or create a
	// table with an open seat.
	RpcQuickMatch = "quick_match"

	// RpcListTables returns summaries of stored tables.
	RpcListTables = "list_tables"

	// RpcVoiceToken mints a Vivox access token for voice chat.
	RpcVoiceToken = "voice_token"

	// MatchNameThirteen is the authoritative match handler name registered
	// with Nakama.
	MatchNameThirteen = "thirteen_match"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpTakeSeat    int64 = 1
	OpStand       int64 = 2
	OpToggleReady int64 = 3
	OpStartGame   int64 = 4
	OpPlayCards   int64 = 5
	OpPassTurn    int64 = 6

	// Server -> Client events
	OpRoomState     int64 = 101
	OpCountdownTick int64 = 102
	OpGameStarted   int64 = 103
	OpHandDealt     int64 = 104 // sent privately
	OpGameUpdate    int64 = 105
	OpGameEnded     int64 = 106
	OpGameError     int64 = 107
)
