package protocol

// GameType names a PvP minigame variant.
type GameType string

const (
	GameShell   GameType = "shell"
	GameChase   GameType = "chase"
	GameMashing GameType = "mashing"
)

// GameTypes is the fixed roulette ordering. Both peers index into it.
var GameTypes = []GameType{GameShell, GameChase, GameMashing}

// IndexOf returns the roulette position of g, or 0 when g is unknown.
func IndexOf(g GameType) int {
	for i, t := range GameTypes {
		if t == g {
			return i
		}
	}
	return 0
}

// Valid reports whether g is one of the known variants.
func (g GameType) Valid() bool {
	for _, t := range GameTypes {
		if t == g {
			return true
		}
	}
	return false
}

const (
	// client -> server
	ActionJoinQueue  = "join_queue"
	ActionLeaveQueue = "leave_queue"
	ActionGameAction = "game_action"

	// game_action values
	GameHover    = "hover"
	GameSelect   = "select"
	GamePosition = "position"
	GameHit      = "hit"
	GameScore    = "score"
	GameDone     = "done"

	// server -> client
	TypeConnected   = "connected"
	TypeQueueJoined = "queue_joined"
	TypeQueueLeft   = "queue_left"
	TypeMatched     = "matched"
	TypeGameUpdate  = "game_update"
	TypeTimeout     = "timeout"
	TypePvPResult   = "pvp_result"
	TypeError       = "error"

	// game_update values
	UpdateOpponentHover    = "opponent_hover"
	UpdateOpponentSelect   = "opponent_select"
	UpdateOpponentPosition = "opponent_position"
	UpdateOpponentHit      = "opponent_hit"
	UpdateOpponentScore    = "opponent_score"
)

// OpponentUpdate maps an outbound game action to the game_update name the
// opponent receives. Unknown actions are not relayed.
func OpponentUpdate(action string) (string, bool) {
	switch action {
	case GameHover:
		return UpdateOpponentHover, true
	case GameSelect:
		return UpdateOpponentSelect, true
	case GamePosition:
		return UpdateOpponentPosition, true
	case GameHit:
		return UpdateOpponentHit, true
	case GameScore:
		return UpdateOpponentScore, true
	}
	return "", false
}
