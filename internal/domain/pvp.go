package domain

import "time"

const (
	MinAffection = 0
	MaxAffection = 100

	// EventSceneBet is the stake from which a win unlocks the bonus scene.
	EventSceneBet = 50
)

// GameResult is one side's outcome of a match.
type GameResult string

const (
	GameResultWin  GameResult = "win"
	GameResultLose GameResult = "lose"
)

// GameSession is the external gameplay session owning an affection balance.
type GameSession struct {
	ID              string    `db:"id" json:"id"`
	Affection       int       `db:"affection" json:"affection"`
	CharacterStolen bool      `db:"character_stolen" json:"character_stolen"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Settlement is the ledger side of a finished match. The room fills the
// inputs; the ledger fills the balances.
type Settlement struct {
	RoomID          string
	GameType        string
	Reason          string
	WinnerSessionID string
	LoserSessionID  string
	WinnerBet       int
	LoserBet        int
	FinalBet        int

	Transferred     int
	WinnerBalance   int
	LoserBalance    int
	CharacterStolen bool
}

// ShowEventScene reports whether the winner unlocks the bonus scene.
func (s *Settlement) ShowEventScene() bool {
	return s.CharacterStolen || s.FinalBet >= EventSceneBet
}

// Apply moves the stake from loser to winner. The loser can never pay more
// than it holds and the winner never goes above MaxAffection.
func (s *Settlement) Apply(winnerBalance, loserBalance int) {
	transfer := min(s.FinalBet, max(loserBalance, MinAffection))
	transfer = max(transfer, 0)

	s.Transferred = transfer
	s.WinnerBalance = clampAffection(winnerBalance + transfer)
	s.LoserBalance = clampAffection(loserBalance - transfer)
	s.CharacterStolen = s.LoserBalance == MinAffection
}

func clampAffection(v int) int {
	return min(MaxAffection, max(MinAffection, v))
}

// MatchRecord is one side's row of match history.
type MatchRecord struct {
	ID                int64      `db:"id" json:"id"`
	RoomID            string     `db:"room_id" json:"room_id"`
	GameType          string     `db:"game_type" json:"game_type"`
	SessionID         string     `db:"session_id" json:"session_id"`
	OpponentSessionID string     `db:"opponent_session_id" json:"opponent_session_id"`
	Result            GameResult `db:"result" json:"result"`
	Bet               int        `db:"bet" json:"bet"`
	FinalBet          int        `db:"final_bet" json:"final_bet"`
	Delta             int        `db:"delta" json:"delta"`
	Reason            string     `db:"reason" json:"reason"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// Records returns the two history rows of a settlement, winner first.
func (s *Settlement) Records() [2]*MatchRecord {
	return [2]*MatchRecord{
		{
			RoomID:            s.RoomID,
			GameType:          s.GameType,
			SessionID:         s.WinnerSessionID,
			OpponentSessionID: s.LoserSessionID,
			Result:            GameResultWin,
			Bet:               s.WinnerBet,
			FinalBet:          s.FinalBet,
			Delta:             s.Transferred,
			Reason:            s.Reason,
		},
		{
			RoomID:            s.RoomID,
			GameType:          s.GameType,
			SessionID:         s.LoserSessionID,
			OpponentSessionID: s.WinnerSessionID,
			Result:            GameResultLose,
			Bet:               s.LoserBet,
			FinalBet:          s.FinalBet,
			Delta:             -s.Transferred,
			Reason:            s.Reason,
		},
	}
}
