package domain

import "testing"

func TestSettlementApply(t *testing.T) {
	cases := []struct {
		name          string
		finalBet      int
		winner, loser int
		wantWinner    int
		wantLoser     int
		wantMoved     int
		wantStolen    bool
		wantScene     bool
	}{
		{"plain transfer", 20, 40, 60, 60, 40, 20, false, false},
		{"loser pays what it has", 30, 50, 10, 60, 0, 10, true, true},
		{"winner capped", 40, 90, 70, 100, 30, 40, false, false},
		{"big stake", 50, 10, 90, 60, 40, 50, false, true},
		{"loser already empty", 10, 30, 0, 30, 0, 0, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Settlement{FinalBet: tc.finalBet}
			s.Apply(tc.winner, tc.loser)
			if s.WinnerBalance != tc.wantWinner || s.LoserBalance != tc.wantLoser {
				t.Fatalf("balances = %d/%d, want %d/%d", s.WinnerBalance, s.LoserBalance, tc.wantWinner, tc.wantLoser)
			}
			if s.Transferred != tc.wantMoved {
				t.Fatalf("transferred = %d, want %d", s.Transferred, tc.wantMoved)
			}
			if s.CharacterStolen != tc.wantStolen {
				t.Fatalf("stolen = %v, want %v", s.CharacterStolen, tc.wantStolen)
			}
			if s.ShowEventScene() != tc.wantScene {
				t.Fatalf("event scene = %v, want %v", s.ShowEventScene(), tc.wantScene)
			}
		})
	}
}

func TestSettlementRecords(t *testing.T) {
	s := &Settlement{
		RoomID: "r1", GameType: "shell", Reason: "game_complete",
		WinnerSessionID: "a", LoserSessionID: "b",
		WinnerBet: 10, LoserBet: 30, FinalBet: 30,
	}
	s.Apply(20, 50)

	recs := s.Records()
	if recs[0].SessionID != "a" || recs[0].Result != GameResultWin || recs[0].Delta != 30 {
		t.Fatalf("winner record = %+v", recs[0])
	}
	if recs[1].SessionID != "b" || recs[1].Result != GameResultLose || recs[1].Delta != -30 {
		t.Fatalf("loser record = %+v", recs[1])
	}
	if recs[1].OpponentSessionID != "a" || recs[1].Bet != 30 {
		t.Fatalf("loser record = %+v", recs[1])
	}
}
