package protocol

import (
	"encoding/json"
	"testing"
)

func TestPeekType(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`{"type":"connected"}`, TypeConnected, false},
		{`{"type":"matched","room_id":"r1"}`, TypeMatched, false},
		{`{"action":"join_queue"}`, "", true},
		{`not json`, "", true},
		{`[]`, "", true},
	}

	for _, tc := range cases {
		got, err := PeekType([]byte(tc.raw))
		if tc.wantErr {
			if err == nil {
				t.Fatalf("PeekType(%s) expected error", tc.raw)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("PeekType(%s) = %q, %v; want %q", tc.raw, got, err, tc.want)
		}
	}
}

func TestNewGameActionShapes(t *testing.T) {
	hit, err := NewGameAction("room-1", GameHit, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := json.Marshal(hit)
	want := `{"action":"game_action","room_id":"room-1","game_action":"hit","payload":{}}`
	if string(b) != want {
		t.Fatalf("hit frame = %s; want %s", b, want)
	}

	hover, err := NewGameAction("room-1", GameHover, HoverPayload{CupIndex: nil})
	if err != nil {
		t.Fatal(err)
	}
	b, _ = json.Marshal(hover)
	want = `{"action":"game_action","room_id":"room-1","game_action":"hover","payload":{"cup_index":null}}`
	if string(b) != want {
		t.Fatalf("hover frame = %s; want %s", b, want)
	}
}

func TestJoinQueueFrame(t *testing.T) {
	b, _ := json.Marshal(Outbound{Action: ActionJoinQueue, BetAmount: 25})
	if string(b) != `{"action":"join_queue","bet_amount":25}` {
		t.Fatalf("unexpected frame %s", b)
	}
	b, _ = json.Marshal(Outbound{Action: ActionLeaveQueue})
	if string(b) != `{"action":"leave_queue"}` {
		t.Fatalf("unexpected frame %s", b)
	}
}

func TestIndexOf(t *testing.T) {
	if IndexOf(GameShell) != 0 || IndexOf(GameChase) != 1 || IndexOf(GameMashing) != 2 {
		t.Fatalf("unexpected roulette ordering %v", GameTypes)
	}
	if IndexOf("bogus") != 0 {
		t.Fatalf("unknown game should map to 0")
	}
}
