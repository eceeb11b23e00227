package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMissingDiscriminant = errors.New("frame has no discriminant")

// Outbound is every client -> server frame.
type Outbound struct {
	Action     string          `json:"action"`
	BetAmount  int             `json:"bet_amount,omitempty"`
	RoomID     string          `json:"room_id,omitempty"`
	GameAction string          `json:"game_action,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// game_action payloads

type HoverPayload struct {
	CupIndex *int `json:"cup_index"`
}

type SelectPayload struct {
	CupIndex int `json:"cup_index"`
}

type PositionPayload struct {
	Position int `json:"position"`
}

type ScorePayload struct {
	Score int `json:"score"`
}

type DonePayload struct {
	Won bool `json:"won"`
}

// Envelope carries only the inbound discriminant.
type Envelope struct {
	Type string `json:"type"`
}

type QueueJoined struct {
	Type      string `json:"type"`
	BetAmount int    `json:"bet_amount"`
}

type Matched struct {
	Type              string   `json:"type"`
	OpponentSessionID string   `json:"opponent_session_id"`
	OpponentBet       int      `json:"opponent_bet"`
	RoomID            string   `json:"room_id"`
	GameType          GameType `json:"game_type"`
	IsHost            bool     `json:"is_host"`
	CorrectCup        *int     `json:"correct_cup"`
}

type GameUpdate struct {
	Type       string `json:"type"`
	GameAction string `json:"game_action"`
	CupIndex   *int   `json:"cup_index,omitempty"`
	Position   *int   `json:"position,omitempty"`
	Hits       *int   `json:"hits,omitempty"`
	Score      *int   `json:"score,omitempty"`
}

// SoloDifficulty tunes the solo heart minigame offered as fallback.
type SoloDifficulty struct {
	TargetCount      int `json:"targetCount"`
	TimeSeconds      int `json:"timeSeconds"`
	HeartSizeMin     int `json:"heartSizeMin"`
	HeartSizeMax     int `json:"heartSizeMax"`
	HeartDurationMin int `json:"heartDurationMin"`
	HeartDurationMax int `json:"heartDurationMax"`
}

// DefaultSoloDifficulty is used whenever a timeout carries no difficulty.
func DefaultSoloDifficulty() SoloDifficulty {
	return SoloDifficulty{
		TargetCount:      12,
		TimeSeconds:      6,
		HeartSizeMin:     40,
		HeartSizeMax:     60,
		HeartDurationMin: 2,
		HeartDurationMax: 4,
	}
}

type Timeout struct {
	Type           string          `json:"type"`
	SoloDifficulty *SoloDifficulty `json:"solo_difficulty,omitempty"`
}

type PvPResult struct {
	Type              string `json:"type"`
	Winner            bool   `json:"winner"`
	OpponentSessionID string `json:"opponent_session_id"`
	FinalBet          int    `json:"final_bet"`
	NewAffection      int    `json:"new_affection"`
	CharacterStolen   bool   `json:"character_stolen,omitempty"`
	ShowEventScene    bool   `json:"show_event_scene,omitempty"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PeekType returns the inbound discriminant of a raw frame.
func PeekType(raw []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return "", ErrMissingDiscriminant
	}
	return env.Type, nil
}

// PeekAction decodes an outbound frame and checks its discriminant.
func PeekAction(raw []byte) (*Outbound, error) {
	var out Outbound
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	if out.Action == "" {
		return nil, ErrMissingDiscriminant
	}
	return &out, nil
}

// NewGameAction builds a game_action frame with payload marshalled to an object.
func NewGameAction(roomID, action string, payload any) (*Outbound, error) {
	if payload == nil {
		payload = struct{}{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", action, err)
	}
	return &Outbound{
		Action:     ActionGameAction,
		RoomID:     roomID,
		GameAction: action,
		Payload:    b,
	}, nil
}
