package game

import (
	"fmt"
	"math/rand/v2"

	"affection_pvp/internal/minigame"
	"affection_pvp/internal/protocol"
)

// Picker chooses the variant of a new room and the shell seed.
type Picker interface {
	IntN(n int) int
}

type Factory struct {
	pick Picker
}

func NewFactory(pick Picker) *Factory {
	if pick == nil {
		pick = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Factory{pick: pick}
}

// PickType draws the variant the roulette will land on.
func (f *Factory) PickType() protocol.GameType {
	return protocol.GameTypes[f.pick.IntN(len(protocol.GameTypes))]
}

func (f *Factory) CreateGame(gameType protocol.GameType, roomID string, players [2]string) (Game, error) {
	switch gameType {
	case protocol.GameShell:
		return NewShellGame(roomID, players, f.pick.IntN(minigame.CupCount)), nil
	case protocol.GameChase:
		return NewChaseGame(roomID, players), nil
	case protocol.GameMashing:
		return NewMashingGame(roomID, players), nil
	default:
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
}
