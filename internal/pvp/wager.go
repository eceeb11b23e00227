package pvp

import (
	"errors"
	"math"
)

const (
	MinBet     = 1
	MaxBet     = 100
	DefaultBet = 10
)

var (
	// ErrBetExceedsBalance is user-facing.
	ErrBetExceedsBalance = errors.New("you cannot bet more affection than you currently have")
	ErrInvalidBet        = errors.New("bet must be at least 1")
)

// Wager is the stake a player commits before queueing. The balance is only
// ever written by whoever owns the external settlement.
type Wager struct {
	bet     int
	balance int
}

func NewWager(balance int) Wager {
	w := Wager{balance: balance}
	w.Set(DefaultBet)
	return w
}

func (w Wager) Bet() int     { return w.bet }
func (w Wager) Balance() int { return w.balance }

// Ceiling is the highest storable bet. It never drops below MinBet so the
// control always holds a valid number; Validate catches an empty balance.
func (w Wager) Ceiling() int {
	return max(MinBet, min(MaxBet, w.balance))
}

// Set clamps amount into [MinBet, Ceiling] and stores it. Fractions are
// truncated toward the floor; NaN becomes MinBet.
func (w *Wager) Set(amount float64) int {
	switch {
	case math.IsNaN(amount):
		w.bet = MinBet
	case amount < MinBet:
		w.bet = MinBet
	case amount > float64(w.Ceiling()):
		w.bet = w.Ceiling()
	default:
		w.bet = int(math.Floor(amount))
	}
	return w.bet
}

// Adjust moves the bet by delta, e.g. the +1/+5 controls.
func (w *Wager) Adjust(delta int) int {
	return w.Set(float64(w.bet + delta))
}

// SetBalance records a new balance from the settlement side. The stored bet
// is left as is and re-checked by Validate at submission.
func (w *Wager) SetBalance(balance int) {
	w.balance = balance
}

// Validate is the last check before a join_queue frame is sent.
func (w Wager) Validate() error {
	if w.bet < MinBet {
		return ErrInvalidBet
	}
	if w.bet > w.balance {
		return ErrBetExceedsBalance
	}
	return nil
}
