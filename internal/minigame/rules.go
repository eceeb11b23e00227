package minigame

const (
	CupCount      = 3
	LaneCount     = 3
	MaxHits       = 3
	MashingTarget = 50
)

// BothWrongPolicy decides the shell game when neither side found the heart.
type BothWrongPolicy int

const (
	// BothWrongLoss scores the round as a loss for the deciding peer. Both
	// peers then report a loss; the settlement authority has the final say.
	// A proper rematch/draw flow does not exist yet.
	BothWrongLoss BothWrongPolicy = iota
	// BothWrongHostWins applies the tie-breaker, so exactly one side wins.
	BothWrongHostWins
)

func (p BothWrongPolicy) String() string {
	switch p {
	case BothWrongLoss:
		return "loss"
	case BothWrongHostWins:
		return "host_wins"
	}
	return "unknown"
}

// ShellWon judges the shell game from one peer's point of view.
func ShellWon(correct, mine, theirs int, isHost bool, policy BothWrongPolicy) bool {
	iWon := mine == correct
	theyWon := theirs == correct

	switch {
	case iWon && !theyWon:
		return true
	case !iWon && theyWon:
		return false
	case iWon && theyWon:
		return isHost
	}

	if policy == BothWrongHostWins {
		return isHost
	}
	return false
}

// MashingWon compares final scores; an exact tie goes to the host.
func MashingWon(mine, theirs int, isHost bool) bool {
	if mine != theirs {
		return mine > theirs
	}
	return isHost
}

// ChaseLost reports whether a hit counter reached the cap.
func ChaseLost(hits int) bool {
	return hits >= MaxHits
}

// ChaseDifficulty is the obstacle curve after elapsedSeconds of play. Both
// peers derive it from their own clock only.
type ChaseDifficulty struct {
	Level         int
	Speed         float64
	SpawnInterval int // milliseconds
	SpawnChance   float64
}

func ChaseDifficultyAt(elapsedSeconds int) ChaseDifficulty {
	level := min(5, elapsedSeconds/8+1)
	return ChaseDifficulty{
		Level:         level,
		Speed:         3 + float64(level)*0.8,
		SpawnInterval: max(350, 700-level*70),
		SpawnChance:   min(0.95, 0.6+float64(level)*0.07),
	}
}
