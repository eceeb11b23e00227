package minigame

import (
	"time"

	"affection_pvp/internal/protocol"
	"affection_pvp/internal/sched"
)

type ChasePhase string

const (
	ChaseIntro   ChasePhase = "intro"
	ChasePlaying ChasePhase = "playing"
	ChaseResult  ChasePhase = "result"
)

const (
	obstacleSpawnX   = 105
	obstacleDespawnX = -15
	hitWindowMin     = 8
	hitWindowMax     = 22
)

type ChaseTimings struct {
	Intro           time.Duration
	Tick            time.Duration
	HitCooldown     time.Duration
	ExtraSpawnDelay time.Duration
}

func DefaultChaseTimings() ChaseTimings {
	return ChaseTimings{
		Intro:           2500 * time.Millisecond,
		Tick:            40 * time.Millisecond,
		HitCooldown:     600 * time.Millisecond,
		ExtraSpawnDelay: 150 * time.Millisecond,
	}
}

type Obstacle struct {
	ID   int
	Lane int
	X    float64
}

// Chase is the obstacle-dodge variant. Obstacles are spawned from this
// peer's own RNG and clock; only lane changes and hits are relayed, so the
// two screens are expected to differ.
type Chase struct {
	base
	timings ChaseTimings

	state     ChasePhase
	lane      int
	hits      int
	elapsed   int
	level     int
	obstacles []Obstacle
	nextID    int
	hitIDs    map[int]bool
	cooldown  bool
	spawner   *sched.Tasks
	opponent  Mirror
}

func NewChase(env Env, timings ChaseTimings) *Chase {
	return &Chase{
		base:     newBase(env),
		timings:  timings,
		state:    ChaseIntro,
		lane:     1,
		hitIDs:   make(map[int]bool),
		opponent: NewMirror(),
	}
}

func (g *Chase) Type() protocol.GameType { return protocol.GameChase }

func (g *Chase) Phase() ChasePhase { return g.state }

func (g *Chase) Lane() int { return g.lane }

func (g *Chase) Hits() int { return g.hits }

func (g *Chase) Obstacles() []Obstacle { return g.obstacles }

func (g *Chase) Difficulty() ChaseDifficulty { return ChaseDifficultyAt(g.elapsed) }

func (g *Chase) Start() {
	g.phase.After(g.timings.Intro, g.play)
}

func (g *Chase) play() {
	g.nextPhase()
	g.state = ChasePlaying
	g.phase.Every(time.Second, func() {
		g.elapsed++
		if lvl := g.Difficulty().Level; lvl != g.level {
			g.restartSpawner()
		}
	})
	g.phase.Every(g.timings.Tick, g.step)
	g.restartSpawner()
}

// restartSpawner re-arms spawning at the interval of the current level.
func (g *Chase) restartSpawner() {
	if g.spawner != nil {
		g.spawner.Close()
	}
	d := g.Difficulty()
	g.level = d.Level
	g.spawner = g.phase.Child()
	g.spawner.Every(time.Duration(d.SpawnInterval)*time.Millisecond, func() {
		if g.env.Rand.Float64() >= d.SpawnChance {
			return
		}
		g.spawn()
		if d.Level >= 3 && g.env.Rand.Float64() > 0.5 {
			g.spawner.After(g.timings.ExtraSpawnDelay, g.spawn)
		}
	})
}

func (g *Chase) spawn() {
	g.obstacles = append(g.obstacles, Obstacle{
		ID:   g.nextID,
		Lane: g.env.Rand.IntN(LaneCount),
		X:    obstacleSpawnX,
	})
	g.nextID++
}

func (g *Chase) step() {
	speed := g.Difficulty().Speed
	kept := g.obstacles[:0]
	for _, o := range g.obstacles {
		o.X -= speed
		if o.X > obstacleDespawnX {
			kept = append(kept, o)
		}
	}
	g.obstacles = kept

	if g.cooldown {
		return
	}
	for _, o := range g.obstacles {
		if o.X >= hitWindowMin && o.X <= hitWindowMax && o.Lane == g.lane && !g.hitIDs[o.ID] {
			g.hitIDs[o.ID] = true
			g.hit()
			return
		}
	}
}

func (g *Chase) hit() {
	g.cooldown = true
	g.phase.After(g.timings.HitCooldown, func() { g.cooldown = false })
	g.hits++
	g.relay(protocol.GameHit, struct{}{})
	if ChaseLost(g.hits) {
		g.state = ChaseResult
		g.finish(false)
	}
}

// Move shifts the runner by delta lanes, clamped to the track.
func (g *Chase) Move(delta int) error {
	if g.finished {
		return ErrFinished
	}
	if g.state != ChasePlaying {
		return ErrWrongPhase
	}
	lane := min(LaneCount-1, max(0, g.lane+delta))
	if lane == g.lane {
		return nil
	}
	g.lane = lane
	g.relay(protocol.GamePosition, protocol.PositionPayload{Position: lane})
	return nil
}

// Observe treats the opponent reaching the hit cap as local victory.
func (g *Chase) Observe(m Mirror) {
	g.opponent = m
	if !g.finished && ChaseLost(m.Hits) {
		g.state = ChaseResult
		g.finish(true)
	}
}
