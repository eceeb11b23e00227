package minigame

import (
	"time"

	"affection_pvp/internal/protocol"
	"affection_pvp/internal/sched"
)

const heartResolution = 100 * time.Millisecond

// HeartConfig is the whole contract of the solo fallback.
type HeartConfig struct {
	TargetCount      int
	TimeLimitSeconds int
}

func HeartConfigFrom(d protocol.SoloDifficulty) HeartConfig {
	return HeartConfig{TargetCount: d.TargetCount, TimeLimitSeconds: d.TimeSeconds}
}

// Heart is the solo tap counter used when no PvP match can be played.
type Heart struct {
	cfg      HeartConfig
	tasks    *sched.Tasks
	done     func(success bool)
	score    int
	left     time.Duration
	started  bool
	finished bool
}

func NewHeart(tasks *sched.Tasks, cfg HeartConfig, done func(success bool)) *Heart {
	return &Heart{
		cfg:   cfg,
		tasks: tasks.Child(),
		done:  done,
		left:  time.Duration(cfg.TimeLimitSeconds) * time.Second,
	}
}

func (h *Heart) Score() int { return h.score }

func (h *Heart) TimeLeft() time.Duration { return h.left }

func (h *Heart) Start() {
	if h.started {
		return
	}
	h.started = true
	h.tasks.Every(heartResolution, func() {
		h.left -= heartResolution
		if h.left <= 0 {
			h.left = 0
			h.end(h.score >= h.cfg.TargetCount)
		}
	})
}

// Tap counts one hit on a moving heart.
func (h *Heart) Tap() error {
	if h.finished {
		return ErrFinished
	}
	if !h.started {
		return ErrWrongPhase
	}
	h.score++
	if h.score >= h.cfg.TargetCount {
		h.end(true)
	}
	return nil
}

func (h *Heart) Stop() {
	h.tasks.Close()
}

func (h *Heart) end(success bool) {
	if h.finished {
		return
	}
	h.finished = true
	h.tasks.Close()
	if h.done != nil {
		h.done(success)
	}
}
