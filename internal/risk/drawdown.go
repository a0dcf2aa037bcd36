package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/stormsniper/engine/internal/observ"
)

// DrawdownState is the kill-switch position of the whole strategy.
type DrawdownState string

const (
	StateActive      DrawdownState = "active"
	StateSizeReduced DrawdownState = "size_reduced"
	StatePaused      DrawdownState = "paused"
	StateShutdown    DrawdownState = "shutdown"
)

// DrawdownConfig tunes the loss-reaction ladder.
type DrawdownConfig struct {
	LossReductionFactor    float64       `yaml:"loss_reduction_factor"`
	PauseAfterConsecLosses int           `yaml:"pause_after_consec_losses"`
	PauseDuration          time.Duration `yaml:"pause_duration"`
	DailyStopLossPct       float64       `yaml:"daily_stop_loss_pct"`
	WeeklyStopLossPct      float64       `yaml:"weekly_stop_loss_pct"`
}

func DefaultDrawdownConfig() DrawdownConfig {
	return DrawdownConfig{
		LossReductionFactor:    0.7,
		PauseAfterConsecLosses: 2,
		PauseDuration:          24 * time.Hour,
		DailyStopLossPct:       6,
		WeeklyStopLossPct:      12,
	}
}

// DrawdownStatus is the evaluated state plus the size multiplier every
// downstream sizing decision must honor. SizeMultiplier is 0 whenever the
// state is paused or shutdown.
type DrawdownStatus struct {
	State          DrawdownState `json:"state"`
	SizeMultiplier float64       `json:"size_multiplier"`
	Reason         string        `json:"reason"`
	ResumeAt       time.Time     `json:"resume_at,omitempty"`
}

// Losses are the running loss percentages the portfolio tracks. Positive
// values are losses; a profitable day reports 0.
type Losses struct {
	DailyLossPct  float64
	WeeklyLossPct float64
}

// DrawdownManager runs the kill-switch state machine. RecordTrade feeds it
// closed-trade outcomes; Evaluate resolves the current state with the fixed
// precedence shutdown > pause(consecutive) > pause(daily) > size-reduced >
// active.
type DrawdownManager struct {
	mu          sync.Mutex
	cfg         DrawdownConfig
	loc         *time.Location
	consecutive int
	pausedUntil time.Time
}

func NewDrawdownManager(cfg DrawdownConfig, loc *time.Location) *DrawdownManager {
	def := DefaultDrawdownConfig()
	if cfg.LossReductionFactor <= 0 {
		cfg.LossReductionFactor = def.LossReductionFactor
	}
	if cfg.PauseAfterConsecLosses <= 0 {
		cfg.PauseAfterConsecLosses = def.PauseAfterConsecLosses
	}
	if cfg.PauseDuration <= 0 {
		cfg.PauseDuration = def.PauseDuration
	}
	if cfg.DailyStopLossPct <= 0 {
		cfg.DailyStopLossPct = def.DailyStopLossPct
	}
	if cfg.WeeklyStopLossPct <= 0 {
		cfg.WeeklyStopLossPct = def.WeeklyStopLossPct
	}
	if loc == nil {
		loc = time.Local
	}
	return &DrawdownManager{cfg: cfg, loc: loc}
}

// RecordTrade updates the consecutive-loss counter after a closed trade.
// A win clears the counter and any consecutive-loss pause immediately.
func (m *DrawdownManager) RecordTrade(won bool, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if won {
		m.consecutive = 0
		m.pausedUntil = time.Time{}
		return
	}
	m.consecutive++
	if m.consecutive >= m.cfg.PauseAfterConsecLosses {
		m.pausedUntil = now.Add(m.cfg.PauseDuration)
	}
}

// ConsecutiveLosses reports the current streak, for status output.
func (m *DrawdownManager) ConsecutiveLosses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutive
}

// Evaluate resolves the state machine against the current losses. Called at
// the start of every scan cycle and after every closed trade.
func (m *DrawdownManager) Evaluate(losses Losses, now time.Time) DrawdownStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	// An expired consecutive-loss pause releases the streak.
	if !m.pausedUntil.IsZero() && !now.Before(m.pausedUntil) {
		m.pausedUntil = time.Time{}
		m.consecutive = 0
	}

	status := m.resolve(losses, now)

	observ.SetGauge("size_multiplier_current", status.SizeMultiplier, nil)
	paused := 0.0
	if status.State == StatePaused || status.State == StateShutdown {
		paused = 1.0
	}
	observ.SetGauge("drawdown_paused", paused, nil)

	return status
}

func (m *DrawdownManager) resolve(losses Losses, now time.Time) DrawdownStatus {
	switch {
	case losses.WeeklyLossPct >= m.cfg.WeeklyStopLossPct:
		return DrawdownStatus{
			State:          StateShutdown,
			SizeMultiplier: 0,
			Reason:         fmt.Sprintf("shutdown: weekly loss %.1f%% at or above %.1f%% limit", losses.WeeklyLossPct, m.cfg.WeeklyStopLossPct),
			ResumeAt:       nextWeekStart(now, m.loc),
		}
	case !m.pausedUntil.IsZero():
		return DrawdownStatus{
			State:          StatePaused,
			SizeMultiplier: 0,
			Reason:         fmt.Sprintf("paused: %d consecutive losses", m.consecutive),
			ResumeAt:       m.pausedUntil,
		}
	case losses.DailyLossPct >= m.cfg.DailyStopLossPct:
		return DrawdownStatus{
			State:          StatePaused,
			SizeMultiplier: 0,
			Reason:         fmt.Sprintf("paused: daily loss %.1f%% at or above %.1f%% limit", losses.DailyLossPct, m.cfg.DailyStopLossPct),
			ResumeAt:       nextMidnight(now, m.loc),
		}
	case m.consecutive >= 1:
		return DrawdownStatus{
			State:          StateSizeReduced,
			SizeMultiplier: m.cfg.LossReductionFactor,
			Reason:         fmt.Sprintf("size reduced to %.0f%% after %d consecutive loss(es)", m.cfg.LossReductionFactor*100, m.consecutive),
		}
	default:
		return DrawdownStatus{State: StateActive, SizeMultiplier: 1.0}
	}
}

func nextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

// nextWeekStart is the upcoming Monday midnight in the local zone.
func nextWeekStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	days := (int(time.Monday) - int(local.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return time.Date(local.Year(), local.Month(), local.Day()+days, 0, 0, 0, 0, loc)
}
