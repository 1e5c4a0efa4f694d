// Package playback replays historical snapshot sequences through the same
// consumers that handle live refreshes, driven by a timer instead of fetches.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexboard/internal/market"
)

// State is the engine lifecycle position.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

const defaultSpeed = 1.0 // frames per second

var ErrNotInPlayback = errors.New("not in playback")

// HistoryProvider supplies the historical dates and per-day snapshot
// sequences the engine replays.
type HistoryProvider interface {
	ListDates(ctx context.Context, symbol string) ([]string, error)
	LoadDay(ctx context.Context, symbol, date string) ([]market.Snapshot, error)
}

// Session is the replay position. Index is the single source of truth for
// what is displayed.
type Session struct {
	Date      string            `json:"date"`
	Snapshots []market.Snapshot `json:"-"`
	Index     int               `json:"index"`
	Playing   bool              `json:"playing"`
	Speed     float64           `json:"speed"`
	Length    int               `json:"length"`
}

// Engine is the playback state machine. It owns its session exclusively;
// frames are handed to the onFrame consumer, and entering/exiting playback
// signals the live-refresh collaborator through the hooks.
type Engine struct {
	mu      sync.Mutex
	state   State
	session Session
	stopCh  chan struct{}

	provider HistoryProvider
	onFrame  func(market.Snapshot)
	onEnter  func()
	onExit   func()
	logger   *zap.Logger
}

func NewEngine(provider HistoryProvider, onFrame func(market.Snapshot), onEnter, onExit func(), logger *zap.Logger) *Engine {
	return &Engine{
		state:    StateIdle,
		session:  Session{Speed: defaultSpeed},
		provider: provider,
		onFrame:  onFrame,
		onEnter:  onEnter,
		onExit:   onExit,
		logger:   logger,
	}
}

// Enter suspends live refresh and lists the available historical dates.
// With no dates the engine stays in a disabled Ready state: no session is
// loaded, so stepping and playing are no-ops.
func (e *Engine) Enter(ctx context.Context, symbol string) ([]string, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil, errors.New("already in playback")
	}
	e.state = StateLoading
	e.mu.Unlock()

	if e.onEnter != nil {
		e.onEnter()
	}

	dates, err := e.provider.ListDates(ctx, symbol)

	e.mu.Lock()
	e.state = StateReady
	e.session = Session{Speed: e.session.Speed}
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("listing playback dates failed", zap.String("symbol", symbol), zap.Error(err))
		return nil, err
	}
	e.logger.Info("playback entered", zap.String("symbol", symbol), zap.Int("dates", len(dates)))
	return dates, nil
}

// Load fetches one day's snapshots and seeks to the first frame.
func (e *Engine) Load(ctx context.Context, symbol, date string) error {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return ErrNotInPlayback
	}
	e.stopTickerLocked()
	e.state = StateLoading
	e.mu.Unlock()

	snaps, err := e.provider.LoadDay(ctx, symbol, date)

	e.mu.Lock()
	e.state = StateReady
	if err != nil {
		e.session = Session{Speed: e.session.Speed}
		e.mu.Unlock()
		return err
	}
	e.session = Session{
		Date:      date,
		Snapshots: snaps,
		Speed:     e.session.Speed,
		Length:    len(snaps),
	}
	frame, ok := e.currentLocked()
	e.mu.Unlock()

	e.logger.Info("playback day loaded", zap.String("date", date), zap.Int("snapshots", len(snaps)))
	if ok {
		e.onFrame(frame)
	}
	return nil
}

// Seek moves to an absolute index, clamped to the loaded range. A no-op
// with no data.
func (e *Engine) Seek(index int) {
	e.moveTo(func(s Session) int { return index })
}

// Step moves relative to the current index, clamped, never wrapping.
func (e *Engine) Step(delta int) {
	e.moveTo(func(s Session) int { return s.Index + delta })
}

func (e *Engine) moveTo(target func(Session) int) {
	e.mu.Lock()
	if len(e.session.Snapshots) == 0 {
		e.mu.Unlock()
		return
	}
	idx := clampIndex(target(e.session), len(e.session.Snapshots))
	changed := idx != e.session.Index
	e.session.Index = idx
	frame, ok := e.currentLocked()
	e.mu.Unlock()

	if changed && ok {
		e.onFrame(frame)
	}
}

// Play starts the replay timer. No-op when already playing or nothing is
// loaded.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePlaying || len(e.session.Snapshots) == 0 {
		return
	}
	if e.state != StateReady && e.state != StatePaused {
		return
	}
	e.startTickerLocked()
}

// Pause stops the replay timer, keeping the current index.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePlaying {
		return
	}
	e.stopTickerLocked()
	e.state = StatePaused
}

// SetSpeed changes the frame rate. While playing the timer restarts at the
// new period without disturbing the index.
func (e *Engine) SetSpeed(fps float64) {
	if fps <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Speed = fps
	if e.state == StatePlaying {
		e.stopTickerLocked()
		e.startTickerLocked()
	}
}

// Exit cancels any timer, clears the session, and restores the live
// collaborator, which immediately forces one fetch.
func (e *Engine) Exit() {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return
	}
	e.stopTickerLocked()
	e.state = StateIdle
	e.session = Session{Speed: e.session.Speed}
	e.mu.Unlock()

	e.logger.Info("playback exited")
	if e.onExit != nil {
		e.onExit()
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns a copy of the session position without the snapshot slice.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	s.Snapshots = nil
	return s
}

// startTickerLocked spawns the tick loop. Callers hold e.mu.
func (e *Engine) startTickerLocked() {
	period := time.Duration(float64(time.Second) / e.session.Speed)
	stop := make(chan struct{})
	e.stopCh = stop
	e.state = StatePlaying
	e.session.Playing = true

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !e.tick() {
					return
				}
			}
		}
	}()
}

// stopTickerLocked cancels the tick loop if one is running. Callers hold e.mu.
func (e *Engine) stopTickerLocked() {
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
	e.session.Playing = false
}

// tick advances one frame. Reaching the last index transitions to Paused
// exactly once; there is no wraparound.
func (e *Engine) tick() bool {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return false
	}
	last := len(e.session.Snapshots) - 1
	if e.session.Index >= last {
		e.stopTickerLocked()
		e.state = StatePaused
		e.mu.Unlock()
		return false
	}
	e.session.Index++
	atEnd := e.session.Index >= last
	if atEnd {
		e.stopTickerLocked()
		e.state = StatePaused
	}
	frame, ok := e.currentLocked()
	e.mu.Unlock()

	if ok {
		e.onFrame(frame)
	}
	return !atEnd
}

// currentLocked returns the displayed frame. Callers hold e.mu.
func (e *Engine) currentLocked() (market.Snapshot, bool) {
	if len(e.session.Snapshots) == 0 {
		return market.Snapshot{}, false
	}
	return e.session.Snapshots[e.session.Index], true
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i > length-1 {
		return length - 1
	}
	return i
}
