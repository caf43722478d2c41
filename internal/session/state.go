package session

import (
	"sync"
	"time"

	"github.com/Alias1177/ZeroEmotion/internal/regime"
	"github.com/Alias1177/ZeroEmotion/models"
)

// State is the shared view between the trading loop and the Telegram
// listener. The loop writes after every cycle, handlers read snapshots.
// All access goes through the mutex.
type State struct {
	mu sync.Mutex

	symbol    string
	live      bool
	startedAt time.Time

	running  bool
	override regime.Override

	balance  float64
	dailyPnL float64

	lastPrice float64
	rsi       float64
	adx       float64
	mode      regime.Mode
	strategy  string

	position *models.Position
}

// Snapshot is a consistent copy of the state for read-only consumers.
type Snapshot struct {
	Symbol    string
	Live      bool
	StartedAt time.Time
	Running   bool
	Override  regime.Override
	Balance   float64
	DailyPnL  float64
	LastPrice float64
	RSI       float64
	ADX       float64
	Mode      regime.Mode
	Strategy  string
	Position  *models.Position
}

func NewState(symbol string, live bool) *State {
	return &State{
		symbol:    symbol,
		live:      live,
		startedAt: time.Now(),
		running:   true,
		override:  regime.OverrideAuto,
		mode:      regime.ModeRange,
	}
}

// Snapshot returns a copy of everything; the position is cloned so callers
// cannot race with the loop.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pos *models.Position
	if s.position != nil {
		cp := *s.position
		pos = &cp
	}
	return Snapshot{
		Symbol:    s.symbol,
		Live:      s.live,
		StartedAt: s.startedAt,
		Running:   s.running,
		Override:  s.override,
		Balance:   s.balance,
		DailyPnL:  s.dailyPnL,
		LastPrice: s.lastPrice,
		RSI:       s.rsi,
		ADX:       s.adx,
		Mode:      s.mode,
		Strategy:  s.strategy,
		Position:  pos,
	}
}

func (s *State) SetRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *State) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *State) SetOverride(o regime.Override) {
	s.mu.Lock()
	s.override = o
	s.mu.Unlock()
}

func (s *State) Override() regime.Override {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override
}

// AddRealizedPnL folds a closed trade into the daily total and returns the
// new total.
func (s *State) AddRealizedPnL(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyPnL += delta
	return s.dailyPnL
}

func (s *State) DailyPnL() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyPnL
}

// SetMarket records the per-cycle market view shown by /status and /scan.
func (s *State) SetMarket(price, rsi, adx float64, mode regime.Mode, strategy string) {
	s.mu.Lock()
	s.lastPrice = price
	s.rsi = rsi
	s.adx = adx
	s.mode = mode
	s.strategy = strategy
	s.mu.Unlock()
}

func (s *State) SetBalance(v float64) {
	s.mu.Lock()
	s.balance = v
	s.mu.Unlock()
}

// SetPosition stores a copy of the open position, or clears it with nil.
func (s *State) SetPosition(p *models.Position) {
	s.mu.Lock()
	if p == nil {
		s.position = nil
	} else {
		cp := *p
		s.position = &cp
	}
	s.mu.Unlock()
}
