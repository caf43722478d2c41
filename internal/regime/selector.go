package regime

// Mode is the market regime the bot trades in.
type Mode string

const (
	ModeTrend Mode = "TREND"
	ModeRange Mode = "RANGE"
)

// Override forces a regime regardless of the ADX reading.
type Override string

const (
	OverrideAuto  Override = "AUTO"
	OverrideTrend Override = "FORCE_TREND"
	OverrideRange Override = "FORCE_RANGE"
)

// Selector decides the active regime from the ADX with hysteresis: entering
// TREND requires adx >= threshold, falling back to RANGE requires adx to drop
// below threshold-buffer. Readings in between keep the current regime, so a
// value oscillating around the threshold cannot flip the regime every bar.
type Selector struct {
	threshold float64
	buffer    float64
	current   Mode
}

// NewSelector returns a selector starting in RANGE, the conservative regime.
func NewSelector(threshold, buffer float64) *Selector {
	return &Selector{
		threshold: threshold,
		buffer:    buffer,
		current:   ModeRange,
	}
}

// Update feeds one ADX reading and returns the regime to trade. A forced
// override wins without touching the hysteresis state, so switching back to
// AUTO resumes from where the automatic selection left off.
func (s *Selector) Update(adx float64, override Override) Mode {
	switch override {
	case OverrideTrend:
		return ModeTrend
	case OverrideRange:
		return ModeRange
	}

	switch {
	case adx >= s.threshold:
		s.current = ModeTrend
	case adx < s.threshold-s.buffer:
		s.current = ModeRange
	}
	return s.current
}

// Current returns the regime from the last automatic update.
func (s *Selector) Current() Mode {
	return s.current
}
