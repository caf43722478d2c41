package regime

import "testing"

func TestSelectorStartsInRange(t *testing.T) {
	s := NewSelector(25, 3)
	if s.Current() != ModeRange {
		t.Fatalf("initial regime = %v, want RANGE", s.Current())
	}
}

func TestSelectorHysteresis(t *testing.T) {
	s := NewSelector(25, 3)

	steps := []struct {
		adx  float64
		want Mode
	}{
		{10, ModeRange},
		{24.9, ModeRange}, // below threshold, stays RANGE
		{25, ModeTrend},   // at threshold, enters TREND
		{23, ModeTrend},   // dead zone [22, 25), keeps TREND
		{22, ModeTrend},   // still in dead zone
		{21.9, ModeRange}, // below threshold-buffer, back to RANGE
		{24, ModeRange},   // dead zone again, keeps RANGE
		{30, ModeTrend},
	}
	for i, st := range steps {
		if got := s.Update(st.adx, OverrideAuto); got != st.want {
			t.Errorf("step %d: Update(%v) = %v, want %v", i, st.adx, got, st.want)
		}
	}
}

func TestSelectorNoFlappingAroundThreshold(t *testing.T) {
	s := NewSelector(25, 3)

	// ADX bouncing between just below and just above the threshold must flip
	// the regime at most once (RANGE -> TREND) and then hold it.
	flips := 0
	prev := s.Current()
	for i := 0; i < 20; i++ {
		adx := 24.5
		if i%2 == 1 {
			adx = 25.5
		}
		got := s.Update(adx, OverrideAuto)
		if got != prev {
			flips++
			prev = got
		}
	}
	if flips > 1 {
		t.Errorf("regime flipped %d times around the threshold, want at most 1", flips)
	}
	if prev != ModeTrend {
		t.Errorf("final regime = %v, want TREND", prev)
	}
}

func TestSelectorOverride(t *testing.T) {
	s := NewSelector(25, 3)

	if got := s.Update(40, OverrideRange); got != ModeRange {
		t.Errorf("forced RANGE with adx=40: got %v", got)
	}
	if got := s.Update(5, OverrideTrend); got != ModeTrend {
		t.Errorf("forced TREND with adx=5: got %v", got)
	}

	// Override must not disturb the hysteresis state: after two forced calls
	// the automatic regime is still the initial RANGE.
	if got := s.Update(23, OverrideAuto); got != ModeRange {
		t.Errorf("after overrides, Update(23, AUTO) = %v, want RANGE", got)
	}
}
