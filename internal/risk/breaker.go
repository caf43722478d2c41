package risk

// CircuitBreaker halts trading for the session once the realized daily loss
// reaches the limit. The limit is fixed at construction from the starting
// balance, so a shrinking balance does not shrink the allowance mid-session.
type CircuitBreaker struct {
	limit   float64
	tripped bool
}

// NewCircuitBreaker derives the loss limit as a fraction of the starting
// balance, with an absolute floor so tiny accounts are not stopped out by
// fee-sized losses.
func NewCircuitBreaker(balance, fraction, floor float64) *CircuitBreaker {
	limit := balance * fraction
	if limit < floor {
		limit = floor
	}
	return &CircuitBreaker{limit: limit}
}

// Check feeds the current realized daily PnL and reports whether the breaker
// is tripped. Once tripped it stays tripped.
func (b *CircuitBreaker) Check(dailyPnL float64) bool {
	if b.tripped {
		return true
	}
	if dailyPnL <= -b.limit {
		b.tripped = true
	}
	return b.tripped
}

// Tripped reports whether the breaker has fired.
func (b *CircuitBreaker) Tripped() bool { return b.tripped }

// Limit returns the absolute daily loss allowance in quote currency.
func (b *CircuitBreaker) Limit() float64 { return b.limit }
