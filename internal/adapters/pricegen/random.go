package pricegen

import (
	"math/rand"
	"sync"
	"time"
)

// Random draws a uniform fluctuation factor in [1-f, 1+f) and applies it to the current price.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a generator. A zero seed uses the current time.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// NextPrice implements ports.PriceGenerator.
func (r *Random) NextPrice(currentPrice, maxFluctuation float64) float64 {
	if maxFluctuation < 0 {
		maxFluctuation = 0
	}
	if maxFluctuation >= 1 {
		maxFluctuation = 0.99
	}
	r.mu.Lock()
	u := r.rng.Float64()
	r.mu.Unlock()
	factor := 1 + (u*2*maxFluctuation - maxFluctuation)
	return currentPrice * factor
}
