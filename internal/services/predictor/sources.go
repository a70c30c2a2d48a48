package predictor

import (
	"math/rand/v2"
	"sync"
	"time"

	"StockPredictor/internal/domain/models"
)

// RandomFundamentals draws the synthetic overlay:
// marketCap = price*(U*1e6+5e5), pe = U*50+10, dividend = U*5.
type RandomFundamentals struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomFundamentals returns a source on the global generator.
func NewRandomFundamentals() *RandomFundamentals {
	return &RandomFundamentals{}
}

// NewSeededFundamentals returns a reproducible source.
func NewSeededFundamentals(seed uint64) *RandomFundamentals {
	return &RandomFundamentals{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *RandomFundamentals) float() float64 {
	if r.rng == nil {
		return rand.Float64()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *RandomFundamentals) Fundamentals(p models.HistoricalPoint) models.Fundamentals {
	return models.Fundamentals{
		MarketCap: p.Price * (r.float()*1e6 + 5e5),
		PE:        r.float()*50 + 10,
		Dividend:  r.float() * 5,
	}
}

// FixedFundamentals returns the same overlay for every point.
type FixedFundamentals models.Fundamentals

func (f FixedFundamentals) Fundamentals(models.HistoricalPoint) models.Fundamentals {
	return models.Fundamentals(f)
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
