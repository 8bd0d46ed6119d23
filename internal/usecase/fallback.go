package usecase

import (
	"math/rand/v2"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	fallbackSpacing  = time.Minute
	fallbackPriceMin = 60000.0
	fallbackPriceMax = 70000.0
	fallbackMessage  = "synthetic data: upstream unavailable"
)

// FallbackGenerator produces shape-compatible synthetic signals for when the upstream fails.
type FallbackGenerator struct {
	mu  sync.Mutex
	now func() time.Time
	rnd *rand.Rand
}

// FallbackOption configures FallbackGenerator.
type FallbackOption func(*FallbackGenerator)

// WithFallbackClock overrides the clock.
func WithFallbackClock(now func() time.Time) FallbackOption {
	return func(g *FallbackGenerator) { g.now = now }
}

// WithFallbackRand overrides the random source.
func WithFallbackRand(r *rand.Rand) FallbackOption {
	return func(g *FallbackGenerator) { g.rnd = r }
}

// NewFallbackGenerator creates a generator seeded from the runtime source.
func NewFallbackGenerator(opts ...FallbackOption) *FallbackGenerator {
	g := &FallbackGenerator{
		now: time.Now,
		rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns exactly count signals, newest first, one minute apart ending at now.
func (g *FallbackGenerator) Generate(dataset models.Dataset, count int) []models.Signal {
	if count <= 0 {
		return []models.Signal{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	out := make([]models.Signal, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.one(dataset, now.Add(-time.Duration(i)*fallbackSpacing)))
	}
	return out
}

func (g *FallbackGenerator) one(dataset models.Dataset, ts time.Time) models.Signal {
	price := round2(g.between(fallbackPriceMin, fallbackPriceMax))
	if price >= fallbackPriceMax {
		price = fallbackPriceMin
	}
	band := price * g.between(0.01, 0.03)
	trend := float64(g.rnd.IntN(3) - 1)

	s := models.Signal{
		ID:           "synthetic-" + uuid.NewString(),
		Timestamp:    ts,
		Dataset:      dataset,
		Decision:     []models.Decision{models.DecisionSell, models.DecisionBuy, models.DecisionWait}[g.rnd.IntN(3)],
		Price:        price,
		Strength:     round2(g.rnd.Float64()),
		MLConfidence: round2(g.rnd.Float64()),
		Message:      fallbackMessage,
		Synthetic:    true,
		Indicators: models.Indicators{
			RSI:              g.ptr(0, 100),
			MACD:             g.ptr(-200, 200),
			SMAShort:         ptr(round2(price * g.between(0.99, 1.01))),
			SMALong:          ptr(round2(price * g.between(0.98, 1.02))),
			BollingerUpper:   ptr(round2(price + band)),
			BollingerLower:   ptr(round2(price - band)),
			StochasticK:      g.ptr(0, 100),
			StochasticD:      g.ptr(0, 100),
			ADX:              g.ptr(10, 50),
			ATR:              g.ptr(100, 1500),
			VolumeMultiplier: g.ptr(0.5, 3),
			BuySellRatio:     g.ptr(0.5, 2),
			CryptoVIX:        g.ptr(20, 100),
			Trend1h:          &trend,
		},
	}
	decorate(&s)
	return s
}

// between returns a value in [lo, hi).
func (g *FallbackGenerator) between(lo, hi float64) float64 {
	return lo + g.rnd.Float64()*(hi-lo)
}

func (g *FallbackGenerator) ptr(lo, hi float64) *float64 {
	return ptr(round2(g.between(lo, hi)))
}

func ptr(f float64) *float64 { return &f }

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Truncate(2).InexactFloat64()
}
