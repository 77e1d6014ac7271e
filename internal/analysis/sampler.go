package analysis

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Defaults for the simulated computation.
const (
	DefaultMinDelay    = 5 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultSuccessRate = 0.8
)

// Multiplicative noise band applied to the base score (±15%). The noisy score
// is not clamped afterwards, so values slightly outside [0,1] are expected.
const (
	noiseMin = 0.85
	noiseMax = 1.15
)

// SamplerConfig configures a Sampler. Zero values fall back to the defaults
// above; callers should pass a sanitized config.
type SamplerConfig struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	SuccessRate float64

	// Source is an optional dedicated random source. Tests use a seeded
	// source for deterministic draws; when nil the shared top-level source
	// is used, which is already safe for concurrent use.
	Source *rand.Rand
}

// Sampler draws the randomized parts of one analysis run: how long the
// computation takes, whether it succeeds, and the noise multiplier applied to
// the base score. Safe for concurrent use by many job goroutines.
type Sampler struct {
	minDelay    time.Duration
	maxDelay    time.Duration
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler builds a Sampler, applying defaults for unset fields and
// swapping inverted delay bounds.
func NewSampler(cfg SamplerConfig) *Sampler {
	s := &Sampler{
		minDelay:    cfg.MinDelay,
		maxDelay:    cfg.MaxDelay,
		successRate: cfg.SuccessRate,
		rng:         cfg.Source,
	}
	if s.minDelay <= 0 {
		s.minDelay = DefaultMinDelay
	}
	if s.maxDelay <= 0 {
		s.maxDelay = DefaultMaxDelay
	}
	if s.minDelay > s.maxDelay {
		s.minDelay, s.maxDelay = s.maxDelay, s.minDelay
	}
	if cfg.SuccessRate <= 0 || cfg.SuccessRate > 1 {
		s.successRate = DefaultSuccessRate
	}
	return s
}

// Delay draws the simulated computation time, uniform across
// [MinDelay, MaxDelay].
func (s *Sampler) Delay() time.Duration {
	span := s.maxDelay - s.minDelay
	if span <= 0 {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.float64()*float64(span))
}

// Succeeds draws the success indicator: true with probability SuccessRate.
func (s *Sampler) Succeeds() bool {
	return s.float64() < s.successRate
}

// Noise draws the multiplicative score noise, uniform across
// [0.85, 1.15].
func (s *Sampler) Noise() float64 {
	return noiseMin + s.float64()*(noiseMax-noiseMin)
}

// float64 returns a uniform draw from [0,1). A dedicated source needs the
// mutex; the shared top-level source locks internally.
func (s *Sampler) float64() float64 {
	if s.rng == nil {
		return rand.Float64()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
