package montecarlo

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
)

const (
	// DefaultIterations is the number of resampled trials.
	DefaultIterations = 1000
	// DefaultBinWidth is one percentage point.
	DefaultBinWidth = 1.0
	// chunkSize is the number of trials drawn from one random stream.
	chunkSize = 256
)

// Config holds configuration for the resampler.
type Config struct {
	Iterations int
	BinWidth   float64 // In percentage points
	Seed       uint64
	Workers    int // <= 0 uses GOMAXPROCS
}

// DefaultConfig returns 1000 iterations in 1pp bins.
func DefaultConfig() Config {
	return Config{Iterations: DefaultIterations, BinWidth: DefaultBinWidth, Seed: 1}
}

// Bin is one bucket of the resampled total-return distribution.
type Bin struct {
	Center    float64 `json:"binCenter"` // Total return in percent
	Frequency float64 `json:"frequency"` // count / Iterations
	Count     int     `json:"count"`
}

// Resample draws len(trades) per-trade returns with replacement for each trial,
// compounds them from 1.0 and buckets the total returns (in percent).
// Trials are split into fixed chunks, each with its own PCG stream derived from
// the seed, so the distribution is identical for a given seed regardless of scheduling.
func Resample(ctx context.Context, trades []domain.Trade, cfg Config) ([]Bin, error) {
	outcomes, err := Outcomes(ctx, domain.TradeReturns(trades), cfg)
	if err != nil {
		return nil, err
	}
	return Histogram(outcomes, cfg.BinWidth), nil
}

// Outcomes returns the total return percentage of every trial, in trial order.
// A trial whose compounded return overflows fails the whole run with ports.ErrDataError.
func Outcomes(ctx context.Context, returns []float64, cfg Config) ([]float64, error) {
	if len(returns) == 0 {
		return nil, fmt.Errorf("%w: no trades to resample", ports.ErrInsufficientData)
	}
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("%w: iterations must be positive, got %d", ports.ErrConfigurationError, cfg.Iterations)
	}
	if cfg.BinWidth < 0 || math.IsNaN(cfg.BinWidth) {
		return nil, fmt.Errorf("%w: invalid bin width %v", ports.ErrConfigurationError, cfg.BinWidth)
	}
	for i, r := range returns {
		if r <= -1 || math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("%w: trade %d has return %v", ports.ErrDataError, i, r)
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]float64, cfg.Iterations)
	chunks := (cfg.Iterations + chunkSize - 1) / chunkSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c := 0; c < chunks; c++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(c)))
			lo := c * chunkSize
			hi := min(lo+chunkSize, cfg.Iterations)
			for trial := lo; trial < hi; trial++ {
				growth := 1.0
				for range returns {
					growth *= 1 + returns[rng.IntN(len(returns))]
				}
				outcome := (growth - 1) * 100
				if math.IsInf(outcome, 0) || math.IsNaN(outcome) {
					return fmt.Errorf("%w: trial %d compounded to %v", ports.ErrDataError, trial, outcome)
				}
				outcomes[trial] = outcome
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("monte carlo resampling stopped: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("monte carlo resampling stopped: %w", err)
	}
	return outcomes, nil
}

// Histogram buckets outcomes at round(x/width)*width and returns bins sorted by center.
func Histogram(outcomes []float64, width float64) []Bin {
	if width <= 0 {
		width = DefaultBinWidth
	}
	counts := make(map[int64]int)
	for _, x := range outcomes {
		counts[int64(math.Round(x/width))]++
	}

	keys := make([]int64, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	bins := make([]Bin, len(keys))
	for i, k := range keys {
		bins[i] = Bin{
			Center:    float64(k) * width,
			Count:     counts[k],
			Frequency: float64(counts[k]) / float64(len(outcomes)),
		}
	}
	return bins
}

// Stats summarises a resampled distribution.
type Stats struct {
	Mean            float64 `json:"mean"`
	P5              float64 `json:"p5"`
	Median          float64 `json:"median"`
	P95             float64 `json:"p95"`
	ProbabilityLoss float64 `json:"probabilityOfLoss"`
}

// Summarize computes mean, percentiles and probability of a negative total return.
func Summarize(outcomes []float64) Stats {
	if len(outcomes) == 0 {
		return Stats{}
	}
	sorted := make([]float64, len(outcomes))
	copy(sorted, outcomes)
	sort.Float64s(sorted)

	// Running mean so large finite outcomes cannot overflow a sum.
	var mean float64
	losses := 0
	for i, x := range sorted {
		mean += (x - mean) / float64(i+1)
		if x < 0 {
			losses++
		}
	}
	return Stats{
		Mean:            mean,
		P5:              percentile(sorted, 0.05),
		Median:          percentile(sorted, 0.50),
		P95:             percentile(sorted, 0.95),
		ProbabilityLoss: float64(losses) / float64(len(sorted)),
	}
}

// percentile uses the nearest-rank index floor(p*n), clamped to the last element.
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Floor(p * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
