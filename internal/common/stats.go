package common

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Stats holds atomic counters for model and cache telemetry
type Stats struct {
	BinsEvaluated         uint64 // Bins passed through the flux regression
	TabulatedFallbacks    uint64 // Probabilities read from the dF-bin table
	InterpolatedFallbacks uint64 // Probabilities averaged from neighbouring dF bins
	GridsProduced         uint64 // Completed hemisphere sweeps
	WindowFetches         uint64 // Solar wind windows fetched from a source
	WindowHits            uint64 // Cache lookups served by a live window

	// Internal state for reporter
	running  atomic.Bool
	stopCh   chan struct{}
	logger   *zap.SugaredLogger
	lastBins uint64
	lastTime time.Time
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{
		stopCh: make(chan struct{}),
	}
}

func (s *Stats) AddBins(count uint64) { atomic.AddUint64(&s.BinsEvaluated, count) }
func (s *Stats) AddTabulatedFallback() { atomic.AddUint64(&s.TabulatedFallbacks, 1) }
func (s *Stats) AddInterpolatedFallback() { atomic.AddUint64(&s.InterpolatedFallbacks, 1) }
func (s *Stats) AddGrid() { atomic.AddUint64(&s.GridsProduced, 1) }
func (s *Stats) AddWindowFetch() { atomic.AddUint64(&s.WindowFetches, 1) }
func (s *Stats) AddWindowHit() { atomic.AddUint64(&s.WindowHits, 1) }
func (s *Stats) GetBins() uint64 { return atomic.LoadUint64(&s.BinsEvaluated) }
func (s *Stats) GetTabulatedFallbacks() uint64 { return atomic.LoadUint64(&s.TabulatedFallbacks) }
func (s *Stats) GetInterpolatedFallbacks() uint64 { return atomic.LoadUint64(&s.InterpolatedFallbacks) }
func (s *Stats) GetGrids() uint64 { return atomic.LoadUint64(&s.GridsProduced) }
func (s *Stats) GetWindowFetches() uint64 { return atomic.LoadUint64(&s.WindowFetches) }
func (s *Stats) GetWindowHits() uint64 { return atomic.LoadUint64(&s.WindowHits) }

// StartReporter starts a background goroutine that logs throughput
// every interval until StopReporter is called.
func (s *Stats) StartReporter(logger *zap.SugaredLogger, interval time.Duration) {
	if s.running.Load() {
		return // Already running
	}

	s.running.Store(true)
	s.stopCh = make(chan struct{})
	s.logger = logger
	s.lastTime = time.Now()
	s.lastBins = s.GetBins()

	go s.reporterLoop(interval, s.stopCh)
}

// StopReporter stops the background reporter goroutine
func (s *Stats) StopReporter() {
	if !s.running.Load() {
		return
	}

	s.running.Store(false)
	close(s.stopCh)
}

func (s *Stats) reporterLoop(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.printStatus()
		}
	}
}

func (s *Stats) printStatus() {
	now := time.Now()
	elapsed := now.Sub(s.lastTime).Seconds()
	if elapsed < 0.001 {
		return
	}

	bins := s.GetBins()
	kbps := float64(bins-s.lastBins) / 1000 / elapsed

	s.logger.Infow("progress",
		"bins_k_per_sec", kbps,
		"grids", s.GetGrids(),
		"window_fetches", s.GetWindowFetches(),
		"window_hits", s.GetWindowHits(),
	)

	s.lastBins = bins
	s.lastTime = now
}

// Summary returns the counters as alternating key/value pairs for Infow.
func (s *Stats) Summary() []interface{} {
	return []interface{}{
		"bins", s.GetBins(),
		"grids", s.GetGrids(),
		"tabulated_fallbacks", s.GetTabulatedFallbacks(),
		"interpolated_fallbacks", s.GetInterpolatedFallbacks(),
		"window_fetches", s.GetWindowFetches(),
		"window_hits", s.GetWindowHits(),
	}
}
