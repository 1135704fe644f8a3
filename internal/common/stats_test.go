package common

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatsCounters(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddBins(100)
			s.AddTabulatedFallback()
			s.AddInterpolatedFallback()
			s.AddGrid()
			s.AddWindowFetch()
			s.AddWindowHit()
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(800), s.GetBins())
	assert.Equal(t, uint64(8), s.GetTabulatedFallbacks())
	assert.Equal(t, uint64(8), s.GetInterpolatedFallbacks())
	assert.Equal(t, uint64(8), s.GetGrids())
	assert.Equal(t, uint64(8), s.GetWindowFetches())
	assert.Equal(t, uint64(8), s.GetWindowHits())

	summary := s.Summary()
	assert.Len(t, summary, 12)
	assert.Equal(t, "bins", summary[0])
	assert.Equal(t, uint64(800), summary[1])
}

func TestStatsReporter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewStats()
	s.AddBins(1000)

	s.StartReporter(zap.New(core).Sugar(), 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("progress").Len() > 0
	}, time.Second, 5*time.Millisecond)
	s.StopReporter()
	s.StopReporter()
}

func TestStatsReporterRestart(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewStats()

	s.StartReporter(zap.New(core).Sugar(), 10*time.Millisecond)
	s.StopReporter()

	s.StartReporter(zap.New(core).Sugar(), 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("progress").Len() > 0
	}, time.Second, 5*time.Millisecond)
	assert.NotPanics(t, s.StopReporter)
}
