package observe

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestAggregator_Counters(t *testing.T) {
	a := NewAggregator()

	a.IncRequests()
	a.IncRequests()
	a.IncErrors()
	a.IncRetries()
	a.IncAuthFailures()
	a.IncTimeouts()
	a.IncBreakerTrips()
	a.IncBulkheadRejections()

	s := a.Snapshot()
	if s.RequestCount != 2 {
		t.Errorf("RequestCount = %d, want 2", s.RequestCount)
	}
	if s.ErrorCount != 1 || s.RetryCount != 1 || s.AuthFailures != 1 ||
		s.TimeoutCount != 1 || s.CircuitBreakerTrips != 1 || s.BulkheadRejections != 1 {
		t.Errorf("snapshot = %+v, want all singles", s)
	}
}

func TestAggregator_RunningMean(t *testing.T) {
	a := NewAggregator()

	a.ObserveResponseTime(10 * time.Millisecond)
	a.ObserveResponseTime(20 * time.Millisecond)
	a.ObserveResponseTime(30 * time.Millisecond)

	if got := a.Snapshot().AvgResponseTimeMs; math.Abs(got-20) > 1e-9 {
		t.Errorf("AvgResponseTimeMs = %v, want 20", got)
	}
}

func TestAggregator_MeanFoldFormula(t *testing.T) {
	a := NewAggregator()

	// mean after each sample must equal mean*(n-1)/n + sample/n
	samples := []time.Duration{5 * time.Millisecond, 15 * time.Millisecond, 100 * time.Millisecond}
	want := 0.0
	for i, s := range samples {
		a.ObserveResponseTime(s)
		n := float64(i + 1)
		want = want*(n-1)/n + float64(s)/float64(time.Millisecond)/n
	}

	if got := a.Snapshot().AvgResponseTimeMs; math.Abs(got-want) > 1e-9 {
		t.Errorf("AvgResponseTimeMs = %v, want %v", got, want)
	}
}

func TestAggregator_Uptime(t *testing.T) {
	a := NewAggregator()
	time.Sleep(5 * time.Millisecond)

	if up := a.Uptime(); up < 5*time.Millisecond {
		t.Errorf("Uptime = %v, want >= 5ms", up)
	}
	if s := a.Snapshot(); s.UptimeMs < 5 {
		t.Errorf("UptimeMs = %d, want >= 5", s.UptimeMs)
	}
}

func TestAggregator_ConcurrentUpdates(t *testing.T) {
	a := NewAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.IncRequests()
				a.ObserveResponseTime(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	s := a.Snapshot()
	if s.RequestCount != 800 {
		t.Errorf("RequestCount = %d, want 800", s.RequestCount)
	}
	if math.Abs(s.AvgResponseTimeMs-10) > 1e-6 {
		t.Errorf("AvgResponseTimeMs = %v, want 10", s.AvgResponseTimeMs)
	}
}
