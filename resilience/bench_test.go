package resilience

import (
	"context"
	"testing"
	"time"
)

func BenchmarkCircuitBreaker_Closed(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	op := func(ctx context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(context.Background(), op)
	}
}

func BenchmarkCircuitBreaker_OpenFastFail(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
	})
	cb.RecordFailure()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Allow()
	}
}

func BenchmarkBulkhead_AcquireRelease(b *testing.B) {
	bh := NewBulkhead("bench", BulkheadConfig{MaxConcurrent: 64})

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := bh.Acquire(context.Background()); err == nil {
				bh.Release()
			}
		}
	})
}

func BenchmarkRegistry_Get(b *testing.B) {
	r := NewRegistry(CircuitBreakerConfig{}, nil)
	r.Get("http://peer:3000")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			r.Get("http://peer:3000")
		}
	})
}
