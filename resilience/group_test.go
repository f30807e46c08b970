package resilience

import (
	"sync"
	"testing"
	"time"
)

func TestGroup_DefaultsApply(t *testing.T) {
	g := NewGroup(BulkheadConfig{MaxConcurrent: 4, MaxQueue: 8, QueueTimeout: time.Second})

	b := g.Get("echo")
	if b == nil {
		t.Fatal("Get returned nil for an enabled group")
	}
	m := b.Metrics()
	if m.MaxConcurrent != 4 || m.MaxQueue != 8 {
		t.Errorf("metrics = %+v, want group defaults", m)
	}
}

func TestGroup_PerMethodOverride(t *testing.T) {
	g := NewGroup(BulkheadConfig{})
	g.Configure("heavy", BulkheadConfig{MaxConcurrent: 1, MaxQueue: 1, QueueTimeout: time.Second})

	if m := g.Get("heavy").Metrics(); m.MaxConcurrent != 1 || m.MaxQueue != 1 {
		t.Errorf("heavy metrics = %+v, want override", m)
	}
	if m := g.Get("light").Metrics(); m.MaxConcurrent != 10 {
		t.Errorf("light metrics = %+v, want defaults", m)
	}
}

func TestGroup_SameMethodSameBulkhead(t *testing.T) {
	g := NewGroup(BulkheadConfig{})

	var wg sync.WaitGroup
	got := make([]*Bulkhead, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = g.Get("echo")
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(got); i++ {
		if got[i] != got[0] {
			t.Fatal("concurrent Get returned distinct bulkheads for one method")
		}
	}
}

func TestGroup_Disabled(t *testing.T) {
	g := NewGroup(BulkheadConfig{})
	g.Disable()

	if b := g.Get("echo"); b != nil {
		t.Error("disabled group returned a bulkhead")
	}
	if snap := g.Snapshot(); len(snap) != 0 {
		t.Errorf("disabled snapshot = %v, want empty", snap)
	}
}

func TestGroup_Snapshot(t *testing.T) {
	g := NewGroup(BulkheadConfig{})
	g.Get("a")
	g.Get("b")

	snap := g.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(snap))
	}
}
