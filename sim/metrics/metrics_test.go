package metrics

import "testing"

func TestCalculatePercentile_Median(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	if got := CalculatePercentile(data, 50); got != 3 {
		t.Fatalf("p50 = %v, want 3", got)
	}
}

func TestCalculatePercentile_EmptyIsZero(t *testing.T) {
	if got := CalculatePercentile(nil, 99); got != 0 {
		t.Fatalf("percentile of empty data = %v, want 0", got)
	}
}

func TestMetrics_ResetClearsCountersAndLatencies(t *testing.T) {
	m := &Metrics{}
	m.Ops = 5
	m.AddLatency(10)
	m.AddLatency(20)
	m.Reset()
	if m.Ops != 0 {
		t.Fatalf("Ops after Reset = %d, want 0", m.Ops)
	}
	if got := m.Percentile(50); got != 0 {
		t.Fatalf("Percentile after Reset = %v, want 0", got)
	}
}

func TestMetrics_AddLatencyThenPercentile(t *testing.T) {
	m := &Metrics{}
	for _, v := range []float64{10, 20, 30, 40, 50} {
		m.AddLatency(v)
	}
	if got := m.Percentile(0); got != 10 {
		t.Fatalf("p0 = %v, want 10", got)
	}
	if got := m.Percentile(100); got != 50 {
		t.Fatalf("p100 = %v, want 50", got)
	}
}
