package pipeline

import "testing"

func TestEstimateBounce_SignChange(t *testing.T) {
	// Ball descends (y grows), bounces, then rises: first +/- transition in
	// the differences is at index 3.
	y := []float64{0, 1, 2, 3, 2, 1, 0, 1}
	got := EstimateBounce(y)
	if got.Index != 3 {
		t.Errorf("Index = %d; want 3", got.Index)
	}
	if got.Confidence != 0.6 {
		t.Errorf("Confidence = %v; want 0.6", got.Confidence)
	}
}

func TestEstimateBounce_ShortSequence(t *testing.T) {
	got := EstimateBounce([]float64{5, 6, 7})
	if got.Index != 2 || got.Confidence != 0.1 {
		t.Errorf("got %+v; want index 2, confidence 0.1", got)
	}

	got = EstimateBounce(nil)
	if got.Index != 0 || got.Confidence != 0.1 {
		t.Errorf("empty: got %+v; want index 0, confidence 0.1", got)
	}
}

func TestEstimateBounce_NoSignChange(t *testing.T) {
	y := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}
	got := EstimateBounce(y)
	if got.Index != 3 || got.Confidence != 0.2 {
		t.Errorf("got %+v; want index n/3=3, confidence 0.2", got)
	}
}

func TestEstimateImpact(t *testing.T) {
	got := EstimateImpact(10)
	if got.Index != 9 || got.Confidence != 0.5 {
		t.Errorf("got %+v; want index 9, confidence 0.5", got)
	}

	got = EstimateImpact(0)
	if got.Index != 0 || got.Confidence != 0 {
		t.Errorf("empty: got %+v", got)
	}
}

func TestOverrideEvent(t *testing.T) {
	got := OverrideEvent(7)
	if got.Index != 7 || got.Confidence != 1.0 {
		t.Errorf("got %+v; want index 7, confidence 1.0", got)
	}
}

func TestClampIndex(t *testing.T) {
	cases := []struct {
		i, n, want int
	}{
		{5, 10, 5},
		{-1, 10, 0},
		{10, 10, 9},
		{0, 0, 0},
		{3, -1, 0},
	}
	for _, c := range cases {
		if got := ClampIndex(c.i, c.n); got != c.want {
			t.Errorf("ClampIndex(%d, %d) = %d; want %d", c.i, c.n, got, c.want)
		}
	}
}
