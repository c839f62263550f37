package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMedian(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"skips nan", []float64{nan, 5, nan, 1}, 3},
		{"single", []float64{7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.values); got != tt.want {
				t.Errorf("Median(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}

	if got := Median([]float64{nan, nan}); !math.IsNaN(got) {
		t.Errorf("Median of all-NaN = %v, want NaN", got)
	}
}

func TestSimpleImputer_Strategies(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(4, 2, []float64{
		1, nan,
		nan, 2,
		3, 4,
		10, 6,
	})

	tests := []struct {
		strategy string
		fill     float64
		want     []float64
	}{
		{StrategyMedian, 0, []float64{3, 4}},
		{StrategyMean, 0, []float64{14.0 / 3.0, 4}},
		{StrategyConstant, -1, []float64{-1, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			imp := NewSimpleImputer(tt.strategy)
			imp.FillValue = tt.fill
			out, err := imp.FitTransform(X)
			if err != nil {
				t.Fatalf("FitTransform failed: %v", err)
			}
			for j, want := range tt.want {
				if math.Abs(imp.Statistics[j]-want) > 1e-12 {
					t.Errorf("statistics[%d] = %v, want %v", j, imp.Statistics[j], want)
				}
			}
			if out.At(1, 0) != imp.Statistics[0] || out.At(0, 1) != imp.Statistics[1] {
				t.Errorf("NaN cells not filled: %v", mat.Formatted(out))
			}
			if out.At(2, 0) != 3 {
				t.Errorf("observed value changed: %v", out.At(2, 0))
			}
			r, c := out.Dims()
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					if math.IsNaN(out.At(i, j)) {
						t.Errorf("NaN remains at (%d,%d)", i, j)
					}
				}
			}
		})
	}
}

func TestSimpleImputer_Errors(t *testing.T) {
	nan := math.NaN()
	if err := NewSimpleImputer("mode").Fit(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if err := NewSimpleImputer(StrategyMedian).Fit(mat.NewDense(2, 1, []float64{nan, nan})); err == nil {
		t.Error("expected error for an all-NaN column")
	}
	if _, err := NewSimpleImputer(StrategyMedian).Transform(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("expected NotFittedError")
	}
}

func TestOneHotEncoder(t *testing.T) {
	enc := NewOneHotEncoder()
	out, err := enc.FitTransform([]string{"stout", "ipa", "lager", "ipa"})
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	wantCats := []string{"ipa", "lager", "stout"}
	for i, c := range wantCats {
		if enc.Categories[i] != c {
			t.Fatalf("categories = %v, want %v", enc.Categories, wantCats)
		}
	}
	want := mat.NewDense(4, 3, []float64{
		0, 0, 1,
		1, 0, 0,
		0, 1, 0,
		1, 0, 0,
	})
	if !mat.Equal(out, want) {
		t.Errorf("encoded =\n%v", mat.Formatted(out))
	}

	names := enc.FeatureNames("style")
	if names[0] != "style_ipa" || names[2] != "style_stout" {
		t.Errorf("feature names = %v", names)
	}

	if _, err := enc.Transform([]string{"porter"}); err == nil {
		t.Error("expected error for unknown category")
	}
	enc.HandleUnknown = HandleUnknownIgnore
	row, err := enc.Transform([]string{"porter"})
	if err != nil {
		t.Fatalf("ignore mode failed: %v", err)
	}
	if mat.Sum(row) != 0 {
		t.Errorf("unknown category should encode to zeros, got %v", mat.Formatted(row))
	}
}
