package frame

import (
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"
)

// DescribeStats are the row labels of Describe, in order.
var DescribeStats = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// StatColumn names the label column of Describe's result.
const StatColumn = "stat"

// Describe summarizes every numeric column over its observed values: count,
// mean, sample standard deviation, min, quartiles and max. Columns without
// observed values report a count of 0 and NaN elsewhere.
func (f *Frame) Describe() *Frame {
	cols := []series.Series{series.New(DescribeStats, series.String, StatColumn)}
	types := f.df.Types()
	for i, name := range f.df.Names() {
		if types[i] != series.Int && types[i] != series.Float {
			continue
		}
		cols = append(cols, series.New(summarize(f.df.Col(name)), series.Float, name))
	}
	return &Frame{df: dataframe.New(cols...)}
}

func summarize(s series.Series) []float64 {
	var x []float64
	na := isNA(s)
	for i, v := range s.Float() {
		if !na[i] {
			x = append(x, v)
		}
	}
	out := make([]float64, len(DescribeStats))
	out[0] = float64(len(x))
	if len(x) == 0 {
		for i := 1; i < len(out); i++ {
			out[i] = math.NaN()
		}
		return out
	}
	sort.Float64s(x)

	out[1] = stat.Mean(x, nil)
	if len(x) > 1 {
		out[2] = stat.StdDev(x, nil)
	} else {
		out[2] = math.NaN()
	}
	out[3] = x[0]
	out[4] = quantile(x, 0.25)
	out[5] = quantile(x, 0.5)
	out[6] = quantile(x, 0.75)
	out[7] = x[len(x)-1]
	return out
}

// quantile interpolates linearly between closest ranks over sorted x
// (numpy's default "linear" method).
func quantile(sorted []float64, p float64) float64 {
	h := p * float64(len(sorted)-1)
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}
