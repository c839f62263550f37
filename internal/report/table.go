// Package report renders the walkthrough's tables and charts.
//
// Every Render function returns plain text; ANSI colour is added only to
// section headings and only when stdout is a terminal and NO_COLOR is unset.
package report

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/YuminosukeSato/craftcans/frame"
	"github.com/YuminosukeSato/craftcans/internal/store"
	"github.com/YuminosukeSato/craftcans/sklearn/model_selection"
	"github.com/YuminosukeSato/craftcans/sklearn/pipeline"
)

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorCyan  = "\033[36m"
)

// IsColorEnabled reports whether ANSI colour codes should be emitted.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// Section renders a heading followed by an underline.
func Section(title string) string {
	return "\n" + colorize(colorBold+colorCyan, title) + "\n" +
		strings.Repeat("─", utf8.RuneCountInString(title)) + "\n"
}

// FormatFloat prints v with up to six significant decimals, like pandas.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// renderTable lays out header and rows with tablewriter. The first column
// is left-aligned, the rest right-aligned.
func renderTable(header []string, rows [][]string) string {
	sb := &strings.Builder{}
	table := tablewriter.NewWriter(sb)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorders(tablewriter.Border{
		Left:   false,
		Right:  false,
		Top:    true,
		Bottom: true,
	})

	align := make([]int, len(header))
	for i := range align {
		align[i] = tablewriter.ALIGN_RIGHT
	}
	if len(align) > 0 {
		align[0] = tablewriter.ALIGN_LEFT
	}
	table.SetColumnAlignment(align)

	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
	return sb.String()
}

// RenderInfo renders DataFrame.info(): one row per column with its dtype,
// non-null and null counts.
func RenderInfo(info frame.Info) string {
	rows := make([][]string, len(info.Columns))
	for i, c := range info.Columns {
		rows[i] = []string{c.Name, c.Dtype, strconv.Itoa(c.NonNull), strconv.Itoa(info.Rows - c.NonNull)}
	}
	out := fmt.Sprintf("%d entries, %d columns\n", info.Rows, len(info.Columns))
	return out + renderTable([]string{"column", "dtype", "non-null", "null"}, rows)
}

// RenderFrame renders every row of f with a leading row index.
func RenderFrame(f *frame.Frame) string {
	records := f.Records()
	if len(records) == 0 {
		return "Empty frame.\n"
	}
	header := append([]string{""}, records[0]...)
	rows := make([][]string, 0, len(records)-1)
	for i, r := range records[1:] {
		rows = append(rows, append([]string{strconv.Itoa(i)}, r...))
	}
	return renderTable(header, rows)
}

// RenderDescribe renders the output of Frame.Describe, formatting the
// numbers to six significant digits.
func RenderDescribe(f *frame.Frame) string {
	records := f.Records()
	if len(records) == 0 {
		return "No numeric columns.\n"
	}
	rows := make([][]string, 0, len(records)-1)
	for _, r := range records[1:] {
		row := []string{r[0]}
		for _, cell := range r[1:] {
			if v, err := strconv.ParseFloat(cell, 64); err == nil {
				cell = FormatFloat(v)
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	header := append([]string{""}, records[0][1:]...)
	return renderTable(header, rows)
}

// RenderValueCounts renders the first k counts (all when k <= 0).
func RenderValueCounts(column string, counts []frame.ValueCount, k int) string {
	if k > 0 && k < len(counts) {
		counts = counts[:k]
	}
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.Value, strconv.Itoa(c.Count)}
	}
	return renderTable([]string{column, "count"}, rows)
}

// RenderShapes prints the shapes of the four split matrices.
func RenderShapes(tt *model_selection.TrainTest) string {
	shape := func(r, c int) string { return fmt.Sprintf("(%d, %d)", r, c) }
	xr, xc := tt.XTrain.Dims()
	tr, tc := tt.XTest.Dims()
	yr, _ := tt.YTrain.Dims()
	sr, _ := tt.YTest.Dims()
	rows := [][]string{
		{"X_train", shape(xr, xc)},
		{"X_test", shape(tr, tc)},
		{"y_train", fmt.Sprintf("(%d,)", yr)},
		{"y_test", fmt.Sprintf("(%d,)", sr)},
	}
	return renderTable([]string{"matrix", "shape"}, rows)
}

// RenderCVResults renders the cross-validation table transposed: one row
// per result field, one column per candidate.
func RenderCVResults(r *model_selection.CVResults) string {
	n := r.NCandidates()
	header := []string{""}
	for i := 0; i < n; i++ {
		header = append(header, strconv.Itoa(i))
	}

	floats := func(label string, values []float64) []string {
		row := []string{label}
		for _, v := range values {
			row = append(row, FormatFloat(v))
		}
		return row
	}

	rows := [][]string{
		floats("mean_fit_time", r.MeanFitTime),
		floats("std_fit_time", r.StdFitTime),
		floats("mean_score_time", r.MeanScoreTime),
		floats("std_score_time", r.StdScoreTime),
	}
	for _, name := range r.ParamNames() {
		row := []string{"param_" + name}
		for _, p := range r.Params {
			v, ok := p[name]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, model_selection.FormatParam(v))
		}
		rows = append(rows, row)
	}
	params := []string{"params"}
	for _, p := range r.Params {
		params = append(params, model_selection.FormatParams(p))
	}
	rows = append(rows, params)

	nSplits := 0
	if n > 0 {
		nSplits = len(r.SplitTestScores[0])
	}
	for s := 0; s < nSplits; s++ {
		row := []string{fmt.Sprintf("split%d_test_score", s)}
		for c := 0; c < n; c++ {
			row = append(row, FormatFloat(r.SplitTestScores[c][s]))
		}
		rows = append(rows, row)
	}
	rows = append(rows,
		floats("mean_test_score", r.MeanTestScore),
		floats("std_test_score", r.StdTestScore),
	)
	rank := []string{"rank_test_score"}
	for _, v := range r.RankTestScore {
		rank = append(rank, strconv.Itoa(v))
	}
	rows = append(rows, rank)
	return renderTable(header, rows)
}

// RenderSearch summarizes a fitted grid search.
func RenderSearch(g *model_selection.GridSearchCV) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "search:          %v\n", g)
	fmt.Fprintf(&sb, "best estimator:  %v\n", g.BestEstimator)
	fmt.Fprintf(&sb, "best params:     %s\n", model_selection.FormatParams(g.BestParams))
	fmt.Fprintf(&sb, "best CV score:   %s\n", FormatFloat(g.BestScore))
	if g.RefitTime > 0 {
		fmt.Fprintf(&sb, "refit time:      %s\n", g.RefitTime.Round(1e6))
	}
	return sb.String()
}

// RenderNamedSteps lists pipeline steps in order.
func RenderNamedSteps(p *pipeline.Pipeline) string {
	rows := make([][]string, len(p.Steps))
	for i, step := range p.Steps {
		rows[i] = []string{step.Name, fmt.Sprint(step.Estimator)}
	}
	return renderTable([]string{"step", "estimator"}, rows)
}

// Importance pairs a feature name with its importance.
type Importance struct {
	Feature string
	Value   float64
}

// TopImportances zips names with values and returns the k largest,
// ties broken by descending name. k <= 0 returns them all.
func TopImportances(names []string, values []float64, k int) []Importance {
	n := min(len(names), len(values))
	out := make([]Importance, n)
	for i := 0; i < n; i++ {
		out[i] = Importance{Feature: names[i], Value: values[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Feature > out[j].Feature
	})
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

// RenderImportances renders ranked importances.
func RenderImportances(imps []Importance) string {
	rows := make([][]string, len(imps))
	for i, imp := range imps {
		rows[i] = []string{strconv.Itoa(i + 1), imp.Feature, FormatFloat(imp.Value)}
	}
	return renderTable([]string{"rank", "feature", "importance"}, rows)
}

// ModelScore is one model's held-out metrics.
type ModelScore struct {
	Model string
	R2    float64
	MSE   float64
}

// RenderScores renders held-out metrics, one row per model.
func RenderScores(scores []ModelScore) string {
	rows := make([][]string, len(scores))
	for i, s := range scores {
		rows[i] = []string{s.Model, FormatFloat(s.R2), FormatFloat(s.MSE), FormatFloat(math.Sqrt(s.MSE))}
	}
	return renderTable([]string{"model", "R²", "MSE", "RMSE"}, rows)
}

// RenderRuns renders the stored run history.
func RenderRuns(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Dataset,
			model_selection.FormatParams(r.BestParams),
			FormatFloat(r.BestCVScore),
			FormatFloat(r.TestR2),
			FormatFloat(r.TestMSE),
		}
	}
	return renderTable([]string{"id", "created", "dataset", "best params", "cv score", "test R²", "test MSE"}, rows)
}
