// Package frame loads delimited files into gota data frames and provides
// the pandas-style inspection and cleaning steps used before modelling.
package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/YuminosukeSato/craftcans/pkg/log"
	"github.com/YuminosukeSato/craftcans/preprocessing"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"
)

// NAValues are the cell spellings read as missing.
var NAValues = []string{"", "NA", "NaN", "<nil>"}

// Frame wraps a gota DataFrame with the operations of the walkthrough.
// Methods that change the data return a new Frame.
type Frame struct {
	df dataframe.DataFrame
}

// New wraps an existing DataFrame.
func New(df dataframe.DataFrame) (*Frame, error) {
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "dataframe")
	}
	return &Frame{df: df}, nil
}

// DataFrame returns the underlying gota DataFrame.
func (f *Frame) DataFrame() dataframe.DataFrame { return f.df }

// ReadOptions tunes ReadCSV.
type ReadOptions struct {
	// Types forces column types by name; other columns are detected.
	Types map[string]series.Type
	// Comma is the field delimiter, ',' when zero.
	Comma rune
}

// ReadCSV loads a delimited file with a header row. A blank header cell is
// renamed "Unnamed: <index>", the name pandas gives a written-out index.
func ReadCSV(path string, opts ReadOptions) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	f, err := Read(file, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	log.Component("frame").Info("table loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		log.SamplesKey, f.df.Nrow(),
		log.FeaturesKey, f.df.Ncol(),
	)
	return f, nil
}

// Read is ReadCSV over an io.Reader.
func Read(r io.Reader, opts ReadOptions) (*Frame, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	if len(records) == 0 {
		return nil, errors.NewModelError("frame.Read", "empty data", errors.ErrEmptyData)
	}
	for i, name := range records[0] {
		if strings.TrimSpace(name) == "" {
			records[0][i] = fmt.Sprintf("Unnamed: %d", i)
		}
	}

	loadOpts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(NAValues),
	}
	if len(opts.Types) > 0 {
		loadOpts = append(loadOpts, dataframe.WithTypes(opts.Types))
	}
	return New(dataframe.LoadRecords(records, loadOpts...))
}

// Shape returns (rows, columns).
func (f *Frame) Shape() (int, int) { return f.df.Nrow(), f.df.Ncol() }

// Names returns the column names in order.
func (f *Frame) Names() []string { return f.df.Names() }

// HasColumn reports whether name is a column.
func (f *Frame) HasColumn(name string) bool {
	for _, n := range f.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func (f *Frame) require(op string, names ...string) error {
	for _, name := range names {
		if !f.HasColumn(name) {
			return errors.NewColumnNotFoundError(op, name, f.df.Names())
		}
	}
	return nil
}

// Column returns a copy of the named series.
func (f *Frame) Column(name string) (series.Series, error) {
	if err := f.require("Column", name); err != nil {
		return series.Series{}, err
	}
	return f.df.Col(name).Copy(), nil
}

// Head returns the first n rows. A negative n returns all but the last |n|
// rows, as pandas does.
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = max(f.df.Nrow()+n, 0)
	}
	if n > f.df.Nrow() {
		n = f.df.Nrow()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return &Frame{df: f.df.Subset(idx)}
}

// Records returns the header followed by every row rendered as strings.
// Missing cells render as "NaN".
func (f *Frame) Records() [][]string { return f.df.Records() }

// Dtype names a gota type the way pandas prints it.
func Dtype(t series.Type) string {
	switch t {
	case series.Int:
		return "int64"
	case series.Float:
		return "float64"
	case series.Bool:
		return "bool"
	}
	return "object"
}

// ColumnInfo is one row of Info.
type ColumnInfo struct {
	Name    string
	Dtype   string
	NonNull int
}

// Info summarizes the frame like DataFrame.info().
type Info struct {
	Rows    int
	Columns []ColumnInfo
}

// Info returns per-column dtype and non-null counts.
func (f *Frame) Info() Info {
	info := Info{Rows: f.df.Nrow()}
	types := f.df.Types()
	for i, name := range f.df.Names() {
		info.Columns = append(info.Columns, ColumnInfo{
			Name:    name,
			Dtype:   Dtype(types[i]),
			NonNull: f.df.Nrow() - countNaN(f.df.Col(name)),
		})
	}
	return info
}

// NullCounts returns the number of missing cells per column.
func (f *Frame) NullCounts() map[string]int {
	out := make(map[string]int, f.df.Ncol())
	for _, name := range f.df.Names() {
		out[name] = countNaN(f.df.Col(name))
	}
	return out
}

// TotalNulls returns the number of missing cells in the frame.
func (f *Frame) TotalNulls() int {
	total := 0
	for _, n := range f.NullCounts() {
		total += n
	}
	return total
}

func countNaN(s series.Series) int {
	n := 0
	for _, na := range isNA(s) {
		if na {
			n++
		}
	}
	return n
}

func isNA(s series.Series) []bool {
	na := s.IsNaN()
	if s.Type() == series.Float {
		for i, v := range s.Float() {
			if math.IsNaN(v) {
				na[i] = true
			}
		}
	}
	return na
}

// ValueCount is a distinct value and how often it occurs.
type ValueCount struct {
	Value string
	Count int
}

// ValueCounts counts the non-missing values of a column, most frequent
// first, ties broken by value.
func (f *Frame) ValueCounts(column string) ([]ValueCount, error) {
	if err := f.require("ValueCounts", column); err != nil {
		return nil, err
	}
	s := f.df.Col(column)
	na := isNA(s)
	counts := make(map[string]int)
	for i, v := range s.Records() {
		if !na[i] {
			counts[v]++
		}
	}

	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// DropColumns removes the named columns. Every name must exist.
func (f *Frame) DropColumns(names ...string) (*Frame, error) {
	if err := f.require("DropColumns", names...); err != nil {
		return nil, err
	}
	return New(f.df.Drop(names))
}

// FillNAMedian replaces missing cells of a numeric column with the median of
// its observed values. The column becomes float64. The median is returned.
func (f *Frame) FillNAMedian(column string) (*Frame, float64, error) {
	if err := f.require("FillNAMedian", column); err != nil {
		return nil, 0, err
	}
	s := f.df.Col(column)
	if t := s.Type(); t != series.Int && t != series.Float {
		return nil, 0, errors.NewValueError("FillNAMedian",
			fmt.Sprintf("column %q has dtype %s, want a numeric column", column, Dtype(t)))
	}

	values := s.Float()
	if len(values) == 0 {
		return nil, 0, errors.NewModelError("FillNAMedian", "empty data", errors.ErrEmptyData)
	}
	filled := 0
	for _, v := range values {
		if math.IsNaN(v) {
			filled++
		}
	}

	imputer := preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)
	imputed, err := imputer.FitTransform(mat.NewDense(len(values), 1, values))
	if err != nil {
		return nil, 0, errors.NewValueError("FillNAMedian",
			fmt.Sprintf("column %q has no observed values", column))
	}
	median := imputer.Statistics[0]
	values = mat.Col(nil, 0, imputed)

	out, err := New(f.df.Mutate(series.New(values, series.Float, column)))
	if err != nil {
		return nil, 0, err
	}
	log.Component("frame").Debug("filled missing values",
		log.ColumnKey, column,
		log.FillValueKey, median,
		"filled", filled,
	)
	return out, median, nil
}

// DropNA removes every row holding at least one missing cell and reports
// how many rows were dropped.
func (f *Frame) DropNA() (*Frame, int, error) {
	n := f.df.Nrow()
	drop := make([]bool, n)
	for _, name := range f.df.Names() {
		for i, na := range isNA(f.df.Col(name)) {
			if na {
				drop[i] = true
			}
		}
	}
	keep := make([]int, 0, n)
	for i, d := range drop {
		if !d {
			keep = append(keep, i)
		}
	}
	if len(keep) == n {
		return f, 0, nil
	}
	if len(keep) == 0 {
		return nil, n, errors.NewModelError("DropNA", "every row has a missing value", errors.ErrEmptyData)
	}
	out, err := New(f.df.Subset(keep))
	if err != nil {
		return nil, 0, err
	}
	return out, n - len(keep), nil
}

// GetDummies one-hot encodes the named columns. The remaining columns keep
// their order and come first, followed by "<column>_<category>" indicator
// columns with categories sorted. Missing cells encode as all zeros.
func (f *Frame) GetDummies(columns ...string) (*Frame, error) {
	if err := f.require("GetDummies", columns...); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return f, nil
	}

	var dummies []series.Series
	for _, column := range columns {
		s := f.df.Col(column)
		na := isNA(s)
		values := s.Records()
		var observed []string
		for i, v := range values {
			if !na[i] {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			continue
		}

		enc := preprocessing.NewOneHotEncoder()
		enc.HandleUnknown = preprocessing.HandleUnknownIgnore
		if err := enc.Fit(observed); err != nil {
			return nil, errors.Wrapf(err, "encode %s", column)
		}
		for i := range values {
			if na[i] {
				// 未知カテゴリとして全ゼロ行にする
				values[i] = "\x00"
			}
		}
		encoded, err := enc.Transform(values)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s", column)
		}
		for j, name := range enc.FeatureNames(column) {
			col := make([]int, len(values))
			for i := range col {
				col[i] = int(encoded.At(i, j))
			}
			dummies = append(dummies, series.New(col, series.Int, name))
		}
	}

	base := f.df.Drop(columns)
	if len(dummies) == 0 {
		return New(base)
	}
	if base.Ncol() == 0 {
		return New(dataframe.New(dummies...))
	}
	return New(base.CBind(dataframe.New(dummies...)))
}

// XY splits the frame into a feature matrix and the target column. Every
// column must be numeric (int, float or bool) and free of missing cells.
func (f *Frame) XY(target string) (*mat.Dense, *mat.VecDense, []string, error) {
	if err := f.require("XY", target); err != nil {
		return nil, nil, nil, err
	}
	n := f.df.Nrow()
	if n == 0 {
		return nil, nil, nil, errors.NewModelError("XY", "empty data", errors.ErrEmptyData)
	}

	var features []string
	for _, name := range f.df.Names() {
		if name != target {
			features = append(features, name)
		}
	}
	if len(features) == 0 {
		return nil, nil, nil, errors.NewValueError("XY", "no feature columns besides "+target)
	}

	yVals, err := numericColumn(f.df.Col(target))
	if err != nil {
		return nil, nil, nil, err
	}
	X := mat.NewDense(n, len(features), nil)
	for j, name := range features {
		vals, err := numericColumn(f.df.Col(name))
		if err != nil {
			return nil, nil, nil, err
		}
		X.SetCol(j, vals)
	}
	return X, mat.NewVecDense(n, yVals), features, nil
}

func numericColumn(s series.Series) ([]float64, error) {
	switch s.Type() {
	case series.Int, series.Float, series.Bool:
	default:
		return nil, errors.NewValueError("XY",
			fmt.Sprintf("column %q has dtype %s; encode it before modelling", s.Name, Dtype(s.Type())))
	}
	vals := s.Float()
	for i, na := range isNA(s) {
		if na {
			return nil, errors.NewMissingValueError("XY", s.Name, i)
		}
	}
	return vals, nil
}

// String renders the frame with gota's formatter.
func (f *Frame) String() string { return f.df.String() }
