// Package tree implements CART decision trees for regression.
package tree

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/YuminosukeSato/craftcans/core/model"
	"github.com/YuminosukeSato/craftcans/core/parallel"
	"github.com/YuminosukeSato/craftcans/metrics"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&DecisionTreeRegressor{})
}

// 行数がこれを超えると予測を並列化する
const predictParallelThreshold = 1000

// CriterionSquaredError is the only split criterion supported.
const CriterionSquaredError = "squared_error"

// LeafIndex marks the absent child of a leaf node.
const LeafIndex = -1

// 分割とみなす最小の特徴量差（scikit-learn の FEATURE_THRESHOLD 相当）
const featureThreshold = 1e-7

// Node is one entry of the flattened tree. Internal nodes send x[Feature] <=
// Threshold to Left, everything else to Right.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64 // 平均目的変数
	Impurity  float64 // ノード内の分散
	NSamples  int
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Left == LeafIndex }

// DecisionTreeRegressor は二乗誤差を最小化するCART回帰木
type DecisionTreeRegressor struct {
	State *model.StateManager

	Criterion       string
	MaxDepth        int // 0 は無制限
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 は全特徴量
	RandomState     int64

	// Nodes は学習済みの木。Nodes[0] が根
	Nodes       []Node
	Importances []float64
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithCriterion sets the split criterion. Only "squared_error" is accepted by Fit.
func WithCriterion(c string) Option {
	return func(t *DecisionTreeRegressor) { t.Criterion = c }
}

// WithMaxDepth limits the depth of the tree. 0 grows until leaves are pure.
func WithMaxDepth(d int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxDepth = d }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are drawn at each split. 0 means all.
func WithMaxFeatures(k int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxFeatures = k }
}

// WithRandomState seeds the feature permutation at each split.
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}

// NewDecisionTreeRegressor creates a regressor with scikit-learn defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		Criterion:       CriterionSquaredError,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dataset is a column-major copy of a training matrix. Forests build it once
// and share it between trees.
type Dataset struct {
	Cols [][]float64
	Y    []float64
}

// NewDataset copies X and the n×1 target y into column-major storage.
func NewDataset(X, y mat.Matrix) (*Dataset, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("tree.NewDataset", "empty data", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != r {
		return nil, errors.NewDimensionError("tree.NewDataset", r, yr, 0)
	}
	if yc != 1 {
		return nil, errors.NewDimensionError("tree.NewDataset", 1, yc, 1)
	}
	if err := errors.CheckMatrix("tree.NewDataset", X, r, c); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("tree.NewDataset", y, r, 1); err != nil {
		return nil, err
	}

	ds := &Dataset{Cols: make([][]float64, c), Y: mat.Col(nil, 0, y)}
	for j := 0; j < c; j++ {
		ds.Cols[j] = mat.Col(nil, j, X)
	}
	return ds, nil
}

// NSamples returns the number of rows.
func (d *Dataset) NSamples() int { return len(d.Y) }

// NFeatures returns the number of columns.
func (d *Dataset) NFeatures() int { return len(d.Cols) }

// Fit grows the tree on every row of X.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	ds, err := NewDataset(X, y)
	if err != nil {
		return err
	}
	return t.FitDataset(ds, nil)
}

// FitDataset grows the tree on the rows listed in indices. Repeated indices
// act as sample weights, which is how bootstrap samples are passed in.
// A nil indices slice uses every row once.
func (t *DecisionTreeRegressor) FitDataset(ds *Dataset, indices []int) error {
	if err := t.validate(); err != nil {
		return err
	}
	n := ds.NSamples()
	if indices == nil {
		indices = make([]int, n)
		for i := range indices {
			indices[i] = i
		}
	}
	if len(indices) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}

	b := &builder{
		tree:  t,
		ds:    ds,
		rnd:   rand.New(rand.NewSource(t.RandomState)),
		imp:   make([]float64, ds.NFeatures()),
		order: make([]int, len(indices)),
	}
	idx := append([]int(nil), indices...)

	t.Nodes = t.Nodes[:0]
	b.grow(idx, 0)

	var total float64
	for _, v := range b.imp {
		total += v
	}
	if total > 0 {
		for j := range b.imp {
			b.imp[j] /= total
		}
	}
	t.Importances = b.imp

	t.State.SetDimensions(ds.NFeatures(), len(indices))
	t.State.SetFitted()
	return nil
}

func (t *DecisionTreeRegressor) validate() error {
	if t.Criterion != CriterionSquaredError {
		return errors.NewValidationError("criterion", "only squared_error is supported", t.Criterion)
	}
	if t.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", t.MinSamplesLeaf)
	}
	if t.MaxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be >= 0", t.MaxFeatures)
	}
	return nil
}

type builder struct {
	tree  *DecisionTreeRegressor
	ds    *Dataset
	rnd   *rand.Rand
	imp   []float64
	order []int
}

type split struct {
	feature   int
	threshold float64
	pos       int // idx[:pos] goes left after sorting by feature
	proxy     float64
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	t := b.tree
	n := len(idx)

	var sum, sumSq float64
	for _, i := range idx {
		v := b.ds.Y[i]
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	impurity := math.Max(sumSq/float64(n)-mean*mean, 0)

	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		Feature:  LeafIndex,
		Left:     LeafIndex,
		Right:    LeafIndex,
		Value:    mean,
		Impurity: impurity,
		NSamples: n,
	})

	if (t.MaxDepth > 0 && depth >= t.MaxDepth) ||
		n < t.MinSamplesSplit ||
		n < 2*t.MinSamplesLeaf ||
		impurity <= featureThreshold*featureThreshold {
		return id
	}

	best, ok := b.bestSplit(idx, sum)
	if !ok {
		return id
	}

	// best.pos はソート済みの順序に対する位置なので並べ直す
	b.sortBy(idx, best.feature)
	left, right := idx[:best.pos], idx[best.pos:]

	leftID := b.grow(left, depth+1)
	rightID := b.grow(right, depth+1)

	node := &t.Nodes[id]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = leftID
	node.Right = rightID

	b.imp[best.feature] += float64(n)*impurity -
		float64(len(left))*t.Nodes[leftID].Impurity -
		float64(len(right))*t.Nodes[rightID].Impurity
	return id
}

func (b *builder) sortBy(idx []int, feature int) {
	col := b.ds.Cols[feature]
	sort.SliceStable(idx, func(a, c int) bool { return col[idx[a]] < col[idx[c]] })
}

// bestSplit scans features in a random order and keeps the split with the
// largest sum_l²/n_l + sum_r²/n_r, which is equivalent to the largest drop
// in squared error.
func (b *builder) bestSplit(idx []int, total float64) (split, bool) {
	t := b.tree
	n := len(idx)
	nFeatures := b.ds.NFeatures()
	maxFeatures := t.MaxFeatures
	if maxFeatures == 0 || maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}

	best := split{proxy: math.Inf(-1)}
	found := false
	visited := 0
	order := b.order[:n]

	for _, f := range b.rnd.Perm(nFeatures) {
		// scikit-learn と同様に定数特徴量は max_features に数えない
		if visited >= maxFeatures && found {
			break
		}
		col := b.ds.Cols[f]

		lo, hi := col[idx[0]], col[idx[0]]
		for _, i := range idx[1:] {
			v := col[i]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi <= lo+featureThreshold {
			continue
		}
		visited++

		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return col[order[a]] < col[order[c]] })

		var sumLeft float64
		for pos := 1; pos < n; pos++ {
			sumLeft += b.ds.Y[order[pos-1]]
			if pos < t.MinSamplesLeaf || n-pos < t.MinSamplesLeaf {
				continue
			}
			prev, next := col[order[pos-1]], col[order[pos]]
			if next <= prev+featureThreshold {
				continue
			}
			sumRight := total - sumLeft
			proxy := sumLeft*sumLeft/float64(pos) + sumRight*sumRight/float64(n-pos)
			if proxy > best.proxy {
				threshold := prev/2 + next/2
				if threshold == next || math.IsInf(threshold, 0) {
					threshold = prev
				}
				best = split{feature: f, threshold: threshold, pos: pos, proxy: proxy}
				found = true
			}
		}
	}

	if found && best.proxy <= total*total/float64(n) {
		// 不純度が減らない分割は採用しない
		return best, false
	}
	return best, found
}

// Predict returns the mean target of the leaf each row lands in, as an n×1 matrix.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := t.State.CheckFeatures("DecisionTreeRegressor.Predict", c); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			out.Set(i, 0, t.PredictRow(X, i))
		}
	})
	return out, nil
}

// PredictRow walks row i of X down the tree without allocating. The caller
// is responsible for the fitted and dimension checks.
func (t *DecisionTreeRegressor) PredictRow(X mat.Matrix, i int) float64 {
	id := 0
	for {
		node := t.Nodes[id]
		if node.IsLeaf() {
			return node.Value
		}
		if X.At(i, node.Feature) <= node.Threshold {
			id = node.Left
		} else {
			id = node.Right
		}
	}
}

// Score returns R² of the predictions against y.
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances returns the normalized total impurity decrease per feature.
func (t *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if err := t.State.RequireFitted("DecisionTreeRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), t.Importances...), nil
}

// GetDepth returns the depth of the fitted tree. A single leaf has depth 0.
func (t *DecisionTreeRegressor) GetDepth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(id int) int
	walk = func(id int) int {
		node := t.Nodes[id]
		if node.IsLeaf() {
			return 0
		}
		l, r := walk(node.Left), walk(node.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// GetNLeaves returns the number of leaves.
func (t *DecisionTreeRegressor) GetNLeaves() int {
	count := 0
	for _, node := range t.Nodes {
		if node.IsLeaf() {
			count++
		}
	}
	return count
}

// NodeCount returns the total number of nodes.
func (t *DecisionTreeRegressor) NodeCount() int { return len(t.Nodes) }

// GetParams returns the hyperparameters using scikit-learn names.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         t.Criterion,
		"max_depth":         t.MaxDepth,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
		"max_features":      t.MaxFeatures,
		"random_state":      t.RandomState,
	}
}

// SetParams updates hyperparameters and discards any fitted tree.
func (t *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "criterion":
			t.Criterion, err = model.StringParam(k, v)
		case "max_depth":
			t.MaxDepth, err = model.IntParam(k, v)
		case "min_samples_split":
			t.MinSamplesSplit, err = model.IntParam(k, v)
		case "min_samples_leaf":
			t.MinSamplesLeaf, err = model.IntParam(k, v)
		case "max_features":
			t.MaxFeatures, err = model.IntParam(k, v)
		case "random_state":
			t.RandomState, err = model.Int64Param(k, v)
		default:
			err = errors.NewValidationError(k, "unknown DecisionTreeRegressor parameter", v)
		}
		if err != nil {
			return err
		}
	}
	t.Nodes = nil
	t.Importances = nil
	t.State.Reset()
	return nil
}

// Clone returns an unfitted tree with the same hyperparameters.
func (t *DecisionTreeRegressor) Clone() model.Component {
	return NewDecisionTreeRegressor(
		WithCriterion(t.Criterion),
		WithMaxDepth(t.MaxDepth),
		WithMinSamplesSplit(t.MinSamplesSplit),
		WithMinSamplesLeaf(t.MinSamplesLeaf),
		WithMaxFeatures(t.MaxFeatures),
		WithRandomState(t.RandomState),
	)
}

func (t *DecisionTreeRegressor) String() string {
	var args []string
	if t.MaxDepth != 0 {
		args = append(args, fmt.Sprintf("max_depth=%d", t.MaxDepth))
	}
	if t.MinSamplesSplit != 2 {
		args = append(args, fmt.Sprintf("min_samples_split=%d", t.MinSamplesSplit))
	}
	if t.MinSamplesLeaf != 1 {
		args = append(args, fmt.Sprintf("min_samples_leaf=%d", t.MinSamplesLeaf))
	}
	if t.MaxFeatures != 0 {
		args = append(args, fmt.Sprintf("max_features=%d", t.MaxFeatures))
	}
	if t.RandomState != 0 {
		args = append(args, fmt.Sprintf("random_state=%d", t.RandomState))
	}
	return "DecisionTreeRegressor(" + strings.Join(args, ", ") + ")"
}
