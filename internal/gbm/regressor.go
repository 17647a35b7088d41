package gbm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrShape is returned when inputs disagree on their dimensions.
var ErrShape = errors.New("shape mismatch")

// minGain filters splits whose improvement is rounding noise.
const minGain = 1e-6

// Regressor is a fitted ensemble. It is never modified after Fit returns,
// so concurrent Predict calls are safe.
type Regressor struct {
	Params      Params  `json:"params"`
	BaseScore   float64 `json:"base_score"`
	NumFeatures int     `json:"num_features"`
	Trees       []Tree  `json:"trees"`
}

// Fit trains a regressor on x (one row per sample) and labels y.
func Fit(ctx context.Context, x mat.Matrix, y []float64, p Params) (*Regressor, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrShape)
	}
	if rows != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrShape, rows, len(y))
	}
	for i, v := range y {
		if !finite(v) {
			return nil, fmt.Errorf("label %d is not finite", i)
		}
	}

	columns := make([][]float64, cols)
	for j := range columns {
		columns[j] = mat.Col(nil, j, x)
		for i, v := range columns[j] {
			if !finite(v) {
				return nil, fmt.Errorf("feature %d of row %d is not finite", j, i)
			}
		}
	}

	b := &builder{
		params:  p,
		columns: columns,
		grad:    make([]float64, rows),
		hess:    make([]float64, rows),
	}

	base := stat.Mean(y, nil)
	pred := make([]float64, rows)
	for i := range pred {
		pred[i] = base
	}

	all := make([]int, rows)
	for i := range all {
		all[i] = i
	}
	rng := rand.New(rand.NewSource(p.Seed))
	row := make([]float64, cols)
	trees := make([]Tree, 0, p.Rounds)

	for round := 0; round < p.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range pred {
			b.grad[i] = pred[i] - y[i]
			b.hess[i] = 1
		}

		sample := all
		if p.Subsample < 1 {
			sample = subsample(rng, rows, p.Subsample)
		}

		tree, err := b.build(ctx, sample)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}
		for i := range pred {
			for j := range columns {
				row[j] = columns[j][i]
			}
			pred[i] += tree.predict(row)
		}
		trees = append(trees, tree)
	}

	return &Regressor{
		Params:      p,
		BaseScore:   base,
		NumFeatures: cols,
		Trees:       trees,
	}, nil
}

// Predict returns one prediction per row of x, in row order.
func (m *Regressor) Predict(x mat.Matrix) ([]float64, error) {
	rows, cols := x.Dims()
	if cols != m.NumFeatures {
		return nil, fmt.Errorf("%w: model expects %d features, got %d", ErrShape, m.NumFeatures, cols)
	}
	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := range rows {
		mat.Row(row, i, x)
		out[i] = m.PredictRow(row)
	}
	return out, nil
}

// PredictRow scores a single feature vector of length NumFeatures.
func (m *Regressor) PredictRow(x []float64) float64 {
	score := m.BaseScore
	for i := range m.Trees {
		score += m.Trees[i].predict(x)
	}
	return score
}

// Validate checks the structure of a regressor read from outside, so a
// damaged model fails at load time rather than on the first prediction.
func (m *Regressor) Validate() error {
	if m.NumFeatures <= 0 {
		return errors.New("model has no features")
	}
	if !finite(m.BaseScore) {
		return errors.New("base score is not finite")
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				if !finite(n.Value) {
					return fmt.Errorf("tree %d node %d: leaf value is not finite", ti, ni)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= m.NumFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// children are always stored after their parent
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: child out of range", ti, ni)
			}
		}
	}
	return nil
}

// Depth is the depth of the deepest tree.
func (m *Regressor) Depth() int {
	d := 0
	for i := range m.Trees {
		d = max(d, m.Trees[i].depth())
	}
	return d
}

type builder struct {
	params  Params
	columns [][]float64
	grad    []float64
	hess    []float64
}

type split struct {
	ok        bool
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) build(ctx context.Context, rows []int) (Tree, error) {
	var t Tree
	if _, err := b.grow(ctx, &t, rows, 0); err != nil {
		return Tree{}, err
	}
	return t, nil
}

func (b *builder) grow(ctx context.Context, t *Tree, rows []int, depth int) (int, error) {
	g, h := b.sums(rows)
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Leaf: true, Value: b.weight(g, h)})
	if depth >= b.params.MaxDepth || len(rows) < 2 {
		return idx, nil
	}

	s, err := b.bestSplit(ctx, rows, g, h)
	if err != nil {
		return 0, err
	}
	if !s.ok {
		return idx, nil
	}

	leftRows, rightRows := partition(rows, b.columns[s.feature], s.threshold)
	left, err := b.grow(ctx, t, leftRows, depth+1)
	if err != nil {
		return 0, err
	}
	right, err := b.grow(ctx, t, rightRows, depth+1)
	if err != nil {
		return 0, err
	}
	t.Nodes[idx] = Node{Feature: s.feature, Threshold: s.threshold, Left: left, Right: right}
	return idx, nil
}

// bestSplit searches every feature concurrently. Ties keep the lowest
// feature index so the result does not depend on scheduling.
func (b *builder) bestSplit(ctx context.Context, rows []int, g, h float64) (split, error) {
	found := make([]split, len(b.columns))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.params.workers())
	for f := range b.columns {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			found[f] = b.scan(f, rows, g, h)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return split{}, err
	}

	var best split
	for _, s := range found {
		if s.ok && (!best.ok || s.gain > best.gain) {
			best = s
		}
	}
	return best, nil
}

func (b *builder) scan(f int, rows []int, g, h float64) split {
	col := b.columns[f]
	order := append([]int(nil), rows...)
	sort.SliceStable(order, func(i, j int) bool { return col[order[i]] < col[order[j]] })

	p := b.params
	parent := g * g / (h + p.Lambda)
	var best split
	var gl, hl float64
	for k := 0; k < len(order)-1; k++ {
		r := order[k]
		gl += b.grad[r]
		hl += b.hess[r]

		v, next := col[r], col[order[k+1]]
		if v == next {
			continue
		}
		gr, hr := g-gl, h-hl
		if hl < p.MinChildWeight || hr < p.MinChildWeight {
			continue
		}
		gain := 0.5*(gl*gl/(hl+p.Lambda)+gr*gr/(hr+p.Lambda)-parent) - p.Gamma
		if gain <= minGain {
			continue
		}
		if !best.ok || gain > best.gain {
			best = split{ok: true, feature: f, threshold: midpoint(v, next), gain: gain}
		}
	}
	return best
}

func (b *builder) sums(rows []int) (g, h float64) {
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}
	return g, h
}

func (b *builder) weight(g, h float64) float64 {
	denom := h + b.params.Lambda
	if denom == 0 {
		return 0
	}
	return -g / denom * b.params.LearningRate
}

func partition(rows []int, col []float64, threshold float64) (left, right []int) {
	left = make([]int, 0, len(rows))
	right = make([]int, 0, len(rows))
	for _, r := range rows {
		if col[r] < threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

// midpoint falls back to hi when lo and hi are adjacent floats, keeping
// lo on the left side of the split.
func midpoint(lo, hi float64) float64 {
	m := lo/2 + hi/2
	if m <= lo {
		return hi
	}
	return m
}

func subsample(rng *rand.Rand, n int, frac float64) []int {
	k := max(1, int(math.Round(frac*float64(n))))
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
