package gbm_test

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/DeafMist/reference-inflation/internal/gbm"
)

// synthetic builds a step-shaped target over two features plus noise.
func synthetic(n int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, 0, n*3)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := rng.Float64() * 10
		b := rng.Float64() * 10
		c := rng.Float64()
		data = append(data, a, b, c)
		y[i] = 3*a + 2*b + 0.1*rng.NormFloat64()
		if a > 5 {
			y[i] += 20
		}
	}
	return mat.NewDense(n, 3, data), y
}

func rmse(pred, y []float64) float64 {
	var s float64
	for i := range y {
		d := pred[i] - y[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(y)))
}

func TestFitReducesError(t *testing.T) {
	x, y := synthetic(400, 1)
	p := gbm.DefaultParams()
	p.Rounds = 50
	p.MaxDepth = 4

	model, err := gbm.Fit(context.Background(), x, y, p)
	require.NoError(t, err)
	require.Len(t, model.Trees, 50)
	require.Equal(t, 3, model.NumFeatures)
	require.LessOrEqual(t, model.Depth(), 4)
	require.NoError(t, model.Validate())

	pred, err := model.Predict(x)
	require.NoError(t, err)
	require.Len(t, pred, 400)

	baseline := make([]float64, len(y))
	for i := range baseline {
		baseline[i] = model.BaseScore
	}
	require.Less(t, rmse(pred, y), rmse(baseline, y)/5)
}

func TestFitIsDeterministicAcrossWorkerCounts(t *testing.T) {
	x, y := synthetic(200, 7)
	p := gbm.DefaultParams()
	p.Rounds = 10
	p.Seed = 42

	p.Workers = 1
	serial, err := gbm.Fit(context.Background(), x, y, p)
	require.NoError(t, err)

	p.Workers = 8
	parallel, err := gbm.Fit(context.Background(), x, y, p)
	require.NoError(t, err)

	require.Equal(t, serial.Trees, parallel.Trees)
	require.Equal(t, serial.BaseScore, parallel.BaseScore)
}

func TestSubsampleUsesSeed(t *testing.T) {
	x, y := synthetic(200, 3)
	p := gbm.DefaultParams()
	p.Rounds = 5
	p.Subsample = 0.5
	p.Seed = 11

	first, err := gbm.Fit(context.Background(), x, y, p)
	require.NoError(t, err)
	second, err := gbm.Fit(context.Background(), x, y, p)
	require.NoError(t, err)
	require.Equal(t, first.Trees, second.Trees)
}

func TestPredictKeepsRowOrder(t *testing.T) {
	x, y := synthetic(100, 5)
	model, err := gbm.Fit(context.Background(), x, y, gbm.DefaultParams())
	require.NoError(t, err)

	all, err := model.Predict(x)
	require.NoError(t, err)
	for i := 0; i < 100; i += 17 {
		require.Equal(t, all[i], model.PredictRow(x.RawRowView(i)))
	}
}

func TestConstantLabelsGiveSingleLeafTrees(t *testing.T) {
	x, _ := synthetic(30, 2)
	y := make([]float64, 30)
	for i := range y {
		y[i] = 7
	}
	model, err := gbm.Fit(context.Background(), x, y, gbm.DefaultParams())
	require.NoError(t, err)
	require.Equal(t, 0, model.Depth())

	pred, err := model.Predict(x)
	require.NoError(t, err)
	for _, v := range pred {
		require.InDelta(t, 7, v, 1e-12)
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	x, y := synthetic(10, 1)
	ctx := context.Background()

	_, err := gbm.Fit(ctx, x, y[:5], gbm.DefaultParams())
	require.ErrorIs(t, err, gbm.ErrShape)

	bad := append([]float64(nil), y...)
	bad[3] = math.NaN()
	_, err = gbm.Fit(ctx, x, bad, gbm.DefaultParams())
	require.Error(t, err)

	p := gbm.DefaultParams()
	p.LearningRate = 0
	_, err = gbm.Fit(ctx, x, y, p)
	require.Error(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = gbm.Fit(canceled, x, y, gbm.DefaultParams())
	require.ErrorIs(t, err, context.Canceled)
}

func TestPredictRejectsWrongWidth(t *testing.T) {
	x, y := synthetic(20, 1)
	model, err := gbm.Fit(context.Background(), x, y, gbm.DefaultParams())
	require.NoError(t, err)

	_, err = model.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	require.ErrorIs(t, err, gbm.ErrShape)
}

func TestValidateCatchesDamagedTrees(t *testing.T) {
	m := &gbm.Regressor{
		NumFeatures: 2,
		Trees: []gbm.Tree{{Nodes: []gbm.Node{
			{Feature: 5, Threshold: 1, Left: 1, Right: 2},
			{Leaf: true, Value: 1},
			{Leaf: true, Value: 2},
		}}},
	}
	require.Error(t, m.Validate())

	m.Trees[0].Nodes[0].Feature = 1
	require.NoError(t, m.Validate())

	m.Trees[0].Nodes[0].Right = 0
	require.Error(t, m.Validate())
}
