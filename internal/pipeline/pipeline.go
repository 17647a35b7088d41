// Package pipeline composes the feature transform and the regressor into the
// single unit that is trained, persisted and served.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/DeafMist/reference-inflation/internal/features"
	"github.com/DeafMist/reference-inflation/internal/gbm"
	"github.com/DeafMist/reference-inflation/internal/models"
)

// Pipeline is a fitted transform plus regressor. Once built or loaded it is
// read-only and safe for concurrent use.
type Pipeline struct {
	Transform *features.State `json:"transform"`
	Model     *gbm.Regressor  `json:"model"`
}

// TrainingParams is the fixed training configuration of the service model.
func TrainingParams() gbm.Params {
	p := gbm.DefaultParams()
	p.Rounds = 28
	p.MaxDepth = 4
	p.LearningRate = 0.32644423647442644
	p.Seed = 42
	p.Workers = -1
	return p
}

// Fit learns the transform from records, then the regressor from the
// transformed records and labels.
func Fit(ctx context.Context, records []features.Record, labels []float64, params gbm.Params) (*Pipeline, error) {
	if len(records) != len(labels) {
		return nil, fmt.Errorf("%d records but %d labels", len(records), len(labels))
	}
	state, err := features.Fit(records)
	if err != nil {
		return nil, fmt.Errorf("fit transform: %w", err)
	}
	x, err := state.Transform(records)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	model, err := gbm.Fit(ctx, x, labels, params)
	if err != nil {
		return nil, fmt.Errorf("fit regressor: %w", err)
	}
	return &Pipeline{Transform: state, Model: model}, nil
}

// Predict returns one prediction per record, in input order. Values are not
// clamped and may be negative.
func (p *Pipeline) Predict(records []features.Record) ([]float64, error) {
	x, err := p.Transform.Transform(records)
	if err != nil {
		return nil, err
	}
	out, err := p.Model.Predict(x)
	if err != nil {
		return nil, err
	}
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("prediction %d is not finite", i)
		}
	}
	return out, nil
}

// PredictPaper scores a single validated paper.
func (p *Pipeline) PredictPaper(paper models.Paper) (float64, error) {
	out, err := p.Predict([]features.Record{features.FromPaper(paper)})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Validate checks that the transform and the regressor agree.
func (p *Pipeline) Validate() error {
	if p.Transform == nil {
		return errors.New("pipeline has no transform")
	}
	if p.Model == nil {
		return errors.New("pipeline has no model")
	}
	if err := p.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if w := p.Transform.Width(); w != p.Model.NumFeatures {
		return fmt.Errorf("transform yields %d features, model expects %d", w, p.Model.NumFeatures)
	}
	return nil
}
