// Package gbm implements gradient-boosted regression trees with a
// squared-error objective.
package gbm

import (
	"errors"
	"runtime"
)

// Params configures training.
type Params struct {
	// Rounds is the number of trees added to the ensemble.
	Rounds int `json:"rounds"`
	// MaxDepth bounds the depth of each tree; a depth of 0 yields stumps
	// holding a single leaf.
	MaxDepth     int     `json:"max_depth"`
	LearningRate float64 `json:"learning_rate"`
	// Lambda is the L2 penalty on leaf weights.
	Lambda float64 `json:"lambda"`
	// Gamma is the minimum loss reduction required to split a node.
	Gamma          float64 `json:"gamma"`
	MinChildWeight float64 `json:"min_child_weight"`
	// Subsample is the fraction of rows drawn, without replacement, for
	// each tree.
	Subsample float64 `json:"subsample"`
	Seed      int64   `json:"seed"`
	// Workers caps concurrent split searches; zero or negative uses every CPU.
	Workers int `json:"-"`
}

// DefaultParams mirrors the usual boosting library defaults.
func DefaultParams() Params {
	return Params{
		Rounds:         100,
		MaxDepth:       6,
		LearningRate:   0.3,
		Lambda:         1,
		Gamma:          0,
		MinChildWeight: 1,
		Subsample:      1,
	}
}

func (p Params) validate() error {
	switch {
	case p.Rounds <= 0:
		return errors.New("rounds must be positive")
	case p.MaxDepth < 0:
		return errors.New("max depth cannot be negative")
	case p.LearningRate <= 0:
		return errors.New("learning rate must be positive")
	case p.Lambda < 0:
		return errors.New("lambda cannot be negative")
	case p.Gamma < 0:
		return errors.New("gamma cannot be negative")
	case p.MinChildWeight < 0:
		return errors.New("min child weight cannot be negative")
	case p.Subsample <= 0 || p.Subsample > 1:
		return errors.New("subsample must be in (0, 1]")
	}
	return nil
}

func (p Params) workers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}
