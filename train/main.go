package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/DeafMist/reference-inflation/internal/config"
	"github.com/DeafMist/reference-inflation/internal/dataset"
	"github.com/DeafMist/reference-inflation/internal/elasticsearch"
	"github.com/DeafMist/reference-inflation/internal/logger"
	"github.com/DeafMist/reference-inflation/internal/pipeline"
)

func main() {
	log := logger.New("train")
	cfg, err := config.LoadTrain()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	source, err := newSource(ctx, cfg, log)
	if err != nil {
		log.Error("init dataset source", slog.Any("err", err))
		os.Exit(1)
	}

	log = log.With(slog.String("run_id", uuid.NewString()))
	if _, err := run(ctx, log, source, cfg.ModelPath); err != nil {
		log.Error("training failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func newSource(ctx context.Context, cfg *config.Train, log *slog.Logger) (dataset.Source, error) {
	if cfg.Source == config.SourceCSV {
		return dataset.CSVFile{Path: cfg.DataPath}, nil
	}
	es, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		return nil, err
	}
	es.ScrollTTL = cfg.ScrollTTL
	es.PageSize = cfg.BatchSize
	if err := es.WaitReady(ctx, 5, 2*time.Second); err != nil {
		return nil, err
	}
	return es, nil
}

// summary describes a finished training run.
type summary struct {
	Rows    int
	Skipped int
	RMSE    float64
	R2      float64
}

func run(ctx context.Context, log *slog.Logger, source dataset.Source, modelPath string) (summary, error) {
	start := time.Now()

	papers, err := source.LoadPapers(ctx)
	if err != nil {
		return summary{}, fmt.Errorf("load dataset: %w", err)
	}
	records, labels, skipped := dataset.Examples(papers)
	if skipped > 0 {
		log.Warn("skipped rows without a label", slog.Int("skipped", skipped))
	}
	if len(records) == 0 {
		return summary{}, errors.New("dataset has no labelled rows")
	}
	log.Info("dataset loaded", slog.Int("rows", len(records)))

	p, err := pipeline.Fit(ctx, records, labels, pipeline.TrainingParams())
	if err != nil {
		return summary{}, err
	}

	pred, err := p.Predict(records)
	if err != nil {
		return summary{}, fmt.Errorf("score training set: %w", err)
	}
	s := summary{
		Rows:    len(records),
		Skipped: skipped,
		RMSE:    rmse(pred, labels),
		R2:      stat.RSquaredFrom(pred, labels, nil),
	}

	if err := p.Save(modelPath); err != nil {
		return summary{}, fmt.Errorf("save model: %w", err)
	}

	log.Info("model trained",
		slog.String("path", modelPath),
		slog.Int("rows", s.Rows),
		slog.Int("features", p.Model.NumFeatures),
		slog.Any("feature_names", p.Transform.FeatureNames()),
		slog.Int("trees", len(p.Model.Trees)),
		slog.Float64("train_rmse", s.RMSE),
		slog.Float64("train_r2", s.R2),
		slog.Duration("took", time.Since(start)),
	)
	return s, nil
}

func rmse(pred, y []float64) float64 {
	var sum float64
	for i := range y {
		d := pred[i] - y[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(y)))
}
