package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/reference-inflation/internal/config"
	"github.com/DeafMist/reference-inflation/internal/features"
	"github.com/DeafMist/reference-inflation/internal/logger"
	"github.com/DeafMist/reference-inflation/internal/models"
	"github.com/DeafMist/reference-inflation/internal/pipeline"
	"github.com/DeafMist/reference-inflation/internal/schema"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	model, path, err := pipeline.LoadFirst(cfg.ModelPaths...)
	if err != nil {
		log.Error("load model", slog.Any("err", err), slog.Any("paths", cfg.ModelPaths))
		os.Exit(1)
	}
	log.Info("model loaded",
		slog.String("path", path),
		slog.Int("trees", len(model.Model.Trees)),
		slog.Int("features", model.Model.NumFeatures),
	)

	srv, err := newServer(log, cfg, model)
	if err != nil {
		log.Error("init server", slog.Any("err", err))
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr), slog.String("date_policy", string(cfg.DatePolicy)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

// predictor scores a single validated paper.
type predictor interface {
	PredictPaper(paper models.Paper) (float64, error)
}

// server is built once at startup and never mutated, so handlers share it
// without locking.
type server struct {
	log       *slog.Logger
	cfg       *config.API
	validator *schema.PaperValidator
	model     predictor
}

func newServer(log *slog.Logger, cfg *config.API, model predictor) (*server, error) {
	v, err := schema.NewPaperValidator()
	if err != nil {
		return nil, err
	}
	return &server{log: log, cfg: cfg, validator: v, model: model}, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/predict", s.handlePredict)
	return r
}

type errorResponse struct {
	Error   string              `json:"error"`
	Details []schema.FieldError `json:"details,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	paper, err := s.validator.Decode(body)
	if err != nil {
		// anything that is not a schema violation is schema.ErrMalformed
		var invalid *schema.ValidationError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Details: invalid.Fields})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if s.cfg.DatePolicy == config.DateReject {
		if err := features.CheckDate(paper.PreprintDate); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error: "validation failed",
				Details: []schema.FieldError{{
					Field:   "preprint_date",
					Message: err.Error(),
					Type:    "date",
				}},
			})
			return
		}
	}

	value, err := s.model.PredictPaper(paper)
	if err != nil {
		s.log.Error("predict",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("err", err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "prediction failed"})
		return
	}

	s.log.Debug("prediction served",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Float64("number_of_references", value),
	)
	writeJSON(w, http.StatusOK, models.Prediction{NumberOfReferences: value})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
