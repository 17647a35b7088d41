package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatePolicy decides what the API does with a preprint date it cannot parse.
type DatePolicy string

const (
	// DateImpute treats unparseable dates as missing.
	DateImpute DatePolicy = "impute"
	// DateReject answers the request with a validation error.
	DateReject DatePolicy = "reject"
)

// Training data sources.
const (
	SourceCSV           = "csv"
	SourceElasticsearch = "elasticsearch"
)

// Common contains the Elasticsearch parameters of the paper index.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// API describes the prediction service.
type API struct {
	BindAddr     string
	ModelPaths   []string
	DatePolicy   DatePolicy
	MaxBodyBytes int64
	// RequestTimeout bounds a whole request, body read included.
	RequestTimeout time.Duration
}

// Train configures the offline training driver.
type Train struct {
	Common
	Source    string
	DataPath  string
	ModelPath string
	ScrollTTL time.Duration
	BatchSize int
}

// Worker holds configuration for the Kafka -> Elasticsearch paper ingest.
type Worker struct {
	Common
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		BindAddr:       getEnv("API_BIND_ADDR", "0.0.0.0:9696"),
		ModelPaths:     splitAndTrim(getEnv("MODEL_PATHS", "bin/model.bin,model.bin")),
		DatePolicy:     DatePolicy(strings.ToLower(getEnv("PREDICT_DATE_POLICY", string(DateImpute)))),
		MaxBodyBytes:   int64(getInt("API_MAX_BODY_BYTES", 1<<16)),
		RequestTimeout: getDuration("API_REQUEST_TIMEOUT", "10s"),
	}

	if len(c.ModelPaths) == 0 {
		return nil, fmt.Errorf("MODEL_PATHS must contain at least one path")
	}
	if c.DatePolicy != DateImpute && c.DatePolicy != DateReject {
		return nil, fmt.Errorf("PREDICT_DATE_POLICY must be %q or %q", DateImpute, DateReject)
	}
	if c.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("API_MAX_BODY_BYTES must be positive")
	}
	if c.RequestTimeout <= 0 {
		return nil, fmt.Errorf("API_REQUEST_TIMEOUT must be positive")
	}

	return c, nil
}

// LoadTrain builds a Train config from environment variables.
func LoadTrain() (*Train, error) {
	c := &Train{
		Common:    loadCommon(),
		Source:    strings.ToLower(getEnv("TRAIN_SOURCE", SourceCSV)),
		DataPath:  getEnv("TRAIN_DATA_PATH", "data/data_nucl-th_100_cleaned.csv"),
		ModelPath: getEnv("MODEL_PATH", "bin/model.bin"),
		ScrollTTL: getDuration("TRAIN_SCROLL_TTL", "1m"),
		BatchSize: getInt("TRAIN_BATCH_SIZE", 1000),
	}

	if c.Source != SourceCSV && c.Source != SourceElasticsearch {
		return nil, fmt.Errorf("TRAIN_SOURCE must be %q or %q", SourceCSV, SourceElasticsearch)
	}
	if c.Source == SourceCSV && c.DataPath == "" {
		return nil, fmt.Errorf("TRAIN_DATA_PATH must be set")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("TRAIN_BATCH_SIZE must be positive")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:         loadCommon(),
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "papers_raw"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "paper-ingest"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "papers"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
