package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/reference-inflation/internal/config"
)

func TestLoadAPIDefaults(t *testing.T) {
	t.Setenv("API_BIND_ADDR", "")
	t.Setenv("MODEL_PATHS", "")
	t.Setenv("PREDICT_DATE_POLICY", "")
	t.Setenv("API_MAX_BODY_BYTES", "")
	t.Setenv("API_REQUEST_TIMEOUT", "")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9696", cfg.BindAddr)
	require.Equal(t, []string{"bin/model.bin", "model.bin"}, cfg.ModelPaths)
	require.Equal(t, config.DateImpute, cfg.DatePolicy)
	require.Equal(t, int64(65536), cfg.MaxBodyBytes)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoadAPIOverrides(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("MODEL_PATHS", " /models/a.bin , /models/b.bin,")
	t.Setenv("PREDICT_DATE_POLICY", "REJECT")
	t.Setenv("API_MAX_BODY_BYTES", "1024")
	t.Setenv("API_REQUEST_TIMEOUT", "3s")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, []string{"/models/a.bin", "/models/b.bin"}, cfg.ModelPaths)
	require.Equal(t, config.DateReject, cfg.DatePolicy)
	require.Equal(t, int64(1024), cfg.MaxBodyBytes)
	require.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLoadAPIRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("PREDICT_DATE_POLICY", "guess")
	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadTrainDefaults(t *testing.T) {
	t.Setenv("TRAIN_SOURCE", "")
	t.Setenv("TRAIN_DATA_PATH", "")
	t.Setenv("MODEL_PATH", "")
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")

	cfg, err := config.LoadTrain()
	require.NoError(t, err)
	require.Equal(t, config.SourceCSV, cfg.Source)
	require.Equal(t, "data/data_nucl-th_100_cleaned.csv", cfg.DataPath)
	require.Equal(t, "bin/model.bin", cfg.ModelPath)
	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "papers", cfg.ElasticsearchIndex)
	require.Equal(t, time.Minute, cfg.ScrollTTL)
}

func TestLoadTrainElasticsearch(t *testing.T) {
	t.Setenv("TRAIN_SOURCE", "elasticsearch")
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("TRAIN_BATCH_SIZE", "250")

	cfg, err := config.LoadTrain()
	require.NoError(t, err)
	require.Equal(t, config.SourceElasticsearch, cfg.Source)
	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, 250, cfg.BatchSize)

	t.Setenv("TRAIN_SOURCE", "s3")
	_, err = config.LoadTrain()
	require.Error(t, err)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ELASTICSEARCH_INDEX", "custom")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")
	t.Setenv("KAFKA_TOPIC", "custom_topic")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")
	t.Setenv("WORKER_BATCH_SIZE", "3")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "custom", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "custom_topic", cfg.KafkaTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 3, cfg.BatchSize)
}

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "papers_raw", cfg.KafkaTopic)
	require.Equal(t, "paper-ingest", cfg.KafkaConsumer)
}
