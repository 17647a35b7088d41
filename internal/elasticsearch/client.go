package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/reference-inflation/internal/models"
)

// Client wraps go-elasticsearch with helpers for the paper index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger

	// ScrollTTL keeps the scroll context alive between LoadPapers pages.
	ScrollTTL time.Duration
	// PageSize is the number of hits fetched per scroll page.
	PageSize int
}

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger, ScrollTTL: time.Minute, PageSize: 1000}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// EnsureIndex creates the paper index with explicit mappings when it does
// not exist yet.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	payload, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	// a concurrent creator wins the race; that is fine
	if res.IsError() && !strings.Contains(readBody(res), "resource_already_exists_exception") {
		return fmt.Errorf("create index failed: %s", res.Status())
	}
	c.log.Info("created paper index", slog.String("index", c.index))
	return nil
}

// IndexPaper writes a paper record into Elasticsearch.
func (c *Client) IndexPaper(ctx context.Context, doc models.PaperRecord) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index doc failed: %s", readBody(res))
	}

	return nil
}

// LoadPapers reads every document of the index through the scroll API.
func (c *Client) LoadPapers(ctx context.Context) ([]models.PaperRecord, error) {
	body := map[string]any{
		"size":  c.PageSize,
		"sort":  []string{"_doc"},
		"query": map[string]any{"match_all": map[string]any{}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal scroll body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
		c.es.Search.WithScroll(c.ScrollTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var papers []models.PaperRecord
	scrollID, hits, err := decodePage(res)
	if err != nil {
		return nil, err
	}
	defer func() { c.clearScroll(scrollID) }()

	for len(hits) > 0 {
		papers = append(papers, hits...)
		c.log.Debug("scrolled papers", slog.Int("total", len(papers)))

		res, err = c.es.Scroll(
			c.es.Scroll.WithContext(ctx),
			c.es.Scroll.WithScrollID(scrollID),
			c.es.Scroll.WithScroll(c.ScrollTTL),
		)
		if err != nil {
			return nil, fmt.Errorf("scroll: %w", err)
		}
		scrollID, hits, err = decodePage(res)
		if err != nil {
			return nil, err
		}
	}

	return papers, nil
}

// WaitReady pings Elasticsearch until it answers, doubling the delay after
// each failure up to 30s. It gives up after attempts pings or when ctx ends.
func (c *Client) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = c.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		c.log.Warn("elasticsearch not ready, retrying",
			slog.Any("err", err),
			slog.Int("attempt", i+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("retry_in", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, 30*time.Second)
	}
	return fmt.Errorf("elasticsearch unavailable after %d attempts: %w", attempts, err)
}

func (c *Client) clearScroll(scrollID string) {
	if scrollID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.es.ClearScroll(c.es.ClearScroll.WithContext(ctx), c.es.ClearScroll.WithScrollID(scrollID))
	if err != nil {
		c.log.Warn("clear scroll", slog.Any("err", err))
		return
	}
	res.Body.Close()
}

func decodePage(res *esapi.Response) (string, []models.PaperRecord, error) {
	defer res.Body.Close()
	if res.IsError() {
		return "", nil, fmt.Errorf("scroll page failed: %s", readBody(res))
	}

	var parsed struct {
		ScrollID string `json:"_scroll_id"`
		Hits     struct {
			Hits []struct {
				ID     string             `json:"_id"`
				Source models.PaperRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", nil, fmt.Errorf("decode scroll page: %w", err)
	}

	papers := make([]models.PaperRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		doc := hit.Source
		if doc.ID == "" {
			doc.ID = hit.ID
		}
		papers = append(papers, doc)
	}
	return parsed.ScrollID, papers, nil
}

func readBody(res *esapi.Response) string {
	data, _ := io.ReadAll(res.Body)
	return strings.TrimSpace(string(data))
}

var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":                                    map[string]any{"type": "keyword"},
			"number_of_pages":                       map[string]any{"type": "double"},
			"preprint_date":                         map[string]any{"type": "keyword"},
			"author_count":                          map[string]any{"type": "double"},
			"document_type":                         map[string]any{"type": "keyword"},
			"publication_type":                      map[string]any{"type": "keyword"},
			"number_of_references":                  map[string]any{"type": "double"},
			"citation_count":                        map[string]any{"type": "double"},
			"citation_count_without_self_citations": map[string]any{"type": "double"},
			"refereed":                              map[string]any{"type": "boolean"},
		},
	},
}
