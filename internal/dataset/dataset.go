// Package dataset loads historical paper records for training and splits
// them into transform records and labels.
package dataset

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/DeafMist/reference-inflation/internal/features"
	"github.com/DeafMist/reference-inflation/internal/models"
)

// Source yields labelled paper records.
type Source interface {
	LoadPapers(ctx context.Context) ([]models.PaperRecord, error)
}

// Cells stay strings so that empty values can be told apart from zeros.
type csvRow struct {
	ID                                string `csv:"id"`
	NumberOfPages                     string `csv:"number_of_pages"`
	PreprintDate                      string `csv:"preprint_date"`
	AuthorCount                       string `csv:"author_count"`
	DocumentType                      string `csv:"document_type"`
	PublicationType                   string `csv:"publication_type"`
	NumberOfReferences                string `csv:"number_of_references"`
	CitationCount                     string `csv:"citation_count"`
	CitationCountWithoutSelfCitations string `csv:"citation_count_without_self_citations"`
	Refereed                          string `csv:"refereed"`
}

// CSVFile reads records from a CSV file with a header row.
type CSVFile struct {
	Path string
}

// LoadPapers implements Source.
func (c CSVFile) LoadPapers(_ context.Context) ([]models.PaperRecord, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Path, err)
	}
	return records, nil
}

// ReadCSV parses CSV rows into paper records. Empty cells and the literal
// "nan" become missing values.
func ReadCSV(r io.Reader) ([]models.PaperRecord, error) {
	var rows []csvRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	records := make([]models.PaperRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := row.record()
		if err != nil {
			// header is line 1
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r csvRow) record() (models.PaperRecord, error) {
	rec := models.PaperRecord{
		ID:              strings.TrimSpace(r.ID),
		PreprintDate:    r.PreprintDate,
		DocumentType:    cell(r.DocumentType),
		PublicationType: cell(r.PublicationType),
	}
	fields := []struct {
		name string
		raw  string
		dst  **float64
	}{
		{"number_of_pages", r.NumberOfPages, &rec.NumberOfPages},
		{"author_count", r.AuthorCount, &rec.AuthorCount},
		{"number_of_references", r.NumberOfReferences, &rec.NumberOfReferences},
		{"citation_count", r.CitationCount, &rec.CitationCount},
		{"citation_count_without_self_citations", r.CitationCountWithoutSelfCitations, &rec.CitationCountWithoutSelfCitations},
	}
	for _, f := range fields {
		v, err := parseNumber(f.raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	if raw := cell(r.Refereed); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return rec, fmt.Errorf("refereed: %w", err)
		}
		rec.Refereed = &b
	}
	return rec, nil
}

// Examples keeps the feature columns of every labelled record and returns
// how many records were skipped for lacking a usable label.
func Examples(records []models.PaperRecord) ([]features.Record, []float64, int) {
	out := make([]features.Record, 0, len(records))
	labels := make([]float64, 0, len(records))
	skipped := 0
	for _, rec := range records {
		if rec.NumberOfReferences == nil || math.IsNaN(*rec.NumberOfReferences) || math.IsInf(*rec.NumberOfReferences, 0) {
			skipped++
			continue
		}
		out = append(out, features.FromPaperRecord(rec))
		labels = append(labels, *rec.NumberOfReferences)
	}
	return out, labels, skipped
}

func parseNumber(raw string) (*float64, error) {
	raw = cell(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}

func cell(raw string) string {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "nan", "null", "none":
		return ""
	}
	return raw
}
