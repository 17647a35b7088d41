// Package processing cleans paper records arriving on the ingest topic
// before they are indexed.
package processing

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/DeafMist/reference-inflation/internal/models"
)

var whitespace = regexp.MustCompile(`\s+`)

// ErrEmptyRecord is returned for records that carry no feature at all.
var ErrEmptyRecord = errors.New("empty paper record")

// Number accepts a JSON number, a numeric string, an empty string or null.
type Number struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.EqualFold(raw, "nan") {
			*n = Number{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		*n = Number{}
		return nil
	}
	*n = Number{Value: v, Valid: true}
	return nil
}

func (n Number) ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// RawPaper is a paper as published by upstream crawlers.
type RawPaper struct {
	ID                                string `json:"id"`
	NumberOfPages                     Number `json:"number_of_pages"`
	PreprintDate                      string `json:"preprint_date"`
	AuthorCount                       Number `json:"author_count"`
	DocumentType                      string `json:"document_type"`
	PublicationType                   string `json:"publication_type"`
	NumberOfReferences                Number `json:"number_of_references"`
	CitationCount                     Number `json:"citation_count"`
	CitationCountWithoutSelfCitations Number `json:"citation_count_without_self_citations"`
	Refereed                          *bool  `json:"refereed"`
}

// Normalize validates raw and converts it to an index record. Category
// values are lowercased and whitespace-squeezed; dates are only trimmed so
// the transform sees them as published.
func Normalize(raw RawPaper) (models.PaperRecord, error) {
	rec := models.PaperRecord{
		ID:                                strings.TrimSpace(raw.ID),
		NumberOfPages:                     raw.NumberOfPages.ptr(),
		PreprintDate:                      strings.TrimSpace(raw.PreprintDate),
		AuthorCount:                       raw.AuthorCount.ptr(),
		DocumentType:                      NormalizeCategory(raw.DocumentType),
		PublicationType:                   NormalizeCategory(raw.PublicationType),
		NumberOfReferences:                raw.NumberOfReferences.ptr(),
		CitationCount:                     raw.CitationCount.ptr(),
		CitationCountWithoutSelfCitations: raw.CitationCountWithoutSelfCitations.ptr(),
		Refereed:                          raw.Refereed,
	}

	if rec.NumberOfPages == nil && rec.AuthorCount == nil && rec.PreprintDate == "" &&
		rec.DocumentType == "" && rec.PublicationType == "" {
		return rec, ErrEmptyRecord
	}
	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"number_of_pages", rec.NumberOfPages},
		{"author_count", rec.AuthorCount},
		{"number_of_references", rec.NumberOfReferences},
	} {
		if f.value != nil && *f.value < 0 {
			return rec, fmt.Errorf("%s cannot be negative", f.name)
		}
	}

	if rec.ID == "" {
		rec.ID = BuildRecordID(rec)
	}
	return rec, nil
}

// NormalizeCategory lowercases v and squeezes inner whitespace.
func NormalizeCategory(v string) string {
	v = whitespace.ReplaceAllString(strings.TrimSpace(v), " ")
	return strings.ToLower(v)
}

// BuildRecordID hashes the feature fields to form a deterministic ID for
// records published without one.
func BuildRecordID(rec models.PaperRecord) string {
	parts := []string{
		formatNumber(rec.NumberOfPages),
		rec.PreprintDate,
		formatNumber(rec.AuthorCount),
		rec.DocumentType,
		rec.PublicationType,
		formatNumber(rec.NumberOfReferences),
	}
	s := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(s[:])
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
