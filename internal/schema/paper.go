// Package schema validates prediction requests before they are decoded.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/DeafMist/reference-inflation/internal/models"
)

// ErrMalformed is returned when the body is not JSON at all.
var ErrMalformed = errors.New("malformed json body")

// FieldError describes one schema violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ValidationError lists every violation found in a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// PaperValidator checks bodies against the paper schema. It is safe for
// concurrent use.
type PaperValidator struct {
	schema *gojsonschema.Schema
}

// NewPaperValidator compiles the paper schema.
func NewPaperValidator() (*PaperValidator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(paperSchema()))
	if err != nil {
		return nil, fmt.Errorf("compile paper schema: %w", err)
	}
	return &PaperValidator{schema: s}, nil
}

// Decode validates body and decodes it into a Paper. Schema violations are
// reported as *ValidationError.
func (v *PaperValidator) Decode(body []byte) (models.Paper, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.Paper{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return models.Paper{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !result.Valid() {
		return models.Paper{}, newValidationError(result.Errors())
	}

	var raw struct {
		NumberOfPages   float64 `json:"number_of_pages"`
		PreprintDate    string  `json:"preprint_date"`
		AuthorCount     float64 `json:"author_count"`
		DocumentType    string  `json:"document_type"`
		PublicationType string  `json:"publication_type"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.Paper{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return models.Paper{
		NumberOfPages:   int(raw.NumberOfPages),
		PreprintDate:    raw.PreprintDate,
		AuthorCount:     int(raw.AuthorCount),
		DocumentType:    models.DocumentType(raw.DocumentType),
		PublicationType: models.PublicationType(raw.PublicationType),
	}, nil
}

func newValidationError(results []gojsonschema.ResultError) *ValidationError {
	fields := make([]FieldError, 0, len(results))
	for _, r := range results {
		field := r.Field()
		// additionalProperties and required errors are reported on the
		// root; point them at the offending property instead
		if prop, ok := r.Details()["property"].(string); ok && (field == "(root)" || field == "") {
			field = prop
		}
		fields = append(fields, FieldError{
			Field:   field,
			Message: r.Description(),
			Type:    r.Type(),
		})
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return &ValidationError{Fields: fields}
}

func paperSchema() map[string]any {
	docTypes := make([]any, 0, len(models.DocumentTypes))
	for _, t := range models.DocumentTypes {
		docTypes = append(docTypes, string(t))
	}
	pubTypes := make([]any, 0, len(models.PublicationTypes))
	for _, t := range models.PublicationTypes {
		pubTypes = append(pubTypes, string(t))
	}

	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"properties": map[string]any{
			"number_of_pages":  map[string]any{"type": "integer", "minimum": 0, "maximum": math.MaxInt32},
			"preprint_date":    map[string]any{"type": "string"},
			"author_count":     map[string]any{"type": "integer", "minimum": 0, "maximum": math.MaxInt32},
			"document_type":    map[string]any{"type": "string", "enum": docTypes},
			"publication_type": map[string]any{"type": "string", "enum": pubTypes},
		},
		"required": []any{
			"number_of_pages",
			"preprint_date",
			"author_count",
			"document_type",
			"publication_type",
		},
		"additionalProperties": false,
	}
}
