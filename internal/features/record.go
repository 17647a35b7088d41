package features

import (
	"math"

	"github.com/DeafMist/reference-inflation/internal/models"
)

// Record is one paper as seen by the transform. Missing numeric values are
// NaN, missing categorical and date values are empty strings.
type Record struct {
	NumberOfPages   float64
	AuthorCount     float64
	PreprintDate    string
	DocumentType    string
	PublicationType string
}

// FromPaper converts a validated request into a transform record.
func FromPaper(p models.Paper) Record {
	return Record{
		NumberOfPages:   float64(p.NumberOfPages),
		AuthorCount:     float64(p.AuthorCount),
		PreprintDate:    p.PreprintDate,
		DocumentType:    string(p.DocumentType),
		PublicationType: string(p.PublicationType),
	}
}

// FromPaperRecord converts a historical record, dropping the identifier,
// the label and the citation metadata.
func FromPaperRecord(p models.PaperRecord) Record {
	return Record{
		NumberOfPages:   valueOrNaN(p.NumberOfPages),
		AuthorCount:     valueOrNaN(p.AuthorCount),
		PreprintDate:    p.PreprintDate,
		DocumentType:    p.DocumentType,
		PublicationType: p.PublicationType,
	}
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
