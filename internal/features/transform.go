// Package features turns paper records into the numeric matrix consumed by
// the regressor. Parameters are learned once by Fit and applied unchanged by
// Transform at training and inference time.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoRecords is returned when Fit or Transform receive an empty batch.
var ErrNoRecords = errors.New("no records")

// Numeric imputes missing values with the training median.
type Numeric struct {
	Median float64 `json:"median"`
}

// Categorical imputes missing values with the most frequent training value
// and one-hot encodes against the training vocabulary.
type Categorical struct {
	Mode       string   `json:"mode"`
	Vocabulary []string `json:"vocabulary"`
}

// Date holds the reference point and the median offset used for missing or
// unparseable dates.
type Date struct {
	Base   time.Time `json:"base"`
	Median float64   `json:"median"`
}

// State is the fitted transform.
type State struct {
	NumberOfPages   Numeric     `json:"number_of_pages"`
	AuthorCount     Numeric     `json:"author_count"`
	DocumentType    Categorical `json:"document_type"`
	PublicationType Categorical `json:"publication_type"`
	PreprintDate    Date        `json:"preprint_date"`
}

// Fit learns imputation statistics and vocabularies from records.
func Fit(records []Record) (*State, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	pages := make([]float64, 0, len(records))
	authors := make([]float64, 0, len(records))
	docTypes := make([]string, 0, len(records))
	pubTypes := make([]string, 0, len(records))
	offsets := make([]float64, 0, len(records))

	for _, r := range records {
		if !math.IsNaN(r.NumberOfPages) {
			pages = append(pages, r.NumberOfPages)
		}
		if !math.IsNaN(r.AuthorCount) {
			authors = append(authors, r.AuthorCount)
		}
		if r.DocumentType != "" {
			docTypes = append(docTypes, r.DocumentType)
		}
		if r.PublicationType != "" {
			pubTypes = append(pubTypes, r.PublicationType)
		}
		if ts, ok := ParseDate(r.PreprintDate); ok {
			offsets = append(offsets, DayOffset(ts, BaseDate))
		}
	}

	for name, col := range map[string][]float64{"number_of_pages": pages, "author_count": authors} {
		for _, v := range col {
			if math.IsInf(v, 0) {
				return nil, fmt.Errorf("%s: infinite value", name)
			}
		}
	}

	return &State{
		NumberOfPages:   Numeric{Median: median(pages)},
		AuthorCount:     Numeric{Median: median(authors)},
		DocumentType:    fitCategorical(docTypes),
		PublicationType: fitCategorical(pubTypes),
		PreprintDate:    Date{Base: BaseDate, Median: median(offsets)},
	}, nil
}

// Transform maps records to a len(records) x Width() matrix. It does not
// modify s.
func (s *State) Transform(records []Record) (*mat.Dense, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	width := s.Width()
	data := make([]float64, 0, len(records)*width)
	for _, r := range records {
		data = s.appendRow(data, r)
	}
	return mat.NewDense(len(records), width, data), nil
}

// Width is the number of columns produced by Transform.
func (s *State) Width() int {
	return 3 + len(s.DocumentType.Vocabulary) + len(s.PublicationType.Vocabulary)
}

// FeatureNames describes the columns produced by Transform, in order.
func (s *State) FeatureNames() []string {
	names := make([]string, 0, s.Width())
	names = append(names, "number_of_pages", "author_count")
	for _, v := range s.DocumentType.Vocabulary {
		names = append(names, "document_type="+v)
	}
	for _, v := range s.PublicationType.Vocabulary {
		names = append(names, "publication_type="+v)
	}
	return append(names, "preprint_date")
}

// DateFeature returns the numeric date feature for raw.
func (s *State) DateFeature(raw string) float64 {
	ts, ok := ParseDate(raw)
	if !ok {
		return s.PreprintDate.Median
	}
	return DayOffset(ts, s.PreprintDate.Base)
}

func (s *State) appendRow(dst []float64, r Record) []float64 {
	dst = append(dst, s.NumberOfPages.impute(r.NumberOfPages), s.AuthorCount.impute(r.AuthorCount))
	dst = s.DocumentType.appendOneHot(dst, r.DocumentType)
	dst = s.PublicationType.appendOneHot(dst, r.PublicationType)
	return append(dst, s.DateFeature(r.PreprintDate))
}

func (n Numeric) impute(v float64) float64 {
	if math.IsNaN(v) {
		return n.Median
	}
	return v
}

// Values outside the vocabulary leave every column at zero.
func (c Categorical) appendOneHot(dst []float64, v string) []float64 {
	if v == "" {
		v = c.Mode
	}
	for _, cat := range c.Vocabulary {
		if cat == v {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	}
	return dst
}

func fitCategorical(values []string) Categorical {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	vocab := make([]string, 0, len(counts))
	for v := range counts {
		vocab = append(vocab, v)
	}
	sort.Strings(vocab)

	var mode string
	best := 0
	for _, v := range vocab {
		if counts[v] > best {
			mode, best = v, counts[v]
		}
	}
	return Categorical{Mode: mode, Vocabulary: vocab}
}

// A column without observed values imputes zero.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Median(values)
	if err != nil {
		return 0
	}
	return m
}
