package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/reference-inflation/internal/dataset"
	"github.com/DeafMist/reference-inflation/internal/logger"
	"github.com/DeafMist/reference-inflation/internal/models"
	"github.com/DeafMist/reference-inflation/internal/pipeline"
)

type failingSource struct{}

func (failingSource) LoadPapers(context.Context) ([]models.PaperRecord, error) {
	return nil, errors.New("index unavailable")
}

func writeDataset(t *testing.T, rows int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	docTypes := []string{"article", "conference paper", "book chapter", "thesis"}
	pubTypes := []string{"research", "review", "lectures"}

	var b strings.Builder
	b.WriteString("id,number_of_pages,preprint_date,author_count,document_type,publication_type,number_of_references,citation_count,citation_count_without_self_citations,refereed\n")
	for i := 0; i < rows; i++ {
		pages := 1 + rng.Intn(50)
		authors := 1 + rng.Intn(10)
		refs := 10 + pages + 2*authors + rng.Intn(5)
		label := fmt.Sprint(refs)
		if i%25 == 0 {
			label = ""
		}
		fmt.Fprintf(&b, "p%d,%d,%d-%02d-01,%d,%s,%s,%s,%d,%d,%t\n",
			i, pages, 2000+rng.Intn(24), 1+rng.Intn(12), authors,
			docTypes[rng.Intn(len(docTypes))], pubTypes[rng.Intn(len(pubTypes))],
			label, rng.Intn(100), rng.Intn(80), rng.Intn(2) == 0)
	}

	path := filepath.Join(t.TempDir(), "papers.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRunTrainsAndSavesModel(t *testing.T) {
	data := writeDataset(t, 200)
	modelPath := filepath.Join(t.TempDir(), "bin", "model.bin")

	s, err := run(context.Background(), logger.Discard(), dataset.CSVFile{Path: data}, modelPath)
	require.NoError(t, err)
	require.Equal(t, 192, s.Rows)
	require.Equal(t, 8, s.Skipped)
	require.Greater(t, s.R2, 0.5)

	p, err := pipeline.Load(modelPath)
	require.NoError(t, err)
	require.Len(t, p.Model.Trees, 28)
}

func TestRunFailsWithoutData(t *testing.T) {
	modelPath := filepath.Join(t.TempDir(), "model.bin")

	_, err := run(context.Background(), logger.Discard(), failingSource{}, modelPath)
	require.ErrorContains(t, err, "index unavailable")

	_, err = run(context.Background(), logger.Discard(), dataset.CSVFile{Path: filepath.Join(t.TempDir(), "missing.csv")}, modelPath)
	require.Error(t, err)

	_, statErr := os.Stat(modelPath)
	require.True(t, os.IsNotExist(statErr))
}
