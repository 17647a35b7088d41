package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

// ErrNoArtifact is returned by LoadFirst when none of the candidate paths
// exists.
var ErrNoArtifact = errors.New("model artifact not found")

// Write serializes p as snappy-framed JSON.
func (p *Pipeline) Write(w io.Writer) error {
	sw := snappy.NewBufferedWriter(w)
	if err := json.NewEncoder(sw).Encode(p); err != nil {
		return fmt.Errorf("encode pipeline: %w", err)
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("flush pipeline: %w", err)
	}
	return nil
}

// Read decodes and validates a pipeline written by Write.
func Read(r io.Reader) (*Pipeline, error) {
	var p Pipeline
	if err := json.NewDecoder(snappy.NewReader(r)).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode pipeline: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}
	return &p, nil
}

// Save writes p to path, creating parent directories. The file is written
// under a temporary name and renamed so readers never see a partial
// artifact.
func (p *Pipeline) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := p.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Load reads the artifact at path.
func Load(path string) (*Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// LoadFirst loads the first candidate path that exists and returns it with
// the path used. A candidate that exists but cannot be read is an error;
// the search does not continue past it.
func LoadFirst(paths ...string) (*Pipeline, string, error) {
	for _, path := range paths {
		p, err := Load(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return p, path, nil
	}
	return nil, "", fmt.Errorf("%w: tried %v", ErrNoArtifact, paths)
}
