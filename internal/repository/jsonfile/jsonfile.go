// Package jsonfile implements repository.SourceRepository on top of JSON
// exports sitting in a single data directory.
//
// An export is either an array of objects or a single object; a single
// object is returned as a one-element list. Nothing is cached: every Load
// re-reads the file from disk.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tinychef/UserData/internal/apperror"
	"github.com/tinychef/UserData/internal/model"
	"github.com/tinychef/UserData/internal/repository"
)

// compile-time check that *Store implements repository.SourceRepository
var _ repository.SourceRepository = (*Store)(nil)

// Store reads exports from Dir.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a Store rooted at dir. The directory is not checked here; a
// missing directory surfaces as ErrSourceMissing on Load.
func New(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Load reads and decodes the export called name.
func (s *Store) Load(ctx context.Context, name string) ([]model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.SourceMissing(name, err)
		}
		return nil, fmt.Errorf("jsonfile: reading %s: %w", path, err)
	}

	records, skipped, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperror.SourceMalformed(name, err)
	}
	if skipped > 0 {
		s.logger.Warn("skipped non-object array elements",
			slog.String("source", name),
			slog.Int("skipped", skipped),
		)
	}

	s.logger.Debug("source loaded",
		slog.String("source", name),
		slog.String("path", path),
		slog.Int("records", len(records)),
	)
	return records, nil
}

// Decode parses one JSON document into records. The document must be a
// single object or an array; array elements that are not objects are
// dropped and counted in skipped. Trailing data is rejected.
func Decode(r io.Reader) (records []model.RawRecord, skipped int, err error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, 0, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, 0, errors.New("unexpected data after top-level value")
	}

	switch v := doc.(type) {
	case map[string]any:
		return []model.RawRecord{v}, 0, nil
	case []any:
		records = make([]model.RawRecord, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				skipped++
				continue
			}
			records = append(records, obj)
		}
		return records, skipped, nil
	default:
		return nil, 0, fmt.Errorf("top-level value is %T, want object or array", doc)
	}
}
