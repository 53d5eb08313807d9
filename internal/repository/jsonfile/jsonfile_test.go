package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tinychef/UserData/internal/apperror"
	"github.com/tinychef/UserData/internal/model"
)

// newTestStore returns a Store over a fresh temp directory populated with
// the given files.
func newTestStore(t *testing.T, files map[string]string) *Store {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(dir, logger)
}

func TestLoad_Array(t *testing.T) {
	s := newTestStore(t, map[string]string{
		"revenuecat.json": `[{"app_user_id":"u1","total_spent":9.99},{"app_user_id":"u2"}]`,
	})

	got, err := s.Load(context.Background(), "revenuecat.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []model.RawRecord{
		{"app_user_id": "u1", "total_spent": json.Number("9.99")},
		{"app_user_id": "u2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_SingleObjectIsWrapped(t *testing.T) {
	s := newTestStore(t, map[string]string{
		"onesignal.json": `{"external_id":"u2","tags":{"plan":"free"}}`,
	})

	got, err := s.Load(context.Background(), "onesignal.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []model.RawRecord{
		{"external_id": "u2", "tags": map[string]any{"plan": "free"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EmptyArray(t *testing.T) {
	s := newTestStore(t, map[string]string{"onesignal.json": `[]`})

	got, err := s.Load(context.Background(), "onesignal.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() returned %d records, want 0", len(got))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	s := newTestStore(t, nil)

	_, err := s.Load(context.Background(), "nope.json")
	if !errors.Is(err, apperror.ErrSourceMissing) {
		t.Fatalf("Load() error = %v, want ErrSourceMissing", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated", content: `[{"app_user_id":"u1"`},
		{name: "empty file", content: ``},
		{name: "scalar", content: `42`},
		{name: "null", content: `null`},
		{name: "trailing data", content: `{"a":1} {"b":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, map[string]string{"data.json": tt.content})

			_, err := s.Load(context.Background(), "data.json")
			if !errors.Is(err, apperror.ErrSourceMalformed) {
				t.Fatalf("Load() error = %v, want ErrSourceMalformed", err)
			}
		})
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	s := newTestStore(t, map[string]string{"data.json": `[]`})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Load(ctx, "data.json"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
}

func TestDecode_SkipsNonObjects(t *testing.T) {
	records, skipped, err := Decode(strings.NewReader(`[{"a":1}, 2, "x", null, {"b":true}]`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if skipped != 3 {
		t.Errorf("skipped = %d, want 3", skipped)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[1]["b"] != true {
		t.Errorf("records[1][b] = %v, want true", records[1]["b"])
	}
}
