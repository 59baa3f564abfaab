package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/cap2cal/internal/db"
	"github.com/hpungsan/cap2cal/internal/errors"
	"github.com/hpungsan/cap2cal/internal/event"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return lines
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
}

func eventLine(t *testing.T, e *event.CaptureEvent) string {
	t.Helper()
	data, err := json.Marshal(event.EventToExportRecord(e))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

const headerLine = `{"_cap2cal_export":true,"schema_version":"1.0","exported_at":1751373000}`

func TestExport_HappyPath(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	fav := newTestEvent("01B", 2000)
	fav.IsFavorite = true
	insertEvents(t, database, fav, newTestEvent("01A", 1000))

	path := filepath.Join(dir, "backup.jsonl")
	out, err := Export(ctx, database, cfg, ExportInput{Path: path})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if out.Count != 2 || out.Path != path || out.ExportedAt == 0 {
		t.Errorf("got %+v", out)
	}

	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}

	var header event.ExportRecord
	if err := json.Unmarshal([]byte(lines[0]), &header); err != nil {
		t.Fatal(err)
	}
	if !header.Cap2CalExport || header.SchemaVersion != ExportSchemaVersion || header.CaptureEvent != nil {
		t.Errorf("header = %s", lines[0])
	}

	// Oldest capture first
	var first, second event.ExportRecord
	if err := json.Unmarshal([]byte(lines[1]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[2]), &second); err != nil {
		t.Fatal(err)
	}
	if first.ID != "01A" || second.ID != "01B" {
		t.Errorf("order = %s, %s; want 01A, 01B", first.ID, second.ID)
	}
	if !second.IsFavorite {
		t.Error("favorite flag not exported")
	}

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestExport_Filters(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	fav := newTestEvent("01FAV", 1000)
	fav.IsFavorite = true
	insertEvents(t, database, fav, newTestEvent("01PLAIN", 2000), newTestEvent("01GONE", 3000))
	if _, err := Delete(ctx, database, DeleteInput{ID: "01GONE"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input ExportInput
		want  int
	}{
		{"active", ExportInput{}, 2},
		{"favorites", ExportInput{FavoritesOnly: true}, 1},
		{"with deleted", ExportInput{IncludeDeleted: true}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.Path = filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")+".jsonl")
			out, err := Export(ctx, database, cfg, tt.input)
			if err != nil {
				t.Fatalf("Export failed: %v", err)
			}
			if out.Count != tt.want {
				t.Errorf("Count = %d, want %d", out.Count, tt.want)
			}
		})
	}
}

func TestExport_DefaultPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	database := openTestDB(t)
	insertEvents(t, database, newTestEvent("01A", 1000))

	out, err := Export(context.Background(), database, nil, ExportInput{FavoritesOnly: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	dir, _ := DefaultExportsDir()
	if filepath.Dir(out.Path) != dir || !strings.HasPrefix(filepath.Base(out.Path), "favorites-") {
		t.Errorf("Path = %q", out.Path)
	}
	if out.Count != 0 {
		t.Errorf("Count = %d, want 0", out.Count)
	}
}

func TestExport_RejectsBadPaths(t *testing.T) {
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	for _, path := range []string{
		filepath.Join(dir, "backup.json"),
		filepath.Join(dir, "..", "backup.jsonl"),
		filepath.Join(dir, "sub", "backup.jsonl"),
	} {
		if _, err := Export(context.Background(), database, cfg, ExportInput{Path: path}); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("Export(%s) = %v, want INVALID_REQUEST", path, err)
		}
	}
}

func TestImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	source := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	prob := 80.0
	e := newTestEvent("01RT", 1000)
	e.Tags = []string{"jazz"}
	e.DateTimeTo = &event.DateTime{Date: "2025-08-01", Time: "23:00"}
	e.TicketAvailableProbability = &prob
	e.IsFavorite = true
	insertEvents(t, source, e)

	path := filepath.Join(dir, "rt.jsonl")
	if _, err := Export(ctx, source, cfg, ExportInput{Path: path}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	target := openTestDB(t)
	out, err := Import(ctx, target, cfg, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 1 || out.Skipped != 0 || len(out.Errors) != 0 {
		t.Fatalf("got %+v", out)
	}

	got, err := Fetch(ctx, target, FetchInput{ID: "01RT"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !got.IsFavorite || got.DateTimeTo == nil || got.DateTimeTo.Time != "23:00" || *got.TicketAvailableProbability != 80 {
		t.Errorf("got %+v", got.CaptureEvent)
	}
}

func TestImport_CorrectsInvertedEndAndProbability(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	path := filepath.Join(dir, "edited.jsonl")
	writeLines(t, path,
		headerLine,
		`{"id":"01EDIT","title":"Edited","dateTimeFrom":{"date":"2025-06-01","time":"20:00"},"dateTimeTo":{"date":"2025-05-01","time":"19:00"},"ticketAvailableProbability":500,"timestamp":1000}`,
	)

	out, err := Import(ctx, database, cfg, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 1 || len(out.Errors) != 0 {
		t.Fatalf("got %+v", out)
	}

	got, err := Fetch(ctx, database, FetchInput{ID: "01EDIT"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.DateTimeTo == nil || *got.DateTimeTo != (event.DateTime{Date: "2025-06-01", Time: "21:30"}) {
		t.Errorf("DateTimeTo = %+v, want 2025-06-01 21:30", got.DateTimeTo)
	}
	if got.TicketAvailableProbability == nil || *got.TicketAvailableProbability != 100 {
		t.Errorf("TicketAvailableProbability = %v, want 100", got.TicketAvailableProbability)
	}
}

func TestImport_ModeError_AbortsOnCollision(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)
	insertEvents(t, database, newTestEvent("01EXISTS", 1000))

	path := filepath.Join(dir, "in.jsonl")
	writeLines(t, path,
		headerLine,
		eventLine(t, newTestEvent("01NEW", 2000)),
		eventLine(t, newTestEvent("01EXISTS", 3000)),
	)

	out, err := Import(ctx, database, cfg, ImportInput{Path: path, Mode: ImportModeError})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 0 || len(out.Errors) != 1 || out.Errors[0].Code != "ID_COLLISION" || out.Errors[0].Line != 3 {
		t.Fatalf("got %+v", out)
	}

	// Rolled back
	if _, err := Fetch(ctx, database, FetchInput{ID: "01NEW"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("01NEW imported despite abort: %v", err)
	}
}

func TestImport_ModeError_ParseErrors(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	path := filepath.Join(dir, "in.jsonl")
	writeLines(t, path,
		headerLine,
		eventLine(t, newTestEvent("01OK", 1000)),
		`{not json`,
		`{"title":"no id","dateTimeFrom":{"date":"2025-08-01"}}`,
		`{"id":"01BADDATE","dateTimeFrom":{"date":"2025-02-30"}}`,
	)

	out, err := Import(ctx, database, cfg, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 0 || len(out.Errors) != 3 {
		t.Fatalf("got %+v", out)
	}
	wantCodes := []string{"PARSE_ERROR", "INVALID_RECORD", "INVALID_RECORD"}
	for i, want := range wantCodes {
		if out.Errors[i].Code != want {
			t.Errorf("Errors[%d].Code = %q, want %q", i, out.Errors[i].Code, want)
		}
	}
	if out.Errors[2].ID != "01BADDATE" {
		t.Errorf("Errors[2].ID = %q", out.Errors[2].ID)
	}
}

func TestImport_ModeReplace(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)
	insertEvents(t, database, newTestEvent("01EXISTS", 1000))

	updated := newTestEvent("01EXISTS", 1000)
	updated.Title = "Replaced"
	path := filepath.Join(dir, "in.jsonl")
	writeLines(t, path,
		headerLine,
		eventLine(t, updated),
		`{not json`,
		eventLine(t, newTestEvent("01NEW", 2000)),
	)

	out, err := Import(ctx, database, cfg, ImportInput{Path: path, Mode: ImportModeReplace})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 2 || out.Skipped != 1 || len(out.Errors) != 1 {
		t.Fatalf("got %+v", out)
	}

	got, err := Fetch(ctx, database, FetchInput{ID: "01EXISTS"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Replaced" {
		t.Errorf("Title = %q, want Replaced", got.Title)
	}
}

func TestImport_ModeRename(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)
	insertEvents(t, database, newTestEvent("01EXISTS", 1000))

	copied := newTestEvent("01EXISTS", 1000)
	copied.Title = "Copy"
	path := filepath.Join(dir, "in.jsonl")
	writeLines(t, path, headerLine, eventLine(t, copied))

	out, err := Import(ctx, database, cfg, ImportInput{Path: path, Mode: ImportModeRename})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 1 {
		t.Fatalf("got %+v", out)
	}

	list, err := List(ctx, database, ListInput{})
	if err != nil {
		t.Fatal(err)
	}
	if list.Pagination.Total != 2 {
		t.Fatalf("Total = %d, want 2", list.Pagination.Total)
	}
	original, err := Fetch(ctx, database, FetchInput{ID: "01EXISTS"})
	if err != nil {
		t.Fatal(err)
	}
	if original.Title != "Event 01EXISTS" {
		t.Errorf("original overwritten: %q", original.Title)
	}
}

func TestImport_Validation(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	if _, err := Import(ctx, database, cfg, ImportInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("no path = %v, want INVALID_REQUEST", err)
	}
	if _, err := Import(ctx, database, cfg, ImportInput{Path: filepath.Join(dir, "x.jsonl"), Mode: "merge"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad mode = %v, want INVALID_REQUEST", err)
	}
	if _, err := Import(ctx, database, cfg, ImportInput{Path: filepath.Join(dir, "missing.jsonl")}); !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("missing file = %v, want FILE_NOT_FOUND", err)
	}
}

func TestImport_KeepsDeletedState(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	deletedAt := int64(1700000000)
	e := newTestEvent("01GONE", 1000)
	e.DeletedAt = &deletedAt
	path := filepath.Join(dir, "in.jsonl")
	writeLines(t, path, headerLine, eventLine(t, e))

	if _, err := Import(ctx, database, cfg, ImportInput{Path: path}); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	got, err := db.GetByID(ctx, database, "01GONE", true)
	if err != nil {
		t.Fatal(err)
	}
	if got.DeletedAt == nil || *got.DeletedAt != deletedAt {
		t.Errorf("DeletedAt = %v, want %d", got.DeletedAt, deletedAt)
	}
}
