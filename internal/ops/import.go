package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/hpungsan/cap2cal/internal/config"
	"github.com/hpungsan/cap2cal/internal/db"
	"github.com/hpungsan/cap2cal/internal/errors"
	"github.com/hpungsan/cap2cal/internal/event"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision (atomic)
	ImportModeReplace ImportMode = "replace" // overwrite on collision
	ImportModeRename  ImportMode = "rename"  // assign a fresh id on collision
)

// maxImportLine bounds a single JSONL line; events with long agendas can
// exceed bufio.Scanner's 64KB default.
const maxImportLine = 4 * 1024 * 1024

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line  int
	event *event.CaptureEvent
}

// Import loads events from a JSONL export file.
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace && input.Mode != ImportModeRename {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, rename")
	}

	if err := ValidatePath(input.Path, ExtJSONL, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseExportFile(file)

	// For mode:error, fail on any parse errors
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	var out *ImportOutput
	switch input.Mode {
	case ImportModeError:
		out, err = importModeError(ctx, tx, records)
	case ImportModeReplace:
		out, err = importModeReplace(ctx, tx, records, parseErrors)
	default:
		out, err = importModeRename(ctx, tx, records, parseErrors)
	}
	if err != nil {
		return nil, err
	}
	// An aborted error-mode import leaves the store untouched
	if input.Mode == ImportModeError && len(out.Errors) > 0 {
		return out, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	slog.Info("events imported", "path", input.Path, "mode", string(input.Mode),
		"imported", out.Imported, "skipped", out.Skipped)
	return out, nil
}

// parseExportFile parses a JSONL export file into events. Header lines and
// blank lines are skipped.
func parseExportFile(r io.Reader) ([]importRecord, []ImportError) {
	var records []importRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record event.ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		// Skip header line
		if record.Cap2CalExport {
			continue
		}

		e := record.ToEvent()
		if e == nil || e.ID == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing id field",
			})
			continue
		}
		if !event.ValidDate(e.DateTimeFrom.Date) {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ID:      e.ID,
				Code:    "INVALID_RECORD",
				Message: fmt.Sprintf("invalid start date %q", e.DateTimeFrom.Date),
			})
			continue
		}
		if changed := e.Repair(); len(changed) > 0 {
			slog.Warn("import record corrected", "line", lineNum, "id", e.ID, "fields", changed)
		}

		records = append(records, importRecord{line: lineNum, event: e})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

// importModeError inserts every record, aborting on the first collision.
func importModeError(ctx context.Context, tx *sql.Tx, records []importRecord) (*ImportOutput, error) {
	imported := 0

	for _, r := range records {
		exists, err := db.ExistsTx(ctx, tx, r.event.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			// Abort on first error for mode:error
			return &ImportOutput{
				Errors: []ImportError{{
					Line:    r.line,
					ID:      r.event.ID,
					Code:    "ID_COLLISION",
					Message: fmt.Sprintf("event with id %q already exists", r.event.ID),
				}},
			}, nil
		}

		if err := db.InsertTx(ctx, tx, r.event); err != nil {
			return nil, err
		}
		imported++
	}

	return &ImportOutput{Imported: imported, Errors: []ImportError{}}, nil
}

// importModeReplace imports records, overwriting existing events on collision.
func importModeReplace(ctx context.Context, tx *sql.Tx, records []importRecord, parseErrors []ImportError) (*ImportOutput, error) {
	imported := 0
	importErrors := append([]ImportError{}, parseErrors...)
	skipped := len(parseErrors)

	for _, r := range records {
		exists, err := db.ExistsTx(ctx, tx, r.event.ID)
		if err != nil {
			return nil, err
		}

		if exists {
			err = db.UpdateFullTx(ctx, tx, r.event)
		} else {
			err = db.InsertTx(ctx, tx, r.event)
		}
		if err != nil {
			importErrors = append(importErrors, insertFailed(r, err))
			skipped++
			continue
		}
		imported++
	}

	return &ImportOutput{Imported: imported, Skipped: skipped, Errors: importErrors}, nil
}

// importModeRename imports records, giving colliding events a new ID.
func importModeRename(ctx context.Context, tx *sql.Tx, records []importRecord, parseErrors []ImportError) (*ImportOutput, error) {
	imported := 0
	importErrors := append([]ImportError{}, parseErrors...)
	skipped := len(parseErrors)

	for _, r := range records {
		exists, err := db.ExistsTx(ctx, tx, r.event.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			r.event.ID = event.NewID()
		}

		if err := db.InsertTx(ctx, tx, r.event); err != nil {
			importErrors = append(importErrors, insertFailed(r, err))
			skipped++
			continue
		}
		imported++
	}

	return &ImportOutput{Imported: imported, Skipped: skipped, Errors: importErrors}, nil
}

func insertFailed(r importRecord, err error) ImportError {
	return ImportError{
		Line:    r.line,
		ID:      r.event.ID,
		Code:    "INSERT_FAILED",
		Message: fmt.Sprintf("failed to insert: %v", err),
	}
}
