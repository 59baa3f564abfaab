package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hpungsan/cap2cal/internal/config"
	"github.com/hpungsan/cap2cal/internal/db"
	"github.com/hpungsan/cap2cal/internal/errors"
	"github.com/hpungsan/cap2cal/internal/event"
)

// ExportSchemaVersion is written to the header line of every export.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path           string // optional, default: ~/.cap2cal/exports/events-<timestamp>.jsonl
	FavoritesOnly  bool
	IncludeDeleted bool
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes events to a JSONL file: one header line, then one event per
// line, oldest capture first.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		name := "events"
		if input.FavoritesOnly {
			name = "favorites"
		}
		var err error
		exportPath, err = defaultExportPath(name, ExtJSONL, now)
		if err != nil {
			return nil, err
		}
	}

	// Validate ALL paths (both user-provided and default)
	if err := ValidatePath(exportPath, ExtJSONL, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	rows, err := db.StreamForExport(ctx, database, db.ListFilters{
		FavoritesOnly:  input.FavoritesOnly,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	count := 0
	err = writeFileAtomic(exportPath, func(w *bufio.Writer) error {
		header := event.ExportRecord{
			Cap2CalExport: true,
			SchemaVersion: ExportSchemaVersion,
			ExportedAt:    now.Unix(),
		}
		if err := writeJSONLine(w, &header); err != nil {
			return err
		}

		for rows.Next() {
			if cErr := errors.FromContext(ctx.Err()); cErr != nil {
				return cErr
			}

			e, err := db.ScanEventFromRows(rows)
			if err != nil {
				return errors.NewInternal(err)
			}
			if err := writeJSONLine(w, event.EventToExportRecord(e)); err != nil {
				return err
			}
			count++
		}
		if err := rows.Err(); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: now.Unix(),
	}, nil
}

func writeJSONLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	if _, err := w.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// defaultExportPath generates ~/.cap2cal/exports/<name>-<timestamp><ext>.
func defaultExportPath(name, ext string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s-%s%s", SanitizeForFilename(name), now.Format("2006-01-02T150405"), ext)
	return filepath.Join(dir, filename), nil
}
