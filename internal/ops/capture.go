package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hpungsan/cap2cal/internal/config"
	"github.com/hpungsan/cap2cal/internal/db"
	"github.com/hpungsan/cap2cal/internal/errors"
	"github.com/hpungsan/cap2cal/internal/event"
	"github.com/hpungsan/cap2cal/internal/extract"
)

// Extractor turns an image into the raw text of the model response.
// *extract.Client implements it.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType, lang string) (string, error)
}

// NewExtractor returns the configured extraction client, or nil when no
// extract_endpoint is set.
func NewExtractor(cfg *config.Config) Extractor {
	if cfg == nil || cfg.ExtractEndpoint == "" {
		return nil
	}
	return extract.New(cfg.ExtractEndpoint, cfg.ExtractToken,
		extract.WithTimeout(cfg.RequestTimeout()),
		extract.WithLanguage(cfg.Language),
	)
}

// CaptureInput contains parameters for the Capture operation.
// Exactly one of RawText or ImagePath must be set.
type CaptureInput struct {
	RawText   string // model response to classify as is
	ImagePath string // image to send to the extractor
	MimeType  string // optional, sniffed from the image when empty
	Language  string // optional, the extractor's default when empty
	Save      bool   // persist the events of a successful result

	// CapturedAt defaults to now
	CapturedAt time.Time
}

// CaptureOutput contains the result of the Capture operation.
type CaptureOutput struct {
	event.ResultData
	SavedIDs []string `json:"saved_ids,omitempty"`
}

// Capture runs the extraction pipeline on a response or an image and
// optionally saves the resulting events.
//
// A pipeline-level failure (unparseable response, model-reported reason,
// nothing normalizable) is a successful call returning an error result.
// Only input, transport and storage problems are returned as errors.
func Capture(ctx context.Context, database *sql.DB, extractor Extractor, input CaptureInput) (*CaptureOutput, error) {
	hasText := strings.TrimSpace(input.RawText) != ""
	hasImage := strings.TrimSpace(input.ImagePath) != ""
	if hasText == hasImage {
		return nil, errors.NewInvalidRequest("specify exactly one of raw_text or image_path")
	}

	capturedAt := input.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	rawText := input.RawText
	if hasImage {
		text, err := extractImage(ctx, extractor, input)
		if err != nil {
			return nil, err
		}
		rawText = text
	}

	result := event.Process(rawText, capturedAt)
	if err := result.Validate(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("pipeline produced invalid result: %w", err))
	}

	slog.Info("capture classified",
		"type", result.Type,
		"events", len(result.Events),
		"reason", result.ErrorReason,
	)

	out := &CaptureOutput{ResultData: result}
	if !input.Save || result.Type == event.ResultError {
		return out, nil
	}

	ids, err := Save(ctx, database, result.Events)
	if err != nil {
		return nil, err
	}
	out.SavedIDs = ids
	return out, nil
}

func extractImage(ctx context.Context, extractor Extractor, input CaptureInput) (string, error) {
	if extractor == nil {
		return "", errors.NewInvalidRequest("image capture requires extract_endpoint to be configured")
	}

	image, err := os.ReadFile(input.ImagePath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", errors.NewFileNotFound(input.ImagePath)
		}
		return "", errors.NewInvalidRequest(fmt.Sprintf("cannot read image: %v", err))
	}

	return extractor.Extract(ctx, image, input.MimeType, input.Language)
}

// Save stores events in one transaction and returns their IDs.
func Save(ctx context.Context, database *sql.DB, events []event.CaptureEvent) ([]string, error) {
	if database == nil {
		return nil, errors.NewInternal(fmt.Errorf("no database configured"))
	}
	if len(events) == 0 {
		return []string{}, nil
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	ids := make([]string, 0, len(events))
	for i := range events {
		if err := db.InsertTx(ctx, tx, &events[i]); err != nil {
			if err == db.ErrUniqueConstraint {
				return nil, errors.NewConflict(fmt.Sprintf("event with id %q already exists", events[i].ID))
			}
			return nil, err
		}
		ids = append(ids, events[i].ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	slog.Info("events saved", "count", len(ids))
	return ids, nil
}
