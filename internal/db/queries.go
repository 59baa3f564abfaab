package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/cap2cal/internal/errors"
	"github.com/hpungsan/cap2cal/internal/event"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.AppError{
	Code:    errors.ErrConflict,
	Status:  409,
	Message: "unique constraint violation",
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectColumns = `
	SELECT id, payload_json, captured_at, is_favorite, deleted_at
	FROM events
`

// ListFilters narrows List and StreamForExport.
type ListFilters struct {
	FavoritesOnly  bool
	IncludeDeleted bool
}

func (f ListFilters) where() string {
	var conds []string
	if !f.IncludeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}
	if f.FavoritesOnly {
		conds = append(conds, "is_favorite = 1")
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// Insert stores a new event in the database.
func Insert(ctx context.Context, db *sql.DB, e *event.CaptureEvent) error {
	return insert(ctx, db, e)
}

// InsertTx stores a new event within a transaction.
func InsertTx(ctx context.Context, tx *sql.Tx, e *event.CaptureEvent) error {
	return insert(ctx, tx, e)
}

func insert(ctx context.Context, ex execer, e *event.CaptureEvent) error {
	payload, err := encodePayload(e)
	if err != nil {
		return errors.NewInternal(err)
	}

	var deletedAt sql.NullInt64
	if e.DeletedAt != nil {
		deletedAt = sql.NullInt64{Int64: *e.DeletedAt, Valid: true}
	}

	query := `
		INSERT INTO events (
			id, title, kind, date_from, time_from,
			payload_json, captured_at, is_favorite, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = ex.ExecContext(ctx, query,
		e.ID, toNullString(e.Title), toNullString(e.Kind),
		e.DateTimeFrom.Date, toNullString(e.DateTimeFrom.Time),
		payload, e.Timestamp, boolToInt(e.IsFavorite), deletedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	return nil
}

// UpdateFullTx overwrites every column of an existing event, including
// soft-deleted ones. Used by import in replace mode.
func UpdateFullTx(ctx context.Context, tx *sql.Tx, e *event.CaptureEvent) error {
	payload, err := encodePayload(e)
	if err != nil {
		return errors.NewInternal(err)
	}

	var deletedAt sql.NullInt64
	if e.DeletedAt != nil {
		deletedAt = sql.NullInt64{Int64: *e.DeletedAt, Valid: true}
	}

	query := `
		UPDATE events
		SET title = ?, kind = ?, date_from = ?, time_from = ?,
			payload_json = ?, captured_at = ?, is_favorite = ?, deleted_at = ?
		WHERE id = ?
	`

	result, err := tx.ExecContext(ctx, query,
		toNullString(e.Title), toNullString(e.Kind),
		e.DateTimeFrom.Date, toNullString(e.DateTimeFrom.Time),
		payload, e.Timestamp, boolToInt(e.IsFavorite), deletedAt,
		e.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	return requireRow(result, e.ID)
}

// ExistsTx reports whether an event with id exists, deleted or not.
func ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM events WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports both UNIQUE and PRIMARY KEY violations this way
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves an event by its ULID.
// If includeDeleted is false, soft-deleted events are excluded.
func GetByID(ctx context.Context, db *sql.DB, id string, includeDeleted bool) (*event.CaptureEvent, error) {
	query := selectColumns + " WHERE id = ?"
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	e, err := scanEvent(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return e, nil
}

// List returns one page of events, newest capture first, and the total
// number of events matching filters.
func List(ctx context.Context, db *sql.DB, filters ListFilters, limit, offset int) ([]event.CaptureEvent, int, error) {
	where := filters.where()

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := selectColumns + where + " ORDER BY captured_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var events []event.CaptureEvent
	for rows.Next() {
		e, err := ScanEventFromRows(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return events, total, nil
}

// StreamForExport returns rows for every event matching filters, oldest
// capture first. The caller must close the rows.
func StreamForExport(ctx context.Context, db *sql.DB, filters ListFilters) (*sql.Rows, error) {
	query := selectColumns + filters.where() + " ORDER BY captured_at ASC, id ASC"
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// SetFavorite sets the favorite flag of an active event.
func SetFavorite(ctx context.Context, db *sql.DB, id string, favorite bool) error {
	query := `
		UPDATE events
		SET is_favorite = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := db.ExecContext(ctx, query, boolToInt(favorite), id)
	if err != nil {
		return errors.NewInternal(err)
	}

	return requireRow(result, id)
}

// SoftDelete marks an event as deleted by setting deleted_at.
func SoftDelete(ctx context.Context, db *sql.DB, id string) error {
	query := `
		UPDATE events
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := db.ExecContext(ctx, query, time.Now().Unix(), id)
	if err != nil {
		return errors.NewInternal(err)
	}

	return requireRow(result, id)
}

// PurgeDeleted permanently removes soft-deleted events. When olderThanDays
// is set, only events deleted before that cutoff are removed.
func PurgeDeleted(ctx context.Context, db *sql.DB, olderThanDays *int) (int, error) {
	query := "DELETE FROM events WHERE deleted_at IS NOT NULL"
	var args []any
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		query += " AND deleted_at < ?"
		args = append(args, cutoff)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

func requireRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a CaptureEvent.
func scanEvent(row scanner) (*event.CaptureEvent, error) {
	var (
		id         string
		payload    string
		capturedAt int64
		favorite   int
		deletedAt  sql.NullInt64
	)

	if err := row.Scan(&id, &payload, &capturedAt, &favorite, &deletedAt); err != nil {
		return nil, err
	}

	var e event.CaptureEvent
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, err
	}

	// Columns are authoritative for the mutable fields
	e.ID = id
	e.Timestamp = capturedAt
	e.IsFavorite = favorite != 0
	e.DeletedAt = nil
	if deletedAt.Valid {
		e.DeletedAt = &deletedAt.Int64
	}

	return &e, nil
}

// ScanEventFromRows scans the current row of a List or StreamForExport result.
func ScanEventFromRows(rows *sql.Rows) (*event.CaptureEvent, error) {
	return scanEvent(rows)
}

// encodePayload serializes the immutable part of an event.
func encodePayload(e *event.CaptureEvent) (string, error) {
	stored := *e
	stored.IsFavorite = false
	stored.DeletedAt = nil
	data, err := json.Marshal(&stored)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
