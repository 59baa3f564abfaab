package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/cap2cal/internal/db"
	"github.com/hpungsan/cap2cal/internal/event"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	FavoritesOnly  bool
	Limit          int // default: 20, max: 100
	Offset         int // default: 0
	IncludeDeleted bool
}

// EventSummary is the list view of an event.
type EventSummary struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Kind         string          `json:"kind,omitempty"`
	DateTimeFrom event.DateTime  `json:"dateTimeFrom"`
	DateTimeTo   *event.DateTime `json:"dateTimeTo,omitempty"`
	City         string          `json:"city,omitempty"`
	Timestamp    int64           `json:"timestamp"`
	IsFavorite   bool            `json:"isFavorite"`
	DeletedAt    *int64          `json:"deletedAt,omitempty"`
}

// Summarize builds the list view of e.
func Summarize(e *event.CaptureEvent) EventSummary {
	s := EventSummary{
		ID:           e.ID,
		Title:        e.DisplayTitle(),
		Kind:         e.Kind,
		DateTimeFrom: e.DateTimeFrom,
		DateTimeTo:   e.DateTimeTo,
		Timestamp:    e.Timestamp,
		IsFavorite:   e.IsFavorite,
		DeletedAt:    e.DeletedAt,
	}
	if e.Location != nil {
		s.City = e.Location.City
	}
	return s
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []EventSummary `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Sort       string         `json:"sort"`
}

// List retrieves event summaries, most recently captured first.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	offset := max(input.Offset, 0)

	filters := db.ListFilters{
		FavoritesOnly:  input.FavoritesOnly,
		IncludeDeleted: input.IncludeDeleted,
	}
	events, total, err := db.List(ctx, database, filters, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	items := make([]EventSummary, 0, len(events))
	for i := range events {
		items = append(items, Summarize(&events[i]))
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "timestamp_desc",
	}, nil
}
