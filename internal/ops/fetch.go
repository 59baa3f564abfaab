package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/cap2cal/internal/db"
	"github.com/hpungsan/cap2cal/internal/event"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID             string
	IncludeDeleted bool
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	event.CaptureEvent        // embedded (copy, not pointer)
	TicketLink         string `json:"ticket_link,omitempty"`
}

// Fetch retrieves an event by ID.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}

	e, err := db.GetByID(ctx, database, id, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	return &FetchOutput{
		CaptureEvent: *e,
		TicketLink:   TicketLink(e),
	}, nil
}
