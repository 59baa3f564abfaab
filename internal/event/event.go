package event

// RawEvent is one untrusted event record as returned by the extraction model.
// Every field is optional and may carry any JSON type; nothing is trusted until
// it has been through Normalize.
type RawEvent map[string]any

// DateTime is a calendar date with an optional time of day.
// Date is always YYYY-MM-DD; Time is HH:MM or HH:MM:SS when present.
type DateTime struct {
	Date string `json:"date"`
	Time string `json:"time,omitempty"`
}

// HasTime reports whether a time of day is set.
func (d DateTime) HasTime() bool {
	return d.Time != ""
}

// Description holds the short and long event descriptions.
type Description struct {
	Short string `json:"short,omitempty"`
	Long  string `json:"long,omitempty"`
}

// AgendaItem is one entry of an event programme.
type AgendaItem struct {
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Description string `json:"description,omitempty"`
}

// Location is where an event takes place.
type Location struct {
	City    string `json:"city,omitempty"`
	Address string `json:"address,omitempty"`
}

// CaptureEvent is a normalized event owned by the application.
// It is created once by the pipeline; later mutation (favorites, deletion)
// belongs to the event store.
type CaptureEvent struct {
	// ID is a ULID assigned at normalization time
	ID string `json:"id"`

	Title       string       `json:"title,omitempty"`
	Kind        string       `json:"kind,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Description *Description `json:"description,omitempty"`

	// DateTimeFrom always carries a valid calendar date
	DateTimeFrom DateTime `json:"dateTimeFrom"`

	// DateTimeTo, when set, never precedes DateTimeFrom
	DateTimeTo *DateTime `json:"dateTimeTo,omitempty"`

	Agenda   []AgendaItem `json:"agenda,omitempty"`
	Location *Location    `json:"location,omitempty"`
	Links    []string     `json:"links,omitempty"`

	TicketDirectLink string `json:"ticketDirectLink,omitempty"`

	// TicketAvailableProbability is clamped to [0, 100]
	TicketAvailableProbability *float64 `json:"ticketAvailableProbability,omitempty"`

	TicketSearchQuery string `json:"ticketSearchQuery,omitempty"`

	// Timestamp is the capture wall-clock time in Unix milliseconds
	Timestamp int64 `json:"timestamp"`

	IsFavorite bool `json:"isFavorite"`

	// DeletedAt is the Unix timestamp of a soft delete (store only)
	DeletedAt *int64 `json:"deletedAt,omitempty"`
}

// DisplayTitle returns the title, or a fallback built from the start date.
func (e *CaptureEvent) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	return "Event on " + e.DateTimeFrom.Date
}
