package ops

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hpungsan/cap2cal/internal/config"
	"github.com/hpungsan/cap2cal/internal/db"
	"github.com/hpungsan/cap2cal/internal/errors"
	"github.com/hpungsan/cap2cal/internal/event"
)

// ProductID identifies cap2cal in generated calendars.
const ProductID = "-//cap2cal//cap2cal//EN"

// CalendarInput contains parameters for the ExportCalendar operation.
type CalendarInput struct {
	IDs           []string // optional, default: every active event
	Path          string   // optional, default: ~/.cap2cal/exports/<name>-<timestamp>.ics
	FavoritesOnly bool     // ignored when IDs is set
}

// CalendarOutput contains the result of the ExportCalendar operation.
type CalendarOutput struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// ExportCalendar writes events to an iCalendar file.
func ExportCalendar(ctx context.Context, database *sql.DB, cfg *config.Config, input CalendarInput) (*CalendarOutput, error) {
	events, err := calendarEvents(ctx, database, input)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errors.NewInvalidRequest("no events to export")
	}

	path := input.Path
	if path == "" {
		name := "calendar"
		switch {
		case len(events) == 1:
			name = events[0].DisplayTitle()
		case input.FavoritesOnly && len(input.IDs) == 0:
			name = "favorites"
		}
		path, err = defaultExportPath(name, ExtCalendar, time.Now())
		if err != nil {
			return nil, err
		}
	}

	if err := ValidatePath(path, ExtCalendar, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	body, err := BuildCalendar(events, cfg, time.Now())
	if err != nil {
		return nil, err
	}

	err = writeFileAtomic(path, func(w *bufio.Writer) error {
		if _, err := w.WriteString(body); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CalendarOutput{Path: path, Count: len(events)}, nil
}

func calendarEvents(ctx context.Context, database *sql.DB, input CalendarInput) ([]event.CaptureEvent, error) {
	if len(input.IDs) > 0 {
		events := make([]event.CaptureEvent, 0, len(input.IDs))
		for _, raw := range input.IDs {
			id, err := requireID(raw)
			if err != nil {
				return nil, err
			}
			e, err := db.GetByID(ctx, database, id, false)
			if err != nil {
				return nil, err
			}
			events = append(events, *e)
		}
		return events, nil
	}

	rows, err := db.StreamForExport(ctx, database, db.ListFilters{FavoritesOnly: input.FavoritesOnly})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []event.CaptureEvent
	for rows.Next() {
		e, err := db.ScanEventFromRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return events, nil
}

// BuildCalendar renders events as an iCalendar document. Dates and times are
// interpreted in cfg.Location(). A timed event without an end lasts
// cfg.DefaultDuration(); an event without a start time becomes all-day.
func BuildCalendar(events []event.CaptureEvent, cfg *config.Config, now time.Time) (string, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	loc := cfg.Location()
	for i := range events {
		if err := addEvent(cal, &events[i], loc, cfg.DefaultDuration(), now); err != nil {
			return "", err
		}
	}

	return cal.Serialize(), nil
}

func addEvent(cal *ical.Calendar, e *event.CaptureEvent, loc *time.Location, defaultDuration time.Duration, now time.Time) error {
	start, err := e.DateTimeFrom.In(loc)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("event %s: invalid start: %w", e.ID, err))
	}
	var end time.Time
	if e.DateTimeTo != nil {
		end, err = e.DateTimeTo.In(loc)
		if err != nil {
			return errors.NewInternal(fmt.Errorf("event %s: invalid end: %w", e.ID, err))
		}
	}

	ve := cal.AddEvent(e.ID + "@cap2cal")
	ve.SetDtStampTime(now.UTC())
	ve.SetCreatedTime(time.UnixMilli(e.Timestamp).UTC())
	ve.SetSummary(e.DisplayTitle())

	switch {
	case !e.DateTimeFrom.HasTime():
		// All-day; DTEND is exclusive
		ve.SetAllDayStartAt(start)
		last := start
		if e.DateTimeTo != nil {
			last = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
		}
		ve.SetAllDayEndAt(last.AddDate(0, 0, 1))
	default:
		ve.SetStartAt(start.UTC())
		switch {
		case e.DateTimeTo == nil:
			end = start.Add(defaultDuration)
		case !e.DateTimeTo.HasTime():
			end = end.AddDate(0, 0, 1)
		}
		ve.SetEndAt(end.UTC())
	}

	if desc := calendarDescription(e); desc != "" {
		ve.SetDescription(desc)
	}
	if e.Location != nil {
		ve.SetLocation(strings.Join(nonEmpty(e.Location.Address, e.Location.City), ", "))
	}
	if link := TicketLink(e); link != "" {
		ve.SetURL(link)
	} else if len(e.Links) > 0 {
		ve.SetURL(e.Links[0])
	}
	categories := nonEmpty(append([]string{e.Kind}, e.Tags...)...)
	if len(categories) > 0 {
		ve.AddProperty(ical.ComponentPropertyCategories, strings.Join(categories, ","))
	}

	return nil
}

func calendarDescription(e *event.CaptureEvent) string {
	var parts []string
	if e.Description != nil {
		parts = nonEmpty(e.Description.Short, e.Description.Long)
	}
	for _, item := range e.Agenda {
		line := strings.Join(nonEmpty(item.Date, item.Time, item.Description), " ")
		if line != "" {
			parts = append(parts, "- "+line)
		}
	}
	if len(e.Links) > 0 {
		parts = append(parts, e.Links...)
	}
	return strings.Join(parts, "\n")
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
