package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hpungsan/cap2cal/internal/errors"
	"github.com/hpungsan/cap2cal/internal/event"
)

func parseCalendar(t *testing.T, body string) []*ical.VEvent {
	t.Helper()
	cal, err := ical.ParseCalendar(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseCalendar failed: %v\n%s", err, body)
	}
	return cal.Events()
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return p.Value
}

func TestBuildCalendar_Times(t *testing.T) {
	cfg := testConfig(t.TempDir())
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		from      event.DateTime
		to        *event.DateTime
		wantStart string
		wantEnd   string
	}{
		{
			name:      "timed without end gets default duration",
			from:      event.DateTime{Date: "2025-08-01", Time: "20:00"},
			wantStart: "20250801T200000Z",
			wantEnd:   "20250801T213000Z",
		},
		{
			name:      "timed with end",
			from:      event.DateTime{Date: "2025-08-01", Time: "20:00"},
			to:        &event.DateTime{Date: "2025-08-01", Time: "23:15:30"},
			wantStart: "20250801T200000Z",
			wantEnd:   "20250801T231530Z",
		},
		{
			name:      "timed start with date-only end runs through the end date",
			from:      event.DateTime{Date: "2025-08-01", Time: "10:00"},
			to:        &event.DateTime{Date: "2025-08-03"},
			wantStart: "20250801T100000Z",
			wantEnd:   "20250804T000000Z",
		},
		{
			name:      "all-day single",
			from:      event.DateTime{Date: "2025-08-01"},
			wantStart: "20250801",
			wantEnd:   "20250802",
		},
		{
			name:      "all-day range has exclusive end",
			from:      event.DateTime{Date: "2025-08-01"},
			to:        &event.DateTime{Date: "2025-08-03"},
			wantStart: "20250801",
			wantEnd:   "20250804",
		},
		{
			name:      "all-day start with timed end",
			from:      event.DateTime{Date: "2025-12-30"},
			to:        &event.DateTime{Date: "2025-12-31", Time: "18:00"},
			wantStart: "20251230",
			wantEnd:   "20260101",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := event.CaptureEvent{ID: "01CAL", Title: "Jazz Night", DateTimeFrom: tt.from, DateTimeTo: tt.to}
			body, err := BuildCalendar([]event.CaptureEvent{e}, cfg, now)
			if err != nil {
				t.Fatalf("BuildCalendar failed: %v", err)
			}

			events := parseCalendar(t, body)
			if len(events) != 1 {
				t.Fatalf("got %d VEVENTs, want 1", len(events))
			}
			if got := propValue(events[0], ical.ComponentPropertyDtStart); got != tt.wantStart {
				t.Errorf("DTSTART = %q, want %q", got, tt.wantStart)
			}
			if got := propValue(events[0], ical.ComponentPropertyDtEnd); got != tt.wantEnd {
				t.Errorf("DTEND = %q, want %q", got, tt.wantEnd)
			}
		})
	}
}

func TestBuildCalendar_Timezone(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Timezone = "Europe/Berlin"

	e := event.CaptureEvent{ID: "01TZ", DateTimeFrom: event.DateTime{Date: "2025-08-01", Time: "20:00"}}
	body, err := BuildCalendar([]event.CaptureEvent{e}, cfg, time.Now())
	if err != nil {
		t.Fatalf("BuildCalendar failed: %v", err)
	}

	// CEST is UTC+2
	events := parseCalendar(t, body)
	if got := propValue(events[0], ical.ComponentPropertyDtStart); got != "20250801T180000Z" {
		t.Errorf("DTSTART = %q, want 20250801T180000Z", got)
	}
}

func TestBuildCalendar_Properties(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.DefaultDurationMinutes = 60

	e := event.CaptureEvent{
		ID:                "01PROPS",
		Title:             "Jazz Night",
		Kind:              "concert",
		Tags:              []string{"jazz"},
		DateTimeFrom:      event.DateTime{Date: "2025-08-01", Time: "20:00"},
		Location:          &event.Location{City: "Berlin", Address: "Main St 1"},
		TicketSearchQuery: "jazz night berlin",
		Timestamp:         1751373000000,
	}
	untitled := event.CaptureEvent{ID: "01UNTITLED", DateTimeFrom: event.DateTime{Date: "2025-08-02"}}

	body, err := BuildCalendar([]event.CaptureEvent{e, untitled}, cfg, time.Now())
	if err != nil {
		t.Fatalf("BuildCalendar failed: %v", err)
	}
	if !strings.Contains(body, "PRODID:"+ProductID) {
		t.Errorf("missing PRODID:\n%s", body)
	}
	if !strings.Contains(body, "CATEGORIES:concert") {
		t.Errorf("missing CATEGORIES:\n%s", body)
	}

	events := parseCalendar(t, body)
	if len(events) != 2 {
		t.Fatalf("got %d VEVENTs, want 2", len(events))
	}
	if got := propValue(events[0], ical.ComponentPropertyUniqueId); got != "01PROPS@cap2cal" {
		t.Errorf("UID = %q", got)
	}
	if got := propValue(events[0], ical.ComponentPropertySummary); got != "Jazz Night" {
		t.Errorf("SUMMARY = %q", got)
	}
	if got := propValue(events[0], ical.ComponentPropertyDtEnd); got != "20250801T210000Z" {
		t.Errorf("DTEND = %q, want one hour after start", got)
	}
	if got := propValue(events[0], ical.ComponentPropertyUrl); !strings.Contains(got, "jazz+night+berlin") {
		t.Errorf("URL = %q", got)
	}
	if got := propValue(events[1], ical.ComponentPropertySummary); got != "Event on 2025-08-02" {
		t.Errorf("SUMMARY = %q", got)
	}
	if got := propValue(events[1], ical.ComponentPropertyUrl); got != "" {
		t.Errorf("URL = %q, want none", got)
	}
}

func TestExportCalendar(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	fav := newTestEvent("01FAV", 2000)
	fav.IsFavorite = true
	insertEvents(t, database, newTestEvent("01A", 1000), fav)

	path := filepath.Join(dir, "all.ics")
	out, err := ExportCalendar(ctx, database, cfg, CalendarInput{Path: path})
	if err != nil {
		t.Fatalf("ExportCalendar failed: %v", err)
	}
	if out.Count != 2 || out.Path != path {
		t.Errorf("got %+v", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(parseCalendar(t, string(data))); n != 2 {
		t.Errorf("file has %d VEVENTs, want 2", n)
	}

	out, err = ExportCalendar(ctx, database, cfg, CalendarInput{Path: filepath.Join(dir, "fav.ics"), FavoritesOnly: true})
	if err != nil {
		t.Fatalf("ExportCalendar(favorites) failed: %v", err)
	}
	if out.Count != 1 {
		t.Errorf("Count = %d, want 1", out.Count)
	}

	out, err = ExportCalendar(ctx, database, cfg, CalendarInput{Path: filepath.Join(dir, "one.ics"), IDs: []string{"01A"}})
	if err != nil {
		t.Fatalf("ExportCalendar(ids) failed: %v", err)
	}
	if out.Count != 1 {
		t.Errorf("Count = %d, want 1", out.Count)
	}
}

func TestExportCalendar_Errors(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	if _, err := ExportCalendar(ctx, database, cfg, CalendarInput{Path: filepath.Join(dir, "empty.ics")}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty store = %v, want INVALID_REQUEST", err)
	}

	insertEvents(t, database, newTestEvent("01A", 1000))
	if _, err := ExportCalendar(ctx, database, cfg, CalendarInput{Path: filepath.Join(dir, "x.ics"), IDs: []string{"01A", "missing"}}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing id = %v, want NOT_FOUND", err)
	}
	if _, err := ExportCalendar(ctx, database, cfg, CalendarInput{Path: filepath.Join(dir, "x.jsonl")}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("wrong extension = %v, want INVALID_REQUEST", err)
	}
}

func TestExportCalendar_DefaultPathUsesTitle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	database := openTestDB(t)
	e := newTestEvent("01A", 1000)
	e.Title = "Jazz/Night"
	insertEvents(t, database, e)

	out, err := ExportCalendar(context.Background(), database, nil, CalendarInput{IDs: []string{"01A"}})
	if err != nil {
		t.Fatalf("ExportCalendar failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(out.Path), "Jazz-Night-") || filepath.Ext(out.Path) != ExtCalendar {
		t.Errorf("Path = %q", out.Path)
	}
}
