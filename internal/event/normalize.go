package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// DefaultEventDuration is the duration applied when an end
// precedes its start.
const DefaultEventDuration = 90 * time.Minute

const (
	dateLayout        = "2006-01-02"
	timeLayout        = "15:04:05"
	timeLayoutMinutes = "15:04"
)

var (
	dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRegex = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
)

// NormalizationError reports why a raw record could not become a CaptureEvent.
type NormalizationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *NormalizationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Normalizer turns raw records into CaptureEvents.
// The zero value is ready to use and draws IDs from NewID.
type Normalizer struct {
	// NewID overrides ID generation (tests use it for deterministic IDs)
	NewID func() string
}

var defaultNormalizer = &Normalizer{}

// Normalize normalizes raw with the default Normalizer.
func Normalize(raw RawEvent, capturedAt time.Time) (*CaptureEvent, error) {
	return defaultNormalizer.Normalize(raw, capturedAt)
}

// Normalize validates raw and builds a CaptureEvent from it.
//
// The only hard requirement is a valid dateTimeFrom.date; everything else is
// optional and silently dropped when it has the wrong shape. The returned
// event has a fresh ID, Timestamp set to capturedAt and IsFavorite false.
func (n *Normalizer) Normalize(raw RawEvent, capturedAt time.Time) (*CaptureEvent, error) {
	if raw == nil {
		return nil, &NormalizationError{Field: "record", Reason: "not an object"}
	}

	from, err := startDateTime(raw["dateTimeFrom"])
	if err != nil {
		return nil, err
	}

	ev := &CaptureEvent{
		ID:                         n.newID(),
		Title:                      stringField(raw, "title"),
		Kind:                       stringField(raw, "kind"),
		Tags:                       stringList(raw["tags"]),
		Description:                description(raw["description"]),
		DateTimeFrom:               from,
		DateTimeTo:                 endDateTime(raw["dateTimeTo"], from),
		Agenda:                     agenda(raw["agenda"]),
		Location:                   location(raw["location"]),
		Links:                      stringList(raw["links"]),
		TicketDirectLink:           stringField(raw, "ticketDirectLink"),
		TicketAvailableProbability: probability(raw["ticketAvailableProbability"]),
		TicketSearchQuery:          stringField(raw, "ticketSearchQuery"),
		Timestamp:                  capturedAt.UnixMilli(),
		IsFavorite:                 false,
	}

	return ev, nil
}

func (n *Normalizer) newID() string {
	if n == nil || n.NewID == nil {
		return NewID()
	}
	return n.NewID()
}

// startDateTime validates dateTimeFrom. A missing or malformed date fails
// the record; a malformed time is dropped.
func startDateTime(v any) (DateTime, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return DateTime{}, &NormalizationError{Field: "dateTimeFrom", Reason: "missing"}
	}

	date, _ := obj["date"].(string)
	if date == "" {
		return DateTime{}, &NormalizationError{Field: "dateTimeFrom.date", Reason: "missing"}
	}
	if !ValidDate(date) {
		return DateTime{}, &NormalizationError{Field: "dateTimeFrom.date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", date)}
	}

	return DateTime{Date: date, Time: timeField(obj)}, nil
}

// endDateTime derives dateTimeTo from the raw value and the validated start.
func endDateTime(v any, from DateTime) *DateTime {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	to := DateTime{Time: timeField(obj)}

	switch date := obj["date"].(type) {
	case nil:
	case string:
		if date != "" {
			if !ValidDate(date) {
				return nil
			}
			to.Date = date
		}
	default:
		return nil
	}

	return resolveEnd(to, from)
}

// resolveEnd anchors a dateless end to the start date and corrects an end
// that precedes the start.
func resolveEnd(to, from DateTime) *DateTime {
	// A time without a date ends on the start date; neither means no end.
	if to.Date == "" {
		if !to.HasTime() {
			return nil
		}
		to.Date = from.Date
	}

	if precedes(to, from) {
		return correctedEnd(from)
	}
	return &to
}

// Repair re-applies the normalization rules for times, the end date and the
// ticket probability to an event that did not come from Normalize, such as an
// imported record. It returns the JSON names of the fields it changed.
func (e *CaptureEvent) Repair() []string {
	var changed []string

	if e.DateTimeFrom.Time != "" && !ValidTime(e.DateTimeFrom.Time) {
		e.DateTimeFrom.Time = ""
		changed = append(changed, "dateTimeFrom")
	}

	if e.DateTimeTo != nil {
		to := *e.DateTimeTo
		if to.Time != "" && !ValidTime(to.Time) {
			to.Time = ""
		}
		var end *DateTime
		if to.Date == "" || ValidDate(to.Date) {
			end = resolveEnd(to, e.DateTimeFrom)
		}
		if end == nil || *end != *e.DateTimeTo {
			e.DateTimeTo = end
			changed = append(changed, "dateTimeTo")
		}
	}

	if p := e.TicketAvailableProbability; p != nil {
		clamped := clampProbability(*p)
		if clamped == nil || *clamped != *p {
			e.TicketAvailableProbability = clamped
			changed = append(changed, "ticketAvailableProbability")
		}
	}

	return changed
}

// correctedEnd replaces an inverted end with start + DefaultEventDuration.
// Without a start time there is nothing to add a duration to, so the end is dropped.
func correctedEnd(from DateTime) *DateTime {
	if !from.HasTime() {
		return nil
	}
	start, err := from.In(time.UTC)
	if err != nil {
		return nil
	}
	end := start.Add(DefaultEventDuration)

	layout := timeLayout
	if len(from.Time) == len(timeLayoutMinutes) {
		layout = timeLayoutMinutes
	}
	return &DateTime{Date: end.Format(dateLayout), Time: end.Format(layout)}
}

// precedes reports whether to is strictly before from. A missing time on
// either side compares by date only.
func precedes(to, from DateTime) bool {
	if to.Date != from.Date {
		// YYYY-MM-DD strings order the same way as the dates they encode
		return to.Date < from.Date
	}
	if !to.HasTime() || !from.HasTime() {
		return false
	}
	return secondsOfDay(to.Time) < secondsOfDay(from.Time)
}

// In returns the wall-clock time of d in loc.
func (d DateTime) In(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, d.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	if !d.HasTime() {
		return day, nil
	}
	return day.Add(time.Duration(secondsOfDay(d.Time)) * time.Second), nil
}

// ValidDate reports whether s is a real calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	if !dateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// ValidTime reports whether s is a time of day in HH:MM or HH:MM:SS form.
func ValidTime(s string) bool {
	if !timeRegex.MatchString(s) {
		return false
	}
	layout := timeLayout
	if len(s) == len(timeLayoutMinutes) {
		layout = timeLayoutMinutes
	}
	_, err := time.Parse(layout, s)
	return err == nil
}

// secondsOfDay converts a validated HH:MM[:SS] string to seconds since midnight.
func secondsOfDay(s string) int {
	layout := timeLayout
	if len(s) == len(timeLayoutMinutes) {
		layout = timeLayoutMinutes
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// timeField returns obj["time"] when it is a valid time of day.
func timeField(obj map[string]any) string {
	t, _ := obj["time"].(string)
	if !ValidTime(t) {
		return ""
	}
	return t
}

func stringField(raw RawEvent, key string) string {
	s, _ := raw[key].(string)
	return s
}

// stringList returns v as a string slice, or nil unless every element is a string.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	return out
}

func description(v any) *Description {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	short, _ := obj["short"].(string)
	long, _ := obj["long"].(string)
	if short == "" && long == "" {
		return nil
	}
	return &Description{Short: short, Long: long}
}

func location(v any) *Location {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	city, _ := obj["city"].(string)
	address, _ := obj["address"].(string)
	if city == "" && address == "" {
		return nil
	}
	return &Location{City: city, Address: address}
}

// agenda keeps the well-formed entries of an agenda list in order.
func agenda(v any) []AgendaItem {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []AgendaItem
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		date, _ := obj["date"].(string)
		tm, _ := obj["time"].(string)
		desc, _ := obj["description"].(string)
		if date == "" && tm == "" && desc == "" {
			continue
		}
		out = append(out, AgendaItem{Date: date, Time: tm, Description: desc})
	}
	return out
}

// probability clamps a numeric value to [0, 100]; anything else is dropped.
// Literals too large for a float64 clamp to the nearest bound.
func probability(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return clampProbability(f)
}

func clampProbability(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	f = min(max(f, 0), 100)
	return &f
}
