package event

import (
	"fmt"
	"time"
)

// ResultType selects which result view the presenter shows.
type ResultType string

const (
	ResultSingle ResultType = "single"
	ResultMulti  ResultType = "multi"
	ResultError  ResultType = "error"
)

// ResultData is the pipeline output handed to the presentation layer.
type ResultData struct {
	Type        ResultType     `json:"type"`
	Events      []CaptureEvent `json:"events,omitempty"`
	ErrorReason Reason         `json:"errorReason,omitempty"`
}

// ErrorResult builds an error result for reason.
func ErrorResult(reason Reason) ResultData {
	if !reason.Valid() {
		reason = ReasonUnknown
	}
	return ResultData{Type: ResultError, ErrorReason: reason}
}

// Validate checks the invariants every ResultData must satisfy.
func (r ResultData) Validate() error {
	switch r.Type {
	case ResultSingle:
		if len(r.Events) != 1 {
			return fmt.Errorf("single result with %d events", len(r.Events))
		}
	case ResultMulti:
		if len(r.Events) < 2 {
			return fmt.Errorf("multi result with %d events", len(r.Events))
		}
	case ResultError:
		if r.Events != nil {
			return fmt.Errorf("error result carries %d events", len(r.Events))
		}
		if !r.ErrorReason.Valid() {
			return fmt.Errorf("error result with unknown reason %q", r.ErrorReason)
		}
		return nil
	default:
		return fmt.Errorf("unknown result type %q", r.Type)
	}

	if r.ErrorReason != "" {
		return fmt.Errorf("%s result carries error reason %q", r.Type, r.ErrorReason)
	}
	for i := range r.Events {
		ev := &r.Events[i]
		if ev.ID == "" {
			return fmt.Errorf("event %d has no id", i)
		}
		if !ValidDate(ev.DateTimeFrom.Date) {
			return fmt.Errorf("event %d has invalid start date %q", i, ev.DateTimeFrom.Date)
		}
		if ev.DateTimeTo != nil && precedes(*ev.DateTimeTo, ev.DateTimeFrom) {
			return fmt.Errorf("event %d ends before it starts", i)
		}
	}
	return nil
}

// Classify turns a parsed response into a ResultData with the default Normalizer.
func Classify(parsed ParsedResponse, capturedAt time.Time) ResultData {
	return defaultNormalizer.Classify(parsed, capturedAt)
}

// Classify turns a parsed response into a ResultData.
//
// Items that fail normalization are dropped as long as at least one
// survives; a batch with no survivors is reported as ReasonUnknown.
func (n *Normalizer) Classify(parsed ParsedResponse, capturedAt time.Time) ResultData {
	if !parsed.OK {
		return ErrorResult(ParseReason(parsed.RawReason))
	}

	events := make([]CaptureEvent, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		ev, err := n.Normalize(item, capturedAt)
		if err != nil {
			continue
		}
		events = append(events, *ev)
	}

	switch len(events) {
	case 0:
		return ErrorResult(ReasonUnknown)
	case 1:
		return ResultData{Type: ResultSingle, Events: events}
	default:
		return ResultData{Type: ResultMulti, Events: events}
	}
}

// Process runs the whole pipeline on the raw response text.
func Process(rawText string, capturedAt time.Time) ResultData {
	return Classify(Parse(rawText), capturedAt)
}
