package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Response status discriminators used by the extraction model.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ParsedResponse is the outcome of parsing a model response.
// When OK is true, Items holds the raw records (possibly empty).
// When OK is false, RawReason holds the reported reason or nil.
type ParsedResponse struct {
	OK        bool
	Items     []RawEvent
	RawReason *string
}

func okResponse(items []RawEvent) ParsedResponse {
	if items == nil {
		items = []RawEvent{}
	}
	return ParsedResponse{OK: true, Items: items}
}

func errResponse(reason *string) ParsedResponse {
	return ParsedResponse{RawReason: reason}
}

// Parse decodes the raw response text of the extraction model.
// It never fails: undecodable or unrecognized input yields an error
// response with a nil reason.
func Parse(rawText string) ParsedResponse {
	doc, err := decodeJSON([]byte(rawText))
	if err != nil {
		return errResponse(nil)
	}

	root, ok := doc.(map[string]any)
	if !ok {
		return errResponse(nil)
	}

	status, _ := root["status"].(string)
	switch status {
	case StatusSuccess:
		return parseSuccess(root["data"])
	case StatusError:
		return errResponse(errorReason(root["data"]))
	default:
		return errResponse(nil)
	}
}

// parseSuccess accepts either {items: [...]} or a single event object.
func parseSuccess(data any) ParsedResponse {
	obj, ok := data.(map[string]any)
	if !ok {
		return errResponse(nil)
	}

	if items, ok := obj["items"].([]any); ok {
		out := make([]RawEvent, 0, len(items))
		for _, item := range items {
			// Non-object items stay in the batch as nil records so that they
			// fail normalization on their own.
			rec, _ := item.(map[string]any)
			out = append(out, RawEvent(rec))
		}
		return okResponse(out)
	}

	if looksLikeEvent(obj) {
		return okResponse([]RawEvent{RawEvent(obj)})
	}

	return errResponse(nil)
}

// looksLikeEvent reports whether obj carries at least one of the fields
// that identify an event record.
func looksLikeEvent(obj map[string]any) bool {
	_, hasFrom := obj["dateTimeFrom"]
	_, hasTitle := obj["title"]
	return hasFrom || hasTitle
}

// errorReason extracts data.reason when it is a string.
func errorReason(data any) *string {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	reason, ok := obj["reason"].(string)
	if !ok {
		return nil
	}
	return &reason
}

// decodeJSON decodes a single JSON value, keeping numbers as json.Number so
// out-of-range literals reach the normalizer instead of failing the decode.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}
