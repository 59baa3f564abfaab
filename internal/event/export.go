package event

// ExportRecord is one line of a JSONL export file.
// The first line of a file is a header with Cap2CalExport set; every other
// line is an event.
type ExportRecord struct {
	// Header detection field - true only for header line
	Cap2CalExport bool `json:"_cap2cal_export,omitempty"`

	// Header fields (only present in header line)
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	*CaptureEvent
}

// ToEvent returns the event carried by a record, or nil for header lines.
func (r *ExportRecord) ToEvent() *CaptureEvent {
	if r.Cap2CalExport || r.CaptureEvent == nil {
		return nil
	}
	ev := *r.CaptureEvent
	return &ev
}

// EventToExportRecord wraps an event for export.
func EventToExportRecord(e *CaptureEvent) *ExportRecord {
	return &ExportRecord{CaptureEvent: e}
}
