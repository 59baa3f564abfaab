package event

import "testing"

func TestParseReason(t *testing.T) {
	tests := []struct {
		name  string
		input *string
		want  Reason
	}{
		{"nil", nil, ReasonUnknown},
		{"exact", stringPtr("IMAGE_TOO_BLURRED"), ReasonImageTooBlurred},
		{"lower case", stringPtr("low_contrast_or_poor_lighting"), ReasonLowContrastOrPoorLighting},
		{"mixed case", stringPtr("Overlapping_Text_Or_Graphics"), ReasonOverlappingTextOrGraphics},
		{"unknown literal", stringPtr("UNKNOWN"), ReasonUnknown},
		{"unrecognized", stringPtr("CAMERA_ON_FIRE"), ReasonUnknown},
		{"padded is not trimmed", stringPtr(" TEXT_TOO_SMALL "), ReasonUnknown},
		{"empty", stringPtr(""), ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseReason(tt.input); got != tt.want {
				t.Errorf("ParseReason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReasonValid(t *testing.T) {
	for _, r := range AllReasons() {
		if !r.Valid() {
			t.Errorf("%q.Valid() = false", r)
		}
		if got := ParseReason(stringPtr(string(r))); got != r {
			t.Errorf("ParseReason(%q) = %q", r, got)
		}
	}
	if Reason("image_too_blurred").Valid() {
		t.Error("lower-case reason should not be Valid")
	}
	if Reason("").Valid() {
		t.Error("empty reason should not be Valid")
	}
}

func TestAllReasons_ReturnsCopy(t *testing.T) {
	rs := AllReasons()
	if len(rs) != 6 {
		t.Fatalf("len(AllReasons()) = %d, want 6", len(rs))
	}
	rs[0] = "MUTATED"
	if AllReasons()[0] != ReasonProbablyNotAnEvent {
		t.Error("AllReasons exposes its backing slice")
	}
}
