package event

import "strings"

// Reason is the closed set of extraction error codes shown to the user.
type Reason string

const (
	ReasonProbablyNotAnEvent        Reason = "PROBABLY_NOT_AN_EVENT"
	ReasonImageTooBlurred           Reason = "IMAGE_TOO_BLURRED"
	ReasonLowContrastOrPoorLighting Reason = "LOW_CONTRAST_OR_POOR_LIGHTING"
	ReasonTextTooSmall              Reason = "TEXT_TOO_SMALL"
	ReasonOverlappingTextOrGraphics Reason = "OVERLAPPING_TEXT_OR_GRAPHICS"
	ReasonUnknown                   Reason = "UNKNOWN"
)

var allReasons = []Reason{
	ReasonProbablyNotAnEvent,
	ReasonImageTooBlurred,
	ReasonLowContrastOrPoorLighting,
	ReasonTextTooSmall,
	ReasonOverlappingTextOrGraphics,
	ReasonUnknown,
}

// AllReasons returns every Reason in declaration order.
func AllReasons() []Reason {
	out := make([]Reason, len(allReasons))
	copy(out, allReasons)
	return out
}

// ParseReason maps a raw reason reported by the model onto the closed set.
// Matching is case-insensitive and exact; nil and anything unrecognized
// become ReasonUnknown.
func ParseReason(raw *string) Reason {
	if raw == nil {
		return ReasonUnknown
	}
	for _, r := range allReasons {
		if strings.EqualFold(*raw, string(r)) {
			return r
		}
	}
	return ReasonUnknown
}

// Valid reports whether r is a member of the closed set.
func (r Reason) Valid() bool {
	for _, known := range allReasons {
		if r == known {
			return true
		}
	}
	return false
}
