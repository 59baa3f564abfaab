package event

import (
	"testing"
)

func TestParse_Success(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantItems int
	}{
		{
			name:      "single event object",
			input:     `{"status":"success","data":{"title":"Jazz Night","dateTimeFrom":{"date":"2025-08-01"}}}`,
			wantItems: 1,
		},
		{
			name:      "single event with only title",
			input:     `{"status":"success","data":{"title":"Jazz Night"}}`,
			wantItems: 1,
		},
		{
			name:      "single event with only dateTimeFrom",
			input:     `{"status":"success","data":{"dateTimeFrom":{"date":"2025-08-01"}}}`,
			wantItems: 1,
		},
		{
			name:      "items array",
			input:     `{"status":"success","data":{"items":[{"title":"A"},{"title":"B"},{"title":"C"}]}}`,
			wantItems: 3,
		},
		{
			name:      "empty items array",
			input:     `{"status":"success","data":{"items":[]}}`,
			wantItems: 0,
		},
		{
			name:      "items wins over single shape",
			input:     `{"status":"success","data":{"title":"outer","items":[{"title":"A"},{"title":"B"}]}}`,
			wantItems: 2,
		},
		{
			name:      "non-array items falls back to single shape",
			input:     `{"status":"success","data":{"title":"outer","items":"nope"}}`,
			wantItems: 1,
		},
		{
			name:      "non-object items are kept for normalization to reject",
			input:     `{"status":"success","data":{"items":[{"title":"A"},42,null,"x"]}}`,
			wantItems: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if !got.OK {
				t.Fatalf("Parse(%q).OK = false, want true", tt.input)
			}
			if len(got.Items) != tt.wantItems {
				t.Errorf("len(Items) = %d, want %d", len(got.Items), tt.wantItems)
			}
			if got.RawReason != nil {
				t.Errorf("RawReason = %q, want nil", *got.RawReason)
			}
		})
	}
}

func TestParse_NonObjectItemsAreNil(t *testing.T) {
	got := Parse(`{"status":"success","data":{"items":[{"title":"A"},42]}}`)
	if !got.OK || len(got.Items) != 2 {
		t.Fatalf("Parse = %+v, want 2 items", got)
	}
	if got.Items[0] == nil {
		t.Error("Items[0] should be the object record")
	}
	if got.Items[1] != nil {
		t.Errorf("Items[1] = %v, want nil", got.Items[1])
	}
}

func TestParse_ErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantReason *string
	}{
		{
			name:       "reason present",
			input:      `{"status":"error","data":{"reason":"IMAGE_TOO_BLURRED"}}`,
			wantReason: stringPtr("IMAGE_TOO_BLURRED"),
		},
		{
			name:       "unknown reason passed through raw",
			input:      `{"status":"error","data":{"reason":"some_future_code"}}`,
			wantReason: stringPtr("some_future_code"),
		},
		{
			name:  "reason missing",
			input: `{"status":"error","data":{}}`,
		},
		{
			name:  "reason not a string",
			input: `{"status":"error","data":{"reason":7}}`,
		},
		{
			name:  "data missing",
			input: `{"status":"error"}`,
		},
		{
			name:  "data not an object",
			input: `{"status":"error","data":"IMAGE_TOO_BLURRED"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got.OK {
				t.Fatalf("Parse(%q).OK = true, want false", tt.input)
			}
			if tt.wantReason == nil {
				if got.RawReason != nil {
					t.Errorf("RawReason = %q, want nil", *got.RawReason)
				}
				return
			}
			if got.RawReason == nil || *got.RawReason != *tt.wantReason {
				t.Errorf("RawReason = %v, want %q", got.RawReason, *tt.wantReason)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"<html>502 Bad Gateway</html>",
		`{"status":"success","data":{"title":"trunc`,
		"null",
		"42",
		`"success"`,
		`[{"status":"success"}]`,
		`{}`,
		`{"status":"ok","data":{"title":"x"}}`,
		`{"status":"SUCCESS","data":{"title":"x"}}`,
		`{"status":1,"data":{"title":"x"}}`,
		`{"status":"success"}`,
		`{"status":"success","data":null}`,
		`{"status":"success","data":[{"title":"x"}]}`,
		`{"status":"success","data":{"foo":"bar"}}`,
		`{"data":{"title":"x"}}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			got := Parse(input)
			if got.OK {
				t.Fatalf("Parse(%q).OK = true, want false", input)
			}
			if got.RawReason != nil {
				t.Errorf("RawReason = %q, want nil", *got.RawReason)
			}
		})
	}
}

func stringPtr(s string) *string {
	return &s
}
