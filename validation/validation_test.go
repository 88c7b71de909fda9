package validation

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/lexstream/errors"
)

func TestValidatorRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"present", "serendipity", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New().Required("word", tc.value)
			if v.HasErrors() != tc.wantErr {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tc.wantErr)
			}
		})
	}
}

func TestValidatorKey(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantMsg string
	}{
		{"valid", "serendipity", ""},
		{"unicode", "café", ""},
		{"blank", " ", "is required"},
		{"too long", strings.Repeat("a", 9), "must be 8 characters or less"},
		{"control", "a\nb", "must not contain control characters"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New().Key("word", tc.value, 8)
			if tc.wantMsg == "" {
				if v.HasErrors() {
					t.Fatalf("unexpected errors: %v", v.Errors())
				}
				return
			}
			if !v.HasErrors() {
				t.Fatal("expected error")
			}
			if got := v.Errors()[0].Message; got != tc.wantMsg {
				t.Errorf("message = %q, want %q", got, tc.wantMsg)
			}
		})
	}
}

func TestValidatorRequiredUUID(t *testing.T) {
	if New().RequiredUUID("id", uuid.New().String()).HasErrors() {
		t.Error("expected no errors for valid UUID")
	}
	for _, bad := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		if !New().RequiredUUID("id", bad).HasErrors() {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestValidatorFraction(t *testing.T) {
	for _, ok := range []float64{0, 0.55, 1} {
		if New().Fraction("progress", ok).HasErrors() {
			t.Errorf("expected %v to be accepted", ok)
		}
	}
	for _, bad := range []float64{-0.01, 1.2, math.NaN()} {
		if !New().Fraction("progress", bad).HasErrors() {
			t.Errorf("expected %v to be rejected", bad)
		}
	}
}

func TestValidatorPositiveDuration(t *testing.T) {
	if New().PositiveDuration("connect_timeout", 5*time.Second).HasErrors() {
		t.Error("expected positive duration to pass")
	}
	if !New().PositiveDuration("connect_timeout", 0).HasErrors() {
		t.Error("expected zero duration to fail")
	}
}

func TestValidatorRangeOneOfCustom(t *testing.T) {
	v := New().
		Range("chunk_size", 0, 1, 10).
		OneOf("format", "xml", []string{"json", "console"}).
		OneOf("format", "", []string{"json"}).
		Custom(false, "weights", "must sum to a positive value")
	if got := len(v.Errors()); got != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", got, v.Errors())
	}
	if v.Errors()[2].Field != "weights" {
		t.Errorf("expected weights error last, got %q", v.Errors()[2].Field)
	}
}

func TestValidatorValidate(t *testing.T) {
	if New().Required("name", "John").Validate() != nil {
		t.Error("expected nil for valid input")
	}
	if New().Err() != nil {
		t.Error("expected nil Err for empty validator")
	}

	appErr := New().Required("word", "").Required("path", "").Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected code %s, got %s", errors.ErrCodeInvalidInput, appErr.Code)
	}
	if appErr.Details["fields"] == nil {
		t.Fatal("expected field details in error")
	}
	if !strings.Contains(appErr.Message, "word") || !strings.Contains(appErr.Message, "path") {
		t.Errorf("expected both fields in message, got %q", appErr.Message)
	}
}

func TestStructValidate(t *testing.T) {
	type Section struct {
		Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
		Format  string        `mapstructure:"format" validate:"oneof=json console"`
	}
	type Root struct {
		Word   string  `json:"word" validate:"streamkey"`
		Stream Section `mapstructure:"stream"`
	}

	if err := Validate(Root{Word: "serendipity", Stream: Section{Timeout: time.Second, Format: "json"}}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	err := Validate(Root{Word: " ", Stream: Section{Format: "xml"}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"word:", "stream.timeout: must be greater than 0", "stream.format: must be one of"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestRequiredFunc(t *testing.T) {
	if err := Required("name", "value"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := Required("name", ""); err == nil {
		t.Error("expected error for empty required field")
	}
}
