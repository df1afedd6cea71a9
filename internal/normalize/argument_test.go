package normalize

import (
	"encoding/json"
	"reflect"
	"testing"
)

// =============================================================================
// Extract — representation equivalence
// =============================================================================

func TestArgument_Extract_ShouldYieldSameValueAcrossEncodings(t *testing.T) {
	tests := []struct {
		name string
		arg  Argument
	}{
		{"mapping", FromMap(map[string]any{"org_id": "549236"})},
		{"strict json text", FromString(`{"org_id": "549236"}`)},
		{"single quoted text", FromString(`{'org_id': '549236'}`)},
		{"trailing comma text", FromString(`{"org_id": "549236",}`)},
		{"raw json object", FromRaw(json.RawMessage(`{"org_id":"549236"}`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.arg.Extract("org_id")
			if got != "549236" {
				t.Errorf("Extract(org_id) = %v, want 549236", got)
			}
		})
	}
}

func TestArgument_Extract_ShouldReturnBareScalarUnchanged(t *testing.T) {
	arg := FromString("549236")
	got := arg.Extract("org_id")
	if got != "549236" {
		t.Errorf("Extract on bare scalar = %v, want passthrough", got)
	}
}

func TestArgument_Extract_ShouldReturnOriginalWhenFieldAbsent(t *testing.T) {
	m := map[string]any{"network_id": "N_1"}
	arg := FromMap(m)
	got := arg.Extract("org_id")
	if !reflect.DeepEqual(got, m) {
		t.Errorf("Extract with absent field = %v, want original mapping", got)
	}
}

func TestArgument_Extract_ShouldReturnTextWhenUnparsable(t *testing.T) {
	arg := FromString("{not valid at all")
	got := arg.Extract("org_id")
	if got != "{not valid at all" {
		t.Errorf("Extract on unparsable text = %v, want passthrough", got)
	}
}

func TestArgument_Extract_ShouldNeverPanicOnEmptyInput(t *testing.T) {
	var zero Argument
	if got := zero.Extract("org_id"); got != nil {
		t.Errorf("Extract on zero argument = %v, want nil", got)
	}
	if got := FromString("").Extract("org_id"); got != "" {
		t.Errorf("Extract on empty string = %v, want empty passthrough", got)
	}
}

func TestFromRaw_ShouldDecodeQuotedStringAsText(t *testing.T) {
	arg := FromRaw(json.RawMessage(`"549236"`))
	if got := arg.Extract("org_id"); got != "549236" {
		t.Errorf("Extract on quoted raw = %v, want 549236", got)
	}
}

func TestFromAny_ShouldWrapKnownShapes(t *testing.T) {
	if a := FromAny(map[string]any{"x": "1"}); a.IsZero() {
		t.Error("Expected non-zero argument from map")
	}
	if a := FromAny("text"); a.IsZero() {
		t.Error("Expected non-zero argument from string")
	}
	if a := FromAny(nil); !a.IsZero() {
		t.Error("Expected zero argument from nil")
	}
}

// =============================================================================
// Identifier validation
// =============================================================================

func TestIdentifier_ShouldRejectMissingPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		arg  Argument
	}{
		{"empty string", FromString("")},
		{"whitespace", FromString("   ")},
		{"none literal", FromString("None")},
		{"null literal", FromString("null")},
		{"mapping without field", FromMap(map[string]any{"other": "x"})},
		{"zero argument", Argument{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if id, ok := Identifier(tt.arg, "org_id"); ok {
				t.Errorf("Identifier = %q, expected rejection", id)
			}
		})
	}
}

func TestIdentifier_ShouldAcceptValidForms(t *testing.T) {
	tests := []struct {
		name  string
		arg   Argument
		field string
		want  string
	}{
		{"bare id", FromString("549236"), "org_id", "549236"},
		{"padded id", FromString("  549236 "), "org_id", "549236"},
		{"mapping", FromMap(map[string]any{"org_id": "549236"}), "org_id", "549236"},
		{"numeric json id", FromString(`{"org_id": 549236}`), "org_id", "549236"},
		{"network id literal", FromString(`{'network_id': 'L_369858'}`), "network_id", "L_369858"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := Identifier(tt.arg, tt.field)
			if !ok {
				t.Fatalf("Identifier rejected %v", tt.arg)
			}
			if id != tt.want {
				t.Errorf("Identifier = %q, want %q", id, tt.want)
			}
		})
	}
}
