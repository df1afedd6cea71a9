// Package normalize coerces loosely-typed, agent-produced call arguments
// into the strict field values remote operations require. The reasoning loop
// may hand a tool a bare identifier ("549236"), a native mapping
// ({"org_id": "549236"}), or an encoded textual form of such a mapping,
// including pseudo-JSON with single quotes or trailing commas.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/jsonc"
)

type argKind int

const (
	kindZero argKind = iota
	kindText
	kindMapping
)

// Argument is a discriminated call argument: a bare scalar, a structured
// mapping, or encoded text. The zero value is an absent argument.
type Argument struct {
	kind   argKind
	text   string
	fields map[string]any
}

// FromString wraps a bare scalar or encoded-text argument.
func FromString(s string) Argument {
	return Argument{kind: kindText, text: s}
}

// FromMap wraps a native mapping argument.
func FromMap(m map[string]any) Argument {
	return Argument{kind: kindMapping, fields: m}
}

// FromRaw wraps a raw JSON argument as received on the wire. Objects become
// mappings; strings become text; anything else is carried verbatim as text.
func FromRaw(raw json.RawMessage) Argument {
	if len(raw) == 0 {
		return Argument{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return FromMap(m)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return FromString(s)
	}
	return FromString(string(raw))
}

// FromAny wraps an argument of unknown dynamic type.
func FromAny(v any) Argument {
	switch t := v.(type) {
	case nil:
		return Argument{}
	case Argument:
		return t
	case string:
		return FromString(t)
	case map[string]any:
		return FromMap(t)
	case json.RawMessage:
		return FromRaw(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return Argument{}
		}
		return FromRaw(b)
	}
}

// IsZero reports whether the argument is absent.
func (a Argument) IsZero() bool { return a.kind == kindZero }

// Value returns the argument's underlying value: the mapping, the text, or
// nil when absent.
func (a Argument) Value() any {
	switch a.kind {
	case kindMapping:
		return a.fields
	case kindText:
		return a.text
	default:
		return nil
	}
}

// String renders the argument for logging and error records.
func (a Argument) String() string {
	switch a.kind {
	case kindMapping:
		b, err := json.Marshal(a.fields)
		if err != nil {
			return ""
		}
		return string(b)
	case kindText:
		return a.text
	default:
		return ""
	}
}

// Extract returns the value for field if the argument is, or parses into, a
// mapping containing it. Text arguments get a strict JSON parse first, then
// a permissive pass (comments, single quotes, trailing commas). When both
// parses fail or the field is absent, the argument's underlying value is
// returned unchanged; absence is not an error at this layer — downstream
// identifier validation decides.
func (a Argument) Extract(field string) any {
	switch a.kind {
	case kindMapping:
		if v, ok := a.fields[field]; ok {
			return v
		}
		return a.fields
	case kindText:
		if m, ok := parseMapping(a.text); ok {
			if v, ok := m[field]; ok {
				return v
			}
		}
		return a.text
	default:
		return nil
	}
}

// parseMapping attempts to interpret text as a JSON object, strictly and
// then permissively.
func parseMapping(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
		return m, true
	}
	relaxed := jsonc.ToJSON([]byte(singleToDoubleQuotes(trimmed)))
	if err := json.Unmarshal(relaxed, &m); err == nil {
		return m, true
	}
	return nil, false
}

// singleToDoubleQuotes rewrites single-quoted strings into double-quoted
// ones so pseudo-JSON like {'org_id': '549236'} survives the permissive
// pass. Quotes inside double-quoted strings are left alone.
func singleToDoubleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inDouble := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			if inDouble && i > 0 && s[i-1] == '\\' {
				// escaped quote, stays inside the string
			} else {
				inDouble = !inDouble
			}
			b.WriteByte(c)
		case '\'':
			if inDouble {
				b.WriteByte(c)
			} else {
				b.WriteByte('"')
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
