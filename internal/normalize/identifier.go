package normalize

import (
	"fmt"
	"strings"
)

// missingPlaceholders are textual stand-ins for "no value" that reasoning
// loops are known to emit in place of a real identifier.
var missingPlaceholders = map[string]struct{}{
	"":     {},
	"none": {},
	"null": {},
	"nil":  {},
}

// Identifier extracts field from the argument and validates that the result
// is a usable identifier: non-empty after trimming and not a textual
// placeholder for "missing". The second return is false when no usable
// identifier was found.
func Identifier(arg Argument, field string) (string, bool) {
	v := arg.Extract(field)
	s := stringify(v)
	s = strings.TrimSpace(s)
	if _, missing := missingPlaceholders[strings.ToLower(s)]; missing {
		return "", false
	}
	return s, true
}

// stringify flattens the extracted value to text. Numbers arrive as float64
// from JSON decoding; identifiers like org ids must not pick up a ".0".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case map[string]any:
		// A mapping that survived extraction does not contain the field;
		// treat it as no identifier rather than serializing the whole map.
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
