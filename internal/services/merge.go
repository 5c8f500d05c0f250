package services

// valueKind classifies decoded JSON values for state merging. Merging is
// defined over this closed set so a changed action_effect shape can only
// ever hit one of three explicit behaviors.
type valueKind int

const (
	kindScalar valueKind = iota
	kindMapping
	kindSequence
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case map[string]any:
		return kindMapping
	case []any:
		return kindSequence
	default:
		return kindScalar
	}
}

// mergeValue combines an existing state value with an incoming one:
// mapping+mapping shallow-merges with incoming keys winning, sequence+sequence
// concatenates (no de-duplication), every other combination replaces outright.
// A nil existing value therefore behaves as a plain insert.
func mergeValue(existing, incoming any) any {
	if existing == nil {
		return incoming
	}
	oldKind, newKind := kindOf(existing), kindOf(incoming)
	if oldKind != newKind {
		return incoming
	}
	switch oldKind {
	case kindMapping:
		oldMap := existing.(map[string]any)
		newMap := incoming.(map[string]any)
		merged := make(map[string]any, len(oldMap)+len(newMap))
		for k, v := range oldMap {
			merged[k] = v
		}
		for k, v := range newMap {
			merged[k] = v
		}
		return merged
	case kindSequence:
		oldSeq := existing.([]any)
		newSeq := incoming.([]any)
		merged := make([]any, 0, len(oldSeq)+len(newSeq))
		merged = append(merged, oldSeq...)
		merged = append(merged, newSeq...)
		return merged
	default:
		return incoming
	}
}

// asNumber reads a numeric value that may arrive as a decoded JSON float or
// as a native Go integer from internal callers.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
