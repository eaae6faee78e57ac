package security

import (
	"log/slog"
)

// PayloadValidator applies the injection signature tables to submitted
// form data. It recurses into nested maps and slices and tests every
// string leaf; any single match anywhere denies the whole payload.
//
// Failure policy: fail-closed. The decision never touches the cache, so
// infrastructure faults cannot soften it; a detected pattern is final.
type PayloadValidator struct {
	patterns *PatternSet
	logger   *slog.Logger
}

// NewPayloadValidator creates a payload validator using the given pattern
// set, or the built-in tables when nil.
func NewPayloadValidator(patterns *PatternSet, logger *slog.Logger) *PayloadValidator {
	if patterns == nil {
		patterns = DefaultPatternSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PayloadValidator{patterns: patterns, logger: logger}
}

// Validate reports whether the form data is free of injection patterns.
// Values may be scalars, nested maps, or slices; non-string leaves never
// trigger a denial on their own. Field names are scanned as well as
// values, since a hostile key is as dangerous as a hostile value once it
// is echoed back or interpolated downstream.
func (v *PayloadValidator) Validate(data map[string]any) bool {
	_, _, ok := v.Inspect(data)
	return ok
}

// Inspect is Validate with diagnostics: on denial it returns the field
// path and the pattern group that fired, for violation records and audit
// logs.
func (v *PayloadValidator) Inspect(data map[string]any) (field string, group PatternGroup, ok bool) {
	for name, value := range data {
		if g, matched := v.patterns.Scan(name); matched {
			return name, g, false
		}
		if f, g, matched := v.scanValue(name, value); matched {
			return f, g, false
		}
	}
	return "", "", true
}

// scanValue recurses into a single field value. The field path uses dotted
// notation for nested maps and the parent name for slice elements.
func (v *PayloadValidator) scanValue(path string, value any) (string, PatternGroup, bool) {
	switch val := value.(type) {
	case string:
		if g, matched := v.patterns.Scan(val); matched {
			return path, g, true
		}
	case map[string]any:
		for name, nested := range val {
			if g, matched := v.patterns.Scan(name); matched {
				return path + "." + name, g, true
			}
			if f, g, matched := v.scanValue(path+"."+name, nested); matched {
				return f, g, true
			}
		}
	case []any:
		for _, item := range val {
			if f, g, matched := v.scanValue(path, item); matched {
				return f, g, true
			}
		}
	case []string:
		for _, item := range val {
			if g, matched := v.patterns.Scan(item); matched {
				return path, g, true
			}
		}
	}
	// Numbers, booleans, nil, and other non-string scalars are clean by
	// definition.
	return "", "", false
}
