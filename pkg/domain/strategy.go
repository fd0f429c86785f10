package domain

import (
	"fmt"
	"strings"
)

// ExistsStrategy decides what a write does when its target already has content.
type ExistsStrategy int

const (
	// Abort leaves an existing target untouched and reports OverwriteAborted.
	Abort ExistsStrategy = iota
	// Overwrite truncates and replaces.
	Overwrite
	// PrependOnExisting writes the new content before the existing content.
	PrependOnExisting
	// AppendOnExisting writes the new content after the existing content.
	AppendOnExisting
)

var strategyNames = map[ExistsStrategy]string{
	Abort:             "abort",
	Overwrite:         "overwrite",
	PrependOnExisting: "prepend",
	AppendOnExisting:  "append",
}

func (s ExistsStrategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// Valid reports whether s is one of the declared strategies.
func (s ExistsStrategy) Valid() bool {
	_, ok := strategyNames[s]
	return ok
}

func (s ExistsStrategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown exists strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *ExistsStrategy) UnmarshalText(text []byte) error {
	parsed, err := ParseExistsStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseExistsStrategy resolves a strategy name. The long forms "prepend_on_existing" and
// "append_on_existing" are accepted too.
func ParseExistsStrategy(s string) (ExistsStrategy, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	norm = strings.TrimSuffix(norm, "_on_existing")
	for k, name := range strategyNames {
		if name == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown exists strategy %q", s)
}

// ApplyStrategy computes the bytes a host must persist for req, given what is currently
// stored. abort is true only for Abort on an existing target, in which case nothing may be
// mutated.
func ApplyStrategy(existing []byte, existed bool, req FileWriteRequest) (contents []byte, abort bool) {
	if !existed {
		return req.Contents, false
	}
	switch req.Strategy {
	case Abort:
		return nil, true
	case PrependOnExisting:
		out := make([]byte, 0, len(req.Contents)+len(existing))
		out = append(out, req.Contents...)
		return append(out, existing...), false
	case AppendOnExisting:
		out := make([]byte, 0, len(existing)+len(req.Contents))
		out = append(out, existing...)
		return append(out, req.Contents...), false
	default:
		return req.Contents, false
	}
}
