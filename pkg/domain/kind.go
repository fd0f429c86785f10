package domain

import (
	"fmt"
	"sort"
	"strings"
)

// OperationKind tags the variant of a Request (and of its Outcome).
type OperationKind int

const (
	KindNetwork OperationKind = iota + 1
	KindFileRead
	KindFileWrite
)

var kindNames = map[OperationKind]string{
	KindNetwork:   "network",
	KindFileRead:  "file_read",
	KindFileWrite: "file_write",
}

func (k OperationKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k OperationKind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown operation kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *OperationKind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind resolves a kind from its name. Matching is case-insensitive and accepts
// "-" in place of "_".
func ParseKind(s string) (OperationKind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for k, name := range kindNames {
		if name == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind %q", s)
}

// KindSet is the set of operation kinds a host advertises.
type KindSet map[OperationKind]struct{}

// NewKindSet builds a set from the given kinds.
func NewKindSet(kinds ...OperationKind) KindSet {
	set := make(KindSet, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

// Has reports whether kind is in the set. A nil set has nothing.
func (s KindSet) Has(kind OperationKind) bool {
	_, ok := s[kind]
	return ok
}

// Union returns a new set holding the kinds of both sets.
func (s KindSet) Union(other KindSet) KindSet {
	out := make(KindSet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Slice returns the kinds in a stable order.
func (s KindSet) Slice() []OperationKind {
	out := make([]OperationKind, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s KindSet) String() string {
	names := make([]string, 0, len(s))
	for _, k := range s.Slice() {
		names = append(names, k.String())
	}
	return "[" + strings.Join(names, ",") + "]"
}
