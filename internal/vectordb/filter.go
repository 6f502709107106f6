package vectordb

import (
	"fmt"
	"strconv"
	"strings"
)

// Filter is a boolean expression tree over equality predicates on chunk
// metadata. A nil Filter means unscoped search.
type Filter interface {
	Matches(meta map[string]string) bool
	String() string
}

// Eq matches chunks whose metadata value for Key equals Value.
type Eq struct {
	Key   string
	Value string
}

func (e Eq) Matches(meta map[string]string) bool {
	return meta[e.Key] == e.Value
}

func (e Eq) String() string {
	return fmt.Sprintf("%s=%q", e.Key, e.Value)
}

// And matches when every child filter matches. An empty And matches all.
type And []Filter

func (a And) Matches(meta map[string]string) bool {
	for _, f := range a {
		if !f.Matches(meta) {
			return false
		}
	}
	return true
}

func (a And) String() string {
	return "(" + joinFilters(a, " AND ") + ")"
}

// Or matches when any child filter matches. An empty Or matches nothing.
type Or []Filter

func (o Or) Matches(meta map[string]string) bool {
	for _, f := range o {
		if f.Matches(meta) {
			return true
		}
	}
	return false
}

func (o Or) String() string {
	return "(" + joinFilters(o, " OR ") + ")"
}

func joinFilters(fs []Filter, sep string) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.String()
	}
	return strings.Join(parts, sep)
}

// FileEq matches chunks belonging to one file: by file_id, or by exact
// source filename as a safety net for older chunks indexed without an id.
func FileEq(fileID, filename string) Filter {
	return Or{
		Eq{Key: KeyFileID, Value: fileID},
		Eq{Key: KeySource, Value: filename},
	}
}

// PageIn matches chunks on any of the given pages. Each page is matched
// against both its numeric string and itself; stored values are strings
// already, so this mirrors the int/string tolerance of the wire format.
func PageIn(pages []int) Filter {
	var or Or
	for _, p := range pages {
		or = append(or, Eq{Key: KeyPage, Value: strconv.Itoa(p)})
	}
	return or
}
