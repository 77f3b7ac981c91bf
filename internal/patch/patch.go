// Package patch implements the line-addressed patch engine (§4.5): a pure
// function over a document's lines and a list of add/mod/del operations.
package patch

import (
	"sort"
	"strings"
)

// Op is a single line-patch operation.
type Op struct {
	Kind       Kind
	LineNumber int // 1-based
	Value      string
}

type Kind string

const (
	KindAdd Kind = "add"
	KindMod Kind = "mod"
	KindDel Kind = "del"
)

// Apply applies ops to text (split on "\n") and returns the patched text.
// Deletes run first in descending line-number order (out-of-range is a
// silent no-op), then mods independently (out-of-range is a silent no-op;
// an empty Value blanks the line), then adds in ascending line-number order with a
// running offset so each applied add shifts subsequent add targets by +1.
func Apply(text string, ops []Op) string {
	lines := splitLines(text)

	var dels, mods, adds []Op
	for _, op := range ops {
		switch op.Kind {
		case KindDel:
			dels = append(dels, op)
		case KindMod:
			mods = append(mods, op)
		case KindAdd:
			adds = append(adds, op)
		}
	}

	sort.Slice(dels, func(i, j int) bool { return dels[i].LineNumber > dels[j].LineNumber })
	for _, op := range dels {
		idx := op.LineNumber - 1
		if idx < 0 || idx >= len(lines) {
			continue
		}
		lines = append(lines[:idx], lines[idx+1:]...)
	}

	for _, op := range mods {
		idx := op.LineNumber - 1
		if idx < 0 || idx >= len(lines) {
			continue
		}
		lines[idx] = op.Value
	}

	sort.Slice(adds, func(i, j int) bool { return adds[i].LineNumber < adds[j].LineNumber })
	offset := 0
	for _, op := range adds {
		target := op.LineNumber + offset
		switch {
		case target <= 1:
			lines = append([]string{op.Value}, lines...)
		case target > len(lines):
			lines = append(lines, op.Value)
		default:
			idx := target - 1
			lines = append(lines[:idx], append([]string{op.Value}, lines[idx:]...)...)
		}
		offset++
	}

	return strings.Join(lines, "\n")
}

func splitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}
