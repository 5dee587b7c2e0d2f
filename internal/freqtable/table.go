package freqtable

import (
	"errors"
	"fmt"
	"slices"
)

// Frequency is a CPU clock frequency in kHz.
type Frequency uint

// Relation selects the rounding direction when a requested frequency does
// not exactly match a table entry.
type Relation int

const (
	// RelationAtLeast resolves to the lowest table entry at or above the
	// requested frequency.
	RelationAtLeast Relation = iota
	// RelationAtMost resolves to the highest table entry at or below the
	// requested frequency.
	RelationAtMost
)

func (r Relation) String() string {
	switch r {
	case RelationAtLeast:
		return "at-least"
	case RelationAtMost:
		return "at-most"
	default:
		return fmt.Sprintf("relation(%d)", int(r))
	}
}

// ParseRelation maps the wire/CLI spelling of a relation to its value.
func ParseRelation(s string) (Relation, error) {
	switch s {
	case "at-least", "":
		return RelationAtLeast, nil
	case "at-most":
		return RelationAtMost, nil
	default:
		return 0, fmt.Errorf("unknown relation %q", s)
	}
}

var (
	// ErrNoMatch is returned when no table entry satisfies the requested
	// frequency in the requested direction.
	ErrNoMatch = errors.New("no supported frequency satisfies request")

	// ErrEmptyTable is returned when a table would hold no usable entries.
	ErrEmptyTable = errors.New("frequency table has no entries")
)

// Table is the set of supported frequencies for one core, sorted ascending.
// Tables are immutable once built; Clamp returns a new Table.
type Table struct {
	freqs []Frequency
}

// NewTable builds a table from the given entries. Entries are sorted and
// deduplicated; zero entries are rejected.
func NewTable(freqs []Frequency) (Table, error) {
	if len(freqs) == 0 {
		return Table{}, ErrEmptyTable
	}
	sorted := slices.Clone(freqs)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if sorted[0] == 0 {
		return Table{}, fmt.Errorf("invalid table entry: frequency must be non-zero")
	}
	return Table{freqs: sorted}, nil
}

// Lookup resolves target against the table in the requested direction only.
// There is no fallback to the opposite relation; initialization code that
// needs the dual attempt performs two explicit calls.
func (t Table) Lookup(target Frequency, rel Relation) (Frequency, error) {
	if len(t.freqs) == 0 {
		return 0, ErrEmptyTable
	}
	switch rel {
	case RelationAtLeast:
		idx, found := slices.BinarySearch(t.freqs, target)
		if found {
			return t.freqs[idx], nil
		}
		if idx == len(t.freqs) {
			return 0, fmt.Errorf("%w: %d kHz above table maximum %d kHz",
				ErrNoMatch, target, t.freqs[len(t.freqs)-1])
		}
		return t.freqs[idx], nil
	case RelationAtMost:
		idx, found := slices.BinarySearch(t.freqs, target)
		if found {
			return t.freqs[idx], nil
		}
		if idx == 0 {
			return 0, fmt.Errorf("%w: %d kHz below table minimum %d kHz",
				ErrNoMatch, target, t.freqs[0])
		}
		return t.freqs[idx-1], nil
	default:
		return 0, fmt.Errorf("unknown relation %d", int(rel))
	}
}

// Clamp returns a table restricted to [min, max]. A zero bound leaves that
// side open. Clamping away every entry is an error so a malformed board
// override cannot silently disable a core.
func (t Table) Clamp(min, max Frequency) (Table, error) {
	clamped := make([]Frequency, 0, len(t.freqs))
	for _, f := range t.freqs {
		if min != 0 && f < min {
			continue
		}
		if max != 0 && f > max {
			continue
		}
		clamped = append(clamped, f)
	}
	if len(clamped) == 0 {
		return Table{}, fmt.Errorf("%w: bounds [%d, %d] exclude all entries", ErrEmptyTable, min, max)
	}
	return Table{freqs: clamped}, nil
}

// Min returns the lowest supported frequency.
func (t Table) Min() Frequency {
	if len(t.freqs) == 0 {
		return 0
	}
	return t.freqs[0]
}

// Max returns the highest supported frequency.
func (t Table) Max() Frequency {
	if len(t.freqs) == 0 {
		return 0
	}
	return t.freqs[len(t.freqs)-1]
}

// Frequencies returns a copy of the table entries, ascending.
func (t Table) Frequencies() []Frequency {
	return slices.Clone(t.freqs)
}
