package pwa

import (
	"fmt"
	"sort"
	"strings"
)

// SubSystem identifies one decay-topology slice: two particle groups forming
// a decaying state whose combined invariant mass and helicity angle give one
// variable pair, plus the recoiling rest of the final state. Indices are
// zero-based positions within the final-state particle list. The first group
// is the analyzer: the helicity angle is the decay angle of that group in the
// combined rest frame.
type SubSystem struct {
	Groups [][]int
	Recoil []int
}

// NewSubSystem builds a SubSystem from exactly two particle groupings and a
// recoil (empty when the groups span the whole final state). Groups and
// recoil are normalized (sorted) so structurally equal requests compare equal
// regardless of the order indices were listed in.
func NewSubSystem(groups [][]int, recoil []int) (SubSystem, error) {
	if len(groups) != 2 {
		return SubSystem{}, fmt.Errorf("subsystem: want 2 groups, got %d", len(groups))
	}
	seen := make(map[int]bool)
	checkNew := func(idx int) error {
		if idx < 0 {
			return fmt.Errorf("subsystem: negative particle index %d", idx)
		}
		if seen[idx] {
			return fmt.Errorf("subsystem: particle index %d appears twice", idx)
		}
		seen[idx] = true
		return nil
	}
	norm := make([][]int, len(groups))
	for gi, g := range groups {
		if len(g) == 0 {
			return SubSystem{}, fmt.Errorf("subsystem: group %d is empty", gi)
		}
		norm[gi] = append([]int(nil), g...)
		sort.Ints(norm[gi])
		for _, idx := range norm[gi] {
			if err := checkNew(idx); err != nil {
				return SubSystem{}, err
			}
		}
	}
	rec := append([]int(nil), recoil...)
	sort.Ints(rec)
	for _, idx := range rec {
		if err := checkNew(idx); err != nil {
			return SubSystem{}, err
		}
	}
	return SubSystem{Groups: norm, Recoil: rec}, nil
}

// Equal reports structural equality on the normalized groupings and recoil.
func (s SubSystem) Equal(o SubSystem) bool {
	if len(s.Groups) != len(o.Groups) || !intsEqual(s.Recoil, o.Recoil) {
		return false
	}
	for gi := range s.Groups {
		if !intsEqual(s.Groups[gi], o.Groups[gi]) {
			return false
		}
	}
	return true
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Indices returns the union of both groups: the decaying subsystem whose
// invariant mass is measured. The recoil is excluded.
func (s SubSystem) Indices() []int {
	var all []int
	for _, g := range s.Groups {
		all = append(all, g...)
	}
	sort.Ints(all)
	return all
}

// Suffix is the stable variable-name suffix of this subsystem,
// e.g. "(1)_(2)_vs_(0)".
func (s SubSystem) Suffix() string {
	parts := make([]string, len(s.Groups))
	for gi, g := range s.Groups {
		parts[gi] = indexGroup(g)
	}
	suffix := strings.Join(parts, "_")
	if len(s.Recoil) > 0 {
		suffix += "_vs_" + indexGroup(s.Recoil)
	}
	return suffix
}

func indexGroup(g []int) string {
	elems := make([]string, len(g))
	for i, idx := range g {
		elems[i] = fmt.Sprintf("%d", idx)
	}
	return "(" + strings.Join(elems, ",") + ")"
}

func (s SubSystem) String() string {
	return "SubSystem" + s.Suffix()
}
