// Package owner identifies the entity a translation or media row belongs to.
package owner

import (
	"fmt"
	"strconv"
)

// Kind is the closed set of entity kinds that can own translations and media.
type Kind string

const (
	Categories         Kind = "categories"
	Subcategories      Kind = "subcategories"
	Workouts           Kind = "workouts"
	Variations         Kind = "variations"
	Muscles            Kind = "muscles"
	Frequencies        Kind = "frequencies"
	Goals              Kind = "goals"
	PhysicalConditions Kind = "physical-conditions"
	Plans              Kind = "plans"
	Routines           Kind = "routines"
	Directories        Kind = "directories"
	Users              Kind = "users"
)

var kinds = []Kind{
	Categories, Subcategories, Workouts, Variations, Muscles, Frequencies,
	Goals, PhysicalConditions, Plans, Routines, Directories, Users,
}

// Kinds lists every known kind.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// ParseKind rejects anything outside the known set.
func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown owner kind %q", s)
}

func (k Kind) String() string { return string(k) }

func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

// Ref points at one owning row.
type Ref struct {
	Kind Kind
	ID   uint
}

func NewRef(kind Kind, id uint) Ref {
	return Ref{Kind: kind, ID: id}
}

func (r Ref) String() string {
	return string(r.Kind) + "/" + strconv.FormatUint(uint64(r.ID), 10)
}

func (r Ref) IsZero() bool {
	return r.Kind == "" && r.ID == 0
}
