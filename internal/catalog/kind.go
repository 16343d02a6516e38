package catalog

import (
	"github.com/frahmantamala/fitness-content/internal/auth"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/media"
)

// Relation is a foreign key relationship. For a parent the column lives on this kind's
// table; for children it lives on the related table.
type Relation struct {
	Name    string
	Related owner.Kind
	Column  string
}

// Pivot is a many-to-many relationship through a table carrying a priority.
type Pivot struct {
	Name          string
	Related       owner.Kind
	Table         string
	OwnColumn     string
	RelatedColumn string
}

// Definition describes one catalog resource type.
type Definition struct {
	Kind         owner.Kind
	Translatable []string
	Parent       *Relation
	Children     []Relation
	Pivots       []Pivot
	// Media is the attachment collection of the kind, nil when it takes no files.
	Media *media.Collection
}

var translatable = []string{"name", "description"}

var (
	muscleWorkout = Pivot{Name: "muscles", Related: owner.Muscles, Table: "muscle_workout", OwnColumn: "workout_id", RelatedColumn: "muscle_id"}
	muscleVar     = Pivot{Name: "muscles", Related: owner.Muscles, Table: "muscle_variation", OwnColumn: "variation_id", RelatedColumn: "muscle_id"}
	workoutMuscle = Pivot{Name: "workouts", Related: owner.Workouts, Table: "muscle_workout", OwnColumn: "muscle_id", RelatedColumn: "workout_id"}
	varMuscle     = Pivot{Name: "variations", Related: owner.Variations, Table: "muscle_variation", OwnColumn: "muscle_id", RelatedColumn: "variation_id"}
)

// Definitions lists every catalog kind.
func Definitions() []Definition {
	return []Definition{
		{
			Kind:         owner.Categories,
			Translatable: translatable,
			Children:     []Relation{{Name: "subcategories", Related: owner.Subcategories, Column: "category_id"}},
		},
		{
			Kind:         owner.Subcategories,
			Translatable: translatable,
			Parent:       &Relation{Name: "category", Related: owner.Categories, Column: "category_id"},
			Children:     []Relation{{Name: "workouts", Related: owner.Workouts, Column: "subcategory_id"}},
		},
		{
			Kind:         owner.Workouts,
			Translatable: translatable,
			Parent:       &Relation{Name: "subcategory", Related: owner.Subcategories, Column: "subcategory_id"},
			Children:     []Relation{{Name: "variations", Related: owner.Variations, Column: "workout_id"}},
			Pivots:       []Pivot{muscleWorkout},
		},
		{
			Kind:         owner.Variations,
			Translatable: translatable,
			Parent:       &Relation{Name: "workout", Related: owner.Workouts, Column: "workout_id"},
			Pivots:       []Pivot{muscleVar},
		},
		{
			Kind:         owner.Muscles,
			Translatable: translatable,
			Pivots:       []Pivot{workoutMuscle, varMuscle},
			Media:        &media.Collection{Name: "image", Single: true, MimeTypes: media.ImageTypes},
		},
		{Kind: owner.Frequencies, Translatable: translatable},
		{Kind: owner.Goals, Translatable: translatable},
		{Kind: owner.PhysicalConditions, Translatable: translatable},
		{
			Kind:         owner.Plans,
			Translatable: translatable,
			Children:     []Relation{{Name: "routines", Related: owner.Routines, Column: "plan_id"}},
			Media:        &media.Collection{Name: "files"},
		},
		{
			Kind:         owner.Routines,
			Translatable: translatable,
			Parent:       &Relation{Name: "plan", Related: owner.Plans, Column: "plan_id"},
		},
	}
}

func (d Definition) Type() string { return d.Kind.String() }

// Relationship describes a relationship name of d for routing.
type Relationship struct {
	Name    string
	Related owner.Kind
	ToOne   bool
	Pivot   *Pivot
	Child   *Relation
}

// Relationships returns the parent, the children and the pivots of d.
func (d Definition) Relationships() []Relationship {
	var out []Relationship
	if d.Parent != nil {
		out = append(out, Relationship{Name: d.Parent.Name, Related: d.Parent.Related, ToOne: true})
	}
	for i := range d.Children {
		c := d.Children[i]
		out = append(out, Relationship{Name: c.Name, Related: c.Related, Child: &c})
	}
	for i := range d.Pivots {
		p := d.Pivots[i]
		out = append(out, Relationship{Name: p.Name, Related: p.Related, Pivot: &p})
	}
	return out
}

// Relationship looks up a relationship by name.
func (d Definition) Relationship(name string) (Relationship, bool) {
	for _, rel := range d.Relationships() {
		if rel.Name == name {
			return rel, true
		}
	}
	return Relationship{}, false
}

// Policy is the default catalog policy plus the predicates of every relationship.
func (d Definition) Policy() auth.Policy {
	p := auth.ResourcePolicy(d.Type())
	for _, rel := range d.Relationships() {
		p = p.WithRelation(d.Type(), rel.Name, rel.Related.String())
	}
	return p
}

// RegisterPolicies installs the policy of every catalog kind.
func RegisterPolicies(gate *auth.Gate, defs []Definition) {
	for _, d := range defs {
		gate.Register(d.Type(), d.Policy())
	}
}
