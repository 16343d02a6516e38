package catalog

import "time"

// Base holds the columns every catalog table shares.
type Base struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description"`
	Slug        string    `gorm:"column:slug;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Base) Core() *Base { return b }

// Record is implemented by pointers to every catalog model.
type Record interface {
	Core() *Base
	TableName() string
}

// Parented is implemented by models with a parent foreign key.
type Parented interface {
	ParentRef() *uint
	SetParentRef(id *uint)
}

type Category struct {
	Base
}

func (Category) TableName() string { return "categories" }

type Subcategory struct {
	Base
	CategoryID *uint `gorm:"column:category_id;index"`
}

func (Subcategory) TableName() string { return "subcategories" }

func (s *Subcategory) ParentRef() *uint      { return s.CategoryID }
func (s *Subcategory) SetParentRef(id *uint) { s.CategoryID = id }

type Workout struct {
	Base
	SubcategoryID *uint `gorm:"column:subcategory_id;index"`
}

func (Workout) TableName() string { return "workouts" }

func (w *Workout) ParentRef() *uint      { return w.SubcategoryID }
func (w *Workout) SetParentRef(id *uint) { w.SubcategoryID = id }

type Variation struct {
	Base
	WorkoutID *uint `gorm:"column:workout_id;index"`
}

func (Variation) TableName() string { return "variations" }

func (v *Variation) ParentRef() *uint      { return v.WorkoutID }
func (v *Variation) SetParentRef(id *uint) { v.WorkoutID = id }

type Muscle struct {
	Base
}

func (Muscle) TableName() string { return "muscles" }

type Frequency struct {
	Base
}

func (Frequency) TableName() string { return "frequencies" }

type Goal struct {
	Base
}

func (Goal) TableName() string { return "goals" }

type PhysicalCondition struct {
	Base
}

func (PhysicalCondition) TableName() string { return "physical_conditions" }

type Plan struct {
	Base
}

func (Plan) TableName() string { return "plans" }

type Routine struct {
	Base
	PlanID *uint `gorm:"column:plan_id;index"`
}

func (Routine) TableName() string { return "routines" }

func (r *Routine) ParentRef() *uint      { return r.PlanID }
func (r *Routine) SetParentRef(id *uint) { r.PlanID = id }

// Priority qualifies how a muscle takes part in a workout or variation.
type Priority string

const (
	PriorityPrincipal  Priority = "PRINCIPAL"
	PrioritySecondary  Priority = "SECONDARY"
	PriorityAntagonist Priority = "ANTAGONIST"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityPrincipal, PrioritySecondary, PriorityAntagonist:
		return true
	}
	return false
}

type MuscleWorkout struct {
	MuscleID  uint     `gorm:"column:muscle_id;primaryKey"`
	WorkoutID uint     `gorm:"column:workout_id;primaryKey"`
	Priority  Priority `gorm:"column:priority;not null;default:PRINCIPAL"`
}

func (MuscleWorkout) TableName() string { return "muscle_workout" }

type MuscleVariation struct {
	MuscleID    uint     `gorm:"column:muscle_id;primaryKey"`
	VariationID uint     `gorm:"column:variation_id;primaryKey"`
	Priority    Priority `gorm:"column:priority;not null;default:PRINCIPAL"`
}

func (MuscleVariation) TableName() string { return "muscle_variation" }
