package store

import (
	"encoding/json"
	"time"
)

// Catalog entities. The planner consumes only active rows, sorted by
// SortOrder.

type Service struct {
	ID        string
	Name      string
	Status    string
	SortOrder int
}

type SubService struct {
	ID        string
	ServiceID string
	Name      string
	Status    string
	SortOrder int
}

type MealPlan struct {
	ID           string
	SubServiceID string
	Name         string
	Status       string
	SortOrder    int
}

type SubMealPlan struct {
	ID           string
	MealPlanID   string
	Name         string
	Status       string
	SortOrder    int
	IsRepeatPlan bool
}

type MenuItem struct {
	ID           string
	Name         string
	Descriptions []string
	Status       string
}

type Company struct {
	ID     string
	Name   string
	Status string
}

type Building struct {
	ID        string
	CompanyID string
	Name      string
	Status    string
}

// CombinedMenu is the stored combined-menu document. MenuData is the
// serialized grid with empty cells pruned.
type CombinedMenu struct {
	ID        string
	CompanyID string
	StartDate string
	EndDate   string
	Status    string // draft | active | archived
	MenuData  json.RawMessage
	UpdatedAt time.Time
}

// CompanyMenuDoc is one projected menu for a (company, building) pair.
// Regeneration creates new rows; old rows for the combined menu are
// superseded, never updated in place.
type CompanyMenuDoc struct {
	ID             string
	CombinedMenuID string
	CompanyID      string
	BuildingID     string
	StartDate      string
	EndDate        string
	Days           json.RawMessage
	CreatedAt      time.Time
}

// RepetitionLog is a persisted conflict-ledger entry, keyed to its
// combined-menu range.
type RepetitionLog struct {
	ID        string
	CompanyID string
	StartDate string
	EndDate   string
	Entry     json.RawMessage
	CreatedAt time.Time
}

// Assignment document kinds.
const (
	AssignmentStructural    = "structural"
	AssignmentMealStructure = "meal_structure"
)

// AssignmentDoc is an externally maintained day-of-week path tree for one
// (company, building) pair. Kind distinguishes the structural assignment
// from the meal-plan-structure assignment.
type AssignmentDoc struct {
	ID         string
	CompanyID  string
	BuildingID string
	Kind       string // structural | meal_structure
	Status     string
	Days       json.RawMessage
	UpdatedAt  time.Time
}
