package menu

import "time"

// PathSet is the set of grid paths visible on one day of the week.
type PathSet map[Path]struct{}

// WeekPaths maps each day of week to its visible paths.
type WeekPaths map[time.Weekday]PathSet

func (w WeekPaths) permits(day time.Weekday, path Path) bool {
	if w == nil {
		return false
	}
	set, ok := w[day]
	if !ok {
		return false
	}
	_, ok = set[path]
	return ok
}

// Recipient is one (company, building) pair with its externally maintained
// assignment documents. Structural declares which paths the pair sees by
// day of week; MealStructure is the companion meal-plan-structure document.
// A recipient missing either document is skipped by the projector.
type Recipient struct {
	CompanyID     string
	BuildingID    string
	Structural    WeekPaths
	MealStructure WeekPaths
}

func (r Recipient) active() bool {
	return len(r.Structural) > 0 && len(r.MealStructure) > 0
}

// ProjectedCell is one retained date/path entry of a company menu.
type ProjectedCell struct {
	MenuItemIDs          []string          `json:"menuItemIds"`
	SelectedDescriptions map[string]string `json:"selectedDescriptions,omitempty"`
}

// CompanyMenu is the per-recipient fan-out of a combined menu. Days holds
// only dates with at least one qualifying item; paths with zero items
// after filtering are omitted, never stored empty.
type CompanyMenu struct {
	CompanyID  string
	BuildingID string
	StartDate  string
	EndDate    string
	Days       map[string]map[Path]ProjectedCell
}

// StructuralTargets computes the default visibility set for a cell: every
// recipient whose structural assignment permits the cell's path on the
// cell's day of week. This is the set overrides are diffed against.
func StructuralTargets(recipients []Recipient, key CellKey) []Target {
	day, err := Weekday(key.Date)
	if err != nil {
		return nil
	}
	var targets []Target
	for _, r := range recipients {
		if r.Structural.permits(day, key.Path) {
			targets = append(targets, Target{CompanyID: r.CompanyID, BuildingID: r.BuildingID})
		}
	}
	return targets
}

// Project fans the combined-menu grid out into one menu per recipient.
// Recipients without both assignment documents are skipped silently:
// projection is best-effort per recipient. Recipients whose menu ends up
// empty produce no document.
func Project(g *Grid, recipients []Recipient) []CompanyMenu {
	var menus []CompanyMenu
	for _, r := range recipients {
		if !r.active() {
			continue
		}
		days := make(map[string]map[Path]ProjectedCell)
		for _, date := range g.Dates {
			day, err := Weekday(date)
			if err != nil {
				continue
			}
			for _, path := range g.Paths {
				if !r.Structural.permits(day, path) || !r.MealStructure.permits(day, path) {
					continue
				}
				key := CellKey{Date: date, Path: path}
				cell := g.Cells[key]
				if cell.Empty() {
					continue
				}
				structural := StructuralTargets(recipients, key)
				var kept []string
				var descriptions map[string]string
				for _, itemID := range cell.MenuItemIDs {
					effective := EffectiveAssignment(cell, itemID, structural)
					if !HasTarget(effective, r.CompanyID, r.BuildingID) {
						continue
					}
					kept = append(kept, itemID)
					if text, ok := cell.SelectedDescriptions[itemID]; ok {
						if descriptions == nil {
							descriptions = make(map[string]string)
						}
						descriptions[itemID] = text
					}
				}
				if len(kept) == 0 {
					continue
				}
				if days[date] == nil {
					days[date] = make(map[Path]ProjectedCell)
				}
				days[date][path] = ProjectedCell{MenuItemIDs: kept, SelectedDescriptions: descriptions}
			}
		}
		if len(days) == 0 {
			continue
		}
		menus = append(menus, CompanyMenu{
			CompanyID:  r.CompanyID,
			BuildingID: r.BuildingID,
			StartDate:  g.StartDate,
			EndDate:    g.EndDate,
			Days:       days,
		})
	}
	return menus
}
