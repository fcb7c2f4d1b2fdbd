// Package menu implements the combined-menu grid: the in-memory week of
// menu assignments, repetition detection, the conflict ledger, per-item
// visibility overrides, and the projection into per-company menus.
package menu

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for grid dates.
const DateLayout = "2006-01-02"

// Path identifies one row of the grid: a service drilled down to a
// sub-meal-plan. Every cell on a date belongs to exactly one Path.
type Path struct {
	ServiceID     string `json:"serviceId"`
	SubServiceID  string `json:"subServiceId"`
	MealPlanID    string `json:"mealPlanId"`
	SubMealPlanID string `json:"subMealPlanId"`
}

func (p Path) String() string {
	return p.ServiceID + "|" + p.SubServiceID + "|" + p.MealPlanID + "|" + p.SubMealPlanID
}

// CellKey addresses one cell: a Path on a concrete date.
type CellKey struct {
	Date string `json:"date"`
	Path Path   `json:"path"`
}

func (k CellKey) String() string {
	return k.Date + "|" + k.Path.String()
}

// Target is one (company, building) pair an item can be visible to.
type Target struct {
	CompanyID  string `json:"companyId"`
	BuildingID string `json:"buildingId"`
}

func (t Target) Key() string {
	return t.CompanyID + "|" + t.BuildingID
}

// Assignment is a per-item visibility override stored on a cell. Its
// presence in Cell.CustomAssignments means "use exactly these targets";
// a present Assignment with zero targets hides the item from everyone.
// Absence from the map means structural default. Keeping the tri-state
// behind map presence plus an explicit struct avoids nil-vs-empty slices
// carrying meaning on their own.
type Assignment struct {
	Targets []Target `json:"targets"`
}

// Cell is the leaf of the grid.
type Cell struct {
	MenuItemIDs          []string              `json:"menuItemIds"`
	SelectedDescriptions map[string]string     `json:"selectedDescriptions,omitempty"`
	CustomAssignments    map[string]Assignment `json:"customAssignments,omitempty"`
}

func (c *Cell) Empty() bool {
	return c == nil || len(c.MenuItemIDs) == 0
}

// clone deep-copies the cell so snapshots can leave the session mutex.
func (c *Cell) clone() *Cell {
	if c == nil {
		return nil
	}
	out := &Cell{MenuItemIDs: make([]string, len(c.MenuItemIDs))}
	copy(out.MenuItemIDs, c.MenuItemIDs)
	if len(c.SelectedDescriptions) > 0 {
		out.SelectedDescriptions = make(map[string]string, len(c.SelectedDescriptions))
		for id, text := range c.SelectedDescriptions {
			out.SelectedDescriptions[id] = text
		}
	}
	if len(c.CustomAssignments) > 0 {
		out.CustomAssignments = make(map[string]Assignment, len(c.CustomAssignments))
		for id, a := range c.CustomAssignments {
			out.CustomAssignments[id] = Assignment{Targets: append([]Target(nil), a.Targets...)}
		}
	}
	return out
}

func (c *Cell) contains(itemID string) bool {
	for _, id := range c.MenuItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// Grid is a week (or any bounded date range) of menu assignments, stored
// as a flat map over composite keys. Dates and Paths record the order the
// grid was generated in; the repetition scan follows that order so first
// match is deterministic within a session.
type Grid struct {
	StartDate string
	EndDate   string
	Dates     []string
	Paths     []Path
	Cells     map[CellKey]*Cell

	// repeatExempt marks sub-meal-plans flagged isRepeatPlan: their rows
	// skip repetition detection entirely.
	repeatExempt map[string]bool
}

// NewGrid builds a fully populated grid: one cell (possibly empty) for
// every date and every path, in the given generation order.
func NewGrid(startDate, endDate string, paths []Path, repeatExempt map[string]bool) (*Grid, error) {
	dates, err := DateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	g := &Grid{
		StartDate:    startDate,
		EndDate:      endDate,
		Dates:        dates,
		Paths:        append([]Path(nil), paths...),
		Cells:        make(map[CellKey]*Cell, len(dates)*len(paths)),
		repeatExempt: repeatExempt,
	}
	for _, date := range dates {
		for _, path := range paths {
			g.Cells[CellKey{Date: date, Path: path}] = &Cell{MenuItemIDs: []string{}}
		}
	}
	return g, nil
}

// Cell returns the cell at key, or nil if the key is outside the grid.
func (g *Grid) Cell(key CellKey) *Cell {
	return g.Cells[key]
}

// RepeatExempt reports whether the key's sub-meal-plan skips repetition
// detection.
func (g *Grid) RepeatExempt(key CellKey) bool {
	return g.repeatExempt[key.Path.SubMealPlanID]
}

// AddItem appends itemID to the cell if not already present. Returns true
// when the grid changed; adding an item that is already in the cell is a
// no-op.
func (g *Grid) AddItem(key CellKey, itemID string) (bool, error) {
	cell := g.Cells[key]
	if cell == nil {
		return false, errOutsideGrid(key)
	}
	if cell.contains(itemID) {
		return false, nil
	}
	cell.MenuItemIDs = append(cell.MenuItemIDs, itemID)
	return true, nil
}

// RemoveItem removes itemID from the cell along with its selected
// description and any custom assignment override. Returns true when the
// item was present.
func (g *Grid) RemoveItem(key CellKey, itemID string) (bool, error) {
	cell := g.Cells[key]
	if cell == nil {
		return false, errOutsideGrid(key)
	}
	found := false
	kept := cell.MenuItemIDs[:0]
	for _, id := range cell.MenuItemIDs {
		if id == itemID {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if !found {
		return false, nil
	}
	cell.MenuItemIDs = kept
	if cell.SelectedDescriptions != nil {
		delete(cell.SelectedDescriptions, itemID)
		if len(cell.SelectedDescriptions) == 0 {
			cell.SelectedDescriptions = nil
		}
	}
	if cell.CustomAssignments != nil {
		delete(cell.CustomAssignments, itemID)
		if len(cell.CustomAssignments) == 0 {
			cell.CustomAssignments = nil
		}
	}
	return true, nil
}

// ApplyItems replaces the cell's item list wholesale (drag-fill, paste).
// Custom assignments and selected descriptions survive only for items
// still present in the new list. Returns the items that are new to the
// cell, in list order.
func (g *Grid) ApplyItems(key CellKey, items []string) ([]string, error) {
	cell := g.Cells[key]
	if cell == nil {
		return nil, errOutsideGrid(key)
	}
	var added []string
	for _, id := range items {
		if !cell.contains(id) {
			added = append(added, id)
		}
	}
	next := make(map[string]bool, len(items))
	for _, id := range items {
		next[id] = true
	}
	for id := range cell.CustomAssignments {
		if !next[id] {
			delete(cell.CustomAssignments, id)
		}
	}
	if len(cell.CustomAssignments) == 0 {
		cell.CustomAssignments = nil
	}
	for id := range cell.SelectedDescriptions {
		if !next[id] {
			delete(cell.SelectedDescriptions, id)
		}
	}
	if len(cell.SelectedDescriptions) == 0 {
		cell.SelectedDescriptions = nil
	}
	cell.MenuItemIDs = append([]string(nil), items...)
	return added, nil
}

// SelectDescription records the chosen description variant for an item in
// a cell. An empty text clears the selection.
func (g *Grid) SelectDescription(key CellKey, itemID, text string) error {
	cell := g.Cells[key]
	if cell == nil {
		return errOutsideGrid(key)
	}
	if text == "" {
		if cell.SelectedDescriptions != nil {
			delete(cell.SelectedDescriptions, itemID)
			if len(cell.SelectedDescriptions) == 0 {
				cell.SelectedDescriptions = nil
			}
		}
		return nil
	}
	if cell.SelectedDescriptions == nil {
		cell.SelectedDescriptions = make(map[string]string)
	}
	cell.SelectedDescriptions[itemID] = text
	return nil
}

// Clipboard is the transient copy/paste buffer for cell item lists. It is
// not part of the grid; the host clears it.
type Clipboard struct {
	Items  []string
	Source CellKey
}

// DateRange expands [start, end] into consecutive dates, inclusive.
func DateRange(start, end string) ([]string, error) {
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("start date %s after end date %s", start, end)
	}
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}

// PrevWeekDate returns the date exactly 7 days before date.
func PrevWeekDate(date string) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("parse date: %w", err)
	}
	return d.AddDate(0, 0, -7).Format(DateLayout), nil
}

// Weekday returns the day of week for a grid date.
func Weekday(date string) (time.Weekday, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("parse date: %w", err)
	}
	return d.Weekday(), nil
}
