package menu

import (
	"encoding/json"
	"fmt"
	"strings"
)

// menuData is serialized the way the documents store it: nested objects
// keyed by date, service, sub-service, meal plan, sub-meal-plan, with a
// Cell-shaped leaf. Empty cells are pruned at save time; the in-memory
// grid keeps them.

type nestedCells[T any] map[string]map[string]map[string]map[string]map[string]T

func nest[T any](n nestedCells[T], date string, path Path, leaf T) {
	byService := n[date]
	if byService == nil {
		byService = make(map[string]map[string]map[string]map[string]T)
		n[date] = byService
	}
	bySub := byService[path.ServiceID]
	if bySub == nil {
		bySub = make(map[string]map[string]map[string]T)
		byService[path.ServiceID] = bySub
	}
	byPlan := bySub[path.SubServiceID]
	if byPlan == nil {
		byPlan = make(map[string]map[string]T)
		bySub[path.SubServiceID] = byPlan
	}
	bySubPlan := byPlan[path.MealPlanID]
	if bySubPlan == nil {
		bySubPlan = make(map[string]T)
		byPlan[path.MealPlanID] = bySubPlan
	}
	bySubPlan[path.SubMealPlanID] = leaf
}

func walk[T any](n nestedCells[T], fn func(date string, path Path, leaf T)) {
	for date, byService := range n {
		for serviceID, bySub := range byService {
			for subServiceID, byPlan := range bySub {
				for mealPlanID, bySubPlan := range byPlan {
					for subMealPlanID, leaf := range bySubPlan {
						fn(date, Path{
							ServiceID:     serviceID,
							SubServiceID:  subServiceID,
							MealPlanID:    mealPlanID,
							SubMealPlanID: subMealPlanID,
						}, leaf)
					}
				}
			}
		}
	}
}

// MarshalMenuData serializes the grid to the stored menuData shape,
// omitting empty cells.
func MarshalMenuData(g *Grid) ([]byte, error) {
	out := make(nestedCells[*Cell])
	for _, date := range g.Dates {
		for _, path := range g.Paths {
			cell := g.Cells[CellKey{Date: date, Path: path}]
			if cell.Empty() {
				continue
			}
			nest(out, date, path, cell)
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal menu data: %w", err)
	}
	return data, nil
}

// MergeMenuData loads stored menuData into a freshly generated grid.
// Only coordinates the grid was generated with are merged; entries for
// dates or paths no longer in the catalog are dropped.
func MergeMenuData(g *Grid, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var in nestedCells[Cell]
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("unmarshal menu data: %w", err)
	}
	walk(in, func(date string, path Path, leaf Cell) {
		key := CellKey{Date: date, Path: path}
		if _, ok := g.Cells[key]; !ok {
			return
		}
		cell := leaf
		if cell.MenuItemIDs == nil {
			cell.MenuItemIDs = []string{}
		}
		g.Cells[key] = &cell
	})
	return nil
}

// MarshalCompanyMenuDays serializes a projected menu's day entries in the
// same nested document shape.
func MarshalCompanyMenuDays(m CompanyMenu) ([]byte, error) {
	out := make(nestedCells[ProjectedCell])
	for date, byPath := range m.Days {
		for path, cell := range byPath {
			nest(out, date, path, cell)
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal company menu days: %w", err)
	}
	return data, nil
}

// MarshalJSON flattens path keys to their pipe-joined form so snapshots
// can live in the Redis cache.
func (p PrevWeek) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string][]string, len(p))
	for date, byPath := range p {
		flat := make(map[string][]string, len(byPath))
		for path, items := range byPath {
			flat[path.String()] = items
		}
		out[date] = flat
	}
	return json.Marshal(out)
}

func (p *PrevWeek) UnmarshalJSON(data []byte) error {
	var in map[string]map[string][]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(PrevWeek, len(in))
	for date, flat := range in {
		byPath := make(map[Path][]string, len(flat))
		for key, items := range flat {
			path, err := ParsePathKey(key)
			if err != nil {
				return err
			}
			byPath[path] = items
		}
		out[date] = byPath
	}
	*p = out
	return nil
}

// ParsePathKey reverses Path.String.
func ParsePathKey(key string) (Path, error) {
	parts := strings.Split(key, "|")
	if len(parts) != 4 {
		return Path{}, fmt.Errorf("path key %q: want 4 segments", key)
	}
	return Path{
		ServiceID:     parts[0],
		SubServiceID:  parts[1],
		MealPlanID:    parts[2],
		SubMealPlanID: parts[3],
	}, nil
}

// ParseCompanyMenuDays reads a stored company-menu document body back
// into per-date, per-path cells. The previous-week snapshot builder uses
// this to scan last week's served items.
func ParseCompanyMenuDays(data []byte) (map[string]map[Path]ProjectedCell, error) {
	var in nestedCells[ProjectedCell]
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("unmarshal company menu days: %w", err)
	}
	out := make(map[string]map[Path]ProjectedCell)
	walk(in, func(date string, path Path, leaf ProjectedCell) {
		if out[date] == nil {
			out[date] = make(map[Path]ProjectedCell)
		}
		out[date][path] = leaf
	})
	return out, nil
}
