package prevweek

import (
	"context"
	"fmt"
	"log"

	"menuhall/api/internal/menu"
	"menuhall/api/internal/store"
)

// Source supplies the persisted company menus the snapshot is built from.
type Source interface {
	ListCompanyMenusOverlapping(ctx context.Context, startDate, endDate string) ([]store.CompanyMenuDoc, error)
}

// Build scans all company menus for entries dated exactly 7 days before
// each date in [startDate, endDate], de-duplicating item IDs per path. A
// company-menu document that fails to parse is skipped with a warning;
// the snapshot is best-effort.
func Build(ctx context.Context, src Source, startDate, endDate string) (menu.PrevWeek, error) {
	dates, err := menu.DateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(dates))
	var prevStart, prevEnd string
	for i, date := range dates {
		prev, err := menu.PrevWeekDate(date)
		if err != nil {
			return nil, err
		}
		wanted[prev] = true
		if i == 0 {
			prevStart = prev
		}
		prevEnd = prev
	}

	docs, err := src.ListCompanyMenusOverlapping(ctx, prevStart, prevEnd)
	if err != nil {
		return nil, fmt.Errorf("load prior company menus: %w", err)
	}

	snapshot := make(menu.PrevWeek)
	seen := make(map[string]map[menu.Path]map[string]bool)
	for _, doc := range docs {
		days, err := menu.ParseCompanyMenuDays(doc.Days)
		if err != nil {
			log.Printf("prevweek: skipping unparseable company menu %s: %v", doc.ID, err)
			continue
		}
		for date, byPath := range days {
			if !wanted[date] {
				continue
			}
			for path, cell := range byPath {
				if snapshot[date] == nil {
					snapshot[date] = make(map[menu.Path][]string)
					seen[date] = make(map[menu.Path]map[string]bool)
				}
				if seen[date][path] == nil {
					seen[date][path] = make(map[string]bool)
				}
				for _, itemID := range cell.MenuItemIDs {
					if seen[date][path][itemID] {
						continue
					}
					seen[date][path][itemID] = true
					snapshot[date][path] = append(snapshot[date][path], itemID)
				}
			}
		}
	}
	return snapshot, nil
}
