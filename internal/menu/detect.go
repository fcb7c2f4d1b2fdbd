package menu

import "time"

// PrevWeek is a snapshot of the week before the active range: every item
// served per path on each prior date, built externally by scanning the
// persisted company menus and de-duplicating item IDs per path.
type PrevWeek map[string]map[Path][]string

// Contains reports whether any path under date holds itemID.
func (p PrevWeek) Contains(date, itemID string) bool {
	paths := p[date]
	for _, items := range paths {
		for _, id := range items {
			if id == itemID {
				return true
			}
		}
	}
	return false
}

// DetectPlacement checks a candidate placement against the full in-memory
// week and the previous week's snapshot. At most one entry is produced per
// attempt: the in-week scan wins, and within it the first occurrence in
// generation order (dates outer, paths inner). Returns nil when the
// placement is clean or the row is repeat-exempt.
func DetectPlacement(g *Grid, key CellKey, itemID, itemName string, prev PrevWeek, now time.Time) *ConflictEntry {
	if g.RepeatExempt(key) {
		return nil
	}

	for _, date := range g.Dates {
		if date == key.Date {
			continue
		}
		for _, path := range g.Paths {
			other := CellKey{Date: date, Path: path}
			cell := g.Cells[other]
			if cell == nil || !cell.contains(itemID) {
				continue
			}
			return &ConflictEntry{
				Type:      InWeekDuplicate,
				ItemID:    itemID,
				ItemName:  itemName,
				Attempted: key,
				Original:  other,
				Time:      now,
			}
		}
	}

	prevDate, err := PrevWeekDate(key.Date)
	if err != nil {
		return nil
	}
	if prev.Contains(prevDate, itemID) {
		return &ConflictEntry{
			Type:      PrevWeekRepeat,
			ItemID:    itemID,
			ItemName:  itemName,
			Attempted: key,
			PrevDate:  prevDate,
			Time:      now,
		}
	}
	return nil
}
