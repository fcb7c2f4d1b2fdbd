package menu

import "time"

type ConflictType string

const (
	// InWeekDuplicate: the item already sits in another cell of the same
	// date range.
	InWeekDuplicate ConflictType = "IN_WEEK_DUPLICATE"
	// PrevWeekRepeat: the item was served on the corresponding date one
	// week earlier.
	PrevWeekRepeat ConflictType = "PREV_WEEK_REPEAT"
)

// ConflictEntry records one detected repetition. Entries are immutable;
// lifecycle is append on detection, delete on item removal.
type ConflictEntry struct {
	ID       string       `json:"id"`
	Type     ConflictType `json:"type"`
	ItemID   string       `json:"itemId"`
	ItemName string       `json:"itemName"`
	// Attempted is where the conflicting placement happened.
	Attempted CellKey `json:"attempted"`
	// Original is the first other occurrence found; only set for
	// InWeekDuplicate.
	Original CellKey `json:"original,omitempty"`
	// PrevDate is the date 7 days earlier; only set for PrevWeekRepeat.
	PrevDate string    `json:"prevDate,omitempty"`
	Time     time.Time `json:"time"`
}

// IdentityKey is the dedup key: a second detection of the same placement
// is a no-op.
func (e ConflictEntry) IdentityKey() string {
	return string(e.Type) + "|" + e.ItemID + "|" + e.Attempted.String()
}

// Ledger is the append-only, deduplicated conflict log for one editing
// session. Not safe for concurrent use; the owning Planner serializes
// access.
type Ledger struct {
	entries []ConflictEntry
	keys    map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{keys: make(map[string]struct{})}
}

// Add appends the entry unless its identity key is already present.
// Returns true when the entry was recorded.
func (l *Ledger) Add(entry ConflictEntry) bool {
	key := entry.IdentityKey()
	if _, seen := l.keys[key]; seen {
		return false
	}
	l.keys[key] = struct{}{}
	l.entries = append(l.entries, entry)
	return true
}

// RemoveByCoordinate drops every entry for itemID whose attempted or
// original cell is key, and returns the removed entry IDs. Both directions
// are tracked so clearing either cell clears the conflict.
func (l *Ledger) RemoveByCoordinate(itemID string, key CellKey) []string {
	var removed []string
	kept := l.entries[:0]
	for _, entry := range l.entries {
		if entry.ItemID == itemID && (entry.Attempted == key || (entry.Type == InWeekDuplicate && entry.Original == key)) {
			removed = append(removed, entry.ID)
			delete(l.keys, entry.IdentityKey())
			continue
		}
		kept = append(kept, entry)
	}
	l.entries = kept
	return removed
}

// RemoveByIDs drops entries by their IDs (explicit dismissal of log lines).
func (l *Ledger) RemoveByIDs(ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := l.entries[:0]
	for _, entry := range l.entries {
		if drop[entry.ID] {
			delete(l.keys, entry.IdentityKey())
			continue
		}
		kept = append(kept, entry)
	}
	l.entries = kept
}

// ClearAll empties the ledger.
func (l *Ledger) ClearAll() {
	l.entries = nil
	l.keys = make(map[string]struct{})
}

// FindByCell returns entries where key is either the attempted or the
// original location. This drives the conflict state of a rendered cell.
func (l *Ledger) FindByCell(key CellKey) []ConflictEntry {
	var matches []ConflictEntry
	for _, entry := range l.entries {
		if entry.Attempted == key || (entry.Type == InWeekDuplicate && entry.Original == key) {
			matches = append(matches, entry)
		}
	}
	return matches
}

// Entries returns a copy of the current log in append order.
func (l *Ledger) Entries() []ConflictEntry {
	return append([]ConflictEntry(nil), l.entries...)
}

func (l *Ledger) Len() int {
	return len(l.entries)
}
