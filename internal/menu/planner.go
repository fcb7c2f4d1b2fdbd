package menu

import (
	"sync"
	"time"

	"menuhall/api/internal/util"
)

// Planner is one editing session over a combined-menu document: the grid,
// its conflict ledger, the previous week's snapshot, and the recipients
// whose structural assignments drive default visibility. A single mutex
// serializes mutations so conflict detection always sees a consistent
// full-grid snapshot.
type Planner struct {
	mu sync.Mutex

	MenuID    string
	CompanyID string

	grid       *Grid
	ledger     *Ledger
	prevWeek   PrevWeek
	recipients []Recipient
	itemNames  map[string]string
	clipboard  *Clipboard

	now func() time.Time
}

func NewPlanner(menuID, companyID string, grid *Grid) *Planner {
	return &Planner{
		MenuID:    menuID,
		CompanyID: companyID,
		grid:      grid,
		ledger:    NewLedger(),
		itemNames: make(map[string]string),
		now:       time.Now,
	}
}

// SetPrevWeek installs the externally built previous-week snapshot.
func (p *Planner) SetPrevWeek(prev PrevWeek) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prevWeek = prev
}

// SetRecipients installs the (company, building) pairs and their
// assignment documents used for default visibility and projection.
func (p *Planner) SetRecipients(recipients []Recipient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recipients = append([]Recipient(nil), recipients...)
}

// SetItemNames records display names so conflict entries can carry them.
func (p *Planner) SetItemNames(names map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, name := range names {
		p.itemNames[id] = name
	}
}

// Grid exposes the underlying grid. For single-goroutine use only
// (construction, tests); concurrent readers go through Snapshot,
// CellSnapshot, or MarshalData, which copy under the session mutex.
func (p *Planner) Grid() *Grid {
	return p.grid
}

// Snapshot is a consistent deep copy of the grid taken under the session
// mutex. Cells holds only non-empty cells.
type Snapshot struct {
	StartDate string
	EndDate   string
	Dates     []string
	Paths     []Path
	Cells     map[CellKey]*Cell
}

// Snapshot copies the grid's current contents. The result is detached:
// later mutations do not show through it.
func (p *Planner) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	cells := make(map[CellKey]*Cell)
	for key, cell := range p.grid.Cells {
		if cell.Empty() {
			continue
		}
		cells[key] = cell.clone()
	}
	return Snapshot{
		StartDate: p.grid.StartDate,
		EndDate:   p.grid.EndDate,
		Dates:     append([]string(nil), p.grid.Dates...),
		Paths:     append([]Path(nil), p.grid.Paths...),
		Cells:     cells,
	}
}

// CellSnapshot copies one cell, or nil when the key is outside the grid.
func (p *Planner) CellSnapshot(key CellKey) *Cell {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.grid.Cell(key).clone()
}

// AddItem places itemID into the cell and runs repetition detection.
// Returns whether the grid changed and the conflict recorded for this
// placement, if any. Re-adding an item already in the cell is a no-op
// with no detection pass.
func (p *Planner) AddItem(key CellKey, itemID string) (bool, *ConflictEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed, err := p.grid.AddItem(key, itemID)
	if err != nil {
		return false, nil, err
	}
	if !changed {
		return false, nil, nil
	}
	return true, p.detect(key, itemID), nil
}

// RemoveItem takes itemID out of the cell and clears ledger entries
// referencing this coordinate as either the attempted or the original
// location. Returns whether the item was present and the removed
// conflict entry IDs so the host can sync the backing log store.
func (p *Planner) RemoveItem(key CellKey, itemID string) (bool, []string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	found, err := p.grid.RemoveItem(key, itemID)
	if err != nil {
		return false, nil, err
	}
	if !found {
		return false, nil, nil
	}
	return true, p.ledger.RemoveByCoordinate(itemID, key), nil
}

// ApplyItems replaces a cell's item list wholesale (drag-fill, paste).
// Entries for displaced items are cleared; detection runs for every
// incoming item, with the ledger deduplicating repeat hovers over the
// same cell. Returns the conflicts recorded by this call and the ledger
// IDs removed for displaced items.
func (p *Planner) ApplyItems(key CellKey, items []string) ([]ConflictEntry, []string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cell := p.grid.Cell(key)
	if cell == nil {
		_, err := p.grid.ApplyItems(key, items)
		return nil, nil, err
	}
	previous := append([]string(nil), cell.MenuItemIDs...)

	if _, err := p.grid.ApplyItems(key, items); err != nil {
		return nil, nil, err
	}

	next := make(map[string]bool, len(items))
	for _, id := range items {
		next[id] = true
	}
	var removed []string
	for _, id := range previous {
		if !next[id] {
			removed = append(removed, p.ledger.RemoveByCoordinate(id, key)...)
		}
	}

	var conflicts []ConflictEntry
	for _, id := range items {
		if entry := p.detect(key, id); entry != nil {
			conflicts = append(conflicts, *entry)
		}
	}
	return conflicts, removed, nil
}

// detect runs the repetition scan for one placed item and records the
// result. Caller holds the mutex.
func (p *Planner) detect(key CellKey, itemID string) *ConflictEntry {
	entry := DetectPlacement(p.grid, key, itemID, p.itemNames[itemID], p.prevWeek, p.now())
	if entry == nil {
		return nil
	}
	entry.ID = util.NewID("rlog")
	if !p.ledger.Add(*entry) {
		return nil
	}
	return entry
}

// SelectDescription records the chosen description variant for an item.
func (p *Planner) SelectDescription(key CellKey, itemID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.grid.SelectDescription(key, itemID, text)
}

// EffectiveAssignment resolves the visibility set for one item in a
// cell. The returned slice is a copy and never aliases cell storage.
func (p *Planner) EffectiveAssignment(key CellKey, itemID string) []Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	targets := EffectiveAssignment(p.grid.Cell(key), itemID, StructuralTargets(p.recipients, key))
	return append([]Target(nil), targets...)
}

// SetAssignment stores a custom visibility override for one item,
// normalizing away overrides equal to the structural default. Other
// items' overrides in the cell are left untouched.
func (p *Planner) SetAssignment(key CellKey, itemID string, targets []Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cell := p.grid.Cell(key)
	if cell == nil {
		_, err := p.grid.AddItem(key, itemID)
		return err
	}
	SetOverride(cell, itemID, StructuralTargets(p.recipients, key), targets)
	return nil
}

// Copy fills the clipboard from a cell.
func (p *Planner) Copy(key CellKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cell := p.grid.Cell(key)
	if cell == nil {
		return errOutsideGrid(key)
	}
	p.clipboard = &Clipboard{Items: append([]string(nil), cell.MenuItemIDs...), Source: key}
	return nil
}

// Paste applies the clipboard to a cell. No-op without a prior Copy.
func (p *Planner) Paste(key CellKey) ([]ConflictEntry, []string, error) {
	p.mu.Lock()
	clip := p.clipboard
	p.mu.Unlock()
	if clip == nil {
		return nil, nil, nil
	}
	return p.ApplyItems(key, clip.Items)
}

// ClearClipboard empties the paste buffer.
func (p *Planner) ClearClipboard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clipboard = nil
}

// Conflicts returns the current ledger contents.
func (p *Planner) Conflicts() []ConflictEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.Entries()
}

// CellConflicts returns entries touching one cell, as attempted or
// original location.
func (p *Planner) CellConflicts(key CellKey) []ConflictEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.FindByCell(key)
}

// DismissConflicts drops ledger entries by ID.
func (p *Planner) DismissConflicts(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledger.RemoveByIDs(ids)
}

// RestoreConflicts loads previously persisted entries into the ledger,
// pruning stale ones: an entry survives only if its item is still present
// in the attempted cell. Prev-week entries have no original cell, so the
// attempted cell is the only one checked for either type. Returns the IDs
// of pruned entries so the backing store can be cleaned too.
func (p *Planner) RestoreConflicts(entries []ConflictEntry) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var stale []string
	for _, entry := range entries {
		cell := p.grid.Cell(entry.Attempted)
		if cell == nil || !cell.contains(entry.ItemID) {
			stale = append(stale, entry.ID)
			continue
		}
		p.ledger.Add(entry)
	}
	return stale
}

// MarshalData folds overrides equal to the structural default back to
// tri-state default across the whole grid and serializes it, holding
// the session mutex across both so no mutation lands in between.
func (p *Planner) MarshalData() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, cell := range p.grid.Cells {
		if cell.Empty() {
			continue
		}
		NormalizeOverrides(cell, StructuralTargets(p.recipients, key))
	}
	return MarshalMenuData(p.grid)
}

// Project fans the grid out into per-recipient menus.
func (p *Planner) Project() []CompanyMenu {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Project(p.grid, p.recipients)
}

func errOutsideGrid(key CellKey) error {
	return &OutsideGridError{Key: key}
}

// OutsideGridError marks an operation addressed at a cell the grid was
// not generated with.
type OutsideGridError struct {
	Key CellKey
}

func (e *OutsideGridError) Error() string {
	return "cell " + e.Key.String() + ": outside grid"
}
