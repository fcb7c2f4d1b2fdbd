package menu

import (
	"reflect"
	"testing"
)

func testPlanner(t *testing.T) *Planner {
	t.Helper()
	p := NewPlanner("menu-1", "co-a", testGrid(t))
	p.SetItemNames(map[string]string{
		"item-stew":  "Beef Stew",
		"item-pasta": "Pasta Bake",
	})
	return p
}

func TestPlannerAddItemRecordsConflictOnce(t *testing.T) {
	p := testPlanner(t)
	monday := cellAt("2024-01-08", pathMain)
	wednesday := cellAt("2024-01-10", pathMain)

	_, entry, err := p.AddItem(monday, "item-stew")
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Fatalf("first placement is clean, got %+v", entry)
	}

	_, entry, err = p.AddItem(wednesday, "item-stew")
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Fatal("expected an in-week duplicate entry")
	}
	if entry.Type != InWeekDuplicate || entry.Original != monday || entry.Attempted != wednesday {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.ID == "" {
		t.Error("ledger entries need IDs for persistence and dismissal")
	}

	// Re-adding the same item is a no-op: no second entry.
	_, entry, err = p.AddItem(wednesday, "item-stew")
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Errorf("idempotent re-add must not detect again, got %+v", entry)
	}
	if got := len(p.Conflicts()); got != 1 {
		t.Errorf("expected 1 ledger entry, got %d", got)
	}
}

func TestPlannerRemoveClearsEitherDirection(t *testing.T) {
	monday := cellAt("2024-01-08", pathMain)
	wednesday := cellAt("2024-01-10", pathMain)

	// Removing from the attempted cell.
	p := testPlanner(t)
	if _, _, err := p.AddItem(monday, "item-stew"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.AddItem(wednesday, "item-stew"); err != nil {
		t.Fatal(err)
	}
	_, removed, err := p.RemoveItem(wednesday, "item-stew")
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 {
		t.Errorf("expected one ledger entry removed, got %v", removed)
	}
	if got := len(p.Conflicts()); got != 0 {
		t.Errorf("ledger should be empty, has %d", got)
	}

	// Removing from the original cell clears the same entry.
	p = testPlanner(t)
	if _, _, err := p.AddItem(monday, "item-stew"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.AddItem(wednesday, "item-stew"); err != nil {
		t.Fatal(err)
	}
	_, removed, err = p.RemoveItem(monday, "item-stew")
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 {
		t.Errorf("expected removal via original coordinate, got %v", removed)
	}
}

func TestPlannerApplyItemsDetectsAndClears(t *testing.T) {
	p := testPlanner(t)
	monday := cellAt("2024-01-08", pathMain)
	friday := cellAt("2024-01-12", pathMain)
	if _, _, err := p.AddItem(monday, "item-stew"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.AddItem(friday, "item-pasta"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.AddItem(monday, "item-pasta"); err != nil {
		t.Fatal(err)
	}
	// item-pasta now conflicts between monday (attempted) and friday.
	if got := len(p.Conflicts()); got != 1 {
		t.Fatalf("precondition: expected 1 conflict, got %d", got)
	}

	// Drag-fill replaces monday with [item-stew, item-rice]: the pasta
	// conflict clears, stew stays clean.
	conflicts, removed, err := p.ApplyItems(monday, []string{"item-stew", "item-rice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 0 {
		t.Errorf("no new conflicts expected, got %+v", conflicts)
	}
	if len(removed) != 1 {
		t.Errorf("displaced item should clear its ledger entry, got %v", removed)
	}
	if got := len(p.Conflicts()); got != 0 {
		t.Errorf("ledger should be empty, has %d", got)
	}
}

func TestPlannerApplyItemsHoverIsStable(t *testing.T) {
	p := testPlanner(t)
	monday := cellAt("2024-01-08", pathMain)
	wednesday := cellAt("2024-01-10", pathMain)
	if _, _, err := p.AddItem(monday, "item-stew"); err != nil {
		t.Fatal(err)
	}

	// Simulate drag-fill hovering the same cell on every mouse move.
	for i := 0; i < 3; i++ {
		if _, _, err := p.ApplyItems(wednesday, []string{"item-stew"}); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(p.Conflicts()); got != 1 {
		t.Errorf("repeat hovers must not duplicate entries, got %d", got)
	}
}

func TestPlannerCopyPaste(t *testing.T) {
	p := testPlanner(t)
	source := cellAt("2024-01-08", pathMain)
	target := cellAt("2024-01-11", pathSoup)
	if _, _, err := p.AddItem(source, "item-stew"); err != nil {
		t.Fatal(err)
	}

	if err := p.Copy(source); err != nil {
		t.Fatal(err)
	}
	conflicts, _, err := p.Paste(target)
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 1 || conflicts[0].Original != source {
		t.Errorf("paste should detect the duplicate against the source cell, got %+v", conflicts)
	}
	if got := p.Grid().Cell(target).MenuItemIDs; !reflect.DeepEqual(got, []string{"item-stew"}) {
		t.Errorf("paste should copy the item list, got %v", got)
	}

	p.ClearClipboard()
	conflicts, _, err = p.Paste(cellAt("2024-01-12", pathMain))
	if err != nil {
		t.Fatal(err)
	}
	if conflicts != nil {
		t.Error("paste after clearing the clipboard is a no-op")
	}
}

func TestPlannerSnapshotDetachedFromMutations(t *testing.T) {
	p := testPlanner(t)
	monday := cellAt("2024-01-08", pathMain)
	if _, _, err := p.AddItem(monday, "item-stew"); err != nil {
		t.Fatal(err)
	}

	snap := p.Snapshot()
	cell := snap.Cells[monday]
	if cell == nil || !reflect.DeepEqual(cell.MenuItemIDs, []string{"item-stew"}) {
		t.Fatalf("snapshot missing placed item: %+v", cell)
	}

	if _, _, err := p.RemoveItem(monday, "item-stew"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cell.MenuItemIDs, []string{"item-stew"}) {
		t.Errorf("snapshot must not see later mutations, got %v", cell.MenuItemIDs)
	}
	if got := p.CellSnapshot(monday).MenuItemIDs; len(got) != 0 {
		t.Errorf("cell snapshot should reflect the removal, got %v", got)
	}
}

func TestPlannerCellSnapshotCopiesOverrides(t *testing.T) {
	p := testPlanner(t)
	p.SetRecipients(testRecipients())
	key := cellAt("2024-01-08", pathMain)
	if _, _, err := p.AddItem(key, "item-stew"); err != nil {
		t.Fatal(err)
	}
	if err := p.SetAssignment(key, "item-stew", []Target{coA1}); err != nil {
		t.Fatal(err)
	}

	copied := p.CellSnapshot(key)
	copied.CustomAssignments["item-stew"] = Assignment{}
	copied.MenuItemIDs[0] = "item-ghost"

	if got := p.EffectiveAssignment(key, "item-stew"); !reflect.DeepEqual(got, []Target{coA1}) {
		t.Errorf("mutating a snapshot must not touch the live cell, got %v", got)
	}
	if got := p.Grid().Cell(key).MenuItemIDs; !reflect.DeepEqual(got, []string{"item-stew"}) {
		t.Errorf("live item list changed through the snapshot: %v", got)
	}
}

func TestPlannerReportsNoOpMutations(t *testing.T) {
	p := testPlanner(t)
	monday := cellAt("2024-01-08", pathMain)

	changed, _, err := p.AddItem(monday, "item-stew")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("first placement should change the grid")
	}

	changed, entry, err := p.AddItem(monday, "item-stew")
	if err != nil {
		t.Fatal(err)
	}
	if changed || entry != nil {
		t.Errorf("idempotent re-add must report no change, got changed=%v entry=%+v", changed, entry)
	}

	found, cleared, err := p.RemoveItem(monday, "item-absent")
	if err != nil {
		t.Fatal(err)
	}
	if found || cleared != nil {
		t.Errorf("removing an absent item must report no change, got found=%v cleared=%v", found, cleared)
	}
}

func TestPlannerRestoreConflictsPrunesStale(t *testing.T) {
	p := testPlanner(t)
	monday := cellAt("2024-01-08", pathMain)
	wednesday := cellAt("2024-01-10", pathMain)
	if _, _, err := p.AddItem(monday, "item-stew"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.AddItem(wednesday, "item-stew"); err != nil {
		t.Fatal(err)
	}
	loaded := []ConflictEntry{
		inWeekEntry("rlog_live", "item-stew", wednesday, monday),
		// Stale: item-ghost is not in its attempted cell anymore.
		inWeekEntry("rlog_stale", "item-ghost", wednesday, monday),
		// Prev-week entries are validated against the attempted cell only.
		{ID: "rlog_prev", Type: PrevWeekRepeat, ItemID: "item-stew", Attempted: monday, PrevDate: "2024-01-01", Time: testNow},
	}

	stale := p.RestoreConflicts(loaded)
	if !reflect.DeepEqual(stale, []string{"rlog_stale"}) {
		t.Errorf("expected only the ghost entry pruned, got %v", stale)
	}
	if got := len(p.CellConflicts(monday)); got == 0 {
		t.Error("restored prev-week entry should surface on its attempted cell")
	}
}

func TestPlannerSetAssignmentNormalizes(t *testing.T) {
	p := testPlanner(t)
	p.SetRecipients(testRecipients())
	key := cellAt("2024-01-08", pathMain)
	if _, _, err := p.AddItem(key, "item-stew"); err != nil {
		t.Fatal(err)
	}

	if err := p.SetAssignment(key, "item-stew", []Target{coA1}); err != nil {
		t.Fatal(err)
	}
	if got := p.EffectiveAssignment(key, "item-stew"); !reflect.DeepEqual(got, []Target{coA1}) {
		t.Errorf("override should apply verbatim, got %v", got)
	}

	// Structural default for pathMain is {co-a/bld-1, co-b/bld-1}.
	if err := p.SetAssignment(key, "item-stew", []Target{coB1, coA1}); err != nil {
		t.Fatal(err)
	}
	if cell := p.Grid().Cell(key); cell.CustomAssignments != nil {
		t.Errorf("override equal to the default must be dropped, got %v", cell.CustomAssignments)
	}
}
