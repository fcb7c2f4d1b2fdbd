package menu

import (
	"testing"
	"time"
)

var testNow = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func TestDetectInWeekDuplicate(t *testing.T) {
	g := testGrid(t)
	monday := cellAt("2024-01-08", pathMain)
	wednesday := cellAt("2024-01-10", pathMain)
	if _, err := g.AddItem(monday, "item-stew"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddItem(wednesday, "item-stew"); err != nil {
		t.Fatal(err)
	}

	entry := DetectPlacement(g, wednesday, "item-stew", "Beef Stew", nil, testNow)
	if entry == nil {
		t.Fatal("expected an in-week duplicate")
	}
	if entry.Type != InWeekDuplicate {
		t.Fatalf("expected InWeekDuplicate, got %s", entry.Type)
	}
	if entry.Attempted != wednesday {
		t.Errorf("attempted = %v, want %v", entry.Attempted, wednesday)
	}
	if entry.Original != monday {
		t.Errorf("original = %v, want %v", entry.Original, monday)
	}
	if entry.ItemName != "Beef Stew" {
		t.Errorf("item name = %q", entry.ItemName)
	}
}

func TestDetectFirstMatchIsEarliestDate(t *testing.T) {
	g := testGrid(t)
	day1 := cellAt("2024-01-08", pathSoup)
	day3 := cellAt("2024-01-10", pathMain)
	day5 := cellAt("2024-01-12", pathMain)
	for _, key := range []CellKey{day1, day3, day5} {
		if _, err := g.AddItem(key, "item-pasta"); err != nil {
			t.Fatal(err)
		}
	}

	entry := DetectPlacement(g, day5, "item-pasta", "", nil, testNow)
	if entry == nil {
		t.Fatal("expected a duplicate")
	}
	if entry.Original != day1 {
		t.Errorf("first match should be the earliest date in range order, got %v", entry.Original)
	}
}

func TestDetectSameDateOtherPathIsNotDuplicate(t *testing.T) {
	g := testGrid(t)
	if _, err := g.AddItem(cellAt("2024-01-08", pathSoup), "item-pasta"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddItem(cellAt("2024-01-08", pathMain), "item-pasta"); err != nil {
		t.Fatal(err)
	}

	if entry := DetectPlacement(g, cellAt("2024-01-08", pathMain), "item-pasta", "", nil, testNow); entry != nil {
		t.Errorf("same-date occurrences are not in-week duplicates, got %+v", entry)
	}
}

func TestDetectPrevWeekRepeat(t *testing.T) {
	g := testGrid(t)
	key := cellAt("2024-01-08", pathMain)
	if _, err := g.AddItem(key, "item-curry"); err != nil {
		t.Fatal(err)
	}
	prev := PrevWeek{
		"2024-01-01": {pathMain: {"item-curry", "item-rice"}},
	}

	entry := DetectPlacement(g, key, "item-curry", "Green Curry", prev, testNow)
	if entry == nil {
		t.Fatal("expected a prev-week repeat")
	}
	if entry.Type != PrevWeekRepeat {
		t.Fatalf("expected PrevWeekRepeat, got %s", entry.Type)
	}
	if entry.PrevDate != "2024-01-01" {
		t.Errorf("prevDate = %s, want 2024-01-01", entry.PrevDate)
	}
	if entry.Original != (CellKey{}) {
		t.Errorf("prev-week entries carry no original cell, got %v", entry.Original)
	}
}

func TestDetectInWeekWinsOverPrevWeek(t *testing.T) {
	g := testGrid(t)
	monday := cellAt("2024-01-08", pathMain)
	friday := cellAt("2024-01-12", pathMain)
	if _, err := g.AddItem(monday, "item-curry"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddItem(friday, "item-curry"); err != nil {
		t.Fatal(err)
	}
	prev := PrevWeek{
		"2024-01-05": {pathMain: {"item-curry"}},
	}

	entry := DetectPlacement(g, friday, "item-curry", "", prev, testNow)
	if entry == nil || entry.Type != InWeekDuplicate {
		t.Fatalf("in-week scan should win, got %+v", entry)
	}
}

func TestDetectRepeatExemptRowSkipsBothScans(t *testing.T) {
	g := testGrid(t)
	if _, err := g.AddItem(cellAt("2024-01-08", pathMain), "item-salad"); err != nil {
		t.Fatal(err)
	}
	prev := PrevWeek{
		"2024-01-03": {pathSide: {"item-salad"}},
	}

	// pathSide's sub-meal-plan is flagged isRepeatPlan.
	exempt := cellAt("2024-01-10", pathSide)
	if _, err := g.AddItem(exempt, "item-salad"); err != nil {
		t.Fatal(err)
	}
	if entry := DetectPlacement(g, exempt, "item-salad", "", prev, testNow); entry != nil {
		t.Errorf("repeat-exempt row must never produce a conflict, got %+v", entry)
	}
}

func TestDetectCleanPlacement(t *testing.T) {
	g := testGrid(t)
	key := cellAt("2024-01-08", pathMain)
	if _, err := g.AddItem(key, "item-new"); err != nil {
		t.Fatal(err)
	}
	if entry := DetectPlacement(g, key, "item-new", "", nil, testNow); entry != nil {
		t.Errorf("expected no conflict, got %+v", entry)
	}
}
