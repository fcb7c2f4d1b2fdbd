package menu

import (
	"sort"
	"strings"
)

// EffectiveAssignment resolves which (company, building) pairs see itemID
// in this cell. An override, even an empty one, wins verbatim; otherwise
// the structural default applies.
func EffectiveAssignment(cell *Cell, itemID string, structural []Target) []Target {
	if cell != nil && cell.CustomAssignments != nil {
		if override, ok := cell.CustomAssignments[itemID]; ok {
			return override.Targets
		}
	}
	return structural
}

// SetOverride stores a custom assignment for one item in a cell. When the
// requested set equals the structural default the override is deleted
// instead: redundant overrides are never persisted. Only the focused
// item's entry is touched.
func SetOverride(cell *Cell, itemID string, structural, next []Target) {
	if targetSetKey(next) == targetSetKey(structural) {
		if cell.CustomAssignments != nil {
			delete(cell.CustomAssignments, itemID)
			if len(cell.CustomAssignments) == 0 {
				cell.CustomAssignments = nil
			}
		}
		return
	}
	if cell.CustomAssignments == nil {
		cell.CustomAssignments = make(map[string]Assignment)
	}
	cell.CustomAssignments[itemID] = Assignment{Targets: append([]Target(nil), next...)}
}

// NormalizeOverrides re-runs the redundancy check for every item in the
// cell against its structural default, dropping overrides that match.
// Used before save so stored documents never carry redundant entries.
func NormalizeOverrides(cell *Cell, structural []Target) {
	if cell == nil || cell.CustomAssignments == nil {
		return
	}
	defKey := targetSetKey(structural)
	for itemID, override := range cell.CustomAssignments {
		if targetSetKey(override.Targets) == defKey {
			delete(cell.CustomAssignments, itemID)
		}
	}
	if len(cell.CustomAssignments) == 0 {
		cell.CustomAssignments = nil
	}
}

// HasTarget reports membership of (companyID, buildingID) in a target set.
func HasTarget(targets []Target, companyID, buildingID string) bool {
	for _, t := range targets {
		if t.CompanyID == companyID && t.BuildingID == buildingID {
			return true
		}
	}
	return false
}

// targetSetKey compares target lists as sets: sorted, comma-joined keys.
func targetSetKey(targets []Target) string {
	keys := make([]string, 0, len(targets))
	for _, t := range targets {
		keys = append(keys, t.Key())
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
