package prevweek

import (
	"context"
	"testing"
	"time"

	"menuhall/api/internal/menu"
	"menuhall/api/internal/store"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	cache, err := NewCache("redis://"+s.Addr(), 15*time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return cache, s
}

var soupPath = menu.Path{ServiceID: "svc-lunch", SubServiceID: "sub-cold", MealPlanID: "plan-std", SubMealPlanID: "smp-soup"}

func TestCachePutGetRoundTrip(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()
	ctx := context.Background()

	snapshot := menu.PrevWeek{
		"2024-01-01": {soupPath: {"item-soup", "item-bread"}},
	}
	if err := cache.Put(ctx, "2024-01-08", snapshot); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := cache.Get(ctx, "2024-01-08")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if !got.Contains("2024-01-01", "item-soup") {
		t.Errorf("snapshot lost items: %v", got)
	}
}

func TestCacheMiss(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	_, ok, err := cache.Get(context.Background(), "2024-01-08")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected a miss for an unknown key")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()
	ctx := context.Background()

	if err := cache.Put(ctx, "2024-01-08", menu.PrevWeek{}); err != nil {
		t.Fatal(err)
	}
	s.FastForward(16 * time.Minute)

	_, ok, err := cache.Get(ctx, "2024-01-08")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected entry to expire after the TTL")
	}
}

func TestCacheInvalidate(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()
	ctx := context.Background()

	if err := cache.Put(ctx, "2024-01-08", menu.PrevWeek{}); err != nil {
		t.Fatal(err)
	}
	if err := cache.Invalidate(ctx, "2024-01-08"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	_, ok, err := cache.Get(ctx, "2024-01-08")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected invalidated entry to be gone")
	}
}

func TestCacheKeyCarriesOnlyStartDate(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()
	ctx := context.Background()

	if err := cache.Put(ctx, "2024-01-08", menu.PrevWeek{}); err != nil {
		t.Fatal(err)
	}
	// The snapshot spans every company, so the entry must be addressable
	// without knowing which company wrote it.
	if !s.Exists("prevweek:2024-01-08") {
		t.Fatalf("expected key prevweek:2024-01-08, have %v", s.Keys())
	}
	if err := cache.Invalidate(ctx, "2024-01-08"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if s.Exists("prevweek:2024-01-08") {
		t.Error("invalidation must drop the shared entry")
	}
}

type fakeMenuSource struct {
	docs []store.CompanyMenuDoc
}

func (f *fakeMenuSource) ListCompanyMenusOverlapping(context.Context, string, string) ([]store.CompanyMenuDoc, error) {
	return f.docs, nil
}

func companyMenuDoc(t *testing.T, id string, days map[string]map[menu.Path]menu.ProjectedCell) store.CompanyMenuDoc {
	t.Helper()
	data, err := menu.MarshalCompanyMenuDays(menu.CompanyMenu{Days: days})
	if err != nil {
		t.Fatal(err)
	}
	return store.CompanyMenuDoc{ID: id, Days: data}
}

func TestBuildDeduplicatesItemsPerPath(t *testing.T) {
	src := &fakeMenuSource{docs: []store.CompanyMenuDoc{
		companyMenuDoc(t, "cm-1", map[string]map[menu.Path]menu.ProjectedCell{
			"2024-01-01": {soupPath: {MenuItemIDs: []string{"item-soup"}}},
		}),
		// Second building served the same item on the same path.
		companyMenuDoc(t, "cm-2", map[string]map[menu.Path]menu.ProjectedCell{
			"2024-01-01": {soupPath: {MenuItemIDs: []string{"item-soup", "item-bread"}}},
		}),
	}}

	snapshot, err := Build(context.Background(), src, "2024-01-08", "2024-01-14")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	items := snapshot["2024-01-01"][soupPath]
	if len(items) != 2 {
		t.Errorf("expected de-duplicated items, got %v", items)
	}
}

func TestBuildIgnoresDatesOutsideShiftedRange(t *testing.T) {
	src := &fakeMenuSource{docs: []store.CompanyMenuDoc{
		companyMenuDoc(t, "cm-1", map[string]map[menu.Path]menu.ProjectedCell{
			"2023-12-25": {soupPath: {MenuItemIDs: []string{"item-old"}}},
			"2024-01-01": {soupPath: {MenuItemIDs: []string{"item-soup"}}},
		}),
	}}

	snapshot, err := Build(context.Background(), src, "2024-01-08", "2024-01-14")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, ok := snapshot["2023-12-25"]; ok {
		t.Error("dates outside the 7-day shift must be excluded")
	}
	if !snapshot.Contains("2024-01-01", "item-soup") {
		t.Error("expected item on shifted date")
	}
}
