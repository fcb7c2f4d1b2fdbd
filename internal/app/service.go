package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"menuhall/api/internal/archive"
	"menuhall/api/internal/config"
	"menuhall/api/internal/menu"
	"menuhall/api/internal/prevweek"
	"menuhall/api/internal/search"
	"menuhall/api/internal/store"
	"menuhall/api/internal/util"
)

type GenerateInput struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	CompanyID string `json:"companyId"`
}

type CellInput struct {
	Date          string `json:"date"`
	ServiceID     string `json:"serviceId"`
	SubServiceID  string `json:"subServiceId"`
	MealPlanID    string `json:"mealPlanId"`
	SubMealPlanID string `json:"subMealPlanId"`
}

func (c CellInput) key() menu.CellKey {
	return menu.CellKey{
		Date: c.Date,
		Path: menu.Path{
			ServiceID:     c.ServiceID,
			SubServiceID:  c.SubServiceID,
			MealPlanID:    c.MealPlanID,
			SubMealPlanID: c.SubMealPlanID,
		},
	}
}

func (c CellInput) validate() error {
	var missing []string
	if strings.TrimSpace(c.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(c.ServiceID) == "" {
		missing = append(missing, "serviceId")
	}
	if strings.TrimSpace(c.SubServiceID) == "" {
		missing = append(missing, "subServiceId")
	}
	if strings.TrimSpace(c.MealPlanID) == "" {
		missing = append(missing, "mealPlanId")
	}
	if strings.TrimSpace(c.SubMealPlanID) == "" {
		missing = append(missing, "subMealPlanId")
	}
	if len(missing) > 0 {
		return errValidation("cell coordinate is incomplete", map[string]any{"missing": missing})
	}
	return nil
}

// GridView is the editing-session snapshot returned to the client. Cells
// holds only non-empty cells, keyed by the composite coordinate string.
type GridView struct {
	MenuID    string                `json:"menuId"`
	CompanyID string                `json:"companyId"`
	StartDate string                `json:"startDate"`
	EndDate   string                `json:"endDate"`
	Status    string                `json:"status"`
	Dates     []string              `json:"dates"`
	Paths     []menu.Path           `json:"paths"`
	Cells     map[string]*menu.Cell `json:"cells"`
	Conflicts []menu.ConflictEntry  `json:"conflicts"`
}

// CellMutationResult reports what one add/remove/apply did: conflicts the
// placement recorded and ledger entries it cleared.
type CellMutationResult struct {
	Changed   bool                 `json:"changed"`
	Conflicts []menu.ConflictEntry `json:"conflicts"`
	Cleared   []string             `json:"clearedLogIds"`
	Cell      *menu.Cell           `json:"cell"`
}

// ActivationResult summarizes a projection fan-out.
type ActivationResult struct {
	MenuID       string `json:"menuId"`
	CompanyMenus int    `json:"companyMenus"`
}

type dataStore interface {
	ListServices(context.Context) ([]store.Service, error)
	ListSubServices(context.Context) ([]store.SubService, error)
	ListMealPlans(context.Context) ([]store.MealPlan, error)
	ListSubMealPlans(context.Context) ([]store.SubMealPlan, error)
	ListMenuItems(context.Context) ([]store.MenuItem, error)
	ListCompanies(context.Context) ([]store.Company, error)
	ListBuildings(context.Context) ([]store.Building, error)
	FindMenuByRange(context.Context, string, string) (*store.CombinedMenu, error)
	LatestDraft(context.Context, string, string, string) (*store.CombinedMenu, error)
	GetCombinedMenu(context.Context, string) (store.CombinedMenu, error)
	InsertCombinedMenu(context.Context, store.CombinedMenu) error
	UpdateCombinedMenu(context.Context, string, string, json.RawMessage) error
	ReplaceCompanyMenus(context.Context, string, []store.CompanyMenuDoc) error
	ListCompanyMenusOverlapping(context.Context, string, string) ([]store.CompanyMenuDoc, error)
	ListRepetitionLogs(context.Context, string, string, string) ([]store.RepetitionLog, error)
	InsertRepetitionLog(context.Context, store.RepetitionLog) error
	DeleteRepetitionLogs(context.Context, []string) error
	ListAssignmentDocs(context.Context) ([]store.AssignmentDoc, error)
	Ping(ctx context.Context) error
}

// editSession is one live Planner plus the range it covers. Sessions are
// re-created on demand from the persisted draft, so losing them on
// restart costs nothing but a regeneration.
type editSession struct {
	planner   *menu.Planner
	startDate string
	endDate   string
}

type Service struct {
	cfg     config.Config
	store   dataStore
	cache   *prevweek.Cache
	search  *search.Service
	archive *archive.Store

	mu       sync.Mutex
	sessions map[string]*editSession
}

// New wires the service. cache, searchSvc, and archiveStore may each be
// nil when the backing system is not configured.
func New(cfg config.Config, dataStore *store.PostgresStore, cache *prevweek.Cache, searchSvc *search.Service, archiveStore *archive.Store) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		cache:    cache,
		search:   searchSvc,
		archive:  archiveStore,
		sessions: make(map[string]*editSession),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Catalog is the admin console's bootstrap payload: every active catalog
// dimension plus companies and buildings.
type Catalog struct {
	Services     []store.Service     `json:"services"`
	SubServices  []store.SubService  `json:"subServices"`
	MealPlans    []store.MealPlan    `json:"mealPlans"`
	SubMealPlans []store.SubMealPlan `json:"subMealPlans"`
	MenuItems    []store.MenuItem    `json:"menuItems"`
	Companies    []store.Company     `json:"companies"`
	Buildings    []store.Building    `json:"buildings"`
}

func (s *Service) Catalog(ctx context.Context) (*Catalog, error) {
	var c Catalog
	var err error
	if c.Services, err = s.store.ListServices(ctx); err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	if c.SubServices, err = s.store.ListSubServices(ctx); err != nil {
		return nil, fmt.Errorf("load sub-services: %w", err)
	}
	if c.MealPlans, err = s.store.ListMealPlans(ctx); err != nil {
		return nil, fmt.Errorf("load meal plans: %w", err)
	}
	if c.SubMealPlans, err = s.store.ListSubMealPlans(ctx); err != nil {
		return nil, fmt.Errorf("load sub-meal-plans: %w", err)
	}
	if c.MenuItems, err = s.store.ListMenuItems(ctx); err != nil {
		return nil, fmt.Errorf("load menu items: %w", err)
	}
	if c.Companies, err = s.store.ListCompanies(ctx); err != nil {
		return nil, fmt.Errorf("load companies: %w", err)
	}
	if c.Buildings, err = s.store.ListBuildings(ctx); err != nil {
		return nil, fmt.Errorf("load buildings: %w", err)
	}
	return &c, nil
}

// GenerateGrid opens (or resumes) an editing session for the given week.
// The grid spans every active catalog path; an existing draft for the
// same range and company is merged in, and persisted conflict-log entries
// are restored with stale ones pruned.
func (s *Service) GenerateGrid(ctx context.Context, in GenerateInput) (*GridView, error) {
	if strings.TrimSpace(in.StartDate) == "" || strings.TrimSpace(in.EndDate) == "" {
		return nil, errValidation("startDate and endDate are required", nil)
	}
	if strings.TrimSpace(in.CompanyID) == "" {
		return nil, errValidation("companyId is required", nil)
	}
	if _, err := menu.DateRange(in.StartDate, in.EndDate); err != nil {
		return nil, errValidation(err.Error(), nil)
	}

	existing, err := s.store.FindMenuByRange(ctx, in.StartDate, in.EndDate)
	if err != nil {
		return nil, fmt.Errorf("check duplicate range: %w", err)
	}
	if existing != nil && existing.Status == "active" {
		return nil, errDuplicateRange(in.StartDate, in.EndDate)
	}

	paths, repeatExempt, err := s.loadPaths(ctx)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errValidation("no active services configured", nil)
	}

	grid, err := menu.NewGrid(in.StartDate, in.EndDate, paths, repeatExempt)
	if err != nil {
		return nil, errValidation(err.Error(), nil)
	}

	status := "draft"
	var menuID string
	draft, err := s.store.LatestDraft(ctx, in.StartDate, in.EndDate, in.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft != nil {
		menuID = draft.ID
		if len(draft.MenuData) > 0 {
			if err := menu.MergeMenuData(grid, draft.MenuData); err != nil {
				return nil, fmt.Errorf("merge draft %s: %w", draft.ID, err)
			}
		}
	} else {
		menuID = util.NewID("menu")
		menuData, err := menu.MarshalMenuData(grid)
		if err != nil {
			return nil, fmt.Errorf("marshal grid: %w", err)
		}
		if err := s.store.InsertCombinedMenu(ctx, store.CombinedMenu{
			ID:        menuID,
			CompanyID: in.CompanyID,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
			Status:    status,
			MenuData:  menuData,
		}); err != nil {
			return nil, fmt.Errorf("insert combined menu: %w", err)
		}
	}

	planner := menu.NewPlanner(menuID, in.CompanyID, grid)

	items, err := s.store.ListMenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load menu items: %w", err)
	}
	names := make(map[string]string, len(items))
	for _, item := range items {
		names[item.ID] = item.Name
	}
	planner.SetItemNames(names)

	recipients, err := s.loadRecipients(ctx)
	if err != nil {
		return nil, err
	}
	planner.SetRecipients(recipients)

	prev, err := s.loadPrevWeek(ctx, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	planner.SetPrevWeek(prev)

	if err := s.restoreConflictLog(ctx, planner, in.StartDate, in.EndDate, in.CompanyID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[menuID] = &editSession{planner: planner, startDate: in.StartDate, endDate: in.EndDate}
	s.mu.Unlock()

	return s.gridView(planner, status), nil
}

// loadPaths builds the generation-order path list from the active
// catalog: services, their sub-services, meal plans, sub-meal-plans, each
// already sorted by the store. The order is what conflict detection scans
// in, so it must be stable.
func (s *Service) loadPaths(ctx context.Context) ([]menu.Path, map[string]bool, error) {
	services, err := s.store.ListServices(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load services: %w", err)
	}
	subServices, err := s.store.ListSubServices(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load sub-services: %w", err)
	}
	mealPlans, err := s.store.ListMealPlans(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load meal plans: %w", err)
	}
	subMealPlans, err := s.store.ListSubMealPlans(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load sub-meal-plans: %w", err)
	}

	subByService := make(map[string][]store.SubService)
	for _, ss := range subServices {
		subByService[ss.ServiceID] = append(subByService[ss.ServiceID], ss)
	}
	plansBySub := make(map[string][]store.MealPlan)
	for _, mp := range mealPlans {
		plansBySub[mp.SubServiceID] = append(plansBySub[mp.SubServiceID], mp)
	}
	subPlansByPlan := make(map[string][]store.SubMealPlan)
	repeatExempt := make(map[string]bool)
	for _, smp := range subMealPlans {
		subPlansByPlan[smp.MealPlanID] = append(subPlansByPlan[smp.MealPlanID], smp)
		if smp.IsRepeatPlan {
			repeatExempt[smp.ID] = true
		}
	}

	var paths []menu.Path
	for _, svc := range services {
		for _, ss := range subByService[svc.ID] {
			for _, mp := range plansBySub[ss.ID] {
				for _, smp := range subPlansByPlan[mp.ID] {
					paths = append(paths, menu.Path{
						ServiceID:     svc.ID,
						SubServiceID:  ss.ID,
						MealPlanID:    mp.ID,
						SubMealPlanID: smp.ID,
					})
				}
			}
		}
	}
	return paths, repeatExempt, nil
}

// loadRecipients joins companies, buildings, and their assignment
// documents. Pairs missing either the structural or the
// meal-plan-structure document stay in the list; the projector skips
// them.
func (s *Service) loadRecipients(ctx context.Context) ([]menu.Recipient, error) {
	companies, err := s.store.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("load companies: %w", err)
	}
	buildings, err := s.store.ListBuildings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load buildings: %w", err)
	}
	docs, err := s.store.ListAssignmentDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load assignment docs: %w", err)
	}

	type pairKey struct{ company, building string }
	structural := make(map[pairKey]menu.WeekPaths)
	mealStructure := make(map[pairKey]menu.WeekPaths)
	for _, doc := range docs {
		if doc.Status != "active" {
			continue
		}
		weekPaths, err := parseWeekPaths(doc.Days)
		if err != nil {
			log.Printf("app: skipping malformed assignment doc %s: %v", doc.ID, err)
			continue
		}
		key := pairKey{doc.CompanyID, doc.BuildingID}
		switch doc.Kind {
		case store.AssignmentStructural:
			structural[key] = weekPaths
		case store.AssignmentMealStructure:
			mealStructure[key] = weekPaths
		}
	}

	activeCompanies := make(map[string]bool, len(companies))
	for _, c := range companies {
		if c.Status == "active" {
			activeCompanies[c.ID] = true
		}
	}

	var recipients []menu.Recipient
	for _, b := range buildings {
		if b.Status != "active" || !activeCompanies[b.CompanyID] {
			continue
		}
		key := pairKey{b.CompanyID, b.ID}
		recipients = append(recipients, menu.Recipient{
			CompanyID:     b.CompanyID,
			BuildingID:    b.ID,
			Structural:    structural[key],
			MealStructure: mealStructure[key],
		})
	}
	return recipients, nil
}

// loadPrevWeek returns the previous-week snapshot, Redis-cached when a
// cache is configured. The snapshot spans all companies, so the cache
// is keyed by start date alone. Cache failures degrade to a rebuild,
// never an error.
func (s *Service) loadPrevWeek(ctx context.Context, startDate, endDate string) (menu.PrevWeek, error) {
	if s.cache != nil {
		snapshot, ok, err := s.cache.Get(ctx, startDate)
		if err != nil {
			log.Printf("app: prev-week cache read: %v", err)
		} else if ok {
			return snapshot, nil
		}
	}

	snapshot, err := prevweek.Build(ctx, s.store, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("build prev-week snapshot: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, startDate, snapshot); err != nil {
			log.Printf("app: prev-week cache write: %v", err)
		}
	}
	return snapshot, nil
}

// restoreConflictLog reloads persisted ledger entries into the planner
// and prunes entries whose item no longer sits in the attempted cell,
// locally and, best-effort, remotely.
func (s *Service) restoreConflictLog(ctx context.Context, planner *menu.Planner, startDate, endDate, companyID string) error {
	logs, err := s.store.ListRepetitionLogs(ctx, startDate, endDate, companyID)
	if err != nil {
		return fmt.Errorf("load repetition logs: %w", err)
	}

	var entries []menu.ConflictEntry
	for _, row := range logs {
		var entry menu.ConflictEntry
		if err := json.Unmarshal(row.Entry, &entry); err != nil {
			log.Printf("app: skipping malformed repetition log %s: %v", row.ID, err)
			continue
		}
		if entry.ID == "" {
			entry.ID = row.ID
		}
		entries = append(entries, entry)
	}

	stale := planner.RestoreConflicts(entries)
	if len(stale) > 0 {
		if err := s.store.DeleteRepetitionLogs(ctx, stale); err != nil {
			log.Printf("app: pruning %d stale repetition logs: %v", len(stale), err)
		}
	}
	return nil
}

func (s *Service) session(menuID string) (*editSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[menuID]
	if !ok {
		return nil, errSessionNotFound(menuID)
	}
	return sess, nil
}

// AddItem places one item into a cell and persists any recorded conflict.
func (s *Service) AddItem(ctx context.Context, menuID string, cell CellInput, itemID string) (*CellMutationResult, error) {
	if err := cell.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(itemID) == "" {
		return nil, errValidation("menuItemId is required", nil)
	}
	sess, err := s.session(menuID)
	if err != nil {
		return nil, err
	}

	key := cell.key()
	changed, entry, err := sess.planner.AddItem(key, itemID)
	if err != nil {
		return nil, err
	}

	result := &CellMutationResult{Changed: changed, Cell: sess.planner.CellSnapshot(key)}
	if entry != nil {
		result.Conflicts = []menu.ConflictEntry{*entry}
		s.persistConflicts(ctx, sess, []menu.ConflictEntry{*entry})
	}
	return result, nil
}

// RemoveItem takes one item out of a cell and clears its ledger entries.
func (s *Service) RemoveItem(ctx context.Context, menuID string, cell CellInput, itemID string) (*CellMutationResult, error) {
	if err := cell.validate(); err != nil {
		return nil, err
	}
	sess, err := s.session(menuID)
	if err != nil {
		return nil, err
	}

	key := cell.key()
	found, cleared, err := sess.planner.RemoveItem(key, itemID)
	if err != nil {
		return nil, err
	}
	s.deleteConflicts(ctx, cleared)

	return &CellMutationResult{
		Changed: found,
		Cleared: cleared,
		Cell:    sess.planner.CellSnapshot(key),
	}, nil
}

// ApplyItems replaces a cell's contents wholesale, the drag-fill and
// paste primitive. Conflicts are detected for every incoming item;
// entries for displaced items are cleared.
func (s *Service) ApplyItems(ctx context.Context, menuID string, cell CellInput, itemIDs []string) (*CellMutationResult, error) {
	if err := cell.validate(); err != nil {
		return nil, err
	}
	sess, err := s.session(menuID)
	if err != nil {
		return nil, err
	}

	key := cell.key()
	conflicts, cleared, err := sess.planner.ApplyItems(key, itemIDs)
	if err != nil {
		return nil, err
	}
	s.persistConflicts(ctx, sess, conflicts)
	s.deleteConflicts(ctx, cleared)

	return &CellMutationResult{
		Changed:   true,
		Conflicts: conflicts,
		Cleared:   cleared,
		Cell:      sess.planner.CellSnapshot(key),
	}, nil
}

// SelectDescription records the chosen description variant for an item.
func (s *Service) SelectDescription(menuID string, cell CellInput, itemID, text string) error {
	if err := cell.validate(); err != nil {
		return err
	}
	sess, err := s.session(menuID)
	if err != nil {
		return err
	}
	return sess.planner.SelectDescription(cell.key(), itemID, text)
}

// EffectiveAssignment resolves the visibility set for one item in a cell.
func (s *Service) EffectiveAssignment(menuID string, cell CellInput, itemID string) ([]menu.Target, error) {
	if err := cell.validate(); err != nil {
		return nil, err
	}
	sess, err := s.session(menuID)
	if err != nil {
		return nil, err
	}
	targets := sess.planner.EffectiveAssignment(cell.key(), itemID)
	if targets == nil {
		targets = []menu.Target{}
	}
	sortTargets(targets)
	return targets, nil
}

// SetAssignment stores a per-item visibility override. An override equal
// to the structural default is dropped back to tri-state default.
func (s *Service) SetAssignment(menuID string, cell CellInput, itemID string, targets []menu.Target) error {
	if err := cell.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(itemID) == "" {
		return errValidation("menuItemId is required", nil)
	}
	sess, err := s.session(menuID)
	if err != nil {
		return err
	}
	return sess.planner.SetAssignment(cell.key(), itemID, targets)
}

// CopyCell fills the session clipboard from a cell.
func (s *Service) CopyCell(menuID string, cell CellInput) error {
	if err := cell.validate(); err != nil {
		return err
	}
	sess, err := s.session(menuID)
	if err != nil {
		return err
	}
	return sess.planner.Copy(cell.key())
}

// PasteCell applies the clipboard to a cell. A paste with an empty
// clipboard is a no-op.
func (s *Service) PasteCell(ctx context.Context, menuID string, cell CellInput) (*CellMutationResult, error) {
	if err := cell.validate(); err != nil {
		return nil, err
	}
	sess, err := s.session(menuID)
	if err != nil {
		return nil, err
	}

	key := cell.key()
	conflicts, cleared, err := sess.planner.Paste(key)
	if err != nil {
		return nil, err
	}
	s.persistConflicts(ctx, sess, conflicts)
	s.deleteConflicts(ctx, cleared)

	return &CellMutationResult{
		Changed:   true,
		Conflicts: conflicts,
		Cleared:   cleared,
		Cell:      sess.planner.CellSnapshot(key),
	}, nil
}

// ClearClipboard empties the session paste buffer.
func (s *Service) ClearClipboard(menuID string) error {
	sess, err := s.session(menuID)
	if err != nil {
		return err
	}
	sess.planner.ClearClipboard()
	return nil
}

// Conflicts returns the session's full conflict log.
func (s *Service) Conflicts(menuID string) ([]menu.ConflictEntry, error) {
	sess, err := s.session(menuID)
	if err != nil {
		return nil, err
	}
	entries := sess.planner.Conflicts()
	if entries == nil {
		entries = []menu.ConflictEntry{}
	}
	return entries, nil
}

// CellConflicts returns log entries touching one cell, as the attempted
// or the original location.
func (s *Service) CellConflicts(menuID string, cell CellInput) ([]menu.ConflictEntry, error) {
	if err := cell.validate(); err != nil {
		return nil, err
	}
	sess, err := s.session(menuID)
	if err != nil {
		return nil, err
	}
	entries := sess.planner.CellConflicts(cell.key())
	if entries == nil {
		entries = []menu.ConflictEntry{}
	}
	return entries, nil
}

// DismissConflicts drops ledger entries by ID, locally and remotely.
func (s *Service) DismissConflicts(ctx context.Context, menuID string, ids []string) error {
	sess, err := s.session(menuID)
	if err != nil {
		return err
	}
	sess.planner.DismissConflicts(ids)
	s.deleteConflicts(ctx, ids)
	return nil
}

// SaveDraft normalizes overrides and persists the serialized grid.
func (s *Service) SaveDraft(ctx context.Context, menuID string) error {
	sess, err := s.session(menuID)
	if err != nil {
		return err
	}

	menuData, err := s.marshalSession(sess)
	if err != nil {
		return err
	}
	if err := s.store.UpdateCombinedMenu(ctx, menuID, "draft", menuData); err != nil {
		return fmt.Errorf("save draft %s: %w", menuID, err)
	}
	return nil
}

// Activate saves the grid, projects per-recipient company menus, stores
// them (superseding the previous generation), and flips the combined
// menu to active. Generated documents are archived best-effort.
func (s *Service) Activate(ctx context.Context, menuID string) (*ActivationResult, error) {
	sess, err := s.session(menuID)
	if err != nil {
		return nil, err
	}

	menuData, err := s.marshalSession(sess)
	if err != nil {
		return nil, err
	}

	companyMenus := sess.planner.Project()
	docs := make([]store.CompanyMenuDoc, 0, len(companyMenus))
	for _, cm := range companyMenus {
		days, err := menu.MarshalCompanyMenuDays(cm)
		if err != nil {
			return nil, fmt.Errorf("marshal company menu %s/%s: %w", cm.CompanyID, cm.BuildingID, err)
		}
		docs = append(docs, store.CompanyMenuDoc{
			ID:             util.NewID("cmenu"),
			CombinedMenuID: menuID,
			CompanyID:      cm.CompanyID,
			BuildingID:     cm.BuildingID,
			StartDate:      cm.StartDate,
			EndDate:        cm.EndDate,
			Days:           days,
		})
	}

	if err := s.store.ReplaceCompanyMenus(ctx, menuID, docs); err != nil {
		return nil, fmt.Errorf("replace company menus: %w", err)
	}
	if err := s.store.UpdateCombinedMenu(ctx, menuID, "active", menuData); err != nil {
		return nil, fmt.Errorf("activate menu %s: %w", menuID, err)
	}

	if s.archive != nil {
		for _, doc := range docs {
			s.archive.PutCompanyMenuAsync(doc.CompanyID, doc.BuildingID, doc.StartDate, doc.Days)
		}
	}

	s.invalidateNextWeek(ctx, sess)

	return &ActivationResult{MenuID: menuID, CompanyMenus: len(docs)}, nil
}

// GridSnapshot returns the current session state for re-rendering.
func (s *Service) GridSnapshot(ctx context.Context, menuID string) (*GridView, error) {
	sess, err := s.session(menuID)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.GetCombinedMenu(ctx, menuID)
	if err != nil {
		return nil, fmt.Errorf("load combined menu %s: %w", menuID, err)
	}
	return s.gridView(sess.planner, stored.Status), nil
}

// SearchItems runs the menu-item picker query.
func (s *Service) SearchItems(q search.Query) (search.Response, error) {
	if strings.TrimSpace(q.Text) == "" {
		return search.Response{}, errValidation("search query must not be empty", nil)
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	return s.search.Search(q), nil
}

func (s *Service) marshalSession(sess *editSession) (json.RawMessage, error) {
	menuData, err := sess.planner.MarshalData()
	if err != nil {
		return nil, fmt.Errorf("marshal grid: %w", err)
	}
	return menuData, nil
}

// persistConflicts mirrors newly recorded ledger entries to Postgres so
// they survive the session. Failures only log; the in-memory ledger is
// authoritative while editing.
func (s *Service) persistConflicts(ctx context.Context, sess *editSession, entries []menu.ConflictEntry) {
	planner := sess.planner
	for _, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			log.Printf("app: marshal repetition log %s: %v", entry.ID, err)
			continue
		}
		if err := s.store.InsertRepetitionLog(ctx, store.RepetitionLog{
			ID:        entry.ID,
			CompanyID: planner.CompanyID,
			StartDate: sess.startDate,
			EndDate:   sess.endDate,
			Entry:     payload,
		}); err != nil {
			log.Printf("app: persist repetition log %s: %v", entry.ID, err)
		}
	}
}

func (s *Service) deleteConflicts(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := s.store.DeleteRepetitionLogs(ctx, ids); err != nil {
		log.Printf("app: delete %d repetition logs: %v", len(ids), err)
	}
}

// invalidateNextWeek drops the cached snapshot that the week after this
// one would read, since activation just changed what "previous week"
// means for it. The key is shared across companies, so one invalidation
// covers every editor of that week.
func (s *Service) invalidateNextWeek(ctx context.Context, sess *editSession) {
	if s.cache == nil {
		return
	}
	start, err := time.Parse(menu.DateLayout, sess.startDate)
	if err != nil {
		return
	}
	nextStart := start.AddDate(0, 0, 7).Format(menu.DateLayout)
	if err := s.cache.Invalidate(ctx, nextStart); err != nil {
		log.Printf("app: invalidate prev-week cache for %s: %v", nextStart, err)
	}
}

func (s *Service) gridView(planner *menu.Planner, status string) *GridView {
	snap := planner.Snapshot()
	cells := make(map[string]*menu.Cell, len(snap.Cells))
	for key, cell := range snap.Cells {
		cells[key.String()] = cell
	}
	conflicts := planner.Conflicts()
	if conflicts == nil {
		conflicts = []menu.ConflictEntry{}
	}
	return &GridView{
		MenuID:    planner.MenuID,
		CompanyID: planner.CompanyID,
		StartDate: snap.StartDate,
		EndDate:   snap.EndDate,
		Status:    status,
		Dates:     snap.Dates,
		Paths:     snap.Paths,
		Cells:     cells,
		Conflicts: conflicts,
	}
}

// parseWeekPaths decodes an assignment document's day tree: lowercase
// weekday names mapped to lists of pipe-joined path keys.
func parseWeekPaths(data []byte) (menu.WeekPaths, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode assignment days: %w", err)
	}

	out := make(menu.WeekPaths)
	for dayName, keys := range raw {
		day, ok := weekdayNames[strings.ToLower(dayName)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", dayName)
		}
		set := make(menu.PathSet, len(keys))
		for _, key := range keys {
			path, err := menu.ParsePathKey(key)
			if err != nil {
				return nil, err
			}
			set[path] = struct{}{}
		}
		out[day] = set
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// sortTargets keeps API responses stable for clients and tests.
func sortTargets(targets []menu.Target) {
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Key() < targets[j].Key()
	})
}
