package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ------------------------------------------------------------------
// Catalog

func (s *PostgresStore) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, sort_order FROM services
		WHERE status = 'active' ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Status, &svc.SortOrder); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *PostgresStore) ListSubServices(ctx context.Context) ([]SubService, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, service_id, name, status, sort_order FROM sub_services
		WHERE status = 'active' ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list sub services: %w", err)
	}
	defer rows.Close()

	var subServices []SubService
	for rows.Next() {
		var sub SubService
		if err := rows.Scan(&sub.ID, &sub.ServiceID, &sub.Name, &sub.Status, &sub.SortOrder); err != nil {
			return nil, fmt.Errorf("scan sub service: %w", err)
		}
		subServices = append(subServices, sub)
	}
	return subServices, rows.Err()
}

func (s *PostgresStore) ListMealPlans(ctx context.Context) ([]MealPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sub_service_id, name, status, sort_order FROM meal_plans
		WHERE status = 'active' ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list meal plans: %w", err)
	}
	defer rows.Close()

	var plans []MealPlan
	for rows.Next() {
		var plan MealPlan
		if err := rows.Scan(&plan.ID, &plan.SubServiceID, &plan.Name, &plan.Status, &plan.SortOrder); err != nil {
			return nil, fmt.Errorf("scan meal plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (s *PostgresStore) ListSubMealPlans(ctx context.Context) ([]SubMealPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meal_plan_id, name, status, sort_order, is_repeat_plan FROM sub_meal_plans
		WHERE status = 'active' ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list sub meal plans: %w", err)
	}
	defer rows.Close()

	var plans []SubMealPlan
	for rows.Next() {
		var plan SubMealPlan
		if err := rows.Scan(&plan.ID, &plan.MealPlanID, &plan.Name, &plan.Status, &plan.SortOrder, &plan.IsRepeatPlan); err != nil {
			return nil, fmt.Errorf("scan sub meal plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (s *PostgresStore) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, descriptions, status FROM menu_items
		WHERE status = 'active' ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var item MenuItem
		var descriptions []byte
		if err := rows.Scan(&item.ID, &item.Name, &descriptions, &item.Status); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		if len(descriptions) > 0 {
			if err := json.Unmarshal(descriptions, &item.Descriptions); err != nil {
				return nil, fmt.Errorf("decode item descriptions: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status FROM companies WHERE status = 'active' ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var company Company
		if err := rows.Scan(&company.ID, &company.Name, &company.Status); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

func (s *PostgresStore) ListBuildings(ctx context.Context) ([]Building, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, name, status FROM buildings WHERE status = 'active' ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	defer rows.Close()

	var buildings []Building
	for rows.Next() {
		var building Building
		if err := rows.Scan(&building.ID, &building.CompanyID, &building.Name, &building.Status); err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		buildings = append(buildings, building)
	}
	return buildings, rows.Err()
}

// ------------------------------------------------------------------
// Combined menus

// FindMenuByRange returns the non-archived combined menu covering exactly
// [startDate, endDate], if one exists. Used as the duplicate gate before
// grid generation.
func (s *PostgresStore) FindMenuByRange(ctx context.Context, startDate, endDate string) (*CombinedMenu, error) {
	var menu CombinedMenu
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, start_date, end_date, status, updated_at
		FROM combined_menus
		WHERE start_date = $1 AND end_date = $2 AND status <> 'archived'
		ORDER BY updated_at DESC
		LIMIT 1
	`, startDate, endDate).Scan(&menu.ID, &menu.CompanyID, &menu.StartDate, &menu.EndDate, &menu.Status, &menu.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find menu by range: %w", err)
	}
	return &menu, nil
}

// LatestDraft returns the most recently updated draft for the range and
// company, if any, for merging into a freshly generated grid.
func (s *PostgresStore) LatestDraft(ctx context.Context, startDate, endDate, companyID string) (*CombinedMenu, error) {
	var menu CombinedMenu
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, start_date, end_date, status, menu_data, updated_at
		FROM combined_menus
		WHERE start_date = $1 AND end_date = $2 AND company_id = $3 AND status = 'draft'
		ORDER BY updated_at DESC
		LIMIT 1
	`, startDate, endDate, companyID).Scan(&menu.ID, &menu.CompanyID, &menu.StartDate, &menu.EndDate, &menu.Status, &menu.MenuData, &menu.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest draft: %w", err)
	}
	return &menu, nil
}

func (s *PostgresStore) GetCombinedMenu(ctx context.Context, id string) (CombinedMenu, error) {
	var menu CombinedMenu
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, start_date, end_date, status, menu_data, updated_at
		FROM combined_menus WHERE id = $1
	`, id).Scan(&menu.ID, &menu.CompanyID, &menu.StartDate, &menu.EndDate, &menu.Status, &menu.MenuData, &menu.UpdatedAt)
	if err != nil {
		return CombinedMenu{}, fmt.Errorf("get combined menu: %w", err)
	}
	return menu, nil
}

func (s *PostgresStore) InsertCombinedMenu(ctx context.Context, menu CombinedMenu) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO combined_menus (id, company_id, start_date, end_date, status, menu_data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, menu.ID, menu.CompanyID, menu.StartDate, menu.EndDate, menu.Status, menu.MenuData)
	if err != nil {
		return fmt.Errorf("insert combined menu: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCombinedMenu(ctx context.Context, id, status string, menuData json.RawMessage) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE combined_menus SET status = $2, menu_data = $3, updated_at = NOW() WHERE id = $1
	`, id, status, menuData)
	if err != nil {
		return fmt.Errorf("update combined menu: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ------------------------------------------------------------------
// Company menus

// ReplaceCompanyMenus writes a fresh generation of company-menu documents
// in one transaction. Rows from earlier generations of the same combined
// menu are marked superseded, never updated in place.
func (s *PostgresStore) ReplaceCompanyMenus(ctx context.Context, combinedMenuID string, docs []CompanyMenuDoc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin company menu tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE company_menus SET superseded_at = NOW()
		WHERE combined_menu_id = $1 AND superseded_at IS NULL
	`, combinedMenuID); err != nil {
		return fmt.Errorf("supersede company menus: %w", err)
	}

	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO company_menus (id, combined_menu_id, company_id, building_id, start_date, end_date, days, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`, doc.ID, doc.CombinedMenuID, doc.CompanyID, doc.BuildingID, doc.StartDate, doc.EndDate, doc.Days); err != nil {
			return fmt.Errorf("insert company menu %s/%s: %w", doc.CompanyID, doc.BuildingID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit company menus: %w", err)
	}
	return nil
}

// ListCompanyMenusOverlapping returns current (non-superseded) company
// menus whose range overlaps [startDate, endDate]. The previous-week
// snapshot builder scans these.
func (s *PostgresStore) ListCompanyMenusOverlapping(ctx context.Context, startDate, endDate string) ([]CompanyMenuDoc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, combined_menu_id, company_id, building_id, start_date, end_date, days, created_at
		FROM company_menus
		WHERE superseded_at IS NULL AND start_date <= $2 AND end_date >= $1
	`, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("list company menus: %w", err)
	}
	defer rows.Close()

	var docs []CompanyMenuDoc
	for rows.Next() {
		var doc CompanyMenuDoc
		if err := rows.Scan(&doc.ID, &doc.CombinedMenuID, &doc.CompanyID, &doc.BuildingID, &doc.StartDate, &doc.EndDate, &doc.Days, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan company menu: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ------------------------------------------------------------------
// Repetition logs

func (s *PostgresStore) ListRepetitionLogs(ctx context.Context, startDate, endDate, companyID string) ([]RepetitionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, start_date, end_date, entry, created_at
		FROM repetition_logs
		WHERE start_date = $1 AND end_date = $2 AND company_id = $3
		ORDER BY created_at, id
	`, startDate, endDate, companyID)
	if err != nil {
		return nil, fmt.Errorf("list repetition logs: %w", err)
	}
	defer rows.Close()

	var logs []RepetitionLog
	for rows.Next() {
		var entry RepetitionLog
		if err := rows.Scan(&entry.ID, &entry.CompanyID, &entry.StartDate, &entry.EndDate, &entry.Entry, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan repetition log: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) InsertRepetitionLog(ctx context.Context, entry RepetitionLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repetition_logs (id, company_id, start_date, end_date, entry, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO NOTHING
	`, entry.ID, entry.CompanyID, entry.StartDate, entry.EndDate, entry.Entry)
	if err != nil {
		return fmt.Errorf("insert repetition log: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteRepetitionLogs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM repetition_logs WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete repetition log %s: %w", id, err)
		}
	}
	return nil
}

// ------------------------------------------------------------------
// Assignments

// ListAssignmentDocs returns every active assignment document. The app
// layer pairs structural and meal-structure docs per (company, building).
func (s *PostgresStore) ListAssignmentDocs(ctx context.Context) ([]AssignmentDoc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, building_id, kind, status, days, updated_at
		FROM assignment_docs
		WHERE status = 'active'
		ORDER BY company_id, building_id, kind
	`)
	if err != nil {
		return nil, fmt.Errorf("list assignment docs: %w", err)
	}
	defer rows.Close()

	var docs []AssignmentDoc
	for rows.Next() {
		var doc AssignmentDoc
		if err := rows.Scan(&doc.ID, &doc.CompanyID, &doc.BuildingID, &doc.Kind, &doc.Status, &doc.Days, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment doc: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
