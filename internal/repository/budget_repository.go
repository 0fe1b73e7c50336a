package repository

import (
	"fmt"

	"hact-service/internal/models"

	"github.com/jmoiron/sqlx"
)

type BudgetRepository struct {
	db *sqlx.DB
}

func NewBudgetRepository(db *sqlx.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

func (r *BudgetRepository) DB() *sqlx.DB {
	return r.db
}

func (r *BudgetRepository) GetPlannedBudget(interventionID int64) (*models.PlannedBudget, error) {
	var budget models.PlannedBudget
	query := `SELECT * FROM planned_budget WHERE intervention_id = $1`

	err := r.db.Get(&budget, query, interventionID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get planned budget: %w", err)
	}
	return &budget, nil
}

func (r *BudgetRepository) UpsertPlannedBudget(ext sqlx.Ext, budget *models.PlannedBudget) error {
	query := `
		INSERT INTO planned_budget (
			intervention_id, currency,
			partner_contribution_local, partner_supply_local,
			total_unicef_cash_local_wo_hq, total_hq_cash_local, unicef_cash_local,
			in_kind_amount_local, total_local, programme_effectiveness
		) VALUES (
			:intervention_id, :currency,
			:partner_contribution_local, :partner_supply_local,
			:total_unicef_cash_local_wo_hq, :total_hq_cash_local, :unicef_cash_local,
			:in_kind_amount_local, :total_local, :programme_effectiveness
		)
		ON CONFLICT (intervention_id) DO UPDATE SET
			currency = EXCLUDED.currency,
			partner_contribution_local = EXCLUDED.partner_contribution_local,
			partner_supply_local = EXCLUDED.partner_supply_local,
			total_unicef_cash_local_wo_hq = EXCLUDED.total_unicef_cash_local_wo_hq,
			total_hq_cash_local = EXCLUDED.total_hq_cash_local,
			unicef_cash_local = EXCLUDED.unicef_cash_local,
			in_kind_amount_local = EXCLUDED.in_kind_amount_local,
			total_local = EXCLUDED.total_local,
			programme_effectiveness = EXCLUDED.programme_effectiveness`

	if _, err := sqlx.NamedExec(ext, query, budget); err != nil {
		return fmt.Errorf("failed to upsert planned budget: %w", err)
	}
	return nil
}

func (r *BudgetRepository) GetManagementBudget(interventionID int64) (*models.ManagementBudget, error) {
	var budget models.ManagementBudget
	query := `SELECT * FROM management_budget WHERE intervention_id = $1`

	err := r.db.Get(&budget, query, interventionID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get management budget: %w", err)
	}
	return &budget, nil
}

func (r *BudgetRepository) UpsertManagementBudget(ext sqlx.Ext, budget *models.ManagementBudget) error {
	query := `
		INSERT INTO management_budget (
			intervention_id,
			act_in_country_unicef, act_in_country_cso,
			act_operation_unicef, act_operation_cso,
			act_planning_unicef, act_planning_cso
		) VALUES (
			:intervention_id,
			:act_in_country_unicef, :act_in_country_cso,
			:act_operation_unicef, :act_operation_cso,
			:act_planning_unicef, :act_planning_cso
		)
		ON CONFLICT (intervention_id) DO UPDATE SET
			act_in_country_unicef = EXCLUDED.act_in_country_unicef,
			act_in_country_cso = EXCLUDED.act_in_country_cso,
			act_operation_unicef = EXCLUDED.act_operation_unicef,
			act_operation_cso = EXCLUDED.act_operation_cso,
			act_planning_unicef = EXCLUDED.act_planning_unicef,
			act_planning_cso = EXCLUDED.act_planning_cso`

	if _, err := sqlx.NamedExec(ext, query, budget); err != nil {
		return fmt.Errorf("failed to upsert management budget: %w", err)
	}
	return nil
}

func (r *BudgetRepository) ListManagementItems(budgetID int64) ([]models.ManagementBudgetItem, error) {
	var items []models.ManagementBudgetItem
	query := `SELECT * FROM management_budget_item WHERE management_budget_id = $1 ORDER BY id`

	err := r.db.Select(&items, query, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list management budget items: %w", err)
	}
	return items, nil
}

func (r *BudgetRepository) CreateManagementItem(ext sqlx.Ext, item *models.ManagementBudgetItem) error {
	query := `
		INSERT INTO management_budget_item (
			management_budget_id, name, kind, unit, unit_price, no_units, unicef_cash, cso_cash
		) VALUES (
			:management_budget_id, :name, :kind, :unit, :unit_price, :no_units, :unicef_cash, :cso_cash
		) RETURNING id`
	if err := namedInsertID(ext, query, item, &item.ID); err != nil {
		return fmt.Errorf("failed to create management budget item: %w", err)
	}
	return nil
}

func (r *BudgetRepository) UpdateManagementItem(ext sqlx.Ext, item *models.ManagementBudgetItem) error {
	query := `
		UPDATE management_budget_item SET
			name = :name, kind = :kind, unit = :unit, unit_price = :unit_price,
			no_units = :no_units, unicef_cash = :unicef_cash, cso_cash = :cso_cash
		WHERE id = :id`
	if _, err := sqlx.NamedExec(ext, query, item); err != nil {
		return fmt.Errorf("failed to update management budget item: %w", err)
	}
	return nil
}
