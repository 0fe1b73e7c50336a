package repository

import (
	"fmt"
	"time"

	"hact-service/internal/models"

	"github.com/jmoiron/sqlx"
)

type InterventionRepository struct {
	db *sqlx.DB
}

func NewInterventionRepository(db *sqlx.DB) *InterventionRepository {
	return &InterventionRepository{db: db}
}

func (r *InterventionRepository) DB() *sqlx.DB {
	return r.db
}

func (r *InterventionRepository) Create(ext sqlx.Ext, intervention *models.Intervention) error {
	intervention.CreatedAt = time.Now()
	intervention.UpdatedAt = time.Now()

	query := `
		INSERT INTO intervention (
			agreement_id, document_type, status, title, number, amendment_count,
			start_date, end_date, submission_date, date_sent_to_partner,
			signed_by_partner_date, signed_by_unicef_date, signed_document_url,
			cash_transfer_modalities, review_type,
			unicef_court, unicef_accepted, partner_accepted,
			contingency, hq_support_cost, in_amendment, created_at, updated_at
		) VALUES (
			:agreement_id, :document_type, :status, :title, :number, :amendment_count,
			:start_date, :end_date, :submission_date, :date_sent_to_partner,
			:signed_by_partner_date, :signed_by_unicef_date, :signed_document_url,
			:cash_transfer_modalities, :review_type,
			:unicef_court, :unicef_accepted, :partner_accepted,
			:contingency, :hq_support_cost, :in_amendment, :created_at, :updated_at
		) RETURNING id`

	rows, err := sqlx.NamedQuery(ext, query, intervention)
	if err != nil {
		return fmt.Errorf("failed to create intervention: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&intervention.ID); err != nil {
			return fmt.Errorf("failed to read intervention id: %w", err)
		}
	}
	return nil
}

func (r *InterventionRepository) GetByID(id int64) (*models.Intervention, error) {
	var intervention models.Intervention
	query := `SELECT * FROM intervention WHERE id = $1`

	err := r.db.Get(&intervention, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get intervention: %w", err)
	}
	return &intervention, nil
}

func (r *InterventionRepository) Update(ext sqlx.Ext, intervention *models.Intervention) error {
	intervention.UpdatedAt = time.Now()

	query := `
		UPDATE intervention SET
			status = :status, title = :title, number = :number,
			amendment_count = :amendment_count,
			start_date = :start_date, end_date = :end_date,
			submission_date = :submission_date, date_sent_to_partner = :date_sent_to_partner,
			signed_by_partner_date = :signed_by_partner_date,
			signed_by_unicef_date = :signed_by_unicef_date,
			signed_document_url = :signed_document_url,
			cash_transfer_modalities = :cash_transfer_modalities,
			review_type = :review_type,
			unicef_court = :unicef_court, unicef_accepted = :unicef_accepted,
			partner_accepted = :partner_accepted,
			contingency = :contingency, hq_support_cost = :hq_support_cost,
			in_amendment = :in_amendment, updated_at = :updated_at
		WHERE id = :id`

	_, err := sqlx.NamedExec(ext, query, intervention)
	if err != nil {
		return fmt.Errorf("failed to update intervention: %w", err)
	}
	return nil
}

// Delete removes an intervention; child rows go with it through FK
// cascades. Only amendment clones are ever deleted.
func (r *InterventionRepository) Delete(ext sqlx.Ext, id int64) error {
	_, err := ext.Exec(`DELETE FROM intervention WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete intervention: %w", err)
	}
	return nil
}

func (r *InterventionRepository) ListByAgreement(agreementID int64) ([]models.Intervention, error) {
	var interventions []models.Intervention
	query := `SELECT * FROM intervention WHERE agreement_id = $1 ORDER BY id`

	err := r.db.Select(&interventions, query, agreementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interventions: %w", err)
	}
	return interventions, nil
}

// ListAutoTransitionCandidates returns interventions whose status may move
// on a date-driven recompute.
func (r *InterventionRepository) ListAutoTransitionCandidates() ([]models.Intervention, error) {
	var interventions []models.Intervention
	query := `
		SELECT * FROM intervention
		WHERE status IN ('signed', 'active', 'ended')
		ORDER BY id`

	err := r.db.Select(&interventions, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-transition candidates: %w", err)
	}
	return interventions, nil
}

// ============================================================================
// GRAPH LOADING
// ============================================================================

// LoadGraph assembles the full intervention subgraph the amendment
// protocol clones and diffs.
func (r *InterventionRepository) LoadGraph(id int64) (*models.InterventionGraph, error) {
	intervention, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	graph := &models.InterventionGraph{Intervention: *intervention}

	if err := r.db.Select(&graph.ResultLinks,
		`SELECT * FROM result_link WHERE intervention_id = $1 ORDER BY id`, id); err != nil {
		return nil, fmt.Errorf("failed to load result links: %w", err)
	}
	if err := r.db.Select(&graph.LowerResults,
		`SELECT lr.* FROM lower_result lr
		 JOIN result_link rl ON rl.id = lr.result_link_id
		 WHERE rl.intervention_id = $1 ORDER BY lr.id`, id); err != nil {
		return nil, fmt.Errorf("failed to load lower results: %w", err)
	}
	if err := r.db.Select(&graph.Activities,
		`SELECT a.* FROM result_activity a
		 JOIN lower_result lr ON lr.id = a.lower_result_id
		 JOIN result_link rl ON rl.id = lr.result_link_id
		 WHERE rl.intervention_id = $1 ORDER BY a.id`, id); err != nil {
		return nil, fmt.Errorf("failed to load result activities: %w", err)
	}
	if err := r.db.Select(&graph.Indicators,
		`SELECT i.* FROM applied_indicator i
		 JOIN lower_result lr ON lr.id = i.lower_result_id
		 JOIN result_link rl ON rl.id = lr.result_link_id
		 WHERE rl.intervention_id = $1 ORDER BY i.id`, id); err != nil {
		return nil, fmt.Errorf("failed to load applied indicators: %w", err)
	}

	var budgets []models.PlannedBudget
	if err := r.db.Select(&budgets,
		`SELECT * FROM planned_budget WHERE intervention_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to load planned budget: %w", err)
	}
	if len(budgets) > 0 {
		graph.PlannedBudget = &budgets[0]
	}

	var mgmt []models.ManagementBudget
	if err := r.db.Select(&mgmt,
		`SELECT * FROM management_budget WHERE intervention_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to load management budget: %w", err)
	}
	if len(mgmt) > 0 {
		graph.ManagementBudget = &mgmt[0]
		if err := r.db.Select(&graph.ManagementItems,
			`SELECT * FROM management_budget_item WHERE management_budget_id = $1 ORDER BY id`,
			graph.ManagementBudget.ID); err != nil {
			return nil, fmt.Errorf("failed to load management budget items: %w", err)
		}
	}

	if err := r.db.Select(&graph.PlannedVisits,
		`SELECT * FROM planned_visit WHERE intervention_id = $1 ORDER BY id`, id); err != nil {
		return nil, fmt.Errorf("failed to load planned visits: %w", err)
	}
	if err := r.db.Select(&graph.SupplyItems,
		`SELECT * FROM supply_item WHERE intervention_id = $1 ORDER BY id`, id); err != nil {
		return nil, fmt.Errorf("failed to load supply items: %w", err)
	}
	if err := r.db.Select(&graph.Risks,
		`SELECT * FROM intervention_risk WHERE intervention_id = $1 ORDER BY id`, id); err != nil {
		return nil, fmt.Errorf("failed to load risks: %w", err)
	}

	return graph, nil
}

// ============================================================================
// CHILD ROWS
// ============================================================================

func namedInsertID(ext sqlx.Ext, query string, arg any, id *int64) error {
	rows, err := sqlx.NamedQuery(ext, query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	if rows.Next() {
		return rows.Scan(id)
	}
	return nil
}

func (r *InterventionRepository) CreateResultLink(ext sqlx.Ext, link *models.ResultLink) error {
	query := `
		INSERT INTO result_link (intervention_id, cp_output_id, code)
		VALUES (:intervention_id, :cp_output_id, :code) RETURNING id`
	if err := namedInsertID(ext, query, link, &link.ID); err != nil {
		return fmt.Errorf("failed to create result link: %w", err)
	}
	return nil
}

func (r *InterventionRepository) UpdateResultLinkCode(ext sqlx.Ext, id int64, code string) error {
	if _, err := ext.Exec(`UPDATE result_link SET code = $2 WHERE id = $1`, id, code); err != nil {
		return fmt.Errorf("failed to update result link code: %w", err)
	}
	return nil
}

func (r *InterventionRepository) CreateLowerResult(ext sqlx.Ext, lr *models.LowerResult) error {
	query := `
		INSERT INTO lower_result (result_link_id, name, code)
		VALUES (:result_link_id, :name, :code) RETURNING id`
	if err := namedInsertID(ext, query, lr, &lr.ID); err != nil {
		return fmt.Errorf("failed to create lower result: %w", err)
	}
	return nil
}

func (r *InterventionRepository) UpdateLowerResult(ext sqlx.Ext, lr *models.LowerResult) error {
	query := `UPDATE lower_result SET name = :name, code = :code WHERE id = :id`
	if _, err := sqlx.NamedExec(ext, query, lr); err != nil {
		return fmt.Errorf("failed to update lower result: %w", err)
	}
	return nil
}

func (r *InterventionRepository) CreateResultActivity(ext sqlx.Ext, a *models.ResultActivity) error {
	query := `
		INSERT INTO result_activity (lower_result_id, name, code, unicef_cash, cso_cash, is_active)
		VALUES (:lower_result_id, :name, :code, :unicef_cash, :cso_cash, :is_active) RETURNING id`
	if err := namedInsertID(ext, query, a, &a.ID); err != nil {
		return fmt.Errorf("failed to create result activity: %w", err)
	}
	return nil
}

func (r *InterventionRepository) UpdateResultActivity(ext sqlx.Ext, a *models.ResultActivity) error {
	query := `
		UPDATE result_activity SET
			name = :name, code = :code, unicef_cash = :unicef_cash,
			cso_cash = :cso_cash, is_active = :is_active
		WHERE id = :id`
	if _, err := sqlx.NamedExec(ext, query, a); err != nil {
		return fmt.Errorf("failed to update result activity: %w", err)
	}
	return nil
}

func (r *InterventionRepository) CreateAppliedIndicator(ext sqlx.Ext, in *models.AppliedIndicator) error {
	query := `
		INSERT INTO applied_indicator (lower_result_id, title, baseline, target, is_active)
		VALUES (:lower_result_id, :title, :baseline, :target, :is_active) RETURNING id`
	if err := namedInsertID(ext, query, in, &in.ID); err != nil {
		return fmt.Errorf("failed to create applied indicator: %w", err)
	}
	return nil
}

func (r *InterventionRepository) UpdateAppliedIndicator(ext sqlx.Ext, in *models.AppliedIndicator) error {
	query := `
		UPDATE applied_indicator SET
			title = :title, baseline = :baseline, target = :target, is_active = :is_active
		WHERE id = :id`
	if _, err := sqlx.NamedExec(ext, query, in); err != nil {
		return fmt.Errorf("failed to update applied indicator: %w", err)
	}
	return nil
}

func (r *InterventionRepository) CreatePlannedVisit(ext sqlx.Ext, v *models.PlannedVisit) error {
	query := `
		INSERT INTO planned_visit (
			intervention_id, partner_id, year,
			programmatic_q1, programmatic_q2, programmatic_q3, programmatic_q4
		) VALUES (
			:intervention_id, :partner_id, :year,
			:programmatic_q1, :programmatic_q2, :programmatic_q3, :programmatic_q4
		) RETURNING id`
	if err := namedInsertID(ext, query, v, &v.ID); err != nil {
		return fmt.Errorf("failed to create planned visit: %w", err)
	}
	return nil
}

func (r *InterventionRepository) UpdatePlannedVisit(ext sqlx.Ext, v *models.PlannedVisit) error {
	query := `
		UPDATE planned_visit SET
			year = :year, programmatic_q1 = :programmatic_q1,
			programmatic_q2 = :programmatic_q2, programmatic_q3 = :programmatic_q3,
			programmatic_q4 = :programmatic_q4
		WHERE id = :id`
	if _, err := sqlx.NamedExec(ext, query, v); err != nil {
		return fmt.Errorf("failed to update planned visit: %w", err)
	}
	return nil
}

func (r *InterventionRepository) CreateSupplyItem(ext sqlx.Ext, s *models.SupplyItem) error {
	s.RecalcTotal()
	query := `
		INSERT INTO supply_item (intervention_id, title, unit_number, unit_price, total_price, provided_by)
		VALUES (:intervention_id, :title, :unit_number, :unit_price, :total_price, :provided_by)
		RETURNING id`
	if err := namedInsertID(ext, query, s, &s.ID); err != nil {
		return fmt.Errorf("failed to create supply item: %w", err)
	}
	return nil
}

func (r *InterventionRepository) UpdateSupplyItem(ext sqlx.Ext, s *models.SupplyItem) error {
	s.RecalcTotal()
	query := `
		UPDATE supply_item SET
			title = :title, unit_number = :unit_number, unit_price = :unit_price,
			total_price = :total_price, provided_by = :provided_by
		WHERE id = :id`
	if _, err := sqlx.NamedExec(ext, query, s); err != nil {
		return fmt.Errorf("failed to update supply item: %w", err)
	}
	return nil
}

func (r *InterventionRepository) CreateRisk(ext sqlx.Ext, risk *models.InterventionRisk) error {
	query := `
		INSERT INTO intervention_risk (intervention_id, risk_type, mitigation_measures)
		VALUES (:intervention_id, :risk_type, :mitigation_measures) RETURNING id`
	if err := namedInsertID(ext, query, risk, &risk.ID); err != nil {
		return fmt.Errorf("failed to create risk: %w", err)
	}
	return nil
}

func (r *InterventionRepository) UpdateRisk(ext sqlx.Ext, risk *models.InterventionRisk) error {
	query := `
		UPDATE intervention_risk SET risk_type = :risk_type, mitigation_measures = :mitigation_measures
		WHERE id = :id`
	if _, err := sqlx.NamedExec(ext, query, risk); err != nil {
		return fmt.Errorf("failed to update risk: %w", err)
	}
	return nil
}

// DeleteChildRow removes one row from a whitelisted child table. The table
// name always comes from the clone protocol's fixed field list, never from
// input.
func (r *InterventionRepository) DeleteChildRow(ext sqlx.Ext, table string, id int64) error {
	if _, err := ext.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id); err != nil {
		return fmt.Errorf("failed to delete %s row: %w", table, err)
	}
	return nil
}

// ============================================================================
// REVIEWS AND FUNDS RESERVATIONS
// ============================================================================

func (r *InterventionRepository) ListReviews(interventionID int64) ([]models.Review, error) {
	var reviews []models.Review
	query := `SELECT * FROM review WHERE intervention_id = $1 ORDER BY id`

	err := r.db.Select(&reviews, query, interventionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// ReparentReviews moves all reviews from the clone onto the original
// during merge.
func (r *InterventionRepository) ReparentReviews(ext sqlx.Ext, fromID, toID int64) error {
	_, err := ext.Exec(`UPDATE review SET intervention_id = $2 WHERE intervention_id = $1`, fromID, toID)
	if err != nil {
		return fmt.Errorf("failed to reparent reviews: %w", err)
	}
	return nil
}

func (r *InterventionRepository) ListFundsReservations(interventionID int64) ([]models.FundsReservationHeader, error) {
	var headers []models.FundsReservationHeader
	query := `SELECT * FROM funds_reservation_header WHERE intervention_id = $1 ORDER BY id`

	err := r.db.Select(&headers, query, interventionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list funds reservations: %w", err)
	}
	return headers, nil
}

// ListPlannedVisitsForPartner returns the year's planned visits across the
// partner's interventions plus partner-level rows (government partners
// plan per partner).
func (r *InterventionRepository) ListPlannedVisitsForPartner(partnerID int64, year int) ([]models.PlannedVisit, error) {
	var visits []models.PlannedVisit
	query := `
		SELECT pv.* FROM planned_visit pv
		LEFT JOIN intervention i ON i.id = pv.intervention_id
		LEFT JOIN agreement a ON a.id = i.agreement_id
		WHERE pv.year = $2 AND (pv.partner_id = $1 OR a.partner_id = $1)`

	err := r.db.Select(&visits, query, partnerID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list planned visits for partner: %w", err)
	}
	return visits, nil
}
