package repository

import (
	"fmt"
	"time"

	"hact-service/internal/models"

	"github.com/jmoiron/sqlx"
)

type PartnerRepository struct {
	db *sqlx.DB
}

func NewPartnerRepository(db *sqlx.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

// DB exposes the handle for transaction scoping by the ledger service.
func (r *PartnerRepository) DB() *sqlx.DB {
	return r.db
}

func (r *PartnerRepository) Create(partner *models.Partner) error {
	partner.CreatedAt = time.Now()
	partner.UpdatedAt = time.Now()

	query := `
		INSERT INTO partner (
			vendor_number, name, partner_type, cso_type, hidden,
			rating, psea_rating, type_of_assessment,
			last_assessment_date, core_values_assessment_date, psea_assessment_date, basis_for_risk_rating_date,
			total_ct_cp, total_ct_cy, net_ct_cy, reported_cy,
			outstanding_dct_6_to_9, outstanding_dct_over_9,
			hact_values, created_at, updated_at
		) VALUES (
			:vendor_number, :name, :partner_type, :cso_type, :hidden,
			:rating, :psea_rating, :type_of_assessment,
			:last_assessment_date, :core_values_assessment_date, :psea_assessment_date, :basis_for_risk_rating_date,
			:total_ct_cp, :total_ct_cy, :net_ct_cy, :reported_cy,
			:outstanding_dct_6_to_9, :outstanding_dct_over_9,
			:hact_values, :created_at, :updated_at
		) RETURNING id`

	rows, err := r.db.NamedQuery(query, partner)
	if err != nil {
		return fmt.Errorf("failed to create partner: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&partner.ID); err != nil {
			return fmt.Errorf("failed to read partner id: %w", err)
		}
	}
	return nil
}

func (r *PartnerRepository) GetByID(id int64) (*models.Partner, error) {
	var partner models.Partner
	query := `SELECT * FROM partner WHERE id = $1`

	err := r.db.Get(&partner, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}

	return &partner, nil
}

func (r *PartnerRepository) GetByVendorNumber(vendorNumber string) (*models.Partner, error) {
	var partner models.Partner
	query := `SELECT * FROM partner WHERE vendor_number = $1`

	err := r.db.Get(&partner, query, vendorNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner by vendor number: %w", err)
	}

	return &partner, nil
}

// ListVisible returns all non-hidden partners, used by the workspace-wide
// recompute entry point.
func (r *PartnerRepository) ListVisible() ([]models.Partner, error) {
	var partners []models.Partner
	query := `SELECT * FROM partner WHERE hidden = false ORDER BY vendor_number`

	err := r.db.Select(&partners, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}

	return partners, nil
}

// UpdateFinancials replaces the cached financial aggregates in one write.
func (r *PartnerRepository) UpdateFinancials(ext sqlx.Ext, partnerID int64, f models.PartnerFinancials) error {
	query := `
		UPDATE partner SET
			total_ct_cp = $2, total_ct_cy = $3, net_ct_cy = $4, reported_cy = $5,
			outstanding_dct_6_to_9 = $6, outstanding_dct_over_9 = $7, updated_at = $8
		WHERE id = $1`

	_, err := ext.Exec(query, partnerID,
		f.TotalCTCP, f.TotalCTCY, f.NetCTCY, f.ReportedCY,
		f.OutstandingDCT6To9, f.OutstandingDCTOver9, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update partner financials: %w", err)
	}
	return nil
}

// UpdateSnapshot writes the derived HACT snapshot document.
func (r *PartnerRepository) UpdateSnapshot(ext sqlx.Ext, partnerID int64, snapshot models.HactSnapshot) error {
	query := `UPDATE partner SET hact_values = $2, updated_at = $3 WHERE id = $1`

	_, err := ext.Exec(query, partnerID, snapshot, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update partner snapshot: %w", err)
	}
	return nil
}

// GetPlannedEngagement returns the partner's planned engagement for the
// year, nil when none exists.
func (r *PartnerRepository) GetPlannedEngagement(partnerID int64, year int) (*models.PlannedEngagement, error) {
	var engagement models.PlannedEngagement
	query := `SELECT * FROM planned_engagement WHERE partner_id = $1 AND year = $2`

	err := r.db.Get(&engagement, query, partnerID, year)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get planned engagement: %w", err)
	}

	return &engagement, nil
}

func (r *PartnerRepository) UpsertPlannedEngagement(engagement *models.PlannedEngagement) error {
	query := `
		INSERT INTO planned_engagement (
			partner_id, year, spot_check_planned_q1, spot_check_planned_q2,
			spot_check_planned_q3, spot_check_planned_q4, spot_check_follow_up,
			scheduled_audit, special_audit
		) VALUES (
			:partner_id, :year, :spot_check_planned_q1, :spot_check_planned_q2,
			:spot_check_planned_q3, :spot_check_planned_q4, :spot_check_follow_up,
			:scheduled_audit, :special_audit
		)
		ON CONFLICT (partner_id, year) DO UPDATE SET
			spot_check_planned_q1 = EXCLUDED.spot_check_planned_q1,
			spot_check_planned_q2 = EXCLUDED.spot_check_planned_q2,
			spot_check_planned_q3 = EXCLUDED.spot_check_planned_q3,
			spot_check_planned_q4 = EXCLUDED.spot_check_planned_q4,
			spot_check_follow_up = EXCLUDED.spot_check_follow_up,
			scheduled_audit = EXCLUDED.scheduled_audit,
			special_audit = EXCLUDED.special_audit`

	_, err := r.db.NamedExec(query, engagement)
	if err != nil {
		return fmt.Errorf("failed to upsert planned engagement: %w", err)
	}
	return nil
}
