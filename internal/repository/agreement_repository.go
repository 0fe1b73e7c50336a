package repository

import (
	"fmt"
	"time"

	"hact-service/internal/models"

	"github.com/jmoiron/sqlx"
)

type AgreementRepository struct {
	db *sqlx.DB
}

func NewAgreementRepository(db *sqlx.DB) *AgreementRepository {
	return &AgreementRepository{db: db}
}

// DB exposes the handle for transaction scoping by the lifecycle service.
func (r *AgreementRepository) DB() *sqlx.DB {
	return r.db
}

func (r *AgreementRepository) Create(agreement *models.Agreement) error {
	agreement.CreatedAt = time.Now()
	agreement.UpdatedAt = time.Now()

	query := `
		INSERT INTO agreement (
			partner_id, agreement_type, status, country_programme_id,
			agreement_number, amendment_count,
			start_date, end_date, signed_by_partner_date, signed_by_unicef_date,
			attached_agreement_url, created_at, updated_at
		) VALUES (
			:partner_id, :agreement_type, :status, :country_programme_id,
			:agreement_number, :amendment_count,
			:start_date, :end_date, :signed_by_partner_date, :signed_by_unicef_date,
			:attached_agreement_url, :created_at, :updated_at
		) RETURNING id`

	rows, err := r.db.NamedQuery(query, agreement)
	if err != nil {
		return fmt.Errorf("failed to create agreement: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&agreement.ID); err != nil {
			return fmt.Errorf("failed to read agreement id: %w", err)
		}
	}
	return nil
}

func (r *AgreementRepository) GetByID(id int64) (*models.Agreement, error) {
	var agreement models.Agreement
	query := `SELECT * FROM agreement WHERE id = $1`

	err := r.db.Get(&agreement, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}
	return &agreement, nil
}

func (r *AgreementRepository) Update(ext sqlx.Ext, agreement *models.Agreement) error {
	agreement.UpdatedAt = time.Now()

	query := `
		UPDATE agreement SET
			status = :status, country_programme_id = :country_programme_id,
			agreement_number = :agreement_number, amendment_count = :amendment_count,
			start_date = :start_date, end_date = :end_date,
			signed_by_partner_date = :signed_by_partner_date,
			signed_by_unicef_date = :signed_by_unicef_date,
			attached_agreement_url = :attached_agreement_url,
			updated_at = :updated_at
		WHERE id = :id`

	_, err := sqlx.NamedExec(ext, query, agreement)
	if err != nil {
		return fmt.Errorf("failed to update agreement: %w", err)
	}
	return nil
}

func (r *AgreementRepository) GetCountryProgramme(id int64) (*models.CountryProgramme, error) {
	var cp models.CountryProgramme
	query := `SELECT * FROM country_programme WHERE id = $1`

	err := r.db.Get(&cp, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get country programme: %w", err)
	}
	return &cp, nil
}

// ListAmendments returns the agreement's amendments ordered by signed
// date, unsigned drafts last in creation order.
func (r *AgreementRepository) ListAmendments(q sqlx.Queryer, agreementID int64) ([]models.AgreementAmendment, error) {
	var amendments []models.AgreementAmendment
	query := `
		SELECT * FROM agreement_amendment
		WHERE agreement_id = $1
		ORDER BY signed_date NULLS LAST, created_at`

	err := sqlx.Select(q, &amendments, query, agreementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agreement amendments: %w", err)
	}
	return amendments, nil
}

func (r *AgreementRepository) CreateAmendment(ext sqlx.Ext, amendment *models.AgreementAmendment) error {
	amendment.CreatedAt = time.Now()

	query := `
		INSERT INTO agreement_amendment (
			agreement_id, number, types, signed_date, signed_amendment_url, created_at
		) VALUES (
			:agreement_id, :number, :types, :signed_date, :signed_amendment_url, :created_at
		) RETURNING id`

	rows, err := sqlx.NamedQuery(ext, query, amendment)
	if err != nil {
		return fmt.Errorf("failed to create agreement amendment: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&amendment.ID); err != nil {
			return fmt.Errorf("failed to read amendment id: %w", err)
		}
	}
	return nil
}

// UpdateAmendmentNumber renumbers one amendment row.
func (r *AgreementRepository) UpdateAmendmentNumber(ext sqlx.Ext, amendmentID int64, number string) error {
	query := `UPDATE agreement_amendment SET number = $2 WHERE id = $1`

	_, err := ext.Exec(query, amendmentID, number)
	if err != nil {
		return fmt.Errorf("failed to update amendment number: %w", err)
	}
	return nil
}
