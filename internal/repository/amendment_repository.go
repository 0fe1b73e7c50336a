package repository

import (
	"fmt"
	"time"

	"hact-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AmendmentRepository struct {
	db *sqlx.DB
}

func NewAmendmentRepository(db *sqlx.DB) *AmendmentRepository {
	return &AmendmentRepository{db: db}
}

func (r *AmendmentRepository) Create(ext sqlx.Ext, amendment *models.InterventionAmendment) error {
	if amendment.ID == uuid.Nil {
		amendment.ID = uuid.New()
	}
	amendment.CreatedAt = time.Now()
	amendment.UpdatedAt = time.Now()

	query := `
		INSERT INTO intervention_amendment (
			id, intervention_id, kind, number, types,
			amended_intervention_id, related_objects_map, difference, is_active,
			signed_by_partner_date, signed_by_unicef_date, signed_document_url,
			created_at, updated_at
		) VALUES (
			:id, :intervention_id, :kind, :number, :types,
			:amended_intervention_id, :related_objects_map, :difference, :is_active,
			:signed_by_partner_date, :signed_by_unicef_date, :signed_document_url,
			:created_at, :updated_at
		)`

	if _, err := sqlx.NamedExec(ext, query, amendment); err != nil {
		return fmt.Errorf("failed to create intervention amendment: %w", err)
	}
	return nil
}

func (r *AmendmentRepository) GetByID(id uuid.UUID) (*models.InterventionAmendment, error) {
	var amendment models.InterventionAmendment
	query := `SELECT * FROM intervention_amendment WHERE id = $1`

	err := r.db.Get(&amendment, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get intervention amendment: %w", err)
	}
	return &amendment, nil
}

func (r *AmendmentRepository) Update(ext sqlx.Ext, amendment *models.InterventionAmendment) error {
	amendment.UpdatedAt = time.Now()

	query := `
		UPDATE intervention_amendment SET
			number = :number, types = :types,
			amended_intervention_id = :amended_intervention_id,
			related_objects_map = :related_objects_map, difference = :difference,
			is_active = :is_active,
			signed_by_partner_date = :signed_by_partner_date,
			signed_by_unicef_date = :signed_by_unicef_date,
			signed_document_url = :signed_document_url,
			updated_at = :updated_at
		WHERE id = :id`

	if _, err := sqlx.NamedExec(ext, query, amendment); err != nil {
		return fmt.Errorf("failed to update intervention amendment: %w", err)
	}
	return nil
}

// GetActiveByIntervention returns the intervention's active amendment,
// nil when there is none.
func (r *AmendmentRepository) GetActiveByIntervention(interventionID int64) (*models.InterventionAmendment, error) {
	var amendment models.InterventionAmendment
	query := `
		SELECT * FROM intervention_amendment
		WHERE intervention_id = $1 AND is_active = true`

	err := r.db.Get(&amendment, query, interventionID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active amendment: %w", err)
	}
	return &amendment, nil
}

// CountByKind counts the intervention's existing amendments of one kind,
// used when assigning "amd/N" and "camd/N" numbers.
func (r *AmendmentRepository) CountByKind(interventionID int64, kind models.InterventionAmendmentKind) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM intervention_amendment WHERE intervention_id = $1 AND kind = $2`

	err := r.db.Get(&n, query, interventionID, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to count amendments: %w", err)
	}
	return n, nil
}

// GetByAmendedIntervention resolves a clone id back to its amendment.
func (r *AmendmentRepository) GetByAmendedIntervention(cloneID int64) (*models.InterventionAmendment, error) {
	var amendment models.InterventionAmendment
	query := `SELECT * FROM intervention_amendment WHERE amended_intervention_id = $1`

	err := r.db.Get(&amendment, query, cloneID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get amendment by clone: %w", err)
	}
	return &amendment, nil
}
