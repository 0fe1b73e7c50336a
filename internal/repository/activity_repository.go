package repository

import (
	"fmt"

	"hact-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ActivityRepository reads the three completed-activity sources and the
// financial engagements. These tables are written by external ingest; the
// core only counts them.
type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) ListTravelActivities(partnerID int64, year int) ([]models.TravelActivity, error) {
	var activities []models.TravelActivity
	query := `
		SELECT * FROM travel_activity
		WHERE partner_id = $1 AND date_part('year', end_date) = $2`

	err := r.db.Select(&activities, query, partnerID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list travel activities: %w", err)
	}
	return activities, nil
}

func (r *ActivityRepository) ListTPMActivities(partnerID int64, year int) ([]models.TPMActivity, error) {
	var activities []models.TPMActivity
	query := `
		SELECT * FROM tpm_activity
		WHERE partner_id = $1 AND date_part('year', date) = $2`

	err := r.db.Select(&activities, query, partnerID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list tpm activities: %w", err)
	}
	return activities, nil
}

func (r *ActivityRepository) ListFieldMonitoringActivities(partnerID int64, year int) ([]models.FieldMonitoringActivity, error) {
	var activities []models.FieldMonitoringActivity
	query := `
		SELECT * FROM field_monitoring_activity
		WHERE partner_id = $1 AND date_part('year', end_date) = $2`

	err := r.db.Select(&activities, query, partnerID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list field monitoring activities: %w", err)
	}
	return activities, nil
}

// ListGroupIDsCoveringPartner returns the ids of monitoring activity
// groups that cover the partner.
func (r *ActivityRepository) ListGroupIDsCoveringPartner(partnerID int64) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM monitoring_activity_group WHERE partner_id = $1`

	err := r.db.Select(&ids, query, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitoring activity groups: %w", err)
	}
	return ids, nil
}

func (r *ActivityRepository) ListSpotChecks(partnerID int64, year int) ([]models.SpotCheckEngagement, error) {
	var engagements []models.SpotCheckEngagement
	query := `
		SELECT * FROM spot_check_engagement
		WHERE partner_id = $1
		  AND date_of_draft_report_to_ip IS NOT NULL
		  AND date_part('year', date_of_draft_report_to_ip) = $2`

	err := r.db.Select(&engagements, query, partnerID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list spot checks: %w", err)
	}
	return engagements, nil
}

// ListAudits returns the partner's audit engagements for the year plus any
// carrying a pending unsupported amount regardless of year, so outstanding
// findings stay complete.
func (r *ActivityRepository) ListAudits(partnerID int64, year int) ([]models.AuditEngagement, error) {
	var engagements []models.AuditEngagement
	query := `
		SELECT * FROM audit_engagement
		WHERE partner_id = $1
		  AND ((date_of_draft_report_to_ip IS NOT NULL
		        AND date_part('year', date_of_draft_report_to_ip) = $2)
		       OR pending_unsupported_amount IS NOT NULL)`

	err := r.db.Select(&engagements, query, partnerID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	return engagements, nil
}
