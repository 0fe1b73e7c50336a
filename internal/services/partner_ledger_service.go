package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hact-service/internal/database/redis"
	"hact-service/internal/models"
	"hact-service/internal/repository"
	"hact-service/internal/utils"
)

// PartnerLedgerService owns the partner's cached HACT snapshot. Every
// write path restores the snapshot invariants before returning: quarter
// totals and the coverage classification are always derived, never stored
// independently.
type PartnerLedgerService struct {
	partnerRepo      *repository.PartnerRepository
	activityRepo     *repository.ActivityRepository
	interventionRepo *repository.InterventionRepository
	policy           *AssurancePolicy
	accounting       *ActivityAccounting
	locker           redis.EntityLocker
	cache            *redis.Client
	now              func() time.Time
}

func NewPartnerLedgerService(
	partnerRepo *repository.PartnerRepository,
	activityRepo *repository.ActivityRepository,
	interventionRepo *repository.InterventionRepository,
	policy *AssurancePolicy,
	accounting *ActivityAccounting,
	locker redis.EntityLocker,
	cache *redis.Client,
) *PartnerLedgerService {
	return &PartnerLedgerService{
		partnerRepo:      partnerRepo,
		activityRepo:     activityRepo,
		interventionRepo: interventionRepo,
		policy:           policy,
		accounting:       accounting,
		locker:           locker,
		cache:            cache,
		now:              time.Now,
	}
}

func partnerLockKey(partnerID int64) string {
	return fmt.Sprintf("partner--%d", partnerID)
}

// Recompute rebuilds the whole snapshot from the activity sources, the
// planned engagement and the assurance policy. Idempotent: running it
// twice with no new activity yields the same snapshot.
func (s *PartnerLedgerService) Recompute(ctx context.Context, partnerID int64) (*models.HactSnapshot, error) {
	release, err := s.acquire(ctx, partnerLockKey(partnerID))
	if err != nil {
		return nil, err
	}
	defer release()

	partner, err := s.partnerRepo.GetByID(partnerID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "partner %d: %v", partnerID, err)
	}

	year := s.now().Year()
	snapshot, err := s.buildSnapshot(partner, year)
	if err != nil {
		return nil, err
	}

	if err := s.partnerRepo.UpdateSnapshot(s.partnerRepo.DB(), partnerID, *snapshot); err != nil {
		return nil, err
	}
	s.cacheSnapshot(ctx, partner.VendorNumber, snapshot)

	slog.Info("partner snapshot recomputed",
		"partner_id", partnerID,
		"vendor_number", partner.VendorNumber,
		"coverage", snapshot.AssuranceCoverage)

	return snapshot, nil
}

func (s *PartnerLedgerService) buildSnapshot(partner *models.Partner, year int) (*models.HactSnapshot, error) {
	engagement, err := s.partnerRepo.GetPlannedEngagement(partner.ID, year)
	if err != nil {
		return nil, err
	}

	travels, err := s.activityRepo.ListTravelActivities(partner.ID, year)
	if err != nil {
		return nil, err
	}
	tpm, err := s.activityRepo.ListTPMActivities(partner.ID, year)
	if err != nil {
		return nil, err
	}
	fm, err := s.activityRepo.ListFieldMonitoringActivities(partner.ID, year)
	if err != nil {
		return nil, err
	}
	groupIDs, err := s.activityRepo.ListGroupIDsCoveringPartner(partner.ID)
	if err != nil {
		return nil, err
	}
	spotChecks, err := s.activityRepo.ListSpotChecks(partner.ID, year)
	if err != nil {
		return nil, err
	}
	audits, err := s.activityRepo.ListAudits(partner.ID, year)
	if err != nil {
		return nil, err
	}
	plannedVisits, err := s.interventionRepo.ListPlannedVisitsForPartner(partner.ID, year)
	if err != nil {
		return nil, err
	}

	minimums := s.policy.MinimumRequirements(partner, engagement)

	snapshot := &models.HactSnapshot{
		ProgrammaticVisits: models.ProgrammaticVisits{
			MinimumRequirements: minimums.ProgrammaticVisits,
			Planned:             s.accounting.PlannedProgrammaticVisits(plannedVisits),
			Completed:           s.accounting.CompletedProgrammaticVisits(year, travels, tpm, fm, groupIDs),
		},
		SpotChecks: models.SpotChecks{
			MinimumRequirements: minimums.SpotChecks,
			Completed:           s.accounting.CompletedSpotChecks(year, spotChecks),
		},
		Audits: models.Audits{
			MinimumRequirements: minimums.Audits,
			Completed:           s.accounting.CompletedAudits(year, audits),
		},
		OutstandingFindings: s.accounting.OutstandingFindings(audits),
	}
	if engagement != nil {
		snapshot.SpotChecks.FollowUpRequired = engagement.SpotCheckFollowUp
	}
	snapshot.Normalize()
	return snapshot, nil
}

// ApplyFinancials replaces the cached financial aggregates atomically and
// recomputes the snapshot, because the minimums depend on them.
func (s *PartnerLedgerService) ApplyFinancials(ctx context.Context, partnerID int64, financials models.PartnerFinancials) (*models.HactSnapshot, error) {
	release, err := s.acquire(ctx, partnerLockKey(partnerID))
	if err != nil {
		return nil, err
	}
	defer release()

	partner, err := s.partnerRepo.GetByID(partnerID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "partner %d: %v", partnerID, err)
	}

	db := s.partnerRepo.DB()
	tx, err := db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.partnerRepo.UpdateFinancials(tx, partnerID, financials); err != nil {
		return nil, err
	}

	partner.TotalCTCP = financials.TotalCTCP
	partner.TotalCTCY = financials.TotalCTCY
	partner.NetCTCY = financials.NetCTCY
	partner.ReportedCY = financials.ReportedCY
	partner.OutstandingDCT6To9 = financials.OutstandingDCT6To9
	partner.OutstandingDCTOver9 = financials.OutstandingDCTOver9

	snapshot, err := s.buildSnapshot(partner, s.now().Year())
	if err != nil {
		return nil, err
	}
	if err := s.partnerRepo.UpdateSnapshot(tx, partnerID, *snapshot); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit financials: %w", err)
	}
	s.cacheSnapshot(ctx, partner.VendorNumber, snapshot)

	return snapshot, nil
}

// IncrementCompletion is the fast path for one authoritative completion
// signal: it bumps the affected quarter and total in place without a full
// recompute. A later recompute converges to the same snapshot because all
// buckets are derived from the underlying activity rows.
func (s *PartnerLedgerService) IncrementCompletion(ctx context.Context, partnerID int64, kind models.ActivityKind, eventDate time.Time) (*models.HactSnapshot, error) {
	release, err := s.acquire(ctx, partnerLockKey(partnerID))
	if err != nil {
		return nil, err
	}
	defer release()

	partner, err := s.partnerRepo.GetByID(partnerID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "partner %d: %v", partnerID, err)
	}

	snapshot := partner.Snapshot
	quarter := models.QuarterOf(eventDate)
	switch kind {
	case models.KindProgrammaticVisit:
		snapshot.ProgrammaticVisits.Completed.Add(quarter, 1)
	case models.KindSpotCheck:
		snapshot.SpotChecks.Completed.Add(quarter, 1)
	case models.KindAudit:
		// Audits are not quartered.
		snapshot.Audits.Completed++
	default:
		return nil, models.NewErrorf(models.ErrValidation, "unknown activity kind %q", kind)
	}
	snapshot.Normalize()

	if err := s.partnerRepo.UpdateSnapshot(s.partnerRepo.DB(), partnerID, snapshot); err != nil {
		return nil, err
	}
	s.cacheSnapshot(ctx, partner.VendorNumber, &snapshot)

	slog.Info("completion recorded",
		"partner_id", partnerID, "kind", kind, "quarter", quarter)

	return &snapshot, nil
}

// RecomputeAll runs per-partner recomputes over the whole workspace. Each
// partner is one independent transaction, so an interrupted run can simply
// be restarted.
func (s *PartnerLedgerService) RecomputeAll(ctx context.Context) error {
	partners, err := s.partnerRepo.ListVisible()
	if err != nil {
		return err
	}
	for _, p := range partners {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.Recompute(ctx, p.ID); err != nil {
			slog.Error("partner recompute failed", "partner_id", p.ID, "error", err)
		}
	}
	return nil
}

func (s *PartnerLedgerService) acquire(ctx context.Context, key string) (func(), error) {
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		if err == redis.ErrLockTimeout {
			return nil, models.NewErrorf(models.ErrConcurrencyConflict, "partner busy: %s", key)
		}
		return nil, err
	}
	return release, nil
}

// CachedSnapshot reads the snapshot from the redis cache; ok is false on a
// miss or a cache failure, in which case callers fall back to the partner
// row.
func (s *PartnerLedgerService) CachedSnapshot(ctx context.Context, vendorNumber string) (*models.HactSnapshot, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, err := s.cache.GetSnapshot(ctx, vendorNumber)
	if err != nil {
		slog.Error("failed to read cached snapshot", "vendor_number", vendorNumber, "error", err)
		return nil, false
	}
	if payload == nil {
		return nil, false
	}
	var snapshot models.HactSnapshot
	if err := utils.DeserializeModel(payload, &snapshot); err != nil {
		slog.Error("failed to decode cached snapshot", "vendor_number", vendorNumber, "error", err)
		return nil, false
	}
	return &snapshot, true
}

func (s *PartnerLedgerService) cacheSnapshot(ctx context.Context, vendorNumber string, snapshot *models.HactSnapshot) {
	if s.cache == nil {
		return
	}
	payload, err := utils.SerializeModel(snapshot)
	if err != nil {
		slog.Error("failed to serialize snapshot", "vendor_number", vendorNumber, "error", err)
		return
	}
	if err := s.cache.SetSnapshot(ctx, vendorNumber, payload); err != nil {
		slog.Error("failed to cache snapshot", "vendor_number", vendorNumber, "error", err)
	}
}
