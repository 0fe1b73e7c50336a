package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hact-service/internal/config"
	"hact-service/internal/database/redis"
	"hact-service/internal/models"
	"hact-service/internal/repository"
)

// LifecyclePublisher receives every successful status change. Implemented
// by the event package; nil-safe through noopPublisher.
type LifecyclePublisher interface {
	PublishStatusChange(ctx context.Context, entity string, entityID int64, from, to, actor string)
}

type noopPublisher struct{}

func (noopPublisher) PublishStatusChange(context.Context, string, int64, string, string, string) {}

// agreementTransitions is the legal edge set of the agreement state
// machine.
var agreementTransitions = map[models.AgreementStatus][]models.AgreementStatus{
	models.AgreementDraft:  {models.AgreementSigned},
	models.AgreementSigned: {models.AgreementEnded, models.AgreementSuspended, models.AgreementTerminated},
}

// agreementCascades maps a target agreement status onto the status pushed
// down to child PD/SPD interventions within the same transaction.
var agreementCascades = map[models.AgreementStatus]models.InterventionStatus{
	models.AgreementSuspended:  models.InterventionSuspended,
	models.AgreementTerminated: models.InterventionTerminated,
}

type AgreementService struct {
	agreementRepo    *repository.AgreementRepository
	interventionRepo *repository.InterventionRepository
	locker           redis.EntityLocker
	publisher        LifecyclePublisher
	cfg              config.HactConfig
	now              func() time.Time
}

func NewAgreementService(
	agreementRepo *repository.AgreementRepository,
	interventionRepo *repository.InterventionRepository,
	locker redis.EntityLocker,
	publisher LifecyclePublisher,
	cfg config.HactConfig,
) *AgreementService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &AgreementService{
		agreementRepo:    agreementRepo,
		interventionRepo: interventionRepo,
		locker:           locker,
		publisher:        publisher,
		cfg:              cfg,
		now:              time.Now,
	}
}

func agreementLockKey(id int64) string {
	return fmt.Sprintf("agreement--%d", id)
}

// Create persists a draft agreement and freezes its base reference number
// on the first save.
func (s *AgreementService) Create(ctx context.Context, agreement *models.Agreement) error {
	if agreement.AgreementType == models.AgreementPCA && agreement.CountryProgrammeID == nil {
		return models.NewError(models.ErrValidation, "PCA agreements require a country programme")
	}
	agreement.Status = models.AgreementDraft

	if err := s.agreementRepo.Create(agreement); err != nil {
		return err
	}
	agreement.AgreementNumber = agreement.BaseNumber(s.cfg.CountryCode)
	if err := s.normalizeDates(agreement); err != nil {
		return err
	}
	return s.agreementRepo.Update(s.agreementRepo.DB(), agreement)
}

// normalizeDates applies the PCA rule: end follows the country programme,
// start is the latest of both signatures and the programme start.
func (s *AgreementService) normalizeDates(agreement *models.Agreement) error {
	if agreement.AgreementType != models.AgreementPCA || agreement.CountryProgrammeID == nil {
		return nil
	}
	cp, err := s.agreementRepo.GetCountryProgramme(*agreement.CountryProgrammeID)
	if err != nil {
		return err
	}
	end := cp.ToDate
	agreement.EndDate = &end

	if agreement.SignedByPartnerDate != nil && agreement.SignedByUnicefDate != nil {
		start := cp.FromDate
		if agreement.SignedByUnicefDate.After(start) {
			start = *agreement.SignedByUnicefDate
		}
		if agreement.SignedByPartnerDate.After(start) {
			start = *agreement.SignedByPartnerDate
		}
		agreement.StartDate = &start
	}
	return nil
}

// Transition moves the agreement to the target status, enforcing the edge
// set, guards and permissions, then runs cascades in the same transaction.
func (s *AgreementService) Transition(ctx context.Context, agreementID int64, target models.AgreementStatus, actor models.Actor) (*models.Agreement, error) {
	release, err := acquireEntity(ctx, s.locker, agreementLockKey(agreementID))
	if err != nil {
		return nil, err
	}
	defer release()

	agreement, err := s.agreementRepo.GetByID(agreementID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "agreement %d: %v", agreementID, err)
	}

	if !transitionAllowed(agreementTransitions[agreement.Status], target) {
		return nil, models.NewErrorf(models.ErrIllegalTransition,
			"agreement cannot move from %s to %s", agreement.Status, target)
	}
	if err := s.guardTransition(agreement, target, actor); err != nil {
		return nil, err
	}

	from := agreement.Status
	agreement.Status = target
	if target == models.AgreementSigned {
		if err := s.normalizeDates(agreement); err != nil {
			return nil, err
		}
	}

	tx, err := s.agreementRepo.DB().Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.agreementRepo.Update(tx, agreement); err != nil {
		return nil, err
	}

	if cascadeStatus, ok := agreementCascades[target]; ok {
		children, err := s.interventionRepo.ListByAgreement(agreementID)
		if err != nil {
			return nil, err
		}
		for i := range children {
			child := &children[i]
			if child.DocumentType != models.InterventionPD && child.DocumentType != models.InterventionSPD {
				continue
			}
			if models.IsTerminalIntervention(child.Status) {
				continue
			}
			childFrom := child.Status
			child.Status = cascadeStatus
			if err := s.interventionRepo.Update(tx, child); err != nil {
				// Best-effort per child: log and keep cascading.
				slog.Error("cascade failed for intervention",
					"intervention_id", child.ID, "target", cascadeStatus, "error", err)
				continue
			}
			s.publisher.PublishStatusChange(ctx, "intervention", child.ID,
				string(childFrom), string(cascadeStatus), actor.UserID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit agreement transition: %w", err)
	}

	s.publisher.PublishStatusChange(ctx, "agreement", agreement.ID, string(from), string(target), actor.UserID)
	slog.Info("agreement transitioned",
		"agreement_id", agreement.ID, "from", from, "to", target)

	return agreement, nil
}

// guardTransition collects every failing guard reason before returning.
func (s *AgreementService) guardTransition(agreement *models.Agreement, target models.AgreementStatus, actor models.Actor) error {
	fields := map[string]string{}

	switch target {
	case models.AgreementSigned:
		if agreement.SignedByUnicefDate == nil {
			fields["signed_by_unicef_date"] = "required to sign"
		}
		if agreement.SignedByPartnerDate == nil {
			fields["signed_by_partner_date"] = "required to sign"
		}
		if agreement.AgreementType == models.AgreementPCA && agreement.CountryProgrammeID == nil {
			fields["country_programme"] = "required for PCA"
		}
		if agreement.AgreementType != models.AgreementSSFA && agreement.AttachedAgreementURL == nil {
			fields["attached_agreement"] = "signed agreement document required"
		}
	case models.AgreementEnded:
		if agreement.EndDate == nil || agreement.EndDate.After(s.now()) {
			fields["end"] = "end date must have passed"
		}
	case models.AgreementSuspended, models.AgreementTerminated:
		if !actor.IsPartnershipMgr {
			return models.NewErrorf(models.ErrPermissionDenied,
				"only partnership managers may move agreements to %s", target)
		}
	}

	if len(fields) > 0 {
		return models.GuardError(fields)
	}
	return nil
}

// AddAmendment records an agreement amendment and renumbers the set:
// signed amendments get 01, 02, ... in signed order, drafts get tmpNN. The
// agreement's own reference suffix follows the signed count.
func (s *AgreementService) AddAmendment(ctx context.Context, agreementID int64, kinds models.AmendmentKinds, signedDate *time.Time, signedURL *string) (*models.AgreementAmendment, error) {
	release, err := acquireEntity(ctx, s.locker, agreementLockKey(agreementID))
	if err != nil {
		return nil, err
	}
	defer release()

	agreement, err := s.agreementRepo.GetByID(agreementID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "agreement %d: %v", agreementID, err)
	}
	if len(kinds) == 0 {
		return nil, models.NewError(models.ErrValidation, "amendment requires at least one kind")
	}

	amendment := &models.AgreementAmendment{
		AgreementID: agreementID,
		Kinds:       kinds,
		SignedDate:  signedDate,
		SignedURL:   signedURL,
	}

	tx, err := s.agreementRepo.DB().Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.agreementRepo.CreateAmendment(tx, amendment); err != nil {
		return nil, err
	}

	existing, err := s.agreementRepo.ListAmendments(tx, agreementID)
	if err != nil {
		return nil, err
	}

	signedCount := 0
	tmpCount := 0
	for i := range existing {
		a := &existing[i]
		var number string
		if a.SignedDate != nil {
			signedCount++
			number = fmt.Sprintf("%02d", signedCount)
		} else {
			tmpCount++
			number = fmt.Sprintf("tmp%02d", tmpCount)
		}
		if a.Number != number {
			if err := s.agreementRepo.UpdateAmendmentNumber(tx, a.ID, number); err != nil {
				return nil, err
			}
		}
		if a.ID == amendment.ID {
			amendment.Number = number
		}
	}

	if agreement.AmendmentCount != signedCount {
		agreement.AmendmentCount = signedCount
		if err := s.agreementRepo.Update(tx, agreement); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit agreement amendment: %w", err)
	}

	slog.Info("agreement amendment recorded",
		"agreement_id", agreementID, "number", amendment.Number)

	return amendment, nil
}

func transitionAllowed(allowed []models.AgreementStatus, target models.AgreementStatus) bool {
	for _, a := range allowed {
		if a == target {
			return true
		}
	}
	return false
}

func acquireEntity(ctx context.Context, locker redis.EntityLocker, key string) (func(), error) {
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		if err == redis.ErrLockTimeout {
			return nil, models.NewErrorf(models.ErrConcurrencyConflict, "entity busy: %s", key)
		}
		return nil, err
	}
	return release, nil
}
