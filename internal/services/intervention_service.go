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

// interventionTransitions is the legal edge set of the programme-document
// state machine. The ended→active edge exists only for the amendment-merge
// revert and is additionally gated by configuration.
var interventionTransitions = map[models.InterventionStatus][]models.InterventionStatus{
	models.InterventionDraft:     {models.InterventionReview, models.InterventionCancelled},
	models.InterventionReview:    {models.InterventionSignature, models.InterventionCancelled},
	models.InterventionSignature: {models.InterventionSigned, models.InterventionCancelled},
	models.InterventionSigned:    {models.InterventionActive, models.InterventionSuspended, models.InterventionTerminated},
	models.InterventionActive:    {models.InterventionEnded, models.InterventionSuspended, models.InterventionTerminated},
	models.InterventionSuspended: {models.InterventionActive, models.InterventionTerminated},
	models.InterventionEnded:     {models.InterventionClosed, models.InterventionActive},
}

type InterventionService struct {
	interventionRepo *repository.InterventionRepository
	agreementRepo    *repository.AgreementRepository
	partnerRepo      *repository.PartnerRepository
	locker           redis.EntityLocker
	publisher        LifecyclePublisher
	cfg              config.HactConfig
	now              func() time.Time
}

func NewInterventionService(
	interventionRepo *repository.InterventionRepository,
	agreementRepo *repository.AgreementRepository,
	partnerRepo *repository.PartnerRepository,
	locker redis.EntityLocker,
	publisher LifecyclePublisher,
	cfg config.HactConfig,
) *InterventionService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &InterventionService{
		interventionRepo: interventionRepo,
		agreementRepo:    agreementRepo,
		partnerRepo:      partnerRepo,
		locker:           locker,
		publisher:        publisher,
		cfg:              cfg,
		now:              time.Now,
	}
}

func interventionLockKey(id int64) string {
	return fmt.Sprintf("intervention--%d", id)
}

// Create persists a draft intervention, freezes the reference number and
// applies the HQ support-cost default for International CSO partners.
func (s *InterventionService) Create(ctx context.Context, intervention *models.Intervention) error {
	agreement, err := s.agreementRepo.GetByID(intervention.AgreementID)
	if err != nil {
		return models.NewErrorf(models.ErrNotFound, "agreement %d: %v", intervention.AgreementID, err)
	}

	intervention.Status = models.InterventionDraft
	intervention.UnicefCourt = true

	if intervention.HQSupportCost.IsZero() {
		partner, err := s.partnerRepo.GetByID(agreement.PartnerID)
		if err != nil {
			return err
		}
		if partner.CSOType != nil && *partner.CSOType == models.CSOInternational {
			intervention.HQSupportCost = s.cfg.DefaultHQSupportCost
		}
	}

	if err := s.interventionRepo.Create(s.interventionRepo.DB(), intervention); err != nil {
		return err
	}

	intervention.Number = models.InterventionBaseNumber(
		agreement.AgreementNumber, intervention.DocumentType, s.referenceYear(intervention), intervention.ID)
	return s.interventionRepo.Update(s.interventionRepo.DB(), intervention)
}

func (s *InterventionService) referenceYear(intervention *models.Intervention) int {
	if intervention.SignedByUnicefDate != nil {
		return intervention.SignedByUnicefDate.Year()
	}
	return intervention.CreatedAt.Year()
}

// Save applies a patch on behalf of one side, enforcing the editing court
// and clearing the opposite side's acceptance.
func (s *InterventionService) Save(ctx context.Context, interventionID int64, patch models.InterventionPatch, side models.ActorSide) (*models.Intervention, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	release, err := acquireEntity(ctx, s.locker, interventionLockKey(interventionID))
	if err != nil {
		return nil, err
	}
	defer release()

	intervention, err := s.interventionRepo.GetByID(interventionID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "intervention %d: %v", interventionID, err)
	}

	if intervention.Status == models.InterventionDraft || intervention.Status == models.InterventionReview {
		if side == models.SideUNICEF && !intervention.UnicefCourt {
			return nil, models.NewError(models.ErrPermissionDenied, "document is in the partner's court")
		}
		if side == models.SidePartner && intervention.UnicefCourt {
			return nil, models.NewError(models.ErrPermissionDenied, "document is in UNICEF's court")
		}
	}

	edited := applyPatch(intervention, patch)

	if edited {
		// Re-acknowledgement is required from the other side after any
		// substantive edit.
		if side == models.SideUNICEF {
			intervention.PartnerAccepted = false
		} else {
			intervention.UnicefAccepted = false
		}
	}
	if patch.Accept {
		if side == models.SideUNICEF {
			intervention.UnicefAccepted = true
		} else {
			intervention.PartnerAccepted = true
		}
	}
	// Sending the document to the partner hands over the editing token.
	if patch.DateSentToPartner != nil && side == models.SideUNICEF {
		intervention.UnicefCourt = false
	}

	if err := s.interventionRepo.Update(s.interventionRepo.DB(), intervention); err != nil {
		return nil, err
	}
	if err := s.syncSSFA(ctx, intervention); err != nil {
		return nil, err
	}
	return intervention, nil
}

// PassCourt flips the editing token to the other side.
func (s *InterventionService) PassCourt(ctx context.Context, interventionID int64, side models.ActorSide) (*models.Intervention, error) {
	release, err := acquireEntity(ctx, s.locker, interventionLockKey(interventionID))
	if err != nil {
		return nil, err
	}
	defer release()

	intervention, err := s.interventionRepo.GetByID(interventionID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "intervention %d: %v", interventionID, err)
	}
	if side == models.SideUNICEF && !intervention.UnicefCourt {
		return nil, models.NewError(models.ErrPermissionDenied, "document is in the partner's court")
	}
	if side == models.SidePartner && intervention.UnicefCourt {
		return nil, models.NewError(models.ErrPermissionDenied, "document is in UNICEF's court")
	}

	intervention.UnicefCourt = !intervention.UnicefCourt
	if err := s.interventionRepo.Update(s.interventionRepo.DB(), intervention); err != nil {
		return nil, err
	}
	return intervention, nil
}

func applyPatch(intervention *models.Intervention, patch models.InterventionPatch) bool {
	edited := false
	if patch.Title != nil {
		intervention.Title = *patch.Title
		edited = true
	}
	if patch.StartDate != nil {
		intervention.StartDate = patch.StartDate
		edited = true
	}
	if patch.EndDate != nil {
		intervention.EndDate = patch.EndDate
		edited = true
	}
	if patch.DateSentToPartner != nil {
		intervention.DateSentToPartner = patch.DateSentToPartner
	}
	if patch.CashTransferModalities != nil {
		intervention.CashTransferModalities = *patch.CashTransferModalities
		edited = true
	}
	if patch.ReviewType != nil {
		intervention.ReviewType = *patch.ReviewType
		edited = true
	}
	if patch.Contingency != nil {
		intervention.Contingency = *patch.Contingency
		edited = true
	}
	if patch.HQSupportCost != nil {
		intervention.HQSupportCost = *patch.HQSupportCost
		edited = true
	}
	if patch.SignedByPartnerDate != nil {
		intervention.SignedByPartnerDate = patch.SignedByPartnerDate
	}
	if patch.SignedByUnicefDate != nil {
		intervention.SignedByUnicefDate = patch.SignedByUnicefDate
	}
	if patch.SignedDocumentURL != nil {
		intervention.SignedDocumentURL = patch.SignedDocumentURL
	}
	return edited
}

// Transition moves the intervention to the target status after checking
// the edge set and guards.
func (s *InterventionService) Transition(ctx context.Context, interventionID int64, target models.InterventionStatus, actor models.Actor) (*models.Intervention, error) {
	release, err := acquireEntity(ctx, s.locker, interventionLockKey(interventionID))
	if err != nil {
		return nil, err
	}
	defer release()

	intervention, err := s.interventionRepo.GetByID(interventionID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "intervention %d: %v", interventionID, err)
	}
	return s.transitionLocked(ctx, intervention, target, actor)
}

func (s *InterventionService) transitionLocked(ctx context.Context, intervention *models.Intervention, target models.InterventionStatus, actor models.Actor) (*models.Intervention, error) {
	allowed := false
	for _, t := range interventionTransitions[intervention.Status] {
		if t == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, models.NewErrorf(models.ErrIllegalTransition,
			"intervention cannot move from %s to %s", intervention.Status, target)
	}
	if err := s.guardTransition(intervention, target, actor); err != nil {
		return nil, err
	}

	from := intervention.Status
	intervention.Status = target
	if err := s.interventionRepo.Update(s.interventionRepo.DB(), intervention); err != nil {
		return nil, err
	}
	if err := s.syncSSFA(ctx, intervention); err != nil {
		return nil, err
	}

	s.publisher.PublishStatusChange(ctx, "intervention", intervention.ID, string(from), string(target), actor.UserID)
	slog.Info("intervention transitioned",
		"intervention_id", intervention.ID, "from", from, "to", target)

	return intervention, nil
}

func (s *InterventionService) guardTransition(intervention *models.Intervention, target models.InterventionStatus, actor models.Actor) error {
	fields := map[string]string{}

	switch target {
	case models.InterventionReview:
		if !intervention.UnicefAccepted {
			fields["unicef_accepted"] = "UNICEF has not accepted the document"
		}
		if !intervention.PartnerAccepted {
			fields["partner_accepted"] = "partner has not accepted the document"
		}
	case models.InterventionSigned:
		if intervention.SignedByUnicefDate == nil {
			fields["signed_by_unicef_date"] = "required to sign"
		}
		if intervention.SignedByPartnerDate == nil {
			fields["signed_by_partner_date"] = "required to sign"
		}
		if intervention.ReviewType == models.ReviewPRC {
			approved, err := s.hasApprovedReview(intervention.ID)
			if err != nil {
				return err
			}
			if !approved {
				fields["review"] = "PRC review with overall approval required"
			}
		}
	case models.InterventionActive:
		if intervention.Status == models.InterventionSigned {
			if intervention.StartDate == nil || intervention.StartDate.After(s.now()) {
				fields["start"] = "start date not reached"
			}
			ok, err := s.fundsReconcile(intervention.ID)
			if err != nil {
				return err
			}
			if !ok {
				fields["frs"] = "funds reservations do not reconcile"
			}
		}
	case models.InterventionEnded:
		if intervention.EndDate == nil || !intervention.EndDate.Before(s.now()) {
			fields["end"] = "end date has not passed"
		}
	case models.InterventionClosed:
		ok, err := s.completionsPosted(intervention.ID)
		if err != nil {
			return err
		}
		if !ok {
			fields["frs"] = "outstanding FR amounts remain"
		}
	case models.InterventionSuspended, models.InterventionTerminated:
		if !actor.IsPartnershipMgr {
			return models.NewErrorf(models.ErrPermissionDenied,
				"only partnership managers may move interventions to %s", target)
		}
	}

	if len(fields) > 0 {
		return models.GuardError(fields)
	}
	return nil
}

func (s *InterventionService) hasApprovedReview(interventionID int64) (bool, error) {
	reviews, err := s.interventionRepo.ListReviews(interventionID)
	if err != nil {
		return false, err
	}
	for i := range reviews {
		if reviews[i].Approved() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InterventionService) fundsReconcile(interventionID int64) (bool, error) {
	headers, err := s.interventionRepo.ListFundsReservations(interventionID)
	if err != nil {
		return false, err
	}
	if len(headers) == 0 {
		return false, nil
	}
	for i := range headers {
		if !headers[i].Reconciles() {
			return false, nil
		}
	}
	return true, nil
}

func (s *InterventionService) completionsPosted(interventionID int64) (bool, error) {
	headers, err := s.interventionRepo.ListFundsReservations(interventionID)
	if err != nil {
		return false, err
	}
	for i := range headers {
		if !headers[i].Completed || !headers[i].OutstandingAmount.IsZero() {
			return false, nil
		}
	}
	return true, nil
}

// syncSSFA propagates a simplified intervention's dates, reference number
// and lifecycle status back onto its parent SSFA agreement.
func (s *InterventionService) syncSSFA(ctx context.Context, intervention *models.Intervention) error {
	if intervention.DocumentType != models.InterventionSSFA {
		return nil
	}
	agreement, err := s.agreementRepo.GetByID(intervention.AgreementID)
	if err != nil {
		return err
	}

	agreement.StartDate = intervention.StartDate
	agreement.EndDate = intervention.EndDate

	var mapped models.AgreementStatus
	switch intervention.Status {
	case models.InterventionSigned, models.InterventionActive:
		mapped = models.AgreementSigned
	case models.InterventionEnded, models.InterventionClosed:
		mapped = models.AgreementEnded
	case models.InterventionSuspended:
		mapped = models.AgreementSuspended
	case models.InterventionTerminated:
		mapped = models.AgreementTerminated
	default:
		mapped = agreement.Status
	}
	agreement.Status = mapped

	return s.agreementRepo.Update(s.agreementRepo.DB(), agreement)
}

// RunAutoTransitions applies the date-driven transitions over the whole
// workspace. Idempotent; invoked by the external scheduler.
func (s *InterventionService) RunAutoTransitions(ctx context.Context) error {
	candidates, err := s.interventionRepo.ListAutoTransitionCandidates()
	if err != nil {
		return err
	}
	system := models.Actor{UserID: "system", IsPartnershipMgr: true}

	for i := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		intervention := &candidates[i]
		target, ok := s.autoTarget(intervention)
		if !ok {
			continue
		}
		if _, err := s.Transition(ctx, intervention.ID, target, system); err != nil {
			// Guards may legitimately hold a candidate back; only log.
			slog.Debug("auto transition skipped",
				"intervention_id", intervention.ID, "target", target, "error", err)
		}
	}
	return nil
}

func (s *InterventionService) autoTarget(intervention *models.Intervention) (models.InterventionStatus, bool) {
	today := s.now()
	switch intervention.Status {
	case models.InterventionSigned:
		agreement, err := s.agreementRepo.GetByID(intervention.AgreementID)
		if err == nil && agreement.Status == models.AgreementTerminated {
			return models.InterventionTerminated, true
		}
		if intervention.StartDate != nil && !intervention.StartDate.After(today) {
			return models.InterventionActive, true
		}
	case models.InterventionActive:
		if intervention.EndDate != nil && intervention.EndDate.Before(today) {
			return models.InterventionEnded, true
		}
	case models.InterventionEnded:
		return models.InterventionClosed, true
	}
	return "", false
}
