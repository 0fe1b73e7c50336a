package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hact-service/internal/config"
	"hact-service/internal/database/redis"
	"hact-service/internal/models"
	"hact-service/internal/repository"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// amendedTitlePrefix marks the clone while the amendment is in progress;
// it is stripped again when the title merges back.
const amendedTitlePrefix = "[Amended] "

// AmendmentService implements the fork/merge protocol: deep-clone the
// intervention subgraph, evolve the clone in isolation, diff the two
// graphs and merge the clone back atomically.
type AmendmentService struct {
	amendmentRepo    *repository.AmendmentRepository
	interventionRepo *repository.InterventionRepository
	agreementRepo    *repository.AgreementRepository
	budgetRepo       *repository.BudgetRepository
	rollup           *BudgetRollup
	locker           redis.EntityLocker
	publisher        LifecyclePublisher
	cfg              config.HactConfig
	now              func() time.Time
}

func NewAmendmentService(
	amendmentRepo *repository.AmendmentRepository,
	interventionRepo *repository.InterventionRepository,
	agreementRepo *repository.AgreementRepository,
	budgetRepo *repository.BudgetRepository,
	rollup *BudgetRollup,
	locker redis.EntityLocker,
	publisher LifecyclePublisher,
	cfg config.HactConfig,
) *AmendmentService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &AmendmentService{
		amendmentRepo:    amendmentRepo,
		interventionRepo: interventionRepo,
		agreementRepo:    agreementRepo,
		budgetRepo:       budgetRepo,
		rollup:           rollup,
		locker:           locker,
		publisher:        publisher,
		cfg:              cfg,
		now:              time.Now,
	}
}

// ============================================================================
// FORK
// ============================================================================

// CreateAmendment forks the intervention: clones the full subgraph into a
// fresh draft intervention and records the old↔new id mapping.
func (s *AmendmentService) CreateAmendment(ctx context.Context, interventionID int64, kind models.InterventionAmendmentKind, types models.AmendmentTypes) (*models.InterventionAmendment, error) {
	release, err := acquireEntity(ctx, s.locker, interventionLockKey(interventionID))
	if err != nil {
		return nil, err
	}
	defer release()

	active, err := s.amendmentRepo.GetActiveByIntervention(interventionID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, models.NewErrorf(models.ErrAmendmentConflict,
			"intervention %d already has active amendment %s", interventionID, active.Number)
	}

	graph, err := s.interventionRepo.LoadGraph(interventionID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "intervention %d: %v", interventionID, err)
	}
	original := &graph.Intervention

	switch original.Status {
	case models.InterventionSigned, models.InterventionActive, models.InterventionEnded, models.InterventionSuspended:
	default:
		return nil, models.NewErrorf(models.ErrAmendmentConflict,
			"intervention in status %s cannot be amended", original.Status)
	}

	count, err := s.amendmentRepo.CountByKind(interventionID, kind)
	if err != nil {
		return nil, err
	}
	number := models.AmendmentNumber(kind, count+1)

	tx, err := s.interventionRepo.DB().Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	clone, relatedObjects, err := s.cloneGraph(tx, graph, number)
	if err != nil {
		return nil, err
	}

	cloneID := clone.ID
	amendment := &models.InterventionAmendment{
		ID:                    uuid.New(),
		InterventionID:        interventionID,
		Kind:                  kind,
		Number:                number,
		Types:                 types,
		AmendedInterventionID: &cloneID,
		RelatedObjects:        relatedObjects,
		Diff:                  models.Difference{},
		IsActive:              true,
	}
	if err := s.amendmentRepo.Create(tx, amendment); err != nil {
		return nil, err
	}

	original.InAmendment = true
	if err := s.interventionRepo.Update(tx, original); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit amendment fork: %w", err)
	}

	slog.Info("intervention amendment forked",
		"intervention_id", interventionID, "amendment", number, "clone_id", cloneID)

	return amendment, nil
}

// cloneGraph deep-clones the subgraph inside the transaction, returning
// the clone root and the id mapping keyed by related-field name. The walk
// only follows forward references.
func (s *AmendmentService) cloneGraph(tx *sqlx.Tx, graph *models.InterventionGraph, amendmentNumber string) (*models.Intervention, models.RelatedObjectsMap, error) {
	original := graph.Intervention
	today := s.now()

	clone := original
	clone.ID = 0
	clone.Status = models.InterventionDraft
	clone.Title = amendedTitlePrefix + original.Title
	clone.Number = fmt.Sprintf("%s-%s", original.Number, amendmentNumber)
	clone.AmendmentCount = 0
	clone.SubmissionDate = &today
	clone.SignedByPartnerDate = nil
	clone.SignedByUnicefDate = nil
	clone.SignedDocumentURL = nil
	clone.UnicefCourt = true
	clone.UnicefAccepted = false
	clone.PartnerAccepted = false
	clone.InAmendment = false

	if err := s.interventionRepo.Create(tx, &clone); err != nil {
		return nil, nil, err
	}

	related := models.RelatedObjectsMap{}
	record := func(field string, oldID, newID int64) {
		related[field] = append(related[field], models.IDPair{OldID: oldID, NewID: newID})
	}

	linkIDs := map[int64]int64{}
	for _, link := range graph.ResultLinks {
		cl := link
		cl.ID = 0
		cl.InterventionID = clone.ID
		if err := s.interventionRepo.CreateResultLink(tx, &cl); err != nil {
			return nil, nil, err
		}
		linkIDs[link.ID] = cl.ID
		record(models.FieldResultLinks, link.ID, cl.ID)
	}

	lowerIDs := map[int64]int64{}
	for _, lr := range graph.LowerResults {
		cl := lr
		cl.ID = 0
		cl.ResultLinkID = linkIDs[lr.ResultLinkID]
		if err := s.interventionRepo.CreateLowerResult(tx, &cl); err != nil {
			return nil, nil, err
		}
		lowerIDs[lr.ID] = cl.ID
		record(models.FieldLowerResults, lr.ID, cl.ID)
	}

	for _, a := range graph.Activities {
		cl := a
		cl.ID = 0
		cl.LowerResultID = lowerIDs[a.LowerResultID]
		if err := s.interventionRepo.CreateResultActivity(tx, &cl); err != nil {
			return nil, nil, err
		}
		record(models.FieldActivities, a.ID, cl.ID)
	}

	for _, in := range graph.Indicators {
		cl := in
		cl.ID = 0
		cl.LowerResultID = lowerIDs[in.LowerResultID]
		if err := s.interventionRepo.CreateAppliedIndicator(tx, &cl); err != nil {
			return nil, nil, err
		}
		record(models.FieldIndicators, in.ID, cl.ID)
	}

	if graph.PlannedBudget != nil {
		cl := *graph.PlannedBudget
		cl.ID = 0
		cl.InterventionID = clone.ID
		if err := s.budgetRepo.UpsertPlannedBudget(tx, &cl); err != nil {
			return nil, nil, err
		}
		var clonedBudgetID int64
		if err := sqlx.Get(tx, &clonedBudgetID,
			`SELECT id FROM planned_budget WHERE intervention_id = $1`, clone.ID); err != nil {
			return nil, nil, fmt.Errorf("failed to read cloned planned budget id: %w", err)
		}
		record(models.FieldPlannedBudget, graph.PlannedBudget.ID, clonedBudgetID)
	}

	if graph.ManagementBudget != nil {
		cl := *graph.ManagementBudget
		cl.ID = 0
		cl.InterventionID = clone.ID
		if err := s.budgetRepo.UpsertManagementBudget(tx, &cl); err != nil {
			return nil, nil, err
		}
		var cloneBudgetID int64
		if err := sqlx.Get(tx, &cloneBudgetID,
			`SELECT id FROM management_budget WHERE intervention_id = $1`, clone.ID); err != nil {
			return nil, nil, fmt.Errorf("failed to read cloned management budget id: %w", err)
		}
		record(models.FieldManagementBudget, graph.ManagementBudget.ID, cloneBudgetID)

		for _, item := range graph.ManagementItems {
			ci := item
			ci.ID = 0
			ci.ManagementBudgetID = cloneBudgetID
			if err := s.budgetRepo.CreateManagementItem(tx, &ci); err != nil {
				return nil, nil, err
			}
			record(models.FieldManagementItems, item.ID, ci.ID)
		}
	}

	for _, v := range graph.PlannedVisits {
		cl := v
		cl.ID = 0
		cloneID := clone.ID
		cl.InterventionID = &cloneID
		if err := s.interventionRepo.CreatePlannedVisit(tx, &cl); err != nil {
			return nil, nil, err
		}
		record(models.FieldPlannedVisits, v.ID, cl.ID)
	}

	for _, item := range graph.SupplyItems {
		cl := item
		cl.ID = 0
		cl.InterventionID = clone.ID
		if err := s.interventionRepo.CreateSupplyItem(tx, &cl); err != nil {
			return nil, nil, err
		}
		record(models.FieldSupplyItems, item.ID, cl.ID)
	}

	for _, risk := range graph.Risks {
		cl := risk
		cl.ID = 0
		cl.InterventionID = clone.ID
		if err := s.interventionRepo.CreateRisk(tx, &cl); err != nil {
			return nil, nil, err
		}
		record(models.FieldRisks, risk.ID, cl.ID)
	}

	return &clone, related, nil
}

// ============================================================================
// DIFF
// ============================================================================

// ComputeDifference walks both graphs in lock-step through the id mapping
// and stores the structural diff on the amendment.
func (s *AmendmentService) ComputeDifference(ctx context.Context, amendmentID uuid.UUID) (models.Difference, error) {
	amendment, err := s.amendmentRepo.GetByID(amendmentID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "amendment %s: %v", amendmentID, err)
	}
	if amendment.AmendedInterventionID == nil {
		return nil, models.NewError(models.ErrAmendmentConflict, "amendment has no clone to diff")
	}

	original, err := s.interventionRepo.LoadGraph(amendment.InterventionID)
	if err != nil {
		return nil, err
	}
	clone, err := s.interventionRepo.LoadGraph(*amendment.AmendedInterventionID)
	if err != nil {
		return nil, err
	}

	diff := ComputeGraphDifference(original, clone, amendment.RelatedObjects)

	amendment.Diff = diff
	if err := s.amendmentRepo.Update(s.interventionRepo.DB(), amendment); err != nil {
		return nil, err
	}
	return diff, nil
}

// ComputeGraphDifference is the pure lock-step walk over both graphs. For
// paired rows it records whitelisted field deltas keyed "{oldID}.{field}";
// clone-only rows are additions, unmapped original rows removals.
func ComputeGraphDifference(original, clone *models.InterventionGraph, related models.RelatedObjectsMap) models.Difference {
	diff := models.Difference{}

	rootFields := diffInterventionFields(&original.Intervention, &clone.Intervention)
	if len(rootFields) > 0 {
		diff[models.FieldIntervention] = models.ObjectDiff{Fields: rootFields}
	}

	addCollection := func(field string, fields map[string]models.FieldDelta, added, removed []int64) {
		if len(fields) > 0 || len(added) > 0 || len(removed) > 0 {
			diff[field] = models.ObjectDiff{Fields: fields, Added: added, Removed: removed}
		}
	}

	{
		fields := map[string]models.FieldDelta{}
		var added, removed []int64
		byID := map[int64]models.ResultLink{}
		for _, c := range clone.ResultLinks {
			byID[c.ID] = c
		}
		matched := map[int64]bool{}
		for _, o := range original.ResultLinks {
			newID, ok := related.NewFor(models.FieldResultLinks, o.ID)
			c, found := byID[newID]
			if !ok || !found {
				removed = append(removed, o.ID)
				continue
			}
			matched[c.ID] = true
			recordDelta(fields, o.ID, "cp_output_id", ptrVal(o.CPOutputID), ptrVal(c.CPOutputID))
		}
		for _, c := range clone.ResultLinks {
			if !matched[c.ID] {
				added = append(added, c.ID)
			}
		}
		addCollection(models.FieldResultLinks, fields, added, removed)
	}

	{
		fields := map[string]models.FieldDelta{}
		var added, removed []int64
		byID := map[int64]models.LowerResult{}
		for _, c := range clone.LowerResults {
			byID[c.ID] = c
		}
		matched := map[int64]bool{}
		for _, o := range original.LowerResults {
			newID, ok := related.NewFor(models.FieldLowerResults, o.ID)
			c, found := byID[newID]
			if !ok || !found {
				removed = append(removed, o.ID)
				continue
			}
			matched[c.ID] = true
			recordDelta(fields, o.ID, "name", o.Name, c.Name)
			recordDelta(fields, o.ID, "code", o.Code, c.Code)
		}
		for _, c := range clone.LowerResults {
			if !matched[c.ID] {
				added = append(added, c.ID)
			}
		}
		addCollection(models.FieldLowerResults, fields, added, removed)
	}

	{
		fields := map[string]models.FieldDelta{}
		var added, removed []int64
		byID := map[int64]models.ResultActivity{}
		for _, c := range clone.Activities {
			byID[c.ID] = c
		}
		matched := map[int64]bool{}
		for _, o := range original.Activities {
			newID, ok := related.NewFor(models.FieldActivities, o.ID)
			c, found := byID[newID]
			if !ok || !found {
				removed = append(removed, o.ID)
				continue
			}
			matched[c.ID] = true
			recordDelta(fields, o.ID, "name", o.Name, c.Name)
			recordDelta(fields, o.ID, "unicef_cash", o.UnicefCash.String(), c.UnicefCash.String())
			recordDelta(fields, o.ID, "cso_cash", o.CSOCash.String(), c.CSOCash.String())
			recordDelta(fields, o.ID, "is_active", o.IsActive, c.IsActive)
		}
		for _, c := range clone.Activities {
			if !matched[c.ID] {
				added = append(added, c.ID)
			}
		}
		addCollection(models.FieldActivities, fields, added, removed)
	}

	{
		fields := map[string]models.FieldDelta{}
		var added, removed []int64
		byID := map[int64]models.AppliedIndicator{}
		for _, c := range clone.Indicators {
			byID[c.ID] = c
		}
		matched := map[int64]bool{}
		for _, o := range original.Indicators {
			newID, ok := related.NewFor(models.FieldIndicators, o.ID)
			c, found := byID[newID]
			if !ok || !found {
				removed = append(removed, o.ID)
				continue
			}
			matched[c.ID] = true
			recordDelta(fields, o.ID, "title", o.Title, c.Title)
			recordDelta(fields, o.ID, "baseline", o.Baseline, c.Baseline)
			recordDelta(fields, o.ID, "target", o.Target, c.Target)
			recordDelta(fields, o.ID, "is_active", o.IsActive, c.IsActive)
		}
		for _, c := range clone.Indicators {
			if !matched[c.ID] {
				added = append(added, c.ID)
			}
		}
		addCollection(models.FieldIndicators, fields, added, removed)
	}

	{
		fields := map[string]models.FieldDelta{}
		var added, removed []int64
		byID := map[int64]models.ManagementBudgetItem{}
		for _, c := range clone.ManagementItems {
			byID[c.ID] = c
		}
		matched := map[int64]bool{}
		for _, o := range original.ManagementItems {
			newID, ok := related.NewFor(models.FieldManagementItems, o.ID)
			c, found := byID[newID]
			if !ok || !found {
				removed = append(removed, o.ID)
				continue
			}
			matched[c.ID] = true
			recordDelta(fields, o.ID, "name", o.Name, c.Name)
			recordDelta(fields, o.ID, "kind", string(o.Kind), string(c.Kind))
			recordDelta(fields, o.ID, "unit", o.Unit, c.Unit)
			recordDelta(fields, o.ID, "unit_price", o.UnitPrice.String(), c.UnitPrice.String())
			recordDelta(fields, o.ID, "no_units", o.NoUnits.String(), c.NoUnits.String())
			recordDelta(fields, o.ID, "unicef_cash", o.UnicefCash.String(), c.UnicefCash.String())
			recordDelta(fields, o.ID, "cso_cash", o.CSOCash.String(), c.CSOCash.String())
		}
		for _, c := range clone.ManagementItems {
			if !matched[c.ID] {
				added = append(added, c.ID)
			}
		}
		addCollection(models.FieldManagementItems, fields, added, removed)
	}

	{
		fields := map[string]models.FieldDelta{}
		var added, removed []int64
		byID := map[int64]models.PlannedVisit{}
		for _, c := range clone.PlannedVisits {
			byID[c.ID] = c
		}
		matched := map[int64]bool{}
		for _, o := range original.PlannedVisits {
			newID, ok := related.NewFor(models.FieldPlannedVisits, o.ID)
			c, found := byID[newID]
			if !ok || !found {
				removed = append(removed, o.ID)
				continue
			}
			matched[c.ID] = true
			recordDelta(fields, o.ID, "year", o.Year, c.Year)
			recordDelta(fields, o.ID, "programmatic_q1", o.ProgrammaticQ1, c.ProgrammaticQ1)
			recordDelta(fields, o.ID, "programmatic_q2", o.ProgrammaticQ2, c.ProgrammaticQ2)
			recordDelta(fields, o.ID, "programmatic_q3", o.ProgrammaticQ3, c.ProgrammaticQ3)
			recordDelta(fields, o.ID, "programmatic_q4", o.ProgrammaticQ4, c.ProgrammaticQ4)
		}
		for _, c := range clone.PlannedVisits {
			if !matched[c.ID] {
				added = append(added, c.ID)
			}
		}
		addCollection(models.FieldPlannedVisits, fields, added, removed)
	}

	{
		fields := map[string]models.FieldDelta{}
		var added, removed []int64
		byID := map[int64]models.SupplyItem{}
		for _, c := range clone.SupplyItems {
			byID[c.ID] = c
		}
		matched := map[int64]bool{}
		for _, o := range original.SupplyItems {
			newID, ok := related.NewFor(models.FieldSupplyItems, o.ID)
			c, found := byID[newID]
			if !ok || !found {
				removed = append(removed, o.ID)
				continue
			}
			matched[c.ID] = true
			recordDelta(fields, o.ID, "title", o.Title, c.Title)
			recordDelta(fields, o.ID, "unit_number", o.UnitNumber.String(), c.UnitNumber.String())
			recordDelta(fields, o.ID, "unit_price", o.UnitPrice.String(), c.UnitPrice.String())
			recordDelta(fields, o.ID, "provided_by", string(o.ProvidedBy), string(c.ProvidedBy))
		}
		for _, c := range clone.SupplyItems {
			if !matched[c.ID] {
				added = append(added, c.ID)
			}
		}
		addCollection(models.FieldSupplyItems, fields, added, removed)
	}

	{
		fields := map[string]models.FieldDelta{}
		var added, removed []int64
		byID := map[int64]models.InterventionRisk{}
		for _, c := range clone.Risks {
			byID[c.ID] = c
		}
		matched := map[int64]bool{}
		for _, o := range original.Risks {
			newID, ok := related.NewFor(models.FieldRisks, o.ID)
			c, found := byID[newID]
			if !ok || !found {
				removed = append(removed, o.ID)
				continue
			}
			matched[c.ID] = true
			recordDelta(fields, o.ID, "risk_type", o.RiskType, c.RiskType)
			recordDelta(fields, o.ID, "mitigation_measures", o.Mitigation, c.Mitigation)
		}
		for _, c := range clone.Risks {
			if !matched[c.ID] {
				added = append(added, c.ID)
			}
		}
		addCollection(models.FieldRisks, fields, added, removed)
	}

	return diff
}

// diffInterventionFields compares the whitelisted document fields. The
// clone's title prefix is stripped before comparing so an untouched title
// does not register as a change.
func diffInterventionFields(original, clone *models.Intervention) map[string]models.FieldDelta {
	fields := map[string]models.FieldDelta{}
	recordDeltaRoot(fields, "title", original.Title, strings.TrimPrefix(clone.Title, amendedTitlePrefix))
	recordDeltaRoot(fields, "start", timeVal(original.StartDate), timeVal(clone.StartDate))
	recordDeltaRoot(fields, "end", timeVal(original.EndDate), timeVal(clone.EndDate))
	recordDeltaRoot(fields, "review_type", string(original.ReviewType), string(clone.ReviewType))
	recordDeltaRoot(fields, "contingency_pd", original.Contingency, clone.Contingency)
	recordDeltaRoot(fields, "hq_support_cost", original.HQSupportCost.String(), clone.HQSupportCost.String())

	origModalities := fmt.Sprint(original.CashTransferModalities)
	cloneModalities := fmt.Sprint(clone.CashTransferModalities)
	recordDeltaRoot(fields, "cash_transfer_modalities", origModalities, cloneModalities)
	return fields
}

func recordDelta(fields map[string]models.FieldDelta, oldID int64, name string, before, after any) {
	if before == after {
		return
	}
	fields[fmt.Sprintf("%d.%s", oldID, name)] = models.FieldDelta{Before: before, After: after}
}

func recordDeltaRoot(fields map[string]models.FieldDelta, name string, before, after any) {
	if before == after {
		return
	}
	fields[name] = models.FieldDelta{Before: before, After: after}
}

func ptrVal(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeVal(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}
