package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"hact-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ============================================================================
// MERGE / DISCARD
// ============================================================================

// MergeAmendment folds the signed clone back onto the original in one
// transaction: root fields, every forked collection, review reparenting,
// the code renumbering and the budget roll-up, then deletes the clone.
func (s *AmendmentService) MergeAmendment(ctx context.Context, amendmentID uuid.UUID) (*models.Intervention, error) {
	amendment, err := s.amendmentRepo.GetByID(amendmentID)
	if err != nil {
		return nil, models.NewErrorf(models.ErrNotFound, "amendment %s: %v", amendmentID, err)
	}
	if !amendment.IsActive || amendment.AmendedInterventionID == nil {
		return nil, models.NewError(models.ErrAmendmentConflict, "amendment is not active")
	}
	cloneID := *amendment.AmendedInterventionID

	release, err := acquireEntity(ctx, s.locker, interventionLockKey(amendment.InterventionID))
	if err != nil {
		return nil, err
	}
	defer release()

	releaseClone, err := acquireEntity(ctx, s.locker, interventionLockKey(cloneID))
	if err != nil {
		return nil, err
	}
	defer releaseClone()

	originalGraph, err := s.interventionRepo.LoadGraph(amendment.InterventionID)
	if err != nil {
		return nil, err
	}
	cloneGraph, err := s.interventionRepo.LoadGraph(cloneID)
	if err != nil {
		return nil, err
	}
	original := &originalGraph.Intervention
	clone := &cloneGraph.Intervention

	if err := s.guardMerge(original, clone); err != nil {
		return nil, err
	}

	diff := ComputeGraphDifference(originalGraph, cloneGraph, amendment.RelatedObjects)

	tx, err := s.interventionRepo.DB().Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	previousStatus := original.Status

	original.Title = strings.TrimPrefix(clone.Title, amendedTitlePrefix)
	original.StartDate = clone.StartDate
	original.EndDate = clone.EndDate
	original.ReviewType = clone.ReviewType
	original.CashTransferModalities = clone.CashTransferModalities
	original.Contingency = clone.Contingency
	original.HQSupportCost = clone.HQSupportCost

	// A date amendment can push the window back over today, in which case
	// an ended document resumes.
	if original.Status == models.InterventionEnded && s.cfg.AmendmentRevertsEnded && s.withinWindow(original) {
		original.Status = models.InterventionActive
	}
	original.AmendmentCount++
	original.InAmendment = false

	if err := s.interventionRepo.Update(tx, original); err != nil {
		return nil, err
	}

	linkIDs, err := s.mergeResultLinks(tx, originalGraph, cloneGraph, amendment.RelatedObjects)
	if err != nil {
		return nil, err
	}
	lowerIDs, err := s.mergeLowerResults(tx, originalGraph, cloneGraph, amendment.RelatedObjects, linkIDs)
	if err != nil {
		return nil, err
	}
	if err := s.mergeActivities(tx, originalGraph, cloneGraph, amendment.RelatedObjects, lowerIDs); err != nil {
		return nil, err
	}
	if err := s.mergeIndicators(tx, originalGraph, cloneGraph, amendment.RelatedObjects, lowerIDs); err != nil {
		return nil, err
	}
	if err := s.mergeManagementBudget(tx, originalGraph, cloneGraph, amendment.RelatedObjects); err != nil {
		return nil, err
	}
	if err := s.mergePlannedVisits(tx, originalGraph, cloneGraph, amendment.RelatedObjects); err != nil {
		return nil, err
	}
	if err := s.mergeSupplyItems(tx, originalGraph, cloneGraph, amendment.RelatedObjects); err != nil {
		return nil, err
	}
	if err := s.mergeRisks(tx, originalGraph, cloneGraph, amendment.RelatedObjects); err != nil {
		return nil, err
	}

	if err := s.renumberResultLinks(tx, cloneGraph, amendment.RelatedObjects, linkIDs); err != nil {
		return nil, err
	}

	if err := s.interventionRepo.ReparentReviews(tx, cloneID, original.ID); err != nil {
		return nil, err
	}

	amendment.SignedByPartnerDate = clone.SignedByPartnerDate
	amendment.SignedByUnicefDate = clone.SignedByUnicefDate
	amendment.SignedDocumentURL = clone.SignedDocumentURL
	amendment.Diff = diff
	amendment.IsActive = false
	amendment.AmendedInterventionID = nil
	if err := s.amendmentRepo.Update(tx, amendment); err != nil {
		return nil, err
	}

	if err := s.interventionRepo.Delete(tx, cloneID); err != nil {
		return nil, err
	}

	// The merged collections equal the clone's content, so the roll-up is
	// computed from the clone graph rebased onto the original row. The
	// repositories would not see the uncommitted writes.
	merged := *cloneGraph
	merged.Intervention = *original
	merged.PlannedBudget = originalGraph.PlannedBudget
	if cloneGraph.ManagementBudget != nil {
		mb := *cloneGraph.ManagementBudget
		mb.InterventionID = original.ID
		if originalGraph.ManagementBudget != nil {
			mb.ID = originalGraph.ManagementBudget.ID
		}
		merged.ManagementBudget = &mb
	}
	budget := s.rollup.Compute(&merged)
	if err := s.budgetRepo.UpsertPlannedBudget(tx, &budget); err != nil {
		return nil, fmt.Errorf("failed to persist merged planned budget: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit amendment merge: %w", err)
	}

	slog.Info("intervention amendment merged",
		"intervention_id", original.ID,
		"amendment", amendment.Number,
		"amendment_count", original.AmendmentCount,
		"status", original.Status)

	if original.Status != previousStatus {
		s.publisher.PublishStatusChange(ctx, "intervention", original.ID,
			string(previousStatus), string(original.Status), "system")
	}

	return original, nil
}

// DiscardAmendment drops the clone without touching the original. The
// amendment row survives, inactive, with the last computed diff for the
// record.
func (s *AmendmentService) DiscardAmendment(ctx context.Context, amendmentID uuid.UUID) error {
	amendment, err := s.amendmentRepo.GetByID(amendmentID)
	if err != nil {
		return models.NewErrorf(models.ErrNotFound, "amendment %s: %v", amendmentID, err)
	}
	if !amendment.IsActive || amendment.AmendedInterventionID == nil {
		return models.NewError(models.ErrAmendmentConflict, "amendment is not active")
	}
	cloneID := *amendment.AmendedInterventionID

	release, err := acquireEntity(ctx, s.locker, interventionLockKey(amendment.InterventionID))
	if err != nil {
		return err
	}
	defer release()

	originalGraph, err := s.interventionRepo.LoadGraph(amendment.InterventionID)
	if err != nil {
		return err
	}
	cloneGraph, err := s.interventionRepo.LoadGraph(cloneID)
	if err != nil {
		return err
	}
	original := &originalGraph.Intervention

	tx, err := s.interventionRepo.DB().Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	amendment.Diff = ComputeGraphDifference(originalGraph, cloneGraph, amendment.RelatedObjects)
	amendment.IsActive = false
	amendment.AmendedInterventionID = nil
	if err := s.amendmentRepo.Update(tx, amendment); err != nil {
		return err
	}

	if err := s.interventionRepo.Delete(tx, cloneID); err != nil {
		return err
	}

	original.InAmendment = false
	if err := s.interventionRepo.Update(tx, original); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit amendment discard: %w", err)
	}

	slog.Info("intervention amendment discarded",
		"intervention_id", original.ID, "amendment", amendment.Number)
	return nil
}

func (s *AmendmentService) withinWindow(i *models.Intervention) bool {
	if i.StartDate == nil || i.EndDate == nil {
		return false
	}
	today := s.now().Truncate(24 * time.Hour)
	return !today.Before(*i.StartDate) && !today.After(*i.EndDate)
}

// guardMerge validates both sides before the clone is folded back. The
// original must still be in a state the fork could have started from: a
// document terminated or closed while the amendment was in flight cannot
// absorb the merge. Ended stays mergeable for the date-revert case.
func (s *AmendmentService) guardMerge(original, clone *models.Intervention) error {
	if models.IsTerminalIntervention(original.Status) {
		return models.NewErrorf(models.ErrAmendmentConflict,
			"intervention %d moved to %s while the amendment was open", original.ID, original.Status)
	}

	fields := map[string]string{}
	if clone.Status != models.InterventionSigned {
		fields["status"] = fmt.Sprintf("amended document must be signed, got %s", clone.Status)
	}
	if clone.SignedByPartnerDate == nil {
		fields["signed_by_partner_date"] = "amended document is missing the partner signature date"
	}
	if clone.SignedByUnicefDate == nil {
		fields["signed_by_unicef_date"] = "amended document is missing the unicef signature date"
	}
	if len(fields) > 0 {
		return models.GuardError(fields)
	}
	return nil
}

// ============================================================================
// COLLECTION MERGES
// ============================================================================
//
// Each collection merges the same way: paired rows have the whitelisted
// fields copied clone→original, originals whose clone was removed are
// deleted, and clone-only rows are re-created on the original side with
// their parent foreign keys remapped. The returned maps translate clone
// child ids to original-side ids for the dependent collections. Every
// creation is also recorded into the related-objects map so the archived
// amendment covers rows added during the fork, not only rows cloned at
// fork time.

func recordMergedPair(related models.RelatedObjectsMap, field string, originalID, cloneID int64) {
	related[field] = append(related[field], models.IDPair{OldID: originalID, NewID: cloneID})
}

func (s *AmendmentService) mergeResultLinks(tx *sqlx.Tx, original, clone *models.InterventionGraph, related models.RelatedObjectsMap) (map[int64]int64, error) {
	cloneByID := map[int64]models.ResultLink{}
	for _, c := range clone.ResultLinks {
		cloneByID[c.ID] = c
	}
	// clone id -> original-side id, for both surviving pairs and creations
	linkIDs := map[int64]int64{}

	for _, o := range original.ResultLinks {
		newID, ok := related.NewFor(models.FieldResultLinks, o.ID)
		c, found := cloneByID[newID]
		if !ok || !found {
			if err := s.interventionRepo.DeleteChildRow(tx, "result_link", o.ID); err != nil {
				return nil, err
			}
			continue
		}
		linkIDs[c.ID] = o.ID
		merged := o
		merged.CPOutputID = c.CPOutputID
		query := `UPDATE result_link SET cp_output_id = :cp_output_id WHERE id = :id`
		if _, err := sqlx.NamedExec(tx, query, merged); err != nil {
			return nil, fmt.Errorf("failed to merge result link: %w", err)
		}
	}

	for _, c := range clone.ResultLinks {
		if _, merged := linkIDs[c.ID]; merged {
			continue
		}
		created := c
		created.ID = 0
		created.InterventionID = original.Intervention.ID
		if err := s.interventionRepo.CreateResultLink(tx, &created); err != nil {
			return nil, err
		}
		linkIDs[c.ID] = created.ID
		recordMergedPair(related, models.FieldResultLinks, created.ID, c.ID)
	}
	return linkIDs, nil
}

func (s *AmendmentService) mergeLowerResults(tx *sqlx.Tx, original, clone *models.InterventionGraph, related models.RelatedObjectsMap, linkIDs map[int64]int64) (map[int64]int64, error) {
	cloneByID := map[int64]models.LowerResult{}
	for _, c := range clone.LowerResults {
		cloneByID[c.ID] = c
	}
	lowerIDs := map[int64]int64{}

	for _, o := range original.LowerResults {
		newID, ok := related.NewFor(models.FieldLowerResults, o.ID)
		c, found := cloneByID[newID]
		if !ok || !found {
			if err := s.interventionRepo.DeleteChildRow(tx, "lower_result", o.ID); err != nil {
				return nil, err
			}
			continue
		}
		lowerIDs[c.ID] = o.ID
		merged := o
		merged.Name = c.Name
		merged.Code = c.Code
		if err := s.interventionRepo.UpdateLowerResult(tx, &merged); err != nil {
			return nil, err
		}
	}

	for _, c := range clone.LowerResults {
		if _, merged := lowerIDs[c.ID]; merged {
			continue
		}
		created := c
		created.ID = 0
		created.ResultLinkID = linkIDs[c.ResultLinkID]
		if err := s.interventionRepo.CreateLowerResult(tx, &created); err != nil {
			return nil, err
		}
		lowerIDs[c.ID] = created.ID
		recordMergedPair(related, models.FieldLowerResults, created.ID, c.ID)
	}
	return lowerIDs, nil
}

func (s *AmendmentService) mergeActivities(tx *sqlx.Tx, original, clone *models.InterventionGraph, related models.RelatedObjectsMap, lowerIDs map[int64]int64) error {
	cloneByID := map[int64]models.ResultActivity{}
	for _, c := range clone.Activities {
		cloneByID[c.ID] = c
	}
	merged := map[int64]bool{}

	for _, o := range original.Activities {
		newID, ok := related.NewFor(models.FieldActivities, o.ID)
		c, found := cloneByID[newID]
		if !ok || !found {
			if err := s.interventionRepo.DeleteChildRow(tx, "result_activity", o.ID); err != nil {
				return err
			}
			continue
		}
		merged[c.ID] = true
		next := o
		next.Name = c.Name
		next.UnicefCash = c.UnicefCash
		next.CSOCash = c.CSOCash
		next.IsActive = c.IsActive
		if err := s.interventionRepo.UpdateResultActivity(tx, &next); err != nil {
			return err
		}
	}

	for _, c := range clone.Activities {
		if merged[c.ID] {
			continue
		}
		created := c
		created.ID = 0
		created.LowerResultID = lowerIDs[c.LowerResultID]
		if err := s.interventionRepo.CreateResultActivity(tx, &created); err != nil {
			return err
		}
		recordMergedPair(related, models.FieldActivities, created.ID, c.ID)
	}
	return nil
}

func (s *AmendmentService) mergeIndicators(tx *sqlx.Tx, original, clone *models.InterventionGraph, related models.RelatedObjectsMap, lowerIDs map[int64]int64) error {
	cloneByID := map[int64]models.AppliedIndicator{}
	for _, c := range clone.Indicators {
		cloneByID[c.ID] = c
	}
	merged := map[int64]bool{}

	for _, o := range original.Indicators {
		newID, ok := related.NewFor(models.FieldIndicators, o.ID)
		c, found := cloneByID[newID]
		if !ok || !found {
			if err := s.interventionRepo.DeleteChildRow(tx, "applied_indicator", o.ID); err != nil {
				return err
			}
			continue
		}
		merged[c.ID] = true
		next := o
		next.Title = c.Title
		next.Baseline = c.Baseline
		next.Target = c.Target
		next.IsActive = c.IsActive
		if err := s.interventionRepo.UpdateAppliedIndicator(tx, &next); err != nil {
			return err
		}
	}

	for _, c := range clone.Indicators {
		if merged[c.ID] {
			continue
		}
		created := c
		created.ID = 0
		created.LowerResultID = lowerIDs[c.LowerResultID]
		if err := s.interventionRepo.CreateAppliedIndicator(tx, &created); err != nil {
			return err
		}
		recordMergedPair(related, models.FieldIndicators, created.ID, c.ID)
	}
	return nil
}

func (s *AmendmentService) mergeManagementBudget(tx *sqlx.Tx, original, clone *models.InterventionGraph, related models.RelatedObjectsMap) error {
	if clone.ManagementBudget == nil {
		return nil
	}

	mb := *clone.ManagementBudget
	mb.InterventionID = original.Intervention.ID
	if err := s.budgetRepo.UpsertManagementBudget(tx, &mb); err != nil {
		return err
	}
	var budgetID int64
	if err := sqlx.Get(tx, &budgetID,
		`SELECT id FROM management_budget WHERE intervention_id = $1`, original.Intervention.ID); err != nil {
		return fmt.Errorf("failed to read merged management budget id: %w", err)
	}
	if original.ManagementBudget == nil {
		// The budget itself was introduced during the amendment.
		recordMergedPair(related, models.FieldManagementBudget, budgetID, clone.ManagementBudget.ID)
	}

	cloneByID := map[int64]models.ManagementBudgetItem{}
	for _, c := range clone.ManagementItems {
		cloneByID[c.ID] = c
	}
	merged := map[int64]bool{}

	for _, o := range original.ManagementItems {
		newID, ok := related.NewFor(models.FieldManagementItems, o.ID)
		c, found := cloneByID[newID]
		if !ok || !found {
			if err := s.interventionRepo.DeleteChildRow(tx, "management_budget_item", o.ID); err != nil {
				return err
			}
			continue
		}
		merged[c.ID] = true
		next := o
		next.Name = c.Name
		next.Kind = c.Kind
		next.Unit = c.Unit
		next.UnitPrice = c.UnitPrice
		next.NoUnits = c.NoUnits
		next.UnicefCash = c.UnicefCash
		next.CSOCash = c.CSOCash
		if err := s.budgetRepo.UpdateManagementItem(tx, &next); err != nil {
			return err
		}
	}

	for _, c := range clone.ManagementItems {
		if merged[c.ID] {
			continue
		}
		created := c
		created.ID = 0
		created.ManagementBudgetID = budgetID
		if err := s.budgetRepo.CreateManagementItem(tx, &created); err != nil {
			return err
		}
		recordMergedPair(related, models.FieldManagementItems, created.ID, c.ID)
	}
	return nil
}

func (s *AmendmentService) mergePlannedVisits(tx *sqlx.Tx, original, clone *models.InterventionGraph, related models.RelatedObjectsMap) error {
	cloneByID := map[int64]models.PlannedVisit{}
	for _, c := range clone.PlannedVisits {
		cloneByID[c.ID] = c
	}
	merged := map[int64]bool{}

	for _, o := range original.PlannedVisits {
		newID, ok := related.NewFor(models.FieldPlannedVisits, o.ID)
		c, found := cloneByID[newID]
		if !ok || !found {
			if err := s.interventionRepo.DeleteChildRow(tx, "planned_visit", o.ID); err != nil {
				return err
			}
			continue
		}
		merged[c.ID] = true
		next := o
		next.Year = c.Year
		next.ProgrammaticQ1 = c.ProgrammaticQ1
		next.ProgrammaticQ2 = c.ProgrammaticQ2
		next.ProgrammaticQ3 = c.ProgrammaticQ3
		next.ProgrammaticQ4 = c.ProgrammaticQ4
		if err := s.interventionRepo.UpdatePlannedVisit(tx, &next); err != nil {
			return err
		}
	}

	for _, c := range clone.PlannedVisits {
		if merged[c.ID] {
			continue
		}
		created := c
		created.ID = 0
		id := original.Intervention.ID
		created.InterventionID = &id
		if err := s.interventionRepo.CreatePlannedVisit(tx, &created); err != nil {
			return err
		}
		recordMergedPair(related, models.FieldPlannedVisits, created.ID, c.ID)
	}
	return nil
}

func (s *AmendmentService) mergeSupplyItems(tx *sqlx.Tx, original, clone *models.InterventionGraph, related models.RelatedObjectsMap) error {
	cloneByID := map[int64]models.SupplyItem{}
	for _, c := range clone.SupplyItems {
		cloneByID[c.ID] = c
	}
	merged := map[int64]bool{}

	for _, o := range original.SupplyItems {
		newID, ok := related.NewFor(models.FieldSupplyItems, o.ID)
		c, found := cloneByID[newID]
		if !ok || !found {
			if err := s.interventionRepo.DeleteChildRow(tx, "supply_item", o.ID); err != nil {
				return err
			}
			continue
		}
		merged[c.ID] = true
		next := o
		next.Title = c.Title
		next.UnitNumber = c.UnitNumber
		next.UnitPrice = c.UnitPrice
		next.ProvidedBy = c.ProvidedBy
		next.RecalcTotal()
		if err := s.interventionRepo.UpdateSupplyItem(tx, &next); err != nil {
			return err
		}
	}

	for _, c := range clone.SupplyItems {
		if merged[c.ID] {
			continue
		}
		created := c
		created.ID = 0
		created.InterventionID = original.Intervention.ID
		created.RecalcTotal()
		if err := s.interventionRepo.CreateSupplyItem(tx, &created); err != nil {
			return err
		}
		recordMergedPair(related, models.FieldSupplyItems, created.ID, c.ID)
	}
	return nil
}

func (s *AmendmentService) mergeRisks(tx *sqlx.Tx, original, clone *models.InterventionGraph, related models.RelatedObjectsMap) error {
	cloneByID := map[int64]models.InterventionRisk{}
	for _, c := range clone.Risks {
		cloneByID[c.ID] = c
	}
	merged := map[int64]bool{}

	for _, o := range original.Risks {
		newID, ok := related.NewFor(models.FieldRisks, o.ID)
		c, found := cloneByID[newID]
		if !ok || !found {
			if err := s.interventionRepo.DeleteChildRow(tx, "intervention_risk", o.ID); err != nil {
				return err
			}
			continue
		}
		merged[c.ID] = true
		next := o
		next.RiskType = c.RiskType
		next.Mitigation = c.Mitigation
		if err := s.interventionRepo.UpdateRisk(tx, &next); err != nil {
			return err
		}
	}

	for _, c := range clone.Risks {
		if merged[c.ID] {
			continue
		}
		created := c
		created.ID = 0
		created.InterventionID = original.Intervention.ID
		if err := s.interventionRepo.CreateRisk(tx, &created); err != nil {
			return err
		}
		recordMergedPair(related, models.FieldRisks, created.ID, c.ID)
	}
	return nil
}

// renumberResultLinks reassigns link codes after a merge: links with a CP
// output get 1..n in clone insertion order with no gaps, links without get
// "0". RenumberResultLinkCodes carries the pure rule.
func (s *AmendmentService) renumberResultLinks(tx *sqlx.Tx, clone *models.InterventionGraph, related models.RelatedObjectsMap, linkIDs map[int64]int64) error {
	codes := RenumberResultLinkCodes(clone.ResultLinks)
	for cloneID, code := range codes {
		originalID, ok := linkIDs[cloneID]
		if !ok {
			continue
		}
		if err := s.interventionRepo.UpdateResultLinkCode(tx, originalID, code); err != nil {
			return err
		}
	}
	return nil
}

// RenumberResultLinkCodes computes the code per link id: "0" for links
// without a CP output, otherwise a dense 1..n sequence in id order.
func RenumberResultLinkCodes(links []models.ResultLink) map[int64]string {
	codes := make(map[int64]string, len(links))
	n := 0
	for _, link := range links {
		if link.CPOutputID == nil {
			codes[link.ID] = "0"
			continue
		}
		n++
		codes[link.ID] = strconv.Itoa(n)
	}
	return codes
}
