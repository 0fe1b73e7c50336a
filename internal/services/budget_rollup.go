package services

import (
	"context"
	"fmt"
	"log/slog"

	"hact-service/internal/config"
	"hact-service/internal/database/redis"
	"hact-service/internal/models"
	"hact-service/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// BudgetRollup recomputes the planned-budget totals from result-activity
// cash, management-budget items and supply items. Every stored figure is a
// pure function of those rows.
type BudgetRollup struct {
	budgetRepo       *repository.BudgetRepository
	interventionRepo *repository.InterventionRepository
	locker           redis.EntityLocker
	cfg              config.HactConfig
}

func NewBudgetRollup(
	budgetRepo *repository.BudgetRepository,
	interventionRepo *repository.InterventionRepository,
	locker redis.EntityLocker,
	cfg config.HactConfig,
) *BudgetRollup {
	return &BudgetRollup{
		budgetRepo:       budgetRepo,
		interventionRepo: interventionRepo,
		locker:           locker,
		cfg:              cfg,
	}
}

// Compute derives the full planned budget from the graph. Pure. HQ cash is
// the HQ support-cost percentage applied to the UNICEF cash base.
func (b *BudgetRollup) Compute(graph *models.InterventionGraph) models.PlannedBudget {
	hundred := decimal.NewFromInt(100)

	activityUnicef := decimal.Zero
	activityCSO := decimal.Zero
	for _, a := range graph.Activities {
		if !a.IsActive {
			continue
		}
		activityUnicef = activityUnicef.Add(a.UnicefCash)
		activityCSO = activityCSO.Add(a.CSOCash)
	}

	mgmtUnicef := decimal.Zero
	mgmtCSO := decimal.Zero
	mgmtTotal := decimal.Zero
	if graph.ManagementBudget != nil {
		mgmtUnicef = graph.ManagementBudget.UnicefTotal()
		mgmtCSO = graph.ManagementBudget.CSOTotal()
		mgmtTotal = graph.ManagementBudget.Total()
	}

	supplyUnicef := decimal.Zero
	supplyPartner := decimal.Zero
	for _, s := range graph.SupplyItems {
		switch s.ProvidedBy {
		case models.ProvidedByUNICEF:
			supplyUnicef = supplyUnicef.Add(s.TotalPrice)
		case models.ProvidedByPartner:
			supplyPartner = supplyPartner.Add(s.TotalPrice)
		}
	}

	partnerContribution := activityCSO.Add(mgmtCSO).Round(2)
	unicefCashWoHQ := activityUnicef.Add(mgmtUnicef).Round(2)
	hqCash := unicefCashWoHQ.Mul(graph.Intervention.HQSupportCost).Div(hundred).Round(2)
	unicefCash := unicefCashWoHQ.Add(hqCash)
	inKind := supplyUnicef.Round(2)
	partnerSupply := supplyPartner.Round(2)
	total := unicefCash.Add(inKind).Add(partnerContribution).Add(partnerSupply)

	effectiveness := decimal.Zero
	if !total.IsZero() {
		effectiveness = mgmtTotal.Div(total).Mul(hundred).Round(1)
	}

	budget := models.PlannedBudget{
		InterventionID:           graph.Intervention.ID,
		Currency:                 b.cfg.LocalCurrency,
		PartnerContributionLocal: partnerContribution,
		PartnerSupplyLocal:       partnerSupply,
		TotalUnicefCashLocalWoHQ: unicefCashWoHQ,
		TotalHQCashLocal:         hqCash,
		UnicefCashLocal:          unicefCash,
		InKindAmountLocal:        inKind,
		TotalLocal:               total,
		ProgrammeEffectiveness:   effectiveness,
	}
	if graph.PlannedBudget != nil {
		budget.ID = graph.PlannedBudget.ID
		if graph.PlannedBudget.Currency != "" {
			// Currency is fixed at creation and never converted.
			budget.Currency = graph.PlannedBudget.Currency
		}
	}
	return budget
}

// RollUp recomputes and persists the intervention's planned budget under
// the intervention mutex.
func (b *BudgetRollup) RollUp(ctx context.Context, interventionID int64) (*models.PlannedBudget, error) {
	release, err := acquireEntity(ctx, b.locker, interventionLockKey(interventionID))
	if err != nil {
		return nil, err
	}
	defer release()

	return b.rollUpLocked(b.budgetRepo.DB(), interventionID)
}

// rollUpLocked runs inside a caller-held lock (and optionally transaction);
// the amendment merge reuses it.
func (b *BudgetRollup) rollUpLocked(ext sqlx.Ext, interventionID int64) (*models.PlannedBudget, error) {
	graph, err := b.interventionRepo.LoadGraph(interventionID)
	if err != nil {
		return nil, err
	}
	budget := b.Compute(graph)
	if err := b.budgetRepo.UpsertPlannedBudget(ext, &budget); err != nil {
		return nil, fmt.Errorf("failed to persist planned budget: %w", err)
	}

	slog.Info("planned budget rolled up",
		"intervention_id", interventionID,
		"total_local", budget.TotalLocal,
		"programme_effectiveness", budget.ProgrammeEffectiveness)

	return &budget, nil
}
