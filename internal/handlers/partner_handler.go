package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"hact-service/internal/models"
	"hact-service/internal/repository"
	"hact-service/internal/services"
	"hact-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type PartnerHandler struct {
	partnerRepo *repository.PartnerRepository
	ledger      *services.PartnerLedgerService
	policy      *services.AssurancePolicy
}

func NewPartnerHandler(partnerRepo *repository.PartnerRepository, ledger *services.PartnerLedgerService, policy *services.AssurancePolicy) *PartnerHandler {
	return &PartnerHandler{
		partnerRepo: partnerRepo,
		ledger:      ledger,
		policy:      policy,
	}
}

func (h *PartnerHandler) Register(app *fiber.App) {
	group := app.Group("hact/api/v1/partners")

	group.Get("/:id", h.GetPartner)                              // GET /partners/:id
	group.Get("/:id/snapshot", h.GetSnapshot)                    // GET /partners/:id/snapshot
	group.Post("/:id/snapshot/recompute", h.RecomputeSnapshot)   // POST /partners/:id/snapshot/recompute
	group.Put("/:id/financials", h.ApplyFinancials)              // PUT /partners/:id/financials
	group.Get("/:id/planned-engagement", h.GetPlannedEngagement) // GET /partners/:id/planned-engagement
	group.Put("/:id/planned-engagement", h.PutPlannedEngagement) // PUT /partners/:id/planned-engagement
}

func (h *PartnerHandler) GetPartner(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	partner, err := h.partnerRepo.GetByID(id)
	if err != nil {
		return respondError(c, models.NewErrorf(models.ErrNotFound, "partner %d not found", id))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(partner))
}

func (h *PartnerHandler) GetSnapshot(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	partner, err := h.partnerRepo.GetByID(id)
	if err != nil {
		return respondError(c, models.NewErrorf(models.ErrNotFound, "partner %d not found", id))
	}
	if cached, ok := h.ledger.CachedSnapshot(c.Context(), partner.VendorNumber); ok {
		return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(cached))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(partner.Snapshot))
}

func (h *PartnerHandler) RecomputeSnapshot(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	snapshot, err := h.ledger.Recompute(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(snapshot))
}

func (h *PartnerHandler) ApplyFinancials(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var financials models.PartnerFinancials
	if err := c.Bind().Body(&financials); err != nil {
		slog.Error("error parsing financials request", "error", err)
		return respondError(c, models.NewError(models.ErrValidation, "invalid request body"))
	}

	snapshot, err := h.ledger.ApplyFinancials(c.Context(), id, financials)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(snapshot))
}

func queryYear(c fiber.Ctx) int {
	if y, err := strconv.Atoi(c.Query("year")); err == nil && y > 0 {
		return y
	}
	return time.Now().Year()
}

func (h *PartnerHandler) GetPlannedEngagement(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	year := queryYear(c)
	engagement, err := h.partnerRepo.GetPlannedEngagement(id, year)
	if err != nil {
		return respondError(c, err)
	}
	if engagement == nil {
		return respondError(c, models.NewErrorf(models.ErrNotFound, "no planned engagement for partner %d in %d", id, year))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(engagement))
}

func (h *PartnerHandler) PutPlannedEngagement(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var engagement models.PlannedEngagement
	if err := c.Bind().Body(&engagement); err != nil {
		slog.Error("error parsing planned engagement request", "error", err)
		return respondError(c, models.NewError(models.ErrValidation, "invalid request body"))
	}
	engagement.PartnerID = id
	if engagement.Year == 0 {
		engagement.Year = time.Now().Year()
	}

	if err := h.partnerRepo.UpsertPlannedEngagement(&engagement); err != nil {
		return respondError(c, err)
	}

	// The plan feeds the minimum requirements, so the snapshot refreshes.
	snapshot, err := h.ledger.Recompute(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(snapshot))
}
