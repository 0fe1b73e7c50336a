package handlers

import (
	"log/slog"
	"net/http"

	"hact-service/internal/models"
	"hact-service/internal/repository"
	"hact-service/internal/services"
	"hact-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type InterventionHandler struct {
	interventionService *services.InterventionService
	amendmentService    *services.AmendmentService
	rollup              *services.BudgetRollup
	interventionRepo    *repository.InterventionRepository
	amendmentRepo       *repository.AmendmentRepository
}

func NewInterventionHandler(
	interventionService *services.InterventionService,
	amendmentService *services.AmendmentService,
	rollup *services.BudgetRollup,
	interventionRepo *repository.InterventionRepository,
	amendmentRepo *repository.AmendmentRepository,
) *InterventionHandler {
	return &InterventionHandler{
		interventionService: interventionService,
		amendmentService:    amendmentService,
		rollup:              rollup,
		interventionRepo:    interventionRepo,
		amendmentRepo:       amendmentRepo,
	}
}

func (h *InterventionHandler) Register(app *fiber.App) {
	group := app.Group("hact/api/v1/interventions")

	group.Post("/", h.CreateIntervention)           // POST /interventions
	group.Get("/:id", h.GetIntervention)            // GET /interventions/:id
	group.Patch("/:id", h.SaveIntervention)         // PATCH /interventions/:id
	group.Post("/:id/pass-court", h.PassCourt)      // POST /interventions/:id/pass-court
	group.Post("/:id/transition", h.Transition)     // POST /interventions/:id/transition
	group.Post("/:id/budget/rollup", h.RollUp)      // POST /interventions/:id/budget/rollup
	group.Post("/:id/amendments", h.CreateAmendment) // POST /interventions/:id/amendments

	amendments := app.Group("hact/api/v1/amendments")
	amendments.Get("/:id/difference", h.ComputeDifference) // GET /amendments/:id/difference
	amendments.Post("/:id/merge", h.MergeAmendment)        // POST /amendments/:id/merge
	amendments.Post("/:id/discard", h.DiscardAmendment)    // POST /amendments/:id/discard
}

func (h *InterventionHandler) CreateIntervention(c fiber.Ctx) error {
	var intervention models.Intervention
	if err := c.Bind().Body(&intervention); err != nil {
		slog.Error("error parsing intervention request", "error", err)
		return respondError(c, models.NewError(models.ErrValidation, "invalid request body"))
	}

	if err := h.interventionService.Create(c.Context(), &intervention); err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(intervention))
}

func (h *InterventionHandler) GetIntervention(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	intervention, err := h.interventionRepo.GetByID(id)
	if err != nil {
		return respondError(c, models.NewErrorf(models.ErrNotFound, "intervention %d not found", id))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(intervention))
}

func (h *InterventionHandler) SaveIntervention(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var patch models.InterventionPatch
	if err := c.Bind().Body(&patch); err != nil {
		slog.Error("error parsing intervention patch", "error", err)
		return respondError(c, models.NewError(models.ErrValidation, "invalid request body"))
	}

	intervention, err := h.interventionService.Save(c.Context(), id, patch, actorFromHeaders(c).Side)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(intervention))
}

func (h *InterventionHandler) PassCourt(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	intervention, err := h.interventionService.PassCourt(c.Context(), id, actorFromHeaders(c).Side)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(intervention))
}

func (h *InterventionHandler) Transition(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req transitionRequest
	if err := c.Bind().Body(&req); err != nil {
		return respondError(c, models.NewError(models.ErrValidation, "invalid request body"))
	}

	intervention, err := h.interventionService.Transition(
		c.Context(), id, models.InterventionStatus(req.Target), actorFromHeaders(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(intervention))
}

func (h *InterventionHandler) RollUp(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	budget, err := h.rollup.RollUp(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(budget))
}

type interventionAmendmentRequest struct {
	Kind  string                `json:"kind"`
	Types models.AmendmentTypes `json:"types"`
}

func (h *InterventionHandler) CreateAmendment(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req interventionAmendmentRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing amendment request", "error", err)
		return respondError(c, models.NewError(models.ErrValidation, "invalid request body"))
	}

	kind := models.InterventionAmendmentKind(req.Kind)
	if kind != models.AmendmentNormal && kind != models.AmendmentContingency {
		return respondError(c, models.NewErrorf(models.ErrValidation, "unknown amendment kind %q", req.Kind))
	}

	amendment, err := h.amendmentService.CreateAmendment(c.Context(), id, kind, req.Types)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(amendment))
}

func (h *InterventionHandler) amendmentID(c fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, models.NewErrorf(models.ErrValidation, "invalid amendment id: %s", c.Params("id"))
	}
	return id, nil
}

func (h *InterventionHandler) ComputeDifference(c fiber.Ctx) error {
	id, err := h.amendmentID(c)
	if err != nil {
		return respondError(c, err)
	}

	diff, err := h.amendmentService.ComputeDifference(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(diff))
}

func (h *InterventionHandler) MergeAmendment(c fiber.Ctx) error {
	id, err := h.amendmentID(c)
	if err != nil {
		return respondError(c, err)
	}

	intervention, err := h.amendmentService.MergeAmendment(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(intervention))
}

func (h *InterventionHandler) DiscardAmendment(c fiber.Ctx) error {
	id, err := h.amendmentID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.amendmentService.DiscardAmendment(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(fiber.Map{"discarded": true}))
}
