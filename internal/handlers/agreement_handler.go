package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"hact-service/internal/models"
	"hact-service/internal/repository"
	"hact-service/internal/services"
	"hact-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type AgreementHandler struct {
	agreementService *services.AgreementService
	agreementRepo    *repository.AgreementRepository
}

func NewAgreementHandler(agreementService *services.AgreementService, agreementRepo *repository.AgreementRepository) *AgreementHandler {
	return &AgreementHandler{
		agreementService: agreementService,
		agreementRepo:    agreementRepo,
	}
}

func (h *AgreementHandler) Register(app *fiber.App) {
	group := app.Group("hact/api/v1/agreements")

	group.Post("/", h.CreateAgreement)                 // POST /agreements
	group.Get("/:id", h.GetAgreement)                  // GET /agreements/:id
	group.Post("/:id/transition", h.Transition)        // POST /agreements/:id/transition
	group.Post("/:id/amendments", h.AddAmendment)      // POST /agreements/:id/amendments
	group.Get("/:id/amendments", h.ListAmendments)     // GET /agreements/:id/amendments
}

func (h *AgreementHandler) CreateAgreement(c fiber.Ctx) error {
	var agreement models.Agreement
	if err := c.Bind().Body(&agreement); err != nil {
		slog.Error("error parsing agreement request", "error", err)
		return respondError(c, models.NewError(models.ErrValidation, "invalid request body"))
	}

	if err := h.agreementService.Create(c.Context(), &agreement); err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(agreement))
}

func (h *AgreementHandler) GetAgreement(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	agreement, err := h.agreementRepo.GetByID(id)
	if err != nil {
		return respondError(c, models.NewErrorf(models.ErrNotFound, "agreement %d not found", id))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(agreement))
}

type transitionRequest struct {
	Target string `json:"target"`
}

func (h *AgreementHandler) Transition(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req transitionRequest
	if err := c.Bind().Body(&req); err != nil {
		return respondError(c, models.NewError(models.ErrValidation, "invalid request body"))
	}

	agreement, err := h.agreementService.Transition(
		c.Context(), id, models.AgreementStatus(req.Target), actorFromHeaders(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(agreement))
}

type agreementAmendmentRequest struct {
	Kinds      models.AmendmentKinds `json:"types"`
	SignedDate *time.Time            `json:"signed_date,omitempty"`
	SignedURL  *string               `json:"signed_amendment_url,omitempty"`
}

func (h *AgreementHandler) AddAmendment(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req agreementAmendmentRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing amendment request", "error", err)
		return respondError(c, models.NewError(models.ErrValidation, "invalid request body"))
	}

	amendment, err := h.agreementService.AddAmendment(c.Context(), id, req.Kinds, req.SignedDate, req.SignedURL)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(amendment))
}

func (h *AgreementHandler) ListAmendments(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	amendments, err := h.agreementRepo.ListAmendments(h.agreementRepo.DB(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(amendments))
}
