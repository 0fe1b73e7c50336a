package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"hact-service/internal/models"
	"hact-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

// respondError maps the error taxonomy onto HTTP statuses. Guard and
// validation responses carry every failing field.
func respondError(c fiber.Ctx, err error) error {
	var e *models.Error
	if !errors.As(err, &e) {
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse(string(models.ErrIntegrity), err.Error()))
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case models.ErrValidation, models.ErrGuardFailed:
		status = http.StatusBadRequest
	case models.ErrIllegalTransition, models.ErrConcurrencyConflict, models.ErrAmendmentConflict:
		status = http.StatusConflict
	case models.ErrPermissionDenied:
		status = http.StatusForbidden
	case models.ErrNotFound:
		status = http.StatusNotFound
	}

	if len(e.Fields) > 0 {
		return c.Status(status).JSON(
			utils.CreateFieldErrorResponse(string(e.Kind), e.Message, e.Fields))
	}
	return c.Status(status).JSON(utils.CreateErrorResponse(string(e.Kind), e.Message))
}

func paramID(c fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil {
		return 0, models.NewErrorf(models.ErrValidation, "invalid %s: %s", name, c.Params(name))
	}
	return id, nil
}

// actorFromHeaders reads the gateway-injected identity headers. The
// upstream gateway authenticates; this service only needs who and which
// side.
func actorFromHeaders(c fiber.Ctx) models.Actor {
	side := models.SideUNICEF
	if c.Get("X-Actor-Side") == string(models.SidePartner) {
		side = models.SidePartner
	}
	return models.Actor{
		UserID:           c.Get("X-User-ID"),
		IsPartnershipMgr: c.Get("X-Partnership-Manager") == "true",
		Side:             side,
	}
}
