// Package apierr maps service errors onto the standard error envelope.
package apierr

import (
	"errors"

	"crm-backend/internal/application/commissionsplits"
	"crm-backend/internal/application/deals"
	"crm-backend/internal/application/engine"
	"crm-backend/internal/application/payments"
	"crm-backend/internal/middleware"
	"crm-backend/internal/pkg/commission"
	"crm-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Write renders err with the status code its kind calls for. Unknown errors
// are logged and reported as a plain 500.
func Write(c *fiber.Ctx, err error) error {
	var cfgErr *commission.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return response.Unprocessable(c, cfgErr.Reason, cfgErr.Field)
	case errors.Is(err, engine.ErrDealNotFound),
		errors.Is(err, engine.ErrPaymentNotFound),
		errors.Is(err, engine.ErrCommissionSplitNotFound),
		errors.Is(err, payments.ErrPaymentSplitNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, commissionsplits.ErrBrokerAlreadyOnDeal):
		return response.Conflict(c, err.Error())
	case errors.Is(err, deals.ErrNameRequired),
		errors.Is(err, commissionsplits.ErrBrokerRequired),
		errors.Is(err, commission.ErrNegativePercent),
		errors.Is(err, payments.ErrNegativeAmount):
		return response.BadRequest(c, err.Error())
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("method", c.Method()).
		Str("path", c.Path()).Msg("Request failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}

// ParamID parses a uuid route parameter. The returned *fiber.Error is
// rendered by the global error handler.
func ParamID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}
