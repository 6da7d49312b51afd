package dealevents

import (
	"errors"

	evsvc "crm-backend/internal/application/dealevents"
	"crm-backend/internal/interfaces/handlers/apierr"
	"crm-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *evsvc.Service
}

// GET /api/v1/deals/:deal_id/events?type=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	dealID, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	events, err := h.Service.List(c.UserContext(), dealID, evsvc.Filter{
		EventType: c.Query("type"),
		Limit:     c.QueryInt("limit", 0),
	})
	if err != nil {
		if errors.Is(err, evsvc.ErrUnknownEventType) {
			return response.BadRequest(c, err.Error())
		}
		return apierr.Write(c, err)
	}
	return response.Success(c, "Deal events fetched successfully", events, fiber.Map{"count": len(events)})
}
