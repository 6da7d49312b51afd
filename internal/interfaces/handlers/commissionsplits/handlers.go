package commissionsplits

import (
	cssvc "crm-backend/internal/application/commissionsplits"
	"crm-backend/internal/interfaces/handlers/apierr"
	"crm-backend/internal/pkg/commission"
	"crm-backend/internal/pkg/response"
	"crm-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *cssvc.Service
}

type splitBody struct {
	BrokerID           string           `json:"broker_id"`
	BrokerName         *string          `json:"broker_name"`
	OriginationPercent *decimal.Decimal `json:"split_origination_percent"`
	SitePercent        *decimal.Decimal `json:"split_site_percent"`
	DealPercent        *decimal.Decimal `json:"split_deal_percent"`
}

func (b *splitBody) validate() string {
	if b.BrokerName != nil && *b.BrokerName != "" && !validation.IsValidName(*b.BrokerName) {
		return "Invalid broker_name"
	}
	for _, f := range []struct {
		name  string
		value *decimal.Decimal
	}{
		{"split_origination_percent", b.OriginationPercent},
		{"split_site_percent", b.SitePercent},
		{"split_deal_percent", b.DealPercent},
	} {
		if f.value != nil && !validation.IsValidPercent(*f.value) {
			return f.name + " " + validation.PercentRangeMessage
		}
	}
	return ""
}

// GET /api/v1/deals/:deal_id/commission-splits
func (h *Handlers) List(c *fiber.Ctx) error {
	dealID, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	splits, err := h.Service.List(c.UserContext(), dealID)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Commission splits fetched successfully", splits, fiber.Map{"count": len(splits)})
}

// POST /api/v1/deals/:deal_id/commission-splits
func (h *Handlers) Create(c *fiber.Ctx) error {
	dealID, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	var body splitBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	brokerID, err := uuid.Parse(body.BrokerID)
	if err != nil {
		return response.BadRequest(c, "broker_id is required")
	}
	if body.OriginationPercent == nil || body.SitePercent == nil || body.DealPercent == nil {
		return response.BadRequest(c, "split_origination_percent, split_site_percent and split_deal_percent are required")
	}
	if msg := body.validate(); msg != "" {
		return response.BadRequest(c, msg)
	}
	in := cssvc.CreateInput{
		BrokerID: brokerID,
		Percents: commission.Percents{
			Origination: *body.OriginationPercent,
			Site:        *body.SitePercent,
			Deal:        *body.DealPercent,
		},
	}
	if body.BrokerName != nil {
		in.BrokerName = *body.BrokerName
	}
	split, err := h.Service.Create(c.UserContext(), dealID, in)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.SuccessCreated(c, "Commission split created successfully", split, nil)
}

// PATCH /api/v1/commission-splits/:commission_split_id
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "commission_split_id")
	if err != nil {
		return err
	}
	var body splitBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if msg := body.validate(); msg != "" {
		return response.BadRequest(c, msg)
	}
	split, err := h.Service.Update(c.UserContext(), id, cssvc.UpdateInput{
		BrokerName:         body.BrokerName,
		OriginationPercent: body.OriginationPercent,
		SitePercent:        body.SitePercent,
		DealPercent:        body.DealPercent,
	})
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Commission split updated successfully", split, nil)
}

// DELETE /api/v1/commission-splits/:commission_split_id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "commission_split_id")
	if err != nil {
		return err
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Commission split deleted successfully", fiber.Map{"commission_split_id": id}, nil)
}
