package deals

import (
	dealsvc "crm-backend/internal/application/deals"
	"crm-backend/internal/application/splitcheck"
	"crm-backend/internal/interfaces/handlers/apierr"
	"crm-backend/internal/pkg/response"
	"crm-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *dealsvc.Service
	Checker *splitcheck.Service
}

// dealBody is shared by create and patch; absent fields stay nil.
type dealBody struct {
	Name               *string          `json:"name"`
	Fee                *decimal.Decimal `json:"fee"`
	NumberOfPayments   *int             `json:"number_of_payments"`
	ReferralFeePercent *decimal.Decimal `json:"referral_fee_percent"`
	HousePercent       *decimal.Decimal `json:"house_percent"`
	OriginationPercent *decimal.Decimal `json:"origination_percent"`
	SitePercent        *decimal.Decimal `json:"site_percent"`
	DealPercent        *decimal.Decimal `json:"deal_percent"`
}

func (b *dealBody) validate() string {
	if b.Name != nil && !validation.IsValidName(*b.Name) {
		return "Invalid deal name"
	}
	if b.Fee != nil && !validation.IsValidAmount(*b.Fee) {
		return "fee must be a non-negative dollar amount"
	}
	if b.NumberOfPayments != nil && !validation.IsValidPaymentCount(*b.NumberOfPayments) {
		return "number_of_payments must be between 0 and 600"
	}
	for _, f := range []struct {
		name  string
		value *decimal.Decimal
	}{
		{"referral_fee_percent", b.ReferralFeePercent},
		{"house_percent", b.HousePercent},
		{"origination_percent", b.OriginationPercent},
		{"site_percent", b.SitePercent},
		{"deal_percent", b.DealPercent},
	} {
		if f.value != nil && !validation.IsValidPercent(*f.value) {
			return f.name + " " + validation.PercentRangeMessage
		}
	}
	return ""
}

func orZero(p *decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return *p
}

// POST /api/v1/deals
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body dealBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if body.Name == nil {
		return response.BadRequest(c, "name is required")
	}
	if msg := body.validate(); msg != "" {
		return response.BadRequest(c, msg)
	}
	in := dealsvc.CreateDealInput{
		Name:               *body.Name,
		NumberOfPayments:   body.NumberOfPayments,
		ReferralFeePercent: orZero(body.ReferralFeePercent),
		HousePercent:       orZero(body.HousePercent),
		OriginationPercent: orZero(body.OriginationPercent),
		SitePercent:        orZero(body.SitePercent),
		DealPercent:        orZero(body.DealPercent),
	}
	if body.Fee != nil {
		in.Fee = decimal.NewNullDecimal(*body.Fee)
	}
	deal, err := h.Service.Create(c.UserContext(), in)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.SuccessCreated(c, "Deal created successfully", deal, nil)
}

// GET /api/v1/deals
func (h *Handlers) List(c *fiber.Ctx) error {
	deals, err := h.Service.List(c.UserContext())
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Deals fetched successfully", deals, fiber.Map{"count": len(deals)})
}

// GET /api/v1/deals/:deal_id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	detail, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Deal fetched successfully", detail, nil)
}

// PATCH /api/v1/deals/:deal_id
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	var body dealBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if msg := body.validate(); msg != "" {
		return response.BadRequest(c, msg)
	}
	deal, err := h.Service.Update(c.UserContext(), id, dealsvc.UpdateDealInput{
		Name:               body.Name,
		Fee:                body.Fee,
		NumberOfPayments:   body.NumberOfPayments,
		ReferralFeePercent: body.ReferralFeePercent,
		HousePercent:       body.HousePercent,
		OriginationPercent: body.OriginationPercent,
		SitePercent:        body.SitePercent,
		DealPercent:        body.DealPercent,
	})
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Deal updated successfully", deal, nil)
}

// DELETE /api/v1/deals/:deal_id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Deal deleted successfully", fiber.Map{"deal_id": id}, nil)
}

// GET /api/v1/deals/:deal_id/summary
func (h *Handlers) Summary(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	sum, err := h.Service.Summary(c.UserContext(), id)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Deal summary fetched successfully", sum, nil)
}

// GET /api/v1/deals/:deal_id/validate. Findings are data, so the status is
// 200 either way; metadata.ok tells them apart.
func (h *Handlers) Validate(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	report, err := h.Checker.CheckDeal(c.UserContext(), id)
	if err != nil {
		return apierr.Write(c, err)
	}
	msg := "All payment splits match"
	if !report.OK() {
		msg = "Payment split problems found"
	}
	return response.Success(c, msg, report, fiber.Map{"ok": report.OK(), "problems": report.Problems()})
}
