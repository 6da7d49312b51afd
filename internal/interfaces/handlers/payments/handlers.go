package payments

import (
	paysvc "crm-backend/internal/application/payments"
	"crm-backend/internal/domain"
	"crm-backend/internal/interfaces/handlers/apierr"
	"crm-backend/internal/pkg/response"
	"crm-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *paysvc.Service
}

// POST /api/v1/deals/:deal_id/payments/generate
func (h *Handlers) Generate(c *fiber.Ctx) error {
	dealID, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	res, err := h.Service.Generate(c.UserContext(), dealID)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.SuccessCreated(c, "Payments generated successfully", res.Payments, fiber.Map{
		"splits_created":   res.SplitsCreated,
		"payments_removed": res.PaymentsRemoved,
		"splits_removed":   res.SplitsRemoved,
	})
}

// GET /api/v1/deals/:deal_id/payments
func (h *Handlers) List(c *fiber.Ctx) error {
	dealID, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	payments, err := h.Service.List(c.UserContext(), dealID)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Payments fetched successfully", payments, fiber.Map{"count": len(payments)})
}

// POST /api/v1/deals/:deal_id/payments — { amount?, source? }
func (h *Handlers) Add(c *fiber.Ctx) error {
	dealID, err := apierr.ParamID(c, "deal_id")
	if err != nil {
		return err
	}
	var body struct {
		Amount *decimal.Decimal `json:"amount"`
		Source string           `json:"source"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}
	if body.Amount != nil && !validation.IsValidAmount(*body.Amount) {
		return response.BadRequest(c, "amount must be a non-negative dollar amount")
	}
	switch body.Source {
	case "", domain.PaymentSourceManual, domain.PaymentSourceImported:
	default:
		return response.BadRequest(c, "source must be manual or imported")
	}
	p, err := h.Service.Add(c.UserContext(), dealID, paysvc.AddInput{Amount: body.Amount, Source: body.Source})
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.SuccessCreated(c, "Payment added successfully", p, nil)
}

// PATCH /api/v1/payments/:payment_id/amount — { amount }
func (h *Handlers) Override(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "payment_id")
	if err != nil {
		return err
	}
	var body struct {
		Amount *decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil || body.Amount == nil {
		return response.BadRequest(c, "amount is required")
	}
	if !validation.IsValidAmount(*body.Amount) {
		return response.BadRequest(c, "amount must be a non-negative dollar amount")
	}
	p, err := h.Service.Override(c.UserContext(), id, *body.Amount)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Payment amount overridden", p, nil)
}

// DELETE /api/v1/payments/:payment_id/amount-override
func (h *Handlers) ClearOverride(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "payment_id")
	if err != nil {
		return err
	}
	p, err := h.Service.ClearOverride(c.UserContext(), id)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Payment amount override cleared", p, nil)
}

// PATCH /api/v1/payments/:payment_id/referral — { referral_fee_percent }.
// null clears the payment's own percentage.
func (h *Handlers) SetReferral(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "payment_id")
	if err != nil {
		return err
	}
	var body struct {
		Percent *decimal.Decimal `json:"referral_fee_percent"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if body.Percent != nil && !validation.IsValidPercent(*body.Percent) {
		return response.BadRequest(c, "referral_fee_percent "+validation.PercentRangeMessage)
	}
	p, err := h.Service.SetReferralOverride(c.UserContext(), id, body.Percent)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Payment referral fee updated", p, nil)
}

// DELETE /api/v1/payments/:payment_id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "payment_id")
	if err != nil {
		return err
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Payment deleted successfully", fiber.Map{"payment_id": id}, nil)
}

// PATCH /api/v1/payment-splits/:payment_split_id/paid — { paid }
func (h *Handlers) SetSplitPaid(c *fiber.Ctx) error {
	id, err := apierr.ParamID(c, "payment_split_id")
	if err != nil {
		return err
	}
	var body struct {
		Paid *bool `json:"paid"`
	}
	if err := c.BodyParser(&body); err != nil || body.Paid == nil {
		return response.BadRequest(c, "paid is required")
	}
	split, err := h.Service.SetSplitPaid(c.UserContext(), id, *body.Paid)
	if err != nil {
		return apierr.Write(c, err)
	}
	return response.Success(c, "Payment split updated", split, nil)
}
