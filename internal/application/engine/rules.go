package engine

import (
	"crm-backend/internal/domain"
	"crm-backend/internal/observability"
	"crm-backend/internal/pkg/commission"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RecalculatePayment is the payment AGCI rule followed by override
// propagation: it derives amount / referral / GCI / house / AGCI for p,
// persists them and then reflows every split of p from the new AGCI.
func RecalculatePayment(tx *gorm.DB, deal *domain.Deal, p *domain.Payment) (int, error) {
	res, err := commission.ComputeAGCI(p.AGCIInput(deal))
	if err != nil {
		return 0, err
	}
	p.ApplyAGCI(res)
	if err := tx.Save(p).Error; err != nil {
		return 0, err
	}
	return PropagatePayment(tx, deal, p)
}

// PropagatePayment rewrites the dollar fields of every split of p from p's
// stored AGCI and the splits' snapshot percentages. Percentages are not
// touched. Must run after the AGCI rule has written p.
func PropagatePayment(tx *gorm.DB, deal *domain.Deal, p *domain.Payment) (int, error) {
	splits, err := paymentSplits(tx, p.PaymentID)
	if err != nil {
		return 0, err
	}
	_, updated, err := reflow(tx, deal, p, splits, func(*domain.PaymentSplit) bool { return true })
	return updated, err
}

func paymentSplits(tx *gorm.DB, paymentID uuid.UUID) ([]domain.PaymentSplit, error) {
	var splits []domain.PaymentSplit
	err := tx.Where("payment_id = ?", paymentID).Order("broker_id ASC").Find(&splits).Error
	return splits, err
}

// reflow hands p's category totals out over splits, which must be every
// split row of p, and writes back what moved. Rows without an id are
// created. A stored row is saved when its amounts changed or force says so;
// the cent allocation is joint across brokers, so adding, editing or
// removing one broker can move another broker's amounts by a cent.
func reflow(tx *gorm.DB, deal *domain.Deal, p *domain.Payment, splits []domain.PaymentSplit, force func(*domain.PaymentSplit) bool) (created, updated int, err error) {
	totals := commission.ComputeCategoryTotals(p.AGCI, deal.Categories())
	shares := make([]commission.Share, len(splits))
	for i := range splits {
		shares[i] = commission.Share{Key: splits[i].BrokerID.String(), Percents: splits[i].Percents()}
	}
	amounts := commission.AllocateSplits(totals, shares)

	for i := range splits {
		s := &splits[i]
		if s.PaymentSplitID == uuid.Nil {
			s.ApplyAmounts(amounts[i])
			if err := tx.Create(s).Error; err != nil {
				return created, updated, err
			}
			created++
			continue
		}
		if s.Amounts().Equal(amounts[i]) && (force == nil || !force(s)) {
			continue
		}
		s.ApplyAmounts(amounts[i])
		if err := tx.Save(s).Error; err != nil {
			return created, updated, err
		}
		updated++
	}
	observability.RecordSplitsWritten("created", created)
	observability.RecordSplitsWritten("updated", updated)
	return created, updated, nil
}

func newSplit(deal *domain.Deal, p *domain.Payment, t *domain.CommissionSplit) domain.PaymentSplit {
	s := domain.PaymentSplit{PaymentID: p.PaymentID, DealID: deal.DealID}
	s.SnapshotFrom(t)
	return s
}

// SeedPaymentSplits creates one split per template for a payment that has
// just been inserted.
func SeedPaymentSplits(tx *gorm.DB, deal *domain.Deal, p *domain.Payment, templates []domain.CommissionSplit) (int, error) {
	splits := make([]domain.PaymentSplit, len(templates))
	for i := range templates {
		splits[i] = newSplit(deal, p, &templates[i])
	}
	created, _, err := reflow(tx, deal, p, splits, nil)
	return created, err
}

// BackfillTemplate creates a split for a newly added broker on every
// existing payment of the deal.
func BackfillTemplate(tx *gorm.DB, deal *domain.Deal, t *domain.CommissionSplit) (int, error) {
	payments, err := DealPayments(tx, deal.DealID)
	if err != nil {
		return 0, err
	}
	total := 0
	for i := range payments {
		p := &payments[i]
		splits, err := paymentSplits(tx, p.PaymentID)
		if err != nil {
			return total, err
		}
		splits = append(splits, newSplit(deal, p, t))
		created, _, err := reflow(tx, deal, p, splits, nil)
		total += created
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ResyncTemplate pushes a broker's edited percentages onto that broker's
// splits. It does nothing when none of the three percentages changed.
// Other brokers keep their percentages; their amounts only move when the
// cent allocation of a category shifts. A missing row is recreated. The
// count is the edited broker's rows.
func ResyncTemplate(tx *gorm.DB, deal *domain.Deal, before commission.Percents, t *domain.CommissionSplit) (int, error) {
	if before.Equal(t.Percents()) {
		return 0, nil
	}
	payments, err := DealPayments(tx, deal.DealID)
	if err != nil {
		return 0, err
	}
	edited := func(s *domain.PaymentSplit) bool { return s.BrokerID == t.BrokerID }
	for i := range payments {
		p := &payments[i]
		splits, err := paymentSplits(tx, p.PaymentID)
		if err != nil {
			return i, err
		}
		found := false
		for j := range splits {
			if edited(&splits[j]) {
				splits[j].SnapshotFrom(t)
				found = true
			}
		}
		if !found {
			splits = append(splits, newSplit(deal, p, t))
		}
		if _, _, err := reflow(tx, deal, p, splits, edited); err != nil {
			return i, err
		}
	}
	return len(payments), nil
}

// RemoveTemplateSplits hard-deletes every split of brokerID on the deal's
// payments and settles the remaining brokers' cents.
func RemoveTemplateSplits(tx *gorm.DB, deal *domain.Deal, brokerID uuid.UUID) (int64, error) {
	res := tx.Where("broker_id = ? AND payment_id IN (?)", brokerID, paymentIDsOf(tx, deal.DealID)).
		Delete(&domain.PaymentSplit{})
	if res.Error != nil {
		return 0, res.Error
	}
	observability.RecordSplitsWritten("deleted", int(res.RowsAffected))

	payments, err := DealPayments(tx, deal.DealID)
	if err != nil {
		return res.RowsAffected, err
	}
	for i := range payments {
		splits, err := paymentSplits(tx, payments[i].PaymentID)
		if err != nil {
			return res.RowsAffected, err
		}
		if _, _, err := reflow(tx, deal, &payments[i], splits, nil); err != nil {
			return res.RowsAffected, err
		}
	}
	return res.RowsAffected, nil
}

// RefreshDealFigures recomputes and stores the deal-level GCI / house / AGCI.
func RefreshDealFigures(tx *gorm.DB, deal *domain.Deal) error {
	deal.ApplyFigures(commission.ComputeDealFigures(deal.Terms()))
	return tx.Save(deal).Error
}

// RecalculateDeal runs the AGCI rule and propagation for every payment of
// the deal after its terms changed.
func RecalculateDeal(tx *gorm.DB, deal *domain.Deal) (payments int, splits int, err error) {
	if err := RefreshDealFigures(tx, deal); err != nil {
		return 0, 0, err
	}
	list, err := DealPayments(tx, deal.DealID)
	if err != nil {
		return 0, 0, err
	}
	for i := range list {
		n, err := RecalculatePayment(tx, deal, &list[i])
		if err != nil {
			return i, splits, err
		}
		splits += n
	}
	return len(list), splits, nil
}

// GenerateResult summarizes a payment bootstrap.
type GenerateResult struct {
	Payments        []domain.Payment `json:"payments"`
	SplitsCreated   int              `json:"splits_created"`
	PaymentsRemoved int64            `json:"payments_removed"`
	SplitsRemoved   int64            `json:"splits_removed"`
}

// GeneratePayments replaces the deal's payments with N fresh installments of
// fee / N, each seeded with one split per broker template. Any earlier
// payments (generated, imported or manual) and their splits are removed
// first, splits before payments.
func GeneratePayments(tx *gorm.DB, deal *domain.Deal) (*GenerateResult, error) {
	if _, err := commission.CalculatedAmount(deal.Fee, deal.NumberOfPayments); err != nil {
		return nil, err
	}

	out := &GenerateResult{}
	res := tx.Where("payment_id IN (?) OR deal_id = ?", paymentIDsOf(tx, deal.DealID), deal.DealID).
		Delete(&domain.PaymentSplit{})
	if res.Error != nil {
		return nil, res.Error
	}
	out.SplitsRemoved = res.RowsAffected
	observability.RecordSplitsWritten("deleted", int(res.RowsAffected))

	res = tx.Where("deal_id = ?", deal.DealID).Delete(&domain.Payment{})
	if res.Error != nil {
		return nil, res.Error
	}
	out.PaymentsRemoved = res.RowsAffected

	if err := RefreshDealFigures(tx, deal); err != nil {
		return nil, err
	}
	templates, err := DealTemplates(tx, deal.DealID)
	if err != nil {
		return nil, err
	}

	n := *deal.NumberOfPayments
	out.Payments = make([]domain.Payment, 0, n)
	for seq := 1; seq <= n; seq++ {
		p := domain.Payment{
			DealID:          deal.DealID,
			PaymentSequence: seq,
			Source:          domain.PaymentSourceGenerated,
		}
		if err := insertPayment(tx, deal, &p); err != nil {
			return nil, err
		}
		created, err := SeedPaymentSplits(tx, deal, &p, templates)
		if err != nil {
			return nil, err
		}
		out.SplitsCreated += created
		out.Payments = append(out.Payments, p)
	}
	return out, nil
}

// AddPayment appends one payment after the last sequence of the deal. When
// amount is set the payment is an override; otherwise it takes fee / N.
func AddPayment(tx *gorm.DB, deal *domain.Deal, amount decimal.NullDecimal, source string) (*domain.Payment, int, error) {
	var maxSeq int
	if err := tx.Model(&domain.Payment{}).Where("deal_id = ?", deal.DealID).
		Select("COALESCE(MAX(payment_sequence), 0)").Scan(&maxSeq).Error; err != nil {
		return nil, 0, err
	}
	p := domain.Payment{
		DealID:          deal.DealID,
		PaymentSequence: maxSeq + 1,
		Source:          source,
	}
	if amount.Valid {
		p.PaymentAmount = amount.Decimal
		p.AmountOverride = true
	}
	if err := insertPayment(tx, deal, &p); err != nil {
		return nil, 0, err
	}
	templates, err := DealTemplates(tx, deal.DealID)
	if err != nil {
		return nil, 0, err
	}
	n, err := SeedPaymentSplits(tx, deal, &p, templates)
	if err != nil {
		return nil, 0, err
	}
	return &p, n, nil
}

func insertPayment(tx *gorm.DB, deal *domain.Deal, p *domain.Payment) error {
	res, err := commission.ComputeAGCI(p.AGCIInput(deal))
	if err != nil {
		return err
	}
	p.ApplyAGCI(res)
	return tx.Create(p).Error
}

// DeletePayment removes a payment and its splits, then closes the gap in
// the deal's sequence so it stays 1..N. Payments on the default amount
// that changed sequence are recalculated, since the leftover fee cents sit
// on the last sequences.
func DeletePayment(tx *gorm.DB, deal *domain.Deal, p *domain.Payment) (int64, error) {
	res := tx.Where("payment_id = ?", p.PaymentID).Delete(&domain.PaymentSplit{})
	if res.Error != nil {
		return 0, res.Error
	}
	observability.RecordSplitsWritten("deleted", int(res.RowsAffected))
	if err := tx.Delete(p).Error; err != nil {
		return res.RowsAffected, err
	}
	moved, err := Resequence(tx, deal.DealID)
	if err != nil {
		return res.RowsAffected, err
	}
	for i := range moved {
		if moved[i].AmountOverride {
			continue
		}
		if _, err := RecalculatePayment(tx, deal, &moved[i]); err != nil {
			return res.RowsAffected, err
		}
	}
	return res.RowsAffected, nil
}

// Resequence renumbers a deal's payments to 1..N keeping their order and
// returns the payments whose sequence changed.
func Resequence(tx *gorm.DB, dealID uuid.UUID) ([]domain.Payment, error) {
	payments, err := DealPayments(tx, dealID)
	if err != nil {
		return nil, err
	}
	var moved []domain.Payment
	for i := range payments {
		want := i + 1
		if payments[i].PaymentSequence == want {
			continue
		}
		if err := tx.Model(&domain.Payment{}).Where("payment_id = ?", payments[i].PaymentID).
			Update("payment_sequence", want).Error; err != nil {
			return nil, err
		}
		payments[i].PaymentSequence = want
		moved = append(moved, payments[i])
	}
	return moved, nil
}

// DeleteDeal removes a deal with its splits, payments, templates and events.
func DeleteDeal(tx *gorm.DB, deal *domain.Deal) error {
	if err := tx.Where("payment_id IN (?) OR deal_id = ?", paymentIDsOf(tx, deal.DealID), deal.DealID).
		Delete(&domain.PaymentSplit{}).Error; err != nil {
		return err
	}
	if err := tx.Where("deal_id = ?", deal.DealID).Delete(&domain.Payment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("deal_id = ?", deal.DealID).Delete(&domain.CommissionSplit{}).Error; err != nil {
		return err
	}
	if err := tx.Where("deal_id = ?", deal.DealID).Delete(&domain.DealEvent{}).Error; err != nil {
		return err
	}
	return tx.Delete(deal).Error
}
