package payments

import (
	"context"
	"errors"
	"testing"

	"crm-backend/internal/application/engine"
	"crm-backend/internal/domain"
	"crm-backend/internal/pkg/commission"
	"crm-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var d = testutil.D

func TestGenerate_RecordsEvent(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	deal := testutil.Deal(t, db)
	testutil.Broker(t, db, deal.DealID, "Broker X", "60", "20", "20")
	testutil.Broker(t, db, deal.DealID, "Broker Y", "40", "80", "80")

	res, err := svc.Generate(context.Background(), deal.DealID)
	require.NoError(t, err)
	assert.Len(t, res.Payments, 2)
	assert.Equal(t, 4, res.SplitsCreated)
	assert.Equal(t, int64(1), testutil.Count(t, db, &domain.DealEvent{}, "deal_id = ? AND event_type = ?",
		deal.DealID, domain.DealEventPaymentsGenerated))
}

func TestGenerate_ConfigurationError(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	deal := testutil.Deal(t, db, testutil.WithPayments(0))

	_, err := svc.Generate(context.Background(), deal.DealID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, commission.ErrConfiguration))
	assert.Contains(t, err.Error(), "deal has no payment count configured")
	assert.Equal(t, int64(0), testutil.Count(t, db, &domain.Payment{}, "deal_id = ?", deal.DealID))
	assert.Equal(t, int64(0), testutil.Count(t, db, &domain.DealEvent{}, "deal_id = ?", deal.DealID))
}

func TestGenerate_UnknownDeal(t *testing.T) {
	svc := &Service{DB: testutil.NewDB(t)}
	_, err := svc.Generate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, engine.ErrDealNotFound)
}

func TestOverride_ScenarioB(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	deal := testutil.Deal(t, db)
	x := testutil.Broker(t, db, deal.DealID, "Broker X", "60", "20", "20")
	res, err := svc.Generate(ctx, deal.DealID)
	require.NoError(t, err)

	p, err := svc.Override(ctx, res.Payments[0].PaymentID, d("60000"))
	require.NoError(t, err)
	assert.True(t, p.AmountOverride)
	assert.True(t, d("51300").Equal(p.AGCI))

	split := testutil.Splits(t, db, p.PaymentID)[x.BrokerID]
	assert.True(t, d("20520").Equal(split.SplitBrokerTotal))
	assert.True(t, d("60").Equal(split.SplitOriginationPercent))

	var ev domain.DealEvent
	require.NoError(t, db.Where("payment_id = ? AND event_type = ?", p.PaymentID, domain.DealEventPaymentOverridden).First(&ev).Error)
	assert.Contains(t, string(ev.EventData), `"to":"60000"`)
}

func TestOverride_SameAmountKeepsAGCI(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	deal := testutil.Deal(t, db)
	res, err := svc.Generate(ctx, deal.DealID)
	require.NoError(t, err)
	before := res.Payments[0]

	p, err := svc.Override(ctx, before.PaymentID, before.PaymentAmount)
	require.NoError(t, err)
	assert.True(t, before.AGCI.Equal(p.AGCI))
}

func TestOverride_Validation(t *testing.T) {
	svc := &Service{DB: testutil.NewDB(t)}
	_, err := svc.Override(context.Background(), uuid.New(), d("-1"))
	assert.ErrorIs(t, err, ErrNegativeAmount)
	_, err = svc.Override(context.Background(), uuid.New(), d("10"))
	assert.ErrorIs(t, err, engine.ErrPaymentNotFound)
}

func TestClearOverride_RestoresCalculatedAmount(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	deal := testutil.Deal(t, db)
	res, err := svc.Generate(ctx, deal.DealID)
	require.NoError(t, err)
	id := res.Payments[0].PaymentID

	_, err = svc.Override(ctx, id, d("60000"))
	require.NoError(t, err)
	p, err := svc.ClearOverride(ctx, id)
	require.NoError(t, err)
	assert.False(t, p.AmountOverride)
	assert.True(t, d("50000").Equal(p.PaymentAmount))
	assert.True(t, d("42750").Equal(p.AGCI))
}

func TestSetReferralOverride(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	deal := testutil.Deal(t, db)
	res, err := svc.Generate(ctx, deal.DealID)
	require.NoError(t, err)
	id := res.Payments[0].PaymentID

	zero := decimal.Zero
	p, err := svc.SetReferralOverride(ctx, id, &zero)
	require.NoError(t, err)
	assert.True(t, p.ReferralFeeUSD.IsZero())
	assert.True(t, d("45000").Equal(p.AGCI))

	p, err = svc.SetReferralOverride(ctx, id, nil)
	require.NoError(t, err)
	assert.False(t, p.ReferralFeePercentOverride.Valid)
	assert.True(t, d("42750").Equal(p.AGCI))

	neg := d("-5")
	_, err = svc.SetReferralOverride(ctx, id, &neg)
	assert.ErrorIs(t, err, commission.ErrNegativePercent)
}

func TestAdd(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	deal := testutil.Deal(t, db)
	x := testutil.Broker(t, db, deal.DealID, "Broker X", "100", "100", "100")
	_, err := svc.Generate(ctx, deal.DealID)
	require.NoError(t, err)

	amount := d("2000")
	p, err := svc.Add(ctx, deal.DealID, AddInput{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, 3, p.PaymentSequence)
	assert.Equal(t, domain.PaymentSourceManual, p.Source)
	assert.True(t, d("1710").Equal(p.AGCI))
	assert.True(t, d("1710").Equal(testutil.Splits(t, db, p.PaymentID)[x.BrokerID].SplitBrokerTotal))

	neg := d("-1")
	_, err = svc.Add(ctx, deal.DealID, AddInput{Amount: &neg})
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestDelete_Resequences(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	deal := testutil.Deal(t, db, testutil.WithPayments(3))
	testutil.Broker(t, db, deal.DealID, "Broker X", "100", "100", "100")
	res, err := svc.Generate(ctx, deal.DealID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, res.Payments[0].PaymentID))
	list, err := svc.List(ctx, deal.DealID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, res.Payments[1].PaymentID, list[0].PaymentID)
	assert.Equal(t, 1, list[0].PaymentSequence)
	assert.Equal(t, 2, list[1].PaymentSequence)
	assert.Equal(t, int64(2), testutil.Count(t, db, &domain.PaymentSplit{}, "deal_id = ?", deal.DealID))

	assert.ErrorIs(t, svc.Delete(ctx, res.Payments[0].PaymentID), engine.ErrPaymentNotFound)
}

func TestList_UnknownDeal(t *testing.T) {
	svc := &Service{DB: testutil.NewDB(t)}
	_, err := svc.List(context.Background(), uuid.New())
	assert.ErrorIs(t, err, engine.ErrDealNotFound)
}

func TestSetSplitPaid(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	deal := testutil.Deal(t, db)
	x := testutil.Broker(t, db, deal.DealID, "Broker X", "100", "100", "100")
	res, err := svc.Generate(ctx, deal.DealID)
	require.NoError(t, err)
	split := testutil.Splits(t, db, res.Payments[0].PaymentID)[x.BrokerID]

	got, err := svc.SetSplitPaid(ctx, split.PaymentSplitID, true)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	require.NotNil(t, got.PaidAt)

	// Paid flag survives a recalculation of the payment
	_, err = svc.Override(ctx, res.Payments[0].PaymentID, d("1000"))
	require.NoError(t, err)
	after := testutil.Splits(t, db, res.Payments[0].PaymentID)[x.BrokerID]
	assert.True(t, after.Paid)
	assert.True(t, d("855").Equal(after.SplitBrokerTotal))

	got, err = svc.SetSplitPaid(ctx, split.PaymentSplitID, false)
	require.NoError(t, err)
	assert.False(t, got.Paid)
	assert.Nil(t, got.PaidAt)

	_, err = svc.SetSplitPaid(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, ErrPaymentSplitNotFound)
}

// onDealLock runs write once, inside the caller's transaction, right after
// the first read of a deal row. It stands in for a writer that committed
// while the caller was waiting on the deal lock.
func onDealLock(t *testing.T, db *gorm.DB, write func(tx *gorm.DB) error) {
	t.Helper()
	fired := false
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:write_on_deal_lock", func(tx *gorm.DB) {
		if fired || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "Deals" {
			return
		}
		fired = true
		if err := write(tx.Session(&gorm.Session{NewDB: true})); err != nil {
			_ = tx.AddError(err)
		}
	}))
}

func TestSetReferralOverride_KeepsOverrideWrittenBeforeLock(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	deal := testutil.Deal(t, db)
	res, err := svc.Generate(ctx, deal.DealID)
	require.NoError(t, err)
	id := res.Payments[0].PaymentID

	onDealLock(t, db, func(tx *gorm.DB) error {
		return tx.Model(&domain.Payment{}).Where("payment_id = ?", id).
			Updates(map[string]interface{}{"payment_amount": d("60000"), "amount_override": true}).Error
	})

	zero := decimal.Zero
	p, err := svc.SetReferralOverride(ctx, id, &zero)
	require.NoError(t, err)
	assert.True(t, p.AmountOverride)
	assert.True(t, d("60000").Equal(p.PaymentAmount))
	assert.True(t, d("54000").Equal(p.AGCI), p.AGCI.String())

	var stored domain.Payment
	require.NoError(t, db.First(&stored, "payment_id = ?", id).Error)
	assert.True(t, stored.AmountOverride)
	assert.True(t, d("60000").Equal(stored.PaymentAmount))
}

func TestSetSplitPaid_LeavesAmountsWrittenBeforeLock(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	deal := testutil.Deal(t, db)
	x := testutil.Broker(t, db, deal.DealID, "Broker X", "100", "100", "100")
	res, err := svc.Generate(ctx, deal.DealID)
	require.NoError(t, err)
	split := testutil.Splits(t, db, res.Payments[0].PaymentID)[x.BrokerID]

	onDealLock(t, db, func(tx *gorm.DB) error {
		return tx.Model(&domain.PaymentSplit{}).Where("payment_split_id = ?", split.PaymentSplitID).
			Update("split_broker_total", d("1")).Error
	})

	_, err = svc.SetSplitPaid(ctx, split.PaymentSplitID, true)
	require.NoError(t, err)
	after := testutil.Splits(t, db, res.Payments[0].PaymentID)[x.BrokerID]
	assert.True(t, after.Paid)
	assert.True(t, d("1").Equal(after.SplitBrokerTotal))
}

func TestAdd_DefaultAmountAndDeleteKeepFeeWhole(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	deal := testutil.Deal(t, db, testutil.WithPayments(3))
	res, err := svc.Generate(ctx, deal.DealID)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, p := range res.Payments {
		sum = sum.Add(p.PaymentAmount)
	}
	assert.True(t, d("100000").Equal(sum), sum.String())
	assert.True(t, d("33333.34").Equal(res.Payments[2].PaymentAmount))

	// The payment that moves into the last slot takes over the leftover cent
	require.NoError(t, svc.Delete(ctx, res.Payments[2].PaymentID))
	_, err = svc.Add(ctx, deal.DealID, AddInput{})
	require.NoError(t, err)
	list, err := svc.List(ctx, deal.DealID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, d("33333.34").Equal(list[2].PaymentAmount))

	require.NoError(t, svc.Delete(ctx, list[0].PaymentID))
	list, err = svc.List(ctx, deal.DealID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, d("33333.33").Equal(list[0].PaymentAmount))
	assert.True(t, d("33333.33").Equal(list[1].PaymentAmount))
}
