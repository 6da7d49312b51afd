// Package testutil builds in-memory databases and fixtures for tests.
package testutil

import (
	"testing"

	"crm-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database. One connection keeps
// every query on the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(domain.Models()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// D parses a decimal literal.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func IntPtr(n int) *int {
	return &n
}

// DealOption adjusts a fixture deal before it is stored.
type DealOption func(*domain.Deal)

func WithFee(fee string) DealOption {
	return func(d *domain.Deal) { d.Fee = decimal.NewNullDecimal(D(fee)) }
}

func WithoutFee() DealOption {
	return func(d *domain.Deal) { d.Fee = decimal.NullDecimal{} }
}

func WithPayments(n int) DealOption {
	return func(d *domain.Deal) { d.NumberOfPayments = IntPtr(n) }
}

func WithoutPaymentCount() DealOption {
	return func(d *domain.Deal) { d.NumberOfPayments = nil }
}

func WithCategories(origination, site, deal string) DealOption {
	return func(d *domain.Deal) {
		d.OriginationPercent = D(origination)
		d.SitePercent = D(site)
		d.DealPercent = D(deal)
	}
}

func WithHouse(p string) DealOption {
	return func(d *domain.Deal) { d.HousePercent = D(p) }
}

func WithReferral(p string) DealOption {
	return func(d *domain.Deal) { d.ReferralFeePercent = D(p) }
}

// Deal stores the reference deal: fee 100000 over 2 payments, 5% referral,
// 10% house, categories 50/25/25. Options override any of it.
func Deal(t *testing.T, db *gorm.DB, opts ...DealOption) *domain.Deal {
	t.Helper()
	d := &domain.Deal{
		Name:               "Riverside Office Lease",
		Fee:                decimal.NewNullDecimal(D("100000")),
		NumberOfPayments:   IntPtr(2),
		ReferralFeePercent: D("5"),
		HousePercent:       D("10"),
		OriginationPercent: D("50"),
		SitePercent:        D("25"),
		DealPercent:        D("25"),
	}
	for _, o := range opts {
		o(d)
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

// Broker stores a commission split template for a new broker on the deal.
func Broker(t *testing.T, db *gorm.DB, dealID uuid.UUID, name, origination, site, deal string) *domain.CommissionSplit {
	t.Helper()
	c := &domain.CommissionSplit{
		DealID:                  dealID,
		BrokerID:                uuid.New(),
		BrokerName:              name,
		SplitOriginationPercent: D(origination),
		SplitSitePercent:        D(site),
		SplitDealPercent:        D(deal),
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// Splits returns a payment's splits keyed by broker.
func Splits(t *testing.T, db *gorm.DB, paymentID uuid.UUID) map[uuid.UUID]domain.PaymentSplit {
	t.Helper()
	var rows []domain.PaymentSplit
	require.NoError(t, db.Where("payment_id = ?", paymentID).Find(&rows).Error)
	out := make(map[uuid.UUID]domain.PaymentSplit, len(rows))
	for _, r := range rows {
		out[r.BrokerID] = r
	}
	return out
}

// Payments returns a deal's payments in sequence order.
func Payments(t *testing.T, db *gorm.DB, dealID uuid.UUID) []domain.Payment {
	t.Helper()
	var rows []domain.Payment
	require.NoError(t, db.Where("deal_id = ?", dealID).Order("payment_sequence ASC").Find(&rows).Error)
	return rows
}

// Count returns the number of rows of model matching where.
func Count(t *testing.T, db *gorm.DB, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}
