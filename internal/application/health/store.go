package health

import (
	"context"

	"crm-backend/internal/domain"

	"gorm.io/gorm"
)

// GormStore pings the database and counts the commission tables.
type GormStore struct {
	DB *gorm.DB
}

func (g *GormStore) Ping() error {
	if g == nil || g.DB == nil {
		return nil
	}
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (g *GormStore) LedgerCounts(ctx context.Context) (LedgerInfo, error) {
	var out LedgerInfo
	db := g.DB.WithContext(ctx)
	counts := []struct {
		model interface{}
		dst   *int64
	}{
		{&domain.Deal{}, &out.Deals},
		{&domain.Payment{}, &out.Payments},
		{&domain.CommissionSplit{}, &out.CommissionSplits},
		{&domain.PaymentSplit{}, &out.PaymentSplits},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dst).Error; err != nil {
			return out, err
		}
	}
	if err := db.Model(&domain.PaymentSplit{}).Where("paid = ?", false).Count(&out.UnpaidSplits).Error; err != nil {
		return out, err
	}
	return out, nil
}
