package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bazaar/internal/service/coupon/domain"
	"bazaar/internal/service/coupon/domain/port"
	"bazaar/internal/service/coupon/infrastructure"
)

var testTracer = otel.Tracer("coupon-test")

func newTestStore(t *testing.T) *infrastructure.GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := infrastructure.NewGormStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func seedCoupon(t *testing.T, store domain.Store, shopID int64, code string) *domain.Coupon {
	t.Helper()
	c := &domain.Coupon{
		ShopID:        shopID,
		Code:          code,
		Name:          code + " name",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 10,
		StartDate:     time.Now().Add(-time.Hour),
		EndDate:       time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, store.Coupons().Create(context.Background(), c))
	return c
}

func seedActiveCampaign(t *testing.T, store domain.Store, shopID int64) *domain.Campaign {
	t.Helper()
	return seedCampaignWindow(t, store, shopID, domain.CampaignStatusActive,
		time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
}

func seedCampaignWindow(t *testing.T, store domain.Store, shopID int64, status domain.CampaignStatus, start, end time.Time) *domain.Campaign {
	t.Helper()
	c := &domain.Campaign{
		ShopID:    shopID,
		Name:      "flash sale",
		Status:    status,
		StartDate: start,
		EndDate:   end,
	}
	require.NoError(t, store.Campaigns().CreateCampaign(context.Background(), c))
	return c
}

func attachQuota(t *testing.T, store domain.Store, campaignID, couponID int64, total int) {
	t.Helper()
	require.NoError(t, store.Campaigns().AttachCoupon(context.Background(), &domain.CampaignCoupon{
		CampaignID:        campaignID,
		CouponID:          couponID,
		TotalQuantity:     total,
		RemainingQuantity: total,
	}))
}

// stubShops 是 ShopOwnership 端口的测试替身。
type stubShops struct {
	owned map[[2]int64]bool
	err   error
}

func (s *stubShops) OwnsShop(_ context.Context, sellerID, shopID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.owned[[2]int64{sellerID, shopID}], nil
}

func ownerOf(sellerID, shopID int64) *stubShops {
	return &stubShops{owned: map[[2]int64]bool{{sellerID, shopID}: true}}
}

// stubEvents 记录发布过的事件。
type stubEvents struct {
	published []*port.CouponEvent
}

func (s *stubEvents) Publish(_ context.Context, event *port.CouponEvent) error {
	s.published = append(s.published, event)
	return nil
}

func (s *stubEvents) Close() error { return nil }

// stubGate 返回预设的挡闸结果并记录补偿调用。
type stubGate struct {
	result   port.GateResult
	err      error
	reserves int
	refunds  int
}

func (g *stubGate) Prime(context.Context, int64, int64, int) error { return nil }

func (g *stubGate) Reserve(context.Context, int64, int64, int64) (port.GateResult, error) {
	g.reserves++
	return g.result, g.err
}

func (g *stubGate) Refund(context.Context, int64, int64, int64) error {
	g.refunds++
	return nil
}

func (g *stubGate) Drop(context.Context, int64, int64) error { return nil }

// stubRules 按固定结果求值。
type stubRules struct {
	pass bool
	err  error
}

func (r *stubRules) Evaluate(string, port.UsageFact) (bool, error) {
	return r.pass, r.err
}
