package infrastructure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bazaar/internal/service/coupon/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	// 内存库在并发写下需要串行化连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := NewGormStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func seedCoupon(t *testing.T, store *GormStore, shopID int64, code, name string, end time.Time) *domain.Coupon {
	t.Helper()
	c := &domain.Coupon{
		ShopID:        shopID,
		Code:          code,
		Name:          name,
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: 5,
		StartDate:     end.Add(-30 * 24 * time.Hour),
		EndDate:       end,
	}
	require.NoError(t, store.Coupons().Create(context.Background(), c))
	return c
}

func seedCampaign(t *testing.T, store *GormStore, shopID int64, status domain.CampaignStatus) *domain.Campaign {
	t.Helper()
	c := &domain.Campaign{
		ShopID:    shopID,
		Name:      "flash sale",
		Status:    status,
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, store.Campaigns().CreateCampaign(context.Background(), c))
	return c
}

func TestCouponRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := seedCoupon(t, store, 1, "WELCOME", "Welcome coupon", time.Now().Add(24*time.Hour))
	require.NotZero(t, c.ID)

	got, err := store.Coupons().FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", got.Code)
	assert.Equal(t, domain.DiscountTypeFixed, got.DiscountType)

	got.Name = "Renamed"
	require.NoError(t, store.Coupons().Update(ctx, got))
	got, err = store.Coupons().FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	require.NoError(t, store.Coupons().Delete(ctx, c.ID))
	_, err = store.Coupons().FindByID(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Coupons().Delete(ctx, c.ID), domain.ErrNotFound)
}

func TestExistsActiveDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	active := seedCoupon(t, store, 1, "SPRING", "Spring Sale", now.Add(24*time.Hour))
	seedCoupon(t, store, 1, "EXPIRED", "Old Sale", now.Add(-24*time.Hour))
	seedCoupon(t, store, 2, "SPRING", "Other Shop", now.Add(24*time.Hour))

	dup, err := store.Coupons().ExistsActiveDuplicate(ctx, 1, "SPRING", "Fresh Name", 0, now)
	require.NoError(t, err)
	assert.True(t, dup.CodeExists)
	assert.False(t, dup.NameExists)

	// 过期券不算重复
	dup, err = store.Coupons().ExistsActiveDuplicate(ctx, 1, "EXPIRED", "Old Sale", 0, now)
	require.NoError(t, err)
	assert.False(t, dup.CodeExists)
	assert.False(t, dup.NameExists)

	// 修改自己时排除目标券
	dup, err = store.Coupons().ExistsActiveDuplicate(ctx, 1, "SPRING", "Spring Sale", active.ID, now)
	require.NoError(t, err)
	assert.False(t, dup.CodeExists)
	assert.False(t, dup.NameExists)

	// 别的店同码不算重复
	dup, err = store.Coupons().ExistsActiveDuplicate(ctx, 3, "SPRING", "", 0, now)
	require.NoError(t, err)
	assert.False(t, dup.CodeExists)
}

func TestApplicationTransition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	code := "TRANS"
	app := domain.NewApplication(domain.ApplicationTypeCreate, 1, 2, 0, domain.CouponDraft{Code: &code})
	require.NoError(t, store.Applications().Create(ctx, app))
	require.NotZero(t, app.ID)

	pending, err := store.Applications().ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "TRANS", *pending[0].Draft.Code)

	ok, err := store.Applications().Transition(ctx, app.ID, domain.ApplicationStatusPending, domain.ApplicationStatusApproved, "", 42)
	require.NoError(t, err)
	assert.True(t, ok)

	// 已裁决的单子二次流转必败
	ok, err = store.Applications().Transition(ctx, app.ID, domain.ApplicationStatusPending, domain.ApplicationStatusRejected, "too late", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Applications().FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationStatusApproved, got.Status)
	assert.Equal(t, int64(42), got.ResultingCouponID)

	pending, err = store.Applications().ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDecrementRemainingNeverGoesNegative(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	campaign := seedCampaign(t, store, 1, domain.CampaignStatusActive)
	coupon := seedCoupon(t, store, 1, "QUOTA", "Quota coupon", time.Now().Add(24*time.Hour))

	const total = 5
	cc := &domain.CampaignCoupon{
		CampaignID:        campaign.ID,
		CouponID:          coupon.ID,
		TotalQuantity:     total,
		RemainingQuantity: total,
	}
	require.NoError(t, store.Campaigns().AttachCoupon(ctx, cc))

	// 重复挂同一张券撞唯一约束
	err := store.Campaigns().AttachCoupon(ctx, &domain.CampaignCoupon{
		CampaignID: campaign.ID, CouponID: coupon.ID, TotalQuantity: 1, RemainingQuantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// 比配额多得多的并发扣减, 成功数必须恰好等于配额
	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := store.Campaigns().DecrementRemaining(ctx, campaign.ID, coupon.ID)
			if err == nil && rows == 1 {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, total, succeeded)

	got, err := store.Campaigns().FindCampaignCoupon(ctx, campaign.ID, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RemainingQuantity)
	assert.Equal(t, total, got.TotalQuantity)
}

func TestUserCouponUniqueConstraint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	uc := &domain.UserCoupon{
		UserID:       7,
		CouponID:     11,
		CampaignID:   3,
		Status:       domain.UserCouponStatusActive,
		AcquiredDate: time.Now(),
	}
	require.NoError(t, store.UserCoupons().Create(ctx, uc))
	require.NotZero(t, uc.ID)

	dup := &domain.UserCoupon{
		UserID: 7, CouponID: 11, CampaignID: 3,
		Status: domain.UserCouponStatusActive, AcquiredDate: time.Now(),
	}
	assert.ErrorIs(t, store.UserCoupons().Create(ctx, dup), domain.ErrAlreadyRedeemed)

	got, err := store.UserCoupons().FindByUserAndCoupon(ctx, 7, 11)
	require.NoError(t, err)
	assert.Equal(t, uc.ID, got.ID)

	count, err := store.UserCoupons().CountByCampaignCoupon(ctx, 3, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkUsedSingleWinner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	uc := &domain.UserCoupon{
		UserID: 1, CouponID: 2,
		Status: domain.UserCouponStatusActive, AcquiredDate: time.Now(),
	}
	require.NoError(t, store.UserCoupons().Create(ctx, uc))

	// 两个订单抢同一张券, 只有一个能核销成功
	const orders = 2
	now := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < orders; i++ {
		orderID := string(rune('A' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.UserCoupons().MarkUsed(ctx, uc.ID, "order-"+orderID, now)
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)

	got, err := store.UserCoupons().FindByID(ctx, uc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserCouponStatusUsed, got.Status)
	assert.NotEmpty(t, got.OrderID)
	assert.False(t, got.UsedDate.IsZero())
}

func TestExpireSweepIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	expired := seedCoupon(t, store, 1, "GONE", "Expired coupon", now.Add(-time.Hour))
	alive := seedCoupon(t, store, 1, "LIVE", "Live coupon", now.Add(24*time.Hour))

	for userID, couponID := range map[int64]int64{1: expired.ID, 2: expired.ID, 3: alive.ID} {
		require.NoError(t, store.UserCoupons().Create(ctx, &domain.UserCoupon{
			UserID: userID, CouponID: couponID,
			Status: domain.UserCouponStatusActive, AcquiredDate: now,
		}))
	}
	// 已 USED 的行不受清扫影响
	used := &domain.UserCoupon{
		UserID: 4, CouponID: expired.ID,
		Status: domain.UserCouponStatusActive, AcquiredDate: now,
	}
	require.NoError(t, store.UserCoupons().Create(ctx, used))
	ok, err := store.UserCoupons().MarkUsed(ctx, used.ID, "order-x", now)
	require.NoError(t, err)
	require.True(t, ok)

	rows, err := store.UserCoupons().ExpireSweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	// 幂等: 再扫一遍是 no-op
	rows, err = store.UserCoupons().ExpireSweep(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, rows)

	got, err := store.UserCoupons().FindByUserAndCoupon(ctx, 3, alive.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserCouponStatusActive, got.Status)

	got, err = store.UserCoupons().FindByID(ctx, used.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserCouponStatusUsed, got.Status)
}

func TestInTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx domain.Store) error {
		if err := tx.UserCoupons().Create(ctx, &domain.UserCoupon{
			UserID: 9, CouponID: 9,
			Status: domain.UserCouponStatusActive, AcquiredDate: time.Now(),
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = store.UserCoupons().FindByUserAndCoupon(ctx, 9, 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
