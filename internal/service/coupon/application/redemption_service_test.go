package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/internal/service/coupon/domain"
	"bazaar/internal/service/coupon/domain/port"
)

func TestRedeem(t *testing.T) {
	store := newTestStore(t)
	events := &stubEvents{}
	svc := NewRedemptionService(store, nil, nil, events, testTracer)
	ctx := context.Background()

	campaign := seedActiveCampaign(t, store, 10)
	coupon := seedCoupon(t, store, 10, "FLASH")
	attachQuota(t, store, campaign.ID, coupon.ID, 3)

	uc, err := svc.Redeem(ctx, 7, campaign.ID, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserCouponStatusActive, uc.Status)
	assert.Equal(t, int64(7), uc.UserID)

	// 配额同步扣减
	quota, err := store.Campaigns().FindCampaignCoupon(ctx, campaign.ID, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, quota.RemainingQuantity)

	require.Len(t, events.published, 1)
	assert.Equal(t, port.EventKindRedeemed, events.published[0].Kind)

	// 同一用户重复领取被打回, 配额不再变化
	_, err = svc.Redeem(ctx, 7, campaign.ID, coupon.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyRedeemed)
	quota, err = store.Campaigns().FindCampaignCoupon(ctx, campaign.ID, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, quota.RemainingQuantity)
}

func TestRedeemSoldOut(t *testing.T) {
	store := newTestStore(t)
	svc := NewRedemptionService(store, nil, nil, nil, testTracer)
	ctx := context.Background()

	campaign := seedActiveCampaign(t, store, 10)
	coupon := seedCoupon(t, store, 10, "ONE")
	attachQuota(t, store, campaign.ID, coupon.ID, 1)

	_, err := svc.Redeem(ctx, 1, campaign.ID, coupon.ID)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, 2, campaign.ID, coupon.ID)
	assert.ErrorIs(t, err, domain.ErrSoldOut)

	// 售罄不产生台账行
	_, err = store.UserCoupons().FindByUserAndCoupon(ctx, 2, coupon.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedeemRejectsInactiveCampaign(t *testing.T) {
	store := newTestStore(t)
	svc := NewRedemptionService(store, nil, nil, nil, testTracer)
	ctx := context.Background()

	coupon := seedCoupon(t, store, 10, "DARK")

	inactive := seedCampaignWindow(t, store, 10, domain.CampaignStatusInactive,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	attachQuota(t, store, inactive.ID, coupon.ID, 5)
	_, err := svc.Redeem(ctx, 1, inactive.ID, coupon.ID)
	assert.ErrorIs(t, err, domain.ErrExpiredOrInactive)

	ended := seedCampaignWindow(t, store, 10, domain.CampaignStatusActive,
		time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
	attachQuota(t, store, ended.ID, coupon.ID, 5)
	_, err = svc.Redeem(ctx, 1, ended.ID, coupon.ID)
	assert.ErrorIs(t, err, domain.ErrExpiredOrInactive)

	// 被打回的领取不动配额
	quota, err := store.Campaigns().FindCampaignCoupon(ctx, inactive.ID, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, quota.RemainingQuantity)
}

func TestRedeemUnknownPairing(t *testing.T) {
	store := newTestStore(t)
	svc := NewRedemptionService(store, nil, nil, nil, testTracer)
	ctx := context.Background()

	campaign := seedActiveCampaign(t, store, 10)
	coupon := seedCoupon(t, store, 10, "LONE")
	// 不挂券

	_, err := svc.Redeem(ctx, 1, campaign.ID, coupon.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Redeem(ctx, 1, 9999, coupon.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedeemGateShortCircuit(t *testing.T) {
	store := newTestStore(t)
	gate := &stubGate{result: port.GateResultSoldOut}
	svc := NewRedemptionService(store, gate, nil, nil, testTracer)
	ctx := context.Background()

	// 挡闸直接打回, 数据库完全不参与
	_, err := svc.Redeem(ctx, 1, 1, 1)
	assert.ErrorIs(t, err, domain.ErrSoldOut)
	assert.Equal(t, 1, gate.reserves)
	assert.Zero(t, gate.refunds)

	gate.result = port.GateResultAlreadyRedeemed
	_, err = svc.Redeem(ctx, 1, 1, 1)
	assert.ErrorIs(t, err, domain.ErrAlreadyRedeemed)
}

func TestRedeemRefundsGateOnTxFailure(t *testing.T) {
	store := newTestStore(t)
	gate := &stubGate{result: port.GateResultPass}
	svc := NewRedemptionService(store, gate, nil, nil, testTracer)
	ctx := context.Background()

	// 挡闸放行但活动不存在, 事务失败后必须归还影子额度
	_, err := svc.Redeem(ctx, 1, 9999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, gate.refunds)
}

func TestRedeemGateFailureFallsThrough(t *testing.T) {
	store := newTestStore(t)
	gate := &stubGate{err: errors.New("redis down")}
	svc := NewRedemptionService(store, gate, nil, nil, testTracer)
	ctx := context.Background()

	campaign := seedActiveCampaign(t, store, 10)
	coupon := seedCoupon(t, store, 10, "FALLBACK")
	attachQuota(t, store, campaign.ID, coupon.ID, 1)

	// 挡闸挂了也不影响领取, 退化为纯数据库裁决
	uc, err := svc.Redeem(ctx, 1, campaign.ID, coupon.ID)
	require.NoError(t, err)
	assert.NotZero(t, uc.ID)
	assert.Zero(t, gate.refunds)
}

func TestRedeemConcurrentQuotaExact(t *testing.T) {
	store := newTestStore(t)
	svc := NewRedemptionService(store, nil, nil, nil, testTracer)
	ctx := context.Background()

	campaign := seedActiveCampaign(t, store, 10)
	coupon := seedCoupon(t, store, 10, "HOT")
	const total = 5
	attachQuota(t, store, campaign.ID, coupon.ID, total)

	// 远多于配额的并发用户, 成功数必须恰好等于配额
	const users = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < users; i++ {
		userID := int64(i + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Redeem(ctx, userID, campaign.ID, coupon.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, total, succeeded)

	quota, err := store.Campaigns().FindCampaignCoupon(ctx, campaign.ID, coupon.ID)
	require.NoError(t, err)
	assert.Zero(t, quota.RemainingQuantity)
}

func TestMarkUsed(t *testing.T) {
	store := newTestStore(t)
	events := &stubEvents{}
	svc := NewRedemptionService(store, nil, nil, events, testTracer)
	ctx := context.Background()

	coupon := seedCoupon(t, store, 10, "USEME")
	uc := &domain.UserCoupon{
		UserID: 7, CouponID: coupon.ID,
		Status: domain.UserCouponStatusActive, AcquiredDate: time.Now(),
	}
	require.NoError(t, store.UserCoupons().Create(ctx, uc))

	require.NoError(t, svc.MarkUsed(ctx, uc.ID, "order-1", port.UsageFact{OrderAmount: 50}))

	got, err := store.UserCoupons().FindByID(ctx, uc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserCouponStatusUsed, got.Status)
	assert.Equal(t, "order-1", got.OrderID)

	require.Len(t, events.published, 1)
	assert.Equal(t, port.EventKindUsed, events.published[0].Kind)

	// 二次核销拿到 Conflict
	err = svc.MarkUsed(ctx, uc.ID, "order-2", port.UsageFact{})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestMarkUsedValidation(t *testing.T) {
	store := newTestStore(t)
	svc := NewRedemptionService(store, nil, nil, nil, testTracer)
	ctx := context.Background()

	assert.ErrorIs(t, svc.MarkUsed(ctx, 1, "", port.UsageFact{}), domain.ErrValidation)
	assert.ErrorIs(t, svc.MarkUsed(ctx, 404, "order-1", port.UsageFact{}), domain.ErrNotFound)
}

func TestMarkUsedUsageRule(t *testing.T) {
	store := newTestStore(t)
	rules := &stubRules{pass: false}
	svc := NewRedemptionService(store, nil, rules, nil, testTracer)
	ctx := context.Background()

	coupon := seedCoupon(t, store, 10, "RULED")
	coupon.UsageRule = "order_amount >= 100.0"
	require.NoError(t, store.Coupons().Update(ctx, coupon))

	uc := &domain.UserCoupon{
		UserID: 7, CouponID: coupon.ID,
		Status: domain.UserCouponStatusActive, AcquiredDate: time.Now(),
	}
	require.NoError(t, store.UserCoupons().Create(ctx, uc))

	// 规则不满足, 核销被打回, 券保持 ACTIVE
	err := svc.MarkUsed(ctx, uc.ID, "order-1", port.UsageFact{OrderAmount: 50})
	assert.ErrorIs(t, err, domain.ErrValidation)
	got, err := store.UserCoupons().FindByID(ctx, uc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserCouponStatusActive, got.Status)

	rules.pass = true
	require.NoError(t, svc.MarkUsed(ctx, uc.ID, "order-1", port.UsageFact{OrderAmount: 150}))
}

func TestExpireSweepService(t *testing.T) {
	store := newTestStore(t)
	svc := NewRedemptionService(store, nil, nil, nil, testTracer)
	ctx := context.Background()

	expired := &domain.Coupon{
		ShopID: 10, Code: "OLD", Name: "Old",
		DiscountType: domain.DiscountTypeFixed, DiscountValue: 5,
		StartDate: time.Now().Add(-48 * time.Hour),
		EndDate:   time.Now().Add(-24 * time.Hour),
	}
	require.NoError(t, store.Coupons().Create(ctx, expired))
	require.NoError(t, store.UserCoupons().Create(ctx, &domain.UserCoupon{
		UserID: 1, CouponID: expired.ID,
		Status: domain.UserCouponStatusActive, AcquiredDate: time.Now(),
	}))

	rows, err := svc.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = svc.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestListUserCoupons(t *testing.T) {
	store := newTestStore(t)
	svc := NewRedemptionService(store, nil, nil, nil, testTracer)
	ctx := context.Background()

	c1 := seedCoupon(t, store, 10, "A")
	c2 := seedCoupon(t, store, 10, "B")
	require.NoError(t, store.UserCoupons().Create(ctx, &domain.UserCoupon{
		UserID: 7, CouponID: c1.ID,
		Status: domain.UserCouponStatusActive, AcquiredDate: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, store.UserCoupons().Create(ctx, &domain.UserCoupon{
		UserID: 7, CouponID: c2.ID,
		Status: domain.UserCouponStatusActive, AcquiredDate: time.Now(),
	}))

	coupons, err := svc.ListUserCoupons(ctx, 7)
	require.NoError(t, err)
	require.Len(t, coupons, 2)
	// 按领取时间倒序
	assert.Equal(t, c2.ID, coupons[0].CouponID)

	coupons, err = svc.ListUserCoupons(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, coupons)
}
