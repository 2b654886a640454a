package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/metrics"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/coupon/domain"
	"bazaar/internal/service/coupon/domain/port"
)

// RedemptionService 是领取台账的编排者:
// 领取 (redeem)、核销 (markUsed)、过期清扫 (expireSweep)。
// 领取的五步 — 活动校验、配对校验、查重、配额扣减、台账插入 —
// 在同一个数据库事务里执行, 任何一步失败整体回滚,
// 配额绝不会被扣掉而台账没有对应行, 反之亦然。
type RedemptionService struct {
	store  domain.Store
	gate   port.QuotaGate        // 可为 nil
	rules  port.UsageRuleEngine  // 可为 nil
	events port.EventPublisher   // 可为 nil
	tracer trace.Tracer
	now    func() time.Time
}

// NewRedemptionService 创建领取服务。
func NewRedemptionService(store domain.Store, gate port.QuotaGate, rules port.UsageRuleEngine, events port.EventPublisher, tracer trace.Tracer) *RedemptionService {
	return &RedemptionService{
		store:  store,
		gate:   gate,
		rules:  rules,
		events: events,
		tracer: tracer,
		now:    time.Now,
	}
}

// Redeem 为用户领取一张活动优惠券。
// 挡闸 (如启用) 先把明显的售罄/重复流量打回, 放行的请求再进数据库
// 事务裁决。数据库事务失败时归还挡闸预占。
// 失败结果是典型业务错误: AlreadyRedeemed / SoldOut /
// ExpiredOrInactive / NotFound, 都可安全重试 —
// (userID, couponID) 查重让整个操作按用户幂等。
func (s *RedemptionService) Redeem(ctx context.Context, userID, campaignID, couponID int64) (*domain.UserCoupon, error) {
	ctx, span := s.tracer.Start(ctx, "redemption.Redeem")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("campaign.id", campaignID),
		attribute.Int64("coupon.id", couponID),
	)
	started := s.now()
	defer func() {
		metrics.RedeemDuration.Observe(time.Since(started).Seconds())
	}()

	reserved := false
	if s.gate != nil {
		result, err := s.gate.Reserve(ctx, campaignID, couponID, userID)
		if err != nil {
			// 挡闸故障不拦路, 退化为纯数据库裁决
			logger.Ctx(ctx).Printf("WARN: quota gate unavailable, falling through to DB: %v", err)
		} else {
			switch result {
			case port.GateResultSoldOut:
				metrics.QuotaGateRejects.WithLabelValues("sold_out").Inc()
				metrics.RedeemTotal.WithLabelValues("sold_out").Inc()
				return nil, fmt.Errorf("%w: campaign %d coupon %d", domain.ErrSoldOut, campaignID, couponID)
			case port.GateResultAlreadyRedeemed:
				metrics.QuotaGateRejects.WithLabelValues("already_redeemed").Inc()
				metrics.RedeemTotal.WithLabelValues("already_redeemed").Inc()
				return nil, fmt.Errorf("%w: user %d coupon %d", domain.ErrAlreadyRedeemed, userID, couponID)
			case port.GateResultPass:
				reserved = true
			}
		}
	}

	now := s.now()
	var created *domain.UserCoupon
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		// 1. 活动必须 ACTIVE 且在窗口内
		campaign, err := tx.Campaigns().FindCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if !campaign.Redeemable(now) {
			return fmt.Errorf("%w: campaign %d", domain.ErrExpiredOrInactive, campaignID)
		}

		// 2. 优惠券与配对记录必须存在
		if _, err := tx.Coupons().FindByID(ctx, couponID); err != nil {
			return err
		}
		if _, err := tx.Campaigns().FindCampaignCoupon(ctx, campaignID, couponID); err != nil {
			return err
		}

		// 3. 查重。与第 5 步的插入同处一个事务, 并发穿透由
		//    (user_id, coupon_id) 唯一约束兜底
		_, err = tx.UserCoupons().FindByUserAndCoupon(ctx, userID, couponID)
		if err == nil {
			return fmt.Errorf("%w: user %d coupon %d", domain.ErrAlreadyRedeemed, userID, couponID)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		// 4. 原子扣减配额, 0 行命中即售罄
		rows, err := tx.Campaigns().DecrementRemaining(ctx, campaignID, couponID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: campaign %d coupon %d", domain.ErrSoldOut, campaignID, couponID)
		}

		// 5. 写台账。失败时整个事务连同第 4 步的扣减一起回滚
		uc := &domain.UserCoupon{
			UserID:       userID,
			CouponID:     couponID,
			CampaignID:   campaignID,
			Status:       domain.UserCouponStatusActive,
			AcquiredDate: now,
		}
		if err := tx.UserCoupons().Create(ctx, uc); err != nil {
			return err
		}
		created = uc
		return nil
	})
	if err != nil {
		if reserved {
			if rerr := s.gate.Refund(ctx, campaignID, couponID, userID); rerr != nil {
				logger.Ctx(ctx).Printf("ERROR: failed to refund quota gate for user %d campaign %d coupon %d: %v", userID, campaignID, couponID, rerr)
			}
		}
		span.RecordError(err)
		metrics.RedeemTotal.WithLabelValues(redeemOutcome(err)).Inc()
		return nil, err
	}

	metrics.RedeemTotal.WithLabelValues("success").Inc()
	logger.Ctx(ctx).Printf("User %d redeemed coupon %d from campaign %d (user coupon %d)", userID, couponID, campaignID, created.ID)
	s.publish(ctx, &port.CouponEvent{
		Kind:       port.EventKindRedeemed,
		UserID:     userID,
		CouponID:   couponID,
		CampaignID: campaignID,
	})
	return created, nil
}

func redeemOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrSoldOut):
		return "sold_out"
	case errors.Is(err, domain.ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, domain.ErrExpiredOrInactive):
		return "expired_or_inactive"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// MarkUsed 在下单时核销一张用户持券。
// 状态守护的条件更新保证同一张券不会被两个订单同时用掉;
// 与 expireSweep 竞争时先落库者胜出, 另一方拿到 Conflict。
func (s *RedemptionService) MarkUsed(ctx context.Context, userCouponID int64, orderID string, fact port.UsageFact) error {
	ctx, span := s.tracer.Start(ctx, "redemption.MarkUsed")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user_coupon.id", userCouponID),
		attribute.String("order.id", orderID),
	)

	if orderID == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	uc, err := s.store.UserCoupons().FindByID(ctx, userCouponID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	// 用券规则求值。规则为空直接放行
	coupon, err := s.store.Coupons().FindByID(ctx, uc.CouponID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if coupon.UsageRule != "" && s.rules != nil {
		ok, err := s.rules.Evaluate(coupon.UsageRule, fact)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if !ok {
			return fmt.Errorf("%w: usage rule not satisfied for coupon %d", domain.ErrValidation, coupon.ID)
		}
	}

	ok, err := s.store.UserCoupons().MarkUsed(ctx, userCouponID, orderID, s.now())
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user coupon %d already used or expired", domain.ErrConflict, userCouponID)
	}

	logger.Ctx(ctx).Printf("User coupon %d used by order %s", userCouponID, orderID)
	s.publish(ctx, &port.CouponEvent{
		Kind:     port.EventKindUsed,
		UserID:   uc.UserID,
		CouponID: uc.CouponID,
		OrderID:  orderID,
	})
	return nil
}

// ExpireSweep 把有效期已过的 ACTIVE 持券批量置为 EXPIRED。
// 幂等, 由外部调度器周期触发, 重复调用是 no-op。
func (s *RedemptionService) ExpireSweep(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "redemption.ExpireSweep")
	defer span.End()

	rows, err := s.store.UserCoupons().ExpireSweep(ctx, s.now())
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if rows > 0 {
		metrics.ExpireSweepRows.Add(float64(rows))
		logger.Ctx(ctx).Printf("Expire sweep marked %d user coupons expired", rows)
	}
	span.SetAttributes(attribute.Int64("sweep.rows", rows))
	return rows, nil
}

// ListUserCoupons 返回一个用户的全部持券, 按领取时间倒序。
func (s *RedemptionService) ListUserCoupons(ctx context.Context, userID int64) ([]*domain.UserCoupon, error) {
	ctx, span := s.tracer.Start(ctx, "redemption.ListUserCoupons")
	defer span.End()
	return s.store.UserCoupons().ListByUser(ctx, userID)
}

func (s *RedemptionService) publish(ctx context.Context, event *port.CouponEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Printf("WARN: failed to publish %s event: %v", event.Kind, err)
	}
}
