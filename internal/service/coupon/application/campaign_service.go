package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/coupon/domain"
	"bazaar/internal/service/coupon/domain/port"
)

// CampaignService 管理活动配额记录: 挂券、摘券。
// 配额扣减本身走 RedemptionService 的领取事务。
type CampaignService struct {
	store  domain.Store
	gate   port.QuotaGate // 可为 nil, 表示不启用挡闸
	tracer trace.Tracer
}

// NewCampaignService 创建活动配额服务。
func NewCampaignService(store domain.Store, gate port.QuotaGate, tracer trace.Tracer) *CampaignService {
	return &CampaignService{store: store, gate: gate, tracer: tracer}
}

// AttachCoupon 把优惠券挂到活动上, 初始 remaining = total。
// (campaignID, couponID) 已存在时返回 Conflict,
// 跨店铺挂券返回 ValidationError。
func (s *CampaignService) AttachCoupon(ctx context.Context, campaignID, couponID int64, totalQuantity int) (*domain.CampaignCoupon, error) {
	ctx, span := s.tracer.Start(ctx, "campaign.AttachCoupon")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("campaign.id", campaignID),
		attribute.Int64("coupon.id", couponID),
		attribute.Int("quota.total", totalQuantity),
	)

	if err := domain.ValidateQuantity(totalQuantity); err != nil {
		span.RecordError(err)
		return nil, err
	}
	campaign, err := s.store.Campaigns().FindCampaign(ctx, campaignID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	coupon, err := s.store.Coupons().FindByID(ctx, couponID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := domain.ValidateShopMatch(coupon.ShopID, campaign.ShopID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	cc := &domain.CampaignCoupon{
		CampaignID:        campaignID,
		CouponID:          couponID,
		TotalQuantity:     totalQuantity,
		RemainingQuantity: totalQuantity,
	}
	if err := s.store.Campaigns().AttachCoupon(ctx, cc); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// 同步影子库存。失败不回滚挂券: 挡闸未初始化时会全量放行到数据库
	if s.gate != nil {
		if err := s.gate.Prime(ctx, campaignID, couponID, totalQuantity); err != nil {
			logger.Ctx(ctx).Printf("WARN: failed to prime quota gate for campaign %d coupon %d: %v", campaignID, couponID, err)
		}
	}

	logger.Ctx(ctx).Printf("Attached coupon %d to campaign %d with quota %d", couponID, campaignID, totalQuantity)
	return cc, nil
}

// DetachCoupon 把优惠券从活动上摘下。
// 已有用户领取记录时拒绝摘券, 返回 Conflict。
// 计数与删除在同一个事务里, 防止检查与删除之间插进新领取。
func (s *CampaignService) DetachCoupon(ctx context.Context, campaignID, couponID int64) error {
	ctx, span := s.tracer.Start(ctx, "campaign.DetachCoupon")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("campaign.id", campaignID),
		attribute.Int64("coupon.id", couponID),
	)

	err := s.store.InTx(ctx, func(tx domain.Store) error {
		claims, err := tx.UserCoupons().CountByCampaignCoupon(ctx, campaignID, couponID)
		if err != nil {
			return err
		}
		if claims > 0 {
			return fmt.Errorf("%w: %d users already redeemed from campaign %d coupon %d", domain.ErrConflict, claims, campaignID, couponID)
		}
		return tx.Campaigns().DetachCoupon(ctx, campaignID, couponID)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	if s.gate != nil {
		if err := s.gate.Drop(ctx, campaignID, couponID); err != nil {
			logger.Ctx(ctx).Printf("WARN: failed to drop quota gate for campaign %d coupon %d: %v", campaignID, couponID, err)
		}
	}
	logger.Ctx(ctx).Printf("Detached coupon %d from campaign %d", couponID, campaignID)
	return nil
}

// GetQuota 查询一条活动配额记录。
func (s *CampaignService) GetQuota(ctx context.Context, campaignID, couponID int64) (*domain.CampaignCoupon, error) {
	ctx, span := s.tracer.Start(ctx, "campaign.GetQuota")
	defer span.End()
	return s.store.Campaigns().FindCampaignCoupon(ctx, campaignID, couponID)
}
