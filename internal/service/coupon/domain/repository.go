package domain

import (
	"context"
	"time"
)

// DuplicateCheck 是同店重复校验的结果。
type DuplicateCheck struct {
	CodeExists bool
	NameExists bool
}

// CouponRepository 是优惠券的持久化接口。
// 这里只做存取，业务规则校验由调用方 (ApplicationWorkflow / ValidationGuard) 负责。
type CouponRepository interface {
	FindByID(ctx context.Context, id int64) (*Coupon, error)

	// ExistsActiveDuplicate 检查店铺内是否已有未过期 (endDate >= now) 的
	// 同码或同名优惠券。excludeCouponID > 0 时排除该券自身，
	// 供 UPDATE 审批复核使用。code/name 传空串表示不检查该维度。
	ExistsActiveDuplicate(ctx context.Context, shopID int64, code, name string, excludeCouponID int64, now time.Time) (DuplicateCheck, error)

	Create(ctx context.Context, coupon *Coupon) error
	Update(ctx context.Context, coupon *Coupon) error
	Delete(ctx context.Context, id int64) error
}

// ApplicationRepository 是审批单的持久化接口。
type ApplicationRepository interface {
	Create(ctx context.Context, app *CouponApplication) error
	FindByID(ctx context.Context, id int64) (*CouponApplication, error)
	ListPending(ctx context.Context) ([]*CouponApplication, error)

	// Transition 执行状态守护的条件更新:
	// UPDATE ... SET status=to ... WHERE id=? AND status=from。
	// 返回 false 表示没有命中任何行，即并发裁决已先一步落地。
	Transition(ctx context.Context, id int64, from, to ApplicationStatus, adminNotes string, resultingCouponID int64) (bool, error)
}

// CampaignRepository 是活动与活动配额记录的持久化接口。
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, campaign *Campaign) error
	FindCampaign(ctx context.Context, id int64) (*Campaign, error)
	FindCampaignCoupon(ctx context.Context, campaignID, couponID int64) (*CampaignCoupon, error)
	AttachCoupon(ctx context.Context, cc *CampaignCoupon) error
	DetachCoupon(ctx context.Context, campaignID, couponID int64) error

	// DecrementRemaining 是配额扣减的核心原语，必须是单条不可分割的
	// 存储操作: UPDATE ... SET remaining = remaining - 1
	// WHERE campaign_id=? AND coupon_id=? AND remaining > 0。
	// 返回受影响行数 (0 或 1)。0 行即售罄。
	DecrementRemaining(ctx context.Context, campaignID, couponID int64) (int64, error)
}

// UserCouponRepository 是领取台账的持久化接口。
type UserCouponRepository interface {
	FindByID(ctx context.Context, id int64) (*UserCoupon, error)
	FindByUserAndCoupon(ctx context.Context, userID, couponID int64) (*UserCoupon, error)
	ListByUser(ctx context.Context, userID int64) ([]*UserCoupon, error)
	CountByCoupon(ctx context.Context, couponID int64) (int64, error)
	CountByCampaignCoupon(ctx context.Context, campaignID, couponID int64) (int64, error)
	Create(ctx context.Context, uc *UserCoupon) error

	// MarkUsed 执行 UPDATE ... SET status='USED' WHERE id=? AND status='ACTIVE'。
	// 返回 false 表示券已被用掉或已过期。
	MarkUsed(ctx context.Context, id int64, orderID string, now time.Time) (bool, error)

	// ExpireSweep 批量执行 status='EXPIRED' WHERE status='ACTIVE'
	// AND 所属券的 end_date < now。幂等，返回本次扫过期的行数。
	ExpireSweep(ctx context.Context, now time.Time) (int64, error)
}

// Store 聚合四个仓储，并提供跨仓储的事务边界。
// InTx 内拿到的 Store 上的所有操作属于同一个数据库事务，
// 回调返回错误时整体回滚。
type Store interface {
	Coupons() CouponRepository
	Applications() ApplicationRepository
	Campaigns() CampaignRepository
	UserCoupons() UserCouponRepository
	InTx(ctx context.Context, fn func(tx Store) error) error
}
