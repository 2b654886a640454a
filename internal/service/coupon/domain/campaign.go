package domain

import "time"

// CampaignStatus 定义了活动的生命周期状态。
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "ACTIVE"
	CampaignStatusInactive CampaignStatus = "INACTIVE"
	CampaignStatusEnded    CampaignStatus = "ENDED"
)

// Campaign 是一个限时促销活动，向公众开放若干优惠券的领取。
type Campaign struct {
	ID        int64
	ShopID    int64
	Name      string
	Status    CampaignStatus
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Redeemable 检查活动当前是否可领取: 状态 ACTIVE 且在活动窗口内。
func (c *Campaign) Redeemable(now time.Time) bool {
	return c.Status == CampaignStatusActive &&
		!now.Before(c.StartDate) && !now.After(c.EndDate)
}

// CampaignCoupon 是优惠券挂到活动上的配额记录。
// 不变量: 0 <= RemainingQuantity <= TotalQuantity 在任意时刻成立，
// (CampaignID, CouponID) 全局唯一。
// RemainingQuantity 只能由存储层的原子条件更新递减，
// 绝不允许应用层先读后写。
type CampaignCoupon struct {
	ID                int64
	CampaignID        int64
	CouponID          int64
	TotalQuantity     int
	RemainingQuantity int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
