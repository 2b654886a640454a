package domain

import "time"

// DiscountType 定义了优惠的计算方式。
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE" // 折扣
	DiscountTypeFixed      DiscountType = "FIXED"      // 立减
)

// Coupon 是店铺范围内的优惠券定义，属于且仅属于一个店铺。
// 它的创建/修改/删除只能通过 CouponApplication 审批流程落地，
// 或者由管理员直接操作。
type Coupon struct {
	ID            int64
	ShopID        int64
	Code          string
	Name          string
	DiscountType  DiscountType
	DiscountValue float64
	StartDate     time.Time
	EndDate       time.Time
	UsageLimit    int // 全局可用次数上限, 0 表示不限
	UsagePerUser  int // 单用户可领取/使用次数上限, 0 表示不限
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// UsageRule 是一个可选的 CEL 表达式，在核销时基于订单事实求值。
	// 例如: "order_amount >= 100.0"。空字符串表示无附加规则。
	UsageRule string

	// Redeemed 是旧版"无主券池"功能遗留的单次领取标记。
	// 数量模型以 CampaignCoupon/UserCoupon 为准，领取路径不读它。
	Redeemed bool
}

// ActiveAt 检查优惠券在给定时刻是否处于有效期内。
func (c *Coupon) ActiveAt(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// ExpiredAt 检查优惠券在给定时刻是否已过期。
func (c *Coupon) ExpiredAt(now time.Time) bool {
	return c.EndDate.Before(now)
}
