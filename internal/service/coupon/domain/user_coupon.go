package domain

import "time"

// UserCouponStatus 定义了用户持券的生命周期状态。
type UserCouponStatus string

const (
	UserCouponStatusActive  UserCouponStatus = "ACTIVE"
	UserCouponStatusUsed    UserCouponStatus = "USED"
	UserCouponStatusExpired UserCouponStatus = "EXPIRED"
)

// UserCoupon 是领取台账里的一行: 某个用户领到了某张优惠券。
// 不变量: (UserID, CouponID) 至多存在一行。
// 它与配额扣减在同一个事务里原子创建；
// ACTIVE -> USED 由订单核销驱动，ACTIVE -> EXPIRED 由周期清扫驱动，
// 两者都是状态守护的条件更新，先落库者胜出。
type UserCoupon struct {
	ID           int64
	UserID       int64
	CouponID     int64
	CampaignID   int64 // 0 表示非活动渠道领取
	Status       UserCouponStatus
	AcquiredDate time.Time
	UsedDate     time.Time
	OrderID      string // 核销后指向订单, 空表示未核销
}

// Usable 检查持券当前是否可核销。
func (uc *UserCoupon) Usable() bool {
	return uc.Status == UserCouponStatusActive
}
