// internal/service/coupon/infrastructure/models.go
package infrastructure

import (
	"database/sql"
	"time"
)

// CouponModel 是 Coupon 领域对象在数据库中的表示。
type CouponModel struct {
	ID            int64  `gorm:"primaryKey"`
	ShopID        int64  `gorm:"index:idx_shop_code;index:idx_shop_name"`
	Code          string `gorm:"size:64;index:idx_shop_code"`
	Name          string `gorm:"size:128;index:idx_shop_name"`
	DiscountType  string `gorm:"size:16"`
	DiscountValue float64 `gorm:"type:decimal(10,2)"`
	StartDate     time.Time
	EndDate       time.Time `gorm:"index"`
	UsageLimit    int
	UsagePerUser  int
	UsageRule     string `gorm:"type:text"`
	Redeemed      bool   // 旧版无主券池遗留字段
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (CouponModel) TableName() string {
	return "coupons"
}

// CouponApplicationModel 是审批单在数据库中的表示。
// Draft 以 JSON 存储提案字段集，未设置的字段在 JSON 中缺省。
type CouponApplicationModel struct {
	ID                int64  `gorm:"primaryKey"`
	Type              string `gorm:"size:16"`
	SellerID          int64  `gorm:"index"`
	ShopID            int64
	TargetCouponID    int64
	Draft             string `gorm:"type:json"`
	Status            string `gorm:"size:16;index"`
	AdminNotes        string `gorm:"type:text"`
	ResultingCouponID int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (CouponApplicationModel) TableName() string {
	return "coupon_applications"
}

// CampaignModel 是活动在数据库中的表示。
type CampaignModel struct {
	ID        int64  `gorm:"primaryKey"`
	ShopID    int64  `gorm:"index"`
	Name      string `gorm:"size:128"`
	Status    string `gorm:"size:16"`
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// CampaignCouponModel 是活动配额记录。
// (campaign_id, coupon_id) 唯一约束兜底挂券并发。
type CampaignCouponModel struct {
	ID                int64 `gorm:"primaryKey"`
	CampaignID        int64 `gorm:"uniqueIndex:uk_campaign_coupon"`
	CouponID          int64 `gorm:"uniqueIndex:uk_campaign_coupon"`
	TotalQuantity     int
	RemainingQuantity int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (CampaignCouponModel) TableName() string {
	return "campaign_coupons"
}

// UserCouponModel 是领取台账。
// (user_id, coupon_id) 唯一约束是"一人一券"的最后防线，
// 即使应用层查重被并发穿透，插入也会在这里失败并回滚整个事务。
type UserCouponModel struct {
	ID           int64  `gorm:"primaryKey"`
	UserID       int64  `gorm:"uniqueIndex:uk_user_coupon"`
	CouponID     int64  `gorm:"uniqueIndex:uk_user_coupon"`
	CampaignID   int64  `gorm:"index"`
	Status       string `gorm:"size:16;index"`
	AcquiredDate time.Time
	UsedDate     sql.NullTime
	OrderID      sql.NullString `gorm:"size:64"`
}

func (UserCouponModel) TableName() string {
	return "user_coupons"
}
