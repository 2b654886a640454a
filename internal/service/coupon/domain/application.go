package domain

import (
	"fmt"
	"time"
)

// ApplicationType 定义了卖家提交的变更类型。
type ApplicationType string

const (
	ApplicationTypeCreate ApplicationType = "CREATE"
	ApplicationTypeUpdate ApplicationType = "UPDATE"
	ApplicationTypeDelete ApplicationType = "DELETE"
)

// ApplicationStatus 定义了审批单的生命周期状态。
// PENDING -> {APPROVED, REJECTED}，两个终态都不可逆，审批单永不重开。
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// CouponDraft 是审批单携带的提案字段集。
// 指针为 nil 表示"不变更该字段"，这让 UPDATE 只携带增量。
type CouponDraft struct {
	Code          *string
	Name          *string
	DiscountType  *DiscountType
	DiscountValue *float64
	StartDate     *time.Time
	EndDate       *time.Time
	UsageLimit    *int
	UsagePerUser  *int
	UsageRule     *string
}

// ApplyTo 将草稿中已设置的字段套用到目标优惠券上。
func (d *CouponDraft) ApplyTo(c *Coupon) {
	if d.Code != nil {
		c.Code = *d.Code
	}
	if d.Name != nil {
		c.Name = *d.Name
	}
	if d.DiscountType != nil {
		c.DiscountType = *d.DiscountType
	}
	if d.DiscountValue != nil {
		c.DiscountValue = *d.DiscountValue
	}
	if d.StartDate != nil {
		c.StartDate = *d.StartDate
	}
	if d.EndDate != nil {
		c.EndDate = *d.EndDate
	}
	if d.UsageLimit != nil {
		c.UsageLimit = *d.UsageLimit
	}
	if d.UsagePerUser != nil {
		c.UsagePerUser = *d.UsagePerUser
	}
	if d.UsageRule != nil {
		c.UsageRule = *d.UsageRule
	}
}

// CouponApplication 是卖家提交、管理员裁决的优惠券变更审批单。
type CouponApplication struct {
	ID             int64
	Type           ApplicationType
	SellerID       int64
	ShopID         int64
	TargetCouponID int64 // UPDATE/DELETE 必填; CREATE 为 0
	Draft          CouponDraft
	Status         ApplicationStatus
	AdminNotes     string

	// ResultingCouponID 仅在 CREATE 审批通过后写入。
	ResultingCouponID int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewApplication 创建一张处于 PENDING 状态的审批单。
func NewApplication(t ApplicationType, sellerID, shopID, targetCouponID int64, draft CouponDraft) *CouponApplication {
	now := time.Now()
	return &CouponApplication{
		Type:           t,
		SellerID:       sellerID,
		ShopID:         shopID,
		TargetCouponID: targetCouponID,
		Draft:          draft,
		Status:         ApplicationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Approve 在内存中做状态流转的前置校验。
// 并发下的最终裁决由存储层的条件更新 (WHERE status='PENDING') 保证，
// 这里只挡掉明显的非法调用。
func (a *CouponApplication) Approve() error {
	if a.Status != ApplicationStatusPending {
		return fmt.Errorf("%w: application %d is %s, only PENDING can be approved", ErrInvalidState, a.ID, a.Status)
	}
	a.Status = ApplicationStatusApproved
	a.UpdatedAt = time.Now()
	return nil
}

// Reject 将审批单置为 REJECTED 并记录理由。不触碰任何优惠券。
func (a *CouponApplication) Reject(reason string) error {
	if a.Status != ApplicationStatusPending {
		return fmt.Errorf("%w: application %d is %s, only PENDING can be rejected", ErrInvalidState, a.ID, a.Status)
	}
	a.Status = ApplicationStatusRejected
	a.AdminNotes = reason
	a.UpdatedAt = time.Now()
	return nil
}
