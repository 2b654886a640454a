package application

import (
	"time"

	"bazaar/internal/service/coupon/domain"
)

// CouponDraftDTO 是审批单提案字段集的传输结构。
// 字段缺省即"不变更"。
type CouponDraftDTO struct {
	Code          *string    `json:"code,omitempty"`
	Name          *string    `json:"name,omitempty"`
	DiscountType  *string    `json:"discount_type,omitempty"`
	DiscountValue *float64   `json:"discount_value,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	UsageLimit    *int       `json:"usage_limit,omitempty"`
	UsagePerUser  *int       `json:"usage_per_user,omitempty"`
	UsageRule     *string    `json:"usage_rule,omitempty"`
}

// ToDomain 转换为领域草稿。
func (d *CouponDraftDTO) ToDomain() domain.CouponDraft {
	draft := domain.CouponDraft{
		Code:          d.Code,
		Name:          d.Name,
		DiscountValue: d.DiscountValue,
		StartDate:     d.StartDate,
		EndDate:       d.EndDate,
		UsageLimit:    d.UsageLimit,
		UsagePerUser:  d.UsagePerUser,
		UsageRule:     d.UsageRule,
	}
	if d.DiscountType != nil {
		t := domain.DiscountType(*d.DiscountType)
		draft.DiscountType = &t
	}
	return draft
}

// SubmitCreateRequest 是卖家提交新建优惠券审批的请求体。
type SubmitCreateRequest struct {
	SellerID int64          `json:"seller_id"`
	ShopID   int64          `json:"shop_id"`
	Coupon   CouponDraftDTO `json:"coupon"`
}

// SubmitUpdateRequest 是卖家提交修改优惠券审批的请求体。
type SubmitUpdateRequest struct {
	SellerID       int64          `json:"seller_id"`
	TargetCouponID int64          `json:"target_coupon_id"`
	Coupon         CouponDraftDTO `json:"coupon"`
}

// SubmitDeleteRequest 是卖家提交删除优惠券审批的请求体。
type SubmitDeleteRequest struct {
	SellerID       int64 `json:"seller_id"`
	TargetCouponID int64 `json:"target_coupon_id"`
}

// DecisionRequest 是管理员裁决审批单的请求体。
type DecisionRequest struct {
	ApplicationID int64  `json:"application_id"`
	AdminID       int64  `json:"admin_id"`
	Reason        string `json:"reason,omitempty"`
}

// AttachCouponRequest 把优惠券挂到活动上。
type AttachCouponRequest struct {
	CampaignID    int64 `json:"campaign_id"`
	CouponID      int64 `json:"coupon_id"`
	TotalQuantity int   `json:"total_quantity"`
}

// DetachCouponRequest 把优惠券从活动上摘下。
type DetachCouponRequest struct {
	CampaignID int64 `json:"campaign_id"`
	CouponID   int64 `json:"coupon_id"`
}

// RedeemRequest 是终端用户领券的请求体。
type RedeemRequest struct {
	UserID     int64 `json:"user_id"`
	CampaignID int64 `json:"campaign_id"`
	CouponID   int64 `json:"coupon_id"`
}

// UseCouponRequest 是订单子系统核销用户持券的请求体。
type UseCouponRequest struct {
	UserCouponID int64   `json:"user_coupon_id"`
	OrderID      string  `json:"order_id"`
	OrderAmount  float64 `json:"order_amount"`
	ItemCount    int     `json:"item_count"`
}

// ApplicationResponse 是审批单的对外视图。
type ApplicationResponse struct {
	ID                int64     `json:"id"`
	Type              string    `json:"type"`
	SellerID          int64     `json:"seller_id"`
	ShopID            int64     `json:"shop_id"`
	TargetCouponID    int64     `json:"target_coupon_id,omitempty"`
	Status            string    `json:"status"`
	AdminNotes        string    `json:"admin_notes,omitempty"`
	ResultingCouponID int64     `json:"resulting_coupon_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewApplicationResponse 从领域对象构建对外视图。
func NewApplicationResponse(app *domain.CouponApplication) *ApplicationResponse {
	return &ApplicationResponse{
		ID:                app.ID,
		Type:              string(app.Type),
		SellerID:          app.SellerID,
		ShopID:            app.ShopID,
		TargetCouponID:    app.TargetCouponID,
		Status:            string(app.Status),
		AdminNotes:        app.AdminNotes,
		ResultingCouponID: app.ResultingCouponID,
		CreatedAt:         app.CreatedAt,
	}
}

// UserCouponResponse 是用户持券的对外视图。
type UserCouponResponse struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	CouponID     int64      `json:"coupon_id"`
	CampaignID   int64      `json:"campaign_id,omitempty"`
	Status       string     `json:"status"`
	AcquiredDate time.Time  `json:"acquired_date"`
	UsedDate     *time.Time `json:"used_date,omitempty"`
	OrderID      string     `json:"order_id,omitempty"`
}

// NewUserCouponResponse 从领域对象构建对外视图。
func NewUserCouponResponse(uc *domain.UserCoupon) *UserCouponResponse {
	resp := &UserCouponResponse{
		ID:           uc.ID,
		UserID:       uc.UserID,
		CouponID:     uc.CouponID,
		CampaignID:   uc.CampaignID,
		Status:       string(uc.Status),
		AcquiredDate: uc.AcquiredDate,
		OrderID:      uc.OrderID,
	}
	if !uc.UsedDate.IsZero() {
		t := uc.UsedDate
		resp.UsedDate = &t
	}
	return resp
}

// DuplicateCheckResponse 是同店重复校验的响应体。
type DuplicateCheckResponse struct {
	CodeExists bool `json:"code_exists"`
	NameExists bool `json:"name_exists"`
}
