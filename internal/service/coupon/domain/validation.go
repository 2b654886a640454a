package domain

import (
	"fmt"
	"strings"
	"time"
)

// 纯校验函数，无副作用。
// 提交审批单时由 ApplicationWorkflow 调用，
// 任何直接写 CouponRegistry 的调用方也应先走这里。

// ValidateDateRange 校验有效期区间。
func ValidateDateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start date and end date are required", ErrValidation)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start date must be before end date", ErrValidation)
	}
	return nil
}

// ValidateDiscount 校验优惠类型和数值边界。
func ValidateDiscount(t DiscountType, value float64) error {
	switch t {
	case DiscountTypePercentage:
		if value <= 0 || value > 100 {
			return fmt.Errorf("%w: percentage discount must be in (0, 100], got %v", ErrValidation, value)
		}
	case DiscountTypeFixed:
		if value <= 0 {
			return fmt.Errorf("%w: fixed discount must be positive, got %v", ErrValidation, value)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrValidation, t)
	}
	return nil
}

// ValidateCreateDraft 校验 CREATE 审批单必须携带的完整字段集。
func ValidateCreateDraft(d CouponDraft) error {
	if d.Code == nil || strings.TrimSpace(*d.Code) == "" {
		return fmt.Errorf("%w: coupon code is required", ErrValidation)
	}
	if d.Name == nil || strings.TrimSpace(*d.Name) == "" {
		return fmt.Errorf("%w: coupon name is required", ErrValidation)
	}
	if d.DiscountType == nil || d.DiscountValue == nil {
		return fmt.Errorf("%w: discount type and value are required", ErrValidation)
	}
	if err := ValidateDiscount(*d.DiscountType, *d.DiscountValue); err != nil {
		return err
	}
	if d.StartDate == nil || d.EndDate == nil {
		return fmt.Errorf("%w: validity window is required", ErrValidation)
	}
	return ValidateDateRange(*d.StartDate, *d.EndDate)
}

// ValidateUpdateDraft 只校验草稿中实际出现的增量字段。
func ValidateUpdateDraft(d CouponDraft, target *Coupon) error {
	if d.Code != nil && strings.TrimSpace(*d.Code) == "" {
		return fmt.Errorf("%w: coupon code cannot be blank", ErrValidation)
	}
	if d.Name != nil && strings.TrimSpace(*d.Name) == "" {
		return fmt.Errorf("%w: coupon name cannot be blank", ErrValidation)
	}
	if d.DiscountType != nil || d.DiscountValue != nil {
		t := target.DiscountType
		v := target.DiscountValue
		if d.DiscountType != nil {
			t = *d.DiscountType
		}
		if d.DiscountValue != nil {
			v = *d.DiscountValue
		}
		if err := ValidateDiscount(t, v); err != nil {
			return err
		}
	}
	if d.StartDate != nil || d.EndDate != nil {
		start := target.StartDate
		end := target.EndDate
		if d.StartDate != nil {
			start = *d.StartDate
		}
		if d.EndDate != nil {
			end = *d.EndDate
		}
		return ValidateDateRange(start, end)
	}
	return nil
}

// ValidateQuantity 校验活动配额。
func ValidateQuantity(total int) error {
	if total <= 0 {
		return fmt.Errorf("%w: total quantity must be positive, got %d", ErrValidation, total)
	}
	return nil
}

// ValidateShopMatch 校验优惠券与活动归属同一家店铺。
func ValidateShopMatch(couponShopID, campaignShopID int64) error {
	if couponShopID != campaignShopID {
		return fmt.Errorf("%w: coupon belongs to shop %d, campaign to shop %d", ErrValidation, couponShopID, campaignShopID)
	}
	return nil
}
