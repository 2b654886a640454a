package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string            { return &s }
func dtPtr(t DiscountType) *DiscountType { return &t }
func f64Ptr(f float64) *float64          { return &f }
func timePtr(t time.Time) *time.Time     { return &t }

func validCreateDraft() CouponDraft {
	start := time.Now()
	end := start.Add(30 * 24 * time.Hour)
	return CouponDraft{
		Code:          strPtr("SUMMER10"),
		Name:          strPtr("Summer Sale"),
		DiscountType:  dtPtr(DiscountTypePercentage),
		DiscountValue: f64Ptr(10),
		StartDate:     timePtr(start),
		EndDate:       timePtr(end),
	}
}

func TestValidateDateRange(t *testing.T) {
	now := time.Now()

	assert.NoError(t, ValidateDateRange(now, now.Add(time.Hour)))

	err := ValidateDateRange(now.Add(time.Hour), now)
	assert.ErrorIs(t, err, ErrValidation)

	// 起止相等也不允许
	err = ValidateDateRange(now, now)
	assert.ErrorIs(t, err, ErrValidation)

	err = ValidateDateRange(time.Time{}, now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateDiscount(t *testing.T) {
	cases := []struct {
		name    string
		typ     DiscountType
		value   float64
		wantErr bool
	}{
		{"percentage in range", DiscountTypePercentage, 15, false},
		{"percentage at upper bound", DiscountTypePercentage, 100, false},
		{"percentage over 100", DiscountTypePercentage, 101, true},
		{"percentage zero", DiscountTypePercentage, 0, true},
		{"percentage negative", DiscountTypePercentage, -5, true},
		{"fixed positive", DiscountTypeFixed, 25.5, false},
		{"fixed zero", DiscountTypeFixed, 0, true},
		{"fixed negative", DiscountTypeFixed, -1, true},
		{"unknown type", DiscountType("BOGO"), 10, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDiscount(tc.typ, tc.value)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCreateDraft(t *testing.T) {
	assert.NoError(t, ValidateCreateDraft(validCreateDraft()))

	d := validCreateDraft()
	d.Code = strPtr("   ")
	assert.ErrorIs(t, ValidateCreateDraft(d), ErrValidation)

	d = validCreateDraft()
	d.Name = nil
	assert.ErrorIs(t, ValidateCreateDraft(d), ErrValidation)

	d = validCreateDraft()
	d.DiscountValue = nil
	assert.ErrorIs(t, ValidateCreateDraft(d), ErrValidation)

	d = validCreateDraft()
	d.EndDate = nil
	assert.ErrorIs(t, ValidateCreateDraft(d), ErrValidation)
}

func TestValidateUpdateDraft(t *testing.T) {
	target := &Coupon{
		DiscountType:  DiscountTypePercentage,
		DiscountValue: 10,
		StartDate:     time.Now(),
		EndDate:       time.Now().Add(24 * time.Hour),
	}

	// 空草稿是合法的 no-op
	assert.NoError(t, ValidateUpdateDraft(CouponDraft{}, target))

	// 只改折扣值, 与目标券的类型合并后校验
	assert.NoError(t, ValidateUpdateDraft(CouponDraft{DiscountValue: f64Ptr(50)}, target))
	assert.ErrorIs(t, ValidateUpdateDraft(CouponDraft{DiscountValue: f64Ptr(150)}, target), ErrValidation)

	// 改成 FIXED 后 150 就合法了
	assert.NoError(t, ValidateUpdateDraft(CouponDraft{
		DiscountType:  dtPtr(DiscountTypeFixed),
		DiscountValue: f64Ptr(150),
	}, target))

	// 只改结束时间, 与目标券的开始时间合并后校验
	assert.ErrorIs(t, ValidateUpdateDraft(CouponDraft{
		EndDate: timePtr(target.StartDate.Add(-time.Hour)),
	}, target), ErrValidation)

	assert.ErrorIs(t, ValidateUpdateDraft(CouponDraft{Code: strPtr("")}, target), ErrValidation)
}

func TestValidateQuantityAndShopMatch(t *testing.T) {
	assert.NoError(t, ValidateQuantity(1))
	assert.ErrorIs(t, ValidateQuantity(0), ErrValidation)
	assert.ErrorIs(t, ValidateQuantity(-10), ErrValidation)

	assert.NoError(t, ValidateShopMatch(7, 7))
	assert.ErrorIs(t, ValidateShopMatch(7, 8), ErrValidation)
}
