package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApplicationStartsPending(t *testing.T) {
	app := NewApplication(ApplicationTypeCreate, 1, 2, 0, validCreateDraft())
	assert.Equal(t, ApplicationStatusPending, app.Status)
	assert.Equal(t, int64(1), app.SellerID)
	assert.Equal(t, int64(2), app.ShopID)
	assert.Zero(t, app.TargetCouponID)
}

func TestApplicationApprove(t *testing.T) {
	app := NewApplication(ApplicationTypeCreate, 1, 2, 0, validCreateDraft())
	require.NoError(t, app.Approve())
	assert.Equal(t, ApplicationStatusApproved, app.Status)

	// 终态不可二次裁决
	assert.ErrorIs(t, app.Approve(), ErrInvalidState)
	assert.ErrorIs(t, app.Reject("late"), ErrInvalidState)
}

func TestApplicationReject(t *testing.T) {
	app := NewApplication(ApplicationTypeUpdate, 1, 2, 99, CouponDraft{Name: strPtr("New name")})
	require.NoError(t, app.Reject("discount too aggressive"))
	assert.Equal(t, ApplicationStatusRejected, app.Status)
	assert.Equal(t, "discount too aggressive", app.AdminNotes)

	// REJECTED 同样是终态
	assert.ErrorIs(t, app.Approve(), ErrInvalidState)
}

func TestDraftApplyTo(t *testing.T) {
	start := time.Now()
	end := start.Add(48 * time.Hour)
	c := &Coupon{
		Code:          "OLD",
		Name:          "Old name",
		DiscountType:  DiscountTypePercentage,
		DiscountValue: 5,
		StartDate:     start,
		EndDate:       end,
		UsageLimit:    100,
	}

	d := CouponDraft{
		Name:          strPtr("New name"),
		DiscountValue: f64Ptr(15),
	}
	d.ApplyTo(c)

	// 只有草稿里出现的字段被覆盖
	assert.Equal(t, "OLD", c.Code)
	assert.Equal(t, "New name", c.Name)
	assert.Equal(t, DiscountTypePercentage, c.DiscountType)
	assert.Equal(t, float64(15), c.DiscountValue)
	assert.Equal(t, 100, c.UsageLimit)
}
