package domain

import "errors"

// 领域错误是预期内的业务结果，不是故障。
// 接口层通过 errors.Is 将它们翻译成对外的响应码。
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate coupon code or name in shop")
	ErrHasClaims         = errors.New("coupon already redeemed by users")
	ErrSoldOut           = errors.New("campaign coupon sold out")
	ErrAlreadyRedeemed   = errors.New("user already redeemed this coupon")
	ErrExpiredOrInactive = errors.New("campaign expired or inactive")
	ErrInvalidState      = errors.New("invalid state for operation")
	ErrConflict          = errors.New("conflicting concurrent update")
	ErrNotOwner          = errors.New("seller does not own this shop")
)
