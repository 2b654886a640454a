package port

import (
	"context"
	"time"
)

// CouponEvent 是发往下游 (通知服务、报表) 的领域事件。
type CouponEvent struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"` // coupon.redeemed / coupon.used / application.resolved
	UserID     int64     `json:"user_id,omitempty"`
	SellerID   int64     `json:"seller_id,omitempty"`
	CouponID   int64     `json:"coupon_id,omitempty"`
	CampaignID int64     `json:"campaign_id,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventKindRedeemed            = "coupon.redeemed"
	EventKindUsed                = "coupon.used"
	EventKindApplicationResolved = "application.resolved"
)

// EventPublisher 把领域事件推给消息中间件。
// 发布失败只记日志，不回滚业务事务。
type EventPublisher interface {
	Publish(ctx context.Context, event *CouponEvent) error
	Close() error
}
