package port

import "context"

// GateResult 是挡闸预检的业务结果码。
type GateResult int

const (
	GateResultPass             GateResult = iota // 预占成功，放行到数据库事务
	GateResultSoldOut                            // 影子库存已尽
	GateResultAlreadyRedeemed                    // 该用户已在闸内
)

// QuotaGate 是活动开闸瞬间的高并发挡闸。
// 它维护一份 (campaignID, couponID) 配额的影子计数，
// 在进数据库事务之前把明显的售罄/重复流量快速打回。
// 数据库里的条件更新才是配额的唯一事实，挡闸放过的请求
// 仍然要经过完整事务；事务失败时必须调用 Refund 归还影子额度。
type QuotaGate interface {
	// Prime 在挂券/调整配额时同步影子库存。
	Prime(ctx context.Context, campaignID, couponID int64, remaining int) error

	// Reserve 原子地完成"查重 + 扣影子库存 + 记用户"三步。
	Reserve(ctx context.Context, campaignID, couponID, userID int64) (GateResult, error)

	// Refund 归还一次 Reserve 的影子额度，用于数据库事务失败后的补偿。
	Refund(ctx context.Context, campaignID, couponID, userID int64) error

	// Drop 在摘券时清掉影子数据。
	Drop(ctx context.Context, campaignID, couponID int64) error
}
