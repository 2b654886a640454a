package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"bazaar/internal/pkg/redis"
	"bazaar/internal/service/coupon/domain/port"
)

const (
	reserveScriptName = "quota_reserve"
	refundScriptName  = "quota_refund"
)

// QuotaGateRedisAdapter 是 port.QuotaGate 的 Redis 实现。
// 影子库存 + 已领用户集合放在同一个 hash tag 下，
// Lua 脚本保证"查重 + 扣减 + 记用户"三步原子执行。
type QuotaGateRedisAdapter struct {
	redisClient *redis.Client
}

// NewQuotaGateRedisAdapter 创建挡闸适配器，创建时加载所需 Lua 脚本。
func NewQuotaGateRedisAdapter(redisClient *redis.Client) (*QuotaGateRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(reserveScriptName, reserveScript); err != nil {
		return nil, fmt.Errorf("failed to load quota reserve script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(refundScriptName, refundScript); err != nil {
		return nil, fmt.Errorf("failed to load quota refund script: %w", err)
	}
	return &QuotaGateRedisAdapter{redisClient: redisClient}, nil
}

func stockKey(campaignID, couponID int64) string {
	return fmt.Sprintf("coupon:quota:{%d-%d}:stock", campaignID, couponID)
}

func usersKey(campaignID, couponID int64) string {
	return fmt.Sprintf("coupon:quota:{%d-%d}:users", campaignID, couponID)
}

// Prime 同步影子库存。挂券和调额时调用。
func (a *QuotaGateRedisAdapter) Prime(ctx context.Context, campaignID, couponID int64, remaining int) error {
	return a.redisClient.GetClient().Set(ctx, stockKey(campaignID, couponID), remaining, 0).Err()
}

// Reserve 原子地预占一个影子额度。
func (a *QuotaGateRedisAdapter) Reserve(ctx context.Context, campaignID, couponID, userID int64) (port.GateResult, error) {
	keys := []string{stockKey(campaignID, couponID), usersKey(campaignID, couponID)}
	result, err := a.redisClient.RunScript(ctx, reserveScriptName, keys, userID)
	if err != nil {
		return 0, fmt.Errorf("quota gate failed to run reserve script: %w", err)
	}
	code, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	switch code {
	case 1, 3: // 3 = 影子库存未初始化，直接放行到数据库
		return port.GateResultPass, nil
	case 0:
		return port.GateResultSoldOut, nil
	case 2:
		return port.GateResultAlreadyRedeemed, nil
	default:
		return 0, fmt.Errorf("unknown result code from reserve script: %d", code)
	}
}

// Refund 归还一次预占。数据库事务失败后的补偿，丢了会造成影子库存
// 偏小、把本可成功的请求挡在闸外，所以对瞬时失败做有限重试。
func (a *QuotaGateRedisAdapter) Refund(ctx context.Context, campaignID, couponID, userID int64) error {
	keys := []string{stockKey(campaignID, couponID), usersKey(campaignID, couponID)}
	return retry.Do(
		func() error {
			_, err := a.redisClient.RunScript(ctx, refundScriptName, keys, userID)
			return err
		},
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// Drop 摘券时清掉影子数据。
func (a *QuotaGateRedisAdapter) Drop(ctx context.Context, campaignID, couponID int64) error {
	return a.redisClient.GetClient().Del(ctx, stockKey(campaignID, couponID), usersKey(campaignID, couponID)).Err()
}

var reserveScript = `
-- KEYS[1]: 影子库存, 例如 coupon:quota:{7-12}:stock
-- KEYS[2]: 已预占用户集合, 例如 coupon:quota:{7-12}:users
-- ARGV[1]: 用户 ID

-- 1. 查重: 用户已经在闸内
if redis.call('sismember', KEYS[2], ARGV[1]) == 1 then
    return 2
end

-- 2. 影子库存未初始化时不拦截, 放行到数据库裁决
local stock = redis.call('get', KEYS[1])
if not stock then
    return 3
end

-- 3. 扣减并记录用户
if tonumber(stock) > 0 then
    redis.call('decr', KEYS[1])
    redis.call('sadd', KEYS[2], ARGV[1])
    return 1
end

return 0
`

var refundScript = `
-- KEYS[1]: 影子库存
-- KEYS[2]: 已预占用户集合
-- ARGV[1]: 用户 ID

-- 只归还真实存在的预占, 保证 Refund 幂等
if redis.call('srem', KEYS[2], ARGV[1]) == 1 then
    if redis.call('exists', KEYS[1]) == 1 then
        redis.call('incr', KEYS[1])
    end
    return 1
end
return 0
`
