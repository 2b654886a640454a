package port

// UsageFact 是核销时刻的订单事实，供用券规则求值。
type UsageFact struct {
	OrderAmount float64 `json:"order_amount"`
	ItemCount   int     `json:"item_count"`
}

// UsageRuleEngine 对优惠券上的可选用券规则表达式求值。
// 表达式为空时调用方应直接放行，不经过引擎。
type UsageRuleEngine interface {
	Evaluate(rule string, fact UsageFact) (bool, error)
}
