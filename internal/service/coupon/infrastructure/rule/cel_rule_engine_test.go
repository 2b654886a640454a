package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/internal/service/coupon/domain/port"
)

func TestEvaluate(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	cases := []struct {
		name string
		rule string
		fact port.UsageFact
		want bool
	}{
		{"min amount met", "order_amount >= 100.0", port.UsageFact{OrderAmount: 150}, true},
		{"min amount not met", "order_amount >= 100.0", port.UsageFact{OrderAmount: 99.99}, false},
		{"combined rule", "order_amount >= 50.0 && item_count >= 2", port.UsageFact{OrderAmount: 60, ItemCount: 2}, true},
		{"combined rule item short", "order_amount >= 50.0 && item_count >= 2", port.UsageFact{OrderAmount: 60, ItemCount: 1}, false},
		{"constant true", "true", port.UsageFact{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := engine.Evaluate(tc.rule, tc.fact)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateInvalidRule(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate("order_amount >=", port.UsageFact{})
	assert.Error(t, err)

	// 合法表达式但不产出布尔
	_, err = engine.Evaluate("order_amount + 1.0", port.UsageFact{})
	assert.Error(t, err)

	// 未声明的变量
	_, err = engine.Evaluate("user_tier == 'gold'", port.UsageFact{})
	assert.Error(t, err)
}

func TestProgramCache(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	const rule = "item_count > 0"
	_, err = engine.Evaluate(rule, port.UsageFact{ItemCount: 1})
	require.NoError(t, err)

	engine.mu.RLock()
	_, cached := engine.programs[rule]
	engine.mu.RUnlock()
	assert.True(t, cached)
}
