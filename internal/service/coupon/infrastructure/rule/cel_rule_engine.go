// internal/service/coupon/infrastructure/rule/cel_rule_engine.go
package rule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"bazaar/internal/service/coupon/domain/port"
)

// CELRuleEngine 是 port.UsageRuleEngine 的 CEL 实现。
// 优惠券上的用券规则是一个返回布尔的 CEL 表达式，
// 例如 "order_amount >= 100.0 && item_count >= 2"。
// 这是一个典型的适配器: 把第三方表达式引擎适配到领域接口。
type CELRuleEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program // 按表达式文本缓存编译产物
}

// NewCELRuleEngine 创建规则引擎，声明事实变量的类型。
func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("order_amount", cel.DoubleType),
		cel.Variable("item_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CELRuleEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Evaluate 对规则表达式求值。表达式必须产出布尔。
func (e *CELRuleEngine) Evaluate(ruleExpr string, fact port.UsageFact) (bool, error) {
	prg, err := e.program(ruleExpr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"order_amount": fact.OrderAmount,
		"item_count":   fact.ItemCount,
	})
	if err != nil {
		return false, fmt.Errorf("rule evaluation failed: %w", err)
	}
	verdict, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q did not evaluate to a boolean", ruleExpr)
	}
	return verdict, nil
}

func (e *CELRuleEngine) program(ruleExpr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[ruleExpr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(ruleExpr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("invalid usage rule %q: %w", ruleExpr, iss.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule program: %w", err)
	}

	e.mu.Lock()
	e.programs[ruleExpr] = prg
	e.mu.Unlock()
	return prg, nil
}
