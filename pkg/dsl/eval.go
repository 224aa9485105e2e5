// Package dsl 提供基于 CEL (Common Expression Language) 的候选过滤表达式。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/streamcf/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
	celEnvErr  error
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Expr 是一条编译好的过滤表达式，可对任意候选反复求值。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：item.score > 0.01 / item.score >= 0.5
//   - 标签：label.engine == "itemcf"
//   - 逻辑：label.engine == "itemcf" && item.score > 0.1
//   - 包含：label.engine.contains("cf")
//
// 注意：CEL 访问不存在的 key 会报错，检查存在性请用 has(label.key)。
type Expr struct {
	src string
	prg cel.Program
}

// Compile 编译表达式。编译一次后可并发求值。
func Compile(expr string) (*Expr, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Expr{src: expr, prg: prg}, nil
}

// Source 返回表达式原文。
func (e *Expr) Source() string { return e.src }

// EvalItem 对单个候选求值，返回布尔结果。
func (e *Expr) EvalItem(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := e.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据。
// label 顶层直接暴露 value，方便写 label.engine == "itemcf"。
func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(item.Labels))
	labelAccessor := make(map[string]any, len(item.Labels))
	for k, v := range item.Labels {
		labels[k] = map[string]any{"value": v.Value, "source": v.Source}
		labelAccessor[k] = v.Value
	}

	input := map[string]any{
		"item": map[string]any{
			"id":     item.ID,
			"score":  item.Score,
			"meta":   item.Meta,
			"labels": labels,
		},
		"label": labelAccessor,
	}
	if rctx != nil {
		input["rctx"] = map[string]any{
			"user_id":    rctx.UserID,
			"user_token": rctx.UserToken,
			"params":     rctx.Params,
		}
	} else {
		input["rctx"] = map[string]any{}
	}
	return input
}
