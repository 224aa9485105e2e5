// Package filter 提供候选过滤节点（Kind = filter）。
package filter

import (
	"context"

	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/pipeline"
	"github.com/rushteam/streamcf/pkg/dsl"
)

// Expr 是表达式驱动的过滤节点：保留表达式求值为 true 的候选。
// 用于业务裁剪，例如分数下限或按标签剔除某一路引擎的结果。
//
// 求值出错的候选按保留处理，过滤只做裁剪、不做拦截。
type Expr struct {
	expr *dsl.Expr
}

// NewExpr 编译表达式并构造过滤节点。表达式非法时返回编译错误。
func NewExpr(expression string) (*Expr, error) {
	compiled, err := dsl.Compile(expression)
	if err != nil {
		return nil, err
	}
	return &Expr{expr: compiled}, nil
}

func (n *Expr) Name() string        { return "filter.expr" }
func (n *Expr) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *Expr) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		keep, err := n.expr.EvalItem(it, rctx)
		if err != nil || keep {
			out = append(out, it)
		}
	}
	return out, nil
}

// 确保 Expr 实现了 pipeline.Node 接口
var _ pipeline.Node = (*Expr)(nil)
