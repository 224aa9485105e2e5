package rerank

import (
	"context"

	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/pipeline"
)

// TopN 是一个截断节点，用于在重排后截取前 N 个候选。
// 通常放在 Pipeline 末尾，控制最终返回结果数量。
type TopN struct {
	// N 要保留的候选数量。N <= 0 或候选数不足 N 时不截断。
	N int
}

func (n *TopN) Name() string        { return "rerank.topn" }
func (n *TopN) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TopN) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}

// 确保 TopN 实现了 pipeline.Node 接口
var _ pipeline.Node = (*TopN)(nil)
