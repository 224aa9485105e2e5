// Package postprocess 提供结果修饰节点（Kind = postprocess）。
package postprocess

import (
	"context"

	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/pipeline"
)

// Enrich 从 KV 存储加载物品元信息哈希（<prefix>:h:i:<id>:m），
// 填充到 Item.Meta，让调用方拿到推荐结果时附带展示字段。
// 元信息缺失的物品原样透传。
type Enrich struct {
	// Store 是共享的 KV 存储
	Store core.KVStore

	// Prefix 是元信息 key 的前缀，一般与引擎共用
	Prefix string
}

func (n *Enrich) Name() string        { return "postprocess.enrich" }
func (n *Enrich) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *Enrich) metaKey(itemID string) string {
	return n.Prefix + ":h:i:" + itemID + ":m"
}

func (n *Enrich) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Store == nil {
		return items, nil
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		meta, err := n.Store.HGetAll(ctx, n.metaKey(it.ID))
		if err != nil || len(meta) == 0 {
			continue
		}
		if it.Meta == nil {
			it.Meta = make(map[string]any, len(meta))
		}
		for k, v := range meta {
			it.Meta[k] = v
		}
	}
	return items, nil
}

// 确保 Enrich 实现了 pipeline.Node 接口
var _ pipeline.Node = (*Enrich)(nil)
