package engine

import (
	"context"

	"github.com/rushteam/streamcf/core"
)

// ContentBased 是基于内容的推荐引擎骨架：满足 core.Engine 接口，
// 不记录任何状态，也不产出候选。编排层可挂载它与 ItemCF 并行，
// 待内容特征链路就绪后替换为真实实现。
type ContentBased struct{}

func NewContentBased() *ContentBased { return &ContentBased{} }

func (e *ContentBased) Name() string { return "engine.cb" }

func (e *ContentBased) AddUser(ctx context.Context, userID string) error { return nil }

func (e *ContentBased) AddItem(ctx context.Context, itemID string) error { return nil }

func (e *ContentBased) RecordInteraction(ctx context.Context, in *core.Interaction) error {
	return nil
}

func (e *ContentBased) Recommend(ctx context.Context, userID string, limit int) ([]*core.Item, error) {
	return nil, nil
}

// 确保 ContentBased 实现了 core.Engine 接口
var _ core.Engine = (*ContentBased)(nil)
