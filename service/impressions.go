package service

import (
	"context"

	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/rerank"
)

// ImpressionRecorder 把曝光事件记账到 KV 存储，供曝光折扣重排消费。
// 曝光是权重 0 的事件：相似度引擎完全忽略它，这里是它唯一的消费方。
//
// key 布局（R 为前缀）：
//   - R:seq             全局曝光序号计数器
//   - R:z:u:<uid>:imp   zset 物品 id -> 累计曝光次数
//   - R:z:u:<uid>:seen  zset 物品 id -> 最近一次曝光的序号
//
// 距上次曝光用序号差衡量而不是墙钟时间，回放同一事件流时结果可复现。
type ImpressionRecorder struct {
	prefix string
	store  core.KVStore
}

// NewImpressionRecorder 构造曝光记账器。Prefix 或 Store 缺失时返回 INVALID_CONFIG。
func NewImpressionRecorder(prefix string, store core.KVStore) (*ImpressionRecorder, error) {
	if prefix == "" {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidConfig, "service: missing impression prefix")
	}
	if store == nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidConfig, "service: missing store")
	}
	return &ImpressionRecorder{prefix: prefix, store: store}, nil
}

func (r *ImpressionRecorder) seqKey() string { return r.prefix + ":seq" }
func (r *ImpressionRecorder) countKey(userID string) string {
	return r.prefix + ":z:u:" + userID + ":imp"
}
func (r *ImpressionRecorder) seenKey(userID string) string {
	return r.prefix + ":z:u:" + userID + ":seen"
}

// Record 记录一次曝光：累计次数加一，最近序号更新为新的全局序号。
func (r *ImpressionRecorder) Record(ctx context.Context, userID, itemID string) error {
	seq, err := r.store.IncrBy(ctx, r.seqKey(), 1)
	if err != nil {
		return err
	}
	if _, err := r.store.ZIncrBy(ctx, r.countKey(userID), 1, itemID); err != nil {
		return err
	}
	return r.store.ZAdd(ctx, r.seenKey(userID), float64(seq), itemID)
}

// Impressions 返回用户对物品的累计曝光次数，未曝光返回 0。
func (r *ImpressionRecorder) Impressions(ctx context.Context, userID, itemID string) (float64, error) {
	cnt, err := r.store.ZScore(ctx, r.countKey(userID), itemID)
	if core.IsStoreNotFound(err) {
		return 0, nil
	}
	return cnt, err
}

// SinceLastSeen 返回当前全局序号与该物品最近一次曝光序号的差。
func (r *ImpressionRecorder) SinceLastSeen(ctx context.Context, userID, itemID string) (float64, bool, error) {
	last, err := r.store.ZScore(ctx, r.seenKey(userID), itemID)
	if core.IsStoreNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	cur, err := r.store.IncrBy(ctx, r.seqKey(), 0)
	if err != nil {
		return 0, false, err
	}
	return float64(cur) - last, true, nil
}

// 确保 ImpressionRecorder 实现了 rerank.ImpressionSource 接口
var _ rerank.ImpressionSource = (*ImpressionRecorder)(nil)
