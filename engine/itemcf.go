// Package engine 提供推荐引擎实现（接口定义在 core 包）。
package engine

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rushteam/streamcf/core"
)

// Config 是 ItemCF 引擎的配置。Prefix 与 Store 必填。
type Config struct {
	// Prefix 是 key 前缀，调用方负责避免前缀冲突
	Prefix string

	// Store 是共享的 KV 存储
	Store core.KVStore

	// Logger 可选，缺省为 Nop
	Logger *zerolog.Logger

	// NeighborCap 是推荐时每个物品读取的近邻上限，默认 100。
	// 近邻 zset 写入时不截断，只在读取时取前 NeighborCap 个；
	// 全量 TopK 只在这一截断范围内近似。
	NeighborCap int64

	// PerItemLimit 是聚合时每个历史物品最多贡献的候选数，
	// 默认等于 NeighborCap。它与 Recommend 的最终 limit 无关：
	// limit 只截断排好序的结果，不参与聚合。
	PerItemLimit int64

	// BoughtThreshold 是"已购买"分界权重，用户权重恰好等于该值的物品
	// 不再被推荐（相等比较，高于该值的权重不会被剔除）。
	// 默认 5（默认事件标尺中 buy 的权重）。事件标尺变化时应同步调整。
	BoughtThreshold float64
}

// ItemCF 是增量式物品协同过滤引擎。
//
// 核心思想："被同一批用户喜欢的物品，相互相似"。
//
// 与离线 Item-CF 不同，相似度随交互流增量维护：
//   - 每个物品维护计数 count(i) = Σ_u w(u,i)
//   - 每对物品维护共现计数 pc(a,b) = Σ_u min(w(u,a), w(u,b))
//   - 相似度 sim(a,b) = pc(a,b) / (√count(a)·√count(b))
//
// 权重单调规则：每个 (user, item) 上权重只增不减，弱事件永远不会
// 覆盖强事件。因此事件权重标尺本身必须随参与度单调。
//
// key 布局（Q 为前缀）：
//   - Q:z:i:c        zset 物品 id -> 计数
//   - Q:z:i:pc       zset 对 key  -> 共现计数
//   - Q:h:i:s        hash 对 key  -> 相似度（权威）
//   - Q:z:i:<id>:s   zset 近邻 id -> 相似度（按物品冗余，供 TopK 读取）
//   - Q:h:u:<uid>:i  hash 物品 id -> 该用户的权重
//
// 相似度写三处是查询效率换一致性的取舍：三次写各自原子但整体不是，
// 并发读者可能短暂读到新旧混合值，消费方把相似度当作参考值对待。
type ItemCF struct {
	prefix          string
	store           core.KVStore
	logger          zerolog.Logger
	neighborCap     int64
	perItemLimit    int64
	boughtThreshold float64
}

// NewItemCF 构造 ItemCF 引擎。Prefix 或 Store 缺失时返回 INVALID_CONFIG。
func NewItemCF(cfg Config) (*ItemCF, error) {
	if cfg.Prefix == "" {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidConfig, "engine: missing prefix")
	}
	if cfg.Store == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidConfig, "engine: missing store")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	neighborCap := cfg.NeighborCap
	if neighborCap <= 0 {
		neighborCap = 100
	}
	perItemLimit := cfg.PerItemLimit
	if perItemLimit <= 0 {
		perItemLimit = neighborCap
	}
	boughtThreshold := cfg.BoughtThreshold
	if boughtThreshold <= 0 {
		boughtThreshold = core.DefaultEventWeights[core.EventBuy]
	}
	return &ItemCF{
		prefix:          cfg.Prefix,
		store:           cfg.Store,
		logger:          logger,
		neighborCap:     neighborCap,
		perItemLimit:    perItemLimit,
		boughtThreshold: boughtThreshold,
	}, nil
}

func (e *ItemCF) Name() string { return "engine.itemcf" }

func (e *ItemCF) countKey() string     { return e.prefix + ":z:i:c" }
func (e *ItemCF) pairCountKey() string { return e.prefix + ":z:i:pc" }
func (e *ItemCF) simKey() string       { return e.prefix + ":h:i:s" }

func (e *ItemCF) itemSimKey(itemID string) string { return e.prefix + ":z:i:" + itemID + ":s" }
func (e *ItemCF) userItemsKey(userID string) string {
	return e.prefix + ":h:u:" + userID + ":i"
}

// pairKey 返回物品对的规范 key：按 id 字符串字典序取 "小:大"。
// 引擎永远不会存 "b:a"（a < b 时）。
func pairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

// AddUser 是空操作：用户状态在首次交互时惰性创建。
func (e *ItemCF) AddUser(ctx context.Context, userID string) error { return nil }

// AddItem 是空操作：物品状态在首次交互时惰性创建。
func (e *ItemCF) AddItem(ctx context.Context, itemID string) error { return nil }

// RecordInteraction 增量维护相似度状态。
//
// 曝光事件不进入相似度（只由曝光折扣重排消费）。对非曝光事件：
//  1. 用户无历史：建立 {item: weight}，物品计数加 weight，结束
//  2. 新权重不高于已记录权重：整体空操作（权重单调规则）
//  3. 否则写入新权重、物品计数加差值，并对用户触达过的每个其他
//     物品 j 更新共现计数与三处相似度
//
// 共现增量维持 pc(a,b) = Σ_u min(w(u,a), w(u,b))：权重从 cur 升到
// new 时，与 w_j 的 min 要么抬升 new-cur（仍是较小者），要么被 w_j
// 封顶（new 越过 w_j），首次交互则贡献完整的 min。
func (e *ItemCF) RecordInteraction(ctx context.Context, in *core.Interaction) error {
	if in.Event == core.EventImpression {
		return nil
	}

	userKey := e.userItemsKey(in.UserID)
	userItems, err := e.store.HGetAll(ctx, userKey)
	if err != nil {
		return err
	}

	newWeight := in.Weight
	weightStr := strconv.FormatFloat(newWeight, 'f', -1, 64)

	if len(userItems) == 0 {
		if err := e.store.HSet(ctx, userKey, in.ItemID, weightStr); err != nil {
			return err
		}
		if _, err := e.store.ZIncrBy(ctx, e.countKey(), newWeight, in.ItemID); err != nil {
			return err
		}
		return nil
	}

	currentWeight := 0.0
	if cur, ok := userItems[in.ItemID]; ok {
		currentWeight, err = strconv.ParseFloat(cur, 64)
		if err != nil {
			return core.NewDomainError(core.ModuleEngine, core.ErrorCodeInternalError, "engine: malformed weight for item "+in.ItemID)
		}
	}
	if newWeight <= currentWeight {
		return nil
	}

	if err := e.store.HSet(ctx, userKey, in.ItemID, weightStr); err != nil {
		return err
	}
	itemCount, err := e.store.ZIncrBy(ctx, e.countKey(), newWeight-currentWeight, in.ItemID)
	if err != nil {
		return err
	}

	for otherID, otherWeightStr := range userItems {
		if otherID == in.ItemID {
			continue
		}
		otherWeight, perr := strconv.ParseFloat(otherWeightStr, 64)
		if perr != nil {
			return core.NewDomainError(core.ModuleEngine, core.ErrorCodeInternalError, "engine: malformed weight for item "+otherID)
		}
		if err := e.updateItemSimilarity(ctx, in.ItemID, itemCount, currentWeight, newWeight, otherID, otherWeight); err != nil {
			return err
		}
	}
	return nil
}

// updateItemSimilarity 更新一对物品的共现计数与相似度。
func (e *ItemCF) updateItemSimilarity(ctx context.Context, itemID string, itemCount, currentWeight, newWeight float64, otherID string, otherWeight float64) error {
	var deltaCoRating float64
	switch {
	case currentWeight == 0:
		deltaCoRating = math.Min(newWeight, otherWeight)
	case currentWeight < otherWeight:
		if newWeight < otherWeight {
			deltaCoRating = newWeight - currentWeight
		} else {
			deltaCoRating = otherWeight - currentWeight
		}
	default:
		deltaCoRating = 0
	}

	pair := pairKey(itemID, otherID)
	if deltaCoRating != 0 {
		if _, err := e.store.ZIncrBy(ctx, e.pairCountKey(), deltaCoRating, pair); err != nil {
			return err
		}
	}

	pairCount, err := e.store.ZScore(ctx, e.pairCountKey(), pair)
	if core.IsStoreNotFound(err) {
		pairCount = 0
	} else if err != nil {
		return err
	}

	otherCount, err := e.store.ZScore(ctx, e.countKey(), otherID)
	if core.IsStoreNotFound(err) || (err == nil && otherCount <= 0) {
		// 此时对计数已更新而相似度未写，留下一个已知的不一致窗口
		e.logger.Debug().Str("item", otherID).Msg("item count missing during similarity update")
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeMissingItemCount, "engine: missing count for item "+otherID)
	} else if err != nil {
		return err
	}

	similarity := pairCount / math.Sqrt(itemCount*otherCount)
	simStr := strconv.FormatFloat(similarity, 'f', -1, 64)

	if err := e.store.HSet(ctx, e.simKey(), pair, simStr); err != nil {
		return err
	}
	if err := e.store.ZAdd(ctx, e.itemSimKey(itemID), similarity, otherID); err != nil {
		return err
	}
	if err := e.store.ZAdd(ctx, e.itemSimKey(otherID), similarity, itemID); err != nil {
		return err
	}

	e.logger.Debug().
		Str("pair", pair).
		Float64("pair_count", pairCount).
		Float64("similarity", similarity).
		Msg("updated item similarity")
	return nil
}

// Recommend 为用户产出 TopN 推荐。
//
// 对用户触达过的每个物品取近邻（按相似度降序，上限 NeighborCap），
// 过滤掉用户权重等于"已购买"分界的候选，每个历史物品最多贡献 PerItemLimit
// 个候选，对每个候选做相似度加权平均 pred(j) = Σ sim·w_i / Σ sim，
// 整体归一化到和为 1 后按分数降序截断到 limit。limit 只作用于
// 最终列表，不影响聚合的候选范围。
func (e *ItemCF) Recommend(ctx context.Context, userID string, limit int) ([]*core.Item, error) {
	if limit <= 0 {
		limit = 10
	}

	userItems, err := e.store.HGetAll(ctx, e.userItemsKey(userID))
	if err != nil {
		return nil, err
	}
	if len(userItems) == 0 {
		return nil, nil
	}

	weights := make(map[string]float64, len(userItems))
	for itemID, w := range userItems {
		weight, perr := strconv.ParseFloat(w, 64)
		if perr != nil {
			return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInternalError, "engine: malformed weight for item "+itemID)
		}
		weights[itemID] = weight
	}

	// 历史物品按 id 排序遍历，保证并列分数下结果可复现
	history := make([]string, 0, len(weights))
	for itemID := range weights {
		history = append(history, itemID)
	}
	sort.Strings(history)

	numer := make(map[string]float64)
	denom := make(map[string]float64)

	for _, itemID := range history {
		neighbors, err := e.store.ZRevRangeByScore(ctx, e.itemSimKey(itemID), e.neighborCap)
		if err != nil {
			return nil, err
		}

		kept := int64(0)
		for _, n := range neighbors {
			if kept >= e.perItemLimit {
				break
			}
			if w, ok := weights[n.Member]; ok && w == e.boughtThreshold {
				continue
			}
			kept++
			numer[n.Member] += n.Score * weights[itemID]
			denom[n.Member] += n.Score
		}
	}

	var total float64
	preds := make([]*core.Item, 0, len(numer))
	for candidateID, num := range numer {
		d := denom[candidateID]
		if d == 0 {
			continue
		}
		pred := num / d
		it := core.NewItem(candidateID)
		it.Score = pred
		it.PutLabel("engine", core.Label{Value: "itemcf", Source: "engine"})
		preds = append(preds, it)
		total += pred
	}
	if len(preds) == 0 {
		return nil, nil
	}

	for _, it := range preds {
		it.Score /= total
	}
	sort.Slice(preds, func(i, j int) bool {
		if preds[i].Score != preds[j].Score {
			return preds[i].Score > preds[j].Score
		}
		return preds[i].ID < preds[j].ID
	})
	if len(preds) > limit {
		preds = preds[:limit]
	}
	return preds, nil
}

// 确保 ItemCF 实现了 core.Engine 接口
var _ core.Engine = (*ItemCF)(nil)
