package rerank

import (
	"context"
	"math"
	"sort"

	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/pipeline"
)

// ImpressionSource 提供候选的曝光统计，用于曝光折扣。
// 实现见 service.ImpressionRecorder（统计与推荐状态同库存放）。
type ImpressionSource interface {
	// Impressions 返回用户对物品的累计曝光次数，未曝光返回 0
	Impressions(ctx context.Context, userID, itemID string) (float64, error)

	// SinceLastSeen 返回距用户上次看到该物品经过的曝光序号数，
	// 从未曝光返回 (0, false)
	SinceLastSeen(ctx context.Context, userID, itemID string) (float64, bool, error)
}

// ImpressionConfig 是曝光折扣重排的配置。四个参数缺省均为 0.5。
type ImpressionConfig struct {
	// W1 是曝光次数项的权重，取值 (0, 1]
	W1 float64

	// W2 是距上次曝光项的权重，取值 (0, 1]
	W2 float64

	// ImpressionExponent 是曝光次数项的衰减指数
	ImpressionExponent float64

	// LastSeenExponent 是距上次曝光项的衰减指数
	LastSeenExponent float64

	// Source 可选。提供时曝光次数与距上次曝光取真实计数，
	// 不提供时以当前排名作为两者的替身。
	Source ImpressionSource
}

// ImpressionDiscount 是曝光折扣重排器。
//
// 对排名 i（1 起）的候选计算
//
//	d = score · (w1/(n1+1)^e1 + w2/(n2+1)^e2)
//
// 其中 n1 为曝光次数、n2 为距上次曝光的间隔（无曝光源时两者都用
// 排名 i 替代），再按 d 升序重排。分数不被修改。
type ImpressionDiscount struct {
	w1, w2 float64
	e1, e2 float64
	source ImpressionSource
}

// NewImpressionDiscount 构造曝光折扣重排器。
// W1/W2 超出 (0, 1] 时返回 INVALID_CONFIG（零值按缺省 0.5 处理）。
func NewImpressionDiscount(cfg ImpressionConfig) (*ImpressionDiscount, error) {
	w1, w2 := cfg.W1, cfg.W2
	if w1 == 0 {
		w1 = 0.5
	}
	if w2 == 0 {
		w2 = 0.5
	}
	if w1 < 0 || w1 > 1 || w2 < 0 || w2 > 1 {
		return nil, core.NewDomainError(core.ModuleRerank, core.ErrorCodeInvalidConfig, "rerank: w1/w2 must be in (0,1]")
	}
	e1, e2 := cfg.ImpressionExponent, cfg.LastSeenExponent
	if e1 == 0 {
		e1 = 0.5
	}
	if e2 == 0 {
		e2 = 0.5
	}
	return &ImpressionDiscount{w1: w1, w2: w2, e1: e1, e2: e2, source: cfg.Source}, nil
}

func (n *ImpressionDiscount) Name() string        { return "rerank.impression" }
func (n *ImpressionDiscount) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *ImpressionDiscount) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	discounted := make(map[*core.Item]float64, len(out))
	for i, it := range out {
		rank := float64(i + 1)
		n1, n2 := rank, rank
		if n.source != nil && rctx != nil {
			if cnt, err := n.source.Impressions(ctx, rctx.UserID, it.ID); err == nil && cnt > 0 {
				n1 = cnt
			}
			if age, ok, err := n.source.SinceLastSeen(ctx, rctx.UserID, it.ID); err == nil && ok {
				n2 = age
			}
		}
		discounted[it] = it.Score * (n.w1/math.Pow(n1+1, n.e1) + n.w2/math.Pow(n2+1, n.e2))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return discounted[out[i]] < discounted[out[j]]
	})
	return out, nil
}

// 确保 ImpressionDiscount 实现了 pipeline.Node 接口
var _ pipeline.Node = (*ImpressionDiscount)(nil)
