package rerank

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/pipeline"
)

// EpsilonConfig 是 ε 抖动重排的配置。
type EpsilonConfig struct {
	// Epsilon 控制排列分布的宽度，取值 [1.0, +∞)。
	// ε = 1 时 σ → 0，输出等于输入（不抖动）；ε 越大扰动越宽，
	// 量级近似 Dunning & Friedman 描述的 log-normal 抖动。
	Epsilon float64
}

// EpsilonDithering 是随机排名扰动重排器。
//
// 对排名 i（1 起）的候选计算 dither = ln(i) + N(0, σ)，其中
// σ = √(ln ε)，再按 dither 升序重排。ln(i) 随排名递增，噪声为零时
// 排序保持不变；噪声项让相邻排名以受控概率互换，用于探索与
// 多路结果交织。分数不被修改。
type EpsilonDithering struct {
	sigma float64
}

// NewEpsilonDithering 构造 ε 抖动重排器。ε < 1 时返回 INVALID_CONFIG。
func NewEpsilonDithering(cfg EpsilonConfig) (*EpsilonDithering, error) {
	if cfg.Epsilon < 1 {
		return nil, core.NewDomainError(core.ModuleRerank, core.ErrorCodeInvalidConfig, "rerank: epsilon must be >= 1")
	}
	sigma := 1e-10
	if cfg.Epsilon > 1 {
		sigma = math.Sqrt(math.Log(cfg.Epsilon))
	}
	return &EpsilonDithering{sigma: sigma}, nil
}

func (n *EpsilonDithering) Name() string        { return "rerank.epsilon" }
func (n *EpsilonDithering) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *EpsilonDithering) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	if rctx == nil || rctx.Rand == nil {
		// 没有随机源时退化为恒等
		return items, nil
	}

	out := make([]*core.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	dither := make(map[*core.Item]float64, len(out))
	for i, it := range out {
		rank := float64(i + 1)
		dither[it] = math.Log(rank) + gauss(rctx.Rand, n.sigma)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return dither[out[i]] < dither[out[j]]
	})
	return out, nil
}

// gauss 用 Box-Muller 变换从两个独立均匀分布采样 N(0, sigma)。
// u1 过小（≤ 1e-4）时重采样，避免 ln(u1) 发散。
func gauss(r *rand.Rand, sigma float64) float64 {
	u1 := r.Float64()
	for u1 <= 0.0001 {
		u1 = r.Float64()
	}
	u2 := r.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2) * sigma
}

// 确保 EpsilonDithering 实现了 pipeline.Node 接口
var _ pipeline.Node = (*EpsilonDithering)(nil)
