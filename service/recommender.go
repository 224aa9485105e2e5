// Package service 提供编排层：驻留 id、向引擎扇出读写、选路、
// 走后处理 Pipeline，并把 id 翻译回外部 token。
package service

import (
	"context"
	"math/rand"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/intern"
	"github.com/rushteam/streamcf/pipeline"
)

// Recommendation 是翻译回外部 token 之后的一条推荐。
type Recommendation struct {
	Token string
	Score float64
}

// Config 是编排层的配置。
type Config struct {
	// UserInterner / ItemInterner 分别驻留用户与物品 token
	UserInterner *intern.Interner
	ItemInterner *intern.Interner

	// Engines 是注册的引擎集合，至少一个
	Engines []core.Engine

	// Primary 是选路的引擎名，缺省取第一个引擎
	Primary string

	// Pipeline 可选，引擎输出之后的后处理链
	Pipeline *pipeline.Pipeline

	// Impressions 可选，曝光事件的记账器
	Impressions *ImpressionRecorder

	// EventWeights 可选，事件权重标尺，缺省 core.DefaultEventWeights
	EventWeights map[string]float64

	// Logger 可选，缺省为 Nop
	Logger *zerolog.Logger
}

// Recommender 是单请求入口：记录交互、产出推荐。
// 自身无状态，全部状态在共享 KV 存储中，可并发使用
// （同一用户的写入需由调用方分片串行化）。
type Recommender struct {
	users        *intern.Interner
	items        *intern.Interner
	engines      []core.Engine
	primary      string
	post         *pipeline.Pipeline
	impressions  *ImpressionRecorder
	eventWeights map[string]float64
	logger       zerolog.Logger
}

// New 构造编排层。驻留器或引擎缺失时返回 INVALID_CONFIG。
func New(cfg Config) (*Recommender, error) {
	if cfg.UserInterner == nil || cfg.ItemInterner == nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidConfig, "service: missing interner")
	}
	if len(cfg.Engines) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidConfig, "service: missing engines")
	}
	primary := cfg.Primary
	if primary == "" {
		primary = cfg.Engines[0].Name()
	}
	found := false
	for _, e := range cfg.Engines {
		if e.Name() == primary {
			found = true
			break
		}
	}
	if !found {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidConfig, "service: primary engine not registered: "+primary)
	}
	eventWeights := cfg.EventWeights
	if eventWeights == nil {
		eventWeights = core.DefaultEventWeights
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Recommender{
		users:        cfg.UserInterner,
		items:        cfg.ItemInterner,
		engines:      cfg.Engines,
		primary:      primary,
		post:         cfg.Pipeline,
		impressions:  cfg.Impressions,
		eventWeights: eventWeights,
		logger:       logger,
	}, nil
}

// RecordEvent 按配置的事件标尺补权重后调用 Record。
func (r *Recommender) RecordEvent(ctx context.Context, userToken, itemToken, event string) error {
	return r.Record(ctx, userToken, itemToken, event, r.eventWeights[event])
}

// Record 记录一次交互：写意图驻留两个 token，向所有引擎扇出
// RecordInteraction；曝光事件额外进曝光记账。
func (r *Recommender) Record(ctx context.Context, userToken, itemToken, event string, weight float64) error {
	userID, _, err := r.users.IDOf(ctx, userToken, intern.TypeAuto, true)
	if err != nil {
		return err
	}
	itemID, _, err := r.items.IDOf(ctx, itemToken, intern.TypeAuto, true)
	if err != nil {
		return err
	}

	in := &core.Interaction{
		UserID: strconv.FormatInt(userID, 10),
		ItemID: strconv.FormatInt(itemID, 10),
		Event:  event,
		Weight: weight,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, e := range r.engines {
		eng := e
		eg.Go(func() error {
			return eng.RecordInteraction(egCtx, in)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if event == core.EventImpression && r.impressions != nil {
		return r.impressions.Record(ctx, in.UserID, in.ItemID)
	}
	return nil
}

// Recommend 为用户产出推荐。
//
// 只读驻留（未知用户直接返回空），向所有引擎并发扇出 Recommend，
// 取主引擎的列表走后处理 Pipeline（随机源由 seed 初始化一次），
// 最后把物品 id 翻译回外部 token。引擎返回的 id 约定为物品驻留器
// 的 id，这是系统级约定而非引擎语义。
//
// limit 只约束各引擎返回的最终列表长度，引擎内部的聚合范围由引擎
// 自己的配置（如 ItemCF 的 PerItemLimit）决定。
func (r *Recommender) Recommend(ctx context.Context, userToken string, limit int, seed int64) ([]Recommendation, error) {
	userID, ok, err := r.users.IDOf(ctx, userToken, intern.TypeAuto, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	uid := strconv.FormatInt(userID, 10)

	results := make([][]*core.Item, len(r.engines))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, e := range r.engines {
		idx, eng := i, e
		eg.Go(func() error {
			items, err := eng.Recommend(egCtx, uid, limit)
			if err != nil {
				return err
			}
			results[idx] = items
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var picked []*core.Item
	for i, e := range r.engines {
		if e.Name() == r.primary {
			picked = results[i]
			break
		}
	}
	if len(picked) == 0 {
		return nil, nil
	}

	rctx := &core.RecommendContext{
		UserID:    uid,
		UserToken: userToken,
		Rand:      rand.New(rand.NewSource(seed)),
	}
	if r.post != nil {
		picked, err = r.post.Run(ctx, rctx, picked)
		if err != nil {
			return nil, err
		}
	}

	out := make([]Recommendation, 0, len(picked))
	for _, it := range picked {
		id, perr := strconv.ParseInt(it.ID, 10, 64)
		if perr != nil {
			continue
		}
		token, ok, terr := r.items.ValueOf(ctx, id)
		if terr != nil {
			return nil, terr
		}
		if !ok {
			r.logger.Debug().Str("id", it.ID).Msg("recommended id has no token, dropped")
			continue
		}
		out = append(out, Recommendation{Token: token, Score: it.Score})
	}
	return out, nil
}

// Flatten 把推荐列表展平为 [token, score, token, score, ...] 的
// 字符串序列，供入口层直接输出。
func Flatten(recs []Recommendation) []string {
	out := make([]string, 0, len(recs)*2)
	for _, rec := range recs {
		out = append(out, rec.Token, strconv.FormatFloat(rec.Score, 'f', -1, 64))
	}
	return out
}
