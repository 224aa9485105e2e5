package config

import (
	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/filter"
	"github.com/rushteam/streamcf/pipeline"
	"github.com/rushteam/streamcf/pkg/conv"
	"github.com/rushteam/streamcf/postprocess"
	"github.com/rushteam/streamcf/rerank"
	"github.com/rushteam/streamcf/service"
)

// NewFactory 返回一个注册了所有内置 Node 的工厂。
// 需要存储/曝光状态的 Node 以闭包注入，其余 Node 只看自己的 config。
func NewFactory(kv core.KVStore, enginePrefix string, impressions *service.ImpressionRecorder) *pipeline.NodeFactory {
	factory := pipeline.NewNodeFactory()

	factory.Register("filter.expr", buildExprFilterNode)
	factory.Register("rerank.epsilon", buildEpsilonNode)
	factory.Register("rerank.topn", buildTopNNode)

	factory.Register("rerank.impression", func(cfg map[string]any) (pipeline.Node, error) {
		icfg := rerank.ImpressionConfig{
			W1:                 conv.ConfigGetFloat64(cfg, "w1", 0),
			W2:                 conv.ConfigGetFloat64(cfg, "w2", 0),
			ImpressionExponent: conv.ConfigGetFloat64(cfg, "impression_exponent", 0),
			LastSeenExponent:   conv.ConfigGetFloat64(cfg, "last_seen_exponent", 0),
		}
		if impressions != nil {
			icfg.Source = impressions
		}
		return rerank.NewImpressionDiscount(icfg)
	})

	factory.Register("postprocess.enrich", func(cfg map[string]any) (pipeline.Node, error) {
		prefix := conv.ConfigGet[string](cfg, "prefix", enginePrefix)
		return &postprocess.Enrich{Store: kv, Prefix: prefix}, nil
	})

	return factory
}

func buildExprFilterNode(cfg map[string]any) (pipeline.Node, error) {
	expression := conv.ConfigGet[string](cfg, "expression", "")
	return filter.NewExpr(expression)
}

func buildEpsilonNode(cfg map[string]any) (pipeline.Node, error) {
	return rerank.NewEpsilonDithering(rerank.EpsilonConfig{
		Epsilon: conv.ConfigGetFloat64(cfg, "epsilon", 1.0),
	})
}

func buildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.TopN{N: int(conv.ConfigGetInt64(cfg, "n", 0))}, nil
}
