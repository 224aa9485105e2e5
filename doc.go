// Package streamcf 是一个流式物品协同过滤推荐工具包。
//
// 设计要点：
// - 状态外置: 所有持久状态放在共享 KV 存储（Redis 或内存实现），进程自身无状态
// - 增量维护: 物品相似度随交互流增量更新，无需离线训练
// - Pipeline 后处理: 过滤/重排/修饰通过 Node 串联（Filter → ReRank → PostProcess）
// - 驻留约定: 外部 token 统一驻留为稠密整数 id，引擎只消费 id
package streamcf

import "github.com/rushteam/streamcf/pipeline"

// 轻量 facade：便于用户直接 import "streamcf" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindFilter      = pipeline.KindFilter
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
