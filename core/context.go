package core

import "math/rand"

// RecommendContext 承载用户/随机源/请求级信息，贯穿整个后处理 Pipeline 透传。
type RecommendContext struct {
	// UserID 是驻留后的用户 id 的字符串形式
	UserID string

	// UserToken 是外部传入的原始用户标识
	UserToken string

	// Rand 是本次调用的随机源。由调用方用请求种子初始化一次，
	// 显式传递而不是依赖进程级全局状态，保证重排可复现。
	Rand *rand.Rand

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	Labels map[string]Label

	// Params 请求级上下文参数
	Params map[string]any
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (Label, bool) {
	if rctx.Labels == nil {
		return Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
