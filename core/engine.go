package core

import "context"

// 事件类型常量。权重标尺必须随参与度单调递增：
// 弱事件永远不会覆盖强事件（见引擎的权重单调规则）。
const (
	EventImpression = "impression" // 曝光：权重 0，不进入相似度
	EventClick      = "click"
	EventLike       = "like"
	EventAddToCart  = "cart"
	EventBuy        = "buy"
)

// DefaultEventWeights 是默认的事件权重标尺。
// 调用方可替换，但必须保持单调（impression < click < like < cart < buy）。
var DefaultEventWeights = map[string]float64{
	EventImpression: 0,
	EventClick:      2,
	EventLike:       3,
	EventAddToCart:  4,
	EventBuy:        5,
}

// Interaction 是一次用户-物品交互。
// UserID/ItemID 是驻留后的稠密整数 id 的字符串形式。
type Interaction struct {
	UserID string
	ItemID string
	Event  string
	Weight float64
}

// Engine 是推荐引擎的领域接口。每个引擎暴露四个操作。
//
// 约定：
//   - 传入的 id 均为驻留器产出的稠密整数 id（字符串形式）
//   - RecordInteraction 有副作用，更新引擎状态
//   - Recommend 是纯查询，返回按分数降序的列表，分数非负；分数先在全部
//     候选上归一化到和为 1，再截断到 limit，截断后的列表分数和可能小于 1
//
// 实现：
//   - engine.ItemCF（增量物品协同过滤）
//   - engine.ContentBased（空实现骨架）
type Engine interface {
	// Name 返回引擎名称（用于日志/选路）
	Name() string

	// AddUser 预注册用户，可以是空操作
	AddUser(ctx context.Context, userID string) error

	// AddItem 预注册物品，可以是空操作
	AddItem(ctx context.Context, itemID string) error

	// RecordInteraction 记录一次交互并增量更新引擎状态
	RecordInteraction(ctx context.Context, in *Interaction) error

	// Recommend 为用户产出 TopN 推荐
	Recommend(ctx context.Context, userID string, limit int) ([]*Item, error)
}
