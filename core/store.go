package core

import "context"

// ScoredMember 是有序集合中的一个成员及其分数。
type ScoredMember struct {
	Member string
	Score  float64
}

// KVStore 是存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//   - 只暴露引擎实际使用的命令面，方便针对内存实现做测试
//
// 语义约定：
//   - 每个调用各自原子；不提供多 key 事务
//   - HGet / ZScore 读不到值时返回 ErrStoreNotFound（"缺失" 是哨兵，不是故障）
//   - HGetAll 返回 field -> value 的完整映射，key 不存在时返回空映射而非错误
//
// 实现：
//   - store.MemoryStore 实现此接口（测试/开发）
//   - store.RedisStore 实现此接口（生产）
type KVStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// HGet 读取 Hash 字段
	HGet(ctx context.Context, key, field string) (string, error)

	// HSet 写入 Hash 字段
	HSet(ctx context.Context, key, field, value string) error

	// HDel 删除 Hash 字段
	HDel(ctx context.Context, key string, fields ...string) error

	// HLen 返回 Hash 字段数
	HLen(ctx context.Context, key string) (int64, error)

	// HGetAll 读取整个 Hash
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Del 删除若干 key
	Del(ctx context.Context, keys ...string) error

	// IncrBy 将整数 key 原子地加上 delta，返回加后的值
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// ZAdd 向有序集合写入成员分数（覆盖语义）
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZIncrBy 将有序集合成员的分数加上 delta，返回加后的分数
	ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error)

	// ZScore 获取成员的分数
	ZScore(ctx context.Context, key, member string) (float64, error)

	// ZRevRangeByScore 按分数从高到低取前 limit 个成员（带分数）
	ZRevRangeByScore(ctx context.Context, key string, limit int64) ([]ScoredMember, error)

	// ZUnionStore 对若干有序集合按权重求并，写入 dest，返回 dest 的成员数
	ZUnionStore(ctx context.Context, dest string, keys []string, weights []float64) (int64, error)

	// Close 关闭连接/释放资源
	Close() error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key / field / member 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	if err == nil {
		return false
	}
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
