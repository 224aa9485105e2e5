// Package intern 提供外部标识符到稠密整数 id 的原子双向驻留映射。
//
// 所有引擎共享同一套驻留约定：外部 token（用户、物品）先驻留为
// 稠密整数 id，引擎内部只使用 id 的字符串形式。
package intern

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rushteam/streamcf/core"
)

// Type 是被驻留值的类别标签，编码为 1..8 的小整数持久化。
type Type int

const (
	// TypeAuto 表示由驻留器自行推断（token 为字符串，推断为 TypeString）
	TypeAuto Type = 0

	TypeNil    Type = 1
	TypeBool   Type = 2
	TypeNumber Type = 3
	TypeString Type = 4
	TypeBytes  Type = 5
	TypeList   Type = 6
	TypeMap    Type = 7
	TypeOpaque Type = 8
)

var typeNames = map[Type]string{
	TypeNil:    "nil",
	TypeBool:   "bool",
	TypeNumber: "number",
	TypeString: "string",
	TypeBytes:  "bytes",
	TypeList:   "list",
	TypeMap:    "map",
	TypeOpaque: "opaque",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Config 是驻留器的配置。Prefix 与 Store 必填。
type Config struct {
	// Prefix 是 key 前缀，调用方负责避免前缀冲突
	Prefix string

	// Store 是共享的 KV 存储
	Store core.KVStore

	// Logger 可选，缺省为 Nop
	Logger *zerolog.Logger
}

// Interner 维护 token <-> id 的双向映射。
//
// key 布局（P 为前缀）：
//   - P:id  整数计数器，值等于已发出的最大 id
//   - P:fh  token -> id
//   - P:rh  id -> token
//   - P:th  id -> 类别编码
//
// 计数器严格单调；id 永不复用，即使 token 被删除。
type Interner struct {
	prefix string
	store  core.KVStore
	logger zerolog.Logger
}

// New 构造一个驻留器。Prefix 或 Store 缺失时返回 INVALID_CONFIG。
func New(cfg Config) (*Interner, error) {
	if cfg.Prefix == "" {
		return nil, core.NewDomainError(core.ModuleIntern, core.ErrorCodeInvalidConfig, "intern: missing prefix")
	}
	if cfg.Store == nil {
		return nil, core.NewDomainError(core.ModuleIntern, core.ErrorCodeInvalidConfig, "intern: missing store")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Interner{
		prefix: cfg.Prefix,
		store:  cfg.Store,
		logger: logger,
	}, nil
}

func (i *Interner) counterKey() string { return i.prefix + ":id" }
func (i *Interner) forwardKey() string { return i.prefix + ":fh" }
func (i *Interner) reverseKey() string { return i.prefix + ":rh" }
func (i *Interner) typeKey() string    { return i.prefix + ":th" }

// Count 返回已驻留的 token 数。
func (i *Interner) Count(ctx context.Context) (int64, error) {
	return i.store.HLen(ctx, i.forwardKey())
}

// Clear 原子地丢弃全部四个 key。计数器随之归零，
// 之后发出的 id 从 1 重新开始。
func (i *Interner) Clear(ctx context.Context) error {
	return i.store.Del(ctx, i.counterKey(), i.forwardKey(), i.reverseKey(), i.typeKey())
}

// IDOf 返回 token 对应的 id。token 未驻留且 shouldIntern 为真时，
// 原子递增计数器得到新 id 并写入三个映射；shouldIntern 为假时返回
// (0, false, nil)。
//
// 并发约定：计数器递增各自原子，但与后续三次写不构成事务。两个并发
// 调用方可能为同一 token 各分配一个 id，浪费一个 id 但不会破坏查找
// （rh 中写入的 id 总是与 fh 一致）。需要严格唯一时应由存储侧事务
// 对前缀做串行化。
func (i *Interner) IDOf(ctx context.Context, token string, typ Type, shouldIntern bool) (int64, bool, error) {
	val, err := i.store.HGet(ctx, i.forwardKey(), token)
	if err == nil {
		id, perr := strconv.ParseInt(val, 10, 64)
		if perr != nil {
			return 0, false, core.NewDomainError(core.ModuleIntern, core.ErrorCodeInternalError, "intern: malformed id for token "+token)
		}
		return id, true, nil
	}
	if !core.IsStoreNotFound(err) {
		return 0, false, err
	}
	if !shouldIntern {
		return 0, false, nil
	}

	if typ == TypeAuto {
		typ = TypeString
	}

	id, err := i.store.IncrBy(ctx, i.counterKey(), 1)
	if err != nil {
		return 0, false, err
	}
	idStr := strconv.FormatInt(id, 10)
	if err := i.store.HSet(ctx, i.forwardKey(), token, idStr); err != nil {
		return 0, false, err
	}
	if err := i.store.HSet(ctx, i.reverseKey(), idStr, token); err != nil {
		return 0, false, err
	}
	if err := i.store.HSet(ctx, i.typeKey(), idStr, strconv.Itoa(int(typ))); err != nil {
		return 0, false, err
	}

	i.logger.Debug().Str("token", token).Int64("id", id).Str("type", typ.String()).Msg("interned token")
	return id, true, nil
}

// ValueOf 返回 id 对应的 token，未驻留时返回 (_, false, nil)。
func (i *Interner) ValueOf(ctx context.Context, id int64) (string, bool, error) {
	val, err := i.store.HGet(ctx, i.reverseKey(), strconv.FormatInt(id, 10))
	if core.IsStoreNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// TypeOf 返回 id 对应的类别标签，未驻留时返回 (_, false, nil)。
func (i *Interner) TypeOf(ctx context.Context, id int64) (Type, bool, error) {
	val, err := i.store.HGet(ctx, i.typeKey(), strconv.FormatInt(id, 10))
	if core.IsStoreNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	code, perr := strconv.Atoi(val)
	if perr != nil || code < int(TypeNil) || code > int(TypeOpaque) {
		return 0, false, core.NewDomainError(core.ModuleIntern, core.ErrorCodeInternalError, "intern: malformed type code for id "+strconv.FormatInt(id, 10))
	}
	return Type(code), true, nil
}

// Delete 移除 token 的三条哈希记录。计数器不回退，释放的 id 不复用。
// token 未驻留时返回 false。
func (i *Interner) Delete(ctx context.Context, token string) (bool, error) {
	val, err := i.store.HGet(ctx, i.forwardKey(), token)
	if core.IsStoreNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := i.store.HDel(ctx, i.forwardKey(), token); err != nil {
		return false, err
	}
	if err := i.store.HDel(ctx, i.reverseKey(), val); err != nil {
		return false, err
	}
	if err := i.store.HDel(ctx, i.typeKey(), val); err != nil {
		return false, err
	}
	return true, nil
}
