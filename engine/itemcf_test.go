package engine

import (
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/store"
)

func newTestEngine(t *testing.T) (*ItemCF, *store.MemoryStore) {
	t.Helper()
	kv := store.NewMemoryStore()
	e, err := NewItemCF(Config{Prefix: "cf", Store: kv})
	if err != nil {
		t.Fatalf("NewItemCF() error = %v", err)
	}
	return e, kv
}

func record(t *testing.T, e *ItemCF, user, item, event string, weight float64) {
	t.Helper()
	err := e.RecordInteraction(context.Background(), &core.Interaction{
		UserID: user, ItemID: item, Event: event, Weight: weight,
	})
	if err != nil {
		t.Fatalf("RecordInteraction(%s, %s, %s, %v) error = %v", user, item, event, weight, err)
	}
}

func TestNewItemCF_InvalidConfig(t *testing.T) {
	if _, err := NewItemCF(Config{Store: store.NewMemoryStore()}); !core.IsInvalidConfig(err) {
		t.Errorf("NewItemCF(no prefix) error = %v, want INVALID_CONFIG", err)
	}
	if _, err := NewItemCF(Config{Prefix: "cf"}); !core.IsInvalidConfig(err) {
		t.Errorf("NewItemCF(no store) error = %v, want INVALID_CONFIG", err)
	}
}

// 曝光事件对引擎状态完全惰性
func TestItemCF_ImpressionIsInert(t *testing.T) {
	ctx := context.Background()
	e, kv := newTestEngine(t)

	record(t, e, "1", "10", core.EventImpression, 0)

	if all, _ := kv.HGetAll(ctx, e.userItemsKey("1")); len(all) != 0 {
		t.Errorf("impression created user hash: %v", all)
	}
	if _, err := kv.ZScore(ctx, e.countKey(), "10"); !core.IsStoreNotFound(err) {
		t.Errorf("impression created item count")
	}
	recs, err := e.Recommend(ctx, "1", 10)
	if err != nil || len(recs) != 0 {
		t.Errorf("Recommend() = (%v, %v), want empty", recs, err)
	}
}

// 首次点击建立用户状态与物品计数，但没有配对
func TestItemCF_FirstClickCreatesState(t *testing.T) {
	ctx := context.Background()
	e, kv := newTestEngine(t)

	record(t, e, "1", "10", core.EventClick, 2)

	w, err := kv.HGet(ctx, e.userItemsKey("1"), "10")
	if err != nil || w != "2" {
		t.Errorf("user weight = (%q, %v), want (2, nil)", w, err)
	}
	cnt, err := kv.ZScore(ctx, e.countKey(), "10")
	if err != nil || cnt != 2 {
		t.Errorf("item count = (%v, %v), want (2, nil)", cnt, err)
	}
	if pairs, _ := kv.ZRevRangeByScore(ctx, e.pairCountKey(), 0); len(pairs) != 0 {
		t.Errorf("pair counts created on single-item history: %v", pairs)
	}
	recs, err := e.Recommend(ctx, "1", 10)
	if err != nil || len(recs) != 0 {
		t.Errorf("Recommend() = (%v, %v), want empty", recs, err)
	}
}

// 同一用户的第二个物品建立配对与相似度
func TestItemCF_TwoItemsOneUser(t *testing.T) {
	ctx := context.Background()
	e, kv := newTestEngine(t)

	record(t, e, "1", "10", core.EventClick, 2)
	record(t, e, "1", "11", core.EventClick, 2)

	pc, err := kv.ZScore(ctx, e.pairCountKey(), "10:11")
	if err != nil || pc != 2 {
		t.Fatalf("pair count = (%v, %v), want (2, nil)", pc, err)
	}
	sim, err := kv.HGet(ctx, e.simKey(), "10:11")
	if err != nil {
		t.Fatalf("similarity missing: %v", err)
	}
	if f, _ := strconv.ParseFloat(sim, 64); f != 1.0 {
		t.Errorf("similarity = %v, want 1.0 (2/(√2·√2))", sim)
	}

	// 两个物品权重未到"已购买"线，互为对方候选，归一化后各 0.5
	recs, err := e.Recommend(ctx, "1", 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Recommend() returned %d items, want 2", len(recs))
	}
	got := map[string]float64{}
	for _, it := range recs {
		got[it.ID] = it.Score
	}
	if math.Abs(got["10"]-0.5) > 1e-9 || math.Abs(got["11"]-0.5) > 1e-9 {
		t.Errorf("normalized scores = %v, want 0.5 each", got)
	}
}

// 权重升级：配对计数不变，相似度随物品计数重算
func TestItemCF_WeightUpgrade(t *testing.T) {
	ctx := context.Background()
	e, kv := newTestEngine(t)

	record(t, e, "1", "10", core.EventClick, 2)
	record(t, e, "1", "11", core.EventClick, 2)
	record(t, e, "1", "10", core.EventBuy, 5)

	pc, err := kv.ZScore(ctx, e.pairCountKey(), "10:11")
	if err != nil || pc != 2 {
		t.Errorf("pair count after upgrade = (%v, %v), want unchanged 2", pc, err)
	}
	cnt, err := kv.ZScore(ctx, e.countKey(), "10")
	if err != nil || cnt != 5 {
		t.Errorf("item count after upgrade = (%v, %v), want 5", cnt, err)
	}

	want := 2 / (math.Sqrt(5) * math.Sqrt(2))
	simStr, err := kv.HGet(ctx, e.simKey(), "10:11")
	if err != nil {
		t.Fatalf("similarity missing: %v", err)
	}
	sim, _ := strconv.ParseFloat(simStr, 64)
	if math.Abs(sim-want) > 1e-9 {
		t.Errorf("similarity = %v, want %v", sim, want)
	}
}

// 弱事件不覆盖强事件：整体空操作
func TestItemCF_WeakEventIsNoOp(t *testing.T) {
	ctx := context.Background()
	e, kv := newTestEngine(t)

	record(t, e, "1", "10", core.EventBuy, 5)
	record(t, e, "1", "11", core.EventClick, 2)
	record(t, e, "1", "10", core.EventClick, 2) // 弱于已有的 buy

	w, _ := kv.HGet(ctx, e.userItemsKey("1"), "10")
	if w != "5" {
		t.Errorf("user weight = %q, want 5 (click must not override buy)", w)
	}
	cnt, _ := kv.ZScore(ctx, e.countKey(), "10")
	if cnt != 5 {
		t.Errorf("item count = %v, want 5", cnt)
	}
	pc, _ := kv.ZScore(ctx, e.pairCountKey(), "10:11")
	if pc != 2 {
		t.Errorf("pair count = %v, want 2", pc)
	}
}

// 已购买物品被从候选中剔除
func TestItemCF_BoughtPruning(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	record(t, e, "1", "10", core.EventBuy, 5)
	record(t, e, "2", "10", core.EventClick, 2)
	record(t, e, "2", "12", core.EventClick, 2)

	recs, err := e.Recommend(ctx, "1", 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "12" {
		t.Fatalf("Recommend() = %v, want exactly item 12", recs)
	}
	if math.Abs(recs[0].Score-1.0) > 1e-9 {
		t.Errorf("score = %v, want 1.0 after normalization", recs[0].Score)
	}
}

// 相似度三处存储保持一致（对称不变式）
func TestItemCF_SimilaritySymmetry(t *testing.T) {
	ctx := context.Background()
	e, kv := newTestEngine(t)

	record(t, e, "1", "10", core.EventClick, 2)
	record(t, e, "1", "11", core.EventClick, 2)
	record(t, e, "2", "11", core.EventLike, 3)
	record(t, e, "2", "12", core.EventClick, 2)
	record(t, e, "1", "12", core.EventBuy, 5)
	record(t, e, "2", "10", core.EventClick, 2)

	pairs, err := kv.HGetAll(ctx, e.simKey())
	if err != nil || len(pairs) == 0 {
		t.Fatalf("HGetAll(sim) = (%v, %v)", pairs, err)
	}
	for pair, simStr := range pairs {
		var a, b string
		for i := 0; i < len(pair); i++ {
			if pair[i] == ':' {
				a, b = pair[:i], pair[i+1:]
				break
			}
		}
		want, _ := strconv.ParseFloat(simStr, 64)
		gotAB, err := kv.ZScore(ctx, e.itemSimKey(a), b)
		if err != nil || math.Abs(gotAB-want) > 1e-12 {
			t.Errorf("z:i:%s:s[%s] = (%v, %v), want %v", a, b, gotAB, err, want)
		}
		gotBA, err := kv.ZScore(ctx, e.itemSimKey(b), a)
		if err != nil || math.Abs(gotBA-want) > 1e-12 {
			t.Errorf("z:i:%s:s[%s] = (%v, %v), want %v", b, a, gotBA, err, want)
		}
	}
}

// 物品计数等于所有用户权重之和（计数不变式）
func TestItemCF_CountMatchesUserWeights(t *testing.T) {
	ctx := context.Background()
	e, kv := newTestEngine(t)

	record(t, e, "1", "10", core.EventClick, 2)
	record(t, e, "2", "10", core.EventLike, 3)
	record(t, e, "1", "10", core.EventBuy, 5)
	record(t, e, "2", "11", core.EventClick, 2)

	sums := map[string]float64{}
	for _, user := range []string{"1", "2"} {
		items, err := kv.HGetAll(ctx, e.userItemsKey(user))
		if err != nil {
			t.Fatalf("HGetAll(user %s) error = %v", user, err)
		}
		for item, w := range items {
			f, _ := strconv.ParseFloat(w, 64)
			sums[item] += f
		}
	}
	for item, want := range sums {
		got, err := kv.ZScore(ctx, e.countKey(), item)
		if err != nil || math.Abs(got-want) > 1e-12 {
			t.Errorf("count[%s] = (%v, %v), want %v", item, got, err, want)
		}
	}
}

// 推荐分数归一化为 1
func TestItemCF_ScoresSumToOne(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	record(t, e, "1", "10", core.EventClick, 2)
	record(t, e, "1", "11", core.EventClick, 2)
	record(t, e, "2", "10", core.EventClick, 2)
	record(t, e, "2", "12", core.EventLike, 3)
	record(t, e, "3", "11", core.EventClick, 2)
	record(t, e, "3", "13", core.EventBuy, 5)

	recs, err := e.Recommend(ctx, "1", 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("Recommend() returned empty list")
	}
	var total float64
	prev := math.Inf(1)
	for _, it := range recs {
		if it.Score < 0 {
			t.Errorf("negative score for %s: %v", it.ID, it.Score)
		}
		if it.Score > prev {
			t.Errorf("scores not descending at %s", it.ID)
		}
		prev = it.Score
		total += it.Score
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("scores sum = %v, want 1", total)
	}
}

// 邻居计数缺失：配对计数已更新，相似度中止（已知的不一致窗口）
func TestItemCF_MissingItemCount(t *testing.T) {
	ctx := context.Background()
	e, kv := newTestEngine(t)

	// 直接写入用户哈希，绕过计数维护，制造计数缺失
	if err := kv.HSet(ctx, e.userItemsKey("1"), "20", "2"); err != nil {
		t.Fatal(err)
	}

	err := e.RecordInteraction(ctx, &core.Interaction{
		UserID: "1", ItemID: "21", Event: core.EventClick, Weight: 2,
	})
	if !core.IsMissingItemCount(err) {
		t.Fatalf("RecordInteraction() error = %v, want MISSING_ITEM_COUNT", err)
	}

	pc, zerr := kv.ZScore(ctx, e.pairCountKey(), "20:21")
	if zerr != nil || pc != 2 {
		t.Errorf("pair count = (%v, %v), want updated to 2 before abort", pc, zerr)
	}
	if _, herr := kv.HGet(ctx, e.simKey(), "20:21"); !core.IsStoreNotFound(herr) {
		t.Errorf("similarity written despite missing count")
	}
}

// 小 limit 不得饿死聚合：每个历史物品仍贡献 PerItemLimit 范围内的
// 全部候选，limit 只截断排好序的最终列表
func TestItemCF_SmallLimitDoesNotStarveAggregation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	record(t, e, "1", "10", core.EventClick, 2)
	record(t, e, "2", "10", core.EventClick, 2)
	record(t, e, "2", "11", core.EventClick, 2)
	record(t, e, "2", "12", core.EventClick, 2)

	recs, err := e.Recommend(ctx, "1", 1)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Recommend(limit=1) returned %d items, want 1", len(recs))
	}
	// 归一化覆盖两个候选（11、12 的 pred 均为 2），截断后的单个结果
	// 分数是 0.5；若聚合被 limit 截断到单个候选，分数会是 1.0
	if math.Abs(recs[0].Score-0.5) > 1e-9 {
		t.Errorf("score = %v, want 0.5 (normalized over both candidates)", recs[0].Score)
	}
}

// 显式 PerItemLimit 约束每个历史物品的候选贡献
func TestItemCF_PerItemLimit(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	e, err := NewItemCF(Config{Prefix: "cf", Store: kv, PerItemLimit: 1})
	if err != nil {
		t.Fatalf("NewItemCF() error = %v", err)
	}

	record(t, e, "1", "10", core.EventClick, 2)
	record(t, e, "2", "10", core.EventClick, 2)
	record(t, e, "2", "11", core.EventClick, 2)
	record(t, e, "2", "12", core.EventClick, 2)

	recs, err := e.Recommend(ctx, "1", 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	// 历史物品只有 10，贡献被限到 1 个候选，归一化后即 1.0
	if len(recs) != 1 {
		t.Fatalf("Recommend() returned %d items, want 1 with PerItemLimit=1", len(recs))
	}
	if math.Abs(recs[0].Score-1.0) > 1e-9 {
		t.Errorf("score = %v, want 1.0", recs[0].Score)
	}
}

func TestPairKey(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"10", "11", "10:11"},
		{"11", "10", "10:11"},
		{"2", "10", "10:2"}, // 字典序，不是数值序
	}
	for _, tt := range tests {
		if got := pairKey(tt.a, tt.b); got != tt.want {
			t.Errorf("pairKey(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}
