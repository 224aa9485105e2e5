package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/streamcf/core"
)

func TestNewImpressionDiscount_Config(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ImpressionConfig
		wantErr bool
	}{
		{name: "defaults", cfg: ImpressionConfig{}},
		{name: "explicit", cfg: ImpressionConfig{W1: 0.3, W2: 0.7, ImpressionExponent: 1, LastSeenExponent: 2}},
		{name: "w1 too large", cfg: ImpressionConfig{W1: 1.5}, wantErr: true},
		{name: "w2 negative", cfg: ImpressionConfig{W2: -0.1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImpressionDiscount(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewImpressionDiscount() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !core.IsInvalidConfig(err) {
				t.Errorf("error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

// 排名替身模式：d = score·(w1/(i+1)^0.5 + w2/(i+1)^0.5)，升序重排。
// 分数 0.5/0.3/0.2 的折扣值为 0.354/0.173/0.100，输出顺序整体反转。
func TestImpressionDiscount_RankStandIn(t *testing.T) {
	n, err := NewImpressionDiscount(ImpressionConfig{})
	if err != nil {
		t.Fatalf("NewImpressionDiscount() error = %v", err)
	}

	items := scoredItems(map[string]float64{"1": 0.5, "2": 0.3, "3": 0.2})
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "1"}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := []string{"3", "2", "1"}
	for i, id := range want {
		if out[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, out[i].ID, id)
		}
	}
}

type fakeImpressions struct {
	counts map[string]float64
	seen   map[string]float64
}

func (f *fakeImpressions) Impressions(_ context.Context, _, itemID string) (float64, error) {
	return f.counts[itemID], nil
}

func (f *fakeImpressions) SinceLastSeen(_ context.Context, _, itemID string) (float64, bool, error) {
	age, ok := f.seen[itemID]
	return age, ok, nil
}

// 真实曝光计数模式：被重度曝光的头部物品折扣值被压低，排序先于未曝光物品
func TestImpressionDiscount_WithSource(t *testing.T) {
	src := &fakeImpressions{
		counts: map[string]float64{"1": 50},
		seen:   map[string]float64{"1": 100},
	}
	n, err := NewImpressionDiscount(ImpressionConfig{Source: src})
	if err != nil {
		t.Fatalf("NewImpressionDiscount() error = %v", err)
	}

	// 无曝光源时 "1"（高分、排名 1）折扣值最大、排最后；
	// 高曝光计数把它的折扣值压到最小，升序后排到最前
	items := scoredItems(map[string]float64{"1": 0.5, "2": 0.3})
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "7"}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out[0].ID != "1" {
		t.Errorf("heavily impressed item not first: got %s", out[0].ID)
	}
}

func TestImpressionDiscount_Empty(t *testing.T) {
	n, _ := NewImpressionDiscount(ImpressionConfig{})
	out, err := n.Process(context.Background(), nil, nil)
	if err != nil || len(out) != 0 {
		t.Errorf("Process(empty) = (%v, %v), want empty", out, err)
	}
}

func TestTopN(t *testing.T) {
	items := scoredItems(map[string]float64{"1": 0.5, "2": 0.3, "3": 0.2})

	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "truncates", n: 2, want: 2},
		{name: "n zero keeps all", n: 0, want: 3},
		{name: "n beyond length keeps all", n: 10, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &TopN{N: tt.n}
			out, err := node.Process(context.Background(), nil, items)
			if err != nil || len(out) != tt.want {
				t.Errorf("Process() = (%d items, %v), want %d", len(out), err, tt.want)
			}
		})
	}
}
