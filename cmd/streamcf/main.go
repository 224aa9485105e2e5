// streamcf 命令行入口：固定两个位置参数（随机种子、用户 token），
// 回放一组演示交互后输出该用户的推荐，形如交替的 token 分数 序列。
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rushteam/streamcf/config"
	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/service"
)

const configPath = "streamcf.yaml"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) != 2 {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidArguments, "Invalid number of arguments.")
	}
	seed, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidArguments, "Invalid number of arguments.")
	}
	userToken := args[1]

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	if os.Getenv("STREAMCF_DEBUG") != "" {
		logger = logger.Level(zerolog.DebugLevel)
	}

	cfg := config.Default()
	if _, serr := os.Stat(configPath); serr == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	rec, kv, err := cfg.Build(&logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	ctx := context.Background()

	// 演示交互流：目标用户点过 1、2，同类用户的行为让物品之间产生相似度
	demo := []struct {
		user, item, event string
	}{
		{userToken, "item:1", core.EventClick},
		{userToken, "item:2", core.EventClick},
		{"demo:alice", "item:1", core.EventClick},
		{"demo:alice", "item:3", core.EventClick},
		{"demo:alice", "item:3", core.EventBuy},
		{"demo:bob", "item:2", core.EventClick},
		{"demo:bob", "item:3", core.EventClick},
		{"demo:bob", "item:4", core.EventAddToCart},
		{"demo:carol", "item:1", core.EventLike},
		{"demo:carol", "item:4", core.EventClick},
		{userToken, "item:3", core.EventImpression},
	}
	for _, d := range demo {
		if err := rec.RecordEvent(ctx, d.user, d.item, d.event); err != nil {
			return err
		}
	}

	recs, err := rec.Recommend(ctx, userToken, 10, seed)
	if err != nil {
		return err
	}
	for _, field := range service.Flatten(recs) {
		fmt.Println(field)
	}
	return nil
}
