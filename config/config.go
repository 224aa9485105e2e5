// Package config 提供服务级配置加载与装配：从一份 YAML 构建存储、
// 驻留器、引擎集合与后处理 Pipeline，产出可用的编排层。
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/streamcf/core"
	"github.com/rushteam/streamcf/engine"
	"github.com/rushteam/streamcf/intern"
	"github.com/rushteam/streamcf/pipeline"
	"github.com/rushteam/streamcf/service"
	"github.com/rushteam/streamcf/store"
)

// Config 是服务级配置。
type Config struct {
	Store struct {
		Backend string `yaml:"backend"` // memory / redis
		Addr    string `yaml:"addr"`
		DB      int    `yaml:"db"`
	} `yaml:"store"`

	Interner struct {
		UserPrefix string `yaml:"user_prefix"`
		ItemPrefix string `yaml:"item_prefix"`
	} `yaml:"interner"`

	Engine struct {
		Prefix          string  `yaml:"prefix"`
		NeighborCap     int64   `yaml:"neighbor_cap"`
		PerItemLimit    int64   `yaml:"per_item_limit"`
		BoughtThreshold float64 `yaml:"bought_threshold"`
	} `yaml:"engine"`

	Impressions struct {
		Prefix string `yaml:"prefix"`
	} `yaml:"impressions"`

	Primary string `yaml:"primary"`

	Pipeline struct {
		Name  string                `yaml:"name"`
		Nodes []pipeline.NodeConfig `yaml:"nodes"`
	} `yaml:"pipeline"`
}

// Default 返回一套可直接运行的缺省配置（内存存储 + ε 抖动重排）。
func Default() *Config {
	cfg := &Config{}
	cfg.Store.Backend = "memory"
	cfg.Interner.UserPrefix = "u"
	cfg.Interner.ItemPrefix = "i"
	cfg.Engine.Prefix = "cf"
	cfg.Impressions.Prefix = "imp"
	cfg.Primary = "engine.itemcf"
	cfg.Pipeline.Nodes = []pipeline.NodeConfig{
		{Type: "rerank.epsilon", Config: map[string]any{"epsilon": 1.25}},
	}
	return cfg
}

// Load 从 YAML 文件加载服务配置。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(data)
}

// Parse 从 YAML 字节流解析服务配置。
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// Build 按配置装配整套编排层，返回编排层与底层存储
// （存储由调用方负责 Close）。
func (c *Config) Build(logger *zerolog.Logger) (*service.Recommender, core.KVStore, error) {
	var kv core.KVStore
	switch c.Store.Backend {
	case "", "memory":
		kv = store.NewMemoryStore()
	case "redis":
		rs, err := store.NewRedisStore(c.Store.Addr, c.Store.DB)
		if err != nil {
			return nil, nil, err
		}
		kv = rs
	default:
		return nil, nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidConfig, "config: unknown store backend: "+c.Store.Backend)
	}

	users, err := intern.New(intern.Config{Prefix: c.Interner.UserPrefix, Store: kv, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	items, err := intern.New(intern.Config{Prefix: c.Interner.ItemPrefix, Store: kv, Logger: logger})
	if err != nil {
		return nil, nil, err
	}

	cf, err := engine.NewItemCF(engine.Config{
		Prefix:          c.Engine.Prefix,
		Store:           kv,
		Logger:          logger,
		NeighborCap:     c.Engine.NeighborCap,
		PerItemLimit:    c.Engine.PerItemLimit,
		BoughtThreshold: c.Engine.BoughtThreshold,
	})
	if err != nil {
		return nil, nil, err
	}
	engines := []core.Engine{engine.NewContentBased(), cf}

	var impressions *service.ImpressionRecorder
	if c.Impressions.Prefix != "" {
		impressions, err = service.NewImpressionRecorder(c.Impressions.Prefix, kv)
		if err != nil {
			return nil, nil, err
		}
	}

	factory := NewFactory(kv, c.Engine.Prefix, impressions)
	var post *pipeline.Pipeline
	if len(c.Pipeline.Nodes) > 0 {
		pcfg := &pipeline.Config{}
		pcfg.Pipeline.Name = c.Pipeline.Name
		pcfg.Pipeline.Nodes = c.Pipeline.Nodes
		post, err = pcfg.BuildPipeline(factory)
		if err != nil {
			return nil, nil, err
		}
	}

	rec, err := service.New(service.Config{
		UserInterner: users,
		ItemInterner: items,
		Engines:      engines,
		Primary:      c.Primary,
		Pipeline:     post,
		Impressions:  impressions,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, kv, nil
}
