// Package config 配置模块测试
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// createValidConfig 构造一份可通过验证的最小配置
func createValidConfig() *Config {
	cfg := &Config{
		Symbol: "XBTUSD",
		API: APIConfig{
			BaseURL: "https://testnet.bitmex.com/api/v1",
			WSURL:   "wss://testnet.bitmex.com/realtime",
			Key:     "test-key",
			Secret:  "test-secret",
		},
	}
	cfg.setDefaults()
	return cfg
}

// TestLoad_Defaults 测试默认值填充
func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
symbol: XBTUSD
api:
  base_url: https://testnet.bitmex.com/api/v1
  ws_url: wss://testnet.bitmex.com/realtime
  key: k
  secret: s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Ladder.OrderPairs != 6 {
		t.Fatalf("默认 order_pairs = %d, want 6", cfg.Ladder.OrderPairs)
	}
	if cfg.Ladder.RelistInterval != 0.01 {
		t.Fatalf("默认 relist_interval = %v, want 0.01", cfg.Ladder.RelistInterval)
	}
	if cfg.Risk.Leverage != 25 {
		t.Fatalf("默认 leverage = %v, want 25", cfg.Risk.Leverage)
	}
	if cfg.API.OrderIDPrefix != "mm_bitmex_" {
		t.Fatalf("默认 order_id_prefix = %q, want mm_bitmex_", cfg.API.OrderIDPrefix)
	}
	if cfg.Loop.IntervalMs != 5000 {
		t.Fatalf("默认 interval_ms = %d, want 5000", cfg.Loop.IntervalMs)
	}
	// contracts 缺省时回落为做市合约本身
	if len(cfg.Contracts) != 1 || cfg.Contracts[0] != "XBTUSD" {
		t.Fatalf("默认 contracts = %v, want [XBTUSD]", cfg.Contracts)
	}
}

// TestLoad_MissingFile 测试文件不存在
func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatalf("文件不存在应返回错误")
	}
}

// TestValidate_RequiredFields 测试必填项校验
func TestValidate_RequiredFields(t *testing.T) {
	cfg := createValidConfig()
	cfg.Symbol = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("symbol 为空应验证失败")
	}

	cfg = createValidConfig()
	cfg.API.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("base_url 为空应验证失败")
	}

	// 非干跑模式缺少鉴权信息
	cfg = createValidConfig()
	cfg.API.Key = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("非干跑模式缺少 key 应验证失败")
	}

	// 干跑模式允许缺少鉴权信息
	cfg = createValidConfig()
	cfg.App.DryRun = true
	cfg.API.Key = ""
	cfg.API.Secret = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("干跑模式缺少 key 不应验证失败: %v", err)
	}
}

// TestValidate_OrderIDPrefix 前缀超长应验证失败
func TestValidate_OrderIDPrefix(t *testing.T) {
	cfg := createValidConfig()
	cfg.API.OrderIDPrefix = "much_too_long_prefix"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("前缀超过 13 字符应验证失败")
	}
}

// TestValidate_RandomOrderSize 随机取量区间校验
func TestValidate_RandomOrderSize(t *testing.T) {
	cfg := createValidConfig()
	cfg.Ladder.RandomOrderSize = true
	cfg.Ladder.MinOrderSize = 100
	cfg.Ladder.MaxOrderSize = 50
	if err := cfg.Validate(); err == nil {
		t.Fatalf("max < min 应验证失败")
	}

	cfg.Ladder.MaxOrderSize = 200
	if err := cfg.Validate(); err != nil {
		t.Fatalf("有效随机取量区间不应验证失败: %v", err)
	}
}

// **Feature: bitmex-market-maker, Property: Config Validation Correctness**

// TestValidate_PositionLimits_Property 持仓上下限校验
func TestValidate_PositionLimits_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("下限不小于上限应验证失败", prop.ForAll(
		func(min, span float64) bool {
			cfg := createValidConfig()
			cfg.Risk.CheckPositionLimits = true
			cfg.Risk.MinPosition = min
			cfg.Risk.MaxPosition = min - span // 上限不大于下限
			return cfg.Validate() != nil
		},
		gen.Float64Range(-10000, 10000),
		gen.Float64Range(0, 1000),
	))

	properties.Property("下限小于上限应验证通过", prop.ForAll(
		func(min, span float64) bool {
			cfg := createValidConfig()
			cfg.Risk.CheckPositionLimits = true
			cfg.Risk.MinPosition = min
			cfg.Risk.MaxPosition = min + span
			return cfg.Validate() == nil
		},
		gen.Float64Range(-10000, 10000),
		gen.Float64Range(0.0001, 1000),
	))

	properties.Property("杠杆超出 (0, 100] 应验证失败", prop.ForAll(
		func(leverage float64) bool {
			cfg := createValidConfig()
			cfg.Risk.Leverage = leverage
			err := cfg.Validate()
			valid := leverage > 0 && leverage <= 100
			return valid == (err == nil)
		},
		gen.Float64Range(-50, 200),
	))

	properties.TestingRun(t)
}
