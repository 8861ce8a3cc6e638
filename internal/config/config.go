// Package config 负责加载和验证 YAML 配置文件。
// 提供做市引擎所需的所有配置项，包括交易所连接、报价梯形参数、风险控制设置等。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// API BitMEX 连接与鉴权配置
	API APIConfig `yaml:"api"`
	// Symbol 做市的合约标识
	Symbol string `yaml:"symbol"`
	// Contracts 组合头寸计算涉及的合约列表
	Contracts []string `yaml:"contracts"`
	// Ladder 报价梯形参数
	Ladder LadderConfig `yaml:"ladder"`
	// Risk 风险控制参数
	Risk RiskConfig `yaml:"risk"`
	// Loop 周期调度参数
	Loop LoopConfig `yaml:"loop"`
	// Signals 信号注入服务配置
	Signals SignalsConfig `yaml:"signals"`
	// Output 周期报告输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
	// DryRun 干跑模式：仅打印将要提交的订单，不真实下单
	DryRun bool `yaml:"dry_run"`
}

// APIConfig BitMEX 连接与鉴权配置
type APIConfig struct {
	// BaseURL REST API 地址，如 https://testnet.bitmex.com/api/v1
	BaseURL string `yaml:"base_url"`
	// WSURL realtime WebSocket 地址
	WSURL string `yaml:"ws_url"`
	// Key API Key
	Key string `yaml:"key"`
	// Secret API Secret
	Secret string `yaml:"secret"`
	// OrderIDPrefix 客户端订单标识前缀（最长 13 字符）
	// 区分本引擎与其他来源的订单，避免互相撤单
	OrderIDPrefix string `yaml:"order_id_prefix"`
	// PostOnly 是否只发只挂不吃的订单（ParticipateDoNotInitiate）
	PostOnly bool `yaml:"post_only"`
	// TimeoutMs REST 请求超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// PingIntervalMs WebSocket 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// StaleAfterMs WebSocket 无消息判定失联阈值（毫秒）
	StaleAfterMs int `yaml:"stale_after_ms"`
}

// LadderConfig 报价梯形参数
type LadderConfig struct {
	// OrderPairs 维持的买卖对数量 P
	OrderPairs int `yaml:"order_pairs"`
	// OrderStartSize 第 1 档订单数量
	OrderStartSize float64 `yaml:"order_start_size"`
	// OrderStepSize 每档数量增量：qty(i) = start + (i-1)*step
	OrderStepSize float64 `yaml:"order_step_size"`
	// Interval 相邻档位的几何价距比例 r，如 0.0025 表示 0.25%
	Interval float64 `yaml:"interval"`
	// MinSpread 维持的最小买卖价差比例
	MinSpread float64 `yaml:"min_spread"`
	// MaintainSpreads 是否贴着现有价差报价（否则按固定偏移）
	MaintainSpreads bool `yaml:"maintain_spreads"`
	// RelistInterval 改单滞回带：|desired/live - 1| 超过此值才改价
	RelistInterval float64 `yaml:"relist_interval"`
	// RandomOrderSize 是否在 [MinOrderSize, MaxOrderSize] 内随机取量
	RandomOrderSize bool `yaml:"random_order_size"`
	// MinOrderSize 随机取量下界
	MinOrderSize int `yaml:"min_order_size"`
	// MaxOrderSize 随机取量上界
	MaxOrderSize int `yaml:"max_order_size"`
}

// RiskConfig 风险控制参数
type RiskConfig struct {
	// Leverage 目标杠杆
	Leverage float64 `yaml:"leverage"`
	// TargetROE 启动追踪止盈的 ROE 目标（水位线基线）
	TargetROE float64 `yaml:"target_roe"`
	// CheckPositionLimits 是否启用持仓上下限检查
	CheckPositionLimits bool `yaml:"check_position_limits"`
	// MinPosition 持仓下限（张，负数为空头）
	MinPosition float64 `yaml:"min_position"`
	// MaxPosition 持仓上限（张）
	MaxPosition float64 `yaml:"max_position"`
	// SignalEntryEnabled 是否启用信号驱动建仓
	SignalEntryEnabled bool `yaml:"signal_entry_enabled"`
	// PositionStartEntryQty 信号建仓的起始数量（张）
	PositionStartEntryQty float64 `yaml:"position_start_entry_qty"`
}

// LoopConfig 周期调度参数
type LoopConfig struct {
	// IntervalMs 周期间隔（毫秒）
	IntervalMs int `yaml:"interval_ms"`
	// RestIntervalMs 订单变更后的静默间隔（毫秒）
	RestIntervalMs int `yaml:"rest_interval_ms"`
	// ErrorIntervalMs 错误后的静默间隔（毫秒）
	ErrorIntervalMs int `yaml:"error_interval_ms"`
	// StaleRetryMs 改单目标失效后重跑周期前的等待（毫秒）
	StaleRetryMs int `yaml:"stale_retry_ms"`
	// WatchedFiles 变更后触发重新初始化的文件列表
	WatchedFiles []string `yaml:"watched_files"`
}

// SignalsConfig 信号注入服务配置
type SignalsConfig struct {
	// ListenAddr 信号 webhook 与指标服务监听地址，如 :8080；为空则不启动
	ListenAddr string `yaml:"listen_addr"`
	// MetricsEnabled 是否暴露 /metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// OutputConfig 周期报告输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// CycleReportEnabled 是否输出周期报告 JSONL 文件
	CycleReportEnabled bool `yaml:"cycle_report_enabled"`
	// BufferSize 写入缓冲条数
	BufferSize int `yaml:"buffer_size"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "bitmex-market-maker"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.API.OrderIDPrefix == "" {
		c.API.OrderIDPrefix = "mm_bitmex_"
	}
	if c.API.TimeoutMs == 0 {
		c.API.TimeoutMs = 7000 // 7 秒
	}
	if c.API.PingIntervalMs == 0 {
		c.API.PingIntervalMs = 5000 // 5 秒
	}
	if c.API.StaleAfterMs == 0 {
		c.API.StaleAfterMs = 30000 // 30 秒
	}

	if len(c.Contracts) == 0 && c.Symbol != "" {
		c.Contracts = []string{c.Symbol}
	}

	if c.Ladder.OrderPairs == 0 {
		c.Ladder.OrderPairs = 6
	}
	if c.Ladder.OrderStartSize == 0 {
		c.Ladder.OrderStartSize = 100
	}
	if c.Ladder.Interval == 0 {
		c.Ladder.Interval = 0.005
	}
	if c.Ladder.RelistInterval == 0 {
		c.Ladder.RelistInterval = 0.01
	}

	if c.Risk.Leverage == 0 {
		c.Risk.Leverage = 25
	}
	if c.Risk.TargetROE == 0 {
		c.Risk.TargetROE = 1
	}
	if c.Risk.PositionStartEntryQty == 0 {
		c.Risk.PositionStartEntryQty = 100
	}

	if c.Loop.IntervalMs == 0 {
		c.Loop.IntervalMs = 5000 // 5 秒
	}
	if c.Loop.RestIntervalMs == 0 {
		c.Loop.RestIntervalMs = 3000 // 3 秒
	}
	if c.Loop.ErrorIntervalMs == 0 {
		c.Loop.ErrorIntervalMs = 10000 // 10 秒
	}
	if c.Loop.StaleRetryMs == 0 {
		c.Loop.StaleRetryMs = 500 // 0.5 秒
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 100
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	if c.Symbol == "" {
		errs = append(errs, "symbol: 合约标识不能为空")
	}

	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url: REST API 地址不能为空")
	}
	if c.API.WSURL == "" {
		errs = append(errs, "api.ws_url: WebSocket 地址不能为空")
	}
	if !c.App.DryRun && (c.API.Key == "" || c.API.Secret == "") {
		errs = append(errs, "api.key/api.secret: 非干跑模式必须配置鉴权信息")
	}
	if len(c.API.OrderIDPrefix) > 13 {
		errs = append(errs, "api.order_id_prefix: 前缀最长 13 字符")
	}

	if c.Ladder.OrderPairs <= 0 {
		errs = append(errs, "ladder.order_pairs: 买卖对数量必须为正数")
	}
	if c.Ladder.Interval <= 0 {
		errs = append(errs, "ladder.interval: 档位价距必须为正数")
	}
	if c.Ladder.MinSpread < 0 {
		errs = append(errs, "ladder.min_spread: 最小价差不能为负数")
	}
	if c.Ladder.RelistInterval <= 0 {
		errs = append(errs, "ladder.relist_interval: 改单滞回带必须为正数")
	}
	if c.Ladder.RandomOrderSize {
		if c.Ladder.MinOrderSize <= 0 || c.Ladder.MaxOrderSize < c.Ladder.MinOrderSize {
			errs = append(errs, "ladder.min_order_size/max_order_size: 随机取量区间无效")
		}
	} else if c.Ladder.OrderStartSize <= 0 {
		errs = append(errs, "ladder.order_start_size: 起始数量必须为正数")
	}

	if c.Risk.Leverage <= 0 || c.Risk.Leverage > 100 {
		errs = append(errs, "risk.leverage: 杠杆必须在 (0, 100] 之间")
	}
	if c.Risk.CheckPositionLimits && c.Risk.MinPosition >= c.Risk.MaxPosition {
		errs = append(errs, "risk.min_position/max_position: 持仓下限必须小于上限")
	}
	if c.Risk.SignalEntryEnabled && c.Risk.PositionStartEntryQty <= 0 {
		errs = append(errs, "risk.position_start_entry_qty: 信号建仓数量必须为正数")
	}

	if c.Loop.IntervalMs <= 0 {
		errs = append(errs, "loop.interval_ms: 周期间隔必须为正数")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Timeout REST 请求超时时间
func (a *APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

// PingInterval WebSocket 心跳间隔
func (a *APIConfig) PingInterval() time.Duration {
	return time.Duration(a.PingIntervalMs) * time.Millisecond
}

// StaleAfter WebSocket 无消息判定失联阈值
func (a *APIConfig) StaleAfter() time.Duration {
	return time.Duration(a.StaleAfterMs) * time.Millisecond
}

// Interval 周期间隔
func (l *LoopConfig) Interval() time.Duration {
	return time.Duration(l.IntervalMs) * time.Millisecond
}

// RestInterval 订单变更后的静默间隔
func (l *LoopConfig) RestInterval() time.Duration {
	return time.Duration(l.RestIntervalMs) * time.Millisecond
}

// ErrorInterval 错误后的静默间隔
func (l *LoopConfig) ErrorInterval() time.Duration {
	return time.Duration(l.ErrorIntervalMs) * time.Millisecond
}

// StaleRetry 改单目标失效后的等待时间
func (l *LoopConfig) StaleRetry() time.Duration {
	return time.Duration(l.StaleRetryMs) * time.Millisecond
}
