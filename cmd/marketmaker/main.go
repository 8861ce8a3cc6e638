// Package main 是 BitMEX 做市引擎的入口点。
// 引擎围绕已对齐的中间价维护对称的限价单梯形，每个周期将交易所
// 挂单收敛到期望梯形（能改单就改单），并执行杠杆归一、追踪止盈
// 与一致性检查。外部信号通过 HTTP webhook 注入，可选驱动建仓。
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/core/converge"
	"bitmex-market-maker/internal/core/ladder"
	"bitmex-market-maker/internal/core/market"
	"bitmex-market-maker/internal/core/risk"
	"bitmex-market-maker/internal/exchange/bitmex"
	"bitmex-market-maker/internal/output/jsonl"
	"bitmex-market-maker/internal/runner"
	"bitmex-market-maker/internal/signalfeed"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出（退出前撤掉全部挂单）
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	client, err := bitmex.NewClient(&cfg.API, logger)
	if err != nil {
		logger.Error("创建交易所客户端失败", zap.Error(err))
		os.Exit(1)
	}
	defer client.Close()

	startCtx, startCancel := context.WithTimeout(ctx, 15*time.Second)
	if err := client.Connect(startCtx); err != nil {
		startCancel()
		logger.Error("realtime 连接失败", zap.Error(err))
		os.Exit(1)
	}
	startCancel()

	accessor := market.NewAccessor(client, cfg.Symbol, cfg.Contracts, cfg.Risk.Leverage, cfg.App.DryRun, logger)
	builder := ladder.New(cfg.Ladder, rand.New(rand.NewSource(time.Now().UnixNano())))
	engine := converge.New(accessor, cfg.Ladder.RelistInterval, cfg.Risk.Leverage, logger)
	controller := risk.NewController(accessor, cfg.Risk, logger)

	feed := signalfeed.NewCell()
	feedServer := signalfeed.NewServer(&cfg.Signals, feed, logger)
	if err := feedServer.Start(); err != nil {
		logger.Error("启动信号注入服务失败", zap.Error(err))
		os.Exit(1)
	}
	defer feedServer.Stop()

	var reporter *jsonl.Writer
	if cfg.Output.CycleReportEnabled {
		reporter, err = jsonl.NewWriter(cfg.Output.Dir, cfg.Output.BufferSize)
		if err != nil {
			logger.Error("创建周期报告写入器失败", zap.Error(err))
			os.Exit(1)
		}
		defer reporter.Close()
		logger.Info("周期报告输出", zap.String("path", reporter.Path()))
	}

	run := runner.New(cfg, accessor, builder, engine, controller, feed, reporter, client.Reconnect, logger)
	if err := run.Run(ctx); err != nil {
		logger.Error("做市引擎退出", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("做市引擎正常退出")
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
