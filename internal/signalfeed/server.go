package signalfeed

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/core/model"
)

// shutdownTimeout HTTP 服务优雅退出超时
const shutdownTimeout = 5 * time.Second

// signalRequest 信号写入请求体
type signalRequest struct {
	RSI           float64 `json:"rsi"`
	MACDHistogram float64 `json:"macd_histogram"`
	LongEnable    bool    `json:"long_enable"`
	ShortEnable   bool    `json:"short_enable"`
	BuyEnable     bool    `json:"buy_enable"`
	SellEnable    bool    `json:"sell_enable"`
}

// Server 信号注入 HTTP 服务
// 提供 POST /signal 写入信号、GET /signal 查询当前快照、
// GET /healthz 健康检查，配置开启时暴露 GET /metrics。
type Server struct {
	// cfg 服务配置
	cfg *config.SignalsConfig
	// cell 信号单元
	cell *Cell
	// srv 底层 HTTP 服务
	srv *http.Server
	// logger 日志记录器
	logger *zap.Logger
}

// NewServer 创建信号注入服务
// 参数 cfg: 服务配置
// 参数 cell: 信号单元
// 参数 logger: 日志记录器
func NewServer(cfg *config.SignalsConfig, cell *Cell, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		cell:   cell,
		logger: logger.Named("signals"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/signal", s.handleUpdate)
	router.GET("/signal", s.handleSnapshot)
	router.GET("/healthz", s.handleHealthz)
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.srv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	return s
}

// Start 启动服务
// 监听地址为空时不启动，直接返回 nil
func (s *Server) Start() error {
	if s.cfg.ListenAddr == "" {
		return nil
	}

	go func() {
		s.logger.Info("信号注入服务启动", zap.String("addr", s.cfg.ListenAddr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("信号注入服务异常退出", zap.Error(err))
		}
	}()
	return nil
}

// Stop 优雅关闭服务
func (s *Server) Stop() error {
	if s.cfg.ListenAddr == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// handleUpdate 写入一份新信号
func (s *Server) handleUpdate(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sig := s.cell.Update(model.SignalSnapshot{
		RSI:           req.RSI,
		MACDHistogram: req.MACDHistogram,
		LongEnable:    req.LongEnable,
		ShortEnable:   req.ShortEnable,
		BuyEnable:     req.BuyEnable,
		SellEnable:    req.SellEnable,
	})

	s.logger.Info("收到信号更新",
		zap.Uint64("version", sig.Version),
		zap.Float64("rsi", sig.RSI),
		zap.Float64("macd_histogram", sig.MACDHistogram),
		zap.Bool("long_enable", sig.LongEnable),
		zap.Bool("short_enable", sig.ShortEnable))

	c.JSON(http.StatusOK, sig)
}

// handleSnapshot 查询当前信号快照
func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.cell.Snapshot())
}

// handleHealthz 健康检查
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
