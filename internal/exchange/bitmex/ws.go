package bitmex

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/util/backoff"
)

// handshakeTimeout WebSocket 握手超时
const handshakeTimeout = 10 * time.Second

// Keepalive realtime WebSocket 保活连接
// 只用于判定与交易所的连接健康度：连接存活且近期有消息推送时认为健康，
// 行情与账户数据仍走 REST 拉取。
type Keepalive struct {
	// cfg 连接配置
	cfg *config.APIConfig
	// logger 日志记录器
	logger *zap.Logger
	// conn WebSocket 连接
	conn *websocket.Conn
	// connMu 连接锁
	connMu sync.Mutex
	// lastMsgNs 最后收到消息的时间（纳秒）
	lastMsgNs int64
	// connected 是否处于连接状态
	connected int32
	// backoff 重连退避
	backoff *backoff.Backoff
	// closed 是否已关闭
	closed int32
}

// NewKeepalive 创建保活连接
// 参数 cfg: 连接配置
// 参数 logger: 日志记录器
func NewKeepalive(cfg *config.APIConfig, logger *zap.Logger) *Keepalive {
	return &Keepalive{
		cfg:     cfg,
		logger:  logger.Named("realtime"),
		backoff: backoff.NewDefault(),
	}
}

// Start 建立连接并启动读取与心跳循环
// 参数 ctx: 上下文，用于取消连接
func (k *Keepalive) Start(ctx context.Context) error {
	if err := k.dial(ctx); err != nil {
		return err
	}

	go k.readLoop(ctx)
	go k.heartbeatLoop(ctx)
	return nil
}

// dial 建立 WebSocket 连接
func (k *Keepalive) dial(ctx context.Context) error {
	k.connMu.Lock()
	defer k.connMu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", "bitmex-market-maker/1.0")

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, k.cfg.WSURL, header)
	if err != nil {
		return err
	}

	k.conn = conn
	atomic.StoreInt32(&k.connected, 1)
	atomic.StoreInt64(&k.lastMsgNs, time.Now().UnixNano())
	k.backoff.Reset()
	k.logger.Info("realtime 连接成功", zap.String("url", k.cfg.WSURL))
	return nil
}

// readLoop 读取循环
// 收到任意消息即刷新活跃时间，读取失败则退避重连。
func (k *Keepalive) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if atomic.LoadInt32(&k.closed) == 1 {
			return
		}

		k.connMu.Lock()
		conn := k.conn
		k.connMu.Unlock()

		if conn == nil {
			if !k.reconnect(ctx) {
				return
			}
			continue
		}

		_, _, err := conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&k.closed) == 1 {
				return
			}
			k.logger.Warn("读取 realtime 消息失败", zap.Error(err))
			k.closeConn()
			if !k.reconnect(ctx) {
				return
			}
			continue
		}

		atomic.StoreInt64(&k.lastMsgNs, time.Now().UnixNano())
	}
}

// heartbeatLoop 心跳循环
// 按配置间隔发送文本 ping，服务端回复 pong 会刷新活跃时间。
func (k *Keepalive) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(k.cfg.PingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadInt32(&k.closed) == 1 {
				return
			}

			k.connMu.Lock()
			conn := k.conn
			if conn == nil {
				k.connMu.Unlock()
				continue
			}
			// gorilla/websocket 不允许并发多写者，用 connMu 串行化写入
			err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			k.connMu.Unlock()

			if err != nil {
				k.logger.Warn("发送 realtime ping 失败", zap.Error(err))
				k.closeConn()
			}
		}
	}
}

// reconnect 退避后重连
// 返回 false 表示上下文已取消或连接已关闭
func (k *Keepalive) reconnect(ctx context.Context) bool {
	k.logger.Info("realtime 重连等待", zap.Int("attempt", k.backoff.Attempt()))
	if !k.backoff.Wait(ctx) {
		return false
	}

	if atomic.LoadInt32(&k.closed) == 1 {
		return false
	}

	if err := k.dial(ctx); err != nil {
		k.logger.Warn("realtime 重连失败", zap.Error(err))
		return true
	}
	return true
}

// closeConn 关闭当前连接并标记为不健康
func (k *Keepalive) closeConn() {
	k.connMu.Lock()
	defer k.connMu.Unlock()

	if k.conn != nil {
		_ = k.conn.Close()
		k.conn = nil
	}
	atomic.StoreInt32(&k.connected, 0)
}

// Healthy 连接是否健康
// 连接存活且最近一条消息未超过陈旧阈值
func (k *Keepalive) Healthy() bool {
	if atomic.LoadInt32(&k.connected) != 1 {
		return false
	}
	age := time.Now().UnixNano() - atomic.LoadInt64(&k.lastMsgNs)
	return age < k.cfg.StaleAfter().Nanoseconds()
}

// Close 关闭保活连接
func (k *Keepalive) Close() error {
	atomic.StoreInt32(&k.closed, 1)
	k.closeConn()
	return nil
}
