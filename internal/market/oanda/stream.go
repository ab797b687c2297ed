// 价格流 WebSocket 客户端。
// 心跳机制: 协议层 ping/pong；断线按指数退避自动重连。
package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"forex-shadow-agent/internal/config"
	"forex-shadow-agent/internal/util/backoff"
	"forex-shadow-agent/internal/util/fastparse"
	"forex-shadow-agent/internal/util/timeutil"
)

// Quote 最新报价
type Quote struct {
	// Bid 最优买价
	Bid float64
	// Ask 最优卖价
	Ask float64
	// ArrivedAtUnixNs 本机收到报价的时间（纳秒）
	ArrivedAtUnixNs int64
}

// Spread 计算买卖价差
func (q *Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// Stream 价格流客户端
// 后台维护指定货币对的最新报价，供 FetchSpread 读取。
type Stream struct {
	// cfg 市场数据源配置
	cfg *config.MarketConfig
	// pair 订阅的货币对
	pair string
	// logger 日志记录器
	logger *zap.Logger

	// conn WebSocket 连接
	conn *websocket.Conn
	// connMu 连接锁
	connMu sync.Mutex

	// quote 最新报价
	quote Quote
	// quoteOK 是否已有报价
	quoteOK bool
	// quoteMu 报价锁
	quoteMu sync.RWMutex

	// backoff 重连退避
	backoff *backoff.Backoff
	// closed 是否已关闭
	closed int32

	// parseErrCount 解析错误计数（用于采样日志）
	parseErrCount uint64
	// lastParseErrLogNs 上次解析错误日志时间（纳秒）
	lastParseErrLogNs int64
}

// NewStream 创建价格流客户端
// 参数 cfg: 市场数据源配置
// 参数 pair: 货币对
// 参数 logger: 日志记录器
func NewStream(cfg *config.MarketConfig, pair string, logger *zap.Logger) *Stream {
	return &Stream{
		cfg:     cfg,
		pair:    pair,
		logger:  logger.Named("oanda-stream"),
		backoff: backoff.NewDefault(),
	}
}

// Connect 建立 WebSocket 连接并订阅
// 参数 ctx: 上下文，用于取消连接
func (s *Stream) Connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", "forex-shadow-agent/1.0")
	if s.cfg.APIToken != "" {
		header.Set("Authorization", "Bearer "+s.cfg.APIToken)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.StreamURL, header)
	if err != nil {
		return fmt.Errorf("连接价格流失败: %w", err)
	}

	readTimeout := time.Duration(s.cfg.ReadTimeoutMs) * time.Millisecond
	if readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}

	req := subscribeRequest{Type: "subscribe", Instruments: []string{s.pair}}
	data, err := json.Marshal(req)
	if err != nil {
		conn.Close()
		return fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return fmt.Errorf("发送订阅请求失败: %w", err)
	}

	s.conn = conn
	s.backoff.Reset()
	s.logger.Info("价格流连接成功", zap.String("url", s.cfg.StreamURL), zap.String("pair", s.pair))
	return nil
}

// Run 启动客户端主循环
// 包含心跳与读取循环；读取失败后自动重连。
func (s *Stream) Run(ctx context.Context) {
	go s.pingLoop(ctx)
	s.readLoop(ctx)
}

// Quote 获取最新报价
// 返回: 报价与是否可用（尚未收到任何报价时 false）
func (s *Stream) Quote() (Quote, bool) {
	s.quoteMu.RLock()
	defer s.quoteMu.RUnlock()
	return s.quote, s.quoteOK
}

// Close 关闭价格流客户端
func (s *Stream) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Stream) readLoop(ctx context.Context) {
	readTimeout := time.Duration(s.cfg.ReadTimeoutMs) * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if atomic.LoadInt32(&s.closed) == 1 {
			return
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			s.reconnect(ctx)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&s.closed) == 1 || ctx.Err() != nil {
				return
			}
			s.logger.Warn("读取价格流消息失败", zap.Error(err))
			s.reconnect(ctx)
			continue
		}
		if readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		}

		q, ok, err := parsePrice(data, s.pair)
		if err != nil {
			s.maybeLogParseError(err, data)
			continue
		}
		if !ok {
			continue // 心跳或其他货币对
		}

		s.quoteMu.Lock()
		s.quote = q
		s.quoteOK = true
		s.quoteMu.Unlock()
	}
}

func (s *Stream) pingLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.PingIntervalMs) * time.Millisecond
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadInt32(&s.closed) == 1 {
				return
			}
			s.connMu.Lock()
			conn := s.conn
			if conn != nil {
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			s.connMu.Unlock()
		}
	}
}

func (s *Stream) reconnect(ctx context.Context) {
	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	delay := s.backoff.Next()
	s.logger.Info("价格流重连等待", zap.Duration("delay", delay), zap.Int("attempt", s.backoff.Attempt()))

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	if err := s.Connect(ctx); err != nil {
		s.logger.Warn("价格流重连失败", zap.Error(err))
	}
}

// maybeLogParseError 采样记录解析错误，避免坏消息风暴刷爆日志
// 每 10 秒至多输出一条，携带累计计数。
func (s *Stream) maybeLogParseError(err error, data []byte) {
	count := atomic.AddUint64(&s.parseErrCount, 1)
	nowNs := timeutil.NowNano()
	last := atomic.LoadInt64(&s.lastParseErrLogNs)
	if nowNs-last < int64(10*time.Second) {
		return
	}
	if !atomic.CompareAndSwapInt64(&s.lastParseErrLogNs, last, nowNs) {
		return
	}
	sample := data
	if len(sample) > 256 {
		sample = sample[:256]
	}
	s.logger.Warn("价格流消息解析失败（采样）",
		zap.Error(err),
		zap.Uint64("total_errors", count),
		zap.ByteString("sample", sample))
}

// parsePrice 解析价格流消息为报价
// 返回: 报价、是否为目标货币对的价格消息、解析错误
func parsePrice(data []byte, pair string) (Quote, bool, error) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Quote{}, false, fmt.Errorf("解析价格流消息失败: %w", err)
	}
	if msg.Type != "PRICE" || msg.Instrument != pair {
		return Quote{}, false, nil
	}

	bid, err := fastparse.ParseFloat(msg.Bid)
	if err != nil {
		return Quote{}, false, fmt.Errorf("解析 bid 失败: %w", err)
	}
	ask, err := fastparse.ParseFloat(msg.Ask)
	if err != nil {
		return Quote{}, false, fmt.Errorf("解析 ask 失败: %w", err)
	}
	if bid <= 0 || ask <= 0 || bid >= ask {
		return Quote{}, false, fmt.Errorf("报价非法: bid=%f ask=%f", bid, ask)
	}

	return Quote{Bid: bid, Ask: ask, ArrivedAtUnixNs: timeutil.NowNano()}, true, nil
}
