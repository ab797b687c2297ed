// REST K 线客户端与 DataProvider 实现。
package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"forex-shadow-agent/internal/config"
	"forex-shadow-agent/internal/core/model"
	"forex-shadow-agent/internal/util/fastparse"
)

// Provider OANDA 实时数据提供者
// K 线经 REST 拉取，价差取自价格流的最新报价。
type Provider struct {
	// cfg 市场数据源配置
	cfg *config.MarketConfig
	// client HTTP 客户端
	client *http.Client
	// stream 价格流客户端（可为 nil，此时价差不可用）
	stream *Stream
	// logger 日志记录器
	logger *zap.Logger
}

// NewProvider 创建实时数据提供者
// 参数 cfg: 市场数据源配置
// 参数 pair: 货币对
// 参数 logger: 日志记录器
func NewProvider(cfg *config.MarketConfig, pair string, logger *zap.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		stream: NewStream(cfg, pair, logger),
		logger: logger.Named("oanda"),
	}
}

// Stream 获取价格流客户端（由调用方负责 Connect/Run/Close）
func (p *Provider) Stream() *Stream {
	return p.stream
}

// FetchCandles 经 REST 拉取最近的已收盘 K 线
// 参数 ctx: 上下文（超时由调用方设置）
// 参数 pair: 货币对
// 参数 timeframe: K 线周期
// 参数 lookback: K 线数量
// 返回: K 线序列（旧到新）
func (p *Provider) FetchCandles(ctx context.Context, pair, timeframe string, lookback int) ([]model.Candle, error) {
	endpoint := fmt.Sprintf("%s/v3/instruments/%s/candles?granularity=%s&count=%d&price=M",
		p.cfg.RestURL, url.PathEscape(pair), granularity(timeframe), lookback)

	body, err := p.doRequest(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("请求 K 线失败: %w", err)
	}

	var resp candlesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析 K 线响应失败: %w", err)
	}

	candles := make([]model.Candle, 0, len(resp.Candles))
	for _, rc := range resp.Candles {
		if !rc.Complete {
			continue // 未收盘 K 线不参与指标计算
		}
		ts, err := time.Parse(time.RFC3339, rc.Time)
		if err != nil {
			return nil, fmt.Errorf("解析 K 线时间失败: %w", err)
		}
		candles = append(candles, model.Candle{
			Timestamp: ts,
			Open:      fastparse.MustParseFloat(rc.Mid.O),
			High:      fastparse.MustParseFloat(rc.Mid.H),
			Low:       fastparse.MustParseFloat(rc.Mid.L),
			Close:     fastparse.MustParseFloat(rc.Mid.C),
			Volume:    float64(rc.Volume),
		})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("K 线响应为空")
	}
	return candles, nil
}

// FetchSpread 获取当前买卖价差（取自价格流最新报价）
// 尚未收到任何报价时返回错误，调用方按价差不可用处理。
func (p *Provider) FetchSpread(ctx context.Context, pair string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q, ok := p.stream.Quote()
	if !ok {
		return 0, fmt.Errorf("价格流尚无报价")
	}
	return q.Spread(), nil
}

// doRequest 执行 HTTP GET 请求
// 参数 ctx: 上下文
// 参数 endpoint: 请求地址
// 返回: 响应体字节数组
func (p *Provider) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "forex-shadow-agent/1.0")
	req.Header.Set("Accept", "application/json")
	if p.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP 状态码错误: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	return body, nil
}

// granularity 将周期字符串映射为 OANDA 粒度标识
func granularity(tf string) string {
	switch tf {
	case "1m":
		return "M1"
	case "5m":
		return "M5"
	case "15m":
		return "M15"
	case "1h":
		return "H1"
	case "4h":
		return "H4"
	case "1d":
		return "D"
	default:
		return "H4"
	}
}
