// Package oanda 实现 OANDA 风格的实时市场数据提供者。
// REST 拉取 K 线，WebSocket 价格流维护最新报价。
package oanda

// candlesResponse K 线 REST 响应
type candlesResponse struct {
	// Instrument 货币对
	Instrument string `json:"instrument"`
	// Granularity K 线粒度，如 H4
	Granularity string `json:"granularity"`
	// Candles K 线列表
	Candles []restCandle `json:"candles"`
}

// restCandle 单根 K 线
type restCandle struct {
	// Complete 是否已收盘
	Complete bool `json:"complete"`
	// Volume 成交量
	Volume int64 `json:"volume"`
	// Time K 线时间（RFC3339）
	Time string `json:"time"`
	// Mid 中间价 OHLC（字符串编码）
	Mid restOHLC `json:"mid"`
}

// restOHLC 字符串编码的 OHLC
type restOHLC struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

// subscribeRequest 价格流订阅请求
type subscribeRequest struct {
	// Type 消息类型，固定为 subscribe
	Type string `json:"type"`
	// Instruments 订阅的货币对列表
	Instruments []string `json:"instruments"`
}

// streamMessage 价格流消息
type streamMessage struct {
	// Type 消息类型: PRICE 或 HEARTBEAT
	Type string `json:"type"`
	// Instrument 货币对
	Instrument string `json:"instrument"`
	// Time 报价时间（RFC3339）
	Time string `json:"time"`
	// Bid 最优买价（字符串编码）
	Bid string `json:"bid"`
	// Ask 最优卖价（字符串编码）
	Ask string `json:"ask"`
}
