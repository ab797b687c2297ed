// Package oanda 价格流解析测试
package oanda

import (
	"math"
	"testing"
)

func TestParsePrice_Valid(t *testing.T) {
	data := []byte(`{"type":"PRICE","instrument":"EUR_USD","time":"2026-03-10T12:00:00Z","bid":"1.08425","ask":"1.08440"}`)

	q, ok, err := parsePrice(data, "EUR_USD")
	if err != nil {
		t.Fatalf("parsePrice 失败: %v", err)
	}
	if !ok {
		t.Fatalf("应识别为目标货币对的价格消息")
	}
	if q.Bid != 1.08425 || q.Ask != 1.08440 {
		t.Fatalf("bid=%f ask=%f, want 1.08425/1.08440", q.Bid, q.Ask)
	}
	if math.Abs(q.Spread()-0.00015) > 1e-9 {
		t.Fatalf("Spread=%f, want 0.00015", q.Spread())
	}
	if q.ArrivedAtUnixNs == 0 {
		t.Fatalf("到达时间戳不应为 0")
	}
}

func TestParsePrice_Heartbeat_Ignored(t *testing.T) {
	data := []byte(`{"type":"HEARTBEAT","time":"2026-03-10T12:00:00Z"}`)

	_, ok, err := parsePrice(data, "EUR_USD")
	if err != nil {
		t.Fatalf("心跳消息不应报错: %v", err)
	}
	if ok {
		t.Fatalf("心跳消息不应产出报价")
	}
}

func TestParsePrice_OtherInstrument_Ignored(t *testing.T) {
	data := []byte(`{"type":"PRICE","instrument":"GBP_USD","bid":"1.26","ask":"1.2602"}`)

	_, ok, err := parsePrice(data, "EUR_USD")
	if err != nil || ok {
		t.Fatalf("非目标货币对应忽略: ok=%v err=%v", ok, err)
	}
}

func TestParsePrice_CrossedQuote_Rejected(t *testing.T) {
	// bid ≥ ask 的交叉报价非法
	data := []byte(`{"type":"PRICE","instrument":"EUR_USD","bid":"1.0850","ask":"1.0840"}`)

	if _, _, err := parsePrice(data, "EUR_USD"); err == nil {
		t.Fatalf("交叉报价应返回错误")
	}
}

func TestParsePrice_MalformedJSON(t *testing.T) {
	if _, _, err := parsePrice([]byte(`{not json`), "EUR_USD"); err == nil {
		t.Fatalf("非法 JSON 应返回错误")
	}
}

func TestParsePrice_BadNumber(t *testing.T) {
	data := []byte(`{"type":"PRICE","instrument":"EUR_USD","bid":"abc","ask":"1.0844"}`)
	if _, _, err := parsePrice(data, "EUR_USD"); err == nil {
		t.Fatalf("非法价格字符串应返回错误")
	}
}

func TestGranularity_Mapping(t *testing.T) {
	cases := []struct {
		tf   string
		want string
	}{
		{"1m", "M1"},
		{"5m", "M5"},
		{"15m", "M15"},
		{"1h", "H1"},
		{"4h", "H4"},
		{"1d", "D"},
		{"unknown", "H4"},
	}
	for _, c := range cases {
		if got := granularity(c.tf); got != c.want {
			t.Fatalf("granularity(%s)=%s, want %s", c.tf, got, c.want)
		}
	}
}
