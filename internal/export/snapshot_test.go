// Package export 快照导出测试
package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"forex-shadow-agent/internal/core/model"
)

func TestExporter_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	e, err := NewExporter(path)
	if err != nil {
		t.Fatalf("NewExporter 失败: %v", err)
	}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := &Snapshot{
		Pair:    "EUR_USD",
		TickSeq: 7,
		Price:   1.1042,
		Spread:  0.00015,
		Indicators: map[string]float64{
			model.IndRSI: 52.3,
			model.IndATR: 0.0041,
		},
		Equity:        10015.5,
		DailyPnL:      15.5,
		OpenPositions: 1,
	}
	if err := e.Write(now, s); err != nil {
		t.Fatalf("Write 失败: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取快照失败: %v", err)
	}

	var got Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("快照不是合法 JSON: %v", err)
	}
	if got.Pair != "EUR_USD" || got.TickSeq != 7 {
		t.Fatalf("快照内容不符: %+v", got)
	}
	if got.Equity != 10015.5 {
		t.Fatalf("Equity=%f, want 10015.5", got.Equity)
	}
	if got.UpdatedAt == "" {
		t.Fatalf("UpdatedAt 不应为空")
	}
}

func TestExporter_OverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	e, _ := NewExporter(path)
	now := time.Now()

	if err := e.Write(now, &Snapshot{Pair: "EUR_USD", TickSeq: 1}); err != nil {
		t.Fatalf("首次 Write 失败: %v", err)
	}
	if err := e.Write(now, &Snapshot{Pair: "EUR_USD", TickSeq: 2}); err != nil {
		t.Fatalf("二次 Write 失败: %v", err)
	}

	data, _ := os.ReadFile(path)
	var got Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("快照不是合法 JSON: %v", err)
	}
	if got.TickSeq != 2 {
		t.Fatalf("TickSeq=%d, want 2（完整替换）", got.TickSeq)
	}

	// 临时文件不应残留
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("临时文件残留")
	}
}

func TestExporter_NilSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	e, _ := NewExporter(path)
	if err := e.Write(time.Now(), nil); err == nil {
		t.Fatalf("空快照应返回错误")
	}
}
