// Package trades 实现已平仓交易的异步 JSONL 输出。
// 此输出仅供外部分析消费，不参与审计链; 权威记录以审计日志为准。
package trades

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"forex-shadow-agent/internal/core/model"
)

type opType int

const (
	opPublish opType = iota
	opFlush
	opClose
)

type op struct {
	typ  opType
	rec  feedRecord
	done chan error
}

// feedRecord 交易输出记录
type feedRecord struct {
	OrderID    int64   `json:"order_id"`
	Pair       string  `json:"pair"`
	Direction  string  `json:"direction"`
	Size       float64 `json:"size"`
	EntryPx    float64 `json:"entry_px"`
	ExitPx     float64 `json:"exit_px"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Reason     string  `json:"reason"`
	PnL        float64 `json:"pnl"`
	OpenedAt   string  `json:"opened_at"`
	ClosedAt   string  `json:"closed_at"`
	HoldMs     int64   `json:"hold_ms"`
}

// Feed 异步交易输出器
// Publish 只负责投递，实际 JSON 编码与文件 I/O 在后台 goroutine 完成。
type Feed struct {
	// path 输出文件路径
	path string
	// ch 操作通道
	ch chan op

	closeOnce sync.Once
	closeErr  error
	closed    int32

	sendMu sync.Mutex
	wg     sync.WaitGroup
}

// NewFeed 创建交易输出器
// 参数 path: 输出文件路径
// 参数 bufferSize: 投递通道容量
func NewFeed(path string, bufferSize int) (*Feed, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开交易输出文件失败: %w", err)
	}

	fd := &Feed{
		path: path,
		ch:   make(chan op, bufferSize),
	}

	fd.wg.Add(1)
	go fd.loop(f)

	return fd, nil
}

// Publish 异步写出一笔已平仓交易
func (fd *Feed) Publish(c *model.ClosedOrder) error {
	if fd == nil {
		return fmt.Errorf("feed 为空")
	}
	if c == nil {
		return fmt.Errorf("平仓记录为空")
	}
	if atomic.LoadInt32(&fd.closed) == 1 {
		return fmt.Errorf("feed 已关闭")
	}

	rec := feedRecord{
		OrderID:    c.Order.ID,
		Pair:       c.Order.Pair,
		Direction:  string(c.Order.Direction),
		Size:       c.Order.Size,
		EntryPx:    c.Order.EntryPx,
		ExitPx:     c.ExitPx,
		StopLoss:   c.Order.StopLoss,
		TakeProfit: c.Order.TakeProfit,
		Reason:     string(c.Reason),
		PnL:        c.PnL,
		OpenedAt:   c.Order.OpenedAt.UTC().Format(time.RFC3339Nano),
		ClosedAt:   c.ClosedAt.UTC().Format(time.RFC3339Nano),
		HoldMs:     c.HoldDuration().Milliseconds(),
	}

	fd.sendMu.Lock()
	defer fd.sendMu.Unlock()
	if atomic.LoadInt32(&fd.closed) == 1 {
		return fmt.Errorf("feed 已关闭")
	}
	fd.ch <- op{typ: opPublish, rec: rec}
	return nil
}

// Flush 强制 flush 文件缓冲区
func (fd *Feed) Flush() error {
	if fd == nil {
		return nil
	}
	if atomic.LoadInt32(&fd.closed) == 1 {
		return nil
	}
	fd.sendMu.Lock()
	defer fd.sendMu.Unlock()
	if atomic.LoadInt32(&fd.closed) == 1 {
		return nil
	}
	done := make(chan error, 1)
	fd.ch <- op{typ: opFlush, done: done}
	return <-done
}

// Close 关闭输出器（会先 flush）
func (fd *Feed) Close() error {
	if fd == nil {
		return nil
	}
	fd.closeOnce.Do(func() {
		atomic.StoreInt32(&fd.closed, 1)
		fd.sendMu.Lock()
		defer fd.sendMu.Unlock()
		done := make(chan error, 1)
		fd.ch <- op{typ: opClose, done: done}
		fd.closeErr = <-done
		close(fd.ch)
	})
	fd.wg.Wait()
	return fd.closeErr
}

func (fd *Feed) loop(f *os.File) {
	defer fd.wg.Done()
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<20) // 1MB buffer
	reply := func(err error, done chan error) {
		if done != nil {
			done <- err
		}
	}

	for req := range fd.ch {
		switch req.typ {
		case opPublish:
			b, err := json.Marshal(req.rec)
			if err != nil {
				continue
			}
			if _, err := bw.Write(b); err != nil {
				continue
			}
			if err := bw.WriteByte('\n'); err != nil {
				continue
			}
		case opFlush:
			reply(bw.Flush(), req.done)
		case opClose:
			reply(bw.Flush(), req.done)
			return
		}
	}
}
