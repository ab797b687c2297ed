// Package account 维护影子账户的权益、日内盈亏与持仓总账。
// 单写者约定: 仅影子执行引擎（经由 runner 的单线程 tick）可以调用
// 任何变更方法；风控只读。若未来引入并发 tick 或并发看板写入，
// 必须将变更方法与审计追加置于同一互斥临界区。
package account

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"forex-shadow-agent/internal/core/model"
	"forex-shadow-agent/internal/util/timeutil"
)

// State 账户状态（持久化格式）
// 作为 JSON 文件落盘，供进程重启后恢复与看板读取。
type State struct {
	// Equity 当前权益
	Equity float64 `json:"equity"`
	// DailyPnL 当日已实现盈亏
	DailyPnL float64 `json:"daily_pnl"`
	// DailyLossCount 当日亏损平仓笔数
	DailyLossCount int `json:"daily_loss_count"`
	// TradingDay 当前交易日标识（UTC 日期）
	TradingDay string `json:"trading_day"`
	// NextOrderID 下一个订单号（单调递增，不复用）
	NextOrderID int64 `json:"next_order_id"`
	// Open 当前未平仓的影子订单
	Open []model.ShadowOrder `json:"open"`
}

// Ledger 影子账户总账
// 进程内唯一的可变共享资源；所有组件通过显式参数接收，不做隐藏全局。
type Ledger struct {
	// path 状态文件路径
	path string
	// st 当前状态
	st State
}

// Open 打开（或创建）账户总账
// 若状态文件存在则恢复，否则以初始权益创建新账户。
// 参数 path: 状态文件路径
// 参数 initialBalance: 新账户的初始权益
// 参数 now: 当前时间（决定初始交易日）
func Open(path string, initialBalance float64, now time.Time) (*Ledger, error) {
	l := &Ledger{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &l.st); err != nil {
			return nil, fmt.Errorf("解析账户状态文件失败: %w", err)
		}
		if l.st.Equity <= 0 {
			return nil, fmt.Errorf("账户状态文件非法: equity=%f", l.st.Equity)
		}
		if l.st.NextOrderID < 1 {
			l.st.NextOrderID = 1
		}
	case os.IsNotExist(err):
		l.st = State{
			Equity:      initialBalance,
			TradingDay:  timeutil.TradingDay(now),
			NextOrderID: 1,
		}
	default:
		return nil, fmt.Errorf("读取账户状态文件失败: %w", err)
	}

	return l, nil
}

// Equity 获取当前权益
func (l *Ledger) Equity() float64 {
	return l.st.Equity
}

// DailyPnL 获取当日已实现盈亏
func (l *Ledger) DailyPnL() float64 {
	return l.st.DailyPnL
}

// DailyLossCount 获取当日亏损平仓笔数
func (l *Ledger) DailyLossCount() int {
	return l.st.DailyLossCount
}

// TradingDay 获取当前交易日标识
func (l *Ledger) TradingDay() string {
	return l.st.TradingDay
}

// OpenCount 获取未平仓订单数
func (l *Ledger) OpenCount() int {
	return len(l.st.Open)
}

// OpenOrders 获取未平仓订单快照（拷贝，调用方不可借此修改总账）
func (l *Ledger) OpenOrders() []model.ShadowOrder {
	out := make([]model.ShadowOrder, len(l.st.Open))
	copy(out, l.st.Open)
	return out
}

// RollDay 检查交易日边界并在跨日时重置日内计数
// 日亏损统计在交易日边界精确重置；权益与持仓不受影响。
// 参数 now: 当前时间
// 返回: 是否发生了跨日重置
func (l *Ledger) RollDay(now time.Time) bool {
	day := timeutil.TradingDay(now)
	if day == l.st.TradingDay {
		return false
	}
	l.st.TradingDay = day
	l.st.DailyPnL = 0
	l.st.DailyLossCount = 0
	return true
}

// AllocateOrderID 分配下一个订单号
// 订单号单调递增，永不复用。
func (l *Ledger) AllocateOrderID() int64 {
	id := l.st.NextOrderID
	l.st.NextOrderID++
	return id
}

// ApplyFill 记录一笔已成交的影子订单
// 仅接受 filled 状态的订单。
func (l *Ledger) ApplyFill(o model.ShadowOrder) error {
	if o.Status != model.StatusFilled {
		return fmt.Errorf("仅 filled 订单可入账，当前状态: %s", o.Status)
	}
	l.st.Open = append(l.st.Open, o)
	return nil
}

// ApplyClose 将一笔平仓结果入账
// 已实现盈亏计入权益和当日盈亏；亏损平仓递增当日亏损计数。
// 返回: 若订单不在持仓中则返回错误
func (l *Ledger) ApplyClose(c model.ClosedOrder) error {
	idx := -1
	for i := range l.st.Open {
		if l.st.Open[i].ID == c.Order.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("平仓订单不在持仓中: id=%d", c.Order.ID)
	}

	l.st.Open = append(l.st.Open[:idx], l.st.Open[idx+1:]...)
	l.st.Equity += c.PnL
	l.st.DailyPnL += c.PnL
	if c.PnL < 0 {
		l.st.DailyLossCount++
	}
	return nil
}

// Rollback 撤销一笔尚未持久化成功的入账订单
// 仅用于持久化失败时恢复无部分状态的不变量；订单号不回收。
func (l *Ledger) Rollback(orderID int64) {
	for i := range l.st.Open {
		if l.st.Open[i].ID == orderID {
			l.st.Open = append(l.st.Open[:i], l.st.Open[i+1:]...)
			return
		}
	}
}

// Persist 将账户状态落盘
// 采用临时文件 + 原子重命名，避免看板读到半写状态。
// 持久化失败必须视为该 tick 的致命错误向上传播。
func (l *Ledger) Persist() error {
	data, err := json.MarshalIndent(&l.st, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化账户状态失败: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("创建状态目录失败: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入账户状态失败: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("替换账户状态文件失败: %w", err)
	}
	return nil
}

// View 生成风控所需的只读账户视图
func (l *Ledger) View() View {
	return View{
		Equity:        l.st.Equity,
		DailyPnL:      l.st.DailyPnL,
		OpenPositions: len(l.st.Open),
		TradingDay:    l.st.TradingDay,
	}
}

// View 账户只读视图
// 风控检查是 (Decision, View, 配置) 的纯函数，视图按值传递杜绝误改。
type View struct {
	// Equity 当前权益
	Equity float64
	// DailyPnL 当日已实现盈亏
	DailyPnL float64
	// OpenPositions 未平仓订单数
	OpenPositions int
	// TradingDay 当前交易日标识
	TradingDay string
}
