// Package audit 实现仅追加、带连续序号与哈希链的审计日志。
// 审计日志是决策历史的唯一凭证: 写入失败必须作为致命错误上抛，
// 系统绝不能在未记录的情况下继续运行。
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EventKind 审计事件类别
type EventKind string

const (
	// KindDecision 决策事件
	KindDecision EventKind = "decision"
	// KindRisk 风控裁决事件
	KindRisk EventKind = "risk"
	// KindExecution 影子执行事件
	KindExecution EventKind = "execution"
	// KindSystem 系统事件（启动、交易日切换等）
	KindSystem EventKind = "system"
	// KindHealth 数据健康事件
	KindHealth EventKind = "health"
)

// genesisHash 链首的前置哈希（64 个 0）
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Record 审计记录
// 序号由日志自身分配，严格 +1 递增且永不复用；记录一经写入不可变。
// 字段顺序即哈希的规范化顺序，不可调整。
type Record struct {
	// Seq 序号，从 1 开始，连续无空洞（跨进程重启累计）
	Seq int64 `json:"seq"`
	// Timestamp 记录时间（RFC3339Nano，固定字符串化保证哈希确定性）
	Timestamp string `json:"timestamp"`
	// Kind 事件类别: decision, risk, execution, system, health
	Kind EventKind `json:"kind"`
	// Type 具体事件类型，如 DECISION_MADE, RISK_REJECTED
	Type string `json:"type"`
	// Payload 事件负载快照（写入后冻结）
	Payload json.RawMessage `json:"payload"`
	// PrevHash 前一条记录的哈希；首条为 64 个 0
	PrevHash string `json:"prev_hash"`
	// Hash 本条记录的 SHA-256（对除本字段外的规范 JSON 计算）
	Hash string `json:"hash,omitempty"`
}

// Log 仅追加审计日志
// Append 是唯一的变更操作；ReadAll/ReadSince 是唯一的读取操作。
type Log struct {
	// path 日志文件路径
	path string
	// f 追加写文件句柄
	f *os.File
	// lastSeq 最近写入的序号
	lastSeq int64
	// lastHash 最近写入记录的哈希
	lastHash string
}

// Open 打开（或创建）审计日志
// 若文件已有记录，从末尾恢复序号与链尾哈希继续追加；
// 发现已有内容损坏（链首缺失、序号断裂或链断裂）时拒绝打开。
// 参数 path: 日志文件路径
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建审计目录失败: %w", err)
	}

	l := &Log{path: path, lastHash: genesisHash}

	existing, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		// 完整历史必须从创世记录开始: 链首被删除视同篡改
		head := &existing[0]
		if head.Seq != 1 || head.PrevHash != genesisHash {
			return nil, fmt.Errorf("已有审计日志缺失链首记录（首条 seq=%d），拒绝追加", head.Seq)
		}
		if err := VerifyChain(existing); err != nil {
			return nil, fmt.Errorf("已有审计日志校验失败，拒绝追加: %w", err)
		}
		tail := existing[len(existing)-1]
		l.lastSeq = tail.Seq
		l.lastHash = tail.Hash
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开审计日志失败: %w", err)
	}
	l.f = f
	return l, nil
}

// Append 追加一条审计记录
// 序号与哈希由日志分配；写入同步刷盘，任何失败均原样上抛。
// 参数 now: 记录时间
// 参数 kind: 事件类别
// 参数 eventType: 事件类型
// 参数 payload: 事件负载（将被 JSON 序列化为冻结快照）
// 返回: 写入成功的记录
func (l *Log) Append(now time.Time, kind EventKind, eventType string, payload any) (*Record, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化审计负载失败: %w", err)
	}

	rec := Record{
		Seq:       l.lastSeq + 1,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Kind:      kind,
		Type:      eventType,
		Payload:   raw,
		PrevHash:  l.lastHash,
	}
	rec.Hash = hashRecord(&rec)

	line, err := json.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("序列化审计记录失败: %w", err)
	}
	line = append(line, '\n')

	if _, err := l.f.Write(line); err != nil {
		return nil, fmt.Errorf("写入审计记录失败 (seq=%d): %w", rec.Seq, err)
	}
	if err := l.f.Sync(); err != nil {
		return nil, fmt.Errorf("审计记录刷盘失败 (seq=%d): %w", rec.Seq, err)
	}

	l.lastSeq = rec.Seq
	l.lastHash = rec.Hash
	return &rec, nil
}

// LastSeq 获取最近写入的序号
func (l *Log) LastSeq() int64 {
	return l.lastSeq
}

// ReadAll 读取全部审计记录
// 返回写入时刻的冻结快照；读取不产生任何变更。
func (l *Log) ReadAll() ([]Record, error) {
	return readRecords(l.path)
}

// ReadSince 读取序号大于 seq 的增量记录
// 参数 seq: 起始序号（不含）
func (l *Log) ReadSince(seq int64) ([]Record, error) {
	all, err := readRecords(l.path)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(all))
	for _, r := range all {
		if r.Seq > seq {
			out = append(out, r)
		}
	}
	return out, nil
}

// Close 关闭审计日志
func (l *Log) Close() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}

// VerifyChain 校验记录序列的完整性
// 检查: 序号严格 +1 连续、哈希自洽、prev_hash 链接正确。
// 首条记录允许非创世 prev_hash（增量读取的窗口校验）。
// 返回: 首个发现的违规
func VerifyChain(records []Record) error {
	for i := range records {
		r := &records[i]
		if want := hashRecord(r); want != r.Hash {
			return fmt.Errorf("记录被篡改: seq=%d", r.Seq)
		}
		if i == 0 {
			continue
		}
		prev := &records[i-1]
		if r.Seq != prev.Seq+1 {
			return fmt.Errorf("序号断裂: %d 之后为 %d", prev.Seq, r.Seq)
		}
		if r.PrevHash != prev.Hash {
			return fmt.Errorf("哈希链断裂: seq=%d", r.Seq)
		}
	}
	return nil
}

// hashRecord 计算记录的 SHA-256
// 规范化方式: 将 Hash 字段置空后按结构体字段顺序 JSON 序列化。
func hashRecord(r *Record) string {
	tmp := *r
	tmp.Hash = ""
	data, err := json.Marshal(&tmp)
	if err != nil {
		// Record 的全部字段均可序列化，此分支不可达
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// readRecords 从文件读取全部记录
// 文件不存在视为空日志。
func readRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("打开审计日志失败: %w", err)
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("解析审计记录失败 (第 %d 条之后): %w", len(out), err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取审计日志失败: %w", err)
	}
	return out, nil
}
