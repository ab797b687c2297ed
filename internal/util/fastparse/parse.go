// Package fastparse 提供高性能的字符串解析函数。
// 避免在行情流热路径使用 fmt，统一用 strconv 转换。
// 主要用于解析价格流消息中以字符串编码的价格字段。
package fastparse

import (
	"strconv"
)

// ParseFloat 快速解析浮点数字符串
// 参数 s: 待解析的字符串，如 "1.08425"
// 返回: 解析后的浮点数和可能的错误
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// MustParseFloat 解析浮点数，失败时返回 0
// 用于已知格式正确的场景，简化错误处理
// 参数 s: 待解析的字符串
// 返回: 解析后的浮点数，失败返回 0
func MustParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
