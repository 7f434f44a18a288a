package utils

import (
	"strings"
	"unicode/utf8"
)

// TruncateString 安全截断字符串到指定长度（支持 UTF-8）
// maxLen 是字符数（不是字节数）
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	// 如果字符串长度小于最大长度，直接返回
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	// 截断字符串
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}

	return s
}

// SanitizeString 清理字符串，移除不可见字符和控制字符
func SanitizeString(s string) string {
	// 移除前后空白
	s = strings.TrimSpace(s)

	// 替换多个空白字符为单个空格
	s = strings.Join(strings.Fields(s), " ")

	return s
}

// SafeDisplayName 安全处理显示名，限制长度并清理（入库前调用）
func SafeDisplayName(displayName string) string {
	displayName = SanitizeString(displayName)
	return TruncateString(displayName, 255)
}
