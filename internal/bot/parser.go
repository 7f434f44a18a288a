package bot

import (
	"regexp"
	"strconv"
	"strings"
)

// 文本反馈前缀，按声明顺序匹配，先命中者生效
var textFeedbackPrefixes = []string{
	"Service Feedback :",
	"Action Feedback :",
}

// freeTextPattern 从消息第一个冒号之后截取反馈正文（冒号后可跟空白，正文至少一个字符）
var freeTextPattern = regexp.MustCompile(`:\s*(.+)`)

// postbackPattern Postback 载荷格式：
//
//	feedback: <评分> ( id : <记录ID>
//	action feedback: <评分> ( id : <记录ID>
//
// 载荷在匹配前已统一转为小写。
var postbackPattern = regexp.MustCompile(`(feedback|action feedback):\s(\d+)\s+\( id :\s(\d+)`)

// TextFeedback 从自由文本消息解析出的反馈
type TextFeedback struct {
	ListType string // "service" 或 "action"
	Text     string // 冒号之后的反馈正文
}

// ParseTextFeedback 解析文本消息中的反馈
// 返回值 prefixMatched 表示消息里是否出现了反馈前缀；
// 前缀命中但冒号后没有正文时返回 (nil, true)，调用方应终止处理且不回复。
func ParseTextFeedback(msg string) (fb *TextFeedback, prefixMatched bool) {
	for _, prefix := range textFeedbackPrefixes {
		if !strings.Contains(msg, prefix) {
			continue
		}

		listType := "action"
		if strings.Contains(prefix, "Service") {
			listType = "service"
		}

		match := freeTextPattern.FindStringSubmatch(msg)
		if match == nil {
			return nil, true
		}

		return &TextFeedback{
			ListType: listType,
			Text:     match[1],
		}, true
	}

	return nil, false
}

// PostbackFeedback 从 Postback 载荷解析出的反馈
type PostbackFeedback struct {
	ListType string // "service" 或 "action"
	Feedback int    // 评分
	RecordID int64  // 业务记录ID
}

// ParsePostbackFeedback 解析 Postback 载荷
// 载荷先整体转小写再匹配；不符合格式时返回 (nil, false)，调用方静默丢弃。
func ParsePostbackFeedback(data string) (*PostbackFeedback, bool) {
	lowered := strings.ToLower(data)

	listType := "action"
	if strings.Contains(lowered, "service feedback:") {
		listType = "service"
	}

	match := postbackPattern.FindStringSubmatch(lowered)
	if match == nil {
		return nil, false
	}

	feedback, err := strconv.Atoi(match[2])
	if err != nil {
		return nil, false
	}

	recordID, err := strconv.ParseInt(match[3], 10, 64)
	if err != nil {
		return nil, false
	}

	return &PostbackFeedback{
		ListType: listType,
		Feedback: feedback,
		RecordID: recordID,
	}, true
}
