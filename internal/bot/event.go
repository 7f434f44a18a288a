package bot

// EventKind 入站事件类型
type EventKind int

const (
	// EventKindText 文本消息事件
	EventKindText EventKind = iota + 1
	// EventKindPostback Postback 事件
	EventKindPostback
)

// Event 归一化后的入站事件
// server 层把 SDK 解码出的 webhook 事件转换成这个结构再交给 Handler，
// 处理逻辑不依赖平台 SDK 的事件类型。
type Event struct {
	Kind           EventKind
	WebhookEventID string // 平台事件ID，去重用，可能为空
	DeliveryID     string // 本次 webhook 投递的跟踪ID，日志关联用
	ReplyToken     string
	UserID         string
	Text           string // Kind == EventKindText 时有效
	PostbackData   string // Kind == EventKindPostback 时有效
}
