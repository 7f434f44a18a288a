package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"line-feedback-bot/internal/cache"
	"line-feedback-bot/internal/line"
	"line-feedback-bot/internal/utils"

	"github.com/sirupsen/logrus"
)

// Messenger LINE 平台交互接口（由 line.Client 实现）
type Messenger interface {
	GetProfile(ctx context.Context, userID string) (*line.Profile, error)
	ReplyText(ctx context.Context, replyToken, text string) error
}

// Forwarder 下游反馈转发接口（由 service.FeedbackService 实现）
type Forwarder interface {
	Forward(ctx context.Context, userID, displayName string,
		feedback int, recordID *int64, feedbackTxt, listType string) error
}

// Handler 事件处理器：按事件类型分发，读写用户状态缓存
type Handler struct {
	messenger  Messenger
	forwarder  Forwarder
	userCache  *cache.UserCache
	seenEvents *utils.SafeMap // webhook 事件ID去重
}

// NewHandler 创建事件处理器
func NewHandler(messenger Messenger, forwarder Forwarder, userCache *cache.UserCache) *Handler {
	return &Handler{
		messenger:  messenger,
		forwarder:  forwarder,
		userCache:  userCache,
		seenEvents: utils.NewSafeMap(30 * time.Minute),
	}
}

// HandleEvent 处理单个 webhook 事件
// 每个事件独立处理：任何一步失败只影响本事件，记日志后返回。
func (h *Handler) HandleEvent(ctx context.Context, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("❌ 事件处理发生 panic: %v", r)
		}
	}()

	log := logrus.WithField("投递ID", event.DeliveryID)

	if event.UserID == "" {
		log.Debug("事件缺少用户来源，跳过")
		return
	}

	// 冷启动或缓存被清空后，先从数据库重建再信任缓存内容
	if err := h.userCache.EnsureFresh(); err != nil {
		log.Errorf("❌ 缓存重载失败，丢弃本事件: %v", err)
		return
	}

	// 去重放在重载成功之后：因重载失败被丢弃的事件不占用事件ID，
	// 平台重投递时还能补处理
	if event.WebhookEventID != "" && h.seenEvents.Seen(event.WebhookEventID) {
		log.WithField("事件ID", event.WebhookEventID).Debug("重复投递的事件，跳过")
		return
	}

	state, known := h.userCache.Get(event.UserID)

	// 首次接触的用户：建档、通知下游，不回复
	if !known {
		h.bootstrapUser(ctx, log, event.UserID)
		return
	}

	switch event.Kind {
	case EventKindText:
		h.handleTextMessage(ctx, log, event, state)
	case EventKindPostback:
		h.handlePostback(ctx, log, event, state)
	default:
		log.WithField("类型", event.Kind).Debug("未处理的事件类型")
	}
}

// bootstrapUser 新用户建档
// 拉取平台资料、写入缓存和数据库，并向下游发一条零值反馈作为建档通知。
// 本次事件不回复，处理到此为止。
func (h *Handler) bootstrapUser(ctx context.Context, log *logrus.Entry, userID string) {
	profile, err := h.messenger.GetProfile(ctx, userID)
	if err != nil {
		log.WithField("用户ID", userID).Errorf("❌ 获取用户资料失败: %v", err)
		return
	}

	displayName := utils.SafeDisplayName(profile.DisplayName)
	h.userCache.RecordNewUser(userID, displayName)

	zero := int64(0)
	if err := h.forwarder.Forward(ctx, userID, displayName, 0, &zero, "", ""); err != nil {
		log.Errorf("❌ 新用户建档通知转发失败: %v", err)
	}

	log.WithFields(logrus.Fields{
		"用户ID": userID,
		"显示名":  displayName,
	}).Info("👤 新用户已建档")
}

// handleTextMessage 处理文本消息
func (h *Handler) handleTextMessage(ctx context.Context, log *logrus.Entry, event *Event, state cache.UserState) {
	log.WithFields(logrus.Fields{
		"用户ID": event.UserID,
		"消息":   utils.TruncateString(event.Text, 64),
	}).Debug("💬 收到文本消息")

	// 打招呼：只回复，不动任何状态
	if strings.EqualFold(event.Text, "hello") {
		reply := fmt.Sprintf("Hello %s!", state.DisplayName)
		if err := h.messenger.ReplyText(ctx, event.ReplyToken, reply); err != nil {
			log.Errorf("❌ 发送问候回复失败: %v", err)
		}
		return
	}

	fb, prefixMatched := ParseTextFeedback(event.Text)
	if !prefixMatched {
		// 既不是 hello 也不是反馈：静默丢弃
		return
	}
	if fb == nil {
		// 前缀命中但没有正文，同样不回复
		return
	}

	// 文本反馈评分恒为 0，记录ID取该用户最近一次 Postback 留下的值（可能为空）
	if err := h.forwarder.Forward(ctx, event.UserID, state.DisplayName,
		0, state.LastRecordID, fb.Text, fb.ListType); err != nil {
		log.Errorf("❌ 文本反馈转发失败: %v", err)
	}

	if err := h.messenger.ReplyText(ctx, event.ReplyToken, "Thanks for your feedback!"); err != nil {
		log.Errorf("❌ 发送反馈致谢失败: %v", err)
	}
}

// handlePostback 处理 Postback 事件
func (h *Handler) handlePostback(ctx context.Context, log *logrus.Entry, event *Event, state cache.UserState) {
	fb, ok := ParsePostbackFeedback(event.PostbackData)
	if !ok {
		// 不符合反馈格式的 Postback 静默丢弃
		log.WithField("用户ID", event.UserID).Debug("Postback 载荷格式不匹配，忽略")
		return
	}

	log.WithFields(logrus.Fields{
		"用户ID": event.UserID,
		"评分":   fb.Feedback,
		"记录ID": fb.RecordID,
		"列表":   fb.ListType,
	}).Info("📊 收到评分反馈")

	recordID := fb.RecordID
	if err := h.forwarder.Forward(ctx, event.UserID, state.DisplayName,
		fb.Feedback, &recordID, "-", fb.ListType); err != nil {
		log.Errorf("❌ 评分反馈转发失败: %v", err)
	}

	reply := fmt.Sprintf("Thanks for your feedback: %d/5!", fb.Feedback)
	if err := h.messenger.ReplyText(ctx, event.ReplyToken, reply); err != nil {
		log.Errorf("❌ 发送评分致谢失败: %v", err)
	}

	// 记住本次记录ID，后续的文本反馈会关联到它
	h.userCache.RecordLastID(event.UserID, fb.RecordID)
}

// Stop 停止处理器的后台清理协程
func (h *Handler) Stop() {
	h.seenEvents.Stop()
}
