package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"line-feedback-bot/internal/bot"
	"line-feedback-bot/internal/cache"
	"line-feedback-bot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/sirupsen/logrus"
)

// Server Webhook HTTP 服务
type Server struct {
	router        *gin.Engine
	httpServer    *http.Server
	channelSecret string
	handler       *bot.Handler
	userStore     *service.UserStoreService
	userCache     *cache.UserCache
}

// NewServer 创建 Webhook 服务
func NewServer(channelSecret string, handler *bot.Handler,
	userStore *service.UserStoreService, userCache *cache.UserCache) *Server {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:        router,
		channelSecret: channelSecret,
		handler:       handler,
		userStore:     userStore,
		userCache:     userCache,
	}

	// Webhook 入口
	router.POST("/webhook", s.handleWebhook)

	// 健康检查
	router.GET("/health", s.handleHealth)

	// 管理接口
	router.GET("/list_users", s.handleListUsers)
	router.GET("/delete_all_users", s.handleDeleteAllUsers)
	router.DELETE("/delete_all_users", s.handleDeleteAllUsers)

	return s
}

// Run 启动 HTTP 服务
func (s *Server) Run(port int) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 优雅停止 HTTP 服务
func (s *Server) Stop(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.Errorf("❌ HTTP 服务关闭失败: %v", err)
		return
	}
	logrus.Info("🛑 HTTP 服务已停止")
}

// handleWebhook 接收平台事件批次
// SDK 负责签名校验与事件解码，这里逐事件分发到独立协程处理后立即确认——
// 平台只关心投递是否被接收，单个事件的处理结果与确认解耦。
func (s *Server) handleWebhook(c *gin.Context) {
	cb, err := webhook.ParseRequest(s.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			logrus.Warn("⚠️ Webhook 签名校验失败，拒绝请求")
			c.String(http.StatusUnauthorized, "invalid signature")
			return
		}
		logrus.Errorf("❌ Webhook 请求体解析失败: %v", err)
		c.String(http.StatusBadRequest, "bad request")
		return
	}

	deliveryID := uuid.NewString()
	logrus.WithFields(logrus.Fields{
		"投递ID": deliveryID,
		"事件数":  len(cb.Events),
	}).Debug("📨 收到 webhook 投递")

	// 每个事件独立处理，互不影响；投递ID跟着事件走，处理日志能关联回本次投递
	for _, ev := range cb.Events {
		event := normalizeEvent(ev, deliveryID)
		if event == nil {
			continue
		}
		go s.handler.HandleEvent(context.Background(), event)
	}

	c.String(http.StatusOK, "OK")
}

// normalizeEvent 把 SDK 的 webhook 事件转换为内部事件模型
// 只保留来自单聊用户的文本消息和 Postback，其余事件丢弃。
func normalizeEvent(ev webhook.EventInterface, deliveryID string) *bot.Event {
	switch e := ev.(type) {
	case webhook.MessageEvent:
		msg, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			return nil
		}
		src, ok := e.Source.(webhook.UserSource)
		if !ok {
			return nil
		}
		return &bot.Event{
			Kind:           bot.EventKindText,
			WebhookEventID: e.WebhookEventId,
			DeliveryID:     deliveryID,
			ReplyToken:     e.ReplyToken,
			UserID:         src.UserId,
			Text:           msg.Text,
		}
	case webhook.PostbackEvent:
		src, ok := e.Source.(webhook.UserSource)
		if !ok || e.Postback == nil {
			return nil
		}
		return &bot.Event{
			Kind:           bot.EventKindPostback,
			WebhookEventID: e.WebhookEventId,
			DeliveryID:     deliveryID,
			ReplyToken:     e.ReplyToken,
			UserID:         src.UserId,
			PostbackData:   e.Postback.Data,
		}
	}
	return nil
}

// handleHealth 健康检查，无条件返回成功
func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// handleListUsers 列出所有持久化用户（管理接口）
func (s *Server) handleListUsers(c *gin.Context) {
	records, err := s.userStore.ListAll()
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to list users")
		return
	}

	lines := make([]string, 0, len(records))
	for _, r := range records {
		lastID := "None"
		if r.LastRecordID != nil {
			lastID = strconv.FormatInt(*r.LastRecordID, 10)
		}
		lines = append(lines, fmt.Sprintf("%s - %s - Last Record ID: %s",
			r.UserID, r.DisplayName, lastID))
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(strings.Join(lines, "<br>")))
}

// handleDeleteAllUsers 清空所有用户（管理接口，无响应体）
func (s *Server) handleDeleteAllUsers(c *gin.Context) {
	if err := s.userStore.DeleteAll(); err != nil {
		c.String(http.StatusInternalServerError, "failed to delete users")
		return
	}

	// 缓存同步清空，否则会继续用已删除的数据服务读请求
	s.userCache.Reset()

	c.Status(http.StatusOK)
}
