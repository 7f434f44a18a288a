package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"line-feedback-bot/internal/bot"
	"line-feedback-bot/internal/cache"
	"line-feedback-bot/internal/config"
	"line-feedback-bot/internal/database"
	"line-feedback-bot/internal/line"
	"line-feedback-bot/internal/scheduler"
	"line-feedback-bot/internal/server"
	"line-feedback-bot/internal/service"
	"line-feedback-bot/internal/utils"

	"github.com/sirupsen/logrus"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		logrus.Fatalf("❌ 配置加载失败: %v", err)
	}

	// 初始化日志
	if err := utils.InitLogger(cfg.System.LogLevel); err != nil {
		logrus.Fatalf("❌ 日志系统初始化失败: %v", err)
	}

	logrus.Info("========================================")
	logrus.Info("正在启动 LINE 反馈桥接机器人...")
	logrus.Info("========================================")

	// 初始化数据库连接
	logrus.Info("🗄️  正在连接数据库...")
	if err := database.InitDB(database.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
	}); err != nil {
		logrus.Fatalf("❌ 数据库连接失败: %v", err)
	}
	logrus.WithField("数据库文件", cfg.Database.Path).Info("✅ 数据库连接成功")

	// 创建服务
	userStore := service.NewUserStoreService()
	feedbackService := service.NewFeedbackService(cfg.Downstream.FlowURL,
		time.Duration(cfg.Downstream.TimeoutSeconds)*time.Second)

	// 同步数据库表结构
	logrus.Info("🔄 正在同步数据库表结构...")
	if err := userStore.EnsureSchema(); err != nil {
		logrus.Fatalf("❌ 表结构同步失败: %v", err)
	}

	// 创建用户状态缓存并预加载
	userCache := cache.NewUserCache(userStore)
	logrus.Info("🔄 正在预加载用户缓存...")
	if err := userCache.EnsureFresh(); err != nil {
		logrus.Warnf("⚠️  用户缓存预加载失败: %v（将在首个事件到达时重试）", err)
	}

	// 创建 LINE 客户端和事件处理器
	lineClient, err := line.NewClient(cfg.Line.ChannelAccessToken, cfg.Line.APIBaseURL)
	if err != nil {
		logrus.Fatalf("❌ LINE 客户端初始化失败: %v", err)
	}
	handler := bot.NewHandler(lineClient, feedbackService, userCache)

	// 启动定时任务
	logrus.Info("⏰ 正在启动定时任务...")
	taskScheduler := scheduler.NewScheduler(userCache)
	if err := taskScheduler.Start(cfg.Scheduler.HealthCheckInterval); err != nil {
		logrus.Fatalf("❌ 定时任务启动失败: %v", err)
	}
	logrus.WithField("检查间隔", cfg.Scheduler.HealthCheckInterval).Info("✅ 定时任务已启动")

	// 启动 HTTP 服务
	srv := server.NewServer(cfg.Line.ChannelSecret, handler, userStore, userCache)
	go func() {
		logrus.WithField("端口", cfg.Server.Port).Info("🚀 Webhook 服务启动中...")
		if err := srv.Run(cfg.Server.Port); err != nil {
			logrus.Errorf("❌ HTTP 服务错误: %v", err)
		}
	}()

	logrus.Info("========================================")
	logrus.Info("✨ 机器人运行中！")
	logrus.Info("📱 等待接收 LINE Webhook 事件...")
	logrus.Info("🛑 按 Ctrl+C 停止运行")
	logrus.Info("========================================")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("")
	logrus.Info("🛑 收到停止信号，正在停止服务...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Stop(ctx)
	taskScheduler.Stop()
	handler.Stop()
	database.Close()

	logrus.Info("✅ 机器人已安全停止")
}
