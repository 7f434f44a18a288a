package scheduler

import (
	"line-feedback-bot/internal/cache"
	"line-feedback-bot/internal/database"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler 定时任务调度器
type Scheduler struct {
	cron      *cron.Cron
	userCache *cache.UserCache
}

// NewScheduler 创建调度器
func NewScheduler(userCache *cache.UserCache) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		userCache: userCache,
	}
}

// Start 启动调度器
func (s *Scheduler) Start(healthCheckInterval string) error {
	// 添加数据库健康检查任务
	_, err := s.cron.AddFunc(healthCheckInterval, s.checkDatabaseHealth)
	if err != nil {
		return err
	}

	// 添加缓存状态报告任务（每30分钟）
	_, err = s.cron.AddFunc("*/30 * * * *", s.reportCacheStatus)
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.WithField("tasks", len(s.cron.Entries())).Debug("Scheduler tasks registered")
	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.cron.Stop()
	logrus.Info("⏹️  定时任务已停止")
}

// checkDatabaseHealth 检查数据库连接健康状态
func (s *Scheduler) checkDatabaseHealth() {
	logrus.Debug("🏥 正在检查数据库连接健康状态...")

	// 尝试 ping 数据库（带重试）
	err := database.PingDBWithRetry(3)
	if err != nil {
		logrus.Errorf("❌ 数据库健康检查失败: %v", err)
		logrus.Warn("⚠️  数据库连接异常，缓存将继续以内存状态服务（降级模式）")

		logrus.WithFields(logrus.Fields{
			"缓存状态": s.userCache.Status(),
		}).Info("💾 当前用户缓存状态")
		return
	}

	// 数据库连接正常，输出连接池统计信息
	stats := database.GetDBStats()
	logrus.WithField("连接池状态", stats).Debug("✅ 数据库连接正常")
}

// reportCacheStatus 报告缓存状态
func (s *Scheduler) reportCacheStatus() {
	logrus.WithFields(logrus.Fields{
		"缓存状态": s.userCache.Status(),
	}).Info("💾 用户缓存状态报告")
}
