package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"line-feedback-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Config 数据库配置结构
type Config struct {
	Path        string // SQLite 数据库文件路径
	BusyTimeout int    // 锁等待超时（毫秒）
}

// InitDB 初始化数据库连接
func InitDB(cfg Config) error {
	// 确保数据库目录存在
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}

	// _busy_timeout 避免并发写时直接返回 SQLITE_BUSY
	dsn := fmt.Sprintf("%s?_busy_timeout=%d", cfg.Path, busyTimeout)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式，减少日志输出
	})
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}

	// 获取底层SQL连接池
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取数据库实例失败: %w", err)
	}

	// SQLite 单文件库，单连接串行访问，避免写锁竞争
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// 测试数据库连接
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("数据库连接测试失败: %w", err)
	}

	DB = db

	logrus.WithFields(logrus.Fields{
		"数据库文件": cfg.Path,
		"锁超时":   fmt.Sprintf("%d毫秒", busyTimeout),
	}).Debug("数据库连接配置")

	return nil
}

// AutoMigrate 同步数据库表结构
func AutoMigrate() error {
	// 定义需要管理的模型列表
	tableModels := []interface{}{
		&models.UserRecord{}, // 用户记录表
	}

	// 迁移表结构（GORM 会自动处理表的创建和更新）
	if err := DB.AutoMigrate(tableModels...); err != nil {
		return fmt.Errorf("数据库表结构迁移失败: %w", err)
	}

	logrus.Info("✅ 数据库表结构同步完成")
	return nil
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return DB
}

// PingDB 数据库健康检查
func PingDB() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("获取数据库实例失败: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		logrus.Errorf("数据库连接检查失败: %v", err)
		return err
	}

	return nil
}

// PingDBWithRetry 带重试的数据库健康检查
func PingDBWithRetry(maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := PingDB()
		if err == nil {
			return nil
		}

		lastErr = err
		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * time.Second
			logrus.WithFields(logrus.Fields{
				"重试次数": i + 1,
				"等待时间": waitTime,
			}).Warn("⚠️ 数据库连接失败，正在重试...")
			time.Sleep(waitTime)
		}
	}

	return fmt.Errorf("数据库连接失败，已重试 %d 次: %w", maxRetries, lastErr)
}

// GetDBStats 获取数据库连接池统计信息
func GetDBStats() string {
	if DB == nil {
		return "数据库未初始化"
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Sprintf("获取数据库实例失败: %v", err)
	}

	stats := sqlDB.Stats()
	return fmt.Sprintf("打开连接: %d, 使用中: %d, 空闲: %d, 等待: %d",
		stats.OpenConnections,
		stats.InUse,
		stats.Idle,
		stats.WaitCount,
	)
}

// Close 关闭数据库连接
func Close() {
	if DB == nil {
		return
	}

	sqlDB, err := DB.DB()
	if err != nil {
		logrus.Errorf("获取数据库实例失败: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.Errorf("关闭数据库连接失败: %v", err)
		return
	}

	logrus.Info("✅ 数据库连接已关闭")
}
