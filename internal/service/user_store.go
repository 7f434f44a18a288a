package service

import (
	"line-feedback-bot/internal/database"
	"line-feedback-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserStoreService 用户持久化服务（users 表）
type UserStoreService struct{}

// NewUserStoreService 创建用户持久化服务
func NewUserStoreService() *UserStoreService {
	return &UserStoreService{}
}

// EnsureSchema 确保用户表结构存在（幂等）
func (s *UserStoreService) EnsureSchema() error {
	return database.AutoMigrate()
}

// LoadAll 全量加载用户记录（冷启动时重建缓存用）
func (s *UserStoreService) LoadAll() ([]models.UserRecord, error) {
	db := database.GetDB()

	var records []models.UserRecord
	if err := db.Find(&records).Error; err != nil {
		logrus.Errorf("加载用户记录失败: %v", err)
		return nil, err
	}

	return records, nil
}

// CreateIfAbsent 仅在用户不存在时插入（重复创建是无操作，不报错）
// 已存在用户的显示名不会被第二次调用的参数覆盖。
func (s *UserStoreService) CreateIfAbsent(userID, displayName string) error {
	db := database.GetDB()

	record := models.UserRecord{
		UserID:      userID,
		DisplayName: displayName,
	}

	// INSERT OR IGNORE 语义
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	if err != nil {
		logrus.Errorf("创建用户记录失败: %v", err)
		return err
	}

	logrus.WithFields(logrus.Fields{
		"用户ID": userID,
		"显示名":  displayName,
	}).Debug("✓ 用户记录已写入（或已存在）")
	return nil
}

// SetLastRecordID 更新用户最近引用的记录ID
// 用户不存在时是无操作：协议上创建永远先于反馈。
func (s *UserStoreService) SetLastRecordID(userID string, recordID int64) error {
	db := database.GetDB()

	err := db.Model(&models.UserRecord{}).
		Where("user_id = ?", userID).
		Update("last_record_id", recordID).Error
	if err != nil {
		logrus.Errorf("更新记录ID失败: %v", err)
		return err
	}

	logrus.WithFields(logrus.Fields{
		"用户ID": userID,
		"记录ID": recordID,
	}).Debug("✓ 记录ID已更新")
	return nil
}

// ListAll 列出所有用户记录（管理接口用，按用户ID排序）
func (s *UserStoreService) ListAll() ([]models.UserRecord, error) {
	db := database.GetDB()

	var records []models.UserRecord
	if err := db.Order("user_id").Find(&records).Error; err != nil {
		logrus.Errorf("查询用户列表失败: %v", err)
		return nil, err
	}

	return records, nil
}

// DeleteAll 清空用户表（管理操作）
func (s *UserStoreService) DeleteAll() error {
	db := database.GetDB()

	err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.UserRecord{}).Error
	if err != nil {
		logrus.Errorf("清空用户表失败: %v", err)
		return err
	}

	logrus.Warn("🗑️ 用户表已清空")
	return nil
}
