package models

// UserRecord 用户记录表（LINE用户ID、显示名与最近一次反馈关联的记录ID）
type UserRecord struct {
	UserID       string `gorm:"primaryKey;type:varchar(64)" json:"user_id"`               // LINE平台分配的用户ID
	DisplayName  string `gorm:"type:varchar(255)" json:"display_name"`                    // 显示名（首次接触时写入，之后不变）
	LastRecordID *int64 `gorm:"column:last_record_id" json:"last_record_id"`              // 最近一次反馈引用的业务记录ID（首次反馈前为空）
}

// TableName 指定表名
func (UserRecord) TableName() string {
	return "users"
}
