// internal/service/coupon/infrastructure/db.go
package infrastructure

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// NewMysqlDB 打开 MySQL 连接。
// TranslateError 让唯一约束冲突统一成 gorm.ErrDuplicatedKey。
func NewMysqlDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
}
