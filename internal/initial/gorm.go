package initial

import (
	"EstateGuru/internal/config"
	"EstateGuru/internal/modules/estate/domain/property"
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/pkg/zlog"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGormDB 连接 MySQL 并自动迁移；未配置 host 时返回 nil, nil
func NewGormDB(conf *config.Config) (*gorm.DB, error) {
	if conf.MysqlConfig.Host == "" {
		zlog.Info("mysql not configured, skip")
		return nil, nil
	}
	c := conf.MysqlConfig
	dbName := c.DatabaseName
	if dbName == "" {
		dbName = conf.AppName
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local", c.User, c.Password, c.Host, c.Port, dbName)
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate 建表（测试里对 sqlite 也调用它）
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&property.Property{},
		&rag.KnowledgeSource{},
	)
}
