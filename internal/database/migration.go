package database

import (
	"fmt"

	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/logger"
	"github.com/wfunc/uart-console/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New(errors.ErrDatabaseConnect, "数据库未初始化")
	}
	log := logger.GetModuleLogger(logger.ModuleJournal)

	// 多个控制台进程共用同一个 sqlite 文件时，避免同时迁移
	if dbPath := sqlitePath(db); dbPath != "" {
		CleanupStaleLocks(dbPath)
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			log.Error("无法获取迁移锁", zap.Error(err))
			return errors.Wrap(err, errors.ErrDatabaseConnect, "migration lock")
		}
		defer releaseMigrationLock(lockFile)
	}

	log.Info("开始数据库迁移...")
	if err := db.AutoMigrate(&models.SerialLog{}); err != nil {
		log.Error("迁移失败",
			zap.String("model", fmt.Sprintf("%T", &models.SerialLog{})),
			zap.Error(err),
		)
		return errors.Wrap(err, errors.ErrDatabaseQuery, "auto migrate")
	}

	log.Info("数据库迁移完成")
	return nil
}
