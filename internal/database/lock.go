package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wfunc/uart-console/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lockSuffix      = ".migration.lock"
	lockAttempts    = 30
	lockRetryDelay  = time.Second
	lockExpireAfter = 5 * time.Minute
)

// acquireMigrationLock 获取迁移锁（独占创建锁文件）
func acquireMigrationLock(dbPath string) (*os.File, error) {
	lockPath := dbPath + lockSuffix
	log := logger.GetModuleLogger(logger.ModuleJournal)

	for i := 0; i < lockAttempts; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			log.Debug("获取迁移锁成功", zap.String("lock", lockPath))
			return lockFile, nil
		}

		// 锁文件过旧说明持有者已异常退出
		if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > lockExpireAfter {
			log.Warn("迁移锁文件过期，尝试删除", zap.String("lock", lockPath))
			_ = os.Remove(lockPath)
			continue
		}

		log.Debug("等待迁移锁...", zap.Int("attempt", i+1))
		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf("无法获取迁移锁 %s，可能有其他进程正在执行迁移", lockPath)
}

// releaseMigrationLock 释放迁移锁
func releaseMigrationLock(lockFile *os.File) {
	if lockFile == nil {
		return
	}

	lockPath := lockFile.Name()
	_ = lockFile.Close()
	_ = os.Remove(lockPath)
	logger.GetModuleLogger(logger.ModuleJournal).Debug("释放迁移锁", zap.String("lock", lockPath))
}

// sqlitePath 返回 sqlite 数据库文件路径，内存库或其他驱动返回空串
func sqlitePath(db *gorm.DB) string {
	if db.Dialector.Name() != "sqlite" {
		return ""
	}

	sqlDB, err := db.DB()
	if err != nil {
		return ""
	}

	var (
		seq        int
		name, file string
	)
	if err := sqlDB.QueryRow("PRAGMA database_list").Scan(&seq, &name, &file); err != nil {
		return ""
	}
	return file
}

// CleanupStaleLocks 清理数据库目录下过期的锁文件
func CleanupStaleLocks(dbPath string) {
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(dbPath), "*"+lockSuffix))
	for _, lockFile := range matches {
		info, err := os.Stat(lockFile)
		if err != nil || time.Since(info.ModTime()) <= 2*lockExpireAfter {
			continue
		}
		logger.GetModuleLogger(logger.ModuleJournal).Info("清理过期锁文件", zap.String("file", lockFile))
		_ = os.Remove(lockFile)
	}
}
