// Package dbtest はテスト用の一時SQLite DBを用意する。
package dbtest

import (
	"path/filepath"
	"testing"

	"templateshop/internal/infra/db"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open はマイグレーション済みの一時DBを返す。テスト終了時に閉じる
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	gdb, err := db.OpenSQLite(path, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}
