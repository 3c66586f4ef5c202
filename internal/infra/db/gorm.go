package db

import (
	"errors"
	"fmt"
	"log/slog"

	"templateshop/internal/config"
	"templateshop/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Database) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		// 一意制約違反を gorm.ErrDuplicatedKey に揃える
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	var (
		gdb *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		gdb, err = OpenSQLite(cfg.SQLitePath, gcfg)
	default:
		gdb, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver != "sqlite" {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	slog.Info("database connected", "driver", cfg.Driver)
	return gdb, nil
}

// OpenSQLite は開発・テスト用。書き込みトランザクションは即時ロックで直列化する
func OpenSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	dsn := path + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	gdb, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// sqliteは接続1本にしておく（行ロックが無いので）
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

// Migrate はスキーマを作成・更新する
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.Template{},
		&model.TemplateVariant{},
		&model.Cart{},
		&model.CartItem{},
		&model.PaymentIntent{},
		&model.Order{},
		&model.OrderItem{},
		&model.OutboxEvent{},
		&model.AuditLog{},
	)
}

// IsDuplicateKey は一意制約違反かどうか
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// TranslateErrorを使わない接続でも拾えるように
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
