package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

const (
	defaultMaxOpenConns = 5
	maxIdleConns        = 2
	connMaxLifetime     = 30 * time.Minute
)

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// ConnectDB открывает пул соединений. Пул ограничен: по умолчанию не больше 5 открытых соединений.
func ConnectDB(cfg *Config, log *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("Не удалось подключиться к базе данных", zap.Error(err))
	}

	if err := Configure(db, cfg.MaxOpenConns); err != nil {
		log.Fatal("Не удалось настроить пул соединений", zap.Error(err))
	}

	log.Info("Подключение к базе данных установлено",
		zap.String("host", cfg.Host),
		zap.String("db", cfg.Name),
	)
	return db
}

// ConnectDBForMigration то же подключение, но с подробным логом SQL.
func ConnectDBForMigration(cfg *Config, log *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Info),
	})
	if err != nil {
		log.Fatal("Не удалось подключиться к базе данных для миграции", zap.Error(err))
	}
	if err := Configure(db, 1); err != nil {
		log.Fatal("Не удалось настроить пул соединений", zap.Error(err))
	}
	return db
}

func Configure(db *gorm.DB, maxOpen int) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	idle := maxIdleConns
	if idle > maxOpen {
		idle = maxOpen
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(idle)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	return nil
}

func CloseDB(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("Не удалось получить sql.DB", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("Ошибка при закрытии соединения с БД", zap.Error(err))
		return
	}
	log.Info("Соединение с базой данных закрыто")
}
