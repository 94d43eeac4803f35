package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config describes one relational store. Order commits rely on row locks, so
// only engines with SELECT ... FOR UPDATE (or database-level write
// serialization, for sqlite) are accepted.
type Config struct {
	Type     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Dialector builds the gorm dialector for the configured engine. Every
// engine runs in UTC so order and ledger timestamps compare across nodes.
func (c Config) Dialector() (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "postgres", "postgresql":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			c.Host,
			c.User,
			c.Password,
			c.Name,
			c.Port,
			c.sslMode(),
		)), nil
	case "mysql":
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User,
			c.Password,
			c.Host,
			c.Port,
			c.Name,
		)), nil
	case "sqlite":
		return sqlite.Open(c.Name + ".db?_busy_timeout=5000"), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", c.Type)
	}
}

func (c Config) sslMode() string {
	if mode := strings.TrimSpace(c.SSLMode); mode != "" {
		return mode
	}
	return "disable"
}
