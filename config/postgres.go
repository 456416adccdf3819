package config

import (
	"fmt"
	"time"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
// The database is an archive of closed bars and submitted orders; it is never
// read back into the live pipeline.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds the connection string. In prod the host and credentials come
// from the SSM parameter store instead of the config file.
func (cfg *PostgresConfig) DSN(env string) string {
	host, user, password := cfg.Host, cfg.User, cfg.Password
	if env == "prod" {
		host = getParameterStoreValue(paramPostgresHost, true)
		user = getParameterStoreValue(paramPostgresUser, true)
		password = getParameterStoreValue(paramPostgresPassword, true)
	}
	return cfg.dsn(host, user, password, cfg.DBName)
}

// AdminDSN points at the server's default "postgres" database, used to
// create the application database when it is missing.
func (cfg *PostgresConfig) AdminDSN() string {
	return cfg.dsn(cfg.Host, cfg.User, cfg.Password, "postgres")
}

func (cfg *PostgresConfig) dsn(host, user, password, dbName string) string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbName, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}
