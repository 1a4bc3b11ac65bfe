package config

import (
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"
)

// Returns the MySQL connection string
// It checks for environment variables first, then falls back to a default.
// Location upserts read RowsAffected to tell an insert from a duplicate, so
// clientFoundRows is always forced off.
func GetDatabaseDSN() string {
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_NAME")

	if user != "" && password != "" && host != "" && port != "" && database != "" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC", user, password, host, port, database)
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return normalizeDSN(dsn)
	}

	return "weather:weather@tcp(localhost:3306)/weatherdesk?parseTime=true&loc=UTC"
}

// normalizeDSN applies the driver options the store depends on. A DSN the
// driver cannot parse is returned as is so NewDB reports the real error.
func normalizeDSN(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return dsn
	}
	cfg.ClientFoundRows = false
	cfg.ParseTime = true
	return cfg.FormatDSN()
}
