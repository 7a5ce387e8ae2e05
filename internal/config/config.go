package config

import (
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Getenv returns the environment value or a fallback.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DSN builds the postgres connection string from the environment.
// DATABASE_DSN wins when set.
func DSN() string {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		Getenv("DB_HOST", "localhost"),
		Getenv("DB_PORT", "5432"),
		Getenv("DB_USER", "postgres"),
		Getenv("DB_PASSWORD", "postgres"),
		Getenv("DB_NAME", "reconciliation"),
		Getenv("DB_SSLMODE", "disable"),
	)
}

// InitDB opens the postgres connection or exits.
func InitDB() *gorm.DB {
	db, err := gorm.Open(postgres.Open(DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return db
}
