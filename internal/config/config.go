package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/taskdesk/taskdesk/internal/models"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	ACCESS_TOKEN_SECRET  string
	ACCESS_TOKEN_TTL     time.Duration
	REFRESH_TOKEN_SECRET string
	REFRESH_TOKEN_TTL    time.Duration

	KAFKA_ADDRESS string
	HTTP_ADDR     string
	LOG_LEVEL     string
	APP_ENV       string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:              os.Getenv("DB_HOST"),
		DB_PORT:              os.Getenv("DB_PORT"),
		DB_USER:              os.Getenv("DB_USER"),
		DB_PASSWORD:          os.Getenv("DB_PASSWORD"),
		DB_NAME:              os.Getenv("DB_NAME"),
		ES_URL:               os.Getenv("ES_URL"),
		ES_USER:              os.Getenv("ES_USER"),
		ES_PASSWORD:          os.Getenv("ES_PASSWORD"),
		ACCESS_TOKEN_SECRET:  os.Getenv("ACCESS_TOKEN_SECRET"),
		ACCESS_TOKEN_TTL:     durationEnv("ACCESS_TOKEN_TTL", 15*time.Minute),
		REFRESH_TOKEN_SECRET: os.Getenv("REFRESH_TOKEN_SECRET"),
		REFRESH_TOKEN_TTL:    durationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		KAFKA_ADDRESS:        os.Getenv("KAFKA_ADDRESS"),
		HTTP_ADDR:            defaultEnv("HTTP_ADDR", ":8080"),
		LOG_LEVEL:            os.Getenv("LOG_LEVEL"),
		APP_ENV:              os.Getenv("APP_ENV"),
	}

	// A missing signing secret is a startup failure, never a per-request one.
	if config.ACCESS_TOKEN_SECRET == "" {
		return nil, fmt.Errorf("missing required env ACCESS_TOKEN_SECRET")
	}
	if config.REFRESH_TOKEN_SECRET == "" {
		return nil, fmt.Errorf("missing required env REFRESH_TOKEN_SECRET")
	}

	return config, nil
}

func (c *Config) Production() bool {
	return c.APP_ENV == "production"
}

func durationEnv(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Notice: cannot parse %s=%q: %v. Using default %s", name, raw, err, def)
		return def
	}
	return d
}

func defaultEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Project{}, &models.Task{}, &models.ProjectMember{}); err != nil {
		return nil, fmt.Errorf("cannot run migrations: %w", err)
	}
	return db, nil
}
