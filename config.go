package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	DynamoRegion    string
	DynamoEndpoint  string
	DynamoTable     string
	DynamoAccessKey string
	DynamoSecretKey string

	MongoURI         string
	MongoDB          string
	MongoPredictions string

	RedisURL string

	KafkaBrokers []string
	KafkaTopic   string
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8085"),
		Environment: getEnv("APP_ENV", "development"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		DynamoRegion:    getEnv("AWS_REGION", "us-east-1"),
		DynamoEndpoint:  os.Getenv("AWS_ENDPOINT"),
		DynamoTable:     getEnv("DDB_INVENTORY_TABLE", "agency-inventory"),
		DynamoAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		DynamoSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),

		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:          getEnv("MONGO_DB", "wildfire"),
		MongoPredictions: getEnv("MONGO_PREDICTIONS_COLLECTION", "predictions"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		KafkaTopic: getEnv("ALLOCATION_TOPIC", "allocation.events"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
