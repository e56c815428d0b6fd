package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot and supporting services.
type Config struct {
	BotToken          string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiBaseURL     string
	RequestTimeout    time.Duration
	FreeQuestionLimit int
	AnswerPriceStars  int
	PaymentCurrency   string
	AdminListenAddr   string
	AdminUsername     string
	AdminPassword     string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

	cfg := Config{
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-pro"),
		GeminiBaseURL:     strings.TrimRight(getEnv("GEMINI_BASE_URL", defaultGeminiBaseURL), "/"),
		RequestTimeout:    time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		FreeQuestionLimit: getInt("FREE_QUESTION_LIMIT", 3),
		AnswerPriceStars:  getInt("ANSWER_PRICE_STARS", 5),
		PaymentCurrency:   getEnv("PAYMENT_CURRENCY", "XTR"),
		AdminListenAddr:   getEnv("ADMIN_LISTEN_ADDR", ":8080"),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", "change-me"),
	}

	cfg.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.FreeQuestionLimit < 0 {
		return Config{}, fmt.Errorf("FREE_QUESTION_LIMIT must not be negative")
	}
	if cfg.AnswerPriceStars <= 0 {
		return Config{}, fmt.Errorf("ANSWER_PRICE_STARS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

// loadEnvFile loads the first env file found. Running without one is fine;
// containerized deployments pass plain environment variables instead.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
