package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GEMINI_API_KEY", "gk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.BotToken)
	assert.Equal(t, "gk-test", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-pro", cfg.GeminiModel)
	assert.Equal(t, "https://generativelanguage.googleapis.com", cfg.GeminiBaseURL)
	assert.Equal(t, 3, cfg.FreeQuestionLimit)
	assert.Equal(t, 5, cfg.AnswerPriceStars)
	assert.Equal(t, "XTR", cfg.PaymentCurrency)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, ":8080", cfg.AdminListenAddr)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("GEMINI_MODEL", "gemini-1.5-flash")
	t.Setenv("GEMINI_BASE_URL", "https://example.test/")
	t.Setenv("FREE_QUESTION_LIMIT", "10")
	t.Setenv("ANSWER_PRICE_STARS", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	assert.Equal(t, "https://example.test", cfg.GeminiBaseURL, "trailing slash is trimmed")
	assert.Equal(t, 10, cfg.FreeQuestionLimit)
	assert.Equal(t, 25, cfg.AnswerPriceStars)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoadRejectsBadValues(t *testing.T) {
	setRequired(t)
	t.Setenv("FREE_QUESTION_LIMIT", "-1")

	_, err := Load()
	assert.ErrorContains(t, err, "FREE_QUESTION_LIMIT")

	t.Setenv("FREE_QUESTION_LIMIT", "3")
	t.Setenv("ANSWER_PRICE_STARS", "0")

	_, err = Load()
	assert.ErrorContains(t, err, "ANSWER_PRICE_STARS")
}
