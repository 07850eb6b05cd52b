package telegram

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Token         string  `env:"CASEDESK_TELEGRAM_BOT_TOKEN,required"`
	AllowedChats  []int64 `env:"CASEDESK_TELEGRAM_ALLOWED_CHATS" envSeparator:","`
	UpdateTimeout int     `env:"CASEDESK_TELEGRAM_UPDATE_TIMEOUT" envDefault:"60"`
	Debug         bool    `env:"CASEDESK_TELEGRAM_DEBUG" envDefault:"false"`
}

// LoadConfig reads bot settings from the process environment, or from
// environment when it is non-nil.
func LoadConfig(environment map[string]string) (Config, error) {
	cfg := Config{}
	var opts []env.Options
	if environment != nil {
		opts = append(opts, env.Options{Environment: environment})
	}
	if err := env.Parse(&cfg, opts...); err != nil {
		return Config{}, fmt.Errorf("parse telegram config: %w", err)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return Config{}, fmt.Errorf("CASEDESK_TELEGRAM_BOT_TOKEN must not be empty")
	}
	if cfg.UpdateTimeout <= 0 {
		return Config{}, fmt.Errorf("CASEDESK_TELEGRAM_UPDATE_TIMEOUT must be > 0")
	}
	return cfg, nil
}
