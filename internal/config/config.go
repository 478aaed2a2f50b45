// Package config собирает конфигурацию обоих ботов из значений по умолчанию,
// config.yaml и переменных окружения (TGBOT_*, плюс BOT_TOKEN и GEMINI_API_KEY).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/EgorLis/tgrelaybot/internal/feed"
	"github.com/EgorLis/tgrelaybot/internal/gemini"
	"github.com/EgorLis/tgrelaybot/internal/logger"
	"github.com/EgorLis/tgrelaybot/internal/telegram"
)

type Config struct {
	Telegram  telegram.Config      `mapstructure:"telegram"`
	Music     MusicConfig          `mapstructure:"music"`
	Playback  PlaybackConfig       `mapstructure:"playback"`
	Gemini    gemini.Config        `mapstructure:"gemini"`
	Companion CompanionConfig      `mapstructure:"companion"`
	Feed      feed.Config          `mapstructure:"feed"`
	Logging   logger.LoggingConfig `mapstructure:"logging"`
}

type MusicConfig struct {
	YtdlpPath string `mapstructure:"ytdlpPath"`
	SendAudio bool   `mapstructure:"sendAudio"` // выгружать трек в чат при объявлении
}

type PlaybackConfig struct {
	MaxWait int           `mapstructure:"maxWait"` // потолок «проигрывания», в unit
	Unit    time.Duration `mapstructure:"unit"`
}

type CompanionConfig struct {
	Persona     string `mapstructure:"persona"`
	Label       string `mapstructure:"label"`
	HistorySize int    `mapstructure:"historySize"`
	Fallback    string `mapstructure:"fallback"`
	Workers     int    `mapstructure:"workers"` // одновременных ответов модели
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.pollTimeout", 30)
	v.SetDefault("telegram.debug", false)

	v.SetDefault("music.ytdlpPath", "yt-dlp")
	v.SetDefault("music.sendAudio", false)

	v.SetDefault("playback.maxWait", 30)
	v.SetDefault("playback.unit", time.Second)

	v.SetDefault("gemini.apiKey", "")
	v.SetDefault("gemini.model", gemini.DefaultModel)

	// persona/label/fallback пустые: берутся из conversation.DefaultConfig
	v.SetDefault("companion.persona", "")
	v.SetDefault("companion.label", "")
	v.SetDefault("companion.historySize", 10)
	v.SetDefault("companion.fallback", "")
	v.SetDefault("companion.workers", 8)

	v.SetDefault("feed.addr", "")
	v.SetDefault("feed.path", "/feed")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", logger.DetectFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load читает config.yaml из dir (если задан), текущего каталога или
// /etc/tgrelaybot/. Файла может не быть.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TGBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// имена переменных из исходных скриптов
	_ = v.BindEnv("telegram.token", "TGBOT_TELEGRAM_TOKEN", "BOT_TOKEN")
	_ = v.BindEnv("gemini.apiKey", "TGBOT_GEMINI_APIKEY", "GEMINI_API_KEY")
	_ = v.BindEnv("music.ytdlpPath", "TGBOT_MUSIC_YTDLPPATH", "YTDLP_PATH")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/tgrelaybot/")

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate проверяет обязательные поля; needGemini: для бота-компаньона.
func (c *Config) Validate(needGemini bool) error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required (BOT_TOKEN)"))
	}
	if needGemini && strings.TrimSpace(c.Gemini.APIKey) == "" {
		errs = append(errs, errors.New("gemini.apiKey is required (GEMINI_API_KEY)"))
	}
	if c.Playback.MaxWait < 0 {
		errs = append(errs, fmt.Errorf("playback.maxWait must be >= 0, got %d", c.Playback.MaxWait))
	}
	if c.Playback.Unit <= 0 {
		errs = append(errs, fmt.Errorf("playback.unit must be positive, got %v", c.Playback.Unit))
	}
	if c.Companion.Workers < 1 {
		errs = append(errs, fmt.Errorf("companion.workers must be >= 1, got %d", c.Companion.Workers))
	}
	return errors.Join(errs...)
}
