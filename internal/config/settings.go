package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

// Settings holds the runtime configuration read from the environment.
// Unset variables keep the values from DefaultSettings.
type Settings struct {
	BotToken    string `env:"BOT_TOKEN"`
	DatabaseURL string `env:"DATABASE_URL"`
	ImagesDir   string `env:"IMAGES_DIR"`
	FontPath    string `env:"FONT_PATH"`
	Language    string `env:"BOT_LANGUAGE"`
	Timezone    string `env:"TIMEZONE"`
	NotifyCron  string `env:"NOTIFY_CRON"`
	RefreshCron string `env:"FEED_REFRESH_CRON"`
	BindAddr    string `env:"HTTP_BIND"`
	Port        string `env:"HTTP_PORT"`
	PublicURL   string `env:"PUBLIC_URL"`
	CellSize    int    `env:"CELL_SIZE"`
	Padding     int    `env:"CELL_PADDING"`
}

// DefaultSettings returns the configuration used when the environment is empty.
func DefaultSettings() Settings {
	return Settings{
		DatabaseURL: DefaultDatabase,
		ImagesDir:   DefaultImagesDir,
		FontPath:    DefaultFontPath,
		Language:    DefaultLanguage,
		Timezone:    DefaultTimezone,
		NotifyCron:  DefaultNotifyCron,
		RefreshCron: DefaultRefreshCron,
		BindAddr:    DefaultBindAddr,
		Port:        DefaultPort,
		CellSize:    DefaultCellSize,
		Padding:     DefaultPadding,
	}
}

// LoadSettings reads an optional .env file and parses the environment on top
// of DefaultSettings.
func LoadSettings(envFiles ...string) (Settings, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug(MsgEnvFileMissing, LogKeyComponent, CompMain, LogKeyError, err)
	}

	s := DefaultSettings()
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", ErrSettings, err)
	}
	return s, nil
}

// Location resolves the configured time zone used to decide what "today" is.
func (s Settings) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", ErrTimezone, name, err)
	}
	return loc, nil
}

// FeedURL is the public address of the iCalendar feed, empty when PUBLIC_URL is unset.
func (s Settings) FeedURL() string {
	base := strings.TrimRight(strings.TrimSpace(s.PublicURL), "/")
	if base == "" {
		return ""
	}
	return base + RouteFeed
}

// ResolveToken returns the bot token from the environment, falling back to the OS keyring.
func (s Settings) ResolveToken() (string, error) {
	if token := strings.TrimSpace(s.BotToken); token != "" {
		return token, nil
	}
	token, err := keyring.Get(KeyringService, KeyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", errors.New(ErrTokenMissing)
		}
		return "", fmt.Errorf("%s: %w", ErrTokenMissing, err)
	}
	slog.Debug(MsgTokenFromRing, LogKeyComponent, CompMain)
	return token, nil
}

// StoreToken saves the token from the environment into the OS keyring.
func (s Settings) StoreToken() error {
	token := strings.TrimSpace(s.BotToken)
	if token == "" {
		return errors.New(ErrTokenMissing)
	}
	if err := keyring.Set(KeyringService, KeyringUser, token); err != nil {
		return fmt.Errorf("%s: %w", ErrTokenStore, err)
	}
	slog.Info(MsgTokenStored, LogKeyComponent, CompMain)
	return nil
}
