package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	APIBaseURL     string `mapstructure:"API_BASE_URL" validate:"required,url"`
	StatePath      string `mapstructure:"STATE_PATH" validate:"required"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	RenderMode     string `mapstructure:"RENDER_MODE" validate:"oneof=markdown plain"`
	RequestTimeout int    `mapstructure:"REQUEST_TIMEOUT_SECONDS" validate:"min=1,max=300"`

	// Attribution fields forwarded verbatim in the session-create payload.
	UTMSource   string `mapstructure:"UTM_SOURCE"`
	UTMMedium   string `mapstructure:"UTM_MEDIUM"`
	UTMCampaign string `mapstructure:"UTM_CAMPAIGN"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("API_BASE_URL", "http://127.0.0.1:8000/api/v1")
	viper.SetDefault("STATE_PATH", defaultStatePath())
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("RENDER_MODE", "markdown")
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	viper.SetDefault("UTM_SOURCE", "cli")
	viper.SetDefault("UTM_MEDIUM", "terminal")
	viper.SetDefault("UTM_CAMPAIGN", "")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// defaultStatePath keeps the identity database under the user's config
// directory, falling back to the working directory when the platform does
// not report one.
func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "tebnegar.db"
	}
	return filepath.Join(dir, "tebnegar", "state.db")
}
