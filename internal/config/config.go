package config

import (
	"errors"
	"io/fs"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// ErrMissingSecret is returned when no Gemini API key can be found in the
// config file or the environment. The server refuses to start without one.
var ErrMissingSecret = errors.New("gemini api key is not configured (set geminiApiKey or GEMINI_API_KEY)")

type Config struct {
	APIPort      int      `mapstructure:"apiPort"`
	GeminiAPIKey string   `mapstructure:"geminiApiKey"`
	TokenSecret  string   `mapstructure:"tokenSecret"`
	Accounts     []string `mapstructure:"accounts"`
	LedgerPath   string   `mapstructure:"ledgerPath"`
	Models       struct {
		Daily string `mapstructure:"daily"`
		Pro   string `mapstructure:"pro"`
	} `mapstructure:"models"`
	Database struct {
		Type     string `mapstructure:"type"`
		Path     string `mapstructure:"path"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Name     string `mapstructure:"name"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		SSLMode  string `mapstructure:"sslMode"`
	} `mapstructure:"database"`
	Storage struct {
		Endpoint        string `mapstructure:"endpoint"`
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		AccessKeyID     string `mapstructure:"accessKeyId"`
		SecretAccessKey string `mapstructure:"secretAccessKey"`
	} `mapstructure:"storage"`
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.BindEnv("geminiApiKey", "GEMINI_API_KEY", "GOOGLE_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, everything can come from the
		// environment. Any other read error is fatal.
		if !isNotExist(err) {
			return nil, err
		}
		log.Printf("Warning: Could not read config file: %s. Using defaults or environment variables.", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GeminiAPIKey == "" {
		return nil, ErrMissingSecret
	}

	if cfg.APIPort == 0 {
		cfg.APIPort = 8081
		log.Println("APIPort not specified, using default 8081")
	}

	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "data/guest_ledger.json"
		log.Println("Ledger path not specified, using default data/guest_ledger.json")
	}

	if cfg.Models.Daily == "" {
		cfg.Models.Daily = "gemini-1.5-flash"
	}
	if cfg.Models.Pro == "" {
		cfg.Models.Pro = "gemini-1.5-pro"
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "data/retouchlab.db"
		log.Println("Database path not specified, using default data/retouchlab.db")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	log.Printf("Configuration loaded: port=%d, accounts=%d, ledger=%s, models=%s/%s",
		cfg.APIPort, len(cfg.Accounts), cfg.LedgerPath, cfg.Models.Daily, cfg.Models.Pro)
	return &cfg, nil
}

// isNotExist reports whether the error means the config file is absent.
// Viper returns ConfigFileNotFoundError when searching paths but a plain
// *fs.PathError when an explicit file was set.
func isNotExist(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}
