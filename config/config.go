package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr       string `json:"listen_addr" mapstructure:"listen_addr"`
	BaseURL          string `json:"base_url" mapstructure:"base_url"`
	DatabasePath     string `json:"database_path" mapstructure:"database_path"`
	StoragePath      string `json:"storage_path" mapstructure:"storage_path"`
	TemplateDir      string `json:"template_dir" mapstructure:"template_dir"`
	TemplateSeed     string `json:"template_seed" mapstructure:"template_seed"`
	FontBold         string `json:"font_bold" mapstructure:"font_bold"`
	FontRegular      string `json:"font_regular" mapstructure:"font_regular"`
	RenderWorkers    int    `json:"render_workers" mapstructure:"render_workers"`
	ArchiveRetention string `json:"archive_retention" mapstructure:"archive_retention"`
	CleanupSchedule  string `json:"cleanup_schedule" mapstructure:"cleanup_schedule"`
	LogLevel         string `json:"log_level" mapstructure:"log_level"`
	LogFormat        string `json:"log_format" mapstructure:"log_format"`
	LogFile          string `json:"log_file" mapstructure:"log_file"`
}

var (
	cfg   Config
	mu    sync.RWMutex
	flags *pflag.FlagSet

	configFilePath = "./kes_config.json"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("KES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	return v
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"listen_addr":       ":8080",
		"base_url":          "http://localhost:8080",
		"database_path":     "./kes.db",
		"storage_path":      "./data/attachments",
		"template_dir":      "./templates",
		"template_seed":     "",
		"font_bold":         "/usr/share/fonts/dejavu/DejaVuSans-Bold.ttf",
		"font_regular":      "/usr/share/fonts/dejavu/DejaVuSans.ttf",
		"render_workers":    runtime.NumCPU(),
		"archive_retention": "24h",
		"cleanup_schedule":  "@hourly",
		"log_level":         "info",
		"log_format":        "text",
		"log_file":          "./logs/kes.log",
	}
}

// SetPath changes the configuration file read by LoadConfig and written by SaveConfig.
func SetPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	configFilePath = path
}

// BindFlags lets command-line flags override the file and the environment.
func BindFlags(fs *pflag.FlagSet) {
	mu.Lock()
	defer mu.Unlock()
	flags = fs
}

func bindFlags(v *viper.Viper) error {
	if flags == nil {
		return nil
	}
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, known := defaults()[key]; known {
			errs = append(errs, v.BindPFlag(key, f))
		}
	})
	return errors.Join(errs...)
}

// LoadConfig reads the configuration file, then KES_* environment variables.
// A missing file yields the defaults. An unreadable file also yields the
// defaults, along with the error.
func LoadConfig() (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	v := newViper()
	if err := bindFlags(v); err != nil {
		return fallback(fmt.Errorf("bind flags: %w", err))
	}
	v.SetConfigFile(configFilePath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fallback(fmt.Errorf("read config %s: %w", configFilePath, err))
			}
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return fallback(fmt.Errorf("decode config: %w", err))
	}
	applyDefaults(&loaded)
	cfg = loaded
	return cfg, nil
}

// fallback installs the defaults, environment and flags without the file.
// Callers hold mu.
func fallback(cause error) (Config, error) {
	v := newViper()
	_ = bindFlags(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		c = Config{}
	}
	applyDefaults(&c)
	cfg = c
	return cfg, cause
}

func SaveConfig(newCfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	applyDefaults(&newCfg)
	if _, err := time.ParseDuration(newCfg.ArchiveRetention); err != nil {
		return fmt.Errorf("invalid archive retention %q: %w", newCfg.ArchiveRetention, err)
	}

	file, err := json.MarshalIndent(newCfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFilePath, file, 0644); err != nil {
		return err
	}
	cfg = newCfg
	return nil
}

func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Retention is the parsed archive retention, 24h when unparsable.
func (c Config) Retention() time.Duration {
	d, err := time.ParseDuration(c.ArchiveRetention)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func applyDefaults(c *Config) {
	d := defaults()
	for key, field := range map[string]*string{
		"listen_addr":       &c.ListenAddr,
		"base_url":          &c.BaseURL,
		"database_path":     &c.DatabasePath,
		"storage_path":      &c.StoragePath,
		"template_dir":      &c.TemplateDir,
		"template_seed":     &c.TemplateSeed,
		"font_bold":         &c.FontBold,
		"font_regular":      &c.FontRegular,
		"archive_retention": &c.ArchiveRetention,
		"cleanup_schedule":  &c.CleanupSchedule,
		"log_level":         &c.LogLevel,
		"log_format":        &c.LogFormat,
		"log_file":          &c.LogFile,
	} {
		if *field == "" {
			*field = d[key].(string)
		}
	}
	if c.RenderWorkers <= 0 {
		c.RenderWorkers = d["render_workers"].(int)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}
