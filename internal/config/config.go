package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source   SourceConfig `yaml:"source" mapstructure:"source"`
	Sink     SinkConfig   `yaml:"sink" mapstructure:"sink"`
	Store    StoreConfig  `yaml:"store" mapstructure:"store"`
	Log      LogConfig    `yaml:"log" mapstructure:"log"`
	Settings Settings     `yaml:"settings" mapstructure:"settings"`
	// SettingsFile, when it exists, replaces Settings at load time. The
	// config set/import/reset commands write to it.
	SettingsFile string `yaml:"settings_file" mapstructure:"settings_file"`
}

// SourceConfig configures where the four input tables are read from.
type SourceConfig struct {
	Kind        string      `yaml:"kind" mapstructure:"kind"` // xlsx or csv
	Path        string      `yaml:"path" mapstructure:"path"`
	URL         string      `yaml:"url" mapstructure:"url"`
	Sheets      SheetConfig `yaml:"sheets" mapstructure:"sheets"`
	Files       SheetConfig `yaml:"files" mapstructure:"files"` // csv basenames, without .csv
	TimeoutSecs int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int         `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64     `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// SheetConfig names the workbook sheets (or CSV basenames) for each table.
type SheetConfig struct {
	Roster     string `yaml:"roster" mapstructure:"roster"`
	Rejections string `yaml:"rejections" mapstructure:"rejections"`
	Deals      string `yaml:"deals" mapstructure:"deals"`
	Activity   string `yaml:"activity" mapstructure:"activity"`
}

// SinkConfig configures the destination for generated documents.
type SinkConfig struct {
	Driver string   `yaml:"driver" mapstructure:"driver"`
	Dir    string   `yaml:"dir" mapstructure:"dir"`
	S3     S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config holds bucket settings for the S3 sink.
type S3Config struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	Region string `yaml:"region" mapstructure:"region"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment, then applies the
// settings file when it exists. An empty path searches the working directory
// for config.yaml.
func Load(path string) (*Config, error) {
	cfg, err := LoadBase(path)
	if err != nil {
		return nil, err
	}
	if err := applySettingsFile(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBase is Load without the settings file, so commands that replace the
// settings can run while the saved file is invalid.
func LoadBase(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("SALESOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.kind", "xlsx")
	v.SetDefault("source.path", "sales.xlsx")
	v.SetDefault("source.sheets.roster", "スタッフ一覧")
	v.SetDefault("source.sheets.rejections", "Sansan却下")
	v.SetDefault("source.sheets.deals", "TAAAN商談")
	v.SetDefault("source.sheets.activity", "学生日報")
	v.SetDefault("source.files.roster", "roster")
	v.SetDefault("source.files.rejections", "rejections")
	v.SetDefault("source.files.deals", "deals")
	v.SetDefault("source.files.activity", "activity")
	v.SetDefault("source.timeout_secs", 60)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.rate_per_sec", 2.0)
	v.SetDefault("sink.driver", "file")
	v.SetDefault("sink.dir", "reports")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "salesops.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("settings_file", "settings.json")
	for key, val := range Flatten(Defaults()) {
		v.SetDefault("settings."+key, val)
	}

	// Read config file (optional when searching)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
