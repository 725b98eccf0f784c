package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	IPFS     IPFSConfig     `mapstructure:"ipfs"`
	Backup   BackupConfig   `mapstructure:"backup"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// IPFSConfig configures the connection to the content-addressed store.
// ProjectID/ProjectSecret are exchanged as HTTP Basic auth when set
// (hosted gateways); leave them empty for a local daemon.
type IPFSConfig struct {
	APIURL        string        `mapstructure:"api_url"`
	ProjectID     string        `mapstructure:"project_id"`
	ProjectSecret string        `mapstructure:"project_secret"`
	PinOnWrite    bool          `mapstructure:"pin_on_write"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// BackupConfig tunes the retry sweep and error persistence.
type BackupConfig struct {
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`  // How often the sweeper runs
	BatchLimit     int           `mapstructure:"batch_limit"`     // Max assets per sweep
	MaxAttempts    int           `mapstructure:"max_attempts"`    // Attempts before a record goes terminal failed
	BackoffBase    time.Duration `mapstructure:"backoff_base"`    // First retry delay; doubles per attempt
	BackoffMax     time.Duration `mapstructure:"backoff_max"`     // Ceiling on the retry delay
	StagingDir     string        `mapstructure:"staging_dir"`     // Spool dir for inline upload payloads
	MaxErrorLength int           `mapstructure:"max_error_length"` // Cap on persisted error messages
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variables override the file, e.g. ipfs.api_url -> IPFS_API_URL.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "coursevault")
	viper.SetDefault("ipfs.api_url", "localhost:5001")
	viper.SetDefault("ipfs.pin_on_write", true)
	viper.SetDefault("ipfs.timeout", "30s")
	viper.SetDefault("backup.sweep_interval", "5m")
	viper.SetDefault("backup.batch_limit", 25)
	viper.SetDefault("backup.max_attempts", 5)
	viper.SetDefault("backup.backoff_base", "30s")
	viper.SetDefault("backup.backoff_max", "1h")
	viper.SetDefault("backup.staging_dir", "/var/spool/coursevault")
	viper.SetDefault("backup.max_error_length", 500)

	err = viper.ReadInConfig()
	// A missing config file is fine: defaults plus env vars are a complete
	// configuration.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
