// Package config holds the freight-matrix configuration model.
package config

// Config represents the full freight-matrix configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Export   ExportConfig   `mapstructure:"export" toml:"export"`
	Delivery DeliveryConfig `mapstructure:"delivery" toml:"delivery"`
	Retry    RetryConfig    `mapstructure:"retry" toml:"retry"`
}

// DatabaseConfig configures the SQLite run ledger
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// ExportConfig configures payload materialization
type ExportConfig struct {
	Dir string `mapstructure:"dir" toml:"dir"` // directory for run payload files
}

// DeliveryConfig configures the external delivery tool invocation
type DeliveryConfig struct {
	ToolPath         string `mapstructure:"tool_path" toml:"tool_path"`                   // path to the delivery executable
	SettingsDir      string `mapstructure:"settings_dir" toml:"settings_dir"`             // where per-attempt settings files are written
	ConnectionString string `mapstructure:"connection_string" toml:"connection_string"`   // destination store credential, passed through
	Database         string `mapstructure:"database" toml:"database"`                     // default destination database
	Container        string `mapstructure:"container" toml:"container"`                   // default destination container
	PartitionKeyPath string `mapstructure:"partition_key_path" toml:"partition_key_path"` // default partition key path
	WriteMode        string `mapstructure:"write_mode" toml:"write_mode"`                 // Insert or Upsert
	AllowPartial     bool   `mapstructure:"allow_partial" toml:"allow_partial"`           // forwarded to the tool, never interpreted here
	TimeoutSeconds   int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`       // per-attempt delivery timeout
}

// RetryConfig configures the retry coordinator
type RetryConfig struct {
	QueueSize        int `mapstructure:"queue_size" toml:"queue_size"`                 // bounded retry queue capacity
	MaxRetries       int `mapstructure:"max_retries" toml:"max_retries"`               // default max_retries stamped on new runs
	AttemptsPerMinute int `mapstructure:"attempts_per_minute" toml:"attempts_per_minute"` // delivery pacing, 0 = unlimited
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
