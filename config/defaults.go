package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "freightmatrix.db")

	// Export defaults
	v.SetDefault("export.dir", "exports")

	// Delivery defaults
	v.SetDefault("delivery.tool_path", "dmt")
	v.SetDefault("delivery.settings_dir", "")
	v.SetDefault("delivery.partition_key_path", "/id")
	v.SetDefault("delivery.write_mode", "Insert")
	v.SetDefault("delivery.allow_partial", false)
	v.SetDefault("delivery.timeout_seconds", 300)

	// Retry defaults
	v.SetDefault("retry.queue_size", 64)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.attempts_per_minute", 0) // unlimited
}
