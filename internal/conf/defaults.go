// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.name", "screw-production")

	viper.SetDefault("database.url", "screw.db")
	viper.SetDefault("database.maxopenconns", 25)
	viper.SetDefault("database.maxidleconns", 5)
	viper.SetDefault("database.connmaxlifetime", "1h")
	viper.SetDefault("database.logqueries", false)
	viper.SetDefault("database.slowquerythreshold", "200ms")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.file.enabled", false)
	viper.SetDefault("log.file.dir", "logs")
	viper.SetDefault("log.file.maxsizemb", 100)
	viper.SetDefault("log.file.maxbackups", 3)
	viper.SetDefault("log.file.maxagedays", 28)

	viper.SetDefault("metrics.enabled", true)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
