package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds the CLI configuration
type Config struct {
	DeploymentMode     string
	PlatformMode       string
	URLPrefix          string
	APIVersion         string
	MandatoryNamespace string
	ScriptURL          string

	StoreLastNamespace bool
	StorageKey         string
	StorageDir         string

	Port     int
	LogLevel string
}

// setDefaults configures the default values for configuration parameters
func setDefaults() {
	viper.SetDefault("deployment-mode", "standalone")
	viper.SetDefault("platform-mode", "default")
	viper.SetDefault("url-prefix", "")
	viper.SetDefault("api-version", "v1")
	viper.SetDefault("mandatory-namespace", "")
	viper.SetDefault("script-url", "")
	viper.SetDefault("store-last-namespace", true)
	viper.SetDefault("storage-key", "last-namespace")
	viper.SetDefault("storage-dir", ".namespace-context")
	viper.SetDefault("port", 8082)
	viper.SetDefault("log-level", "info")
}

// InitConfig initializes viper configuration with environment variables support
func InitConfig() *Config {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	setDefaults()

	return &Config{
		DeploymentMode:     viper.GetString("deployment-mode"),
		PlatformMode:       viper.GetString("platform-mode"),
		URLPrefix:          viper.GetString("url-prefix"),
		APIVersion:         viper.GetString("api-version"),
		MandatoryNamespace: viper.GetString("mandatory-namespace"),
		ScriptURL:          viper.GetString("script-url"),
		StoreLastNamespace: viper.GetBool("store-last-namespace"),
		StorageKey:         viper.GetString("storage-key"),
		StorageDir:         viper.GetString("storage-dir"),
		Port:               viper.GetInt("port"),
		LogLevel:           viper.GetString("log-level"),
	}
}

// SetupFlags binds cobra flags to viper
func SetupFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("deployment-mode", "standalone",
		"Hosting arrangement: standalone, federated or kubeflow.")
	cmd.PersistentFlags().String("platform-mode", "default",
		"Platform the module is deployed onto: default or kubeflow.")
	cmd.PersistentFlags().String("url-prefix", "",
		"Base URL of the module's backend, e.g. http://localhost:8080/myapp.")
	cmd.PersistentFlags().String("api-version", "v1", "Backend API version segment.")
	cmd.PersistentFlags().String("mandatory-namespace", "",
		"Pin the module to a single namespace and disable selection.")
	cmd.PersistentFlags().String("script-url", "",
		"Override for the dashboard integration script URL.")
	cmd.PersistentFlags().Bool("store-last-namespace", true,
		"Persist the last-used namespace and restore it on the next start.")
	cmd.PersistentFlags().String("storage-key", "last-namespace",
		"Key the last-used namespace is stored under.")
	cmd.PersistentFlags().String("storage-dir", ".namespace-context",
		"Directory the preference store writes into.")
	cmd.PersistentFlags().Int("port", 8082, "The port the status server listens on.")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		panic(err)
	}
}
