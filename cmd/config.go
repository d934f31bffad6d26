package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psychon7/Triage-AI/internal/config"
	"github.com/psychon7/Triage-AI/internal/logger"
)

const envPrefix = "TRIAGE"

// appConfig holds the loaded application configuration.
var appConfig config.AppConfig

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// .env is optional
	_ = godotenv.Load()

	v := viper.GetViper()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cfgFileFlag := v.GetString("config"); cfgFileFlag != "" {
		v.SetConfigFile(cfgFileFlag)
	} else {
		if _, err := os.Stat(config.DefaultDataDir); err == nil {
			v.AddConfigPath(config.DefaultDataDir)
		}
		if globalDir, err := config.GetGlobalConfigDir(); err == nil {
			v.AddConfigPath(globalDir)
		}
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName(config.ConfigFileName)
	}

	if err := v.ReadInConfig(); err == nil {
		if v.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
		}
	} else {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// defaults and environment only
		case v.GetString("config") != "":
			fmt.Fprintln(os.Stderr, "Error: config file not readable:", v.GetString("config"), "-", err)
			os.Exit(1)
		default:
			fmt.Fprintln(os.Stderr, "Error reading config file:", v.ConfigFileUsed(), "-", err)
			os.Exit(1)
		}
	}

	config.SetDefaults(v)

	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	appConfig = cfg
	logger.SetBasePath(appConfig.Data.Dir)
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// free for command output and MCP JSON-RPC.
func newLogger() (*slog.Logger, error) {
	level := appConfig.Log.Level
	if verbose {
		level = "debug"
	}
	return logger.New(level, appConfig.Log.Format, os.Stderr)
}
