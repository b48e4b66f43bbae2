package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/estateops/taskdesk/internal/logger"
	"github.com/estateops/taskdesk/types"
)

const (
	configName     = ".taskdesk"
	envPrefix      = "TASKDESK"
	defaultRootDir = ".taskdesk"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix) // e.g. TASKDESK_VERBOSE
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if cfgFileFlag := viper.GetString("config"); cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		fmt.Fprintln(os.Stderr, "Error reading config file:", err)
	}

	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		fmt.Fprintln(os.Stderr, "Error unmarshalling config:", err)
		os.Exit(1)
	}

	level := "info"
	if viper.GetBool("verbose") {
		level = "debug"
	}
	logger.Init(nil, level)
}

func setDefaults() {
	viper.SetDefault("project.rootDir", defaultRootDir)
	viper.SetDefault("project.tasksDir", "tasks")
	viper.SetDefault("data.file", "tasks.json")
	viper.SetDefault("data.format", "json")
	viper.SetDefault("data.attachmentsDir", filepath.Join(defaultRootDir, "attachments"))
	viper.SetDefault("data.archiveDir", filepath.Join(defaultRootDir, "archive"))
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.watchDataFile", true)
}

// GetConfig returns the unmarshalled application configuration.
func GetConfig() types.AppConfig {
	return GlobalAppConfig
}
