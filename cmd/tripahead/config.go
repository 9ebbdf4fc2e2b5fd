package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileName = "tripahead"
	configFileType = "yaml"
	envPrefix      = "TRIPAHEAD"

	cfgKeyAddr     = "addr"
	cfgKeyDBDriver = "database.driver"
	cfgKeyDBDSN    = "database.dsn"
	cfgKeyMaxDays  = "planner.max_days"
	cfgKeyAPIURL   = "api_url"
	cfgKeyLogLevel = "log.level"

	defaultAddr     = ":8080"
	defaultDBDriver = "sqlite"
	defaultDBDSN    = "tripahead.db"
	defaultAPIURL   = "http://localhost:8080"
	defaultLogLevel = "info"
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"addr":      cfgKeyAddr,
	"db-driver": cfgKeyDBDriver,
	"db-dsn":    cfgKeyDBDSN,
	"max-days":  cfgKeyMaxDays,
	"api-url":   cfgKeyAPIURL,
	"log-level": cfgKeyLogLevel,
}

// loadConfig merges, from lowest to highest precedence: defaults, the YAML
// config file, TRIPAHEAD_* environment variables and explicitly set flags.
// A missing config file is not an error unless one was named.
func loadConfig(file string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyAddr, defaultAddr)
	v.SetDefault(cfgKeyDBDriver, defaultDBDriver)
	v.SetDefault(cfgKeyDBDSN, defaultDBDSN)
	v.SetDefault(cfgKeyMaxDays, 0)
	v.SetDefault(cfgKeyAPIURL, defaultAPIURL)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tripahead"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}
