package di

import (
	"fmt"

	"github.com/defval/di"
	"github.com/spf13/viper"
)

var configDiOptions = di.Options(
	di.Provide(newConfig),
)

// newConfig returns the global viper instance. An optional config file, passed with
// the CONFIG env variable, is merged below the env variables.
func newConfig() (*viper.Viper, error) {
	config := viper.GetViper()

	path := config.GetString("config")
	if path == "" {
		return config, nil
	}

	config.SetConfigFile(path)
	err := config.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("unable to read the config file: %w", err)
	}

	return config, nil
}
