package cmd

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	. "github.com/defval/di"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/authskin/authskin/internal/di"
	"github.com/authskin/authskin/internal/http"
	"github.com/authskin/authskin/internal/otel"
	"github.com/authskin/authskin/internal/version"
)

var RootCmd = &cobra.Command{
	Use:     "authskin",
	Short:   "Self-hosted authentication and skins server for Minecraft",
	Version: version.Version(),
}

func shouldGetContainer() *Container {
	container, err := di.New()
	if err != nil {
		panic(err)
	}

	return container
}

func startServer(modules ...string) (err error) {
	// The OTel bridge must replace the default slog handler before the container
	// creates the components that capture it
	if viper.GetBool("otel.enabled") {
		shutdownOtel, otelErr := otel.SetupOTelSDK(context.Background(), slog.LevelInfo)
		if otelErr != nil {
			return otelErr
		}

		defer func() {
			err = errors.Join(err, shutdownOtel(context.Background()))
		}()
	}

	container := shouldGetContainer()

	var config *viper.Viper
	err = container.Resolve(&config)
	if err != nil {
		return err
	}

	config.Set("modules", modules)

	return container.Invoke(http.StartServer)
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
}
