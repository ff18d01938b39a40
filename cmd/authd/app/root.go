package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "AUTHCORE"

// NewRootCmd builds the authd command tree. Every flag can also be set
// through an AUTHCORE_* environment variable or a .env file.
func NewRootCmd() *cobra.Command {
	v := newViper()
	root := &cobra.Command{
		Use:          "authd",
		Short:        "OAuth 2.1 authorization server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(v.GetString("env-file"))
		},
	}

	root.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading configuration")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); defaults by app-env")
	root.PersistentFlags().String("app-env", "development", "deployment environment (development, production)")
	mustBind(v, root.PersistentFlags().Lookup("env-file"))
	mustBind(v, root.PersistentFlags().Lookup("log-level"))
	mustBind(v, root.PersistentFlags().Lookup("app-env"))

	root.AddCommand(newServeCmd(v))
	return root
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadEnvFile fills unset variables from path. A missing file is fine.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func mustBind(v *viper.Viper, f *pflag.Flag) {
	if err := v.BindPFlag(f.Name, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", f.Name, err))
	}
}

// newLogger returns a JSON production logger or a console development
// logger. An explicit level overrides the environment default.
func newLogger(level, appEnv string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(appEnv, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}
