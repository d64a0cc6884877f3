package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Bitlatte/blogserve/internal/config"
	"github.com/Bitlatte/blogserve/internal/logging"
)

var cfgFile string
var appConfig config.Config

var rootCmd = &cobra.Command{
	Use:   "blogserve",
	Short: "blogserve - a Markdown blog server",
	Long: `blogserve serves a blog written in Markdown. Each post is rendered
on its first request and kept in memory for the life of the process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
}

func initializeConfig(cmd *cobra.Command) error {
	v := viper.New()

	for key, value := range config.Defaults {
		v.SetDefault(key, value)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("BLOGSERVE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if f := cmd.Flags().Lookup("port"); f != nil {
		if err := v.BindPFlag("port", f); err != nil {
			return err
		}
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		if err := v.BindPFlag("logLevel", f); err != nil {
			return err
		}
	}

	configUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configUsed = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&appConfig); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	env, err := logging.New(cmd.ErrOrStderr(), appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	logEnv = env
	if configUsed != "" {
		logEnv.Logger.Debug("using config file", "path", configUsed)
	} else {
		logEnv.Logger.Debug("no config file found, using defaults and environment")
	}
	return nil
}
