/*
	Copyright 2023 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	compareCmd "github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cmd/compare"
	layoutCmd "github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cmd/layout"
	metricsCmd "github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cmd/metrics"
	sessionCmd "github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cmd/session"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/config"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/version"
)

const envPrefix = "ISA"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "isa",
	Short:   "Segment analysis for recorded iRacing telemetry",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.isa.yml)")

	rootCmd.PersistentFlags().StringVar(&config.TelemetryDir, "telemetry-dir",
		"./telemetry",
		"Directory containing recorded session files")
	rootCmd.PersistentFlags().StringVar(&config.CacheFile, "cache-file",
		"",
		"Path of the sqlite cache file (empty: in-memory cache)")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel, "log-level",
		"info",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat, "log-format",
		"text",
		"Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&config.LogConfig, "log-config",
		"",
		"File containing logger filter configuration")
	rootCmd.PersistentFlags().StringVar(&config.OutputFormat, "output-format",
		"json",
		"Output format for results (json, yaml)")

	// add commands here
	rootCmd.AddCommand(layoutCmd.NewLayoutCmd())
	rootCmd.AddCommand(metricsCmd.NewMetricsCmd())
	rootCmd.AddCommand(compareCmd.NewCompareCmd())
	rootCmd.AddCommand(sessionCmd.NewSessionCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".isa" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".isa")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --favorite-color to STING_FAVORITE_COLOR
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
