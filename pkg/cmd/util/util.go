// Package util holds the shared wiring of the CLI commands: logger
// setup, service construction and result output.
package util

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/log"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cache"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cache/memory"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cache/sqlite"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/config"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/service"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/telemetry"
)

// SetupLogger configures the default logger from the global config
// values and returns it. Filter rules from the log config file must be
// installed before the logger is created.
func SetupLogger() *log.Logger {
	level := log.ParseLevel(config.LogLevel, log.InfoLevel)
	if config.LogConfig != "" {
		if cfg, err := log.LoadConfig(config.LogConfig); err != nil {
			log.Warn("could not load log config", log.ErrorField(err))
		} else if cfg.DefaultLevel != "" {
			level = log.ParseLevel(cfg.DefaultLevel, level)
		}
	}

	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(os.Stderr, level, log.WithCaller(true))
	default:
		logger = log.DevLogger(os.Stderr, level, log.WithCaller(true))
	}
	log.ResetDefault(logger)
	return logger
}

// SetupService builds the segment service from the global config: a
// directory reader over the telemetry dir and a sqlite backed cache
// (in-memory when no cache file is configured). The returned closer
// releases reader and store.
func SetupService() (*service.SegmentService, func(), error) {
	tuning, err := config.LoadTuning(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	reader, err := telemetry.NewDirReader(config.TelemetryDir)
	if err != nil {
		return nil, nil, err
	}

	var store cache.Store
	if config.CacheFile != "" {
		store, err = sqlite.Open(config.CacheFile)
		if err != nil {
			reader.Close()
			return nil, nil, err
		}
	} else {
		log.Debug("no cache file configured, using in-memory cache")
		store = memory.New()
	}

	srv := service.NewSegmentService(reader, store, service.WithTuning(tuning))
	closer := func() {
		if err := store.Close(); err != nil {
			log.Warn("closing cache store", log.ErrorField(err))
		}
		if err := reader.Close(); err != nil {
			log.Warn("closing telemetry reader", log.ErrorField(err))
		}
	}
	return srv, closer, nil
}

// Output writes v to stdout in the configured output format.
func Output(v any) error {
	switch config.OutputFormat {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(v)
	case "json":
		return printJSON(v)
	default:
		return fmt.Errorf("unknown output format %s", config.OutputFormat)
	}
}
