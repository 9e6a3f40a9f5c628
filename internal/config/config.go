// Package config loads the CLI's runtime settings (solve time limit,
// objective weights, log level) from the environment, the same way the
// rest of this codebase's ambient stack reaches for viper rather than
// hand-rolled flag/env parsing.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clinicsched/scheduler/internal/schedmodel"
)

// Config is the fully resolved set of runtime settings for one CLI run.
type Config struct {
	TimeLimit    time.Duration
	LogLevel     string
	ObjectiveWeights schedmodel.ObjectiveWeights
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("TIME_LIMIT_SECONDS", 30)
	v.SetDefault("LOG_LEVEL", "info")
	defaults := schedmodel.DefaultObjectiveWeights()
	v.SetDefault("OBJECTIVE_WEIGHT_DAYS", defaults.WDays)
	v.SetDefault("OBJECTIVE_WEIGHT_GAP", defaults.WGap)
}

// Load reads CLINICSCHED_-prefixed environment variables (falling back
// to defaults for anything unset) into a Config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLINICSCHED")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return &Config{
		TimeLimit: time.Duration(v.GetInt("TIME_LIMIT_SECONDS")) * time.Second,
		LogLevel:  v.GetString("LOG_LEVEL"),
		ObjectiveWeights: schedmodel.ObjectiveWeights{
			WDays: v.GetInt("OBJECTIVE_WEIGHT_DAYS"),
			WGap:  v.GetInt("OBJECTIVE_WEIGHT_GAP"),
		},
	}, nil
}

// NewLogger constructs a production JSON-encoded zap.Logger at the
// given level name (debug/info/warn/error; unrecognized names fall back
// to info).
func NewLogger(levelName string) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
