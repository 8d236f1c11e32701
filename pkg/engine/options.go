package engine

import (
	"fmt"
	"sort"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/logger"
)

// options returns the engine options for an instance config, in order.
// Raw options from the config go last so they can override anything.
func options(conf config.Engine) [][2]string {
	hwdec := "no"
	if conf.HwAccel {
		hwdec = "auto-safe"
	}
	opts := [][2]string{
		{"vo", "libmpv"},
		{"idle", "yes"},
		{"keep-open", "no"},
		{"pause", "yes"},
		{"terminal", "no"},
		{"hwdec", hwdec},
	}
	keys := make([]string, 0, len(conf.Options))
	for k := range conf.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, [2]string{k, conf.Options[k]})
	}
	return opts
}

func configure(n Native, conf config.Engine) error {
	for _, o := range options(conf) {
		if err := n.SetOption(o[0], o[1]); err != nil {
			return fmt.Errorf("option %s=%s: %w", o[0], o[1], err)
		}
	}
	return nil
}

// logLevels maps engine log levels to ours.
var logLevels = map[string]logger.Level{
	"fatal": logger.ErrorLevel,
	"error": logger.ErrorLevel,
	"warn":  logger.WarnLevel,
	"info":  logger.InfoLevel,
	"v":     logger.DebugLevel,
	"debug": logger.DebugLevel,
	"trace": logger.TraceLevel,
}

func engineLogLevel(level string) logger.Level {
	if l, ok := logLevels[level]; ok {
		return l
	}
	return logger.DebugLevel
}
