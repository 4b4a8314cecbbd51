package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"go.elastic.co/ecszerolog"
)

// LoggerFactory hands out named child loggers sharing one root. Levels
// can be overridden per logger name so a noisy component (for example
// the kafka driver) can be silenced without touching the root level.
type LoggerFactory struct {
	root   zerolog.Logger
	levels map[string]zerolog.Level
}

type Options struct {
	ServiceName   string
	InstanceName  string
	Version       string
	RootLevel     string
	LiteralLevels map[string]string
	PrettyPrint   bool
}

func NewFactory(options Options) (*LoggerFactory, error) {
	errorBuilder := oops.
		In("loggers factory").
		Tags("constructor")

	rootLevel, err := zerolog.ParseLevel(options.RootLevel)
	if err != nil {
		return nil, errorBuilder.Wrapf(err, "error parsing rootLevel '%s'", options.RootLevel)
	}

	var logContext zerolog.Context
	if options.PrettyPrint {
		logContext = zerolog.New(zerolog.ConsoleWriter{
			Out:           os.Stdout,
			TimeFormat:    time.RFC3339,
			TimeLocation:  time.UTC,
			PartsOrder:    []string{"time", "logger", "level", "message", "fields"},
			FieldsExclude: []string{"service", "service-instance", "service-version", "logger"},
			FormatPartValueByName: func(val any, part string) string {
				switch part {
				case "logger":
					return fmt.Sprintf("[%-28s]", val)
				case "fields":
					return ""
				default:
					return fmt.Sprint(val)
				}
			},
			FormatLevel: func(level any) string {
				return fmt.Sprintf("%-5s", strings.ToUpper(fmt.Sprint(level)))
			},
		}).
			With().
			Timestamp()
	} else {
		logContext = ecszerolog.New(os.Stdout).With()
	}

	factory := &LoggerFactory{
		root: logContext.
			Str("service", options.ServiceName).
			Str("service-instance", options.InstanceName).
			Str("service-version", options.Version).
			Logger().
			Level(rootLevel),
		levels: make(map[string]zerolog.Level),
	}

	for literal, lvlStr := range options.LiteralLevels {
		lvl, err := zerolog.ParseLevel(lvlStr)
		if err != nil {
			return nil, errorBuilder.Wrapf(err, "error parsing level '%s' for logger '%s'", lvlStr, literal)
		}
		factory.levels[literal] = lvl
	}

	return factory, nil
}

// Child returns a logger tagged with the given name, at the overridden
// level when one is configured and the root level otherwise.
func (lf *LoggerFactory) Child(name string) zerolog.Logger {
	level := lf.root.GetLevel()
	if lvl, ok := lf.levels[name]; ok {
		level = lvl
	}

	return lf.root.With().Str("logger", name).Logger().Level(level)
}
