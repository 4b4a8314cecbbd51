package config

import (
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"

	"heartbeat/src/platform/validation"
)

type LoadOptions struct {
	// ServiceName identifies the process (producer, ingest, anomaly)
	// in logs and the Kafka client id.
	ServiceName string
	// YamlFilePaths are loaded in order before environment variables;
	// missing files are skipped.
	YamlFilePaths []string
	EnvVarPrefix  string
}

// Load resolves the process configuration: defaults, then yaml files,
// then environment variables, validated as a whole. Env keys map to
// config paths the usual way: HEARTBEAT_KAFKA_TOPICS_RAW becomes
// kafka.topics.raw, with "__" escaping a literal underscore
// (HEARTBEAT_SIM_CUSTOMER__COUNT -> sim.customer_count).
func Load(options LoadOptions) (*Config, error) {
	errorBuilder := oops.
		In("config").
		Tags("loader")

	k := koanf.NewWithConf(koanf.Conf{
		Delim:       ".",
		StrictMerge: true,
	})

	var cfg Config

	if err := defaults.Set(&cfg); err != nil {
		return nil, errorBuilder.Wrapf(err, "failed to set config defaults")
	}

	for _, path := range options.YamlFilePaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errorBuilder.Wrapf(err, "failed to load config file %s", path)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: options.EnvVarPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, options.EnvVarPrefix)
			key = strings.NewReplacer("__", "_", "_", ".").Replace(key)
			return strings.ToLower(key), value
		},
	}), nil)
	if err != nil {
		return nil, errorBuilder.Wrapf(err, "failed to load environment variables")
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errorBuilder.Wrapf(err, "failed to unmarshal config")
	}

	if err := validation.Instance.Struct(&cfg); err != nil {
		return nil, errorBuilder.Wrapf(err, "failed to validate config")
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, errorBuilder.Wrapf(err, "failed to get hostname")
	}
	cfg.Application.Name = options.ServiceName
	cfg.Application.InstanceName = hostname
	cfg.Application.Version = getEnv("BUILD_VERSION", "unknown")

	return &cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
