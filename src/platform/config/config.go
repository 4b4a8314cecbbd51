package config

import (
	"time"

	"heartbeat/src/util"
)

type KafkaTopicsConfig struct {
	Raw     string `koanf:"raw" default:"events.raw.v1" validate:"required,min=4,max=128"`
	Invalid string `koanf:"invalid" default:"events.invalid.v1" validate:"required,min=4,max=128"`
	Anomaly string `koanf:"anomaly" default:"events.anomaly.v1" validate:"required,min=4,max=128"`
	DLQ     string `koanf:"dlq" default:"events.dlq.v1" validate:"required,min=4,max=128"`
}

type KafkaGroupsConfig struct {
	DBWriter string `koanf:"db_writer" default:"cg.db-writer.v1" validate:"required,min=4,max=128"`
	Anomaly  string `koanf:"anomaly" default:"cg.anomaly.v1" validate:"required,min=4,max=128"`
}

type KafkaConfig struct {
	BootstrapServers []string          `koanf:"bootstrap_servers" default:"[\"localhost:19092\"]" validate:"required,hostport_list"`
	Partitions       int32             `koanf:"partitions" default:"6" validate:"gte=1,lte=512"`
	Topics           KafkaTopicsConfig `koanf:"topics" validate:"required"`
	Groups           KafkaGroupsConfig `koanf:"groups" validate:"required"`
	Username         string            `koanf:"username" validate:"required_with=Password,omitempty,min=4,max=64"`
	Password         util.Secret       `koanf:"password" validate:"required_with=Username,omitempty,min=4,max=64"`
}

type PostgresPoolConfig struct {
	Min int32 `koanf:"min" default:"2" validate:"gte=1,lte=100"`
	Max int32 `koanf:"max" default:"10" validate:"gte=1,lte=500,gtefield=Min"`
}

type PostgresConfig struct {
	Host     string             `koanf:"host" default:"localhost" validate:"required,hostname|ip"`
	Port     uint16             `koanf:"port" default:"55432" validate:"required"`
	DbName   string             `koanf:"dbname" default:"heartbeat" validate:"required,min=1,max=64"`
	Username string             `koanf:"username" default:"heartbeat_user" validate:"required,min=1,max=64"`
	Password util.Secret        `koanf:"password" default:"heartbeat_pass" validate:"required,min=1,max=64"`
	Pool     PostgresPoolConfig `koanf:"pool" validate:"required"`
}

// HeartRateConfig carries the soft domain bounds. The model's hard
// bounds [0, 250] are fixed; these are the deployment-tunable ones the
// ingest consumer enforces.
type HeartRateConfig struct {
	Min int `koanf:"min" default:"45" validate:"gte=0,lte=250"`
	Max int `koanf:"max" default:"185" validate:"gte=1,lte=250,gtfield=Min"`
}

type AnomalyConfig struct {
	LowThreshold  int `koanf:"low_threshold" default:"50" validate:"gte=0,lte=250"`
	HighThreshold int `koanf:"high_threshold" default:"140" validate:"gte=1,lte=250,gtfield=LowThreshold"`
	SpikeDelta    int `koanf:"spike_delta" default:"30" validate:"gte=1,lte=250"`
}

type SimConfig struct {
	CustomerCount            int           `koanf:"customer_count" default:"1000" validate:"gte=1,lte=1000000"`
	EventsPerSecond          int           `koanf:"events_per_second" default:"200" validate:"gte=1,lte=100000"`
	BurstMultiplier          int           `koanf:"burst_multiplier" default:"4" validate:"gte=1,lte=100"`
	SleepInterval            time.Duration `koanf:"sleep_interval" default:"200ms" validate:"gte=0,lte=10000000000"`
	InvalidRatio             float64       `koanf:"invalid_ratio" default:"0.02" validate:"gte=0,lte=1"`
	DynamicCustomers         bool          `koanf:"dynamic_customers"`
	ActiveCustomersMin       int           `koanf:"active_customers_min" default:"200" validate:"gte=1"`
	ActiveCustomersMax       int           `koanf:"active_customers_max" default:"1000" validate:"gte=1,gtefield=ActiveCustomersMin"`
	ActiveRefreshProbability float64       `koanf:"active_refresh_probability" default:"0.03" validate:"gte=0,lte=1"`
}

type PrometheusConfig struct {
	// Base port: the producer listens here, the ingest consumer on
	// base+1 and the anomaly consumer on base+2 so all three can be
	// co-located on one host.
	Port int `koanf:"port" default:"8000" validate:"gte=1024,lte=65535"`
}

type LoggingConfig struct {
	RootLevel     string            `koanf:"root_level" default:"info" validate:"required,oneof=trace debug info warn error fatal panic disabled"`
	LiteralLevels map[string]string `koanf:"literal_levels" validate:"max=100,dive,keys,required,min=1,max=100,endkeys,required,oneof=trace debug info warn error fatal panic disabled"`
	PrettyPrint   bool              `koanf:"pretty_print"`
}

type ApplicationConfig struct {
	Name         string
	InstanceName string
	Version      string
}

type Config struct {
	Application ApplicationConfig `koanf:"-"`
	Kafka       KafkaConfig       `koanf:"kafka" validate:"required"`
	Postgres    PostgresConfig    `koanf:"postgres" validate:"required"`
	HeartRate   HeartRateConfig   `koanf:"heart_rate" validate:"required"`
	Anomaly     AnomalyConfig     `koanf:"anomaly" validate:"required"`
	Sim         SimConfig         `koanf:"sim" validate:"required"`
	Prometheus  PrometheusConfig  `koanf:"prometheus" validate:"required"`
	Logging     LoggingConfig     `koanf:"logging" validate:"required"`
}
