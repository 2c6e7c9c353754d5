package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Output sinks. Exactly one artifact is produced per run.
const (
	SinkCSV   = "csv"
	SinkKafka = "kafka"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	StartYear int
	EndYear   int

	PrimaryStationID   int
	PrimaryStationName string
	BackupStationID    int
	BackupStationName  string

	// Bulk climate data retrieval.
	ClimateBaseURL   string
	FetchTimeout     time.Duration
	FetchRetries     int
	FetchConcurrency int
	FetchRateLimit   float64

	CollisionsPath      string
	CollisionIDColumn   string
	CollisionDateColumn string
	CollisionHourColumn string

	OutputSink     string
	OutputPath     string
	KafkaBrokers   []string
	KafkaSinkTopic string
	BatchSize      int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PrimaryStationName: sharedcfg.EnvOrDefault("PRIMARY_STATION_NAME", "Pearson Airport"),
		BackupStationName:  sharedcfg.EnvOrDefault("BACKUP_STATION_NAME", "City Centre Airport"),

		ClimateBaseURL: sharedcfg.EnvOrDefault("CLIMATE_BASE_URL", "https://climate.weather.gc.ca/climate_data/bulk_data_e.html"),
		FetchTimeout:   fetchTimeout,

		CollisionsPath:      sharedcfg.EnvOrDefault("COLLISIONS_PATH", "Traffic_Collisions.csv"),
		CollisionIDColumn:   sharedcfg.EnvOrDefault("COLLISION_ID_COLUMN", "EVENT_UNIQUE_ID"),
		CollisionDateColumn: sharedcfg.EnvOrDefault("COLLISION_DATE_COLUMN", "OCC_DATE"),
		CollisionHourColumn: sharedcfg.EnvOrDefault("COLLISION_HOUR_COLUMN", "OCC_HOUR"),

		OutputSink:     sharedcfg.EnvOrDefault("OUTPUT_SINK", SinkCSV),
		OutputPath:     sharedcfg.EnvOrDefault("OUTPUT_PATH", "Traffic_Collisions_With_Weather_Patched.csv"),
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "collisions-with-weather"),
		BatchSize:      batchSize,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	intVars := []struct {
		key string
		def string
		dst *int
	}{
		{"WEATHER_START_YEAR", "2014", &cfg.StartYear},
		{"WEATHER_END_YEAR", "2025", &cfg.EndYear},
		{"PRIMARY_STATION_ID", "51459", &cfg.PrimaryStationID},
		{"BACKUP_STATION_ID", "48549", &cfg.BackupStationID},
		{"FETCH_RETRIES", "1", &cfg.FetchRetries},
		{"FETCH_CONCURRENCY", "4", &cfg.FetchConcurrency},
	}
	for _, v := range intVars {
		n, err := strconv.Atoi(sharedcfg.EnvOrDefault(v.key, v.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dst = n
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("FETCH_RATE_LIMIT", "5"), 64)
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid FETCH_RATE_LIMIT")
	}
	cfg.FetchRateLimit = rateLimit

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.EndYear < c.StartYear {
		return errors.New("WEATHER_END_YEAR must not be before WEATHER_START_YEAR")
	}
	if c.PrimaryStationID <= 0 {
		return errors.New("PRIMARY_STATION_ID must be positive")
	}
	if c.BackupStationID <= 0 {
		return errors.New("BACKUP_STATION_ID must be positive")
	}
	if c.FetchRetries < 0 {
		return errors.New("FETCH_RETRIES must not be negative")
	}
	if c.FetchConcurrency < 1 {
		return errors.New("FETCH_CONCURRENCY must be at least 1")
	}
	if c.CollisionsPath == "" {
		return errors.New("COLLISIONS_PATH is required")
	}
	switch c.OutputSink {
	case SinkCSV:
		if c.OutputPath == "" {
			return errors.New("OUTPUT_PATH is required when OUTPUT_SINK is csv")
		}
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when OUTPUT_SINK is kafka")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required when OUTPUT_SINK is kafka")
		}
	default:
		return fmt.Errorf("invalid OUTPUT_SINK %q: want %s or %s", c.OutputSink, SinkCSV, SinkKafka)
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
