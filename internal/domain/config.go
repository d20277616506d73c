package domain

import "time"

// Config holds the complete Shikra configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`

	// Engine holds the statistical tunables of the fraud-signal engine.
	Engine EngineConfig `yaml:"engine"`

	Repository RepositoryConfig `yaml:"repository"`
	Cache      CacheConfig      `yaml:"cache"`
	EventBus   EventBusConfig   `yaml:"eventBus"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host" env:"SHIKRA_HOST"`
	Port         int    `yaml:"port" env:"SHIKRA_PORT"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds
}

// EngineConfig holds the tunable parameters of both detectors and the
// fusion stage. The defaults mirror the empirically chosen values of the
// original analysis; none of them is statistically optimal by derivation,
// so all are exposed here rather than hard-coded.
type EngineConfig struct {
	// MinSampleSize is the minimum number of valid per-period digit values a
	// district needs to be eligible for the conformance test. Districts
	// below it are excluded, not scored as compliant.
	MinSampleSize int `yaml:"minSampleSize"`

	// Confidence is the chi-square confidence level for the critical value.
	Confidence float64 `yaml:"confidence"`

	// ModerateFactor and HighFactor are the deviation-factor thresholds for
	// the MODERATE RISK and HIGH RISK tiers.
	ModerateFactor float64 `yaml:"moderateFactor"`
	HighFactor     float64 `yaml:"highFactor"`

	// Contamination is the expected fraction of outlier districts.
	Contamination float64 `yaml:"contamination"`

	// Trees is the isolation-forest ensemble size.
	Trees int `yaml:"trees"`

	// Seed fixes the forest's random source so runs are reproducible.
	Seed int64 `yaml:"seed"`

	// BenfordWeight and AnomalyWeight are the fusion weights.
	BenfordWeight float64 `yaml:"benfordWeight"`
	AnomalyWeight float64 `yaml:"anomalyWeight"`

	// Workers bounds the parallel per-district conformance loop.
	Workers int `yaml:"workers"`

	// ResultTTL is how long memoized run results stay cached.
	ResultTTL time.Duration `yaml:"resultTTL"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"SHIKRA_LOG_LEVEL"` // debug, info, warn, error
	Format string `yaml:"format"`                       // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
	Endpoint    string `yaml:"endpoint"`
}

// DefaultConfig returns the single-node default configuration:
// SQLite + in-process LRU cache + channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Engine: DefaultEngineConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./shikra.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     30 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "shikra",
		},
	}
}

// DefaultEngineConfig returns the engine tunables with the original
// analysis defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinSampleSize:  5,
		Confidence:     0.95,
		ModerateFactor: 1.0,
		HighFactor:     1.5,
		Contamination:  0.05,
		Trees:          100,
		Seed:           42,
		BenfordWeight:  0.6,
		AnomalyWeight:  0.4,
		Workers:        8,
		ResultTTL:      time.Hour,
	}
}

// DistributedConfig returns a configuration for multi-node deployments:
// PostgreSQL + Redis + NATS.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "shikra",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
