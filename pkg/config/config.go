package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/busify/busify/pkg/util"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	StoreModeMemory = "memory"
	StoreModeMongo  = "mongo"

	IdentityProviderNone     = "none"
	IdentityProviderFirebase = "firebase"
	IdentityProviderJWKS     = "jwks"

	EventSourceDirect       = "direct"
	EventSourceQueue        = "queue"
	EventSourceChangeStream = "changestream"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Store         StoreConfig         `yaml:"store"`
	Redis         RedisConfig         `yaml:"redis"`
	Registry      RegistryConfig      `yaml:"registry"`
	Tickets       TicketsConfig       `yaml:"tickets"`
	Aggregator    AggregatorConfig    `yaml:"aggregator"`
	Identity      IdentityConfig      `yaml:"identity"`
	Firebase      FirebaseConfig      `yaml:"firebase"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Events        EventsConfig        `yaml:"events"`
	Realtime      RealtimeConfig      `yaml:"realtime"`
}

type ServerConfig struct {
	ListenAddress string `yaml:"listen" validate:"required"`
}

type StoreConfig struct {
	Mode            string   `yaml:"mode" validate:"oneof=memory mongo"`
	MongoConnection string   `yaml:"mongo_connection" validate:"required_if=Mode mongo"`
	MongoDatabase   string   `yaml:"mongo_database" validate:"required_if=Mode mongo"`
	VehicleCacheTTL Duration `yaml:"vehicle_cache_ttl"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address" validate:"required_if=Enabled true"`
	Password string `yaml:"password"`
	Database int    `yaml:"database" validate:"gte=0"`
}

type RegistryConfig struct {
	StalenessTTL    Duration `yaml:"staleness_ttl"`
	ExpiryInterval  Duration `yaml:"expiry_interval"`
	SubscriberQueue int      `yaml:"subscriber_queue" validate:"gt=0"`
	Shards          int      `yaml:"shards" validate:"gt=0"`
}

type TicketsConfig struct {
	Lifetime    Duration `yaml:"lifetime"`
	MaxAttempts int      `yaml:"max_attempts" validate:"gt=0"`
}

type AggregatorConfig struct {
	Timezone   string `yaml:"timezone" validate:"required"`
	WindowDays int    `yaml:"window_days" validate:"gt=0"`
}

type IdentityConfig struct {
	Provider     string `yaml:"provider" validate:"oneof=none firebase jwks"`
	JWKSIssuer   string `yaml:"jwks_issuer" validate:"required_if=Provider jwks"`
	JWKSAudience string `yaml:"jwks_audience" validate:"required_if=Provider jwks"`
}

type FirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
	StorageBucket   string `yaml:"storage_bucket"`
}

func (f FirebaseConfig) Enabled() bool {
	return f.ProjectID != ""
}

type ElasticsearchConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (e ElasticsearchConfig) Enabled() bool {
	return e.Address != ""
}

type EventsConfig struct {
	Source string `yaml:"source" validate:"oneof=direct queue changestream"`
}

type RealtimeConfig struct {
	QueueConsumer bool `yaml:"queue_consumer"`

	GTFSRTURL      string   `yaml:"gtfsrt_url" validate:"omitempty,url"`
	GTFSRTInterval Duration `yaml:"gtfsrt_interval"`

	StompAddress  string `yaml:"stomp_address"`
	StompQueue    string `yaml:"stomp_queue" validate:"required_with=StompAddress"`
	StompUsername string `yaml:"stomp_username"`
	StompPassword string `yaml:"stomp_password"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{ListenAddress: ":8080"},
		Store: StoreConfig{
			Mode:            StoreModeMemory,
			MongoConnection: "mongodb://localhost:27017/",
			MongoDatabase:   "busify",
			VehicleCacheTTL: Duration{5 * time.Minute},
		},
		Redis: RedisConfig{Address: "localhost:6379"},
		Registry: RegistryConfig{
			StalenessTTL:    Duration{5 * time.Minute},
			ExpiryInterval:  Duration{30 * time.Second},
			SubscriberQueue: 256,
			Shards:          32,
		},
		Tickets: TicketsConfig{
			Lifetime:    Duration{24 * time.Hour},
			MaxAttempts: 16,
		},
		Aggregator: AggregatorConfig{
			Timezone:   "UTC",
			WindowDays: 7,
		},
		Identity: IdentityConfig{Provider: IdentityProviderNone},
		Events:   EventsConfig{Source: EventSourceDirect},
		Realtime: RealtimeConfig{GTFSRTInterval: Duration{30 * time.Second}},
	}
}

// Load reads the optional YAML file at path over the defaults, applies BUSIFY_* environment overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	env := util.GetEnvironmentVariables()
	if path == "" {
		path = env["BUSIFY_CONFIG"]
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("Loaded config file")
	}

	if err := cfg.applyEnvironment(env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := time.LoadLocation(c.Aggregator.Timezone); err != nil {
		return fmt.Errorf("invalid config: aggregator timezone: %w", err)
	}

	return nil
}

func (c *Config) Location() *time.Location {
	location, err := time.LoadLocation(c.Aggregator.Timezone)
	if err != nil {
		return time.UTC
	}

	return location
}

func (c *Config) applyEnvironment(env map[string]string) error {
	util.OverrideFromEnvironment(env, "BUSIFY_LISTEN", &c.Server.ListenAddress)

	util.OverrideFromEnvironment(env, "BUSIFY_STORE", &c.Store.Mode)
	util.OverrideFromEnvironment(env, "BUSIFY_MONGODB_CONNECTION", &c.Store.MongoConnection)
	util.OverrideFromEnvironment(env, "BUSIFY_MONGODB_DATABASE", &c.Store.MongoDatabase)

	util.OverrideFromEnvironment(env, "BUSIFY_REDIS_ADDRESS", &c.Redis.Address)
	util.OverrideFromEnvironment(env, "BUSIFY_REDIS_PASSWORD", &c.Redis.Password)
	if env["BUSIFY_REDIS_ADDRESS"] != "" {
		c.Redis.Enabled = true
	}
	if value := env["BUSIFY_REDIS_DATABASE"]; value != "" {
		database, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("BUSIFY_REDIS_DATABASE: %w", err)
		}
		c.Redis.Database = database
	}

	durations := map[string]*Duration{
		"BUSIFY_STALENESS_TTL":     &c.Registry.StalenessTTL,
		"BUSIFY_EXPIRY_INTERVAL":   &c.Registry.ExpiryInterval,
		"BUSIFY_TICKET_LIFETIME":   &c.Tickets.Lifetime,
		"BUSIFY_VEHICLE_CACHE_TTL": &c.Store.VehicleCacheTTL,
		"BUSIFY_GTFSRT_INTERVAL":   &c.Realtime.GTFSRTInterval,
	}
	for name, target := range durations {
		value, set := env[name]
		if !set {
			continue
		}

		parsed, err := ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*target = parsed
	}

	util.OverrideFromEnvironment(env, "BUSIFY_TIMEZONE", &c.Aggregator.Timezone)

	util.OverrideFromEnvironment(env, "BUSIFY_IDENTITY_PROVIDER", &c.Identity.Provider)
	util.OverrideFromEnvironment(env, "BUSIFY_JWKS_ISSUER", &c.Identity.JWKSIssuer)
	util.OverrideFromEnvironment(env, "BUSIFY_JWKS_AUDIENCE", &c.Identity.JWKSAudience)

	util.OverrideFromEnvironment(env, "BUSIFY_FIREBASE_CREDENTIALS_FILE", &c.Firebase.CredentialsFile)
	util.OverrideFromEnvironment(env, "BUSIFY_FIREBASE_PROJECT_ID", &c.Firebase.ProjectID)
	util.OverrideFromEnvironment(env, "BUSIFY_FIREBASE_STORAGE_BUCKET", &c.Firebase.StorageBucket)

	util.OverrideFromEnvironment(env, "BUSIFY_ELASTICSEARCH_ADDRESS", &c.Elasticsearch.Address)
	util.OverrideFromEnvironment(env, "BUSIFY_ELASTICSEARCH_USERNAME", &c.Elasticsearch.Username)
	util.OverrideFromEnvironment(env, "BUSIFY_ELASTICSEARCH_PASSWORD", &c.Elasticsearch.Password)

	util.OverrideFromEnvironment(env, "BUSIFY_EVENTS_SOURCE", &c.Events.Source)

	util.OverrideFromEnvironment(env, "BUSIFY_GTFSRT_URL", &c.Realtime.GTFSRTURL)
	util.OverrideFromEnvironment(env, "BUSIFY_STOMP_ADDRESS", &c.Realtime.StompAddress)
	util.OverrideFromEnvironment(env, "BUSIFY_STOMP_QUEUE", &c.Realtime.StompQueue)
	util.OverrideFromEnvironment(env, "BUSIFY_STOMP_USERNAME", &c.Realtime.StompUsername)
	util.OverrideFromEnvironment(env, "BUSIFY_STOMP_PASSWORD", &c.Realtime.StompPassword)
	if env["BUSIFY_LOCATION_QUEUE_CONSUMER"] == "YES" {
		c.Realtime.QueueConsumer = true
	}

	return nil
}
