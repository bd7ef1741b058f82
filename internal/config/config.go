package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	SpatialMemory   = "memory"
	SpatialPostgres = "postgres"
	SpatialRedis    = "redis"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Spatial   SpatialConfig
	Discovery DiscoveryConfig
	Realtime  RealtimeConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	GeoKey   string
}

type JWTConfig struct {
	AccessSecret string
}

type StorageConfig struct {
	Type string
	Path string
}

type SpatialConfig struct {
	Backend    string
	CellSizeKm float64
}

type DiscoveryConfig struct {
	DefaultRadiusKm   float64
	MaxRadiusKm       float64
	DefaultLimit      int
	MaxLimit          int
	FallbackEnabled   bool
	FallbackLatitude  float64
	FallbackLongitude float64
}

type RealtimeConfig struct {
	BroadcastRadiusKm   float64
	DiscoverRadiusKm    float64
	MaxDiscoverRadiusKm float64
	EventsPerSecond     float64
	EventBurst          int
	SendBuffer          int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "yuno")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_GEO_KEY", "user_locations")

	v.SetDefault("JWT_ACCESS_SECRET", "")

	v.SetDefault("STORAGE_TYPE", StoragePostgres)
	v.SetDefault("STORAGE_PATH", "")
	v.SetDefault("SPATIAL_BACKEND", SpatialPostgres)
	v.SetDefault("SPATIAL_CELL_SIZE_KM", 10.0)

	v.SetDefault("DISCOVERY_DEFAULT_RADIUS_KM", 10.0)
	v.SetDefault("DISCOVERY_MAX_RADIUS_KM", 100.0)
	v.SetDefault("DISCOVERY_DEFAULT_LIMIT", 20)
	v.SetDefault("DISCOVERY_MAX_LIMIT", 100)
	v.SetDefault("DISCOVERY_FALLBACK_ENABLED", false)
	v.SetDefault("DISCOVERY_FALLBACK_LATITUDE", 19.0760)
	v.SetDefault("DISCOVERY_FALLBACK_LONGITUDE", 72.8777)

	v.SetDefault("REALTIME_BROADCAST_RADIUS_KM", 20.0)
	v.SetDefault("REALTIME_DISCOVER_RADIUS_KM", 20.0)
	v.SetDefault("REALTIME_MAX_DISCOVER_RADIUS_KM", 100.0)
	v.SetDefault("REALTIME_EVENTS_PER_SECOND", 10.0)
	v.SetDefault("REALTIME_EVENT_BURST", 20)
	v.SetDefault("REALTIME_SEND_BUFFER", 256)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load loads configuration from environment variables or .env file
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Try to read from .env file, but don't fail if it doesn't exist
	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("ENV"),
			ReadTimeout:    v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			DBName:       v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSL_MODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			GeoKey:   v.GetString("REDIS_GEO_KEY"),
		},
		JWT: JWTConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Storage: StorageConfig{
			Type: strings.ToLower(v.GetString("STORAGE_TYPE")),
			Path: v.GetString("STORAGE_PATH"),
		},
		Spatial: SpatialConfig{
			Backend:    strings.ToLower(v.GetString("SPATIAL_BACKEND")),
			CellSizeKm: v.GetFloat64("SPATIAL_CELL_SIZE_KM"),
		},
		Discovery: DiscoveryConfig{
			DefaultRadiusKm:   v.GetFloat64("DISCOVERY_DEFAULT_RADIUS_KM"),
			MaxRadiusKm:       v.GetFloat64("DISCOVERY_MAX_RADIUS_KM"),
			DefaultLimit:      v.GetInt("DISCOVERY_DEFAULT_LIMIT"),
			MaxLimit:          v.GetInt("DISCOVERY_MAX_LIMIT"),
			FallbackEnabled:   v.GetBool("DISCOVERY_FALLBACK_ENABLED"),
			FallbackLatitude:  v.GetFloat64("DISCOVERY_FALLBACK_LATITUDE"),
			FallbackLongitude: v.GetFloat64("DISCOVERY_FALLBACK_LONGITUDE"),
		},
		Realtime: RealtimeConfig{
			BroadcastRadiusKm:   v.GetFloat64("REALTIME_BROADCAST_RADIUS_KM"),
			DiscoverRadiusKm:    v.GetFloat64("REALTIME_DISCOVER_RADIUS_KM"),
			MaxDiscoverRadiusKm: v.GetFloat64("REALTIME_MAX_DISCOVER_RADIUS_KM"),
			EventsPerSecond:     v.GetFloat64("REALTIME_EVENTS_PER_SECOND"),
			EventBurst:          v.GetInt("REALTIME_EVENT_BURST"),
			SendBuffer:          v.GetInt("REALTIME_SEND_BUFFER"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	// Validate critical configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates critical configuration values
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" {
		return fmt.Errorf("JWT access secret is required")
	}
	if len(c.JWT.AccessSecret) < 32 {
		return fmt.Errorf("JWT access secret must be at least 32 characters")
	}

	switch c.Storage.Type {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	switch c.Spatial.Backend {
	case SpatialMemory, SpatialRedis:
	case SpatialPostgres:
		if c.Storage.Type != StoragePostgres {
			return fmt.Errorf("postgres spatial backend requires postgres storage")
		}
	default:
		return fmt.Errorf("unknown spatial backend %q", c.Spatial.Backend)
	}

	if c.Storage.Type == StoragePostgres {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name is required")
		}
	}
	if c.Spatial.Backend == SpatialRedis && c.Redis.GeoKey == "" {
		return fmt.Errorf("redis geo key is required")
	}
	if c.Spatial.CellSizeKm <= 0 {
		return fmt.Errorf("spatial cell size must be positive")
	}

	d := c.Discovery
	if d.DefaultRadiusKm <= 0 || d.MaxRadiusKm < d.DefaultRadiusKm {
		return fmt.Errorf("discovery radius must satisfy 0 < default <= max")
	}
	if d.DefaultLimit <= 0 || d.MaxLimit < d.DefaultLimit {
		return fmt.Errorf("discovery limit must satisfy 0 < default <= max")
	}
	if d.FallbackEnabled && (d.FallbackLatitude < -90 || d.FallbackLatitude > 90 ||
		d.FallbackLongitude < -180 || d.FallbackLongitude > 180) {
		return fmt.Errorf("discovery fallback location is out of range")
	}

	r := c.Realtime
	if r.BroadcastRadiusKm <= 0 || r.DiscoverRadiusKm <= 0 || r.MaxDiscoverRadiusKm < r.DiscoverRadiusKm {
		return fmt.Errorf("realtime radii must be positive and default <= max")
	}
	if r.EventsPerSecond <= 0 || r.EventBurst <= 0 || r.SendBuffer <= 0 {
		return fmt.Errorf("realtime rate limit and send buffer must be positive")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
