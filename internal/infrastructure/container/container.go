package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/gdugdh24/yuno-backend/internal/config"
	"github.com/gdugdh24/yuno-backend/internal/delivery/http"
	"github.com/gdugdh24/yuno-backend/internal/delivery/http/handler"
	"github.com/gdugdh24/yuno-backend/internal/delivery/http/middleware"
	"github.com/gdugdh24/yuno-backend/internal/delivery/ws"
	"github.com/gdugdh24/yuno-backend/internal/geo"
	"github.com/gdugdh24/yuno-backend/internal/infrastructure/database"
	"github.com/gdugdh24/yuno-backend/internal/infrastructure/server"
	"github.com/gdugdh24/yuno-backend/internal/logging"
	"github.com/gdugdh24/yuno-backend/internal/realtime"
	"github.com/gdugdh24/yuno-backend/internal/repository"
	"github.com/gdugdh24/yuno-backend/internal/repository/georedis"
	"github.com/gdugdh24/yuno-backend/internal/repository/memory"
	"github.com/gdugdh24/yuno-backend/internal/repository/postgres"
	"github.com/gdugdh24/yuno-backend/internal/usecase/discovery"
	"github.com/gdugdh24/yuno-backend/internal/usecase/profile"
)

const startupTimeout = 30 * time.Second

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	Hub    *ws.Hub
	Server *server.Server
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	// Initialize repositories
	profileRepo, err := c.newProfileRepository(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	index, err := c.newSpatialIndex(profileRepo)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	indexed, err := repository.WarmSpatialIndex(ctx, profileRepo, index)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to warm spatial index: %w", err)
	}
	logging.Info().
		Str("storage", cfg.Storage.Type).
		Str("spatial", cfg.Spatial.Backend).
		Int("indexed", indexed).
		Msg("spatial index ready")

	// Initialize use cases
	discoveryUseCase := discovery.NewDiscoveryUseCase(profileRepo, index, discoveryConfig(cfg.Discovery))
	profileUseCase := profile.NewProfileUseCase(profileRepo, index)

	// Initialize real-time layer
	c.Hub = ws.NewHub(
		realtime.NewRegistry(),
		realtime.Config{
			BroadcastRadiusKm:   cfg.Realtime.BroadcastRadiusKm,
			DiscoverRadiusKm:    cfg.Realtime.DiscoverRadiusKm,
			MaxDiscoverRadiusKm: cfg.Realtime.MaxDiscoverRadiusKm,
		},
		ws.Config{
			SendBuffer:      cfg.Realtime.SendBuffer,
			EventsPerSecond: cfg.Realtime.EventsPerSecond,
			EventBurst:      cfg.Realtime.EventBurst,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
		},
	)

	// Initialize handlers
	discoverHandler := handler.NewDiscoverHandler(discoveryUseCase)
	profileHandler := handler.NewProfileHandler(profileUseCase)
	wsHandler := ws.NewHandler(c.Hub)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.AccessSecret)

	// Initialize router
	router := http.NewRouter(
		discoverHandler,
		profileHandler,
		wsHandler,
		authMiddleware,
	)

	// Initialize server
	c.Server = server.NewServer(&cfg.Server, router.Setup())

	return c, nil
}

func (c *Container) newProfileRepository(ctx context.Context) (repository.ProfileRepository, error) {
	cfg := c.Config

	switch cfg.Storage.Type {
	case config.StoragePostgres:
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.DB = db

		if cfg.Database.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		return postgres.NewProfileRepository(db), nil

	case config.StorageMemory:
		if cfg.Storage.Path == "" {
			return memory.NewProfileRepository(), nil
		}
		repo, err := memory.LoadProfiles(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func (c *Container) newSpatialIndex(profileRepo repository.ProfileRepository) (repository.SpatialIndex, error) {
	cfg := c.Config

	switch cfg.Spatial.Backend {
	case config.SpatialPostgres:
		if c.DB == nil {
			return nil, fmt.Errorf("postgres spatial backend requires postgres storage")
		}
		return postgres.NewSpatialIndex(c.DB), nil

	case config.SpatialRedis:
		client, err := database.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		c.Redis = client
		return georedis.NewSpatialIndex(client, cfg.Redis.GeoKey, profileRepo), nil

	case config.SpatialMemory:
		return memory.NewGridIndex(cfg.Spatial.CellSizeKm), nil

	default:
		return nil, fmt.Errorf("unknown spatial backend %q", cfg.Spatial.Backend)
	}
}

func discoveryConfig(d config.DiscoveryConfig) discovery.Config {
	out := discovery.Config{
		DefaultRadiusKm: d.DefaultRadiusKm,
		MaxRadiusKm:     d.MaxRadiusKm,
		DefaultLimit:    d.DefaultLimit,
		MaxLimit:        d.MaxLimit,
	}
	if d.FallbackEnabled {
		out.Fallback = discovery.FallbackConfig{
			Enabled: true,
			Origin:  geo.Point{Lat: d.FallbackLatitude, Lng: d.FallbackLongitude},
		}
	}
	return out
}

// Close closes all connections
func (c *Container) Close() error {
	if c.Hub != nil {
		c.Hub.CloseAll()
	}

	// Close Redis
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing redis")
		}
	}

	// Close database
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	return nil
}
