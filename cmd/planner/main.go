// Command planner runs the driver-hours-and-route planning engine as
// a standalone HTTP service, wiring its own Postgres, Redis, and
// Kafka connections at startup and passing them into each engine
// constructor explicitly.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/saan-system/routeplanner/internal/cache"
	"github.com/saan-system/routeplanner/internal/config"
	"github.com/saan-system/routeplanner/internal/dynamic"
	"github.com/saan-system/routeplanner/internal/events"
	"github.com/saan-system/routeplanner/internal/hos"
	"github.com/saan-system/routeplanner/internal/httpapi"
	"github.com/saan-system/routeplanner/internal/planning"
	"github.com/saan-system/routeplanner/internal/providers"
	"github.com/saan-system/routeplanner/internal/restopt"
	"github.com/saan-system/routeplanner/internal/simulate"
	"github.com/saan-system/routeplanner/internal/store"
	"github.com/saan-system/routeplanner/internal/tsp"
	"github.com/saan-system/routeplanner/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	log_ := logger.NewLogger(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "text"))

	planStore, readyFn := mustInitStore(cfg, log_)
	distCache := mustInitCache(cfg, log_)
	publisher := mustInitPublisher(cfg)
	defer publisher.Close()

	baseDist := providers.NewHaversineDistanceProvider(
		cfg.Simulation.DefaultAvgSpeedMPH,
		cfg.Simulation.HighwaySpeedMPH,
		cfg.Simulation.InterstateSpeedMPH,
		cfg.Simulation.CitySpeedMPH,
	)
	var dist providers.DistanceProvider = baseDist
	if distCache != nil {
		dist = cache.NewCachedDistanceProvider(baseDist, distCache, 24*time.Hour)
	}

	restA := providers.NewStaticRestAreaProvider(nil)
	fuelP := providers.NewStaticFuelStopProvider(cfg.Simulation.FuelStationSearchRadiusMi, nil)

	seqEngine := tsp.New(tsp.Config{
		Max2OptIterations:     cfg.Simulation.Max2OptIterations,
		DistanceFallbackMiles: cfg.Simulation.DistanceFallbackMiles,
	})
	hosEngine := hos.New(cfg.HOS)
	restOptEngine := restopt.New(cfg.HOS, hosEngine)
	simEngine := simulate.New(cfg.HOS, cfg.Simulation, dist, restA, fuelP, restOptEngine)
	planningEngine := planning.New(dist, seqEngine, simEngine, planStore, log_, cfg.Simulation.DistanceFallbackMiles)
	dynamicHandler := dynamic.New(cfg.Trigger, planningEngine, planStore, log_)

	apiHandler := httpapi.NewHandler(planningEngine, dynamicHandler, planStore, publisher, log_)
	healthHandler := httpapi.NewHealthHandler(readyFn)
	router := httpapi.NewRouter(apiHandler, healthHandler)

	port := getEnv("SERVER_PORT", "8090")
	log_.WithField("port", port).Info("routeplanner service starting")
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log_.Fatalf("server exited: %v", err)
	}
}

func mustInitStore(cfg *config.Config, log logger.Logger) (store.Store, func() map[string]string) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory plan store")
		st := store.NewMemoryStore()
		return st, func() map[string]string { return map[string]string{"database": "in_memory"} }
	}

	db, err := store.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Warnf("failed to connect to postgres, falling back to in-memory store: %v", err)
		st := store.NewMemoryStore()
		return st, func() map[string]string { return map[string]string{"database": "in_memory"} }
	}
	if err := store.RunMigrations(db.DB, getEnv("MIGRATIONS_PATH", "migrations")); err != nil {
		log.Warnf("failed to run migrations, falling back to in-memory store: %v", err)
		st := store.NewMemoryStore()
		return st, func() map[string]string { return map[string]string{"database": "in_memory"} }
	}
	pg := store.NewPostgresStore(db, log)
	return pg, func() map[string]string {
		if err := db.PingContext(context.Background()); err != nil {
			return map[string]string{"database": "down"}
		}
		return map[string]string{"database": "ok"}
	}
}

func mustInitCache(cfg *config.Config, log logger.Logger) *cache.Cache {
	if cfg.RedisURL == "" {
		return nil
	}
	c, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Warnf("redis unavailable, distance lookups will not be cached: %v", err)
		return nil
	}
	return c
}

func mustInitPublisher(cfg *config.Config) *events.Publisher {
	return events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ServiceName)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
