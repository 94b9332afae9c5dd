// Command seed loads provinces and cities from a CSV file and provisions the
// first super admin from SEED_ADMIN_* variables.
package main

import (
    "context"
    "flag"
    "os"
    "time"

    "go.uber.org/zap"

    "github.com/iliyamo/relief-coordination/internal/config"
    "github.com/iliyamo/relief-coordination/internal/database"
    "github.com/iliyamo/relief-coordination/internal/logger"
    "github.com/iliyamo/relief-coordination/internal/middleware"
    "github.com/iliyamo/relief-coordination/internal/repository"
    "github.com/iliyamo/relief-coordination/internal/seed"
)

func main() {
    citiesPath := flag.String("cities", "", "CSV of province,city[,lat,lng] to upsert")
    skipAdmin := flag.Bool("skip-admin", false, "do not provision the super admin")
    flag.Parse()

    config.LoadDotEnv()
    cfg := config.LoadDatabase()
    lg := logger.WithComponent(logger.New(cfg.LogLevel, cfg.Env), "seed")
    defer func() { _ = lg.Sync() }()

    db, err := database.Open(cfg)
    if err != nil {
        lg.Fatal("database connection failed", zap.Error(err))
    }
    defer db.Close()

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
    defer cancel()

    if *citiesPath != "" {
        f, err := os.Open(*citiesPath)
        if err != nil {
            lg.Fatal("open cities file", zap.Error(err))
        }
        rows, err := seed.ParseCities(f)
        _ = f.Close()
        if err != nil {
            lg.Fatal("parse cities file", zap.Error(err))
        }
        p, c, err := seed.LoadReference(ctx, repository.NewReferenceRepo(db), rows)
        if err != nil {
            lg.Fatal("load reference data", zap.Error(err))
        }
        lg.Info("reference data loaded", zap.Int("provinces", p), zap.Int("cities", c))

        if rdb := config.NewRedisClient(config.LoadRedisConfig()); rdb != nil {
            n, err := middleware.PurgeCache(ctx, config.LoadCacheConfig(), rdb)
            if err != nil {
                lg.Warn("purge reference cache", zap.Error(err))
            } else {
                lg.Info("reference cache purged", zap.Int("keys", n))
            }
            _ = rdb.Close()
        }
    }

    if *skipAdmin {
        return
    }
    created, err := seed.SuperAdmin(ctx, repository.NewAdminRepo(db), seed.AdminSeed{
        Name:     os.Getenv("SEED_ADMIN_NAME"),
        Email:    os.Getenv("SEED_ADMIN_EMAIL"),
        Username: os.Getenv("SEED_ADMIN_USERNAME"),
        Password: os.Getenv("SEED_ADMIN_PASSWORD"),
    }, cfg.BcryptCost)
    if err != nil {
        lg.Fatal("provision super admin", zap.Error(err))
    }
    if created {
        lg.Info("super admin created", zap.String("email", logger.MaskEmail(os.Getenv("SEED_ADMIN_EMAIL"))))
    } else {
        lg.Info("super admin already present")
    }
}
