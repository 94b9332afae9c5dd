// Command sweep removes expired auth state and expires past-due
// invitations.  Run it from cron, or with -interval to loop.
package main

import (
    "context"
    "flag"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "github.com/iliyamo/relief-coordination/internal/config"
    "github.com/iliyamo/relief-coordination/internal/database"
    "github.com/iliyamo/relief-coordination/internal/logger"
    "github.com/iliyamo/relief-coordination/internal/repository"
)

type sweeper struct {
    otps        *repository.OtpRepo
    tokens      *repository.TokenRepo
    invitations *repository.InvitationRepo
    retention   time.Duration
    log         *zap.Logger
}

func (s *sweeper) run(ctx context.Context) {
    now := time.Now().UTC()
    cutoff := now.Add(-s.retention)

    if n, err := s.otps.DeleteStale(ctx, now); err != nil {
        s.log.Error("delete otp challenges", zap.Error(err))
    } else {
        s.log.Info("otp challenges deleted", zap.Int64("rows", n))
    }
    if n, err := s.tokens.DeleteStale(ctx, cutoff); err != nil {
        s.log.Error("delete refresh tokens", zap.Error(err))
    } else {
        s.log.Info("refresh tokens deleted", zap.Int64("rows", n))
    }
    if n, err := s.invitations.ExpirePastDue(ctx, now); err != nil {
        s.log.Error("expire invitations", zap.Error(err))
    } else {
        s.log.Info("invitations expired", zap.Int64("rows", n))
    }
}

func main() {
    retention := flag.Duration("retention", 7*24*time.Hour, "keep expired or revoked refresh tokens this long")
    interval := flag.Duration("interval", 0, "repeat every interval; 0 runs once")
    flag.Parse()

    config.LoadDotEnv()
    cfg := config.LoadDatabase()
    lg := logger.WithComponent(logger.New(cfg.LogLevel, cfg.Env), "sweep")
    defer func() { _ = lg.Sync() }()

    db, err := database.Open(cfg)
    if err != nil {
        lg.Fatal("database connection failed", zap.Error(err))
    }
    defer db.Close()

    s := &sweeper{
        otps:        repository.NewOtpRepo(db),
        tokens:      repository.NewTokenRepo(db),
        invitations: repository.NewInvitationRepo(db),
        retention:   *retention,
        log:         lg,
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    s.run(ctx)
    if *interval <= 0 {
        return
    }
    ticker := time.NewTicker(*interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            s.run(ctx)
        }
    }
}
