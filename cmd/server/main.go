package main // Entry point package

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "github.com/iliyamo/relief-coordination/internal/config"
    "github.com/iliyamo/relief-coordination/internal/database"
    "github.com/iliyamo/relief-coordination/internal/handler"
    "github.com/iliyamo/relief-coordination/internal/logger"
    "github.com/iliyamo/relief-coordination/internal/repository"
    "github.com/iliyamo/relief-coordination/internal/router"
    "github.com/iliyamo/relief-coordination/internal/service"
)

func main() {
    config.LoadDotEnv()
    cfg := config.Load() // Load environment config
    if err := cfg.Validate(); err != nil {
        log.Fatalf("invalid configuration: %v", err)
    }

    lg := logger.New(cfg.LogLevel, cfg.Env)
    defer func() { _ = lg.Sync() }()

    db, err := database.Open(cfg)
    if err != nil {
        lg.Fatal("database connection failed", zap.Error(err))
    }
    defer db.Close()

    admins := repository.NewAdminRepo(db)
    tokensRepo := repository.NewTokenRepo(db)
    otps := repository.NewOtpRepo(db)
    invitations := repository.NewInvitationRepo(db)
    donations := repository.NewDonationRepo(db)
    reference := repository.NewReferenceRepo(db)

    var notify service.Notifier = service.LogNotifier{Log: logger.WithComponent(lg, "notifier")}
    if amqpCfg := config.LoadAMQPConfig(); amqpCfg.Enabled {
        pub := service.NewQueuePublisher(amqpCfg.URL, lg)
        defer func() { _ = pub.Close() }()
        notify = pub
    } else {
        lg.Warn("AMQP disabled, mails are only logged")
    }

    tokens, err := service.NewTokenService(service.TokenConfig{
        Secret:     []byte(cfg.JWTSecret),
        Issuer:     cfg.JWTIssuer,
        Audience:   cfg.JWTAudience,
        AccessTTL:  cfg.AccessTTL,
        RefreshTTL: cfg.RefreshTTL,
    }, tokensRepo, admins)
    if err != nil {
        lg.Fatal("token service", zap.Error(err))
    }

    otp := service.NewOTPEngine(otps, cfg.OTPTTL, lg)
    if cfg.OTPBypassEnabled {
        otp.WithBypass(cfg.OTPBypassCode)
    }

    auth := service.NewAuthenticator(admins, otp, tokens, notify, lg)
    invites := service.NewInvitationManager(invitations, admins, reference, notify, cfg.InvitationTTL, cfg.BcryptCost, lg)
    donationSvc := service.NewDonationService(donations, reference, notify, lg)
    adminSvc := service.NewAdminService(admins, tokens, lg)

    rdb := config.NewRedisClient(config.LoadRedisConfig())
    if rdb == nil {
        lg.Warn("redis unreachable, rate limiting and caching disabled")
    } else {
        defer func() { _ = rdb.Close() }()
    }

    e := router.New(router.Deps{
        Log:         logger.WithComponent(lg, "http"),
        Redis:       rdb,
        RateLimit:   config.LoadRateLimitConfig(),
        Cache:       config.LoadCacheConfig(),
        Tokens:      tokens,
        Accounts:    admins,
        DB:          db,
        Auth:        handler.NewAuthHandler(auth),
        Invitations: handler.NewInvitationHandler(invites),
        Donations:   handler.NewDonationHandler(donationSvc),
        Admins:      handler.NewAdminHandler(adminSvc),
        Public:      handler.NewPublicHandler(reference),
    })

    addr := ":" + cfg.Port // Address string with port
    go func() {
        lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            lg.Fatal("server failed", zap.Error(err))
        }
    }()

    stop := make(chan os.Signal, 1)
    signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
    <-stop

    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(ctx); err != nil {
        lg.Error("shutdown", zap.Error(err))
    }
    lg.Info("stopped")
}
