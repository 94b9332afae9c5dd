// Command mailer consumes the mail queues and delivers through SendGrid.
package main

import (
    "context"
    "errors"
    "log"
    "os"
    "os/signal"
    "syscall"

    "go.uber.org/zap"

    "github.com/iliyamo/relief-coordination/internal/config"
    "github.com/iliyamo/relief-coordination/internal/logger"
    "github.com/iliyamo/relief-coordination/internal/mail"
    "github.com/iliyamo/relief-coordination/internal/queue"
)

func main() {
    config.LoadDotEnv()
    mc := config.LoadMailConfig()
    amqpCfg := config.LoadAMQPConfig()

    env := os.Getenv("APP_ENV")
    lg := logger.WithComponent(logger.New(os.Getenv("LOG_LEVEL"), env), "mailer")
    defer func() { _ = lg.Sync() }()

    sender, err := mail.NewSendGridClient(mc.SendGridAPIKey, mc.FromName, mc.FromAddress, lg)
    if err != nil {
        log.Fatalf("mailer: %v", err)
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    consumer := queue.NewConsumer(amqpCfg.URL, mail.NewMailer(sender, mc.AppBaseURL), lg)
    if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
        lg.Fatal("consumer stopped", zap.Error(err))
    }
    lg.Info("stopped")
}
