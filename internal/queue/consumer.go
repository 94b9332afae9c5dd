// Package queue contains the background consumer that listens to the mail
// queues and hands each event to a MailHandler.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// MailHandler delivers one kind of mail per method.
type MailHandler interface {
    HandleOTP(ctx context.Context, ev OtpMailEvent) error
    HandleInvitation(ctx context.Context, ev InvitationMailEvent) error
    HandleConfirmation(ctx context.Context, ev DonationConfirmationEvent) error
}

// ErrUnknownQueue is returned by Dispatch for a routing key with no handler.
var ErrUnknownQueue = errors.New("unknown queue")

// Consumer reads the mail queues with a reconnect loop.
type Consumer struct {
    url      string
    log      *zap.Logger
    handler  MailHandler
    prefetch int
    timeout  time.Duration // per message
}

func NewConsumer(url string, h MailHandler, log *zap.Logger) *Consumer {
    return &Consumer{url: url, log: log, handler: h, prefetch: 20, timeout: 15 * time.Second}
}

// Run connects, declares the durable mail queues and consumes until ctx is
// cancelled.  Broker failures are retried with exponential backoff capped
// at 30s.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("mail consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("mail consumer: consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(c.prefetch, 0, false); err != nil {
        c.log.Warn("mail consumer: set QoS failed", zap.Error(err))
    }

    deliveries := make(chan amqp.Delivery)
    stop := make(chan struct{})
    defer close(stop)
    for _, q := range Queues {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        go func(msgs <-chan amqp.Delivery) {
            for d := range msgs {
                select {
                case deliveries <- d:
                case <-stop:
                    return
                }
            }
        }(msgs)
    }
    closed := conn.NotifyClose(make(chan *amqp.Error, 1))
    c.log.Info("mail consumer: listening", zap.Strings("queues", Queues))

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case amqpErr := <-closed:
            if amqpErr == nil {
                return errors.New("connection closed")
            }
            return amqpErr
        case d := <-deliveries:
            c.handle(ctx, d)
        }
    }
}

// handle acks delivered mail and drops failures without requeueing, so a
// poison message cannot loop.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
    mctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    if err := Dispatch(mctx, c.handler, d.RoutingKey, d.Body); err != nil {
        c.log.Error("mail consumer: message dropped",
            zap.String("queue", d.RoutingKey), zap.Error(err))
        _ = d.Nack(false, false)
        return
    }
    _ = d.Ack(false)
}

// Dispatch decodes body according to queue and calls the matching handler.
func Dispatch(ctx context.Context, h MailHandler, queue string, body []byte) error {
    switch queue {
    case OtpMailQueue:
        var ev OtpMailEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        return h.HandleOTP(ctx, ev)
    case InvitationMailQueue:
        var ev InvitationMailEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        return h.HandleInvitation(ctx, ev)
    case ConfirmationMailQueue:
        var ev DonationConfirmationEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        return h.HandleConfirmation(ctx, ev)
    }
    return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
