package service

import (
    "context"
    "encoding/json"
    "errors"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/relief-coordination/internal/logger"
    "github.com/iliyamo/relief-coordination/internal/model"
    q "github.com/iliyamo/relief-coordination/internal/queue"
)

// Notifier sends the mails that accompany auth and donation events. Every
// method is fire-and-forget: delivery problems are logged, never returned,
// so they cannot fail the request that triggered them.
type Notifier interface {
    SendOTP(ctx context.Context, email, code string, expiresAt time.Time)
    SendInvitation(ctx context.Context, inv model.Invitation, rawToken string)
    SendConfirmation(ctx context.Context, toEmail, donorName string, amount int64, donationType model.DonationType, receiptID string)
}

// publishTimeout bounds one background publish, including the dial and
// AMQP handshake when the connection has to be re-opened.
const publishTimeout = 5 * time.Second

const (
    publishWorkers = 4
    publishBacklog = 256
)

type publishJob struct {
    queue string
    event any
}

// QueuePublisher implements Notifier by publishing persistent JSON messages
// to the mail queues on RabbitMQ. Events are handed to a fixed pool of
// workers; when the backlog is full new events are dropped and logged. The
// connection is opened lazily and re-dialed after it drops.
type QueuePublisher struct {
    url  string
    log  *zap.Logger
    jobs chan publishJob
    done chan struct{}
    once sync.Once
    wg   sync.WaitGroup

    // lock is a one-slot semaphore guarding conn. Waiters give up when
    // their context ends instead of queueing behind a slow dial.
    lock chan struct{}
    conn *amqp.Connection
}

// NewQueuePublisher returns a publisher for the broker at url and starts
// its workers. Call Close to stop them.
func NewQueuePublisher(url string, log *zap.Logger) *QueuePublisher {
    if log == nil {
        log = zap.NewNop()
    }
    p := &QueuePublisher{
        url:  url,
        log:  logger.WithComponent(log, "publisher"),
        jobs: make(chan publishJob, publishBacklog),
        done: make(chan struct{}),
        lock: make(chan struct{}, 1),
    }
    p.wg.Add(publishWorkers)
    for i := 0; i < publishWorkers; i++ {
        go p.worker()
    }
    return p
}

// SendOTP publishes an OtpMailEvent.
func (p *QueuePublisher) SendOTP(_ context.Context, email, code string, expiresAt time.Time) {
    p.publishAsync(q.OtpMailQueue, q.OtpMailEvent{Email: email, Code: code, ExpiresAt: expiresAt})
}

// SendInvitation publishes an InvitationMailEvent.
func (p *QueuePublisher) SendInvitation(_ context.Context, inv model.Invitation, rawToken string) {
    p.publishAsync(q.InvitationMailQueue, q.InvitationMailEvent{
        InvitationID: inv.ID,
        Email:        inv.Email,
        Role:         inv.Role.String(),
        Token:        rawToken,
        ExpiresAt:    inv.ExpiresAt,
    })
}

// SendConfirmation publishes a DonationConfirmationEvent.
func (p *QueuePublisher) SendConfirmation(_ context.Context, toEmail, donorName string, amount int64, donationType model.DonationType, receiptID string) {
    p.publishAsync(q.ConfirmationMailQueue, q.DonationConfirmationEvent{
        Email:        toEmail,
        DonorName:    donorName,
        Amount:       amount,
        DonationType: string(donationType),
        ReceiptID:    receiptID,
    })
}

// publishAsync detaches from the request: the request context may be
// cancelled as soon as the handler returns.
func (p *QueuePublisher) publishAsync(queue string, event any) {
    select {
    case <-p.done:
        p.log.Warn("publisher closed, mail event dropped", zap.String("queue", queue))
        return
    default:
    }
    select {
    case p.jobs <- publishJob{queue: queue, event: event}:
    default:
        p.log.Error("publish backlog full, mail event dropped", zap.String("queue", queue))
    }
}

func (p *QueuePublisher) worker() {
    defer p.wg.Done()
    for {
        select {
        case j := <-p.jobs:
            p.deliver(j)
        case <-p.done:
            for {
                select {
                case j := <-p.jobs:
                    p.deliver(j)
                default:
                    return
                }
            }
        }
    }
}

func (p *QueuePublisher) deliver(j publishJob) {
    ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
    defer cancel()
    if err := p.Publish(ctx, j.queue, j.event); err != nil {
        p.log.Error("publish failed", zap.String("queue", j.queue), zap.Error(err))
    }
}

// Publish sends event to queue synchronously. The queue is declared durable
// and the message is marked persistent.
func (p *QueuePublisher) Publish(ctx context.Context, queue string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        return err
    }
    conn, err := p.connection(ctx)
    if err != nil {
        return err
    }
    ch, err := conn.Channel()
    if err != nil {
        p.reset(conn)
        return err
    }
    defer func() { _ = ch.Close() }()

    // idempotent; durable so messages survive broker restarts
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        return err
    }
    return ch.PublishWithContext(ctx,
        "",    // default exchange
        queue, // routing key = queue name
        false, // mandatory
        false, // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Body:         body,
        },
    )
}

// connection returns the open connection or dials a new one. The dial and
// handshake share ctx's deadline, capped at publishTimeout.
func (p *QueuePublisher) connection(ctx context.Context) (*amqp.Connection, error) {
    select {
    case p.lock <- struct{}{}:
    case <-ctx.Done():
        return nil, ctx.Err()
    }
    defer func() { <-p.lock }()

    if p.conn != nil && !p.conn.IsClosed() {
        return p.conn, nil
    }
    if p.url == "" {
        return nil, errors.New("rabbitmq: no broker url configured")
    }
    timeout := publishTimeout
    if dl, ok := ctx.Deadline(); ok {
        if left := time.Until(dl); left < timeout {
            timeout = left
        }
    }
    if timeout <= 0 {
        return nil, context.DeadlineExceeded
    }
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
    if err != nil {
        return nil, err
    }
    p.conn = conn
    return conn, nil
}

func (p *QueuePublisher) reset(conn *amqp.Connection) {
    p.lock <- struct{}{}
    defer func() { <-p.lock }()
    if p.conn == conn {
        _ = conn.Close()
        p.conn = nil
    }
}

// Close stops accepting events, waits for the workers to drain the backlog
// and closes the connection.
func (p *QueuePublisher) Close() error {
    p.once.Do(func() { close(p.done) })
    p.wg.Wait()
    p.lock <- struct{}{}
    defer func() { <-p.lock }()
    if p.conn == nil {
        return nil
    }
    err := p.conn.Close()
    p.conn = nil
    return err
}

// LogNotifier only logs. It stands in for the publisher when no broker is
// configured, e.g. in local development.
type LogNotifier struct{ Log *zap.Logger }

func (n LogNotifier) SendOTP(_ context.Context, email, _ string, expiresAt time.Time) {
    n.Log.Info("otp mail skipped", zap.String("email", logger.MaskEmail(email)), zap.Time("expires_at", expiresAt))
}

func (n LogNotifier) SendInvitation(_ context.Context, inv model.Invitation, _ string) {
    n.Log.Info("invitation mail skipped", zap.Uint64("invitation_id", inv.ID), zap.String("email", logger.MaskEmail(inv.Email)))
}

func (n LogNotifier) SendConfirmation(_ context.Context, toEmail, _ string, _ int64, _ model.DonationType, receiptID string) {
    n.Log.Info("confirmation mail skipped", zap.String("email", logger.MaskEmail(toEmail)), zap.String("receipt_id", receiptID))
}
