// Package mail renders the outbound messages and delivers them through
// SendGrid.
package mail

import (
    "context"
    "errors"
    "fmt"

    "github.com/sendgrid/sendgrid-go"
    sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
    "go.uber.org/zap"

    "github.com/iliyamo/relief-coordination/internal/logger"
)

// Message is one rendered mail.
type Message struct {
    To      string
    Subject string
    Text    string
    HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
    Send(ctx context.Context, m Message) error
}

// SendGridClient implements Sender.
type SendGridClient struct {
    apiKey   string
    fromName string
    fromAddr string
    log      *zap.Logger
}

func NewSendGridClient(apiKey, fromName, fromAddr string, log *zap.Logger) (*SendGridClient, error) {
    if apiKey == "" {
        return nil, errors.New("sendgrid api key is empty")
    }
    if fromAddr == "" {
        return nil, errors.New("from address is empty")
    }
    return &SendGridClient{apiKey: apiKey, fromName: fromName, fromAddr: fromAddr, log: log}, nil
}

// Send posts m to the SendGrid v3 API.  A status of 400 or above is an error.
func (c *SendGridClient) Send(ctx context.Context, m Message) error {
    if m.To == "" {
        return errors.New("to address is empty")
    }
    message := sgmail.NewSingleEmail(
        sgmail.NewEmail(c.fromName, c.fromAddr),
        m.Subject,
        sgmail.NewEmail("", m.To),
        m.Text,
        m.HTML,
    )

    resp, err := sendgrid.NewSendClient(c.apiKey).SendWithContext(ctx, message)
    if err != nil {
        return fmt.Errorf("sendgrid send: %w", err)
    }
    if resp.StatusCode >= 400 {
        return fmt.Errorf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
    }
    c.log.Info("mail sent",
        zap.Int("status", resp.StatusCode),
        zap.String("to", logger.MaskEmail(m.To)),
        zap.String("subject", m.Subject))
    return nil
}
