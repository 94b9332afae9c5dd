package mail

import (
    "bytes"
    "context"
    "fmt"
    htmltpl "html/template"
    "net/url"
    "strings"
    texttpl "text/template"
    "time"

    "github.com/iliyamo/relief-coordination/internal/queue"
)

// Mailer turns queue events into messages.  It implements queue.MailHandler.
type Mailer struct {
    sender  Sender
    baseURL string
    zone    *time.Location
}

// NewMailer builds invitation links against baseURL, the frontend origin.
func NewMailer(s Sender, baseURL string) *Mailer {
    return &Mailer{sender: s, baseURL: strings.TrimRight(baseURL, "/"), zone: time.UTC}
}

var (
    otpText = texttpl.Must(texttpl.New("otp").Parse(
        "Your verification code is {{.Code}}.\n\nIt expires at {{.Expires}}. If you did not try to sign in, ignore this mail.\n"))
    otpHTML = htmltpl.Must(htmltpl.New("otp").Parse(
        `<p>Your verification code is <strong>{{.Code}}</strong>.</p><p>It expires at {{.Expires}}. If you did not try to sign in, ignore this mail.</p>`))

    invitationText = texttpl.Must(texttpl.New("invitation").Parse(
        "You have been invited to join the relief coordination team as {{.Role}}.\n\nAccept the invitation: {{.Link}}\n\nThe link expires at {{.Expires}}.\n"))
    invitationHTML = htmltpl.Must(htmltpl.New("invitation").Parse(
        `<p>You have been invited to join the relief coordination team as <strong>{{.Role}}</strong>.</p><p><a href="{{.Link}}">Accept the invitation</a></p><p>The link expires at {{.Expires}}.</p>`))

    receiptText = texttpl.Must(texttpl.New("receipt").Parse(
        "Dear {{.Name}},\n\nThank you for your donation ({{.What}}).\nReceipt: {{.Receipt}}\n\nWe will let the field teams know.\n"))
    receiptHTML = htmltpl.Must(htmltpl.New("receipt").Parse(
        `<p>Dear {{.Name}},</p><p>Thank you for your donation ({{.What}}).<br>Receipt: <code>{{.Receipt}}</code></p><p>We will let the field teams know.</p>`))
)

// HandleOTP mails a login code.
func (m *Mailer) HandleOTP(ctx context.Context, ev queue.OtpMailEvent) error {
    data := struct{ Code, Expires string }{ev.Code, m.stamp(ev.ExpiresAt)}
    return m.send(ctx, ev.Email, "Your verification code", otpText, otpHTML, data)
}

// HandleInvitation mails the acceptance link carrying the raw token.
func (m *Mailer) HandleInvitation(ctx context.Context, ev queue.InvitationMailEvent) error {
    data := struct{ Role, Link, Expires string }{
        roleLabel(ev.Role), m.invitationLink(ev.Token), m.stamp(ev.ExpiresAt),
    }
    return m.send(ctx, ev.Email, "You are invited to the relief coordination team", invitationText, invitationHTML, data)
}

// HandleConfirmation mails the donation receipt.
func (m *Mailer) HandleConfirmation(ctx context.Context, ev queue.DonationConfirmationEvent) error {
    data := struct{ Name, What, Receipt string }{ev.DonorName, describeDonation(ev), ev.ReceiptID}
    return m.send(ctx, ev.Email, "Donation received "+ev.ReceiptID, receiptText, receiptHTML, data)
}

func (m *Mailer) send(ctx context.Context, to, subject string, text *texttpl.Template, html *htmltpl.Template, data any) error {
    var tb, hb bytes.Buffer
    if err := text.Execute(&tb, data); err != nil {
        return fmt.Errorf("render %s: %w", text.Name(), err)
    }
    if err := html.Execute(&hb, data); err != nil {
        return fmt.Errorf("render %s: %w", html.Name(), err)
    }
    return m.sender.Send(ctx, Message{To: to, Subject: subject, Text: tb.String(), HTML: hb.String()})
}

func (m *Mailer) invitationLink(token string) string {
    return m.baseURL + "/invitations/accept?token=" + url.QueryEscape(token)
}

func (m *Mailer) stamp(t time.Time) string {
    return t.In(m.zone).Format("2006-01-02 15:04 MST")
}

func roleLabel(role string) string {
    switch role {
    case "SUPER_ADMIN":
        return "super admin"
    case "PROVINCE_ADMIN":
        return "province admin"
    case "VOLUNTEER":
        return "volunteer"
    }
    return strings.ToLower(role)
}

// describeDonation formats the amount in whole currency units for cash and
// names the supplies otherwise.
func describeDonation(ev queue.DonationConfirmationEvent) string {
    if ev.DonationType == "CASH" {
        return fmt.Sprintf("cash, %d.%02d", ev.Amount/100, ev.Amount%100)
    }
    return "supplies"
}
