package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"nrega-scraper/internal/model"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("nrega.notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Config struct {
	Smtp SmtpConfig `json:"smtp"`
	To   []string   `json:"to"`
	// Always sends a mail after every run instead of only failed ones.
	Always bool `json:"always"`
}

func (c Config) Enabled() bool {
	return c.Smtp.Server != "" && len(c.To) > 0
}

// SendFunc delivers a prepared mail, it matches (*email.Email).Send.
type SendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

func smtpSend(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

// Email mails the run summary table to a fixed list of recipients.
type Email struct {
	config Config
	send   SendFunc
}

func NewEmail(config Config, send SendFunc) Email {
	if send == nil {
		send = smtpSend
	}
	return Email{config: config, send: send}
}

func (e Email) compose(summary model.RunSummary) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("NREGA Scraper <%s>", e.config.Smtp.EmailAddress)
	mail.To = e.config.To
	mail.Subject = fmt.Sprintf("[%s] scrape run %s", summary.Status(), summary.Note())

	body := strings.Builder{}
	fmt.Fprintf(
		&body,
		"Run %s finished at %s.\n\n",
		summary.RunID,
		model.FormatTimestamp(summary.FinishedAt),
	)
	body.WriteString(SummaryTable(nil, summary).Render())
	body.WriteString("\n")
	mail.Text = []byte(body.String())
	return mail
}

func (e Email) Notify(ctx context.Context, summary model.RunSummary) error {
	if summary.AllOK && !e.config.Always {
		return nil
	}

	_, span := tracer.Start(ctx, "notify:email")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", summary.RunID))

	mail := e.compose(summary)
	addr := fmt.Sprintf("%s:%d", e.config.Smtp.Server, e.config.Smtp.Port)

	var auth smtp.Auth
	if e.config.Smtp.Password != "" {
		auth = smtp.PlainAuth("", e.config.Smtp.EmailAddress, e.config.Smtp.Password, e.config.Smtp.Server)
	}
	err := e.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(mail, addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
