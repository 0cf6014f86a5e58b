// Package notify e-mails the status changes found by a refresh.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"infojobs-candidatures/lib/candidature"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Config struct {
	Smtp SmtpConfig `json:"smtp"`
	// To defaults to the smtp account's own address.
	To []string `json:"to"`
}

// Enabled reports whether enough is configured to send anything.
func (c Config) Enabled() bool {
	return c.Smtp.Server != "" && c.Smtp.EmailAddress != ""
}

type Notifier struct {
	config Config
}

func NewNotifier(config Config) Notifier {
	if config.Smtp.Port == 0 {
		config.Smtp.Port = 587
	}
	if len(config.To) == 0 {
		config.To = []string{config.Smtp.EmailAddress}
	}
	return Notifier{config: config}
}

// BuildMessage renders the e-mail announcing changes.
func (n Notifier) BuildMessage(changes []candidature.Change, at time.Time) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Candidatures <%s>", n.config.Smtp.EmailAddress)
	mail.To = n.config.To

	plural := "s"
	if len(changes) == 1 {
		plural = ""
	}
	mail.Subject = fmt.Sprintf("%d candidature change%s", len(changes), plural)

	var body strings.Builder
	fmt.Fprintf(&body, "Changes found on %s:\n\n", at.Format("2006-01-02 15:04"))
	for _, c := range changes {
		fmt.Fprintf(&body, "- %s\n", c)
	}
	mail.Text = []byte(body.String())
	return mail
}

// Notify sends the changes, nothing is sent when there are none.
func (n Notifier) Notify(ctx context.Context, changes []candidature.Change, at time.Time) error {
	if len(changes) == 0 {
		return nil
	}

	_, span := tracer.Start(ctx, "Notify")
	defer span.End()
	span.SetAttributes(attribute.Int("changes", len(changes)))

	mail := n.BuildMessage(changes, at)
	addr := fmt.Sprintf("%s:%d", n.config.Smtp.Server, n.config.Smtp.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", n.config.Smtp.EmailAddress, n.config.Smtp.Password, n.config.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
