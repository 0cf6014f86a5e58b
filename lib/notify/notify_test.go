package notify

import (
	"context"
	"testing"
	"time"

	"infojobs-candidatures/lib/candidature"

	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	notifier := NewNotifier(Config{Smtp: SmtpConfig{Server: "smtp.test", EmailAddress: "me@test"}})
	at := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)

	mail := notifier.BuildMessage([]candidature.Change{
		{
			Kind: candidature.ChangeStatus,
			Key:  candidature.Key{Title: "Dev", CompanyName: "Acme"},
			From: candidature.KindApplied.Status(),
			To:   candidature.KindCVRead.Status(),
		},
	}, at)

	require.Equal(t, "Candidatures <me@test>", mail.From)
	require.Equal(t, []string{"me@test"}, mail.To)
	require.Equal(t, "1 candidature change", mail.Subject)
	require.Equal(t, "Changes found on 2024-02-03 10:00:\n\n- status: Dev @ Acme ✅ Applied -> 👀 CV Read\n", string(mail.Text))
}

func TestConfig(t *testing.T) {
	require.False(t, Config{}.Enabled())
	require.True(t, Config{Smtp: SmtpConfig{Server: "smtp.test", EmailAddress: "me@test"}}.Enabled())

	notifier := NewNotifier(Config{Smtp: SmtpConfig{Server: "smtp.test", EmailAddress: "me@test"}, To: []string{"a@test", "b@test"}})
	require.Equal(t, 587, notifier.config.Smtp.Port)
	mail := notifier.BuildMessage(nil, time.Now())
	require.Equal(t, []string{"a@test", "b@test"}, mail.To)
	require.Equal(t, "0 candidature changes", mail.Subject)
}

func TestNotifyWithoutChanges(t *testing.T) {
	// an unreachable server proves nothing is dialed
	notifier := NewNotifier(Config{Smtp: SmtpConfig{Server: "127.0.0.1", Port: 1, EmailAddress: "me@test"}})
	require.NoError(t, notifier.Notify(context.Background(), nil, time.Now()))
}
