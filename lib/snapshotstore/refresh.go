package snapshotstore

import (
	"context"
	"io"
	"strings"
	"time"

	"infojobs-candidatures/lib/chrono"
	"infojobs-candidatures/lib/telemetry"

	"github.com/tcnksm/go-input"
)

const DefaultMaxAge = time.Hour

// Prompter asks the user a yes or no question.
type Prompter interface {
	Confirm(question string) (bool, error)
}

// InputPrompter asks on a terminal.
type InputPrompter struct {
	ui *input.UI
}

func NewInputPrompter(reader io.Reader, writer io.Writer) InputPrompter {
	return InputPrompter{ui: &input.UI{Reader: reader, Writer: writer}}
}

func (p InputPrompter) Confirm(question string) (bool, error) {
	answer, err := p.ui.Ask(question+" [y/N]", &input.Options{
		Default:     "n",
		HideDefault: true,
		Loop:        true,
		ValidateFunc: func(s string) error {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "y", "yes", "n", "no":
				return nil
			}
			return input.ErrOutOfRange
		},
	})
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

type RefreshOptions struct {
	Force bool
	// MaxAge is the age after which a snapshot is refreshed without
	// asking, 0 uses DefaultMaxAge.
	MaxAge time.Duration
	Tel    telemetry.API
}

// CanRefresh decides whether a new crawl may overwrite the stored snapshot.
// Forced runs, missing snapshots and snapshots older than MaxAge are
// refreshed, anything else needs the user's confirmation.
func CanRefresh(ctx context.Context, store Store, clock chrono.TimeAPI, prompter Prompter, opts RefreshOptions) (bool, error) {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	tel := opts.Tel
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}

	if opts.Force {
		return true, nil
	}

	savedAt, ok, err := store.SavedAt(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		tel.ReportDebug("previous results not found, generating new ones")
		return true, nil
	}

	age := clock.Now().Sub(savedAt)
	if age >= opts.MaxAge {
		tel.ReportDebug(
			"results are stale, generating new ones",
			telemetry.KV{Key: "age", Value: age.Round(time.Second).String()},
		)
		return true, nil
	}

	return prompter.Confirm("Existing results will be overwritten, continue?")
}
