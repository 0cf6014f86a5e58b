package chrono

import (
	"fmt"
	"time"

	"infojobs-candidatures/lib/telemetry"

	"github.com/robfig/cron/v3"
)

// CronAPI is the interface that anything depending on things to happen on a cron job should use.
type CronAPI interface {
	Cron(spec string, callback func()) error
	CronNow(spec string, callback func()) error
}

// StandardCron is the standard implementation of CronAPI using `github.com/robfig/cron/v3`.
//
// A job that is still running when its next activation comes up is
// skipped instead of overlapping with itself.
type StandardCron struct {
	cron  *cron.Cron
	chain cron.Chain
}

// NewStandardCron creates a started StandardCron, Stop must be called to
// release it.
func NewStandardCron(tel telemetry.API) StandardCron {
	logger := cronLogger{tel: tel}
	cronner := cron.New(cron.WithLogger(logger))
	cronner.Start()

	// jobs are wrapped here rather than through cron.WithChain so that one
	// wrapped job can be scheduled more than once, SkipIfStillRunning
	// guards each wrapped job separately
	return StandardCron{
		cron: cronner,
		chain: cron.NewChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddJob(spec, s.chain.Then(cron.FuncJob(callback)))
	return err
}

// CronNow is Cron but the job also runs once right away. The immediate run
// and the scheduled ones share the same guard and never overlap.
func (s StandardCron) CronNow(spec string, callback func()) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return err
	}
	job := s.chain.Then(cron.FuncJob(callback))
	s.cron.Schedule(schedule, job)
	s.cron.Schedule(&onceSchedule{}, job)
	return nil
}

// onceSchedule fires at the time it is first asked about and never again.
// cron only calls Next from its scheduling goroutine.
type onceSchedule struct {
	fired bool
}

func (o *onceSchedule) Next(t time.Time) time.Time {
	if o.fired {
		return time.Time{}
	}
	o.fired = true
	return t
}

// Stop stops scheduling new jobs, the returned channel is closed once the
// running ones have finished.
func (s StandardCron) Stop() <-chan struct{} {
	return s.cron.Stop().Done()
}

type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) formatParams(keysAndValues []any) []any {
	params := []any{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		params = append(params, telemetry.KV{
			Key:   fmt.Sprint(keysAndValues[i]),
			Value: keysAndValues[i+1],
		})
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(
		fmt.Sprintf("cron: %s", msg),
		l.formatParams(keysAndValues)...,
	)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	params := append([]any{fmt.Errorf("%s: %w", msg, err)}, l.formatParams(keysAndValues)...)
	l.tel.ReportBroken("cron", params...)
}
