// Package reminder scans medications on a fixed tick and fires
// one-shot dose notifications.
package reminder

import (
	"fmt"
	"time"

	"github.com/gmsas95/caretrack/internal/metrics"
	"github.com/gmsas95/caretrack/internal/notify"
	"github.com/gmsas95/caretrack/internal/session"
	"github.com/gmsas95/caretrack/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Poller fires a reminder when a medication's scheduled clock time
// matches the current minute and no dose was logged today. Debounce
// marks live in badger with a TTL, so a reminder fires at most once
// per window and a crash never leaves one permanently suppressed.
type Poller struct {
	session    *session.Session
	store      *store.Store
	dispatcher *notify.Dispatcher
	logger     *zap.Logger
	clock      session.Clock

	tick     time.Duration
	debounce time.Duration

	cron *cron.Cron
}

// New creates a poller. tick and debounce come from configuration;
// the defaults are 5 seconds and 60 seconds.
func New(sess *session.Session, st *store.Store, dispatcher *notify.Dispatcher, logger *zap.Logger, tick, debounce time.Duration, clock session.Clock) *Poller {
	if clock == nil {
		clock = time.Now
	}
	return &Poller{
		session:    sess,
		store:      st,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      clock,
		tick:       tick,
		debounce:   debounce,
	}
}

// Start begins ticking in the background
func (p *Poller) Start() error {
	p.cron = cron.New(cron.WithSeconds())
	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %ds", int(p.tick.Seconds())), p.Tick); err != nil {
		return fmt.Errorf("failed to schedule reminder tick: %w", err)
	}
	p.cron.Start()

	p.logger.Info("reminder poller started",
		zap.Duration("tick", p.tick),
		zap.Duration("debounce", p.debounce))
	return nil
}

// Stop halts the tick and waits for an in-flight scan to finish
func (p *Poller) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
	p.logger.Info("reminder poller stopped")
}

// Tick runs one scan. A medication is due when its scheduled time
// equals the current minute, string-exact on zero-padded HH:MM. The
// debounce mark is set before the notification goes out, so the first
// matching tick is the only one that fires within the window.
func (p *Poller) Tick() {
	now := p.clock()
	minute := now.Format("15:04")

	for _, med := range p.session.Medications() {
		if med.Time == "" || med.Time != minute {
			continue
		}
		if med.TakenOn(now) {
			continue
		}

		key := fmt.Sprintf("med:%d", med.ID)
		debounced, err := p.store.IsDebounced(key)
		if err != nil {
			p.logger.Warn("debounce lookup failed", zap.Int64("medication", med.ID), zap.Error(err))
			continue
		}
		if debounced {
			metrics.RecordReminderDebounced()
			continue
		}

		if err := p.store.SetDebounce(key, p.debounce); err != nil {
			p.logger.Warn("debounce mark failed", zap.Int64("medication", med.ID), zap.Error(err))
			continue
		}

		metrics.RecordReminderFired()
		p.logger.Info("reminder fired",
			zap.Int64("medication", med.ID),
			zap.String("name", med.Name))

		message := fmt.Sprintf("Time to take %s", med.Name)
		if med.Dosage != "" {
			message = fmt.Sprintf("Time to take %s (%s)", med.Name, med.Dosage)
		}
		p.dispatcher.Info(message)
	}
}
