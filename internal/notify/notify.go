// Package notify fans user-facing notifications out to delivery sinks.
package notify

import (
	"time"

	"github.com/gmsas95/caretrack/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind classifies a notification for display purposes
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a single user-facing message
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink delivers notifications over one channel
type Sink interface {
	Name() string
	Send(n Notification) error
}

// Dispatcher fans notifications out to every registered sink. A sink
// failure is logged and counted, never propagated; one dead channel
// must not block the others.
type Dispatcher struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher over the given sinks
func NewDispatcher(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, logger: logger}
}

// AddSink registers an additional sink
func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Notify builds a notification and delivers it to every sink
func (d *Dispatcher) Notify(kind Kind, message string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now(),
	}

	for _, sink := range d.sinks {
		if err := sink.Send(n); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("sink", sink.Name()),
				zap.Error(err))
			continue
		}
		metrics.RecordSinkDelivery(sink.Name())
	}

	return n
}

// Info delivers an informational notification
func (d *Dispatcher) Info(message string) Notification {
	return d.Notify(KindInfo, message)
}

// Success delivers a success notification
func (d *Dispatcher) Success(message string) Notification {
	return d.Notify(KindSuccess, message)
}

// Error delivers an error notification
func (d *Dispatcher) Error(message string) Notification {
	return d.Notify(KindError, message)
}
