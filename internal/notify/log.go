package notify

import (
	"go.uber.org/zap"
)

// LogSink writes notifications to the application log. It is always
// registered, so every notification leaves a trace even with no other
// channel configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Name() string {
	return "log"
}

func (l *LogSink) Send(n Notification) error {
	l.logger.Info("notification",
		zap.String("id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("message", n.Message))
	return nil
}
