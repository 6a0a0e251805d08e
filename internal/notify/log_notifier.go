package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/openvolume/volcached/pkg/logger"
)

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier constructs a log-backed sink.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithModule("events")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, event Event) {
	if n == nil || n.log == nil {
		return
	}
	n.log.Info(event.Name,
		zap.String("scope", event.Scope),
		zap.Any("payload", event.Payload),
	)
}
