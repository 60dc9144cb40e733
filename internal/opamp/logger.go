package opamp

import (
	"context"

	"github.com/sirupsen/logrus"
)

// loggerAdapter satisfies the opamp-go client's Logger interface using
// the same logrus.Entry the rest of Agent Control logs through.
type loggerAdapter struct {
	entry *logrus.Entry
}

func newLoggerAdapter(entry *logrus.Entry) *loggerAdapter {
	return &loggerAdapter{entry: entry}
}

func (l *loggerAdapter) Debugf(ctx context.Context, format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *loggerAdapter) Errorf(ctx context.Context, format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
