package updater

import (
	"fmt"
	"strings"

	"github.com/juju/loggo"
)

// NewLoggoLogger adapts a loggo.Logger to Logger. Key-value pairs are
// appended to the message as key=value.
func NewLoggoLogger(logger loggo.Logger) Logger {
	return loggoLogger{logger: logger}
}

type loggoLogger struct {
	logger loggo.Logger
}

func (l loggoLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugf("%s", formatKV(msg, keysAndValues))
}

func (l loggoLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Infof("%s", formatKV(msg, keysAndValues))
}

func (l loggoLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorf("%s", formatKV(msg, keysAndValues))
}

func formatKV(msg string, keysAndValues []interface{}) string {
	if len(keysAndValues) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, " %v", keysAndValues[i])
		}
	}
	return b.String()
}
