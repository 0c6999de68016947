// Package logging wires up the process-wide structured logger,
// replacing the teacher's hand-rolled logit/logEnable bitmask
// (surgeon/reposurgeon.go) with github.com/sirupsen/logrus.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logger. When cron is true the level is raised to Warn
// so routine progress lines are suppressed, matching the teacher's
// control.flagOptions["quiet"] gating of its Baton. logPath, when
// non-empty, redirects output to that file instead of stderr.
func New(cron bool, logPath string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	var out io.Writer = os.Stderr
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		out = f
	}
	l.SetOutput(out)
	if cron {
		l.SetLevel(logrus.WarnLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l, nil
}
