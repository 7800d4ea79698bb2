package z80emu

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log is the package logger. The driver traces every step at debug level.
var Log = logrus.New()

func init() {
	Log.SetLevel(logrus.WarnLevel)
	Log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
}

// SetLogLevel accepts any logrus level name ("debug", "info", ...).
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Log.SetLevel(lvl)
	return nil
}

func SetLogOutput(w io.Writer) {
	Log.SetOutput(w)
}
