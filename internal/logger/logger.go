package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Log = logrus.StandardLogger()

// InitLogger configures the process-wide logrus logger. format is "json" or "text".
func InitLogger(level, format string) {
	Log.Out = os.Stdout

	if strings.EqualFold(format, "text") {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		Log.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
}
